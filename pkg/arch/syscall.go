// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package arch

import (
	"fmt"

	"pktrap.dev/pktrap/pkg/abi/riscv"
	"pktrap.dev/pktrap/pkg/hostarch"
)

// SyscallArgument is an argument supplied to a syscall implementation. The
// methods used to access the arguments are named after the ***C type name*** and
// they convert to the closest Go type available. For example, Int() refers to a
// 32-bit signed integer argument represented in Go as an int32.
//
// Using the accessor methods guarantees that the conversion between types is
// correct, taking into account size and signedness (i.e., zero-extension vs
// signed-extension).
type SyscallArgument struct {
	// Prefer to use accessor methods instead of 'Value' directly.
	Value uintptr
}

// SyscallArguments represents the set of arguments passed to a syscall.
type SyscallArguments [6]SyscallArgument

// Pointer returns the hostarch.Addr representation of a pointer argument.
func (a SyscallArgument) Pointer() hostarch.Addr {
	return hostarch.Addr(a.Value)
}

// Int returns the int32 representation of a 32-bit signed integer argument.
func (a SyscallArgument) Int() int32 {
	return int32(a.Value)
}

// Uint returns the uint32 representation of a 32-bit unsigned integer argument.
func (a SyscallArgument) Uint() uint32 {
	return uint32(a.Value)
}

// Int64 returns the int64 representation of a 64-bit signed integer argument.
func (a SyscallArgument) Int64() int64 {
	return int64(a.Value)
}

// Uint64 returns the uint64 representation of a 64-bit unsigned integer argument.
func (a SyscallArgument) Uint64() uint64 {
	return uint64(a.Value)
}

// SizeT returns the uint representation of a size_t argument.
func (a SyscallArgument) SizeT() uint {
	return uint(a.Value)
}

// String implements fmt.Stringer.
func (a SyscallArgument) String() string {
	return fmt.Sprintf("%#x", a.Value)
}

// SyscallNo returns the syscall number held in a7.
func (f *TrapFrame) SyscallNo() uintptr {
	return uintptr(f.GPR[riscv.RegSyscallNo])
}

// SyscallArgs returns the six syscall arguments held in a0-a5.
func (f *TrapFrame) SyscallArgs() SyscallArguments {
	var args SyscallArguments
	for i, r := range riscv.SyscallArgRegs {
		args[i] = SyscallArgument{Value: uintptr(f.GPR[r])}
	}
	return args
}

// SetReturn stores a syscall result in a0.
func (f *TrapFrame) SetReturn(v uintptr) {
	f.GPR[riscv.RegSyscallReturn] = uint64(v)
}

// Return returns the value last stored by SetReturn.
func (f *TrapFrame) Return() uintptr {
	return uintptr(f.GPR[riscv.RegSyscallReturn])
}
