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

package trap

import (
	"pktrap.dev/pktrap/pkg/abi/riscv"
	"pktrap.dev/pktrap/pkg/arch"
)

// handleSyscall services a user ecall and steps past it.
func (d *Dispatcher) handleSyscall(f *arch.TrapFrame) {
	ret := d.syscalls.Syscall(f.SyscallNo(), f.SyscallArgs())
	f.SetReturn(ret)
	f.EPC += riscv.SyscallInstructionWidth
	syscallMetric.Increment()
}
