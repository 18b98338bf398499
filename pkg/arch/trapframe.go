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

// Package arch describes the register state saved by the hart on trap entry
// and the syscall calling convention layered on top of it.
package arch

import (
	"pktrap.dev/pktrap/pkg/abi/riscv"
	"pktrap.dev/pktrap/pkg/hostarch"
)

// TrapFrame is the register state of a hart at the moment it trapped.
//
// A TrapFrame is built by the trap entry path immediately before the trap is
// dispatched and is owned by that dispatch until the context is resumed or
// terminated.
type TrapFrame struct {
	// GPR is the integer register file. GPR[0] is always zero.
	GPR [riscv.NumRegisters]uint64

	// Status is the saved sstatus.
	Status uint64

	// EPC is the saved sepc: the address of the trapping instruction.
	EPC uint64

	// BadVAddr is the saved stval. It is only meaningful for access faults,
	// page faults and misaligned accesses.
	BadVAddr uint64

	// Cause is the saved scause.
	Cause riscv.Cause

	// Insn holds the trapping instruction bits when the trap entry path
	// captured them, and zero otherwise.
	Insn uint64
}

// Privileged returns true if the trap was taken from supervisor mode.
func (f *TrapFrame) Privileged() bool {
	return f.Status&riscv.SstatusSPP != 0
}

// FaultAddr returns the faulting virtual address.
func (f *TrapFrame) FaultAddr() hostarch.Addr {
	return hostarch.Addr(f.BadVAddr)
}

// IP returns the saved program counter.
func (f *TrapFrame) IP() uintptr {
	return uintptr(f.EPC)
}

// Reg returns the value of integer register i.
func (f *TrapFrame) Reg(i int) uint64 {
	return f.GPR[i]
}

// SetReg sets integer register i. Writes to the zero register are dropped.
func (f *TrapFrame) SetReg(i int, v uint64) {
	if i == riscv.RegZero {
		return
	}
	f.GPR[i] = v
}
