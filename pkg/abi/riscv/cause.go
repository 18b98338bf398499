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

// Package riscv contains the RISC-V privileged-architecture and ABI
// definitions used by the trap layer.
package riscv

import (
	"fmt"
	"strconv"
	"strings"
)

// Cause is the value of the scause CSR at trap entry.
//
// The most significant bit is set for asynchronous interrupts, which makes
// interrupt causes negative when viewed as a signed integer. For exceptions
// the value is the exception code itself.
type Cause int64

// InterruptFlag is the scause bit that marks an interrupt.
const InterruptFlag = Cause(-1 << 63)

// InterruptIndexMask selects the interrupt index from an interrupt cause.
const InterruptIndexMask = 0xff

// Synchronous exception codes.
const (
	CauseMisalignedFetch    Cause = 0x0
	CauseFetchAccess        Cause = 0x1
	CauseIllegalInstruction Cause = 0x2
	CauseBreakpoint         Cause = 0x3
	CauseMisalignedLoad     Cause = 0x4
	CauseLoadAccess         Cause = 0x5
	CauseMisalignedStore    Cause = 0x6
	CauseStoreAccess        Cause = 0x7
	CauseUserEcall          Cause = 0x8
	CauseSupervisorEcall    Cause = 0x9
	CauseHypervisorEcall    Cause = 0xa
	CauseMachineEcall       Cause = 0xb
	CauseFetchPageFault     Cause = 0xc
	CauseLoadPageFault      Cause = 0xd
	CauseStorePageFault     Cause = 0xf
)

// Interrupt is the index of an interrupt cause, i.e. the cause with
// InterruptFlag cleared and masked with InterruptIndexMask.
type Interrupt uint8

// Interrupt indices.
const (
	InterruptSupervisorSoftware Interrupt = 1
	InterruptMachineSoftware    Interrupt = 3
	InterruptSupervisorTimer    Interrupt = 5
	InterruptMachineTimer       Interrupt = 7
	InterruptSupervisorExternal Interrupt = 9
	InterruptMachineExternal    Interrupt = 11

	// InterruptAccelerator is the line raised by the attached accelerator
	// (RoCC) when it detects an integrity violation.
	InterruptAccelerator Interrupt = 12
)

var exceptionNames = map[Cause]string{
	CauseMisalignedFetch:    "misaligned_fetch",
	CauseFetchAccess:        "fetch_access",
	CauseIllegalInstruction: "illegal_instruction",
	CauseBreakpoint:         "breakpoint",
	CauseMisalignedLoad:     "misaligned_load",
	CauseLoadAccess:         "load_access",
	CauseMisalignedStore:    "misaligned_store",
	CauseStoreAccess:        "store_access",
	CauseUserEcall:          "user_ecall",
	CauseSupervisorEcall:    "supervisor_ecall",
	CauseHypervisorEcall:    "hypervisor_ecall",
	CauseMachineEcall:       "machine_ecall",
	CauseFetchPageFault:     "fetch_page_fault",
	CauseLoadPageFault:      "load_page_fault",
	CauseStorePageFault:     "store_page_fault",
}

var interruptNames = map[Interrupt]string{
	InterruptSupervisorSoftware: "supervisor_software",
	InterruptMachineSoftware:    "machine_software",
	InterruptSupervisorTimer:    "supervisor_timer",
	InterruptMachineTimer:       "machine_timer",
	InterruptSupervisorExternal: "supervisor_external",
	InterruptMachineExternal:    "machine_external",
	InterruptAccelerator:        "accelerator",
}

// ExceptionCauses returns all architecturally defined exception causes in
// ascending order.
func ExceptionCauses() []Cause {
	var cs []Cause
	for c := CauseMisalignedFetch; c <= CauseStorePageFault; c++ {
		if _, ok := exceptionNames[c]; ok {
			cs = append(cs, c)
		}
	}
	return cs
}

// Interrupts returns all known interrupt indices in ascending order.
func Interrupts() []Interrupt {
	var is []Interrupt
	for i := Interrupt(0); i <= InterruptAccelerator; i++ {
		if _, ok := interruptNames[i]; ok {
			is = append(is, i)
		}
	}
	return is
}

// IsInterrupt returns true if c is an asynchronous interrupt.
func (c Cause) IsInterrupt() bool {
	return c < 0
}

// Interrupt returns the interrupt index of c.
//
// Precondition: c.IsInterrupt().
func (c Cause) Interrupt() Interrupt {
	return Interrupt(uint64(c) & InterruptIndexMask)
}

// Cause returns the scause value for interrupt i.
func (i Interrupt) Cause() Cause {
	return InterruptFlag | Cause(i)
}

// String implements fmt.Stringer.
func (i Interrupt) String() string {
	if name, ok := interruptNames[i]; ok {
		return name
	}
	return fmt.Sprintf("interrupt_%d", uint8(i))
}

// String implements fmt.Stringer.
func (c Cause) String() string {
	if c.IsInterrupt() {
		return c.Interrupt().String() + "_interrupt"
	}
	if name, ok := exceptionNames[c]; ok {
		return name
	}
	return fmt.Sprintf("exception_%d", int64(c))
}

// ParseCause parses a cause name as returned by Cause.String, or a numeric
// scause value. Numeric values may be signed decimal or unsigned hex.
func ParseCause(s string) (Cause, error) {
	for c, name := range exceptionNames {
		if s == name {
			return c, nil
		}
	}
	if name, ok := strings.CutSuffix(s, "_interrupt"); ok {
		for i, n := range interruptNames {
			if n == name {
				return i.Cause(), nil
			}
		}
	}
	if v, err := strconv.ParseInt(s, 0, 64); err == nil {
		return Cause(v), nil
	}
	if v, err := strconv.ParseUint(s, 0, 64); err == nil {
		return Cause(v), nil
	}
	return 0, fmt.Errorf("unknown trap cause %q", s)
}
