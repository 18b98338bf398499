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

// Class is the recovery policy applied to a trap cause.
type Class int

const (
	// ClassUnhandled is the class of causes with no handler.
	ClassUnhandled Class = iota

	// ClassFatal causes always terminate the context.
	ClassFatal

	// ClassConditional causes terminate the context unless a collaborator
	// resolves them.
	ClassConditional

	// ClassService causes are serviced and resumed.
	ClassService
)

// String implements fmt.Stringer.
func (c Class) String() string {
	switch c {
	case ClassFatal:
		return "fatal"
	case ClassConditional:
		return "conditional"
	case ClassService:
		return "service"
	default:
		return "unhandled"
	}
}

type exceptionEntry struct {
	class   Class
	handler string
	handle  func(*Dispatcher, *arch.TrapFrame)
}

// lookupException is the exception dispatch table.
func lookupException(c riscv.Cause) (exceptionEntry, bool) {
	switch c {
	case riscv.CauseMisalignedFetch:
		return exceptionEntry{ClassFatal, "misaligned fetch", (*Dispatcher).handleMisalignedFetch}, true
	case riscv.CauseFetchAccess:
		return exceptionEntry{ClassFatal, "fetch access fault", (*Dispatcher).handleFetchAccess}, true
	case riscv.CauseIllegalInstruction:
		return exceptionEntry{ClassFatal, "illegal instruction", (*Dispatcher).handleIllegalInstruction}, true
	case riscv.CauseBreakpoint:
		return exceptionEntry{ClassFatal, "breakpoint", (*Dispatcher).handleBreakpoint}, true
	case riscv.CauseMisalignedLoad:
		return exceptionEntry{ClassFatal, "misaligned load", (*Dispatcher).handleMisalignedLoad}, true
	case riscv.CauseLoadAccess:
		return exceptionEntry{ClassFatal, "load access fault", (*Dispatcher).handleLoadAccess}, true
	case riscv.CauseMisalignedStore:
		return exceptionEntry{ClassFatal, "misaligned store", (*Dispatcher).handleMisalignedStore}, true
	case riscv.CauseStoreAccess:
		return exceptionEntry{ClassFatal, "store access fault", (*Dispatcher).handleStoreAccess}, true
	case riscv.CauseUserEcall:
		return exceptionEntry{ClassService, "syscall", (*Dispatcher).handleSyscall}, true
	case riscv.CauseFetchPageFault:
		return exceptionEntry{ClassConditional, "fetch page fault", (*Dispatcher).handleFetchPageFault}, true
	case riscv.CauseLoadPageFault:
		return exceptionEntry{ClassConditional, "load page fault", (*Dispatcher).handleLoadPageFault}, true
	case riscv.CauseStorePageFault:
		return exceptionEntry{ClassConditional, "store page fault", (*Dispatcher).handleStorePageFault}, true
	default:
		return exceptionEntry{}, false
	}
}

// ExceptionPolicy describes how an exception cause is handled.
type ExceptionPolicy struct {
	Cause   riscv.Cause
	Class   Class
	Handler string
}

// DescribeException returns the policy for exception cause c. Causes
// without a handler are reported as ClassUnhandled.
func DescribeException(c riscv.Cause) ExceptionPolicy {
	e, ok := lookupException(c)
	if !ok {
		return ExceptionPolicy{Cause: c, Class: ClassUnhandled}
	}
	return ExceptionPolicy{Cause: c, Class: e.class, Handler: e.handler}
}

func (d *Dispatcher) handleMisalignedFetch(f *arch.TrapFrame) {
	d.die(f, ClassFatal, "Misaligned instruction access!")
}

func (d *Dispatcher) handleFetchAccess(f *arch.TrapFrame) {
	d.die(f, ClassFatal, "Instruction access fault!")
}

func (d *Dispatcher) handleLoadAccess(f *arch.TrapFrame) {
	d.die(f, ClassFatal, "Load access fault!")
}

func (d *Dispatcher) handleStoreAccess(f *arch.TrapFrame) {
	d.die(f, ClassFatal, "Store/AMO access fault!")
}

func (d *Dispatcher) handleIllegalInstruction(f *arch.TrapFrame) {
	d.die(f, ClassFatal, "An illegal instruction was executed!")
}

func (d *Dispatcher) handleBreakpoint(f *arch.TrapFrame) {
	d.die(f, ClassFatal, "Breakpoint!")
}

func (d *Dispatcher) handleMisalignedLoad(f *arch.TrapFrame) {
	d.die(f, ClassFatal, "Misaligned Load!")
}

func (d *Dispatcher) handleMisalignedStore(f *arch.TrapFrame) {
	d.die(f, ClassFatal, "Misaligned AMO!")
}
