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

// Package trap dispatches hart traps to their handlers.
//
// A Dispatcher is the single entry point called by the trap vector with the
// saved TrapFrame. It routes interrupts (negative scause) through an
// InterruptTable and exceptions through a fixed exception table, and applies
// the policy for each cause:
//
//   - page faults are handed to a Mapper and resumed transparently if it
//     resolves them,
//   - user ecalls are serviced by a SyscallDispatcher,
//   - everything else terminates the context through the Reporter.
//
// HandleTrap returns only when the interrupted context should be resumed.
// Terminating paths never return: the Reporter unwinds the caller.
//
// A Dispatcher serves a single hart and is not safe for concurrent use.
package trap

import (
	"fmt"

	"pktrap.dev/pktrap/pkg/abi/riscv"
	"pktrap.dev/pktrap/pkg/arch"
	"pktrap.dev/pktrap/pkg/hostarch"
	"pktrap.dev/pktrap/pkg/log"
)

// Mapper resolves page faults.
type Mapper interface {
	// HandleFault attempts to make addr accessible with the given access
	// type. It returns nil if the faulting instruction may be retried.
	//
	// HandleFault may be called repeatedly for the same unresolved address
	// and must not corrupt its state when it is.
	HandleFault(addr hostarch.Addr, at hostarch.AccessType) error
}

// SyscallDispatcher services system calls.
type SyscallDispatcher interface {
	// Syscall invokes syscall sysno and returns the value to place in the
	// return register. Failures are encoded in the returned value.
	//
	// Syscall must not call back into the Dispatcher.
	Syscall(sysno uintptr, args arch.SyscallArguments) uintptr
}

// Reporter is the diagnostic sink for fatal traps.
type Reporter interface {
	// Report renders the register state of f along with msg and terminates
	// the context. Report must not return; it must flush its output before
	// terminating.
	Report(f *arch.TrapFrame, msg string)
}

// InterruptController gives access to the hart's pending-interrupt state.
type InterruptController interface {
	// ClearPending clears the given bits of sip.
	ClearPending(mask uint64)
}

// Config holds the collaborators of a Dispatcher.
type Config struct {
	Mapper     Mapper
	Syscalls   SyscallDispatcher
	Reporter   Reporter
	Interrupts InterruptController

	// InterruptTable routes interrupts. If nil, DefaultInterruptTable is
	// used.
	InterruptTable *InterruptTable
}

// Dispatcher is the trap entry point of one hart.
type Dispatcher struct {
	mapper     Mapper
	syscalls   SyscallDispatcher
	reporter   Reporter
	irq        InterruptController
	interrupts *InterruptTable
}

// New returns a Dispatcher using the collaborators in c. All collaborators
// are required.
func New(c Config) *Dispatcher {
	switch {
	case c.Mapper == nil:
		panic("trap.New: no Mapper")
	case c.Syscalls == nil:
		panic("trap.New: no SyscallDispatcher")
	case c.Reporter == nil:
		panic("trap.New: no Reporter")
	case c.Interrupts == nil:
		panic("trap.New: no InterruptController")
	}
	it := c.InterruptTable
	if it == nil {
		it = DefaultInterruptTable
	}
	return &Dispatcher{
		mapper:     c.Mapper,
		syscalls:   c.Syscalls,
		reporter:   c.Reporter,
		irq:        c.Interrupts,
		interrupts: it,
	}
}

// HandleTrap handles the trap described by f.
//
// It returns only if the interrupted context is to be resumed with the
// (possibly updated) register state in f.
func (d *Dispatcher) HandleTrap(f *arch.TrapFrame) {
	dispatchedMetric.Increment(causeLabel(f.Cause))
	if f.Cause.IsInterrupt() {
		d.handleInterrupt(f)
		return
	}

	e, ok := lookupException(f.Cause)
	if !ok {
		d.assertf(f, "no handler for exception cause %d", int64(f.Cause))
	}
	if log.IsLogging(log.Debug) {
		log.Debugf("Trap %v at pc=%#x stval=%#x", f.Cause, f.EPC, f.BadVAddr)
	}
	e.handle(d, f)
}

// Terminate ends the context through the Reporter. It never returns.
//
// Interrupt handlers registered outside this package use Terminate for
// their fatal paths.
func (d *Dispatcher) Terminate(f *arch.TrapFrame, msg string) {
	d.die(f, ClassFatal, msg)
}

func (d *Dispatcher) die(f *arch.TrapFrame, class Class, msg string) {
	terminatedMetric.Increment(class.String())
	log.Warningf("Terminating context on %v at pc=%#x: %s", f.Cause, f.EPC, msg)
	d.reporter.Report(f, msg)
	d.assertf(f, "reporter returned after %q", msg)
}

// AssertionError is the panic value raised when the dispatcher reaches a
// state that a correctly configured environment never produces: a cause
// with no handler, or a Reporter that returned.
type AssertionError struct {
	Cause   riscv.Cause
	Message string
}

// Error implements error.Error.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("trap: assertion failed (cause %#x): %s", uint64(e.Cause), e.Message)
}

func (d *Dispatcher) assertf(f *arch.TrapFrame, format string, v ...any) {
	panic(&AssertionError{Cause: f.Cause, Message: fmt.Sprintf(format, v...)})
}

// Termination is the panic value raised by DumpReporter once the diagnostic
// has been written. The frame is a copy taken at report time.
type Termination struct {
	Message string
	Frame   arch.TrapFrame
}

// Error implements error.Error.
func (t *Termination) Error() string {
	return t.Message
}
