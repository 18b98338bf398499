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
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pktrap.dev/pktrap/pkg/abi/riscv"
	"pktrap.dev/pktrap/pkg/arch"
	"pktrap.dev/pktrap/pkg/hostarch"
)

type faultCall struct {
	Addr   hostarch.Addr
	Access hostarch.AccessType
}

type fakeMapper struct {
	err   error
	calls []faultCall
}

func (m *fakeMapper) HandleFault(addr hostarch.Addr, at hostarch.AccessType) error {
	m.calls = append(m.calls, faultCall{addr, at})
	return m.err
}

type syscallCall struct {
	Sysno uintptr
	Args  arch.SyscallArguments
}

type fakeSyscalls struct {
	ret   uintptr
	calls []syscallCall
}

func (s *fakeSyscalls) Syscall(sysno uintptr, args arch.SyscallArguments) uintptr {
	s.calls = append(s.calls, syscallCall{sysno, args})
	return s.ret
}

// reported is the panic value of fakeReporter.
type reported struct {
	msg string
}

type fakeReporter struct {
	msgs []string
}

func (r *fakeReporter) Report(f *arch.TrapFrame, msg string) {
	r.msgs = append(r.msgs, msg)
	panic(reported{msg})
}

type returningReporter struct {
	calls int
}

func (r *returningReporter) Report(*arch.TrapFrame, string) {
	r.calls++
}

type fakeIRQ struct {
	cleared []uint64
}

func (c *fakeIRQ) ClearPending(mask uint64) {
	c.cleared = append(c.cleared, mask)
}

type testEnv struct {
	mapper   *fakeMapper
	syscalls *fakeSyscalls
	reporter *fakeReporter
	irq      *fakeIRQ
	d        *Dispatcher
}

func newTestEnv(table *InterruptTable) *testEnv {
	e := &testEnv{
		mapper:   &fakeMapper{},
		syscalls: &fakeSyscalls{},
		reporter: &fakeReporter{},
		irq:      &fakeIRQ{},
	}
	e.d = New(Config{
		Mapper:         e.mapper,
		Syscalls:       e.syscalls,
		Reporter:       e.reporter,
		Interrupts:     e.irq,
		InterruptTable: table,
	})
	return e
}

const (
	outcomeResumed    = "resumed"
	outcomeTerminated = "terminated"
	outcomeAssertion  = "assertion"
)

// run dispatches f and reports how the dispatch ended.
func run(d *Dispatcher, f *arch.TrapFrame) (outcome, msg string) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		switch v := r.(type) {
		case reported:
			outcome, msg = outcomeTerminated, v.msg
		case *AssertionError:
			outcome, msg = outcomeAssertion, v.Message
		default:
			panic(r)
		}
	}()
	d.HandleTrap(f)
	return outcomeResumed, ""
}

func newFrame(c riscv.Cause) *arch.TrapFrame {
	f := &arch.TrapFrame{
		Cause: c,
		EPC:   0x10000,
	}
	for i := 1; i < riscv.NumRegisters; i++ {
		f.GPR[i] = uint64(i) * 0x1111
	}
	return f
}

func TestFatalExceptions(t *testing.T) {
	for _, tc := range []struct {
		cause riscv.Cause
		msg   string
	}{
		{riscv.CauseMisalignedFetch, "Misaligned instruction access!"},
		{riscv.CauseFetchAccess, "Instruction access fault!"},
		{riscv.CauseIllegalInstruction, "An illegal instruction was executed!"},
		{riscv.CauseBreakpoint, "Breakpoint!"},
		{riscv.CauseMisalignedLoad, "Misaligned Load!"},
		{riscv.CauseLoadAccess, "Load access fault!"},
		{riscv.CauseMisalignedStore, "Misaligned AMO!"},
		{riscv.CauseStoreAccess, "Store/AMO access fault!"},
	} {
		t.Run(tc.cause.String(), func(t *testing.T) {
			e := newTestEnv(nil)
			f := newFrame(tc.cause)
			f.BadVAddr = 0x1003
			want := *f

			outcome, msg := run(e.d, f)
			if outcome != outcomeTerminated || msg != tc.msg {
				t.Errorf("HandleTrap ended with %s %q, want %s %q", outcome, msg, outcomeTerminated, tc.msg)
			}
			if diff := cmp.Diff([]string{tc.msg}, e.reporter.msgs); diff != "" {
				t.Errorf("reports mismatch (-want +got):\n%s", diff)
			}
			if len(e.mapper.calls) != 0 || len(e.syscalls.calls) != 0 {
				t.Errorf("fatal cause reached collaborators: mapper=%v syscalls=%v", e.mapper.calls, e.syscalls.calls)
			}
			if diff := cmp.Diff(want, *f); diff != "" {
				t.Errorf("frame modified (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPageFaultResolved(t *testing.T) {
	for _, tc := range []struct {
		cause  riscv.Cause
		access hostarch.AccessType
	}{
		{riscv.CauseFetchPageFault, hostarch.Execute},
		{riscv.CauseLoadPageFault, hostarch.Read},
		{riscv.CauseStorePageFault, hostarch.Write},
	} {
		t.Run(tc.cause.String(), func(t *testing.T) {
			e := newTestEnv(nil)
			f := newFrame(tc.cause)
			f.BadVAddr = 0x4000
			want := *f

			if outcome, msg := run(e.d, f); outcome != outcomeResumed {
				t.Fatalf("HandleTrap ended with %s %q, want resume", outcome, msg)
			}
			if diff := cmp.Diff([]faultCall{{0x4000, tc.access}}, e.mapper.calls); diff != "" {
				t.Errorf("mapper calls mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(want, *f); diff != "" {
				t.Errorf("frame modified (-want +got):\n%s", diff)
			}
			if len(e.reporter.msgs) != 0 {
				t.Errorf("resolved fault reported: %v", e.reporter.msgs)
			}
		})
	}
}

func TestPageFaultSegfault(t *testing.T) {
	for _, tc := range []struct {
		name   string
		cause  riscv.Cause
		status uint64
		addr   uint64
		access hostarch.AccessType
		msg    string
	}{
		{
			name:   "user store",
			cause:  riscv.CauseStorePageFault,
			addr:   0x2000,
			access: hostarch.Write,
			msg:    "User store segfault @ 0x2000",
		},
		{
			name:   "kernel load",
			cause:  riscv.CauseLoadPageFault,
			status: riscv.SstatusSPP | riscv.SstatusSPIE,
			addr:   0xdead0000,
			access: hostarch.Read,
			msg:    "Kernel load segfault @ 0xdead0000",
		},
		{
			name:   "user fetch",
			cause:  riscv.CauseFetchPageFault,
			status: riscv.SstatusSPIE,
			addr:   0x10000,
			access: hostarch.Execute,
			msg:    "User fetch segfault @ 0x10000",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEnv(nil)
			e.mapper.err = errors.New("no mapping")
			f := newFrame(tc.cause)
			f.Status = tc.status
			f.BadVAddr = tc.addr

			outcome, msg := run(e.d, f)
			if outcome != outcomeTerminated || msg != tc.msg {
				t.Errorf("HandleTrap ended with %s %q, want %s %q", outcome, msg, outcomeTerminated, tc.msg)
			}
			if diff := cmp.Diff([]faultCall{{hostarch.Addr(tc.addr), tc.access}}, e.mapper.calls); diff != "" {
				t.Errorf("mapper calls mismatch (-want +got):\n%s", diff)
			}
			if len(e.reporter.msgs) != 1 {
				t.Errorf("reporter called %d times, want 1", len(e.reporter.msgs))
			}
		})
	}
}

func TestSyscall(t *testing.T) {
	e := newTestEnv(nil)
	e.syscalls.ret = 5
	f := newFrame(riscv.CauseUserEcall)
	f.GPR[riscv.RegA7] = riscv.SysWrite
	f.GPR[riscv.RegA0] = 1
	f.GPR[riscv.RegA1] = 0x1000
	f.GPR[riscv.RegA2] = 5
	want := *f
	want.GPR[riscv.RegA0] = 5
	want.EPC = 0x10004

	if outcome, msg := run(e.d, f); outcome != outcomeResumed {
		t.Fatalf("HandleTrap ended with %s %q, want resume", outcome, msg)
	}
	if diff := cmp.Diff(want, *f); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}
	wantCalls := []syscallCall{{
		Sysno: riscv.SysWrite,
		Args: arch.SyscallArguments{
			{Value: 1},
			{Value: 0x1000},
			{Value: 5},
			{Value: uintptr(riscv.RegA3) * 0x1111},
			{Value: uintptr(riscv.RegA4) * 0x1111},
			{Value: uintptr(riscv.RegA5) * 0x1111},
		},
	}}
	if diff := cmp.Diff(wantCalls, e.syscalls.calls); diff != "" {
		t.Errorf("syscall calls mismatch (-want +got):\n%s", diff)
	}
}

func TestSyscallErrorResult(t *testing.T) {
	e := newTestEnv(nil)
	enosys := int64(-38)
	e.syscalls.ret = uintptr(enosys)
	f := newFrame(riscv.CauseUserEcall)
	f.GPR[riscv.RegA7] = 0xffff

	if outcome, msg := run(e.d, f); outcome != outcomeResumed {
		t.Fatalf("HandleTrap ended with %s %q, want resume", outcome, msg)
	}
	if got := int64(f.GPR[riscv.RegA0]); got != enosys {
		t.Errorf("a0 = %d, want %d", got, enosys)
	}
	if f.EPC != 0x10004 {
		t.Errorf("epc = %#x, want 0x10004", f.EPC)
	}
}

func TestSyscallSequence(t *testing.T) {
	e := newTestEnv(nil)
	f := newFrame(riscv.CauseUserEcall)
	for i := 1; i <= 3; i++ {
		if outcome, msg := run(e.d, f); outcome != outcomeResumed {
			t.Fatalf("syscall %d ended with %s %q", i, outcome, msg)
		}
		if want := uint64(0x10000 + 4*i); f.EPC != want {
			t.Errorf("after syscall %d epc = %#x, want %#x", i, f.EPC, want)
		}
	}
}

func TestUnhandledException(t *testing.T) {
	for _, c := range []riscv.Cause{
		riscv.CauseSupervisorEcall,
		riscv.CauseHypervisorEcall,
		riscv.CauseMachineEcall,
		14,
		16,
		0x7fff,
	} {
		t.Run(c.String(), func(t *testing.T) {
			e := newTestEnv(nil)
			f := newFrame(c)
			if outcome, msg := run(e.d, f); outcome != outcomeAssertion {
				t.Errorf("HandleTrap ended with %s %q, want assertion", outcome, msg)
			}
			if len(e.reporter.msgs)+len(e.mapper.calls)+len(e.syscalls.calls) != 0 {
				t.Errorf("unhandled cause reached collaborators")
			}
		})
	}
}

func TestInterruptBypassesExceptionTable(t *testing.T) {
	for _, c := range []riscv.Cause{
		riscv.InterruptFlag | riscv.Cause(riscv.CauseUserEcall),
		riscv.InterruptFlag | riscv.Cause(riscv.CauseStorePageFault),
		riscv.InterruptSupervisorTimer.Cause(),
	} {
		t.Run(c.String(), func(t *testing.T) {
			e := newTestEnv(nil)
			f := newFrame(c)
			f.GPR[riscv.RegA7] = riscv.SysGetpid
			want := *f

			if outcome, msg := run(e.d, f); outcome != outcomeAssertion {
				t.Errorf("HandleTrap ended with %s %q, want assertion", outcome, msg)
			}
			if len(e.syscalls.calls) != 0 || len(e.mapper.calls) != 0 {
				t.Errorf("interrupt dispatched to exception handler")
			}
			if diff := cmp.Diff(want, *f); diff != "" {
				t.Errorf("frame modified (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAcceleratorInterrupt(t *testing.T) {
	for _, c := range []riscv.Cause{
		riscv.InterruptAccelerator.Cause(),
		// Bits above the index are ignored.
		riscv.InterruptFlag | 0x100 | riscv.Cause(riscv.InterruptAccelerator),
	} {
		e := newTestEnv(nil)
		outcome, msg := run(e.d, newFrame(c))
		if want := "[RoCC Interrupt] Authentication Failure"; outcome != outcomeTerminated || msg != want {
			t.Errorf("cause %#x: HandleTrap ended with %s %q, want %s %q", uint64(c), outcome, msg, outcomeTerminated, want)
		}
		if len(e.syscalls.calls) != 0 || len(e.mapper.calls) != 0 {
			t.Errorf("cause %#x: interrupt reached exception collaborators", uint64(c))
		}
	}
}

func TestInterruptClearsPending(t *testing.T) {
	var handled []riscv.Cause
	table := MustNewInterruptTable(InterruptEntry{
		Interrupt: riscv.InterruptSupervisorSoftware,
		Name:      "ipi",
		Class:     ClassService,
		Handle: func(d *Dispatcher, f *arch.TrapFrame) {
			handled = append(handled, f.Cause)
		},
		Pending: riscv.SIPSupervisorSoftware,
	})
	e := newTestEnv(table)
	f := newFrame(riscv.InterruptSupervisorSoftware.Cause())
	want := *f

	if outcome, msg := run(e.d, f); outcome != outcomeResumed {
		t.Fatalf("HandleTrap ended with %s %q, want resume", outcome, msg)
	}
	if diff := cmp.Diff([]riscv.Cause{want.Cause}, handled); diff != "" {
		t.Errorf("handler invocations mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint64{riscv.SIPSupervisorSoftware}, e.irq.cleared); diff != "" {
		t.Errorf("cleared pending bits mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, *f); diff != "" {
		t.Errorf("frame modified (-want +got):\n%s", diff)
	}

	// The custom table does not carry the default accelerator entry.
	if outcome, _ := run(e.d, newFrame(riscv.InterruptAccelerator.Cause())); outcome != outcomeAssertion {
		t.Errorf("unregistered accelerator interrupt ended with %s, want assertion", outcome)
	}
}

func TestReporterMustNotReturn(t *testing.T) {
	r := &returningReporter{}
	d := New(Config{
		Mapper:     &fakeMapper{err: errors.New("no mapping")},
		Syscalls:   &fakeSyscalls{},
		Reporter:   r,
		Interrupts: &fakeIRQ{},
	})
	for _, c := range []riscv.Cause{
		riscv.CauseIllegalInstruction,
		riscv.CauseLoadPageFault,
		riscv.InterruptAccelerator.Cause(),
	} {
		if outcome, msg := run(d, newFrame(c)); outcome != outcomeAssertion {
			t.Errorf("%v: HandleTrap ended with %s %q, want assertion", c, outcome, msg)
		}
	}
	if r.calls != 3 {
		t.Errorf("reporter called %d times, want 3", r.calls)
	}
}

func TestNewInterruptTable(t *testing.T) {
	h := func(*Dispatcher, *arch.TrapFrame) {}
	if _, err := NewInterruptTable(
		InterruptEntry{Interrupt: riscv.InterruptSupervisorTimer, Handle: h},
		InterruptEntry{Interrupt: riscv.InterruptSupervisorTimer, Handle: h},
	); err == nil {
		t.Errorf("NewInterruptTable accepted a duplicate entry")
	}
	if _, err := NewInterruptTable(InterruptEntry{Interrupt: riscv.InterruptSupervisorTimer}); err == nil {
		t.Errorf("NewInterruptTable accepted a nil handler")
	}

	tbl, err := NewInterruptTable(
		InterruptEntry{Interrupt: riscv.InterruptAccelerator, Handle: h},
		InterruptEntry{Interrupt: riscv.InterruptSupervisorSoftware, Handle: h},
	)
	if err != nil {
		t.Fatalf("NewInterruptTable failed: %v", err)
	}
	var got []riscv.Interrupt
	for _, e := range tbl.Entries() {
		got = append(got, e.Interrupt)
	}
	if diff := cmp.Diff([]riscv.Interrupt{riscv.InterruptSupervisorSoftware, riscv.InterruptAccelerator}, got); diff != "" {
		t.Errorf("Entries() mismatch (-want +got):\n%s", diff)
	}
}

func TestDescribeException(t *testing.T) {
	for _, tc := range []struct {
		cause riscv.Cause
		class Class
	}{
		{riscv.CauseIllegalInstruction, ClassFatal},
		{riscv.CauseStorePageFault, ClassConditional},
		{riscv.CauseUserEcall, ClassService},
		{riscv.CauseSupervisorEcall, ClassUnhandled},
	} {
		if got := DescribeException(tc.cause).Class; got != tc.class {
			t.Errorf("DescribeException(%v).Class = %v, want %v", tc.cause, got, tc.class)
		}
	}
}

func TestDumpReporter(t *testing.T) {
	var out bytes.Buffer
	d := New(Config{
		Mapper:     &fakeMapper{},
		Syscalls:   &fakeSyscalls{},
		Reporter:   &DumpReporter{Out: &out},
		Interrupts: &fakeIRQ{},
	})
	f := newFrame(riscv.CauseBreakpoint)
	f.Insn = 0x00100073

	var term *Termination
	func() {
		defer func() {
			term, _ = recover().(*Termination)
		}()
		d.HandleTrap(f)
	}()
	if term == nil {
		t.Fatalf("HandleTrap did not terminate with *Termination")
	}
	if term.Message != "Breakpoint!" {
		t.Errorf("Termination.Message = %q, want %q", term.Message, "Breakpoint!")
	}
	if diff := cmp.Diff(*f, term.Frame); diff != "" {
		t.Errorf("Termination.Frame mismatch (-want +got):\n%s", diff)
	}

	got := out.String()
	if !strings.HasPrefix(got, f.String()) {
		t.Errorf("output does not start with the register dump:\n%s", got)
	}
	if !strings.HasSuffix(got, "Breakpoint!\n") {
		t.Errorf("output does not end with the message:\n%s", got)
	}
}

func TestMetrics(t *testing.T) {
	e := newTestEnv(nil)
	before := struct{ dispatched, resolved, syscalls uint64 }{
		dispatchedMetric.Value("store_page_fault"),
		pageFaultMetric.Value("store", "resolved"),
		syscallMetric.Value(),
	}
	run(e.d, newFrame(riscv.CauseStorePageFault))
	run(e.d, newFrame(riscv.CauseUserEcall))

	if got := dispatchedMetric.Value("store_page_fault") - before.dispatched; got != 1 {
		t.Errorf("dispatched{store_page_fault} delta = %d, want 1", got)
	}
	if got := pageFaultMetric.Value("store", "resolved") - before.resolved; got != 1 {
		t.Errorf("page_faults{store,resolved} delta = %d, want 1", got)
	}
	if got := syscallMetric.Value() - before.syscalls; got != 1 {
		t.Errorf("syscalls delta = %d, want 1", got)
	}
	if got, want := causeLabel(riscv.Cause(0x7fff)), unknownCause; got != want {
		t.Errorf("causeLabel(0x7fff) = %q, want %q", got, want)
	}
}
