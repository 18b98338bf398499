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

package hart

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pktrap.dev/pktrap/pkg/abi/riscv"
	"pktrap.dev/pktrap/pkg/arch"
	"pktrap.dev/pktrap/pkg/hostarch"
	"pktrap.dev/pktrap/pkg/mm"
	"pktrap.dev/pktrap/pkg/trap"
)

const (
	textAddr = 0x10000
	dataAddr = 0x20000
)

type harness struct {
	h      *Hart
	stdout bytes.Buffer
	diag   bytes.Buffer
}

func newHarness(t *testing.T, table *trap.InterruptTable) *harness {
	t.Helper()
	hs := &harness{}
	h, err := New(Config{
		ID:             0,
		InterruptTable: table,
		Stdout:         &hs.stdout,
		Diagnostics:    &hs.diag,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	for _, m := range []mm.MMapOpts{
		{Addr: textAddr, Length: hostarch.PageSize, Perms: hostarch.AccessType{Read: true, Execute: true}},
		{Addr: dataAddr, Length: hostarch.PageSize, Perms: hostarch.ReadWrite, Data: []byte("hi\n")},
	} {
		if err := h.MemoryManager().Map(m); err != nil {
			t.Fatalf("Map failed: %v", err)
		}
	}
	hs.h = h
	return hs
}

func frame(c riscv.Cause) *arch.TrapFrame {
	return &arch.TrapFrame{Cause: c, EPC: textAddr}
}

func TestSyscallResumes(t *testing.T) {
	hs := newHarness(t, nil)
	f := frame(riscv.CauseUserEcall)
	f.GPR[riscv.RegA7] = riscv.SysWrite
	f.GPR[riscv.RegA0] = 1
	f.GPR[riscv.RegA1] = dataAddr
	f.GPR[riscv.RegA2] = 3

	res, err := hs.h.Trap(f)
	if err != nil {
		t.Fatalf("Trap failed: %v", err)
	}
	if res.Disposition != Resumed {
		t.Fatalf("Disposition = %v, want %v", res.Disposition, Resumed)
	}
	if res.Frame.EPC != textAddr+4 || res.Frame.GPR[riscv.RegA0] != 3 {
		t.Errorf("frame after write: epc=%#x a0=%d, want epc=%#x a0=3", res.Frame.EPC, res.Frame.GPR[riscv.RegA0], textAddr+4)
	}
	if got := hs.stdout.String(); got != "hi\n" {
		t.Errorf("stdout = %q, want %q", got, "hi\n")
	}
}

func TestPageFaults(t *testing.T) {
	hs := newHarness(t, nil)
	f := frame(riscv.CauseStorePageFault)
	f.BadVAddr = dataAddr + 8
	want := *f

	res, err := hs.h.Trap(f)
	if err != nil || res.Disposition != Resumed {
		t.Fatalf("Trap = (%v, %v), want resume", res.Disposition, err)
	}
	if diff := cmp.Diff(want, res.Frame); diff != "" {
		t.Errorf("resolved fault changed the frame (-want +got):\n%s", diff)
	}
	if n := hs.h.MemoryManager().ResidentPages(); n != 1 {
		t.Errorf("ResidentPages() = %d, want 1", n)
	}

	f = frame(riscv.CauseStorePageFault)
	f.BadVAddr = 0x2000
	res, err = hs.h.Trap(f)
	if err != nil {
		t.Fatalf("Trap failed: %v", err)
	}
	if res.Disposition != Terminated || res.Message != "User store segfault @ 0x2000" {
		t.Errorf("Trap = %v %q, want terminated with segfault", res.Disposition, res.Message)
	}
	if !strings.HasSuffix(hs.diag.String(), "User store segfault @ 0x2000\n") {
		t.Errorf("diagnostic output missing message:\n%s", hs.diag.String())
	}
	if !strings.Contains(hs.diag.String(), "pc   0000000000010000") {
		t.Errorf("diagnostic output missing register dump:\n%s", hs.diag.String())
	}

	if _, err := hs.h.Trap(frame(riscv.CauseUserEcall)); err != ErrHalted {
		t.Errorf("Trap after termination = %v, want ErrHalted", err)
	}
	if final, halted := hs.h.Halted(); !halted || final.Disposition != Terminated {
		t.Errorf("Halted() = (%v, %v), want (terminated, true)", final.Disposition, halted)
	}
}

func TestFetchFaultOnDataPage(t *testing.T) {
	hs := newHarness(t, nil)
	f := frame(riscv.CauseFetchPageFault)
	f.Status = riscv.SstatusSPP
	f.BadVAddr = dataAddr
	res, _ := hs.h.Trap(f)
	if want := "Kernel fetch segfault @ 0x20000"; res.Disposition != Terminated || res.Message != want {
		t.Errorf("Trap = %v %q, want terminated with %q", res.Disposition, res.Message, want)
	}
}

func TestExit(t *testing.T) {
	hs := newHarness(t, nil)
	f := frame(riscv.CauseUserEcall)
	f.GPR[riscv.RegA7] = riscv.SysExitGroup
	f.GPR[riscv.RegA0] = 7

	res, err := hs.h.Trap(f)
	if err != nil {
		t.Fatalf("Trap failed: %v", err)
	}
	if res.Disposition != Exited || res.ExitCode != 7 {
		t.Errorf("Trap = %v code %d, want exited code 7", res.Disposition, res.ExitCode)
	}
	if res.Frame.EPC != textAddr {
		t.Errorf("exit advanced epc to %#x", res.Frame.EPC)
	}
}

func TestUnhandledCauseFails(t *testing.T) {
	hs := newHarness(t, nil)
	res, err := hs.h.Trap(frame(riscv.CauseSupervisorEcall))
	var ae *trap.AssertionError
	if !errors.As(err, &ae) {
		t.Fatalf("Trap error = %v, want *trap.AssertionError", err)
	}
	if res.Disposition != Failed {
		t.Errorf("Disposition = %v, want %v", res.Disposition, Failed)
	}
}

func TestInterrupts(t *testing.T) {
	var ticks int
	table := trap.MustNewInterruptTable(
		trap.InterruptEntry{
			Interrupt: riscv.InterruptSupervisorSoftware,
			Name:      "ipi",
			Class:     trap.ClassService,
			Handle:    func(*trap.Dispatcher, *arch.TrapFrame) { ticks++ },
			Pending:   riscv.SIPSupervisorSoftware,
		},
		trap.InterruptEntry{
			Interrupt: riscv.InterruptAccelerator,
			Name:      "accelerator authentication failure",
			Class:     trap.ClassFatal,
			Handle:    trap.AcceleratorAuthFailure,
			Pending:   riscv.SIPSupervisorSoftware,
		},
	)
	hs := newHarness(t, table)

	hs.h.Raise(riscv.SIPSupervisorSoftware | riscv.SIPSupervisorTimer)
	res, err := hs.h.Trap(frame(riscv.InterruptSupervisorSoftware.Cause()))
	if err != nil || res.Disposition != Resumed {
		t.Fatalf("Trap = (%v, %v), want resume", res.Disposition, err)
	}
	if ticks != 1 {
		t.Errorf("handler ran %d times, want 1", ticks)
	}
	if got := hs.h.Pending(); got != riscv.SIPSupervisorTimer {
		t.Errorf("Pending() = %#x, want %#x", got, riscv.SIPSupervisorTimer)
	}

	res, _ = hs.h.Trap(frame(riscv.InterruptAccelerator.Cause()))
	if want := "[RoCC Interrupt] Authentication Failure"; res.Disposition != Terminated || res.Message != want {
		t.Errorf("Trap = %v %q, want terminated with %q", res.Disposition, res.Message, want)
	}
	if hs.h.Traps() != 2 {
		t.Errorf("Traps() = %d, want 2", hs.h.Traps())
	}
}

func TestDispositionStrings(t *testing.T) {
	for d := Resumed; d <= Failed; d++ {
		got, err := ParseDisposition(d.String())
		if err != nil || got != d {
			t.Errorf("ParseDisposition(%q) = (%v, %v), want %v", d.String(), got, err, d)
		}
	}
	if _, err := ParseDisposition("paused"); err == nil {
		t.Errorf("ParseDisposition(paused) succeeded")
	}
}
