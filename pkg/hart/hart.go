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

// Package hart models one hardware thread: a trap dispatcher together with
// the address space, task and interrupt state it serves.
package hart

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"pktrap.dev/pktrap/pkg/arch"
	"pktrap.dev/pktrap/pkg/kernel"
	"pktrap.dev/pktrap/pkg/log"
	"pktrap.dev/pktrap/pkg/mm"
	"pktrap.dev/pktrap/pkg/syscalls/linux"
	"pktrap.dev/pktrap/pkg/trap"
)

// ErrHalted is returned by Trap once the hart's context has ended.
var ErrHalted = errors.New("hart halted")

// Disposition is the outcome of a trap.
type Disposition int

const (
	// Resumed means the context continues with the updated frame.
	Resumed Disposition = iota

	// Terminated means a fatal trap ended the context with a diagnostic.
	Terminated

	// Exited means the context called exit or exit_group.
	Exited

	// Failed means the dispatcher detected an internal inconsistency.
	Failed
)

// String implements fmt.Stringer.
func (d Disposition) String() string {
	switch d {
	case Resumed:
		return "resumed"
	case Terminated:
		return "terminated"
	case Exited:
		return "exited"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Disposition(%d)", int(d))
	}
}

// ParseDisposition parses the result of Disposition.String.
func ParseDisposition(s string) (Disposition, error) {
	for d := Resumed; d <= Failed; d++ {
		if d.String() == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown disposition %q", s)
}

// Result describes how a trap was handled.
type Result struct {
	Disposition Disposition

	// Message is the diagnostic of a Terminated or Failed trap.
	Message string

	// ExitCode is the status of an Exited context.
	ExitCode int

	// Frame is the register state after handling. For Terminated traps it
	// is the state captured by the diagnostic.
	Frame arch.TrapFrame
}

// Config configures a Hart.
type Config struct {
	// ID identifies the hart in logs.
	ID int

	// TID is the thread ID of the hart's task. Zero means ID+1.
	TID int32

	// Layout is the address space layout. The zero value means
	// mm.DefaultLayout.
	Layout mm.Layout

	// SyscallTable defaults to linux.RISCV64.
	SyscallTable *kernel.SyscallTable

	// InterruptTable defaults to trap.DefaultInterruptTable.
	InterruptTable *trap.InterruptTable

	Credentials kernel.Credentials

	// Stdout and Stderr receive the task's output.
	Stdout io.Writer
	Stderr io.Writer

	// Diagnostics receives the register dump of fatal traps. Nil discards
	// it.
	Diagnostics io.Writer

	// Strace logs every system call.
	Strace bool
}

// Hart runs traps for a single context.
//
// A Hart must only be driven by one goroutine. Pending interrupts may be
// raised from any goroutine.
type Hart struct {
	id         int
	mm         *mm.MemoryManager
	task       *kernel.Task
	dispatcher *trap.Dispatcher

	// sip is the supervisor interrupt-pending register.
	sip atomic.Uint64

	traps  int
	halted bool
	final  Result
}

// New returns a Hart with an empty address space.
func New(cfg Config) (*Hart, error) {
	layout := cfg.Layout
	if layout == (mm.Layout{}) {
		layout = mm.DefaultLayout
	}
	st := cfg.SyscallTable
	if st == nil {
		st = linux.RISCV64
	}
	tid := cfg.TID
	if tid == 0 {
		tid = int32(cfg.ID) + 1
	}
	diag := cfg.Diagnostics
	if diag == nil {
		diag = io.Discard
	}

	h := &Hart{
		id: cfg.ID,
		mm: mm.NewMemoryManager(layout),
	}
	task, err := kernel.NewTask(kernel.TaskConfig{
		TID:           tid,
		Credentials:   cfg.Credentials,
		Hostname:      fmt.Sprintf("hart%d", cfg.ID),
		MemoryManager: h.mm,
		SyscallTable:  st,
		Stdout:        cfg.Stdout,
		Stderr:        cfg.Stderr,
		Strace:        cfg.Strace,
	})
	if err != nil {
		return nil, fmt.Errorf("hart %d: %w", cfg.ID, err)
	}
	h.task = task
	h.dispatcher = trap.New(trap.Config{
		Mapper:         h.mm,
		Syscalls:       task,
		Reporter:       &trap.DumpReporter{Out: diag},
		Interrupts:     h,
		InterruptTable: cfg.InterruptTable,
	})
	return h, nil
}

// ID returns the hart ID.
func (h *Hart) ID() int {
	return h.id
}

// MemoryManager returns the hart's address space.
func (h *Hart) MemoryManager() *mm.MemoryManager {
	return h.mm
}

// Task returns the hart's task.
func (h *Hart) Task() *kernel.Task {
	return h.task
}

// Raise sets bits in sip.
func (h *Hart) Raise(mask uint64) {
	h.sip.Or(mask)
}

// ClearPending implements trap.InterruptController.ClearPending.
func (h *Hart) ClearPending(mask uint64) {
	h.sip.And(^mask)
}

// Pending returns sip.
func (h *Hart) Pending() uint64 {
	return h.sip.Load()
}

// Traps returns the number of traps taken.
func (h *Hart) Traps() int {
	return h.traps
}

// Halted returns true once the context has ended, along with the result of
// the trap that ended it.
func (h *Hart) Halted() (Result, bool) {
	return h.final, h.halted
}

// Trap dispatches f, which is updated in place on resume paths.
//
// Trap returns a non-nil error only for ErrHalted and for internal
// consistency failures, which are also reported as Failed.
func (h *Hart) Trap(f *arch.TrapFrame) (res Result, err error) {
	if h.halted {
		return Result{}, ErrHalted
	}
	h.traps++

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		switch v := r.(type) {
		case *trap.Termination:
			res = Result{Disposition: Terminated, Message: v.Message, Frame: v.Frame}
		case *kernel.ExitStatus:
			res = Result{Disposition: Exited, ExitCode: v.Code, Frame: *f}
		case *trap.AssertionError:
			res = Result{Disposition: Failed, Message: v.Message, Frame: *f}
			err = v
		default:
			panic(r)
		}
		h.halted = true
		h.final = res
		log.Infof("hart %d: context %s after %d traps", h.id, res.Disposition, h.traps)
	}()

	h.dispatcher.HandleTrap(f)
	return Result{Disposition: Resumed, Frame: *f}, nil
}
