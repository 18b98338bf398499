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
	"fmt"
	"sort"

	"pktrap.dev/pktrap/pkg/abi/riscv"
	"pktrap.dev/pktrap/pkg/arch"
)

// InterruptHandler handles one interrupt class. Fatal handlers end the
// context with (*Dispatcher).Terminate.
type InterruptHandler func(d *Dispatcher, f *arch.TrapFrame)

// InterruptEntry registers a handler for one interrupt index.
type InterruptEntry struct {
	Interrupt riscv.Interrupt

	// Name describes the handler.
	Name string

	// Class is the policy implemented by Handle.
	Class Class

	// Handle is the handler.
	Handle InterruptHandler

	// Pending holds the sip bits cleared once Handle returns.
	Pending uint64
}

// InterruptTable maps interrupt indices to handlers. It is immutable once
// built.
type InterruptTable struct {
	entries map[riscv.Interrupt]InterruptEntry
}

// NewInterruptTable builds a table from entries.
func NewInterruptTable(entries ...InterruptEntry) (*InterruptTable, error) {
	t := &InterruptTable{entries: make(map[riscv.Interrupt]InterruptEntry, len(entries))}
	for _, e := range entries {
		if e.Handle == nil {
			return nil, fmt.Errorf("interrupt %v: nil handler", e.Interrupt)
		}
		if _, ok := t.entries[e.Interrupt]; ok {
			return nil, fmt.Errorf("interrupt %v registered twice", e.Interrupt)
		}
		t.entries[e.Interrupt] = e
	}
	return t, nil
}

// MustNewInterruptTable calls NewInterruptTable and panics on error.
func MustNewInterruptTable(entries ...InterruptEntry) *InterruptTable {
	t, err := NewInterruptTable(entries...)
	if err != nil {
		panic(fmt.Sprintf("unable to build interrupt table: %v", err))
	}
	return t
}

// Lookup returns the entry for interrupt i.
func (t *InterruptTable) Lookup(i riscv.Interrupt) (InterruptEntry, bool) {
	e, ok := t.entries[i]
	return e, ok
}

// Entries returns all entries ordered by interrupt index.
func (t *InterruptTable) Entries() []InterruptEntry {
	es := make([]InterruptEntry, 0, len(t.entries))
	for _, e := range t.entries {
		es = append(es, e)
	}
	sort.Slice(es, func(i, j int) bool { return es[i].Interrupt < es[j].Interrupt })
	return es
}

// AcceleratorAuthFailure handles the accelerator (RoCC) interrupt. The
// accelerator raises it only when it rejects a request, so it is fatal.
func AcceleratorAuthFailure(d *Dispatcher, f *arch.TrapFrame) {
	d.Terminate(f, "[RoCC Interrupt] Authentication Failure")
}

// DefaultInterruptTable is used by dispatchers configured without a table.
var DefaultInterruptTable = MustNewInterruptTable(InterruptEntry{
	Interrupt: riscv.InterruptAccelerator,
	Name:      "accelerator authentication failure",
	Class:     ClassFatal,
	Handle:    AcceleratorAuthFailure,
	Pending:   riscv.SIPSupervisorSoftware,
})

func (d *Dispatcher) handleInterrupt(f *arch.TrapFrame) {
	i := f.Cause.Interrupt()
	e, ok := d.interrupts.Lookup(i)
	if !ok {
		d.assertf(f, "no handler for interrupt %d", i)
	}
	e.Handle(d, f)
	if e.Pending != 0 {
		d.irq.ClearPending(e.Pending)
	}
}
