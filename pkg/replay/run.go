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

package replay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
	"pktrap.dev/pktrap/pkg/abi/riscv"
	"pktrap.dev/pktrap/pkg/arch"
	"pktrap.dev/pktrap/pkg/hart"
	"pktrap.dev/pktrap/pkg/hostarch"
	"pktrap.dev/pktrap/pkg/log"
	"pktrap.dev/pktrap/pkg/mm"
	"pktrap.dev/pktrap/pkg/trap"
)

// Options configures Run.
type Options struct {
	// Strace logs every system call.
	Strace bool

	// InterruptTable is installed in every hart. Nil means
	// trap.DefaultInterruptTable.
	InterruptTable *trap.InterruptTable
}

// Report is the outcome of a scenario.
type Report struct {
	Name  string       `json:"name"`
	Harts []HartReport `json:"harts"`
}

// HartReport is the outcome of one hart.
type HartReport struct {
	ID            int          `json:"id"`
	Traps         []TrapReport `json:"traps"`
	Final         string       `json:"final"`
	Output        string       `json:"output,omitempty"`
	Diagnostics   string       `json:"diagnostics,omitempty"`
	Maps          string       `json:"maps"`
	ResidentPages int          `json:"resident_pages"`
	Mismatches    []string     `json:"mismatches,omitempty"`
}

// TrapReport is the outcome of one trap.
type TrapReport struct {
	Cause       string `json:"cause"`
	PC          uint64 `json:"pc"`
	Disposition string `json:"disposition"`
	Message     string `json:"message,omitempty"`
	ExitCode    int    `json:"exit_code,omitempty"`
	NextPC      uint64 `json:"next_pc"`
	A0          uint64 `json:"a0"`
}

// Mismatches returns every failed expectation, prefixed by its hart.
func (r *Report) Mismatches() []string {
	var ms []string
	for _, h := range r.Harts {
		for _, m := range h.Mismatches {
			ms = append(ms, fmt.Sprintf("hart %d: %s", h.ID, m))
		}
	}
	return ms
}

// OK returns true if all expectations held.
func (r *Report) OK() bool {
	return len(r.Mismatches()) == 0
}

// Run runs every hart of s concurrently. Each hart has its own address
// space, task and dispatcher.
//
// Run returns an error if a hart could not be set up or ctx was cancelled.
// Failed expectations are recorded in the report.
func Run(ctx context.Context, s *Scenario, opts Options) (*Report, error) {
	report := &Report{
		Name:  s.Name,
		Harts: make([]HartReport, len(s.Harts)),
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := range s.Harts {
		g.Go(func() error {
			hr, err := runHart(ctx, &s.Harts[i], opts)
			if err != nil {
				return fmt.Errorf("hart %d: %w", s.Harts[i].ID, err)
			}
			report.Harts[i] = *hr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(report.Harts, func(i, j int) bool { return report.Harts[i].ID < report.Harts[j].ID })
	return report, nil
}

func runHart(ctx context.Context, spec *HartSpec, opts Options) (*HartReport, error) {
	var stdout, diag bytes.Buffer
	h, err := hart.New(hart.Config{
		ID:             spec.ID,
		TID:            spec.TID,
		InterruptTable: opts.InterruptTable,
		Stdout:         &stdout,
		Stderr:         &stdout,
		Diagnostics:    &diag,
		Strace:         opts.Strace,
	})
	if err != nil {
		return nil, err
	}
	m := h.MemoryManager()
	for _, mp := range spec.Mappings {
		if err := m.Map(mm.MMapOpts{
			Addr:   hostarch.Addr(mp.Start),
			Length: uint64(mp.Length),
			Perms:  hostarch.AccessType(mp.Perms),
			Name:   mp.Name,
			Data:   []byte(mp.Data),
		}); err != nil {
			return nil, fmt.Errorf("mapping %#x+%#x: %w", uint64(mp.Start), uint64(mp.Length), err)
		}
	}
	if spec.Brk != nil {
		m.BrkSetup(hostarch.Addr(*spec.Brk))
	}
	log.Infof("hart %d: replaying %d traps", spec.ID, len(spec.Traps))

	hr := &HartReport{ID: spec.ID}
	var f arch.TrapFrame
	for i, t := range spec.Traps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		applyTrap(&f, &t)
		h.Raise(uint64(t.Raise))
		pc := f.EPC

		res, err := h.Trap(&f)
		if errors.Is(err, hart.ErrHalted) {
			hr.Mismatches = append(hr.Mismatches, fmt.Sprintf("trap %d: hart already halted", i))
			break
		}
		tr := TrapReport{
			Cause:       f.Cause.String(),
			PC:          pc,
			Disposition: res.Disposition.String(),
			Message:     res.Message,
			ExitCode:    res.ExitCode,
			NextPC:      res.Frame.EPC,
			A0:          res.Frame.GPR[riscv.RegA0],
		}
		hr.Traps = append(hr.Traps, tr)
		if t.Expect != nil {
			for _, msg := range check(t.Expect, &res) {
				hr.Mismatches = append(hr.Mismatches, fmt.Sprintf("trap %d (%s): %s", i, tr.Cause, msg))
			}
		}
		f = res.Frame
	}

	hr.Final = hart.Resumed.String()
	if final, halted := h.Halted(); halted {
		hr.Final = final.Disposition.String()
	}
	hr.Output = stdout.String()
	hr.Diagnostics = diag.String()
	hr.Maps = m.String()
	hr.ResidentPages = m.ResidentPages()
	if spec.Output != nil && *spec.Output != hr.Output {
		hr.Mismatches = append(hr.Mismatches, fmt.Sprintf("output = %q, want %q", hr.Output, *spec.Output))
	}
	if spec.ResidentPages != nil && *spec.ResidentPages != hr.ResidentPages {
		hr.Mismatches = append(hr.Mismatches, fmt.Sprintf("resident pages = %d, want %d", hr.ResidentPages, *spec.ResidentPages))
	}
	return hr, nil
}

// applyTrap loads the trap described by t into f.
func applyTrap(f *arch.TrapFrame, t *Trap) {
	f.Cause = riscv.Cause(t.Cause)
	f.BadVAddr = uint64(t.Stval)
	f.Insn = uint64(t.Insn)
	if t.PC != nil {
		f.EPC = uint64(*t.PC)
	}
	if t.Privileged {
		f.Status |= riscv.SstatusSPP
	} else {
		f.Status &^= riscv.SstatusSPP
	}
	for name, v := range t.Regs {
		r, _ := riscv.RegisterByName(name)
		f.SetReg(r, uint64(v))
	}
}

// check compares res against e.
func check(e *Expect, res *hart.Result) []string {
	var ms []string
	if e.Disposition != "" && e.Disposition != res.Disposition.String() {
		ms = append(ms, fmt.Sprintf("disposition = %s, want %s", res.Disposition, e.Disposition))
	}
	if e.Message != nil && *e.Message != res.Message {
		ms = append(ms, fmt.Sprintf("message = %q, want %q", res.Message, *e.Message))
	}
	if e.ExitCode != nil && *e.ExitCode != res.ExitCode {
		ms = append(ms, fmt.Sprintf("exit code = %d, want %d", res.ExitCode, *e.ExitCode))
	}
	if e.PC != nil && uint64(*e.PC) != res.Frame.EPC {
		ms = append(ms, fmt.Sprintf("pc = %#x, want %#x", res.Frame.EPC, uint64(*e.PC)))
	}
	names := make([]string, 0, len(e.Regs))
	for name := range e.Regs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r, _ := riscv.RegisterByName(name)
		if got, want := res.Frame.GPR[r], uint64(e.Regs[name]); got != want {
			ms = append(ms, fmt.Sprintf("%s = %#x, want %#x", name, got, want))
		}
	}
	return ms
}
