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

// Package replay runs recorded trap sequences against simulated harts and
// checks the outcome of every trap.
package replay

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
	"pktrap.dev/pktrap/pkg/abi/riscv"
	"pktrap.dev/pktrap/pkg/hart"
	"pktrap.dev/pktrap/pkg/hostarch"
)

// Scenario is a set of harts and the traps each of them takes.
type Scenario struct {
	Name  string     `yaml:"name"`
	Harts []HartSpec `yaml:"harts"`
}

// HartSpec describes one hart.
type HartSpec struct {
	ID  int   `yaml:"id"`
	TID int32 `yaml:"tid"`

	// Brk, if set, is the start of the heap.
	Brk *Word `yaml:"brk"`

	Mappings []Mapping `yaml:"mappings"`
	Traps    []Trap    `yaml:"traps"`

	// Output, if set, is the expected standard output of the hart.
	Output *string `yaml:"output"`

	// ResidentPages, if set, is the expected number of populated pages
	// after the last trap.
	ResidentPages *int `yaml:"resident_pages"`
}

// Mapping is a fixed mapping established before the first trap.
type Mapping struct {
	Start  Word   `yaml:"start"`
	Length Word   `yaml:"length"`
	Perms  Perms  `yaml:"perms"`
	Name   string `yaml:"name"`

	// Data initializes the start of the mapping.
	Data string `yaml:"data"`
}

// Trap is one trap taken by a hart.
//
// The frame of a trap starts from the frame the previous trap resumed with,
// so a sequence of syscalls sees its own register updates. Cause and stval
// are always taken from the Trap.
type Trap struct {
	Cause Cause `yaml:"cause"`

	// PC overrides the saved pc.
	PC *Word `yaml:"pc"`

	// Stval is the trap value.
	Stval Word `yaml:"stval"`

	// Privileged sets sstatus.SPP.
	Privileged bool `yaml:"privileged"`

	// Insn is the trapping instruction, if known.
	Insn Word `yaml:"insn"`

	// Regs overrides integer registers by ABI name.
	Regs map[string]Word `yaml:"regs"`

	// Raise sets sip bits before the trap is taken.
	Raise Word `yaml:"raise"`

	Expect *Expect `yaml:"expect"`
}

// Expect is the expected outcome of a trap. Unset fields are not checked.
type Expect struct {
	Disposition string          `yaml:"disposition"`
	Message     *string         `yaml:"message"`
	ExitCode    *int            `yaml:"exit_code"`
	PC          *Word           `yaml:"pc"`
	Regs        map[string]Word `yaml:"regs"`
}

// Word is a register-sized value. In YAML it may be written as a signed or
// unsigned integer in any base accepted by strconv.
type Word uint64

// UnmarshalYAML implements yaml.Unmarshaler.
func (w *Word) UnmarshalYAML(value *yaml.Node) error {
	if v, err := strconv.ParseInt(value.Value, 0, 64); err == nil {
		*w = Word(v)
		return nil
	}
	v, err := strconv.ParseUint(value.Value, 0, 64)
	if err != nil {
		return fmt.Errorf("line %d: invalid value %q", value.Line, value.Value)
	}
	*w = Word(v)
	return nil
}

// Cause is a trap cause, written as a name (e.g. "store_page_fault") or as
// a raw scause value.
type Cause riscv.Cause

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Cause) UnmarshalYAML(value *yaml.Node) error {
	rc, err := riscv.ParseCause(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*c = Cause(rc)
	return nil
}

// Perms is an access type written as "rwx", "r-x", etc.
type Perms hostarch.AccessType

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *Perms) UnmarshalYAML(value *yaml.Node) error {
	at, ok := hostarch.ParseAccessType(value.Value)
	if !ok {
		return fmt.Errorf("line %d: invalid permissions %q", value.Line, value.Value)
	}
	*p = Perms(at)
	return nil
}

// Load decodes a scenario. Unknown fields are rejected.
func Load(r io.Reader) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("unable to decode scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFile decodes the scenario in the named file.
func LoadFile(filename string) (*Scenario, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("unable to open scenario: %w", err)
	}
	defer f.Close()
	s, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if s.Name == "" {
		s.Name = filename
	}
	return s, nil
}

// Validate checks the scenario for errors that can be detected before it
// runs.
func (s *Scenario) Validate() error {
	if len(s.Harts) == 0 {
		return fmt.Errorf("scenario has no harts")
	}
	ids := make(map[int]bool)
	for i := range s.Harts {
		hs := &s.Harts[i]
		if ids[hs.ID] {
			return fmt.Errorf("hart %d defined twice", hs.ID)
		}
		ids[hs.ID] = true
		for j, t := range hs.Traps {
			if err := checkRegs(t.Regs); err != nil {
				return fmt.Errorf("hart %d trap %d: %w", hs.ID, j, err)
			}
			if t.Expect == nil {
				continue
			}
			if t.Expect.Disposition != "" {
				if _, err := hart.ParseDisposition(t.Expect.Disposition); err != nil {
					return fmt.Errorf("hart %d trap %d: %w", hs.ID, j, err)
				}
			}
			if err := checkRegs(t.Expect.Regs); err != nil {
				return fmt.Errorf("hart %d trap %d: expect: %w", hs.ID, j, err)
			}
		}
	}
	return nil
}

func checkRegs(regs map[string]Word) error {
	for name := range regs {
		if _, ok := riscv.RegisterByName(name); !ok {
			return fmt.Errorf("unknown register %q", name)
		}
	}
	return nil
}
