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

package arch

import (
	"fmt"
	"io"
	"strings"

	"pktrap.dev/pktrap/pkg/abi/riscv"
)

// registersPerLine is the number of registers printed on each dump line.
const registersPerLine = 4

// DumpRegisters writes the full register state of f to w, four registers per
// line followed by the trap CSRs.
func (f *TrapFrame) DumpRegisters(w io.Writer) error {
	var b strings.Builder
	for i := 0; i < riscv.NumRegisters; i++ {
		fmt.Fprintf(&b, "%-4s %016x", riscv.RegisterNames[i], f.GPR[i])
		if (i+1)%registersPerLine == 0 {
			b.WriteByte('\n')
		} else {
			b.WriteByte(' ')
		}
	}
	fmt.Fprintf(&b, "pc   %016x va   %016x insn %08x sr   %016x\n", f.EPC, f.BadVAddr, f.Insn, f.Status)
	fmt.Fprintf(&b, "cause %#x (%v)\n", uint64(f.Cause), f.Cause)
	_, err := io.WriteString(w, b.String())
	return err
}

// String returns the register dump of f.
func (f *TrapFrame) String() string {
	var b strings.Builder
	f.DumpRegisters(&b)
	return b.String()
}
