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
	"bufio"
	"fmt"
	"io"

	"pktrap.dev/pktrap/pkg/arch"
	"pktrap.dev/pktrap/pkg/log"
)

// DumpReporter writes the register dump and message to Out, then panics
// with a *Termination.
type DumpReporter struct {
	Out io.Writer
}

// Report implements Reporter.Report.
func (r *DumpReporter) Report(f *arch.TrapFrame, msg string) {
	w := bufio.NewWriter(r.Out)
	if err := f.DumpRegisters(w); err == nil {
		fmt.Fprintln(w, msg)
	}
	if err := w.Flush(); err != nil {
		log.Warningf("Failed to write trap diagnostic: %v", err)
	}
	panic(&Termination{Message: msg, Frame: *f})
}
