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
	"time"

	"pktrap.dev/pktrap/pkg/arch"
	"pktrap.dev/pktrap/pkg/hostarch"
	"pktrap.dev/pktrap/pkg/log"
)

// faultLog logs resolved page faults. Workloads that touch fresh memory
// fault once per page, so it is rate limited.
var faultLog = log.BasicRateLimitedLogger(time.Second)

func (d *Dispatcher) handleFetchPageFault(f *arch.TrapFrame) {
	d.handlePageFault(f, "fetch", hostarch.Execute)
}

func (d *Dispatcher) handleLoadPageFault(f *arch.TrapFrame) {
	d.handlePageFault(f, "load", hostarch.Read)
}

func (d *Dispatcher) handleStorePageFault(f *arch.TrapFrame) {
	d.handlePageFault(f, "store", hostarch.Write)
}

// handlePageFault asks the Mapper to resolve the fault at stval. On success
// the frame is left untouched so the faulting instruction is retried.
func (d *Dispatcher) handlePageFault(f *arch.TrapFrame, kind string, at hostarch.AccessType) {
	addr := f.FaultAddr()
	err := d.mapper.HandleFault(addr, at)
	if err == nil {
		pageFaultMetric.Increment(kind, "resolved")
		faultLog.Debugf("Resolved %s fault: addr=%v ip=%#x access=%v", kind, addr, f.EPC, at)
		return
	}
	pageFaultMetric.Increment(kind, "segfault")
	log.Debugf("Unresolved %s fault: addr=%v ip=%#x access=%v: %v", kind, addr, f.EPC, at, err)
	d.die(f, ClassConditional, segfaultMessage(f, kind))
}

// segfaultMessage formats the diagnostic for an unresolved page fault.
func segfaultMessage(f *arch.TrapFrame, kind string) string {
	who := "User"
	if f.Privileged() {
		who = "Kernel"
	}
	return fmt.Sprintf("%s %s segfault @ %#x", who, kind, f.BadVAddr)
}
