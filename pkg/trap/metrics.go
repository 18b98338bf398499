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
	"pktrap.dev/pktrap/pkg/abi/riscv"
	"pktrap.dev/pktrap/pkg/metric"
)

const unknownCause = "unknown"

var (
	dispatchedMetric = metric.MustCreateNewUint64Metric("/trap/dispatched", true,
		"Number of traps dispatched, by cause.",
		metric.NewField("cause", causeLabels()))

	pageFaultMetric = metric.MustCreateNewUint64Metric("/trap/page_faults", true,
		"Number of page faults handled, by access and outcome.",
		metric.NewField("access", []string{"fetch", "load", "store"}),
		metric.NewField("result", []string{"resolved", "segfault"}))

	syscallMetric = metric.MustCreateNewUint64Metric("/trap/syscalls", true,
		"Number of system calls serviced.")

	terminatedMetric = metric.MustCreateNewUint64Metric("/trap/terminated", true,
		"Number of contexts terminated, by trap class.",
		metric.NewField("class", []string{ClassFatal.String(), ClassConditional.String()}))
)

func causeLabels() []string {
	var labels []string
	for _, c := range riscv.ExceptionCauses() {
		labels = append(labels, c.String())
	}
	for _, i := range riscv.Interrupts() {
		labels = append(labels, i.Cause().String())
	}
	return append(labels, unknownCause)
}

// causeLabel returns the metric label for c.
func causeLabel(c riscv.Cause) string {
	if c.IsInterrupt() {
		for _, i := range riscv.Interrupts() {
			if i == c.Interrupt() {
				return c.String()
			}
		}
		return unknownCause
	}
	for _, e := range riscv.ExceptionCauses() {
		if e == c {
			return c.String()
		}
	}
	return unknownCause
}
