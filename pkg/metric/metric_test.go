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

package metric

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/common/expfmt"
)

// reset clears all global state in the metric package.
func reset() {
	allMetrics = makeMetricSet()
}

func TestNewUint64MetricErrors(t *testing.T) {
	defer reset()

	if _, err := NewUint64Metric("/foo", true, "Foo!"); err != nil {
		t.Fatalf("NewUint64Metric got err %v want nil", err)
	}
	if _, err := NewUint64Metric("/foo", true, "Foo!"); err != ErrNameInUse {
		t.Errorf("duplicate NewUint64Metric got err %v want %v", err, ErrNameInUse)
	}
	if _, err := NewUint64Metric("no-slash", true, ""); err != ErrInvalidName {
		t.Errorf("NewUint64Metric(no-slash) got err %v want %v", err, ErrInvalidName)
	}
	if _, err := NewUint64Metric("/empty", true, "", NewField("f", nil)); err != ErrFieldHasNoAllowedValues {
		t.Errorf("NewUint64Metric with empty field got err %v want %v", err, ErrFieldHasNoAllowedValues)
	}
	if _, err := NewUint64Metric("/quote", true, "", NewField("f", []string{`a"b`})); err != ErrFieldValueContainsIllegalChar {
		t.Errorf("NewUint64Metric with quoted value got err %v want %v", err, ErrFieldValueContainsIllegalChar)
	}
}

func TestFieldMapper(t *testing.T) {
	m, err := newFieldMapper(
		NewField("access", []string{"fetch", "load", "store"}),
		NewField("result", []string{"resolved", "segfault"}),
	)
	if err != nil {
		t.Fatalf("newFieldMapper: %v", err)
	}
	seen := make(map[int]bool)
	for _, a := range []string{"fetch", "load", "store"} {
		for _, r := range []string{"resolved", "segfault"} {
			key := m.lookup(a, r)
			if seen[key] {
				t.Errorf("lookup(%s, %s) = %d reused", a, r, key)
			}
			seen[key] = true
			if diff := cmp.Diff([]string{a, r}, m.keyToMultiField(key)); diff != "" {
				t.Errorf("keyToMultiField(%d) mismatch (-want +got):\n%s", key, diff)
			}
		}
	}
}

func TestIncrement(t *testing.T) {
	defer reset()

	m := MustCreateNewUint64Metric("/faults", true, "Faults.", NewField("access", []string{"load", "store"}))
	m.Increment("store")
	m.IncrementBy(4, "store")
	m.Increment("load")
	if got := m.Value("store"); got != 5 {
		t.Errorf("Value(store) = %d, want 5", got)
	}
	if got := m.Value("load"); got != 1 {
		t.Errorf("Value(load) = %d, want 1", got)
	}
}

func TestWritePrometheus(t *testing.T) {
	defer reset()

	faults := MustCreateNewUint64Metric("/trap/page_faults", true, "Page faults\nby access.",
		NewField("access", []string{"fetch", "load", "store"}))
	inflight := MustCreateNewUint64Metric("/trap/inflight", false, "")
	faults.IncrementBy(3, "store")
	inflight.IncrementBy(2)

	var buf bytes.Buffer
	if err := WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	families, err := (&expfmt.TextParser{}).TextToMetricFamilies(&buf)
	if err != nil {
		t.Fatalf("exported text does not parse: %v\n%s", err, buf.String())
	}

	fam, ok := families["pktrap_trap_page_faults"]
	if !ok {
		t.Fatalf("pktrap_trap_page_faults missing from %v", families)
	}
	if got := fam.GetType().String(); got != "COUNTER" {
		t.Errorf("type = %s, want COUNTER", got)
	}
	if got, want := fam.GetHelp(), "Page faults\nby access."; got != want {
		t.Errorf("help = %q, want %q", got, want)
	}
	got := make(map[string]float64)
	for _, m := range fam.GetMetric() {
		got[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
	}
	want := map[string]float64{"fetch": 0, "load": 0, "store": 3}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("page fault samples mismatch (-want +got):\n%s", diff)
	}

	gauge, ok := families["pktrap_trap_inflight"]
	if !ok {
		t.Fatalf("pktrap_trap_inflight missing")
	}
	if got := gauge.GetType().String(); got != "GAUGE" {
		t.Errorf("type = %s, want GAUGE", got)
	}
	if got := gauge.GetMetric()[0].GetGauge().GetValue(); got != 2 {
		t.Errorf("gauge value = %v, want 2", got)
	}
}
