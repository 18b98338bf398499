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

// Package metric provides primitives for collecting metrics.
package metric

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	// ErrNameInUse indicates that another metric is already defined for
	// the given name.
	ErrNameInUse = errors.New("metric name already in use")

	// ErrInvalidName indicates that a metric name does not have the
	// "/component/name" form.
	ErrInvalidName = errors.New("metric name must start with '/' and contain only [a-z0-9_/]")

	// ErrFieldValueContainsIllegalChar indicates that the value of a metric
	// field had an invalid character in it.
	ErrFieldValueContainsIllegalChar = errors.New("metric field value contains illegal character")

	// ErrFieldHasNoAllowedValues indicates that the field needs to define some
	// allowed values to be a valid and useful field.
	ErrFieldHasNoAllowedValues = errors.New("metric field does not define any allowed values")

	// ErrTooManyFieldCombinations indicates that the number of unique
	// combinations of fields is too large to support.
	ErrTooManyFieldCombinations = errors.New("metric has too many combinations of allowed field values")
)

// namespace prefixes every exported metric name.
const namespace = "pktrap"

// Field contains the field name and allowed values for the metric which is
// used in registration of the metric.
type Field struct {
	// name is the metric field name.
	name string

	// allowedValues is the list of allowed values for the field.
	allowedValues []string
}

// NewField defines a new Field that can be used to break down a metric.
func NewField(name string, allowedValues []string) Field {
	return Field{
		name:          name,
		allowedValues: allowedValues,
	}
}

// fieldMapper provides multi-dimensional fields to a single unique integer key.
type fieldMapper struct {
	// fields is a list of Field objects, which importantly include individual
	// Field names which are used to perform the keyToMultiField function; and
	// allowedValues for each field type which are used to perform the lookup
	// function.
	fields []Field

	// numFieldCombinations is the number of unique keys for all possible field
	// combinations.
	numFieldCombinations int
}

// newFieldMapper returns a new fieldMapper for the given set of fields.
func newFieldMapper(fields ...Field) (fieldMapper, error) {
	numFieldCombinations := 1
	for _, f := range fields {
		// Disallow fields with no possible values. We could also ignore them
		// instead, but passing in a no-allowed-values field is probably a mistake.
		if len(f.allowedValues) == 0 {
			return fieldMapper{nil, 0}, ErrFieldHasNoAllowedValues
		}
		for _, v := range f.allowedValues {
			if strings.ContainsAny(v, "\"\\\n") {
				return fieldMapper{nil, 0}, ErrFieldValueContainsIllegalChar
			}
		}
		numFieldCombinations *= len(f.allowedValues)

		// Sanity check, could be useful in case someone dynamically generates too
		// many fields accidentally.
		if numFieldCombinations > math.MaxUint16 {
			return fieldMapper{nil, 0}, ErrTooManyFieldCombinations
		}
	}

	return fieldMapper{
		fields:               fields,
		numFieldCombinations: numFieldCombinations,
	}, nil
}

// lookup looks up a key within the fieldMapper.
//
// This *must* be called with the correct number of fields, or it will panic.
func (m fieldMapper) lookup(fields ...string) int {
	if len(fields) != len(m.fields) {
		panic("invalid field lookup depth")
	}
	idx := 0
	remainingCombinationBucket := m.numFieldCombinations

IdxLookup:
	for i, val := range fields {
		for valIdx, allowedVal := range m.fields[i].allowedValues {
			if val == allowedVal {
				remainingCombinationBucket /= len(m.fields[i].allowedValues)
				idx += remainingCombinationBucket * valIdx
				continue IdxLookup
			}
		}

		panic(fmt.Sprintf("disallowed value %q for field %q", val, m.fields[i].name))
	}

	return idx
}

// keyToMultiField is the reverse of lookup: given a key, it returns the
// field values that map to it.
func (m fieldMapper) keyToMultiField(key int) []string {
	values := make([]string, len(m.fields))
	remainingCombinationBucket := m.numFieldCombinations
	for i, f := range m.fields {
		remainingCombinationBucket /= len(f.allowedValues)
		values[i] = f.allowedValues[key/remainingCombinationBucket]
		key %= remainingCombinationBucket
	}
	return values
}

// Uint64Metric encapsulates a uint64 that represents some kind of metric to be
// monitored.
type Uint64Metric struct {
	name        string
	description string

	// cumulative is true for counters and false for gauges.
	cumulative bool

	// fields is the map of field-value combination index keys to Uint64 counters.
	fields []atomic.Uint64

	// fieldMapper is used to generate index keys for the fields array (above)
	// based on field value combinations, and vice-versa.
	fieldMapper fieldMapper
}

// metricSet holds all registered metrics.
type metricSet struct {
	mu            sync.Mutex
	uint64Metrics map[string]*Uint64Metric
}

func makeMetricSet() *metricSet {
	return &metricSet{uint64Metrics: make(map[string]*Uint64Metric)}
}

// allMetrics are the registered metrics.
var allMetrics = makeMetricSet()

func validName(name string) bool {
	if !strings.HasPrefix(name, "/") || len(name) < 2 {
		return false
	}
	for _, c := range name {
		if !(c == '/' || c == '_' || ('a' <= c && c <= 'z') || ('0' <= c && c <= '9')) {
			return false
		}
	}
	return true
}

// NewUint64Metric creates and registers a new cumulative metric with the
// given name.
//
// Metrics must be statically defined (i.e., at init).
func NewUint64Metric(name string, cumulative bool, description string, fields ...Field) (*Uint64Metric, error) {
	if !validName(name) {
		return nil, ErrInvalidName
	}
	f, err := newFieldMapper(fields...)
	if err != nil {
		return nil, err
	}

	allMetrics.mu.Lock()
	defer allMetrics.mu.Unlock()
	if _, ok := allMetrics.uint64Metrics[name]; ok {
		return nil, ErrNameInUse
	}
	m := &Uint64Metric{
		name:        name,
		description: description,
		cumulative:  cumulative,
		fields:      make([]atomic.Uint64, f.numFieldCombinations),
		fieldMapper: f,
	}
	allMetrics.uint64Metrics[name] = m
	return m, nil
}

// MustCreateNewUint64Metric calls NewUint64Metric and panics if it returns
// an error.
func MustCreateNewUint64Metric(name string, cumulative bool, description string, fields ...Field) *Uint64Metric {
	m, err := NewUint64Metric(name, cumulative, description, fields...)
	if err != nil {
		panic(fmt.Sprintf("Unable to create metric %q: %s", name, err))
	}
	return m
}

// Value returns the current value of the metric for the given set of fields.
// This must be called with the correct number of field values or it will panic.
func (m *Uint64Metric) Value(fieldValues ...string) uint64 {
	key := m.fieldMapper.lookup(fieldValues...)
	return m.fields[key].Load()
}

// Increment increments the metric field by 1.
// This must be called with the correct number of field values or it will panic.
func (m *Uint64Metric) Increment(fieldValues ...string) {
	m.IncrementBy(1, fieldValues...)
}

// IncrementBy increments the metric by v.
// This must be called with the correct number of field values or it will panic.
func (m *Uint64Metric) IncrementBy(v uint64, fieldValues ...string) {
	key := m.fieldMapper.lookup(fieldValues...)
	m.fields[key].Add(v)
}

// exportName returns the Prometheus name of a metric: the namespace followed
// by the metric path with slashes turned into underscores.
func exportName(name string) string {
	return namespace + strings.ReplaceAll(name, "/", "_")
}

// escapeHelp escapes a metric description. Only backslashes and line breaks
// need escaping.
var escapeHelp = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

// WritePrometheus writes all registered metrics to w in the Prometheus text
// exposition format. Metrics are written in name order, and every combination
// of field values is written, including those that are zero.
func WritePrometheus(w io.Writer) error {
	allMetrics.mu.Lock()
	names := make([]string, 0, len(allMetrics.uint64Metrics))
	for name := range allMetrics.uint64Metrics {
		names = append(names, name)
	}
	metrics := make([]*Uint64Metric, 0, len(names))
	sort.Strings(names)
	for _, name := range names {
		metrics = append(metrics, allMetrics.uint64Metrics[name])
	}
	allMetrics.mu.Unlock()

	bw := bufio.NewWriter(w)
	for _, m := range metrics {
		name := exportName(m.name)
		typ := "gauge"
		if m.cumulative {
			typ = "counter"
		}
		if m.description != "" {
			fmt.Fprintf(bw, "# HELP %s %s\n", name, escapeHelp.Replace(m.description))
		}
		fmt.Fprintf(bw, "# TYPE %s %s\n", name, typ)
		for key := range m.fields {
			values := m.fieldMapper.keyToMultiField(key)
			if len(values) == 0 {
				fmt.Fprintf(bw, "%s %d\n", name, m.fields[key].Load())
				continue
			}
			labels := make([]string, len(values))
			for i, v := range values {
				labels[i] = fmt.Sprintf("%s=%q", m.fieldMapper.fields[i].name, v)
			}
			fmt.Fprintf(bw, "%s{%s} %d\n", name, strings.Join(labels, ","), m.fields[key].Load())
		}
	}
	return bw.Flush()
}
