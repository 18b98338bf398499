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

// Package config provides basic infrastructure to set configuration settings
// for runtrap. Each setting that can be changed from the command line must
// be added to Config, with a "flag" tag naming the flag, and registered in
// RegisterFlags().
package config

import (
	"fmt"

	"pktrap.dev/pktrap/pkg/log"
)

// Config holds configuration that is not part of a scenario file.
type Config struct {
	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug"`

	// LogFormat is the log format for every emitter: "text" or "json".
	LogFormat string `flag:"log-format"`

	// DebugLog is the path to log debug information to, if not empty. It
	// may contain %TIMESTAMP% and %COMMAND%.
	DebugLog string `flag:"debug-log"`

	// AlsoLogToStderr allows to send log messages to stderr.
	AlsoLogToStderr bool `flag:"alsologtostderr"`

	// Strace indicates that every system call serviced by a hart is
	// logged.
	Strace bool `flag:"strace"`

	// Metrics is the file the trap metrics are written to once a command
	// completes, in Prometheus text format. "-" means stdout.
	Metrics string `flag:"metrics"`

	// Output is the format of command reports.
	Output OutputFormat `flag:"output"`
}

func (c *Config) validate() error {
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q, must be 'text' or 'json'", c.LogFormat)
	}
	return nil
}

// Log logs important aspects of the configuration to the given log function.
func (c *Config) Log() {
	log.Infof("Config:")
	for _, f := range c.ToFlags() {
		log.Infof("\t%s", f)
	}
}

// OutputFormat selects how reports are rendered.
type OutputFormat int

const (
	// OutputTable renders reports as aligned text tables.
	OutputTable OutputFormat = iota

	// OutputJSON renders reports as indented JSON.
	OutputJSON

	// OutputCSV renders reports as CSV. Commands without a tabular report
	// fall back to OutputTable.
	OutputCSV
)

func outputFormatPtr(v OutputFormat) *OutputFormat {
	return &v
}

// Set implements flag.Value.
func (o *OutputFormat) Set(v string) error {
	switch v {
	case "table":
		*o = OutputTable
	case "json":
		*o = OutputJSON
	case "csv":
		*o = OutputCSV
	default:
		return fmt.Errorf("invalid output format %q", v)
	}
	return nil
}

// Get implements flag.Getter.
func (o *OutputFormat) Get() any {
	return *o
}

// String implements flag.Value.
func (o OutputFormat) String() string {
	switch o {
	case OutputTable:
		return "table"
	case OutputJSON:
		return "json"
	case OutputCSV:
		return "csv"
	}
	panic(fmt.Sprintf("Invalid output format %d", o))
}
