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

package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newFlags(t *testing.T) *flag.FlagSet {
	t.Helper()
	testFlags := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(testFlags)
	return testFlags
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runtrap.toml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c, err := NewFromFlags(newFlags(t))
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{LogFormat: "text", Output: OutputTable}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("default config mismatch (-want +got):\n%s", diff)
	}

	// All defaults doesn't require setting flags.
	if flags := c.ToFlags(); len(flags) > 0 {
		t.Errorf("default flags not set correctly for: %s", flags)
	}
}

func TestFromFlags(t *testing.T) {
	testFlags := newFlags(t)
	for name, value := range map[string]string{
		"debug":   "true",
		"strace":  "true",
		"metrics": "-",
		"output":  "json",
	} {
		if err := testFlags.Lookup(name).Value.Set(value); err != nil {
			t.Errorf("Flag set: %v", err)
		}
	}

	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{
		Debug:     true,
		LogFormat: "text",
		Strace:    true,
		Metrics:   "-",
		Output:    OutputJSON,
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestToFlagsFromFlags(t *testing.T) {
	testFlags := newFlags(t)
	testFlags.Set("debug", "true")
	testFlags.Set("alsologtostderr", "false") // Matches default value.
	testFlags.Set("debug-log", "/tmp/runtrap/")
	testFlags.Set("output", "csv")
	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		"--debug=true",
		"--debug-log=/tmp/runtrap/",
		"--output=csv",
	}
	if diff := cmp.Diff(want, c.ToFlags()); diff != "" {
		t.Errorf("ToFlags() mismatch (-want +got):\n%s", diff)
	}
}

func TestInvalidFlags(t *testing.T) {
	testFlags := newFlags(t)
	if err := testFlags.Lookup("output").Value.Set("yaml"); err == nil || !strings.Contains(err.Error(), "invalid output format") {
		t.Errorf("flag.Value.Set(invalid) wrong error reported: %v", err)
	}
}

func TestValidationFail(t *testing.T) {
	testFlags := newFlags(t)
	testFlags.Set("log-format", "json-k8s")
	if _, err := NewFromFlags(testFlags); err == nil || !strings.Contains(err.Error(), "invalid log format") {
		t.Errorf("NewFromFlags() wrong error reported: %v", err)
	}
}

func TestConfigFile(t *testing.T) {
	path := writeConfig(t, `
debug = true
strace = true
output = "json"
metrics = "/tmp/metrics.txt"
`)
	testFlags := newFlags(t)
	// Explicit flags take precedence over the file.
	if err := testFlags.Parse([]string{"--config", path, "--output=csv"}); err != nil {
		t.Fatal(err)
	}
	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{
		Debug:     true,
		LogFormat: "text",
		Strace:    true,
		Metrics:   "/tmp/metrics.txt",
		Output:    OutputCSV,
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigFileErrors(t *testing.T) {
	for _, tc := range []struct {
		name     string
		contents string
		error    string
	}{
		{
			name:     "unknown key",
			contents: `platform = "kvm"`,
			error:    `unknown key "platform"`,
		},
		{
			name:     "nested config",
			contents: `config = "other.toml"`,
			error:    `unknown key "config"`,
		},
		{
			name:     "bad value",
			contents: `output = "yaml"`,
			error:    "invalid output format",
		},
		{
			name:     "syntax",
			contents: `debug = `,
			error:    "error reading config file",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			testFlags := newFlags(t)
			testFlags.Set(ConfigFlag, writeConfig(t, tc.contents))
			if _, err := NewFromFlags(testFlags); err == nil || !strings.Contains(err.Error(), tc.error) {
				t.Errorf("NewFromFlags() wrong error reported: %v, want %q", err, tc.error)
			}
		})
	}
}
