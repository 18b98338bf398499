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

package cmd

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pktrap.dev/pktrap/pkg/abi/riscv"
	"pktrap.dev/pktrap/pkg/kernel"
	"pktrap.dev/pktrap/pkg/replay"
	"pktrap.dev/pktrap/pkg/trap"
	"pktrap.dev/pktrap/runtrap/config"
)

func TestCompatibilityInfo(t *testing.T) {
	info, err := getCompatibilityInfo(kernel.SyscallTables(), "linux/riscv64")
	if err != nil {
		t.Fatal(err)
	}
	ti, ok := info["linux/riscv64"]
	if !ok {
		t.Fatalf("linux/riscv64 missing from %v", info)
	}
	if ti.Machine != "riscv64" {
		t.Errorf("Machine = %q, want riscv64", ti.Machine)
	}
	if got := ti.Syscalls[uintptr(riscv.SysWrite)].Name; got != "write" {
		t.Errorf("syscall %d = %q, want write", riscv.SysWrite, got)
	}

	if _, err := getCompatibilityInfo(kernel.SyscallTables(), "linux/amd64"); err == nil {
		t.Errorf("getCompatibilityInfo(linux/amd64) succeeded, want error")
	}
}

func TestSyscallsOutput(t *testing.T) {
	info, err := getCompatibilityInfo(kernel.SyscallTables(), tableAll)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		if err := outputTable(&buf, info); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		if !strings.HasPrefix(out, "linux/riscv64 (riscv64):") {
			t.Errorf("table output starts with %q", strings.SplitN(out, "\n", 2)[0])
		}
		// Rows are ordered by number: openat (56) comes before exit (93).
		if i, j := strings.Index(out, "openat"), strings.Index(out, "exit"); i < 0 || j < 0 || i > j {
			t.Errorf("table output not ordered by number:\n%s", out)
		}
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := outputJSON(&buf, info); err != nil {
			t.Fatal(err)
		}
		var got map[string]struct {
			Machine  string                `json:"machine"`
			Syscalls map[string]SyscallDoc `json:"syscalls"`
		}
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if got["linux/riscv64"].Syscalls["93"].Name != "exit" {
			t.Errorf("json output missing exit: %s", buf.String())
		}
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		if err := outputCSV(&buf, info); err != nil {
			t.Fatal(err)
		}
		rows, err := csv.NewReader(&buf).ReadAll()
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"Table", "Machine", "Num", "Name", "Support", "Note"}, rows[0]); diff != "" {
			t.Errorf("csv header mismatch (-want +got):\n%s", diff)
		}
		if got, want := len(rows)-1, len(kernel.SyscallTables()[0].Table); got != want {
			t.Errorf("csv rows = %d, want %d", got, want)
		}
	})
}

func TestCauseDocs(t *testing.T) {
	docs := causeDocs(trap.DefaultInterruptTable)
	if got, want := len(docs), len(riscv.ExceptionCauses())+1; got != want {
		t.Fatalf("len(causeDocs) = %d, want %d", got, want)
	}

	byName := make(map[string]CauseDoc)
	for _, d := range docs {
		byName[d.Name] = d
	}
	for _, want := range []CauseDoc{
		{Code: 2, Name: "illegal_instruction", Class: "fatal", Handler: "illegal instruction"},
		{Code: 8, Name: "user_ecall", Class: "service", Handler: "syscall"},
		{Code: 9, Name: "supervisor_ecall", Class: "unhandled"},
		{Code: 15, Name: "store_page_fault", Class: "conditional", Handler: "store page fault"},
		{Code: 0x800000000000000c, Name: "accelerator_interrupt", Interrupt: true, Class: "fatal", Handler: "accelerator authentication failure"},
	} {
		if diff := cmp.Diff(want, byName[want.Name]); diff != "" {
			t.Errorf("cause %s mismatch (-want +got):\n%s", want.Name, diff)
		}
	}

	var buf bytes.Buffer
	if err := causesTable(&buf, docs); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "0x800000000000000c") {
		t.Errorf("table output missing accelerator interrupt:\n%s", buf.String())
	}
}

func TestWriteReport(t *testing.T) {
	s, err := replay.LoadFile("../../pkg/replay/testdata/hello.yaml")
	if err != nil {
		t.Fatal(err)
	}
	report, err := replay.Run(context.Background(), s, replay.Options{})
	if err != nil {
		t.Fatal(err)
	}

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		if err := writeReport(&buf, report, config.OutputTable, true); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		for _, want := range []string{
			"scenario hello:",
			"hart 0 (exited):",
			"exit 0",
			"\thello, world\n",
			"User store segfault @ 0x2000",
			"[RoCC Interrupt] Authentication Failure",
			"\nOK\n",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("table output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := writeReport(&buf, report, config.OutputJSON, false); err != nil {
			t.Fatal(err)
		}
		var got replay.Report
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(*report, got); diff != "" {
			t.Errorf("json round trip mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		if err := writeReport(&buf, report, config.OutputCSV, false); err != nil {
			t.Fatal(err)
		}
		rows, err := csv.NewReader(&buf).ReadAll()
		if err != nil {
			t.Fatal(err)
		}
		// Header plus 3 + 1 + 2 traps.
		if len(rows) != 7 {
			t.Errorf("csv rows = %d, want 7", len(rows))
		}
	})
}

func TestIndent(t *testing.T) {
	for _, tc := range []struct {
		in, want string
	}{
		{"a\nb\n", "\ta\n\tb\n"},
		{"a", "\ta\n"},
	} {
		if got := indent(tc.in); got != tc.want {
			t.Errorf("indent(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
