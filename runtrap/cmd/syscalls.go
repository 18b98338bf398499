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
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/google/subcommands"
	"pktrap.dev/pktrap/pkg/kernel"
	"pktrap.dev/pktrap/runtrap/cmd/util"
	"pktrap.dev/pktrap/runtrap/config"

	// Registers the syscall tables.
	_ "pktrap.dev/pktrap/pkg/syscalls/linux"
)

// Syscalls implements subcommands.Command for the "syscalls" command.
type Syscalls struct {
	table string
}

// CompatibilityInfo maps syscall table names to their documentation.
type CompatibilityInfo map[string]TableInfo

// TableInfo is compatibility doc for one syscall table.
type TableInfo struct {
	// Machine is the machine name reported by uname(2).
	Machine string `json:"machine"`

	// Syscalls maps syscall number for the table to the doc.
	Syscalls map[uintptr]SyscallDoc `json:"syscalls"`
}

// SyscallDoc represents a single item of syscall documentation.
type SyscallDoc struct {
	Name string `json:"name"`
	num  uintptr

	Support string `json:"support"`
	Note    string `json:"note,omitempty"`
}

type outputFunc func(io.Writer, CompatibilityInfo) error

// tableAll selects every registered syscall table.
const tableAll = "all"

// A map of output formats to output functions.
var outputMap = map[config.OutputFormat]outputFunc{
	config.OutputTable: outputTable,
	config.OutputJSON:  outputJSON,
	config.OutputCSV:   outputCSV,
}

// Name implements subcommands.Command.Name.
func (*Syscalls) Name() string {
	return "syscalls"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Syscalls) Synopsis() string {
	return "Print compatibility information for syscalls."
}

// Usage implements subcommands.Command.Usage.
func (*Syscalls) Usage() string {
	return `syscalls [options] - Print compatibility information for syscalls.

The report format is selected with the top-level --output flag.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Syscalls) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.table, "table", tableAll, "The syscall table (e.g. linux/riscv64).")
}

// Execute implements subcommands.Command.Execute.
func (s *Syscalls) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	conf := args[0].(*config.Config)
	out, ok := outputMap[conf.Output]
	if !ok {
		util.Fatalf("Unsupported output format %d", int(conf.Output))
	}

	info, err := getCompatibilityInfo(kernel.SyscallTables(), s.table)
	if err != nil {
		util.Fatalf("%v", err)
	}

	if err := out(os.Stdout, info); err != nil {
		util.Fatalf("Error writing output: %v", err)
	}

	return subcommands.ExitSuccess
}

// getCompatibilityInfo returns compatibility info for the named table.
// Supports the special name 'all' that selects every table.
func getCompatibilityInfo(tables []*kernel.SyscallTable, name string) (CompatibilityInfo, error) {
	info := make(CompatibilityInfo)
	for _, t := range tables {
		if name != tableAll && name != t.Name {
			continue
		}
		ti := TableInfo{
			Machine:  t.Machine,
			Syscalls: make(map[uintptr]SyscallDoc),
		}
		for num, sc := range t.Table {
			ti.Syscalls[num] = SyscallDoc{
				Name:    sc.Name,
				num:     num,
				Support: sc.SupportLevel.String(),
				Note:    sc.Note,
			}
		}
		info[t.Name] = ti
	}
	if len(info) == 0 {
		return nil, fmt.Errorf("syscall table %q not found", name)
	}
	return info, nil
}

// sortedNames returns the table names of info in order.
func sortedNames(info CompatibilityInfo) []string {
	names := make([]string, 0, len(info))
	for name := range info {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// sortedCalls returns the syscalls of ti ordered by number.
func sortedCalls(ti TableInfo) []SyscallDoc {
	calls := make([]SyscallDoc, 0, len(ti.Syscalls))
	for _, sc := range ti.Syscalls {
		calls = append(calls, sc)
	}
	sort.Slice(calls, func(i, j int) bool {
		return calls[i].num < calls[j].num
	})
	return calls
}

// outputTable outputs the syscall info in tabular format.
func outputTable(w io.Writer, info CompatibilityInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	for _, name := range sortedNames(info) {
		ti := info[name]
		// Print the table name.
		fmt.Fprintf(w, "%s (%s):\n\n", name, ti.Machine)

		// Write the header
		_, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			"NUM",
			"NAME",
			"SUPPORT",
			"NOTE",
		)
		if err != nil {
			return err
		}

		// Write each syscall entry
		for _, sc := range sortedCalls(ti) {
			_, err = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
				strconv.FormatInt(int64(sc.num), 10),
				sc.Name,
				sc.Support,
				sc.Note,
			)
			if err != nil {
				return err
			}
		}

		if err := tw.Flush(); err != nil {
			return err
		}
	}

	return nil
}

// outputJSON outputs the syscall info in JSON format.
func outputJSON(w io.Writer, info CompatibilityInfo) error {
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(info)
}

// outputCSV outputs the syscall info in CSV format.
func outputCSV(w io.Writer, info CompatibilityInfo) error {
	csvWriter := csv.NewWriter(w)

	// Write the header
	err := csvWriter.Write([]string{
		"Table",
		"Machine",
		"Num",
		"Name",
		"Support",
		"Note",
	})
	if err != nil {
		return err
	}

	for _, name := range sortedNames(info) {
		ti := info[name]
		// Write each syscall entry
		for _, sc := range sortedCalls(ti) {
			err = csvWriter.Write([]string{
				name,
				ti.Machine,
				strconv.FormatInt(int64(sc.num), 10),
				sc.Name,
				sc.Support,
				sc.Note,
			})
			if err != nil {
				return err
			}
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}
