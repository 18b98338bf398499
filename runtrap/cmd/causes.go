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
	"text/tabwriter"

	"github.com/google/subcommands"
	"pktrap.dev/pktrap/pkg/abi/riscv"
	"pktrap.dev/pktrap/pkg/trap"
	"pktrap.dev/pktrap/runtrap/cmd/util"
	"pktrap.dev/pktrap/runtrap/config"
)

// Causes implements subcommands.Command for the "causes" command.
type Causes struct{}

// CauseDoc describes how one scause value is dispatched.
type CauseDoc struct {
	Code      uint64 `json:"code"`
	Name      string `json:"name"`
	Interrupt bool   `json:"interrupt"`
	Class     string `json:"class"`
	Handler   string `json:"handler,omitempty"`
}

// Name implements subcommands.Command.Name.
func (*Causes) Name() string {
	return "causes"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Causes) Synopsis() string {
	return "Print how each trap cause is handled."
}

// Usage implements subcommands.Command.Usage.
func (*Causes) Usage() string {
	return `causes - Print the class and handler of every exception cause and
registered interrupt.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Causes) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Causes) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	conf := args[0].(*config.Config)
	docs := causeDocs(trap.DefaultInterruptTable)

	var err error
	switch conf.Output {
	case config.OutputJSON:
		e := json.NewEncoder(os.Stdout)
		e.SetIndent("", "  ")
		err = e.Encode(docs)
	case config.OutputCSV:
		err = causesCSV(os.Stdout, docs)
	default:
		err = causesTable(os.Stdout, docs)
	}
	if err != nil {
		util.Fatalf("Error writing output: %v", err)
	}
	return subcommands.ExitSuccess
}

// causeDocs lists the exception causes followed by the interrupts
// registered in table.
func causeDocs(table *trap.InterruptTable) []CauseDoc {
	var docs []CauseDoc
	for _, c := range riscv.ExceptionCauses() {
		p := trap.DescribeException(c)
		docs = append(docs, CauseDoc{
			Code:    uint64(c),
			Name:    c.String(),
			Class:   p.Class.String(),
			Handler: p.Handler,
		})
	}
	for _, e := range table.Entries() {
		docs = append(docs, CauseDoc{
			Code:      uint64(e.Interrupt.Cause()),
			Name:      e.Interrupt.Cause().String(),
			Interrupt: true,
			Class:     e.Class.String(),
			Handler:   e.Name,
		})
	}
	return docs
}

func causesTable(w io.Writer, docs []CauseDoc) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "CODE\tNAME\tCLASS\tHANDLER\n")
	for _, d := range docs {
		fmt.Fprintf(tw, "%#x\t%s\t%s\t%s\n", d.Code, d.Name, d.Class, d.Handler)
	}
	return tw.Flush()
}

func causesCSV(w io.Writer, docs []CauseDoc) error {
	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write([]string{"Code", "Name", "Interrupt", "Class", "Handler"}); err != nil {
		return err
	}
	for _, d := range docs {
		err := csvWriter.Write([]string{
			fmt.Sprintf("%#x", d.Code),
			d.Name,
			fmt.Sprint(d.Interrupt),
			d.Class,
			d.Handler,
		})
		if err != nil {
			return err
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}
