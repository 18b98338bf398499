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
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"
	"pktrap.dev/pktrap/pkg/hart"
	"pktrap.dev/pktrap/pkg/log"
	"pktrap.dev/pktrap/pkg/replay"
	"pktrap.dev/pktrap/runtrap/cmd/util"
	"pktrap.dev/pktrap/runtrap/config"
)

// Replay implements subcommands.Command for the "replay" command.
type Replay struct {
	diagnostics bool
}

// Name implements subcommands.Command.Name.
func (*Replay) Name() string {
	return "replay"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Replay) Synopsis() string {
	return "replay a trap scenario and check its expectations"
}

// Usage implements subcommands.Command.Usage.
func (*Replay) Usage() string {
	return `replay [flags] <scenario.yaml> - feed the trap frames of a scenario
through one dispatcher per hart and report how each trap was handled.

The command fails if any expectation of the scenario does not hold.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Replay) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&r.diagnostics, "diagnostics", false, "print the register dumps of terminated harts.")
}

// Execute implements subcommands.Command.Execute.
func (r *Replay) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	s, err := replay.LoadFile(f.Arg(0))
	if err != nil {
		return util.Errorf("loading scenario: %v", err)
	}
	log.Infof("Replaying scenario %q with %d harts", s.Name, len(s.Harts))

	report, err := replay.Run(ctx, s, replay.Options{Strace: conf.Strace})
	if err != nil {
		return util.Errorf("replaying scenario %q: %v", s.Name, err)
	}

	if err := writeReport(os.Stdout, report, conf.Output, r.diagnostics); err != nil {
		util.Fatalf("Error writing output: %v", err)
	}

	if ms := report.Mismatches(); len(ms) > 0 {
		return util.Errorf("scenario %q: %d expectations failed", s.Name, len(ms))
	}
	return subcommands.ExitSuccess
}

func writeReport(w io.Writer, report *replay.Report, format config.OutputFormat, diagnostics bool) error {
	switch format {
	case config.OutputJSON:
		e := json.NewEncoder(w)
		e.SetIndent("", "  ")
		return e.Encode(report)
	case config.OutputCSV:
		return reportCSV(w, report)
	default:
		return reportTable(w, report, diagnostics)
	}
}

func reportTable(w io.Writer, report *replay.Report, diagnostics bool) error {
	fmt.Fprintf(w, "scenario %s:\n", report.Name)
	for _, h := range report.Harts {
		fmt.Fprintf(w, "\nhart %d (%s):\n\n", h.ID, h.Final)

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "#\tCAUSE\tPC\tDISPOSITION\tNEXT PC\tA0\tMESSAGE\n")
		for i, t := range h.Traps {
			msg := t.Message
			if t.Disposition == hart.Exited.String() {
				msg = fmt.Sprintf("exit %d", t.ExitCode)
			}
			fmt.Fprintf(tw, "%d\t%s\t%#x\t%s\t%#x\t%#x\t%s\n", i, t.Cause, t.PC, t.Disposition, t.NextPC, t.A0, msg)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		if h.Output != "" {
			fmt.Fprintf(w, "\noutput:\n%s", indent(h.Output))
		}
		if diagnostics && h.Diagnostics != "" {
			fmt.Fprintf(w, "\ndiagnostics:\n%s", indent(h.Diagnostics))
		}
		if h.Maps != "" {
			fmt.Fprintf(w, "\nmaps (%d resident pages):\n%s", h.ResidentPages, indent(h.Maps))
		}
	}

	if ms := report.Mismatches(); len(ms) > 0 {
		fmt.Fprintf(w, "\nFAILED:\n")
		for _, m := range ms {
			fmt.Fprintf(w, "\t%s\n", m)
		}
		return nil
	}
	_, err := fmt.Fprintf(w, "\nOK\n")
	return err
}

func reportCSV(w io.Writer, report *replay.Report) error {
	csvWriter := csv.NewWriter(w)
	err := csvWriter.Write([]string{
		"Hart",
		"Trap",
		"Cause",
		"PC",
		"Disposition",
		"NextPC",
		"A0",
		"ExitCode",
		"Message",
	})
	if err != nil {
		return err
	}
	for _, h := range report.Harts {
		for i, t := range h.Traps {
			err := csvWriter.Write([]string{
				fmt.Sprint(h.ID),
				fmt.Sprint(i),
				t.Cause,
				fmt.Sprintf("%#x", t.PC),
				t.Disposition,
				fmt.Sprintf("%#x", t.NextPC),
				fmt.Sprintf("%#x", t.A0),
				fmt.Sprint(t.ExitCode),
				t.Message,
			})
			if err != nil {
				return err
			}
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

// indent prefixes every line of s with a tab.
func indent(s string) string {
	lines := strings.SplitAfter(s, "\n")
	var b strings.Builder
	for _, l := range lines {
		if l == "" {
			continue
		}
		b.WriteString("\t")
		b.WriteString(l)
	}
	if !strings.HasSuffix(s, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}
