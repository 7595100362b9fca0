// Package report renders the verifier's run report for the terminal.
package report

import (
	"fmt"
	"io"
	"time"

	"filerelay/internal/pipeline"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Render writes the verification report as tables.
func Render(w io.Writer, r *pipeline.Report) {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle("Verification Report")
	tw.AppendHeader(table.Row{"Metric", "Value"})
	tw.AppendRows([]table.Row{
		{"Run", r.RunID},
		{"Expected", r.Expected},
		{"Processed", r.Processed},
		{"Succeeded", r.Succeeded},
		{"Failed", r.Failed},
		{"Missing", r.Missing},
		{"Duration", r.Duration.Round(10 * time.Millisecond)},
	})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	fmt.Fprintln(w, tw.Render())

	if len(r.Failures) == 0 {
		return
	}

	fw := table.NewWriter()
	fw.SetStyle(table.StyleRounded)
	fw.SetTitle("Failed Tasks")
	fw.AppendHeader(table.Row{"Task", "Name", "Stage", "Cause"})
	for _, f := range r.Failures {
		fw.AppendRow(table.Row{f.TaskID, f.Name, string(f.Stage), f.Cause})
	}
	fmt.Fprintln(w, fw.Render())
}
