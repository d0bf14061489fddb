// Package report renders sweep results as console tables.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/timmy/orisweep/internal/domain"
)

// WriteRun renders the per-agency results of one run followed by its totals.
func WriteRun(w io.Writer, run *domain.ExportRun, results []*domain.ExportResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Run " + run.ID)
	t.AppendHeader(table.Row{"#", "ORI", "Outcome", "Attempts", "Output", "Error"})

	for _, r := range results {
		t.AppendRow(table.Row{r.Position + 1, r.ORI, r.Outcome, r.Attempts, r.OutputPath, truncate(r.Error, 60)})
	}

	t.AppendFooter(table.Row{
		"", "Total", run.TotalItems, "",
		summary(run), "",
	})
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.Render()
}

// WriteResults renders a stored run and its results as WriteRun does.
func WriteResults(w io.Writer, run *domain.ExportRun, results []domain.ExportResult) {
	rows := make([]*domain.ExportResult, len(results))
	for i := range results {
		rows[i] = &results[i]
	}
	WriteRun(w, run, rows)
}

// WriteHistory renders a list of past runs.
func WriteHistory(w io.Writer, runs []domain.ExportRun) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Run", "Started", "Duration", "File type", "Status", "Total", "Succeeded", "Timed out", "Failed", "Skipped"})

	for _, run := range runs {
		duration := ""
		if run.CompletedAt != nil {
			duration = run.CompletedAt.Sub(run.StartedAt).Round(time.Second).String()
		}
		t.AppendRow(table.Row{
			shortID(run.ID), run.StartedAt.Format("2006-01-02 15:04"), duration,
			run.FileType, run.Status, run.TotalItems,
			run.Succeeded, run.TimedOut, run.Failed, run.Skipped,
		})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}

func summary(run *domain.ExportRun) string {
	return fmt.Sprintf("%d ok / %d timed out / %d failed / %d skipped",
		run.Succeeded, run.TimedOut, run.Failed, run.Skipped)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
