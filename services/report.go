package services

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Ibino273/raspi-moto-scraper/models"
)

// maxReportedFailures caps the failure table; the log has the full list.
const maxReportedFailures = 20

// PrintRunStats renders the run summary and its failures on w.
func PrintRunStats(w io.Writer, s models.RunStats) {
	summary := table.NewWriter()
	summary.SetOutputMirror(w)
	summary.SetTitle("Run " + s.RunID)
	summary.AppendRows([]table.Row{
		{"Started", s.StartedAt.Format(time.DateTime)},
		{"Duration", s.Duration().Round(time.Second)},
		{"Pages visited", s.PagesVisited},
		{"Pages failed", s.PagesFailed},
		{"Listings processed", s.ListingsProcessed},
		{"Inserted", s.Inserted},
		{"Updated", s.Updated},
		{"Errors", s.ErrorCount},
	})
	summary.SetStyle(table.StyleRounded)
	summary.Render()

	if len(s.Failures) == 0 {
		return
	}

	failures := table.NewWriter()
	failures.SetOutputMirror(w)
	failures.SetTitle("Failures")
	failures.AppendHeader(table.Row{"Stage", "Page", "URL", "Error"})
	for i, f := range s.Failures {
		if i == maxReportedFailures {
			failures.AppendFooter(table.Row{"", "", fmt.Sprintf("%d more", len(s.Failures)-i), ""})
			break
		}
		failures.AppendRow(table.Row{f.Stage, f.Page, truncate(f.URL, 60), truncate(errText(f.Err), 60)})
	}
	failures.SetStyle(table.StyleRounded)
	failures.Render()
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
