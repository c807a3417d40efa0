package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/pthm/hxhydrate"
)

func newTable(w io.Writer) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Format.Footer = text.FormatDefault
	return tbl
}

// renderStates prints one row per tag.
func renderStates(w io.Writer, states []hxhydrate.ComponentState) {
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Tag", "Strategy", "Priority", "Status", "Retries", "Duration", "Error"})
	for _, st := range states {
		tbl.AppendRow(table.Row{
			st.Tag,
			st.Strategy,
			st.Priority,
			st.Status,
			fmt.Sprintf("%d/%d", st.RetryCount, st.MaxRetries),
			formatDuration(st.Duration),
			st.Error,
		})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d tags", len(states))})
	tbl.Render()
}

func renderMetrics(w io.Writer, m hxhydrate.Metrics, inflight int) {
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Metric", "Value"})
	tbl.AppendRows([]table.Row{
		{"Elements", m.TotalComponents},
		{"Hydrated", m.HydratedComponents},
		{"Failed tags", m.FailedComponents},
		{"Total time", formatDuration(m.TotalHydrationTime)},
		{"Average time", formatDuration(m.AverageHydrationTime)},
		{"Score", fmt.Sprintf("%.1f", m.PerformanceScore)},
		{"In flight", inflight},
	})
	tbl.Render()
}

func renderDurations(w io.Writer, stats []hxhydrate.DurationStat) {
	if len(stats) == 0 {
		return
	}
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Operation", "Count", "Mean", "Max"})
	for _, d := range stats {
		tbl.AppendRow(table.Row{d.Name, d.Count, formatDuration(d.Mean()), formatDuration(d.Max)})
	}
	tbl.Render()
}

func renderSnapshot(w io.Writer, s hxhydrate.Snapshot) {
	fmt.Fprintf(w, "manager %s at %s\n", s.Manager, s.Taken.Format(time.RFC3339))
	renderStates(w, s.States)
	renderMetrics(w, s.Metrics, s.InFlight)
	renderDurations(w, s.Durations)
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	return d.Round(time.Microsecond).String()
}
