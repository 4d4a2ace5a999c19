package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/talgya/isle-planner/internal/engine"
	"github.com/talgya/isle-planner/internal/session"
)

func value(v float64) string {
	return humanize.Commaf(float64(int64(v + 0.5)))
}

// writeDays prints each day's suggestions as a table.
func writeDays(w io.Writer, days []engine.DayView) {
	for _, d := range days {
		label := "today"
		if d.Projected {
			label = "projected"
		}
		fmt.Fprintf(w, "Day %d (%s, %s combinations considered", d.Day, label, humanize.Comma(int64(d.Considered)))
		if d.Hidden > 0 {
			fmt.Fprintf(w, ", %d hidden", d.Hidden)
		}
		fmt.Fprintln(w, ")")

		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  #\tVALUE\tGROSS\tGROOVE\tSCHEDULE")
		for _, s := range d.Suggestions {
			fmt.Fprintf(tw, "  %d\t%s\t%s\t+%d\t%s\n", s.Rank, value(s.Value), value(s.Gross), s.GrooveGain, schedule(s.Workshops))
			for _, warn := range s.Warnings {
				fmt.Fprintf(tw, "  \t\t\t\t! %s\n", warn)
			}
		}
		tw.Flush()
		if len(d.Suggestions) > 0 && len(d.Suggestions[0].Materials) > 0 {
			fmt.Fprintf(w, "  materials for #%d: %s\n", d.Suggestions[0].Rank, materials(d.Suggestions[0]))
		}
		fmt.Fprintln(w)
	}
}

func schedule(workshops [][]string) string {
	if len(workshops) == 0 || len(workshops[0]) == 0 {
		return "rest"
	}
	rows := make([]string, len(workshops))
	for i, row := range workshops {
		if len(row) == 0 {
			rows[i] = "-"
			continue
		}
		rows[i] = strings.Join(row, " > ")
	}
	// Mirrored workshops print once.
	if slices.IndexFunc(rows, func(r string) bool { return r != rows[0] }) < 0 {
		return rows[0]
	}
	return strings.Join(rows, " | ")
}

func materials(s engine.SuggestionView) string {
	parts := make([]string, 0, len(s.Materials))
	for _, name := range slices.Sorted(maps.Keys(s.Materials)) {
		part := fmt.Sprintf("%s x%d", name, s.Materials[name])
		if owned, ok := s.Owned[name]; ok {
			part += fmt.Sprintf(" (own %d)", owned)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ", ")
}

// writeSummaries prints the recorded days with running totals.
func writeSummaries(w io.Writer, sums []session.Summary, totals session.Totals) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DAY\tGROSS\tNET\tGROOVE\tTOTAL\tWHEN")
	for _, s := range sums {
		kind := s.Key
		if s.Stub {
			kind = "stub"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s %s\n", s.Day, value(s.Gross), value(s.Net), s.Groove,
			value(s.CumulativeNet), humanize.Time(s.CommittedAt), kind)
	}
	tw.Flush()
	fmt.Fprintf(w, "cycle %d: gross %s, net %s, groove %d\n", totals.Cycle, value(totals.Gross), value(totals.Net), totals.Groove)
}
