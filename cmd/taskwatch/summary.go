package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/aristath/taskwatch/internal/rerun"
	"github.com/aristath/taskwatch/internal/runner"
)

// maxDetail bounds the result or error text shown per row.
const maxDetail = 60

// printSummary writes one table row per input followed by the totals.
func printSummary(w io.Writer, report rerun.Report, list []string) {
	table := tablewriter.NewWriter(w)
	table.Header("#", "Input", "Status", "Duration", "Detail")

	for i, o := range report.Outcomes {
		input := ""
		if i < len(list) {
			input = list[i]
		}
		table.Append(
			strconv.Itoa(i),
			truncate(input, 40),
			o.Status.String(),
			o.Duration.Round(time.Millisecond).String(),
			truncate(detail(o), maxDetail),
		)
	}
	table.Render()

	fmt.Fprintf(w, "\n%d completed, %d failed, %d cancelled",
		report.Count(runner.StatusCompleted),
		len(report.Failed()),
		report.Count(runner.StatusCancelled),
	)
	if report.Rounds > 1 {
		fmt.Fprintf(w, " after %d rounds", report.Rounds)
	}
	fmt.Fprintln(w)
}

// detail is the first line of a completed value or of the failure descriptor.
func detail(o runner.Outcome) string {
	var s string
	switch {
	case o.Status == runner.StatusCompleted:
		s = fmt.Sprint(o.Value)
	case o.Err != nil:
		s = o.Err.Error()
	}
	if line, _, ok := strings.Cut(s, "\n"); ok {
		return line + " ..."
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
