package stats

import (
	"fmt"
	"sort"
	"strings"

	"rulesearch/internal/model"
)

// HistoryTable renders trial records as an aligned text table for the CLI.
func HistoryTable(history []model.TrialRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-6s %-10s %-10s %-6s %s\n", "trial", "mean", "stddev", "degen", "params")
	for _, record := range history {
		fmt.Fprintf(&b, "%-6d %-10.4f %-10.4f %-6d %s\n",
			record.Index, record.MeanScore, record.StddevScore,
			record.DegenerateFold, FormatParams(record.Params))
	}
	return b.String()
}

// FormatParams renders a parameter point as "step.param=value" pairs in a
// stable order.
func FormatParams(params model.FlatParams) string {
	parts := make([]string, 0)
	for step, inner := range params {
		for name, value := range inner {
			parts = append(parts, fmt.Sprintf("%s.%s=%v", step, name, value))
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}
