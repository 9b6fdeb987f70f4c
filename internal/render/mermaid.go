package render

import (
	"fmt"
	"math"
	"strings"

	"cosyq/internal/count"
)

// maxBars bounds the bars of a grouped chart to keep it readable.
const maxBars = 20

// ProjectPie creates a Mermaid pie chart of scalar counts per project.
func ProjectPie(results count.Results) string {
	if len(results) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("pie showData\n")
	sb.WriteString("    title \"Annotations per project\"\n")
	for _, r := range results {
		sb.WriteString(fmt.Sprintf("    %q : %d\n", r.Project, r.Total))
	}
	sb.WriteString("```")
	return sb.String()
}

// GroupBars creates a Mermaid bar chart for the rows of one grouped result.
// Only the first maxBars rows are charted.
func GroupBars(result count.Result) string {
	if len(result.Rows) == 0 {
		return ""
	}

	var labels []string
	var values []string
	var maxVal int64

	rows := result.Rows
	if len(rows) > maxBars {
		rows = rows[:maxBars]
	}
	for _, row := range rows {
		labels = append(labels, fmt.Sprintf("%q", strings.Join(row.Values, " / ")))
		values = append(values, fmt.Sprintf("%d", row.Count))
		maxVal = max(maxVal, row.Count)
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString(fmt.Sprintf("    title \"%s by %s\"\n", result.Project, strings.Join(result.GroupKeys, ", ")))
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Annotations\" 0 --> %d\n", maxVal+int64(math.Max(1, float64(maxVal)*0.2))))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```")
	return sb.String()
}
