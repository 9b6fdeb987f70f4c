// Package render prints count results to the terminal and exports them to files.
package render

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"cosyq/internal/backend"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorAccent  = lipgloss.Color("#20B9B4")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#2C4A54")
)

// Styles holds the lipgloss styles used by Console.
type Styles struct {
	Title   lipgloss.Style
	Header  lipgloss.Style
	Cell    lipgloss.Style
	Count   lipgloss.Style
	Muted   lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

// NewStyles builds the palette for r, so color output follows the capabilities
// of the writer r was created for.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Title:   r.NewStyle().Bold(true).Foreground(colorAccent),
		Header:  r.NewStyle().Bold(true),
		Cell:    r.NewStyle(),
		Count:   r.NewStyle().Foreground(colorAccent),
		Muted:   r.NewStyle().Foreground(colorMuted),
		Warning: r.NewStyle().Foreground(colorWarning),
		Error:   r.NewStyle().Foreground(colorError),
	}
}

// Console renders counts to a terminal.
type Console struct {
	w      io.Writer
	styles Styles
}

// NewConsole returns a Console writing to w. Colors are dropped when w is not a terminal.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w, styles: NewStyles(lipgloss.NewRenderer(w))}
}

// Count prints a scalar count.
func (c *Console) Count(project string, total int64) {
	fmt.Fprintf(c.w, "Found [%s] annotations in project [%s]\n",
		c.styles.Count.Render(strconv.FormatInt(total, 10)), c.styles.Title.Render(project))
}

// Groups prints a grouped count as a padded table. Columns follow the group keys
// in alphabetical order, with the count last.
func (c *Console) Groups(project string, keys []string, rows []backend.GroupRow) {
	fmt.Fprintln(c.w, c.styles.Title.Render(project))
	if len(rows) == 0 {
		fmt.Fprintln(c.w)
		return
	}
	fmt.Fprintln(c.w, c.styles.Muted.Render("---"))

	header, cells := table(keys, rows)

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range cells {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var sb strings.Builder
	for i, h := range header {
		sb.WriteString(c.styles.Header.Width(widths[i] + columnGap).Render(h))
	}
	fmt.Fprintln(c.w, strings.TrimRight(sb.String(), " "))

	for _, row := range cells {
		sb.Reset()
		for i, cell := range row {
			style := c.styles.Cell
			if i == len(row)-1 {
				style = c.styles.Count
			}
			sb.WriteString(style.Width(widths[i] + columnGap).Render(cell))
		}
		fmt.Fprintln(c.w, strings.TrimRight(sb.String(), " "))
	}
	fmt.Fprintln(c.w)
}

// Notice prints an informational message.
func (c *Console) Notice(msg string) {
	fmt.Fprintln(c.w, msg)
}

// Problem prints a message about a failed command.
func (c *Console) Problem(msg string) {
	fmt.Fprintln(c.w, c.styles.Warning.Render(msg))
}

const columnGap = 4

// table lays out grouped rows with the keys sorted alphabetically and a trailing
// count column.
func table(keys []string, rows []backend.GroupRow) ([]string, [][]string) {
	order := make([]int, len(keys))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return keys[order[a]] < keys[order[b]] })

	header := make([]string, 0, len(keys)+1)
	for _, i := range order {
		header = append(header, keys[i])
	}
	header = append(header, "count")

	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		row := make([]string, 0, len(order)+1)
		for _, i := range order {
			row = append(row, r.Values[i])
		}
		row = append(row, strconv.FormatInt(r.Count, 10))
		cells = append(cells, row)
	}
	return header, cells
}
