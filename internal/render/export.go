package render

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"cosyq/internal/count"

	"github.com/natefinch/atomic"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for an export path with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Export writes results to path, picking the format from the file extension:
// .csv, .yaml/.yml or .md/.mmd (Mermaid charts). The file is replaced atomically.
func Export(path string, req count.Request, results count.Results) error {
	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		data, err = CSV(results)
	case ".yaml", ".yml":
		data, err = YAML(req, results)
	case ".md", ".mmd":
		data = Markdown(req, results)
	default:
		return fmt.Errorf("%w: %q (use .csv, .yaml or .md)", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return err
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	log.Info().Str("path", path).Int("projects", len(results)).Msg("Exported count results")
	return nil
}

// CSV encodes results as comma-separated values. Scalar results use the columns
// count,project. Grouped results use project, the group keys in alphabetical
// order, then count; projects without rows are omitted.
func CSV(results count.Results) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	grouped := len(results) > 0 && results[0].Grouped()
	if !grouped {
		_ = w.Write([]string{"count", "project"})
		for _, r := range results {
			_ = w.Write([]string{strconv.FormatInt(r.Total, 10), r.Project})
		}
	} else {
		keys := append([]string(nil), results[0].GroupKeys...)
		sort.Strings(keys)
		_ = w.Write(append(append([]string{"project"}, keys...), "count"))

		for _, r := range results {
			if len(r.Rows) == 0 {
				log.Info().Str("project", r.Project).Msg("Omitting empty results")
				continue
			}
			_, cells := table(r.GroupKeys, r.Rows)
			for _, row := range cells {
				_ = w.Write(append([]string{r.Project}, row...))
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encoding csv: %w", err)
	}
	return buf.Bytes(), nil
}

type yamlReport struct {
	Projects string        `yaml:"projects"`
	Query    string        `yaml:"query"`
	GroupBy  []string      `yaml:"group_by,omitempty"`
	Sort     []string      `yaml:"sort,omitempty"`
	Results  count.Results `yaml:"results"`
}

// YAML encodes results together with the request that produced them. Sort
// criteria are written in the field:asc|des form the sort command accepts.
func YAML(req count.Request, results count.Results) ([]byte, error) {
	var sortTokens []string
	if req.Sort != nil {
		for _, field := range req.Sort.Fields() {
			dir, _ := req.Sort.Direction(field)
			sortTokens = append(sortTokens, field+":"+dir.Short())
		}
	}

	data, err := yaml.Marshal(yamlReport{
		Projects: req.Selector.String(),
		Query:    req.Query.String(),
		GroupBy:  req.GroupKeys,
		Sort:     sortTokens,
		Results:  results,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding yaml: %w", err)
	}
	return data, nil
}

// Markdown renders results as a document of Mermaid charts.
func Markdown(req count.Request, results count.Results) []byte {
	var sb strings.Builder
	sb.WriteString("# Annotation counts\n\n")
	sb.WriteString(fmt.Sprintf("Query: `%s`\n\n", req.Query.String()))

	if !req.Grouped() {
		sb.WriteString(ProjectPie(results))
		sb.WriteString("\n")
		return []byte(sb.String())
	}

	for _, r := range results {
		sb.WriteString(fmt.Sprintf("## %s\n\n", r.Project))
		if chart := GroupBars(r); chart != "" {
			sb.WriteString(chart)
			sb.WriteString("\n\n")
		} else {
			sb.WriteString("No annotations.\n\n")
		}
	}
	return []byte(sb.String())
}
