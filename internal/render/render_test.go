package render

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cosyq/internal/backend"
	"cosyq/internal/count"
	"cosyq/internal/query"

	"gopkg.in/yaml.v3"
)

func groupedResults() count.Results {
	return count.Results{
		{
			Project:   "GET",
			Total:     3,
			GroupKeys: []string{"user", "corpus"},
			Rows: []backend.GroupRow{
				{Values: []string{"a", "x"}, Count: 2},
				{Values: []string{"b", "y"}, Count: 1},
			},
		},
		{Project: "BASE", GroupKeys: []string{"user", "corpus"}},
	}
}

func scalarResults() count.Results {
	return count.Results{{Project: "GET", Total: 2}, {Project: "BASE", Total: 1}}
}

func TestConsole_Count(t *testing.T) {
	var buf bytes.Buffer
	NewConsole(&buf).Count("GET", 42)

	if got, want := buf.String(), "Found [42] annotations in project [GET]\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestConsole_Groups(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	for _, r := range groupedResults() {
		c.Groups(r.Project, r.GroupKeys, r.Rows)
	}

	want := strings.Join([]string{
		"GET",
		"---",
		"corpus    user    count",
		"x         a       2",
		"y         b       1",
		"",
		"BASE",
		"",
		"",
	}, "\n")
	if got := buf.String(); got != want {
		t.Errorf("grouped output mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestCSV_Scalar(t *testing.T) {
	data, err := CSV(scalarResults())
	if err != nil {
		t.Fatalf("CSV failed: %v", err)
	}
	if got, want := string(data), "count,project\n2,GET\n1,BASE\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCSV_Grouped(t *testing.T) {
	data, err := CSV(groupedResults())
	if err != nil {
		t.Fatalf("CSV failed: %v", err)
	}
	want := "project,corpus,user,count\nGET,x,a,2\nGET,y,b,1\n"
	if got := string(data); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExport_ByExtension(t *testing.T) {
	dir := t.TempDir()
	f := query.NewFilterStore()
	f.Add("user", "a")
	req := count.Request{Query: query.Translate(f), GroupKeys: []string{"user", "corpus"}}

	tests := []struct {
		file string
		want string
	}{
		{"out.csv", "project,corpus,user,count"},
		{"out.yaml", "project: GET"},
		{"out.md", "xychart-beta"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := Export(path, req, groupedResults()); err != nil {
				t.Fatalf("Export failed: %v", err)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("reading export: %v", err)
			}
			if !strings.Contains(string(data), tt.want) {
				t.Errorf("export %s does not contain %q:\n%s", tt.file, tt.want, data)
			}
		})
	}

	err := Export(filepath.Join(dir, "out.xlsx"), req, groupedResults())
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestMarkdown_Grouped(t *testing.T) {
	md := string(Markdown(count.Request{GroupKeys: []string{"user", "corpus"}}, groupedResults()))

	for _, want := range []string{
		"## GET",
		`x-axis ["a / x", "b / y"]`,
		`y-axis "Annotations" 0 --> 3`,
		"bar [2, 1]",
		"## BASE\n\nNo annotations.",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestProjectPie(t *testing.T) {
	chart := ProjectPie(scalarResults())
	if !strings.Contains(chart, `"GET" : 2`) || !strings.Contains(chart, `"BASE" : 1`) {
		t.Errorf("unexpected pie chart:\n%s", chart)
	}
	if ProjectPie(nil) != "" {
		t.Error("empty results should render nothing")
	}
}

func TestGroupBars_Limit(t *testing.T) {
	r := count.Result{Project: "GET", GroupKeys: []string{"user"}}
	for i := 0; i < maxBars+5; i++ {
		r.Rows = append(r.Rows, backend.GroupRow{Values: []string{"u"}, Count: 1})
	}
	chart := GroupBars(r)
	if got := strings.Count(chart, `"u"`); got != maxBars {
		t.Errorf("expected %d bars, got %d", maxBars, got)
	}
}

func TestYAML_RecordsRequest(t *testing.T) {
	sel, err := count.ParseSelector("GET,BASE")
	if err != nil {
		t.Fatal(err)
	}
	spec := query.NewSortSpec()
	spec.Set("count", query.Descending)
	spec.Set("user", query.Ascending)
	req := count.Request{Selector: sel, GroupKeys: []string{"user", "corpus"}, Sort: spec}

	data, err := YAML(req, groupedResults())
	if err != nil {
		t.Fatalf("YAML failed: %v", err)
	}

	var got struct {
		Projects string   `yaml:"projects"`
		GroupBy  []string `yaml:"group_by"`
		Sort     []string `yaml:"sort"`
	}
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatalf("decoding report: %v", err)
	}
	if got.Projects != "GET,BASE" {
		t.Errorf("expected projects GET,BASE, got %q", got.Projects)
	}
	if strings.Join(got.Sort, " ") != "count:des user:asc" {
		t.Errorf("unexpected sort tokens %v", got.Sort)
	}
	if len(got.GroupBy) != 2 {
		t.Errorf("unexpected group keys %v", got.GroupBy)
	}
}
