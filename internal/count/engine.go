// Package count runs scalar and grouped annotation counts across projects.
package count

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"cosyq/internal/backend"
	"cosyq/internal/query"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// AllProjects is the selector token that expands to every known project.
const AllProjects = "all"

// CountField can be named in a sort spec to order grouped rows by their count.
const CountField = "count"

// Selector picks the projects a count runs against.
type Selector struct {
	All   bool
	Names []string
}

// ParseSelector parses "all" or a comma-separated list of project names.
// Duplicate names are dropped, first occurrence wins.
func ParseSelector(arg string) (Selector, error) {
	if arg == AllProjects {
		return Selector{All: true}, nil
	}

	var names []string
	for _, name := range strings.Split(arg, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			return Selector{}, fmt.Errorf("empty project name in %q", arg)
		}
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	return Selector{Names: names}, nil
}

func (s Selector) String() string {
	if s.All {
		return AllProjects
	}
	return strings.Join(s.Names, ",")
}

// Request describes one count invocation.
type Request struct {
	Selector  Selector
	Query     query.QuerySpec
	GroupKeys []string
	Sort      *query.SortSpec
}

// Grouped reports whether the request buckets by group keys.
func (r Request) Grouped() bool {
	return len(r.GroupKeys) > 0
}

// Result is the count for one project.
type Result struct {
	Project   string             `json:"project" yaml:"project"`
	Total     int64              `json:"total" yaml:"total"`
	GroupKeys []string           `json:"group_keys,omitempty" yaml:"group_keys,omitempty"`
	Rows      []backend.GroupRow `json:"rows,omitempty" yaml:"rows,omitempty"`
}

// Grouped reports whether the result carries group rows.
func (r Result) Grouped() bool {
	return len(r.GroupKeys) > 0
}

// Results holds one Result per project, in project enumeration order.
type Results []Result

// Get returns the result for project.
func (rs Results) Get(project string) (Result, bool) {
	for _, r := range rs {
		if r.Project == project {
			return r, true
		}
	}
	return Result{}, false
}

// Options configures an Engine.
type Options struct {
	// Parallelism bounds concurrent project requests; 1 runs them sequentially.
	Parallelism int
	// Strict rejects project names the backend does not list.
	Strict bool
	// Echo receives the active query before execution when set (verbose mode).
	Echo io.Writer
}

// Engine runs counts against a backend.
type Engine struct {
	backend backend.Backend
	opts    Options
}

// NewEngine creates an Engine.
func NewEngine(b backend.Backend, opts Options) *Engine {
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	return &Engine{backend: b, opts: opts}
}

// SetEcho replaces the verbose echo writer; nil disables the echo.
func (e *Engine) SetEcho(w io.Writer) {
	e.opts.Echo = w
}

// Count executes req for every selected project.
func (e *Engine) Count(ctx context.Context, req Request) (Results, error) {
	projects, err := e.resolve(ctx, req.Selector)
	if err != nil {
		return nil, err
	}

	if e.opts.Echo != nil {
		fmt.Fprintln(e.opts.Echo, req.Query.String())
	}

	log.Debug().
		Strs("projects", projects).
		Str("query", req.Query.String()).
		Strs("groupBy", req.GroupKeys).
		Msg("Running count")

	start := time.Now()
	results := make(Results, len(projects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Parallelism)
	for i, project := range projects {
		i, project := i, project
		g.Go(func() error {
			res, err := e.countOne(gctx, project, req)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info().
		Int("projects", len(projects)).
		Bool("grouped", req.Grouped()).
		Dur("took", time.Since(start)).
		Msg("Count finished")
	return results, nil
}

func (e *Engine) countOne(ctx context.Context, project string, req Request) (Result, error) {
	if !req.Grouped() {
		n, err := e.backend.Count(ctx, project, req.Query)
		if err != nil {
			return Result{}, err
		}
		return Result{Project: project, Total: n}, nil
	}

	rows, err := e.backend.GroupCount(ctx, project, req.Query, req.GroupKeys)
	if err != nil {
		return Result{}, err
	}
	SortRows(rows, req.GroupKeys, req.Sort)

	var total int64
	for _, r := range rows {
		total += r.Count
	}
	return Result{
		Project:   project,
		Total:     total,
		GroupKeys: slices.Clone(req.GroupKeys),
		Rows:      rows,
	}, nil
}

func (e *Engine) resolve(ctx context.Context, sel Selector) ([]string, error) {
	if !sel.All && len(sel.Names) == 0 {
		return nil, fmt.Errorf("no project selected")
	}
	if !sel.All && !e.opts.Strict {
		return sel.Names, nil
	}

	known, err := e.backend.ProjectNames(ctx)
	if err != nil {
		return nil, err
	}
	if sel.All {
		return known, nil
	}

	for _, name := range sel.Names {
		if !slices.Contains(known, name) {
			return nil, fmt.Errorf("%w: %s", backend.ErrUnknownProject, name)
		}
	}
	return sel.Names, nil
}

// SortRows orders grouped rows in place. Sort fields naming a group key or
// CountField apply first, in sort-spec order; the group tuple ascending breaks ties.
func SortRows(rows []backend.GroupRow, keys []string, spec *query.SortSpec) {
	type orderBy struct {
		index int // -1 orders by count
		dir   query.Direction
	}

	var order []orderBy
	if spec != nil {
		for _, field := range spec.Fields() {
			dir, _ := spec.Direction(field)
			if field == CountField {
				order = append(order, orderBy{index: -1, dir: dir})
				continue
			}
			if i := slices.Index(keys, field); i >= 0 {
				order = append(order, orderBy{index: i, dir: dir})
			}
		}
	}

	slices.SortStableFunc(rows, func(a, b backend.GroupRow) int {
		for _, o := range order {
			var c int
			if o.index < 0 {
				c = cmp.Compare(a.Count, b.Count)
			} else {
				c = strings.Compare(a.Values[o.index], b.Values[o.index])
			}
			if o.dir == query.Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return slices.Compare(a.Values, b.Values)
	})
}
