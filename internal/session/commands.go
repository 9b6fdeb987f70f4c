package session

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"cosyq/internal/backend"
	"cosyq/internal/count"
	"cosyq/internal/query"
)

const (
	filterFormat = "key:value"
	sortFormat   = "field[:asc|des]"
	countFormat  = "count <project|all|p1,p2> [groupby k1,k2] [to file]"

	retryConflictPrompt = "Please answer (o)verwrite or (c)oncatenate"
)

// Builtins returns the verbs of the query shell.
func Builtins() []*Command {
	return []*Command{
		{
			Name:  "show",
			Usage: "show filters|sort",
			Short: "Show the current filters or sort criteria",
			Long: `Print the active filters (one line per key, values comma-separated)
or the sort criteria (field and direction).`,
			Run: cmdShow,
		},
		{
			Name:  "filter",
			Usage: "filter [key:value ...] [key]",
			Short: "Add, replace or clear filters",
			Long: `filter key:value [key:value ...]
    Add one filter per token. A value wrapped in slashes (/^foo/) is a regex.
    When the key already holds another value you are asked to (o)verwrite it
    or (c)oncatenate, which matches any of the values.
filter key
    Clear the filter on key. Tokens after a bare key are ignored.
filter
    Clear every filter.`,
			Run: cmdFilter,
		},
		{
			Name:  "sort",
			Usage: "sort [field[:asc|des] ...]",
			Short: "Set sort criteria; no argument clears them",
			Long: `Each token sets the direction of one field; des is the default.
Grouped counts are ordered by fields naming a group key or "count".`,
			Run: cmdSort,
		},
		{
			Name:  "count",
			Usage: countFormat,
			Short: "Count annotations matching the filters",
			Long: `count GET
    Scalar count in project GET.
count all groupby user,corpus
    Grouped count in every project.
count GET,BASE to counts.csv
    Also export the results; .csv, .yaml and .md are understood.`,
			Run: cmdCount,
		},
		{
			Name:  "projects",
			Usage: "projects",
			Short: "List the projects known to the backend",
			Run:   cmdProjects,
		},
		{
			Name:  "reset",
			Usage: "reset",
			Short: "Clear filters and sort criteria",
			Run:   cmdReset,
		},
		{
			Name:  "verbose",
			Usage: "verbose [on|off]",
			Short: "Toggle echoing of the active query",
			Run:   cmdVerbose,
		},
		{
			Name:  "reconnect",
			Usage: "reconnect",
			Short: "Re-establish the backend connection",
			Run:   cmdReconnect,
		},
		{
			Name:  "config",
			Usage: "config",
			Short: "Change session settings (reserved)",
			Run: func(context.Context, *Session, []string) (Interaction, error) {
				return nil, ErrNotImplemented
			},
		},
		{
			Name:  "help",
			Usage: "help [command]",
			Short: "Show help",
			Run:   cmdHelp,
		},
		{
			Name:  "exit",
			Usage: "exit",
			Short: "Leave the session",
			Run: func(context.Context, *Session, []string) (Interaction, error) {
				return nil, ErrExit
			},
		},
	}
}

func cmdShow(_ context.Context, s *Session, args []string) (Interaction, error) {
	if err := precondition(len(args) == 1, "Specify exactly one value"); err != nil {
		return nil, err
	}

	switch args[0] {
	case "filters":
		if s.Filters.Len() == 0 {
			s.printf("    (no filters)\n")
		}
		for _, key := range s.Filters.Keys() {
			s.printf("    %s => %s\n", key, strings.Join(s.Filters.Get(key), ", "))
		}
	case "sort":
		if s.Sort.Len() == 0 {
			s.printf("    (no sort criteria)\n")
		}
		for _, field := range s.Sort.Fields() {
			dir, _ := s.Sort.Direction(field)
			s.printf("    %s[%s]\n", field, dir)
		}
	default:
		return nil, &PreconditionError{Msg: "Specify one of (filters, sort)"}
	}
	return nil, nil
}

type filterToken struct {
	key   string
	value string
	bare  bool
}

// parseFilterTokens validates the token shapes up to the first bare key.
// Nothing is mutated when a token is malformed.
func parseFilterTokens(args []string) ([]filterToken, error) {
	var tokens []filterToken
	for _, arg := range args {
		key, value, found := strings.Cut(arg, ":")
		if !found {
			tokens = append(tokens, filterToken{key: arg, bare: true})
			break
		}
		if key == "" || strings.Contains(value, ":") {
			return nil, &ParseError{Value: arg, Expected: filterFormat}
		}
		tokens = append(tokens, filterToken{key: key, value: value})
	}
	return tokens, nil
}

func cmdFilter(_ context.Context, s *Session, args []string) (Interaction, error) {
	if len(args) == 0 {
		s.clearFilters()
		return nil, nil
	}

	tokens, err := parseFilterTokens(args)
	if err != nil {
		return nil, err
	}
	return &filterInteraction{s: s, tokens: tokens}, nil
}

// filterInteraction applies filter tokens in order, stopping to ask on conflicts.
type filterInteraction struct {
	s      *Session
	tokens []filterToken
	pos    int
}

func (f *filterInteraction) Next() *Step {
	for f.pos < len(f.tokens) {
		t := f.tokens[f.pos]
		f.pos++

		switch {
		case t.bare:
			f.s.clearFilter(t.key)
			f.pos = len(f.tokens)
		case !f.s.Filters.Has(t.key):
			f.s.addFilter(t.key, t.value)
		case f.s.Filters.HasConflict(t.key, t.value):
			prompt := fmt.Sprintf("A value for filter %s already exists, do you want to (o)verwrite or (c)oncatenate?", t.key)
			return f.s.conflictStep(t.key, t.value, prompt)
		}
	}
	return nil
}

func (s *Session) conflictStep(key, value, prompt string) *Step {
	step := &Step{Prompt: prompt}
	step.Resume = func(answer string) *Step {
		switch strings.ToLower(answer) {
		case "o", "overwrite":
			s.replaceFilter(key, value)
			return nil
		case "c", "concatenate":
			s.addFilter(key, value)
			return nil
		}
		return s.conflictStep(key, value, retryConflictPrompt)
	}
	return step
}

func cmdSort(_ context.Context, s *Session, args []string) (Interaction, error) {
	if len(args) == 0 {
		s.Sort.Clear()
		s.notice("Cleared sort criteria")
		return nil, nil
	}

	type criterion struct {
		field string
		dir   query.Direction
	}
	parsed := make([]criterion, 0, len(args))
	for _, arg := range args {
		parts := strings.Split(arg, ":")
		if len(parts) > 2 || parts[0] == "" {
			return nil, &ParseError{Value: arg, Expected: sortFormat}
		}
		c := criterion{field: parts[0], dir: query.Descending}
		if len(parts) == 2 {
			dir, err := query.ParseDirection(parts[1])
			if err != nil {
				return nil, &PreconditionError{Msg: "Sort order must be in (asc, des)"}
			}
			c.dir = dir
		}
		parsed = append(parsed, c)
	}

	for _, c := range parsed {
		s.Sort.Set(c.field, c.dir)
	}
	return nil, nil
}

func parseCountArgs(args []string) (req count.Request, path string, err error) {
	if err := precondition(len(args) > 0, "Specify a project (e.g. GET) or 'all' for all projects"); err != nil {
		return req, "", err
	}

	req.Selector, err = count.ParseSelector(args[0])
	if err != nil {
		return req, "", &PreconditionError{Msg: err.Error()}
	}

	rest := args[1:]
	for len(rest) > 0 {
		switch rest[0] {
		case "groupby":
			if err := precondition(len(rest) > 1 && req.GroupKeys == nil, "groupby needs one comma-separated key list"); err != nil {
				return req, "", err
			}
			for _, key := range strings.Split(rest[1], ",") {
				if key == "" {
					return req, "", &ParseError{Value: rest[1], Expected: "k1,k2"}
				}
				if !slices.Contains(req.GroupKeys, key) {
					req.GroupKeys = append(req.GroupKeys, key)
				}
			}
			rest = rest[2:]
		case "to":
			if err := precondition(len(rest) > 1 && path == "", "to needs one file name"); err != nil {
				return req, "", err
			}
			path = rest[1]
			rest = rest[2:]
		default:
			return req, "", &ParseError{Value: rest[0], Expected: countFormat}
		}
	}
	return req, path, nil
}

func cmdCount(ctx context.Context, s *Session, args []string) (Interaction, error) {
	req, path, err := parseCountArgs(args)
	if err != nil {
		return nil, err
	}
	if path != "" && s.export == nil {
		return nil, ErrNotImplemented
	}
	req.Query = s.Query()
	req.Sort = s.Sort

	results, err := s.engine.Count(ctx, req)
	if err != nil {
		return nil, err
	}

	for _, r := range results {
		if r.Grouped() {
			s.render.Groups(r.Project, r.GroupKeys, r.Rows)
		} else {
			s.render.Count(r.Project, r.Total)
		}
	}

	if path != "" {
		if err := s.export(path, req, results); err != nil {
			return nil, fmt.Errorf("exporting to %s: %w", path, err)
		}
		s.notice(fmt.Sprintf("Wrote %d project(s) to %s", len(results), path))
	}
	return nil, nil
}

func cmdProjects(ctx context.Context, s *Session, args []string) (Interaction, error) {
	if err := precondition(len(args) == 0, "projects takes no arguments"); err != nil {
		return nil, err
	}
	names, err := s.backend.ProjectNames(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		s.printf("    %s\n", name)
	}
	return nil, nil
}

func cmdReset(_ context.Context, s *Session, _ []string) (Interaction, error) {
	s.Filters.ClearAll()
	s.Sort.Clear()
	s.notice("Cleared all filters and sort criteria")
	s.echoQuery()
	return nil, nil
}

func cmdVerbose(_ context.Context, s *Session, args []string) (Interaction, error) {
	switch {
	case len(args) == 0:
		s.SetVerbose(!s.verbose)
	case len(args) == 1 && args[0] == "on":
		s.SetVerbose(true)
	case len(args) == 1 && args[0] == "off":
		s.SetVerbose(false)
	default:
		return nil, &ParseError{Value: strings.Join(args, " "), Expected: "verbose [on|off]"}
	}
	state := "off"
	if s.verbose {
		state = "on"
	}
	s.notice("Verbose mode " + state)
	return nil, nil
}

func cmdReconnect(context.Context, *Session, []string) (Interaction, error) {
	return nil, fmt.Errorf("%w: reconnect requested", backend.ErrConnectionLost)
}

func cmdHelp(_ context.Context, s *Session, args []string) (Interaction, error) {
	if len(args) == 0 {
		s.printf("Commands:\n")
		for _, c := range s.dispatcher.Commands() {
			s.printf("%s\n", c.HelpLine())
		}
		return nil, nil
	}

	c, ok := s.dispatcher.Lookup(args[0])
	if !ok {
		return nil, s.dispatcher.unknown(args[0])
	}
	s.printf("%s\n    %s\n", c.Usage, c.Short)
	if c.Long != "" {
		s.printf("\n%s\n", c.Long)
	}
	return nil, nil
}
