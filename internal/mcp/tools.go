package mcp

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"cosyq/internal/count"
	"cosyq/internal/query"
)

func (s *Server) listTools() interface{} {
	return map[string]interface{}{
		"tools": []interface{}{
			map[string]interface{}{
				"name":        "list_projects",
				"description": "List the annotation projects available in the datastore.",
				"inputSchema": map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{},
				},
			},
			map[string]interface{}{
				"name": "count_annotations",
				"description": "Count annotations matching the filters in one or more projects, optionally grouped by annotation fields. " +
					"A filter value wrapped in slashes (/^foo/) is a regular expression; several values for one key match any of them.",
				"inputSchema": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"projects": map[string]interface{}{
							"type":        "string",
							"description": "A project name, a comma-separated list, or 'all'",
						},
						"filters": map[string]interface{}{
							"type":                 "object",
							"description":          "Field name to accepted values",
							"additionalProperties": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
						},
						"group_by": map[string]interface{}{
							"type":  "array",
							"items": map[string]interface{}{"type": "string"},
						},
						"sort": map[string]interface{}{
							"type":        "array",
							"description": "Ordering of grouped rows as field[:asc|des]; 'count' orders by the count",
							"items":       map[string]interface{}{"type": "string"},
						},
					},
					"required": []string{"projects"},
				},
			},
		},
	}
}

// CountArgs are the arguments of the count_annotations tool.
type CountArgs struct {
	Projects string              `json:"projects"`
	Filters  map[string][]string `json:"filters"`
	GroupBy  []string            `json:"group_by"`
	Sort     []string            `json:"sort"`
}

// Request converts the arguments into a count request. Filter keys are applied
// in alphabetical order so the resulting query is stable.
func (a CountArgs) Request() (count.Request, error) {
	sel, err := count.ParseSelector(a.Projects)
	if err != nil {
		return count.Request{}, err
	}

	filters := query.NewFilterStore()
	keys := make([]string, 0, len(a.Filters))
	for k := range a.Filters {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, key := range keys {
		for _, v := range a.Filters[key] {
			filters.Add(key, v)
		}
	}

	spec := query.NewSortSpec()
	for _, token := range a.Sort {
		field, dirText, hasDir := strings.Cut(token, ":")
		dir := query.Descending
		if hasDir {
			if dir, err = query.ParseDirection(dirText); err != nil {
				return count.Request{}, err
			}
		}
		if field == "" {
			return count.Request{}, fmt.Errorf("empty sort field in %q", token)
		}
		spec.Set(field, dir)
	}

	return count.Request{
		Selector:  sel,
		Query:     query.Translate(filters),
		GroupKeys: a.GroupBy,
		Sort:      spec,
	}, nil
}

func (s *Server) handleCount(ctx context.Context, args CountArgs) (interface{}, error) {
	req, err := args.Request()
	if err != nil {
		return nil, err
	}
	results, err := s.engine.Count(ctx, req)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"query":   req.Query.String(),
		"results": results,
	}, nil
}
