package query

import (
	"fmt"
	"slices"
)

// Direction is the ordering applied to a sort field.
type Direction int

const (
	// Descending is the default direction for a bare sort field.
	Descending Direction = iota
	Ascending
)

// String returns the long name used by `show sort`.
func (d Direction) String() string {
	if d == Ascending {
		return "ascending"
	}
	return "descending"
}

// Short returns the token form accepted by the sort command.
func (d Direction) Short() string {
	if d == Ascending {
		return "asc"
	}
	return "des"
}

// ParseDirection accepts the tokens "asc" and "des".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "asc":
		return Ascending, nil
	case "des":
		return Descending, nil
	}
	return Descending, fmt.Errorf("sort order must be in (asc, des), got %q", s)
}

// SortSpec maps sort fields to a direction. Setting a field twice keeps the last
// direction; the first-set position of the field is retained.
type SortSpec struct {
	fields []string
	dirs   map[string]Direction
}

// NewSortSpec creates an empty SortSpec.
func NewSortSpec() *SortSpec {
	return &SortSpec{dirs: make(map[string]Direction)}
}

// Set assigns dir to field.
func (s *SortSpec) Set(field string, dir Direction) {
	if _, ok := s.dirs[field]; !ok {
		s.fields = append(s.fields, field)
	}
	s.dirs[field] = dir
}

// Direction returns the direction for field and whether the field is set.
func (s *SortSpec) Direction(field string) (Direction, bool) {
	d, ok := s.dirs[field]
	return d, ok
}

// Fields returns the sort fields in the order they were first set.
func (s *SortSpec) Fields() []string {
	return slices.Clone(s.fields)
}

// Clear removes every sort field.
func (s *SortSpec) Clear() {
	s.fields = nil
	s.dirs = make(map[string]Direction)
}

// Len returns the number of sort fields.
func (s *SortSpec) Len() int {
	return len(s.fields)
}
