package query

import (
	"fmt"
	"regexp"
	"strings"
)

// MatchKind classifies how a filter key constrains a document field.
type MatchKind int

const (
	Literal MatchKind = iota
	Regex
	OneOf
)

func (k MatchKind) String() string {
	switch k {
	case Regex:
		return "regex"
	case OneOf:
		return "oneOf"
	default:
		return "literal"
	}
}

// MatchRule is the backend-agnostic constraint for one key.
// Value carries the literal or the regex pattern; Values carries the OneOf set.
type MatchRule struct {
	Kind   MatchKind
	Value  string
	Values []string
}

// Constraint pairs a filter key with its rule.
type Constraint struct {
	Key  string
	Rule MatchRule
}

// QuerySpec is the translated form of a FilterStore, in filter insertion order.
// An empty QuerySpec matches every document.
type QuerySpec []Constraint

// regexValue matches a slash-delimited pattern such as /^a.*/.
var regexValue = regexp.MustCompile(`^/([^/]+)/$`)

// Translate converts the filter state into a QuerySpec. Every key in the store
// produces exactly one constraint.
func Translate(f *FilterStore) QuerySpec {
	spec := make(QuerySpec, 0, f.Len())
	for _, key := range f.keys {
		spec = append(spec, Constraint{Key: key, Rule: classify(f.values[key])})
	}
	return spec
}

func classify(vals []string) MatchRule {
	if len(vals) > 1 {
		out := make([]string, len(vals))
		copy(out, vals)
		return MatchRule{Kind: OneOf, Values: out}
	}
	v := vals[0]
	if m := regexValue.FindStringSubmatch(v); m != nil {
		return MatchRule{Kind: Regex, Value: m[1]}
	}
	return MatchRule{Kind: Literal, Value: v}
}

// Lookup returns the rule for key, if any.
func (q QuerySpec) Lookup(key string) (MatchRule, bool) {
	for _, c := range q {
		if c.Key == key {
			return c.Rule, true
		}
	}
	return MatchRule{}, false
}

// String renders the spec on one line for verbose echoes and logs.
func (q QuerySpec) String() string {
	if len(q) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(q))
	for _, c := range q {
		parts = append(parts, fmt.Sprintf("%s: %s", c.Key, c.Rule))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (r MatchRule) String() string {
	switch r.Kind {
	case Regex:
		return "/" + r.Value + "/"
	case OneOf:
		quoted := make([]string, len(r.Values))
		for i, v := range r.Values {
			quoted[i] = fmt.Sprintf("%q", v)
		}
		return "in[" + strings.Join(quoted, " ") + "]"
	default:
		return fmt.Sprintf("%q", r.Value)
	}
}
