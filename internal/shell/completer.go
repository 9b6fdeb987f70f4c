package shell

import (
	"sort"
	"strings"
)

// Completer proposes completions for the verb and for fixed argument words.
type Completer struct {
	verbs []string
	args  map[string][]string
}

// NewCompleter completes verbs from the given list.
func NewCompleter(verbs ...string) *Completer {
	v := append([]string(nil), verbs...)
	sort.Strings(v)
	return &Completer{verbs: v, args: make(map[string][]string)}
}

// Args registers the words completed after verb.
func (c *Completer) Args(verb string, words ...string) *Completer {
	c.args[verb] = words
	return c
}

// Complete returns full-line candidates for line.
func (c *Completer) Complete(line string) []string {
	fields := strings.Fields(line)
	trailingSpace := strings.HasSuffix(line, " ")

	if len(fields) == 0 || (len(fields) == 1 && !trailingSpace) {
		prefix := ""
		if len(fields) == 1 {
			prefix = strings.ToLower(fields[0])
		}
		var out []string
		for _, v := range c.verbs {
			if strings.HasPrefix(v, prefix) {
				out = append(out, v)
			}
		}
		return out
	}

	words, ok := c.args[fields[0]]
	if !ok {
		return nil
	}
	partial := ""
	done := fields
	if !trailingSpace {
		partial = fields[len(fields)-1]
		done = fields[:len(fields)-1]
	}
	base := strings.Join(done, " ") + " "

	var out []string
	for _, w := range words {
		if strings.HasPrefix(w, partial) {
			out = append(out, base+w)
		}
	}
	return out
}
