package session

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// Command binds a verb to its handler and help text.
type Command struct {
	// Name is the verb typed at the prompt.
	Name string
	// Usage shows the verb with its arguments, e.g. "count <project|all> [groupby k1,k2]".
	Usage string
	// Short is the one-line summary used by completion and the general help.
	Short string
	// Long is the full help body shown by "help <verb>".
	Long string
	// Run executes the verb. It may return an Interaction when follow-up
	// questions are needed.
	Run func(ctx context.Context, s *Session, args []string) (Interaction, error)
}

// HelpLine returns the command's line in the general usage listing.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-44s %s", c.Usage, c.Short)
}

// Dispatcher resolves verbs to commands.
type Dispatcher struct {
	commands map[string]*Command
	names    []string
}

// NewDispatcher builds the verb table. Later commands replace earlier ones
// registered under the same name.
func NewDispatcher(cmds ...*Command) *Dispatcher {
	d := &Dispatcher{commands: make(map[string]*Command, len(cmds))}
	for _, c := range cmds {
		d.commands[c.Name] = c
	}
	for name := range d.commands {
		d.names = append(d.names, name)
	}
	sort.Strings(d.names)
	return d
}

// Lookup returns the command registered for verb.
func (d *Dispatcher) Lookup(verb string) (*Command, bool) {
	c, ok := d.commands[verb]
	return c, ok
}

// Suggest returns every registered verb containing verb as a substring, sorted.
// When none does, verbs that verb misses by exactly one letter are returned, so
// "flter" still finds "filter".
func (d *Dispatcher) Suggest(verb string) []string {
	var out []string
	for _, name := range d.names {
		if strings.Contains(name, verb) {
			out = append(out, name)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, name := range d.names {
		if len(verb) == len(name)-1 && isSubsequence(verb, name) {
			out = append(out, name)
		}
	}
	return out
}

func isSubsequence(sub, s string) bool {
	if sub == "" {
		return false
	}
	i := 0
	for _, r := range s {
		if i < len(sub) && rune(sub[i]) == r {
			i++
		}
	}
	return i == len(sub)
}

// Commands returns the registered commands sorted by name.
func (d *Dispatcher) Commands() []*Command {
	out := make([]*Command, 0, len(d.names))
	for _, name := range d.names {
		out = append(out, d.commands[name])
	}
	return out
}

func (d *Dispatcher) unknown(verb string) error {
	return &UnknownCommandError{Verb: verb, Suggestions: d.Suggest(verb)}
}

// Dispatch splits line into a verb and arguments and runs the matching command.
// A blank line is a no-op.
func (d *Dispatcher) Dispatch(ctx context.Context, s *Session, line string) (Interaction, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}
	verb, args := fields[0], fields[1:]

	cmd, ok := d.Lookup(verb)
	if !ok {
		log.Debug().Str("session", s.ID).Str("verb", verb).Msg("Unknown command")
		return nil, d.unknown(verb)
	}

	log.Info().Str("session", s.ID).Str("verb", verb).Strs("args", args).Msg("Dispatching command")
	return cmd.Run(ctx, s, args)
}
