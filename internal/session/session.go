// Package session holds the interactive query state and the verbs that act on it.
package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"cosyq/internal/backend"
	"cosyq/internal/count"
	"cosyq/internal/query"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultReconnectBackoff is the pause taken after a transient backend failure.
const DefaultReconnectBackoff = 3 * time.Second

// Renderer presents count results.
type Renderer interface {
	// Count prints a scalar count for project.
	Count(project string, total int64)
	// Groups prints the rows of a grouped count for project.
	Groups(project string, keys []string, rows []backend.GroupRow)
}

// Messenger is optionally implemented by a Renderer that styles user-facing
// notices. Without it, messages are written to the session output as plain lines.
type Messenger interface {
	Notice(msg string)
	Problem(msg string)
}

// ExportFunc writes results to path. The format is chosen by the implementation.
type ExportFunc func(path string, req count.Request, results count.Results) error

// Options configures a Session.
type Options struct {
	Backend  backend.Backend
	Engine   *count.Engine
	Renderer Renderer
	Export   ExportFunc
	Out      io.Writer
	Verbose  bool

	// ReconnectBackoff defaults to DefaultReconnectBackoff.
	ReconnectBackoff time.Duration
	// Sleep waits out the reconnect backoff. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	// Commands overrides the verb table; Builtins() when nil.
	Commands []*Command
}

// Session is the state of one interactive query session.
type Session struct {
	ID      string
	Filters *query.FilterStore
	Sort    *query.SortSpec

	verbose    bool
	backend    backend.Backend
	engine     *count.Engine
	render     Renderer
	export     ExportFunc
	out        io.Writer
	dispatcher *Dispatcher
	backoff    time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// New creates a session with empty filters and sort criteria.
func New(opts Options) *Session {
	s := &Session{
		ID:      uuid.NewString(),
		Filters: query.NewFilterStore(),
		Sort:    query.NewSortSpec(),
		backend: opts.Backend,
		engine:  opts.Engine,
		render:  opts.Renderer,
		export:  opts.Export,
		out:     opts.Out,
		backoff: opts.ReconnectBackoff,
		sleep:   opts.Sleep,
	}
	if s.out == nil {
		s.out = os.Stdout
	}
	if s.render == nil {
		s.render = plainRenderer{w: s.out}
	}
	if s.engine == nil {
		s.engine = count.NewEngine(opts.Backend, count.Options{Parallelism: 1, Strict: true})
	}
	if s.backoff <= 0 {
		s.backoff = DefaultReconnectBackoff
	}
	if s.sleep == nil {
		s.sleep = sleepContext
	}
	cmds := opts.Commands
	if cmds == nil {
		cmds = Builtins()
	}
	s.dispatcher = NewDispatcher(cmds...)
	s.SetVerbose(opts.Verbose)

	log.Debug().Str("session", s.ID).Bool("verbose", s.verbose).Msg("Session created")
	return s
}

// Dispatcher returns the verb table of the session.
func (s *Session) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// Verbose reports whether the active query is echoed after mutations and before counts.
func (s *Session) Verbose() bool {
	return s.verbose
}

// SetVerbose toggles the query echo.
func (s *Session) SetVerbose(v bool) {
	s.verbose = v
	if v {
		s.engine.SetEcho(s.out)
	} else {
		s.engine.SetEcho(nil)
	}
}

// Query returns the translation of the current filters.
func (s *Session) Query() query.QuerySpec {
	return query.Translate(s.Filters)
}

func (s *Session) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *Session) notice(msg string) {
	if m, ok := s.render.(Messenger); ok {
		m.Notice(msg)
		return
	}
	fmt.Fprintln(s.out, msg)
}

func (s *Session) problem(msg string) {
	if m, ok := s.render.(Messenger); ok {
		m.Problem(msg)
		return
	}
	fmt.Fprintln(s.out, msg)
}

func (s *Session) echoQuery() {
	if s.verbose {
		fmt.Fprintln(s.out, s.Query().String())
	}
}

func (s *Session) addFilter(key, value string) {
	s.Filters.Add(key, value)
	s.echoQuery()
}

func (s *Session) replaceFilter(key, value string) {
	s.Filters.Replace(key, value)
	s.echoQuery()
}

func (s *Session) clearFilter(key string) {
	if s.Filters.ClearKey(key) {
		s.notice("Cleared filter " + key)
		s.echoQuery()
	}
}

func (s *Session) clearFilters() {
	s.Filters.ClearAll()
	s.notice("Cleared all filters")
	s.echoQuery()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
