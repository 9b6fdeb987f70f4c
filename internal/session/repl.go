package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cosyq/internal/backend"

	"github.com/rs/zerolog/log"
)

// Farewell is printed when the session ends normally.
const Farewell = "See you soon!"

// Run reads lines from r until the user exits or aborts, dispatching each one.
// Command failures are reported and the loop continues; only a failure of r
// itself or a cancelled ctx ends Run with an error.
func (s *Session) Run(ctx context.Context, r LineReader, prompt string) error {
	log.Info().Str("session", s.ID).Msg("Session started")
	defer log.Info().Str("session", s.ID).Msg("Session ended")

	for {
		line, err := r.Prompt(prompt)
		if err != nil {
			if errors.Is(err, ErrAborted) || errors.Is(err, io.EOF) {
				s.notice(Farewell)
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		done, err := s.Execute(ctx, r, line)
		if done {
			return err
		}
	}
}

// Execute runs one input line to completion, resolving any follow-up questions
// through r. It reports whether the session should end.
func (s *Session) Execute(ctx context.Context, r LineReader, line string) (bool, error) {
	if strings.TrimSpace(line) == "" {
		return false, nil
	}

	it, err := s.dispatcher.Dispatch(ctx, s, line)
	if err == nil {
		err = Drive(ctx, r, it)
	}
	if err == nil {
		return false, nil
	}
	return s.handle(ctx, err)
}

func (s *Session) handle(ctx context.Context, err error) (bool, error) {
	var (
		parseErr   *ParseError
		precondErr *PreconditionError
		unknownErr *UnknownCommandError
	)

	switch {
	case errors.Is(err, ErrExit), errors.Is(err, ErrAborted), errors.Is(err, io.EOF):
		s.notice(Farewell)
		return true, nil
	case ctx.Err() != nil:
		return true, ctx.Err()
	case backend.IsTransient(err):
		if rerr := s.reconnect(ctx, err); rerr != nil {
			return true, rerr
		}
	case errors.As(err, &parseErr):
		s.problem(fmt.Sprintf("Bad input '%s', expected format is '%s'", parseErr.Value, parseErr.Expected))
	case errors.As(err, &precondErr):
		s.problem("Bad input value: " + precondErr.Msg)
	case errors.As(err, &unknownErr):
		if len(unknownErr.Suggestions) == 0 {
			s.problem(`I don't understand ¯\(°_o)/¯`)
			break
		}
		s.problem("Do you mean?:")
		for _, name := range unknownErr.Suggestions {
			s.printf("    %s\n", name)
		}
	case errors.Is(err, ErrNotImplemented):
		s.problem("Functionality not yet implemented... :-(")
	case errors.Is(err, backend.ErrUnknownProject):
		s.problem(fmt.Sprintf("%s (see `projects`)", capitalize(err.Error())))
	default:
		log.Error().Err(err).Str("session", s.ID).Msg("Command failed")
		s.problem("Error: " + err.Error())
	}
	return false, nil
}

// reconnect waits out the backoff and asks the backend to re-establish its
// connection. The failed command is not retried and session state is kept.
func (s *Session) reconnect(ctx context.Context, cause error) error {
	log.Warn().Err(cause).Str("session", s.ID).Dur("backoff", s.backoff).Msg("Backend connection lost")
	s.notice(fmt.Sprintf("Reconnecting... in %d seconds", int(s.backoff.Seconds())))

	if err := s.sleep(ctx, s.backoff); err != nil {
		return err
	}

	rc, ok := s.backend.(backend.Reconnector)
	if !ok {
		return nil
	}
	if err := rc.Reconnect(ctx); err != nil {
		log.Warn().Err(err).Str("session", s.ID).Msg("Reconnect failed")
		s.problem("Reconnect failed: " + err.Error())
	}
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// plainRenderer is used when no Renderer is configured.
type plainRenderer struct {
	w io.Writer
}

func (p plainRenderer) Count(project string, total int64) {
	fmt.Fprintf(p.w, "Found [%d] annotations in project [%s]\n", total, project)
}

func (p plainRenderer) Groups(project string, keys []string, rows []backend.GroupRow) {
	fmt.Fprintf(p.w, "Project [%s]\n", project)
	fmt.Fprintf(p.w, "%s\tcount\n", strings.Join(keys, "\t"))
	for _, row := range rows {
		fmt.Fprintf(p.w, "%s\t%d\n", strings.Join(row.Values, "\t"), row.Count)
	}
}
