package session

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExit ends the session in an orderly way.
	ErrExit = errors.New("exit requested")

	// ErrAborted is returned by a LineReader when the user interrupts input.
	ErrAborted = errors.New("input aborted")

	// ErrNotImplemented marks reserved functionality. It is never a bug.
	ErrNotImplemented = errors.New("not implemented")
)

// ParseError reports a malformed argument and the shape that was expected.
type ParseError struct {
	Value    string
	Expected string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("bad input '%s', expected format is '%s'", e.Value, e.Expected)
}

// PreconditionError reports a command invoked with arguments that fail a check.
type PreconditionError struct {
	Msg string
}

func (e *PreconditionError) Error() string {
	return e.Msg
}

func precondition(ok bool, format string, args ...any) error {
	if ok {
		return nil
	}
	return &PreconditionError{Msg: fmt.Sprintf(format, args...)}
}

// UnknownCommandError is returned for a verb with no registered handler.
// Suggestions lists registered verbs containing the typed verb.
type UnknownCommandError struct {
	Verb        string
	Suggestions []string
}

func (e *UnknownCommandError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("command %q not understood", e.Verb)
	}
	return fmt.Sprintf("unknown command %q, did you mean: %s", e.Verb, strings.Join(e.Suggestions, ", "))
}
