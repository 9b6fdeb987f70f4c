package session

import (
	"context"
	"strings"
)

// LineReader reads one line of user input after showing a prompt.
// Implementations return ErrAborted when the user interrupts input.
type LineReader interface {
	Prompt(prompt string) (string, error)
}

// Step is a question that must be answered before a command can finish.
// Resume consumes the answer and returns a follow-up step, or nil once resolved.
type Step struct {
	Prompt string
	Resume func(answer string) *Step
}

// Interaction produces the pending steps of one command invocation, lazily:
// Next is only called again after the previous step has been resolved, so a
// command observes the effect of earlier answers when preparing later questions.
// Next returns nil when the command is complete.
type Interaction interface {
	Next() *Step
}

// Drive resolves every step of it by prompting r, until the command completes.
// A step is re-asked for as long as its Resume keeps returning a step.
func Drive(ctx context.Context, r LineReader, it Interaction) error {
	if it == nil {
		return nil
	}

	for step := it.Next(); step != nil; step = it.Next() {
		for step != nil {
			if err := ctx.Err(); err != nil {
				return err
			}
			answer, err := r.Prompt(step.Prompt + "\n")
			if err != nil {
				return err
			}
			step = step.Resume(strings.TrimSpace(answer))
		}
	}
	return nil
}
