// Package shell provides line editing, history and completion for the query prompt.
package shell

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cosyq/internal/session"

	"github.com/peterh/liner"
	"github.com/rs/zerolog/log"
)

// Shell reads prompt input through liner. It implements session.LineReader.
type Shell struct {
	state       *liner.State
	historyFile string
	out         io.Writer
}

// Options configures a Shell.
type Options struct {
	// HistoryFile persists history between runs; empty keeps it in memory only.
	HistoryFile string
	// Completer completes the current line on tab.
	Completer *Completer
	// Out receives the leading lines of multi-line prompts.
	Out io.Writer
}

// Open puts the terminal in line-editing mode. Close must be called to restore it.
func Open(opts Options) *Shell {
	s := &Shell{
		state:       liner.NewLiner(),
		historyFile: opts.HistoryFile,
		out:         opts.Out,
	}
	if s.out == nil {
		s.out = os.Stdout
	}

	s.state.SetCtrlCAborts(true)
	if opts.Completer != nil {
		s.state.SetCompleter(opts.Completer.Complete)
	}

	if s.historyFile != "" {
		if f, err := os.Open(s.historyFile); err == nil {
			if _, err := s.state.ReadHistory(f); err != nil {
				log.Warn().Err(err).Str("path", s.historyFile).Msg("Failed to read history")
			}
			f.Close()
		}
	}
	return s
}

// Prompt shows prompt and reads a line. A multi-line prompt prints all but its
// last line ahead of the editable line. Interrupts and end of input are
// reported as session.ErrAborted.
func (s *Shell) Prompt(prompt string) (string, error) {
	head, tail := "", prompt
	if i := strings.LastIndex(prompt, "\n"); i >= 0 {
		head, tail = prompt[:i+1], prompt[i+1:]
	}
	if head != "" {
		fmt.Fprint(s.out, head)
	}

	line, err := s.state.Prompt(tail)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return "", session.ErrAborted
		}
		return "", err
	}

	// Answers to follow-up questions stay out of the history.
	if head == "" && strings.TrimSpace(line) != "" {
		s.state.AppendHistory(line)
	}
	return line, nil
}

// Close saves the history and restores the terminal.
func (s *Shell) Close() error {
	defer s.state.Close()

	if s.historyFile == "" {
		return nil
	}
	f, err := os.Create(s.historyFile)
	if err != nil {
		return fmt.Errorf("saving history: %w", err)
	}
	defer f.Close()
	if _, err := s.state.WriteHistory(f); err != nil {
		return fmt.Errorf("saving history: %w", err)
	}
	return nil
}
