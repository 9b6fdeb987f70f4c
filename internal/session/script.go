package session

import (
	"fmt"
	"io"
)

// ScriptReader replays a fixed list of lines, answering prompts in order.
// It returns io.EOF once the lines are exhausted. Used for non-interactive runs.
type ScriptReader struct {
	lines []string
	pos   int
	echo  io.Writer
}

// NewScriptReader returns a reader over lines. When echo is not nil each prompt
// and the line answering it are written to it.
func NewScriptReader(echo io.Writer, lines ...string) *ScriptReader {
	return &ScriptReader{lines: lines, echo: echo}
}

// Prompt implements LineReader.
func (r *ScriptReader) Prompt(prompt string) (string, error) {
	if r.pos >= len(r.lines) {
		return "", io.EOF
	}
	line := r.lines[r.pos]
	r.pos++
	if r.echo != nil {
		fmt.Fprintf(r.echo, "%s%s\n", prompt, line)
	}
	return line, nil
}

// Prompts returns how many lines have been consumed.
func (r *ScriptReader) Prompts() int {
	return r.pos
}
