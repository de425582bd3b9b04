// Package prompt reads operator answers from a terminal.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Confirmer gates destructive operations behind an explicit yes.
type Confirmer interface {
	Confirm(question string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(question string) bool

func (f ConfirmFunc) Confirm(question string) bool { return f(question) }

var (
	// Yes confirms every question. Used for --force.
	Yes Confirmer = ConfirmFunc(func(string) bool { return true })
	// No declines every question.
	No Confirmer = ConfirmFunc(func(string) bool { return false })
)

// Terminal prompts on out and reads answers line by line from in.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminal returns a Terminal over the given streams.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

// ReadLine prints label and returns the next input line without its line
// ending. io.EOF is returned only when no input remains at all.
func (t *Terminal) ReadLine(label string) (string, error) {
	if label != "" {
		fmt.Fprint(t.out, label)
	}
	line, err := t.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Confirm asks a yes/no question defaulting to no.
func (t *Terminal) Confirm(question string) bool {
	answer, err := t.ReadLine(question + " (y/N): ")
	if err != nil {
		fmt.Fprintln(t.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// Force returns Yes when force is set and fallback otherwise.
func Force(force bool, fallback Confirmer) Confirmer {
	if force {
		return Yes
	}
	return fallback
}
