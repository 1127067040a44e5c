// Package prompt handles interactive confirmation with no-prompt mode
// support. Restore is destructive, so it is gated behind a prompt unless the
// caller explicitly opts out.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoPromptMode is returned when a required confirmation cannot be asked
// because interactive prompts are disabled and no explicit consent was given.
var ErrNoPromptMode = errors.New("interactive prompts disabled (--no-prompt / -y)")

// Confirmer asks yes/no questions with injectable IO.
type Confirmer struct {
	Reader   io.Reader
	Writer   io.Writer
	NoPrompt bool
	Assume   bool // explicit consent (-y): skip the question, answer yes
}

// Confirm asks the question and returns the answer. With Assume set the
// question is skipped and the answer is yes. In no-prompt mode without
// Assume, it returns ErrNoPromptMode rather than guessing.
func (c *Confirmer) Confirm(question string) (bool, error) {
	if c.Assume {
		return true, nil
	}
	if c.NoPrompt {
		return false, ErrNoPromptMode
	}

	writer := c.Writer
	if writer == nil {
		writer = io.Discard
	}

	_, _ = fmt.Fprintf(writer, "%s [y/N]: ", question)

	scanner := bufio.NewScanner(c.Reader)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return false, err
		}
		return false, nil
	}

	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes", nil
}
