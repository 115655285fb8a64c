// Package console prints agent status lines and asks the operator questions.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/huh"
	"github.com/fatih/color"
)

// Kind classifies a status line
type Kind int

const (
	KindInfo Kind = iota
	KindTest
	KindIssue
)

func (k Kind) String() string {
	switch k {
	case KindInfo:
		return "info"
	case KindTest:
		return "test"
	case KindIssue:
		return "issue"
	default:
		return "unknown"
	}
}

// Reporter shows agent progress to the operator
type Reporter interface {
	Report(kind Kind, position, message string)
}

// ColorReporter prints "Agent::<position>: <message>" lines, blue for info,
// yellow for tests and red for issues.
type ColorReporter struct {
	mu     sync.Mutex
	out    io.Writer
	colors map[Kind]*color.Color
}

// NewColorReporter creates a reporter writing to out
func NewColorReporter(out io.Writer) *ColorReporter {
	return &ColorReporter{
		out: out,
		colors: map[Kind]*color.Color{
			KindInfo:  color.New(color.FgBlue, color.Bold),
			KindTest:  color.New(color.FgYellow, color.Bold),
			KindIssue: color.New(color.FgRed, color.Bold),
		},
	}
}

// Report implements Reporter
func (r *ColorReporter) Report(kind Kind, position, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.colors[kind]
	if !ok {
		c = r.colors[KindInfo]
	}
	_, _ = c.Fprintf(r.out, "Agent::%s: %s\n", position, message)
}

// Confirmer asks the operator a yes/no question
type Confirmer interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// PromptConfirmer asks on the terminal
type PromptConfirmer struct{}

// Confirm implements Confirmer. An aborted prompt (Ctrl-C) counts as "no".
func (PromptConfirmer) Confirm(ctx context.Context, question string) (bool, error) {
	var ok bool
	confirm := huh.NewConfirm().
		Title(question).
		Affirmative("Yes").
		Negative("No").
		Value(&ok)

	if err := huh.NewForm(huh.NewGroup(confirm)).RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("confirmation prompt: %w", err)
	}
	return ok, nil
}

// AutoConfirmer answers yes to every question
type AutoConfirmer struct{}

// Confirm implements Confirmer
func (AutoConfirmer) Confirm(context.Context, string) (bool, error) {
	return true, nil
}

// AskDescription prompts for the project description
func AskDescription(ctx context.Context) (string, error) {
	var description string
	input := huh.NewInput().
		Title("What are we building today?").
		Value(&description).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("describe the project in a sentence or two")
			}
			return nil
		})

	if err := huh.NewForm(huh.NewGroup(input)).RunWithContext(ctx); err != nil {
		return "", fmt.Errorf("description prompt: %w", err)
	}
	return strings.TrimSpace(description), nil
}
