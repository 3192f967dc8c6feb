// Package terminal renders tutor turns on a terminal.
package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"tutor-backend/internal/stream"
)

var (
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Italic(true)

	completeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("35"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

const clearLine = "\r\x1b[2K"

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Width returns the terminal width of f, or 80 when unknown.
func Width(f *os.File) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w < 40 {
		return 80
	}
	return w
}

// NewMarkdownRenderer returns a glamour renderer wrapped at width, or nil
// when one cannot be built.
func NewMarkdownRenderer(width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}

func renderMarkdown(r *glamour.TermRenderer, content string) string {
	if r == nil {
		return content + "\n"
	}
	out, err := r.Render(content)
	if err != nil {
		return content + "\n"
	}
	return out
}

// Sink writes one turn to out. On a terminal the thinking progress is
// redrawn in place; otherwise only the settled status line is written.
// Answer text is written incrementally as it grows.
type Sink struct {
	out io.Writer
	tty bool

	statusOpen bool
	printed    string
	reasoning  string
}

func NewSink(out io.Writer, tty bool) *Sink {
	return &Sink{out: out, tty: tty}
}

func (s *Sink) UpdateStatus(u stream.StatusUpdate) {
	switch u.State {
	case stream.StatusRunning:
		if !s.tty {
			return
		}
		fmt.Fprint(s.out, clearLine+statusStyle.Render(u.Label))
		s.statusOpen = true
	case stream.StatusComplete:
		s.reasoning = u.Body
		s.settle(completeStyle.Render(u.Label))
	case stream.StatusError:
		s.reasoning = u.Body
		s.settle(errorStyle.Render(u.Label))
	}
}

func (s *Sink) settle(line string) {
	if s.tty && s.statusOpen {
		fmt.Fprint(s.out, clearLine)
	}
	s.statusOpen = false
	fmt.Fprintln(s.out, line)
}

// UpdateAnswer writes the part of text not yet shown. The cursor glyph is
// never written.
func (s *Sink) UpdateAnswer(text string) {
	text = strings.TrimSuffix(text, stream.Cursor)
	if !strings.HasPrefix(text, s.printed) {
		// The region was redrawn with different content; start a new line.
		fmt.Fprintln(s.out)
		s.printed = ""
	}
	if delta := text[len(s.printed):]; delta != "" {
		fmt.Fprint(s.out, delta)
		s.printed = text
	}
}

func (s *Sink) Error(text string) {
	if s.statusOpen {
		s.settle("")
	}
	fmt.Fprintln(s.out, errorStyle.Render(text))
}

// Finish ends the answer line.
func (s *Sink) Finish() {
	if s.printed != "" {
		fmt.Fprintln(s.out)
	}
}

// Reasoning is the settled thinking body of the turn.
func (s *Sink) Reasoning() string {
	return s.reasoning
}
