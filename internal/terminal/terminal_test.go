package terminal

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"tutor-backend/internal/models"
	"tutor-backend/internal/services"
	"tutor-backend/internal/session"
	"tutor-backend/internal/stream"
)

type scriptedGenerator struct {
	frags []string
	err   error
}

func (g *scriptedGenerator) GenerateStream(ctx context.Context, doc *models.DocumentRef, userText string) (stream.Fragments, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &scriptedFragments{frags: g.frags}, nil
}

type scriptedFragments struct {
	frags []string
	pos   int
}

func (f *scriptedFragments) Next() (string, error) {
	if f.pos >= len(f.frags) {
		return "", stream.Done
	}
	f.pos++
	return f.frags[f.pos-1], nil
}

func newShell(t *testing.T, gen services.Generator, pages PageReader) (*Shell, *session.Session, *bytes.Buffer) {
	t.Helper()
	st := session.NewStore(0)
	t.Cleanup(st.Close)
	sess := st.Create(&models.DocumentRef{Name: "files/abc", URI: "https://x/files/abc"})

	var out bytes.Buffer
	return NewShell(services.NewTutorService(gen), sess, pages, &out, false, nil), sess, &out
}

func TestSink_WritesSettledStatusAndAnswer(t *testing.T) {
	var out bytes.Buffer
	sink := NewSink(&out, false)

	res := stream.Run(&scriptedFragments{frags: []string{"<thinking>Use Thm", " 2.1</thinking>Answer: ", "X = 5."}}, sink, func(string) {})
	sink.Finish()

	got := out.String()
	if strings.Contains(got, "Thinking...") {
		t.Errorf("progress labels should not be written off a terminal: %q", got)
	}
	if !strings.Contains(got, "Thinking Process Complete") {
		t.Errorf("expected settled status line, got %q", got)
	}
	if !strings.Contains(got, "Answer: X = 5.\n") {
		t.Errorf("expected streamed answer, got %q", got)
	}
	if strings.Contains(got, stream.Cursor) {
		t.Errorf("cursor should never be written: %q", got)
	}
	if sink.Reasoning() != "Use Thm 2.1" || res.Reasoning != "Use Thm 2.1" {
		t.Errorf("unexpected reasoning %q / %q", sink.Reasoning(), res.Reasoning)
	}
}

func TestSink_TerminalRedrawsProgressInPlace(t *testing.T) {
	var out bytes.Buffer
	sink := NewSink(&out, true)

	stream.Run(&scriptedFragments{frags: []string{"<thinking>ab", "cd</thinking>ok"}}, sink, func(string) {})

	got := out.String()
	if strings.Count(got, clearLine) < 2 {
		t.Errorf("expected in-place redraws, got %q", got)
	}
	if !strings.Contains(got, "Thinking... (") {
		t.Errorf("expected progress label, got %q", got)
	}
}

func TestSink_ErrorIsWritten(t *testing.T) {
	var out bytes.Buffer
	sink := NewSink(&out, false)

	stream.Run(stream.FailedStream(errors.New("boom")), sink, func(string) {})

	if !strings.Contains(out.String(), "[System] Connection Error: boom") {
		t.Errorf("expected error text, got %q", out.String())
	}
}

func TestShell_AsksAndRecordsHistory(t *testing.T) {
	sh, sess, out := newShell(t, &scriptedGenerator{frags: []string{"<thinking>Def 1.8</thinking>", "A basis spans."}}, nil)

	in := strings.NewReader("What is a basis?\n/reasoning\n/history\n/quit\nnever asked\n")
	if err := sh.Run(context.Background(), in); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if sess.Len() != 2 {
		t.Fatalf("expected 2 history entries, got %d", sess.Len())
	}
	got := out.String()
	if !strings.Contains(got, "A basis spans.") {
		t.Errorf("expected answer in output, got %q", got)
	}
	if !strings.Contains(got, "Def 1.8") {
		t.Errorf("expected reasoning in output, got %q", got)
	}
	if strings.Count(got, "What is a basis?") != 1 {
		t.Errorf("expected history to echo the question once, got %q", got)
	}
}

func TestShell_ResetClearsHistory(t *testing.T) {
	sh, sess, out := newShell(t, &scriptedGenerator{frags: []string{"<thinking>r</thinking>a"}}, nil)

	in := strings.NewReader("q\n/reset\n/history\n")
	if err := sh.Run(context.Background(), in); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if sess.Len() != 0 {
		t.Errorf("expected empty history, got %d", sess.Len())
	}
	if !strings.Contains(out.String(), "No messages yet") {
		t.Errorf("expected empty history notice, got %q", out.String())
	}
}

func TestShell_PageCommand(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"valid page", "/page 3\n", "text of page 3"},
		{"missing number", "/page\n", "Usage: /page N"},
		{"not a number", "/page x\n", "Usage: /page N"},
		{"out of range", "/page 99\n", "out of range"},
	}

	pages := func(n int) (string, error) {
		if n > 10 {
			return "", errors.New("page 99 out of range 1..10")
		}
		return "text of page " + string(rune('0'+n)), nil
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sh, _, out := newShell(t, &scriptedGenerator{}, pages)
			if err := sh.Run(context.Background(), strings.NewReader(tc.input)); err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if !strings.Contains(out.String(), tc.want) {
				t.Errorf("expected %q in output, got %q", tc.want, out.String())
			}
		})
	}
}

func TestShell_OpenFailureIsRenderedAndPersisted(t *testing.T) {
	sh, sess, out := newShell(t, &scriptedGenerator{err: errors.New("quota exceeded")}, nil)

	if err := sh.Run(context.Background(), strings.NewReader("q\n")); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !strings.Contains(out.String(), "quota exceeded") {
		t.Errorf("expected error in output, got %q", out.String())
	}
	msgs := sess.Messages()
	if len(msgs) != 2 || msgs[1].Content != stream.FailureContent {
		t.Errorf("expected failure sentinel in history, got %+v", msgs)
	}
}

func TestShell_UnknownCommand(t *testing.T) {
	sh, _, out := newShell(t, &scriptedGenerator{}, nil)

	if err := sh.Run(context.Background(), strings.NewReader("/frobnicate\n")); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(out.String(), "Unknown command /frobnicate") {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestShell_NoDelimiterPrintsFallbackOnce(t *testing.T) {
	sh, sess, out := newShell(t, &scriptedGenerator{frags: []string{"<thinking>The kernel ", "is trivial."}}, nil)

	if err := sh.Run(context.Background(), strings.NewReader("q\n")); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if n := strings.Count(out.String(), "The kernel is trivial."); n != 1 {
		t.Errorf("Expected fallback printed once, got %d in %q", n, out.String())
	}
	if msgs := sess.Messages(); msgs[1].Content != "The kernel is trivial." {
		t.Errorf("Unexpected persisted reply %q", msgs[1].Content)
	}
}
