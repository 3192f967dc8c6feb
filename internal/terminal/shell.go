package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"

	"tutor-backend/internal/models"
	"tutor-backend/internal/services"
	"tutor-backend/internal/session"
	"tutor-backend/internal/stream"
)

type tutorService interface {
	Ask(ctx context.Context, sess *session.Session, text string, sink stream.Sink) (stream.Result, error)
	Reset(sess *session.Session) error
}

// PageReader returns the text of one page of the reference document.
type PageReader func(page int) (string, error)

const helpText = `Commands:
  /history   show the conversation so far
  /reasoning show the reasoning of the last answer
  /page N    print the extracted text of textbook page N
  /reset     clear the conversation
  /help      show this help
  /quit      leave`

// Shell is a line-oriented chat loop over one session.
type Shell struct {
	tutor    tutorService
	sess     *session.Session
	pages    PageReader
	out      io.Writer
	tty      bool
	markdown *glamour.TermRenderer

	lastReasoning string
}

func NewShell(tutor tutorService, sess *session.Session, pages PageReader, out io.Writer, tty bool, markdown *glamour.TermRenderer) *Shell {
	return &Shell{
		tutor:    tutor,
		sess:     sess,
		pages:    pages,
		out:      out,
		tty:      tty,
		markdown: markdown,
	}
}

// Run reads questions from in until EOF, /quit, or ctx is done.
func (sh *Shell) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(sh.out, promptStyle.Render("you> "))
		if !scanner.Scan() {
			fmt.Fprintln(sh.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := sh.command(line); quit {
				return nil
			}
			continue
		}
		sh.ask(ctx, line)
	}
}

func (sh *Shell) ask(ctx context.Context, text string) {
	sink := NewSink(sh.out, sh.tty)
	res, err := sh.tutor.Ask(ctx, sh.sess, text, sink)
	if err != nil {
		var conflict *services.ConflictError
		if errors.As(err, &conflict) {
			fmt.Fprintln(sh.out, errorStyle.Render(conflict.Message))
			return
		}
		fmt.Fprintln(sh.out, errorStyle.Render(err.Error()))
		return
	}
	sink.Finish()
	sh.lastReasoning = res.Reasoning
}

// command runs a slash command and reports whether the shell should exit.
func (sh *Shell) command(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(sh.out, helpText)
	case "/reset":
		if err := sh.tutor.Reset(sh.sess); err != nil {
			fmt.Fprintln(sh.out, errorStyle.Render(err.Error()))
			return false
		}
		sh.lastReasoning = ""
		fmt.Fprintln(sh.out, dimStyle.Render("[System] Conversation cleared."))
	case "/history":
		sh.printHistory()
	case "/reasoning":
		if sh.lastReasoning == "" {
			fmt.Fprintln(sh.out, dimStyle.Render("[System] No reasoning recorded yet."))
			return false
		}
		fmt.Fprintln(sh.out, statusStyle.Render(sh.lastReasoning))
	case "/page":
		sh.printPage(fields[1:])
	default:
		fmt.Fprintln(sh.out, errorStyle.Render("Unknown command "+fields[0]))
		fmt.Fprintln(sh.out, helpText)
	}
	return false
}

func (sh *Shell) printHistory() {
	msgs := sh.sess.Messages()
	if len(msgs) == 0 {
		fmt.Fprintln(sh.out, dimStyle.Render("[System] No messages yet."))
		return
	}
	for _, m := range msgs {
		if m.Role == models.RoleUser {
			fmt.Fprintln(sh.out, promptStyle.Render("you> ")+m.Content)
			continue
		}
		if sh.tty {
			fmt.Fprint(sh.out, renderMarkdown(sh.markdown, m.Content))
		} else {
			fmt.Fprintln(sh.out, m.Content)
		}
	}
}

func (sh *Shell) printPage(args []string) {
	if sh.pages == nil {
		fmt.Fprintln(sh.out, errorStyle.Render("Page lookup is unavailable"))
		return
	}
	if len(args) != 1 {
		fmt.Fprintln(sh.out, errorStyle.Render("Usage: /page N"))
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintln(sh.out, errorStyle.Render("Usage: /page N"))
		return
	}

	text, err := sh.pages(n)
	if err != nil {
		fmt.Fprintln(sh.out, errorStyle.Render(err.Error()))
		return
	}
	if text == "" {
		text = "[System] Page has no extractable text."
	}
	fmt.Fprintln(sh.out, text)
}
