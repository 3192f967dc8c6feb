// Package stream separates a model's streamed reply into a reasoning
// transcript and an answer, rendering both while fragments arrive.
package stream

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"google.golang.org/api/iterator"
)

const (
	OpenMarker = "<thinking>"
	Delimiter  = "</thinking>"
	Cursor     = "▌"

	// FailureContent is persisted instead of a partial answer when the stream breaks.
	FailureContent = "[System] Error occurred."

	// EmptyContent is persisted when a response ends with nothing but markers or whitespace.
	EmptyContent = "[System] The response contained no answer text."

	labelComplete   = "[System] Thinking Process Complete"
	labelNoDelim    = "[System] Response ended without a </thinking> marker"
	labelError      = "[System] Error"
	errorTextPrefix = "[System] Connection Error: "
)

// Done is returned by Fragments.Next once the stream has ended normally.
var Done = iterator.Done

type Phase int

const (
	PhaseThinking Phase = iota
	PhaseAnswer
)

func (p Phase) String() string {
	switch p {
	case PhaseThinking:
		return "thinking"
	case PhaseAnswer:
		return "answer"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Outcome names how a generation call ended.
type Outcome string

const (
	OutcomeAnswered    Outcome = "answered"
	OutcomeNoDelimiter Outcome = "no_delimiter"
	OutcomeFailed      Outcome = "failed"
)

type StatusState string

const (
	StatusRunning  StatusState = "running"
	StatusComplete StatusState = "complete"
	StatusError    StatusState = "error"
)

// StatusUpdate is one render of the reasoning/status region.
type StatusUpdate struct {
	Label     string      `json:"label"`
	Body      string      `json:"body,omitempty"`
	State     StatusState `json:"state"`
	Collapsed bool        `json:"collapsed"`
}

// Sink receives live renders. Every call replaces the previous render of
// the same region.
type Sink interface {
	UpdateStatus(u StatusUpdate)
	UpdateAnswer(text string)
	Error(text string)
}

// Fragments yields the text chunks of one generation call in order.
// Next returns Done at the natural end of the stream and any other error
// on transport failure.
type Fragments interface {
	Next() (string, error)
}

// Result describes a finished generation call.
type Result struct {
	Phase        Phase
	Outcome      Outcome
	Reasoning    string
	Answer       string
	Persisted    string
	FullResponse string
	Fragments    int
	Err          error
}

// Splitter is a two-state machine over a growing buffer. It is not safe
// for concurrent use; one goroutine owns a Splitter for the length of a call.
type Splitter struct {
	sink      Sink
	phase     Phase
	full      strings.Builder
	thinking  strings.Builder
	answer    strings.Builder
	reasoning string
	fragments int
}

func NewSplitter(sink Sink) *Splitter {
	return &Splitter{sink: sink, phase: PhaseThinking}
}

func (s *Splitter) Phase() Phase { return s.phase }

// Feed consumes the next fragment.
func (s *Splitter) Feed(fragment string) {
	if fragment == "" {
		return
	}
	s.fragments++
	s.full.WriteString(fragment)

	if s.phase == PhaseAnswer {
		s.answer.WriteString(fragment)
		s.sink.UpdateAnswer(s.answer.String() + Cursor)
		return
	}

	// Only the tail that could hold a new delimiter needs scanning.
	from := s.thinking.Len() - len(Delimiter) + 1
	if from < 0 {
		from = 0
	}
	s.thinking.WriteString(fragment)
	buf := s.thinking.String()

	s.sink.UpdateStatus(StatusUpdate{
		Label: fmt.Sprintf("[System] Thinking... (%d chars generated)", utf8.RuneCountInString(buf)),
		State: StatusRunning,
	})

	idx := strings.Index(buf[from:], Delimiter)
	if idx < 0 {
		return
	}
	idx += from

	before, after := buf[:idx], buf[idx+len(Delimiter):]
	s.reasoning = cleanReasoning(before)
	s.sink.UpdateStatus(StatusUpdate{
		Label:     labelComplete,
		Body:      s.reasoning,
		State:     StatusComplete,
		Collapsed: true,
	})
	s.phase = PhaseAnswer

	if after != "" {
		s.answer.WriteString(after)
		s.sink.UpdateAnswer(s.answer.String() + Cursor)
	}
}

// Finish closes the call after the stream ended normally. The final answer
// render is the persisted content, so the region and the history agree.
func (s *Splitter) Finish() Result {
	res := s.result()
	if s.phase == PhaseThinking {
		s.sink.UpdateStatus(StatusUpdate{
			Label:     labelNoDelim,
			Body:      cleanReasoning(s.thinking.String()),
			State:     StatusComplete,
			Collapsed: true,
		})
		res.Outcome = OutcomeNoDelimiter
		res.Persisted = nonEmpty(strings.TrimSpace(stripMarkers(res.FullResponse)))
	} else {
		res.Outcome = OutcomeAnswered
		res.Persisted = nonEmpty(stripMarkers(res.Answer))
	}

	s.sink.UpdateAnswer(res.Persisted)
	return res
}

// Fail closes the call after a transport error. Whatever was accumulated
// is dropped from the persisted content.
func (s *Splitter) Fail(err error) Result {
	s.sink.UpdateStatus(StatusUpdate{
		Label:     labelError,
		State:     StatusError,
		Collapsed: true,
	})
	s.sink.Error(errorTextPrefix + err.Error())

	res := s.result()
	res.Outcome = OutcomeFailed
	res.Persisted = FailureContent
	res.Err = err
	return res
}

func (s *Splitter) result() Result {
	return Result{
		Phase:        s.phase,
		Reasoning:    s.reasoning,
		Answer:       s.answer.String(),
		FullResponse: s.full.String(),
		Fragments:    s.fragments,
	}
}

// Run drains src through a new Splitter and hands the content to persist
// to finalize before returning.
func Run(src Fragments, sink Sink, finalize func(content string)) Result {
	sp := NewSplitter(sink)

	var res Result
	for {
		fragment, err := src.Next()
		if errors.Is(err, Done) {
			res = sp.Finish()
			break
		}
		if err != nil {
			res = sp.Fail(err)
			break
		}
		sp.Feed(fragment)
	}

	if finalize != nil {
		finalize(res.Persisted)
	}
	return res
}

// FailedStream is a source whose first Next reports err. It lets a failure
// to open a stream take the same path as a failure midway through one.
func FailedStream(err error) Fragments {
	return failed{err: err}
}

type failed struct{ err error }

func (f failed) Next() (string, error) { return "", f.err }

func cleanReasoning(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, OpenMarker, ""))
}

func nonEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return EmptyContent
	}
	return s
}

func stripMarkers(s string) string {
	s = strings.ReplaceAll(s, Delimiter, "")
	return strings.ReplaceAll(s, OpenMarker, "")
}
