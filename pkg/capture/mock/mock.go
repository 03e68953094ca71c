// Package mock provides test doubles for the capture package interfaces.
//
// Use Recognizer to verify that the caller opens streams with the expected
// language tag. Use Stream to feed a programmed sequence of interim, final,
// error, and end events to a capture session.
//
// Example:
//
//	st := mock.NewStream(
//	    mock.Results(capture.Result{Text: "かば", IsFinal: false}),
//	    mock.Results(capture.Result{Text: "かばん", IsFinal: true, Confidence: 0.93}),
//	    mock.End(),
//	)
//	rec := &mock.Recognizer{Stream: st}
package mock

import (
	"context"
	"sync"

	"github.com/yomu-app/yomu/pkg/capture"
)

// ListenCall records a single invocation of Recognizer.Listen.
type ListenCall struct {
	// Ctx is the context passed to Listen.
	Ctx context.Context
	// LanguageTag is the language tag passed to Listen.
	LanguageTag string
}

// Recognizer is a mock implementation of capture.Recognizer.
type Recognizer struct {
	mu sync.Mutex

	// Unsupported makes Supported report false.
	Unsupported bool

	// Stream is the stream returned by Listen. If nil, Listen returns a new
	// empty Stream that emits only an end event.
	Stream capture.Stream

	// ListenErr, if non-nil, is returned as the error from Listen.
	ListenErr error

	// ListenCalls records every call to Listen.
	ListenCalls []ListenCall
}

// Supported reports the inverse of Unsupported.
func (r *Recognizer) Supported() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.Unsupported
}

// Listen records the call and returns Stream, ListenErr.
func (r *Recognizer) Listen(ctx context.Context, languageTag string) (capture.Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ListenCalls = append(r.ListenCalls, ListenCall{Ctx: ctx, LanguageTag: languageTag})
	if r.ListenErr != nil {
		return nil, r.ListenErr
	}
	if r.Stream != nil {
		return r.Stream, nil
	}
	return NewStream(End()), nil
}

// ListenCallCount returns the number of Listen calls. Thread-safe.
func (r *Recognizer) ListenCallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ListenCalls)
}

// Ensure Recognizer implements capture.Recognizer at compile time.
var _ capture.Recognizer = (*Recognizer)(nil)

// Results builds an EventResults event carrying the given cumulative set.
func Results(results ...capture.Result) capture.Event {
	return capture.Event{Kind: capture.EventResults, Results: results}
}

// Error builds an EventError event with the given code.
func Error(code capture.ErrorCode) capture.Event {
	return capture.Event{Kind: capture.EventError, Code: code}
}

// End builds the terminating EventEnd event.
func End() capture.Event {
	return capture.Event{Kind: capture.EventEnd}
}

// Stream is a scripted capture.Stream. Events passed to NewStream are held
// until Fire (or FireAll) releases them, so tests control exactly when the
// consumer observes each step of the capture lifecycle.
type Stream struct {
	mu      sync.Mutex
	pending []capture.Event
	events  chan capture.Event
	closed  bool

	// StopCalls counts invocations of Stop.
	StopCalls int

	// AbortCalls counts invocations of Abort.
	AbortCalls int
}

// NewStream creates a scripted stream holding the given event sequence.
func NewStream(events ...capture.Event) *Stream {
	return &Stream{
		pending: events,
		events:  make(chan capture.Event, len(events)+8),
	}
}

// Events returns the event channel.
func (s *Stream) Events() <-chan capture.Event {
	return s.events
}

// Fire releases the next n pending events to the consumer. The channel is
// closed once the last pending event (which should be an End) is released.
func (s *Stream) Fire(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ; n > 0 && len(s.pending) > 0; n-- {
		s.events <- s.pending[0]
		s.pending = s.pending[1:]
	}
	if len(s.pending) == 0 && !s.closed {
		s.closed = true
		close(s.events)
	}
}

// FireAll releases every remaining pending event and closes the channel.
func (s *Stream) FireAll() {
	s.mu.Lock()
	n := len(s.pending)
	s.mu.Unlock()
	if n == 0 {
		s.Fire(1) // still closes the channel
		return
	}
	s.Fire(n)
}

// Inject delivers an extra event that was not part of the original script.
// Useful for simulating duplicate termination signals.
func (s *Stream) Inject(ev capture.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.events <- ev
	}
}

// Stop records the call. The scripted event sequence is unaffected — tests
// decide what a graceful stop yields by what they scripted.
func (s *Stream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StopCalls++
}

// Abort records the call and closes the event channel, discarding any
// pending events.
func (s *Stream) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AbortCalls++
	if !s.closed {
		s.closed = true
		s.pending = nil
		close(s.events)
	}
}

// Ensure Stream implements capture.Stream at compile time.
var _ capture.Stream = (*Stream)(nil)
