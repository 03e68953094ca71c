package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// ErrUnsupported is returned by [Session.Start] when the host has no speech
// capture capability. Callers should check [Session.Supported] up front and
// hide voice features instead of hitting this error.
var ErrUnsupported = errors.New("capture: speech capture is not supported on this host")

// Snapshot is an immutable view of a [Session]'s transcript state, delivered
// to the update callback on every change.
//
// FinalText and InterimText are mutually exclusive: once any final text
// exists, interim text is cleared.
type Snapshot struct {
	// State is the lifecycle state at the time of the snapshot.
	State State

	// FinalText is the concatenation of all committed results, or the
	// promoted interim text when the capability ended without committing.
	FinalText string

	// InterimText is the concatenation of all provisional results.
	InterimText string

	// Confidence is taken from the last final result (0 when none reported).
	Confidence float64

	// Code is the capture failure, empty unless State is StateErrored.
	Code ErrorCode
}

// Session presents a uniform, restartable capture lifecycle over a
// [Recognizer], regardless of the quirks of the underlying capability: abrupt
// termination, interim-only output, and out-of-order or post-teardown events.
//
// At most one underlying stream is active at a time; Start aborts and
// supersedes any previous stream. Every stream is tagged with a generation
// number, and events from a superseded generation are provably inert.
//
// All methods are safe for concurrent use. The update callback is invoked
// without internal locks held and must do its own synchronisation.
type Session struct {
	rec      Recognizer
	onUpdate func(Snapshot)

	mu         sync.Mutex
	gen        uint64
	stream     Stream
	state      State
	finalText  string
	interim    string
	confidence float64
	code       ErrorCode
}

// Option is a functional option for configuring a [Session].
type Option func(*Session)

// WithUpdateFunc registers fn to receive a [Snapshot] after every state or
// transcript change. fn must not call back into the Session synchronously
// with blocking work; it is invoked from the session's event pump.
func WithUpdateFunc(fn func(Snapshot)) Option {
	return func(s *Session) {
		s.onUpdate = fn
	}
}

// NewSession creates a Session over the given recognizer. The session starts
// in [StateIdle] with empty transcript state.
func NewSession(rec Recognizer, opts ...Option) *Session {
	s := &Session{rec: rec, state: StateIdle}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Supported reports whether the underlying capability is available. When
// false, Start always fails with [ErrUnsupported].
func (s *Session) Supported() bool {
	return s.rec != nil && s.rec.Supported()
}

// Start begins a new capture attempt for languageTag.
//
// Any previously active stream is aborted and superseded before the new one
// opens — its remaining events are ignored. Transcript, confidence, and
// error state are reset on a successful start and the session transitions to
// [StateListening].
//
// When the capability is unsupported Start is a no-op on transcript state:
// it moves the session to [StateErrored] and returns [ErrUnsupported].
func (s *Session) Start(ctx context.Context, languageTag string) error {
	s.mu.Lock()
	if !s.Supported() {
		s.state = StateErrored
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snap)
		return ErrUnsupported
	}

	// Supersede any live stream. Bumping the generation first makes the old
	// pump's remaining events inert even if Abort races with them.
	s.gen++
	gen := s.gen
	if s.stream != nil {
		s.stream.Abort()
		s.stream = nil
	}

	s.finalText = ""
	s.interim = ""
	s.confidence = 0
	s.code = ""
	s.mu.Unlock()

	stream, err := s.rec.Listen(ctx, languageTag)

	s.mu.Lock()
	if gen != s.gen {
		// A newer Start superseded us while Listen was in flight.
		s.mu.Unlock()
		if stream != nil {
			stream.Abort()
		}
		return nil
	}
	if err != nil {
		s.state = StateErrored
		s.code = CodeUnknown
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snap)
		return fmt.Errorf("capture: start: %w", err)
	}
	s.stream = stream
	s.state = StateListening
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	go s.pump(gen, stream)
	return nil
}

// Stop requests graceful termination of the active capture. Finalization is
// not performed here — it is driven by the stream's own end signal, which
// the pump observes and reconciles. Stop is a no-op outside StateListening.
func (s *Session) Stop() {
	s.mu.Lock()
	stream := s.stream
	listening := s.state == StateListening
	s.mu.Unlock()

	if listening && stream != nil {
		stream.Stop()
	}
}

// Abort tears down the active capture immediately and returns the session to
// [StateIdle] without retaining any transcript state.
func (s *Session) Abort() {
	s.mu.Lock()
	s.gen++
	stream := s.stream
	s.stream = nil
	s.state = StateIdle
	s.finalText = ""
	s.interim = ""
	s.confidence = 0
	s.code = ""
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if stream != nil {
		stream.Abort()
	}
	s.notify(snap)
}

// Reset clears transcript, confidence, and error state between items. A
// finalized or errored session returns to [StateIdle]; a listening session
// keeps listening with cleared accumulation.
func (s *Session) Reset() {
	s.mu.Lock()
	s.finalText = ""
	s.interim = ""
	s.confidence = 0
	s.code = ""
	if s.state == StateFinalized || s.state == StateErrored {
		s.state = StateIdle
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// Snapshot returns the current transcript state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// pump consumes the stream's events until it closes. Every mutation checks
// the generation token under the lock, so a pump belonging to a superseded
// stream can observe events but never apply them.
func (s *Session) pump(gen uint64, stream Stream) {
	for ev := range stream.Events() {
		switch ev.Kind {
		case EventResults:
			s.applyResults(gen, ev.Results)
		case EventError:
			s.applyError(gen, ev.Code)
		case EventEnd:
			s.applyEnd(gen)
		}
	}
}

// applyResults recomputes the transcript from the full cumulative result
// set. Final text is the concatenation of all committed results; interim
// text is the concatenation of the rest, cleared as soon as any final text
// exists. Confidence is taken from the last final result.
func (s *Session) applyResults(gen uint64, results []Result) {
	s.mu.Lock()
	if gen != s.gen || s.state != StateListening {
		s.mu.Unlock()
		return
	}

	var fin, inter strings.Builder
	conf := 0.0
	for _, r := range results {
		if r.IsFinal {
			fin.WriteString(r.Text)
			conf = r.Confidence
		} else {
			inter.WriteString(r.Text)
		}
	}
	s.finalText = fin.String()
	if s.finalText != "" {
		s.interim = ""
		s.confidence = conf
	} else {
		s.interim = inter.String()
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// applyError records the failure code and ends listening. Errors are state,
// not panics; the caller may start a fresh capture at any time.
func (s *Session) applyError(gen uint64, code ErrorCode) {
	if !code.IsValid() {
		code = CodeUnknown
	}
	s.mu.Lock()
	if gen != s.gen || s.state != StateListening {
		s.mu.Unlock()
		return
	}
	s.state = StateErrored
	s.code = code
	s.stream = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	slog.Debug("capture: stream errored", "code", code)
	s.notify(snap)
}

// applyEnd reconciles stream termination. If the capability never committed
// a final result but interim text exists, the interim text is promoted to
// final — the speaker said something even though the capability ended before
// committing. A second termination signal for the same generation finds the
// session already out of StateListening and does nothing.
func (s *Session) applyEnd(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.state != StateListening {
		s.mu.Unlock()
		return
	}
	if s.finalText == "" && s.interim != "" {
		s.finalText = s.interim
		s.interim = ""
	}
	s.state = StateFinalized
	s.stream = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// snapshotLocked builds a Snapshot. Must be called with s.mu held.
func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		State:       s.state,
		FinalText:   s.finalText,
		InterimText: s.interim,
		Confidence:  s.confidence,
		Code:        s.code,
	}
}

// notify invokes the update callback, if any, without holding s.mu.
func (s *Session) notify(snap Snapshot) {
	if s.onUpdate != nil {
		s.onUpdate(snap)
	}
}
