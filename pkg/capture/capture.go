// Package capture wraps a platform speech-to-text capability in a stable,
// restartable lifecycle.
//
// The two abstractions are:
//
//   - [Recognizer] — the injected capability provider. It opens a [Stream]
//     for one utterance-capture attempt and reports whether the host supports
//     speech capture at all.
//   - [Session] — a finite-state object layered on top. It accumulates
//     interim/final transcript text from the stream's cumulative result
//     sets, maps capability failures onto a closed error-code taxonomy, and
//     guarantees that events from a superseded stream can never mutate state
//     (generation-token liveness check).
//
// Implementations of [Recognizer] live in subpackages (dgws for the Deepgram
// streaming API, mock for scripted test fakes). The interfaces are
// intentionally narrow so the practice engine stays testable without a real
// capture backend.
package capture

import "context"

// State is the lifecycle state of a capture [Session].
type State int

const (
	// StateIdle means no capture is in progress and no result is held.
	StateIdle State = iota

	// StateListening means a capture stream is active and accepting speech.
	StateListening

	// StateFinalized means the stream ended and a usable final transcript
	// (possibly promoted from interim text) is available.
	StateFinalized

	// StateErrored means the stream ended with one of the [ErrorCode] values.
	StateErrored
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateFinalized:
		return "finalized"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// ErrorCode is the closed taxonomy of capture failures surfaced to callers.
// Codes are surfaced as state, never as panics or in-band errors; all of
// them simply end listening and the caller may retry by starting again.
type ErrorCode string

const (
	// CodeNoSpeech means the capability detected no speech in the utterance.
	CodeNoSpeech ErrorCode = "no-speech"

	// CodeAudioCapture means the microphone or audio input failed.
	CodeAudioCapture ErrorCode = "audio-capture"

	// CodeNotAllowed means capture permission was denied by the host.
	CodeNotAllowed ErrorCode = "not-allowed"

	// CodeNetwork means the capability lost its network backend.
	CodeNetwork ErrorCode = "network"

	// CodeAborted means the capture was aborted before completing.
	CodeAborted ErrorCode = "aborted"

	// CodeLanguageNotSupported means the requested language tag is not
	// supported by the capability.
	CodeLanguageNotSupported ErrorCode = "language-not-supported"

	// CodeUnknown is the catch-all for failures outside the taxonomy.
	CodeUnknown ErrorCode = "unknown"
)

// IsValid reports whether c is a recognised error code.
func (c ErrorCode) IsValid() bool {
	switch c {
	case CodeNoSpeech, CodeAudioCapture, CodeNotAllowed, CodeNetwork,
		CodeAborted, CodeLanguageNotSupported, CodeUnknown:
		return true
	}
	return false
}

// Result is a single recognition hypothesis from the capability.
type Result struct {
	// Text is the transcribed speech content.
	Text string

	// IsFinal indicates whether the capability has committed to this result
	// or may still revise it.
	IsFinal bool

	// Confidence is the recognition confidence (0.0–1.0). May be zero if the
	// capability does not report confidence.
	Confidence float64
}

// EventKind classifies events emitted by a [Stream].
type EventKind int

const (
	// EventResults carries the full cumulative result set so far.
	EventResults EventKind = iota

	// EventError reports a capture failure. The stream still emits EventEnd
	// afterwards.
	EventError

	// EventEnd signals that the stream has terminated and will emit nothing
	// further. Every stream emits exactly one EventEnd before its channel
	// closes, regardless of how it terminated.
	EventEnd
)

// Event is one item in a [Stream]'s event sequence.
type Event struct {
	Kind EventKind

	// Results is the full cumulative result set, valid when Kind is
	// EventResults. Consumers must recompute transcript text from the whole
	// slice, not just the newest entry — capabilities may revise or reorder
	// earlier hypotheses.
	Results []Result

	// Code is the failure code, valid when Kind is EventError.
	Code ErrorCode
}

// Stream is one live utterance-capture attempt.
//
// Events() delivers results, at most one error, and a terminating EventEnd,
// after which the channel is closed. Stop and Abort are safe to call more
// than once and safe to call after the stream has already ended.
type Stream interface {
	// Events returns the read-only event channel for this stream.
	Events() <-chan Event

	// Stop requests graceful termination: buffered audio is flushed and the
	// capability may still deliver final results before EventEnd.
	Stop()

	// Abort tears the stream down immediately, discarding pending results.
	Abort()
}

// Recognizer is the abstraction over the platform speech-to-text capability.
//
// Implementations must be safe for concurrent use.
type Recognizer interface {
	// Supported reports whether speech capture is available on this host.
	// Callers use this as a static flag to hide voice features entirely.
	Supported() bool

	// Listen opens a new capture stream for the given BCP-47 language tag.
	// The supplied ctx governs the stream's lifetime; cancelling it has the
	// same effect as Abort.
	Listen(ctx context.Context, languageTag string) (Stream, error)
}
