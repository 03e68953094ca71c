// Package dgws provides a capture.Recognizer backed by the Deepgram
// streaming WebSocket API. Audio is pulled from an injected AudioSource
// (microphone, file, or test reader) and streamed to Deepgram; recognition
// results come back as capture events with the full cumulative result set.
package dgws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/coder/websocket"

	"github.com/yomu-app/yomu/pkg/capture"
)

const (
	endpoint          = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova-3"
	defaultSampleRate = 16000
	audioChunkBytes   = 3200 // 100ms of 16kHz mono 16-bit PCM
)

// AudioSource supplies raw PCM audio for one capture attempt. NewSource is
// called once per Listen; the returned reader is drained until EOF or the
// stream ends, then closed.
type AudioSource interface {
	NewSource(ctx context.Context) (io.ReadCloser, error)
}

// Option is a functional option for configuring the Recognizer.
type Option func(*Recognizer)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(r *Recognizer) {
		r.model = model
	}
}

// WithSampleRate sets the PCM sample rate in Hz. Default: 16000.
func WithSampleRate(rate int) Option {
	return func(r *Recognizer) {
		r.sampleRate = rate
	}
}

// WithEndpoint overrides the Deepgram endpoint URL. Used in tests to point
// at a local fake.
func WithEndpoint(u string) Option {
	return func(r *Recognizer) {
		r.endpoint = u
	}
}

// Recognizer implements capture.Recognizer backed by the Deepgram streaming
// API. Safe for concurrent use; each Listen opens an independent stream.
type Recognizer struct {
	apiKey     string
	model      string
	sampleRate int
	endpoint   string
	source     AudioSource
}

// New creates a Deepgram-backed Recognizer. apiKey must be non-empty and
// source supplies the audio to transcribe.
func New(apiKey string, source AudioSource, opts ...Option) (*Recognizer, error) {
	if apiKey == "" {
		return nil, errors.New("dgws: apiKey must not be empty")
	}
	if source == nil {
		return nil, errors.New("dgws: audio source must not be nil")
	}
	r := &Recognizer{
		apiKey:     apiKey,
		model:      defaultModel,
		sampleRate: defaultSampleRate,
		endpoint:   endpoint,
		source:     source,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Supported always reports true — availability was established when the
// Recognizer was constructed with a working API key and audio source.
func (r *Recognizer) Supported() bool { return true }

// Listen opens a streaming transcription session for languageTag.
func (r *Recognizer) Listen(ctx context.Context, languageTag string) (capture.Stream, error) {
	wsURL, err := r.buildURL(languageTag)
	if err != nil {
		return nil, fmt.Errorf("dgws: build URL: %w", err)
	}

	src, err := r.source.NewSource(ctx)
	if err != nil {
		return nil, fmt.Errorf("dgws: open audio source: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+r.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("dgws: dial: %w", err)
	}

	st := &stream{
		conn:   conn,
		src:    src,
		events: make(chan capture.Event, 16),
		done:   make(chan struct{}),
	}
	go st.readLoop(ctx)
	go st.writeLoop(ctx)
	return st, nil
}

// buildURL constructs the streaming endpoint URL for the given language.
func (r *Recognizer) buildURL(languageTag string) (string, error) {
	u, err := url.Parse(r.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("model", r.model)
	if languageTag != "" {
		q.Set("language", languageTag)
	}
	q.Set("interim_results", "true")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(r.sampleRate))
	q.Set("channels", "1")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Ensure Recognizer implements capture.Recognizer at compile time.
var _ capture.Recognizer = (*Recognizer)(nil)

// ---- stream ----

// response is the JSON structure Deepgram returns for a Results message.
type response struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// stream is a live Deepgram capture attempt. It implements capture.Stream.
type stream struct {
	conn   *websocket.Conn
	src    io.ReadCloser
	events chan capture.Event

	done chan struct{}
	once sync.Once

	// acc is the cumulative result set, owned by readLoop. Finals append;
	// the newest interim replaces a trailing interim entry, mirroring how
	// Deepgram revises its running hypothesis.
	acc []capture.Result
}

// Events returns the event channel for this stream.
func (s *stream) Events() <-chan capture.Event { return s.events }

// Stop requests graceful termination: Deepgram flushes buffered audio and
// may still deliver finals before closing.
func (s *stream) Stop() {
	select {
	case <-s.done:
		return
	default:
	}
	_ = s.conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"CloseStream"}`))
}

// Abort tears the stream down immediately.
func (s *stream) Abort() {
	s.shutdown()
}

// shutdown closes the connection and audio source exactly once. The read
// loop notices the closed connection and finishes the event sequence.
func (s *stream) shutdown() {
	s.once.Do(func() {
		close(s.done)
		_ = s.src.Close()
		s.conn.Close(websocket.StatusNormalClosure, "capture ended")
	})
}

// writeLoop streams audio chunks from the source until EOF or teardown.
func (s *stream) writeLoop(ctx context.Context) {
	buf := make([]byte, audioChunkBytes)
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			s.shutdown()
			return
		default:
		}

		n, err := s.src.Read(buf)
		if n > 0 {
			if werr := s.conn.Write(ctx, websocket.MessageBinary, buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			// EOF means the utterance is over: ask Deepgram to flush.
			s.Stop()
			return
		}
	}
}

// readLoop receives Deepgram messages, maintains the cumulative result set,
// and dispatches capture events. It owns the events channel and always
// terminates the sequence with EventEnd before closing it.
func (s *stream) readLoop(ctx context.Context) {
	defer close(s.events)
	defer s.shutdown()

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			select {
			case <-s.done:
				// Deliberate teardown: plain end, no error event.
			default:
				if ctx.Err() != nil {
					s.emit(capture.Event{Kind: capture.EventError, Code: capture.CodeAborted})
				} else if !isNormalClosure(err) {
					s.emit(capture.Event{Kind: capture.EventError, Code: capture.CodeNetwork})
				}
			}
			s.emit(capture.Event{Kind: capture.EventEnd})
			return
		}

		res, ok := parseResponse(msg)
		if !ok {
			continue
		}
		s.accumulate(res)
		s.emit(capture.Event{Kind: capture.EventResults, Results: s.snapshotResults()})
	}
}

// accumulate folds one recognition result into the cumulative set.
func (s *stream) accumulate(res capture.Result) {
	if n := len(s.acc); n > 0 && !s.acc[n-1].IsFinal {
		s.acc = s.acc[:n-1]
	}
	s.acc = append(s.acc, res)
}

// snapshotResults returns a copy of the cumulative set safe to hand off.
func (s *stream) snapshotResults() []capture.Result {
	out := make([]capture.Result, len(s.acc))
	copy(out, s.acc)
	return out
}

// emit delivers ev unless the consumer has stopped draining entirely.
func (s *stream) emit(ev capture.Event) {
	select {
	case s.events <- ev:
	case <-s.done:
		// Consumer gone; best effort only for EventEnd which is buffered.
		select {
		case s.events <- ev:
		default:
		}
	}
}

// parseResponse parses a raw Deepgram message into a capture.Result.
// Returns (zero, false) for non-Results messages and empty hypotheses.
func parseResponse(data []byte) (capture.Result, bool) {
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return capture.Result{}, false
	}
	if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
		return capture.Result{}, false
	}
	alt := resp.Channel.Alternatives[0]
	if alt.Transcript == "" {
		return capture.Result{}, false
	}
	return capture.Result{
		Text:       alt.Transcript,
		IsFinal:    resp.IsFinal,
		Confidence: alt.Confidence,
	}, true
}

// isNormalClosure reports whether err represents a clean WebSocket close.
func isNormalClosure(err error) bool {
	return websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
		errors.Is(err, io.EOF)
}
