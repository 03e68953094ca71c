// Package engine implements the practice session state machine: it owns the
// filtered, optionally shuffled deck of practice items, the current
// position, reveal state, per-session statistics, and the cancellable
// auto-advance timer. In voice mode it consumes capture-session snapshots,
// invokes the pronunciation scorer once per finalized utterance, and drives
// reveal and grading from the result.
//
// The engine is single-writer by construction: every mutation happens in
// reaction to a user action, a capture-session callback, a timer firing, or
// playback completion, all serialised through one mutex. Capture and
// playback side effects run outside the lock so their callbacks can never
// deadlock against it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yomu-app/yomu/internal/deck"
	"github.com/yomu-app/yomu/internal/observe"
	"github.com/yomu-app/yomu/internal/playback"
	"github.com/yomu-app/yomu/internal/score"
	"github.com/yomu-app/yomu/pkg/capture"
)

// DefaultAutoAdvance is the delay between an automatically graded voice
// response and the transition to the next item.
const DefaultAutoAdvance = 2 * time.Second

// defaultLanguageTag is the capture language when none is configured.
const defaultLanguageTag = "ja-JP"

// Mode selects how items are graded.
type Mode string

const (
	// ModeManual means the learner reveals and self-grades each item.
	ModeManual Mode = "manual"

	// ModeVoice means the learner speaks the reading; the scorer grades it
	// and the engine advances automatically.
	ModeVoice Mode = "voice"
)

// IsValid reports whether m is a recognised review mode.
func (m Mode) IsValid() bool {
	return m == ModeManual || m == ModeVoice
}

// SessionState is the lifecycle state of a practice session.
type SessionState int

const (
	// StateNotStarted means the session has not begun (or the deck became
	// empty after a filter change).
	StateNotStarted SessionState = iota

	// StateInProgress means items are being practiced.
	StateInProgress

	// StateComplete means the current index reached the end of the deck.
	StateComplete
)

// String returns the human-readable name of the state.
func (s SessionState) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateInProgress:
		return "in-progress"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Stats are the per-session grading counters. They are monotonically
// non-decreasing within a session and reset exactly at start/restart.
type Stats struct {
	Total     int
	Correct   int
	Incorrect int
}

// Accuracy returns the correct percentage rounded to the nearest integer,
// or 0 when nothing has been graded.
func (s Stats) Accuracy() int {
	if s.Total == 0 {
		return 0
	}
	return int(100*float64(s.Correct)/float64(s.Total) + 0.5)
}

// Snapshot is an immutable view of the engine for the presentation layer.
type Snapshot struct {
	State    SessionState
	Mode     Mode
	Index    int
	DeckSize int
	Revealed bool
	Stats    Stats

	// Current is the item at the current index, nil when the session is
	// complete or not started.
	Current *deck.Item

	// LastScore is the most recent scorer result for the current item, nil
	// until a voice utterance has been scored.
	LastScore *score.Result

	// Capture is the capture session's transcript state; zero when voice
	// capture is unavailable.
	Capture capture.Snapshot
}

// Config holds all dependencies and tunables for an [Engine].
type Config struct {
	// Items is the full set of loaded practice items.
	Items []deck.Item

	// Filter selects the SRS stage band to practice. Default: all.
	Filter deck.Filter

	// Shuffle enables the deterministic seeded shuffle.
	Shuffle bool

	// ShuffleSeed keys the shuffle order.
	ShuffleSeed uint64

	// Mode is the initial review mode. Default: manual.
	Mode Mode

	// LanguageTag is the BCP-47 tag for speech capture. Default: "ja-JP".
	LanguageTag string

	// AutoAdvance is the delay before an auto-graded item advances.
	// Default: [DefaultAutoAdvance].
	AutoAdvance time.Duration

	// Scorer grades utterances. Default: score.New().
	Scorer *score.Scorer

	// Recognizer provides speech capture. When nil or unsupported, voice
	// mode is unavailable and the engine runs manual-only.
	Recognizer capture.Recognizer

	// Playback plays reference audio on reveal. Optional.
	Playback *playback.Adapter

	// Metrics receives engine instrumentation. Default:
	// observe.DefaultMetrics().
	Metrics *observe.Metrics
}

// Engine is the practice session state machine. All exported methods are
// safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	items   []deck.Item
	filter  deck.Filter
	shuffle bool
	seed    uint64

	deck     []deck.Item
	idx      int
	state    SessionState
	revealed bool
	stats    Stats
	mode     Mode

	pending    *advanceTimer
	lastScored string
	lastScore  *score.Result

	capture       *capture.Session
	captureUp     time.Time
	langTag       string
	autoAdvance   time.Duration
	scorer        *score.Scorer
	playbackAdapt *playback.Adapter
	metrics       *observe.Metrics

	ctx     context.Context
	started bool
	active  bool
}

// New creates an Engine from cfg. The deck is derived immediately; the
// session stays in [StateNotStarted] until [Engine.Start].
func New(cfg Config) (*Engine, error) {
	if cfg.Filter == "" {
		cfg.Filter = deck.FilterAll
	}
	if !cfg.Filter.IsValid() {
		return nil, fmt.Errorf("engine: invalid filter %q", cfg.Filter)
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeManual
	}
	if !cfg.Mode.IsValid() {
		return nil, fmt.Errorf("engine: invalid mode %q", cfg.Mode)
	}
	if cfg.LanguageTag == "" {
		cfg.LanguageTag = defaultLanguageTag
	}
	if cfg.AutoAdvance <= 0 {
		cfg.AutoAdvance = DefaultAutoAdvance
	}
	if cfg.Scorer == nil {
		cfg.Scorer = score.New()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}

	e := &Engine{
		items:         cfg.Items,
		filter:        cfg.Filter,
		shuffle:       cfg.Shuffle,
		seed:          cfg.ShuffleSeed,
		mode:          cfg.Mode,
		langTag:       cfg.LanguageTag,
		autoAdvance:   cfg.AutoAdvance,
		scorer:        cfg.Scorer,
		playbackAdapt: cfg.Playback,
		metrics:       cfg.Metrics,
	}
	e.deck = deck.Build(e.items, e.filter, e.shuffle, e.seed)

	if cfg.Recognizer != nil && cfg.Recognizer.Supported() {
		e.capture = capture.NewSession(cfg.Recognizer, capture.WithUpdateFunc(e.handleCapture))
	}
	if cfg.Mode == ModeVoice && e.capture == nil {
		return nil, errors.New("engine: voice mode requires a supported recognizer")
	}
	return e, nil
}

// VoiceAvailable reports whether voice mode can be enabled on this host.
func (e *Engine) VoiceAvailable() bool {
	return e.capture != nil
}

// Start begins the session: index 0, item hidden, statistics zeroed.
// The supplied ctx scopes capture and playback for the whole session.
// Returns an error when no items match the current filter.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if len(e.deck) == 0 {
		e.mu.Unlock()
		return errors.New("engine: no items match the current filter")
	}
	e.ctx = ctx
	e.started = true
	e.startLocked()
	voice := e.mode == ModeVoice
	e.mu.Unlock()

	if voice {
		go e.beginCapture()
	}
	slog.Info("engine: session started", "deck_size", len(e.deck), "mode", e.mode, "filter", e.filter)
	return nil
}

// Restart returns to Start semantics without altering deck composition.
func (e *Engine) Restart() error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return errors.New("engine: session was never started")
	}
	if len(e.deck) == 0 {
		e.mu.Unlock()
		return errors.New("engine: no items match the current filter")
	}
	e.startLocked()
	voice := e.mode == ModeVoice
	e.mu.Unlock()

	if voice {
		go e.beginCapture()
	}
	return nil
}

// startLocked resets position, reveal state, and statistics. Must be called
// with e.mu held.
func (e *Engine) startLocked() {
	e.cancelTimerLocked()
	e.state = StateInProgress
	e.idx = 0
	e.revealed = false
	e.stats = Stats{}
	e.lastScored = ""
	e.lastScore = nil
	if !e.active {
		e.active = true
		e.metrics.ActiveSessions.Add(e.ctx, 1)
	}
}

// Reveal transitions the current item from hidden to revealed and triggers
// reference-audio playback best-effort. In manual mode this is the
// user-facing flip; in voice mode it is invoked internally by a scorer
// result.
func (e *Engine) Reveal() error {
	e.mu.Lock()
	if e.state != StateInProgress {
		e.mu.Unlock()
		return errors.New("engine: no item to reveal")
	}
	if e.revealed {
		e.mu.Unlock()
		return errors.New("engine: item is already revealed")
	}
	e.revealed = true
	cur := e.deck[e.idx]
	e.mu.Unlock()

	if e.capture != nil {
		e.capture.Stop()
	}
	e.playReference(cur)
	return nil
}

// Grade records the learner's verdict for the revealed item and advances.
// Valid only when the current item is revealed. Any pending auto-advance is
// cancelled first, so a manual override can never be double-counted by a
// stale timer.
func (e *Engine) Grade(correct bool) error {
	e.mu.Lock()
	if e.state != StateInProgress || !e.revealed {
		e.mu.Unlock()
		return errors.New("engine: grade requires a revealed item")
	}
	post := e.gradeLocked(correct)
	e.mu.Unlock()

	e.run(post)
	return nil
}

// Skip advances past a hidden item without touching statistics.
func (e *Engine) Skip() error {
	e.mu.Lock()
	if e.state != StateInProgress || e.revealed {
		e.mu.Unlock()
		return errors.New("engine: skip requires a hidden item")
	}
	e.cancelTimerLocked()
	e.metrics.ItemsSkipped.Add(e.ctx, 1)
	post := e.advanceLocked()
	e.mu.Unlock()

	e.run(post)
	return nil
}

// SetMode switches between manual and voice review. Only permitted when the
// current item is not mid-reveal; switching stops any active capture and
// cancels any pending auto-advance.
func (e *Engine) SetMode(m Mode) error {
	if !m.IsValid() {
		return fmt.Errorf("engine: invalid mode %q", m)
	}
	e.mu.Lock()
	if e.revealed {
		e.mu.Unlock()
		return errors.New("engine: cannot switch mode mid-reveal")
	}
	if m == ModeVoice && e.capture == nil {
		e.mu.Unlock()
		return errors.New("engine: voice mode requires a supported recognizer")
	}
	if m == e.mode {
		e.mu.Unlock()
		return nil
	}
	e.mode = m
	e.cancelTimerLocked()
	e.lastScored = ""
	inProgress := e.state == StateInProgress
	e.mu.Unlock()

	if e.capture != nil {
		e.capture.Abort()
	}
	if m == ModeVoice && inProgress {
		go e.beginCapture()
	}
	return nil
}

// SetFilter changes the SRS stage band and rebuilds the deck: index returns
// to 0 and reveal state clears.
func (e *Engine) SetFilter(f deck.Filter) error {
	if !f.IsValid() {
		return fmt.Errorf("engine: invalid filter %q", f)
	}
	e.mu.Lock()
	e.filter = f
	post := e.rebuildLocked()
	e.mu.Unlock()

	e.run(post)
	return nil
}

// SetShuffle enables or disables shuffling with the given seed and rebuilds
// the deck with the same index/reveal reset as a filter change.
func (e *Engine) SetShuffle(enabled bool, seed uint64) {
	e.mu.Lock()
	e.shuffle = enabled
	e.seed = seed
	post := e.rebuildLocked()
	e.mu.Unlock()

	e.run(post)
}

// StartCapture begins (or retries) a voice capture attempt for the current
// hidden item. Exposed so the learner can retry after a capture error.
func (e *Engine) StartCapture() error {
	e.mu.Lock()
	ok := e.mode == ModeVoice && e.state == StateInProgress && !e.revealed && e.capture != nil
	e.mu.Unlock()
	if !ok {
		return errors.New("engine: capture requires voice mode and a hidden item")
	}
	go e.beginCapture()
	return nil
}

// StopCapture requests graceful termination of the active capture attempt.
func (e *Engine) StopCapture() {
	if e.capture != nil {
		e.capture.Stop()
	}
}

// Snapshot returns the current session state for rendering.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		State:    e.state,
		Mode:     e.mode,
		Index:    e.idx,
		DeckSize: len(e.deck),
		Revealed: e.revealed,
		Stats:    e.stats,
	}
	if e.state == StateInProgress && e.idx < len(e.deck) {
		cur := e.deck[e.idx]
		snap.Current = &cur
	}
	if e.lastScore != nil {
		res := *e.lastScore
		snap.LastScore = &res
	}
	if e.capture != nil {
		snap.Capture = e.capture.Snapshot()
	}
	return snap
}

// Stats returns the session statistics.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Close ends the session: cancels the pending timer, aborts capture, and
// stops playback.
func (e *Engine) Close() {
	e.mu.Lock()
	e.cancelTimerLocked()
	if e.active {
		e.active = false
		e.metrics.ActiveSessions.Add(e.ctx, -1)
	}
	e.mu.Unlock()

	if e.capture != nil {
		e.capture.Abort()
	}
	if e.playbackAdapt != nil {
		e.playbackAdapt.Stop()
	}
}

// ---- internal transitions ----

// postActions describes side effects to run after releasing the lock.
type postActions struct {
	beginCapture bool
	completed    bool
}

// run executes post-lock side effects.
func (e *Engine) run(p postActions) {
	if p.completed {
		if e.capture != nil {
			e.capture.Abort()
		}
		if e.playbackAdapt != nil {
			e.playbackAdapt.Stop()
		}
		slog.Info("engine: session complete", "stats", e.Stats())
	}
	if p.beginCapture {
		go e.beginCapture()
	}
}

// gradeLocked applies a grading verdict and advances. Must be called with
// e.mu held and a revealed item.
func (e *Engine) gradeLocked(correct bool) postActions {
	e.cancelTimerLocked()
	e.stats.Total++
	result := "incorrect"
	if correct {
		e.stats.Correct++
		result = "correct"
	} else {
		e.stats.Incorrect++
	}
	e.metrics.RecordGrade(e.ctx, result, string(e.mode))
	return e.advanceLocked()
}

// advanceLocked moves to the next item or completes the session. Must be
// called with e.mu held.
func (e *Engine) advanceLocked() postActions {
	e.cancelTimerLocked()
	e.idx++
	e.revealed = false
	e.lastScored = ""
	e.lastScore = nil

	if e.idx >= len(e.deck) {
		e.idx = len(e.deck)
		e.state = StateComplete
		if e.active {
			e.active = false
			e.metrics.ActiveSessions.Add(e.ctx, -1)
		}
		return postActions{completed: true}
	}
	if e.mode == ModeVoice && e.capture != nil {
		return postActions{beginCapture: true}
	}
	return postActions{}
}

// rebuildLocked re-derives the deck after a filter or shuffle change. Must
// be called with e.mu held.
func (e *Engine) rebuildLocked() postActions {
	e.cancelTimerLocked()
	e.deck = deck.Build(e.items, e.filter, e.shuffle, e.seed)
	e.idx = 0
	e.revealed = false
	e.lastScored = ""
	e.lastScore = nil

	if e.state == StateNotStarted {
		return postActions{}
	}
	if len(e.deck) == 0 {
		e.state = StateNotStarted
		if e.active {
			e.active = false
			e.metrics.ActiveSessions.Add(e.ctx, -1)
		}
		return postActions{}
	}
	e.state = StateInProgress
	if e.mode == ModeVoice && e.capture != nil {
		return postActions{beginCapture: true}
	}
	return postActions{}
}

// cancelTimerLocked cancels the pending auto-advance, if any. Must be
// called with e.mu held, at the top of every transition that could race
// with the timer.
func (e *Engine) cancelTimerLocked() {
	if e.pending != nil {
		e.pending.cancel()
		e.pending = nil
	}
}

// scheduleAdvanceLocked arms the single auto-advance timer for a voice
// grade. Must be called with e.mu held.
func (e *Engine) scheduleAdvanceLocked(pass bool) {
	e.cancelTimerLocked()
	at := &advanceTimer{}
	at.arm(e.autoAdvance, func() {
		e.autoAdvanceFired(at, pass)
	})
	e.pending = at
}

// autoAdvanceFired is the timer callback. The identity check against
// e.pending makes a superseded timer inert.
func (e *Engine) autoAdvanceFired(at *advanceTimer, pass bool) {
	e.mu.Lock()
	if e.pending != at {
		e.mu.Unlock()
		return
	}
	e.pending = nil
	if e.state != StateInProgress || !e.revealed {
		e.mu.Unlock()
		return
	}
	post := e.gradeLocked(pass)
	e.mu.Unlock()

	e.run(post)
}

// ---- voice capture ----

// beginCapture resets the capture session and starts a fresh attempt for
// the current item. Runs outside the engine lock.
func (e *Engine) beginCapture() {
	e.mu.Lock()
	if e.mode != ModeVoice || e.state != StateInProgress || e.revealed || e.capture == nil {
		e.mu.Unlock()
		return
	}
	ctx := e.ctx
	e.captureUp = time.Now()
	e.mu.Unlock()

	e.capture.Reset()
	if err := e.capture.Start(ctx, e.langTag); err != nil {
		slog.Warn("engine: capture start failed", "err", err)
	}
}

// handleCapture consumes capture-session snapshots. Finalized snapshots
// with a non-empty transcript are scored against the current item's primary
// readings exactly once per transcript value; a successful score reveals
// the item and arms the auto-advance timer.
func (e *Engine) handleCapture(snap capture.Snapshot) {
	switch snap.State {
	case capture.StateErrored:
		e.captureEnded()
		if snap.Code != "" {
			e.metrics.RecordCaptureError(context.Background(), string(snap.Code))
			slog.Debug("engine: capture error", "code", snap.Code)
		}
		return
	case capture.StateFinalized:
		e.captureEnded()
	default:
		return
	}
	if snap.FinalText == "" {
		return
	}

	e.mu.Lock()
	if e.mode != ModeVoice || e.state != StateInProgress || e.revealed {
		e.mu.Unlock()
		return
	}
	if snap.FinalText == e.lastScored {
		// Already scored this transcript for this item; duplicate
		// finalization signals must not double-count.
		e.mu.Unlock()
		return
	}
	e.lastScored = snap.FinalText
	cur := e.deck[e.idx]

	res, ok := e.scorer.BestMatch(snap.FinalText, cur.PrimaryReadings())
	if !ok {
		// Nothing to score; stay hidden and listen again.
		e.mu.Unlock()
		go e.beginCapture()
		return
	}

	e.lastScore = &res
	e.revealed = true
	e.metrics.RecordScore(e.ctx, string(res.Feedback))
	e.scheduleAdvanceLocked(res.Feedback != score.Incorrect)
	e.mu.Unlock()

	slog.Debug("engine: utterance scored",
		"transcript", snap.FinalText,
		"similarity", res.Similarity,
		"feedback", res.Feedback,
	)
	e.playReference(cur)
}

// captureEnded records the capture attempt duration once per attempt.
func (e *Engine) captureEnded() {
	e.mu.Lock()
	started := e.captureUp
	e.captureUp = time.Time{}
	ctx := e.ctx
	e.mu.Unlock()

	if started.IsZero() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	e.metrics.CaptureDuration.Record(ctx, time.Since(started).Seconds())
}

// playReference plays the item's reference audio best-effort; failures
// narrow functionality to "no playback" without touching session state.
func (e *Engine) playReference(item deck.Item) {
	if e.playbackAdapt == nil {
		return
	}
	go func() {
		e.mu.Lock()
		ctx := e.ctx
		e.mu.Unlock()
		if ctx == nil {
			ctx = context.Background()
		}

		if _, err := e.playbackAdapt.Play(ctx, item); err != nil {
			if !errors.Is(err, playback.ErrNoAudio) {
				e.metrics.RecordPlaybackFetch(ctx, "error")
				slog.Debug("engine: reference playback unavailable", "item", item.Text, "err", err)
			}
			return
		}
		e.metrics.RecordPlaybackFetch(ctx, "ok")
	}()
}
