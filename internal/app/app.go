// Package app wires all Yomu subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the HTTP endpoint and drives the practice session
// until the context ends, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithItems,
// WithRecognizer, WithPlayer). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yomu-app/yomu/internal/config"
	"github.com/yomu-app/yomu/internal/deck"
	"github.com/yomu-app/yomu/internal/engine"
	"github.com/yomu-app/yomu/internal/health"
	"github.com/yomu-app/yomu/internal/observe"
	"github.com/yomu-app/yomu/internal/playback"
	"github.com/yomu-app/yomu/internal/score"
	"github.com/yomu-app/yomu/internal/vocab"
	"github.com/yomu-app/yomu/pkg/capture"
	"github.com/yomu-app/yomu/pkg/capture/dgws"
)

// App owns all subsystem lifetimes for a Yomu server.
type App struct {
	cfg     *config.Config
	metrics *observe.Metrics

	// Subsystems — initialised in New, torn down in Shutdown.
	vocabClient *vocab.Client
	items       []deck.Item
	recognizer  capture.Recognizer
	player      playback.Player
	pb          *playback.Adapter
	engine      *engine.Engine
	server      *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithItems injects the practice items instead of loading them from the
// vocabulary API.
func WithItems(items []deck.Item) Option {
	return func(a *App) { a.items = items }
}

// WithRecognizer injects a speech recognizer instead of creating one from
// config.
func WithRecognizer(r capture.Recognizer) Option {
	return func(a *App) { a.recognizer = r }
}

// WithPlayer injects the audio output used for reference playback.
func WithPlayer(p playback.Player) Option {
	return func(a *App) { a.player = p }
}

// WithMetrics injects a metrics instance instead of the package default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together: the vocabulary
// client, the deck, the recognizer, the playback adapter, the practice
// engine, and the HTTP endpoint. Use Option functions to inject test
// doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initItems(ctx); err != nil {
		return nil, fmt.Errorf("app: load items: %w", err)
	}
	if err := a.initRecognizer(); err != nil {
		return nil, fmt.Errorf("app: init recognizer: %w", err)
	}
	a.initPlayback()
	if err := a.initEngine(); err != nil {
		return nil, fmt.Errorf("app: init engine: %w", err)
	}
	a.initServer()

	return a, nil
}

// Engine exposes the practice session engine for the presentation layer.
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// initItems loads practice items from the vocabulary API unless they were
// injected.
func (a *App) initItems(ctx context.Context) error {
	if a.items != nil {
		return nil
	}

	client, err := vocab.NewClient(a.cfg.Source.BaseURL, a.cfg.Source.Token)
	if err != nil {
		return err
	}
	a.vocabClient = client

	items, err := client.LoadItems(ctx)
	if err != nil {
		return err
	}
	a.items = items
	slog.Info("loaded vocabulary", "items", len(items), "base_url", a.cfg.Source.BaseURL)
	return nil
}

// initRecognizer creates the configured speech recognizer unless one was
// injected. With recognizer "none" voice mode stays unavailable.
func (a *App) initRecognizer() error {
	if a.recognizer != nil {
		return nil
	}

	switch a.cfg.Capture.Recognizer {
	case config.RecognizerNone, "":
		return nil
	case config.RecognizerDeepgram:
		rec, err := dgws.New(a.cfg.Capture.APIKey, stdinSource{},
			dgws.WithSampleRate(a.cfg.Capture.SampleRate),
		)
		if err != nil {
			return err
		}
		a.recognizer = rec
		return nil
	default:
		return fmt.Errorf("unknown recognizer %q", a.cfg.Capture.Recognizer)
	}
}

// initPlayback creates the playback adapter when playback is enabled and an
// output was injected.
func (a *App) initPlayback() {
	if !a.cfg.Playback.Enabled {
		return
	}
	if a.player == nil {
		slog.Warn("playback.enabled is set but no audio output is available; reference audio is disabled")
		return
	}
	a.pb = playback.NewAdapter(a.player)
}

// initEngine builds the practice session engine from config.
func (a *App) initEngine() error {
	scorer := score.New(score.WithThresholds(
		a.cfg.Practice.Thresholds.Correct,
		a.cfg.Practice.Thresholds.Close,
	))

	eng, err := engine.New(engine.Config{
		Items:       a.items,
		Filter:      a.cfg.Practice.Filter,
		Shuffle:     a.cfg.Practice.Shuffle,
		ShuffleSeed: a.cfg.Practice.ShuffleSeed,
		Mode:        a.cfg.Practice.Mode,
		LanguageTag: a.cfg.Capture.Language,
		AutoAdvance: time.Duration(a.cfg.Practice.AutoAdvance),
		Scorer:      scorer,
		Recognizer:  a.recognizer,
		Playback:    a.pb,
		Metrics:     a.metrics,
	})
	if err != nil {
		return err
	}
	a.engine = eng
	a.closers = append(a.closers, func() error {
		eng.Close()
		return nil
	})
	return nil
}

// initServer builds the HTTP endpoint serving metrics and health probes.
func (a *App) initServer() {
	var checkers []health.Checker
	if a.vocabClient != nil {
		checkers = append(checkers, health.Checker{
			Name:  "vocab",
			Check: a.vocabClient.Ping,
		})
	}
	probes := health.New(checkers...)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", probes.Healthz)
	mux.HandleFunc("/readyz", probes.Readyz)

	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Run starts the HTTP endpoint and the practice session, then blocks until
// ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http endpoint listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if err := a.engine.Start(ctx); err != nil {
		return fmt.Errorf("app: start session: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("app: http server: %w", err)
	}
}

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				slog.Warn("http shutdown error", "err", err)
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// stdinSource feeds raw PCM from standard input to the recognizer, so a
// microphone can be piped in with e.g.
//
//	arecord -f S16_LE -r 16000 -c 1 -t raw | yomu
//
// Successive capture attempts keep reading from the same stream.
type stdinSource struct{}

func (stdinSource) NewSource(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(os.Stdin), nil
}

var _ dgws.AudioSource = stdinSource{}
