// Package playback fetches and caches reference-pronunciation audio and
// plays it through an injected audio output. It is deliberately thin: the
// practice engine only depends on its completion signal, and every failure
// here degrades to "no playback available" without gating the session.
//
// At most one playback is active at a time; starting a new one tears down
// any in-flight playback first.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/yomu-app/yomu/internal/deck"
)

const fetchTimeout = 15 * time.Second

// ErrNoAudio is returned when an item has no reference audio clips.
var ErrNoAudio = errors.New("playback: item has no reference audio")

// Handle is one in-flight playback on the audio output.
type Handle interface {
	// Done is closed (after receiving at most one error) when playback
	// finishes or fails.
	Done() <-chan error

	// Stop tears the playback down early. Safe to call more than once.
	Stop()
}

// Player is the platform audio-output primitive.
//
// Implementations must be safe for concurrent use.
type Player interface {
	// Play begins playing the given encoded audio and returns a Handle for
	// completion and early teardown.
	Play(ctx context.Context, data []byte, contentType string) (Handle, error)
}

// Adapter fetches reference audio per item, caches it for the session
// lifetime, and owns the single active playback. All methods are safe for
// concurrent use.
type Adapter struct {
	player Player
	http   *http.Client

	mu      sync.Mutex
	cache   map[string][]byte
	current Handle
}

// NewAdapter creates an Adapter playing through player.
func NewAdapter(player Player) *Adapter {
	return &Adapter{
		player: player,
		http:   &http.Client{Timeout: fetchTimeout},
		cache:  make(map[string][]byte),
	}
}

// Play fetches (or reuses) the item's first reference clip and starts
// playing it, tearing down any in-flight playback first. The returned
// Handle reports completion; callers treat all errors as non-fatal.
func (a *Adapter) Play(ctx context.Context, item deck.Item) (Handle, error) {
	if a.player == nil || len(item.Audio) == 0 {
		return nil, ErrNoAudio
	}
	clip := item.Audio[0]

	data, err := a.fetch(ctx, clip.URL)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	if a.current != nil {
		a.current.Stop()
		a.current = nil
	}
	a.mu.Unlock()

	h, err := a.player.Play(ctx, data, clip.ContentType)
	if err != nil {
		return nil, fmt.Errorf("playback: play %q: %w", clip.URL, err)
	}

	a.mu.Lock()
	a.current = h
	a.mu.Unlock()
	return h, nil
}

// Stop tears down the active playback, if any.
func (a *Adapter) Stop() {
	a.mu.Lock()
	h := a.current
	a.current = nil
	a.mu.Unlock()
	if h != nil {
		h.Stop()
	}
}

// fetch downloads the clip at url, consulting the session cache first.
func (a *Adapter) fetch(ctx context.Context, url string) ([]byte, error) {
	a.mu.Lock()
	if data, ok := a.cache[url]; ok {
		a.mu.Unlock()
		return data, nil
	}
	a.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("playback: fetch %q: %w", url, err)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("playback: fetch %q: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("playback: fetch %q: unexpected status %s", url, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("playback: fetch %q: %w", url, err)
	}

	a.mu.Lock()
	a.cache[url] = data
	a.mu.Unlock()

	slog.Debug("playback: cached reference clip", "url", url, "bytes", len(data))
	return data, nil
}
