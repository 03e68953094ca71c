// Package mock provides test doubles for the playback package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/yomu-app/yomu/internal/playback"
)

// PlayCall records a single invocation of Player.Play.
type PlayCall struct {
	// Data is the audio payload passed to Play.
	Data []byte
	// ContentType is the MIME type passed to Play.
	ContentType string
}

// Player is a mock implementation of playback.Player. Each Play returns a
// new [Handle] whose completion the test controls via Finish.
type Player struct {
	mu sync.Mutex

	// PlayErr, if non-nil, is returned by every Play call.
	PlayErr error

	// PlayCalls records every call to Play in order.
	PlayCalls []PlayCall

	// Handles holds the handle returned by each Play, in order.
	Handles []*Handle
}

// Play records the call and returns a fresh Handle.
func (p *Player) Play(_ context.Context, data []byte, contentType string) (playback.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	p.PlayCalls = append(p.PlayCalls, PlayCall{Data: cp, ContentType: contentType})
	if p.PlayErr != nil {
		return nil, p.PlayErr
	}
	h := &Handle{done: make(chan error, 1)}
	p.Handles = append(p.Handles, h)
	return h, nil
}

// PlayCallCount returns the number of Play calls. Thread-safe.
func (p *Player) PlayCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.PlayCalls)
}

// Ensure Player implements playback.Player at compile time.
var _ playback.Player = (*Player)(nil)

// Handle is a mock playback handle.
type Handle struct {
	mu        sync.Mutex
	done      chan error
	finished  bool
	StopCalls int
}

// Done returns the completion channel.
func (h *Handle) Done() <-chan error { return h.done }

// Stop records the call and completes the playback if still running.
func (h *Handle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.StopCalls++
	h.finishLocked(nil)
}

// Finish completes the playback with the given error (nil for success).
func (h *Handle) Finish(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finishLocked(err)
}

func (h *Handle) finishLocked(err error) {
	if h.finished {
		return
	}
	h.finished = true
	if err != nil {
		h.done <- err
	}
	close(h.done)
}

// Ensure Handle implements playback.Handle at compile time.
var _ playback.Handle = (*Handle)(nil)
