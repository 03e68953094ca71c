package engine

import "time"

// advanceTimer is the single outstanding auto-advance action for a revealed
// item. The engine owns at most one alive at a time and cancels it
// explicitly at the top of every state transition that could race with it —
// the pointer doubles as an identity token, so a timer that fires after
// being superseded finds the engine pointing elsewhere and does nothing.
type advanceTimer struct {
	t *time.Timer
}

// arm schedules fn after d. Callers must construct the handle first so fn
// can capture it safely before the timer can possibly fire.
func (at *advanceTimer) arm(d time.Duration, fn func()) {
	at.t = time.AfterFunc(d, fn)
}

// cancel stops the underlying timer. Stopping an already-fired timer is
// harmless; the identity check in the callback handles the lost race.
func (at *advanceTimer) cancel() {
	at.t.Stop()
}
