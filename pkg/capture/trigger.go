package capture

import (
	"sync/atomic"

	"github.com/teslashibe/go-yolocapture/pkg/touch"
)

// Trigger is the two-state (idle/pending) activation flag set by touch input.
type Trigger struct {
	pending atomic.Bool
}

// OnTouchEvent sets the pending flag on a began phase and ignores all others.
// It reports whether the event was a began.
func (t *Trigger) OnTouchEvent(ev touch.Event) bool {
	if ev.Phase != touch.Began {
		return false
	}
	t.pending.Store(true)
	return true
}

// Pending reports whether a capture has been requested.
func (t *Trigger) Pending() bool {
	return t.pending.Load()
}

// Reset clears the flag and returns its previous value.
func (t *Trigger) Reset() bool {
	return t.pending.Swap(false)
}
