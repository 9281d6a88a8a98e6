// Package touch models touch input and the sources that deliver it.
//
// Hosts subscribe a Handler (typically capture.Orchestrator.OnTouchEvent) to
// one or more sources: a line reader for terminals and a remote websocket
// source fed by the dataset server's device relay.
package touch

import (
	"time"

	"github.com/teslashibe/go-yolocapture/pkg/protocol"
)

// Phase is the touch lifecycle stage.
type Phase string

const (
	Began      Phase = "began"
	Moved      Phase = "moved"
	Stationary Phase = "stationary"
	Ended      Phase = "ended"
	Canceled   Phase = "canceled"
)

// Point is a normalized screen position.
type Point struct {
	X, Y float64
}

// Event is one touch sample.
type Event struct {
	Position  Point
	ID        int
	Timestamp time.Time
	Phase     Phase
}

// Handler consumes touch events.
type Handler func(Event)

// Tap returns a began event at the screen center.
func Tap(id int) Event {
	return Event{
		Position:  Point{X: 0.5, Y: 0.5},
		ID:        id,
		Timestamp: time.Now(),
		Phase:     Began,
	}
}

// FromProtocol converts a wire touch message.
func FromProtocol(d *protocol.TouchData) Event {
	return Event{
		Position:  Point{X: d.X, Y: d.Y},
		ID:        d.ID,
		Timestamp: time.UnixMilli(d.Timestamp),
		Phase:     Phase(d.Phase),
	}
}

// Protocol converts the event to its wire form.
func (e Event) Protocol() protocol.TouchData {
	var ts int64
	if !e.Timestamp.IsZero() {
		ts = e.Timestamp.UnixMilli()
	}
	return protocol.TouchData{
		X:         e.Position.X,
		Y:         e.Position.Y,
		ID:        e.ID,
		Timestamp: ts,
		Phase:     string(e.Phase),
	}
}
