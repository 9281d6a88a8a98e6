// Package encoder turns in-memory frames into text-safe payloads suitable for
// embedding in a JSON body.
//
// The capture pipeline only depends on the Encoder interface. JPEG is the
// built-in implementation; FromAsync adapts a callback-style encoding
// capability supplied by a host runtime.
package encoder

import (
	"context"
	"errors"
	"image"
)

// ErrEncodeFailed is returned when the underlying encoder reports failure.
var ErrEncodeFailed = errors.New("encoder: encode failed")

// Encoder converts a frame into an encoded payload.
type Encoder interface {
	// Encode blocks until the payload is ready, the encoder fails, or ctx is done.
	Encode(ctx context.Context, frame image.Image) (string, error)
}

// Func adapts an ordinary function to the Encoder interface.
type Func func(ctx context.Context, frame image.Image) (string, error)

// Encode calls f.
func (f Func) Encode(ctx context.Context, frame image.Image) (string, error) {
	return f(ctx, frame)
}

// AsyncFunc is a callback-style encoding capability. Implementations must call
// exactly one of onSuccess or onFailure, from any goroutine.
type AsyncFunc func(frame image.Image, onSuccess func(payload string), onFailure func())

// FromAsync wraps a callback-style capability so it can be awaited. The first
// callback wins; later calls are ignored. If ctx ends first, ctx.Err() is
// returned and the eventual callback is dropped.
func FromAsync(fn AsyncFunc) Encoder {
	return Func(func(ctx context.Context, frame image.Image) (string, error) {
		type outcome struct {
			payload string
			ok      bool
		}
		done := make(chan outcome, 1)
		deliver := func(o outcome) {
			select {
			case done <- o:
			default:
			}
		}

		fn(frame,
			func(payload string) { deliver(outcome{payload: payload, ok: true}) },
			func() { deliver(outcome{}) },
		)

		select {
		case o := <-done:
			if !o.ok {
				return "", ErrEncodeFailed
			}
			return o.payload, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
}
