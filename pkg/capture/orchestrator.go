// Package capture implements the touch-triggered capture pipeline: a touch
// began arms the trigger, the host calls Capture with the current frame and
// detections, and the orchestrator formats labels, encodes the frame and
// uploads the pair.
//
// Example usage:
//
//	orch, _ := capture.New(capture.Config{
//	    Enabled: true,
//	    BaseURL: "https://api.example.com",
//	    Dataset: "ds1",
//	}, encoder.NewJPEG())
//
//	// input system
//	source.Subscribe(orch.OnTouchEvent)
//
//	// frame loop
//	if orch.IsCapturing() {
//	    orch.Capture(ctx, frame, dets, func(res upload.Result) { ... })
//	}
//
// Attempts run on their own goroutine and are not serialized against each
// other. The callback receives the parsed server response, or nil when the
// attempt produced none (capture disabled, non-success status). Encode,
// transport and decode failures skip the callback and surface only through
// the returned Attempt.
package capture

import (
	"context"
	"image"
	"log/slog"
	"sync/atomic"

	"github.com/teslashibe/go-yolocapture/pkg/encoder"
	"github.com/teslashibe/go-yolocapture/pkg/label"
	"github.com/teslashibe/go-yolocapture/pkg/touch"
	"github.com/teslashibe/go-yolocapture/pkg/upload"
)

// Callback receives the outcome of an attempt. A nil result is the
// absence-of-result sentinel.
type Callback func(result upload.Result)

// State is a snapshot of the orchestrator's capture state.
type State struct {
	Capturing bool   `json:"capturing"`
	Count     uint64 `json:"count"`
}

// Orchestrator owns the capture state and runs capture attempts.
type Orchestrator struct {
	cfg       Config
	trigger   Trigger
	count     atomic.Uint64
	encoder   encoder.Encoder
	uploader  Uploader
	stateHook func(State)
	logger    *slog.Logger
}

// New builds an orchestrator. Unless WithUploader is given, an upload.Client
// for cfg.BaseURL is created when capture is enabled.
func New(cfg Config, enc encoder.Encoder, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, ErrNoEncoder
	}

	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	if o.uploader == nil && cfg.Enabled {
		client, err := upload.NewClient(
			upload.WithBaseURL(cfg.BaseURL),
			upload.WithLogger(o.logger),
		)
		if err != nil {
			return nil, err
		}
		o.uploader = client
	}

	return &Orchestrator{
		cfg:       cfg,
		encoder:   enc,
		uploader:  o.uploader,
		stateHook: o.stateHook,
		logger:    o.logger.With("component", "capture.orchestrator", "dataset", cfg.Dataset),
	}, nil
}

// Config returns the configuration the orchestrator was built with.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// OnTouchEvent is the touch subscription entry point. Position, ID and
// timestamp are ignored; only a began phase arms the trigger.
func (o *Orchestrator) OnTouchEvent(ev touch.Event) {
	if o.trigger.OnTouchEvent(ev) {
		o.logger.Debug("capture armed", "touch_id", ev.ID)
		o.notify()
	}
}

// IsCapturing reports whether a capture has been requested and not yet taken.
func (o *Orchestrator) IsCapturing() bool {
	return o.trigger.Pending()
}

// CaptureCount returns the number of capture attempts made while enabled.
func (o *Orchestrator) CaptureCount() uint64 {
	return o.count.Load()
}

// State returns a snapshot of the capture state.
func (o *Orchestrator) State() State {
	return State{Capturing: o.trigger.Pending(), Count: o.count.Load()}
}

// Capture starts one attempt for frame and dets. The trigger is cleared before
// anything else. When capture is disabled, cb(nil) runs before Capture returns
// and the count is unchanged. Otherwise the count is incremented, labels are
// formatted, and encode plus upload run on a new goroutine.
func (o *Orchestrator) Capture(ctx context.Context, frame image.Image, dets []label.Detection, cb Callback) *Attempt {
	o.trigger.Reset()

	if !o.cfg.Enabled {
		o.logger.Info("capture is disabled")
		o.notify()
		a := newAttempt(0)
		if cb != nil {
			cb(nil)
		}
		a.resolve(nil, ErrCaptureDisabled)
		return a
	}

	seq := o.count.Add(1)
	o.notify()
	labels := label.Format(dets)
	a := newAttempt(seq)

	o.logger.Info("capturing", "seq", seq, "detections", len(dets))
	go func() {
		a.resolve(o.run(ctx, seq, frame, labels, cb))
	}()
	return a
}

func (o *Orchestrator) run(ctx context.Context, seq uint64, frame image.Image, labels string, cb Callback) (upload.Result, error) {
	payload, err := o.encoder.Encode(ctx, frame)
	if err != nil {
		o.logger.Error("image encoding failed", "seq", seq, "error", err)
		return nil, &EncodeError{Seq: seq, Err: err}
	}
	o.logger.Debug("image encoded", "seq", seq, "bytes", len(payload))

	result, err := o.uploader.Upload(ctx, &upload.Request{
		Dataset:     o.cfg.Dataset,
		ImageBase64: payload,
		Label:       labels,
	})
	if err != nil {
		o.logger.Error("upload failed", "seq", seq, "error", err)
		return nil, err
	}

	if result != nil {
		o.logger.Info("upload complete", "seq", seq)
	}
	if cb != nil {
		cb(result)
	}
	return result, nil
}

func (o *Orchestrator) notify() {
	if o.stateHook != nil {
		o.stateHook(o.State())
	}
}
