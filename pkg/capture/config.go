package capture

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/teslashibe/go-yolocapture/pkg/upload"
)

// Config is the externally supplied capture configuration. It is read once
// when the orchestrator is built.
type Config struct {
	Enabled bool   // Master switch; disabled captures short-circuit
	BaseURL string // Dataset endpoint root
	Dataset string // Target dataset name
}

// Validate checks the config. A disabled config is always valid.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.BaseURL)
	}
	if !upload.ValidDataset(c.Dataset) {
		return fmt.Errorf("%w: %q", ErrInvalidDataset, c.Dataset)
	}
	return nil
}

// Uploader sends one (image, label) pair. upload.Client implements it.
type Uploader interface {
	Upload(ctx context.Context, req *upload.Request) (upload.Result, error)
}

type options struct {
	uploader  Uploader
	logger    *slog.Logger
	stateHook func(State)
}

// Option configures an Orchestrator.
type Option func(*options)

// WithUploader replaces the HTTP upload client built from Config.BaseURL.
func WithUploader(u Uploader) Option {
	return func(o *options) { o.uploader = u }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithStateHook registers fn to receive a snapshot after every state change.
// fn runs synchronously on the goroutine that changed the state.
func WithStateHook(fn func(State)) Option {
	return func(o *options) { o.stateHook = fn }
}
