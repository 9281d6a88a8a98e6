package server

import (
	"errors"
	"log/slog"

	"github.com/teslashibe/go-yolocapture/pkg/relay"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// DefaultBodyLimit bounds upload bodies; base64 frames from a 1080p camera
// stay well under it.
const DefaultBodyLimit = 32 * 1024 * 1024

// Config holds dataset server settings.
type Config struct {
	// Addr is the listen address, e.g. ":8000".
	Addr string

	// BodyLimit is the maximum request body size in bytes.
	BodyLimit int

	// CORSOrigins is passed to the CORS middleware. Empty allows all.
	CORSOrigins string

	// RequestLog enables per-request access logging.
	RequestLog bool

	// Relay accepts capture device connections. Nil creates one.
	Relay *relay.Relay

	Logger *slog.Logger
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:      ":8000",
		BodyLimit: DefaultBodyLimit,
	}
}

// Option configures the server.
type Option func(*Config)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(c *Config) { c.Addr = addr }
}

// WithBodyLimit sets the maximum request body size.
func WithBodyLimit(n int) Option {
	return func(c *Config) { c.BodyLimit = n }
}

// WithCORSOrigins restricts cross-origin requests to a comma-separated list.
func WithCORSOrigins(origins string) Option {
	return func(c *Config) { c.CORSOrigins = origins }
}

// WithRequestLog enables per-request access logging.
func WithRequestLog(enabled bool) Option {
	return func(c *Config) { c.RequestLog = enabled }
}

// WithRelay shares an existing device relay.
func WithRelay(r *relay.Relay) Option {
	return func(c *Config) { c.Relay = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// Apply applies options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("server: listen address is required")
	}
	if c.BodyLimit <= 0 {
		return errors.New("server: body limit must be positive")
	}
	return nil
}
