package touch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-yolocapture/pkg/protocol"
)

// ErrNotConnected is returned by ReportState while no connection is up.
var ErrNotConnected = errors.New("touch: remote not connected")

const (
	defaultReconnectDelay = 2 * time.Second
	writeWait             = 5 * time.Second
)

// Remote receives touch events over a websocket, typically from the dataset
// server's /ws/device/:id endpoint, and reports capture state back.
type Remote struct {
	url            string
	handler        Handler
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
	logger         *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// RemoteOption configures a Remote.
type RemoteOption func(*Remote)

// WithReconnectDelay sets the pause between connection attempts.
func WithReconnectDelay(d time.Duration) RemoteOption {
	return func(r *Remote) { r.reconnectDelay = d }
}

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) RemoteOption {
	return func(r *Remote) { r.dialer = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) RemoteOption {
	return func(r *Remote) { r.logger = l }
}

// NewRemote creates a remote touch source for url that delivers events to h.
func NewRemote(url string, h Handler, opts ...RemoteOption) *Remote {
	r := &Remote{
		url:            url,
		handler:        h,
		dialer:         websocket.DefaultDialer,
		reconnectDelay: defaultReconnectDelay,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "touch.remote")
	return r
}

// Run connects and dispatches events until ctx is done, reconnecting after
// failures. It always returns ctx.Err().
func (r *Remote) Run(ctx context.Context) error {
	for {
		if err := r.session(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn("touch feed disconnected", "url", r.url, "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.reconnectDelay):
		}
	}
}

// Connected reports whether a connection is currently up.
func (r *Remote) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn != nil
}

// ReportState sends a capture state message to the server.
func (r *Remote) ReportState(state protocol.StateData) error {
	msg, err := protocol.NewStateMessage(state)
	if err != nil {
		return err
	}
	return r.write(msg)
}

func (r *Remote) session(ctx context.Context) error {
	conn, _, err := r.dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return err
	}
	r.logger.Info("touch feed connected", "url", r.url)

	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()

	done := make(chan struct{})
	defer func() {
		close(done)
		r.mu.Lock()
		r.conn = nil
		r.mu.Unlock()
		conn.Close()
	}()
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		r.dispatch(data)
	}
}

func (r *Remote) dispatch(data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		r.logger.Debug("dropping unparseable message", "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeTouch:
		touch, err := msg.GetTouchData()
		if err != nil {
			r.logger.Debug("dropping bad touch message", "error", err)
			return
		}
		r.handler(FromProtocol(touch))

	case protocol.TypePing:
		ping, err := msg.GetPingData()
		if err != nil {
			return
		}
		pong, err := protocol.NewPongMessage(ping)
		if err != nil {
			return
		}
		if err := r.write(pong); err != nil {
			r.logger.Debug("pong failed", "error", err)
		}
	}
}

func (r *Remote) write(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return ErrNotConnected
	}
	r.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return r.conn.WriteMessage(websocket.TextMessage, data)
}
