package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

// Feed connection timing. Dashboards never send data, only pong replies to
// the periodic ping, so a silent connection past idleTimeout is dead.
const (
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
	pingInterval = idleTimeout * 9 / 10
	readLimit    = 4 * 1024
	queueSize    = 64
)

// subscriber is one dashboard connection. Only its writer goroutine touches
// the connection for writes; out is closed by the hub when it drops the
// subscriber.
type subscriber struct {
	hub  *Hub
	conn *websocket.Conn
	out  chan Message
}

// Serve attaches conn to h and blocks until the dashboard disconnects or the
// hub stops. Use it as the body of a websocket handler.
func Serve(h *Hub, conn *websocket.Conn) {
	s := &subscriber{hub: h, conn: conn, out: make(chan Message, queueSize)}

	select {
	case h.register <- s:
	case <-h.quit:
		conn.Close()
		return
	}

	go s.deliver()
	s.drain()
}

// drain discards inbound frames so pongs are processed, then detaches.
func (s *subscriber) drain() {
	defer func() {
		select {
		case s.hub.unregister <- s:
		case <-s.hub.quit:
		}
		s.conn.Close()
	}()

	s.conn.SetReadLimit(readLimit)
	s.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// deliver writes queued broadcasts and keepalive pings until out is closed
// or a write fails.
func (s *subscriber) deliver() {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(msg.frameType(), msg.Data); err != nil {
				return
			}

		case <-ping.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
