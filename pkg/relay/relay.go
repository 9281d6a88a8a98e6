// Package relay keeps websocket connections from capture devices so an
// operator can fire a remote capture and watch each device's capture state.
package relay

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/teslashibe/go-yolocapture/pkg/protocol"
	"github.com/teslashibe/go-yolocapture/pkg/touch"
)

// ErrDeviceNotConnected is returned when targeting an unknown device.
var ErrDeviceNotConnected = errors.New("relay: device not connected")

// writeWait bounds a single write to a device.
const writeWait = 5 * time.Second

// conn is the subset of *websocket.Conn a device connection writes to.
type conn interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
}

// DeviceConnection represents a connected capture device
type DeviceConnection struct {
	ID        string
	Connected time.Time

	writeMu sync.Mutex
	conn    conn

	mu       sync.Mutex
	lastSeen time.Time
	state    *protocol.StateData
}

// Send sends a message to the device. A device that does not accept the
// write within writeWait fails the send.
func (d *DeviceConnection) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	if err := d.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return d.conn.WriteMessage(websocket.TextMessage, data)
}

func (d *DeviceConnection) seen(state *protocol.StateData) {
	d.mu.Lock()
	d.lastSeen = time.Now()
	if state != nil {
		d.state = state
	}
	d.mu.Unlock()
}

// Relay manages WebSocket connections from capture devices
type Relay struct {
	mu      sync.RWMutex
	devices map[string]*DeviceConnection
	logger  *slog.Logger

	onState func(deviceID string, state *protocol.StateData)

	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	triggersSent     atomic.Uint64
}

// New creates a new device relay
func New(logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		devices: make(map[string]*DeviceConnection),
		logger:  logger.With("component", "relay"),
	}
}

// OnState sets the callback for capture state reports
func (r *Relay) OnState(callback func(deviceID string, state *protocol.StateData)) {
	r.mu.Lock()
	r.onState = callback
	r.mu.Unlock()
}

// RegisterRoutes registers the device WebSocket routes on a Fiber app
func (r *Relay) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/device", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/device", websocket.New(r.handleDevice))
	app.Get("/ws/device/:id", websocket.New(r.handleDevice))
}

// handleDevice runs one device connection until it closes
func (r *Relay) handleDevice(c *websocket.Conn) {
	deviceID := c.Params("id")
	if deviceID == "" {
		deviceID = uuid.NewString()
	}

	device := r.add(deviceID, c)
	defer r.remove(deviceID, device)

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			r.logger.Debug("device read ended", "device", deviceID, "error", err)
			return
		}
		r.messagesReceived.Add(1)
		r.handleMessage(device, data)
	}
}

func (r *Relay) add(id string, c conn) *DeviceConnection {
	now := time.Now()
	device := &DeviceConnection{ID: id, Connected: now, conn: c, lastSeen: now}

	r.mu.Lock()
	r.devices[id] = device
	count := len(r.devices)
	r.mu.Unlock()

	r.logger.Info("device connected", "device", id, "devices", count)
	return device
}

func (r *Relay) remove(id string, device *DeviceConnection) {
	r.mu.Lock()
	// A reconnect under the same ID may already have replaced this entry.
	if r.devices[id] == device {
		delete(r.devices, id)
	}
	count := len(r.devices)
	r.mu.Unlock()

	r.logger.Info("device disconnected", "device", id, "devices", count)
}

// handleMessage processes an incoming message from a device
func (r *Relay) handleMessage(device *DeviceConnection, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		r.logger.Debug("parse error", "device", device.ID, "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeState:
		state, err := msg.GetStateData()
		if err != nil {
			return
		}
		device.seen(state)

		r.mu.RLock()
		cb := r.onState
		r.mu.RUnlock()
		if cb != nil {
			cb(device.ID, state)
		}

	case protocol.TypePing:
		device.seen(nil)
		ping, err := msg.GetPingData()
		if err != nil {
			return
		}
		if pong, err := protocol.NewPongMessage(ping); err == nil {
			r.send(device, pong)
		}

	default:
		device.seen(nil)
	}
}

func (r *Relay) send(device *DeviceConnection, msg *protocol.Message) error {
	r.messagesSent.Add(1)
	return device.Send(msg)
}

// Trigger sends a touch-began to one device, arming its capture trigger
func (r *Relay) Trigger(deviceID string) error {
	r.mu.RLock()
	device, ok := r.devices[deviceID]
	r.mu.RUnlock()
	if !ok {
		return ErrDeviceNotConnected
	}

	msg, err := protocol.NewTouchMessage(touch.Tap(0).Protocol())
	if err != nil {
		return err
	}
	if err := r.send(device, msg); err != nil {
		return err
	}
	r.triggersSent.Add(1)
	r.logger.Info("remote capture triggered", "device", deviceID)
	return nil
}

// TriggerAll arms every connected device and returns how many were reached
func (r *Relay) TriggerAll() int {
	sent := 0
	for _, info := range r.Devices() {
		if err := r.Trigger(info.ID); err != nil {
			r.logger.Warn("trigger failed", "device", info.ID, "error", err)
			continue
		}
		sent++
	}
	return sent
}

// DeviceCount returns the number of connected devices
func (r *Relay) DeviceCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// DeviceInfo describes a connected device
type DeviceInfo struct {
	ID        string              `json:"id"`
	Connected time.Time           `json:"connected"`
	LastSeen  time.Time           `json:"last_seen"`
	State     *protocol.StateData `json:"state,omitempty"`
}

// Devices returns info about all connected devices
func (r *Relay) Devices() []DeviceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]DeviceInfo, 0, len(r.devices))
	for _, d := range r.devices {
		d.mu.Lock()
		infos = append(infos, DeviceInfo{
			ID:        d.ID,
			Connected: d.Connected,
			LastSeen:  d.lastSeen,
			State:     d.state,
		})
		d.mu.Unlock()
	}
	return infos
}

// Stats contains relay statistics
type Stats struct {
	DeviceCount      int    `json:"device_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	TriggersSent     uint64 `json:"triggers_sent"`
}

// GetStats returns relay statistics
func (r *Relay) GetStats() Stats {
	return Stats{
		DeviceCount:      r.DeviceCount(),
		MessagesReceived: r.messagesReceived.Load(),
		MessagesSent:     r.messagesSent.Load(),
		TriggersSent:     r.triggersSent.Load(),
	}
}

// RegisterAPIRoutes registers device management routes
func (r *Relay) RegisterAPIRoutes(api fiber.Router) {
	devices := api.Group("/devices")

	devices.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"devices": r.Devices(),
			"count":   r.DeviceCount(),
		})
	})

	devices.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(r.GetStats())
	})

	devices.Post("/trigger", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "sent", "devices": r.TriggerAll()})
	})

	devices.Post("/:id/trigger", func(c *fiber.Ctx) error {
		err := r.Trigger(c.Params("id"))
		switch {
		case errors.Is(err, ErrDeviceNotConnected):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"detail": err.Error()})
		case err != nil:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "sent"})
	})
}
