// Package protocol defines the WebSocket message types exchanged between
// capture devices, the dataset server and dashboards.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Server → Device messages
	TypeTouch MessageType = "touch" // Touch event forwarded to the capture trigger

	// Device → Server messages
	TypeState MessageType = "state" // Capture state report

	// Server → Dashboard messages
	TypeUploaded MessageType = "uploaded" // A pair was stored

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Server → Device Message Types
// =============================================================================

// TouchData is a touch event. Only Phase drives the capture trigger.
type TouchData struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	ID        int     `json:"id"`
	Timestamp int64   `json:"ts"` // Unix milliseconds
	Phase     string  `json:"phase"`
}

// =============================================================================
// Device → Server Message Types
// =============================================================================

// StateData reports a device's capture state
type StateData struct {
	Enabled   bool   `json:"enabled"`
	Capturing bool   `json:"capturing"`
	Count     uint64 `json:"count"`
	Dataset   string `json:"dataset,omitempty"`
}

// =============================================================================
// Server → Dashboard Message Types
// =============================================================================

// UploadedData describes a stored (image, label) pair
type UploadedData struct {
	Dataset string `json:"dataset"`
	Split   string `json:"split"`
	Image   string `json:"image"`
	Label   string `json:"label"`
	Boxes   int    `json:"boxes"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
