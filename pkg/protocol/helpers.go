package protocol

import (
	"fmt"
	"time"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewTouchMessage creates a touch event message
func NewTouchMessage(touch TouchData) (*Message, error) {
	if touch.Timestamp == 0 {
		touch.Timestamp = time.Now().UnixMilli()
	}
	return NewMessage(TypeTouch, touch)
}

// NewStateMessage creates a capture state message
func NewStateMessage(state StateData) (*Message, error) {
	return NewMessage(TypeState, state)
}

// NewUploadedMessage creates an upload notification message
func NewUploadedMessage(data UploadedData) (*Message, error) {
	return NewMessage(TypeUploaded, data)
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
	})
}

// NewPongMessage creates a pong response to a ping
func NewPongMessage(ping *PingData) (*Message, error) {
	now := time.Now().UnixMilli()
	return NewMessage(TypePong, PongData{
		ID:        ping.ID,
		PingTS:    ping.Timestamp,
		PongTS:    now,
		LatencyMs: now - ping.Timestamp,
	})
}

// =============================================================================
// Helper functions for parsing message data
// =============================================================================

// GetTouchData extracts touch data from a message
func (m *Message) GetTouchData() (*TouchData, error) {
	if m.Type != TypeTouch {
		return nil, fmt.Errorf("message type is %s, not %s", m.Type, TypeTouch)
	}
	var data TouchData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStateData extracts capture state from a message
func (m *Message) GetStateData() (*StateData, error) {
	if m.Type != TypeState {
		return nil, fmt.Errorf("message type is %s, not %s", m.Type, TypeState)
	}
	var data StateData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetUploadedData extracts upload notification data from a message
func (m *Message) GetUploadedData() (*UploadedData, error) {
	if m.Type != TypeUploaded {
		return nil, fmt.Errorf("message type is %s, not %s", m.Type, TypeUploaded)
	}
	var data UploadedData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	if m.Type != TypePing {
		return nil, fmt.Errorf("message type is %s, not %s", m.Type, TypePing)
	}
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
