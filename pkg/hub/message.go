// Package hub provides a websocket broadcast hub for dashboards watching the
// upload feed, using a channel-based fan-out.
package hub

import (
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-yolocapture/pkg/protocol"
)

// MessageType indicates the websocket message format
type MessageType int

const (
	// JSONMessage is a JSON-encoded message
	JSONMessage MessageType = iota
	// BinaryMessage is raw binary data (JPEG images)
	BinaryMessage
)

// Message represents a message to be broadcast to clients
type Message struct {
	Type MessageType
	Data []byte
}

func (m Message) frameType() int {
	if m.Type == BinaryMessage {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// NewJSONMessage creates a JSON message from pre-encoded bytes
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage creates a binary message
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}

// FromProtocol encodes a protocol message for broadcast
func FromProtocol(msg *protocol.Message) (Message, error) {
	data, err := msg.Bytes()
	if err != nil {
		return Message{}, err
	}
	return NewJSONMessage(data), nil
}
