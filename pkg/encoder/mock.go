package encoder

import (
	"context"
	"image"
	"sync"
)

// Mock is a scripted Encoder for tests.
type Mock struct {
	mu sync.Mutex

	// Payload is returned on success.
	Payload string

	// Err, when set, is returned instead of Payload.
	Err error

	// Block, when set, makes Encode wait until it is closed or ctx ends.
	Block chan struct{}

	calls int
}

// NewMock returns a Mock that succeeds with payload.
func NewMock(payload string) *Mock {
	return &Mock{Payload: payload}
}

// Encode implements Encoder.
func (m *Mock) Encode(ctx context.Context, _ image.Image) (string, error) {
	m.mu.Lock()
	m.calls++
	block := m.Block
	payload, err := m.Payload, m.Err
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return payload, nil
}

// Calls returns how many times Encode was invoked.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
