package notify

import (
	"context"
	"fmt"
	"sync"
)

// MockAdapter records sends and lets tests inject inbound traffic.
type MockAdapter struct {
	mu sync.Mutex

	connected bool
	sent      []Outbound
	inbound   chan Inbound

	SendErr error
}

// NewMockAdapter returns a disconnected mock.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{inbound: make(chan Inbound, 16)}
}

func (m *MockAdapter) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *MockAdapter) Listen(ctx context.Context) (<-chan Inbound, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, fmt.Errorf("notify: mock not connected")
	}
	return m.inbound, nil
}

func (m *MockAdapter) Send(ctx context.Context, out Outbound) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return "", m.SendErr
	}
	m.sent = append(m.sent, out)
	return fmt.Sprintf("mock-%d", len(m.sent)), nil
}

func (m *MockAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected {
		m.connected = false
		close(m.inbound)
	}
	return nil
}

// SimulateInbound injects a host message as if it arrived from the platform.
func (m *MockAdapter) SimulateInbound(in Inbound) {
	m.inbound <- in
}

// Sent returns a copy of everything sent so far.
func (m *MockAdapter) Sent() []Outbound {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Outbound, len(m.sent))
	copy(out, m.sent)
	return out
}

// LastSent returns the most recent outbound message, or false when none.
func (m *MockAdapter) LastSent() (Outbound, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return Outbound{}, false
	}
	return m.sent[len(m.sent)-1], true
}
