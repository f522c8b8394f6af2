package worker

import (
	"context"
	"sync"
	"time"

	"github.com/casabot/innkeeper/internal/models"
	"github.com/casabot/innkeeper/internal/observer"
)

// mockObserver is a worker-local scripted observer. Unlike observer.Mock it
// can be told to panic, which the recover tests need.
type mockObserver struct {
	mu          sync.Mutex
	transcript  map[string][]observer.Message
	sent        map[string][]string
	panicOnList bool
}

func newMockObserver() *mockObserver {
	return &mockObserver{
		transcript: map[string][]observer.Message{},
		sent:       map[string][]string{},
	}
}

func (m *mockObserver) stageGuest(threadID, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transcript[threadID] = append(m.transcript[threadID], observer.Message{
		Text: text, Author: models.RoleGuest, ObservedAt: time.Now(),
	})
}

func (m *mockObserver) sentTo(threadID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent[threadID]))
	copy(out, m.sent[threadID])
	return out
}

func (m *mockObserver) DiscoverUnreadThreads(ctx context.Context) ([]observer.Thread, error) {
	return nil, nil
}

func (m *mockObserver) ListNewMessages(ctx context.Context, threadID string) ([]observer.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panicOnList {
		panic("scripted panic")
	}
	out := make([]observer.Message, len(m.transcript[threadID]))
	copy(out, m.transcript[threadID])
	return out, nil
}

func (m *mockObserver) SendMessage(ctx context.Context, threadID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[threadID] = append(m.sent[threadID], text)
	m.transcript[threadID] = append(m.transcript[threadID], observer.Message{
		Text: text, Author: models.RoleAssistant, ObservedAt: time.Now(),
	})
	return nil
}

func (m *mockObserver) GuestName(ctx context.Context, threadID string) (string, error) {
	return "Ana", nil
}

func (m *mockObserver) Reinit(ctx context.Context) error { return nil }

func (m *mockObserver) Close() error { return nil }
