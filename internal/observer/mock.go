package observer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/casabot/innkeeper/internal/models"
)

// Mock is a scripted Observer for tests. Threads and messages are staged by
// the test; sends are recorded for assertions.
type Mock struct {
	mu sync.Mutex

	unread   []Thread
	messages map[string][]Message
	names    map[string]string
	sent     map[string][]string

	DiscoverErr error
	ListErr     error
	SendErr     error
	ReinitCount int
}

// NewMock returns an empty scripted observer.
func NewMock() *Mock {
	return &Mock{
		messages: map[string][]Message{},
		names:    map[string]string{},
		sent:     map[string][]string{},
	}
}

// StageThread marks a thread as unread with the given guest name.
func (m *Mock) StageThread(id, guestName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unread = append(m.unread, Thread{ID: id, GuestName: guestName})
	m.names[id] = guestName
}

// ClearUnread empties the unread list, as a real inbox does once read.
func (m *Mock) ClearUnread() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unread = nil
}

// StageGuestMessage appends a guest message to a thread's visible transcript.
func (m *Mock) StageGuestMessage(threadID, text string) {
	m.stageMessage(threadID, text, models.RoleGuest)
}

// StageAssistantMessage appends an assistant message to a thread's transcript.
func (m *Mock) StageAssistantMessage(threadID, text string) {
	m.stageMessage(threadID, text, models.RoleAssistant)
}

func (m *Mock) stageMessage(threadID, text, author string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[threadID] = append(m.messages[threadID], Message{
		Text:       text,
		Author:     author,
		ObservedAt: time.Now(),
	})
}

// SetSendErr swaps the scripted send failure while the mock is in use.
func (m *Mock) SetSendErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendErr = err
}

// Sent returns the messages sent to a thread, in order.
func (m *Mock) Sent(threadID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent[threadID]))
	copy(out, m.sent[threadID])
	return out
}

func (m *Mock) DiscoverUnreadThreads(ctx context.Context) ([]Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DiscoverErr != nil {
		return nil, m.DiscoverErr
	}
	out := make([]Thread, len(m.unread))
	copy(out, m.unread)
	return out, nil
}

func (m *Mock) ListNewMessages(ctx context.Context, threadID string) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]Message, len(m.messages[threadID]))
	copy(out, m.messages[threadID])
	return out, nil
}

func (m *Mock) SendMessage(ctx context.Context, threadID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.sent[threadID] = append(m.sent[threadID], text)
	// Sent messages become part of the visible transcript.
	m.messages[threadID] = append(m.messages[threadID], Message{
		Text:       text,
		Author:     models.RoleAssistant,
		ObservedAt: time.Now(),
	})
	return nil
}

func (m *Mock) GuestName(ctx context.Context, threadID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.names[threadID]
	if !ok {
		return "", fmt.Errorf("observer: unknown thread %s", threadID)
	}
	return name, nil
}

func (m *Mock) Reinit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReinitCount++
	m.DiscoverErr = nil
	m.ListErr = nil
	m.SendErr = nil
	return nil
}

func (m *Mock) Close() error { return nil }
