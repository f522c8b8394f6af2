// Package observer abstracts the guest-messaging inbox. The production
// implementation drives a real browser; tests use the scripted mock.
package observer

import (
	"context"
	"errors"
	"time"
)

// ErrAuth reports that the inbox session is no longer authenticated. The
// supervisor treats it as fatal; every other observer error is retried.
var ErrAuth = errors.New("observer: authentication required")

// Thread is an inbox conversation as discovered from the thread list.
type Thread struct {
	ID        string
	GuestName string
}

// Message is one rendered message inside a thread. Author is resolved by the
// observer from how the page renders the bubble, so callers never see raw
// markup.
type Message struct {
	Text       string
	Author     string // models.RoleGuest or models.RoleAssistant
	ObservedAt time.Time
}

// Observer is the page-observation capability.
type Observer interface {
	// DiscoverUnreadThreads returns the threads the inbox currently marks
	// as having unread guest activity.
	DiscoverUnreadThreads(ctx context.Context) ([]Thread, error)

	// ListNewMessages returns every message currently visible in a thread,
	// oldest first. Callers filter against their own history.
	ListNewMessages(ctx context.Context, threadID string) ([]Message, error)

	// SendMessage types text into the thread's compose bar and submits it.
	SendMessage(ctx context.Context, threadID, text string) error

	// GuestName resolves the guest's display name for a thread.
	GuestName(ctx context.Context, threadID string) (string, error)

	// Reinit tears down and rebuilds the browser session after a loss.
	Reinit(ctx context.Context) error

	Close() error
}
