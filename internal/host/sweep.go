package host

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/casabot/innkeeper/internal/notify"
)

// Digest sends the host a summary of every request still waiting. Wired to
// the digest cron expression; a quiet day sends nothing.
func (b *Bridge) Digest(ctx context.Context) error {
	waiting, err := b.store.WaitingRequests()
	if err != nil {
		return err
	}
	if len(waiting) == 0 {
		return nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 %d consulta(s) sin responder:\n", len(waiting))
	for _, req := range waiting {
		name := req.GuestName
		if name == "" {
			name = "huésped"
		}
		fmt.Fprintf(&sb, "• %s: «%s»\n  %s\n", name, req.GuestMessage, req.ID)
	}
	if _, err := b.adapter.Send(ctx, notify.Outbound{Text: sb.String()}); err != nil {
		return fmt.Errorf("host: send digest: %w", err)
	}
	return nil
}

// Sweep expires waiting requests past the watch timeout and prunes terminal
// rows past the retention window. Wired to the prune cron expression.
func (b *Bridge) Sweep(ctx context.Context) error {
	now := b.now()

	expired, err := b.store.MarkExpired(now.Add(-b.watchTimeout))
	if err != nil {
		return err
	}
	if expired > 0 {
		fmt.Fprintf(b.out, "expired %d unanswered request(s)\n", expired)
	}

	b.mu.Lock()
	for id, created := range b.watches {
		if now.Sub(created) > b.watchTimeout {
			delete(b.watches, id)
		}
	}
	b.mu.Unlock()

	if err := b.renotifyUnwatched(ctx); err != nil {
		return err
	}

	pruned, err := b.store.PruneRequests(now.Add(-b.retention))
	if err != nil {
		return err
	}
	if pruned > 0 {
		fmt.Fprintf(b.out, "pruned %d settled request(s)\n", pruned)
	}
	return nil
}

// renotifyUnwatched re-sends the notification for waiting requests with no
// watch entry. A request row without a watch means the original send failed
// or the process restarted, so the host never saw it.
func (b *Bridge) renotifyUnwatched(ctx context.Context) error {
	waiting, err := b.store.WaitingRequests()
	if err != nil {
		return err
	}
	for _, req := range waiting {
		b.mu.Lock()
		_, watched := b.watches[req.ID]
		b.mu.Unlock()
		if watched {
			continue
		}
		esc := Escalation{
			ThreadID:     req.ThreadID,
			GuestMessage: req.GuestMessage,
			GuestName:    req.GuestName,
		}
		if _, err := b.adapter.Send(ctx, notify.Outbound{Text: escalationText(esc, req.ID)}); err != nil {
			log.Printf("host: renotify %s: %v", req.ID, err)
			continue
		}
		b.mu.Lock()
		b.watches[req.ID] = req.CreatedAt
		b.mu.Unlock()
		fmt.Fprintf(b.out, "renotified waiting request %s\n", req.ID)
	}
	return nil
}

// WatchedCount reports how many escalations are being tracked in memory.
func (b *Bridge) WatchedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.watches)
}
