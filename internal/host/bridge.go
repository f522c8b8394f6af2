// Package host runs the escalation channel between the system and the human
// host: outbound notifications, reply correlation, curation actions and the
// periodic digest and retention sweeps.
package host

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/casabot/innkeeper/internal/brain"
	"github.com/casabot/innkeeper/internal/curator"
	"github.com/casabot/innkeeper/internal/models"
	"github.com/casabot/innkeeper/internal/notify"
	"github.com/casabot/innkeeper/internal/reqid"
	"github.com/casabot/innkeeper/internal/store"
)

// Waker is implemented by the supervisor: it guarantees a worker is running
// for a thread so an answered request gets delivered.
type Waker interface {
	WakeThread(threadID string)
}

// Escalation is a guest question handed to the host. Note carries extra
// context, such as the description of an AI failure.
type Escalation struct {
	ThreadID     string
	GuestMessage string
	GuestName    string
	Note         string
}

// Opts configures a Bridge.
type Opts struct {
	Store        *store.Store
	Adapter      notify.Adapter
	Brain        brain.Brain
	Curator      *curator.Curator
	Waker        Waker // optional until the supervisor is up
	WatchTimeout time.Duration
	Retention    time.Duration
	Out          io.Writer
}

// Bridge is the host-side coordinator.
type Bridge struct {
	store        *store.Store
	adapter      notify.Adapter
	brain        brain.Brain
	curator      *curator.Curator
	watchTimeout time.Duration
	retention    time.Duration
	out          io.Writer

	mu      sync.Mutex
	waker   Waker
	watches map[string]time.Time // requestID -> created
	now     func() time.Time
}

// New validates opts and returns a Bridge.
func New(opts Opts) (*Bridge, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("host: store is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("host: adapter is required")
	}
	if opts.Brain == nil {
		return nil, fmt.Errorf("host: brain is required")
	}
	if opts.Curator == nil {
		return nil, fmt.Errorf("host: curator is required")
	}
	if opts.WatchTimeout <= 0 {
		return nil, fmt.Errorf("host: watch timeout must be positive")
	}
	if opts.Retention <= opts.WatchTimeout {
		return nil, fmt.Errorf("host: retention must exceed the watch timeout")
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &Bridge{
		store:        opts.Store,
		adapter:      opts.Adapter,
		brain:        opts.Brain,
		curator:      opts.Curator,
		waker:        opts.Waker,
		watchTimeout: opts.WatchTimeout,
		retention:    opts.Retention,
		out:          opts.Out,
		watches:      map[string]time.Time{},
		now:          time.Now,
	}, nil
}

// SetWaker wires the supervisor in after both sides exist.
func (b *Bridge) SetWaker(w Waker) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.waker = w
}

// Escalate persists a pending request and notifies the host. The correlation
// marker is embedded in the notification so a quoted reply finds its way
// back. Persistence happens before the send: a notification the host never
// sees is recoverable from the digest, an answer without a row is not.
func (b *Bridge) Escalate(ctx context.Context, esc Escalation) (string, error) {
	now := b.now()
	id := reqid.New(now)
	req := &models.HostRequest{
		ID:           id,
		ThreadID:     esc.ThreadID,
		GuestMessage: esc.GuestMessage,
		GuestName:    esc.GuestName,
		CreatedAt:    now,
	}
	if err := b.store.AddPendingRequest(req); err != nil {
		return "", err
	}

	if _, err := b.adapter.Send(ctx, notify.Outbound{Text: escalationText(esc, id)}); err != nil {
		return id, fmt.Errorf("host: notify escalation %s: %w", id, err)
	}

	b.mu.Lock()
	b.watches[id] = now
	b.mu.Unlock()
	return id, nil
}

func escalationText(esc Escalation, id string) string {
	name := esc.GuestName
	if name == "" {
		name = "un huésped"
	}
	text := fmt.Sprintf("🔔 Consulta de %s:\n«%s»\n", name, esc.GuestMessage)
	if esc.Note != "" {
		text += fmt.Sprintf("⚠️ %s\n", esc.Note)
	}
	text += "Respondé citando este mensaje.\n" + reqid.Marker(id)
	return text
}

// Run consumes the adapter's inbound stream until the context ends. Each
// message is handled under a recover so one bad payload cannot stop the
// listener.
func (b *Bridge) Run(ctx context.Context) error {
	stream, err := b.adapter.Listen(ctx)
	if err != nil {
		return fmt.Errorf("host: listen: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in, ok := <-stream:
			if !ok {
				return fmt.Errorf("host: inbound stream closed")
			}
			b.handleSafely(ctx, in)
		}
	}
}

func (b *Bridge) handleSafely(ctx context.Context, in notify.Inbound) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("host: recovered handling inbound: %v", r)
		}
	}()
	if err := b.HandleInbound(ctx, in); err != nil {
		log.Printf("host: handle inbound: %v", err)
	}
}

// HandleInbound routes one host message: structured actions to the curation
// handler, everything else through reply correlation.
func (b *Bridge) HandleInbound(ctx context.Context, in notify.Inbound) error {
	if in.Action != nil {
		return b.HandleAction(ctx, *in.Action)
	}
	return b.HandleReply(ctx, in)
}

// HandleReply correlates a free-text host message to its waiting request.
// The marker is looked for in the quoted text first, then in the message
// body. Unmatched messages are chatter and are ignored. The marker is
// stripped from the stored answer so it never reaches the guest.
func (b *Bridge) HandleReply(ctx context.Context, in notify.Inbound) error {
	id, ok := reqid.Decode(in.ReplyToText)
	if !ok {
		id, ok = reqid.Decode(in.Text)
	}
	if !ok {
		log.Printf("host: ignoring message with no request marker")
		return nil
	}

	response := reqid.Strip(in.Text)
	if response == "" {
		log.Printf("host: reply for %s carries no answer text, ignoring", id)
		return nil
	}

	answered, err := b.store.MarkAnswered(id, response, b.now())
	if err != nil {
		return err
	}
	if !answered {
		log.Printf("host: request %s already settled, ignoring reply", id)
		return nil
	}

	req, err := b.store.RequestByID(id)
	if err != nil {
		return err
	}

	b.mu.Lock()
	delete(b.watches, id)
	waker := b.waker
	b.mu.Unlock()

	fmt.Fprintf(b.out, "host answer for %s routed to thread %s\n", id, req.ThreadID)
	if waker != nil {
		waker.WakeThread(req.ThreadID)
	}
	return nil
}

// OfferCuration sends the approve/reject prompt for a Q/A exchange.
func (b *Bridge) OfferCuration(ctx context.Context, question, answer string) error {
	out := notify.Outbound{Text: curator.OfferText(question, answer), WithActions: true}
	if _, err := b.adapter.Send(ctx, out); err != nil {
		return fmt.Errorf("host: send curation offer: %w", err)
	}
	return nil
}

// HandleAction resolves a curation button press. Approvals run the
// extraction chain over the offer text; failures at any point are reported
// back to the host rather than silently dropped.
func (b *Bridge) HandleAction(ctx context.Context, act notify.Action) error {
	switch act.Kind {
	case notify.ActionReject:
		if _, err := b.adapter.Send(ctx, notify.Outbound{Text: "👍 Descartado."}); err != nil {
			return fmt.Errorf("host: ack rejection: %w", err)
		}
		return nil

	case notify.ActionApprove:
		question, answer, err := curator.ExtractPair(ctx, b.brain, act.Context)
		if err != nil {
			b.sendBestEffort(ctx, "⚠️ No pude recuperar la pauta de ese mensaje, no se guardó.")
			return err
		}
		added, err := b.curator.Save(question, answer, models.SourceHostApproved)
		if err != nil {
			b.sendBestEffort(ctx, "⚠️ Falló el guardado de la pauta, intentá de nuevo.")
			return err
		}
		ack := "✅ Pauta guardada."
		if !added {
			ack = "ℹ️ Esa pauta ya estaba guardada."
		}
		b.sendBestEffort(ctx, ack)
		return nil
	}
	return fmt.Errorf("host: unknown action kind %q", act.Kind)
}

func (b *Bridge) sendBestEffort(ctx context.Context, text string) {
	if _, err := b.adapter.Send(ctx, notify.Outbound{Text: text}); err != nil {
		log.Printf("host: send %q: %v", text, err)
	}
}
