// Package worker runs one conversation loop per guest thread.
package worker

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/casabot/innkeeper/internal/brain"
	"github.com/casabot/innkeeper/internal/curator"
	"github.com/casabot/innkeeper/internal/host"
	"github.com/casabot/innkeeper/internal/models"
	"github.com/casabot/innkeeper/internal/observer"
	"github.com/casabot/innkeeper/internal/store"
)

// Event kinds a worker reports to the supervisor.
const (
	EventEscalationRaised = "escalationRaised"
	EventHistorySnapshot  = "historySnapshot"
	EventCurationOffer    = "curationOffer"
	EventWorkerStopped    = "workerStopped"
)

// Event is one worker lifecycle notification.
type Event struct {
	Kind     string
	ThreadID string
	Detail   string
}

// Opts configures a Worker.
type Opts struct {
	ThreadID  string
	GuestName string

	Store    *store.Store
	Observer observer.Observer
	Brain    brain.Brain
	Bridge   *host.Bridge
	Curator  *curator.Curator

	CheckInterval time.Duration
	IdleTimeout   time.Duration
	MinMessageLen int
	MessagePause  time.Duration
	Retention     time.Duration
	Location      *time.Location
	FactsPath     string

	Events chan<- Event // optional
	Out    io.Writer    // optional
}

// Worker owns one thread: it delivers host answers, replies to new guest
// messages and keeps the stored transcript current. It exits on its own once
// the thread goes idle.
type Worker struct {
	opts    Opts
	history []models.ConversationTurn
	wake    chan struct{}
	now     func() time.Time
}

// New validates opts and returns a Worker.
func New(opts Opts) (*Worker, error) {
	if opts.ThreadID == "" {
		return nil, fmt.Errorf("worker: thread id is required")
	}
	if opts.Store == nil || opts.Observer == nil || opts.Brain == nil ||
		opts.Bridge == nil || opts.Curator == nil {
		return nil, fmt.Errorf("worker: store, observer, brain, bridge and curator are required")
	}
	if opts.CheckInterval <= 0 {
		return nil, fmt.Errorf("worker: check interval must be positive")
	}
	if opts.IdleTimeout <= opts.CheckInterval {
		return nil, fmt.Errorf("worker: idle timeout must exceed the check interval")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &Worker{opts: opts, wake: make(chan struct{}, 1), now: time.Now}, nil
}

// Wake asks the worker to run a cycle now instead of waiting out the
// interval. Used when a host answer lands for this thread.
func (w *Worker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run loops until the context ends or the thread goes idle. The stored
// transcript seeds the in-memory history so restarts do not regreet or
// reprocess old messages.
func (w *Worker) Run(ctx context.Context) error {
	defer w.emit(EventWorkerStopped, "")

	history, err := w.opts.Store.LoadHistory(w.opts.ThreadID)
	if err != nil {
		log.Printf("worker %s: load history: %v", w.opts.ThreadID, err)
	}
	w.history = history

	lastActivity := w.now()
	for {
		if w.cycleSafely(ctx) {
			lastActivity = w.now()
		}
		if w.now().Sub(lastActivity) >= w.opts.IdleTimeout {
			fmt.Fprintf(w.opts.Out, "worker %s: idle, exiting\n", w.opts.ThreadID)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.wake:
		case <-time.After(w.opts.CheckInterval):
		}
	}
}

// cycleSafely runs one cycle under a recover so one bad message cannot kill
// the loop. It reports whether the cycle made progress.
func (w *Worker) cycleSafely(ctx context.Context) (progressed bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("worker %s: recovered from cycle panic: %v", w.opts.ThreadID, r)
			progressed = false
		}
	}()
	progressed, err := w.cycle(ctx)
	if err != nil {
		log.Printf("worker %s: cycle: %v", w.opts.ThreadID, err)
	}
	return progressed
}

// cycle is one pass over the thread: deliver answered host requests, process
// new guest messages, prune settled requests, snapshot the transcript.
func (w *Worker) cycle(ctx context.Context) (bool, error) {
	progressed := false

	delivered, err := w.deliverAnswers(ctx)
	if err != nil {
		return progressed, err
	}
	progressed = progressed || delivered

	handled, err := w.processNewMessages(ctx)
	if err != nil {
		return progressed, err
	}
	progressed = progressed || handled

	if w.opts.Retention > 0 {
		if _, err := w.opts.Store.PruneThreadRequests(w.opts.ThreadID, w.now().Add(-w.opts.Retention)); err != nil {
			log.Printf("worker %s: prune: %v", w.opts.ThreadID, err)
		}
	}

	if err := w.opts.Store.SaveHistory(w.opts.ThreadID, w.history); err != nil {
		log.Printf("worker %s: snapshot history: %v", w.opts.ThreadID, err)
	} else {
		w.emit(EventHistorySnapshot, fmt.Sprintf("%d turns", len(w.history)))
	}
	return progressed, nil
}

// deliverAnswers sends every answered host request to the guest, refining
// the host's note first. Refinement failure falls back to the raw note; the
// guest waiting longer would be worse than terse wording.
func (w *Worker) deliverAnswers(ctx context.Context) (bool, error) {
	reqs, err := w.opts.Store.AnsweredRequests(w.opts.ThreadID)
	if err != nil {
		return false, err
	}
	delivered := false
	for _, req := range reqs {
		text, err := w.opts.Brain.RefineHostAnswer(ctx, req.GuestMessage, req.HostResponse)
		if err != nil {
			log.Printf("worker %s: refine %s: %v", w.opts.ThreadID, req.ID, err)
			text = req.HostResponse
		}
		if err := w.opts.Observer.SendMessage(ctx, w.opts.ThreadID, text); err != nil {
			return delivered, fmt.Errorf("deliver %s: %w", req.ID, err)
		}
		w.appendTurn(models.RoleAssistant, text)
		if err := w.opts.Store.RemoveRequest(req.ID); err != nil {
			log.Printf("worker %s: remove %s: %v", w.opts.ThreadID, req.ID, err)
		}
		delivered = true
	}
	return delivered, nil
}

// processNewMessages answers the guest messages that arrived since our last
// message in the thread.
func (w *Worker) processNewMessages(ctx context.Context) (bool, error) {
	visible, err := w.opts.Observer.ListNewMessages(ctx, w.opts.ThreadID)
	if err != nil {
		return false, err
	}
	fresh := w.selectNew(visible)
	for i, msg := range fresh {
		if i > 0 && w.opts.MessagePause > 0 {
			if err := sleepWithContext(ctx, w.opts.MessagePause); err != nil {
				return true, err
			}
		}
		w.handleGuestMessage(ctx, msg.Text)
	}
	return len(fresh) > 0, nil
}

// selectNew filters the visible transcript down to guest messages that come
// after our last message, are long enough to mean something, and are not
// already in the history.
func (w *Worker) selectNew(visible []observer.Message) []observer.Message {
	lastAssistant := -1
	for i, msg := range visible {
		if msg.Author == models.RoleAssistant {
			lastAssistant = i
		}
	}
	var fresh []observer.Message
	for _, msg := range visible[lastAssistant+1:] {
		if msg.Author != models.RoleGuest {
			continue
		}
		if len(strings.TrimSpace(msg.Text)) < w.opts.MinMessageLen {
			continue
		}
		if w.inHistory(msg.Text) {
			continue
		}
		fresh = append(fresh, msg)
	}
	return fresh
}

func (w *Worker) inHistory(text string) bool {
	for _, turn := range w.history {
		if turn.Role == models.RoleGuest && turn.Content == text {
			return true
		}
	}
	return false
}

// handleGuestMessage answers one guest message, escalating when the brain
// declines or fails. The first guest turn of a conversation gets a greeting
// before the answer.
func (w *Worker) handleGuestMessage(ctx context.Context, text string) {
	firstTurn := len(w.history) == 0
	w.appendTurn(models.RoleGuest, text)

	facts, err := store.LoadFacts(w.opts.FactsPath)
	if err != nil {
		log.Printf("worker %s: load facts: %v", w.opts.ThreadID, err)
	}
	knowledge, err := w.opts.Store.QASnapshot()
	if err != nil {
		log.Printf("worker %s: load knowledge: %v", w.opts.ThreadID, err)
	}

	reply, err := w.opts.Brain.Answer(ctx, text, w.history, facts, knowledge)
	if err != nil {
		w.escalate(ctx, text, fmt.Sprintf("el asistente no pudo responder (%v)", err))
		return
	}
	if reply.NeedsHost {
		w.escalate(ctx, text, "")
		return
	}

	if firstTurn {
		w.sendGreeting(ctx)
	}
	if err := w.opts.Observer.SendMessage(ctx, w.opts.ThreadID, reply.Text); err != nil {
		log.Printf("worker %s: send answer: %v", w.opts.ThreadID, err)
		return
	}
	w.appendTurn(models.RoleAssistant, reply.Text)

	w.maybeOfferCuration(ctx, text, reply.Text)
}

func (w *Worker) sendGreeting(ctx context.Context) {
	greeting, err := w.opts.Brain.Greeting(ctx, w.opts.GuestName)
	if err != nil {
		log.Printf("worker %s: ai greeting: %v", w.opts.ThreadID, err)
		greeting = brain.FallbackGreeting(w.now().In(w.opts.Location), w.opts.GuestName)
	}
	if err := w.opts.Observer.SendMessage(ctx, w.opts.ThreadID, greeting); err != nil {
		log.Printf("worker %s: send greeting: %v", w.opts.ThreadID, err)
		return
	}
	w.appendTurn(models.RoleAssistant, greeting)
}

func (w *Worker) escalate(ctx context.Context, guestMsg, note string) {
	id, err := w.opts.Bridge.Escalate(ctx, host.Escalation{
		ThreadID:     w.opts.ThreadID,
		GuestMessage: guestMsg,
		GuestName:    w.opts.GuestName,
		Note:         note,
	})
	if err != nil {
		log.Printf("worker %s: escalate: %v", w.opts.ThreadID, err)
	}
	if id != "" {
		w.emit(EventEscalationRaised, id)
	}
}

func (w *Worker) maybeOfferCuration(ctx context.Context, question, answer string) {
	offer, err := w.opts.Curator.ShouldOffer(ctx, question, answer)
	if err != nil {
		log.Printf("worker %s: curation check: %v", w.opts.ThreadID, err)
		return
	}
	if !offer {
		return
	}
	if err := w.opts.Bridge.OfferCuration(ctx, question, answer); err != nil {
		log.Printf("worker %s: curation offer: %v", w.opts.ThreadID, err)
		return
	}
	w.emit(EventCurationOffer, question)
}

func (w *Worker) appendTurn(role, content string) {
	w.history = append(w.history, models.ConversationTurn{
		ThreadID:  w.opts.ThreadID,
		Sequence:  len(w.history),
		Role:      role,
		Content:   content,
		CreatedAt: w.now(),
	})
}

func (w *Worker) emit(kind, detail string) {
	if w.opts.Events == nil {
		return
	}
	select {
	case w.opts.Events <- Event{Kind: kind, ThreadID: w.opts.ThreadID, Detail: detail}:
	default:
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
