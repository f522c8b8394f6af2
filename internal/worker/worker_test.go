package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/casabot/innkeeper/internal/brain"
	"github.com/casabot/innkeeper/internal/config"
	"github.com/casabot/innkeeper/internal/curator"
	"github.com/casabot/innkeeper/internal/db"
	"github.com/casabot/innkeeper/internal/host"
	"github.com/casabot/innkeeper/internal/notify"
	"github.com/casabot/innkeeper/internal/store"
)

type fixture struct {
	worker   *Worker
	store    *store.Store
	observer *mockObserver
	brain    *brain.Mock
	adapter  *notify.MockAdapter
	bridge   *host.Bridge
	events   chan Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb, err := db.Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st := store.New(gdb)
	mb := brain.NewMock()
	cur, err := curator.New(curator.Opts{Store: st, Brain: mb})
	if err != nil {
		t.Fatalf("curator: %v", err)
	}
	adapter := notify.NewMockAdapter()
	if err := adapter.Connect(context.Background()); err != nil {
		t.Fatalf("adapter: %v", err)
	}
	bridge, err := host.New(host.Opts{
		Store: st, Adapter: adapter, Brain: mb, Curator: cur,
		WatchTimeout: 30 * time.Minute, Retention: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("bridge: %v", err)
	}
	obs := newMockObserver()
	events := make(chan Event, 32)
	w, err := New(Opts{
		ThreadID:      "t-1",
		GuestName:     "Ana",
		Store:         st,
		Observer:      obs,
		Brain:         mb,
		Bridge:        bridge,
		Curator:       cur,
		CheckInterval: 10 * time.Millisecond,
		IdleTimeout:   time.Minute,
		MinMessageLen: 3,
		Retention:     24 * time.Hour,
		Location:      time.UTC,
		Events:        events,
	})
	if err != nil {
		t.Fatalf("worker: %v", err)
	}
	return &fixture{worker: w, store: st, observer: obs, brain: mb, adapter: adapter, bridge: bridge, events: events}
}

func (f *fixture) drainEvents() []Event {
	var out []Event
	for {
		select {
		case e := <-f.events:
			out = append(out, e)
		default:
			return out
		}
	}
}

func hasEvent(events []Event, kind string) bool {
	for _, e := range events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// --- cycle tests ---

func TestCycle_FirstGuestMessageGetsGreetingThenAnswer(t *testing.T) {
	f := newFixture(t)
	f.brain.GreetingText = "¡Buenas tardes, Ana!"
	f.brain.Replies["Is there parking nearby?"] = brain.Reply{Text: "Yes, free street parking."}
	f.observer.stageGuest("t-1", "Is there parking nearby?")

	progressed, err := f.worker.cycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if !progressed {
		t.Error("cycle reported no progress")
	}
	sent := f.observer.sentTo("t-1")
	if len(sent) != 2 {
		t.Fatalf("sent = %v, want greeting then answer", sent)
	}
	if sent[0] != "¡Buenas tardes, Ana!" || sent[1] != "Yes, free street parking." {
		t.Errorf("sent = %v", sent)
	}

	turns, err := f.store.LoadHistory("t-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("history turns = %d, want guest+greeting+answer", len(turns))
	}
	if !hasEvent(f.drainEvents(), EventHistorySnapshot) {
		t.Error("no history snapshot event")
	}
}

func TestCycle_GreetingFallbackOnAIFailure(t *testing.T) {
	f := newFixture(t)
	f.brain.GreetingErr = errors.New("model down")
	f.brain.Replies["Is there parking nearby?"] = brain.Reply{Text: "Yes."}
	f.observer.stageGuest("t-1", "Is there parking nearby?")

	if _, err := f.worker.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	sent := f.observer.sentTo("t-1")
	if len(sent) != 2 {
		t.Fatalf("sent = %v", sent)
	}
	if !strings.Contains(sent[0], "Ana") || !strings.Contains(sent[0], "Buen") {
		t.Errorf("fallback greeting = %q", sent[0])
	}
}

func TestCycle_NeedsHostEscalates(t *testing.T) {
	f := newFixture(t)
	f.brain.Replies["Can I bring my horse?"] = brain.Reply{NeedsHost: true}
	f.observer.stageGuest("t-1", "Can I bring my horse?")

	if _, err := f.worker.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if sent := f.observer.sentTo("t-1"); len(sent) != 0 {
		t.Errorf("guest got %v while waiting on the host", sent)
	}
	waiting, err := f.store.WaitingRequests()
	if err != nil {
		t.Fatalf("waiting: %v", err)
	}
	if len(waiting) != 1 || waiting[0].GuestMessage != "Can I bring my horse?" {
		t.Fatalf("waiting = %+v", waiting)
	}
	last, ok := f.adapter.LastSent()
	if !ok || !strings.Contains(last.Text, "Can I bring my horse?") {
		t.Errorf("host notification = %+v", last)
	}
	if !hasEvent(f.drainEvents(), EventEscalationRaised) {
		t.Error("no escalation event")
	}
}

func TestCycle_AIFailureEscalatesWithNote(t *testing.T) {
	f := newFixture(t)
	f.brain.AnswerErr = errors.New("quota exhausted")
	f.observer.stageGuest("t-1", "Is the pool heated?")

	if _, err := f.worker.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	waiting, _ := f.store.WaitingRequests()
	if len(waiting) != 1 {
		t.Fatalf("waiting = %d, want 1", len(waiting))
	}
	last, _ := f.adapter.LastSent()
	if !strings.Contains(last.Text, "no pudo responder") {
		t.Errorf("notification lacks failure note: %q", last.Text)
	}
	if !strings.Contains(last.Text, "Is the pool heated?") {
		t.Errorf("notification lacks the guest question: %q", last.Text)
	}
}

func TestCycle_DeliversAnsweredRequests(t *testing.T) {
	f := newFixture(t)
	id, err := f.bridge.Escalate(context.Background(), host.Escalation{
		ThreadID: "t-1", GuestMessage: "horse?", GuestName: "Ana",
	})
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if _, err := f.store.MarkAnswered(id, "No horses please", time.Now()); err != nil {
		t.Fatalf("mark: %v", err)
	}

	progressed, err := f.worker.cycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if !progressed {
		t.Error("delivery cycle reported no progress")
	}
	sent := f.observer.sentTo("t-1")
	if len(sent) != 1 || sent[0] != "refined: No horses please" {
		t.Errorf("sent = %v", sent)
	}
	if _, err := f.store.RequestByID(id); err == nil {
		t.Error("delivered request still stored")
	}
}

func TestCycle_DedupAcrossCycles(t *testing.T) {
	f := newFixture(t)
	f.brain.Replies["Is there parking nearby?"] = brain.Reply{Text: "Yes."}
	f.observer.stageGuest("t-1", "Is there parking nearby?")

	for i := 0; i < 2; i++ {
		if _, err := f.worker.cycle(context.Background()); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
	}
	if got := len(f.brain.AnsweredQuestions); got != 1 {
		t.Errorf("answered %d times, want 1", got)
	}
}

func TestCycle_ShortMessagesIgnored(t *testing.T) {
	f := newFixture(t)
	f.observer.stageGuest("t-1", "ok")

	progressed, err := f.worker.cycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if progressed {
		t.Error("short message counted as progress")
	}
	if got := len(f.brain.AnsweredQuestions); got != 0 {
		t.Errorf("answered %d times, want 0", got)
	}
}

func TestCycle_CurationOffer(t *testing.T) {
	f := newFixture(t)
	f.brain.SaveWorthy = true
	answer := "Checkout is at 11am, keys go on the kitchen table."
	f.brain.Replies["When is checkout exactly?"] = brain.Reply{Text: answer}
	f.observer.stageGuest("t-1", "When is checkout exactly?")

	if _, err := f.worker.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	last, ok := f.adapter.LastSent()
	if !ok || !last.WithActions {
		t.Fatalf("no actionable curation offer, last = %+v", last)
	}
	if !strings.Contains(last.Text, "When is checkout exactly?") {
		t.Errorf("offer = %q", last.Text)
	}
	if !hasEvent(f.drainEvents(), EventCurationOffer) {
		t.Error("no curation event")
	}
}

func TestCycle_PanicRecovered(t *testing.T) {
	f := newFixture(t)
	f.observer.panicOnList = true
	f.observer.stageGuest("t-1", "Is there parking nearby?")
	if progressed := f.worker.cycleSafely(context.Background()); progressed {
		t.Error("panicked cycle reported progress")
	}
}

// --- run loop tests ---

func TestRun_IdleExit(t *testing.T) {
	f := newFixture(t)
	f.worker.opts.IdleTimeout = 30 * time.Millisecond
	f.worker.opts.CheckInterval = 5 * time.Millisecond

	done := make(chan error, 1)
	go func() { done <- f.worker.Run(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("idle exit: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit when idle")
	}
	if !hasEvent(f.drainEvents(), EventWorkerStopped) {
		t.Error("no stopped event")
	}
}

func TestRun_ContextCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.worker.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}
