package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/casabot/innkeeper/internal/config"
	"github.com/casabot/innkeeper/internal/db"
	"github.com/casabot/innkeeper/internal/store"
	"github.com/casabot/innkeeper/internal/supervisor"
	"github.com/casabot/innkeeper/internal/worker"
)

func TestNew_Validation(t *testing.T) {
	gdb, err := db.Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	st := store.New(gdb)
	reg := supervisor.NewRegistry()

	if _, err := New(Opts{Registry: reg, Port: 8088}); err == nil {
		t.Error("missing store: expected error")
	}
	if _, err := New(Opts{Store: st, Port: 8088}); err == nil {
		t.Error("missing registry: expected error")
	}
	if _, err := New(Opts{Store: st, Registry: reg}); err == nil {
		t.Error("missing port: expected error")
	}
	if _, err := New(Opts{Store: st, Registry: reg, Port: 8088}); err != nil {
		t.Errorf("valid opts: %v", err)
	}
}

// --- hub tests ---

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	h := newHub()
	a := h.subscribe()
	b := h.subscribe()
	defer h.unsubscribe(a)
	defer h.unsubscribe(b)

	h.broadcast(worker.Event{Kind: worker.EventEscalationRaised, ThreadID: "t-1"})
	for name, ch := range map[string]chan worker.Event{"a": a, "b": b} {
		select {
		case ev := <-ch:
			if ev.ThreadID != "t-1" {
				t.Errorf("client %s got %+v", name, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("client %s got nothing", name)
		}
	}
}

func TestHub_SlowClientDoesNotBlock(t *testing.T) {
	h := newHub()
	slow := h.subscribe()
	defer h.unsubscribe(slow)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.broadcast(worker.Event{Kind: worker.EventHistorySnapshot})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}
}

func TestHub_PumpStopsOnContextCancel(t *testing.T) {
	h := newHub()
	events := make(chan worker.Event)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.pump(ctx, events)
		close(stopped)
	}()
	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("pump did not stop")
	}
}
