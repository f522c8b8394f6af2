package dashboard

import (
	"context"
	"sync"

	"github.com/casabot/innkeeper/internal/worker"
)

// hub fans worker events out to every connected SSE client. Slow clients
// lose events rather than stall the pump.
type hub struct {
	mu      sync.Mutex
	clients map[chan worker.Event]struct{}
}

func newHub() *hub {
	return &hub{clients: map[chan worker.Event]struct{}{}}
}

func (h *hub) subscribe() chan worker.Event {
	ch := make(chan worker.Event, 16)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *hub) unsubscribe(ch chan worker.Event) {
	h.mu.Lock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(ev worker.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *hub) pump(ctx context.Context, events <-chan worker.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.broadcast(ev)
		}
	}
}
