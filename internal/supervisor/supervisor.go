// Package supervisor discovers unread guest threads and keeps one worker
// goroutine running per active thread.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/casabot/innkeeper/internal/brain"
	"github.com/casabot/innkeeper/internal/curator"
	"github.com/casabot/innkeeper/internal/host"
	"github.com/casabot/innkeeper/internal/observer"
	"github.com/casabot/innkeeper/internal/store"
	"github.com/casabot/innkeeper/internal/worker"
)

// Opts configures a Supervisor.
type Opts struct {
	Store    *store.Store
	Observer observer.Observer
	Brain    brain.Brain
	Bridge   *host.Bridge
	Curator  *curator.Curator

	PollInterval  time.Duration
	CheckInterval time.Duration
	IdleTimeout   time.Duration
	MinMessageLen int
	MessagePause  time.Duration
	Retention     time.Duration
	FactsPath     string
	Location      *time.Location

	Out io.Writer
}

// Supervisor runs the discovery loop and owns the worker pool.
type Supervisor struct {
	opts     Opts
	registry *Registry
	events   chan worker.Event

	mu     sync.Mutex
	runCtx context.Context
	wg     sync.WaitGroup
}

// New validates opts and returns a Supervisor.
func New(opts Opts) (*Supervisor, error) {
	if opts.Store == nil || opts.Observer == nil || opts.Brain == nil ||
		opts.Bridge == nil || opts.Curator == nil {
		return nil, fmt.Errorf("supervisor: store, observer, brain, bridge and curator are required")
	}
	if opts.PollInterval <= 0 {
		return nil, fmt.Errorf("supervisor: poll interval must be positive")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &Supervisor{
		opts:     opts,
		registry: NewRegistry(),
		events:   make(chan worker.Event, 64),
	}, nil
}

// Events is the stream of worker lifecycle events, consumed by the
// dashboard. Unconsumed events are dropped, never blocked on.
func (s *Supervisor) Events() <-chan worker.Event { return s.events }

// Registry exposes the worker registry for status reporting.
func (s *Supervisor) Registry() *Registry { return s.registry }

// Run polls the inbox until the context ends. The sleep is shortened by the
// time the pass took, so the effective period stays constant under load.
// Discovery failures reinitialize the observer and keep going; only an
// authentication failure stops the loop.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	for {
		start := time.Now()
		if err := s.discoverSafely(ctx); err != nil {
			s.wg.Wait()
			return err
		}
		s.statusLine()

		wait := s.opts.PollInterval - time.Since(start)
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (s *Supervisor) discoverSafely(ctx context.Context) (fatal error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("supervisor: recovered from discovery panic: %v", r)
		}
	}()
	threads, err := s.opts.Observer.DiscoverUnreadThreads(ctx)
	if err != nil {
		if errors.Is(err, observer.ErrAuth) {
			return fmt.Errorf("supervisor: discovery: %w", err)
		}
		log.Printf("supervisor: discovery: %v", err)
		if err := s.opts.Observer.Reinit(ctx); err != nil {
			if errors.Is(err, observer.ErrAuth) {
				return fmt.Errorf("supervisor: reinit: %w", err)
			}
			log.Printf("supervisor: reinit: %v", err)
		}
		return nil
	}

	dispatched := map[string]bool{}
	for _, t := range threads {
		if dispatched[t.ID] {
			continue
		}
		dispatched[t.ID] = true
		s.spawn(t.ID, t.GuestName)
	}
	return nil
}

// WakeThread implements host.Waker: a live worker is nudged to run a cycle
// now; a finished thread gets a fresh worker so the answer is delivered.
func (s *Supervisor) WakeThread(threadID string) {
	if w, ok := s.registry.Get(threadID); ok {
		w.Wake()
		return
	}
	s.spawn(threadID, "")
}

// spawn claims the thread and starts its worker goroutine. A lost claim
// means a live worker already covers the thread.
func (s *Supervisor) spawn(threadID, guestName string) {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	if guestName == "" {
		if t, err := s.opts.Store.Thread(threadID); err == nil {
			guestName = t.GuestName
		}
	}
	w, err := worker.New(worker.Opts{
		ThreadID:      threadID,
		GuestName:     guestName,
		Store:         s.opts.Store,
		Observer:      s.opts.Observer,
		Brain:         s.opts.Brain,
		Bridge:        s.opts.Bridge,
		Curator:       s.opts.Curator,
		CheckInterval: s.opts.CheckInterval,
		IdleTimeout:   s.opts.IdleTimeout,
		MinMessageLen: s.opts.MinMessageLen,
		MessagePause:  s.opts.MessagePause,
		Retention:     s.opts.Retention,
		Location:      s.opts.Location,
		FactsPath:     s.opts.FactsPath,
		Events:        s.events,
		Out:           s.opts.Out,
	})
	if err != nil {
		log.Printf("supervisor: build worker for %s: %v", threadID, err)
		return
	}
	if !s.registry.Claim(threadID, w) {
		return
	}
	if err := s.opts.Store.UpsertThread(threadID, guestName, time.Now()); err != nil {
		log.Printf("supervisor: record thread %s: %v", threadID, err)
	}
	fmt.Fprintf(s.opts.Out, "supervisor: starting worker for %s\n", threadID)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := w.Run(ctx)
		s.registry.Release(threadID)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("supervisor: worker %s: %v", threadID, err)
		}
		// An answer can land between the worker's last cycle and its exit.
		// The claim is released now, so respawn for any leftovers.
		if ctx.Err() != nil {
			return
		}
		if reqs, err := s.opts.Store.AnsweredRequests(threadID); err == nil && len(reqs) > 0 {
			s.WakeThread(threadID)
		}
	}()
}

func (s *Supervisor) statusLine() {
	waiting := 0
	if reqs, err := s.opts.Store.WaitingRequests(); err == nil {
		waiting = len(reqs)
	}
	var histories int64
	if n, err := s.opts.Store.HistoryCount(); err == nil {
		histories = n
	}
	fmt.Fprintf(s.opts.Out, "supervisor: %d active worker(s), %d waiting request(s), %d stored transcript(s)\n",
		s.registry.Count(), waiting, histories)
}
