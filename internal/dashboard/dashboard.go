// Package dashboard serves the read-only monitoring UI: active workers,
// pending escalations, knowledge-base entries and a live event stream.
package dashboard

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/casabot/innkeeper/internal/store"
	"github.com/casabot/innkeeper/internal/supervisor"
	"github.com/casabot/innkeeper/internal/worker"
	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFS embed.FS

// Opts configures the dashboard server.
type Opts struct {
	Store    *store.Store
	Registry *supervisor.Registry
	Events   <-chan worker.Event
	Port     int
}

// Server is the gin-backed monitor.
type Server struct {
	opts Opts
	hub  *hub
}

// New validates opts and returns a Server.
func New(opts Opts) (*Server, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("dashboard: store is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("dashboard: registry is required")
	}
	if opts.Port <= 0 {
		return nil, fmt.Errorf("dashboard: port must be positive")
	}
	return &Server{opts: opts, hub: newHub()}, nil
}

// Run serves until the context ends.
func (s *Server) Run(ctx context.Context) error {
	if s.opts.Events != nil {
		go s.hub.pump(ctx, s.opts.Events)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	tmpl := template.Must(template.ParseFS(templateFS, "templates/*.html"))
	engine.SetHTMLTemplate(tmpl)

	engine.GET("/", s.index)
	engine.GET("/api/threads", s.apiThreads)
	engine.GET("/api/requests", s.apiRequests)
	engine.GET("/api/qa", s.apiQA)
	engine.GET("/events", s.sse)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.opts.Port),
		Handler: engine,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("dashboard: shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("dashboard: serve: %w", err)
	}
}

func (s *Server) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"ActiveThreads": s.opts.Registry.ThreadIDs(),
	})
}

func (s *Server) apiThreads(c *gin.Context) {
	threads, err := s.opts.Store.Threads()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	active := map[string]bool{}
	for _, id := range s.opts.Registry.ThreadIDs() {
		active[id] = true
	}
	type threadView struct {
		ID         string    `json:"id"`
		GuestName  string    `json:"guest_name"`
		LastSeenAt time.Time `json:"last_seen_at"`
		Active     bool      `json:"active"`
	}
	out := make([]threadView, 0, len(threads))
	for _, t := range threads {
		out = append(out, threadView{
			ID: t.ID, GuestName: t.GuestName, LastSeenAt: t.LastSeenAt, Active: active[t.ID],
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) apiRequests(c *gin.Context) {
	reqs, err := s.opts.Store.WaitingRequests()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, reqs)
}

func (s *Server) apiQA(c *gin.Context) {
	entries, err := s.opts.Store.QASnapshot()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// sse streams worker events to the browser.
func (s *Server) sse(c *gin.Context) {
	client := s.hub.subscribe()
	defer s.hub.unsubscribe(client)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case ev, ok := <-client:
			if !ok {
				return false
			}
			c.SSEvent(ev.Kind, gin.H{"thread": ev.ThreadID, "detail": ev.Detail})
			return true
		}
	})
}
