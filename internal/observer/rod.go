package observer

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/casabot/innkeeper/internal/config"
	"github.com/casabot/innkeeper/internal/models"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Inbox page selectors. The messaging frontend is a react app; data-testid
// attributes are the only stable hooks it exposes.
const (
	selThreadRow   = `[data-testid="inbox-thread-row"]`
	selUnreadBadge = `[data-testid="unread-badge"]`
	selGuestName   = `[data-testid="thread-guest-name"]`
	selMessageRow  = `[data-testid="message-bubble"]`
	selComposeBox  = `[data-testid="message-compose"] textarea`
	selLoginForm   = `form[action*="login"]`
)

// BrowserOpts configures a browser observer.
type BrowserOpts struct {
	Config config.BrowserConfig
}

// Browser is the rod-backed Observer. All page access goes through a single
// mutex: the underlying devtools session is not safe for the concurrent use
// our workers would otherwise make of it.
type Browser struct {
	cfg config.BrowserConfig

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

// NewBrowser launches the browser and restores the saved session. It fails
// with ErrAuth when the restored cookies no longer log in.
func NewBrowser(ctx context.Context, opts BrowserOpts) (*Browser, error) {
	if opts.Config.InboxURL == "" {
		return nil, fmt.Errorf("observer: inbox url is required")
	}
	if opts.Config.CookiesPath == "" {
		return nil, fmt.Errorf("observer: cookies path is required")
	}
	b := &Browser{cfg: opts.Config}
	if err := b.start(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Browser) navTimeout() time.Duration {
	return time.Duration(b.cfg.NavTimeoutSec) * time.Second
}

func (b *Browser) settle() time.Duration {
	return time.Duration(b.cfg.ScrollSettleMsec) * time.Millisecond
}

// start boots the browser, restores cookies and verifies the session. The
// caller holds no lock; start takes it.
func (b *Browser) start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.startLocked(ctx)
}

func (b *Browser) startLocked(ctx context.Context) error {
	l := launcher.New().Headless(b.cfg.Headless)
	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("observer: launch browser: %w", err)
	}
	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return fmt.Errorf("observer: connect browser: %w", err)
	}

	cookies, err := LoadCookies(b.cfg.CookiesPath)
	if err != nil {
		browser.Close()
		l.Cleanup()
		return err
	}
	if err := browser.SetCookies(cookies); err != nil {
		browser.Close()
		l.Cleanup()
		return fmt.Errorf("observer: restore cookies: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		browser.Close()
		l.Cleanup()
		return fmt.Errorf("observer: open page: %w", err)
	}
	if b.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.cfg.UserAgent}); err != nil {
			browser.Close()
			l.Cleanup()
			return fmt.Errorf("observer: set user agent: %w", err)
		}
	}
	b.blockHeavyResources(page)

	b.launcher = l
	b.browser = browser
	b.page = page

	if err := b.gotoLocked(b.cfg.InboxURL); err != nil {
		b.closeLocked()
		return err
	}
	if b.loginWallLocked() {
		b.closeLocked()
		return ErrAuth
	}
	return nil
}

// blockHeavyResources drops images, fonts and media so polling stays cheap.
func (b *Browser) blockHeavyResources(page *rod.Page) {
	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		switch h.Request.Type() {
		case proto.NetworkResourceTypeImage,
			proto.NetworkResourceTypeFont,
			proto.NetworkResourceTypeMedia:
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		default:
			h.ContinueRequest(&proto.FetchContinueRequest{})
		}
	})
	go router.Run()
}

func (b *Browser) gotoLocked(url string) error {
	page := b.page.Timeout(b.navTimeout())
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("observer: navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("observer: wait load %s: %w", url, err)
	}
	return nil
}

func (b *Browser) loginWallLocked() bool {
	has, _, err := b.page.Timeout(2 * time.Second).Has(selLoginForm)
	if err != nil {
		return false
	}
	return has
}

// DiscoverUnreadThreads navigates to the inbox and scroll-probes the thread
// list until a pass adds no new rows or the scroll cap is reached.
func (b *Browser) DiscoverUnreadThreads(ctx context.Context) ([]Thread, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.gotoLocked(b.cfg.InboxURL); err != nil {
		return nil, err
	}
	if b.loginWallLocked() {
		return nil, ErrAuth
	}

	seen := map[string]Thread{}
	var order []string
	for i := 0; i <= b.cfg.InboxMaxScrolls; i++ {
		rows, err := b.page.Timeout(b.navTimeout()).Elements(selThreadRow)
		if err != nil {
			return nil, fmt.Errorf("observer: list thread rows: %w", err)
		}
		before := len(seen)
		for _, row := range rows {
			id, err := row.Attribute("data-thread-id")
			if err != nil || id == nil || *id == "" {
				continue
			}
			if _, ok := seen[*id]; ok {
				continue
			}
			unread, _, err := row.Has(selUnreadBadge)
			if err != nil || !unread {
				continue
			}
			name := ""
			if nameEl, err := row.Element(selGuestName); err == nil {
				if text, err := nameEl.Text(); err == nil {
					name = strings.TrimSpace(text)
				}
			}
			seen[*id] = Thread{ID: *id, GuestName: name}
			order = append(order, *id)
		}
		if len(seen) == before && i > 0 {
			break
		}
		if _, err := b.page.Eval(`() => window.scrollBy(0, window.innerHeight)`); err != nil {
			return nil, fmt.Errorf("observer: scroll inbox: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.settle()):
		}
	}

	threads := make([]Thread, 0, len(order))
	for _, id := range order {
		threads = append(threads, seen[id])
	}
	return threads, nil
}

// ListNewMessages opens a thread and returns every visible message, oldest
// first. The author is resolved from the bubble's alignment class: the
// frontend right-aligns our own messages.
func (b *Browser) ListNewMessages(ctx context.Context, threadID string) ([]Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.openThreadLocked(threadID); err != nil {
		return nil, err
	}
	rows, err := b.page.Timeout(b.navTimeout()).Elements(selMessageRow)
	if err != nil {
		return nil, fmt.Errorf("observer: list messages in %s: %w", threadID, err)
	}
	now := time.Now()
	var msgs []Message
	for _, row := range rows {
		text, err := row.Text()
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		author := models.RoleGuest
		if cls, err := row.Attribute("class"); err == nil && cls != nil &&
			strings.Contains(*cls, "outgoing") {
			author = models.RoleAssistant
		}
		msgs = append(msgs, Message{Text: text, Author: author, ObservedAt: now})
	}
	return msgs, nil
}

// SendMessage types into the compose bar and submits with Enter.
func (b *Browser) SendMessage(ctx context.Context, threadID, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.openThreadLocked(threadID); err != nil {
		return err
	}
	box, err := b.page.Timeout(b.navTimeout()).Element(selComposeBox)
	if err != nil {
		return fmt.Errorf("observer: find compose bar in %s: %w", threadID, err)
	}
	if err := box.Input(text); err != nil {
		return fmt.Errorf("observer: type message in %s: %w", threadID, err)
	}
	if err := box.Type(input.Enter); err != nil {
		return fmt.Errorf("observer: submit message in %s: %w", threadID, err)
	}
	return nil
}

// GuestName resolves the guest display name shown in the thread header.
func (b *Browser) GuestName(ctx context.Context, threadID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.openThreadLocked(threadID); err != nil {
		return "", err
	}
	el, err := b.page.Timeout(b.navTimeout()).Element(selGuestName)
	if err != nil {
		return "", fmt.Errorf("observer: find guest name in %s: %w", threadID, err)
	}
	name, err := el.Text()
	if err != nil {
		return "", fmt.Errorf("observer: read guest name in %s: %w", threadID, err)
	}
	return strings.TrimSpace(name), nil
}

func (b *Browser) openThreadLocked(threadID string) error {
	url := strings.TrimRight(b.cfg.ThreadBaseURL, "/") + "/" + threadID
	if err := b.gotoLocked(url); err != nil {
		return err
	}
	if b.loginWallLocked() {
		return ErrAuth
	}
	return nil
}

// Reinit discards the current browser and starts a fresh one. Used by the
// supervisor after a devtools session loss.
func (b *Browser) Reinit(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeLocked()
	log.Printf("observer: reinitializing browser session")
	return b.startLocked(ctx)
}

// Close shuts the browser down.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeLocked()
	return nil
}

func (b *Browser) closeLocked() {
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			log.Printf("observer: close browser: %v", err)
		}
		b.browser = nil
		b.page = nil
	}
	if b.launcher != nil {
		b.launcher.Cleanup()
		b.launcher = nil
	}
}
