package observer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/casabot/innkeeper/internal/models"
	"github.com/go-rod/rod/lib/proto"
)

// --- mock tests ---

func TestMock_SendBecomesVisibleTranscript(t *testing.T) {
	m := NewMock()
	ctx := context.Background()
	m.StageThread("t-1", "Ana")
	m.StageGuestMessage("t-1", "Is there parking?")

	if err := m.SendMessage(ctx, "t-1", "Yes, free street parking."); err != nil {
		t.Fatalf("send: %v", err)
	}
	msgs, err := m.ListNewMessages(ctx, "t-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[1].Author != models.RoleAssistant {
		t.Errorf("sent message author = %q, want assistant", msgs[1].Author)
	}
	if got := m.Sent("t-1"); len(got) != 1 || got[0] != "Yes, free street parking." {
		t.Errorf("sent log = %v", got)
	}
}

func TestMock_ReinitClearsInjectedErrors(t *testing.T) {
	m := NewMock()
	m.DiscoverErr = errors.New("browser lost")
	if _, err := m.DiscoverUnreadThreads(context.Background()); err == nil {
		t.Fatal("expected injected error")
	}
	if err := m.Reinit(context.Background()); err != nil {
		t.Fatalf("reinit: %v", err)
	}
	if _, err := m.DiscoverUnreadThreads(context.Background()); err != nil {
		t.Fatalf("discover after reinit: %v", err)
	}
	if m.ReinitCount != 1 {
		t.Errorf("reinit count = %d", m.ReinitCount)
	}
}

// --- cookie tests ---

func TestCookies_SaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	saved := []*proto.NetworkCookie{
		{Name: "session", Value: "abc", Domain: ".example.com", Path: "/", Secure: true, HTTPOnly: true},
	}
	if err := SaveCookies(path, saved); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadCookies(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("loaded %d cookies, want 1", len(loaded))
	}
	if loaded[0].Name != "session" || loaded[0].Value != "abc" || !loaded[0].HTTPOnly {
		t.Errorf("cookie = %+v", loaded[0])
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("cookie file mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestCookies_LoadMissing(t *testing.T) {
	if _, err := LoadCookies(filepath.Join(t.TempDir(), "none.json")); err == nil {
		t.Fatal("expected error for missing cookie file")
	}
}
