package curator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/casabot/innkeeper/internal/brain"
	"github.com/casabot/innkeeper/internal/config"
	"github.com/casabot/innkeeper/internal/db"
	"github.com/casabot/innkeeper/internal/models"
	"github.com/casabot/innkeeper/internal/store"
)

func newTestCurator(t *testing.T) (*Curator, *store.Store, *brain.Mock) {
	t.Helper()
	gdb, err := db.Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st := store.New(gdb)
	mockBrain := brain.NewMock()
	c, err := New(Opts{Store: st, Brain: mockBrain})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return c, st, mockBrain
}

// --- promotion tests ---

func TestShouldOffer_RejectsEscalationMarker(t *testing.T) {
	c, _, mb := newTestCurator(t)
	mb.SaveWorthy = true
	ok, err := c.ShouldOffer(context.Background(), "wifi?", "I will ask "+brain.SignalAskHost)
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	if ok {
		t.Error("escalation text passed the heuristics")
	}
	if len(mb.Classified) != 0 {
		t.Error("classifier was called for a heuristic rejection")
	}
}

func TestShouldOffer_RejectsShortAnswer(t *testing.T) {
	c, _, mb := newTestCurator(t)
	mb.SaveWorthy = true
	ok, err := c.ShouldOffer(context.Background(), "wifi?", "yes")
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	if ok {
		t.Error("short answer passed the heuristics")
	}
}

func TestShouldOffer_RejectsNearDuplicateQuestion(t *testing.T) {
	c, st, mb := newTestCurator(t)
	mb.SaveWorthy = true
	if _, err := st.AppendQA("Is there wifi in the apartment?", "Yes, fiber, password on the router.", models.SourceAutomated); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ok, err := c.ShouldOffer(context.Background(), "is there wifi", "Yes, we have fast fiber internet available.")
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	if ok {
		t.Error("contained question passed the duplicate check")
	}
}

func TestShouldOffer_ClassifierDecides(t *testing.T) {
	c, _, mb := newTestCurator(t)
	answer := "Checkout is at 11am, leave the keys on the kitchen table please."

	mb.SaveWorthy = false
	ok, err := c.ShouldOffer(context.Background(), "When is checkout?", answer)
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	if ok {
		t.Error("classifier rejection was ignored")
	}

	mb.SaveWorthy = true
	ok, err = c.ShouldOffer(context.Background(), "When is checkout?", answer)
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	if !ok {
		t.Error("classifier approval was ignored")
	}
}

// --- extraction chain tests ---

func TestExtractPair_StrictTemplate(t *testing.T) {
	mb := brain.NewMock()
	mb.ExtractErr = errors.New("should not be called")
	text := OfferText("Is there a crib?", "Yes, on request.")
	q, a, err := ExtractPair(context.Background(), mb, text)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if q != "Is there a crib?" || a != "Yes, on request." {
		t.Errorf("q=%q a=%q", q, a)
	}
}

func TestExtractPair_LooseAfterMarkdownStripping(t *testing.T) {
	mb := brain.NewMock()
	mb.ExtractErr = errors.New("should not be called")
	// Asterisks stripped by the platform renderer.
	text := "💾 ¿Guardar esta pauta?\nPregunta: Is there a crib?\nRespuesta: Yes, on request."
	q, a, err := ExtractPair(context.Background(), mb, text)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if q != "Is there a crib?" || a != "Yes, on request." {
		t.Errorf("q=%q a=%q", q, a)
	}
}

func TestExtractPair_AIFallback(t *testing.T) {
	mb := brain.NewMock()
	mb.ExtractQ = "Is there a crib?"
	mb.ExtractA = "Yes, on request."
	q, a, err := ExtractPair(context.Background(), mb, "mangled beyond template recognition crib yes")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if q != mb.ExtractQ || a != mb.ExtractA {
		t.Errorf("q=%q a=%q", q, a)
	}
}

func TestExtractPair_LineHeuristicLastResort(t *testing.T) {
	mb := brain.NewMock()
	mb.ExtractErr = errors.New("model down")
	text := "some preamble\nIs there a crib?\n\nYes, on request."
	q, a, err := ExtractPair(context.Background(), mb, text)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if q != "Is there a crib?" || a != "Yes, on request." {
		t.Errorf("q=%q a=%q", q, a)
	}
}

func TestExtractPair_UltimateFailure(t *testing.T) {
	mb := brain.NewMock()
	mb.ExtractErr = errors.New("model down")
	_, _, err := ExtractPair(context.Background(), mb, "no question here at all")
	if err == nil {
		t.Fatal("expected extraction failure")
	}
	if !strings.Contains(err.Error(), "could not extract") {
		t.Errorf("err = %v", err)
	}
}

// --- save tests ---

func TestSave_DedupReportsNotAdded(t *testing.T) {
	c, _, _ := newTestCurator(t)
	added, err := c.Save("q?", "a long enough answer", models.SourceHostApproved)
	if err != nil || !added {
		t.Fatalf("first save: added=%v err=%v", added, err)
	}
	added, err = c.Save("q?", "a long enough answer", models.SourceHostApproved)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if added {
		t.Error("duplicate save reported added")
	}
}
