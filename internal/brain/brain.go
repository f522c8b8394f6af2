// Package brain is the AI completion capability: greetings, guest answers,
// host-answer refinement, save-worthiness classification and Q/A extraction.
package brain

import (
	"context"
	"fmt"
	"time"

	"github.com/casabot/innkeeper/internal/models"
)

// Control signals the model is instructed to emit. They never reach a guest;
// callers strip them and act on their presence.
const (
	SignalAskHost = "##ASK_HOST##"
	SignalSave    = "##SAVE_PAUTA##"
	SignalDiscard = "##DISCARD_PAUTA##"
)

// Reply is the outcome of an Answer call. When NeedsHost is set the model
// declined to answer and the question must be escalated; Text is empty.
type Reply struct {
	Text      string
	NeedsHost bool
}

// Brain is the completion capability.
type Brain interface {
	// Greeting produces a short opening line for the guest's first turn.
	Greeting(ctx context.Context, guestName string) (string, error)

	// Answer replies to a guest question grounded on the property facts,
	// the knowledge base and the conversation so far.
	Answer(ctx context.Context, question string, history []models.ConversationTurn,
		facts string, knowledge []models.QAEntry) (Reply, error)

	// RefineHostAnswer rewrites a host's terse free-text answer into a
	// guest-ready message.
	RefineHostAnswer(ctx context.Context, guestQuestion, hostAnswer string) (string, error)

	// ClassifySaveWorthy reports whether a Q/A exchange is worth keeping
	// in the knowledge base.
	ClassifySaveWorthy(ctx context.Context, question, answer string) (bool, error)

	// ExtractQA pulls a clean question/answer pair out of free text.
	ExtractQA(ctx context.Context, text string) (question, answer string, err error)
}

// FallbackGreeting returns a canned time-of-day greeting for when the AI
// greeting call fails. The guest still gets welcomed.
func FallbackGreeting(now time.Time, guestName string) string {
	var base string
	switch h := now.Hour(); {
	case h >= 6 && h < 12:
		base = "Buenos días"
	case h >= 12 && h < 20:
		base = "Buenas tardes"
	case h >= 20 || h < 6:
		base = "Buenas noches"
	default:
		base = "Hola"
	}
	if guestName == "" {
		return fmt.Sprintf("¡%s! Gracias por escribirnos.", base)
	}
	return fmt.Sprintf("¡%s, %s! Gracias por escribirnos.", base, guestName)
}
