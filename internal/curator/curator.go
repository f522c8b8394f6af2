// Package curator decides which guest exchanges become knowledge-base
// entries and recovers Q/A pairs from host-approved curation offers.
package curator

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/casabot/innkeeper/internal/brain"
	"github.com/casabot/innkeeper/internal/store"
)

// DefaultMinAnswerLen is the shortest answer worth keeping.
const DefaultMinAnswerLen = 20

// Opts configures a Curator.
type Opts struct {
	Store        *store.Store
	Brain        brain.Brain
	MinAnswerLen int
}

// Curator applies the promotion pipeline: cheap local heuristics first, the
// AI classifier only for exchanges that pass them.
type Curator struct {
	store        *store.Store
	brain        brain.Brain
	minAnswerLen int
}

// New validates opts and returns a Curator.
func New(opts Opts) (*Curator, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("curator: store is required")
	}
	if opts.Brain == nil {
		return nil, fmt.Errorf("curator: brain is required")
	}
	if opts.MinAnswerLen <= 0 {
		opts.MinAnswerLen = DefaultMinAnswerLen
	}
	return &Curator{store: opts.Store, brain: opts.Brain, minAnswerLen: opts.MinAnswerLen}, nil
}

// ShouldOffer reports whether the exchange deserves a curation offer to the
// host. Heuristic rejections are free; only survivors cost an AI call.
func (c *Curator) ShouldOffer(ctx context.Context, question, answer string) (bool, error) {
	if strings.Contains(answer, brain.SignalAskHost) {
		return false, nil
	}
	if len(strings.TrimSpace(answer)) < c.minAnswerLen {
		return false, nil
	}
	dup, err := c.nearDuplicate(question)
	if err != nil {
		return false, err
	}
	if dup {
		return false, nil
	}
	worthy, err := c.brain.ClassifySaveWorthy(ctx, question, answer)
	if err != nil {
		return false, fmt.Errorf("curator: classify: %w", err)
	}
	return worthy, nil
}

// nearDuplicate checks substring containment against stored questions in
// both directions, case-insensitively.
func (c *Curator) nearDuplicate(question string) (bool, error) {
	entries, err := c.store.QASnapshot()
	if err != nil {
		return false, err
	}
	q := strings.ToLower(strings.TrimSpace(question))
	for _, e := range entries {
		stored := strings.ToLower(strings.TrimSpace(e.Question))
		if stored == "" {
			continue
		}
		if strings.Contains(stored, q) || strings.Contains(q, stored) {
			return true, nil
		}
	}
	return false, nil
}

// Save appends the pair to the knowledge base, reporting whether it was new.
func (c *Curator) Save(question, answer, source string) (bool, error) {
	added, err := c.store.AppendQA(strings.TrimSpace(question), strings.TrimSpace(answer), source)
	if err != nil {
		return false, err
	}
	if !added {
		log.Printf("curator: skipped duplicate pair %q", question)
	}
	return added, nil
}
