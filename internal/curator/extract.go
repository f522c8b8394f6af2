package curator

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/casabot/innkeeper/internal/brain"
)

// OfferText renders the curation offer sent to the host. ExtractPair's strict
// stage parses this exact template back, so the two must move together.
func OfferText(question, answer string) string {
	return fmt.Sprintf("💾 ¿Guardar esta pauta?\n*Pregunta:* %s\n*Respuesta:* %s", question, answer)
}

var (
	// Strict: the offer template exactly as sent.
	strictRe = regexp.MustCompile(`\*Pregunta:\*\s*(.+)\n\*Respuesta:\*\s*(.+)`)

	// Loose: platforms strip or double the markdown markers and sometimes
	// translate the labels.
	looseRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\*{0,2}pregunta:?\*{0,2}\s*(.+)\n+\*{0,2}respuesta:?\*{0,2}\s*(.+)`),
		regexp.MustCompile(`(?i)\*{0,2}question:?\*{0,2}\s*(.+)\n+\*{0,2}answer:?\*{0,2}\s*(.+)`),
		regexp.MustCompile(`(?i)q:\s*(.+)\n+a:\s*(.+)`),
	}
)

// ExtractPair recovers a question/answer pair from the text of an approved
// curation offer. Stages run in order of trust: the strict template parse,
// loosened regexes, the AI extractor, then a bare line heuristic. The first
// stage yielding both fields non-empty wins; each failure is logged with the
// raw text so mangled offers can be diagnosed.
func ExtractPair(ctx context.Context, b brain.Brain, text string) (string, string, error) {
	if m := strictRe.FindStringSubmatch(text); m != nil {
		q, a := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		if q != "" && a != "" {
			return q, a, nil
		}
	}
	log.Printf("curator: strict extraction failed on %q", text)

	for _, re := range looseRes {
		if m := re.FindStringSubmatch(text); m != nil {
			q, a := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
			if q != "" && a != "" {
				return q, a, nil
			}
		}
	}
	log.Printf("curator: loose extraction failed on %q", text)

	q, a, err := b.ExtractQA(ctx, text)
	if err == nil && q != "" && a != "" {
		return q, a, nil
	}
	log.Printf("curator: ai extraction failed on %q: %v", text, err)

	if q, a, ok := lineHeuristic(text); ok {
		return q, a, nil
	}
	log.Printf("curator: line heuristic failed on %q", text)

	return "", "", fmt.Errorf("curator: could not extract a pair from %q", text)
}

// lineHeuristic takes the first line ending in a question mark as the
// question and the next non-empty line as the answer.
func lineHeuristic(text string) (string, string, bool) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if !strings.HasSuffix(line, "?") {
			continue
		}
		for _, next := range lines[i+1:] {
			next = strings.TrimSpace(next)
			if next != "" {
				return line, next, true
			}
		}
	}
	return "", "", false
}
