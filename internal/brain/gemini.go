package brain

import (
	"context"
	"fmt"
	"strings"

	"github.com/casabot/innkeeper/internal/config"
	"github.com/casabot/innkeeper/internal/models"
	"google.golang.org/genai"
)

// GeminiOpts configures the Gemini-backed brain.
type GeminiOpts struct {
	Config config.AIConfig
}

// Gemini implements Brain on top of google.golang.org/genai. Each call site
// uses its own model, temperature and token budget from config.
type Gemini struct {
	client *genai.Client
	cfg    config.AIConfig
}

// NewGemini builds the client from the configured API key.
func NewGemini(ctx context.Context, opts GeminiOpts) (*Gemini, error) {
	if opts.Config.APIKey == "" {
		return nil, fmt.Errorf("brain: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: opts.Config.APIKey})
	if err != nil {
		return nil, fmt.Errorf("brain: create client: %w", err)
	}
	return &Gemini{client: client, cfg: opts.Config}, nil
}

// generate runs one completion with the given call tuning.
func (g *Gemini) generate(ctx context.Context, call config.CallConfig, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, call.Model, genai.Text(prompt),
		&genai.GenerateContentConfig{
			Temperature:     genai.Ptr(call.Temperature),
			MaxOutputTokens: int32(call.MaxTokens),
		})
	if err != nil {
		return "", fmt.Errorf("brain: generate with %s: %w", call.Model, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("brain: empty completion from %s", call.Model)
	}
	return text, nil
}

func (g *Gemini) Greeting(ctx context.Context, guestName string) (string, error) {
	return g.generate(ctx, g.cfg.Greeting, greetingPrompt(guestName))
}

func (g *Gemini) Answer(ctx context.Context, question string, history []models.ConversationTurn,
	facts string, knowledge []models.QAEntry) (Reply, error) {
	text, err := g.generate(ctx, g.cfg.Answer, answerPrompt(question, history, facts, knowledge))
	if err != nil {
		return Reply{}, err
	}
	if strings.Contains(text, SignalAskHost) {
		return Reply{NeedsHost: true}, nil
	}
	return Reply{Text: text}, nil
}

func (g *Gemini) RefineHostAnswer(ctx context.Context, guestQuestion, hostAnswer string) (string, error) {
	return g.generate(ctx, g.cfg.Refine, refinePrompt(guestQuestion, hostAnswer))
}

func (g *Gemini) ClassifySaveWorthy(ctx context.Context, question, answer string) (bool, error) {
	text, err := g.generate(ctx, g.cfg.Classify, classifyPrompt(question, answer))
	if err != nil {
		return false, err
	}
	switch {
	case strings.Contains(text, SignalSave):
		return true, nil
	case strings.Contains(text, SignalDiscard):
		return false, nil
	default:
		return false, fmt.Errorf("brain: classifier returned neither signal: %q", text)
	}
}

func (g *Gemini) ExtractQA(ctx context.Context, text string) (string, string, error) {
	out, err := g.generate(ctx, g.cfg.Extract, extractPrompt(text))
	if err != nil {
		return "", "", err
	}
	question, answer := parseExtraction(out)
	if question == "" || answer == "" {
		return "", "", fmt.Errorf("brain: malformed extraction: %q", out)
	}
	return question, answer, nil
}

// parseExtraction reads the QUESTION:/ANSWER: two-line format, tolerating
// extra blank lines and case drift.
func parseExtraction(out string) (string, string) {
	var question, answer string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "QUESTION:"):
			question = strings.TrimSpace(line[len("QUESTION:"):])
		case strings.HasPrefix(upper, "ANSWER:"):
			answer = strings.TrimSpace(line[len("ANSWER:"):])
		}
	}
	return question, answer
}
