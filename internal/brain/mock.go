package brain

import (
	"context"
	"sync"

	"github.com/casabot/innkeeper/internal/models"
)

// Mock is a scripted Brain for tests.
type Mock struct {
	mu sync.Mutex

	GreetingText string
	GreetingErr  error
	Replies      map[string]Reply // question -> reply
	AnswerErr    error
	RefineErr    error
	ClassifyErr  error
	SaveWorthy   bool
	ExtractQ     string
	ExtractA     string
	ExtractErr   error

	AnsweredQuestions []string
	RefinedAnswers    []string
	Classified        [][2]string
}

// NewMock returns a mock that answers every question with a fixed reply.
func NewMock() *Mock {
	return &Mock{GreetingText: "¡Hola!", Replies: map[string]Reply{}}
}

func (m *Mock) Greeting(ctx context.Context, guestName string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GreetingErr != nil {
		return "", m.GreetingErr
	}
	return m.GreetingText, nil
}

func (m *Mock) Answer(ctx context.Context, question string, history []models.ConversationTurn,
	facts string, knowledge []models.QAEntry) (Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AnsweredQuestions = append(m.AnsweredQuestions, question)
	if m.AnswerErr != nil {
		return Reply{}, m.AnswerErr
	}
	if reply, ok := m.Replies[question]; ok {
		return reply, nil
	}
	return Reply{Text: "mock answer"}, nil
}

func (m *Mock) RefineHostAnswer(ctx context.Context, guestQuestion, hostAnswer string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RefineErr != nil {
		return "", m.RefineErr
	}
	refined := "refined: " + hostAnswer
	m.RefinedAnswers = append(m.RefinedAnswers, refined)
	return refined, nil
}

func (m *Mock) ClassifySaveWorthy(ctx context.Context, question, answer string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Classified = append(m.Classified, [2]string{question, answer})
	if m.ClassifyErr != nil {
		return false, m.ClassifyErr
	}
	return m.SaveWorthy, nil
}

func (m *Mock) ExtractQA(ctx context.Context, text string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ExtractErr != nil {
		return "", "", m.ExtractErr
	}
	return m.ExtractQ, m.ExtractA, nil
}
