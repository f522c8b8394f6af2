package brain

import (
	"fmt"
	"strings"

	"github.com/casabot/innkeeper/internal/models"
)

func greetingPrompt(guestName string) string {
	var b strings.Builder
	b.WriteString("You are the virtual concierge for a vacation rental. ")
	b.WriteString("Write one short, warm greeting for a guest who just sent their first message. ")
	b.WriteString("Answer in the guest's likely language (default Spanish). No questions, no emojis beyond one at most.\n")
	if guestName != "" {
		fmt.Fprintf(&b, "Guest name: %s\n", guestName)
	}
	return b.String()
}

func answerPrompt(question string, history []models.ConversationTurn,
	facts string, knowledge []models.QAEntry) string {
	var b strings.Builder
	b.WriteString("You are the virtual concierge for a vacation rental. ")
	b.WriteString("Answer the guest's question using ONLY the property facts and the saved Q&A below. ")
	b.WriteString("Reply in the guest's language, briefly and politely.\n")
	fmt.Fprintf(&b, "If the information needed is not present, reply with exactly %s and nothing else.\n\n", SignalAskHost)

	if facts != "" {
		b.WriteString("PROPERTY FACTS:\n")
		b.WriteString(facts)
		b.WriteString("\n\n")
	}
	if len(knowledge) > 0 {
		b.WriteString("SAVED Q&A:\n")
		for _, e := range knowledge {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n", e.Question, e.Answer)
		}
		b.WriteString("\n")
	}
	if len(history) > 0 {
		b.WriteString("CONVERSATION SO FAR:\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "[%s] %s\n", turn.Role, turn.Content)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "GUEST QUESTION:\n%s\n", question)
	return b.String()
}

func refinePrompt(guestQuestion, hostAnswer string) string {
	var b strings.Builder
	b.WriteString("A guest asked a question and the host replied with a quick note. ")
	b.WriteString("Rewrite the host's note as a polite, complete message to the guest, in the guest's language. ")
	b.WriteString("Keep every fact from the host's note, add nothing new.\n\n")
	fmt.Fprintf(&b, "GUEST QUESTION:\n%s\n\nHOST NOTE:\n%s\n", guestQuestion, hostAnswer)
	return b.String()
}

func classifyPrompt(question, answer string) string {
	var b strings.Builder
	b.WriteString("Decide whether this Q&A exchange is reusable knowledge about the property ")
	b.WriteString("(amenities, rules, directions, schedules) rather than a one-off request.\n")
	fmt.Fprintf(&b, "Reply with exactly %s or %s.\n\n", SignalSave, SignalDiscard)
	fmt.Fprintf(&b, "Q: %s\nA: %s\n", question, answer)
	return b.String()
}

func extractPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Extract the single question and its answer from the text below. ")
	b.WriteString("Reply in exactly two lines:\nQUESTION: <the question>\nANSWER: <the answer>\n\n")
	b.WriteString(text)
	return b.String()
}
