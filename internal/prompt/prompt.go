package prompt

import (
	"strings"

	"nambo/internal/domain"
)

// Persona is the system instruction every chat request starts with.
const Persona = `You are an expert in NVC (non-violent communication).
Your role is a coach to help people communicate more empathically.
You can help them rephrase what they want to say using NVC principles,
and you can also help them figure out how to respond to someone else.
You should be friendly, non-judgemental and encouraging.
You can also use some humor if it is appropriate.`

const summaryInstruction = `Progressively summarize the lines of conversation provided,
adding onto the previous summary and returning a new summary.

Rules:
- Keep names, feelings, needs and requests the user mentioned.
- Keep what the coach suggested and whether the user accepted it.
- Plain prose, no lists, no greetings.
- Output only the new summary.`

const summaryPrefix = "Summary of the conversation so far:\n"

// Message is a single history entry of a request.
type Message struct {
	Role domain.Role
	Text string
}

// Request is the payload sent to a completion service.
type Request struct {
	Persona string
	History []Message
	Input   string
}

// Build renders persona, history and the new user input into a request.
// When compacted is true the summary is sent first as a substitute for the
// turns already folded into it.
func Build(persona string, summary string, compacted bool, turns []domain.Turn, input string) Request {
	history := make([]Message, 0, len(turns)+1)
	if compacted {
		history = append(history, Message{
			Role: domain.RoleSystem,
			Text: summaryPrefix + summary,
		})
	}
	for _, t := range turns {
		history = append(history, Message{Role: t.Role, Text: t.Text})
	}

	return Request{
		Persona: persona,
		History: history,
		Input:   strings.TrimSpace(input),
	}
}

// BuildSummary renders the request that folds turns into the prior summary.
func BuildSummary(prior string, turns []domain.Turn) Request {
	var b strings.Builder
	b.WriteString("Current summary:\n")
	b.WriteString(strings.TrimSpace(prior))
	b.WriteString("\n\nNew lines of conversation:\n")
	b.WriteString(Transcript(turns))
	b.WriteString("\nNew summary:")

	return Request{
		Persona: summaryInstruction,
		Input:   b.String(),
	}
}

// Transcript renders turns as "Human:" / "AI:" lines.
func Transcript(turns []domain.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		switch t.Role {
		case domain.RoleUser:
			b.WriteString("Human: ")
		case domain.RoleAssistant:
			b.WriteString("AI: ")
		default:
			b.WriteString("System: ")
		}
		b.WriteString(strings.TrimSpace(t.Text))
		b.WriteString("\n")
	}

	return b.String()
}
