package memory

import (
	"context"
	"fmt"

	"nambo/internal/domain"
	"nambo/internal/summarizer"
)

const (
	// InitialSummary is the running summary before anything was compacted.
	InitialSummary = "no history yet"

	DefaultTokenBudget = 1000
)

type SummaryMemory struct {
	turns      []domain.Turn
	summary    string
	summarized int
	budget     int
	counter    TokenCounter
	generation uint64
}

// Pending is a snapshot of the turns awaiting compaction.
type Pending struct {
	Summary    string
	Turns      []domain.Turn
	upTo       int
	generation uint64
}

// New returns an empty memory. A non-positive budget selects
// DefaultTokenBudget and a nil counter selects HeuristicCounter.
func New(budget int, counter TokenCounter) *SummaryMemory {
	if budget <= 0 {
		budget = DefaultTokenBudget
	}
	if counter == nil {
		counter = HeuristicCounter{}
	}

	return &SummaryMemory{
		summary: InitialSummary,
		budget:  budget,
		counter: counter,
	}
}

// SaveContext logs a user turn followed by the assistant reply to it.
func (m *SummaryMemory) SaveContext(input, output string) {
	m.turns = append(m.turns,
		domain.Turn{Role: domain.RoleUser, Text: input, Index: len(m.turns)},
		domain.Turn{Role: domain.RoleAssistant, Text: output, Index: len(m.turns) + 1},
	)
}

// ShouldCompact reports whether the live history exceeds the token budget.
func (m *SummaryMemory) ShouldCompact() bool {
	return m.Tokens() > m.budget
}

// Tokens is the estimated size of what would be sent as history: the
// unsummarized turns plus the summary once one exists.
func (m *SummaryMemory) Tokens() int {
	total := 0
	if m.Compacted() {
		total += m.counter.CountText(m.summary)
	}
	for _, t := range m.turns[m.summarized:] {
		total += m.counter.CountTurn(t)
	}
	return total
}

// Pending captures the current summary and the turns not yet folded into it.
func (m *SummaryMemory) Pending() Pending {
	return Pending{
		Summary:    m.summary,
		Turns:      m.Unsummarized(),
		upTo:       len(m.turns),
		generation: m.generation,
	}
}

// Compact asks s for the summary that folds p.Turns into p.Summary.
// Memory is not touched; hand the result to Apply.
func Compact(ctx context.Context, s summarizer.Summarizer, p Pending) (string, error) {
	summary, err := s.Summarize(ctx, summarizer.Input{
		PriorSummary: p.Summary,
		Turns:        p.Turns,
	})
	if err != nil {
		return "", fmt.Errorf("compact: %w", err)
	}
	return summary, nil
}

// Apply replaces the running summary with summary and moves the cursor past
// the turns captured in p. It returns false when p predates a Reset.
func (m *SummaryMemory) Apply(p Pending, summary string) bool {
	if p.generation != m.generation || p.upTo > len(m.turns) || p.upTo < m.summarized {
		return false
	}

	m.summary = summary
	m.summarized = p.upTo
	return true
}

// Reset restores the initial state.
func (m *SummaryMemory) Reset() {
	m.turns = nil
	m.summary = InitialSummary
	m.summarized = 0
	m.generation++
}

func (m *SummaryMemory) Summary() string {
	return m.summary
}

// Compacted reports whether any turns have been folded into the summary.
func (m *SummaryMemory) Compacted() bool {
	return m.summarized > 0
}

func (m *SummaryMemory) Budget() int {
	return m.budget
}

func (m *SummaryMemory) Len() int {
	return len(m.turns)
}

// Turns returns a copy of the whole turn log.
func (m *SummaryMemory) Turns() []domain.Turn {
	return append([]domain.Turn(nil), m.turns...)
}

// Unsummarized returns a copy of the turns past the summary cursor.
func (m *SummaryMemory) Unsummarized() []domain.Turn {
	return append([]domain.Turn(nil), m.turns[m.summarized:]...)
}

// Exchanges pairs every user turn with the assistant turn that follows it.
func (m *SummaryMemory) Exchanges() []domain.Exchange {
	out := make([]domain.Exchange, 0, len(m.turns)/2)
	for i := 0; i+1 < len(m.turns); i += 2 {
		out = append(out, domain.Exchange{
			Input:  m.turns[i].Text,
			Output: m.turns[i+1].Text,
		})
	}
	return out
}
