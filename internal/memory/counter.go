package memory

import (
	"unicode/utf8"

	"nambo/internal/domain"
)

// TokenCounter estimates the token cost of history.
type TokenCounter interface {
	CountText(s string) int
	CountTurn(t domain.Turn) int
}

// HeuristicCounter approximates tokens as a quarter of the rune count,
// rounded up, plus a fixed overhead per turn for role formatting.
type HeuristicCounter struct{}

const (
	runesPerToken = 4
	turnOverhead  = 4
)

func (HeuristicCounter) CountText(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + runesPerToken - 1) / runesPerToken
}

func (h HeuristicCounter) CountTurn(t domain.Turn) int {
	return h.CountText(t.Text) + turnOverhead
}
