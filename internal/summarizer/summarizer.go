package summarizer

import (
	"context"

	"nambo/internal/domain"
)

// Input describes the payload for a summary request.
type Input struct {
	// PriorSummary is the running summary the new turns are folded into.
	PriorSummary string
	// Turns are the turns not yet covered by PriorSummary, oldest first.
	Turns []domain.Turn
}

// Summarizer produces the next running summary of a conversation.
type Summarizer interface {
	Summarize(ctx context.Context, input Input) (string, error)
}
