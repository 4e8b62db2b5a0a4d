package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"nambo/internal/completion"
	"nambo/internal/prompt"
)

const (
	// Summaries should be stable, not creative.
	summaryTemperature     = 0.0
	summaryMaxOutputTokens = int64(512)
	retryBaseDelay         = 500 * time.Millisecond
)

var ErrNothingToSummarize = errors.New("no turns to summarize")

// CompletionSummarizer delegates summarization to a completion client.
type CompletionSummarizer struct {
	client  completion.Client
	retries uint64
	delay   time.Duration
	log     *slog.Logger
}

// NewCompletionSummarizer builds a summarizer that retries upstream failures
// up to retries extra times with exponential backoff.
func NewCompletionSummarizer(client completion.Client, retries uint64, log *slog.Logger) *CompletionSummarizer {
	return &CompletionSummarizer{
		client:  client,
		retries: retries,
		delay:   retryBaseDelay,
		log:     log,
	}
}

func (s *CompletionSummarizer) Summarize(ctx context.Context, input Input) (string, error) {
	if len(input.Turns) == 0 {
		return "", ErrNothingToSummarize
	}

	req := prompt.BuildSummary(input.PriorSummary, input.Turns)
	opts := completion.Options{
		Temperature:     summaryTemperature,
		MaxOutputTokens: summaryMaxOutputTokens,
	}

	attempt := 0
	backoff := retry.WithMaxRetries(s.retries, retry.NewExponential(s.delay))

	var summary string
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++

		out, err := s.client.Complete(ctx, req, opts)
		if err != nil {
			if completion.IsUpstream(err) {
				s.log.DebugContext(ctx, "Summarize attempt failed",
					"error", err,
					"attempt", attempt,
					"turnCount", len(input.Turns))

				return retry.RetryableError(err)
			}
			return err
		}

		summary = strings.TrimSpace(out)
		if summary == "" {
			return completion.ErrEmptyOutput
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("summarize %d turns: %w", len(input.Turns), err)
	}

	return summary, nil
}
