package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"nambo/internal/completion"
	"nambo/internal/domain"
	"nambo/internal/memory"
	"nambo/internal/prompt"
	"nambo/internal/summarizer"
)

const DefaultCompletionTimeout = 60 * time.Second

var (
	// ErrEmptyInput marks input that was dropped without a completion call.
	ErrEmptyInput = errors.New("input is empty")
	ErrBusy       = errors.New("session is busy with another turn")
	// ErrDiscarded is returned to a submitter whose session was reset while
	// the turn was in flight.
	ErrDiscarded = errors.New("session was reset during the turn")
)

// Config holds the process-wide defaults every controller is built with.
// A nil Counter selects memory.HeuristicCounter.
type Config struct {
	Persona     string
	TokenBudget int
	Counter     memory.TokenCounter
	Options     completion.Options
	Timeout     time.Duration
}

// Controller runs the turns of a single conversation, one at a time.
type Controller struct {
	mu         sync.Mutex
	memory     *memory.SummaryMemory
	processing bool
	epoch      uint64
	lastActive time.Time

	client     completion.Client
	summarizer summarizer.Summarizer
	cfg        Config
	now        func() time.Time
	log        *slog.Logger
}

func NewController(
	client completion.Client,
	s summarizer.Summarizer,
	cfg Config,
	log *slog.Logger,
) *Controller {
	if cfg.Persona == "" {
		cfg.Persona = prompt.Persona
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCompletionTimeout
	}

	c := &Controller{
		memory:     memory.New(cfg.TokenBudget, cfg.Counter),
		client:     client,
		summarizer: s,
		cfg:        cfg,
		now:        time.Now,
		log:        log,
	}
	c.lastActive = c.now()

	return c
}

// Submit runs one turn: it sends text with the current history, logs the
// exchange and compacts the history when it outgrew the budget.
func (c *Controller) Submit(ctx context.Context, text string) (domain.Exchange, error) {
	input := strings.TrimSpace(text)
	if input == "" {
		return domain.Exchange{}, ErrEmptyInput
	}

	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		return domain.Exchange{}, ErrBusy
	}
	c.processing = true
	c.lastActive = c.now()
	epoch := c.epoch
	req := prompt.Build(
		c.cfg.Persona,
		c.memory.Summary(),
		c.memory.Compacted(),
		c.memory.Unsummarized(),
		input,
	)
	c.mu.Unlock()

	output, err := c.complete(ctx, req)

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return domain.Exchange{}, ErrDiscarded
	}
	if err != nil {
		c.processing = false
		c.mu.Unlock()
		return domain.Exchange{}, err
	}

	exchange := domain.Exchange{Input: input, Output: output}
	c.memory.SaveContext(input, output)
	if !c.memory.ShouldCompact() {
		c.finishLocked()
		c.mu.Unlock()
		return exchange, nil
	}
	pending := c.memory.Pending()
	tokens := c.memory.Tokens()
	c.mu.Unlock()

	summary, err := c.compact(ctx, pending)

	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch {
		return domain.Exchange{}, ErrDiscarded
	}
	c.finishLocked()

	if err != nil {
		c.log.WarnContext(ctx, "Failed to compact history so prior summary is kept",
			"error", err,
			"tokens", tokens,
			"budget", c.memory.Budget(),
			"pendingTurns", len(pending.Turns))

		return exchange, nil
	}
	c.memory.Apply(pending, summary)
	c.log.DebugContext(ctx, "History is compacted",
		"tokensBefore", tokens,
		"tokensAfter", c.memory.Tokens(),
		"foldedTurns", len(pending.Turns))

	return exchange, nil
}

func (c *Controller) complete(ctx context.Context, req prompt.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	output, err := c.client.Complete(ctx, req, c.cfg.Options)
	if err != nil {
		if !completion.IsUpstream(err) {
			err = &completion.UpstreamError{Provider: "unknown", Err: err}
		}
		return "", err
	}
	return output, nil
}

func (c *Controller) compact(ctx context.Context, pending memory.Pending) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	return memory.Compact(ctx, c.summarizer, pending)
}

func (c *Controller) finishLocked() {
	c.processing = false
	c.lastActive = c.now()
}

// Reset starts a new chat. A turn in flight is discarded.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.memory.Reset()
	c.epoch++
	c.processing = false
	c.lastActive = c.now()
}

func (c *Controller) Summary() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.memory.Summary()
}

// History returns every exchange of the current chat, oldest first.
func (c *Controller) History() []domain.Exchange {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.memory.Exchanges()
}

// Turns returns a copy of the turn log.
func (c *Controller) Turns() []domain.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.memory.Turns()
}

func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.processing
}

func (c *Controller) touch() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastActive = c.now()
}

func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lastActive
}
