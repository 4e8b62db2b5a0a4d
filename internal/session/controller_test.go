package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"nambo/internal/completion"
	"nambo/internal/domain"
	"nambo/internal/memory"
	"nambo/internal/prompt"
	"nambo/internal/summarizer"
)

type stubClient struct {
	mu       sync.Mutex
	calls    int
	reply    string
	err      error
	requests []prompt.Request

	entered chan struct{}
	release chan struct{}
}

func (c *stubClient) Complete(
	ctx context.Context,
	req prompt.Request,
	_ completion.Options,
) (string, error) {
	c.mu.Lock()
	c.calls++
	c.requests = append(c.requests, req)
	entered, release := c.entered, c.release
	reply, err := c.reply, c.err
	c.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return reply, err
}

func (c *stubClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls
}

func (c *stubClient) lastRequest() prompt.Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.requests[len(c.requests)-1]
}

type stubSummarizer struct {
	mu      sync.Mutex
	calls   int
	summary string
	err     error
}

func (s *stubSummarizer) Summarize(_ context.Context, _ summarizer.Input) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	return s.summary, s.err
}

func (s *stubSummarizer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

func newTestController(client completion.Client, s summarizer.Summarizer, budget int) *Controller {
	return NewController(client, s, Config{
		TokenBudget: budget,
		Options:     completion.Options{Temperature: 0.7, MaxOutputTokens: 256},
		Timeout:     time.Second,
	}, slog.Default())
}

func TestSubmitFreshSessionHello(t *testing.T) {
	client := &stubClient{reply: "Hi! How can I help?"}
	sum := &stubSummarizer{}
	c := newTestController(client, sum, 1000)

	got, err := c.Submit(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	want := domain.Exchange{Input: "hello", Output: "Hi! How can I help?"}
	if got != want {
		t.Fatalf("exchange mismatch: got %+v want %+v", got, want)
	}
	if n := len(c.Turns()); n != 2 {
		t.Fatalf("expected 2 turns, got %d", n)
	}
	if c.Summary() != memory.InitialSummary {
		t.Fatalf("summary should be untouched, got %q", c.Summary())
	}
	if sum.callCount() != 0 {
		t.Fatalf("expected no compaction, got %d calls", sum.callCount())
	}
	if c.Busy() {
		t.Fatal("expected controller to be idle")
	}

	req := client.lastRequest()
	if req.Persona != prompt.Persona || req.Input != "hello" || len(req.History) != 0 {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestSubmitLogsTwoTurnsPerExchangeInOrder(t *testing.T) {
	client := &stubClient{reply: "ok"}
	c := newTestController(client, &stubSummarizer{}, 100000)

	inputs := []string{"first", "second", "third", "fourth"}
	for _, in := range inputs {
		if _, err := c.Submit(context.Background(), in); err != nil {
			t.Fatalf("submit %q: %v", in, err)
		}
	}

	turns := c.Turns()
	if len(turns) != 2*len(inputs) {
		t.Fatalf("turn count mismatch: got %d want %d", len(turns), 2*len(inputs))
	}
	for i, in := range inputs {
		user, assistant := turns[2*i], turns[2*i+1]
		if user.Role != domain.RoleUser || user.Text != in {
			t.Fatalf("turn %d: got %+v want user %q", 2*i, user, in)
		}
		if assistant.Role != domain.RoleAssistant || assistant.Text != "ok" {
			t.Fatalf("turn %d: got %+v want assistant reply", 2*i+1, assistant)
		}
	}

	if req := client.lastRequest(); len(req.History) != 6 {
		t.Fatalf("expected prior turns as history, got %d", len(req.History))
	}
}

func TestSubmitEmptyInputIsNoop(t *testing.T) {
	client := &stubClient{reply: "ok"}
	c := newTestController(client, &stubSummarizer{}, 1000)

	for _, in := range []string{"", "   ", "\n\t "} {
		if _, err := c.Submit(context.Background(), in); !errors.Is(err, ErrEmptyInput) {
			t.Fatalf("input %q: expected ErrEmptyInput, got %v", in, err)
		}
	}
	if client.callCount() != 0 {
		t.Fatalf("expected no completion calls, got %d", client.callCount())
	}
	if len(c.Turns()) != 0 || c.Summary() != memory.InitialSummary {
		t.Fatal("state changed on empty input")
	}
}

func TestSubmitUpstreamFailureLeavesStateUnchanged(t *testing.T) {
	client := &stubClient{reply: "ok"}
	c := newTestController(client, &stubSummarizer{}, 1000)

	if _, err := c.Submit(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	before := c.Turns()
	summaryBefore := c.Summary()

	client.mu.Lock()
	client.err = &completion.UpstreamError{Provider: "test", Err: errors.New("quota")}
	client.mu.Unlock()

	if _, err := c.Submit(context.Background(), "again"); !completion.IsUpstream(err) {
		t.Fatalf("expected upstream error, got %v", err)
	}

	after := c.Turns()
	if len(after) != len(before) {
		t.Fatalf("turn log changed: got %d want %d", len(after), len(before))
	}
	for i := range before {
		if after[i] != before[i] {
			t.Fatalf("turn %d changed: got %+v want %+v", i, after[i], before[i])
		}
	}
	if c.Summary() != summaryBefore {
		t.Fatalf("summary changed: %q", c.Summary())
	}
	if c.Busy() {
		t.Fatal("expected controller to be idle after failure")
	}

	client.mu.Lock()
	client.err = nil
	client.mu.Unlock()

	if _, err := c.Submit(context.Background(), "again"); err != nil {
		t.Fatalf("retry should succeed: %v", err)
	}
}

func TestSubmitWrapsPlainErrorsAsUpstream(t *testing.T) {
	client := &stubClient{err: context.DeadlineExceeded}
	c := newTestController(client, &stubSummarizer{}, 1000)

	_, err := c.Submit(context.Background(), "hello")
	if !completion.IsUpstream(err) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected wrapped deadline error, got %v", err)
	}
}

func TestSubmitCompactsOnceWhenBudgetExceeded(t *testing.T) {
	client := &stubClient{reply: strings.Repeat("b", 800)}
	sum := &stubSummarizer{summary: "they talked a lot"}
	c := newTestController(client, sum, 1000)

	input := strings.Repeat("a", 600)
	for i := range 2 {
		if _, err := c.Submit(context.Background(), input); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if sum.callCount() != 0 {
			t.Fatalf("compaction too early after turn %d", i+1)
		}
	}

	if _, err := c.Submit(context.Background(), input); err != nil {
		t.Fatalf("submit 3: %v", err)
	}
	if calls := sum.callCount(); calls != 1 {
		t.Fatalf("expected exactly one compaction, got %d", calls)
	}
	if c.Summary() != "they talked a lot" {
		t.Fatalf("summary not applied: %q", c.Summary())
	}
	if len(c.Turns()) != 6 {
		t.Fatalf("turn log must keep all turns, got %d", len(c.Turns()))
	}

	if _, err := c.Submit(context.Background(), "short"); err != nil {
		t.Fatalf("submit 4: %v", err)
	}
	req := client.lastRequest()
	if len(req.History) != 1 || req.History[0].Role != domain.RoleSystem {
		t.Fatalf("expected summary substitute only, got %+v", req.History)
	}
	if !strings.Contains(req.History[0].Text, "they talked a lot") {
		t.Fatalf("summary missing from prompt: %q", req.History[0].Text)
	}
}

func TestSubmitKeepsPriorSummaryWhenCompactionFails(t *testing.T) {
	client := &stubClient{reply: strings.Repeat("b", 80)}
	sum := &stubSummarizer{err: errors.New("quota")}
	c := newTestController(client, sum, 10)

	got, err := c.Submit(context.Background(), "an input well over ten tokens of budget")
	if err != nil {
		t.Fatalf("compaction failure must not fail the turn: %v", err)
	}
	if got.Output != strings.Repeat("b", 80) {
		t.Fatalf("unexpected output: %q", got.Output)
	}
	if c.Summary() != memory.InitialSummary {
		t.Fatalf("summary should be kept, got %q", c.Summary())
	}

	if _, err = c.Submit(context.Background(), "next"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if req := client.lastRequest(); len(req.History) != 2 {
		t.Fatalf("expected uncompacted history, got %d", len(req.History))
	}
	if sum.callCount() != 2 {
		t.Fatalf("expected one compaction attempt per turn, got %d", sum.callCount())
	}
}

func TestSubmitRejectsWhileProcessing(t *testing.T) {
	client := &stubClient{
		reply:   "ok",
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	c := newTestController(client, &stubSummarizer{}, 1000)

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), "first")
		done <- err
	}()
	<-client.entered

	if !c.Busy() {
		t.Fatal("expected controller to be busy")
	}
	if _, err := c.Submit(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	close(client.release)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if history := c.History(); len(history) != 1 || history[0].Input != "first" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestResetDuringTurnDiscardsResult(t *testing.T) {
	client := &stubClient{
		reply:   "late",
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	c := newTestController(client, &stubSummarizer{}, 1000)

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), "first")
		done <- err
	}()
	<-client.entered

	c.Reset()
	close(client.release)

	if err := <-done; !errors.Is(err, ErrDiscarded) {
		t.Fatalf("expected ErrDiscarded, got %v", err)
	}
	if len(c.Turns()) != 0 || c.Summary() != memory.InitialSummary {
		t.Fatal("discarded turn leaked into state")
	}
	if c.Busy() {
		t.Fatal("expected idle after reset")
	}
}

func TestResetRestoresInitialState(t *testing.T) {
	client := &stubClient{reply: strings.Repeat("b", 80)}
	c := newTestController(client, &stubSummarizer{summary: "s"}, 10)

	for range 3 {
		if _, err := c.Submit(context.Background(), "some words here"); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	if c.Summary() == memory.InitialSummary {
		t.Fatal("expected compaction before reset")
	}

	c.Reset()

	if len(c.Turns()) != 0 || len(c.History()) != 0 {
		t.Fatal("expected empty log after reset")
	}
	if c.Summary() != memory.InitialSummary {
		t.Fatalf("unexpected summary after reset: %q", c.Summary())
	}
}
