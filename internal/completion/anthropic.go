package completion

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"nambo/internal/domain"
	"nambo/internal/prompt"
)

const (
	defaultAnthropicModel = string(anthropic.ModelClaude3_7SonnetLatest)

	// The Messages API requires max_tokens on every request.
	fallbackAnthropicMaxTokens int64 = 1024
)

// AnthropicClient calls Anthropic's Messages API.
type AnthropicClient struct {
	client anthropic.Client
	model  string
}

func NewAnthropicClient(apiKey, model string, opts ...option.RequestOption) *AnthropicClient {
	if strings.TrimSpace(model) == "" {
		model = defaultAnthropicModel
	}

	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)

	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

func (c *AnthropicClient) Complete(
	ctx context.Context,
	req prompt.Request,
	opts Options,
) (string, error) {
	// System messages have no place in the message list, so the summary
	// substitute travels with the persona.
	system := []anthropic.TextBlockParam{{Text: req.Persona}}
	messages := make([]anthropic.MessageParam, 0, len(req.History)+1)
	for _, m := range req.History {
		switch m.Role {
		case domain.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Text})
		case domain.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Text)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Input)))

	maxTokens := opts.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = fallbackAnthropicMaxTokens
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(opts.Temperature),
		System:      system,
		Messages:    messages,
	})
	if err != nil {
		return "", upstream(ProviderAnthropic, fmt.Errorf("do request: %w", err))
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok && tb.Text != "" {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(tb.Text)
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", upstream(ProviderAnthropic, fmt.Errorf("%w (stopReason = %s)", ErrEmptyOutput, msg.StopReason))
	}
	return text, nil
}
