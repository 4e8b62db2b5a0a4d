package completion

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"

	"nambo/internal/domain"
	"nambo/internal/prompt"
)

const (
	defaultOpenAIModel = "gpt-4"

	// Incomplete replies are retried with a doubled output budget up to
	// this multiple of the configured one.
	maxOutputTokensGrowth = 4
)

// OpenAIClient calls OpenAI's Responses API.
type OpenAIClient struct {
	client openai.Client
	model  string
}

func NewOpenAIClient(apiKey, model string, opts ...option.RequestOption) *OpenAIClient {
	if strings.TrimSpace(model) == "" {
		model = defaultOpenAIModel
	}

	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (c *OpenAIClient) Complete(
	ctx context.Context,
	req prompt.Request,
	opts Options,
) (string, error) {
	input := make(responses.ResponseInputParam, 0, len(req.History)+1)
	for _, m := range req.History {
		input = append(input, responses.ResponseInputItemParamOfMessage(m.Text, openAIRole(m.Role)))
	}
	input = append(input, responses.ResponseInputItemParamOfMessage(req.Input, responses.EasyInputMessageRoleUser))

	maxOutputTokens := opts.MaxOutputTokens
	limitMaxOutputTokens := opts.MaxOutputTokens * maxOutputTokensGrowth
	for {
		params := responses.ResponseNewParams{
			Model:        openai.ChatModel(c.model),
			Temperature:  openai.Float(opts.Temperature),
			Instructions: openai.String(req.Persona),
			Input: responses.ResponseNewParamsInputUnion{
				OfInputItemList: input,
			},
		}
		if maxOutputTokens > 0 {
			params.MaxOutputTokens = openai.Int(maxOutputTokens)
		}

		resp, err := c.client.Responses.New(ctx, params)
		if err != nil {
			return "", upstream(ProviderOpenAI, fmt.Errorf("do request: %w", err))
		}

		if resp.Status == "incomplete" {
			if resp.IncompleteDetails.Reason == "max_output_tokens" &&
				maxOutputTokens > 0 && maxOutputTokens < limitMaxOutputTokens {
				maxOutputTokens = min(maxOutputTokens*2, limitMaxOutputTokens)
				continue
			}
			return "", upstream(ProviderOpenAI, fmt.Errorf(
				"response is incomplete (reason = %s, maxOutputTokens = %d)",
				resp.IncompleteDetails.Reason,
				maxOutputTokens,
			))
		}

		text := strings.TrimSpace(resp.OutputText())
		if text == "" {
			return "", upstream(ProviderOpenAI, fmt.Errorf("%w (status = %s)", ErrEmptyOutput, resp.Status))
		}
		return text, nil
	}
}

func openAIRole(role domain.Role) responses.EasyInputMessageRole {
	switch role {
	case domain.RoleAssistant:
		return responses.EasyInputMessageRoleAssistant
	case domain.RoleSystem:
		return responses.EasyInputMessageRoleSystem
	default:
		return responses.EasyInputMessageRoleUser
	}
}
