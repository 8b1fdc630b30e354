package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// openaiGateway implements Gateway using the official OpenAI SDK against any
// OpenAI-compatible base URL.
type openaiGateway struct {
	client   openai.Client
	provider string
}

func newOpenAIGateway(cfg Config) *openaiGateway {
	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.Provider == "openrouter" {
		opts = append(opts,
			option.WithHeader("HTTP-Referer", "https://github.com/hurttlocker/scout"),
			option.WithHeader("X-Title", "Scout"),
		)
	}
	return &openaiGateway{
		client:   openai.NewClient(opts...),
		provider: cfg.Provider,
	}
}

func (g *openaiGateway) Name() string {
	return g.provider
}

func (g *openaiGateway) Complete(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: buildMessages(req.Messages),
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	completion, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, &GatewayError{StatusCode: apiErr.StatusCode, Detail: apiErr.Message, Err: err}
		}
		return nil, &GatewayError{Err: err}
	}
	if len(completion.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	return &Response{
		Content: strings.TrimSpace(completion.Choices[0].Message.Content),
		Model:   completion.Model,
	}, nil
}

func buildMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
