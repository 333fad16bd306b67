package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicClient implements Client on the Anthropic Messages API.
type AnthropicClient struct {
	client  anthropic.Client
	modelID string
}

// NewAnthropicClient builds a client. Extra request options (base URL, retry
// policy) are passed through to the SDK.
func NewAnthropicClient(apiKey, modelID string, opts ...option.RequestOption) (*AnthropicClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("llm: anthropic api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = defaultAnthropicModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicClient{client: anthropic.NewClient(opts...), modelID: modelID}, nil
}

func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Response, error) {
	if _, err := lastUserTurn(req.Messages); err != nil {
		return Response{}, err
	}
	model := c.modelID
	if strings.TrimSpace(req.Model) != "" {
		model = req.Model
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 512
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
	}
	for _, block := range req.System {
		if strings.TrimSpace(block) != "" {
			params.System = append(params.System, anthropic.TextBlockParam{Text: block})
		}
	}
	for _, msg := range req.Messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		switch msg.Role {
		case RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: content})
		case RoleUser:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(content)))
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(content)))
		default:
			return Response{}, fmt.Errorf("llm: unsupported role %q", msg.Role)
		}
	}
	if req.Temperature >= 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("llm: anthropic messages: %w", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return Response{}, ErrEmptyCompletion
	}
	return Response{
		Text:       out,
		StopReason: string(message.StopReason),
		Usage: Usage{
			InputTokens:  int32(message.Usage.InputTokens),
			OutputTokens: int32(message.Usage.OutputTokens),
			TotalTokens:  int32(message.Usage.InputTokens + message.Usage.OutputTokens),
		},
	}, nil
}
