package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIClient implements Client on the OpenAI Responses API.
type OpenAIClient struct {
	client  openai.Client
	modelID string
}

func NewOpenAIClient(apiKey, modelID string, opts ...option.RequestOption) (*OpenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("llm: openai api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = defaultOpenAIModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIClient{client: openai.NewClient(opts...), modelID: modelID}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	if _, err := lastUserTurn(req.Messages); err != nil {
		return Response{}, err
	}
	model := c.modelID
	if strings.TrimSpace(req.Model) != "" {
		model = req.Model
	}

	items := make(responses.ResponseInputParam, 0, len(req.System)+len(req.Messages))
	for _, block := range req.System {
		if strings.TrimSpace(block) != "" {
			items = append(items, responses.ResponseInputItemParamOfMessage(block, responses.EasyInputMessageRoleSystem))
		}
	}
	for _, msg := range req.Messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		switch msg.Role {
		case RoleSystem:
			items = append(items, responses.ResponseInputItemParamOfMessage(content, responses.EasyInputMessageRoleSystem))
		case RoleUser:
			items = append(items, responses.ResponseInputItemParamOfMessage(content, responses.EasyInputMessageRoleUser))
		case RoleAssistant:
			items = append(items, responses.ResponseInputItemParamOfMessage(content, responses.EasyInputMessageRoleAssistant))
		default:
			return Response{}, fmt.Errorf("llm: unsupported role %q", msg.Role)
		}
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(model),
		Input: responses.ResponseNewParamsInputUnion{OfInputItemList: items},
	}
	if req.MaxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature >= 0 {
		params.Temperature = openai.Float(float64(req.Temperature))
	}

	result, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("llm: openai responses: %w", err)
	}
	text := strings.TrimSpace(result.OutputText())
	if text == "" {
		return Response{}, ErrEmptyCompletion
	}
	return Response{
		Text:       text,
		StopReason: string(result.Status),
		Usage: Usage{
			InputTokens:  int32(result.Usage.InputTokens),
			OutputTokens: int32(result.Usage.OutputTokens),
			TotalTokens:  int32(result.Usage.TotalTokens),
		},
	}, nil
}
