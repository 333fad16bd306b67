// Package llm holds the provider-neutral completion interface used by the chat
// agents and its Bedrock, Gemini, Anthropic and OpenAI implementations.
package llm

import (
	"context"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyCompletion is returned when a provider answers without any text.
var ErrEmptyCompletion = errors.New("llm: completion contained no text")

// Message is a provider-neutral chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// Request describes a single completion. A negative Temperature leaves the
// provider default in place.
type Request struct {
	Model       string
	System      []string
	Messages    []Message
	MaxTokens   int32
	Temperature float32
}

type Response struct {
	Text       string
	Usage      Usage
	StopReason string
}

type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// lastUserTurn returns the final message, which every provider sends as the
// live prompt.
func lastUserTurn(msgs []Message) (Message, error) {
	if len(msgs) == 0 {
		return Message{}, errors.New("llm: at least one message is required")
	}
	return msgs[len(msgs)-1], nil
}
