package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wolfman30/sitelead-ai/internal/conversation"
)

// Queue is the transport between the chat engine and the dispatch workers.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Message is one received queue entry.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// Kind names the side effect a job carries.
type Kind string

const (
	KindLead       Kind = "lead"
	KindStoredLead Kind = "stored_lead"
	KindEscalation Kind = "escalation"
	KindCallback   Kind = "callback"
	KindTurn       Kind = "turn"
)

// Job is the queue payload. Exactly one of the event fields is set, matching Kind.
type Job struct {
	ID         string                          `json:"id"`
	Kind       Kind                            `json:"kind"`
	BusinessID string                          `json:"business_id"`
	SessionID  string                          `json:"session_id"`
	Attempt    int                             `json:"attempt,omitempty"`
	Lead       *conversation.LeadCapturedEvent `json:"lead,omitempty"`
	Escalation *conversation.EscalationEvent   `json:"escalation,omitempty"`
	Callback   *conversation.CallbackEvent     `json:"callback,omitempty"`
	Turn       *conversation.TurnRecord        `json:"turn,omitempty"`
}

func encodeJob(job Job) (string, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("dispatch: encode %s job: %w", job.Kind, err)
	}
	return string(data), nil
}

func decodeJob(body string) (Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return Job{}, fmt.Errorf("dispatch: decode job: %w", err)
	}
	if job.ID == "" || job.Kind == "" {
		return Job{}, fmt.Errorf("dispatch: decode job: missing id or kind")
	}
	return job, nil
}
