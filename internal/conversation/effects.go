package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CallbackDelay is how far out a scheduled callback is due.
const CallbackDelay = 4 * time.Hour

// Escalation priorities.
const (
	PriorityHigh   = "high"
	PriorityNormal = "normal"
)

// LeadCapturedEvent fires once per session when contact details are complete.
type LeadCapturedEvent struct {
	EventID    string         `json:"event_id"`
	BusinessID string         `json:"business_id"`
	SessionID  string         `json:"session_id"`
	Lead       LeadInfo       `json:"lead"`
	Score      int            `json:"score"`
	Analysis   *SalesAnalysis `json:"analysis,omitempty"`
	Source     string         `json:"source"`
	CapturedAt time.Time      `json:"captured_at"`
}

// EscalationEvent asks for a human to contact the customer right away.
type EscalationEvent struct {
	EventID         string    `json:"event_id"`
	BusinessID      string    `json:"business_id"`
	SessionID       string    `json:"session_id"`
	Reason          string    `json:"reason"`
	Priority        string    `json:"priority"`
	Urgency         Urgency   `json:"urgency"`
	Customer        LeadInfo  `json:"customer"`
	OriginalMessage string    `json:"original_message"`
	Summary         string    `json:"summary"`
	CreatedAt       time.Time `json:"created_at"`
}

// CallbackEvent schedules a deferred call from a specialist.
type CallbackEvent struct {
	EventID    string    `json:"event_id"`
	BusinessID string    `json:"business_id"`
	SessionID  string    `json:"session_id"`
	Reason     string    `json:"reason"`
	Customer   LeadInfo  `json:"customer"`
	Summary    string    `json:"summary"`
	DueAt      time.Time `json:"due_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// TurnRecord is one customer message and the reply it received.
type TurnRecord struct {
	BusinessID      string    `json:"business_id"`
	SessionID       string    `json:"session_id"`
	CustomerMessage string    `json:"customer_message"`
	AgentMessage    string    `json:"agent_message"`
	Agent           AgentType `json:"agent"`
	Intent          Intent    `json:"intent"`
	Stage           Stage     `json:"stage"`
	At              time.Time `json:"at"`
}

// EffectSink receives side effects after a turn has been saved. Implementations
// must not block on delivery; the chat reply is already on its way.
type EffectSink interface {
	LeadCaptured(ctx context.Context, evt LeadCapturedEvent) error
	EscalationRequested(ctx context.Context, evt EscalationEvent) error
	CallbackRequested(ctx context.Context, evt CallbackEvent) error
	TurnRecorded(ctx context.Context, rec TurnRecord) error
}

// NoopEffects discards every effect.
type NoopEffects struct{}

func (NoopEffects) LeadCaptured(context.Context, LeadCapturedEvent) error { return nil }
func (NoopEffects) EscalationRequested(context.Context, EscalationEvent) error { return nil }
func (NoopEffects) CallbackRequested(context.Context, CallbackEvent) error { return nil }
func (NoopEffects) TurnRecorded(context.Context, TurnRecord) error { return nil }

// escalationSummary is the one-paragraph hand-off shown to staff.
func escalationSummary(s *Session) string {
	var b strings.Builder
	name := s.LeadInfo.Name
	if name == "" {
		name = "Unknown customer"
	}
	fmt.Fprintf(&b, "%s", name)
	if s.LeadInfo.Phone != "" {
		fmt.Fprintf(&b, " (%s)", s.LeadInfo.Phone)
	}
	if s.LeadInfo.Email != "" {
		fmt.Fprintf(&b, " <%s>", s.LeadInfo.Email)
	}
	fmt.Fprintf(&b, " asked for a specialist")
	if s.EscalationReason != "" {
		fmt.Fprintf(&b, ": %q", s.EscalationReason)
	}
	b.WriteString(".")
	if s.LeadInfo.Inquiry != "" && s.LeadInfo.Inquiry != s.EscalationReason {
		fmt.Fprintf(&b, " Original inquiry: %q.", s.LeadInfo.Inquiry)
	}
	if s.LeadScore > 0 {
		fmt.Fprintf(&b, " Lead score %d.", s.LeadScore)
	}
	return b.String()
}
