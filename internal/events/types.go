package events

import "time"

// NATS subjects. Subscribers may use "sitelead.>" to receive everything.
const (
	SubjectLeadCaptured      = "sitelead.lead.captured"
	SubjectEscalationCreated = "sitelead.escalation.created"
	SubjectCallbackScheduled = "sitelead.callback.scheduled"
)

type LeadCapturedV1 struct {
	LeadID     string    `json:"lead_id"`
	BusinessID string    `json:"business_id"`
	SessionID  string    `json:"session_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Inquiry    string    `json:"inquiry,omitempty"`
	Score      int       `json:"score"`
	Source     string    `json:"source"`
	CapturedAt time.Time `json:"captured_at"`
}

func (LeadCapturedV1) EventType() string { return "lead.captured.v1" }

type EscalationCreatedV1 struct {
	EscalationID     string    `json:"escalation_id"`
	BusinessID       string    `json:"business_id"`
	SessionID        string    `json:"session_id"`
	Priority         string    `json:"priority"`
	Reason           string    `json:"reason"`
	CustomerName     string    `json:"customer_name,omitempty"`
	CustomerPhone    string    `json:"customer_phone,omitempty"`
	ChannelsNotified []string  `json:"channels_notified"`
	CreatedAt        time.Time `json:"created_at"`
}

func (EscalationCreatedV1) EventType() string { return "escalation.created.v1" }

type CallbackScheduledV1 struct {
	TaskID        string    `json:"task_id"`
	BusinessID    string    `json:"business_id"`
	SessionID     string    `json:"session_id"`
	CustomerName  string    `json:"customer_name,omitempty"`
	CustomerPhone string    `json:"customer_phone,omitempty"`
	DueAt         time.Time `json:"due_at"`
}

func (CallbackScheduledV1) EventType() string { return "callback.scheduled.v1" }
