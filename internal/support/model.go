package support

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEscalationNotFound = errors.New("support: escalation not found")
	ErrTaskNotFound       = errors.New("support: task not found")
	ErrInvalidTransition  = errors.New("support: invalid status transition")
	ErrMissingBusinessID  = errors.New("support: business id required")
)

// EscalationStatus tracks staff follow-up on an escalation.
type EscalationStatus string

const (
	StatusPending    EscalationStatus = "pending"
	StatusInProgress EscalationStatus = "in_progress"
	StatusResolved   EscalationStatus = "resolved"
)

// Valid reports whether s is a known status.
func (s EscalationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// CanTransition allows pending -> in_progress -> resolved, and pending ->
// resolved for escalations closed without work.
func (s EscalationStatus) CanTransition(next EscalationStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusInProgress || next == StatusResolved
	case StatusInProgress:
		return next == StatusResolved
	}
	return false
}

// Escalation is a conversation handed to a human.
type Escalation struct {
	ID               uuid.UUID        `json:"id"`
	BusinessID       string           `json:"business_id"`
	ConversationID   string           `json:"conversation_id"`
	Reason           string           `json:"reason"`
	Priority         string           `json:"priority"`
	Urgency          string           `json:"urgency,omitempty"`
	CustomerName     string           `json:"customer_name,omitempty"`
	CustomerPhone    string           `json:"customer_phone,omitempty"`
	CustomerEmail    string           `json:"customer_email,omitempty"`
	OriginalMessage  string           `json:"original_message,omitempty"`
	Summary          string           `json:"summary"`
	Status           EscalationStatus `json:"status"`
	ChannelsNotified []string         `json:"channels_notified"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	ResolvedAt       *time.Time       `json:"resolved_at,omitempty"`
}

// TaskStatus tracks a deferred callback.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskDone    TaskStatus = "done"
)

// TaskKindCallback is the only task kind the chat creates.
const TaskKindCallback = "callback"

// Task is a deferred follow-up for staff.
type Task struct {
	ID             uuid.UUID  `json:"id"`
	BusinessID     string     `json:"business_id"`
	ConversationID string     `json:"conversation_id"`
	Kind           string     `json:"kind"`
	CustomerName   string     `json:"customer_name,omitempty"`
	CustomerPhone  string     `json:"customer_phone,omitempty"`
	Notes          string     `json:"notes"`
	DueAt          time.Time  `json:"due_at"`
	Status         TaskStatus `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Overdue reports whether the task is still pending past its due time.
func (t *Task) Overdue(now time.Time) bool {
	return t.Status == TaskPending && now.After(t.DueAt)
}

// EscalationFilter narrows ListEscalations. A zero Status means any.
type EscalationFilter struct {
	Status EscalationStatus
	Since  time.Time
	Limit  int
}

// TaskFilter narrows ListTasks. A zero DueBefore means any due time.
type TaskFilter struct {
	Status    TaskStatus
	DueBefore time.Time
	Limit     int
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}
