package support

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/sitelead-ai/pkg/logging"
)

var escalationTracer = otel.Tracer("sitelead/escalation")

// EscalationRequest contains details for creating an escalation. A zero ID
// gets a fresh one; callers replaying an event pass the event id so the
// insert is idempotent.
type EscalationRequest struct {
	ID              uuid.UUID
	BusinessID      string
	ConversationID  string
	Reason          string
	Priority        string
	Urgency         string
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	OriginalMessage string
	Summary         string
	CreatedAt       time.Time
}

// CallbackRequest schedules a callback task.
type CallbackRequest struct {
	ID             uuid.UUID
	BusinessID     string
	ConversationID string
	CustomerName   string
	CustomerPhone  string
	Notes          string
	DueAt          time.Time
	CreatedAt      time.Time
}

// Service handles staff escalations and callback tasks.
type Service struct {
	store  Store
	logger *logging.Logger
	now    func() time.Time
}

func NewService(store Store, logger *logging.Logger) *Service {
	if store == nil {
		panic("support: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateEscalation stores a pending escalation.
func (s *Service) CreateEscalation(ctx context.Context, req EscalationRequest) (*Escalation, error) {
	ctx, span := escalationTracer.Start(ctx, "escalation.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("sitelead.business_id", req.BusinessID),
		attribute.String("sitelead.session_id", req.ConversationID),
		attribute.String("escalation.priority", req.Priority),
	)

	if strings.TrimSpace(req.BusinessID) == "" {
		return nil, ErrMissingBusinessID
	}
	id := req.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	created := req.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	priority := req.Priority
	if priority == "" {
		priority = "normal"
	}

	e := &Escalation{
		ID:               id,
		BusinessID:       req.BusinessID,
		ConversationID:   req.ConversationID,
		Reason:           req.Reason,
		Priority:         priority,
		Urgency:          req.Urgency,
		CustomerName:     req.CustomerName,
		CustomerPhone:    req.CustomerPhone,
		CustomerEmail:    req.CustomerEmail,
		OriginalMessage:  req.OriginalMessage,
		Summary:          req.Summary,
		Status:           StatusPending,
		ChannelsNotified: []string{},
		CreatedAt:        created,
		UpdatedAt:        created,
	}
	if err := s.store.CreateEscalation(ctx, e); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.logger.Info("escalation created",
		"id", e.ID,
		"business_id", e.BusinessID,
		"session_id", e.ConversationID,
		"priority", e.Priority,
	)
	return e, nil
}

// RecordNotified stores which channels reached staff.
func (s *Service) RecordNotified(ctx context.Context, id uuid.UUID, channels []string) error {
	return s.store.SetChannelsNotified(ctx, id, channels)
}

// Transition moves an escalation to the next status.
func (s *Service) Transition(ctx context.Context, businessID string, id uuid.UUID, to EscalationStatus) (*Escalation, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	current, err := s.store.GetEscalation(ctx, businessID, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, to)
	}
	updated, err := s.store.UpdateEscalationStatus(ctx, businessID, id, current.Status, to, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info("escalation status updated", "id", id, "business_id", businessID, "from", current.Status, "to", to)
	return updated, nil
}

func (s *Service) GetEscalation(ctx context.Context, businessID string, id uuid.UUID) (*Escalation, error) {
	return s.store.GetEscalation(ctx, businessID, id)
}

func (s *Service) ListEscalations(ctx context.Context, businessID string, filter EscalationFilter) ([]*Escalation, error) {
	return s.store.ListEscalations(ctx, businessID, filter)
}

// OpenEscalations returns everything not yet resolved, high priority first.
func (s *Service) OpenEscalations(ctx context.Context, businessID string) ([]*Escalation, error) {
	pending, err := s.store.ListEscalations(ctx, businessID, EscalationFilter{Status: StatusPending, Limit: 200})
	if err != nil {
		return nil, err
	}
	working, err := s.store.ListEscalations(ctx, businessID, EscalationFilter{Status: StatusInProgress, Limit: 200})
	if err != nil {
		return nil, err
	}
	return append(pending, working...), nil
}

// ScheduleCallback stores a pending callback task.
func (s *Service) ScheduleCallback(ctx context.Context, req CallbackRequest) (*Task, error) {
	ctx, span := escalationTracer.Start(ctx, "callback.schedule")
	defer span.End()
	span.SetAttributes(attribute.String("sitelead.business_id", req.BusinessID))

	if strings.TrimSpace(req.BusinessID) == "" {
		return nil, ErrMissingBusinessID
	}
	id := req.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	created := req.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	t := &Task{
		ID:             id,
		BusinessID:     req.BusinessID,
		ConversationID: req.ConversationID,
		Kind:           TaskKindCallback,
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
		Notes:          req.Notes,
		DueAt:          req.DueAt,
		Status:         TaskPending,
		CreatedAt:      created,
	}
	if err := s.store.CreateTask(ctx, t); err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.logger.Info("callback scheduled", "id", t.ID, "business_id", t.BusinessID, "due_at", t.DueAt)
	return t, nil
}

func (s *Service) ListTasks(ctx context.Context, businessID string, filter TaskFilter) ([]*Task, error) {
	return s.store.ListTasks(ctx, businessID, filter)
}

func (s *Service) CompleteTask(ctx context.Context, businessID string, id uuid.UUID) (*Task, error) {
	t, err := s.store.CompleteTask(ctx, businessID, id, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info("task completed", "id", id, "business_id", businessID)
	return t, nil
}
