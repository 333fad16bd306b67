package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/sitelead-ai/internal/business"
	"github.com/wolfman30/sitelead-ai/internal/conversation"
	"github.com/wolfman30/sitelead-ai/internal/events"
	"github.com/wolfman30/sitelead-ai/internal/leads"
	"github.com/wolfman30/sitelead-ai/internal/notify"
	"github.com/wolfman30/sitelead-ai/internal/support"
	"github.com/wolfman30/sitelead-ai/pkg/logging"
)

var dispatchTracer = otel.Tracer("sitelead/dispatch")

// Notifier is the subset of notify.Service the handlers use.
type Notifier interface {
	NotifyNewLead(ctx context.Context, cfg *business.Config, n notify.LeadNotice) []string
	NotifyEscalation(ctx context.Context, cfg *business.Config, n notify.EscalationNotice) []string
	NotifyCallback(ctx context.Context, cfg *business.Config, n notify.CallbackNotice) []string
}

// TurnRecorder appends a turn to the conversation history.
type TurnRecorder interface {
	RecordTurn(ctx context.Context, rec conversation.TurnRecord) error
}

// Deps are the collaborators a Handler writes to.
type Deps struct {
	Leads      leads.Repository
	Support    *support.Service
	Notifier   Notifier
	Businesses business.Provider
	Publisher  events.Publisher
	History    TurnRecorder
	Logger     *logging.Logger
}

// Handler applies one job: persist, notify staff, then publish.
type Handler struct {
	leads      leads.Repository
	support    *support.Service
	notifier   Notifier
	businesses business.Provider
	publisher  events.Publisher
	history    TurnRecorder
	logger     *logging.Logger
}

func NewHandler(deps Deps) *Handler {
	if deps.Leads == nil {
		panic("dispatch: leads repository required")
	}
	if deps.Support == nil {
		panic("dispatch: support service required")
	}
	if deps.Notifier == nil {
		panic("dispatch: notifier required")
	}
	if deps.Businesses == nil {
		panic("dispatch: business provider required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	return &Handler{
		leads:      deps.Leads,
		support:    deps.Support,
		notifier:   deps.Notifier,
		businesses: deps.Businesses,
		publisher:  deps.Publisher,
		history:    deps.History,
		logger:     deps.Logger,
	}
}

// Handle runs the job. Every step is safe to repeat on redelivery.
func (h *Handler) Handle(ctx context.Context, job Job) error {
	ctx, span := dispatchTracer.Start(ctx, "dispatch.handle")
	defer span.End()
	span.SetAttributes(
		attribute.String("dispatch.kind", string(job.Kind)),
		attribute.String("sitelead.business_id", job.BusinessID),
		attribute.String("sitelead.session_id", job.SessionID),
	)

	var err error
	switch job.Kind {
	case KindLead, KindStoredLead:
		err = h.handleLead(ctx, job)
	case KindEscalation:
		err = h.handleEscalation(ctx, job)
	case KindCallback:
		err = h.handleCallback(ctx, job)
	case KindTurn:
		err = h.handleTurn(ctx, job)
	default:
		err = permanent(fmt.Errorf("dispatch: unknown job kind %q", job.Kind))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (h *Handler) handleLead(ctx context.Context, job Job) error {
	evt := job.Lead
	if evt == nil {
		return permanent(errors.New("dispatch: lead job without payload"))
	}
	var (
		lead *leads.Lead
		err  error
	)
	if job.Kind == KindStoredLead {
		lead, err = h.leads.GetByID(ctx, evt.BusinessID, evt.EventID)
		if errors.Is(err, leads.ErrLeadNotFound) {
			return permanent(fmt.Errorf("dispatch: load lead: %w", err))
		}
	} else {
		lead, err = h.leads.Create(ctx, &leads.CreateLeadRequest{
			BusinessID: evt.BusinessID,
			SessionID:  evt.SessionID,
			Name:       evt.Lead.Name,
			Email:      evt.Lead.Email,
			Phone:      evt.Lead.Phone,
			Inquiry:    evt.Lead.Inquiry,
			Source:     evt.Source,
			Score:      evt.Score,
		})
	}
	if err != nil {
		return classify(fmt.Errorf("dispatch: store lead: %w", err))
	}

	cfg, err := h.config(ctx, evt.BusinessID)
	if err != nil {
		return err
	}
	h.notifier.NotifyNewLead(ctx, cfg, notify.LeadNotice{
		ID:        lead.ID,
		SessionID: lead.SessionID,
		Name:      lead.Name,
		Email:     lead.Email,
		Phone:     lead.Phone,
		Inquiry:   lead.Inquiry,
		Source:    lead.Source,
		Score:     lead.Score,
	})

	h.publish(ctx, events.SubjectLeadCaptured, evt.BusinessID, evt.SessionID, evt.EventID, events.LeadCapturedV1{
		LeadID:     lead.ID,
		BusinessID: lead.BusinessID,
		SessionID:  lead.SessionID,
		Name:       lead.Name,
		Email:      lead.Email,
		Phone:      lead.Phone,
		Inquiry:    lead.Inquiry,
		Score:      lead.Score,
		Source:     lead.Source,
		CapturedAt: evt.CapturedAt,
	})
	return nil
}

func (h *Handler) handleEscalation(ctx context.Context, job Job) error {
	evt := job.Escalation
	if evt == nil {
		return permanent(errors.New("dispatch: escalation job without payload"))
	}
	esc, err := h.support.CreateEscalation(ctx, support.EscalationRequest{
		ID:              eventUUID(evt.EventID),
		BusinessID:      evt.BusinessID,
		ConversationID:  evt.SessionID,
		Reason:          evt.Reason,
		Priority:        evt.Priority,
		Urgency:         string(evt.Urgency),
		CustomerName:    evt.Customer.Name,
		CustomerPhone:   evt.Customer.Phone,
		CustomerEmail:   evt.Customer.Email,
		OriginalMessage: evt.OriginalMessage,
		Summary:         evt.Summary,
		CreatedAt:       evt.CreatedAt,
	})
	if err != nil {
		return classify(fmt.Errorf("dispatch: create escalation: %w", err))
	}

	cfg, err := h.config(ctx, evt.BusinessID)
	if err != nil {
		return err
	}
	channels := h.notifier.NotifyEscalation(ctx, cfg, notify.EscalationNotice{
		ID:            esc.ID.String(),
		SessionID:     esc.ConversationID,
		Reason:        esc.Reason,
		Priority:      esc.Priority,
		Urgency:       esc.Urgency,
		CustomerName:  esc.CustomerName,
		CustomerPhone: esc.CustomerPhone,
		CustomerEmail: esc.CustomerEmail,
		Summary:       esc.Summary,
		CreatedAt:     esc.CreatedAt,
	})
	if channels == nil {
		channels = []string{}
	}
	if err := h.support.RecordNotified(ctx, esc.ID, channels); err != nil {
		h.logger.Warn("failed to record escalation channels", "escalation_id", esc.ID, "error", err)
	}

	h.publish(ctx, events.SubjectEscalationCreated, evt.BusinessID, evt.SessionID, esc.ID.String(), events.EscalationCreatedV1{
		EscalationID:     esc.ID.String(),
		BusinessID:       esc.BusinessID,
		SessionID:        esc.ConversationID,
		Priority:         esc.Priority,
		Reason:           esc.Reason,
		CustomerName:     esc.CustomerName,
		CustomerPhone:    esc.CustomerPhone,
		ChannelsNotified: channels,
		CreatedAt:        esc.CreatedAt,
	})
	return nil
}

func (h *Handler) handleCallback(ctx context.Context, job Job) error {
	evt := job.Callback
	if evt == nil {
		return permanent(errors.New("dispatch: callback job without payload"))
	}
	task, err := h.support.ScheduleCallback(ctx, support.CallbackRequest{
		ID:             eventUUID(evt.EventID),
		BusinessID:     evt.BusinessID,
		ConversationID: evt.SessionID,
		CustomerName:   evt.Customer.Name,
		CustomerPhone:  evt.Customer.Phone,
		Notes:          evt.Summary,
		DueAt:          evt.DueAt,
		CreatedAt:      evt.CreatedAt,
	})
	if err != nil {
		return classify(fmt.Errorf("dispatch: schedule callback: %w", err))
	}

	cfg, err := h.config(ctx, evt.BusinessID)
	if err != nil {
		return err
	}
	h.notifier.NotifyCallback(ctx, cfg, notify.CallbackNotice{
		ID:            task.ID.String(),
		SessionID:     task.ConversationID,
		CustomerName:  task.CustomerName,
		CustomerPhone: task.CustomerPhone,
		Reason:        evt.Reason,
		Summary:       evt.Summary,
		DueAt:         task.DueAt,
	})

	h.publish(ctx, events.SubjectCallbackScheduled, evt.BusinessID, evt.SessionID, task.ID.String(), events.CallbackScheduledV1{
		TaskID:        task.ID.String(),
		BusinessID:    task.BusinessID,
		SessionID:     task.ConversationID,
		CustomerName:  task.CustomerName,
		CustomerPhone: task.CustomerPhone,
		DueAt:         task.DueAt,
	})
	return nil
}

func (h *Handler) handleTurn(ctx context.Context, job Job) error {
	if job.Turn == nil {
		return permanent(errors.New("dispatch: turn job without payload"))
	}
	if h.history == nil {
		return nil
	}
	if err := h.history.RecordTurn(ctx, *job.Turn); err != nil {
		return fmt.Errorf("dispatch: record turn: %w", err)
	}
	return nil
}

func (h *Handler) config(ctx context.Context, businessID string) (*business.Config, error) {
	cfg, err := h.businesses.Get(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("dispatch: load business config: %w", err)
	}
	return cfg, nil
}

// publish failures are logged only; the record is already durable.
func (h *Handler) publish(ctx context.Context, subject, businessID, sessionID, eventID string, evt events.CanonicalEvent) {
	if err := events.Publish(ctx, h.publisher, subject, businessID, sessionID, eventUUID(eventID), evt); err != nil {
		h.logger.Warn("failed to publish event", "subject", subject, "business_id", businessID, "error", err)
	}
}

// eventUUID maps an event id onto a stable row id. Unparseable ids map to
// uuid.Nil, and support.Service assigns a fresh id for those, which gives up
// idempotency for that event only.
func eventUUID(id string) uuid.UUID {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil
	}
	return parsed
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return permanentError{err: err} }

// IsPermanent reports whether retrying the job cannot succeed.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// classify marks validation failures as permanent.
func classify(err error) error {
	switch {
	case errors.Is(err, leads.ErrMissingBusinessID),
		errors.Is(err, leads.ErrInvalidName),
		errors.Is(err, leads.ErrMissingContact),
		errors.Is(err, support.ErrMissingBusinessID):
		return permanent(err)
	}
	return err
}
