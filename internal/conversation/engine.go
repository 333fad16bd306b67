package conversation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/sitelead-ai/internal/business"
	"github.com/wolfman30/sitelead-ai/internal/observability/metrics"
	"github.com/wolfman30/sitelead-ai/pkg/logging"
)

var engineTracer = otel.Tracer("sitelead/conversation/engine")

const (
	maxSaveAttempts      = 3
	defaultEffectTimeout = 5 * time.Second
)

// Request is one inbound chat message.
type Request struct {
	SessionID  string `json:"sessionId,omitempty"`
	BusinessID string `json:"businessId,omitempty"`
	Message    string `json:"message"`
}

// Reply is what the customer sees plus routing metadata.
type Reply struct {
	SessionID string    `json:"sessionId"`
	Message   string    `json:"message"`
	AgentType AgentType `json:"agentType"`
	Intent    Intent    `json:"intent,omitempty"`
	Stage     Stage     `json:"stage,omitempty"`
}

// Service is the engine surface used by the HTTP, websocket and CLI transports.
type Service interface {
	HandleMessage(ctx context.Context, req Request) (*Reply, error)
	Session(ctx context.Context, sessionID string) (*Session, error)
}

// Engine runs one turn per message: load the session, classify, route, let
// the receptionist reply, save with optimistic retries, then hand side effects
// to the sink.
type Engine struct {
	sessions     SessionStore
	businesses   business.Provider
	classifier   *Classifier
	coordinator  *Coordinator
	receptionist Agent
	sales        *SalesAgent
	effects      EffectSink
	locks        *keyedMutex

	// effectTimeout bounds handing side effects to the sink. Effects run
	// detached from the caller's cancellation because the session is already
	// saved when they fire.
	effectTimeout time.Duration

	defaultBusinessID string
	now               func() time.Time
	metrics           *metrics.ChatMetrics
	logger            *logging.Logger
}

type EngineOption func(*Engine)

func WithKeywords(k *Keywords) EngineOption {
	return func(e *Engine) {
		if k != nil {
			e.classifier = NewClassifier(k)
			e.sales = NewSalesAgent(k)
		}
	}
}

func WithEffects(sink EffectSink) EngineOption {
	return func(e *Engine) {
		if sink != nil {
			e.effects = sink
		}
	}
}

func WithEffectTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.effectTimeout = d
		}
	}
}

func WithDefaultBusinessID(id string) EngineOption {
	return func(e *Engine) {
		if strings.TrimSpace(id) != "" {
			e.defaultBusinessID = strings.TrimSpace(id)
		}
	}
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithEngineMetrics(m *metrics.ChatMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithEngineLogger(logger *logging.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewEngine(sessions SessionStore, businesses business.Provider, receptionist Agent, opts ...EngineOption) *Engine {
	if sessions == nil {
		panic("conversation: session store cannot be nil")
	}
	if receptionist == nil {
		panic("conversation: receptionist agent cannot be nil")
	}
	if businesses == nil {
		businesses = business.StaticProvider{}
	}
	e := &Engine{
		sessions:          sessions,
		businesses:        businesses,
		classifier:        NewClassifier(nil),
		coordinator:       NewCoordinator(),
		receptionist:      receptionist,
		sales:             NewSalesAgent(nil),
		effects:           NoopEffects{},
		locks:             newKeyedMutex(),
		effectTimeout:     defaultEffectTimeout,
		defaultBusinessID: "default",
		now:               func() time.Time { return time.Now().UTC() },
		logger:            logging.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type turnResult struct {
	outcome  Outcome
	cls      Classification
	routing  Routing
	analysis *SalesAnalysis
	session  *Session
	at       time.Time
}

// HandleMessage processes one customer message. Callers only see
// ErrEmptyMessage and ErrSessionBusinessMismatch; store and model failures
// degrade to a reply.
func (e *Engine) HandleMessage(ctx context.Context, req Request) (*Reply, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	businessID := strings.TrimSpace(req.BusinessID)
	if businessID == "" {
		businessID = e.defaultBusinessID
	}

	ctx, span := engineTracer.Start(ctx, "conversation.turn")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("business.id", businessID),
	)

	unlock := e.locks.Lock(sessionID)
	defer unlock()

	start := time.Now()
	var result turnResult
	for attempt := 1; ; attempt++ {
		session, transient, err := e.load(ctx, businessID, sessionID)
		if err != nil {
			return nil, err
		}

		result, err = e.runTurn(ctx, session, message)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("conversation: run turn: %w", err)
		}
		if transient {
			break
		}

		err = e.sessions.Save(ctx, session)
		if err == nil {
			break
		}
		if errors.Is(err, ErrVersionConflict) && attempt < maxSaveAttempts {
			e.metrics.IncSessionConflict()
			e.logger.Debug("session version conflict, retrying turn", "session_id", sessionID, "attempt", attempt)
			continue
		}
		e.logger.Error("failed to save session", "session_id", sessionID, "attempt", attempt, "error", err)
		break
	}

	effectCtx, cancelEffects := context.WithTimeout(context.WithoutCancel(ctx), e.effectTimeout)
	e.emit(effectCtx, result)
	cancelEffects()

	stage := result.session.Stage()
	e.metrics.ObserveTurn(string(result.cls.Intent), string(stage), time.Since(start).Seconds())
	span.SetAttributes(
		attribute.String("turn.intent", string(result.cls.Intent)),
		attribute.String("turn.stage", string(stage)),
		attribute.String("turn.source", result.outcome.Source),
	)

	return &Reply{
		SessionID: sessionID,
		Message:   result.outcome.Message,
		AgentType: result.outcome.Agent,
		Intent:    result.cls.Intent,
		Stage:     stage,
	}, nil
}

// Session returns a snapshot of a stored session.
func (e *Engine) Session(ctx context.Context, sessionID string) (*Session, error) {
	return e.sessions.Get(ctx, sessionID)
}

// load falls back to an unsaved session when the store is unavailable so the
// customer still gets a reply. A session owned by another business is refused.
func (e *Engine) load(ctx context.Context, businessID, sessionID string) (*Session, bool, error) {
	session, err := e.sessions.GetOrCreate(ctx, businessID, sessionID)
	if err == nil {
		return session, false, nil
	}
	if errors.Is(err, ErrSessionBusinessMismatch) {
		e.logger.Warn("session id reused across businesses", "session_id", sessionID, "business_id", businessID)
		return nil, false, ErrSessionBusinessMismatch
	}
	e.logger.Error("session store unavailable, using transient session",
		"session_id", sessionID,
		"business_id", businessID,
		"error", err,
	)
	return NewSession(businessID, sessionID), true, nil
}

func (e *Engine) businessConfig(ctx context.Context, businessID string) *business.Config {
	cfg, err := e.businesses.Get(ctx, businessID)
	if err != nil || cfg == nil {
		if err != nil {
			e.logger.Warn("business config unavailable, using defaults", "business_id", businessID, "error", err)
		}
		return business.DefaultConfig(businessID)
	}
	return cfg
}

func (e *Engine) runTurn(ctx context.Context, session *Session, message string) (turnResult, error) {
	now := e.now()
	cls := e.classifier.Classify(message, session)
	routing := e.coordinator.Route(session, cls)
	turn := Turn{
		Message:        message,
		Session:        session,
		Business:       e.businessConfig(ctx, session.BusinessID),
		Classification: cls,
		Routing:        routing,
		Now:            now,
	}

	outcome, err := e.receptionist.Handle(ctx, turn)
	if err != nil {
		return turnResult{}, err
	}

	var analysis *SalesAnalysis
	if routing.Flags.FlagForSales {
		salesOutcome, err := e.sales.Handle(ctx, turn)
		if err != nil {
			e.logger.Warn("sales analysis failed", "session_id", session.ID, "error", err)
		} else {
			analysis = salesOutcome.Analysis
			if salesOutcome.Message != "" {
				e.logger.Warn("dropping non-receptionist reply", "session_id", session.ID, "agent", salesOutcome.Agent)
			}
		}
	}
	if analysis != nil {
		session.LeadScore = max(session.LeadScore, analysis.QualificationScore)
	}
	if slices.Contains(outcome.Actions, ActionLeadCaptured) && session.LeadScore == 0 {
		a := e.sales.Analyze(session.LeadInfo.Inquiry, session)
		session.LeadScore = a.QualificationScore
		if analysis == nil {
			analysis = &a
		}
	}

	session.Append(RoleCustomer, message, now)
	session.Append(RoleAgent, outcome.Message, now)

	return turnResult{
		outcome:  outcome,
		cls:      cls,
		routing:  routing,
		analysis: analysis,
		session:  session.Clone(),
		at:       now,
	}, nil
}

func (e *Engine) emit(ctx context.Context, res turnResult) {
	s := res.session
	for _, action := range res.outcome.Actions {
		var err error
		switch action {
		case ActionLeadCaptured:
			err = e.effects.LeadCaptured(ctx, LeadCapturedEvent{
				EventID:    uuid.NewString(),
				BusinessID: s.BusinessID,
				SessionID:  s.ID,
				Lead:       s.LeadInfo,
				Score:      s.LeadScore,
				Analysis:   res.analysis,
				Source:     "chat",
				CapturedAt: res.at,
			})
		case ActionImmediateEscalation:
			err = e.effects.EscalationRequested(ctx, EscalationEvent{
				EventID:         uuid.NewString(),
				BusinessID:      s.BusinessID,
				SessionID:       s.ID,
				Reason:          s.EscalationReason,
				Priority:        PriorityHigh,
				Urgency:         s.Urgency,
				Customer:        s.LeadInfo,
				OriginalMessage: s.EscalationReason,
				Summary:         escalationSummary(s),
				CreatedAt:       res.at,
			})
		case ActionScheduleCallback:
			err = e.effects.CallbackRequested(ctx, CallbackEvent{
				EventID:    uuid.NewString(),
				BusinessID: s.BusinessID,
				SessionID:  s.ID,
				Reason:     s.EscalationReason,
				Customer:   s.LeadInfo,
				Summary:    escalationSummary(s),
				DueAt:      res.at.Add(CallbackDelay),
				CreatedAt:  res.at,
			})
		}
		if err != nil {
			e.logger.Error("failed to dispatch turn effect", "session_id", s.ID, "action", action, "error", err)
		}
	}

	if err := e.effects.TurnRecorded(ctx, TurnRecord{
		BusinessID:      s.BusinessID,
		SessionID:       s.ID,
		CustomerMessage: lastContent(s, RoleCustomer),
		AgentMessage:    res.outcome.Message,
		Agent:           res.outcome.Agent,
		Intent:          res.cls.Intent,
		Stage:           s.Stage(),
		At:              res.at,
	}); err != nil {
		e.logger.Warn("failed to record turn", "session_id", s.ID, "error", err)
	}
}

func lastContent(s *Session, role Role) string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == role {
			return s.Messages[i].Content
		}
	}
	return ""
}
