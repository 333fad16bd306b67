package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/sitelead-ai/internal/llm"
	"github.com/wolfman30/sitelead-ai/internal/observability/metrics"
	"github.com/wolfman30/sitelead-ai/pkg/logging"
)

var receptionistTracer = otel.Tracer("sitelead/conversation/receptionist")

const (
	sourceCanned   = "canned"
	sourceLLM      = "llm"
	sourceFallback = "fallback"

	defaultLLMTimeout = 8 * time.Second
)

// Receptionist is the only agent that produces customer-facing replies.
type Receptionist struct {
	extractor *Extractor
	keywords  *Keywords
	responder *Responder
	prompts   *PromptBuilder
	client    llm.Client
	timeout   time.Duration
	metrics   *metrics.ChatMetrics
	logger    *logging.Logger
}

type ReceptionistOption func(*Receptionist)

// WithLLM enables model-backed replies. A nil client keeps the receptionist on
// the deterministic responder. The model id is the client's own setting.
func WithLLM(client llm.Client, timeout time.Duration) ReceptionistOption {
	return func(r *Receptionist) {
		r.client = client
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

func WithPromptBuilder(p *PromptBuilder) ReceptionistOption {
	return func(r *Receptionist) {
		if p != nil {
			r.prompts = p
		}
	}
}

func WithReceptionistMetrics(m *metrics.ChatMetrics) ReceptionistOption {
	return func(r *Receptionist) {
		r.metrics = m
	}
}

func WithReceptionistLogger(logger *logging.Logger) ReceptionistOption {
	return func(r *Receptionist) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewReceptionist(keywords *Keywords, opts ...ReceptionistOption) *Receptionist {
	if keywords == nil {
		keywords = DefaultKeywords()
	}
	r := &Receptionist{
		extractor: NewExtractor(keywords),
		keywords:  keywords,
		responder: NewResponder(),
		prompts:   NewPromptBuilder(6, 300),
		timeout:   defaultLLMTimeout,
		logger:    logging.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Receptionist) Type() AgentType {
	return AgentReceptionist
}

// Handle applies one turn to turn.Session and returns the reply. It never
// returns an error for external failures; those degrade to canned replies.
func (r *Receptionist) Handle(ctx context.Context, turn Turn) (Outcome, error) {
	if turn.Session == nil || turn.Business == nil {
		return Outcome{}, errors.New("conversation: receptionist turn requires a session and business config")
	}
	s := turn.Session
	cls := turn.Classification

	if s.EscalationStep != EscalationNone {
		return r.continueEscalation(turn), nil
	}
	if cls.EscalationTrigger {
		return r.startEscalation(turn), nil
	}

	if s.HasMadeBusinessInquiry && !s.LeadCollected {
		if res := r.extractor.Extract(turn.Message); res.HasContact {
			s.MergeContact(res)
			s.ConsecutiveNonBusinessCount = 0
			if s.LeadInfo.Complete() {
				s.LeadCollected = true
				return r.canned(fmt.Sprintf(replyLeadThanks, firstName(s.LeadInfo.Name)), ActionLeadCaptured), nil
			}
			return r.canned(followUpReply(s.LeadInfo)), nil
		}
	}

	if !s.HasGreeted && cls.Greeting {
		s.HasGreeted = true
		return r.canned(turn.Business.GreetingText()), nil
	}

	if s.HasGreeted && !s.HasMadeBusinessInquiry && cls.BusinessInquiry {
		s.HasMadeBusinessInquiry = true
		s.LeadInfo.Inquiry = strings.TrimSpace(turn.Message)
	}

	if cls.BusinessInquiry {
		s.ConsecutiveNonBusinessCount = 0
	} else {
		s.ConsecutiveNonBusinessCount++
	}
	if cls.Urgency && s.LeadCollected && s.Urgency == UrgencyUnknown {
		s.Urgency = UrgencyUrgent
	}

	if r.client != nil {
		text, err := r.complete(ctx, turn)
		if err == nil {
			return Outcome{Agent: AgentReceptionist, Message: text, Source: sourceLLM}, nil
		}
		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		r.metrics.IncLLMFallback(reason)
		r.logger.Warn("llm reply failed, using fallback responder",
			"session_id", s.ID,
			"reason", reason,
			"error", err,
		)
		return Outcome{Agent: AgentReceptionist, Message: r.responder.Respond(turn), Source: sourceFallback}, nil
	}

	return r.canned(r.responder.Respond(turn)), nil
}

func (r *Receptionist) complete(ctx context.Context, turn Turn) (string, error) {
	ctx, span := receptionistTracer.Start(ctx, "receptionist.llm")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req := r.prompts.Build(turn)

	start := time.Now()
	resp, err := r.client.Complete(ctx, req)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		r.metrics.ObserveLLM("error", elapsed)
		span.RecordError(err)
		return "", err
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		r.metrics.ObserveLLM("empty", elapsed)
		return "", llm.ErrEmptyCompletion
	}
	r.metrics.ObserveLLM("ok", elapsed)
	span.SetAttributes(
		attribute.Int("llm.input_tokens", int(resp.Usage.InputTokens)),
		attribute.Int("llm.output_tokens", int(resp.Usage.OutputTokens)),
	)
	return text, nil
}

func (r *Receptionist) startEscalation(turn Turn) Outcome {
	s := turn.Session
	s.HasMadeBusinessInquiry = true
	if s.LeadInfo.Inquiry == "" {
		s.LeadInfo.Inquiry = strings.TrimSpace(turn.Message)
	}
	s.EscalationPending = true
	s.EscalationReason = strings.TrimSpace(turn.Message)
	s.ConsecutiveNonBusinessCount = 0

	if hasEscalationContact(s.LeadInfo) {
		s.EscalationStep = EscalationAwaitingPreference
		return r.canned(fmt.Sprintf(replyPreference, firstName(s.LeadInfo.Name)))
	}
	s.EscalationStep = EscalationAwaitingContact
	return r.canned(escalationContactReply(s.LeadInfo))
}

func (r *Receptionist) continueEscalation(turn Turn) Outcome {
	s := turn.Session

	if s.EscalationStep == EscalationAwaitingContact {
		s.MergeContact(r.extractor.Extract(turn.Message))
		var actions []Action
		if !s.LeadCollected && s.LeadInfo.Complete() {
			s.LeadCollected = true
			actions = append(actions, ActionLeadCaptured)
		}
		if !hasEscalationContact(s.LeadInfo) {
			return r.canned(escalationContactReply(s.LeadInfo), actions...)
		}
		s.EscalationStep = EscalationAwaitingPreference
		return r.canned(fmt.Sprintf(replyPreference, firstName(s.LeadInfo.Name)), actions...)
	}

	name := firstName(s.LeadInfo.Name)
	switch {
	case r.keywords.Deferral.Match(turn.Message):
		s.Urgency = UrgencyCallback
		s.EscalationStep = EscalationNone
		s.EscalationPending = false
		return r.canned(fmt.Sprintf(replyCallback, name, s.LeadInfo.Phone), ActionScheduleCallback)
	case r.keywords.Immediacy.Match(turn.Message):
		s.Urgency = UrgencyImmediate
		s.EscalationStep = EscalationNone
		s.EscalationPending = false
		return r.canned(fmt.Sprintf(replyImmediate, name, s.LeadInfo.Phone), ActionImmediateEscalation)
	default:
		return r.canned(replyPreferenceAgain)
	}
}

// hasEscalationContact reports whether a specialist can phone the customer.
func hasEscalationContact(info LeadInfo) bool {
	return info.Name != "" && info.Phone != ""
}

func (r *Receptionist) canned(message string, actions ...Action) Outcome {
	return Outcome{Agent: AgentReceptionist, Message: message, Actions: actions, Source: sourceCanned}
}
