package conversation

// Responder produces the deterministic reply used when no language model is
// configured or the model call fails.
type Responder struct{}

func NewResponder() *Responder {
	return &Responder{}
}

// Respond expects the off-topic counter to already reflect this turn.
func (r *Responder) Respond(turn Turn) string {
	s := turn.Session
	cls := turn.Classification

	if !cls.BusinessInquiry && s.ConsecutiveNonBusinessCount > 0 {
		return redirectReply(s.ConsecutiveNonBusinessCount)
	}
	if cls.Pricing {
		reply := pricingReply(turn.Business)
		if cls.ShouldCollectLead {
			reply = withContactAsk(reply, s.LeadInfo)
		}
		return reply
	}
	if cls.Urgency {
		reply := replyUrgent
		if cls.ShouldCollectLead {
			reply = withContactAsk(reply, s.LeadInfo)
		}
		return reply
	}
	return replyGeneric
}
