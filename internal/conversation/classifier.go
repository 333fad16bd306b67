package conversation

// Intent is the category the receptionist acts on for a turn.
type Intent string

const (
	IntentEscalation        Intent = "escalation_required"
	IntentContactCollection Intent = "contact_collection"
	IntentGreeting          Intent = "greeting"
	IntentPricing           Intent = "pricing"
	IntentUrgency           Intent = "urgency"
	IntentBusinessInquiry   Intent = "business_inquiry"
	IntentGeneral           Intent = "general"
)

// Classification carries the acted-on intent plus every raw keyword signal,
// since one message can match several lists.
type Classification struct {
	Intent            Intent `json:"intent"`
	Greeting          bool   `json:"greeting"`
	BusinessInquiry   bool   `json:"business_inquiry"`
	Pricing           bool   `json:"pricing"`
	Urgency           bool   `json:"urgency"`
	EscalationTrigger bool   `json:"escalation_trigger"`
	// ShouldCollectLead is set when the turn should also ask for contact details.
	ShouldCollectLead bool `json:"should_collect_lead"`
}

// Classifier maps text and session state to an intent.
type Classifier struct {
	keywords *Keywords
}

func NewClassifier(keywords *Keywords) *Classifier {
	if keywords == nil {
		keywords = DefaultKeywords()
	}
	return &Classifier{keywords: keywords}
}

// Classify applies the priority escalation > contact collection > greeting
// (only before the first greeting) > pricing > urgency > business inquiry >
// general. A nil session is treated as a fresh one.
func (c *Classifier) Classify(text string, session *Session) Classification {
	if session == nil {
		session = &Session{}
	}
	k := c.keywords
	cls := Classification{
		Greeting:          k.Greeting.Match(text),
		BusinessInquiry:   k.Business.Match(text),
		Pricing:           k.Pricing.Match(text),
		Urgency:           k.Urgency.Match(text),
		EscalationTrigger: k.Escalation.Match(text),
	}
	cls.ShouldCollectLead = (cls.Pricing || cls.Urgency) && !session.LeadCollected

	switch {
	case cls.EscalationTrigger:
		cls.Intent = IntentEscalation
	case session.HasMadeBusinessInquiry && !session.LeadCollected:
		cls.Intent = IntentContactCollection
	case cls.Greeting && !session.HasGreeted:
		cls.Intent = IntentGreeting
	case cls.Pricing:
		cls.Intent = IntentPricing
	case cls.Urgency:
		cls.Intent = IntentUrgency
	case cls.BusinessInquiry:
		cls.Intent = IntentBusinessInquiry
	default:
		cls.Intent = IntentGeneral
	}
	return cls
}
