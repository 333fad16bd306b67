package conversation

import "strings"

// RoutingFlags are hints attached to the receptionist turn for the
// notification and reporting paths.
type RoutingFlags struct {
	RequiresEscalation  bool `json:"requires_escalation"`
	RequiresContactInfo bool `json:"requires_contact_info"`
	FlagForSales        bool `json:"flag_for_sales"`
}

// Routing is the coordinator's decision for one message.
type Routing struct {
	Agent     AgentType    `json:"agent"`
	Reasoning string       `json:"reasoning"`
	Flags     RoutingFlags `json:"flags"`
}

// Coordinator decides which agent answers a message. The receptionist always
// produces the reply; the flags tell the engine whether the sales agent should
// annotate the turn.
type Coordinator struct{}

func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

func (c *Coordinator) Route(session *Session, cls Classification) Routing {
	flags := RoutingFlags{
		RequiresEscalation:  cls.Intent == IntentEscalation || session.EscalationStep != EscalationNone,
		RequiresContactInfo: !session.LeadCollected && (session.HasMadeBusinessInquiry || cls.ShouldCollectLead),
		FlagForSales:        cls.Pricing || cls.Urgency || (cls.BusinessInquiry && session.HasMadeBusinessInquiry),
	}

	reasons := []string{"intent=" + string(cls.Intent)}
	if flags.RequiresEscalation {
		reasons = append(reasons, "escalation in progress or requested")
	}
	if flags.RequiresContactInfo {
		reasons = append(reasons, "contact details missing")
	}
	if flags.FlagForSales {
		reasons = append(reasons, "sales signal present")
	}

	return Routing{
		Agent:     AgentReceptionist,
		Reasoning: strings.Join(reasons, "; "),
		Flags:     flags,
	}
}
