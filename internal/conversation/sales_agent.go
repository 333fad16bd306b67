package conversation

import (
	"context"
	"regexp"
)

const (
	salesBaseScore      = 50
	salesEngageAbove    = 70
	weightBudget        = 20
	weightUrgency       = 15
	weightAuthority     = 15
	weightRequirements  = 10
	weightEcommerce     = 10
	weightSimplePenalty = -5
)

var moneyPattern = regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d+)?\s?[kK]?`)

// SalesAnalysis is internal reporting metadata; it is never shown to the
// customer.
type SalesAnalysis struct {
	QualificationScore  int      `json:"qualification_score"`
	BuyingSignals       []string `json:"buying_signals"`
	UpsellOpportunities []string `json:"upsell_opportunities"`
	CompetitorMentions  []string `json:"competitor_mentions"`
	ShouldEngage        bool     `json:"should_engage"`
	Recommendations     []string `json:"recommendations"`
}

// SalesAgent scores a message for lead qualification.
type SalesAgent struct {
	keywords *Keywords
}

func NewSalesAgent(keywords *Keywords) *SalesAgent {
	if keywords == nil {
		keywords = DefaultKeywords()
	}
	return &SalesAgent{keywords: keywords}
}

func (a *SalesAgent) Type() AgentType {
	return AgentSales
}

// Handle annotates the turn; the outcome message is always empty.
func (a *SalesAgent) Handle(ctx context.Context, turn Turn) (Outcome, error) {
	analysis := a.Analyze(turn.Message, turn.Session)
	return Outcome{Agent: AgentSales, Analysis: &analysis}, nil
}

// Analyze applies fixed weights per keyword category, each counted once, and
// clamps the result to [0, 100].
func (a *SalesAgent) Analyze(message string, session *Session) SalesAnalysis {
	k := a.keywords
	score := salesBaseScore
	analysis := SalesAnalysis{
		BuyingSignals:       []string{},
		UpsellOpportunities: []string{},
		CompetitorMentions:  []string{},
		Recommendations:     []string{},
	}

	if k.SalesBudget.Match(message) || moneyPattern.MatchString(message) {
		score += weightBudget
		analysis.BuyingSignals = append(analysis.BuyingSignals, "budget")
	}
	if k.SalesUrgency.Match(message) {
		score += weightUrgency
		analysis.BuyingSignals = append(analysis.BuyingSignals, "urgency")
	}
	if k.SalesAuthority.Match(message) {
		score += weightAuthority
		analysis.BuyingSignals = append(analysis.BuyingSignals, "authority")
	}
	if k.SalesRequirements.Match(message) {
		score += weightRequirements
		analysis.BuyingSignals = append(analysis.BuyingSignals, "requirements")
	}
	ecommerce := k.SalesEcommerce.Match(message)
	if ecommerce {
		score += weightEcommerce
		analysis.BuyingSignals = append(analysis.BuyingSignals, "ecommerce")
		analysis.UpsellOpportunities = append(analysis.UpsellOpportunities, "payment integration", "inventory management")
	} else if k.Business.Match(message) {
		analysis.UpsellOpportunities = append(analysis.UpsellOpportunities, "seo package", "maintenance plan")
	}
	simple := k.SalesSimple.Match(message)
	if simple {
		score += weightSimplePenalty
	}

	analysis.CompetitorMentions = append(analysis.CompetitorMentions, k.Competitors.Found(message)...)

	score = max(0, min(100, score))
	analysis.QualificationScore = score
	analysis.ShouldEngage = score > salesEngageAbove

	if analysis.ShouldEngage {
		analysis.Recommendations = append(analysis.Recommendations, "follow up within one business hour")
	}
	for _, competitor := range analysis.CompetitorMentions {
		analysis.Recommendations = append(analysis.Recommendations, "prepare a comparison against "+competitor)
	}
	if simple {
		analysis.Recommendations = append(analysis.Recommendations, "offer the one-page starter package")
	}
	if session != nil && session.LeadCollected && analysis.ShouldEngage {
		analysis.Recommendations = append(analysis.Recommendations, "contact details on file; call the lead directly")
	}
	return analysis
}
