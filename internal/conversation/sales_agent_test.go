package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSalesAgent_Analyze(t *testing.T) {
	agent := NewSalesAgent(nil)

	tests := []struct {
		name       string
		message    string
		wantScore  int
		wantEngage bool
	}{
		{"baseline", "tell me more", 50, false},
		{"clamped high", "I own a bakery and need an online store with checkout, budget is $5,000, need it asap", 100, true},
		{"simple penalty", "just a simple site", 45, false},
		{"money pattern counts as budget", "we have about $3000", 70, false},
		{"budget and urgency engage", "our budget is flexible and we need it asap", 85, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := agent.Analyze(tt.message, nil)
			assert.Equal(t, tt.wantScore, got.QualificationScore)
			assert.Equal(t, tt.wantEngage, got.ShouldEngage)
		})
	}
}

func TestSalesAgent_SignalsAndUpsells(t *testing.T) {
	agent := NewSalesAgent(nil)

	got := agent.Analyze("we sell products and want an online store, currently on Wix", nil)
	assert.Contains(t, got.BuyingSignals, "ecommerce")
	assert.Equal(t, []string{"payment integration", "inventory management"}, got.UpsellOpportunities)
	assert.Equal(t, []string{"wix"}, got.CompetitorMentions)
	assert.Contains(t, got.Recommendations, "prepare a comparison against wix")

	got = agent.Analyze("just a simple site", nil)
	assert.Equal(t, []string{"seo package", "maintenance plan"}, got.UpsellOpportunities)
	assert.Contains(t, got.Recommendations, "offer the one-page starter package")
}

func TestSalesAgent_HandleNeverReplies(t *testing.T) {
	agent := NewSalesAgent(nil)
	out, err := agent.Handle(context.Background(), Turn{Message: "budget is $10k", Session: &Session{}})
	require.NoError(t, err)
	assert.Empty(t, out.Message)
	assert.Equal(t, AgentSales, out.Agent)
	require.NotNil(t, out.Analysis)
	assert.Equal(t, 70, out.Analysis.QualificationScore)
}
