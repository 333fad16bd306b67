package business

import (
	"fmt"
	"strings"
)

// PriceTier is one row of the quoted price table.
type PriceTier struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Range string `json:"range"`
}

// NotificationPrefs controls who hears about leads and escalations.
type NotificationPrefs struct {
	EmailEnabled    bool     `json:"email_enabled"`
	EmailRecipients []string `json:"email_recipients,omitempty"`

	SMSEnabled    bool     `json:"sms_enabled"`
	SMSRecipients []string `json:"sms_recipients,omitempty"`

	SlackEnabled bool   `json:"slack_enabled"`
	SlackChannel string `json:"slack_channel,omitempty"`

	NotifyOnNewLead    bool `json:"notify_on_new_lead"`
	NotifyOnEscalation bool `json:"notify_on_escalation"`
	DailyDigest        bool `json:"daily_digest"`
}

// Recipients returns the configured SMS numbers with blanks and duplicates removed.
func (n NotificationPrefs) Recipients() []string {
	return dedupe(n.SMSRecipients)
}

// Emails returns the configured email recipients with blanks and duplicates removed.
func (n NotificationPrefs) Emails() []string {
	return dedupe(n.EmailRecipients)
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Config is the per-tenant configuration of the agency running the chat.
type Config struct {
	BusinessID    string            `json:"business_id"`
	Name          string            `json:"name"`
	Greeting      string            `json:"greeting,omitempty"`
	ContactPhone  string            `json:"contact_phone,omitempty"`
	PriceTiers    []PriceTier       `json:"price_tiers"`
	Notifications NotificationPrefs `json:"notifications"`
	Timezone      string            `json:"timezone"`
}

// DefaultGreeting is sent on the first greeting of a fresh session.
const DefaultGreeting = "Hi there! Thanks for reaching out. We design and build websites for small businesses. What kind of project do you have in mind?"

// DefaultPriceTiers is the standard three-tier table.
func DefaultPriceTiers() []PriceTier {
	return []PriceTier{
		{Key: "one_page", Label: "One-page site", Range: "$500 - $1,500"},
		{Key: "business", Label: "Business site", Range: "$2,500 - $5,000"},
		{Key: "ecommerce", Label: "E-commerce store", Range: "$5,000 - $15,000"},
	}
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig(businessID string) *Config {
	return &Config{
		BusinessID: businessID,
		Name:       "our studio",
		Greeting:   DefaultGreeting,
		PriceTiers: DefaultPriceTiers(),
		Timezone:   "America/New_York",
		Notifications: NotificationPrefs{
			NotifyOnNewLead:    true,
			NotifyOnEscalation: true,
		},
	}
}

// GreetingText falls back to the default greeting when none is configured.
func (c *Config) GreetingText() string {
	if c == nil || strings.TrimSpace(c.Greeting) == "" {
		return DefaultGreeting
	}
	return c.Greeting
}

// Tier looks up a price tier by key, falling back to the defaults.
func (c *Config) Tier(key string) PriceTier {
	tiers := DefaultPriceTiers()
	if c != nil && len(c.PriceTiers) > 0 {
		tiers = c.PriceTiers
	}
	for _, tier := range tiers {
		if tier.Key == key {
			return tier
		}
	}
	return tiers[0]
}

// PriceTable renders the tiers as one line each for prompts and canned replies.
func (c *Config) PriceTable() string {
	tiers := DefaultPriceTiers()
	if c != nil && len(c.PriceTiers) > 0 {
		tiers = c.PriceTiers
	}
	lines := make([]string, 0, len(tiers))
	for _, tier := range tiers {
		lines = append(lines, fmt.Sprintf("- %s (%s): %s", tier.Label, tier.Key, tier.Range))
	}
	return strings.Join(lines, "\n")
}
