package conversation

import (
	"fmt"
	"strings"

	"github.com/wolfman30/sitelead-ai/internal/business"
)

const (
	replyRedirectTier1 = "I'm here to help with websites and online projects for your business. Is there something along those lines I can help you with?"
	replyRedirectTier2 = "I can only help with website design and development questions. If you have a project in mind, I'd love to hear about it."
	replyRedirectTier3 = "It looks like this chat isn't about a website project, so I'll leave it here. If you ever need a site built, just send a message and we'll pick it up."

	replyGeneric = "Tell me a bit more about your project. What kind of site do you need, and do you have a timeline in mind?"
	replyUrgent  = "We can move quickly on rush projects and can often start within a few days."

	replyReaskContact    = "Sorry, I didn't quite catch that. Could you share your name and the best phone number or email to reach you?"
	replyAskForName      = "Thanks, I've got your %s. And who am I speaking with?"
	replyAskForNameBoth  = "Thanks for your email and phone number! What name should I put them under?"
	replyAskForContact   = "Thanks, %s! What's the best phone number or email to reach you?"
	replyLeadThanks      = "Thank you, %s! I've passed your details to our team and someone will reach out shortly to talk through your project. Is there anything else you'd like us to know?"
	replyEscalateContact = "I can get one of our specialists on that for you. Could you share your name and the best phone number to reach you?"
	replyEscalateName    = "I can get one of our specialists on that for you. Who am I speaking with?"
	replyEscalatePhone   = "Thanks, %s. What's the best phone number for our specialist to reach you?"
	replyPreference      = "Thanks, %s. Would you like a specialist to call you right now, or would you prefer a callback later today?"
	replyPreferenceAgain = "Just to confirm, should a specialist call you right now, or would you prefer a callback later today?"
	replyImmediate       = "I'm alerting our team right now, %s. A specialist will call you at %s shortly."
	replyCallback        = "No problem, %s. I've scheduled a callback and a specialist will call you at %s within the next 4 hours."
)

// redirectReply picks the off-topic redirect tier: counts 1-2, 3, then 4+.
func redirectReply(count int) string {
	switch {
	case count >= 4:
		return replyRedirectTier3
	case count == 3:
		return replyRedirectTier2
	default:
		return replyRedirectTier1
	}
}

func pricingReply(cfg *business.Config) string {
	return fmt.Sprintf(
		"Our websites typically run %s for a one-page site, %s for a business site and %s for an e-commerce store. The final price depends on pages, features and integrations.",
		cfg.Tier("one_page").Range,
		cfg.Tier("business").Range,
		cfg.Tier("ecommerce").Range,
	)
}

// contactAsk asks only for the details that are still missing.
func contactAsk(info LeadInfo) string {
	hasContact := info.Email != "" || info.Phone != ""
	switch {
	case info.Name == "" && !hasContact:
		return "If you share your name and the best phone number or email, we can put together a tailored quote."
	case info.Name == "":
		return "Who am I speaking with, so we can put together a tailored quote?"
	case !hasContact:
		return fmt.Sprintf("What's the best phone number or email to reach you, %s?", info.Name)
	default:
		return ""
	}
}

func withContactAsk(reply string, info LeadInfo) string {
	if ask := contactAsk(info); ask != "" {
		return reply + " " + ask
	}
	return reply
}

// followUpReply picks one of the targeted follow-ups by which contact fields
// are present.
func followUpReply(info LeadInfo) string {
	hasEmail, hasPhone := info.Email != "", info.Phone != ""
	switch {
	case info.Name != "":
		return fmt.Sprintf(replyAskForContact, info.Name)
	case hasEmail && hasPhone:
		return replyAskForNameBoth
	case hasEmail:
		return fmt.Sprintf(replyAskForName, "email")
	case hasPhone:
		return fmt.Sprintf(replyAskForName, "number")
	default:
		return replyReaskContact
	}
}

func escalationContactReply(info LeadInfo) string {
	switch {
	case info.Name == "" && info.Phone == "":
		return replyEscalateContact
	case info.Name == "":
		return replyEscalateName
	default:
		return fmt.Sprintf(replyEscalatePhone, info.Name)
	}
}

func firstName(name string) string {
	if fields := strings.Fields(name); len(fields) > 0 {
		return fields[0]
	}
	return name
}
