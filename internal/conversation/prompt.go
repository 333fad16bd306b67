package conversation

import (
	"fmt"
	"strings"

	"github.com/wolfman30/sitelead-ai/internal/llm"
)

// PromptBuilder turns a turn into a provider-neutral completion request.
type PromptBuilder struct {
	historyMessages int
	maxTokens       int32
	temperature     float32
}

func NewPromptBuilder(historyMessages int, maxTokens int32) *PromptBuilder {
	if historyMessages < 0 {
		historyMessages = 0
	}
	if maxTokens <= 0 {
		maxTokens = 300
	}
	return &PromptBuilder{historyMessages: historyMessages, maxTokens: maxTokens, temperature: 0.4}
}

func (p *PromptBuilder) Build(turn Turn) llm.Request {
	return llm.Request{
		System:      []string{p.system(turn)},
		Messages:    p.messages(turn),
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	}
}

func (p *PromptBuilder) system(turn Turn) string {
	s := turn.Session
	var b strings.Builder
	fmt.Fprintf(&b, "You are the receptionist for %s, a web design and development agency.\n", turn.Business.Name)
	b.WriteString("Rules:\n")
	b.WriteString("- Keep answers short: two or three sentences.\n")
	b.WriteString("- Never invent names, phone numbers, email addresses or other contact details.\n")
	b.WriteString("- Only quote prices from this table:\n")
	b.WriteString(turn.Business.PriceTable())
	b.WriteString("\n")

	switch {
	case s.LeadCollected:
		fmt.Fprintf(&b, "- The customer's contact details are already on file (name: %s). Do not ask for them again.\n", s.LeadInfo.Name)
	case s.LeadInfo.Name != "" || s.LeadInfo.Email != "" || s.LeadInfo.Phone != "":
		fmt.Fprintf(&b, "- Known so far: %s. Ask only for what is missing.\n", knownFields(s.LeadInfo))
	default:
		b.WriteString("- You do not know the customer's name or contact details yet. Only ask for them when it fits naturally.\n")
	}
	if turn.Classification.ShouldCollectLead && !s.LeadCollected {
		b.WriteString("- The customer is asking about pricing or timing. End your reply by asking for their name and the best phone number or email to reach them.\n")
	}

	fmt.Fprintf(&b, "Conversation state: stage=%s, greeted=%t, business_inquiry=%t.", s.Stage(), s.HasGreeted, s.HasMadeBusinessInquiry)
	if s.LeadInfo.Inquiry != "" {
		fmt.Fprintf(&b, " Original inquiry: %q.", s.LeadInfo.Inquiry)
	}
	return b.String()
}

func knownFields(info LeadInfo) string {
	var parts []string
	if info.Name != "" {
		parts = append(parts, "name="+info.Name)
	}
	if info.Email != "" {
		parts = append(parts, "email="+info.Email)
	}
	if info.Phone != "" {
		parts = append(parts, "phone="+info.Phone)
	}
	return strings.Join(parts, ", ")
}

// messages maps recent history onto user/assistant roles. Providers expect the
// first message to come from the user, so leading agent lines are dropped.
func (p *PromptBuilder) messages(turn Turn) []llm.Message {
	history := turn.Session.Recent(p.historyMessages)
	out := make([]llm.Message, 0, len(history)+1)
	for _, msg := range history {
		role := llm.RoleUser
		if msg.Role == RoleAgent {
			role = llm.RoleAssistant
		}
		if len(out) == 0 && role == llm.RoleAssistant {
			continue
		}
		out = append(out, llm.Message{Role: role, Content: msg.Content})
	}
	return append(out, llm.Message{Role: llm.RoleUser, Content: turn.Message})
}
