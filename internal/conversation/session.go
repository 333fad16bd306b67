package conversation

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies who wrote a session message.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
)

// Message is one entry of the append-only session transcript.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// LeadInfo accumulates contact details across turns. Fields are set once and
// never overwritten by later extractions.
type LeadInfo struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Inquiry string `json:"inquiry,omitempty"`
}

// Complete reports whether a name and at least one contact channel are known.
func (l LeadInfo) Complete() bool {
	return l.Name != "" && (l.Email != "" || l.Phone != "")
}

// Merge copies non-empty fields from other into l where l has no value yet.
// It returns the names of the fields that were filled.
func (l *LeadInfo) Merge(other LeadInfo) []string {
	var filled []string
	if l.Name == "" && other.Name != "" {
		l.Name = other.Name
		filled = append(filled, "name")
	}
	if l.Email == "" && other.Email != "" {
		l.Email = other.Email
		filled = append(filled, "email")
	}
	if l.Phone == "" && other.Phone != "" {
		l.Phone = other.Phone
		filled = append(filled, "phone")
	}
	if l.Inquiry == "" && other.Inquiry != "" {
		l.Inquiry = other.Inquiry
		filled = append(filled, "inquiry")
	}
	return filled
}

// EscalationStep tracks the escalation sub-flow between turns.
type EscalationStep string

const (
	EscalationNone               EscalationStep = ""
	EscalationAwaitingContact    EscalationStep = "awaiting_contact"
	EscalationAwaitingPreference EscalationStep = "awaiting_preference"
)

// Urgency records how the customer wants a human follow-up.
type Urgency string

const (
	UrgencyUnknown   Urgency = ""
	UrgencyUrgent    Urgency = "urgent"
	UrgencyImmediate Urgency = "immediate"
	UrgencyCallback  Urgency = "callback"
)

// Stage is the receptionist state derived from session flags.
type Stage string

const (
	StageNew                 Stage = "NEW"
	StageGreeted             Stage = "GREETED"
	StageBusinessInquiryMade Stage = "BUSINESS_INQUIRY_MADE"
	StageCollectingContact   Stage = "COLLECTING_CONTACT"
	StageContactComplete     Stage = "CONTACT_COMPLETE"
	StageUrgencyAssessed     Stage = "URGENCY_ASSESSED"
)

// Session is the server-side state of one conversation.
type Session struct {
	ID         string `json:"id"`
	BusinessID string `json:"business_id"`

	HasGreeted                  bool `json:"has_greeted"`
	HasMadeBusinessInquiry      bool `json:"has_made_business_inquiry"`
	LeadCollected               bool `json:"lead_collected"`
	ConsecutiveNonBusinessCount int  `json:"consecutive_non_business_count"`

	EscalationPending bool           `json:"escalation_pending"`
	EscalationStep    EscalationStep `json:"escalation_step,omitempty"`
	EscalationReason  string         `json:"escalation_reason,omitempty"`
	Urgency           Urgency        `json:"urgency,omitempty"`

	LeadInfo  LeadInfo  `json:"lead_info"`
	LeadScore int       `json:"lead_score"`
	Messages  []Message `json:"messages"`

	// NameConfidence is how sure the extractor was about LeadInfo.Name.
	NameConfidence float64 `json:"name_confidence,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession returns a fresh session in the NEW stage.
func NewSession(businessID, id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:         id,
		BusinessID: businessID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Stage derives the receptionist stage from the session flags.
func (s *Session) Stage() Stage {
	switch {
	case s.Urgency != UrgencyUnknown:
		return StageUrgencyAssessed
	case s.LeadCollected:
		return StageContactComplete
	case s.HasMadeBusinessInquiry && (s.LeadInfo.Name != "" || s.LeadInfo.Email != "" || s.LeadInfo.Phone != ""):
		return StageCollectingContact
	case s.HasMadeBusinessInquiry:
		return StageBusinessInquiryMade
	case s.HasGreeted:
		return StageGreeted
	default:
		return StageNew
	}
}

// MissingContact names the lead fields still needed, in asking order.
func (s *Session) MissingContact() []string {
	var missing []string
	if s.LeadInfo.Name == "" {
		missing = append(missing, "name")
	}
	if s.LeadInfo.Email == "" && s.LeadInfo.Phone == "" {
		missing = append(missing, "phone", "email")
	}
	return missing
}

// Append adds a transcript entry.
func (s *Session) Append(role Role, content string, at time.Time) {
	if strings.TrimSpace(content) == "" {
		return
	}
	s.Messages = append(s.Messages, Message{Role: role, Content: content, Timestamp: at})
}

// Recent returns up to n of the most recent transcript entries.
func (s *Session) Recent(n int) []Message {
	if n <= 0 || len(s.Messages) == 0 {
		return nil
	}
	if len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}

// ownedBy returns s when it was created for businessID.
func ownedBy(s *Session, businessID string) (*Session, error) {
	if s.BusinessID != businessID {
		return nil, fmt.Errorf("%w: session %s", ErrSessionBusinessMismatch, s.ID)
	}
	return s, nil
}

// MergeContact folds validated extraction results into LeadInfo. Fields stay
// set once, except that before the lead is collected a name found with higher
// confidence replaces a weaker earlier guess, so "my name is Dana" corrects a
// name picked up from "it's too pricey".
func (s *Session) MergeContact(res ExtractResult) []string {
	info := res.Validated()
	var replaced []string
	if info.Name != "" && s.LeadInfo.Name != "" && !s.LeadCollected &&
		res.NameConfidence > s.NameConfidence && info.Name != s.LeadInfo.Name {
		s.LeadInfo.Name = info.Name
		s.NameConfidence = res.NameConfidence
		replaced = append(replaced, "name")
	}
	if s.LeadInfo.Name == "" && info.Name != "" {
		s.NameConfidence = res.NameConfidence
	}
	return append(replaced, s.LeadInfo.Merge(info)...)
}

// Clone returns a deep copy so callers never share transcript backing arrays.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Messages != nil {
		out.Messages = make([]Message, len(s.Messages))
		copy(out.Messages, s.Messages)
	}
	return &out
}
