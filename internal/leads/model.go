package leads

import (
	"strings"
	"time"
)

// Status tracks a lead through the sales pipeline.
type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusQualified Status = "qualified"
	StatusWon       Status = "won"
	StatusLost      Status = "lost"
)

var transitions = map[Status][]Status{
	StatusNew:       {StatusContacted, StatusQualified, StatusLost},
	StatusContacted: {StatusQualified, StatusWon, StatusLost},
	StatusQualified: {StatusWon, StatusLost},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusQualified, StatusWon, StatusLost:
		return true
	}
	return false
}

// CanTransition reports whether a lead may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Lead is a captured contact. Everything except Status is immutable after
// creation.
type Lead struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"business_id"`
	SessionID  string    `json:"session_id,omitempty"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Inquiry    string    `json:"inquiry,omitempty"`
	Source     string    `json:"source"`
	Status     Status    `json:"status"`
	Score      int       `json:"score"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreateLeadRequest represents the data needed to create a lead.
type CreateLeadRequest struct {
	BusinessID string `json:"-"`
	SessionID  string `json:"session_id,omitempty"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Inquiry    string `json:"inquiry"`
	Source     string `json:"source"`
	Score      int    `json:"score,omitempty"`
}

// Validate validates the create lead request.
func (r *CreateLeadRequest) Validate() error {
	if strings.TrimSpace(r.BusinessID) == "" {
		return ErrMissingBusinessID
	}
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidName
	}
	if strings.TrimSpace(r.Email) == "" && strings.TrimSpace(r.Phone) == "" {
		return ErrMissingContact
	}
	return nil
}

// ListFilter narrows List results.
type ListFilter struct {
	Status Status
	Since  time.Time
	Limit  int
	Offset int
}

func (f ListFilter) normalized() ListFilter {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
