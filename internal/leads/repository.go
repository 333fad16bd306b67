package leads

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for lead storage.
type Repository interface {
	// Create is idempotent per session: a second call for the same session id
	// returns the existing lead.
	Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error)
	GetByID(ctx context.Context, businessID, id string) (*Lead, error)
	List(ctx context.Context, businessID string, filter ListFilter) ([]*Lead, error)
	UpdateStatus(ctx context.Context, businessID, id string, status Status) (*Lead, error)
}

// InMemoryRepository keeps leads in process memory.
type InMemoryRepository struct {
	mu        sync.RWMutex
	leads     map[string]*Lead
	bySession map[string]string
	now       func() time.Time
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		leads:     make(map[string]*Lead),
		bySession: make(map[string]string),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *InMemoryRepository) Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if req.SessionID != "" {
		if id, ok := r.bySession[req.SessionID]; ok {
			existing := *r.leads[id]
			return &existing, nil
		}
	}

	now := r.now()
	lead := &Lead{
		ID:         uuid.New().String(),
		BusinessID: req.BusinessID,
		SessionID:  req.SessionID,
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Inquiry:    req.Inquiry,
		Source:     sourceOrDefault(req.Source),
		Status:     StatusNew,
		Score:      req.Score,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.leads[lead.ID] = lead
	if lead.SessionID != "" {
		r.bySession[lead.SessionID] = lead.ID
	}

	out := *lead
	return &out, nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, businessID, id string) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, ok := r.leads[id]
	if !ok || lead.BusinessID != businessID {
		return nil, ErrLeadNotFound
	}
	out := *lead
	return &out, nil
}

func (r *InMemoryRepository) List(ctx context.Context, businessID string, filter ListFilter) ([]*Lead, error) {
	filter = filter.normalized()

	r.mu.RLock()
	var matched []*Lead
	for _, lead := range r.leads {
		if lead.BusinessID != businessID {
			continue
		}
		if filter.Status != "" && lead.Status != filter.Status {
			continue
		}
		if !filter.Since.IsZero() && lead.CreatedAt.Before(filter.Since) {
			continue
		}
		out := *lead
		matched = append(matched, &out)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if filter.Offset >= len(matched) {
		return []*Lead{}, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (r *InMemoryRepository) UpdateStatus(ctx context.Context, businessID, id string, status Status) (*Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lead, ok := r.leads[id]
	if !ok || lead.BusinessID != businessID {
		return nil, ErrLeadNotFound
	}
	if !lead.Status.CanTransition(status) {
		return nil, ErrInvalidTransition
	}
	lead.Status = status
	lead.UpdatedAt = r.now()
	out := *lead
	return &out, nil
}

func sourceOrDefault(source string) string {
	if source == "" {
		return "chat"
	}
	return source
}
