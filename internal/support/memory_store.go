package support

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is the Store used when no database is configured.
type MemoryStore struct {
	mu          sync.RWMutex
	escalations map[uuid.UUID]*Escalation
	tasks       map[uuid.UUID]*Task
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		escalations: make(map[uuid.UUID]*Escalation),
		tasks:       make(map[uuid.UUID]*Task),
	}
}

func copyEscalation(e *Escalation) *Escalation {
	out := *e
	out.ChannelsNotified = slices.Clone(e.ChannelsNotified)
	if out.ChannelsNotified == nil {
		out.ChannelsNotified = []string{}
	}
	return &out
}

func (m *MemoryStore) CreateEscalation(ctx context.Context, e *Escalation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.escalations[e.ID]; !ok {
		m.escalations[e.ID] = copyEscalation(e)
	}
	return nil
}

func (m *MemoryStore) SetChannelsNotified(ctx context.Context, id uuid.UUID, channels []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.escalations[id]
	if !ok {
		return ErrEscalationNotFound
	}
	e.ChannelsNotified = slices.Clone(channels)
	e.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) GetEscalation(ctx context.Context, businessID string, id uuid.UUID) (*Escalation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.escalations[id]
	if !ok || e.BusinessID != businessID {
		return nil, ErrEscalationNotFound
	}
	return copyEscalation(e), nil
}

func (m *MemoryStore) ListEscalations(ctx context.Context, businessID string, filter EscalationFilter) ([]*Escalation, error) {
	m.mu.RLock()
	out := []*Escalation{}
	for _, e := range m.escalations {
		if e.BusinessID != businessID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if !filter.Since.IsZero() && e.CreatedAt.Before(filter.Since) {
			continue
		}
		out = append(out, copyEscalation(e))
	}
	m.mu.RUnlock()

	rank := func(e *Escalation) int {
		if e.Priority == "high" {
			return 1
		}
		return 2
	}
	sort.Slice(out, func(i, j int) bool {
		if rank(out[i]) != rank(out[j]) {
			return rank(out[i]) < rank(out[j])
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit := normalizeLimit(filter.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) UpdateEscalationStatus(ctx context.Context, businessID string, id uuid.UUID, from, to EscalationStatus, at time.Time) (*Escalation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.escalations[id]
	if !ok || e.BusinessID != businessID || e.Status != from {
		return nil, ErrInvalidTransition
	}
	e.Status = to
	e.UpdatedAt = at
	if to == StatusResolved {
		resolved := at
		e.ResolvedAt = &resolved
	}
	return copyEscalation(e), nil
}

func (m *MemoryStore) CreateTask(ctx context.Context, t *Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; !ok {
		out := *t
		m.tasks[t.ID] = &out
	}
	return nil
}

func (m *MemoryStore) ListTasks(ctx context.Context, businessID string, filter TaskFilter) ([]*Task, error) {
	m.mu.RLock()
	out := []*Task{}
	for _, t := range m.tasks {
		if t.BusinessID != businessID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if !filter.DueBefore.IsZero() && t.DueAt.After(filter.DueBefore) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	if limit := normalizeLimit(filter.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CompleteTask(ctx context.Context, businessID string, id uuid.UUID, at time.Time) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.BusinessID != businessID || t.Status != TaskPending {
		return nil, ErrTaskNotFound
	}
	t.Status = TaskDone
	completed := at
	t.CompletedAt = &completed
	out := *t
	return &out, nil
}

var _ Store = (*MemoryStore)(nil)
