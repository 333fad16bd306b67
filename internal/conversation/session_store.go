package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// SessionStore owns session lifecycle. Implementations return private copies
// so a caller's mutations are only visible after Save.
type SessionStore interface {
	// GetOrCreate is idempotent: an unseen id creates and stores a NEW session.
	// An id already owned by another business fails with
	// ErrSessionBusinessMismatch.
	GetOrCreate(ctx context.Context, businessID, id string) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	// Save upserts the session. It fails with ErrVersionConflict when the
	// stored version differs from session.Version, and bumps Version on success.
	Save(ctx context.Context, session *Session) error
	Evict(ctx context.Context, id string) error
}

// MemorySessionStore keeps sessions in a size-bounded LRU whose entries expire
// a fixed TTL after their last save.
type MemorySessionStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, *Session]
	now   func() time.Time
}

// MemoryStoreOption customizes a MemorySessionStore.
type MemoryStoreOption func(*memoryStoreOptions)

type memoryStoreOptions struct {
	onEvict func(id string)
}

// WithEvictionHook is called whenever a session leaves the cache.
func WithEvictionHook(fn func(id string)) MemoryStoreOption {
	return func(o *memoryStoreOptions) {
		o.onEvict = fn
	}
}

func NewMemorySessionStore(size int, ttl time.Duration, opts ...MemoryStoreOption) *MemorySessionStore {
	if size <= 0 {
		size = 10000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	var cfg memoryStoreOptions
	for _, opt := range opts {
		opt(&cfg)
	}
	onEvict := func(id string, _ *Session) {
		if cfg.onEvict != nil {
			cfg.onEvict(id)
		}
	}
	return &MemorySessionStore{
		cache: expirable.NewLRU[string, *Session](size, onEvict, ttl),
		now:   time.Now,
	}
}

func (s *MemorySessionStore) GetOrCreate(ctx context.Context, businessID, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.cache.Get(id); ok {
		return ownedBy(existing.Clone(), businessID)
	}
	session := NewSession(businessID, id)
	s.cache.Add(id, session.Clone())
	return session, nil
}

func (s *MemorySessionStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.cache.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return existing.Clone(), nil
}

func (s *MemorySessionStore) Save(ctx context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// An expired entry is recreated from the caller's copy.
	if current, ok := s.cache.Get(session.ID); ok && current.Version != session.Version {
		return ErrVersionConflict
	}
	next := session.Clone()
	next.Version++
	next.UpdatedAt = s.now().UTC()
	s.cache.Add(session.ID, next)

	session.Version = next.Version
	session.UpdatedAt = next.UpdatedAt
	return nil
}

func (s *MemorySessionStore) Evict(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(id)
	return nil
}

// Len reports the number of live sessions.
func (s *MemorySessionStore) Len() int {
	return s.cache.Len()
}
