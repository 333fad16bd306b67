package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const defaultSessionTTL = 24 * time.Hour

var sessionTracer = otel.Tracer("sitelead/conversation/sessions")

// RedisSessionStore persists sessions as JSON documents with a TTL that is
// refreshed on every save. Save uses WATCH so concurrent writers from other
// processes surface as ErrVersionConflict.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisSessionStore{client: client, ttl: ttl}
}

func (s *RedisSessionStore) key(id string) string {
	return fmt.Sprintf("chat:session:%s", id)
}

func (s *RedisSessionStore) GetOrCreate(ctx context.Context, businessID, id string) (*Session, error) {
	ctx, span := sessionTracer.Start(ctx, "conversation.sessions.get_or_create")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", id))

	existing, err := s.Get(ctx, id)
	if err == nil {
		return ownedBy(existing, businessID)
	}
	if !errors.Is(err, ErrSessionNotFound) {
		span.RecordError(err)
		return nil, err
	}

	session := NewSession(businessID, id)
	payload, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("conversation: marshal session: %w", err)
	}
	created, err := s.client.SetNX(ctx, s.key(id), payload, s.ttl).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: create session: %w", err)
	}
	if !created {
		// Another writer created it first.
		existing, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return ownedBy(existing, businessID)
	}
	return session, nil
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: load session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("conversation: decode session: %w", err)
	}
	return &session, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, session *Session) error {
	ctx, span := sessionTracer.Start(ctx, "conversation.sessions.save")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", session.ID),
		attribute.Int64("session.version", session.Version),
	)

	key := s.key(session.ID)
	next := session.Clone()
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("conversation: marshal session: %w", err)
	}

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			// Expired or never created; the caller's copy wins.
		case err != nil:
			return err
		default:
			var current struct {
				Version int64 `json:"version"`
			}
			if err := json.Unmarshal(raw, &current); err != nil {
				return fmt.Errorf("conversation: decode session: %w", err)
			}
			if current.Version != session.Version {
				return ErrVersionConflict
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		err = ErrVersionConflict
	}
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrVersionConflict) {
			return err
		}
		return fmt.Errorf("conversation: save session: %w", err)
	}

	session.Version = next.Version
	session.UpdatedAt = next.UpdatedAt
	return nil
}

func (s *RedisSessionStore) Evict(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("conversation: evict session: %w", err)
	}
	return nil
}
