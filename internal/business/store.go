package business

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Provider resolves tenant configuration.
type Provider interface {
	Get(ctx context.Context, businessID string) (*Config, error)
}

// Store keeps business configs in Redis.
// Lister enumerates configured businesses.
type Lister interface {
	IDs(ctx context.Context) ([]string, error)
}

type Store struct {
	redis *redis.Client
}

func NewStore(redisClient *redis.Client) *Store {
	if redisClient == nil {
		panic("business: redis client cannot be nil")
	}
	return &Store{redis: redisClient}
}

const indexKey = "business:ids"

func (s *Store) key(businessID string) string {
	return fmt.Sprintf("business:config:%s", businessID)
}

// Get retrieves a business config, returning the default if none is stored.
func (s *Store) Get(ctx context.Context, businessID string) (*Config, error) {
	data, err := s.redis.Get(ctx, s.key(businessID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return DefaultConfig(businessID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("business: get config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("business: unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Set saves a business config.
func (s *Store) Set(ctx context.Context, cfg *Config) error {
	if cfg == nil || strings.TrimSpace(cfg.BusinessID) == "" {
		return errors.New("business: config requires a business id")
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("business: marshal config: %w", err)
	}
	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, s.key(cfg.BusinessID), data, 0)
	pipe.SAdd(ctx, indexKey, cfg.BusinessID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("business: set config: %w", err)
	}
	return nil
}

// IDs lists every business with a stored config, sorted.
func (s *Store) IDs(ctx context.Context) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("business: list ids: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// StaticProvider serves DefaultConfig for every business. It is used when no
// Redis is configured.
type StaticProvider struct {
	Base *Config
}

func (p StaticProvider) Get(ctx context.Context, businessID string) (*Config, error) {
	if p.Base == nil {
		return DefaultConfig(businessID), nil
	}
	cfg := *p.Base
	cfg.BusinessID = businessID
	return &cfg, nil
}
