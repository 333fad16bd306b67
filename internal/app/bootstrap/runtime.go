package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/sitelead-ai/internal/business"
	appconfig "github.com/wolfman30/sitelead-ai/internal/config"
	"github.com/wolfman30/sitelead-ai/internal/conversation"
	"github.com/wolfman30/sitelead-ai/internal/leads"
	"github.com/wolfman30/sitelead-ai/internal/support"
	"github.com/wolfman30/sitelead-ai/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// Database holds the pgx pool and a database/sql view over the same pool.
// Both are nil when DATABASE_URL is unset.
type Database struct {
	Pool *pgxpool.Pool
	SQL  *sql.DB
}

// OpenDatabase connects to Postgres when a URL is configured.
func OpenDatabase(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*Database, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return &Database{}, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("connected to postgres")
	return &Database{Pool: pool, SQL: stdlib.OpenDBFromPool(pool)}, nil
}

// Enabled reports whether a database is configured.
func (d *Database) Enabled() bool {
	return d != nil && d.Pool != nil
}

// Ping is used by the readiness probe.
func (d *Database) Ping(ctx context.Context) error {
	if !d.Enabled() {
		return nil
	}
	return d.Pool.Ping(ctx)
}

func (d *Database) Close() {
	if d == nil {
		return
	}
	if d.SQL != nil {
		_ = d.SQL.Close()
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
}

// BuildLeadsRepository picks Postgres when available, memory otherwise.
func BuildLeadsRepository(db *Database) leads.Repository {
	if db.Enabled() {
		return leads.NewPostgresRepository(db.Pool)
	}
	return leads.NewInMemoryRepository()
}

// BuildSupportStore picks the SQL store when available, memory otherwise.
func BuildSupportStore(db *Database) support.Store {
	if db.Enabled() {
		return support.NewSQLStore(db.SQL)
	}
	return support.NewMemoryStore()
}

// BuildConversationStore wires optional transcript persistence. It returns
// nil without a database; a nil store is a no-op.
func BuildConversationStore(db *Database, logger *logging.Logger) *conversation.ConversationStore {
	if !db.Enabled() {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	logger.Info("conversation persistence enabled")
	return conversation.NewConversationStore(db.SQL)
}

// BuildBusinessStore returns the Redis-backed config store, or nil without
// Redis.
func BuildBusinessStore(redisClient *redis.Client) *business.Store {
	if redisClient == nil {
		return nil
	}
	return business.NewStore(redisClient)
}
