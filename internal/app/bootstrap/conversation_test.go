package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/sitelead-ai/internal/business"
	appconfig "github.com/wolfman30/sitelead-ai/internal/config"
	"github.com/wolfman30/sitelead-ai/internal/conversation"
	"github.com/wolfman30/sitelead-ai/pkg/logging"
)

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		DefaultBusinessID: "acme",
		SessionBackend:    "memory",
		SessionTTL:        time.Hour,
		SessionCacheSize:  10,
		LLMProvider:       "none",
		LLMTimeout:        time.Second,
		LLMMaxTokens:      100,
		LLMHistoryTurns:   4,
	}
}

func TestBuildEngineRequiresConfig(t *testing.T) {
	_, err := BuildEngine(nil, EngineDeps{})
	require.Error(t, err)
}

func TestBuildEngineHandlesTurnWithoutModel(t *testing.T) {
	cfg := testConfig()
	logger := logging.New("error")

	engine, err := BuildEngine(cfg, EngineDeps{
		Sessions:   BuildSessionStore(cfg, nil, nil, logger),
		Businesses: business.StaticProvider{},
		Logger:     logger,
	})
	require.NoError(t, err)

	reply, err := engine.HandleMessage(context.Background(), conversation.Request{Message: "hi there"})
	require.NoError(t, err)
	assert.NotEmpty(t, reply.SessionID)
	assert.NotEmpty(t, reply.Message)
}

func TestBuildEngineBadKeywordsPath(t *testing.T) {
	cfg := testConfig()
	cfg.KeywordsPath = "/does/not/exist.yaml"

	_, err := BuildEngine(cfg, EngineDeps{Sessions: conversation.NewMemorySessionStore(1, time.Minute)})
	require.Error(t, err)
}

func TestBuildSessionStoreFallsBackToMemory(t *testing.T) {
	cfg := testConfig()
	cfg.SessionBackend = "redis"

	store := BuildSessionStore(cfg, nil, nil, logging.New("error"))
	_, ok := store.(*conversation.MemorySessionStore)
	assert.True(t, ok, "expected memory store, got %T", store)
}

func TestBuildSessionStoreUsesRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.SessionBackend = "redis"
	cfg.RedisAddr = mr.Addr()

	client := BuildRedisClient(context.Background(), cfg, logging.New("error"), true)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	store := BuildSessionStore(cfg, client, nil, logging.New("error"))
	_, ok := store.(*conversation.RedisSessionStore)
	assert.True(t, ok, "expected redis store, got %T", store)
}

func TestBuildRedisClientUnreachable(t *testing.T) {
	cfg := testConfig()
	cfg.RedisAddr = "127.0.0.1:1"

	assert.Nil(t, BuildRedisClient(context.Background(), cfg, logging.New("error"), true))
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, nil, true))
}

func TestBuildLLMClientNone(t *testing.T) {
	client, err := BuildLLMClient(context.Background(), testConfig(), aws.Config{}, logging.New("error"))
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestBuildLLMClientUnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.LLMProvider = "mystery"

	_, err := BuildLLMClient(context.Background(), cfg, aws.Config{}, logging.New("error"))
	require.Error(t, err)
}
