package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/sitelead-ai/internal/app/bootstrap"
	appconfig "github.com/wolfman30/sitelead-ai/internal/config"
	httpmiddleware "github.com/wolfman30/sitelead-ai/internal/http/middleware"
	"github.com/wolfman30/sitelead-ai/pkg/logging"
)

func testConfig(redisAddr string) *appconfig.Config {
	return &appconfig.Config{
		Port:               "0",
		Env:                "test",
		DefaultBusinessID:  "acme",
		SessionBackend:     "redis",
		SessionTTL:         time.Hour,
		SessionCacheSize:   100,
		RedisAddr:          redisAddr,
		LLMProvider:        "none",
		LLMTimeout:         time.Second,
		LLMMaxTokens:       100,
		LLMHistoryTurns:    4,
		AWSRegion:          "us-east-1",
		AWSAccessKeyID:     "test",
		AWSSecretAccessKey: "test",
		DispatchQueue:      "memory",
		DispatchWorkers:    1,
		DigestSchedule:     "0 8 * * *",
		CORSAllowedOrigins: []string{"*"},
		RateLimitRPS:       100,
		RateLimitBurst:     100,
	}
}

func TestSetupMetricsExposesChatMetrics(t *testing.T) {
	handler, chatMetrics := setupMetrics()
	require.NotNil(t, handler)
	require.NotNil(t, chatMetrics)

	chatMetrics.ObserveTurn("greeting", "GREETED", 0.1)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "sitelead_chat_turns_total")
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestSetupRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := testConfig("")

	_, isMemory := setupRateLimiter(ctx, cfg, nil).(*httpmiddleware.RateLimiter)
	assert.True(t, isMemory)

	mr := miniredis.RunT(t)
	cfg.RedisAddr = mr.Addr()
	client := bootstrap.BuildRedisClient(ctx, cfg, logging.New("error"), false)
	defer client.Close()
	_, isRedis := setupRateLimiter(ctx, cfg, client).(*httpmiddleware.RedisRateLimiter)
	assert.True(t, isRedis)

	cfg.RateLimitRPS = 0
	assert.Nil(t, setupRateLimiter(ctx, cfg, client))
}

func TestReadinessChecksWithoutBackends(t *testing.T) {
	assert.Empty(t, readinessChecks(&bootstrap.Database{}, nil))
}

func TestBuildAppServesChatAndShutsDown(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	mr := miniredis.RunT(t)
	logger := logging.New("error")

	app, err := buildApp(context.Background(), testConfig(mr.Addr()), logger)
	require.NoError(t, err)

	srv := httptest.NewServer(app.handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/chat", "application/json", strings.NewReader(`{"message":"hello, what do you offer?"}`))
	require.NoError(t, err)
	var reply struct {
		SessionID string `json:"sessionId"`
		Message   string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, reply.SessionID)
	assert.NotEmpty(t, reply.Message)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	app.shutdown(ctx)
	assert.Equal(t, 0, app.dispatcher.Pending())
}

func TestBuildAppRejectsUnknownQueue(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := testConfig("")
	cfg.DispatchQueue = "kafka"

	_, err := buildApp(context.Background(), cfg, logging.New("error"))
	require.Error(t, err)
}
