package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/sitelead-ai/internal/business"
	appconfig "github.com/wolfman30/sitelead-ai/internal/config"
	"github.com/wolfman30/sitelead-ai/internal/conversation"
	"github.com/wolfman30/sitelead-ai/internal/llm"
	"github.com/wolfman30/sitelead-ai/internal/observability/metrics"
	"github.com/wolfman30/sitelead-ai/pkg/logging"
)

// BuildSessionStore picks the session backend. "redis" without a reachable
// client falls back to the in-process LRU so the service still answers.
func BuildSessionStore(cfg *appconfig.Config, redisClient *redis.Client, m *metrics.ChatMetrics, logger *logging.Logger) conversation.SessionStore {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.SessionBackend == "redis" {
		if redisClient != nil {
			logger.Info("using redis session store", "ttl", cfg.SessionTTL.String())
			return conversation.NewRedisSessionStore(redisClient, cfg.SessionTTL)
		}
		logger.Warn("redis session backend selected but redis unavailable; using memory store")
	}
	return conversation.NewMemorySessionStore(cfg.SessionCacheSize, cfg.SessionTTL,
		conversation.WithEvictionHook(func(string) { m.IncSessionEviction() }),
	)
}

// BuildLLMClient returns the configured model client, or nil when every turn
// should use the deterministic responder.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (llm.Client, error) {
	if logger == nil {
		logger = logging.Default()
	}
	client, err := llm.NewFromConfig(ctx, cfg.LLMProvider, cfg.LLMFallbackProvider, llm.ProviderConfig{
		Model:           cfg.LLMModel,
		BedrockModelID:  cfg.BedrockModelID,
		AWS:             awsCfg,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		GeminiAPIKey:    cfg.GeminiAPIKey,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: llm provider: %w", err)
	}
	if client == nil {
		logger.Warn("no language model configured; replies use canned responses")
	} else {
		logger.Info("language model enabled", "provider", cfg.LLMProvider, "fallback", cfg.LLMFallbackProvider)
	}
	return client, nil
}

// EngineDeps are the collaborators BuildEngine cannot derive from config.
type EngineDeps struct {
	Sessions   conversation.SessionStore
	Businesses business.Provider
	LLM        llm.Client
	Effects    conversation.EffectSink
	Metrics    *metrics.ChatMetrics
	Logger     *logging.Logger
}

// BuildEngine wires keywords, the receptionist and the engine.
func BuildEngine(cfg *appconfig.Config, deps EngineDeps) (*conversation.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	keywords, err := conversation.LoadKeywords(cfg.KeywordsPath)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	receptionist := conversation.NewReceptionist(keywords,
		conversation.WithLLM(deps.LLM, cfg.LLMTimeout),
		conversation.WithPromptBuilder(conversation.NewPromptBuilder(cfg.LLMHistoryTurns, int32(cfg.LLMMaxTokens))),
		conversation.WithReceptionistMetrics(deps.Metrics),
		conversation.WithReceptionistLogger(deps.Logger),
	)

	opts := []conversation.EngineOption{
		conversation.WithKeywords(keywords),
		conversation.WithDefaultBusinessID(cfg.DefaultBusinessID),
		conversation.WithEngineMetrics(deps.Metrics),
		conversation.WithEngineLogger(deps.Logger),
	}
	if deps.Effects != nil {
		opts = append(opts, conversation.WithEffects(deps.Effects))
	}
	return conversation.NewEngine(deps.Sessions, deps.Businesses, receptionist, opts...), nil
}
