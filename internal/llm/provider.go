package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/wolfman30/sitelead-ai/pkg/logging"
)

const (
	ProviderNone      = "none"
	ProviderBedrock   = "bedrock"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// ProviderConfig carries the credentials every provider might need.
type ProviderConfig struct {
	Model           string
	BedrockModelID  string
	AWS             aws.Config
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GeminiAPIKey    string
}

// NewProvider builds the named client. "none" and "" return a nil client,
// which leaves every turn to the deterministic responder.
func NewProvider(ctx context.Context, name string, cfg ProviderConfig) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ProviderNone:
		return nil, nil
	case ProviderBedrock:
		model := cfg.BedrockModelID
		if model == "" {
			model = cfg.Model
		}
		return NewBedrockClient(bedrockruntime.NewFromConfig(cfg.AWS), model), nil
	case ProviderGemini:
		client, err := NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		return client, nil
	case ProviderAnthropic:
		client, err := NewAnthropicClient(cfg.AnthropicAPIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		return client, nil
	case ProviderOpenAI:
		client, err := NewOpenAIClient(cfg.OpenAIAPIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", name)
	}
}

// NewFromConfig builds the primary provider and wraps it with the optional
// fallback provider.
func NewFromConfig(ctx context.Context, primary, fallback string, cfg ProviderConfig, logger *logging.Logger) (Client, error) {
	primaryClient, err := NewProvider(ctx, primary, cfg)
	if err != nil {
		return nil, err
	}
	if primaryClient == nil {
		return nil, nil
	}
	if strings.TrimSpace(fallback) == "" || strings.EqualFold(fallback, primary) {
		return primaryClient, nil
	}
	// The fallback provider may be configured with a different family, so the
	// shared Model override only applies to the primary.
	fallbackCfg := cfg
	fallbackCfg.Model = ""
	fallbackClient, err := NewProvider(ctx, fallback, fallbackCfg)
	if err != nil {
		return nil, err
	}
	if fallbackClient == nil {
		return primaryClient, nil
	}
	return NewFallbackClient(primaryClient, fallbackClient, logger), nil
}
