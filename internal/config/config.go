package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port              string
	Env               string
	LogLevel          string
	DatabaseURL       string
	DefaultBusinessID string
	KeywordsPath      string
	AdminJWTSecret    string

	// Session storage
	SessionBackend   string
	SessionTTL       time.Duration
	SessionCacheSize int
	RedisAddr        string
	RedisPassword    string
	RedisTLS         bool

	// Language model
	LLMProvider         string
	LLMFallbackProvider string
	LLMModel            string
	LLMTimeout          time.Duration
	LLMMaxTokens        int
	LLMHistoryTurns     int
	AnthropicAPIKey     string
	OpenAIAPIKey        string
	GeminiAPIKey        string
	BedrockModelID      string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Side-effect dispatch
	DispatchQueue    string
	DispatchQueueURL string
	DispatchWorkers  int
	NATSURL          string
	NATSToken        string

	// Email
	EmailProvider       string
	SendGridAPIKey      string
	EmailFromAddress    string
	EmailFromName       string
	SESConfigurationSet string

	// SMS
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	// Slack
	SlackBotToken string
	SlackChannel  string

	DigestSchedule string

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present; real env vars win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:              getEnv("PORT", "8080"),
		Env:               getEnv("ENV", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		DefaultBusinessID: getEnv("DEFAULT_BUSINESS_ID", "default"),
		KeywordsPath:      getEnv("KEYWORDS_PATH", ""),
		AdminJWTSecret:    getEnv("ADMIN_JWT_SECRET", ""),

		SessionBackend:   strings.ToLower(getEnv("SESSION_BACKEND", "memory")),
		SessionTTL:       getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		SessionCacheSize: getEnvAsInt("SESSION_CACHE_SIZE", 10000),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisTLS:         getEnvAsBool("REDIS_TLS", false),

		LLMProvider:         strings.ToLower(getEnv("LLM_PROVIDER", "none")),
		LLMFallbackProvider: strings.ToLower(getEnv("LLM_FALLBACK_PROVIDER", "")),
		LLMModel:            getEnv("LLM_MODEL", ""),
		LLMTimeout:          getEnvAsDuration("LLM_TIMEOUT", 8*time.Second),
		LLMMaxTokens:        getEnvAsInt("LLM_MAX_TOKENS", 300),
		LLMHistoryTurns:     getEnvAsInt("LLM_HISTORY_TURNS", 6),
		AnthropicAPIKey:     getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		DispatchQueue:    strings.ToLower(getEnv("DISPATCH_QUEUE", "memory")),
		DispatchQueueURL: getEnv("DISPATCH_QUEUE_URL", ""),
		DispatchWorkers:  getEnvAsInt("DISPATCH_WORKERS", 4),
		NATSURL:          getEnv("NATS_URL", ""),
		NATSToken:        getEnv("NATS_TOKEN", ""),

		EmailProvider:       strings.ToLower(getEnv("EMAIL_PROVIDER", "")),
		SendGridAPIKey:      getEnv("SENDGRID_API_KEY", ""),
		EmailFromAddress:    getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailFromName:       getEnv("EMAIL_FROM_NAME", "SiteLead"),
		SESConfigurationSet: getEnv("SES_CONFIGURATION_SET", ""),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),

		SlackBotToken: getEnv("SLACK_BOT_TOKEN", ""),
		SlackChannel:  getEnv("SLACK_CHANNEL", ""),

		DigestSchedule: getEnv("DIGEST_SCHEDULE", "0 8 * * *"),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 10),
	}
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
