package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// LLM provider settings
	BedrockModelID   string
	FallbackModelID  string
	LLMTimeout       time.Duration
	MaxTokensCeiling int

	// Escalation engine tunables. Passed explicitly to the components that
	// need them rather than read from the environment at call sites.
	VIPLifetimeValueThreshold float64
	UsageMarkupDefaultPercent float64
	HighSentimentThreshold    float64

	// Billing rates in USD per million tokens.
	InputTokenRatePerMillion  float64
	OutputTokenRatePerMillion float64

	// Event sink
	SessionEventQueueURL string

	// Staff notification email. SendGrid is used when an API key is set,
	// otherwise SES via the shared AWS config.
	SendGridAPIKey  string
	NotifyFromEmail string
	NotifyFromName  string

	AdminJWTSecret string

	CORSAllowedOrigins []string

	// Requests/sec and burst per tenant. Zero disables rate limiting.
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		BedrockModelID:   getEnv("BEDROCK_MODEL_ID", "anthropic.claude-3-haiku-20240307-v1:0"),
		FallbackModelID:  getEnv("BEDROCK_FALLBACK_MODEL_ID", ""),
		LLMTimeout:       getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),
		MaxTokensCeiling: getEnvAsInt("LLM_MAX_TOKENS_CEILING", 1024),

		VIPLifetimeValueThreshold: getEnvAsFloat("VIP_LIFETIME_VALUE_THRESHOLD", 1000),
		UsageMarkupDefaultPercent: getEnvAsFloat("USAGE_MARKUP_DEFAULT_PERCENT", 20),
		HighSentimentThreshold:    getEnvAsFloat("HIGH_SENTIMENT_THRESHOLD", 0.75),

		InputTokenRatePerMillion:  getEnvAsFloat("INPUT_TOKEN_RATE_PER_MILLION", 3.0),
		OutputTokenRatePerMillion: getEnvAsFloat("OUTPUT_TOKEN_RATE_PER_MILLION", 15.0),

		SessionEventQueueURL: getEnv("SESSION_EVENT_QUEUE_URL", ""),

		SendGridAPIKey:  getEnv("SENDGRID_API_KEY", ""),
		NotifyFromEmail: getEnv("NOTIFY_FROM_EMAIL", ""),
		NotifyFromName:  getEnv("NOTIFY_FROM_NAME", "Support AI"),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", nil),

		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 0),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 0),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
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

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
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

// getEnvAsSlice splits a comma-separated environment variable, trimming blanks.
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, part := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
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
