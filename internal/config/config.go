package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName             string
	AppEnv              string
	AppPort             string
	DatabaseURL         string
	RedisURL            string
	NATSURL             string
	EventChannelBase    string
	JWTSecret           string
	FeedbackCacheTTL    time.Duration
	FeedbackRateMax     int
	FeedbackRateWindow  time.Duration
	ProviderTimeout     time.Duration
	RetryMaxAttempts    int
	RetryBaseDelay      time.Duration
	MinFeedbackLength   int
	EnrichmentThreshold float64
	PartialThreshold    float64
	WorkerCount         int
	QueueSize           int
	AIProvider          string
	AIModel             string
	OpenAIAPIKey        string
	AnthropicAPIKey     string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("QUIZFORGE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "QuizForge API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("event.channel_base", "quizforge")
	v.SetDefault("feedback.cache_ttl", "15m")
	v.SetDefault("feedback.rate_max", 20)
	v.SetDefault("feedback.rate_window", "1h")
	v.SetDefault("feedback.min_length", 20)
	v.SetDefault("provider.timeout_ms", 10000)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay_ms", 250)
	v.SetDefault("enrichment.threshold", 1.0)
	v.SetDefault("grading.partial_threshold", 0.5)
	v.SetDefault("worker.count", 4)
	v.SetDefault("worker.queue_size", 256)
	v.SetDefault("ai.provider", "openai")

	cacheTTL, err := parseDuration(v, "feedback.cache_ttl", 15*time.Minute)
	if err != nil {
		return Config{}, err
	}

	rateWindow, err := parseDuration(v, "feedback.rate_window", time.Hour)
	if err != nil {
		return Config{}, err
	}

	timeoutMs := v.GetInt("provider.timeout_ms")
	if timeoutMs <= 0 {
		timeoutMs = 10000
	}

	baseDelayMs := v.GetInt("retry.base_delay_ms")
	if baseDelayMs <= 0 {
		baseDelayMs = 250
	}

	cfg := Config{
		AppName:             v.GetString("app.name"),
		AppEnv:              v.GetString("app.env"),
		AppPort:             v.GetString("app.port"),
		DatabaseURL:         v.GetString("database.url"),
		RedisURL:            v.GetString("redis.url"),
		NATSURL:             v.GetString("nats.url"),
		EventChannelBase:    v.GetString("event.channel_base"),
		JWTSecret:           v.GetString("jwt.secret"),
		FeedbackCacheTTL:    cacheTTL,
		FeedbackRateMax:     v.GetInt("feedback.rate_max"),
		FeedbackRateWindow:  rateWindow,
		ProviderTimeout:     time.Duration(timeoutMs) * time.Millisecond,
		RetryMaxAttempts:    v.GetInt("retry.max_attempts"),
		RetryBaseDelay:      time.Duration(baseDelayMs) * time.Millisecond,
		MinFeedbackLength:   v.GetInt("feedback.min_length"),
		EnrichmentThreshold: v.GetFloat64("enrichment.threshold"),
		PartialThreshold:    v.GetFloat64("grading.partial_threshold"),
		WorkerCount:         v.GetInt("worker.count"),
		QueueSize:           v.GetInt("worker.queue_size"),
		AIProvider:          strings.ToLower(v.GetString("ai.provider")),
		AIModel:             v.GetString("ai.model"),
		OpenAIAPIKey:        v.GetString("openai_api_key"),
		AnthropicAPIKey:     v.GetString("anthropic_api_key"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}

	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := v.GetString(key)
	if raw == "" {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return parsed, nil
}
