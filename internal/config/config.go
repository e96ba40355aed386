package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	HTTP        HTTPConfig
	Log         LogConfig
	Gemini      GeminiConfig
	Redis       RedisConfig
	Scraper     ScraperConfig
	Pipeline    PipelineConfig
	Review      ReviewConfig
}

type HTTPConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

// GeminiConfig carries the API key plus one model tier per pass. Tier
// selection is static configuration, not adaptive routing.
type GeminiConfig struct {
	APIKey     string
	MaxRetries int
	Timeout    time.Duration

	EventModel     ModelTier
	ReasoningModel ModelTier
	JudgmentModel  ModelTier
}

// ModelTier names a model endpoint together with its fixed per-call cost
// estimate and sampling parameters. Costs are additive estimates, not
// metered token counts.
type ModelTier struct {
	Name        string
	CostPerCall float64
	Temperature float32
	MaxTokens   int32
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ClaimTTL     time.Duration // identity claim lifetime, at least twice the duplicate window
}

type ScraperConfig struct {
	RequestTimeout time.Duration
	DomainDelay    time.Duration
	MaxBodyChars   int
}

// PipelineConfig holds the tunable design parameters of the analysis
// pipeline. The exact values are design choices, not load-bearing
// correctness requirements.
type PipelineConfig struct {
	ConfidenceThreshold float64       // below this, a run needs human review
	DuplicateWindow     time.Duration // published-time tolerance for identity matching
	BatchDelay          time.Duration // fixed pause between articles in a batch
	PassTimeout         time.Duration // per-pass model call budget
}

type ReviewConfig struct {
	OverconfidenceThreshold float64 // event confidence above this raises a red flag
	DefaultLimit            int
}

// Load reads configuration from the environment, optionally seeded from a
// .env file. A missing .env file is not an error outside development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		HTTP: HTTPConfig{
			Port:         getEnvInt("PORT", 8080),
			ReadTimeout:  getEnvDuration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("HTTP_WRITE_TIMEOUT", 120*time.Second),
			IdleTimeout:  getEnvDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		Gemini: GeminiConfig{
			APIKey:     os.Getenv("GEMINI_API_KEY"),
			MaxRetries: getEnvInt("GEMINI_MAX_RETRIES", 3),
			Timeout:    getEnvDuration("GEMINI_TIMEOUT", 90*time.Second),
			EventModel: ModelTier{
				Name:        getEnv("EVENT_MODEL", "gemini-2.0-flash-lite"),
				CostPerCall: getEnvFloat("EVENT_MODEL_COST", 0.002),
				Temperature: 0.1,
				MaxTokens:   4096,
			},
			ReasoningModel: ModelTier{
				Name:        getEnv("REASONING_MODEL", "gemini-2.5-pro"),
				CostPerCall: getEnvFloat("REASONING_MODEL_COST", 0.015),
				Temperature: 0.2,
				MaxTokens:   8192,
			},
			JudgmentModel: ModelTier{
				Name:        getEnv("JUDGMENT_MODEL", "gemini-2.5-flash"),
				CostPerCall: getEnvFloat("JUDGMENT_MODEL_COST", 0.008),
				Temperature: 0.2,
				MaxTokens:   8192,
			},
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			ClaimTTL:     getEnvDuration("REDIS_CLAIM_TTL", 2*time.Hour),
		},
		Scraper: ScraperConfig{
			RequestTimeout: getEnvDuration("SCRAPER_TIMEOUT", 60*time.Second),
			DomainDelay:    getEnvDuration("SCRAPER_DOMAIN_DELAY", 3*time.Second),
			MaxBodyChars:   getEnvInt("SCRAPER_MAX_BODY_CHARS", 15000),
		},
		Pipeline: PipelineConfig{
			ConfidenceThreshold: getEnvFloat("CONFIDENCE_THRESHOLD", 0.5),
			DuplicateWindow:     getEnvDuration("DUPLICATE_WINDOW", time.Hour),
			BatchDelay:          getEnvDuration("BATCH_DELAY", 3*time.Second),
			PassTimeout:         getEnvDuration("PASS_TIMEOUT", 120*time.Second),
		},
		Review: ReviewConfig{
			OverconfidenceThreshold: getEnvFloat("OVERCONFIDENCE_THRESHOLD", 0.95),
			DefaultLimit:            getEnvInt("REVIEW_DEFAULT_LIMIT", 20),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Gemini.APIKey == "" && c.Environment != "test" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.Pipeline.ConfidenceThreshold < 0 || c.Pipeline.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be in [0,1], got %.2f", c.Pipeline.ConfidenceThreshold)
	}
	if c.Pipeline.DuplicateWindow <= 0 {
		return fmt.Errorf("DUPLICATE_WINDOW must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
