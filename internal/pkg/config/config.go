package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	ServerAddr   string `env:"SERVER_ADDR" envDefault:":8080"`
	MetricsAddr  string `env:"METRICS_ADDR" envDefault:":9091"`
	MaxEventSize int64  `env:"MAX_EVENT_SIZE_BYTES" envDefault:"65536"` // 64KB

	PostgresURL string `env:"POSTGRES_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`
	AdminToken  string `env:"ADMIN_TOKEN,required"`

	GeminiAPIKey   string `env:"GEMINI_API_KEY"`
	DeepSeekAPIKey string `env:"DEEPSEEK_API_KEY"`

	GA4BaseURL     string `env:"GA4_BASE_URL"`
	GA4PropertyID  string `env:"GA4_PROPERTY_ID"`
	GA4AccessToken string `env:"GA4_ACCESS_TOKEN"`

	AnalysisInterval    time.Duration `env:"ANALYSIS_INTERVAL" envDefault:"1h"`
	BatchTimeout        time.Duration `env:"BATCH_TIMEOUT" envDefault:"10m"`
	LLMCallTimeout      time.Duration `env:"LLM_CALL_TIMEOUT" envDefault:"30s"`
	LLMRequestsPerSec   float64       `env:"LLM_REQUESTS_PER_SEC" envDefault:"1"`
	AnalysisConcurrency int           `env:"ANALYSIS_CONCURRENCY" envDefault:"4"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
