package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	Storage  S3Config
	CRM      CrmConfig
	Dataset  DatasetFilterConfig
	Search   WebSearchConfig
	Scraper  ScraperConfig
	Text     GenerativeTextConfig
	Sentry   SentryConfig
	Notify   NotifyConfig
	Pipeline PipelineConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// S3Config holds object-storage configuration for archived stage
// artifacts (canonical JSON snapshots of each PipelineRun stage).
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// CrmConfig configures the account-resolution CRM read adapter.
type CrmConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// DatasetFilterConfig configures the pre-crawled-dataset Stage 1 adapter.
type DatasetFilterConfig struct {
	BaseURL   string
	APIKey    string
	DatasetID string
	PollEvery time.Duration
	PollFor   time.Duration
}

// WebSearchConfig configures the search-engine Stage 1 adapter.
type WebSearchConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// ScraperConfig configures the Stage 2 profile scraper. Engine selects
// which of the two ports.ProfileScraper implementations the adapter
// factory builds: "actor" (default, a managed scraping actor reached over
// HTTP) or "rod" (a direct headless-browser fetch).
type ScraperConfig struct {
	Engine               string
	ActorBaseURL         string
	APIKey               string
	MaxScrapeConcurrency int
	NavigationTimeout    time.Duration
}

// GenerativeTextConfig configures the generative-text adapter shared by
// the company-name normalizer and Stage 3.
type GenerativeTextConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// SentryConfig configures fatal-error reporting.
type SentryConfig struct {
	DSN         string
	Environment string
}

// NotifyConfig configures the reviewer-notification channel Stage 4 uses
// once a batch of pending updates is queued.
type NotifyConfig struct {
	ResendAPIKey string
	FromAddress  string
	ToAddress    string
}

// PipelineConfig holds orchestrator-level run defaults.
type PipelineConfig struct {
	CostCeiling    float64
	MinScore       int
	MaxProspects   int
	MinConnections int
	DefaultsPath   string // empty means use the embedded defaults
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "prospect_pipeline"),
			Password:        getEnv("DB_PASSWORD", "prospect_pipeline"),
			DBName:          getEnv("DB_NAME", "prospect_pipeline"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Storage: S3Config{
			Endpoint:  getEnv("S3_ENDPOINT", ""),
			Bucket:    getEnv("S3_BUCKET", ""),
			Region:    getEnv("S3_REGION", "eu-central"),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
		},
		CRM: CrmConfig{
			BaseURL: getEnv("CRM_BASE_URL", ""),
			APIKey:  getEnv("CRM_API_KEY", ""),
			Timeout: getEnvAsDuration("CRM_TIMEOUT", 15*time.Second),
		},
		Dataset: DatasetFilterConfig{
			BaseURL:   getEnv("DATASET_BASE_URL", ""),
			APIKey:    getEnv("DATASET_API_KEY", ""),
			DatasetID: getEnv("DATASET_ID", ""),
			PollEvery: getEnvAsDuration("DATASET_POLL_EVERY", 5*time.Second),
			PollFor:   getEnvAsDuration("DATASET_POLL_FOR", 8*time.Minute),
		},
		Search: WebSearchConfig{
			BaseURL: getEnv("SEARCH_BASE_URL", ""),
			APIKey:  getEnv("SEARCH_API_KEY", ""),
			Timeout: getEnvAsDuration("SEARCH_TIMEOUT", 10*time.Second),
		},
		Scraper: ScraperConfig{
			Engine:               getEnv("SCRAPER_ENGINE", "actor"),
			ActorBaseURL:         getEnv("SCRAPER_ACTOR_BASE_URL", ""),
			APIKey:               getEnv("SCRAPER_API_KEY", ""),
			MaxScrapeConcurrency: getEnvAsInt("SCRAPER_MAX_CONCURRENCY", 5),
			NavigationTimeout:    getEnvAsDuration("SCRAPER_NAV_TIMEOUT", 30*time.Second),
		},
		Text: GenerativeTextConfig{
			APIKey:  getEnv("ANTHROPIC_API_KEY", ""),
			Model:   getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5"),
			Timeout: getEnvAsDuration("GENERATIVE_TIMEOUT", 60*time.Second),
		},
		Sentry: SentryConfig{
			DSN:         getEnv("SENTRY_DSN", ""),
			Environment: getEnv("SENTRY_ENVIRONMENT", getEnv("SERVER_ENV", "development")),
		},
		Notify: NotifyConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			FromAddress:  getEnv("NOTIFY_FROM_ADDRESS", ""),
			ToAddress:    getEnv("NOTIFY_TO_ADDRESS", ""),
		},
		Pipeline: PipelineConfig{
			CostCeiling:    getEnvAsFloat("PIPELINE_COST_CEILING", 0),
			MinScore:       getEnvAsInt("PIPELINE_MIN_SCORE", 65),
			MaxProspects:   getEnvAsInt("PIPELINE_MAX_PROSPECTS", 10),
			MinConnections: getEnvAsInt("PIPELINE_MIN_CONNECTIONS", 0),
			DefaultsPath:   getEnv("PIPELINE_DEFAULTS_PATH", ""),
		},
	}

	if cfg.Text.APIKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required")
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Addr returns the Redis address
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
