package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	AuthBackendMock     = "mock"
	AuthBackendPostgres = "postgres"
)

type PredictionConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type AnalyticsConfig struct {
	// BaseURL of the remote analytics summary. Empty falls back to local counters only.
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type AuthConfig struct {
	Backend string `toml:"backend"`
	// StorePath is the sqlite file backing the mock backend. Empty keeps everything in memory.
	StorePath string `toml:"store_path"`
}

type DatasetConfig struct {
	Path string `toml:"path"`
}

type Config struct {
	Port        string           `toml:"port"`
	DatabaseURL string           `toml:"database_url"`
	EnableDB    bool             `toml:"enable_db"`
	GinMode     string           `toml:"gin_mode"`
	LogLevel    string           `toml:"log_level"`
	Prediction  PredictionConfig `toml:"prediction"`
	Analytics   AnalyticsConfig  `toml:"analytics"`
	Auth        AuthConfig       `toml:"auth"`
	Dataset     DatasetConfig    `toml:"dataset"`
}

func (p PredictionConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

func (a AnalyticsConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

func Default() *Config {
	return &Config{
		Port:     "8080",
		GinMode:  "release",
		LogLevel: "info",
		Prediction: PredictionConfig{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 30,
		},
		Analytics: AnalyticsConfig{
			TimeoutSeconds: 10,
		},
		Auth: AuthConfig{
			Backend: AuthBackendMock,
		},
	}
}

// Load reads .env (if present), then the optional TOML file named by CONFIG_PATH,
// then environment overrides. Environment always wins over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse TOML: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.GinMode = getEnv("GIN_MODE", cfg.GinMode)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	if v := os.Getenv("ENABLE_DB"); v != "" {
		cfg.EnableDB = strings.EqualFold(v, "true")
	}

	cfg.Prediction.BaseURL = getEnv("PREDICTION_URL", cfg.Prediction.BaseURL)
	cfg.Prediction.TimeoutSeconds = getEnvInt("PREDICTION_TIMEOUT_SECONDS", cfg.Prediction.TimeoutSeconds)
	cfg.Analytics.BaseURL = getEnv("ANALYTICS_URL", cfg.Analytics.BaseURL)
	cfg.Analytics.TimeoutSeconds = getEnvInt("ANALYTICS_TIMEOUT_SECONDS", cfg.Analytics.TimeoutSeconds)
	cfg.Auth.Backend = strings.ToLower(getEnv("AUTH_BACKEND", cfg.Auth.Backend))
	cfg.Auth.StorePath = getEnv("AUTH_STORE_PATH", cfg.Auth.StorePath)
	cfg.Dataset.Path = getEnv("DATASET_PATH", cfg.Dataset.Path)
}

func (c *Config) Validate() error {
	if c.EnableDB && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when ENABLE_DB=true")
	}
	switch c.Auth.Backend {
	case AuthBackendMock:
	case AuthBackendPostgres:
		if !c.EnableDB {
			return fmt.Errorf("auth backend %q requires ENABLE_DB=true", c.Auth.Backend)
		}
	default:
		return fmt.Errorf("unsupported auth backend: %s", c.Auth.Backend)
	}
	if c.Prediction.BaseURL == "" {
		return fmt.Errorf("PREDICTION_URL is required")
	}
	if c.Prediction.TimeoutSeconds <= 0 {
		return fmt.Errorf("prediction timeout must be positive, got %d", c.Prediction.TimeoutSeconds)
	}
	if c.Analytics.TimeoutSeconds <= 0 {
		return fmt.Errorf("analytics timeout must be positive, got %d", c.Analytics.TimeoutSeconds)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}
