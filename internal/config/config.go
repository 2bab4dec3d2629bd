// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (./config.yaml or ~/.ai-platform-rag/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Storage: PostgreSQL connection (see storage.go)
//   - Embedder: embedding endpoint, model and vector dimension
//   - Engines: per-category answer-engine bindings
//   - Router: escalation knobs and the degraded-answer suffix
//
// Sensitive data (passwords, API keys) is never logged; MarshalJSON masks
// it explicitly. Validation uses sentinel errors checkable with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidEmbedder indicates the embedder configuration is invalid.
	ErrInvalidEmbedder = errors.New("invalid embedder configuration")

	// ErrInvalidEngineBinding indicates an answer-engine binding is incomplete.
	ErrInvalidEngineBinding = errors.New("invalid engine binding")

	// ErrInvalidRouter indicates the router configuration is out of range.
	ErrInvalidRouter = errors.New("invalid router configuration")
)

// EmbedderConfig configures the embedding endpoint used to vectorize
// sections and queries.
type EmbedderConfig struct {
	BaseURL   string `mapstructure:"base_url" json:"base_url"`
	APIKey    string `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON
	Model     string `mapstructure:"model" json:"model"`
	Dimension int    `mapstructure:"dimension" json:"dimension"`
}

// EngineBinding configures one answer-engine endpoint. Each knowledge-base
// category gets its own binding.
type EngineBinding struct {
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	APIKey  string `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON
}

// RouterConfig tunes the two-tier answer protocol.
type RouterConfig struct {
	MinAnswerLength int           `mapstructure:"min_answer_length" json:"min_answer_length"`
	FallbackSuffix  string        `mapstructure:"fallback_suffix" json:"fallback_suffix"`
	EngineTimeout   time.Duration `mapstructure:"engine_timeout" json:"engine_timeout"`
	MaxRetries      int           `mapstructure:"max_retries" json:"max_retries"`
	RetryBaseDelay  time.Duration `mapstructure:"retry_base_delay" json:"retry_base_delay"`
	RetryMultiplier float64       `mapstructure:"retry_multiplier" json:"retry_multiplier"`
}

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields, update MarshalJSON.
type Config struct {
	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	Embedder EmbedderConfig `mapstructure:"embedder" json:"embedder"`

	// Engines maps a knowledge-base category name to its answer engine.
	Engines map[string]EngineBinding `mapstructure:"engines" json:"engines"`

	Router RouterConfig `mapstructure:"router" json:"router"`

	// Search defaults
	SearchLimit         int     `mapstructure:"search_limit" json:"search_limit"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" json:"similarity_threshold"`

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".ai-platform-rag")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(configDir)

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine, defaults and env cover dev setups.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// PostgreSQL defaults (matching docker-compose.yml)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "rag")
	v.SetDefault("postgres_password", "rag_dev_password")
	v.SetDefault("postgres_db_name", "rag")
	v.SetDefault("postgres_ssl_mode", "disable")

	// Embedder defaults
	v.SetDefault("embedder.base_url", "http://localhost:11434/v1")
	v.SetDefault("embedder.model", "bge-m3")
	v.SetDefault("embedder.dimension", 1024)

	// Router defaults
	v.SetDefault("router.min_answer_length", 20)
	v.SetDefault("router.engine_timeout", 75*time.Second)
	v.SetDefault("router.max_retries", 3)
	v.SetDefault("router.retry_base_delay", time.Second)
	v.SetDefault("router.retry_multiplier", 2.0)

	// Search defaults
	v.SetDefault("search_limit", 5)
	v.SetDefault("similarity_threshold", 0.3)

	// Logging defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// bindEnvVariables binds environment variables explicitly. Hardcoded keys
// cannot fail to bind; a panic here is a bug.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("embedder.base_url", "RAG_EMBEDDER_BASE_URL")
	mustBind("embedder.api_key", "RAG_EMBEDDER_API_KEY")
	mustBind("embedder.model", "RAG_EMBEDDER_MODEL")
	mustBind("log_level", "RAG_LOG_LEVEL")
	mustBind("log_json", "RAG_LOG_JSON")

	// NOTE: DATABASE_URL is read directly in parseDatabaseURL, not via viper.
}

// maskedValue is the placeholder for masked sensitive data. Full-width
// blocks avoid accidental substring matches against real secret content.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Secrets of 8 characters or
// fewer are fully masked; longer ones keep the first and last 2 characters
// for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field
// masking: PostgresPassword, Embedder.APIKey, and every engine binding's
// APIKey.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.Embedder.APIKey = maskSecret(a.Embedder.APIKey)

	if len(a.Engines) > 0 {
		masked := make(map[string]EngineBinding, len(a.Engines))
		for name, binding := range a.Engines {
			binding.APIKey = maskSecret(binding.APIKey)
			masked[name] = binding
		}
		a.Engines = masked
	}

	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
