// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.harborchat/config.yaml or ./config.yaml)
//  3. Default values
//
// The Config struct is constructed once at startup, validated immediately,
// and passed by reference into each component. It is never mutated after
// Load returns.
//
// Security: sensitive fields (auth secret, database password inside the URL)
// are masked in MarshalJSON/String so a Config can be logged safely.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Embedding provider identifiers used in Config.EmbedderProvider.
const (
	// EmbedderDeterministic derives a pseudo-embedding from a hash of the
	// input text. Pure, dependency-free, and stable across runs; the default.
	EmbedderDeterministic = "deterministic"

	// EmbedderGemini uses the Gemini embedding API. Requires GEMINI_API_KEY.
	EmbedderGemini = "gemini"
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields, update MarshalJSON.
type Config struct {
	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`

	// HTTP server
	Addr        string   `mapstructure:"addr" json:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`

	// Authentication
	AuthSecret      string `mapstructure:"auth_secret" json:"auth_secret"` // SENSITIVE: masked in MarshalJSON
	TokenTTLMinutes int    `mapstructure:"token_ttl_minutes" json:"token_ttl_minutes"`

	// Storage. An empty DatabaseURL is a valid configuration: the service
	// runs with in-memory stores and the exhaustive similarity index.
	DatabaseURL string `mapstructure:"database_url" json:"database_url"` // SENSITIVE: masked in MarshalJSON

	// Embeddings and retrieval
	EmbedderProvider string  `mapstructure:"embedder_provider" json:"embedder_provider"`
	EmbedderModel    string  `mapstructure:"embedder_model" json:"embedder_model"`
	EmbeddingDim     int     `mapstructure:"embedding_dim" json:"embedding_dim"`
	ChunkSize        int     `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap     int     `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	TopK             int     `mapstructure:"top_k" json:"top_k"`
	MinSimilarity    float64 `mapstructure:"min_similarity" json:"min_similarity"`
	SeedDir          string  `mapstructure:"seed_dir" json:"seed_dir"`

	// Completion provider. Absence of GEMINI_API_KEY is a valid, expected
	// configuration: chat falls back to heuristic synthesis.
	ModelName         string  `mapstructure:"model_name" json:"model_name"`
	Temperature       float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens" json:"max_tokens"`
	LLMTimeoutSeconds int     `mapstructure:"llm_timeout_seconds" json:"llm_timeout_seconds"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".harborchat")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Fail fast on invalid values.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	// Server defaults
	v.SetDefault("addr", ":8080")
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_burst", 60)

	// Auth defaults
	v.SetDefault("token_ttl_minutes", 1440)

	// Embedding and retrieval defaults
	v.SetDefault("embedder_provider", EmbedderDeterministic)
	v.SetDefault("embedder_model", "gemini-embedding-001")
	v.SetDefault("embedding_dim", 384)
	v.SetDefault("chunk_size", 800)
	v.SetDefault("chunk_overlap", 100)
	v.SetDefault("top_k", 3)
	v.SetDefault("min_similarity", 0.1)

	// Completion provider defaults
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("temperature", 0.2)
	v.SetDefault("max_tokens", 1024)
	v.SetDefault("llm_timeout_seconds", 30)
}

// bindEnvVariables binds environment variables explicitly.
// GEMINI_API_KEY is read directly by the llm and embed packages, not via
// Viper; ValidateServe only checks its presence when the Gemini embedder is
// selected (the completion provider treats absence as "unconfigured").
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("log_level", "HARBORCHAT_LOG_LEVEL")
	mustBind("log_json", "HARBORCHAT_LOG_JSON")

	mustBind("addr", "HARBORCHAT_ADDR")
	mustBind("cors_origins", "HARBORCHAT_CORS_ORIGINS")
	mustBind("trust_proxy", "HARBORCHAT_TRUST_PROXY")
	mustBind("rate_burst", "HARBORCHAT_RATE_BURST")

	mustBind("auth_secret", "HARBORCHAT_AUTH_SECRET")
	mustBind("token_ttl_minutes", "HARBORCHAT_TOKEN_TTL_MINUTES")

	mustBind("database_url", "DATABASE_URL")

	mustBind("embedder_provider", "HARBORCHAT_EMBEDDER_PROVIDER")
	mustBind("embedder_model", "HARBORCHAT_EMBEDDER_MODEL")
	mustBind("embedding_dim", "HARBORCHAT_EMBEDDING_DIM")
	mustBind("chunk_size", "HARBORCHAT_CHUNK_SIZE")
	mustBind("chunk_overlap", "HARBORCHAT_CHUNK_OVERLAP")
	mustBind("top_k", "HARBORCHAT_TOP_K")
	mustBind("min_similarity", "HARBORCHAT_MIN_SIMILARITY")
	mustBind("seed_dir", "HARBORCHAT_SEED_DIR")

	mustBind("model_name", "HARBORCHAT_MODEL_NAME")
	mustBind("temperature", "HARBORCHAT_TEMPERATURE")
	mustBind("max_tokens", "HARBORCHAT_MAX_TOKENS")
	mustBind("llm_timeout_seconds", "HARBORCHAT_LLM_TIMEOUT_SECONDS")
}

// SlogLevel maps the configured log level string to a slog.Level. Unknown
// values fall back to Info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Short secrets are fully
// masked to prevent substring matching; longer ones keep the first and last
// two characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// maskDatabaseURL strips the password from a database URL for logging.
func maskDatabaseURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return maskSecret(raw)
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword(u.User.Username(), maskedValue)
	}
	return u.String()
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.AuthSecret = maskSecret(a.AuthSecret)
	a.DatabaseURL = maskDatabaseURL(a.DatabaseURL)
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
