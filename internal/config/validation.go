package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidEmbedderProvider indicates the embedder provider is not supported.
	ErrInvalidEmbedderProvider = errors.New("invalid embedder provider")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidEmbeddingDim indicates the embedding dimension is out of range.
	ErrInvalidEmbeddingDim = errors.New("invalid embedding dimension")

	// ErrInvalidChunking indicates the chunk size/overlap combination is invalid.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidTopK indicates the top-k default is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidMinSimilarity indicates the relevance floor is outside [-1, 1].
	ErrInvalidMinSimilarity = errors.New("invalid min_similarity")

	// ErrInvalidTimeout indicates a timeout value is out of range.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidDatabaseURL indicates the database URL cannot be parsed.
	ErrInvalidDatabaseURL = errors.New("invalid database URL")

	// ErrMissingAuthSecret indicates the auth secret is not set.
	ErrMissingAuthSecret = errors.New("missing auth secret")

	// ErrInvalidAuthSecret indicates the auth secret is too short.
	ErrInvalidAuthSecret = errors.New("invalid auth secret")

	// ErrInvalidTokenTTL indicates the token lifetime is out of range.
	ErrInvalidTokenTTL = errors.New("invalid token TTL")
)

// Embedding dimension limits. The lower bound rejects dimensions too small to
// be meaningful for similarity; the upper bound caps memory per entry.
const (
	MinEmbeddingDim = 8
	MaxEmbeddingDim = 4096
)

// MinAuthSecretLength is the minimum byte length for the token signing secret.
const MinAuthSecretLength = 16

// Validate checks configuration values that apply in every mode.
// Returns sentinel errors wrapped with context, checkable via errors.Is.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.EmbedderProvider {
	case EmbedderDeterministic, EmbedderGemini:
	default:
		return fmt.Errorf("%w: %q (must be %q or %q)",
			ErrInvalidEmbedderProvider, c.EmbedderProvider, EmbedderDeterministic, EmbedderGemini)
	}

	if c.EmbeddingDim < MinEmbeddingDim || c.EmbeddingDim > MaxEmbeddingDim {
		return fmt.Errorf("%w: %d (must be in [%d, %d])",
			ErrInvalidEmbeddingDim, c.EmbeddingDim, MinEmbeddingDim, MaxEmbeddingDim)
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size %d must be positive", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d must be in [0, chunk_size)", ErrInvalidChunking, c.ChunkOverlap)
	}

	if c.TopK < 1 || c.TopK > 100 {
		return fmt.Errorf("%w: %d (must be in [1, 100])", ErrInvalidTopK, c.TopK)
	}

	if c.MinSimilarity < -1 || c.MinSimilarity > 1 {
		return fmt.Errorf("%w: %v (cosine similarity range is [-1, 1])", ErrInvalidMinSimilarity, c.MinSimilarity)
	}

	if c.LLMTimeoutSeconds < 1 || c.LLMTimeoutSeconds > 600 {
		return fmt.Errorf("%w: llm_timeout_seconds %d (must be in [1, 600])", ErrInvalidTimeout, c.LLMTimeoutSeconds)
	}

	if c.DatabaseURL != "" {
		u, err := url.Parse(c.DatabaseURL)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDatabaseURL, err)
		}
		if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			return fmt.Errorf("%w: scheme %q (must be postgres:// or postgresql://)", ErrInvalidDatabaseURL, u.Scheme)
		}
	}

	return nil
}

// ValidateServe checks additional requirements for serve mode.
// Token signing needs a real secret, and the Gemini embedder needs its key.
// The completion provider is deliberately NOT checked here: a missing
// GEMINI_API_KEY only disables LLM answers, it never blocks startup.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.AuthSecret == "" {
		return fmt.Errorf("%w: set HARBORCHAT_AUTH_SECRET", ErrMissingAuthSecret)
	}
	if len(c.AuthSecret) < MinAuthSecretLength {
		return fmt.Errorf("%w: need at least %d bytes, got %d",
			ErrInvalidAuthSecret, MinAuthSecretLength, len(c.AuthSecret))
	}

	if c.TokenTTLMinutes < 1 || c.TokenTTLMinutes > 7*24*60 {
		return fmt.Errorf("%w: %d minutes (must be in [1, 10080])", ErrInvalidTokenTTL, c.TokenTTLMinutes)
	}

	// The Gemini embedder is on the ingest path; unlike the completion
	// provider it cannot degrade gracefully, so fail fast.
	if c.EmbedderProvider == EmbedderGemini && os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY required for embedder_provider=gemini", ErrMissingAPIKey)
	}

	return nil
}
