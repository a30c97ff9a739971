// Package llm wraps the completion model behind a one-method Provider
// interface. Presence is decided once at startup: New reports whether a
// provider is configured, and the responder treats the absence as a normal
// mode rather than probing for it with trial calls.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"google.golang.org/genai"

	"github.com/harborchat/harborchat/internal/config"
	"github.com/harborchat/harborchat/internal/log"
)

// ErrUnavailable indicates the completion provider could not produce a
// response. Callers fall back rather than surfacing it.
var ErrUnavailable = errors.New("completion provider unavailable")

// Provider produces a completion for a prompt.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Client calls the Gemini API with a bounded timeout and transient-error
// retry.
type Client struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
	timeout     time.Duration
	retry       RetryConfig
	logger      log.Logger
}

// New creates the completion client. The second return value reports whether
// a provider is configured at all: without GEMINI_API_KEY it returns
// (nil, false, nil), which is a valid degraded mode, not an error.
func New(ctx context.Context, cfg *config.Config, logger log.Logger) (*Client, bool, error) {
	if os.Getenv("GEMINI_API_KEY") == "" {
		return nil, false, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, false, fmt.Errorf("creating genai client: %w", err)
	}

	return &Client{
		client:      client,
		model:       cfg.ModelName,
		temperature: cfg.Temperature,
		maxTokens:   int32(cfg.MaxTokens), // #nosec G115 -- bounded by config validation
		timeout:     time.Duration(cfg.LLMTimeoutSeconds) * time.Second,
		retry:       DefaultRetryConfig(),
		logger:      logger.With("component", "llm"),
	}, true, nil
}

// Complete generates a response for prompt. The call is bounded by the
// configured timeout regardless of the caller's deadline.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	genCfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.temperature),
		MaxOutputTokens: c.maxTokens,
	}

	resp, err := c.generateWithRetry(ctx, prompt, genCfg)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty completion from %s", ErrUnavailable, c.model)
	}
	return text, nil
}

func (c *Client) generateWithRetry(ctx context.Context, prompt string, genCfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var lastErr error
	delay := c.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), genCfg)
		if err == nil {
			c.logger.Debug("completion generated",
				"model", c.model,
				"attempts", attempt+1,
				"elapsed", time.Since(start))
			return resp, nil
		}

		lastErr = err
		if !retryableError(err) {
			return nil, fmt.Errorf("generate content: %w", err)
		}
		if attempt == c.retry.MaxRetries {
			break
		}

		c.logger.Debug("retrying after error",
			"attempt", attempt+1,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, c.retry.MaxInterval)
		}
	}

	return nil, fmt.Errorf("generate content after %d retries (elapsed: %v): %w",
		c.retry.MaxRetries, time.Since(start), lastErr)
}
