package embed

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/harborchat/harborchat/internal/log"
)

// Gemini embeds text via the Gemini embedding API. The model supports
// truncation to smaller dimensions via OutputDimensionality, so the
// configured dimension is enforced server-side.
type Gemini struct {
	client *genai.Client
	model  string
	dim    int
	logger log.Logger
}

// NewGemini creates a Gemini embedder. The API key is read from the
// GEMINI_API_KEY environment variable by the genai client.
func NewGemini(ctx context.Context, model string, dim int, logger log.Logger) (*Gemini, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  model,
		dim:    dim,
		logger: logger,
	}, nil
}

// Embed returns the embedding for text. Errors propagate unchanged: an
// unreachable embedding provider is a service error, never a silent
// degradation.
func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.client.Models.EmbedContent(ctx, g.model,
		genai.Text(text),
		&genai.EmbedContentConfig{
			OutputDimensionality: genai.Ptr(int32(g.dim)), // #nosec G115 -- dim validated in config
		})
	if err != nil {
		return nil, fmt.Errorf("embedding text with %s: %w", g.model, err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("empty embedding returned by %s", g.model)
	}

	vec := resp.Embeddings[0].Values
	if len(vec) != g.dim {
		return nil, fmt.Errorf("embedding dimension %d from %s, want %d", len(vec), g.model, g.dim)
	}

	g.logger.Debug("embedded text", "model", g.model, "text_length", len(text))
	return vec, nil
}

// Dimension returns the configured vector length.
func (g *Gemini) Dimension() int {
	return g.dim
}
