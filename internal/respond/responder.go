// Package respond produces the final chat answer. Each request walks a small
// state machine: retrieve context, compose an answer with the completion
// model when one is configured, and otherwise synthesize a deterministic
// answer from the retrieved chunks. Completion failures degrade the answer
// quality, never the request.
package respond

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harborchat/harborchat/internal/history"
	"github.com/harborchat/harborchat/internal/llm"
	"github.com/harborchat/harborchat/internal/log"
	"github.com/harborchat/harborchat/internal/retrieve"
)

// state tracks a request's progress through the response pipeline.
type state string

const (
	stateStart          state = "start"
	stateRetrieving     state = "retrieving"
	stateContextFound   state = "context_found"
	stateNoContext      state = "no_context"
	stateComposing      state = "composing"
	stateLLMSucceeded   state = "llm_succeeded"
	stateLLMUnavailable state = "llm_unavailable"
	stateLLMFailed      state = "llm_failed"
	stateFinalized      state = "finalized"
)

// Retriever is the slice of the retrieval layer the responder needs.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]retrieve.Result, error)
}

// Responder answers chat messages and records the exchanges.
type Responder struct {
	retriever Retriever
	provider  llm.Provider // nil when no completion provider is configured
	hist      history.Store
	topK      int
	logger    log.Logger
}

// New creates a responder. provider may be nil; the responder then always
// answers heuristically.
func New(retriever Retriever, provider llm.Provider, hist history.Store, topK int, logger log.Logger) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{
		retriever: retriever,
		provider:  provider,
		hist:      hist,
		topK:      topK,
		logger:    logger.With("component", "responder"),
	}
}

// Respond answers message for the given principal, appends the exchange to
// the history store and returns it. Completion-provider failures are
// absorbed by the heuristic fallback; the only errors surfaced are input
// errors and retrieval-infrastructure failures.
func (r *Responder) Respond(ctx context.Context, principalID, message string) (history.Exchange, error) {
	reqLog := r.logger.With("principal_id", principalID)
	cur := stateStart

	cur = r.transition(reqLog, cur, stateRetrieving)
	results, err := r.retriever.Retrieve(ctx, message, r.topK)
	if err != nil {
		return history.Exchange{}, fmt.Errorf("retrieving context: %w", err)
	}

	if len(results) > 0 {
		cur = r.transition(reqLog, cur, stateContextFound)
	} else {
		cur = r.transition(reqLog, cur, stateNoContext)
	}

	cur = r.transition(reqLog, cur, stateComposing)
	answer, cited, cur := r.compose(ctx, reqLog, cur, message, results)
	r.transition(reqLog, cur, stateFinalized)

	ex := history.Exchange{
		ID:            uuid.NewString(),
		PrincipalID:   principalID,
		Question:      message,
		Answer:        answer,
		CitedChunkIDs: cited,
		CreatedAt:     time.Now().UTC(),
	}
	if err := r.hist.Append(ctx, ex); err != nil {
		return history.Exchange{}, fmt.Errorf("recording exchange: %w", err)
	}
	return ex, nil
}

// compose produces the answer text and the ids of the chunks it was grounded
// on, trying the completion provider first. The provider sees every retrieved
// chunk in its prompt, so a completion cites them all; the heuristic only
// excerpts the top few and cites exactly those. The provider call holds no
// locks and is bounded by the provider's own timeout; any failure falls
// through to the pure heuristic synthesis.
func (r *Responder) compose(ctx context.Context, reqLog log.Logger, cur state, message string, results []retrieve.Result) (string, []string, state) {
	if r.provider == nil {
		cur = r.transition(reqLog, cur, stateLLMUnavailable)
		return synthesize(message, results), citedIDs(results, excerptCount), cur
	}

	answer, err := r.provider.Complete(ctx, buildPrompt(message, results))
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			// Caller is gone; still finish with the pure fallback so the
			// exchange gets recorded consistently.
			reqLog.Debug("caller canceled during completion")
		}
		cur = r.transition(reqLog, cur, stateLLMFailed)
		reqLog.Warn("completion failed, answering heuristically", "error", err)
		return synthesize(message, results), citedIDs(results, excerptCount), cur
	}

	cur = r.transition(reqLog, cur, stateLLMSucceeded)
	return answer, citedIDs(results, len(results)), cur
}

func (r *Responder) transition(reqLog log.Logger, from, to state) state {
	reqLog.Debug("state transition", "from", string(from), "to", string(to))
	return to
}

// buildPrompt assembles the grounding prompt for the completion model.
func buildPrompt(message string, results []retrieve.Result) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant answering questions about the company.\n")
	b.WriteString("Answer using only the context below. If the context does not contain the answer, say so.\n\n")
	if len(results) == 0 {
		b.WriteString("Context: (none available)\n")
	} else {
		b.WriteString("Context:\n")
		for i, res := range results {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, res.Chunk.Text)
		}
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(message)
	return b.String()
}

func citedIDs(results []retrieve.Result, n int) []string {
	n = min(len(results), n)
	ids := make([]string, 0, n)
	for _, res := range results[:n] {
		ids = append(ids, res.Chunk.ID)
	}
	return ids
}
