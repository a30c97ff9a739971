package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/harborchat/harborchat/internal/docstore"
	"github.com/harborchat/harborchat/internal/retrieve"
)

type knowledgeHandler struct {
	store     *docstore.Store
	retriever *retrieve.Retriever
	defaultK  int
	logger    *slog.Logger
}

type ingestRequest struct {
	Text      string `json:"text"`
	SourceRef string `json:"source_ref"`
}

type ingestResponse struct {
	ChunkIDs []string `json:"chunk_ids"`
}

// ingest chunks, embeds and indexes a document.
func (h *knowledgeHandler) ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid request body", h.logger)
		return
	}

	ids, err := h.store.Ingest(r.Context(), req.Text, req.SourceRef)
	if err != nil {
		if errors.Is(err, docstore.ErrEmptyInput) {
			WriteError(w, http.StatusBadRequest, "empty_input", "document text is empty", h.logger)
			return
		}
		// Embedding-provider failures land here: upstream dependency, not
		// client fault.
		h.logger.Error("ingest failed", "error", err, "source_ref", req.SourceRef)
		WriteError(w, http.StatusBadGateway, "ingest_failed", "failed to embed document", h.logger)
		return
	}

	WriteJSON(w, http.StatusCreated, ingestResponse{ChunkIDs: ids})
}

// retrieveChunks is the diagnostic retrieval path: raw results with scores,
// no answer synthesis.
func (h *knowledgeHandler) retrieveChunks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")

	k := h.defaultK
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			WriteError(w, http.StatusBadRequest, "bad_request", "k must be a positive integer", h.logger)
			return
		}
		k = parsed
	}

	results, err := h.retriever.Retrieve(r.Context(), query, k)
	if err != nil {
		if errors.Is(err, retrieve.ErrEmptyQuery) {
			WriteError(w, http.StatusBadRequest, "empty_query", "query is required", h.logger)
			return
		}
		h.logger.Error("retrieval failed", "error", err)
		WriteError(w, http.StatusBadGateway, "retrieval_failed", "failed to retrieve", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"results": results})
}

// reindex rebuilds the similarity index from the document store.
func (h *knowledgeHandler) reindex(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.Reindex(r.Context())
	if err != nil {
		h.logger.Error("reindex failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "reindex_failed", "failed to rebuild index", h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"indexed": n})
}
