package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/harborchat/harborchat/internal/history"
	"github.com/harborchat/harborchat/internal/respond"
	"github.com/harborchat/harborchat/internal/retrieve"
)

type chatHandler struct {
	responder *respond.Responder
	history   history.Store
	logger    *slog.Logger
}

type chatRequest struct {
	Message string `json:"message"`
}

// send answers one chat message. Completion-provider failures never reach
// this handler; the responder degrades to its heuristic answer instead.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	principalID, ok := principalIDFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return
	}

	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid request body", h.logger)
		return
	}

	ex, err := h.responder.Respond(r.Context(), principalID, req.Message)
	if err != nil {
		if errors.Is(err, retrieve.ErrEmptyQuery) {
			WriteError(w, http.StatusBadRequest, "empty_query", "message is required", h.logger)
			return
		}
		h.logger.Error("chat failed", "error", err, "request_id", requestIDFromContext(r.Context()))
		WriteError(w, http.StatusBadGateway, "chat_failed", "failed to answer", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, ex)
}

// listHistory returns the caller's exchanges, oldest first.
func (h *chatHandler) listHistory(w http.ResponseWriter, r *http.Request) {
	principalID, ok := principalIDFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return
	}

	exchanges, err := h.history.ListByPrincipal(r.Context(), principalID)
	if err != nil {
		h.logger.Error("listing history failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "failed to list history", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"exchanges": exchanges})
}
