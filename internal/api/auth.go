package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/harborchat/harborchat/internal/auth"
)

type authHandler struct {
	service *auth.Service
	logger  *slog.Logger
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// signup registers a new principal and returns it without credentials.
func (h *authHandler) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid request body", h.logger)
		return
	}

	p, err := h.service.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrPrincipalExists):
			WriteError(w, http.StatusConflict, "principal_exists", "email already registered", h.logger)
		case errors.Is(err, auth.ErrInvalidCredentials):
			WriteError(w, http.StatusBadRequest, "bad_request", "email and password are required", h.logger)
		default:
			WriteError(w, http.StatusInternalServerError, "internal_error", "signup failed", h.logger)
		}
		return
	}

	WriteJSON(w, http.StatusCreated, p)
}

// token exchanges email/password for a bearer token.
func (h *authHandler) token(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid request body", h.logger)
		return
	}

	token, expiresAt, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		// One answer for unknown email and wrong password.
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
	})
}

// me returns the authenticated principal.
func (h *authHandler) me(w http.ResponseWriter, r *http.Request) {
	principalID, ok := principalIDFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return
	}

	p, err := h.service.Get(r.Context(), principalID)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "principal no longer exists", h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}
