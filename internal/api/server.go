// Package api exposes the chatbot over HTTP: JSON handlers on a stdlib
// ServeMux behind a recovery/request-id/logging/CORS/rate-limit middleware
// chain, with bearer-token auth enforced per route group.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborchat/harborchat/internal/auth"
	"github.com/harborchat/harborchat/internal/docstore"
	"github.com/harborchat/harborchat/internal/history"
	"github.com/harborchat/harborchat/internal/respond"
	"github.com/harborchat/harborchat/internal/retrieve"
)

// ServerConfig contains the dependencies for the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Auth        *auth.Service       // Required
	Store       *docstore.Store     // Required
	Retriever   *retrieve.Retriever // Required
	Responder   *respond.Responder  // Required
	History     history.Store       // Required
	Pool        *pgxpool.Pool       // Optional: nil disables pool stats in /ready
	CORSOrigins []string            // Allowed origins; "*" allows any
	TrustProxy  bool                // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst   int                 // Rate limiter burst per IP (0 = default 60)
	TopK        int                 // Default k for the retrieval endpoint
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates the API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	switch {
	case cfg.Auth == nil:
		return nil, errors.New("auth service is required")
	case cfg.Store == nil:
		return nil, errors.New("document store is required")
	case cfg.Retriever == nil:
		return nil, errors.New("retriever is required")
	case cfg.Responder == nil:
		return nil, errors.New("responder is required")
	case cfg.History == nil:
		return nil, errors.New("history store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ah := &authHandler{service: cfg.Auth, logger: logger}
	kh := &knowledgeHandler{
		store:     cfg.Store,
		retriever: cfg.Retriever,
		defaultK:  cfg.TopK,
		logger:    logger,
	}
	ch := &chatHandler{responder: cfg.Responder, history: cfg.History, logger: logger}

	authed := requireAuth(cfg.Auth, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/auth/signup", ah.signup)
	mux.HandleFunc("POST /api/v1/auth/token", ah.token)
	mux.Handle("GET /api/v1/auth/me", authed(http.HandlerFunc(ah.me)))

	mux.Handle("POST /api/v1/ingest", authed(http.HandlerFunc(kh.ingest)))
	mux.Handle("GET /api/v1/retrieve", authed(http.HandlerFunc(kh.retrieveChunks)))
	mux.Handle("POST /api/v1/reindex", authed(http.HandlerFunc(kh.reindex)))

	mux.Handle("POST /api/v1/chat", authed(http.HandlerFunc(ch.send)))
	mux.Handle("GET /api/v1/chat/history", authed(http.HandlerFunc(ch.listHistory)))

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newIPLimiter(burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log
	// attributes. CORS must be before RateLimit so preflight OPTIONS gets
	// proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		handler.ServeHTTP(w, r)
	})

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
