// Package app wires the application together: configuration in, a ready
// HTTP handler out. Backend selection happens here once at startup — a
// reachable database upgrades the index, history and exchange storage to
// Postgres; otherwise everything runs in memory.
package app

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborchat/harborchat/internal/auth"
	"github.com/harborchat/harborchat/internal/config"
	"github.com/harborchat/harborchat/internal/docstore"
	"github.com/harborchat/harborchat/internal/embed"
	"github.com/harborchat/harborchat/internal/history"
	"github.com/harborchat/harborchat/internal/index"
	"github.com/harborchat/harborchat/internal/log"
	"github.com/harborchat/harborchat/internal/respond"
	"github.com/harborchat/harborchat/internal/retrieve"
)

// App is the assembled application.
type App struct {
	Config *config.Config
	Logger log.Logger

	Pool      *pgxpool.Pool // nil when running without a database
	Embedder  embed.Embedder
	Index     index.Index
	Store     *docstore.Store
	Retriever *retrieve.Retriever
	Responder *respond.Responder
	History   history.Store
	Auth      *auth.Service
}

// Close releases held resources.
func (a *App) Close() error {
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Info("database pool closed")
	}
	return nil
}
