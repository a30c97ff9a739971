package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborchat/harborchat/internal/auth"
	"github.com/harborchat/harborchat/internal/config"
	"github.com/harborchat/harborchat/internal/database"
	"github.com/harborchat/harborchat/internal/docstore"
	"github.com/harborchat/harborchat/internal/embed"
	"github.com/harborchat/harborchat/internal/history"
	"github.com/harborchat/harborchat/internal/index"
	"github.com/harborchat/harborchat/internal/llm"
	"github.com/harborchat/harborchat/internal/log"
	"github.com/harborchat/harborchat/internal/respond"
	"github.com/harborchat/harborchat/internal/retrieve"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, err := providePool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	embedder, err := provideEmbedder(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Embedder = embedder

	idx, err := provideIndex(ctx, pool, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Index = idx

	a.Store = docstore.New(embedder, idx, cfg.ChunkSize, cfg.ChunkOverlap, logger)
	a.Retriever = retrieve.New(embedder, idx, a.Store, float32(cfg.MinSimilarity), logger)
	a.History = provideHistory(pool)

	provider, configured, err := llm.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating completion client: %w", err)
	}
	if !configured {
		logger.Debug("no completion provider configured, answering heuristically")
	}

	// A nil interface, not a typed nil, when unconfigured.
	var p llm.Provider
	if configured {
		p = provider
	}
	a.Responder = respond.New(a.Retriever, p, a.History, cfg.TopK, logger)

	a.Auth = auth.NewService(cfg.AuthSecret, time.Duration(cfg.TokenTTLMinutes)*time.Minute)

	if cfg.SeedDir != "" {
		if err := seedCorpus(ctx, a.Store, cfg.SeedDir, logger); err != nil {
			return nil, fmt.Errorf("seeding corpus: %w", err)
		}
	}

	return a, nil
}

// providePool connects to Postgres and runs migrations. No DATABASE_URL is a
// valid configuration: the app runs fully in memory. A configured but
// unreachable database is a startup failure, not a silent downgrade.
func providePool(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		logger.Info("no database configured, using in-memory storage")
		return nil, nil
	}

	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	logger.Info("database connected")
	return pool, nil
}

// provideEmbedder selects the embedding backend from config.
func provideEmbedder(ctx context.Context, cfg *config.Config, logger log.Logger) (embed.Embedder, error) {
	switch cfg.EmbedderProvider {
	case config.EmbedderGemini:
		embedder, err := embed.NewGemini(ctx, cfg.EmbedderModel, cfg.EmbeddingDim, logger)
		if err != nil {
			return nil, fmt.Errorf("creating gemini embedder: %w", err)
		}
		logger.Info("using gemini embedder", "model", cfg.EmbedderModel, "dim", cfg.EmbeddingDim)
		return embedder, nil
	default:
		logger.Info("using deterministic embedder", "dim", cfg.EmbeddingDim)
		return embed.NewDeterministic(cfg.EmbeddingDim), nil
	}
}

// provideIndex picks the index backend: pgvector when a pool exists, the
// exhaustive in-memory scan otherwise. Selected once; never switches mid-run.
func provideIndex(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, logger log.Logger) (index.Index, error) {
	if pool == nil {
		logger.Info("index backend: in-memory exhaustive")
		return index.NewMemory(logger), nil
	}

	idx, err := index.NewPostgres(ctx, pool, cfg.EmbeddingDim, logger)
	if err != nil {
		return nil, fmt.Errorf("creating pgvector index: %w", err)
	}
	logger.Info("index backend: pgvector HNSW", "dim", cfg.EmbeddingDim)
	return idx, nil
}

func provideHistory(pool *pgxpool.Pool) history.Store {
	if pool == nil {
		return history.NewMemory()
	}
	return history.NewPostgres(pool)
}

// seedCorpus ingests every .txt and .md file in dir. Missing directories are
// tolerated so a default seed_dir does not break fresh checkouts.
func seedCorpus(ctx context.Context, store *docstore.Store, dir string, logger log.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("seed directory does not exist, skipping", "dir", dir)
			return nil
		}
		return fmt.Errorf("reading seed directory: %w", err)
	}

	seeded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".txt" && ext != ".md" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator's seed_dir
		if err != nil {
			return fmt.Errorf("reading seed file %s: %w", path, err)
		}

		if _, err := store.Ingest(ctx, string(data), entry.Name()); err != nil {
			return fmt.Errorf("ingesting seed file %s: %w", path, err)
		}
		seeded++
	}

	logger.Info("corpus seeded", "dir", dir, "files", seeded)
	return nil
}
