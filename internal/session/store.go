package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rickgao/kospi-sync/internal/config"
	"github.com/rickgao/kospi-sync/internal/database"
)

// Store loads and saves session state.
type Store interface {
	// Load returns the state for id, or ErrNotFound.
	Load(ctx context.Context, id string) (State, error)

	// Latest returns the most recently saved state, or ErrNotFound.
	Latest(ctx context.Context) (State, error)

	// Save inserts or replaces the state for s.ID.
	Save(ctx context.Context, s State) error

	Close() error
}

// Open creates the Store selected by cfg.Backend. The "none" backend
// returns a nil Store, which the Manager treats as in-memory only.
func Open(ctx context.Context, cfg config.SessionConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case "", "sqlite":
		s, err := NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("session store opened", "backend", "sqlite", "path", cfg.SQLitePath)
		return s, nil

	case "postgres":
		pool, err := database.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connect session database: %w", err)
		}
		s, err := NewPostgresStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("session store opened",
			"backend", "postgres",
			"host", cfg.Postgres.Host,
			"database", cfg.Postgres.Name,
		)
		return s, nil

	case "none":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
}
