package history

import (
	"fmt"
	"os"
	"path/filepath"

	"autopost-go/internal/agent"
	"autopost-go/internal/config"
)

// NewStoreFromConfig creates a HistoryStore based on the history config type.
// The sqlite backend is migrated to the latest schema on open.
func NewStoreFromConfig(cfg config.HistoryConfig) (agent.HistoryStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite", "":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("sqlite history requires data_dir to be set")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating history data directory: %w", err)
		}
		store, err := NewSQLiteStore(filepath.Join(cfg.DataDir, "history.db"))
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(); err != nil {
			store.Close()
			return nil, fmt.Errorf("migrating history database: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown history type: %q", cfg.Type)
	}
}
