// Package counter persists the per-day publication counter record.
//
// The record "ddmmyyyy,count" can live in a text artifact next to the
// masterfiles, in a PostgreSQL or SQLite table, or in memory. The database
// stores support compare-and-swap so concurrent publishers cannot both
// claim the same version.
package counter

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/masterfile/internal/core"
	"github.com/JonMunkholm/masterfile/internal/storage"
)

// DefaultRecordName is the file name, or table row name, of the record.
const DefaultRecordName = "contador_envios.txt"

// Store is a core.CounterStore that holds resources.
type Store interface {
	core.CounterStore
	Close() error
}

// Config selects the counter backend.
type Config struct {
	Driver   string // file (default), postgres, sqlite, memory
	Path     string // Artifact path of the record file (file driver)
	Name     string // Row name in the counter table (database drivers)
	DSN      string // Database URL or SQLite file path
	MaxConns int    // PostgreSQL pool size
}

// Open returns the counter store for cfg. The file driver keeps the record
// in artifacts, next to the masterfiles.
func Open(ctx context.Context, cfg Config, artifacts storage.Store) (Store, error) {
	name := cfg.Name
	if name == "" {
		name = DefaultRecordName
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "file":
		if artifacts == nil {
			return nil, fmt.Errorf("file counter requires an artifact store")
		}
		p := cfg.Path
		if p == "" {
			p = DefaultRecordName
		}
		return NewArtifactStore(artifacts, p), nil
	case "memory":
		return NewMemory(), nil
	case "postgres":
		return OpenPostgres(ctx, cfg.DSN, name, cfg.MaxConns)
	case "sqlite":
		return OpenSQLite(ctx, cfg.DSN, name)
	default:
		return nil, fmt.Errorf("unsupported counter driver %q", cfg.Driver)
	}
}
