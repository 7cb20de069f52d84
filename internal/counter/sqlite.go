package counter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS publication_counter (
	name       TEXT PRIMARY KEY,
	record     TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// SQLite keeps the record in a local SQLite database, for single-host
// deployments that still want atomic updates.
type SQLite struct {
	db   *sql.DB
	name string
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(ctx context.Context, path, name string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite counter requires a database path")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open counter database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create counter table: %w", err)
	}

	return &SQLite{db: db, name: name}, nil
}

func (s *SQLite) ReadRecord(ctx context.Context) (string, bool, error) {
	var record string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM publication_counter WHERE name = ?`, s.name).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return record, true, nil
}

func (s *SQLite) WriteRecord(ctx context.Context, record string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO publication_counter (name, record) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET record = excluded.record, updated_at = CURRENT_TIMESTAMP`,
		s.name, record)
	return err
}

func (s *SQLite) CompareAndSwap(ctx context.Context, old string, oldFound bool, next string) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if oldFound {
		res, err = s.db.ExecContext(ctx, `
			UPDATE publication_counter SET record = ?, updated_at = CURRENT_TIMESTAMP
			WHERE name = ? AND record = ?`,
			next, s.name, old)
	} else {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO publication_counter (name, record) VALUES (?, ?)
			ON CONFLICT (name) DO NOTHING`,
			s.name, next)
	}
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLite) Close() error { return s.db.Close() }
