package counter

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the subset of pgx used by Postgres.
// Satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

const pgSchema = `CREATE TABLE IF NOT EXISTS publication_counter (
	name       TEXT PRIMARY KEY,
	record     TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres keeps the record in a publication_counter row.
type Postgres struct {
	db   DBTX
	name string
	pool *pgxpool.Pool
}

// NewPostgres uses db for the row called name. The table must exist; see EnsureSchema.
func NewPostgres(db DBTX, name string) *Postgres {
	return &Postgres{db: db, name: name}
}

// OpenPostgres connects a pool to dsn and creates the counter table.
func OpenPostgres(ctx context.Context, dsn, name string, maxConns int) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse counter database URL: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect counter database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping counter database: %w", err)
	}

	s := &Postgres{db: pool, name: name, pool: pool}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the counter table if needed.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("create counter table: %w", err)
	}
	return nil
}

func (s *Postgres) ReadRecord(ctx context.Context) (string, bool, error) {
	var record string
	err := s.db.QueryRow(ctx, `SELECT record FROM publication_counter WHERE name = $1`, s.name).Scan(&record)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return record, true, nil
}

func (s *Postgres) WriteRecord(ctx context.Context, record string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO publication_counter (name, record) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET record = EXCLUDED.record, updated_at = now()`,
		s.name, record)
	return err
}

func (s *Postgres) CompareAndSwap(ctx context.Context, old string, oldFound bool, next string) (bool, error) {
	var (
		tag pgconn.CommandTag
		err error
	)
	if oldFound {
		tag, err = s.db.Exec(ctx, `
			UPDATE publication_counter SET record = $3, updated_at = now()
			WHERE name = $1 AND record = $2`,
			s.name, old, next)
	} else {
		tag, err = s.db.Exec(ctx, `
			INSERT INTO publication_counter (name, record) VALUES ($1, $2)
			ON CONFLICT (name) DO NOTHING`,
			s.name, next)
	}
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Close releases the pool when OpenPostgres created it.
func (s *Postgres) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
