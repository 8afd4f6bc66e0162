package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSink stores snapshots as jsonb rows keyed by name.
type PostgresSink struct {
	db   *pgxpool.Pool
	name string
}

// NewPostgresSink builds a sink storing the snapshot called name.
func NewPostgresSink(db *pgxpool.Pool, name string) *PostgresSink {
	return &PostgresSink{db: db, name: name}
}

// EnsureSchema creates the snapshots table when it is missing.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS snapshots (
        name     TEXT PRIMARY KEY,
        document JSONB NOT NULL,
        saved_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`)
	return err
}

// Load fetches the stored document.
func (s *PostgresSink) Load(ctx context.Context) ([]byte, error) {
	var doc string
	err := s.db.QueryRow(ctx, `SELECT document::text FROM snapshots WHERE name = $1`, s.name).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("select snapshot: %w", err)
	}
	return []byte(doc), nil
}

// Save upserts the document.
func (s *PostgresSink) Save(ctx context.Context, doc []byte) error {
	_, err := s.db.Exec(ctx, `INSERT INTO snapshots (name, document, saved_at)
        VALUES ($1, $2::jsonb, now())
        ON CONFLICT (name) DO UPDATE SET document = EXCLUDED.document, saved_at = EXCLUDED.saved_at`, s.name, string(doc))
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

func (s *PostgresSink) String() string {
	return "postgres:" + s.name
}
