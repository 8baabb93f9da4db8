package contentstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is a PostgreSQL-backed ContentStore. Blobs live in a single
// content-addressed table, so re-storing identical bytes is a no-op.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a PostgreSQL-backed content store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Put(ctx context.Context, data []byte) (string, error) {
	locator := Locator(data)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO content_blobs (locator, data)
		VALUES ($1, $2)
		ON CONFLICT (locator) DO NOTHING`,
		locator, data)
	if err != nil {
		return "", fmt.Errorf("store blob %s: %w", locator, err)
	}
	return locator, nil
}

func (s *PGStore) Get(ctx context.Context, locator string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM content_blobs WHERE locator = $1`, locator).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load blob %s: %w", locator, err)
	}
	return data, nil
}
