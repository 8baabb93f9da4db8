package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emsgrid/emsgrid/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// PGStore persists records as JSONB documents in a single table. Tenant and
// collection are discriminator columns; the document body carries everything
// else.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a PostgreSQL-backed Store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return s.pool
}

func (s *PGStore) Create(ctx context.Context, collection, tenant string, rec Record) (Record, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	body := rec.Clone()
	if body == nil {
		body = Record{}
	}
	delete(body, KeyID)
	delete(body, KeyVersion)
	delete(body, KeyCreatedAt)
	delete(body, KeyUpdatedAt)

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}

	_, err = s.conn(ctx).Exec(ctx, `
		INSERT INTO documents (id, tenant, collection, version, body, created_at, updated_at)
		VALUES ($1, $2, $3, 1, $4, $5, $5)`,
		id, tenant, collection, raw, now)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}

	return assemble(body, id, 1, now, now), nil
}

func (s *PGStore) Get(ctx context.Context, collection, tenant, id string) (Record, error) {
	row := s.conn(ctx).QueryRow(ctx, `
		SELECT id, version, body, created_at, updated_at
		FROM documents
		WHERE id = $1 AND tenant = $2 AND collection = $3 AND deleted_at IS NULL`,
		id, tenant, collection)
	rec, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (s *PGStore) List(ctx context.Context, collection, tenant string, filter Filter) ([]Record, error) {
	sql := `
		SELECT id, version, body, created_at, updated_at
		FROM documents
		WHERE tenant = $1 AND collection = $2 AND deleted_at IS NULL`
	args := []interface{}{tenant, collection}

	if len(filter) > 0 {
		raw, err := json.Marshal(filter)
		if err != nil {
			return nil, fmt.Errorf("marshal filter: %w", err)
		}
		sql += fmt.Sprintf(" AND body @> $%d", len(args)+1)
		args = append(args, raw)
	}
	sql += " ORDER BY created_at, id"

	rows, err := s.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PGStore) Update(ctx context.Context, collection, tenant, id string, expectedVersion int64, patch Record) (Record, error) {
	current, err := s.Get(ctx, collection, tenant, id)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	for k, v := range patch {
		if k == KeyID || k == KeyVersion || k == KeyCreatedAt || k == KeyUpdatedAt {
			continue
		}
		next[k] = v
	}
	delete(next, KeyID)
	delete(next, KeyVersion)
	delete(next, KeyCreatedAt)
	delete(next, KeyUpdatedAt)

	raw, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}

	now := time.Now().UTC()
	// The version guard in the WHERE clause is the optimistic-concurrency
	// contract: no row updated means someone else won the race.
	tag, err := s.conn(ctx).Exec(ctx, `
		UPDATE documents
		SET body = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND tenant = $4 AND collection = $5
		  AND version = $6 AND deleted_at IS NULL`,
		raw, now, id, tenant, collection, expectedVersion)
	if err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrVersionConflict
	}

	return assemble(next, id, expectedVersion+1, current.Time(KeyCreatedAt), now), nil
}

func (s *PGStore) Delete(ctx context.Context, collection, tenant, id string) error {
	tag, err := s.conn(ctx).Exec(ctx, `
		UPDATE documents SET deleted_at = NOW()
		WHERE id = $1 AND tenant = $2 AND collection = $3 AND deleted_at IS NULL`,
		id, tenant, collection)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (Record, error) {
	var (
		id        string
		version   int64
		raw       []byte
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&id, &version, &raw, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	body := Record{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("unmarshal document %s: %w", id, err)
	}
	return assemble(body, id, version, createdAt, updatedAt), nil
}

func assemble(body Record, id string, version int64, createdAt, updatedAt time.Time) Record {
	rec := body.Clone()
	if rec == nil {
		rec = Record{}
	}
	rec[KeyID] = id
	rec[KeyVersion] = version
	rec[KeyCreatedAt] = createdAt.UTC().Format(time.RFC3339)
	rec[KeyUpdatedAt] = updatedAt.UTC().Format(time.RFC3339)
	return rec
}
