// Package store provides the generic multi-tenant document store used by the
// compliance core. Records are opaque key/value documents with server-assigned
// identity and an optimistic version counter; no relational schema is imposed
// on callers. Two implementations exist: an in-memory store for tests and
// development, and a PostgreSQL/JSONB store on pgx.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no record matches the given id (or the
	// record has been soft-deleted).
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned by Update when the expected version
	// does not match the stored version. Callers must re-read and retry
	// the whole logical operation.
	ErrVersionConflict = errors.New("version conflict")
)

// Reserved record keys managed by the store itself.
const (
	KeyID        = "id"
	KeyVersion   = "version"
	KeyCreatedAt = "created_at"
	KeyUpdatedAt = "updated_at"
)

// Record is an opaque document. The store assigns "id" and "version" on
// Create and bumps "version" on every successful Update.
type Record map[string]any

// Filter matches records by top-level key equality. A nil or empty filter
// matches everything.
type Filter map[string]any

// Store is the persistence contract consumed by the compliance core.
type Store interface {
	Create(ctx context.Context, collection, tenant string, rec Record) (Record, error)
	Get(ctx context.Context, collection, tenant, id string) (Record, error)
	List(ctx context.Context, collection, tenant string, filter Filter) ([]Record, error)
	// Update applies patch on top of the stored record iff the stored
	// version equals expectedVersion. ErrVersionConflict otherwise.
	Update(ctx context.Context, collection, tenant, id string, expectedVersion int64, patch Record) (Record, error)
	// Delete soft-deletes the record; it stops appearing in Get/List.
	Delete(ctx context.Context, collection, tenant, id string) error
}

// ID returns the record identifier, or "" when unset.
func (r Record) ID() string { return r.String(KeyID) }

// Version returns the optimistic version counter, or 0 when unset.
func (r Record) Version() int64 { return r.Int64(KeyVersion) }

// String returns the string value at key, or "" when absent or not a string.
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Int64 returns the integer value at key, tolerating the float64 shape JSON
// decoding produces.
func (r Record) Int64(key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Bool returns the boolean value at key, or false.
func (r Record) Bool(key string) bool {
	b, _ := r[key].(bool)
	return b
}

// Time parses the RFC 3339 timestamp stored at key. The zero time is
// returned for absent or unparseable values.
func (r Record) Time(key string) time.Time {
	s, ok := r[key].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Map returns the nested document at key, or nil.
func (r Record) Map(key string) map[string]any {
	m, _ := r[key].(map[string]any)
	return m
}

// Slice returns the array value at key, or nil.
func (r Record) Slice(key string) []any {
	s, _ := r[key].([]any)
	return s
}

// StringMap returns the map at key coerced to string values. Non-string
// values are skipped.
func (r Record) StringMap(key string) map[string]string {
	src := r.Map(key)
	if src == nil {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return Record(deepCopyMap(r))
}

// Matches reports whether every filter key equals the record's top-level
// value for that key.
func (f Filter) Matches(r Record) bool {
	for k, want := range f {
		if !looseEqual(r[k], want) {
			return false
		}
	}
	return true
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

// looseEqual compares scalars across the int/int64/float64 shapes that show
// up depending on whether a record round-tripped through JSON.
func looseEqual(a, b any) bool {
	if a == b {
		return true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return aok && bok && af == bf
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}
