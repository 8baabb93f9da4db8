package ruledoc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/emsgrid/emsgrid/internal/platform/store"
)

// ErrDocumentNotFound is returned when no compiled document exists for a
// (pack, entity-type) pair.
var ErrDocumentNotFound = errors.New("rule document not found")

const collectionDocuments = "rule_documents"

// Repository persists compiled rule documents through the generic store,
// keyed by (entity_type, pack_id).
type Repository struct {
	store store.Store
}

// NewRepository creates a rule document repository.
func NewRepository(st store.Store) *Repository {
	return &Repository{store: st}
}

// Save upserts the document for its (entity_type, pack_id) key, bumping the
// stored version on recompilation.
func (r *Repository) Save(ctx context.Context, tenant string, doc *Document) (*Document, error) {
	body, err := toBody(doc)
	if err != nil {
		return nil, err
	}

	existing, err := r.find(ctx, tenant, doc.PackID, doc.EntityType)
	if err != nil && !errors.Is(err, ErrDocumentNotFound) {
		return nil, err
	}

	var rec store.Record
	if existing != nil {
		rec, err = r.store.Update(ctx, collectionDocuments, tenant, existing.ID(), existing.Version(), store.Record{
			"document": body,
		})
		if err != nil {
			return nil, fmt.Errorf("update rule document: %w", err)
		}
	} else {
		rec, err = r.store.Create(ctx, collectionDocuments, tenant, store.Record{
			"pack_id":     doc.PackID,
			"entity_type": string(doc.EntityType),
			"document":    body,
		})
		if err != nil {
			return nil, fmt.Errorf("create rule document: %w", err)
		}
	}

	return fromRecord(rec)
}

// Get loads and compiles the document for (pack_id, entity_type).
func (r *Repository) Get(ctx context.Context, tenant, packID string, entity EntityType) (*Document, error) {
	rec, err := r.find(ctx, tenant, packID, entity)
	if err != nil {
		return nil, err
	}
	return fromRecord(rec)
}

func (r *Repository) find(ctx context.Context, tenant, packID string, entity EntityType) (store.Record, error) {
	recs, err := r.store.List(ctx, collectionDocuments, tenant, store.Filter{
		"pack_id":     packID,
		"entity_type": string(entity),
	})
	if err != nil {
		return nil, fmt.Errorf("list rule documents: %w", err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: pack %s entity %s", ErrDocumentNotFound, packID, entity)
	}
	return recs[0], nil
}

func toBody(doc *Document) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal rule document: %w", err)
	}
	body := map[string]any{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("round-trip rule document: %w", err)
	}
	return body, nil
}

func fromRecord(rec store.Record) (*Document, error) {
	raw, err := json.Marshal(rec.Map("document"))
	if err != nil {
		return nil, fmt.Errorf("marshal stored document: %w", err)
	}
	doc := &Document{}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("unmarshal stored document: %w", err)
	}
	doc.Version = rec.Version()
	if err := doc.Compile(); err != nil {
		return nil, fmt.Errorf("compile stored document: %w", err)
	}
	return doc, nil
}
