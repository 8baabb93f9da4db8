package rulepack

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/emsgrid/emsgrid/internal/platform/contentstore"
	"github.com/emsgrid/emsgrid/internal/platform/events"
	"github.com/emsgrid/emsgrid/internal/platform/store"
)

var (
	// ErrPackNotFound is returned for unknown pack ids.
	ErrPackNotFound = errors.New("rule pack not found")
	// ErrConflict signals a concurrent activation lost the version race.
	// The caller must re-read and retry the whole operation.
	ErrConflict = errors.New("rule pack activation conflict")
	// ErrFileTooLarge rejects oversized uploads before parsing or storage.
	ErrFileTooLarge = errors.New("pack file exceeds maximum allowed size")
	// ErrPackImmutable rejects file ingestion into a non-staged pack.
	ErrPackImmutable = errors.New("pack file set is immutable once activated")
	// ErrInvalidPackType rejects pack types outside the closed enumeration.
	ErrInvalidPackType = errors.New("invalid pack type")
)

// Service is the pack lifecycle manager: creation, file ingestion with
// classification, activation with the single-active invariant, and
// completeness reporting.
type Service struct {
	store        store.Store
	content      contentstore.ContentStore
	events       events.Sink
	logger       zerolog.Logger
	maxFileBytes int64
}

// NewService creates a pack manager. maxFileBytes bounds a single ingested
// file; zero or negative means no bound.
func NewService(st store.Store, content contentstore.ContentStore, sink events.Sink, logger zerolog.Logger, maxFileBytes int64) *Service {
	return &Service{
		store:        st,
		content:      content,
		events:       sink,
		logger:       logger.With().Str("component", "rulepack").Logger(),
		maxFileBytes: maxFileBytes,
	}
}

// CreatePackInput carries the caller-supplied attributes of a new pack.
type CreatePackInput struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	StandardVersion string   `json:"standard_version"`
	Jurisdiction    string   `json:"jurisdiction"`
	Type            PackType `json:"pack_type"`
	Notes           string   `json:"notes"`
}

// CreatePack creates a staged pack with an empty manifest.
func (s *Service) CreatePack(ctx context.Context, tenant string, in CreatePackInput) (*Pack, error) {
	if !validPackType(in.Type) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPackType, in.Type)
	}
	if in.Name == "" {
		return nil, fmt.Errorf("pack name is required")
	}
	if in.Jurisdiction == "" {
		return nil, fmt.Errorf("pack jurisdiction is required")
	}

	p := &Pack{
		Name:            in.Name,
		Description:     in.Description,
		StandardVersion: in.StandardVersion,
		Jurisdiction:    in.Jurisdiction,
		Type:            in.Type,
		Status:          StatusStaged,
		Manifest:        map[string]string{},
		Notes:           in.Notes,
	}
	rec, err := s.store.Create(ctx, collectionPacks, tenant, p.toRecord())
	if err != nil {
		return nil, fmt.Errorf("create pack: %w", err)
	}

	created := packFromRecord(rec)
	s.events.Publish(ctx, "pack.created", tenant, created.ID, map[string]any{
		"jurisdiction": created.Jurisdiction,
		"pack_type":    string(created.Type),
	})
	return created, nil
}

// IngestFile hashes, classifies, and stores one member file, then appends it
// to the pack manifest. The manifest is append-only while the pack is staged;
// an active or archived pack refuses new files.
func (s *Service) IngestFile(ctx context.Context, tenant, packID, filename string, data []byte) (*PackFile, error) {
	if s.maxFileBytes > 0 && int64(len(data)) > s.maxFileBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, len(data), s.maxFileBytes)
	}

	pack, err := s.GetPack(ctx, tenant, packID)
	if err != nil {
		return nil, err
	}
	if pack.Status != StatusStaged {
		return nil, fmt.Errorf("%w: pack %s is %s", ErrPackImmutable, packID, pack.Status)
	}

	// The content hash is computed once over the raw bytes at ingest time
	// and is the unit of integrity verification from here on.
	hash := fmt.Sprintf("%x", sha256.Sum256(data))
	kind, role := Classify(filename, data)
	if kind == KindUnknown {
		s.logger.Warn().
			Str("pack_id", packID).
			Str("filename", filename).
			Msg("unrecognized pack file, classified unknown")
	}

	locator, err := s.content.Put(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("store file content: %w", err)
	}

	file := &PackFile{
		PackID:      packID,
		Filename:    filename,
		Kind:        kind,
		Role:        role,
		SizeBytes:   int64(len(data)),
		ContentHash: hash,
		Locator:     locator,
		ContentType: contentTypeFor(filename),
	}
	fileRec, err := s.store.Create(ctx, collectionPackFiles, tenant, file.toRecord())
	if err != nil {
		return nil, fmt.Errorf("create pack file: %w", err)
	}

	manifest := make(map[string]any, len(pack.Manifest)+1)
	for k, v := range pack.Manifest {
		manifest[k] = v
	}
	manifest[filename] = hash

	_, err = s.store.Update(ctx, collectionPacks, tenant, packID, pack.RecordVersion, store.Record{
		"manifest":    manifest,
		"file_count":  int64(pack.FileCount + 1),
		"total_bytes": pack.TotalBytes + int64(len(data)),
	})
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return nil, fmt.Errorf("%w: concurrent manifest update on pack %s", ErrConflict, packID)
		}
		return nil, fmt.Errorf("update pack manifest: %w", err)
	}

	ingested := fileFromRecord(fileRec)
	s.events.Publish(ctx, "pack.file_ingested", tenant, packID, map[string]any{
		"filename": filename,
		"kind":     string(kind),
		"role":     string(role),
		"hash":     hash,
	})
	return ingested, nil
}

// ActivatePack promotes the target pack and demotes any sibling that is
// currently active for the same (jurisdiction, pack-type) pair. Every
// mutation carries the version read at the start; any mismatch aborts the
// whole activation with ErrConflict.
func (s *Service) ActivatePack(ctx context.Context, tenant, packID, actor string) (*Pack, error) {
	target, err := s.GetPack(ctx, tenant, packID)
	if err != nil {
		return nil, err
	}

	siblings, err := s.store.List(ctx, collectionPacks, tenant, store.Filter{
		"jurisdiction": target.Jurisdiction,
		"pack_type":    string(target.Type),
	})
	if err != nil {
		return nil, fmt.Errorf("list sibling packs: %w", err)
	}

	for _, rec := range siblings {
		sibling := packFromRecord(rec)
		if sibling.ID == target.ID || sibling.Status != StatusActive {
			continue
		}
		_, err := s.store.Update(ctx, collectionPacks, tenant, sibling.ID, sibling.RecordVersion, store.Record{
			"status": string(StatusArchived),
		})
		if err != nil {
			if errors.Is(err, store.ErrVersionConflict) {
				return nil, fmt.Errorf("%w: demoting pack %s", ErrConflict, sibling.ID)
			}
			return nil, fmt.Errorf("demote pack %s: %w", sibling.ID, err)
		}
	}

	now := time.Now().UTC()
	rec, err := s.store.Update(ctx, collectionPacks, tenant, target.ID, target.RecordVersion, store.Record{
		"status":       string(StatusActive),
		"activated_at": now.Format(time.RFC3339),
		"activated_by": actor,
	})
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return nil, fmt.Errorf("%w: promoting pack %s", ErrConflict, target.ID)
		}
		return nil, fmt.Errorf("promote pack %s: %w", target.ID, err)
	}

	if c, err := s.GetPackCompleteness(ctx, tenant, packID); err == nil && !c.Complete {
		s.logger.Warn().
			Str("pack_id", packID).
			Strs("missing_roles", roleStrings(c.Missing)).
			Msg("activated pack with incomplete required roles")
	}

	activated := packFromRecord(rec)
	s.events.Publish(ctx, "pack.activated", tenant, activated.ID, map[string]any{
		"jurisdiction": activated.Jurisdiction,
		"pack_type":    string(activated.Type),
		"actor":        actor,
	})
	return activated, nil
}

// StagePack moves a pack back to staged. No effect on siblings.
func (s *Service) StagePack(ctx context.Context, tenant, packID string) (*Pack, error) {
	return s.transition(ctx, tenant, packID, StatusStaged, "pack.staged")
}

// ArchivePack archives a pack. No effect on siblings.
func (s *Service) ArchivePack(ctx context.Context, tenant, packID string) (*Pack, error) {
	return s.transition(ctx, tenant, packID, StatusArchived, "pack.archived")
}

func (s *Service) transition(ctx context.Context, tenant, packID string, status PackStatus, event string) (*Pack, error) {
	pack, err := s.GetPack(ctx, tenant, packID)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.Update(ctx, collectionPacks, tenant, packID, pack.RecordVersion, store.Record{
		"status": string(status),
	})
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return nil, fmt.Errorf("%w: transitioning pack %s", ErrConflict, packID)
		}
		return nil, fmt.Errorf("transition pack %s: %w", packID, err)
	}
	out := packFromRecord(rec)
	s.events.Publish(ctx, event, tenant, packID, nil)
	return out, nil
}

// GetPack loads one pack by id.
func (s *Service) GetPack(ctx context.Context, tenant, packID string) (*Pack, error) {
	rec, err := s.store.Get(ctx, collectionPacks, tenant, packID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPackNotFound, packID)
		}
		return nil, fmt.Errorf("get pack %s: %w", packID, err)
	}
	return packFromRecord(rec), nil
}

// GetActivePack returns the active pack for the pair, or nil when none is.
func (s *Service) GetActivePack(ctx context.Context, tenant, jurisdiction string, packType PackType) (*Pack, error) {
	recs, err := s.store.List(ctx, collectionPacks, tenant, store.Filter{
		"jurisdiction": jurisdiction,
		"pack_type":    string(packType),
		"status":       string(StatusActive),
	})
	if err != nil {
		return nil, fmt.Errorf("list active packs: %w", err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return packFromRecord(recs[0]), nil
}

// ListPacks returns every pack for the tenant, optionally narrowed by
// jurisdiction and pack type.
func (s *Service) ListPacks(ctx context.Context, tenant, jurisdiction string, packType PackType) ([]*Pack, error) {
	filter := store.Filter{}
	if jurisdiction != "" {
		filter["jurisdiction"] = jurisdiction
	}
	if packType != "" {
		filter["pack_type"] = string(packType)
	}
	recs, err := s.store.List(ctx, collectionPacks, tenant, filter)
	if err != nil {
		return nil, fmt.Errorf("list packs: %w", err)
	}
	out := make([]*Pack, 0, len(recs))
	for _, rec := range recs {
		out = append(out, packFromRecord(rec))
	}
	return out, nil
}

// ListPackFiles returns the ingested members of a pack in ingest order.
func (s *Service) ListPackFiles(ctx context.Context, tenant, packID string) ([]*PackFile, error) {
	if _, err := s.GetPack(ctx, tenant, packID); err != nil {
		return nil, err
	}
	recs, err := s.store.List(ctx, collectionPackFiles, tenant, store.Filter{"pack_id": packID})
	if err != nil {
		return nil, fmt.Errorf("list pack files: %w", err)
	}
	out := make([]*PackFile, 0, len(recs))
	for _, rec := range recs {
		out = append(out, fileFromRecord(rec))
	}
	return out, nil
}

// FileContent fetches the stored bytes of one ingested file.
func (s *Service) FileContent(ctx context.Context, file *PackFile) ([]byte, error) {
	return s.content.Get(ctx, file.Locator)
}

// GetPackCompleteness reports which required roles (by the pack's declared
// type) have at least one matching ingested file.
func (s *Service) GetPackCompleteness(ctx context.Context, tenant, packID string) (*Completeness, error) {
	pack, err := s.GetPack(ctx, tenant, packID)
	if err != nil {
		return nil, err
	}
	files, err := s.ListPackFiles(ctx, tenant, packID)
	if err != nil {
		return nil, err
	}

	have := map[FileRole]bool{}
	for _, f := range files {
		have[f.Role] = true
	}

	required := requiredRoles[pack.Type]
	c := &Completeness{Complete: true}
	for _, role := range required {
		if have[role] {
			c.Present = append(c.Present, role)
		} else {
			c.Complete = false
			c.Missing = append(c.Missing, role)
		}
	}
	if c.Complete {
		c.Detail = fmt.Sprintf("all %d required roles present", len(required))
	} else {
		c.Detail = fmt.Sprintf("%d of %d required roles present", len(c.Present), len(required))
	}
	return c, nil
}

func validPackType(t PackType) bool {
	for _, v := range ValidPackTypes {
		if v == t {
			return true
		}
	}
	return false
}

func roleStrings(roles []FileRole) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func contentTypeFor(filename string) string {
	switch {
	case hasExt(filename, ".xml", ".xsd", ".sch"):
		return "application/xml"
	case hasExt(filename, ".json"):
		return "application/json"
	case hasExt(filename, ".csv"):
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
