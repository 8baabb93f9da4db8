package compiler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/emsgrid/emsgrid/internal/domain/ruledoc"
	"github.com/emsgrid/emsgrid/internal/domain/rulepack"
	"github.com/emsgrid/emsgrid/internal/platform/events"
)

// Service compiles rule packs into persisted rule documents.
type Service struct {
	compiler *Compiler
	packs    *rulepack.Service
	docs     *ruledoc.Repository
	events   events.Sink
	logger   zerolog.Logger
}

// NewService creates a compiler service.
func NewService(packs *rulepack.Service, docs *ruledoc.Repository, sink events.Sink, logger zerolog.Logger) *Service {
	return &Service{
		compiler: New(logger),
		packs:    packs,
		docs:     docs,
		events:   sink,
		logger:   logger.With().Str("component", "compiler").Logger(),
	}
}

// CompilePack reads every ingested file of the pack in ingest order,
// compiles the rule document for the entity type, and persists it keyed by
// (entity_type, pack reference). Recompiling bumps the stored version.
func (s *Service) CompilePack(ctx context.Context, tenant, packID string, entity ruledoc.EntityType) (*ruledoc.Document, error) {
	files, err := s.packs.ListPackFiles(ctx, tenant, packID)
	if err != nil {
		return nil, err
	}

	sources := make([]SourceFile, 0, len(files))
	for _, f := range files {
		data, err := s.packs.FileContent(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("read pack file %s: %w", f.Filename, err)
		}
		sources = append(sources, SourceFile{Name: f.Filename, Data: data})
	}

	doc, err := s.compiler.Compile(entity, packID, sources)
	if err != nil {
		return nil, err
	}

	saved, err := s.docs.Save(ctx, tenant, doc)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("pack_id", packID).
		Str("entity_type", string(entity)).
		Int("value_sets", len(saved.ValueSetIDs)).
		Int("sections", len(saved.Sections)).
		Int64("version", saved.Version).
		Msg("compiled rule document")
	s.events.Publish(ctx, "pack.compiled", tenant, packID, map[string]any{
		"entity_type": string(entity),
		"version":     saved.Version,
	})
	return saved, nil
}

// CompileAll compiles the pack for every supported entity type.
func (s *Service) CompileAll(ctx context.Context, tenant, packID string) ([]*ruledoc.Document, error) {
	var out []*ruledoc.Document
	for _, entity := range []ruledoc.EntityType{ruledoc.EntityIncident, ruledoc.EntityProfile} {
		doc, err := s.CompilePack(ctx, tenant, packID, entity)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}
