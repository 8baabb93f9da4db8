package onboarding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/emsgrid/emsgrid/internal/domain/export"
	"github.com/emsgrid/emsgrid/internal/domain/rulepack"
	"github.com/emsgrid/emsgrid/internal/platform/events"
	"github.com/emsgrid/emsgrid/internal/platform/store"
)

const collectionOnboarding = "onboarding"

var (
	// ErrOnboardingNotFound is returned when no onboarding record exists
	// for the profile.
	ErrOnboardingNotFound = errors.New("onboarding record not found")
	// ErrUnknownStep is returned for step ids outside the fixed sequence.
	ErrUnknownStep = errors.New("unknown onboarding step")
	// ErrNoActivePack is returned by the pack-assignment step when the
	// profile's jurisdiction has no active pack.
	ErrNoActivePack = errors.New("no active rule pack for jurisdiction")
	// ErrSampleNotValidated is returned by the sample-validation step when
	// the referenced record has not passed validation.
	ErrSampleNotValidated = errors.New("sample record has not been validated")
)

// Service drives the onboarding sequence for agency profiles.
type Service struct {
	store  store.Store
	packs  *rulepack.Service
	events events.Sink
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates an onboarding tracker.
func NewService(st store.Store, packs *rulepack.Service, sink events.Sink, logger zerolog.Logger) *Service {
	return &Service{
		store:  st,
		packs:  packs,
		events: sink,
		logger: logger.With().Str("component", "onboarding").Logger(),
		now:    time.Now,
	}
}

// Start creates the onboarding record for a profile. Starting twice returns
// the existing record unchanged.
func (s *Service) Start(ctx context.Context, tenant, profileID string) (*Status, error) {
	profile, err := s.store.Get(ctx, export.CollectionProfiles, tenant, profileID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("profile %s: %w", profileID, export.ErrProfileNotFound)
		}
		return nil, err
	}

	if rec, err := s.record(ctx, tenant, profileID); err == nil {
		return statusFrom(rec), nil
	} else if !errors.Is(err, ErrOnboardingNotFound) {
		return nil, err
	}

	checklist := map[string]any{}
	for _, item := range GoLiveChecklist(profile.String("agency_state")) {
		checklist[item] = false
	}

	rec, err := s.store.Create(ctx, collectionOnboarding, tenant, store.Record{
		"profile_id": profileID,
		"steps":      map[string]any{},
		"checklist":  checklist,
		"completed":  false,
	})
	if err != nil {
		return nil, err
	}
	s.events.Publish(ctx, "onboarding.started", tenant, profileID, nil)
	return statusFrom(rec), nil
}

// CompleteStep records a step as complete, running its side effects first.
// Completing an already-complete step is a no-op for that step but still
// re-runs side effects, so a re-assignment picks up a newer active pack.
func (s *Service) CompleteStep(ctx context.Context, tenant, profileID, stepID string, data map[string]any) (*Status, error) {
	step, ok := stepByID(stepID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStep, stepID)
	}

	rec, err := s.record(ctx, tenant, profileID)
	if err != nil {
		return nil, err
	}

	if err := s.runSideEffects(ctx, tenant, profileID, step, data); err != nil {
		return nil, err
	}

	steps := rec.Map("steps")
	if steps == nil {
		steps = map[string]any{}
	}
	if _, done := steps[stepID]; !done {
		entry := map[string]any{"completed_at": s.now().UTC().Format(time.RFC3339)}
		if len(data) > 0 {
			entry["data"] = data
		}
		steps[stepID] = entry
	}

	patch := store.Record{"steps": steps}
	if step.ID == StepGoLiveChecklist {
		if checklist := applyChecklistTicks(rec.Map("checklist"), data); checklist != nil {
			patch["checklist"] = checklist
		}
	}
	if !rec.Bool("completed") && allRequiredComplete(steps) {
		// One-way transition: once complete, later calls never un-complete.
		patch["completed"] = true
		patch["completed_at"] = s.now().UTC().Format(time.RFC3339)
	}

	updated, err := s.store.Update(ctx, collectionOnboarding, tenant, rec.ID(), rec.Version(), patch)
	if err != nil {
		return nil, err
	}

	if patch["completed"] == true {
		if err := s.markProfileReady(ctx, tenant, profileID); err != nil {
			return nil, err
		}
		s.events.Publish(ctx, "onboarding.completed", tenant, profileID, nil)
	}
	s.events.Publish(ctx, "onboarding.step_completed", tenant, profileID, map[string]any{
		"step": stepID,
	})
	return statusFrom(updated), nil
}

// GetStatus returns the onboarding state for a profile.
func (s *Service) GetStatus(ctx context.Context, tenant, profileID string) (*Status, error) {
	rec, err := s.record(ctx, tenant, profileID)
	if err != nil {
		return nil, err
	}
	return statusFrom(rec), nil
}

// CanExportProduction reports whether the profile has finished onboarding
// and may export to the production endpoint.
func (s *Service) CanExportProduction(ctx context.Context, tenant, profileID string) (bool, error) {
	rec, err := s.record(ctx, tenant, profileID)
	if err != nil {
		if errors.Is(err, ErrOnboardingNotFound) {
			return false, nil
		}
		return false, err
	}
	return rec.Bool("completed"), nil
}

func (s *Service) runSideEffects(ctx context.Context, tenant, profileID string, step Step, data map[string]any) error {
	switch step.ID {
	case StepPackAssignment:
		return s.assignActivePack(ctx, tenant, profileID)
	case StepSampleValidation:
		recordID, _ := data["record_id"].(string)
		return s.checkSampleValidated(ctx, tenant, recordID)
	}
	return nil
}

// assignActivePack looks up the active pack for the profile's jurisdiction
// and records its reference on the profile. Bundles win over standalone
// jurisdiction datasets.
func (s *Service) assignActivePack(ctx context.Context, tenant, profileID string) error {
	profile, err := s.store.Get(ctx, export.CollectionProfiles, tenant, profileID)
	if err != nil {
		return err
	}
	jurisdiction := profile.String("agency_state")

	var pack *rulepack.Pack
	for _, packType := range []rulepack.PackType{rulepack.TypeBundle, rulepack.TypeStateDataset} {
		pack, err = s.packs.GetActivePack(ctx, tenant, jurisdiction, packType)
		if err != nil {
			return err
		}
		if pack != nil {
			break
		}
	}
	if pack == nil {
		return fmt.Errorf("%w: %s", ErrNoActivePack, jurisdiction)
	}

	if _, err := s.store.Update(ctx, export.CollectionProfiles, tenant, profileID, profile.Version(), store.Record{
		"active_pack_id": pack.ID,
	}); err != nil {
		return err
	}
	s.logger.Info().
		Str("profile_id", profileID).
		Str("pack_id", pack.ID).
		Str("jurisdiction", jurisdiction).
		Msg("assigned active pack")
	return nil
}

// checkSampleValidated requires the referenced record's last known status to
// be validated or exported.
func (s *Service) checkSampleValidated(ctx context.Context, tenant, recordID string) error {
	if recordID == "" {
		return fmt.Errorf("%w: no record id supplied", ErrSampleNotValidated)
	}
	rec, err := s.store.Get(ctx, export.CollectionIncidents, tenant, recordID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: record %s not found", ErrSampleNotValidated, recordID)
		}
		return err
	}
	switch rec.String("status") {
	case "validated", "exported":
		return nil
	}
	return fmt.Errorf("%w: record %s status is %q", ErrSampleNotValidated, recordID, rec.String("status"))
}

func (s *Service) markProfileReady(ctx context.Context, tenant, profileID string) error {
	profile, err := s.store.Get(ctx, export.CollectionProfiles, tenant, profileID)
	if err != nil {
		return err
	}
	_, err = s.store.Update(ctx, export.CollectionProfiles, tenant, profileID, profile.Version(), store.Record{
		"status": "ready",
	})
	return err
}

func (s *Service) record(ctx context.Context, tenant, profileID string) (store.Record, error) {
	recs, err := s.store.List(ctx, collectionOnboarding, tenant, store.Filter{"profile_id": profileID})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: profile %s", ErrOnboardingNotFound, profileID)
	}
	return recs[0], nil
}

// applyChecklistTicks merges submitted item states from data["items"] into
// the stored go-live checklist. Labels not on the checklist are ignored.
func applyChecklistTicks(checklist map[string]any, data map[string]any) map[string]any {
	if checklist == nil {
		return nil
	}
	items, _ := data["items"].(map[string]any)
	for label, v := range items {
		if _, known := checklist[label]; !known {
			continue
		}
		if done, ok := v.(bool); ok {
			checklist[label] = done
		}
	}
	return checklist
}

func allRequiredComplete(steps map[string]any) bool {
	for _, step := range Steps {
		if !step.Required {
			continue
		}
		if _, ok := steps[step.ID]; !ok {
			return false
		}
	}
	return true
}

func statusFrom(rec store.Record) *Status {
	steps := rec.Map("steps")
	status := &Status{
		ProfileID: rec.String("profile_id"),
		Completed: rec.Bool("completed"),
	}
	if t := rec.Time("completed_at"); !t.IsZero() {
		status.CompletedAt = t
	}
	if raw := rec.Map("checklist"); raw != nil {
		status.Checklist = make(map[string]bool, len(raw))
		for label, v := range raw {
			done, _ := v.(bool)
			status.Checklist[label] = done
		}
	}
	for _, step := range Steps {
		ss := StepStatus{Step: step}
		if entry, ok := steps[step.ID].(map[string]any); ok {
			ss.Completed = true
			if raw, ok := entry["completed_at"].(string); ok {
				if t, err := time.Parse(time.RFC3339, raw); err == nil {
					ss.CompletedAt = t
				}
			}
		}
		status.Steps = append(status.Steps, ss)
	}
	return status
}
