// Package export assembles outbound payloads: nested entity and incident
// documents in the external schema's field names, and the regulator chart
// markup.
package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/emsgrid/emsgrid/internal/domain/nemsis"
	"github.com/emsgrid/emsgrid/internal/platform/events"
	"github.com/emsgrid/emsgrid/internal/platform/store"
)

// Store collections read by the exporter.
const (
	CollectionProfiles  = "agency_profiles"
	CollectionSites     = "sites"
	CollectionUnits     = "units"
	CollectionPersonnel = "personnel"
	CollectionIncidents = "incident_records"
)

// ErrProfileNotFound is returned when the agency profile id is unknown.
var ErrProfileNotFound = errors.New("agency profile not found")

// ErrIncidentNotFound is returned when the incident record id is unknown.
var ErrIncidentNotFound = errors.New("incident record not found")

// Service builds export payloads from stored records.
type Service struct {
	store  store.Store
	events events.Sink
	logger zerolog.Logger
}

// NewService creates an exporter.
func NewService(st store.Store, sink events.Sink, logger zerolog.Logger) *Service {
	return &Service{
		store:  st,
		events: sink,
		logger: logger.With().Str("component", "export").Logger(),
	}
}

// BuildEntityPayload assembles the department/unit/personnel payload for one
// agency profile.
func (s *Service) BuildEntityPayload(ctx context.Context, tenant, profileID string) (map[string]any, error) {
	profile, err := s.store.Get(ctx, CollectionProfiles, tenant, profileID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("profile %s: %w", profileID, ErrProfileNotFound)
		}
		return nil, err
	}

	filter := store.Filter{"profile_id": profileID}
	sites, err := s.store.List(ctx, CollectionSites, tenant, filter)
	if err != nil {
		return nil, err
	}
	units, err := s.store.List(ctx, CollectionUnits, tenant, filter)
	if err != nil {
		return nil, err
	}
	personnel, err := s.store.List(ctx, CollectionPersonnel, tenant, filter)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"demographics": map[string]any{
			"agency_name":   profile.String("agency_name"),
			"agency_number": profile.String("agency_number"),
			"agency_state":  profile.String("agency_state"),
			"contact_email": profile.String("contact_email"),
		},
		"sites":     reshapeSites(sites),
		"units":     reshapeUnits(units),
		"personnel": reshapePersonnel(personnel),
	}
	return payload, nil
}

func reshapeSites(recs []store.Record) []map[string]any {
	out := make([]map[string]any, 0, len(recs))
	for _, r := range recs {
		out = append(out, map[string]any{
			"site_name":   r.String("name"),
			"address":     r.String("address"),
			"city":        r.String("city"),
			"postal_code": r.String("postal_code"),
		})
	}
	return out
}

func reshapeUnits(recs []store.Record) []map[string]any {
	out := make([]map[string]any, 0, len(recs))
	for _, r := range recs {
		out = append(out, map[string]any{
			"unit_call_sign": r.String("call_sign"),
			"unit_type":      r.String("unit_type"),
			"level_of_care":  mapCode(levelOfCareCodes, r.String("level_of_care")),
		})
	}
	return out
}

func reshapePersonnel(recs []store.Record) []map[string]any {
	out := make([]map[string]any, 0, len(recs))
	for _, r := range recs {
		out = append(out, map[string]any{
			"last_name":      r.String("last_name"),
			"first_name":     r.String("first_name"),
			"license_number": r.String("license_number"),
			"license_level":  r.String("license_level"),
		})
	}
	return out
}

// BuildIncidentPayload reshapes one incident record into the external
// schema's field names. It is a pure function of the record.
func (s *Service) BuildIncidentPayload(record store.Record) map[string]any {
	patient := record.Map("patient")
	disposition := record.Map("disposition")

	payload := map[string]any{
		"report_number":   record.String("report_number"),
		"incident_number": record.String("incident_number"),
		"unit_call_sign":  record.String("unit_call_sign"),
		"times": map[string]any{
			"call_received":   record.String("call_received_at"),
			"unit_notified":   record.String("unit_notified_at"),
			"en_route":        record.String("en_route_at"),
			"arrived_scene":   record.String("arrived_scene_at"),
			"at_patient":      record.String("at_patient_at"),
			"left_scene":      record.String("left_scene_at"),
			"at_destination":  record.String("at_destination_at"),
			"back_in_service": record.String("back_in_service_at"),
		},
		"patient": map[string]any{
			"gender": mapCode(genderCodes, stringAt(patient, "gender")),
			"race":   mapCode(raceCodes, stringAt(patient, "race")),
			"age":    stringAt(patient, "age"),
		},
		"vitals":      record.Slice("vitals"),
		"medications": record.Slice("medications"),
		"procedures":  record.Slice("procedures"),
		"narrative":   record.String("narrative"),
		"disposition": map[string]any{
			"disposition":    mapCode(dispositionCodes, stringAt(disposition, "outcome")),
			"transport_mode": mapCode(transportModeCodes, stringAt(disposition, "transport_mode")),
			"acuity":         mapCode(acuityCodes, stringAt(disposition, "acuity")),
			"level_of_care":  mapCode(levelOfCareCodes, stringAt(disposition, "level_of_care")),
		},
	}
	return payload
}

// ExportChart renders one stored incident record into the regulator chart
// markup for the given agency.
func (s *Service) ExportChart(ctx context.Context, tenant, incidentID string, agency nemsis.AgencyInfo) ([]byte, error) {
	record, err := s.store.Get(ctx, CollectionIncidents, tenant, incidentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("incident %s: %w", incidentID, ErrIncidentNotFound)
		}
		return nil, err
	}

	out, err := nemsis.GenerateChart(chartDataFrom(record), agency)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("incident_id", incidentID).
		Int("bytes", len(out)).
		Msg("exported chart")
	s.events.Publish(ctx, "chart.exported", tenant, incidentID, map[string]any{
		"bytes": len(out),
	})
	return out, nil
}

// chartDataFrom flattens an incident record into generator input, applying
// the static code tables. Unmapped or absent values stay blank and render as
// the not-recorded sentinel.
func chartDataFrom(record store.Record) nemsis.ChartData {
	patient := record.Map("patient")
	disposition := record.Map("disposition")

	data := nemsis.ChartData{
		ReportNumber:   record.String("report_number"),
		IncidentNumber: record.String("incident_number"),
		UnitCallSign:   record.String("unit_call_sign"),

		CallReceivedAt:  record.String("call_received_at"),
		UnitNotifiedAt:  record.String("unit_notified_at"),
		EnRouteAt:       record.String("en_route_at"),
		ArrivedSceneAt:  record.String("arrived_scene_at"),
		AtPatientAt:     record.String("at_patient_at"),
		LeftSceneAt:     record.String("left_scene_at"),
		AtDestinationAt: record.String("at_destination_at"),
		BackInServiceAt: record.String("back_in_service_at"),

		PatientGender: mapCode(genderCodes, stringAt(patient, "gender")),
		PatientRace:   mapCode(raceCodes, stringAt(patient, "race")),
		PatientAge:    stringAt(patient, "age"),

		PrimaryImpression: record.String("primary_impression"),
		Narrative:         record.String("narrative"),

		Disposition:   mapCode(dispositionCodes, stringAt(disposition, "outcome")),
		TransportMode: mapCode(transportModeCodes, stringAt(disposition, "transport_mode")),
		FinalAcuity:   mapCode(acuityCodes, stringAt(disposition, "acuity")),
		LevelOfCare:   mapCode(levelOfCareCodes, stringAt(disposition, "level_of_care")),
	}

	for _, raw := range record.Slice("vitals") {
		v, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		data.Vitals = append(data.Vitals, nemsis.VitalsData{
			TakenAt:       stringAt(v, "taken_at"),
			SystolicBP:    stringAt(v, "systolic_bp"),
			HeartRate:     stringAt(v, "heart_rate"),
			RespiratoryRt: stringAt(v, "respiratory_rate"),
		})
	}
	for _, raw := range record.Slice("medications") {
		if m, ok := raw.(map[string]any); ok {
			data.Medications = append(data.Medications, stringAt(m, "code"))
		}
	}
	for _, raw := range record.Slice("procedures") {
		if p, ok := raw.(map[string]any); ok {
			data.Procedures = append(data.Procedures, stringAt(p, "code"))
		}
	}
	return data
}

func stringAt(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
