package compiler

import "github.com/emsgrid/emsgrid/internal/domain/ruledoc"

// Value-set registry keys the default sections bind to when present.
const (
	vsIncidentType  = "INCIDENT_TYPE"
	vsTransportMode = "TRANSPORT_MODE"
)

// defaultSections is the hardcoded fallback section set used when a pack
// supplies no external section definition. It guarantees every compiled
// document carries a usable minimum even for enumeration-only packs.
// Enumerated bindings are only applied when the pack actually registered
// the value set; otherwise the field degrades to a plain string.
func defaultSections(entity ruledoc.EntityType, doc *ruledoc.Document) []ruledoc.Section {
	switch entity {
	case ruledoc.EntityProfile:
		return []ruledoc.Section{
			{
				ID:    "agency_profile",
				Label: "Agency Profile",
				Fields: []ruledoc.Field{
					{Path: "profile.agency_name", Label: "Agency Name", Required: true, Type: ruledoc.TypeString},
					{Path: "profile.agency_number", Label: "Agency Number", Required: true, Type: ruledoc.TypeString},
					{Path: "profile.contact_email", Label: "Contact Email", Required: false, Type: ruledoc.TypeEmail},
					{Path: "profile.station_count", Label: "Station Count", Required: false, Type: ruledoc.TypeInteger},
				},
			},
			{
				ID:    "units",
				Label: "Apparatus & Units",
				Fields: []ruledoc.Field{
					{Path: "profile.units[]", Label: "Units", Required: true, Type: ruledoc.TypeString},
				},
			},
		}
	default:
		return []ruledoc.Section{
			{
				ID:    "incident_basics",
				Label: "Incident Basics",
				Fields: []ruledoc.Field{
					{Path: "incident.incident_number", Label: "Incident Number", Required: true, Type: ruledoc.TypeString},
					{Path: "incident.start_datetime", Label: "Start Date/Time", Required: true, Type: ruledoc.TypeDatetime},
					enumeratedOrString(doc, "incident.type_code", "Incident Type", true, vsIncidentType),
					{Path: "incident.location.address", Label: "Incident Address", Required: true, Type: ruledoc.TypeString},
				},
			},
			{
				ID:    "units",
				Label: "Units & Resources",
				Fields: []ruledoc.Field{
					{Path: "incident.units[]", Label: "Responding Units", Required: true, Type: ruledoc.TypeString},
				},
			},
			{
				ID:    "actions",
				Label: "Actions Taken",
				Fields: []ruledoc.Field{
					{Path: "incident.actions[]", Label: "Actions Taken", Required: false, Type: ruledoc.TypeString},
					enumeratedOrString(doc, "incident.transport_mode", "Transport Mode", false, vsTransportMode),
				},
			},
		}
	}
}

func enumeratedOrString(doc *ruledoc.Document, path, label string, required bool, valueSet string) ruledoc.Field {
	f := ruledoc.Field{Path: path, Label: label, Required: required, Type: ruledoc.TypeString}
	if _, ok := doc.ValueSets[valueSet]; ok {
		f.Type = ruledoc.TypeEnumerated
		f.ValueSet = valueSet
	}
	return f
}

// defaultConstraints is the fallback cross-field rule set: basic temporal
// ordering over the incident timeline.
func defaultConstraints(entity ruledoc.EntityType) []ruledoc.Constraint {
	if entity != ruledoc.EntityIncident {
		return nil
	}
	return []ruledoc.Constraint{
		{
			ID:       "arrival_after_dispatch",
			Kind:     ruledoc.KindTemporalOrder,
			Left:     "incident.arrived_at",
			Right:    "incident.dispatched_at",
			Op:       ruledoc.OpGTE,
			Severity: ruledoc.SeverityError,
			Message:  "Unit arrival time cannot be earlier than dispatch time",
		},
		{
			ID:       "cleared_after_arrival",
			Kind:     ruledoc.KindTemporalOrder,
			Left:     "incident.cleared_at",
			Right:    "incident.arrived_at",
			Op:       ruledoc.OpGTE,
			Severity: ruledoc.SeverityWarning,
			Message:  "Incident cleared time is earlier than unit arrival time",
		},
	}
}
