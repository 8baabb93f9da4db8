package validation

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/emsgrid/emsgrid/internal/domain/compiler"
	"github.com/emsgrid/emsgrid/internal/domain/ruledoc"
	"github.com/emsgrid/emsgrid/internal/platform/store"
)

func compileIncidentDoc(t *testing.T) *ruledoc.Document {
	t.Helper()
	c := compiler.New(zerolog.Nop())
	doc, err := c.Compile(ruledoc.EntityIncident, "pack-1", []compiler.SourceFile{
		{Name: "incident_type.csv", Data: []byte("code,description\n100,Structure Fire\n111,Building Fire\n")},
		{Name: "transport_mode.json", Data: []byte(`{"name":"Transport Mode","values":[{"code":"1","display":"Ground"}]}`)},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return doc
}

func validIncidentPayload() map[string]any {
	return map[string]any{
		"incident": map[string]any{
			"incident_number": "WI-2026-001",
			"start_datetime":  "2026-02-27T10:00:00+00:00",
			"type_code":       "100",
			"location":        map[string]any{"address": "123 Main St"},
			"units":           []any{"E1", "M7"},
			"dispatched_at":   "2026-02-27T10:00:00Z",
			"arrived_at":      "2026-02-27T10:08:00Z",
			"cleared_at":      "2026-02-27T11:00:00Z",
		},
	}
}

func TestValidate_MissingRuleDocumentIsOneWarning(t *testing.T) {
	ctx := context.Background()
	v := NewValidator(ruledoc.NewRepository(store.NewMemoryStore()), zerolog.Nop())

	res, err := v.Validate(ctx, "t1", "missing-pack", ruledoc.EntityIncident, map[string]any{})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.Valid {
		t.Error("missing rule document must not invalidate the record")
	}
	if len(res.Issues) != 1 {
		t.Fatalf("issues = %d; want exactly 1", len(res.Issues))
	}
	if res.Issues[0].Severity != ruledoc.SeverityWarning {
		t.Errorf("severity = %q; want warning", res.Issues[0].Severity)
	}
}

func TestValidateDocument_ValidPayloadPasses(t *testing.T) {
	doc := compileIncidentDoc(t)

	res := ValidateDocument(doc, validIncidentPayload())
	if res.ErrorCount() != 0 {
		t.Errorf("errors = %d; want 0: %+v", res.ErrorCount(), res.Issues)
	}
	if !res.Valid {
		t.Error("Valid = false; want true")
	}
}

func TestValidateDocument_EmptyPayloadFlagsRequiredFields(t *testing.T) {
	doc := compileIncidentDoc(t)

	res := ValidateDocument(doc, map[string]any{})
	if res.Valid {
		t.Error("Valid = true for empty payload")
	}
	if res.ErrorCount() < 3 {
		t.Errorf("errors = %d; want at least 3", res.ErrorCount())
	}
	for _, issue := range res.Issues {
		if !strings.HasSuffix(issue.RuleID, ".required") {
			t.Errorf("rule id %q; want .required suffix", issue.RuleID)
		}
	}
}

func TestValidateDocument_RejectsUnknownEnumeratedCode(t *testing.T) {
	doc := compileIncidentDoc(t)
	payload := validIncidentPayload()
	payload["incident"].(map[string]any)["type_code"] = "ZZZ"

	res := ValidateDocument(doc, payload)
	if res.ErrorCount() != 1 {
		t.Fatalf("errors = %d; want 1: %+v", res.ErrorCount(), res.Issues)
	}
	issue := res.Issues[0]
	if !strings.HasSuffix(issue.RuleID, "invalid_value") {
		t.Errorf("rule id = %q; want invalid_value suffix", issue.RuleID)
	}
	if !strings.Contains(issue.Message, "ZZZ") {
		t.Errorf("message %q does not name the rejected code", issue.Message)
	}
	if !strings.Contains(issue.Message, "100") {
		t.Errorf("message %q does not list allowed values", issue.Message)
	}
}

func TestValidateDocument_RequiredArrayField(t *testing.T) {
	doc := compileIncidentDoc(t)

	tests := []struct {
		name  string
		units any
		bad   bool
	}{
		{"populated list", []any{"E1"}, false},
		{"empty list", []any{}, true},
		{"not a list", "E1", true},
		{"absent", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := validIncidentPayload()
			inc := payload["incident"].(map[string]any)
			if tt.units == nil {
				delete(inc, "units")
			} else {
				inc["units"] = tt.units
			}

			res := ValidateDocument(doc, payload)
			found := false
			for _, issue := range res.Issues {
				if issue.RuleID == "incident.units[].required" {
					found = true
					if !strings.Contains(issue.Message, "At least one entry") {
						t.Errorf("message = %q", issue.Message)
					}
				}
			}
			if found != tt.bad {
				t.Errorf("units issue present = %v; want %v", found, tt.bad)
			}
		})
	}
}

func TestValidateDocument_TypeChecks(t *testing.T) {
	doc := &ruledoc.Document{
		EntityType: ruledoc.EntityProfile,
		ValueSets:  map[string]ruledoc.ValueSet{},
		Sections: []ruledoc.Section{{
			ID:    "agency_profile",
			Label: "Agency Profile",
			Fields: []ruledoc.Field{
				{Path: "profile.contact_email", Label: "Contact Email", Type: ruledoc.TypeEmail},
				{Path: "profile.station_count", Label: "Station Count", Type: ruledoc.TypeInteger},
				{Path: "profile.founded_at", Label: "Founded", Type: ruledoc.TypeDatetime},
			},
		}},
	}
	if err := doc.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	res := ValidateDocument(doc, map[string]any{
		"profile": map[string]any{
			"contact_email": "not-an-address",
			"station_count": 2.5,
			"founded_at":    "yesterday",
		},
	})
	want := []string{
		"profile.contact_email.invalid_email",
		"profile.station_count.invalid_integer",
		"profile.founded_at.invalid_datetime",
	}
	if len(res.Issues) != len(want) {
		t.Fatalf("issues = %d; want %d: %+v", len(res.Issues), len(want), res.Issues)
	}
	for i, id := range want {
		if res.Issues[i].RuleID != id {
			t.Errorf("issue %d rule id = %q; want %q", i, res.Issues[i].RuleID, id)
		}
	}
}

func TestValidateDocument_IntegerAcceptsWholeForms(t *testing.T) {
	doc := &ruledoc.Document{
		EntityType: ruledoc.EntityProfile,
		ValueSets:  map[string]ruledoc.ValueSet{},
		Sections: []ruledoc.Section{{
			ID: "s", Label: "S",
			Fields: []ruledoc.Field{
				{Path: "profile.station_count", Label: "Station Count", Type: ruledoc.TypeInteger},
			},
		}},
	}
	if err := doc.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	for _, v := range []any{float64(3), "12", 7} {
		res := ValidateDocument(doc, map[string]any{
			"profile": map[string]any{"station_count": v},
		})
		if len(res.Issues) != 0 {
			t.Errorf("value %v flagged: %+v", v, res.Issues)
		}
	}
}

func TestValidateDocument_TemporalConstraint(t *testing.T) {
	doc := compileIncidentDoc(t)

	payload := validIncidentPayload()
	inc := payload["incident"].(map[string]any)
	inc["dispatched_at"] = "2026-02-27T10:30:00Z"
	inc["arrived_at"] = "2026-02-27T10:08:00Z"

	res := ValidateDocument(doc, payload)
	if res.ErrorCount() != 1 {
		t.Fatalf("errors = %d; want 1: %+v", res.ErrorCount(), res.Issues)
	}
	issue := res.Issues[len(res.Issues)-1]
	if issue.RuleID != "arrival_after_dispatch" {
		t.Errorf("rule id = %q; want arrival_after_dispatch", issue.RuleID)
	}
	if issue.Stage != stageConstraints {
		t.Errorf("stage = %q; want %q", issue.Stage, stageConstraints)
	}
}

func TestValidateDocument_ConstraintSkipsUnparseableOperands(t *testing.T) {
	doc := compileIncidentDoc(t)

	payload := validIncidentPayload()
	inc := payload["incident"].(map[string]any)
	inc["dispatched_at"] = "sometime"
	delete(inc, "cleared_at")

	res := ValidateDocument(doc, payload)
	for _, issue := range res.Issues {
		if issue.Stage == stageConstraints {
			t.Errorf("constraint issue raised with unparseable operand: %+v", issue)
		}
	}
}

func TestValidateDocument_IssueOrderFollowsDeclarations(t *testing.T) {
	doc := compileIncidentDoc(t)

	res := ValidateDocument(doc, map[string]any{})

	var paths []string
	for _, issue := range res.Issues {
		paths = append(paths, issue.FieldPath)
	}
	want := []string{
		"incident.incident_number",
		"incident.start_datetime",
		"incident.type_code",
		"incident.location.address",
		"incident.units[]",
	}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v; want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("issue %d path = %q; want %q", i, paths[i], want[i])
		}
	}
}

func TestValidate_UsesStoredDocument(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	docs := ruledoc.NewRepository(st)

	doc := compileIncidentDoc(t)
	if _, err := docs.Save(ctx, "t1", doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	v := NewValidator(docs, zerolog.Nop())
	res, err := v.Validate(ctx, "t1", "pack-1", ruledoc.EntityIncident, validIncidentPayload())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.Valid {
		t.Errorf("Valid = false: %+v", res.Issues)
	}
}
