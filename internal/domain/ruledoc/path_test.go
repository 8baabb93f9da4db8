package ruledoc

import "testing"

func TestParsePath(t *testing.T) {
	tests := []struct {
		raw      string
		wantSegs int
		wantErr  bool
	}{
		{"incident.incident_number", 2, false},
		{"incident.units[]", 2, false},
		{"incident.units[].unit_number", 3, false},
		{"a", 1, false},
		{"", 0, true},
		{"a..b", 0, true},
		{"a.[]", 0, true},
		{"a[].b[]", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			p, err := ParsePath(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParsePath(%q) succeeded; want error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePath(%q): %v", tt.raw, err)
			}
			if len(p.Segments) != tt.wantSegs {
				t.Errorf("segments = %d; want %d", len(p.Segments), tt.wantSegs)
			}
		})
	}
}

func TestPathResolve(t *testing.T) {
	payload := map[string]any{
		"incident": map[string]any{
			"incident_number": "WI-2026-001",
			"units":           []any{map[string]any{"unit_number": "M-1"}},
			"location":        map[string]any{"city": "Madison"},
		},
	}

	tests := []struct {
		path   string
		wantOK bool
		want   any
	}{
		{"incident.incident_number", true, "WI-2026-001"},
		{"incident.location.city", true, "Madison"},
		{"incident.missing", false, nil},
		{"incident.missing.deeper", false, nil},
		{"incident.incident_number.not_a_map", false, nil},
		{"nothing.at.all", false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p, err := ParsePath(tt.path)
			if err != nil {
				t.Fatalf("ParsePath: %v", err)
			}
			got, ok := p.Resolve(payload)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v; want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("got %v; want %v", got, tt.want)
			}
		})
	}
}

func TestPathResolve_ArrayStopsAtArray(t *testing.T) {
	payload := map[string]any{
		"incident": map[string]any{
			"units": []any{
				map[string]any{"unit_number": "M-1"},
				map[string]any{"unit_number": "E-2"},
			},
		},
	}

	p, err := ParsePath("incident.units[].unit_number")
	if err != nil {
		t.Fatalf("ParsePath: %v", err)
	}
	got, ok := p.Resolve(payload)
	if !ok {
		t.Fatal("Resolve failed")
	}
	arr, ok := got.([]any)
	if !ok {
		t.Fatalf("resolved %T; want []any", got)
	}
	if len(arr) != 2 {
		t.Errorf("len = %d; want 2", len(arr))
	}
	if !p.HasArray() {
		t.Error("HasArray() = false; want true")
	}
}

func TestDocumentCompile_DanglingValueSet(t *testing.T) {
	doc := &Document{
		EntityType: EntityIncident,
		ValueSets:  map[string]ValueSet{},
		Sections: []Section{{
			ID:    "basics",
			Label: "Incident Basics",
			Fields: []Field{{
				Path:     "incident.type_code",
				Label:    "Incident Type",
				Required: true,
				Type:     TypeEnumerated,
				ValueSet: "INCIDENT_TYPE",
			}},
		}},
	}

	if err := doc.Compile(); err == nil {
		t.Fatal("Compile succeeded with dangling value-set reference; want error")
	}
}

func TestDocumentCompile_ParsesAllPaths(t *testing.T) {
	doc := &Document{
		EntityType: EntityIncident,
		ValueSets: map[string]ValueSet{
			"INCIDENT_TYPE": {Code: "INCIDENT_TYPE", Items: []ValueSetItem{{Code: "100", Label: "Fire"}}},
		},
		Sections: []Section{{
			ID: "basics",
			Fields: []Field{
				{Path: "incident.type_code", Type: TypeEnumerated, ValueSet: "INCIDENT_TYPE"},
				{Path: "incident.units[]", Type: TypeString},
			},
		}},
		Constraints: []Constraint{{
			ID:   "arrive_after_dispatch",
			Kind: KindTemporalOrder,
			Left: "incident.arrived_at", Right: "incident.dispatched_at",
			Op: OpGTE, Severity: SeverityError, Message: "arrival precedes dispatch",
		}},
	}

	if err := doc.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if doc.Sections[0].Fields[0].ParsedPath().Raw == "" {
		t.Error("field path not compiled")
	}
	if doc.Constraints[0].LeftPath().Raw == "" || doc.Constraints[0].RightPath().Raw == "" {
		t.Error("constraint paths not compiled")
	}
}
