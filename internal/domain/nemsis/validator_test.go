package nemsis

import (
	"strings"
	"testing"

	"github.com/emsgrid/emsgrid/internal/domain/ruledoc"
)

func completeChart() string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<EMSDataSet xmlns="http://www.nemsis.org" standardVersion="3.5.0">
  <Header>
    <DemographicGroup>
      <dAgency.01>WI-4471</dAgency.01>
      <dAgency.02>4471</dAgency.02>
      <dAgency.03>Madison Fire Department</dAgency.03>
      <dAgency.04>WI</dAgency.04>
    </DemographicGroup>
    <PatientCareReport>
      <eRecord><eRecord.01>PCR-2026-000123</eRecord.01></eRecord>
      <eResponse>
        <eResponse.03>WI-2026-001</eResponse.03>
        <eResponse.14>M7</eResponse.14>
      </eResponse>
      <eTimes>
        <eTimes.01>2026-02-27T10:00:00-06:00</eTimes.01>
        <eTimes.03>2026-02-27T10:01:30-06:00</eTimes.03>
        <eTimes.06>2026-02-27T10:08:00-06:00</eTimes.06>
      </eTimes>
      <ePatient>
        <ePatient.13>9906003</ePatient.13>
        <ePatient.15>54</ePatient.15>
      </ePatient>
      <eSituation><eSituation.11>R06.02</eSituation.11></eSituation>
      <eVitals><eVitals.01>2026-02-27T10:12:00-06:00</eVitals.01></eVitals>
      <eNarrative><eNarrative.01>Crew responded to reported chest pain.</eNarrative.01></eNarrative>
      <eDisposition>
        <eDisposition.12>4212033</eDisposition.12>
        <eDisposition.16>4216005</eDisposition.16>
        <eDisposition.19>4219003</eDisposition.19>
      </eDisposition>
    </PatientCareReport>
  </Header>
</EMSDataSet>`
}

func stageByName(t *testing.T, r *Report, name string) StageResult {
	t.Helper()
	for _, s := range r.Stages {
		if s.Stage == name {
			return s
		}
	}
	t.Fatalf("stage %q missing from %+v", name, r.Stages)
	return StageResult{}
}

func TestValidateChart_CompleteChartPasses(t *testing.T) {
	report := ValidateChart([]byte(completeChart()), "WI")

	if !report.Valid {
		t.Errorf("Valid = false: %+v", report.Issues)
	}
	if len(report.Stages) != 4 {
		t.Fatalf("stages = %d; want 4", len(report.Stages))
	}
	for _, s := range report.Stages {
		if !s.Passed || s.Skipped {
			t.Errorf("stage %s = %+v; want passed", s.Stage, s)
		}
	}
}

func TestValidateChart_MalformedSkipsDownstreamStages(t *testing.T) {
	report := ValidateChart([]byte("<EMSDataSet><eRecord></EMSDataSet>"), "WI")

	if report.Valid {
		t.Error("Valid = true for malformed document")
	}
	structural := stageByName(t, report, StageStructural)
	if structural.Passed || structural.Issues == 0 {
		t.Errorf("structural stage = %+v; want failed with issues", structural)
	}
	for _, name := range []string{StageNational, StageJurisdiction, StageJurisdictionData} {
		if s := stageByName(t, report, name); !s.Skipped {
			t.Errorf("stage %s not skipped after parse failure", name)
		}
	}
}

func TestValidateChart_UnexpectedRootIsWarningOnly(t *testing.T) {
	doc := strings.ReplaceAll(completeChart(), "EMSDataSet", "SomeOtherRoot")
	report := ValidateChart([]byte(doc), "WI")

	if !report.Valid {
		t.Errorf("Valid = false; root mismatch must not be fatal: %+v", report.Issues)
	}
	found := false
	for _, issue := range report.Issues {
		if issue.RuleID == "structural.unexpected_root" {
			found = true
			if issue.Severity != ruledoc.SeverityWarning {
				t.Errorf("severity = %q; want warning", issue.Severity)
			}
		}
	}
	if !found {
		t.Error("no unexpected_root issue emitted")
	}
	// Downstream stages still ran.
	if s := stageByName(t, report, StageNational); s.Skipped {
		t.Error("national stage skipped on root mismatch")
	}
}

func TestValidateChart_NationalRequiredElements(t *testing.T) {
	doc := `<EMSDataSet>
  <PatientCareReport>
    <ePatient><ePatient.13>9906003</ePatient.13></ePatient>
    <eVitals><eVitals.01>2026-02-27T10:12:00Z</eVitals.01></eVitals>
  </PatientCareReport>
</EMSDataSet>`
	report := ValidateChart([]byte(doc), "WI")

	national := stageByName(t, report, StageNational)
	if national.Passed {
		t.Error("national stage passed with every required element missing")
	}
	want := map[string]bool{
		"national.missing.eRecord.01":      false,
		"national.missing.eResponse.03":    false,
		"national.missing.eTimes.01":       false,
		"national.missing.eTimes.03":       false,
		"national.missing.eNarrative.01":   false,
		"national.missing.eDisposition.12": false,
	}
	for _, issue := range report.Issues {
		if _, ok := want[issue.RuleID]; ok {
			want[issue.RuleID] = true
			if issue.FieldLabel == "" {
				t.Errorf("%s missing human label", issue.RuleID)
			}
		}
	}
	for id, seen := range want {
		if !seen {
			t.Errorf("rule %s not emitted", id)
		}
	}
}

func TestValidateChart_PatientAndVitalsBlocks(t *testing.T) {
	doc := `<EMSDataSet>
  <eRecord.01>R1</eRecord.01><eResponse.03>I1</eResponse.03>
  <eTimes.01>2026-02-27T10:00:00Z</eTimes.01><eTimes.03>2026-02-27T10:01:00Z</eTimes.03>
  <eNarrative.01>n</eNarrative.01><eDisposition.12>4212033</eDisposition.12>
</EMSDataSet>`
	report := ValidateChart([]byte(doc), "WI")

	ids := map[string]bool{}
	for _, issue := range report.Issues {
		ids[issue.RuleID] = true
	}
	if !ids["national.no_patient_block"] {
		t.Error("missing patient block not flagged")
	}
	if !ids["national.no_vitals_block"] {
		t.Error("missing vitals block not flagged")
	}
}

func TestValidateChart_UnsupportedJurisdictionSkipsGatedStages(t *testing.T) {
	report := ValidateChart([]byte(completeChart()), "ZZ")

	if s := stageByName(t, report, StageJurisdiction); !s.Skipped {
		t.Error("jurisdiction stage ran for unsupported jurisdiction")
	}
	if s := stageByName(t, report, StageJurisdictionData); !s.Skipped {
		t.Error("value stage ran for unsupported jurisdiction")
	}
	if !report.Valid {
		t.Errorf("Valid = false: %+v", report.Issues)
	}
}

func TestValidateChart_AgencyStateMismatchIsWarning(t *testing.T) {
	doc := strings.ReplaceAll(completeChart(), "<dAgency.04>WI</dAgency.04>", "<dAgency.04>MN</dAgency.04>")
	report := ValidateChart([]byte(doc), "WI")

	if !report.Valid {
		t.Errorf("Valid = false; state mismatch must stay a warning: %+v", report.Issues)
	}
	found := false
	for _, issue := range report.Issues {
		if issue.RuleID == "jurisdiction.agency_state_mismatch" {
			found = true
			if issue.Severity != ruledoc.SeverityWarning {
				t.Errorf("severity = %q; want warning", issue.Severity)
			}
			if !strings.Contains(issue.Message, "MN") {
				t.Errorf("message %q does not name the mismatched state", issue.Message)
			}
		}
	}
	if !found {
		t.Error("mismatch warning not emitted")
	}
}

func TestValidateChart_ValueAndFormatRules(t *testing.T) {
	doc := completeChart()
	doc = strings.ReplaceAll(doc, "<ePatient.13>9906003</ePatient.13>", "<ePatient.13>12345</ePatient.13>")
	doc = strings.ReplaceAll(doc, "<eDisposition.19>4219003</eDisposition.19>", "<eDisposition.19>9999</eDisposition.19>")
	doc = strings.ReplaceAll(doc, "<eVitals.01>2026-02-27T10:12:00-06:00</eVitals.01>", "<eVitals.01>Feb 27 2026</eVitals.01>")

	report := ValidateChart([]byte(doc), "WI")
	if report.Valid {
		t.Error("Valid = true with bad codes and timestamps")
	}
	ids := map[string]bool{}
	for _, issue := range report.Issues {
		ids[issue.RuleID] = true
	}
	for _, want := range []string{
		"values.invalid_gender",
		"values.invalid_acuity",
		"values.invalid_timestamp.eVitals.01",
	} {
		if !ids[want] {
			t.Errorf("rule %s not emitted; got %v", want, ids)
		}
	}
}

func TestValidateChart_SentinelTimestampNotFlagged(t *testing.T) {
	doc := strings.ReplaceAll(completeChart(),
		"<eVitals.01>2026-02-27T10:12:00-06:00</eVitals.01>",
		"<eVitals.01>"+NotRecorded+"</eVitals.01>")

	report := ValidateChart([]byte(doc), "WI")
	for _, issue := range report.Issues {
		if strings.HasPrefix(issue.RuleID, "values.invalid_timestamp") {
			t.Errorf("sentinel value flagged as bad timestamp: %+v", issue)
		}
	}
}

func TestLookupElement_UnknownDegradesToRawID(t *testing.T) {
	info := LookupElement("eExam.99")
	if info.Label != "eExam.99" || info.Section != "" {
		t.Errorf("LookupElement = %+v; want raw id label, empty section", info)
	}
}
