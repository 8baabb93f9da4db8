package nemsis

import (
	"strings"
	"testing"
)

func testAgency() AgencyInfo {
	return AgencyInfo{StateID: "WI-4471", Number: "4471", Name: "Madison Fire Department", State: "WI"}
}

func TestGenerateChart_CompleteDataRoundTrips(t *testing.T) {
	data := ChartData{
		ReportNumber:   "PCR-2026-000123",
		IncidentNumber: "WI-2026-001",
		UnitCallSign:   "M7",
		CallReceivedAt: "2026-02-27T10:00:00-06:00",
		UnitNotifiedAt: "2026-02-27T10:01:30-06:00",
		ArrivedSceneAt: "2026-02-27T10:08:00-06:00",
		PatientGender:  "9906003",
		PatientAge:     "54",

		PrimaryImpression: "R06.02",
		Narrative:         "Crew responded to reported chest pain.",
		Vitals: []VitalsData{
			{TakenAt: "2026-02-27T10:12:00-06:00", SystolicBP: "132", HeartRate: "96"},
		},
		Disposition:   "4212033",
		TransportMode: "4216005",
		FinalAcuity:   "4219003",
	}

	out, err := GenerateChart(data, testAgency())
	if err != nil {
		t.Fatalf("GenerateChart: %v", err)
	}

	report := ValidateChart(out, "WI")
	if !report.Valid {
		t.Errorf("generated chart failed its own validation: %+v", report.Issues)
	}
}

func TestGenerateChart_BlankFieldsGetSentinel(t *testing.T) {
	out, err := GenerateChart(ChartData{ReportNumber: "PCR-1"}, AgencyInfo{})
	if err != nil {
		t.Fatalf("GenerateChart: %v", err)
	}
	s := string(out)

	// Blank sources render as the sentinel, never as empty or missing
	// elements.
	for _, id := range []string{
		"eResponse.03", "eTimes.01", "ePatient.13", "eNarrative.01",
		"eDisposition.12", "dAgency.03", "eVitals.01",
	} {
		want := "<" + id + ">" + NotRecorded + "</" + id + ">"
		if !strings.Contains(s, want) {
			t.Errorf("output missing %s", want)
		}
	}
	for _, id := range []string{"eResponse.03", "eTimes.01"} {
		if strings.Contains(s, "<"+id+"></"+id+">") {
			t.Errorf("element %s rendered empty", id)
		}
	}
}

func TestGenerateChart_CarriesContractConstants(t *testing.T) {
	out, err := GenerateChart(ChartData{}, testAgency())
	if err != nil {
		t.Fatalf("GenerateChart: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, `xmlns="`+Namespace+`"`) {
		t.Error("namespace attribute missing")
	}
	if !strings.Contains(s, `standardVersion="`+StandardVersion+`"`) {
		t.Error("standardVersion attribute missing")
	}
	if !strings.HasPrefix(s, "<?xml") {
		t.Error("XML declaration missing")
	}
}

func TestGenerateChart_MedicationsAndProcedures(t *testing.T) {
	out, err := GenerateChart(ChartData{
		Medications: []string{"317361", ""},
		Procedures:  []string{"425447009"},
	}, testAgency())
	if err != nil {
		t.Fatalf("GenerateChart: %v", err)
	}
	s := string(out)
	if strings.Count(s, "<eMedications>") != 2 {
		t.Errorf("eMedications blocks = %d; want 2", strings.Count(s, "<eMedications>"))
	}
	if !strings.Contains(s, "<eMedications.03>"+NotRecorded+"</eMedications.03>") {
		t.Error("blank medication did not render the sentinel")
	}
	if !strings.Contains(s, "<eProcedures.03>425447009</eProcedures.03>") {
		t.Error("procedure code missing")
	}
}
