package nemsis

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// NotRecorded is the sentinel code substituted for any null or blank source
// field. Every exported element is populated; none are omitted.
const NotRecorded = "7701003"

// Namespace and standard version of the export format. Changing either is a
// breaking change to the external contract.
const (
	Namespace       = "http://www.nemsis.org"
	StandardVersion = "3.5.0"
)

// AgencyInfo identifies the exporting agency on every chart.
type AgencyInfo struct {
	StateID string
	Number  string
	Name    string
	State   string
}

// ChartData is the flattened incident content the generator renders. Blank
// fields render as the NotRecorded sentinel.
type ChartData struct {
	ReportNumber   string
	IncidentNumber string
	UnitCallSign   string

	CallReceivedAt  string
	UnitNotifiedAt  string
	EnRouteAt       string
	ArrivedSceneAt  string
	AtPatientAt     string
	LeftSceneAt     string
	AtDestinationAt string
	BackInServiceAt string

	PatientGender string
	PatientAge    string
	PatientRace   string

	PrimaryImpression string
	Narrative         string

	Vitals      []VitalsData
	Medications []string
	Procedures  []string

	Disposition   string
	TransportMode string
	FinalAcuity   string
	LevelOfCare   string
}

// VitalsData is one vital-signs reading.
type VitalsData struct {
	TakenAt       string
	SystolicBP    string
	HeartRate     string
	RespiratoryRt string
}

type emsDataSet struct {
	XMLName xml.Name `xml:"EMSDataSet"`
	Xmlns   string   `xml:"xmlns,attr"`
	Version string   `xml:"standardVersion,attr"`
	Header  chartHeader
}

type chartHeader struct {
	XMLName xml.Name `xml:"Header"`
	Agency  agencyGroup
	Report  patientCareReport
}

type agencyGroup struct {
	XMLName xml.Name `xml:"DemographicGroup"`
	StateID element  `xml:"dAgency.01"`
	Number  element  `xml:"dAgency.02"`
	Name    element  `xml:"dAgency.03"`
	State   element  `xml:"dAgency.04"`
}

type patientCareReport struct {
	XMLName     xml.Name `xml:"PatientCareReport"`
	Record      recordGroup
	Response    responseGroup
	Times       timesGroup
	Patient     patientGroup
	Situation   situationGroup
	Vitals      []vitalsGroup
	Medications []medicationGroup
	Procedures  []procedureGroup
	Narrative   narrativeGroup
	Disposition dispositionGroup
}

type recordGroup struct {
	XMLName xml.Name `xml:"eRecord"`
	Number  element  `xml:"eRecord.01"`
}

type responseGroup struct {
	XMLName  xml.Name `xml:"eResponse"`
	Incident element  `xml:"eResponse.03"`
	CallSign element  `xml:"eResponse.14"`
}

type timesGroup struct {
	XMLName       xml.Name `xml:"eTimes"`
	CallReceived  element  `xml:"eTimes.01"`
	UnitNotified  element  `xml:"eTimes.03"`
	EnRoute       element  `xml:"eTimes.05"`
	ArrivedScene  element  `xml:"eTimes.06"`
	AtPatient     element  `xml:"eTimes.07"`
	LeftScene     element  `xml:"eTimes.09"`
	AtDestination element  `xml:"eTimes.11"`
	BackInService element  `xml:"eTimes.13"`
}

type patientGroup struct {
	XMLName xml.Name `xml:"ePatient"`
	Gender  element  `xml:"ePatient.13"`
	Race    element  `xml:"ePatient.14"`
	Age     element  `xml:"ePatient.15"`
}

type situationGroup struct {
	XMLName    xml.Name `xml:"eSituation"`
	Impression element  `xml:"eSituation.11"`
}

type vitalsGroup struct {
	XMLName     xml.Name `xml:"eVitals"`
	TakenAt     element  `xml:"eVitals.01"`
	Systolic    element  `xml:"eVitals.06"`
	HeartRate   element  `xml:"eVitals.10"`
	Respiratory element  `xml:"eVitals.14"`
}

type medicationGroup struct {
	XMLName xml.Name `xml:"eMedications"`
	Given   element  `xml:"eMedications.03"`
}

type procedureGroup struct {
	XMLName   xml.Name `xml:"eProcedures"`
	Performed element  `xml:"eProcedures.03"`
}

type narrativeGroup struct {
	XMLName xml.Name `xml:"eNarrative"`
	Text    element  `xml:"eNarrative.01"`
}

type dispositionGroup struct {
	XMLName     xml.Name `xml:"eDisposition"`
	Disposition element  `xml:"eDisposition.12"`
	Transport   element  `xml:"eDisposition.16"`
	Acuity      element  `xml:"eDisposition.19"`
	LevelOfCare element  `xml:"eDisposition.32"`
}

type element struct {
	Value string `xml:",chardata"`
}

// el wraps a source value, substituting the sentinel for blanks.
func el(v string) element {
	v = strings.TrimSpace(v)
	if v == "" {
		v = NotRecorded
	}
	return element{Value: v}
}

// GenerateChart renders an incident chart into the regulator markup. The
// output is always structurally complete: sparse source data yields sentinel
// codes, never missing elements.
func GenerateChart(data ChartData, agency AgencyInfo) ([]byte, error) {
	doc := emsDataSet{
		Xmlns:   Namespace,
		Version: StandardVersion,
		Header: chartHeader{
			Agency: agencyGroup{
				StateID: el(agency.StateID),
				Number:  el(agency.Number),
				Name:    el(agency.Name),
				State:   el(agency.State),
			},
			Report: patientCareReport{
				Record:   recordGroup{Number: el(data.ReportNumber)},
				Response: responseGroup{Incident: el(data.IncidentNumber), CallSign: el(data.UnitCallSign)},
				Times: timesGroup{
					CallReceived:  el(data.CallReceivedAt),
					UnitNotified:  el(data.UnitNotifiedAt),
					EnRoute:       el(data.EnRouteAt),
					ArrivedScene:  el(data.ArrivedSceneAt),
					AtPatient:     el(data.AtPatientAt),
					LeftScene:     el(data.LeftSceneAt),
					AtDestination: el(data.AtDestinationAt),
					BackInService: el(data.BackInServiceAt),
				},
				Patient: patientGroup{
					Gender: el(data.PatientGender),
					Race:   el(data.PatientRace),
					Age:    el(data.PatientAge),
				},
				Situation: situationGroup{Impression: el(data.PrimaryImpression)},
				Narrative: narrativeGroup{Text: el(data.Narrative)},
				Disposition: dispositionGroup{
					Disposition: el(data.Disposition),
					Transport:   el(data.TransportMode),
					Acuity:      el(data.FinalAcuity),
					LevelOfCare: el(data.LevelOfCare),
				},
			},
		},
	}

	vitals := data.Vitals
	if len(vitals) == 0 {
		// A chart always carries at least one vitals block.
		vitals = []VitalsData{{}}
	}
	for _, v := range vitals {
		doc.Header.Report.Vitals = append(doc.Header.Report.Vitals, vitalsGroup{
			TakenAt:     el(v.TakenAt),
			Systolic:    el(v.SystolicBP),
			HeartRate:   el(v.HeartRate),
			Respiratory: el(v.RespiratoryRt),
		})
	}
	for _, m := range data.Medications {
		doc.Header.Report.Medications = append(doc.Header.Report.Medications,
			medicationGroup{Given: el(m)})
	}
	for _, p := range data.Procedures {
		doc.Header.Report.Procedures = append(doc.Header.Report.Procedures,
			procedureGroup{Performed: el(p)})
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("nemsis: marshal chart: %w", err)
	}
	header := []byte(xml.Header)
	result := make([]byte, len(header)+len(out))
	copy(result, header)
	copy(result[len(header):], out)
	return result, nil
}
