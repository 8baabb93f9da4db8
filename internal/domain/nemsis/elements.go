// Package nemsis implements the fixed regulator export format: a staged
// validator for submitted chart documents and a generator that renders an
// incident record into the mandated markup.
package nemsis

// ElementInfo resolves a dataset element identifier to the UI section that
// owns it, a human label, and a fix hint for diagnostics.
type ElementInfo struct {
	Section string
	Label   string
	FixHint string
}

// elementTable is the static, exhaustive element registry. Every element
// referenced anywhere in the validator or generator resolves through it.
var elementTable = map[string]ElementInfo{
	// Agency demographics.
	"dAgency.01": {"Agency Profile", "EMS Agency Unique State ID", "Enter the agency's state-issued identifier."},
	"dAgency.02": {"Agency Profile", "EMS Agency Number", "Enter the agency number assigned by the state."},
	"dAgency.03": {"Agency Profile", "EMS Agency Name", "Enter the agency's legal name."},
	"dAgency.04": {"Agency Profile", "EMS Agency State", "Enter the two-letter state the agency reports to."},

	// Record header.
	"eRecord.01": {"Report", "Patient Care Report Number", "Assign a unique report number before export."},

	// Response.
	"eResponse.03": {"Response", "Incident Number", "Enter the CAD incident number."},
	"eResponse.14": {"Response", "EMS Unit Call Sign", "Enter the responding unit's call sign."},

	// Times.
	"eTimes.01": {"Times", "PSAP Call Date/Time", "Record when the call was received at the PSAP."},
	"eTimes.03": {"Times", "Unit Notified by Dispatch Date/Time", "Record when dispatch notified the unit."},
	"eTimes.05": {"Times", "Unit En Route Date/Time", "Record when the unit went en route."},
	"eTimes.06": {"Times", "Unit Arrived on Scene Date/Time", "Record when the unit arrived on scene."},
	"eTimes.07": {"Times", "Arrived at Patient Date/Time", "Record when the crew reached the patient."},
	"eTimes.09": {"Times", "Unit Left Scene Date/Time", "Record when the unit left the scene."},
	"eTimes.11": {"Times", "Patient Arrived at Destination Date/Time", "Record arrival at the destination."},
	"eTimes.13": {"Times", "Unit Back in Service Date/Time", "Record when the unit returned to service."},

	// Patient.
	"ePatient.13": {"Patient", "Gender", "Select the patient's gender from the registered codes."},
	"ePatient.15": {"Patient", "Age", "Enter the patient's age."},
	"ePatient.14": {"Patient", "Race", "Select the patient's race from the registered codes."},

	// Situation.
	"eSituation.11": {"Situation", "Provider's Primary Impression", "Select the primary clinical impression."},

	// Vitals.
	"eVitals.01": {"Vitals", "Vital Signs Taken Date/Time", "Record when the vital signs were taken."},

	// Narrative.
	"eNarrative.01": {"Narrative", "Patient Care Report Narrative", "Write the run narrative before export."},

	// Disposition.
	"eDisposition.12": {"Disposition", "Incident/Patient Disposition", "Select the final disposition code."},
	"eDisposition.16": {"Disposition", "EMS Transport Method", "Select how the patient was transported."},
	"eDisposition.19": {"Disposition", "Final Patient Acuity", "Select the patient's final acuity."},
	"eDisposition.32": {"Disposition", "Level of Care Provided", "Select the level of care provided."},
}

// LookupElement resolves an element identifier. Unknown identifiers degrade
// to the raw identifier with an empty section so that diagnostics can always
// be produced.
func LookupElement(id string) ElementInfo {
	if info, ok := elementTable[id]; ok {
		return info
	}
	return ElementInfo{Label: id}
}
