// Package onboarding tracks an agency's path from first sign-up to
// production-ready export: a fixed ordered list of steps with step-specific
// side effects and a one-way completion transition.
package onboarding

import "time"

// Step identifiers, in completion order.
const (
	StepProfileIdentity  = "profile-identity"
	StepReportingMode    = "reporting-mode"
	StepSites            = "sites"
	StepUnits            = "units"
	StepPersonnel        = "personnel"
	StepPackAssignment   = "pack-assignment"
	StepSampleValidation = "sample-validation"
	StepGoLiveChecklist  = "go-live-checklist"
)

// Step is one entry of the fixed onboarding sequence.
type Step struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// Steps is the fixed ordered onboarding sequence. Personnel is the only
// optional step.
var Steps = []Step{
	{ID: StepProfileIdentity, Label: "Agency identity", Required: true},
	{ID: StepReportingMode, Label: "Reporting mode", Required: true},
	{ID: StepSites, Label: "Sites and stations", Required: true},
	{ID: StepUnits, Label: "Units", Required: true},
	{ID: StepPersonnel, Label: "Personnel", Required: false},
	{ID: StepPackAssignment, Label: "Rule pack assignment", Required: true},
	{ID: StepSampleValidation, Label: "Sample record validation", Required: true},
	{ID: StepGoLiveChecklist, Label: "Go-live checklist", Required: true},
}

// goLiveChecklists maps a jurisdiction to its go-live checklist items.
var goLiveChecklists = map[string][]string{
	"WI": {
		"State trauma registry account confirmed",
		"Submission endpoint credentials on file",
		"Medical director sign-off recorded",
	},
}

var defaultChecklist = []string{
	"Submission endpoint credentials on file",
	"Medical director sign-off recorded",
}

// GoLiveChecklist returns the checklist items for a jurisdiction, falling
// back to the baseline list for jurisdictions without their own.
func GoLiveChecklist(jurisdiction string) []string {
	if items, ok := goLiveChecklists[jurisdiction]; ok {
		return items
	}
	return defaultChecklist
}

// StepStatus is the per-step view returned by GetStatus.
type StepStatus struct {
	Step
	Completed   bool      `json:"completed"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// Status is the full onboarding state of one agency profile.
type Status struct {
	ProfileID   string          `json:"profile_id"`
	Steps       []StepStatus    `json:"steps"`
	Checklist   map[string]bool `json:"go_live_checklist"`
	Completed   bool            `json:"completed"`
	CompletedAt time.Time       `json:"completed_at,omitempty"`
}

func stepByID(id string) (Step, bool) {
	for _, s := range Steps {
		if s.ID == id {
			return s, true
		}
	}
	return Step{}, false
}
