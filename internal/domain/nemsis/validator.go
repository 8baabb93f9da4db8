package nemsis

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/emsgrid/emsgrid/internal/domain/ruledoc"
	"github.com/emsgrid/emsgrid/internal/domain/validation"
)

// Validator stage names.
const (
	StageStructural       = "structural"
	StageNational         = "national-rules"
	StageJurisdiction     = "jurisdiction-rules"
	StageJurisdictionData = "jurisdiction-values"
)

// Expected root element names of a submitted chart document.
const (
	RootEMSDataSet = "EMSDataSet"
	RootDEMDataSet = "DEMDataSet"
)

// strictTimestamp is the ISO-8601 shape the regulator accepts: date, time,
// and an explicit Z or numeric offset.
var strictTimestamp = regexp.MustCompile(
	`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`)

// Allowed code lists for the value-format stage.
var (
	genderCodes = map[string]bool{
		"9906001": true, // Female
		"9906003": true, // Male
		"9906005": true, // Unknown (Unable to Determine)
		"9906007": true, // Female-to-Male, Transgender Male
		"9906009": true, // Male-to-Female, Transgender Female
	}
	acuityCodes = map[string]bool{
		"4219001": true, // Critical (Red)
		"4219003": true, // Emergent (Yellow)
		"4219005": true, // Lower Acuity (Green)
		"4219007": true, // Dead without Resuscitation Efforts (Black)
	}
)

// timestampElements are every element whose value must match strictTimestamp
// when present.
var timestampElements = []string{
	"eTimes.01", "eTimes.03", "eTimes.05", "eTimes.06", "eTimes.07",
	"eTimes.09", "eTimes.11", "eTimes.13", "eVitals.01",
}

// nationalRequired is the root-level element battery every submission must
// carry regardless of jurisdiction.
var nationalRequired = []string{
	"eRecord.01",
	"eResponse.03",
	"eTimes.01",
	"eTimes.03",
	"eNarrative.01",
	"eDisposition.12",
}

// jurisdictionRequired keys the supported jurisdictions to their additional
// required-element battery.
var jurisdictionRequired = map[string][]string{
	"WI": {
		"eTimes.06",
		"eResponse.14",
		"eSituation.11",
		"eDisposition.16",
	},
}

// StageResult summarizes one validation stage.
type StageResult struct {
	Stage   string `json:"stage"`
	Passed  bool   `json:"passed"`
	Issues  int    `json:"issues"`
	Skipped bool   `json:"skipped"`
}

// Report is the outcome of validating one chart document.
type Report struct {
	Valid  bool               `json:"valid"`
	Stages []StageResult      `json:"stages"`
	Issues []validation.Issue `json:"issues"`
}

// node is one parsed markup element.
type node struct {
	name     string
	text     string
	children []*node
}

// find returns the first descendant (or self) with the given name.
func (n *node) find(name string) *node {
	if n == nil {
		return nil
	}
	if n.name == name {
		return n
	}
	for _, c := range n.children {
		if found := c.find(name); found != nil {
			return found
		}
	}
	return nil
}

// findAll collects every descendant (or self) with the given name.
func (n *node) findAll(name string, out []*node) []*node {
	if n == nil {
		return out
	}
	if n.name == name {
		out = append(out, n)
	}
	for _, c := range n.children {
		out = c.findAll(name, out)
	}
	return out
}

// textOf returns the trimmed text of the first element with the given name,
// or "" when the element is absent.
func (n *node) textOf(name string) string {
	if found := n.find(name); found != nil {
		return strings.TrimSpace(found.text)
	}
	return ""
}

// ValidateChart runs the staged fixed-schema validation over raw document
// bytes for the requested jurisdiction.
func ValidateChart(data []byte, jurisdiction string) *Report {
	report := &Report{Valid: true}

	root, parseIssues := parseDocument(data)
	structural := StageResult{Stage: StageStructural, Passed: len(parseIssues) == 0}
	for _, issue := range parseIssues {
		report.addIssue(issue)
	}
	structural.Issues = len(parseIssues)
	report.Stages = append(report.Stages, structural)

	if root == nil {
		// Parsing failed; downstream stages never ran.
		for _, stage := range []string{StageNational, StageJurisdiction, StageJurisdictionData} {
			report.Stages = append(report.Stages, StageResult{Stage: stage, Skipped: true})
		}
		return report
	}

	if root.name != RootEMSDataSet && root.name != RootDEMDataSet {
		// A mislabeled but parseable document is still inspectable, so the
		// mismatch is a warning and downstream stages still run.
		report.addIssue(validation.Issue{
			Severity:    ruledoc.SeverityWarning,
			Stage:       StageStructural,
			RuleID:      "structural.unexpected_root",
			Message:     fmt.Sprintf("Document root element is %q; expected %s or %s.", root.name, RootEMSDataSet, RootDEMDataSet),
			TechMessage: "root element name mismatch",
		})
		report.Stages[0].Issues++
	}

	report.runStage(StageNational, func() []validation.Issue {
		return nationalStage(root)
	})

	_, supported := jurisdictionRequired[jurisdiction]
	if !supported {
		report.Stages = append(report.Stages,
			StageResult{Stage: StageJurisdiction, Skipped: true},
			StageResult{Stage: StageJurisdictionData, Skipped: true})
		return report
	}

	report.runStage(StageJurisdiction, func() []validation.Issue {
		return jurisdictionStage(root, jurisdiction)
	})
	report.runStage(StageJurisdictionData, func() []validation.Issue {
		return valueFormatStage(root)
	})
	return report
}

func (r *Report) addIssue(issue validation.Issue) {
	r.Issues = append(r.Issues, issue)
	if issue.IsError() {
		r.Valid = false
	}
}

func (r *Report) runStage(name string, fn func() []validation.Issue) {
	issues := fn()
	errors := 0
	for _, issue := range issues {
		r.addIssue(issue)
		if issue.IsError() {
			errors++
		}
	}
	r.Stages = append(r.Stages, StageResult{
		Stage:  name,
		Passed: errors == 0,
		Issues: len(issues),
	})
}

// parseDocument tokenizes the document into an element tree. A syntax error
// yields a nil root and one issue per underlying problem.
func parseDocument(data []byte) (*node, []validation.Issue) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var root *node
	var stack []*node
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, []validation.Issue{{
				Severity:    ruledoc.SeverityError,
				Stage:       StageStructural,
				RuleID:      "structural.malformed",
				Message:     "Document is not well-formed markup.",
				TechMessage: err.Error(),
			}}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local}
			if len(stack) == 0 {
				if root != nil {
					return nil, []validation.Issue{{
						Severity:    ruledoc.SeverityError,
						Stage:       StageStructural,
						RuleID:      "structural.multiple_roots",
						Message:     "Document contains more than one root element.",
						TechMessage: fmt.Sprintf("second root element %q", t.Name.Local),
					}}
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text += string(t)
			}
		}
	}
	if root == nil {
		return nil, []validation.Issue{{
			Severity:    ruledoc.SeverityError,
			Stage:       StageStructural,
			RuleID:      "structural.empty",
			Message:     "Document contains no elements.",
			TechMessage: "no root element found",
		}}
	}
	return root, nil
}

func nationalStage(root *node) []validation.Issue {
	var issues []validation.Issue
	for _, id := range nationalRequired {
		if root.textOf(id) == "" {
			issues = append(issues, missingElement(StageNational, "national.missing."+id, id))
		}
	}
	if root.find("ePatient") == nil {
		issues = append(issues, validation.Issue{
			Severity:    ruledoc.SeverityError,
			Stage:       StageNational,
			RuleID:      "national.no_patient_block",
			Section:     "Patient",
			Message:     "At least one patient block is required.",
			TechMessage: "no ePatient element found",
		})
	}
	if root.find("eVitals") == nil {
		issues = append(issues, validation.Issue{
			Severity:    ruledoc.SeverityError,
			Stage:       StageNational,
			RuleID:      "national.no_vitals_block",
			Section:     "Vitals",
			Message:     "At least one vital signs block is required.",
			TechMessage: "no eVitals element found",
		})
	}
	return issues
}

func jurisdictionStage(root *node, jurisdiction string) []validation.Issue {
	var issues []validation.Issue
	for _, id := range jurisdictionRequired[jurisdiction] {
		if root.textOf(id) == "" {
			issues = append(issues, missingElement(StageJurisdiction, "jurisdiction.missing."+id, id))
		}
	}
	if agencyState := root.textOf("dAgency.04"); agencyState != "" && !strings.EqualFold(agencyState, jurisdiction) {
		info := LookupElement("dAgency.04")
		issues = append(issues, validation.Issue{
			Severity:    ruledoc.SeverityWarning,
			Stage:       StageJurisdiction,
			RuleID:      "jurisdiction.agency_state_mismatch",
			FieldPath:   "dAgency.04",
			Section:     info.Section,
			FieldLabel:  info.Label,
			Message:     fmt.Sprintf("Agency state %q does not match the requested jurisdiction %q.", agencyState, jurisdiction),
			TechMessage: "dAgency.04 differs from the validation jurisdiction",
		})
	}
	return issues
}

func valueFormatStage(root *node) []validation.Issue {
	var issues []validation.Issue

	if v := root.textOf("ePatient.13"); v != "" && !genderCodes[v] {
		issues = append(issues, badCode("values.invalid_gender", "ePatient.13", v))
	}
	if v := root.textOf("eDisposition.19"); v != "" && !acuityCodes[v] {
		issues = append(issues, badCode("values.invalid_acuity", "eDisposition.19", v))
	}
	for _, id := range timestampElements {
		for _, el := range root.findAll(id, nil) {
			v := strings.TrimSpace(el.text)
			if v == "" || v == NotRecorded {
				continue
			}
			if !strictTimestamp.MatchString(v) {
				info := LookupElement(id)
				issues = append(issues, validation.Issue{
					Severity:     ruledoc.SeverityError,
					Stage:        StageJurisdictionData,
					RuleID:       "values.invalid_timestamp." + id,
					FieldPath:    id,
					Section:      info.Section,
					FieldLabel:   info.Label,
					Message:      fmt.Sprintf("%s value %q is not a valid timestamp.", info.Label, v),
					TechMessage:  "value does not match the ISO-8601 pattern",
					SuggestedFix: "Use the form 2026-02-27T10:00:00-06:00.",
				})
			}
		}
	}
	return issues
}

func missingElement(stage, ruleID, id string) validation.Issue {
	info := LookupElement(id)
	return validation.Issue{
		Severity:     ruledoc.SeverityError,
		Stage:        stage,
		RuleID:       ruleID,
		FieldPath:    id,
		Section:      info.Section,
		FieldLabel:   info.Label,
		Message:      fmt.Sprintf("%s is required and must not be empty.", info.Label),
		TechMessage:  fmt.Sprintf("element %s absent or empty", id),
		SuggestedFix: info.FixHint,
	}
}

func badCode(ruleID, id, value string) validation.Issue {
	info := LookupElement(id)
	return validation.Issue{
		Severity:     ruledoc.SeverityError,
		Stage:        StageJurisdictionData,
		RuleID:       ruleID,
		FieldPath:    id,
		Section:      info.Section,
		FieldLabel:   info.Label,
		Message:      fmt.Sprintf("%q is not an allowed code for %s.", value, info.Label),
		TechMessage:  fmt.Sprintf("element %s carries unregistered code %q", id, value),
		SuggestedFix: info.FixHint,
	}
}
