package validation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/emsgrid/emsgrid/internal/domain/ruledoc"
)

const (
	stageCompiledRules = "compiled-rules"
	stageConstraints   = "constraints"

	// maxListedValues bounds how many allowed codes an enumerated-value
	// error message spells out.
	maxListedValues = 8
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

// Validator checks candidate records against compiled rule documents.
type Validator struct {
	docs   *ruledoc.Repository
	logger zerolog.Logger
}

// NewValidator creates a validator over the given document repository.
func NewValidator(docs *ruledoc.Repository, logger zerolog.Logger) *Validator {
	return &Validator{docs: docs, logger: logger.With().Str("component", "validator").Logger()}
}

// Validate evaluates payload against the compiled document for
// (packID, entity). A missing document yields a single warning instructing
// the caller to compile a pack; it is never an error.
func (v *Validator) Validate(ctx context.Context, tenant, packID string, entity ruledoc.EntityType, payload map[string]any) (*Result, error) {
	doc, err := v.docs.Get(ctx, tenant, packID, entity)
	if err != nil {
		if errors.Is(err, ruledoc.ErrDocumentNotFound) {
			return &Result{
				Valid: true,
				Issues: []Issue{{
					Severity:     ruledoc.SeverityWarning,
					Stage:        stageCompiledRules,
					RuleID:       "no_rule_document",
					Message:      fmt.Sprintf("No compiled rule document exists for pack %s and entity %s.", packID, entity),
					TechMessage:  "rule document lookup returned no rows",
					SuggestedFix: "Compile the pack before validating records against it.",
				}},
			}, nil
		}
		return nil, err
	}
	return ValidateDocument(doc, payload), nil
}

// ValidateDocument runs the compiled rules of doc against payload. Issues
// are returned in field declaration order, then constraint declaration
// order.
func ValidateDocument(doc *ruledoc.Document, payload map[string]any) *Result {
	res := &Result{Valid: true}

	for _, section := range doc.Sections {
		for i := range section.Fields {
			checkField(res, doc, section, &section.Fields[i], payload)
		}
	}
	for i := range doc.Constraints {
		checkConstraint(res, &doc.Constraints[i], payload)
	}
	return res
}

func checkField(res *Result, doc *ruledoc.Document, section ruledoc.Section, field *ruledoc.Field, payload map[string]any) {
	path := field.ParsedPath()

	if path.HasArray() {
		value, ok := path.Resolve(payload)
		if !field.Required {
			return
		}
		arr, isList := value.([]any)
		if !ok || !isList || len(arr) == 0 {
			res.add(fieldIssue(section, field, field.Path+".required",
				fmt.Sprintf("At least one entry is required for %s.", field.Label),
				"resolved value is missing, empty, or not a list",
				fmt.Sprintf("Add at least one entry under %s.", section.Label)))
		}
		// Per-element validation of array contents is a later pass.
		return
	}

	value, ok := path.Resolve(payload)
	if !ok || isEmpty(value) {
		if field.Required {
			res.add(fieldIssue(section, field, field.Path+".required",
				fmt.Sprintf("%s is required.", field.Label),
				"value is absent",
				fmt.Sprintf("Provide a value for %s in %s.", field.Label, section.Label)))
		}
		return
	}

	switch field.Type {
	case ruledoc.TypeDatetime:
		if _, err := parseTimestamp(value); err != nil {
			res.add(fieldIssue(section, field, field.Path+".invalid_datetime",
				fmt.Sprintf("%s is not a valid date/time.", field.Label),
				err.Error(),
				"Use an ISO-8601 timestamp such as 2026-02-27T10:00:00+00:00."))
		}
	case ruledoc.TypeEmail:
		s, _ := value.(string)
		if !emailPattern.MatchString(s) {
			res.add(fieldIssue(section, field, field.Path+".invalid_email",
				fmt.Sprintf("%s is not a valid email address.", field.Label),
				fmt.Sprintf("value %q does not match local-part@domain", s),
				"Enter an address like name@agency.gov."))
		}
	case ruledoc.TypeInteger:
		if !isWholeNumber(value) {
			res.add(fieldIssue(section, field, field.Path+".invalid_integer",
				fmt.Sprintf("%s must be a whole number.", field.Label),
				fmt.Sprintf("value %v is not losslessly convertible to an integer", value),
				fmt.Sprintf("Enter %s as a whole number without decimals.", field.Label)))
		}
	case ruledoc.TypeEnumerated:
		vs := doc.ValueSets[field.ValueSet]
		code := stringify(value)
		if !vs.Contains(code) {
			res.add(fieldIssue(section, field, field.Path+".invalid_value",
				fmt.Sprintf("%q is not an allowed value for %s. Allowed values: %s.",
					code, field.Label, allowedValues(vs)),
				fmt.Sprintf("code %q not found in value set %s", code, field.ValueSet),
				fmt.Sprintf("Pick one of the registered %s codes.", vs.Name)))
		}
	}
}

func checkConstraint(res *Result, c *ruledoc.Constraint, payload map[string]any) {
	if c.Kind != ruledoc.KindTemporalOrder {
		return
	}
	leftRaw, ok := c.LeftPath().Resolve(payload)
	if !ok {
		return
	}
	rightRaw, ok := c.RightPath().Resolve(payload)
	if !ok {
		return
	}
	// Unparseable operands are silently skipped; the per-field type checks
	// own missing-value and format problems.
	left, err := parseTimestamp(leftRaw)
	if err != nil {
		return
	}
	right, err := parseTimestamp(rightRaw)
	if err != nil {
		return
	}

	if compareTimes(left, right, c.Op) {
		return
	}
	res.add(Issue{
		Severity:    c.Severity,
		Stage:       stageConstraints,
		RuleID:      c.ID,
		FieldPath:   c.Left,
		Message:     c.Message,
		TechMessage: fmt.Sprintf("%s %s %s does not hold (%s vs %s)", c.Left, c.Op, c.Right, left.Format(time.RFC3339), right.Format(time.RFC3339)),
		RuleSource:  string(c.Kind),
	})
}

func fieldIssue(section ruledoc.Section, field *ruledoc.Field, ruleID, message, tech, fix string) Issue {
	return Issue{
		Severity:     ruledoc.SeverityError,
		Stage:        stageCompiledRules,
		RuleID:       ruleID,
		FieldPath:    field.Path,
		Section:      section.Label,
		FieldLabel:   field.Label,
		Message:      message,
		TechMessage:  tech,
		RuleSource:   "compiled rule document",
		SuggestedFix: fix,
	}
}

func compareTimes(left, right time.Time, op ruledoc.ConstraintOp) bool {
	switch op {
	case ruledoc.OpGTE:
		return !left.Before(right)
	case ruledoc.OpLTE:
		return !left.After(right)
	case ruledoc.OpGT:
		return left.After(right)
	}
	return true
}

// parseTimestamp accepts ISO-8601 with an explicit "Z" or numeric offset.
func parseTimestamp(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("value %v is not a timestamp string", v)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("value %q is not an ISO-8601 timestamp", s)
	}
	return t, nil
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

func isWholeNumber(v any) bool {
	switch t := v.(type) {
	case int, int32, int64:
		return true
	case float64:
		return t == float64(int64(t))
	case string:
		_, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return err == nil
	}
	return false
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func allowedValues(vs ruledoc.ValueSet) string {
	codes := make([]string, 0, maxListedValues+1)
	for i, item := range vs.Items {
		if i == maxListedValues {
			codes = append(codes, "…")
			break
		}
		codes = append(codes, item.Code)
	}
	return strings.Join(codes, ", ")
}
