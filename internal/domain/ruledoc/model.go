// Package ruledoc defines the compiled rule representation produced by the
// pack compiler and consumed by the validator: value-set catalogs, entity
// sections with typed field definitions, and cross-field constraints.
package ruledoc

import "fmt"

// EntityType tags the kind of record a document applies to.
type EntityType string

const (
	EntityIncident EntityType = "INCIDENT"
	EntityProfile  EntityType = "PROFILE"
)

// Severity grades a constraint or validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// FieldType is the closed set of declared field types.
type FieldType string

const (
	TypeString     FieldType = "string"
	TypeInteger    FieldType = "integer"
	TypeDatetime   FieldType = "datetime"
	TypeEmail      FieldType = "email"
	TypeEnumerated FieldType = "enumerated"
)

// ConstraintKind is the closed set of constraint families.
type ConstraintKind string

// KindTemporalOrder compares two timestamp fields with an operator.
const KindTemporalOrder ConstraintKind = "temporal-order"

// ConstraintOp is a pairwise comparison operator.
type ConstraintOp string

const (
	OpGTE ConstraintOp = ">="
	OpLTE ConstraintOp = "<="
	OpGT  ConstraintOp = ">"
)

// ValueSetItem is one (code, label) pair of a value set.
type ValueSetItem struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// ValueSet is a named enumeration constraining a field's allowed values.
type ValueSet struct {
	Code  string         `json:"code"`
	Name  string         `json:"name"`
	Items []ValueSetItem `json:"items"`
}

// Contains reports whether code is a member of the value set.
func (v ValueSet) Contains(code string) bool {
	for _, item := range v.Items {
		if item.Code == code {
			return true
		}
	}
	return false
}

// Field is one typed field definition inside a section.
type Field struct {
	Path     string    `json:"path"`
	Label    string    `json:"label"`
	Required bool      `json:"required"`
	Type     FieldType `json:"type"`
	ValueSet string    `json:"value_set,omitempty"`

	// parsed is the compiled path, computed once and never serialized.
	parsed Path
}

// ParsedPath returns the compiled segment sequence for the field's path.
func (f *Field) ParsedPath() Path { return f.parsed }

// Section groups fields under one on-screen section.
type Section struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	Fields []Field `json:"fields"`
}

// Constraint is one cross-field rule.
type Constraint struct {
	ID       string         `json:"id"`
	Kind     ConstraintKind `json:"kind"`
	Left     string         `json:"left"`
	Right    string         `json:"right"`
	Op       ConstraintOp   `json:"op"`
	Severity Severity       `json:"severity"`
	Message  string         `json:"message"`

	leftPath  Path
	rightPath Path
}

// LeftPath returns the compiled left operand path.
func (c *Constraint) LeftPath() Path { return c.leftPath }

// RightPath returns the compiled right operand path.
func (c *Constraint) RightPath() Path { return c.rightPath }

// Document is the compiled output of one pack for one entity type.
type Document struct {
	EntityType  EntityType          `json:"entity_type"`
	PackID      string              `json:"pack_id"`
	Version     int64               `json:"version"`
	ValueSets   map[string]ValueSet `json:"value_sets"`
	ValueSetIDs []string            `json:"value_set_ids"` // registry order
	Sections    []Section           `json:"sections"`
	Constraints []Constraint        `json:"constraints"`
}

// Compile parses every field and constraint path once and verifies that each
// enumerated field references a registered value set. A dangling reference
// fails the whole document; the compiler must fail closed rather than emit
// an unusable rule set.
func (d *Document) Compile() error {
	for si := range d.Sections {
		sec := &d.Sections[si]
		for fi := range sec.Fields {
			f := &sec.Fields[fi]
			p, err := ParsePath(f.Path)
			if err != nil {
				return fmt.Errorf("section %s field %q: %w", sec.ID, f.Path, err)
			}
			f.parsed = p
			if f.Type == TypeEnumerated {
				if _, ok := d.ValueSets[f.ValueSet]; !ok {
					return fmt.Errorf("section %s field %q references unknown value set %q",
						sec.ID, f.Path, f.ValueSet)
				}
			}
		}
	}
	for ci := range d.Constraints {
		c := &d.Constraints[ci]
		left, err := ParsePath(c.Left)
		if err != nil {
			return fmt.Errorf("constraint %s left operand %q: %w", c.ID, c.Left, err)
		}
		right, err := ParsePath(c.Right)
		if err != nil {
			return fmt.Errorf("constraint %s right operand %q: %w", c.ID, c.Right, err)
		}
		c.leftPath, c.rightPath = left, right
	}
	return nil
}

// ValueSetsInOrder returns the value sets in registry order.
func (d *Document) ValueSetsInOrder() []ValueSet {
	out := make([]ValueSet, 0, len(d.ValueSetIDs))
	for _, id := range d.ValueSetIDs {
		if vs, ok := d.ValueSets[id]; ok {
			out = append(out, vs)
		}
	}
	return out
}
