package rulepack

import (
	"path"
	"strings"
)

// previewLimit bounds how much file content classification may look at.
const previewLimit = 4096

// classifyRule pairs a predicate with the kind/role it implies. Rules are
// evaluated in order; the first match wins and unmatched files fall through
// to unknown/unknown.
type classifyRule struct {
	name  string
	match func(filename, preview string) bool
	kind  FileKind
	role  FileRole
}

// stateNameMarkers are jurisdiction hints matched against whole tokens of
// the file name, so "wi" matches "WI_Custom_Rules.sch" but never "with".
var stateNameMarkers = []string{"state", "wi", "wisconsin", "jurisdiction"}

// stateContentMarkers are jurisdiction hints looked for in the content
// preview. Short or common words would trip on ordinary prose, so only
// unambiguous names and structured forms qualify.
var stateContentMarkers = []string{
	"wisconsin",
	"http://www.nemsis.org/wi",
	"xmlns:wi=",
	`jurisdiction="wi"`,
}

var classifyRules = []classifyRule{
	{
		name: "national structure schema",
		match: func(filename, preview string) bool {
			return strings.Contains(filename, "emsdataset") && hasExt(filename, ".xsd") &&
				!hasStateMarker(filename, preview)
		},
		kind: KindStructureDefinition,
		role: RoleNationalStructure,
	},
	{
		name: "state structure schema",
		match: func(filename, preview string) bool {
			return hasExt(filename, ".xsd") && hasStateMarker(filename, preview)
		},
		kind: KindStructureDefinition,
		role: RoleStateStructure,
	},
	{
		name: "state schematron rules",
		match: func(filename, preview string) bool {
			return hasExt(filename, ".sch") && hasStateMarker(filename, preview)
		},
		kind: KindSemanticRule,
		role: RoleStateRules,
	},
	{
		name: "national schematron rules",
		match: func(filename, preview string) bool {
			return hasExt(filename, ".sch")
		},
		kind: KindSemanticRule,
		role: RoleNationalRules,
	},
	{
		name: "sample record",
		match: func(filename, preview string) bool {
			return hasExt(filename, ".xml") &&
				(strings.Contains(filename, "sample") || strings.Contains(filename, "example"))
		},
		kind: KindSampleRecord,
		role: RoleSampleRecord,
	},
	{
		name: "tabular code list",
		match: func(filename, preview string) bool {
			if !hasExt(filename, ".csv") {
				return false
			}
			header := firstLine(preview)
			return strings.Contains(header, "code")
		},
		kind: KindEnumerationTable,
		role: RoleEnumeration,
	},
	{
		name: "keyed value set",
		match: func(filename, preview string) bool {
			return hasExt(filename, ".json") && strings.Contains(preview, "\"values\"")
		},
		kind: KindEnumerationTable,
		role: RoleEnumeration,
	},
	{
		name: "state dataset extract",
		match: func(filename, preview string) bool {
			return hasExt(filename, ".csv", ".json") && hasStateMarker(filename, preview)
		},
		kind: KindDataset,
		role: RoleStateDataset,
	},
}

// Classify determines the kind and role of an ingested file from its name
// and a bounded content preview. Unrecognized inputs are never an error.
func Classify(filename string, content []byte) (FileKind, FileRole) {
	name := strings.ToLower(path.Base(filename))

	preview := content
	if len(preview) > previewLimit {
		preview = preview[:previewLimit]
	}
	text := strings.ToLower(string(preview))

	for _, rule := range classifyRules {
		if rule.match(name, text) {
			return rule.kind, rule.role
		}
	}
	return KindUnknown, RoleUnknown
}

func hasExt(filename string, exts ...string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(filename, ext) {
			return true
		}
	}
	return false
}

func hasStateMarker(filename, preview string) bool {
	for _, tok := range nameTokens(filename) {
		for _, marker := range stateNameMarkers {
			if tok == marker {
				return true
			}
		}
	}
	for _, marker := range stateContentMarkers {
		if strings.Contains(preview, marker) {
			return true
		}
	}
	return false
}

// nameTokens splits a lowercased file name on every non-alphanumeric rune.
func nameTokens(filename string) []string {
	return strings.FieldsFunc(filename, func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	})
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
