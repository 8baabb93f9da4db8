// Package compiler transforms the raw files of an ingested rule pack into a
// compiled rule document: value-set catalogs parsed from tabular and keyed
// files, plus entity sections and cross-field constraints. Compilation is a
// pure function of its inputs; the same file set always produces an
// identical document.
package compiler

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/emsgrid/emsgrid/internal/domain/ruledoc"
)

// SourceFile is one pack member handed to the compiler, in ingest order.
type SourceFile struct {
	Name string
	Data []byte
}

// Compiler builds rule documents from pack files.
type Compiler struct {
	logger zerolog.Logger
}

// New creates a compiler.
func New(logger zerolog.Logger) *Compiler {
	return &Compiler{logger: logger.With().Str("component", "compiler").Logger()}
}

// Compile parses every recognizable value-set file, derives the section set
// for the entity type, and returns a compiled document. Files that match no
// supported shape are skipped and logged, never fatal. Ordering is taken
// from input file order and row order so recompiling identical inputs
// yields a deep-equal document.
func (c *Compiler) Compile(entity ruledoc.EntityType, packID string, files []SourceFile) (*ruledoc.Document, error) {
	doc := &ruledoc.Document{
		EntityType: entity,
		PackID:     packID,
		ValueSets:  map[string]ruledoc.ValueSet{},
	}

	for _, f := range files {
		vs, ok := parseValueSet(f)
		if !ok {
			c.logger.Debug().Str("filename", f.Name).Msg("file is not a value set, skipping")
			continue
		}
		if _, exists := doc.ValueSets[vs.Code]; exists {
			c.logger.Warn().Str("value_set", vs.Code).Msg("duplicate value set, keeping first occurrence")
			continue
		}
		doc.ValueSets[vs.Code] = vs
		doc.ValueSetIDs = append(doc.ValueSetIDs, vs.Code)
	}

	doc.Sections = defaultSections(entity, doc)
	doc.Constraints = defaultConstraints(entity)

	if err := doc.Compile(); err != nil {
		return nil, fmt.Errorf("compile rule document: %w", err)
	}
	return doc, nil
}

// RegistryKey normalizes a source filename to a value-set registry key:
// path and extension stripped, upper-snake-cased.
func RegistryKey(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - ('a' - 'A'))
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// parseValueSet tries the two supported raw shapes in turn.
func parseValueSet(f SourceFile) (ruledoc.ValueSet, bool) {
	if vs, ok := parseKeyedValueSet(f); ok {
		return vs, true
	}
	return parseTabularValueSet(f)
}

// keyedValueSet is the JSON key/value shape: a code/name header plus a list
// of values, each carrying a code and display.
type keyedValueSet struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Values []struct {
		Code    string `json:"code"`
		Display string `json:"display"`
	} `json:"values"`
}

func parseKeyedValueSet(f SourceFile) (ruledoc.ValueSet, bool) {
	trimmed := bytes.TrimSpace(f.Data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ruledoc.ValueSet{}, false
	}
	var raw keyedValueSet
	if err := json.Unmarshal(trimmed, &raw); err != nil || len(raw.Values) == 0 {
		return ruledoc.ValueSet{}, false
	}

	vs := ruledoc.ValueSet{
		Code: RegistryKey(f.Name),
		Name: raw.Name,
	}
	if vs.Name == "" {
		vs.Name = vs.Code
	}
	for _, v := range raw.Values {
		if v.Code == "" {
			continue
		}
		vs.Items = append(vs.Items, ruledoc.ValueSetItem{Code: v.Code, Label: v.Display})
	}
	return vs, len(vs.Items) > 0
}

// parseTabularValueSet handles the CSV shape: a header row naming a code
// column and a description-like column, one item per subsequent row.
func parseTabularValueSet(f SourceFile) (ruledoc.ValueSet, bool) {
	reader := csv.NewReader(bytes.NewReader(f.Data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return ruledoc.ValueSet{}, false
	}
	codeCol, labelCol := -1, -1
	for i, col := range header {
		name := strings.ToLower(strings.TrimSpace(col))
		switch {
		case name == "code" && codeCol < 0:
			codeCol = i
		case (strings.Contains(name, "description") || strings.Contains(name, "display") ||
			strings.Contains(name, "label") || strings.Contains(name, "name")) && labelCol < 0:
			labelCol = i
		}
	}
	if codeCol < 0 {
		return ruledoc.ValueSet{}, false
	}

	vs := ruledoc.ValueSet{Code: RegistryKey(f.Name)}
	vs.Name = vs.Code
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A malformed row invalidates the tabular interpretation.
			return ruledoc.ValueSet{}, false
		}
		if codeCol >= len(row) || strings.TrimSpace(row[codeCol]) == "" {
			continue
		}
		item := ruledoc.ValueSetItem{Code: strings.TrimSpace(row[codeCol])}
		if labelCol >= 0 && labelCol < len(row) {
			item.Label = strings.TrimSpace(row[labelCol])
		}
		vs.Items = append(vs.Items, item)
	}
	return vs, len(vs.Items) > 0
}
