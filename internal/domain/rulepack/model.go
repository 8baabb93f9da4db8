package rulepack

import (
	"time"

	"github.com/emsgrid/emsgrid/internal/platform/store"
)

// PackType classifies what a rule pack carries.
type PackType string

const (
	TypeNationalStructure PackType = "national-structure"
	TypeNationalRules     PackType = "national-semantic-rules"
	TypeStateDataset      PackType = "jurisdiction-dataset"
	TypeStateRules        PackType = "jurisdiction-semantic-rules"
	TypeScenarioSet       PackType = "scenario-set"
	TypeBundle            PackType = "bundle"
)

// ValidPackTypes lists every accepted pack type.
var ValidPackTypes = []PackType{
	TypeNationalStructure,
	TypeNationalRules,
	TypeStateDataset,
	TypeStateRules,
	TypeScenarioSet,
	TypeBundle,
}

// PackStatus is the lifecycle state of a pack.
type PackStatus string

const (
	StatusStaged   PackStatus = "staged"
	StatusActive   PackStatus = "active"
	StatusArchived PackStatus = "archived"
)

// FileKind is the detected shape of an ingested file.
type FileKind string

const (
	KindStructureDefinition FileKind = "structure-definition"
	KindSemanticRule        FileKind = "semantic-rule"
	KindDataset             FileKind = "dataset"
	KindSampleRecord        FileKind = "sample-record"
	KindEnumerationTable    FileKind = "enumeration-table"
	KindUnknown             FileKind = "unknown"
)

// FileRole is the semantic role a file plays inside a pack. Completeness
// reporting is computed over roles, not kinds.
type FileRole string

const (
	RoleNationalStructure FileRole = "national-structure"
	RoleNationalRules     FileRole = "national-rules"
	RoleStateStructure    FileRole = "state-structure"
	RoleStateRules        FileRole = "state-rules"
	RoleStateDataset      FileRole = "state-dataset"
	RoleSampleRecord      FileRole = "sample-record"
	RoleEnumeration       FileRole = "enumeration"
	RoleUnknown           FileRole = "unknown"
)

// Pack is one versioned rule bundle for a (jurisdiction, pack-type) pair.
type Pack struct {
	ID              string            `json:"id"`
	RecordVersion   int64             `json:"record_version"`
	Name            string            `json:"name"`
	Description     string            `json:"description,omitempty"`
	StandardVersion string            `json:"standard_version"`
	Jurisdiction    string            `json:"jurisdiction"`
	Type            PackType          `json:"pack_type"`
	Status          PackStatus        `json:"status"`
	FileCount       int               `json:"file_count"`
	TotalBytes      int64             `json:"total_bytes"`
	Manifest        map[string]string `json:"manifest"` // filename -> content hash
	ActivatedAt     *time.Time        `json:"activated_at,omitempty"`
	ActivatedBy     string            `json:"activated_by,omitempty"`
	Notes           string            `json:"notes,omitempty"`
}

// PackFile is one ingested member of a pack.
type PackFile struct {
	ID          string   `json:"id"`
	PackID      string   `json:"pack_id"`
	Filename    string   `json:"filename"`
	Kind        FileKind `json:"kind"`
	Role        FileRole `json:"role"`
	SizeBytes   int64    `json:"size_bytes"`
	ContentHash string   `json:"content_hash"`
	Locator     string   `json:"locator"`
	ContentType string   `json:"content_type,omitempty"`
}

// Completeness reports which required roles a pack has covered.
type Completeness struct {
	Complete bool       `json:"complete"`
	Present  []FileRole `json:"present"`
	Missing  []FileRole `json:"missing"`
	Detail   string     `json:"detail"`
}

// requiredRoles maps a pack type to the roles it must carry to be complete.
// Completeness is advisory; activation is never blocked on it.
var requiredRoles = map[PackType][]FileRole{
	TypeNationalStructure: {RoleNationalStructure},
	TypeNationalRules:     {RoleNationalRules},
	TypeStateDataset:      {RoleStateDataset},
	TypeStateRules:        {RoleStateRules},
	TypeScenarioSet:       {RoleSampleRecord},
	TypeBundle: {
		RoleNationalStructure,
		RoleNationalRules,
		RoleStateStructure,
		RoleStateRules,
	},
}

const (
	collectionPacks     = "rule_packs"
	collectionPackFiles = "rule_pack_files"
)

func packFromRecord(rec store.Record) *Pack {
	p := &Pack{
		ID:              rec.ID(),
		RecordVersion:   rec.Version(),
		Name:            rec.String("name"),
		Description:     rec.String("description"),
		StandardVersion: rec.String("standard_version"),
		Jurisdiction:    rec.String("jurisdiction"),
		Type:            PackType(rec.String("pack_type")),
		Status:          PackStatus(rec.String("status")),
		FileCount:       int(rec.Int64("file_count")),
		TotalBytes:      rec.Int64("total_bytes"),
		Manifest:        rec.StringMap("manifest"),
		ActivatedBy:     rec.String("activated_by"),
		Notes:           rec.String("notes"),
	}
	if p.Manifest == nil {
		p.Manifest = map[string]string{}
	}
	if t := rec.Time("activated_at"); !t.IsZero() {
		p.ActivatedAt = &t
	}
	return p
}

func (p *Pack) toRecord() store.Record {
	manifest := make(map[string]any, len(p.Manifest))
	for k, v := range p.Manifest {
		manifest[k] = v
	}
	rec := store.Record{
		"name":             p.Name,
		"description":      p.Description,
		"standard_version": p.StandardVersion,
		"jurisdiction":     p.Jurisdiction,
		"pack_type":        string(p.Type),
		"status":           string(p.Status),
		"file_count":       int64(p.FileCount),
		"total_bytes":      p.TotalBytes,
		"manifest":         manifest,
		"activated_by":     p.ActivatedBy,
		"notes":            p.Notes,
	}
	if p.ActivatedAt != nil {
		rec["activated_at"] = p.ActivatedAt.UTC().Format(time.RFC3339)
	}
	return rec
}

func fileFromRecord(rec store.Record) *PackFile {
	return &PackFile{
		ID:          rec.ID(),
		PackID:      rec.String("pack_id"),
		Filename:    rec.String("filename"),
		Kind:        FileKind(rec.String("kind")),
		Role:        FileRole(rec.String("role")),
		SizeBytes:   rec.Int64("size_bytes"),
		ContentHash: rec.String("content_hash"),
		Locator:     rec.String("locator"),
		ContentType: rec.String("content_type"),
	}
}

func (f *PackFile) toRecord() store.Record {
	return store.Record{
		"pack_id":      f.PackID,
		"filename":     f.Filename,
		"kind":         string(f.Kind),
		"role":         string(f.Role),
		"size_bytes":   f.SizeBytes,
		"content_hash": f.ContentHash,
		"locator":      f.Locator,
		"content_type": f.ContentType,
	}
}
