package db

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMigrations(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
}

func TestLoadMigrations(t *testing.T) {
	dir := t.TempDir()
	writeMigrations(t, dir, map[string]string{
		"001_documents.sql":     "CREATE TABLE documents (id UUID PRIMARY KEY);",
		"002_content_blobs.sql": "CREATE TABLE content_blobs (locator TEXT PRIMARY KEY);",
		"003_indexes.sql":       "CREATE INDEX idx_documents_tenant ON documents (tenant);",
	})

	migrator := NewMigrator(nil, dir)
	migrations, err := migrator.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}

	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}

	if migrations[0].Version != 1 {
		t.Errorf("expected version 1, got %d", migrations[0].Version)
	}
	if migrations[0].Name != "001_documents.sql" {
		t.Errorf("expected name 001_documents.sql, got %s", migrations[0].Name)
	}
	if migrations[0].SQL != "CREATE TABLE documents (id UUID PRIMARY KEY);" {
		t.Errorf("unexpected SQL content: %s", migrations[0].SQL)
	}
	if migrations[2].Version != 3 {
		t.Errorf("expected version 3, got %d", migrations[2].Version)
	}
}

func TestLoadMigrations_SortOrder(t *testing.T) {
	dir := t.TempDir()
	writeMigrations(t, dir, map[string]string{
		"010_late.sql":   "SELECT 10;",
		"002_second.sql": "SELECT 2;",
		"001_first.sql":  "SELECT 1;",
		"005_middle.sql": "SELECT 5;",
	})

	migrator := NewMigrator(nil, dir)
	migrations, err := migrator.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}

	expectedVersions := []int{1, 2, 5, 10}
	if len(migrations) != len(expectedVersions) {
		t.Fatalf("expected %d migrations, got %d", len(expectedVersions), len(migrations))
	}
	for i, expected := range expectedVersions {
		if migrations[i].Version != expected {
			t.Errorf("migration[%d]: expected version %d, got %d", i, expected, migrations[i].Version)
		}
	}
}

func TestLoadMigrations_SkipsInvalidFilenames(t *testing.T) {
	dir := t.TempDir()
	writeMigrations(t, dir, map[string]string{
		"001_valid.sql":      "SELECT 1;",
		"readme.sql":         "-- no version prefix",
		"notes.txt":          "not a sql file",
		"abc_invalid.sql":    "-- non-numeric prefix",
		"002_also_valid.sql": "SELECT 2;",
	})

	migrator := NewMigrator(nil, dir)
	migrations, err := migrator.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}

	if len(migrations) != 2 {
		t.Fatalf("expected 2 valid migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("unexpected versions: %d, %d", migrations[0].Version, migrations[1].Version)
	}
}

func TestLoadMigrations_EmptyDir(t *testing.T) {
	migrator := NewMigrator(nil, t.TempDir())
	migrations, err := migrator.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 0 {
		t.Errorf("expected 0 migrations from empty dir, got %d", len(migrations))
	}
}

func TestLoadMigrations_NonExistentDir(t *testing.T) {
	migrator := NewMigrator(nil, "/nonexistent/path/that/does/not/exist")
	if _, err := migrator.LoadMigrations(); err == nil {
		t.Error("expected error for non-existent directory")
	}
}
