package db

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMigrationFiles(t *testing.T, names map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestLoadMigrationsOrdersByVersion(t *testing.T) {
	dir := writeMigrationFiles(t, map[string]string{
		"0010_later.sql": "SELECT 10",
		"0001_init.sql":  "SELECT 1",
		"0002_users.sql": "SELECT 2",
	})

	m := NewMigrator(nil, dir)
	migrations, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("len = %d, want 3", len(migrations))
	}
	wantVersions := []int{1, 2, 10}
	for i, mig := range migrations {
		if mig.Version != wantVersions[i] {
			t.Errorf("migrations[%d].Version = %d, want %d", i, mig.Version, wantVersions[i])
		}
	}
	if migrations[0].SQL != "SELECT 1" {
		t.Errorf("SQL = %q", migrations[0].SQL)
	}
}

func TestLoadMigrationsSkipsNonMigrationFiles(t *testing.T) {
	dir := writeMigrationFiles(t, map[string]string{
		"0001_init.sql": "SELECT 1",
		"README.md":     "docs",
		"notes.sql":     "no numeric prefix",
		"0002.sql":      "no name part",
	})

	m := NewMigrator(nil, dir)
	migrations, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	if len(migrations) != 1 || migrations[0].Name != "0001_init.sql" {
		t.Errorf("migrations = %+v, want only 0001_init.sql", migrations)
	}
}

func TestLoadMigrationsMissingDir(t *testing.T) {
	m := NewMigrator(nil, "/nonexistent/migrations")
	if _, err := m.LoadMigrations(); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
