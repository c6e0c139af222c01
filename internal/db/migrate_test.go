package db

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no migrations embedded")
	}

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected file %s", name)
		}
	}
	for v := range ups {
		if !downs[v] {
			t.Fatalf("migration %s has no down file", v)
		}
	}
	for v := range downs {
		if !ups[v] {
			t.Fatalf("migration %s has no up file", v)
		}
	}
}

func TestMigrateRejectsEmptyURL(t *testing.T) {
	if _, err := Migrate("", ""); err == nil {
		t.Fatal("expected error for empty database url")
	}
}

func TestInitialSchemaDeclaresCoreTables(t *testing.T) {
	raw, err := fs.ReadFile(migrationFS, "migrations/000001_init.up.sql")
	if err != nil {
		t.Fatalf("read init migration: %v", err)
	}
	sql := string(raw)
	for _, table := range []string{"documents", "knowledge_graphs", "interactions", "fine_tune_jobs", "app_locks", "customer_relationships"} {
		if !strings.Contains(sql, "CREATE TABLE IF NOT EXISTS "+table+" ") {
			t.Fatalf("init migration does not create %s", table)
		}
	}
}
