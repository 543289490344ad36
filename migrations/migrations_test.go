package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEmbeddedMigrations(t *testing.T) {
	ups, err := fs.Glob(FS, "*.up.sql")
	if err != nil {
		t.Fatalf("Glob error: %v", err)
	}
	if len(ups) == 0 {
		t.Fatal("no up migrations embedded")
	}

	for _, name := range ups {
		data, err := fs.ReadFile(FS, name)
		if err != nil {
			t.Fatalf("reading %s: %v", name, err)
		}
		if !strings.Contains(string(data), "CREATE TABLE") {
			t.Errorf("%s contains no CREATE TABLE statement", name)
		}

		down := strings.Replace(name, ".up.sql", ".down.sql", 1)
		if _, err := fs.ReadFile(FS, down); err != nil {
			t.Errorf("missing down migration for %s", name)
		}
	}
}

func TestInitialSchemaTables(t *testing.T) {
	data, err := fs.ReadFile(FS, "001_init.up.sql")
	if err != nil {
		t.Fatalf("reading initial migration: %v", err)
	}

	for _, table := range []string{"sync_replicas", "dead_letter_queue"} {
		if !strings.Contains(string(data), table) {
			t.Errorf("initial migration does not create %s", table)
		}
	}
}
