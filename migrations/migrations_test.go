package migrations

import (
	"database/sql"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

func TestRunCreatesSchema(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := Run(db); err != nil {
		t.Fatalf("run: %v", err)
	}

	for _, table := range []string{"feeds", "entries", "articles"} {
		var name string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("expected table %s: %v", table, err)
		}
	}

	// Running again is a no-op.
	if err := Run(db); err != nil {
		t.Fatalf("second run: %v", err)
	}
}

func TestApplyRejectsUnknownCommand(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = db.Close() }()

	err = Apply(db, "sideways")
	if err == nil || !strings.Contains(err.Error(), "sideways") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestCommandsCoverApply(t *testing.T) {
	for name := range Commands() {
		if _, ok := commands[name]; !ok {
			t.Errorf("advertised command %q has no implementation", name)
		}
	}
}
