// Package migrations embeds the crawler schema and applies it with goose.
// The daemon calls Run on startup so a fresh database is usable without a
// separate migrate step; the migrate CLI drives Apply for everything else.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var fs embed.FS

// Run brings the schema to the latest version.
func Run(db *sql.DB) error {
	return Apply(db, "up")
}

// Apply executes one migration command against the embedded schema.
func Apply(db *sql.DB, command string) error {
	goose.SetBaseFS(fs)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	op, ok := commands[command]
	if !ok {
		return fmt.Errorf("unknown migration command %q", command)
	}
	if err := op(db); err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	return nil
}

// Commands lists the migration commands Apply accepts, with a short
// description for CLI usage output.
func Commands() map[string]string {
	return map[string]string{
		"up":      "migrate to the latest version",
		"up-one":  "migrate one version up",
		"down":    "roll back one version",
		"status":  "show migration status",
		"version": "show current version",
		"reset":   "roll back all migrations",
	}
}

var commands = map[string]func(*sql.DB) error{
	"up":      func(db *sql.DB) error { return goose.Up(db, ".") },
	"up-one":  func(db *sql.DB) error { return goose.UpByOne(db, ".") },
	"down":    func(db *sql.DB) error { return goose.Down(db, ".") },
	"status":  func(db *sql.DB) error { return goose.Status(db, ".") },
	"version": func(db *sql.DB) error { return goose.Version(db, ".") },
	"reset":   func(db *sql.DB) error { return goose.Reset(db, ".") },
}
