package storage

import (
	"path/filepath"
	"testing"

	"soilchat/internal/config"
)

func TestRebind(t *testing.T) {
	q := "INSERT INTO messages (session_id, role) VALUES (?, ?)"
	if got := Rebind(DialectSQLite, q); got != q {
		t.Fatalf("sqlite query changed: %s", got)
	}
	want := "INSERT INTO messages (session_id, role) VALUES ($1, $2)"
	if got := Rebind(DialectPostgres, q); got != want {
		t.Fatalf("unexpected postgres query: %s", got)
	}
}

func TestDialectOf(t *testing.T) {
	cases := map[string]Dialect{
		"sqlite3":  DialectSQLite,
		"sqlite":   DialectSQLite,
		"mysql":    DialectMySQL,
		"postgres": DialectPostgres,
		"pgx":      DialectPostgres,
	}
	for in, want := range cases {
		if got := DialectOf(in); got != want {
			t.Fatalf("DialectOf(%q)=%s want %s", in, got, want)
		}
	}
}

func TestOpenAndMigrateSQLite(t *testing.T) {
	cfg := config.Default()
	cfg.Databases = map[string]config.DatabaseConfig{
		"sqlite": {DSN: filepath.Join(t.TempDir(), "chat.db")},
	}
	db, err := Open("sqlite", cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if err := Migrate(db, "sqlite"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// migrations are repeatable
	if err := Migrate(db, "sqlite"); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('sessions','messages')`).Scan(&n); err != nil {
		t.Fatalf("query tables: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 tables, got %d", n)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Databases["oracle"] = config.DatabaseConfig{DSN: "x"}
	if _, err := Open("oracle", cfg); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
	if _, err := Open("missing", cfg); err == nil {
		t.Fatalf("expected missing config error")
	}
}
