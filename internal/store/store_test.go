package store

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "terminal.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_CreatesCoreTables(t *testing.T) {
	s := newTestStore(t)

	sqlDB, err := s.gdb.DB()
	if err != nil {
		t.Fatalf("unwrap sql db: %v", err)
	}
	for _, name := range []string{"sessions", "panes", "project_settings"} {
		var got string
		if err := sqlDB.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&got); err != nil {
			t.Fatalf("missing table %s: %v", name, err)
		}
	}
}

func TestOpen_IsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terminal.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	_ = s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	defer s.Close()

	sqlDB, err := s.gdb.DB()
	if err != nil {
		t.Fatalf("unwrap sql db: %v", err)
	}
	var n int
	if err := sqlDB.QueryRow(`SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='sessions'`).Scan(&n); err != nil {
		t.Fatalf("count sessions table: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one sessions table, got %d", n)
	}
}

func TestOpen_EnablesWAL(t *testing.T) {
	s := newTestStore(t)

	sqlDB, err := s.gdb.DB()
	if err != nil {
		t.Fatalf("unwrap sql db: %v", err)
	}
	var mode sql.NullString
	if err := sqlDB.QueryRow(`PRAGMA journal_mode;`).Scan(&mode); err != nil {
		t.Fatalf("read journal mode: %v", err)
	}
	if !mode.Valid || mode.String != "wal" {
		t.Fatalf("expected wal journal mode, got %v", mode)
	}
}
