package dbopen_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/domsight/dbopen"
)

func TestOpenMemory_Pragmas(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithBusyTimeout(5000))

	var fk, busy, sync int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&busy); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRow("PRAGMA synchronous").Scan(&sync); err != nil {
		t.Fatal(err)
	}
	if fk != 1 || busy != 5000 || sync != 1 {
		t.Errorf("foreign_keys=%d busy_timeout=%d synchronous=%d", fk, busy, sync)
	}
}

func TestOpen_SchemaAndMkdir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	db, err := dbopen.Open(path,
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(`CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)`),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil || mode != "wal" {
		t.Errorf("journal_mode = %q, %v", mode, err)
	}
	if _, err := dbopen.Exec(context.Background(), db, `INSERT INTO t (v) VALUES (?)`, "x"); err != nil {
		t.Fatal(err)
	}
}

func TestOpen_BadSchema(t *testing.T) {
	_, err := dbopen.Open(":memory:", dbopen.WithSchema("NOT SQL"))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestIsBusy(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("SQLITE_BUSY"), true},
		{errors.New("database is locked (5)"), true},
		{errors.New("database table is locked"), true},
		{errors.New("no such table"), false},
	}
	for _, tt := range tests {
		if got := dbopen.IsBusy(tt.err); got != tt.want {
			t.Errorf("IsBusy(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestExec_NotBusyNotRetried(t *testing.T) {
	db := dbopen.OpenMemory(t)
	if _, err := dbopen.Exec(context.Background(), db, "INSERT INTO missing VALUES (1)"); err == nil {
		t.Fatal("expected error")
	}
}
