package database

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(SQLite, "file:"+t.Name()+"?mode=memory&cache=shared", 1)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.InitTables(context.Background()); err != nil {
		t.Fatalf("init tables: %v", err)
	}
	return db
}

func insertUser(t *testing.T, q Querier, id, email, username string) error {
	t.Helper()
	now := time.Now().UTC()
	_, err := q.Exec(context.Background(),
		`INSERT INTO users (id, email, username, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, email, username, "hash", now, now)
	return err
}

func countUsers(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	if err := db.QueryRow(context.Background(), `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestRebind(t *testing.T) {
	q := "SELECT * FROM users WHERE email = ? AND id = ?"
	if got := Postgres.Rebind(q); got != "SELECT * FROM users WHERE email = $1 AND id = $2" {
		t.Fatalf("unexpected postgres rebind: %s", got)
	}
	if got := MySQL.Rebind(q); got != q {
		t.Fatalf("mysql query should be unchanged, got %s", got)
	}
	if got := SQLite.Rebind(q); got != q {
		t.Fatalf("sqlite query should be unchanged, got %s", got)
	}
}

func TestUpsert(t *testing.T) {
	my := MySQL.Upsert([]string{"user_id", "product_id"}, []string{"viewed_at"})
	if my != " ON DUPLICATE KEY UPDATE viewed_at = VALUES(viewed_at)" {
		t.Fatalf("unexpected mysql upsert: %q", my)
	}
	pg := Postgres.Upsert([]string{"user_id", "product_id"}, []string{"viewed_at"})
	if pg != " ON CONFLICT (user_id, product_id) DO UPDATE SET viewed_at = excluded.viewed_at" {
		t.Fatalf("unexpected postgres upsert: %q", pg)
	}
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{"mysql": MySQL, "MariaDB": MySQL, "postgresql": Postgres, "sqlite": SQLite} {
		got, ok := ParseDialect(in)
		if !ok || got != want {
			t.Fatalf("%s: expected %s got %s (%v)", in, want, got, ok)
		}
	}
	if _, ok := ParseDialect("oracle"); ok {
		t.Fatalf("oracle should not be supported")
	}
}

func TestInitTablesIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	if err := db.InitTables(context.Background()); err != nil {
		t.Fatalf("second init: %v", err)
	}
}

func TestTransactionCommit(t *testing.T) {
	db := setupTestDB(t)
	err := db.Transaction(context.Background(), func(tx *Tx) error {
		return insertUser(t, tx, "u1", "a@example.com", "alice")
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if n := countUsers(t, db); n != 1 {
		t.Fatalf("expected 1 user got %d", n)
	}
}

func TestTransactionRollbackOnError(t *testing.T) {
	db := setupTestDB(t)
	boom := errors.New("boom")
	err := db.Transaction(context.Background(), func(tx *Tx) error {
		if err := insertUser(t, tx, "u1", "a@example.com", "alice"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom got %v", err)
	}
	if n := countUsers(t, db); n != 0 {
		t.Fatalf("expected rollback, found %d users", n)
	}
}

func TestTransactionRollbackOnPanic(t *testing.T) {
	db := setupTestDB(t)
	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = db.Transaction(context.Background(), func(tx *Tx) error {
			if err := insertUser(t, tx, "u1", "a@example.com", "alice"); err != nil {
				return err
			}
			panic("boom")
		})
	}()
	if n := countUsers(t, db); n != 0 {
		t.Fatalf("expected rollback after panic, found %d users", n)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	db := setupTestDB(t)
	if err := insertUser(t, db, "u1", "a@example.com", "alice"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := insertUser(t, db, "u2", "a@example.com", "bob")
	if err == nil {
		t.Fatalf("expected duplicate email to fail")
	}
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
	if IsUniqueViolation(errors.New("other")) || IsUniqueViolation(nil) {
		t.Fatalf("plain errors are not unique violations")
	}
}

func TestMongoDatabaseName(t *testing.T) {
	cases := map[string]string{
		"mongodb://localhost:27017":                         "usedgoods",
		"mongodb://localhost:27017/":                        "usedgoods",
		"mongodb+srv://u:p@cluster.example/market?retry=1": "market",
	}
	for in, want := range cases {
		if got := mongoDatabaseName(in); got != want {
			t.Fatalf("%s: expected %s got %s", in, want, got)
		}
	}
}

func TestColumnTypesFillEveryPlaceholder(t *testing.T) {
	for _, d := range []Dialect{MySQL, Postgres, SQLite} {
		r := d.columnTypes()
		for _, ddl := range tables {
			if out := r.Replace(ddl); strings.Contains(out, "{{") {
				t.Fatalf("%s: unreplaced placeholder in %s", d, out)
			}
		}
	}
}
