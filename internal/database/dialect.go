package database

import (
	"strconv"
	"strings"
)

// Dialect identifies the SQL engine behind a DB and smooths over the few
// places where the supported engines disagree.
type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite3"
)

// ParseDialect maps a DB_DRIVER value to a Dialect.
func ParseDialect(driver string) (Dialect, bool) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "mysql", "mariadb":
		return MySQL, true
	case "postgres", "postgresql", "pq":
		return Postgres, true
	case "sqlite", "sqlite3":
		return SQLite, true
	}
	return "", false
}

// Rebind rewrites '?' placeholders into the engine's bind syntax.
// Queries in this module never carry a literal '?'.
func (d Dialect) Rebind(query string) string {
	if d != Postgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Upsert returns the clause appended to an INSERT so a conflicting row on
// conflictCols gets the listed columns overwritten with the new values.
func (d Dialect) Upsert(conflictCols []string, updateCols []string) string {
	sets := make([]string, len(updateCols))
	if d == MySQL {
		for i, c := range updateCols {
			sets[i] = c + " = VALUES(" + c + ")"
		}
		return " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}
	for i, c := range updateCols {
		sets[i] = c + " = excluded." + c
	}
	return " ON CONFLICT (" + strings.Join(conflictCols, ", ") + ") DO UPDATE SET " + strings.Join(sets, ", ")
}

// columnTypes fills the schema placeholders for each engine.
func (d Dialect) columnTypes() *strings.Replacer {
	switch d {
	case MySQL:
		return strings.NewReplacer(
			"{{id}}", "VARCHAR(36)",
			"{{serial}}", "BIGINT AUTO_INCREMENT PRIMARY KEY",
			"{{ts}}", "DATETIME(6)",
			"{{bool}}", "BOOLEAN",
			"{{float}}", "DOUBLE",
			"{{table_opts}}", " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
		)
	case Postgres:
		return strings.NewReplacer(
			"{{id}}", "VARCHAR(36)",
			"{{serial}}", "BIGSERIAL PRIMARY KEY",
			"{{ts}}", "TIMESTAMP",
			"{{bool}}", "BOOLEAN",
			"{{float}}", "DOUBLE PRECISION",
			"{{table_opts}}", "",
		)
	default:
		return strings.NewReplacer(
			"{{id}}", "VARCHAR(36)",
			"{{serial}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
			"{{ts}}", "DATETIME",
			"{{bool}}", "BOOLEAN",
			"{{float}}", "REAL",
			"{{table_opts}}", "",
		)
	}
}

// createIndex returns a CREATE INDEX statement. MySQL has no IF NOT EXISTS for
// indexes; duplicate-name errors are ignored by the caller instead.
func (d Dialect) createIndex(name, table, columns string) string {
	if d == MySQL {
		return "CREATE INDEX " + name + " ON " + table + "(" + columns + ")"
	}
	return "CREATE INDEX IF NOT EXISTS " + name + " ON " + table + "(" + columns + ")"
}
