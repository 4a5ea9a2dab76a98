package db

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect identifies the SQL flavour of the backend. Queries are written with
// "?" placeholders and rebound for dialects that need numbered parameters.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// ParseDialect maps a configured driver name onto a Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

// Rebind rewrites "?" placeholders into "$1, $2, ..." for Postgres.
// Placeholders inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inLiteral := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inLiteral = !inLiteral
			b.WriteByte(c)
		case c == '?' && !inLiteral:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// DDL substitutes dialect-specific column types into a schema statement.
func (d Dialect) DDL(stmt string) string {
	jsonType := "TEXT"
	if d == Postgres {
		jsonType = "JSONB"
	}
	return strings.ReplaceAll(stmt, "{{json}}", jsonType)
}
