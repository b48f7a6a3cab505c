package sqldoc

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Supported dialects.
const (
	SQLite   = "sqlite"
	MySQL    = "mysql"
	Postgres = "postgres"
)

func validDialect(dialect string) bool {
	switch dialect {
	case SQLite, MySQL, Postgres:
		return true
	}
	return false
}

// storeTable is the single SQL table backing all document tables.
const storeTable = "rowguard_documents"

// ddl returns the dialect's CREATE TABLE statement for the document store.
func ddl(dialect string) string {
	switch dialect {
	case MySQL:
		return `CREATE TABLE IF NOT EXISTS ` + storeTable + ` (
	seq BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
	tbl VARCHAR(191) NOT NULL,
	k VARCHAR(191) NOT NULL,
	v JSON NOT NULL,
	created BIGINT NOT NULL,
	UNIQUE KEY uq_tbl_k (tbl, k)
)`
	case Postgres:
		return `CREATE TABLE IF NOT EXISTS ` + storeTable + ` (
	seq BIGSERIAL PRIMARY KEY,
	tbl TEXT NOT NULL,
	k TEXT NOT NULL,
	v JSONB NOT NULL,
	created BIGINT NOT NULL,
	UNIQUE (tbl, k)
)`
	default: // SQLite
		return `CREATE TABLE IF NOT EXISTS ` + storeTable + ` (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	tbl TEXT NOT NULL,
	k TEXT NOT NULL,
	v TEXT NOT NULL,
	created BIGINT NOT NULL,
	UNIQUE (tbl, k)
)`
	}
}

// rebind rewrites ?-style placeholders to the dialect's own style.
func rebind(dialect, query string) string {
	if dialect != Postgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// forUpdate returns the dialect's row-locking clause for read-modify-write
// transactions. SQLite serializes writers already.
func forUpdate(dialect string) string {
	if dialect == SQLite {
		return ""
	}
	return " FOR UPDATE"
}

// validFieldRe matches the document field names allowed to appear in
// generated JSON-path expressions.
var validFieldRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// jsonOrderExpr returns the dialect's expression extracting a top-level
// document field for ORDER BY. Field names are interpolated, so they are
// restricted to identifier form.
func jsonOrderExpr(dialect, field string) (string, error) {
	if !validFieldRe.MatchString(field) {
		return "", fmt.Errorf("sqldoc: invalid index field name %q", field)
	}
	switch dialect {
	case MySQL:
		return "JSON_EXTRACT(v, '$." + field + "')", nil
	case Postgres:
		return "v -> '" + field + "'", nil
	default: // SQLite
		return "json_extract(v, '$." + field + "')", nil
	}
}
