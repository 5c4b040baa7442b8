package dialects

import (
	"strconv"
	"strings"
)

// SQLiteDialect implements SQLite-specific SQL dialect.
type SQLiteDialect struct{}

func init() {
	RegisterDialect("sqlite", &SQLiteDialect{})
	RegisterDialect("sqlite3", &SQLiteDialect{})
}

// Name returns "sqlite".
func (d *SQLiteDialect) Name() string { return "sqlite" }

// QuoteIdentifier quotes a SQLite identifier using double quotes.
func (d *SQLiteDialect) QuoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Placeholder returns SQLite placeholder format (always "?").
func (d *SQLiteDialect) Placeholder(_ int) string {
	return "?"
}

// LimitSQL renders "LIMIT length OFFSET offset".
func (d *SQLiteDialect) LimitSQL(offset, length int) string {
	if length <= 0 {
		return ""
	}
	if offset > 0 {
		return "LIMIT " + strconv.Itoa(length) + " OFFSET " + strconv.Itoa(offset)
	}
	return "LIMIT " + strconv.Itoa(length)
}

// LockSQL returns "": SQLite locks the whole database file.
func (d *SQLiteDialect) LockSQL(_ string) string {
	return ""
}

// ForceIndexSQL renders "INDEXED BY idx".
func (d *SQLiteDialect) ForceIndexSQL(index string) string {
	if index == "" {
		return ""
	}
	return "INDEXED BY " + index
}

// FindInSetSQL emulates FIND_IN_SET with instr over comma-wrapped strings.
func (d *SQLiteDialect) FindInSetSQL(value, column string) string {
	return "instr(',' || " + column + " || ',', ',' || " + value + " || ',') > 0"
}

// SupportsSavepoints reports true.
func (d *SQLiteDialect) SupportsSavepoints() bool { return true }

// SupportsReplace reports true (REPLACE INTO is an alias of INSERT OR REPLACE).
func (d *SQLiteDialect) SupportsReplace() bool { return true }
