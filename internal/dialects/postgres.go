package dialects

import (
	"fmt"
	"strconv"

	"github.com/lib/pq"
)

// PostgresDialect implements PostgreSQL-specific SQL dialect.
type PostgresDialect struct{}

func init() {
	RegisterDialect("postgres", &PostgresDialect{})
	RegisterDialect("postgresql", &PostgresDialect{})
	RegisterDialect("pgsql", &PostgresDialect{})
}

// Name returns "postgres".
func (d *PostgresDialect) Name() string { return "postgres" }

// QuoteIdentifier quotes a PostgreSQL identifier using double quotes.
func (d *PostgresDialect) QuoteIdentifier(s string) string {
	return pq.QuoteIdentifier(s)
}

// Placeholder returns PostgreSQL placeholder format ($1, $2, etc.).
func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

// LimitSQL renders "LIMIT length OFFSET offset".
func (d *PostgresDialect) LimitSQL(offset, length int) string {
	if length <= 0 {
		return ""
	}
	if offset > 0 {
		return "LIMIT " + strconv.Itoa(length) + " OFFSET " + strconv.Itoa(offset)
	}
	return "LIMIT " + strconv.Itoa(length)
}

// LockSQL returns the lock clause as given ("FOR UPDATE", "FOR SHARE", ...).
func (d *PostgresDialect) LockSQL(lock string) string {
	return lock
}

// ForceIndexSQL returns "": PostgreSQL has no index hints.
func (d *PostgresDialect) ForceIndexSQL(_ string) string {
	return ""
}

// FindInSetSQL emulates FIND_IN_SET with string_to_array.
func (d *PostgresDialect) FindInSetSQL(value, column string) string {
	return value + " = ANY(string_to_array(" + column + ", ','))"
}

// SupportsSavepoints reports true.
func (d *PostgresDialect) SupportsSavepoints() bool { return true }

// SupportsReplace reports false: use ON CONFLICT instead.
func (d *PostgresDialect) SupportsReplace() bool { return false }
