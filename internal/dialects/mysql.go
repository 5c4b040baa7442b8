package dialects

import (
	"strconv"
	"strings"
)

// MySQLDialect implements MySQL-specific SQL dialect.
type MySQLDialect struct{}

func init() {
	RegisterDialect("mysql", &MySQLDialect{})
}

// Name returns "mysql".
func (d *MySQLDialect) Name() string { return "mysql" }

// QuoteIdentifier quotes a MySQL identifier using backticks.
func (d *MySQLDialect) QuoteIdentifier(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// Placeholder returns MySQL placeholder format (always "?").
func (d *MySQLDialect) Placeholder(_ int) string {
	return "?"
}

// LimitSQL renders "LIMIT offset,length" or "LIMIT length".
func (d *MySQLDialect) LimitSQL(offset, length int) string {
	if length <= 0 {
		return ""
	}
	if offset > 0 {
		return "LIMIT " + strconv.Itoa(offset) + "," + strconv.Itoa(length)
	}
	return "LIMIT " + strconv.Itoa(length)
}

// LockSQL returns the lock clause as given ("FOR UPDATE", "LOCK IN SHARE MODE", ...).
func (d *MySQLDialect) LockSQL(lock string) string {
	return lock
}

// ForceIndexSQL renders "FORCE INDEX ( idx )".
func (d *MySQLDialect) ForceIndexSQL(index string) string {
	if index == "" {
		return ""
	}
	return "FORCE INDEX ( " + index + " )"
}

// FindInSetSQL renders MySQL's native FIND_IN_SET.
func (d *MySQLDialect) FindInSetSQL(value, column string) string {
	return "FIND_IN_SET(" + value + ", " + column + ")"
}

// SupportsSavepoints reports true: InnoDB supports SAVEPOINT.
func (d *MySQLDialect) SupportsSavepoints() bool { return true }

// SupportsReplace reports true.
func (d *MySQLDialect) SupportsReplace() bool { return true }
