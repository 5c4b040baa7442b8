// Package dialects provides database-specific SQL dialect implementations for
// MySQL, PostgreSQL, and SQLite, handling identifier quoting, placeholders,
// LIMIT/lock rendering and savepoint support.
package dialects

import "sort"

// Dialect defines database-specific behaviors.
type Dialect interface {
	// Name returns the canonical dialect name (mysql, postgres, sqlite).
	Name() string
	QuoteIdentifier(string) string
	// Placeholder returns the positional placeholder for the n-th (1-based) argument.
	Placeholder(int) string
	// LimitSQL renders the LIMIT clause. A non-positive length means no limit.
	LimitSQL(offset, length int) string
	// LockSQL renders a row lock clause. "" disables locking.
	LockSQL(lock string) string
	// ForceIndexSQL renders an index hint placed right after the table name.
	ForceIndexSQL(index string) string
	// FindInSetSQL renders a membership test of value in a comma separated column.
	FindInSetSQL(value, column string) string
	SupportsSavepoints() bool
	SupportsReplace() bool
}

var dialects = make(map[string]Dialect)

// RegisterDialect registers a database dialect by driver name.
func RegisterDialect(name string, d Dialect) {
	dialects[name] = d
}

// Lookup retrieves a registered dialect by driver name.
func Lookup(name string) (Dialect, bool) {
	d, ok := dialects[name]
	return d, ok
}

// GetDialect retrieves a registered dialect by driver name, panics if not found.
func GetDialect(name string) Dialect {
	if d, ok := dialects[name]; ok {
		return d
	}
	panic("unsupported dialect: " + name)
}

// Names returns the registered driver names in sorted order.
func Names() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
