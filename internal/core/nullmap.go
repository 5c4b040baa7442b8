package core

import (
	"database/sql"
	"slices"

	"github.com/spf13/cast"
)

// NullStringMap is one row read without a struct: column name to text value,
// with SQL NULL kept apart from the empty string. FindOne, FindAll and
// FindBySQL fill it (or a slice of it) from the raw or cached row.
//
//	var row quarry.NullStringMap
//	err := db.Table("users").Field("name", "email").Find(ctx, &row, 7)
type NullStringMap map[string]sql.NullString

// String returns the column text; NULL and missing columns read as "".
func (m NullStringMap) String(key string) string {
	if v, ok := m[key]; ok && v.Valid {
		return v.String
	}
	return ""
}

// Int64 parses the column as an integer. ok is false for NULL, a missing
// column or text that is not a number.
func (m NullStringMap) Int64(key string) (n int64, ok bool) {
	v, found := m[key]
	if !found || !v.Valid {
		return 0, false
	}
	n, err := cast.ToInt64E(v.String)
	return n, err == nil
}

// Float64 parses the column like Int64, accepting decimals.
func (m NullStringMap) Float64(key string) (f float64, ok bool) {
	v, found := m[key]
	if !found || !v.Valid {
		return 0, false
	}
	f, err := cast.ToFloat64E(v.String)
	return f, err == nil
}

// IsNull reports SQL NULL. A column the row does not have counts as NULL.
func (m NullStringMap) IsNull(key string) bool {
	v, ok := m[key]
	return !ok || !v.Valid
}

// Has reports whether the row has the column, NULL or not.
func (m NullStringMap) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// Keys returns the column names sorted.
func (m NullStringMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Get returns the raw column value.
func (m NullStringMap) Get(key string) (sql.NullString, bool) {
	v, ok := m[key]
	return v, ok
}

// Values converts the row to map[string]any with nil for NULL, the shape
// used by Data and Insert.
func (m NullStringMap) Values() map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if v.Valid {
			out[k] = v.String
		} else {
			out[k] = nil
		}
	}
	return out
}
