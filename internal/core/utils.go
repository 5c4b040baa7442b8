package core

import (
	"reflect"
	"sort"
	"strings"

	"github.com/coregx/quarry/internal/util"
)

// TableModel defines an interface for models that provide custom table names.
type TableModel interface {
	TableName() string
}

// inferTableName determines the table name of a model: its TableName method,
// or the snake_case struct name with an "s" appended.
func inferTableName(model any) string {
	if tm, ok := model.(TableModel); ok {
		return tm.TableName()
	}

	t := reflect.TypeOf(model)
	for t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice {
		t = t.Elem()
	}

	name := util.SnakeCase(t.Name())
	if !strings.HasSuffix(name, "s") {
		name += "s"
	}
	return name
}

// getKeys returns the keys of m in sorted order.
func getKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// isNil reports whether v is nil or a nil pointer.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// asList returns the elements of a slice or array value. Byte slices are
// scalars, not lists.
func asList(v any) ([]any, bool) {
	if _, ok := v.([]byte); ok {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// splitTable parses "table", "table alias" and "table AS alias".
func splitTable(name string) (table, alias string) {
	parts := strings.Fields(name)
	switch {
	case len(parts) == 3 && strings.EqualFold(parts[1], "AS"):
		return parts[0], parts[2]
	case len(parts) == 2:
		return parts[0], parts[1]
	}
	return strings.TrimSpace(name), ""
}

// joinNonEmpty joins the non-empty parts with one space.
func joinNonEmpty(parts ...string) string {
	var sb strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(p)
	}
	return sb.String()
}
