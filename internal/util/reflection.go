// Package util provides the reflection helpers behind struct-based rows:
// mapping exported fields to columns through `db` tags, locating the primary
// key and writing generated ids back.
package util

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Field describes one struct field mapped to a column.
type Field struct {
	Name   string
	Column string
	PK     bool
	Index  []int
}

var fieldCache sync.Map // reflect.Type -> []Field

// parseDBTag splits a `db` tag into the column name and the pk flag.
//
//	db:"email"     column email
//	db:"id,pk"     column id, primary key
//	db:"-"         skipped
func parseDBTag(tag string) (column string, isPK bool) {
	parts := strings.Split(tag, ",")
	column = strings.TrimSpace(parts[0])
	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "pk" {
			isPK = true
		}
	}
	return column, isPK
}

// Fields returns the column mapping of struct type t, in declaration order.
// Embedded structs are flattened. Untagged fields map to their snake_case name.
func Fields(t reflect.Type) []Field {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]Field)
	}

	fields := collectFields(t, nil)
	fieldCache.Store(t, fields)
	return fields
}

func collectFields(t reflect.Type, parent []int) []Field {
	var fields []Field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		index := append(append([]int(nil), parent...), i)

		if sf.Anonymous && sf.Type.Kind() == reflect.Struct && sf.Tag.Get("db") == "" {
			fields = append(fields, collectFields(sf.Type, index)...)
			continue
		}
		if !sf.IsExported() {
			continue
		}

		column, isPK := SnakeCase(sf.Name), false
		if tag, ok := sf.Tag.Lookup("db"); ok {
			name, pk := parseDBTag(tag)
			if name == "-" {
				continue
			}
			if name != "" {
				column = name
			}
			isPK = pk
		}
		fields = append(fields, Field{Name: sf.Name, Column: column, PK: isPK, Index: index})
	}
	return fields
}

// SnakeCase converts a Go identifier to snake_case: UserID -> user_id.
func SnakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 {
			prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if prevLower || (nextLower && runes[i-1] >= 'A' && runes[i-1] <= 'Z') {
				b.WriteByte('_')
			}
		}
		if upper {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ToMap converts row data to a column map. It accepts map[string]any
// (copied) or a struct / pointer to struct.
func ToMap(data any) (map[string]any, error) {
	if m, ok := data.(map[string]any); ok {
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, nil
	}

	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, errors.New("ToMap: nil pointer")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("ToMap: expected map or struct, got %T", data)
	}

	fields := Fields(v.Type())
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		out[f.Column] = v.FieldByIndex(f.Index).Interface()
	}
	return out, nil
}

// PrimaryKeyField locates the primary key of a struct value: the first
// field tagged `pk`, else the field named ID.
func PrimaryKeyField(v reflect.Value) (Field, reflect.Value, error) {
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return Field{}, reflect.Value{}, errors.New("PrimaryKeyField: nil pointer")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return Field{}, reflect.Value{}, errors.New("PrimaryKeyField: not a struct")
	}

	fields := Fields(v.Type())
	for _, f := range fields {
		if f.PK {
			return f, v.FieldByIndex(f.Index), nil
		}
	}
	for _, f := range fields {
		if f.Name == "ID" {
			return f, v.FieldByIndex(f.Index), nil
		}
	}
	return Field{}, reflect.Value{}, errors.New("PrimaryKeyField: no primary key found")
}

// IsZeroID reports whether an integer id field still needs a generated value.
// Non-integer keys are never auto-populated.
func IsZeroID(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Ptr:
		return v.IsNil() || IsZeroID(v.Elem())
	default:
		return false
	}
}

// SetID stores a generated id into an integer field, allocating pointers.
func SetID(field reflect.Value, id int64) error {
	if !field.CanSet() {
		return errors.New("SetID: field is not settable")
	}

	switch field.Kind() {
	case reflect.Ptr:
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return SetID(field.Elem(), id)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.OverflowInt(id) {
			return fmt.Errorf("SetID: %d overflows %s", id, field.Kind())
		}
		field.SetInt(id)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if id < 0 || field.OverflowUint(uint64(id)) {
			return fmt.Errorf("SetID: %d overflows %s", id, field.Kind())
		}
		field.SetUint(uint64(id))
	default:
		return errors.New("SetID: unsupported type " + field.Kind().String())
	}
	return nil
}
