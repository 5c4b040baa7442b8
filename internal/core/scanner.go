package core

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/coregx/quarry/internal/util"
)

var (
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	timeType    = reflect.TypeOf(time.Time{})
)

// destKind classifies a scan destination.
type destKind int

const (
	destStruct destKind = iota
	destStructs
	destMap
	destMaps
	destNullMap
	destNullMaps
	destScalar
	destScalars
)

// classify validates dest, a non-nil pointer, and returns its kind.
func classify(dest any) (destKind, reflect.Value, error) {
	switch dest.(type) {
	case *map[string]any:
		return destMap, reflect.ValueOf(dest).Elem(), nil
	case *[]map[string]any:
		return destMaps, reflect.ValueOf(dest).Elem(), nil
	case *NullStringMap:
		return destNullMap, reflect.ValueOf(dest).Elem(), nil
	case *[]NullStringMap:
		return destNullMaps, reflect.ValueOf(dest).Elem(), nil
	}

	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return 0, reflect.Value{}, fmt.Errorf("scanner: dest must be a non-nil pointer, got %T", dest)
	}
	v := rv.Elem()

	if v.Kind() == reflect.Slice && v.Type().Elem().Kind() != reflect.Uint8 {
		elem := v.Type().Elem()
		if elem.Kind() == reflect.Ptr {
			elem = elem.Elem()
		}
		if isRowStruct(elem) {
			return destStructs, v, nil
		}
		return destScalars, v, nil
	}
	if isRowStruct(v.Type()) {
		return destStruct, v, nil
	}
	return destScalar, v, nil
}

// isRowStruct reports whether t is scanned field by field. Structs that are
// scanned as one value (time.Time, sql.Null*) are not.
func isRowStruct(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t != timeType && !reflect.PointerTo(t).Implements(scannerType)
}

// single reports whether the destination holds one row.
func (k destKind) single() bool {
	switch k {
	case destStruct, destMap, destNullMap, destScalar:
		return true
	}
	return false
}

// scanRows scans rows into dest and returns the number of rows scanned.
// Slice destinations are truncated first, so a retried statement does not
// append twice. A single-row destination stops after the first row.
func scanRows(rows *sql.Rows, dest any) (int, error) {
	kind, v, err := classify(dest)
	if err != nil {
		return 0, err
	}
	if !kind.single() {
		v.Set(reflect.MakeSlice(v.Type(), 0, 0))
	}

	columns, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("scanner: failed to get columns: %w", err)
	}

	n := 0
	for rows.Next() {
		var target reflect.Value
		switch kind {
		case destStruct, destScalar:
			target = v
		case destStructs, destScalars:
			elem := v.Type().Elem()
			if elem.Kind() == reflect.Ptr {
				target = reflect.New(elem.Elem()).Elem()
			} else {
				target = reflect.New(elem).Elem()
			}
		}

		switch kind {
		case destStruct, destStructs:
			err = scanStruct(rows, columns, target)
		case destScalar, destScalars:
			err = scanScalar(rows, columns, target)
		case destMap:
			var m map[string]any
			if m, err = scanMap(rows, columns); err == nil {
				v.Set(reflect.ValueOf(m))
			}
		case destMaps:
			var m map[string]any
			if m, err = scanMap(rows, columns); err == nil {
				v.Set(reflect.Append(v, reflect.ValueOf(m)))
			}
		case destNullMap, destNullMaps:
			var m NullStringMap
			if m, err = scanNullMap(rows, columns); err == nil {
				if kind == destNullMap {
					v.Set(reflect.ValueOf(m))
				} else {
					v.Set(reflect.Append(v, reflect.ValueOf(m)))
				}
			}
		}
		if err != nil {
			return n, err
		}
		n++

		if kind == destStructs || kind == destScalars {
			if v.Type().Elem().Kind() == reflect.Ptr {
				target = target.Addr()
			}
			v.Set(reflect.Append(v, target))
		}
		if kind.single() {
			break
		}
	}

	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("scanner: rows iteration failed: %w", err)
	}
	return n, nil
}

// columnMap maps lowercased column names to the fields of struct type t.
func columnMap(t reflect.Type) map[string]util.Field {
	fields := util.Fields(t)
	m := make(map[string]util.Field, len(fields))
	for _, f := range fields {
		m[strings.ToLower(f.Column)] = f
	}
	return m
}

// scanStruct scans the current row into the struct value v. Columns without
// a matching field are discarded.
func scanStruct(rows *sql.Rows, columns []string, v reflect.Value) error {
	fields := columnMap(v.Type())

	dests := make([]any, len(columns))
	for i, col := range columns {
		if f, ok := fields[strings.ToLower(col)]; ok {
			dests[i] = fieldByIndex(v, f.Index).Addr().Interface()
			continue
		}
		var dummy any
		dests[i] = &dummy
	}

	if err := rows.Scan(dests...); err != nil {
		return fmt.Errorf("scanner: scan failed: %w", err)
	}
	return nil
}

// fieldByIndex walks an index path, allocating nil embedded pointers.
func fieldByIndex(v reflect.Value, index []int) reflect.Value {
	for i, idx := range index {
		if i > 0 && v.Kind() == reflect.Ptr {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(idx)
	}
	return v
}

// scanScalar scans the first column of the current row into v.
func scanScalar(rows *sql.Rows, columns []string, v reflect.Value) error {
	dests := make([]any, len(columns))
	for i := range dests {
		var dummy any
		dests[i] = &dummy
	}
	if len(dests) > 0 {
		dests[0] = v.Addr().Interface()
	}
	if err := rows.Scan(dests...); err != nil {
		return fmt.Errorf("scanner: scan failed: %w", err)
	}
	return nil
}

// scanMap scans the current row into a column map. Byte slices become strings.
func scanMap(rows *sql.Rows, columns []string) (map[string]any, error) {
	values := make([]any, len(columns))
	dests := make([]any, len(columns))
	for i := range values {
		dests[i] = &values[i]
	}
	if err := rows.Scan(dests...); err != nil {
		return nil, fmt.Errorf("scanner: scan failed: %w", err)
	}

	m := make(map[string]any, len(columns))
	for i, col := range columns {
		if b, ok := values[i].([]byte); ok {
			m[col] = string(b)
			continue
		}
		m[col] = values[i]
	}
	return m, nil
}

// scanNullMap scans the current row into a NullStringMap.
// All values are scanned as sql.NullString regardless of actual column type.
func scanNullMap(rows *sql.Rows, columns []string) (NullStringMap, error) {
	values := make([]sql.NullString, len(columns))
	dests := make([]any, len(columns))
	for i := range values {
		dests[i] = &values[i]
	}
	if err := rows.Scan(dests...); err != nil {
		return nil, fmt.Errorf("scanner: scan failed: %w", err)
	}

	m := make(NullStringMap, len(columns))
	for i, col := range columns {
		m[col] = values[i]
	}
	return m, nil
}

// collectMaps scans all rows into column maps.
func collectMaps(rows *sql.Rows) ([]map[string]any, error) {
	var out []map[string]any
	if _, err := scanRows(rows, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// assignRows fills dest from column maps, as scanRows would from rows, and
// returns the number of rows assigned. It serves results that were
// materialized before, such as cached ones.
func assignRows(rows []map[string]any, dest any) (int, error) {
	kind, v, err := classify(dest)
	if err != nil {
		return 0, err
	}
	if kind.single() {
		if len(rows) == 0 {
			return 0, nil
		}
		rows = rows[:1]
	}

	switch kind {
	case destMap:
		v.Set(reflect.ValueOf(rows[0]))
	case destMaps:
		v.Set(reflect.ValueOf(rows))
	case destNullMap:
		v.Set(reflect.ValueOf(toNullMap(rows[0])))
	case destNullMaps:
		out := make([]NullStringMap, len(rows))
		for i, r := range rows {
			out[i] = toNullMap(r)
		}
		v.Set(reflect.ValueOf(out))
	case destStruct:
		err = assignStruct(rows[0], v)
	case destScalar:
		err = assignScalar(rows[0], v)
	case destStructs, destScalars:
		elem := v.Type().Elem()
		isPtr := elem.Kind() == reflect.Ptr
		if isPtr {
			elem = elem.Elem()
		}
		out := reflect.MakeSlice(v.Type(), 0, len(rows))
		for _, r := range rows {
			target := reflect.New(elem).Elem()
			if kind == destStructs {
				err = assignStruct(r, target)
			} else {
				err = assignScalar(r, target)
			}
			if err != nil {
				return 0, err
			}
			if isPtr {
				target = target.Addr()
			}
			out = reflect.Append(out, target)
		}
		v.Set(out)
	}
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func toNullMap(row map[string]any) NullStringMap {
	m := make(NullStringMap, len(row))
	for k, v := range row {
		if v == nil {
			m[k] = sql.NullString{}
			continue
		}
		m[k] = sql.NullString{String: cast.ToString(v), Valid: true}
	}
	return m
}

func assignStruct(row map[string]any, v reflect.Value) error {
	fields := columnMap(v.Type())
	for col, val := range row {
		f, ok := fields[strings.ToLower(col)]
		if !ok {
			continue
		}
		if err := setValue(fieldByIndex(v, f.Index), val); err != nil {
			return fmt.Errorf("scanner: column %s: %w", col, err)
		}
	}
	return nil
}

func assignScalar(row map[string]any, v reflect.Value) error {
	if len(row) != 1 {
		return fmt.Errorf("scanner: scalar destination needs exactly one column, got %d", len(row))
	}
	for _, val := range row {
		return setValue(v, val)
	}
	return nil
}

// setValue stores val into f, converting between the loosely typed values of
// a materialized row and the field type.
func setValue(f reflect.Value, val any) error {
	if val == nil {
		f.Set(reflect.Zero(f.Type()))
		return nil
	}
	if f.CanAddr() && f.Addr().Type().Implements(scannerType) {
		return f.Addr().Interface().(sql.Scanner).Scan(val)
	}

	rv := reflect.ValueOf(val)
	if rv.Type().AssignableTo(f.Type()) {
		f.Set(rv)
		return nil
	}

	switch f.Kind() {
	case reflect.Ptr:
		p := reflect.New(f.Type().Elem())
		if err := setValue(p.Elem(), val); err != nil {
			return err
		}
		f.Set(p)
	case reflect.String:
		s, err := cast.ToStringE(val)
		if err != nil {
			return err
		}
		f.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := cast.ToInt64E(val)
		if err != nil {
			return err
		}
		if f.OverflowInt(n) {
			return fmt.Errorf("%d overflows %s", n, f.Type())
		}
		f.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := cast.ToUint64E(val)
		if err != nil {
			return err
		}
		if f.OverflowUint(n) {
			return fmt.Errorf("%d overflows %s", n, f.Type())
		}
		f.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := cast.ToFloat64E(val)
		if err != nil {
			return err
		}
		f.SetFloat(n)
	case reflect.Bool:
		b, err := cast.ToBoolE(val)
		if err != nil {
			return err
		}
		f.SetBool(b)
	case reflect.Slice:
		if f.Type().Elem().Kind() != reflect.Uint8 {
			return fmt.Errorf("cannot assign %T to %s", val, f.Type())
		}
		f.SetBytes([]byte(cast.ToString(val)))
	default:
		if f.Type() == timeType {
			t, err := cast.ToTimeE(val)
			if err != nil {
				return err
			}
			f.Set(reflect.ValueOf(t))
			return nil
		}
		if rv.Type().ConvertibleTo(f.Type()) {
			f.Set(rv.Convert(f.Type()))
			return nil
		}
		return fmt.Errorf("cannot assign %T to %s", val, f.Type())
	}
	return nil
}
