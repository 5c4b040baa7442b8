package bind

import (
	"database/sql/driver"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// ParamType is the declared type of a bound value. It decides how the value is
// coerced before it is handed to the driver.
type ParamType int

// Bind types.
const (
	TypeStr ParamType = iota
	TypeInt
	TypeBool
	TypeNull
	TypeLOB
	TypeFloat
)

var typeNames = [...]string{"STR", "INT", "BOOL", "NULL", "LOB", "FLOAT"}

func (t ParamType) String() string {
	if t >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "ParamType(" + strconv.Itoa(int(t)) + ")"
}

// Entry is a single bound value.
type Entry struct {
	Value any
	Type  ParamType
}

// Equal reports whether e and o bind the same value with the same type.
func (e Entry) Equal(o Entry) bool {
	return e.Type == o.Type && reflect.DeepEqual(e.Value, o.Value)
}

// Infer returns the bind type for a Go value.
//
//	string            -> STR
//	signed/unsigned   -> INT
//	bool              -> BOOL
//	nil, nil pointer  -> NULL
//	[]byte, io.Reader -> LOB
//	float32/float64   -> FLOAT
//	anything else     -> STR
func Infer(value any) ParamType {
	switch v := value.(type) {
	case nil:
		return TypeNull
	case string:
		return TypeStr
	case bool:
		return TypeBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeInt
	case float32, float64:
		return TypeFloat
	case []byte, io.Reader:
		return TypeLOB
	case time.Time, driver.Valuer:
		return TypeStr
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Ptr {
			if rv.IsNil() {
				return TypeNull
			}
			return Infer(rv.Elem().Interface())
		}
		return TypeStr
	}
}

// Driver coerces the entry value to its declared type for database/sql.
func (e Entry) Driver() (any, error) {
	v := deref(e.Value)
	if v == nil {
		return nil, nil
	}

	switch e.Type {
	case TypeNull:
		return nil, nil
	case TypeInt:
		return cast.ToInt64E(v)
	case TypeFloat:
		return cast.ToFloat64E(v)
	case TypeBool:
		return cast.ToBoolE(v)
	case TypeLOB:
		switch lob := v.(type) {
		case []byte:
			return lob, nil
		case string:
			return []byte(lob), nil
		case io.Reader:
			return io.ReadAll(lob)
		default:
			return nil, fmt.Errorf("bind: cannot use %T as LOB", v)
		}
	default:
		switch s := v.(type) {
		case time.Time, driver.Valuer, []byte:
			return s, nil
		}
		return cast.ToStringE(v)
	}
}

// Literal renders the entry as an inline SQL literal. It is used for debugging
// output only and must never be sent to the database.
func (e Entry) Literal() string {
	v := deref(e.Value)
	if v == nil || e.Type == TypeNull {
		return "NULL"
	}

	switch e.Type {
	case TypeInt:
		if n, err := cast.ToInt64E(v); err == nil {
			return strconv.FormatInt(n, 10)
		}
	case TypeFloat:
		if f, err := cast.ToFloat64E(v); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	case TypeBool:
		if b, err := cast.ToBoolE(v); err == nil {
			if b {
				return "1"
			}
			return "0"
		}
	case TypeLOB:
		if b, ok := v.([]byte); ok {
			return quote(string(b))
		}
		return "'<lob>'"
	}

	if t, ok := v.(time.Time); ok {
		return quote(t.Format("2006-01-02 15:04:05"))
	}
	return quote(cast.ToString(v))
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func deref(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}
