package core

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNullStringMap(t *testing.T) {
	m := NullStringMap{
		"name":  {String: "alice", Valid: true},
		"email": {},
		"age":   {String: "30", Valid: true},
	}

	assert.Equal(t, "alice", m.String("name"))
	assert.Equal(t, "", m.String("email"))
	assert.Equal(t, "", m.String("missing"))

	assert.True(t, m.IsNull("email"))
	assert.True(t, m.IsNull("missing"))
	assert.False(t, m.IsNull("name"))

	assert.True(t, m.Has("email"))
	assert.False(t, m.Has("missing"))

	assert.Equal(t, []string{"age", "email", "name"}, m.Keys())

	v, ok := m.Get("age")
	assert.True(t, ok)
	assert.Equal(t, sql.NullString{String: "30", Valid: true}, v)
}

func TestNullStringMapNumbers(t *testing.T) {
	m := NullStringMap{
		"age":   {String: "30", Valid: true},
		"price": {String: "9.75", Valid: true},
		"name":  {String: "alice", Valid: true},
		"note":  {},
	}

	n, ok := m.Int64("age")
	assert.True(t, ok)
	assert.Equal(t, int64(30), n)

	_, ok = m.Int64("name")
	assert.False(t, ok)
	_, ok = m.Int64("note")
	assert.False(t, ok)
	_, ok = m.Int64("missing")
	assert.False(t, ok)

	f, ok := m.Float64("price")
	assert.True(t, ok)
	assert.InDelta(t, 9.75, f, 0.0001)

	assert.Equal(t, map[string]any{"age": "30", "price": "9.75", "name": "alice", "note": nil}, m.Values())
}

func TestAssignRowsToNullMaps(t *testing.T) {
	rows := []map[string]any{
		{"id": int64(1), "note": nil},
		{"id": int64(2), "note": "vip"},
	}

	var out []NullStringMap
	n, err := assignRows(rows, &out)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "1", out[0].String("id"))
	assert.True(t, out[0].IsNull("note"))
	assert.Equal(t, "vip", out[1].String("note"))

	var one NullStringMap
	n, err = assignRows(nil, &one)
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.Nil(t, one)
}
