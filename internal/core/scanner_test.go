package core

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	ID        uint           `db:"id"`
	Nick      *string        `db:"nick"`
	Score     float64        `db:"score"`
	Active    bool           `db:"active"`
	Bio       sql.NullString `db:"bio"`
	CreatedAt time.Time      `db:"created_at"`
	Level     int8           `db:"level"`
	Ignored   string         `db:"-"`
}

func TestAssignRowsConvertsLooseValues(t *testing.T) {
	rows := []map[string]any{{
		"id":         int64(3),
		"nick":       "neo",
		"score":      "9.5",
		"active":     int64(1),
		"bio":        "hello",
		"created_at": "2024-03-01 10:00:00",
		"level":      int64(7),
		"extra":      "dropped",
	}}

	var p profile
	n, err := assignRows(rows, &p)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, uint(3), p.ID)
	require.NotNil(t, p.Nick)
	assert.Equal(t, "neo", *p.Nick)
	assert.Equal(t, 9.5, p.Score)
	assert.True(t, p.Active)
	assert.Equal(t, sql.NullString{String: "hello", Valid: true}, p.Bio)
	assert.Equal(t, 2024, p.CreatedAt.Year())
	assert.Equal(t, int8(7), p.Level)
	assert.Empty(t, p.Ignored)
}

func TestAssignRowsOverflow(t *testing.T) {
	var p profile
	_, err := assignRows([]map[string]any{{"level": int64(1000)}}, &p)
	assert.ErrorContains(t, err, "overflows")
}

func TestAssignRowsDestinations(t *testing.T) {
	rows := []map[string]any{{"n": int64(1)}, {"n": int64(2)}}

	var ids []int
	n, err := assignRows(rows, &ids)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{1, 2}, ids)

	var ptrs []*profile
	_, err = assignRows([]map[string]any{{"id": int64(1)}}, &ptrs)
	require.NoError(t, err)
	require.Len(t, ptrs, 1)
	assert.Equal(t, uint(1), ptrs[0].ID)

	var first map[string]any
	n, err = assignRows(rows, &first)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(1), first["n"])

	_, err = assignRows([]map[string]any{{"a": 1, "b": 2}}, &ids)
	assert.ErrorContains(t, err, "exactly one column")

	_, err = assignRows(rows, profile{})
	assert.Error(t, err)
}
