package dialects

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup(t *testing.T) {
	for _, name := range []string{"mysql", "postgres", "postgresql", "pgsql", "sqlite", "sqlite3"} {
		d, ok := Lookup(name)
		assert.True(t, ok, name)
		assert.NotNil(t, d, name)
	}

	_, ok := Lookup("oracle")
	assert.False(t, ok)
	assert.Panics(t, func() { GetDialect("oracle") })
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, "`users`", GetDialect("mysql").QuoteIdentifier("users"))
	assert.Equal(t, "`a``b`", GetDialect("mysql").QuoteIdentifier("a`b"))
	assert.Equal(t, `"users"`, GetDialect("postgres").QuoteIdentifier("users"))
	assert.Equal(t, `"a""b"`, GetDialect("sqlite").QuoteIdentifier(`a"b`))
}

func TestLimitSQL(t *testing.T) {
	tests := []struct {
		dialect        string
		offset, length int
		want           string
	}{
		{"mysql", 0, 10, "LIMIT 10"},
		{"mysql", 20, 10, "LIMIT 20,10"},
		{"mysql", 5, 0, ""},
		{"postgres", 0, 10, "LIMIT 10"},
		{"postgres", 20, 10, "LIMIT 10 OFFSET 20"},
		{"sqlite", 20, 10, "LIMIT 10 OFFSET 20"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, GetDialect(tt.dialect).LimitSQL(tt.offset, tt.length), tt.dialect)
	}
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "?", GetDialect("mysql").Placeholder(3))
	assert.Equal(t, "$3", GetDialect("postgres").Placeholder(3))
	assert.Equal(t, "?", GetDialect("sqlite").Placeholder(3))
}

func TestCapabilities(t *testing.T) {
	assert.True(t, GetDialect("mysql").SupportsReplace())
	assert.False(t, GetDialect("postgres").SupportsReplace())
	assert.Equal(t, "", GetDialect("sqlite").LockSQL("FOR UPDATE"))
	assert.Equal(t, "FOR UPDATE", GetDialect("mysql").LockSQL("FOR UPDATE"))
	assert.Equal(t, "FORCE INDEX ( idx_name )", GetDialect("mysql").ForceIndexSQL("idx_name"))
	assert.Equal(t, "", GetDialect("postgres").ForceIndexSQL("idx_name"))
	assert.Equal(t, "FIND_IN_SET(?, tags)", GetDialect("mysql").FindInSetSQL("?", "tags"))
}
