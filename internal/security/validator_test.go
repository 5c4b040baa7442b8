package security

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator_AllowsOrdinaryFragments(t *testing.T) {
	v := NewValidator()

	for _, fragment := range []string{
		"status = 1 AND age > 18",
		"created_at DESC, id ASC",
		"FIELD(id, 3, 1, 2)",
		"score > 10 OR rank = 1",
		"name LIKE 'a%'",
	} {
		assert.NoError(t, v.Validate(fragment), fragment)
	}
}

func TestValidator_RejectsInjection(t *testing.T) {
	v := NewValidator()

	tests := []string{
		"id = 1; DROP TABLE users",
		"id = 1 -- comment",
		"id = 1 /* x */",
		"id IN (1) UNION SELECT password FROM users",
		"id = 1 union all select 1",
		"table_name IN (SELECT table_name FROM information_schema.tables)",
		"id = 1 AND SLEEP(5)",
		"pg_sleep(10) IS NULL",
		"1 = 1 OR 1=1",
		"name = 'x' OR 'a'='a'",
	}

	for _, fragment := range tests {
		err := v.Validate(fragment)
		assert.Error(t, err, fragment)
		assert.True(t, errors.Is(err, ErrUnsafeFragment), fragment)

		var ufe *UnsafeFragmentError
		if assert.ErrorAs(t, err, &ufe) {
			assert.Equal(t, fragment, ufe.Fragment)
		}
	}
}

func TestValidator_Strict(t *testing.T) {
	v := NewValidator(WithStrict())

	assert.Error(t, v.Validate("score > 10 OR rank = 1"))
	assert.NoError(t, v.Validate("score > 10 AND rank = 1"))
}

func TestValidator_CustomPattern(t *testing.T) {
	v := NewValidator(WithPattern(`\bLOAD_FILE\b`))

	assert.Error(t, v.Validate("LOAD_FILE('/etc/passwd') IS NOT NULL"))
}
