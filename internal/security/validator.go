// Package security checks raw SQL fragments handed to the builder
// (WhereRaw, OrderRaw) for injection constructs before they are inlined.
package security

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnsafeFragment is matched by every rejection from Validate.
var ErrUnsafeFragment = errors.New("unsafe SQL fragment")

// UnsafeFragmentError names the fragment and the construct that was matched.
type UnsafeFragmentError struct {
	Fragment string
	Pattern  string
}

func (e *UnsafeFragmentError) Error() string {
	return fmt.Sprintf("unsafe SQL fragment %q: matches %s", e.Fragment, e.Pattern)
}

// Unwrap returns ErrUnsafeFragment.
func (e *UnsafeFragmentError) Unwrap() error { return ErrUnsafeFragment }

// Validator rejects raw fragments containing comment markers, stacked
// statements, UNION injection, timing functions or tautologies.
type Validator struct {
	patterns []*regexp.Regexp
}

// Option configures a Validator.
type Option func(*Validator)

// WithStrict also rejects any bare OR and UNION keyword.
func WithStrict() Option {
	return func(v *Validator) {
		v.patterns = append(v.patterns, compile(strictPatterns)...)
	}
}

// WithPattern adds a caller-supplied regular expression, matched against
// the upper-cased fragment.
func WithPattern(expr string) Option {
	return func(v *Validator) {
		v.patterns = append(v.patterns, regexp.MustCompile(expr))
	}
}

// NewValidator creates a Validator with the default pattern set.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{patterns: compile(defaultPatterns)}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

var defaultPatterns = []string{
	`--`,
	`/\*`,
	`#\s`,
	`;`,
	`\bUNION(\s+ALL)?\s+SELECT\b`,
	`\bINFORMATION_SCHEMA\b`,
	`\b(SLEEP|PG_SLEEP|BENCHMARK)\s*\(`,
	`\bWAITFOR\s+DELAY\b`,
	`\bXP_CMDSHELL\b`,
	`\bOR\s+'?(\w+)'?\s*=\s*'?(\w+)'?\s*$`,
}

var strictPatterns = []string{
	`\bOR\b`,
	`\bUNION\b`,
}

func compile(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// Validate returns an *UnsafeFragmentError when fragment matches a pattern.
func (v *Validator) Validate(fragment string) error {
	upper := strings.ToUpper(fragment)
	for _, p := range v.patterns {
		if p.MatchString(upper) {
			if p.String() == defaultPatterns[len(defaultPatterns)-1] && !tautology(p, upper) {
				continue
			}
			return &UnsafeFragmentError{Fragment: fragment, Pattern: p.String()}
		}
	}
	return nil
}

// tautology reports whether the trailing OR x = y compares equal operands.
func tautology(p *regexp.Regexp, upper string) bool {
	m := p.FindStringSubmatch(upper)
	return len(m) == 3 && m[1] == m[2]
}
