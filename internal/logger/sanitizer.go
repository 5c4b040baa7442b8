package logger

import (
	"regexp"
	"sort"
	"strings"

	"github.com/coregx/quarry/internal/bind"
)

// Sanitizer masks sensitive bind values so that statements can be logged
// without leaking secrets.
//
// Generated placeholder names carry the column they were bound for
// (Bind_3_password_), so a bind is masked when its name mentions a sensitive
// field. Caller-named binds are masked the same way.
type Sanitizer struct {
	maskValue string
	patterns  []*regexp.Regexp
}

// DefaultSensitiveFields lists the field names masked when none are given.
var DefaultSensitiveFields = []string{
	"password", "passwd", "pwd",
	"token", "api_key", "apikey", "api_token",
	"secret", "auth", "authorization",
	"credit_card", "card_number", "cvv", "cvc",
	"ssn", "social_security",
	"private_key", "priv_key",
}

// NewSanitizer creates a new sanitizer with the specified sensitive field names.
// If no fields are provided, DefaultSensitiveFields is used.
func NewSanitizer(sensitiveFields []string) *Sanitizer {
	if len(sensitiveFields) == 0 {
		sensitiveFields = DefaultSensitiveFields
	}

	patterns := make([]*regexp.Regexp, 0, len(sensitiveFields))
	for _, field := range sensitiveFields {
		// Underscores are word characters, so match on them explicitly.
		pattern := regexp.MustCompile(`(?i)(^|[^a-z0-9])` + regexp.QuoteMeta(field) + `([^a-z0-9]|$)`)
		patterns = append(patterns, pattern)
	}

	return &Sanitizer{
		maskValue: "***REDACTED***",
		patterns:  patterns,
	}
}

// IsSensitive reports whether a bind name refers to a sensitive field.
func (s *Sanitizer) IsSensitive(name string) bool {
	for _, pattern := range s.patterns {
		if pattern.MatchString(name) {
			return true
		}
	}
	return false
}

// MaskBinds returns a loggable copy of binds with sensitive values replaced.
func (s *Sanitizer) MaskBinds(binds bind.Map) map[string]string {
	out := make(map[string]string, len(binds))
	for name, e := range binds {
		if s.IsSensitive(name) {
			out[name] = s.maskValue
			continue
		}
		out[name] = truncate(e.Literal())
	}
	return out
}

// FormatBinds renders masked binds as "name=value" pairs in name order.
func (s *Sanitizer) FormatBinds(binds bind.Map) string {
	if len(binds) == 0 {
		return "[]"
	}

	masked := s.MaskBinds(binds)
	names := make([]string, 0, len(masked))
	for name := range masked {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + masked[name]
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// truncate shortens very long values to prevent log pollution.
func truncate(str string) string {
	const maxLen = 100
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}
