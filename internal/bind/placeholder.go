package bind

import (
	"fmt"
	"strings"
)

// Rewrite calls fn for every :name placeholder in query that lies outside
// quoted literals and quoted identifiers, and substitutes the returned text.
// When fn reports false the placeholder is left untouched. A double colon
// (PostgreSQL cast) is never treated as a placeholder.
func Rewrite(query string, fn func(name string) (string, bool)) string {
	var b strings.Builder
	b.Grow(len(query))

	var quote byte
	for i := 0; i < len(query); i++ {
		c := query[i]

		if quote != 0 {
			b.WriteByte(c)
			if c == '\\' && quote != '`' && i+1 < len(query) {
				i++
				b.WriteByte(query[i])
			} else if c == quote {
				quote = 0
			}
			continue
		}

		switch {
		case c == '\'' || c == '"' || c == '`':
			quote = c
			b.WriteByte(c)
		case c == ':' && i+1 < len(query) && query[i+1] == ':':
			b.WriteString("::")
			i++
		case c == ':' && i+1 < len(query) && isNameStart(query[i+1]):
			j := i + 1
			for j < len(query) && isNameChar(query[j]) {
				j++
			}
			name := query[i+1 : j]
			if repl, ok := fn(name); ok {
				b.WriteString(repl)
			} else {
				b.WriteString(query[i:j])
			}
			i = j - 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

// Positional rewrites the named placeholders of query with placeholder(n)
// (1-based) and returns the driver arguments in order. A name used twice is
// passed twice. Every bound entry must be referenced.
func Positional(query string, binds Map, placeholder func(n int) string) (string, []any, error) {
	if len(binds) == 0 {
		return query, nil, nil
	}

	args := make([]any, 0, len(binds))
	used := make(map[string]bool, len(binds))
	var firstErr error

	out := Rewrite(query, func(name string) (string, bool) {
		e, ok := binds[name]
		if !ok {
			return "", false
		}
		v, err := e.Driver()
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("bind %s (%s): %w", name, e.Type, err)
		}
		used[name] = true
		args = append(args, v)
		return placeholder(len(args)), true
	})
	if firstErr != nil {
		return "", nil, firstErr
	}

	if len(used) != len(binds) {
		for _, name := range binds.Names() {
			if !used[name] {
				return "", nil, fmt.Errorf("bind %s is not referenced by the statement", name)
			}
		}
	}
	return out, args, nil
}

// Interpolate inlines every bound value as a literal. The result is meant
// for logs and error messages only.
func Interpolate(query string, binds Map) string {
	if len(binds) == 0 {
		return query
	}
	return Rewrite(query, func(name string) (string, bool) {
		e, ok := binds[name]
		if !ok {
			return "", false
		}
		return e.Literal(), true
	})
}
