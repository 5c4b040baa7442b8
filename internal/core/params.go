// Package core provides the statement builder, condition compiler, result
// scanning and the query façade of quarry.
package core

import (
	"regexp"
	"strings"

	"github.com/coregx/quarry/internal/bind"
	"github.com/coregx/quarry/internal/dialects"
)

// Params represents named parameter values for raw SQL fragments.
// Named parameters are written {:name} or :name in the fragment.
//
// Example:
//
//	db.Table("users").
//	    WhereRaw("status = {:status} AND age > :age", core.Params{"status": "active", "age": 18}).
//	    FindAll(ctx, &users)
type Params map[string]any

// Raw is an SQL expression inlined verbatim where a value is expected.
//
//	db.Table("users").Where("id", 1).Update(ctx, map[string]any{"updated_at": core.Raw("NOW()")})
type Raw string

var (
	// namedPlaceholderRegex matches named parameter placeholders {:name}.
	namedPlaceholderRegex = regexp.MustCompile(`\{:(\w+)\}`)

	// quoteRegex matches table and column quoting syntax.
	// {{table_name}} - quotes table name (double curly braces)
	// [[column_name]] - quotes column name (double square brackets)
	// Pattern matches word characters, hyphens, dots, and spaces to support schema.table format.
	quoteRegex = regexp.MustCompile(`(\{\{[\w\-. ]+\}\}|\[\[[\w\-. ]+\]\])`)
)

// normalizeRaw rewrites {:name} placeholders in a raw fragment into the
// :name form used by generated SQL.
func normalizeRaw(fragment string) string {
	return namedPlaceholderRegex.ReplaceAllString(fragment, ":$1")
}

// entries converts p into bind entries with inferred types. Values that are
// already bind entries keep their declared type.
func (p Params) entries() bind.Map {
	m := make(bind.Map, len(p))
	for name, v := range p {
		if e, ok := v.(bind.Entry); ok {
			m[name] = e
			continue
		}
		m[name] = bind.Entry{Value: v, Type: bind.Infer(v)}
	}
	return m
}

func mergeParams(dst Params, src ...Params) Params {
	for _, p := range src {
		if len(p) == 0 {
			continue
		}
		if dst == nil {
			dst = make(Params, len(p))
		}
		for k, v := range p {
			dst[k] = v
		}
	}
	return dst
}

// quoteIdentifiers quotes table names {{table}} and column names [[column]]
// using the dialect-specific quoting.
//
//	sql := "SELECT [[name]] FROM {{users}}"
//	// PostgreSQL: SELECT "name" FROM "users"
//	// MySQL:      SELECT `name` FROM `users`
func quoteIdentifiers(sql string, d dialects.Dialect) string {
	if !strings.Contains(sql, "{{") && !strings.Contains(sql, "[[") {
		return sql
	}
	return quoteRegex.ReplaceAllStringFunc(sql, func(match string) string {
		return quoteIdentifier(match[2:len(match)-2], d)
	})
}

// quoteIdentifier quotes an identifier using the dialect-specific quoting.
// For schema-prefixed identifiers like "schema.table", each part is quoted separately.
//
// Example:
//
//	PostgreSQL: "users" → "users", "public.users" → "public"."users"
//	MySQL: `users` → `users`, `mydb.users` → `mydb`.`users`
func quoteIdentifier(identifier string, d dialects.Dialect) string {
	if strings.Contains(identifier, ".") {
		parts := strings.Split(identifier, ".")
		quoted := make([]string, len(parts))
		for i, part := range parts {
			quoted[i] = d.QuoteIdentifier(strings.TrimSpace(part))
		}
		return strings.Join(quoted, ".")
	}

	return d.QuoteIdentifier(strings.TrimSpace(identifier))
}
