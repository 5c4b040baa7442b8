package core

import (
	"github.com/coregx/quarry/internal/bind"
)

// Query is a compiled statement with named placeholders and its binds.
// It is not modified after compilation.
type Query struct {
	sql   string
	binds bind.Map
}

// SQL returns the statement with :name placeholders.
func (q *Query) SQL() string { return q.sql }

// Binds returns a copy of the bound values keyed by placeholder name.
func (q *Query) Binds() bind.Map {
	out := make(bind.Map, len(q.binds))
	for k, v := range q.binds {
		out[k] = v
	}
	return out
}

// Interpolate returns the statement with every bind inlined as a literal.
// The result is for logs and debugging and must not be executed.
func (q *Query) Interpolate() string {
	return bind.Interpolate(q.sql, q.binds)
}

// DebugInfo describes a compiled statement.
type DebugInfo struct {
	SQL       string            `json:"sql"`
	Binds     map[string]string `json:"binds"`
	ResultSQL string            `json:"result_sql"`
}

// Debug returns the statement, its binds rendered as literals with their
// type, and the interpolated SQL.
func (q *Query) Debug() DebugInfo {
	binds := make(map[string]string, len(q.binds))
	for name, e := range q.binds {
		binds[name] = e.Literal() + " (" + e.Type.String() + ")"
	}
	return DebugInfo{SQL: q.sql, Binds: binds, ResultSQL: q.Interpolate()}
}
