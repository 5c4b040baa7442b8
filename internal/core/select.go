package core

import (
	"context"
	"database/sql"
	"strings"

	"github.com/spf13/cast"

	"github.com/coregx/quarry/internal/cache"
)

func (b *Builder) requireDB() error {
	if b.db == nil {
		return ErrNoDB
	}
	return nil
}

// fetch runs a compiled SELECT and fills dest. It returns the number of rows
// put into dest. Results come from the cache store when Cache is set.
func (b *Builder) fetch(ctx context.Context, q *Query, dest any) (int, error) {
	b.logPlan(ctx, q)
	if b.cache != nil && b.db.store != nil {
		rows, err := b.cachedRows(ctx, q)
		if err != nil {
			return 0, err
		}
		return assignRows(rows, dest)
	}

	var n int
	err := b.db.manager.Query(ctx, q.sql, q.binds, b.master, func(rows *sql.Rows) error {
		var err error
		n, err = scanRows(rows, dest)
		return err
	})
	return n, err
}

// cachedRows serves q from the cache store, querying and storing it on a miss.
// Store failures are logged and fall back to the database.
func (b *Builder) cachedRows(ctx context.Context, q *Query) ([]map[string]any, error) {
	store, co := b.db.store, b.cache
	key := co.key
	if key == "" {
		key = cache.Key(q.Interpolate(), nil)
	}

	data, ok, err := store.Get(ctx, key)
	switch {
	case err != nil:
		b.db.logger.Warn("quarry cache get failed", "key", key, "error", err)
	case ok:
		rows, err := cache.DecodeRows(data)
		if err == nil {
			return rows, nil
		}
		b.db.logger.Warn("quarry cache decode failed", "key", key, "error", err)
	}

	var rows []map[string]any
	err = b.db.manager.Query(ctx, q.sql, q.binds, b.master, func(r *sql.Rows) error {
		var err error
		rows, err = collectMaps(r)
		return err
	})
	if err != nil {
		return nil, err
	}

	encoded, err := cache.EncodeRows(rows)
	if err == nil {
		err = store.Set(ctx, key, encoded, co.ttl, co.tag)
	}
	if err != nil {
		b.db.logger.Warn("quarry cache set failed", "key", key, "error", err)
	}
	return rows, nil
}

// FindAll selects all matching rows into dest: a pointer to a slice of
// structs, struct pointers, map[string]any, NullStringMap or scalars.
func (b *Builder) FindAll(ctx context.Context, dest any) error {
	if err := b.requireDB(); err != nil {
		return err
	}
	q, err := b.SelectSQL()
	if err != nil {
		return err
	}
	_, err = b.fetch(ctx, q, dest)
	return err
}

// Find selects one row into dest. With an id it matches the primary key.
// It returns ErrNoRows when nothing matches.
func (b *Builder) Find(ctx context.Context, dest any, id ...any) error {
	target := b
	if len(id) > 0 {
		target = b.Clone().Where(b.pkColumn(), id[0])
	}
	return target.FindOne(ctx, dest)
}

// FindOne selects the first matching row into dest. It returns ErrNoRows
// when nothing matches.
func (b *Builder) FindOne(ctx context.Context, dest any) error {
	if err := b.requireDB(); err != nil {
		return err
	}
	q, err := b.Clone().Limit(b.offset, 1).SelectSQL()
	if err != nil {
		return err
	}
	n, err := b.fetch(ctx, q, dest)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoRows
	}
	return nil
}

// FindBySQL runs a raw SELECT with named parameters and fills dest like
// FindAll. Placeholders are written :name or {:name}.
func (b *Builder) FindBySQL(ctx context.Context, dest any, query string, params Params) error {
	if err := b.requireDB(); err != nil {
		return err
	}
	q := &Query{
		sql:   quoteIdentifiers(normalizeRaw(query), b.dialect),
		binds: params.entries(),
	}
	_, err := b.fetch(ctx, q, dest)
	return err
}

// Value returns field of the first matching row, or nil when nothing matches.
func (b *Builder) Value(ctx context.Context, field string) (any, error) {
	if err := b.requireDB(); err != nil {
		return nil, err
	}
	c := b.Clone()
	c.fields = []string{field}
	q, err := c.Limit(b.offset, 1).SelectSQL()
	if err != nil {
		return nil, err
	}

	var v any
	n, err := b.fetch(ctx, q, &v)
	if err != nil || n == 0 {
		return nil, err
	}
	return plainValue(v), nil
}

// Column returns field of every matching row.
func (b *Builder) Column(ctx context.Context, field string) ([]any, error) {
	if err := b.requireDB(); err != nil {
		return nil, err
	}
	c := b.Clone()
	c.fields = []string{field}
	q, err := c.SelectSQL()
	if err != nil {
		return nil, err
	}

	var out []any
	if _, err := b.fetch(ctx, q, &out); err != nil {
		return nil, err
	}
	for i, v := range out {
		out[i] = plainValue(v)
	}
	return out, nil
}

func plainValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// Count returns the number of matching rows. A grouped or distinct query is
// counted through a sub-select.
func (b *Builder) Count(ctx context.Context, field ...string) (int64, error) {
	f := "*"
	if len(field) > 0 && field[0] != "" {
		f = field[0]
	}
	v, err := b.aggregate(ctx, "COUNT", f)
	if err != nil {
		return 0, err
	}
	return cast.ToInt64E(v)
}

// Sum returns the sum of field over matching rows, 0 when there are none.
func (b *Builder) Sum(ctx context.Context, field string) (float64, error) {
	return b.aggregateFloat(ctx, "SUM", field)
}

// Min returns the minimum of a numeric field.
func (b *Builder) Min(ctx context.Context, field string) (float64, error) {
	return b.aggregateFloat(ctx, "MIN", field)
}

// Max returns the maximum of a numeric field.
func (b *Builder) Max(ctx context.Context, field string) (float64, error) {
	return b.aggregateFloat(ctx, "MAX", field)
}

// Avg returns the average of field over matching rows.
func (b *Builder) Avg(ctx context.Context, field string) (float64, error) {
	return b.aggregateFloat(ctx, "AVG", field)
}

func (b *Builder) aggregateFloat(ctx context.Context, fn, field string) (float64, error) {
	v, err := b.aggregate(ctx, fn, field)
	if err != nil || v == nil {
		return 0, err
	}
	return cast.ToFloat64E(v)
}

// AggregateSQL compiles the statement used by Count, Sum, Min, Max and Avg.
// Ordering and limits are dropped.
func (b *Builder) AggregateSQL(fn, field string) (*Query, error) {
	fn = strings.ToUpper(fn)
	alias := "quarry_" + strings.ToLower(fn)

	c := b.Clone()
	c.order = nil
	c.offset, c.length = 0, 0

	if b.group != "" || b.distinct || len(b.unions) > 0 {
		inner, err := c.SelectSQL()
		if err != nil {
			return nil, err
		}
		return &Query{
			sql:   "SELECT " + fn + "(" + field + ") AS " + alias + " FROM (" + inner.sql + ") quarry_aggregate",
			binds: inner.binds,
		}, nil
	}

	c.fields = []string{fn + "(" + field + ") AS " + alias}
	return c.SelectSQL()
}

func (b *Builder) aggregate(ctx context.Context, fn, field string) (any, error) {
	if err := b.requireDB(); err != nil {
		return nil, err
	}
	q, err := b.AggregateSQL(fn, field)
	if err != nil {
		return nil, err
	}

	var v any
	if _, err := b.fetch(ctx, q, &v); err != nil {
		return nil, err
	}
	return plainValue(v), nil
}

// FetchSQL returns the SELECT statement with binds inlined instead of running it.
func (b *Builder) FetchSQL() (string, error) {
	q, err := b.SelectSQL()
	if err != nil {
		return "", err
	}
	return q.Interpolate(), nil
}

// DebugSQL returns the SELECT statement, its binds and the interpolated SQL.
func (b *Builder) DebugSQL() (DebugInfo, error) {
	q, err := b.SelectSQL()
	if err != nil {
		return DebugInfo{}, err
	}
	return q.Debug(), nil
}
