package core

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/coregx/quarry/internal/bind"
	"github.com/coregx/quarry/internal/dialects"
	"github.com/coregx/quarry/internal/util"
)

// compiler renders one builder into SQL, binding values into its binder.
// Sub-queries get a child compiler whose binder is merged back afterwards.
type compiler struct {
	b      *Builder
	d      dialects.Dialect
	binder *bind.Binder
}

func (b *Builder) newCompiler() (*compiler, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.dialect == nil {
		return nil, argError("compile", "builder has no dialect")
	}
	if b.table == "" {
		return nil, ErrNoTable
	}
	return &compiler{b: b, d: b.dialect, binder: bind.New()}, nil
}

// finish quotes {{table}} and [[column]] identifiers and freezes the result.
func (c *compiler) finish(sql string) *Query {
	return &Query{
		sql:   quoteIdentifiers(sql, c.d),
		binds: c.binder.Take(false),
	}
}

// SelectSQL compiles the SELECT statement.
//
// Clause order: SELECT [DISTINCT] fields, FROM table [alias] [index hint],
// joins, WHERE, GROUP BY, HAVING, unions, ORDER BY, limit, lock.
func (b *Builder) SelectSQL() (*Query, error) {
	c, err := b.newCompiler()
	if err != nil {
		return nil, err
	}
	sql, err := c.selectSQL()
	if err != nil {
		return nil, err
	}
	return c.finish(sql), nil
}

// InsertSQL compiles an INSERT (or REPLACE) of one row. data is a map or a struct.
func (b *Builder) InsertSQL(data any) (*Query, error) {
	c, err := b.newCompiler()
	if err != nil {
		return nil, err
	}
	row, err := b.rowData(data)
	if err != nil {
		return nil, err
	}
	sql, err := c.insertSQL([]map[string]any{row})
	if err != nil {
		return nil, err
	}
	return c.finish(sql), nil
}

// InsertAllSQL compiles a multi-row INSERT. Columns are the sorted union of
// all row keys; a row without a column inserts NULL.
func (b *Builder) InsertAllSQL(rows []map[string]any) (*Query, error) {
	c, err := b.newCompiler()
	if err != nil {
		return nil, err
	}
	sql, err := c.insertSQL(rows)
	if err != nil {
		return nil, err
	}
	return c.finish(sql), nil
}

// UpdateSQL compiles an UPDATE. data (a map, a struct or nil) is merged over
// Data/Inc/Dec/Exp values. A primary key in data becomes a where condition.
func (b *Builder) UpdateSQL(data any) (*Query, error) {
	if b.err != nil {
		return nil, b.err
	}
	set := make(map[string]any, len(b.data))
	for k, v := range b.data {
		set[k] = v
	}
	if data != nil {
		row, err := util.ToMap(data)
		if err != nil {
			return nil, err
		}
		for k, v := range row {
			set[k] = v
		}
	}

	target := b
	pk := b.pkColumn()
	if v, ok := set[pk]; ok {
		delete(set, pk)
		if !isNil(v) && !reflect.ValueOf(v).IsZero() {
			target = b.Clone().Where(pk, v)
		}
	}

	c, err := target.newCompiler()
	if err != nil {
		return nil, err
	}
	sql, err := c.updateSQL(set)
	if err != nil {
		return nil, err
	}
	return c.finish(sql), nil
}

// DeleteSQL compiles a DELETE.
func (b *Builder) DeleteSQL() (*Query, error) {
	c, err := b.newCompiler()
	if err != nil {
		return nil, err
	}
	sql, err := c.deleteSQL()
	if err != nil {
		return nil, err
	}
	return c.finish(sql), nil
}

func (b *Builder) rowData(data any) (map[string]any, error) {
	row := make(map[string]any, len(b.data))
	for k, v := range b.data {
		row[k] = v
	}
	if data != nil {
		m, err := util.ToMap(data)
		if err != nil {
			return nil, err
		}
		for k, v := range m {
			row[k] = v
		}
	}
	return row, nil
}

func (c *compiler) selectSQL() (string, error) {
	b := c.b

	fields := "*"
	if len(b.fields) > 0 {
		fields = strings.Join(b.fields, ", ")
	}
	distinct := ""
	if b.distinct {
		distinct = "DISTINCT"
	}

	c.bindParams(b.params)

	joins, err := c.joins()
	if err != nil {
		return "", err
	}
	where, err := c.whereClause()
	if err != nil {
		return "", err
	}
	unions, err := c.unions()
	if err != nil {
		return "", err
	}

	parts := []string{
		"SELECT", distinct, fields,
		"FROM " + c.from(),
		joins,
		where,
	}
	if b.group != "" {
		parts = append(parts, "GROUP BY "+b.group)
	}
	if b.having != "" {
		c.bindParams(b.hparams)
		parts = append(parts, "HAVING "+b.having)
	}
	parts = append(parts, unions, c.orderClause(), c.d.LimitSQL(b.offset, b.length))
	if b.lock != "" {
		parts = append(parts, c.d.LockSQL(b.lock))
	}
	return joinNonEmpty(parts...), nil
}

func (c *compiler) insertSQL(rows []map[string]any) (string, error) {
	if len(rows) == 0 {
		return "", ErrNoData
	}

	seen := make(map[string]bool)
	var columns []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	if len(columns) == 0 {
		return "", ErrNoData
	}
	slices.Sort(columns)

	verb := "INSERT"
	if c.b.replace {
		if !c.d.SupportsReplace() {
			return "", fmt.Errorf("%w: REPLACE INTO on %s", ErrUnsupported, c.d.Name())
		}
		verb = "REPLACE"
	}

	values := make([]string, len(rows))
	for i, row := range rows {
		placeholders := make([]string, len(columns))
		for j, col := range columns {
			v, ok := row[col]
			if !ok {
				placeholders[j] = "NULL"
				continue
			}
			p, err := c.value(col, v)
			if err != nil {
				return "", err
			}
			placeholders[j] = p
		}
		values[i] = "(" + strings.Join(placeholders, ", ") + ")"
	}

	return verb + " INTO " + c.b.table + " (" + strings.Join(columns, ", ") + ") VALUES " +
		strings.Join(values, ", "), nil
}

func (c *compiler) updateSQL(set map[string]any) (string, error) {
	b := c.b
	if len(set) == 0 {
		return "", ErrNoData
	}
	if len(b.where) == 0 {
		return "", ErrMissingWhere
	}

	c.bindParams(b.params)

	assignments := make([]string, 0, len(set))
	for _, col := range getKeys(set) {
		switch v := set[col].(type) {
		case increment:
			name := c.binder.Bind(b.bindKey(col), v.step)
			assignments = append(assignments, col+" = "+col+" "+v.op+" :"+name)
		default:
			p, err := c.value(col, v)
			if err != nil {
				return "", err
			}
			assignments = append(assignments, col+" = "+p)
		}
	}

	joins, err := c.joins()
	if err != nil {
		return "", err
	}
	where, err := c.whereClause()
	if err != nil {
		return "", err
	}

	parts := []string{
		"UPDATE " + c.table(),
		joins,
		"SET " + strings.Join(assignments, ", "),
		where,
		c.orderClause(),
		c.d.LimitSQL(0, b.length),
	}
	if b.lock != "" {
		parts = append(parts, c.d.LockSQL(b.lock))
	}
	return joinNonEmpty(parts...), nil
}

func (c *compiler) deleteSQL() (string, error) {
	b := c.b
	if len(b.where) == 0 {
		return "", ErrMissingWhere
	}

	c.bindParams(b.params)

	joins, err := c.joins()
	if err != nil {
		return "", err
	}
	where, err := c.whereClause()
	if err != nil {
		return "", err
	}

	head := "DELETE FROM " + b.table
	if b.alias != "" || joins != "" {
		target := b.table
		if b.alias != "" {
			target = b.alias
		}
		head = "DELETE " + target + " FROM " + c.table()
	}

	parts := []string{head, joins, where, c.orderClause(), c.d.LimitSQL(0, b.length)}
	if b.lock != "" {
		parts = append(parts, c.d.LockSQL(b.lock))
	}
	return joinNonEmpty(parts...), nil
}

func (c *compiler) bindParams(p Params) {
	if len(p) > 0 {
		c.binder.Set(p.entries())
	}
}

// table renders "table [alias]".
func (c *compiler) table() string {
	if c.b.alias != "" {
		return c.b.table + " " + c.b.alias
	}
	return c.b.table
}

// from renders the table with its index hint.
func (c *compiler) from() string {
	if c.b.force == "" {
		return c.table()
	}
	return joinNonEmpty(c.table(), c.d.ForceIndexSQL(c.b.force))
}

func (c *compiler) joins() (string, error) {
	parts := make([]string, 0, len(c.b.joins))
	for _, j := range c.b.joins {
		target := j.table
		if j.alias != "" {
			target += " " + j.alias
		}
		if j.sub != nil && !j.sub.plain() {
			sql, err := c.subquery(j.sub, true)
			if err != nil {
				return "", err
			}
			target = sql + " " + j.alias
		}
		c.bindParams(j.params)

		s := j.kind + " JOIN " + target
		if j.on != "" {
			s += " ON " + j.on
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " "), nil
}

func (c *compiler) unions() (string, error) {
	parts := make([]string, 0, len(c.b.unions))
	for _, u := range c.b.unions {
		kw := "UNION"
		if u.all {
			kw = "UNION ALL"
		}
		sql := u.raw
		if u.sub != nil {
			s, err := c.nested(u.sub, true)
			if err != nil {
				return "", err
			}
			sql = s
		}
		parts = append(parts, kw+" "+sql)
	}
	return strings.Join(parts, " "), nil
}

func (c *compiler) orderClause() string {
	if len(c.b.order) == 0 {
		return ""
	}
	terms := make([]string, len(c.b.order))
	for i, t := range c.b.order {
		c.bindParams(t.params)
		terms[i] = t.expr
	}
	return "ORDER BY " + strings.Join(terms, ", ")
}

func (c *compiler) whereClause() (string, error) {
	w, err := c.where(c.b.where)
	if err != nil || w == "" {
		return "", err
	}
	return "WHERE " + w, nil
}

// where renders conditions in insertion order. The logic keyword joins a
// condition to the previous one, so the fragment never starts with AND/OR.
func (c *compiler) where(conds []condition) (string, error) {
	var sb strings.Builder
	for _, cond := range conds {
		frag, err := c.condition(cond)
		if err != nil {
			return "", err
		}
		if frag == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(" " + cond.logic + " ")
		}
		sb.WriteString(frag)
	}
	return sb.String(), nil
}

func (c *compiler) condition(cond condition) (string, error) {
	switch cond.kind {
	case condRaw:
		c.bindParams(cond.params)
		return "(" + cond.raw + ")", nil
	case condGroup:
		child := c.child(cond.sub)
		frag, err := child.where(cond.sub.where)
		if err != nil {
			return "", err
		}
		if err := c.binder.Merge(child.binder); err != nil {
			return "", err
		}
		if frag == "" {
			return "", nil
		}
		return "(" + frag + ")", nil
	}

	column, op := cond.column, cond.op
	key := c.b.bindKey(column)

	if cond.sub != nil {
		full := !cond.nested || op == "EXISTS" || op == "NOT EXISTS"
		sql, err := c.subquery(cond.sub, full)
		if err != nil {
			return "", err
		}
		switch op {
		case "EXISTS", "NOT EXISTS":
			return op + " " + sql, nil
		default:
			return column + " " + op + " " + sql, nil
		}
	}

	switch op {
	case "IS NULL", "IS NOT NULL":
		return column + " " + op, nil

	case "EXP":
		return column + " " + string(cond.value.(Raw)), nil

	case "EXISTS", "NOT EXISTS":
		return op + " (" + string(cond.value.(Raw)) + ")", nil

	case "IN", "NOT IN":
		if raw, ok := cond.value.(Raw); ok {
			return column + " " + op + " (" + string(raw) + ")", nil
		}
		list, ok := asList(cond.value)
		if !ok {
			list = []any{cond.value}
		}
		if len(list) == 0 {
			if op == "IN" {
				return "1 = 0", nil
			}
			return "1 = 1", nil
		}
		names := make([]string, len(list))
		for i, v := range list {
			names[i] = ":" + c.binder.Bind(key, v)
		}
		return column + " " + op + " (" + strings.Join(names, ",") + ")", nil

	case "BETWEEN", "NOT BETWEEN":
		if raw, ok := cond.value.(Raw); ok {
			return column + " " + op + " " + string(raw), nil
		}
		list, _ := asList(cond.value)
		low := c.binder.Bind(key, list[0])
		high := c.binder.Bind(key, list[1])
		return column + " " + op + " :" + low + " AND :" + high, nil

	case "FIND_IN_SET":
		name := c.binder.Bind(key, cond.value)
		return c.d.FindInSetSQL(":"+name, column), nil
	}

	p, err := c.value(column, cond.value)
	if err != nil {
		return "", err
	}
	return column + " " + op + " " + p, nil
}

// value renders a value for column: Raw inline, a sub-query in parens,
// anything else as a bound placeholder.
func (c *compiler) value(column string, v any) (string, error) {
	switch val := v.(type) {
	case Raw:
		return string(val), nil
	case *Builder:
		return c.subquery(val, true)
	case increment:
		return "", argError("compile", "increment of %s outside UPDATE", column)
	}
	return ":" + c.binder.Bind(c.b.bindKey(column), v), nil
}

func (c *compiler) child(sub *Builder) *compiler {
	return &compiler{b: sub, d: c.d, binder: c.binder.Child(sub.scope)}
}

// subquery renders sub in parens and merges its binds.
func (c *compiler) subquery(sub *Builder, full bool) (string, error) {
	sql, err := c.nested(sub, full)
	if err != nil {
		return "", err
	}
	return "(" + sql + ")", nil
}

// nested renders sub with a child binder merged back into c. Unless full is
// set, a sub-query on the same table (or none) renders its where fragment
// only; otherwise it renders a full SELECT.
func (c *compiler) nested(sub *Builder, full bool) (string, error) {
	if sub.err != nil {
		return "", sub.err
	}
	child := c.child(sub)

	var (
		sql string
		err error
	)
	if !full && (sub.table == "" || sub.table == c.b.table) {
		sql, err = child.where(sub.where)
	} else {
		if sub.table == "" {
			return "", ErrNoTable
		}
		sql, err = child.selectSQL()
	}
	if err != nil {
		return "", err
	}
	if err := c.binder.Merge(child.binder); err != nil {
		return "", err
	}
	return sql, nil
}
