package core

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/coregx/quarry/internal/bind"
	"github.com/coregx/quarry/internal/dialects"
)

// DefaultPK is the primary key column used when none is set with Pk.
const DefaultPK = "id"

// Builder accumulates the options of one statement against one table.
//
// Option methods record their arguments and return the builder for chaining;
// argument errors are kept and returned by the terminal call. Compilation
// (SelectSQL, UpdateSQL, ...) never changes the builder, so the same builder
// compiles to the same SQL every time. A Builder is not safe for concurrent use.
type Builder struct {
	db      *DB
	dialect dialects.Dialect

	table   string
	alias   string
	aliases map[string]string // alias -> table
	scope   string            // bind scope when used as a sub-query

	fields   []string
	distinct bool
	joins    []join
	where    []condition
	group    string
	having   string
	hparams  Params // binds of the HAVING condition
	unions   []union
	order    []orderTerm
	offset   int
	length   int
	lock     string
	force    string
	replace  bool
	data     map[string]any
	params   Params
	master   bool
	pk       string
	cache    *cacheOption

	err error
}

// orderTerm is one ORDER BY expression with the binds it references.
type orderTerm struct {
	expr   string
	params Params
}

type join struct {
	kind   string
	table  string
	alias  string
	sub    *Builder
	on     string
	params Params
}

type union struct {
	all bool
	sub *Builder
	raw string
}

type cacheOption struct {
	key string
	ttl time.Duration
	tag string
}

// increment is an update value rendered as "column = column op value".
type increment struct {
	op   string
	step any
}

// NewBuilder returns a builder that compiles statements for dialect d without
// a database. Terminal methods that execute SQL fail on it; the *SQL methods,
// FetchSQL and DebugSQL work.
func NewBuilder(d dialects.Dialect, table string) *Builder {
	b := &Builder{dialect: d}
	return b.Table(table)
}

// Table sets the full table name. "users u" and "users AS u" also set the alias.
func (b *Builder) Table(name string) *Builder {
	table, alias := splitTable(name)
	b.table = table
	if alias != "" {
		b.Alias(alias)
	}
	return b
}

// Name sets the table name with the configured table prefix prepended.
func (b *Builder) Name(name string) *Builder {
	if b.db != nil {
		name = b.db.prefix + name
	}
	return b.Table(name)
}

// Alias sets the alias of the builder's table.
func (b *Builder) Alias(alias string) *Builder {
	b.alias = alias
	b.addAlias(alias, b.table)
	return b
}

func (b *Builder) addAlias(alias, table string) {
	if alias == "" {
		return
	}
	if b.aliases == nil {
		b.aliases = make(map[string]string)
	}
	b.aliases[alias] = table
}

// GetTable returns the table name without alias.
func (b *Builder) GetTable() string { return b.table }

func (b *Builder) setErr(err error) *Builder {
	if b.err == nil && err != nil {
		b.err = err
	}
	return b
}

// Err returns the first argument error recorded on the builder.
func (b *Builder) Err() error { return b.err }

// newChild returns a fresh builder for a closure: a condition group or a
// sub-query. It shares the database and alias map and gets its own bind scope.
func (b *Builder) newChild(table string) *Builder {
	return &Builder{
		db:      b.db,
		dialect: b.dialect,
		table:   table,
		aliases: maps.Clone(b.aliases),
		scope:   bind.NewScope(),
	}
}

// asSub snapshots other for use as a sub-query of b.
func (b *Builder) asSub(other *Builder) *Builder {
	sub := other.Clone()
	sub.scope = bind.NewScope()
	return sub
}

// Clone returns a deep copy of the builder's options.
func (b *Builder) Clone() *Builder {
	c := *b
	c.aliases = maps.Clone(b.aliases)
	c.fields = append([]string(nil), b.fields...)
	c.joins = append([]join(nil), b.joins...)
	c.where = append([]condition(nil), b.where...)
	c.unions = append([]union(nil), b.unions...)
	c.order = append([]orderTerm(nil), b.order...)
	c.data = maps.Clone(b.data)
	c.params = maps.Clone(b.params)
	c.hparams = maps.Clone(b.hparams)
	if b.cache != nil {
		co := *b.cache
		c.cache = &co
	}
	return &c
}

// Reset clears every option except the table, its alias and the primary key,
// so the builder can be reused for another statement.
func (b *Builder) Reset() *Builder {
	alias := b.alias
	*b = Builder{
		db:      b.db,
		dialect: b.dialect,
		table:   b.table,
		scope:   b.scope,
		pk:      b.pk,
	}
	if alias != "" {
		b.Alias(alias)
	}
	return b
}

// Field adds select fields. Each argument may list several comma separated
// fields. Without Field the statement selects *.
func (b *Builder) Field(fields ...string) *Builder {
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			b.fields = append(b.fields, f)
		}
	}
	return b
}

// Distinct toggles SELECT DISTINCT.
func (b *Builder) Distinct(distinct bool) *Builder {
	b.distinct = distinct
	return b
}

// Join adds an INNER JOIN. other is "table alias" or a *Builder; joining a
// builder requires aliases on both sides.
func (b *Builder) Join(other any, on string, params ...Params) *Builder {
	return b.join("INNER", other, on, params)
}

// LeftJoin adds a LEFT JOIN.
func (b *Builder) LeftJoin(other any, on string, params ...Params) *Builder {
	return b.join("LEFT", other, on, params)
}

// RightJoin adds a RIGHT JOIN.
func (b *Builder) RightJoin(other any, on string, params ...Params) *Builder {
	return b.join("RIGHT", other, on, params)
}

// FullJoin adds a FULL JOIN.
func (b *Builder) FullJoin(other any, on string, params ...Params) *Builder {
	return b.join("FULL", other, on, params)
}

func (b *Builder) join(kind string, other any, on string, params []Params) *Builder {
	j := join{kind: kind, on: normalizeRaw(on), params: mergeParams(nil, params...)}

	switch o := other.(type) {
	case string:
		j.table, j.alias = splitTable(o)
		if j.table == "" {
			return b.setErr(argError("Join", "empty table"))
		}
		b.addAlias(j.alias, j.table)
	case *Builder:
		if b.alias == "" || o.alias == "" {
			return b.setErr(fmt.Errorf("%w: %s join %s", ErrJoinAlias, b.table, o.table))
		}
		if o.err != nil {
			return b.setErr(o.err)
		}
		j.sub = b.asSub(o)
		j.table, j.alias = o.table, o.alias
		b.addAlias(o.alias, o.table)
	default:
		return b.setErr(argError("Join", "unsupported join target %T", other))
	}

	b.joins = append(b.joins, j)
	return b
}

// Group sets the GROUP BY fields.
func (b *Builder) Group(fields string) *Builder {
	b.group = strings.TrimSpace(fields)
	return b
}

// Having sets the HAVING condition.
func (b *Builder) Having(condition string, params ...Params) *Builder {
	b.having = normalizeRaw(condition)
	b.hparams = mergeParams(nil, params...)
	return b
}

// Order adds an ORDER BY term. direction, when given, must be ASC or DESC.
//
//	Order("id", "desc")            ORDER BY id DESC
//	Order("created_at desc, id")   ORDER BY created_at desc, id
func (b *Builder) Order(field string, direction ...string) *Builder {
	field = strings.TrimSpace(field)
	if field == "" {
		return b
	}
	switch len(direction) {
	case 0:
		b.order = append(b.order, orderTerm{expr: field})
	case 1:
		dir := strings.ToUpper(strings.TrimSpace(direction[0]))
		if dir != "ASC" && dir != "DESC" {
			return b.setErr(argError("Order", "invalid direction %q", direction[0]))
		}
		b.order = append(b.order, orderTerm{expr: field + " " + dir})
	default:
		return b.setErr(argError("Order", "too many arguments"))
	}
	return b
}

// OrderRaw adds a raw ORDER BY expression, checked by the raw-fragment
// validator when one is configured.
func (b *Builder) OrderRaw(expr string, params ...Params) *Builder {
	if err := b.validate(expr); err != nil {
		return b.setErr(err)
	}
	b.order = append(b.order, orderTerm{expr: normalizeRaw(expr), params: mergeParams(nil, params...)})
	return b
}

// Limit sets the row limit: Limit(length) or Limit(offset, length).
func (b *Builder) Limit(args ...int) *Builder {
	var offset, length int
	switch len(args) {
	case 1:
		length = args[0]
	case 2:
		offset, length = args[0], args[1]
	default:
		return b.setErr(argError("Limit", "expects 1 or 2 arguments, got %d", len(args)))
	}
	if offset < 0 || length < 0 {
		return b.setErr(argError("Limit", "negative offset or length"))
	}
	b.offset, b.length = offset, length
	return b
}

// Page limits to page p (1-based) of the given size.
func (b *Builder) Page(page, size int) *Builder {
	return b.Limit(size*(max(page, 1)-1), size)
}

// Union appends UNION parts: *Builder, func(*Builder) or a raw SELECT string.
func (b *Builder) Union(parts ...any) *Builder {
	return b.union(false, parts)
}

// UnionAll appends UNION ALL parts.
func (b *Builder) UnionAll(parts ...any) *Builder {
	return b.union(true, parts)
}

func (b *Builder) union(all bool, parts []any) *Builder {
	for _, part := range parts {
		u := union{all: all}
		switch p := part.(type) {
		case string:
			u.raw = normalizeRaw(p)
		case *Builder:
			if p.err != nil {
				return b.setErr(p.err)
			}
			u.sub = b.asSub(p)
		case func(*Builder):
			child := b.newChild("")
			p(child)
			if child.err != nil {
				return b.setErr(child.err)
			}
			u.sub = child
		default:
			return b.setErr(argError("Union", "unsupported part %T", part))
		}
		b.unions = append(b.unions, u)
	}
	return b
}

// Lock sets the row lock: true means FOR UPDATE, a string is used as given,
// false removes the lock.
func (b *Builder) Lock(lock any) *Builder {
	switch l := lock.(type) {
	case bool:
		b.lock = ""
		if l {
			b.lock = "FOR UPDATE"
		}
	case string:
		b.lock = strings.TrimSpace(l)
	default:
		return b.setErr(argError("Lock", "unsupported lock %T", lock))
	}
	return b
}

// Force sets an index hint for the table.
func (b *Builder) Force(index string) *Builder {
	b.force = strings.TrimSpace(index)
	return b
}

// Replace makes Insert and InsertAll emit REPLACE INTO.
func (b *Builder) Replace(replace bool) *Builder {
	b.replace = replace
	return b
}

// Master sends reads of this builder to the master connection.
func (b *Builder) Master() *Builder {
	b.master = true
	return b
}

// Pk sets the primary key column used by Find, Delete and Update.
func (b *Builder) Pk(column string) *Builder {
	b.pk = column
	return b
}

func (b *Builder) pkColumn() string {
	if b.pk != "" {
		return b.pk
	}
	return DefaultPK
}

// Cache caches SELECT results under key for ttl in the database's cache store.
// An empty key derives one from the statement. tag is recorded with the entry.
func (b *Builder) Cache(key string, ttl time.Duration, tag ...string) *Builder {
	co := &cacheOption{key: key, ttl: ttl}
	if len(tag) > 0 {
		co.tag = tag[0]
	}
	b.cache = co
	return b
}

// Bind adds named values for placeholders in raw fragments.
func (b *Builder) Bind(params Params) *Builder {
	b.params = mergeParams(b.params, params)
	return b
}

// Data sets column values used by Insert and Update in addition to their
// data argument.
func (b *Builder) Data(data map[string]any) *Builder {
	if b.data == nil {
		b.data = make(map[string]any, len(data))
	}
	maps.Copy(b.data, data)
	return b
}

// Inc increments field by step (default 1) on the next Update.
func (b *Builder) Inc(field string, step ...any) *Builder {
	return b.setData(field, increment{op: "+", step: stepOf(step)})
}

// Dec decrements field by step (default 1) on the next Update.
func (b *Builder) Dec(field string, step ...any) *Builder {
	return b.setData(field, increment{op: "-", step: stepOf(step)})
}

// Exp sets field to a raw SQL expression on the next Update.
func (b *Builder) Exp(field, expr string) *Builder {
	return b.setData(field, Raw(expr))
}

func (b *Builder) setData(field string, v any) *Builder {
	if b.data == nil {
		b.data = make(map[string]any)
	}
	b.data[field] = v
	return b
}

func stepOf(step []any) any {
	if len(step) == 0 {
		return 1
	}
	return step[0]
}

func (b *Builder) validate(fragment string) error {
	if b.db == nil || b.db.validator == nil {
		return nil
	}
	return b.db.validator.Validate(fragment)
}

// bindKey returns the base key used to name the placeholder of column.
// Aliased columns resolve to their table: u.id -> users_id.
func (b *Builder) bindKey(column string) string {
	column = strings.Trim(column, "[]` ")
	if i := strings.LastIndexByte(column, '.'); i > 0 {
		prefix := strings.Trim(column[:i], "[]`")
		if table, ok := b.aliases[prefix]; ok {
			return table + "_" + column[i+1:]
		}
	}
	return column
}

// plain reports whether the builder selects a whole table without options,
// so that joining it needs no sub-select.
func (b *Builder) plain() bool {
	return len(b.fields) == 0 && len(b.where) == 0 && len(b.joins) == 0 &&
		b.group == "" && b.having == "" && len(b.unions) == 0 && len(b.order) == 0 &&
		b.length == 0 && !b.distinct && b.force == ""
}
