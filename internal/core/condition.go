package core

import (
	"fmt"
	"strings"
)

type condKind int

const (
	condBasic condKind = iota
	condRaw
	condGroup
)

// condition is one recorded WHERE clause, rendered at compile time.
type condition struct {
	kind   condKind
	logic  string // AND, OR
	column string
	op     string
	value  any
	sub    *Builder // sub-query value or condition group
	nested bool     // sub was built by a closure
	raw    string
	params Params
}

// Cond is a column/operator/value triple for the list form of Where.
type Cond struct {
	Column string
	Op     string
	Value  any
}

// operators maps accepted spellings to the canonical operator.
var operators = map[string]string{
	"=": "=", "EQ": "=",
	"<>": "<>", "NEQ": "<>", "!=": "!=",
	">": ">", "GT": ">",
	">=": ">=", "EGT": ">=",
	"<": "<", "LT": "<",
	"<=": "<=", "ELT": "<=",
	"LIKE": "LIKE", "NOT LIKE": "NOT LIKE", "NOTLIKE": "NOT LIKE",
	"REGEXP": "REGEXP", "NOT REGEXP": "NOT REGEXP",
	"IN": "IN", "NOT IN": "NOT IN", "NOTIN": "NOT IN",
	"BETWEEN": "BETWEEN", "NOT BETWEEN": "NOT BETWEEN", "NOTBETWEEN": "NOT BETWEEN",
	"EXISTS": "EXISTS", "NOT EXISTS": "NOT EXISTS", "NOTEXISTS": "NOT EXISTS",
	"NULL": "IS NULL", "IS NULL": "IS NULL",
	"NOT NULL": "IS NOT NULL", "NOTNULL": "IS NOT NULL", "IS NOT NULL": "IS NOT NULL",
	"FIND_IN_SET": "FIND_IN_SET",
	"EXP": "EXP",
}

func normalizeOp(op string) (string, bool) {
	key := strings.ToUpper(strings.Join(strings.Fields(op), " "))
	canonical, ok := operators[key]
	return canonical, ok
}

// Where adds an AND condition.
//
//	Where("id", 5)                      id = :Bind_1_id_
//	Where("age", ">", 18)               age > :Bind_1_age_
//	Where("status IS NOT NULL")         raw condition
//	Where(map[string]any{"a": 1})       ANDed equalities, sorted by key
//	Where([]Cond{{"a", "=", 1}})        ANDed conditions
//	Where(func(q *Builder) {...})       parenthesized group
func (b *Builder) Where(column any, args ...any) *Builder {
	return b.addWhere("Where", "AND", column, args)
}

// AndWhere is an alias of Where.
func (b *Builder) AndWhere(column any, args ...any) *Builder {
	return b.addWhere("AndWhere", "AND", column, args)
}

// OrWhere adds an OR condition. Map and list forms are ANDed inside one
// parenthesized group.
func (b *Builder) OrWhere(column any, args ...any) *Builder {
	return b.addWhere("OrWhere", "OR", column, args)
}

// WhereRaw adds a raw AND condition, checked by the raw-fragment validator
// when one is configured.
func (b *Builder) WhereRaw(sql string, params ...Params) *Builder {
	return b.addRaw("WhereRaw", "AND", sql, params)
}

// OrWhereRaw adds a raw OR condition.
func (b *Builder) OrWhereRaw(sql string, params ...Params) *Builder {
	return b.addRaw("OrWhereRaw", "OR", sql, params)
}

// WhereIn adds "column IN (...)". values is a slice, a *Builder, a closure or Raw.
func (b *Builder) WhereIn(column string, values any) *Builder {
	return b.addCond("WhereIn", "AND", column, "IN", values)
}

// WhereNotIn adds "column NOT IN (...)".
func (b *Builder) WhereNotIn(column string, values any) *Builder {
	return b.addCond("WhereNotIn", "AND", column, "NOT IN", values)
}

// WhereBetween adds "column BETWEEN low AND high".
func (b *Builder) WhereBetween(column string, low, high any) *Builder {
	return b.addCond("WhereBetween", "AND", column, "BETWEEN", []any{low, high})
}

// WhereNotBetween adds "column NOT BETWEEN low AND high".
func (b *Builder) WhereNotBetween(column string, low, high any) *Builder {
	return b.addCond("WhereNotBetween", "AND", column, "NOT BETWEEN", []any{low, high})
}

// WhereNull adds "column IS NULL".
func (b *Builder) WhereNull(column string) *Builder {
	return b.addCond("WhereNull", "AND", column, "IS NULL", nil)
}

// WhereNotNull adds "column IS NOT NULL".
func (b *Builder) WhereNotNull(column string) *Builder {
	return b.addCond("WhereNotNull", "AND", column, "IS NOT NULL", nil)
}

// WhereLike adds "column LIKE pattern".
func (b *Builder) WhereLike(column string, pattern any) *Builder {
	return b.addCond("WhereLike", "AND", column, "LIKE", pattern)
}

// WhereExists adds "EXISTS (sub-query)". sub is a *Builder, a closure or Raw.
func (b *Builder) WhereExists(sub any) *Builder {
	return b.addCond("WhereExists", "AND", "", "EXISTS", sub)
}

// WhereNotExists adds "NOT EXISTS (sub-query)".
func (b *Builder) WhereNotExists(sub any) *Builder {
	return b.addCond("WhereNotExists", "AND", "", "NOT EXISTS", sub)
}

// WhereFindInSet matches rows whose comma separated column contains value.
func (b *Builder) WhereFindInSet(column string, value any) *Builder {
	return b.addCond("WhereFindInSet", "AND", column, "FIND_IN_SET", value)
}

// WhereExp adds "column expr" with expr inlined verbatim.
func (b *Builder) WhereExp(column, expr string) *Builder {
	return b.addCond("WhereExp", "AND", column, "EXP", Raw(expr))
}

func (b *Builder) addWhere(method, logic string, column any, args []any) *Builder {
	switch col := column.(type) {
	case string:
		switch len(args) {
		case 0:
			col = strings.TrimSpace(col)
			if col == "" {
				return b.setErr(argError(method, "empty condition"))
			}
			b.where = append(b.where, condition{kind: condRaw, logic: logic, raw: normalizeRaw(col)})
			return b
		case 1:
			return b.addCond(method, logic, col, "=", args[0])
		case 2:
			op, ok := args[0].(string)
			if !ok {
				return b.setErr(argError(method, "operator must be a string, got %T", args[0]))
			}
			return b.addCond(method, logic, col, op, args[1])
		default:
			return b.setErr(argError(method, "too many arguments for column %q", col))
		}
	case Raw:
		return b.addWhere(method, logic, string(col), args)
	}

	if len(args) > 0 {
		return b.setErr(argError(method, "unexpected arguments after %T", column))
	}

	switch col := column.(type) {
	case func(*Builder):
		child := b.newChild(b.table)
		col(child)
		if child.err != nil {
			return b.setErr(child.err)
		}
		b.where = append(b.where, condition{kind: condGroup, logic: logic, sub: child})
	case map[string]any:
		return b.addConds(method, logic, mapConds(col))
	case Params:
		return b.addConds(method, logic, mapConds(col))
	case []Cond:
		return b.addConds(method, logic, col)
	case [][]any:
		conds := make([]Cond, 0, len(col))
		for i, entry := range col {
			c, err := tripleCond(entry)
			if err != nil {
				return b.setErr(fmt.Errorf("%w: entry %d: %v", ErrMalformedCondition, i, err))
			}
			conds = append(conds, c)
		}
		return b.addConds(method, logic, conds)
	default:
		return b.setErr(argError(method, "unsupported condition %T", column))
	}
	return b
}

func mapConds(m map[string]any) []Cond {
	conds := make([]Cond, 0, len(m))
	for _, k := range getKeys(m) {
		conds = append(conds, Cond{Column: k, Op: "=", Value: m[k]})
	}
	return conds
}

// tripleCond converts a [column, value] or [column, operator, value] entry.
func tripleCond(entry []any) (Cond, error) {
	if len(entry) != 2 && len(entry) != 3 {
		return Cond{}, fmt.Errorf("expected 2 or 3 elements, got %d", len(entry))
	}
	column, ok := entry[0].(string)
	if !ok || column == "" {
		return Cond{}, fmt.Errorf("column must be a non-empty string, got %T", entry[0])
	}
	if len(entry) == 2 {
		return Cond{Column: column, Op: "=", Value: entry[1]}, nil
	}
	op, ok := entry[1].(string)
	if !ok {
		return Cond{}, fmt.Errorf("operator must be a string, got %T", entry[1])
	}
	return Cond{Column: column, Op: op, Value: entry[2]}, nil
}

// addConds adds the conditions ANDed. Under OR they form one group.
func (b *Builder) addConds(method, logic string, conds []Cond) *Builder {
	for i, c := range conds {
		if c.Column == "" {
			return b.setErr(fmt.Errorf("%w: entry %d: empty column", ErrMalformedCondition, i))
		}
	}

	if logic != "OR" || len(conds) == 1 {
		for i, c := range conds {
			l := "AND"
			if i == 0 {
				l = logic
			}
			b.addCond(method, l, c.Column, condOp(c.Op), c.Value)
		}
		return b
	}

	group := b.newChild(b.table)
	for _, c := range conds {
		group.addCond(method, "AND", c.Column, condOp(c.Op), c.Value)
	}
	if group.err != nil {
		return b.setErr(group.err)
	}
	b.where = append(b.where, condition{kind: condGroup, logic: logic, sub: group})
	return b
}

func condOp(op string) string {
	if op == "" {
		return "="
	}
	return op
}

func (b *Builder) addRaw(method, logic, sql string, params []Params) *Builder {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return b.setErr(argError(method, "empty condition"))
	}
	if err := b.validate(sql); err != nil {
		return b.setErr(err)
	}
	b.where = append(b.where, condition{
		kind:   condRaw,
		logic:  logic,
		raw:    normalizeRaw(sql),
		params: mergeParams(nil, params...),
	})
	return b
}

// addCond validates one column/operator/value condition and records it.
func (b *Builder) addCond(method, logic, column, op string, value any) *Builder {
	canonical, ok := normalizeOp(op)
	if !ok {
		return b.setErr(argError(method, "unknown operator %q", op))
	}
	op = canonical

	if isNil(value) {
		switch op {
		case "=":
			op = "IS NULL"
		case "<>", "!=":
			op = "IS NOT NULL"
		case "IS NULL", "IS NOT NULL":
		default:
			return b.setErr(argError(method, "nil value with operator %s", op))
		}
		value = nil
	}

	c := condition{kind: condBasic, logic: logic, column: strings.TrimSpace(column), op: op, value: value}

	switch v := value.(type) {
	case func(*Builder):
		child := b.newChild("")
		v(child)
		if child.err != nil {
			return b.setErr(child.err)
		}
		c.sub, c.nested, c.value = child, true, nil
	case *Builder:
		if v.err != nil {
			return b.setErr(v.err)
		}
		c.sub, c.value = b.asSub(v), nil
	}

	switch op {
	case "BETWEEN", "NOT BETWEEN":
		if _, raw := value.(Raw); !raw {
			list, ok := asList(value)
			if s, isStr := value.(string); isStr {
				list, ok = splitList(s), true
			}
			if !ok || len(list) != 2 {
				return b.setErr(argError(method, "%s needs exactly two values", op))
			}
			c.value = list
		}
	case "IN", "NOT IN":
		if s, isStr := value.(string); isStr {
			c.value = splitList(s)
		}
	case "EXISTS", "NOT EXISTS":
		if c.sub == nil {
			switch v := value.(type) {
			case Raw:
			case string:
				c.value = Raw(v)
			default:
				return b.setErr(argError(method, "%s needs a sub-query, got %T", op, value))
			}
		}
	case "EXP":
		switch v := value.(type) {
		case Raw:
		case string:
			c.value = Raw(v)
		default:
			return b.setErr(argError(method, "EXP needs an expression string, got %T", value))
		}
	}

	if c.column == "" && op != "EXISTS" && op != "NOT EXISTS" {
		return b.setErr(argError(method, "empty column"))
	}

	b.where = append(b.where, c)
	return b
}

func splitList(s string) []any {
	parts := strings.Split(s, ",")
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
