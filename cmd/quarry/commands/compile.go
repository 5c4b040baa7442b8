package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/coregx/quarry/internal/bind"
	"github.com/coregx/quarry/internal/core"
	"github.com/coregx/quarry/internal/dialects"
)

type compileOptions struct {
	dialect    string
	table      string
	fields     []string
	where      []string
	orWhere    []string
	order      []string
	group      string
	limit      int
	offset     int
	lock       bool
	statement  string
	positional bool
}

// NewCompileCommand creates the compile command.
func NewCompileCommand() *cobra.Command {
	var o compileOptions

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a statement and print its SQL and binds",
		Long: `Compile a statement from flags without connecting to a database.

Conditions are written "column value" or "column operator value":

  quarry compile --table users --where "status active" --where "age > 18" \
      --or-where "id in 1,2,3" --order "id desc" --limit 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompile(cmd, o)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.dialect, "dialect", "d", "mysql", "SQL dialect: "+strings.Join(dialects.Names(), ", "))
	f.StringVarP(&o.table, "table", "t", "", "table name, optionally with alias")
	f.StringArrayVarP(&o.fields, "field", "f", nil, "select field (repeatable)")
	f.StringArrayVarP(&o.where, "where", "w", nil, "AND condition (repeatable)")
	f.StringArrayVar(&o.orWhere, "or-where", nil, "OR condition (repeatable)")
	f.StringArrayVarP(&o.order, "order", "o", nil, `order term, e.g. "id desc" (repeatable)`)
	f.StringVar(&o.group, "group", "", "GROUP BY fields")
	f.IntVar(&o.limit, "limit", 0, "row limit")
	f.IntVar(&o.offset, "offset", 0, "row offset")
	f.BoolVar(&o.lock, "lock", false, "add FOR UPDATE")
	f.StringVarP(&o.statement, "statement", "s", "select", "statement: select, count, delete")
	f.BoolVarP(&o.positional, "positional", "p", false, "also print the driver SQL with positional placeholders")
	_ = cmd.MarkFlagRequired("table")

	return cmd
}

func runCompile(cmd *cobra.Command, o compileOptions) error {
	d, ok := dialects.Lookup(o.dialect)
	if !ok {
		return fmt.Errorf("unknown dialect %q (available: %s)", o.dialect, strings.Join(dialects.Names(), ", "))
	}

	b := core.NewBuilder(d, o.table).Field(o.fields...).Group(o.group)
	for _, w := range o.where {
		col, op, val, err := parseCondition(w)
		if err != nil {
			return err
		}
		b.Where(col, op, val)
	}
	for _, w := range o.orWhere {
		col, op, val, err := parseCondition(w)
		if err != nil {
			return err
		}
		b.OrWhere(col, op, val)
	}
	for _, term := range o.order {
		parts := strings.Fields(term)
		switch len(parts) {
		case 0:
		case 1:
			b.Order(parts[0])
		default:
			b.Order(strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1])
		}
	}
	if o.limit > 0 {
		b.Limit(o.offset, o.limit)
	}
	b.Lock(o.lock)

	var (
		q   *core.Query
		err error
	)
	switch strings.ToLower(o.statement) {
	case "select":
		q, err = b.SelectSQL()
	case "count":
		q, err = b.AggregateSQL("COUNT", "*")
	case "delete":
		q, err = b.DeleteSQL()
	default:
		return fmt.Errorf("unknown statement %q", o.statement)
	}
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	printSection(w, "SQL", q.SQL())
	printBinds(w, q.Binds())
	printSection(w, "Interpolated", q.Interpolate())

	if o.positional {
		sql, args, err := bind.Positional(q.SQL(), q.Binds(), d.Placeholder)
		if err != nil {
			return err
		}
		printSection(w, "Driver SQL", sql)
		printSection(w, "Args", fmt.Sprintf("%v", args))
	}
	return nil
}

// parseCondition splits "column value" or "column operator value". IN and
// BETWEEN values are comma separated; null means SQL NULL.
func parseCondition(s string) (string, string, any, error) {
	parts := strings.Fields(s)
	if len(parts) < 2 {
		return "", "", nil, fmt.Errorf("condition %q: expected \"column [operator] value\"", s)
	}
	if len(parts) == 2 {
		return parts[0], "=", parseValue(parts[1]), nil
	}

	column, op, rest := parts[0], parts[1], parts[2:]
	if strings.EqualFold(op, "not") && len(rest) > 1 {
		op, rest = op+" "+rest[0], rest[1:]
	}
	raw := strings.Join(rest, " ")

	switch strings.ToUpper(op) {
	case "IN", "NOT IN", "BETWEEN", "NOT BETWEEN":
		items := strings.Split(raw, ",")
		values := make([]any, 0, len(items))
		for _, item := range items {
			if item = strings.TrimSpace(item); item != "" {
				values = append(values, parseValue(item))
			}
		}
		return column, op, values, nil
	}
	return column, op, parseValue(raw), nil
}

func parseValue(s string) any {
	if strings.EqualFold(s, "null") {
		return nil
	}
	if n, err := cast.ToInt64E(s); err == nil {
		return n
	}
	if f, err := cast.ToFloat64E(s); err == nil {
		return f
	}
	return s
}
