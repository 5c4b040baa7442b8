package core

import (
	"context"
	"database/sql"
	"reflect"

	"github.com/coregx/quarry/internal/util"
)

func (b *Builder) execute(ctx context.Context, q *Query) (sql.Result, error) {
	return b.db.manager.Execute(ctx, q.sql, q.binds)
}

// structData converts a struct row to columns, leaving out a zero integer
// primary key so the database generates it. Maps are copied unchanged.
func structData(data any) (map[string]any, error) {
	row, err := util.ToMap(data)
	if err != nil {
		return nil, err
	}
	if _, ok := data.(map[string]any); ok {
		return row, nil
	}
	if f, v, err := util.PrimaryKeyField(reflect.ValueOf(data)); err == nil && util.IsZeroID(v) {
		delete(row, f.Column)
	}
	return row, nil
}

// Insert inserts one row (a map or a struct) and returns the affected rows.
func (b *Builder) Insert(ctx context.Context, data any) (int64, error) {
	if err := b.requireDB(); err != nil {
		return 0, err
	}
	row, err := structData(data)
	if err != nil {
		return 0, err
	}
	q, err := b.InsertSQL(row)
	if err != nil {
		return 0, err
	}
	res, err := b.execute(ctx, q)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// InsertGetID inserts one row and returns the generated primary key. When
// data is a pointer to a struct with a zero id, the id is written back.
// PostgreSQL reads the key through RETURNING.
func (b *Builder) InsertGetID(ctx context.Context, data any) (int64, error) {
	if err := b.requireDB(); err != nil {
		return 0, err
	}
	row, err := structData(data)
	if err != nil {
		return 0, err
	}
	q, err := b.InsertSQL(row)
	if err != nil {
		return 0, err
	}

	var id int64
	if b.dialect.Name() == "postgres" {
		q = &Query{sql: q.sql + " RETURNING " + b.pkColumn(), binds: q.binds}
		err = b.db.manager.Query(ctx, q.sql, q.binds, true, func(rows *sql.Rows) error {
			if rows.Next() {
				return rows.Scan(&id)
			}
			return ErrNoRows
		})
	} else {
		var res sql.Result
		if res, err = b.execute(ctx, q); err == nil {
			id, err = res.LastInsertId()
		}
	}
	if err != nil {
		return 0, err
	}

	if reflect.TypeOf(data).Kind() == reflect.Ptr {
		if _, field, err := util.PrimaryKeyField(reflect.ValueOf(data)); err == nil && util.IsZeroID(field) {
			if err := util.SetID(field, id); err != nil {
				return id, err
			}
		}
	}
	return id, nil
}

// Update updates matching rows with data (a map, a struct or nil when only
// Data/Inc/Dec/Exp are used) and returns the affected rows. A primary key in
// data becomes a where condition. Without any condition it returns
// ErrMissingWhere and runs nothing.
func (b *Builder) Update(ctx context.Context, data any) (int64, error) {
	if err := b.requireDB(); err != nil {
		return 0, err
	}
	q, err := b.UpdateSQL(data)
	if err != nil {
		return 0, err
	}
	res, err := b.execute(ctx, q)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete deletes matching rows and returns the affected rows. ids, when
// given, match the primary key. Without any condition it returns
// ErrMissingWhere and runs nothing.
func (b *Builder) Delete(ctx context.Context, ids ...any) (int64, error) {
	if err := b.requireDB(); err != nil {
		return 0, err
	}
	target := b
	switch len(ids) {
	case 0:
	case 1:
		target = b.Clone()
		if list, ok := asList(ids[0]); ok {
			target.WhereIn(b.pkColumn(), list)
		} else {
			target.Where(b.pkColumn(), ids[0])
		}
	default:
		target = b.Clone().WhereIn(b.pkColumn(), ids)
	}

	q, err := target.DeleteSQL()
	if err != nil {
		return 0, err
	}
	res, err := b.execute(ctx, q)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
