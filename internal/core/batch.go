package core

import (
	"context"
	"fmt"
	"reflect"
)

// DefaultBatchSize is the number of rows per INSERT used by InsertAll when
// no batch size is given.
const DefaultBatchSize = 1000

// InsertAll inserts rows (a slice of maps or structs) in statements of at
// most batchSize rows and returns the affected rows. batchSize <= 0 means
// DefaultBatchSize. More than one batch runs in one transaction: a failing
// batch rolls back every batch before it.
func (b *Builder) InsertAll(ctx context.Context, rows any, batchSize int) (int64, error) {
	if err := b.requireDB(); err != nil {
		return 0, err
	}
	data, err := rowsData(rows)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	queries := make([]*Query, 0, (len(data)+batchSize-1)/batchSize)
	for start := 0; start < len(data); start += batchSize {
		q, err := b.InsertAllSQL(data[start:min(start+batchSize, len(data))])
		if err != nil {
			return 0, err
		}
		queries = append(queries, q)
	}

	if len(queries) == 1 {
		res, err := b.execute(ctx, queries[0])
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	}

	var total int64
	err = b.db.Transaction(ctx, func(ctx context.Context) error {
		for i, q := range queries {
			res, err := b.execute(ctx, q)
			if err != nil {
				return WrapError(err, fmt.Sprintf("insert batch %d/%d", i+1, len(queries)))
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// rowsData converts a slice of maps or structs into column maps.
func rowsData(rows any) ([]map[string]any, error) {
	if maps, ok := rows.([]map[string]any); ok {
		return maps, nil
	}

	v := reflect.ValueOf(rows)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, argError("InsertAll", "rows must be a slice, got %T", rows)
	}

	out := make([]map[string]any, v.Len())
	for i := range out {
		row, err := structData(v.Index(i).Interface())
		if err != nil {
			return nil, WrapError(err, fmt.Sprintf("row %d", i))
		}
		out[i] = row
	}
	return out, nil
}
