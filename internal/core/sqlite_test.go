package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/quarry/internal/conn"
)

type member struct {
	ID    int64  `db:"id"`
	Name  string `db:"name"`
	Age   int    `db:"age"`
	Score int    `db:"score"`
	Tags  string `db:"tags"`
}

func (member) TableName() string { return "members" }

func openSQLite(t *testing.T) *DB {
	t.Helper()

	db, err := Open(conn.Config{Type: "sqlite", Database: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	for _, stmt := range []string{
		`CREATE TABLE members (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			age INTEGER NOT NULL DEFAULT 0,
			score INTEGER NOT NULL DEFAULT 0,
			tags TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			member_id INTEGER NOT NULL,
			total INTEGER NOT NULL
		)`,
	} {
		_, err := db.Execute(ctx, stmt, nil)
		require.NoError(t, err)
	}
	return db
}

func seedMembers(t *testing.T, db *DB) {
	t.Helper()
	n, err := db.Model(member{}).InsertAll(context.Background(), []member{
		{Name: "alice", Age: 31, Tags: "go,sql"},
		{Name: "bob", Age: 17, Tags: "rust"},
		{Name: "carol", Age: 45, Tags: "sql"},
	}, 0)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
}

func TestSQLiteRoundTrip(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	seedMembers(t, db)

	m := &member{Name: "dave", Age: 22}
	id, err := db.Model(m).InsertGetID(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, int64(4), id)
	assert.Equal(t, int64(4), m.ID)

	var got member
	require.NoError(t, db.Model(member{}).Find(ctx, &got, 1))
	assert.Equal(t, member{ID: 1, Name: "alice", Age: 31, Tags: "go,sql"}, got)

	var adults []member
	require.NoError(t, db.Table("members").Where("age", ">=", 18).Order("age", "desc").FindAll(ctx, &adults))
	require.Len(t, adults, 3)
	assert.Equal(t, "carol", adults[0].Name)

	n, err := db.Table("members").Where("age", "between", []int{18, 40}).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	avg, err := db.Table("members").Avg(ctx, "age")
	require.NoError(t, err)
	assert.InDelta(t, 28.75, avg, 1e-9)

	name, err := db.Table("members").Where("id", 2).Value(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, "bob", name)

	var tagged []string
	require.NoError(t, db.Table("members").Field("name").WhereFindInSet("tags", "sql").Order("id").FindAll(ctx, &tagged))
	assert.Equal(t, []string{"alice", "carol"}, tagged)

	affected, err := db.Table("members").Where("name", "bob").Inc("score", 5).Update(ctx, map[string]any{"age": 18})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	require.NoError(t, db.Table("members").Where("name", "bob").FindOne(ctx, &got))
	assert.Equal(t, 5, got.Score)
	assert.Equal(t, 18, got.Age)

	affected, err = db.Table("members").Delete(ctx, []int64{3, 4})
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	err = db.Table("members").Where("id", 3).FindOne(ctx, &got)
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestSQLiteSubQuery(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	seedMembers(t, db)

	_, err := db.Table("orders").InsertAll(ctx, []map[string]any{
		{"member_id": 1, "total": 250},
		{"member_id": 3, "total": 40},
		{"member_id": 3, "total": 120},
	}, 0)
	require.NoError(t, err)

	var names []string
	err = db.Table("members").
		Field("name").
		Where("age", ">", 0).
		WhereIn("id", func(q *Builder) {
			q.Table("orders").Field("member_id").Where("total", ">", 100)
		}).
		Order("id").
		FindAll(ctx, &names)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "carol"}, names)

	var spenders []map[string]any
	err = db.Table("members m").
		Join("orders o", "o.member_id = m.id").
		Field("m.name, SUM(o.total) AS spent").
		Group("m.id").
		Having("SUM(o.total) > :min", Params{"min": 200}).
		FindAll(ctx, &spenders)
	require.NoError(t, err)
	require.Len(t, spenders, 1)
	assert.Equal(t, "alice", spenders[0]["name"])
	assert.EqualValues(t, 250, spenders[0]["spent"])
}

func TestSQLiteTransactions(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	seedMembers(t, db)

	err := db.Transaction(ctx, func(ctx context.Context) error {
		if _, err := db.Table("members").Insert(ctx, map[string]any{"name": "eve"}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	assert.EqualError(t, err, "abort")

	n, err := db.Table("members").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	err = db.Transaction(ctx, func(ctx context.Context) error {
		if _, err := db.Table("members").Insert(ctx, map[string]any{"name": "frank"}); err != nil {
			return err
		}
		inner := db.Transaction(ctx, func(ctx context.Context) error {
			if _, err := db.Table("members").Insert(ctx, map[string]any{"name": "grace"}); err != nil {
				return err
			}
			return errors.New("inner abort")
		})
		assert.EqualError(t, inner, "inner abort")
		return nil
	})
	require.NoError(t, err)

	var names []string
	require.NoError(t, db.Table("members").Field("name").Where("id", ">", 3).FindAll(ctx, &names))
	assert.Equal(t, []string{"frank"}, names)
	assert.Equal(t, 0, db.Manager().Level())
}

func TestSQLiteCountThenPage(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	seedMembers(t, db)

	q := db.Table("members").
		Where("age", ">", 1).
		OrderRaw("CASE WHEN name = :first THEN 0 ELSE 1 END", Params{"first": "bob"})

	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	var page []member
	require.NoError(t, q.Clone().Page(1, 2).FindAll(ctx, &page))
	require.Len(t, page, 2)
	assert.Equal(t, "bob", page[0].Name)
}
