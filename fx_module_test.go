package quarry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

func TestModuleProvidesDB(t *testing.T) {
	var db *DB
	app := fxtest.New(t,
		Module,
		fx.Provide(func() Config { return Config{Type: "sqlite", Database: ":memory:"} }),
		fx.Provide(func() Store { return NewMemoryStore() }),
		fx.Populate(&db),
	)
	app.RequireStart()

	ctx := context.Background()
	_, err := db.Execute(ctx, "CREATE TABLE tags (id INTEGER PRIMARY KEY, name TEXT)", nil)
	require.NoError(t, err)

	_, err = db.Table("tags").Insert(ctx, map[string]any{"id": 1, "name": "go"})
	require.NoError(t, err)

	name, err := db.Table("tags").Where("id", 1).Value(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, "go", name)

	app.RequireStop()
	assert.ErrorIs(t, db.Ping(ctx), ErrClosed)
}

func TestModuleRejectsInvalidConfig(t *testing.T) {
	app := fx.New(
		Module,
		fx.Provide(func() Config { return Config{Type: "oracle"} }),
		fx.NopLogger,
	)
	err := app.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown database driver")
}

func TestNewBuilderReexport(t *testing.T) {
	q, err := NewBuilder(GetDialect("postgres"), "users").Where("id", 5).SelectSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users WHERE id = :Bind_1_id_", q.SQL())
}
