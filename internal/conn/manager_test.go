package conn

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/coregx/quarry/internal/bind"
	"github.com/coregx/quarry/internal/tracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var errGoneAway = errors.New("Error 2006: MySQL server has gone away")

func selectByID(id any) (string, bind.Map) {
	return "SELECT id, name FROM users WHERE id = :Bind_1_id_",
		bind.Map{"Bind_1_id_": {Value: id, Type: bind.TypeInt}}
}

func countRows(n *int) func(*sql.Rows) error {
	return func(rows *sql.Rows) error {
		*n = 0
		for rows.Next() {
			*n++
		}
		return nil
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Type: "oracle"})
	assert.ErrorIs(t, err, ErrUnknownDriver)

	_, err = New(Config{Type: "mysql", Hostname: "db1", Username: "app"})
	assert.ErrorIs(t, err, ErrConfig)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "database", cfgErr.Field)

	_, err = New(Config{Type: "sqlite"})
	assert.ErrorIs(t, err, ErrConfig)

	m, err := New(Config{Type: "sqlite", Database: ":memory:"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", m.Dialect().Name())
}

func TestManager_LazyConnect(t *testing.T) {
	o := newMockOpener(t)
	mock := o.add("db1")
	m := newTestManager(t, mysqlConfig("db1"), o)

	assert.Empty(t, o.opens)

	query, binds := selectByID(1)
	mock.ExpectQuery("SELECT id, name FROM users WHERE id = ?").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "Alice"))
	mock.ExpectExec("UPDATE users SET name = ? WHERE id = ?").
		WithArgs("Bob", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	var n int
	require.NoError(t, m.Query(context.Background(), query, binds, false, countRows(&n)))
	assert.Equal(t, 1, n)

	res, err := m.Execute(context.Background(), "UPDATE users SET name = :Bind_1_name_ WHERE id = :Bind_2_id_", bind.Map{
		"Bind_1_name_": {Value: "Bob", Type: bind.TypeStr},
		"Bind_2_id_":   {Value: "1", Type: bind.TypeInt},
	})
	require.NoError(t, err)
	affected, _ := res.RowsAffected()
	assert.Equal(t, int64(1), affected)

	// Without Deploy one handle serves both roles.
	assert.Equal(t, []string{"db1"}, o.opens)
	assert.NoError(t, mock.ExpectationsWereMet())

	stats := m.Stats()
	assert.Equal(t, uint64(1), stats.Queries)
	assert.Equal(t, uint64(1), stats.Executes)
	assert.Equal(t, uint64(1), stats.Connects)
}

func TestManager_PostgresPlaceholders(t *testing.T) {
	o := newMockOpener(t)
	mock := o.add("pg1")
	cfg := mysqlConfig("pg1")
	cfg.Type = "postgres"
	m := newTestManager(t, cfg, o)

	mock.ExpectExec("DELETE FROM users WHERE id = $1 OR name = $2").
		WithArgs(int64(3), "x").
		WillReturnResult(sqlmock.NewResult(0, 2))

	_, err := m.Execute(context.Background(), "DELETE FROM users WHERE id = :Bind_1_id_ OR name = :Bind_2_name_", bind.Map{
		"Bind_1_id_":   {Value: 3, Type: bind.TypeInt},
		"Bind_2_name_": {Value: "x", Type: bind.TypeStr},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_RetryGivesUpAfterFourRetries(t *testing.T) {
	o := newMockOpener(t)
	mocks := make([]sqlmock.Sqlmock, 5)
	for i := range mocks {
		mocks[i] = o.add("db1")
		mocks[i].ExpectQuery("SELECT id, name FROM users WHERE id = ?").
			WithArgs(int64(7)).
			WillReturnError(errGoneAway)
	}

	cfg := mysqlConfig("db1")
	cfg.BreakReconnect = true
	m := newTestManager(t, cfg, o)

	query, binds := selectByID(7)
	var n int
	err := m.Query(context.Background(), query, binds, false, countRows(&n))

	require.Error(t, err)
	assert.ErrorIs(t, err, errGoneAway)
	assert.ErrorIs(t, err, ErrBrokenConnection)
	var stmtErr *StatementError
	require.ErrorAs(t, err, &stmtErr)
	assert.Equal(t, "SELECT id, name FROM users WHERE id = 7", stmtErr.SQL)

	assert.Len(t, o.opens, 5)
	assert.Equal(t, uint64(4), m.Stats().Retries)
	for _, mock := range mocks {
		assert.NoError(t, mock.ExpectationsWereMet())
	}
}

func TestManager_RetrySucceedsOnFreshHandle(t *testing.T) {
	o := newMockOpener(t)
	first := o.add("db1")
	second := o.add("db1")

	first.ExpectExec("DELETE FROM sessions").WillReturnError(errGoneAway)
	second.ExpectExec("DELETE FROM sessions").WillReturnResult(sqlmock.NewResult(0, 4))

	cfg := mysqlConfig("db1")
	cfg.BreakReconnect = true
	m := newTestManager(t, cfg, o)

	res, err := m.Execute(context.Background(), "DELETE FROM sessions", nil)
	require.NoError(t, err)
	n, _ := res.RowsAffected()
	assert.Equal(t, int64(4), n)
	assert.Equal(t, uint64(1), m.Stats().Retries)
	assert.NoError(t, first.ExpectationsWereMet())
	assert.NoError(t, second.ExpectationsWereMet())
}

func TestManager_NoRetryWithoutBreakReconnect(t *testing.T) {
	o := newMockOpener(t)
	mock := o.add("db1")
	mock.ExpectExec("DELETE FROM sessions").WillReturnError(errGoneAway)

	m := newTestManager(t, mysqlConfig("db1"), o)

	_, err := m.Execute(context.Background(), "DELETE FROM sessions", nil)
	assert.ErrorIs(t, err, errGoneAway)
	assert.Len(t, o.opens, 1)
}

func TestManager_StatementErrorNotRetried(t *testing.T) {
	o := newMockOpener(t)
	mock := o.add("db1")
	syntaxErr := errors.New("Error 1064: You have an error in your SQL syntax")
	mock.ExpectQuery("SELECT id, name FROM users WHERE id = ?").WillReturnError(syntaxErr)

	cfg := mysqlConfig("db1")
	cfg.BreakReconnect = true
	m := newTestManager(t, cfg, o)

	query, binds := selectByID(3)
	var n int
	err := m.Query(context.Background(), query, binds, false, countRows(&n))

	assert.ErrorIs(t, err, syntaxErr)
	assert.Contains(t, err.Error(), "[SQL: SELECT id, name FROM users WHERE id = 3]")
	assert.Len(t, o.opens, 1)
	assert.Equal(t, uint64(1), m.Stats().Failures)
}

func TestManager_BindErrorSkipsDatabase(t *testing.T) {
	o := newMockOpener(t)
	m := newTestManager(t, mysqlConfig("db1"), o)

	_, err := m.Execute(context.Background(), "UPDATE t SET n = :Bind_1_n_", bind.Map{
		"Bind_1_n_": {Value: "not a number", Type: bind.TypeInt},
	})
	assert.Error(t, err)
	assert.Empty(t, o.opens)
}

func TestManager_ReadWriteSplit(t *testing.T) {
	o := newMockOpener(t)
	master := o.add("m1")
	replica := o.add("r2")

	cfg := mysqlConfig("m1,r1,r2")
	cfg.Deploy = true
	cfg.RWSeparate = true
	m := newTestManager(t, cfg, o, WithRandom(func(n int) int { return n - 1 }))

	query, binds := selectByID(1)
	replica.ExpectQuery("SELECT id, name FROM users WHERE id = ?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	master.ExpectExec("DELETE FROM users").WillReturnResult(sqlmock.NewResult(0, 1))
	replica.ExpectQuery("SELECT id, name FROM users WHERE id = ?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	master.ExpectQuery("SELECT id, name FROM users WHERE id = ?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	ctx := context.Background()
	var n int
	require.NoError(t, m.Query(ctx, query, binds, false, countRows(&n)))
	_, err := m.Execute(ctx, "DELETE FROM users", nil)
	require.NoError(t, err)
	require.NoError(t, m.Query(ctx, query, binds, false, countRows(&n)))
	require.NoError(t, m.Query(ctx, query, binds, true, countRows(&n)))

	assert.Equal(t, []string{"r2", "m1"}, o.opens)
	assert.False(t, m.ReadsFromMaster())
	assert.NoError(t, master.ExpectationsWereMet())
	assert.NoError(t, replica.ExpectationsWereMet())
}

func TestManager_SlaveNo(t *testing.T) {
	o := newMockOpener(t)
	replica := o.add("r1")
	replica.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	cfg := mysqlConfig("m1,r1,r2")
	cfg.Deploy = true
	cfg.RWSeparate = true
	cfg.SlaveNo = 1
	m := newTestManager(t, cfg, o, WithRandom(func(n int) int { return n - 1 }))

	var n int
	require.NoError(t, m.Query(context.Background(), "SELECT 1", nil, false, countRows(&n)))
	assert.Equal(t, []string{"r1"}, o.opens)
}

func TestManager_ReadMasterIsSticky(t *testing.T) {
	o := newMockOpener(t)
	master := o.add("m1")
	replica := o.add("r1")

	cfg := mysqlConfig("m1,r1")
	cfg.Deploy = true
	cfg.RWSeparate = true
	cfg.ReadMaster = true
	m := newTestManager(t, cfg, o, WithRandom(func(int) int { return 0 }))

	replica.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	master.ExpectExec("UPDATE users SET seen = 1").WillReturnResult(sqlmock.NewResult(0, 1))
	master.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	master.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	ctx := context.Background()
	var n int
	require.NoError(t, m.Query(ctx, "SELECT 1", nil, false, countRows(&n)))
	assert.False(t, m.ReadsFromMaster())

	_, err := m.Execute(ctx, "UPDATE users SET seen = 1", nil)
	require.NoError(t, err)
	assert.True(t, m.ReadsFromMaster())

	require.NoError(t, m.Query(ctx, "SELECT 1", nil, false, countRows(&n)))
	require.NoError(t, m.Query(ctx, "SELECT 1", nil, false, countRows(&n)))

	assert.NoError(t, master.ExpectationsWereMet())
	assert.NoError(t, replica.ExpectationsWereMet())
}

func TestManager_DebugLogging(t *testing.T) {
	o := newMockOpener(t)
	mock := o.add("db1")
	mock.ExpectExec("UPDATE users SET password = ? WHERE id = ?").WillReturnResult(sqlmock.NewResult(0, 1))

	cfg := mysqlConfig("db1")
	cfg.Debug = true
	rec := &recordingLogger{}
	m := newTestManager(t, cfg, o, WithLogger(rec))

	_, err := m.Execute(context.Background(), "UPDATE users SET password = :Bind_1_password_ WHERE id = :Bind_2_id_", bind.Map{
		"Bind_1_password_": {Value: "hunter2", Type: bind.TypeStr},
		"Bind_2_id_":       {Value: 5, Type: bind.TypeInt},
	})
	require.NoError(t, err)

	entries := rec.find("quarry statement")
	require.Len(t, entries, 1)
	assert.Equal(t, "UPDATE users SET password = :Bind_1_password_ WHERE id = :Bind_2_id_", entries[0].value("sql"))
	assert.Equal(t, true, entries[0].value("success"))
	assert.Equal(t, "[Bind_1_password_=***REDACTED***, Bind_2_id_=5]", entries[0].value("binds"))
}

func TestManager_TracesStatements(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	o := newMockOpener(t)
	mock := o.add("db1")
	mock.ExpectExec("DELETE FROM users").WillReturnResult(sqlmock.NewResult(0, 2))

	m := newTestManager(t, mysqlConfig("db1"), o, WithTracer(tracer.NewOtelTracer(tp.Tracer("test"))))
	_, err := m.Execute(context.Background(), "DELETE FROM users", nil)
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "quarry.execute", spans[0].Name)
}

func TestManager_StmtCache(t *testing.T) {
	o := newMockOpener(t)
	mock := o.add("db1")
	prep := mock.ExpectPrepare("SELECT id, name FROM users WHERE id = ?")
	prep.ExpectQuery().WithArgs(int64(1)).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	prep.ExpectQuery().WithArgs(int64(2)).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))

	cfg := mysqlConfig("db1")
	cfg.StmtCache = 8
	m := newTestManager(t, cfg, o)

	ctx := context.Background()
	var n int
	for _, id := range []int{1, 2} {
		query, binds := selectByID(id)
		require.NoError(t, m.Query(ctx, query, binds, false, countRows(&n)))
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_Close(t *testing.T) {
	o := newMockOpener(t)
	mock := o.add("db1")
	mock.ExpectClose()

	m := newTestManager(t, mysqlConfig("db1"), o)
	require.NoError(t, m.Ping(context.Background(), true))
	require.NoError(t, m.Close())

	_, err := m.Execute(context.Background(), "DELETE FROM users", nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
