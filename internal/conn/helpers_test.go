package conn

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/coregx/quarry/internal/dialects"
	"github.com/stretchr/testify/require"
)

// mockOpener hands out sqlmock databases by host name in DSN order.
type mockOpener struct {
	t     *testing.T
	pools map[string][]*sql.DB
	opens []string
}

func newMockOpener(t *testing.T) *mockOpener {
	return &mockOpener{t: t, pools: make(map[string][]*sql.DB)}
}

// add queues one database for host and returns its mock.
func (o *mockOpener) add(host string) sqlmock.Sqlmock {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(o.t, err)
	o.t.Cleanup(func() { _ = db.Close() })
	o.pools[host] = append(o.pools[host], db)
	return mock
}

func (o *mockOpener) open(_ string, dsn string) (*sql.DB, error) {
	for host, dbs := range o.pools {
		if strings.Contains(dsn, host) && len(dbs) > 0 {
			o.opens = append(o.opens, host)
			o.pools[host] = dbs[1:]
			return dbs[0], nil
		}
	}
	return nil, fmt.Errorf("unexpected connect: %s", dsn)
}

func mysqlConfig(host string) Config {
	return Config{
		Type:     "mysql",
		Hostname: host,
		Database: "shop",
		Username: "app",
		Password: "secret",
	}
}

func newTestManager(t *testing.T, cfg Config, o *mockOpener, opts ...Option) *Manager {
	m, err := New(cfg, append([]Option{WithOpener(o.open)}, opts...)...)
	require.NoError(t, err)
	return m
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *recordingLogger) find(msg string) []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logEntry
	for _, e := range l.entries {
		if e.msg == msg {
			out = append(out, e)
		}
	}
	return out
}

func (e logEntry) value(key string) any {
	for i := 0; i+1 < len(e.args); i += 2 {
		if e.args[i] == key {
			return e.args[i+1]
		}
	}
	return nil
}

// noSavepoints is the mysql dialect with savepoints turned off.
type noSavepoints struct {
	dialects.Dialect
}

func (noSavepoints) Name() string             { return "nosave" }
func (noSavepoints) SupportsSavepoints() bool { return false }

func init() {
	dialects.RegisterDialect("nosave", noSavepoints{Dialect: dialects.GetDialect("mysql")})
	RegisterDriver(Driver{
		Type:      "nosave",
		SQLDriver: "mysql",
		Dialect:   "nosave",
		DSN:       mysqlDSN,
		Validate:  requireServer,
	})
}
