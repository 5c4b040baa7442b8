// Package conn owns database connections for quarry: it opens master and
// replica handles lazily, converts named binds to the driver's positional
// form, retries statements after a broken link and coordinates nested
// transactions.
package conn

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coregx/quarry/internal/bind"
	"github.com/coregx/quarry/internal/cache"
	"github.com/coregx/quarry/internal/dialects"
	"github.com/coregx/quarry/internal/logger"
	"github.com/coregx/quarry/internal/tracer"
	"github.com/coregx/quarry/internal/util"
)

// Handle roles.
const (
	RoleMaster  = "master"
	RoleReplica = "replica"
)

// maxReconnect is the number of retries after a broken connection.
const maxReconnect = 4

// Opener opens a database handle. sql.Open is used unless WithOpener is given.
type Opener func(driverName, dsn string) (*sql.DB, error)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger receiving connection events and, when
// Config.Debug is on, one record per statement.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithSanitizer replaces the default bind sanitizer used in debug records.
func WithSanitizer(s *logger.Sanitizer) Option {
	return func(m *Manager) { m.sanitizer = s }
}

// WithTracer sets the tracer opening one span per statement.
func WithTracer(t tracer.Tracer) Option {
	return func(m *Manager) { m.tracer = t }
}

// WithOpener replaces sql.Open.
func WithOpener(o Opener) Option {
	return func(m *Manager) { m.open = o }
}

// WithRandom replaces the host picker; fn returns a value in [0, n).
func WithRandom(fn func(n int) int) Option {
	return func(m *Manager) { m.random = fn }
}

type handle struct {
	role  string
	host  Host
	db    *sql.DB
	stmts *cache.StmtCache
}

func (h *handle) close() error {
	if h.stmts != nil {
		h.stmts.Clear()
	}
	return h.db.Close()
}

func (h *handle) query(ctx context.Context, tx *sql.Tx, query string, args []any) (*sql.Rows, error) {
	if tx != nil {
		return tx.QueryContext(ctx, query, args...)
	}
	if h.stmts != nil {
		stmt, release, err := h.stmts.Acquire(ctx, h.db, query)
		if err != nil {
			return nil, err
		}
		defer release()
		return stmt.QueryContext(ctx, args...)
	}
	return h.db.QueryContext(ctx, query, args...)
}

func (h *handle) exec(ctx context.Context, tx *sql.Tx, query string, args []any) (sql.Result, error) {
	if tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	if h.stmts != nil {
		stmt, release, err := h.stmts.Acquire(ctx, h.db, query)
		if err != nil {
			return nil, err
		}
		defer release()
		return stmt.ExecContext(ctx, args...)
	}
	return h.db.ExecContext(ctx, query, args...)
}

// Manager is the connection manager of one unit of work. Handles are opened
// on first use. Without Config.Deploy a single handle serves every role.
//
// A Manager may be used from several goroutines outside a transaction. While
// a transaction is active every statement runs on it, so the Manager must not
// be shared until the transaction ends.
type Manager struct {
	cfg     Config
	driver  Driver
	dialect dialects.Dialect

	open      Opener
	logger    logger.Logger
	sanitizer *logger.Sanitizer
	tracer    tracer.Tracer
	random    func(n int) int
	stats     counters

	mu      sync.Mutex
	master  *handle
	replica *handle
	closed  bool

	readMaster atomic.Bool

	txMu     sync.Mutex
	tx       *sql.Tx
	txHandle *handle
	level    int
}

// New validates cfg against the driver registry and returns an unconnected
// Manager.
func New(cfg Config, opts ...Option) (*Manager, error) {
	d, err := Validate(&cfg)
	if err != nil {
		return nil, err
	}
	dialect, ok := dialects.Lookup(d.Dialect)
	if !ok {
		return nil, fmt.Errorf("%w: no dialect %q for %s", ErrUnknownDriver, d.Dialect, d.Type)
	}

	m := &Manager{
		cfg:       cfg,
		driver:    d,
		dialect:   dialect,
		open:      sql.Open,
		logger:    &logger.NoopLogger{},
		sanitizer: logger.NewSanitizer(nil),
		tracer:    tracer.NoopTracer{},
		random:    rand.Intn,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Dialect returns the SQL dialect of the connection.
func (m *Manager) Dialect() dialects.Dialect { return m.dialect }

// Config returns a copy of the connection config.
func (m *Manager) Config() Config { return m.cfg }

// Stats returns a snapshot of the statement counters.
func (m *Manager) Stats() Stats { return m.stats.snapshot() }

// ReadsFromMaster reports whether reads are pinned to the master after a
// write (Config.ReadMaster).
func (m *Manager) ReadsFromMaster() bool { return m.readMaster.Load() }

func (m *Manager) connect(ctx context.Context, role string, host Host) (*handle, error) {
	dsn, err := m.driver.DSN(&m.cfg, host)
	if err != nil {
		return nil, err
	}

	db, err := m.open(m.driver.SQLDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("quarry: open %s %s: %w", role, host.Addr(), err)
	}
	m.configurePool(db)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("quarry: connect %s %s: %w", role, host.Addr(), err)
	}
	m.stats.connects.Add(1)

	h := &handle{role: role, host: host, db: db}
	if m.cfg.StmtCache > 0 {
		h.stmts = cache.NewStmtCache(m.cfg.StmtCache)
	}
	m.logger.Info("quarry connected", "type", m.cfg.Type, "role", role, "host", host.Addr())
	return h, nil
}

func (m *Manager) configurePool(db *sql.DB) {
	if m.dialect.Name() == "sqlite" {
		// One writer per file; :memory: databases exist per connection.
		db.SetMaxOpenConns(1)
		return
	}
	if m.cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(m.cfg.MaxOpenConns)
	}
	if m.cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(m.cfg.MaxIdleConns)
	}
	if m.cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(m.cfg.ConnMaxLifetime)
	}
}

// initConnect returns the handle for the requested role, opening it if needed.
func (m *Manager) initConnect(ctx context.Context, master bool) (*handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	if !m.cfg.Deploy {
		if m.master == nil {
			h, err := m.connect(ctx, RoleMaster, m.cfg.Hosts()[0])
			if err != nil {
				return nil, err
			}
			m.master, m.replica = h, h
		}
		return m.master, nil
	}

	if master {
		if m.master == nil {
			h, err := m.connect(ctx, RoleMaster, m.pickHost(true))
			if err != nil {
				return nil, err
			}
			m.master = h
		}
		return m.master, nil
	}

	if m.replica == nil {
		h, err := m.connect(ctx, RoleReplica, m.pickHost(false))
		if err != nil {
			return nil, err
		}
		m.replica = h
	}
	return m.replica, nil
}

// pickHost chooses a deploy host. With RWSeparate the first MasterNum hosts
// take writes and the remaining ones reads; SlaveNo (1-based) pins the read
// host. Without RWSeparate any host serves either role.
func (m *Manager) pickHost(master bool) Host {
	hosts := m.cfg.Hosts()
	if !m.cfg.RWSeparate {
		return hosts[m.random(len(hosts))]
	}

	n := min(m.cfg.masterNum(), len(hosts))
	if master {
		return hosts[m.random(n)]
	}

	reads := hosts[n:]
	if len(reads) == 0 {
		reads = hosts
	}
	if m.cfg.SlaveNo > 0 && m.cfg.SlaveNo <= len(reads) {
		return reads[m.cfg.SlaveNo-1]
	}
	return reads[m.random(len(reads))]
}

// reconnect drops h so the next statement opens a fresh handle.
func (m *Manager) reconnect(h *handle) {
	m.mu.Lock()
	if m.master == h {
		m.master = nil
	}
	if m.replica == h {
		m.replica = nil
	}
	m.mu.Unlock()

	if err := h.close(); err != nil {
		m.logger.Debug("quarry close broken handle", "role", h.role, "error", err)
	}
}

// target returns the handle to run on and the active transaction, if any.
func (m *Manager) target(ctx context.Context, master bool) (*handle, *sql.Tx, error) {
	m.txMu.Lock()
	tx, h := m.tx, m.txHandle
	m.txMu.Unlock()
	if tx != nil {
		return h, tx, nil
	}

	h, err := m.initConnect(ctx, master || m.readMaster.Load())
	return h, nil, err
}

type operation func(ctx context.Context, h *handle, tx *sql.Tx, query string, args []any) (int64, error)

// run converts query, executes op and retries it on a fresh handle after a
// broken link, at most maxReconnect times and never inside a transaction.
func (m *Manager) run(ctx context.Context, span string, master bool, query string, binds bind.Map, op operation) error {
	sqlText, args, err := bind.Positional(query, binds, m.dialect.Placeholder)
	if err != nil {
		m.stats.failures.Add(1)
		return &StatementError{SQL: query, Err: err}
	}

	ctx, sp := m.tracer.StartSpan(ctx, span)
	defer sp.End()

	st := &tracer.Statement{SQL: sqlText, System: m.dialect.Name()}
	start := time.Now()

	var stmtErr error
	for {
		h, tx, connErr := m.target(ctx, master)
		if connErr != nil {
			err = connErr
			break
		}
		st.Role = h.role
		st.Attempts++

		st.RowsAffected, stmtErr = op(ctx, h, tx, sqlText, args)
		if stmtErr == nil {
			err = nil
			break
		}
		broken := IsBrokenConnection(stmtErr, m.cfg.BreakMatchStr)
		err = &StatementError{SQL: bind.Interpolate(query, binds), Err: stmtErr, Broken: broken}

		if tx != nil || !m.cfg.BreakReconnect || st.Attempts > maxReconnect ||
			util.IsCanceled(ctx) || !broken {
			break
		}
		m.logger.Warn("quarry reconnecting after broken connection",
			"role", h.role, "attempt", st.Attempts, "error", stmtErr)
		m.stats.retries.Add(1)
		m.reconnect(h)
	}

	st.Duration = time.Since(start)
	st.Err = err
	tracer.Record(sp, st)
	m.debug(query, binds, st)

	if err != nil {
		m.stats.failures.Add(1)
	}
	return err
}

func (m *Manager) debug(query string, binds bind.Map, st *tracer.Statement) {
	if !m.cfg.Debug {
		return
	}
	args := []any{
		"sql", query,
		"binds", m.sanitizer.FormatBinds(binds),
		"success", st.Err == nil,
		"role", st.Role,
		"duration_ms", st.Duration.Milliseconds(),
	}
	if st.Err != nil {
		args = append(args, "error", st.Err.Error())
	}
	m.logger.Debug("quarry statement", args...)
}

// Query runs a read statement and passes the rows to scan, closing them
// afterwards. scan may run more than once when the statement is retried and
// must reset its destination on every call. master forces the master handle.
func (m *Manager) Query(ctx context.Context, query string, binds bind.Map, master bool, scan func(*sql.Rows) error) error {
	m.stats.queries.Add(1)
	return m.run(ctx, "quarry.query", master, query, binds,
		func(ctx context.Context, h *handle, tx *sql.Tx, q string, args []any) (int64, error) {
			rows, err := h.query(ctx, tx, q, args)
			if err != nil {
				return 0, err
			}
			defer rows.Close()

			if err := scan(rows); err != nil {
				return 0, err
			}
			return 0, rows.Err()
		})
}

// Execute runs a write statement on the master. With Config.ReadMaster set,
// every later read of this Manager also goes to the master.
func (m *Manager) Execute(ctx context.Context, query string, binds bind.Map) (sql.Result, error) {
	m.stats.executes.Add(1)
	if m.cfg.ReadMaster {
		m.readMaster.Store(true)
	}

	var res sql.Result
	err := m.run(ctx, "quarry.execute", true, query, binds,
		func(ctx context.Context, h *handle, tx *sql.Tx, q string, args []any) (int64, error) {
			r, err := h.exec(ctx, tx, q, args)
			if err != nil {
				return 0, err
			}
			res = r
			n, _ := r.RowsAffected()
			return n, nil
		})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Ping opens the handle for the role if needed and checks it is alive.
func (m *Manager) Ping(ctx context.Context, master bool) error {
	h, err := m.initConnect(ctx, master)
	if err != nil {
		return err
	}
	return h.db.PingContext(ctx)
}

// Close rolls back an active transaction and closes every handle.
// Further calls return ErrClosed.
func (m *Manager) Close() error {
	m.txMu.Lock()
	var txErr error
	if m.tx != nil {
		txErr = m.tx.Rollback()
		m.tx, m.txHandle, m.level = nil, nil, 0
	}
	m.txMu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return txErr
	}
	m.closed = true

	var err error
	if m.master != nil {
		err = m.master.close()
	}
	if m.replica != nil && m.replica != m.master {
		if rerr := m.replica.close(); err == nil {
			err = rerr
		}
	}
	m.master, m.replica = nil, nil

	if txErr != nil {
		return txErr
	}
	return err
}
