package core

import (
	"context"
	"errors"
	"reflect"

	"github.com/coregx/quarry/internal/cache"
	"github.com/coregx/quarry/internal/conn"
	"github.com/coregx/quarry/internal/dialects"
	"github.com/coregx/quarry/internal/logger"
	"github.com/coregx/quarry/internal/security"
	"github.com/coregx/quarry/internal/tracer"
	"github.com/coregx/quarry/internal/util"
)

// ErrNoDB is returned by terminal methods of a builder created without a database.
var ErrNoDB = errors.New("quarry: builder has no database")

// DB is the entry point of quarry: it creates builders for tables and runs
// their statements through one connection manager.
type DB struct {
	manager   *conn.Manager
	dialect   dialects.Dialect
	prefix    string
	store     cache.Store
	validator *security.Validator
	logger    logger.Logger
}

type options struct {
	conn      []conn.Option
	store     cache.Store
	validator *security.Validator
	logger    logger.Logger
}

// Option is a functional option for configuring DB.
type Option func(*options)

// WithLogger sets the logger used for statements, connections and transactions.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		o.logger = l
		o.conn = append(o.conn, conn.WithLogger(l))
	}
}

// WithSanitizer sets the sanitizer that masks sensitive binds in logs.
func WithSanitizer(s *logger.Sanitizer) Option {
	return func(o *options) {
		o.conn = append(o.conn, conn.WithSanitizer(s))
	}
}

// WithTracer sets the tracer that records one span per statement.
func WithTracer(t tracer.Tracer) Option {
	return func(o *options) {
		o.conn = append(o.conn, conn.WithTracer(t))
	}
}

// WithOpener replaces sql.Open, e.g. to hand out mock connections.
func WithOpener(op conn.Opener) Option {
	return func(o *options) {
		o.conn = append(o.conn, conn.WithOpener(op))
	}
}

// WithStore sets the result cache used by Builder.Cache.
func WithStore(s cache.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithValidator checks WhereRaw and OrderRaw fragments before they are recorded.
func WithValidator(v *security.Validator) Option {
	return func(o *options) {
		o.validator = v
	}
}

// Open validates cfg and returns a DB. Connections are opened lazily by the
// first statement.
func Open(cfg conn.Config, opts ...Option) (*DB, error) {
	o := options{logger: &logger.NoopLogger{}}
	for _, opt := range opts {
		opt(&o)
	}

	m, err := conn.New(cfg, o.conn...)
	if err != nil {
		return nil, err
	}
	return &DB{
		manager:   m,
		dialect:   m.Dialect(),
		prefix:    cfg.Prefix,
		store:     o.store,
		validator: o.validator,
		logger:    o.logger,
	}, nil
}

// Close rolls back an open transaction and closes all connections.
func (db *DB) Close() error {
	return db.manager.Close()
}

// Table returns a builder for the full table name ("users", "users u").
func (db *DB) Table(name string) *Builder {
	b := &Builder{db: db, dialect: db.dialect}
	return b.Table(name)
}

// Name returns a builder for the table name with the configured prefix.
func (db *DB) Name(name string) *Builder {
	b := &Builder{db: db, dialect: db.dialect}
	return b.Name(name)
}

// Model returns a builder for the table of a struct model: its TableName
// method, or the snake_case plural of the struct name. The primary key is
// taken from the `pk` tag or the ID field.
func (db *DB) Model(model any) *Builder {
	b := db.Table(inferTableName(model))
	if f, _, err := util.PrimaryKeyField(reflect.ValueOf(model)); err == nil {
		b.Pk(f.Column)
	}
	return b
}

// Dialect returns the SQL dialect of the connection.
func (db *DB) Dialect() dialects.Dialect { return db.dialect }

// Manager returns the underlying connection manager.
func (db *DB) Manager() *conn.Manager { return db.manager }

// Stats returns statement counters of the connection manager.
func (db *DB) Stats() conn.Stats { return db.manager.Stats() }

// Ping checks the master connection, opening it if needed.
func (db *DB) Ping(ctx context.Context) error {
	return db.manager.Ping(ctx, true)
}

// Execute runs a raw write statement with named :placeholders and returns
// the number of affected rows.
func (db *DB) Execute(ctx context.Context, sql string, params Params) (int64, error) {
	res, err := db.manager.Execute(ctx, normalizeRaw(sql), params.entries())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Transaction runs fn inside a transaction. Nested calls use savepoints.
// fn's error (or panic) rolls the transaction back.
func (db *DB) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.manager.Transaction(ctx, fn)
}

// StartTrans begins a transaction or, when one is active, a savepoint.
func (db *DB) StartTrans(ctx context.Context) error {
	return db.manager.StartTrans(ctx)
}

// Commit commits the innermost transaction level.
func (db *DB) Commit(ctx context.Context) error {
	return db.manager.Commit(ctx)
}

// Rollback rolls back the innermost transaction level.
func (db *DB) Rollback(ctx context.Context) error {
	return db.manager.Rollback(ctx)
}
