// Package quarry provides a chainable SQL query builder with named bind
// parameters, nested sub-queries and a connection manager with read/write
// splitting, savepoint transactions and reconnect-on-broken-link, for MySQL,
// PostgreSQL and SQLite.
//
//	db, err := quarry.Open(quarry.Config{Type: "mysql", Hostname: "127.0.0.1",
//	    Database: "shop", Username: "app", Password: "secret"})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	var users []User
//	err = db.Table("users").Where("status", "active").Order("id", "desc").Limit(10).FindAll(ctx, &users)
package quarry

import (
	"github.com/coregx/quarry/internal/cache"
	"github.com/coregx/quarry/internal/conn"
	"github.com/coregx/quarry/internal/core"
	"github.com/coregx/quarry/internal/dialects"
	"github.com/coregx/quarry/internal/logger"
	"github.com/coregx/quarry/internal/security"
	"github.com/coregx/quarry/internal/tracer"
)

type (
	// DB creates builders for tables and runs their statements.
	DB = core.DB
	// Option is a functional option for configuring DB.
	Option = core.Option
	// Builder accumulates the options of one statement.
	Builder = core.Builder
	// Query is a compiled statement with its binds.
	Query = core.Query
	// DebugInfo describes a compiled statement.
	DebugInfo = core.DebugInfo
	// Params holds named values for raw fragments.
	Params = core.Params
	// Raw is an SQL expression inlined verbatim.
	Raw = core.Raw
	// Cond is a column/operator/value triple.
	Cond = core.Cond
	// NullStringMap is a row of nullable strings.
	NullStringMap = core.NullStringMap
	// ArgumentError reports a builder method called with invalid arguments.
	ArgumentError = core.ArgumentError
	// Plan is the execution plan returned by Builder.Explain.
	Plan = core.Plan

	// Config describes one database connection.
	Config = conn.Config
	// Stats is a snapshot of statement counters.
	Stats = conn.Stats
	// StatementError carries the failing SQL.
	StatementError = conn.StatementError
	// ConfigError reports an invalid connection setting.
	ConfigError = conn.ConfigError

	// Dialect renders dialect-specific SQL.
	Dialect = dialects.Dialect
	// Logger receives statement, connection and transaction logs.
	Logger = logger.Logger
	// Store is the result cache consulted by Builder.Cache.
	Store = cache.Store
)

var (
	Open          = core.Open
	NewBuilder    = core.NewBuilder
	WithLogger    = core.WithLogger
	WithSanitizer = core.WithSanitizer
	WithTracer    = core.WithTracer
	WithOpener    = core.WithOpener
	WithStore     = core.WithStore
	WithValidator = core.WithValidator

	GetDialect     = dialects.GetDialect
	NewMemoryStore = cache.NewMemoryStore
	NewValidator   = security.NewValidator
	NewSanitizer   = logger.NewSanitizer
	NewSlogAdapter = logger.NewSlogAdapter
	NewZapAdapter  = logger.NewZapAdapter
	NewOtelTracer  = tracer.NewOtelTracer
)

var (
	ErrNoRows             = core.ErrNoRows
	ErrMissingWhere       = core.ErrMissingWhere
	ErrMalformedCondition = core.ErrMalformedCondition
	ErrJoinAlias          = core.ErrJoinAlias
	ErrNoTable            = core.ErrNoTable
	ErrNoData             = core.ErrNoData
	ErrUnsupported        = core.ErrUnsupported
	ErrInvalidArgument    = core.ErrInvalidArgument
	ErrNoDB               = core.ErrNoDB

	ErrNoTransaction    = conn.ErrNoTransaction
	ErrUnknownDriver    = conn.ErrUnknownDriver
	ErrConfig           = conn.ErrConfig
	ErrClosed           = conn.ErrClosed
	ErrBrokenConnection = conn.ErrBrokenConnection
)

// DefaultBatchSize is the InsertAll batch size used when none is given.
const DefaultBatchSize = core.DefaultBatchSize
