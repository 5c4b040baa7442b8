package quarry

import (
	"context"

	"go.uber.org/fx"

	"github.com/coregx/quarry/internal/config"
	"github.com/coregx/quarry/internal/security"
	"github.com/coregx/quarry/internal/tracer"
)

// Module is an fx module that provides *DB built from an injected Config
// and closes it when the application stops.
//
//	app := fx.New(
//	    quarry.Module,
//	    fx.Provide(func() quarry.Config { return loadConfig() }),
//	    fx.Invoke(func(db *quarry.DB) { ... }),
//	)
var Module = fx.Module("quarry",
	fx.Provide(NewWithDI),
	fx.Invoke(RegisterLifecycle),
)

// ConfigModule provides the default Config from ./quarry.yaml, ./.env and
// QUARRY_ environment variables. Combine it with Module.
var ConfigModule = fx.Module("quarry-config",
	fx.Provide(LoadDefaultConfig),
)

// Params groups the dependencies of NewWithDI. Only Config is required.
type Params struct {
	fx.In

	Config    Config
	Logger    Logger              `optional:"true"`
	Store     Store               `optional:"true"`
	Tracer    tracer.Tracer       `optional:"true"`
	Validator *security.Validator `optional:"true"`
}

// NewWithDI opens a DB from injected dependencies.
func NewWithDI(p Params) (*DB, error) {
	var opts []Option
	if p.Logger != nil {
		opts = append(opts, WithLogger(p.Logger))
	}
	if p.Store != nil {
		opts = append(opts, WithStore(p.Store))
	}
	if p.Tracer != nil {
		opts = append(opts, WithTracer(p.Tracer))
	}
	if p.Validator != nil {
		opts = append(opts, WithValidator(p.Validator))
	}
	return Open(p.Config, opts...)
}

// RegisterLifecycle pings the master on start and closes the DB on stop.
func RegisterLifecycle(lc fx.Lifecycle, db *DB) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return db.Ping(ctx)
		},
		OnStop: func(context.Context) error {
			return db.Close()
		},
	})
}

// LoadDefaultConfig reads the default connection (database.default).
func LoadDefaultConfig() (Config, error) {
	p, err := config.LoadDefault()
	if err != nil {
		return Config{}, err
	}
	return p.Connection("")
}
