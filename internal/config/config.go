// Package config loads connection settings for quarry from files, .env files
// and QUARRY_ environment variables.
//
// Connections live under database.<name>; database.default names the
// connection used when none is requested:
//
//	database:
//	  default: main
//	  main:
//	    type: mysql
//	    hostname: 10.0.0.1,10.0.0.2
//	    database: shop
//	    username: app
//	    deploy: true
//	    rw_separate: true
//
// Every key can be overridden from the environment, e.g.
// QUARRY_DATABASE_MAIN_PASSWORD.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/coregx/quarry/internal/conn"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "QUARRY"

// Provider answers typed configuration lookups.
type Provider struct {
	v *viper.Viper
}

type options struct {
	file     string
	envFiles []string
	values   map[string]any
}

// Option configures Load.
type Option func(*options)

// WithFile reads a yaml, json or toml file; the format follows the extension.
func WithFile(path string) Option {
	return func(o *options) { o.file = path }
}

// WithEnvFiles loads dotenv files before reading the environment. Missing
// files are skipped; variables already set are kept.
func WithEnvFiles(paths ...string) Option {
	return func(o *options) { o.envFiles = append(o.envFiles, paths...) }
}

// WithValues seeds configuration values, overridden by file and environment.
func WithValues(values map[string]any) Option {
	return func(o *options) { o.values = values }
}

// Load builds a Provider.
func Load(opts ...Option) (*Provider, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	for _, path := range o.envFiles {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("database.default", "default")

	for key, value := range o.values {
		v.SetDefault(key, value)
	}

	if o.file != "" {
		v.SetConfigFile(o.file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", o.file, err)
		}
	}
	return &Provider{v: v}, nil
}

// Get returns the raw value stored under a dotted key.
func (p *Provider) Get(key string) (any, bool) {
	if !p.v.IsSet(key) {
		return nil, false
	}
	return p.v.Get(key), true
}

// String returns the value under key as a string, "" when unset.
func (p *Provider) String(key string) string {
	return p.v.GetString(key)
}

// Connection reads database.<name>. An empty name selects database.default.
func (p *Provider) Connection(name string) (conn.Config, error) {
	if name == "" {
		name = p.v.GetString("database.default")
	}
	prefix := "database." + name + "."
	if !p.v.IsSet(prefix + "type") {
		return conn.Config{}, &conn.ConfigError{Type: name, Field: "type", Reason: "is not configured"}
	}

	key := func(k string) string { return prefix + k }

	cfg := conn.Config{
		Type:     p.v.GetString(key("type")),
		Hostname: p.list(key("hostname")),
		Hostport: p.list(key("hostport")),
		Socket:   p.v.GetString(key("socket")),
		Database: p.v.GetString(key("database")),
		Username: p.v.GetString(key("username")),
		Password: p.v.GetString(key("password")),
		Charset:  p.v.GetString(key("charset")),
		Prefix:   p.v.GetString(key("prefix")),

		Deploy:         cast.ToBool(p.v.Get(key("deploy"))),
		RWSeparate:     cast.ToBool(p.v.Get(key("rw_separate"))),
		MasterNum:      cast.ToInt(p.v.Get(key("master_num"))),
		SlaveNo:        cast.ToInt(p.v.Get(key("slave_no"))),
		ReadMaster:     cast.ToBool(p.v.Get(key("read_master"))),
		BreakReconnect: cast.ToBool(p.v.Get(key("break_reconnect"))),
		Debug:          cast.ToBool(p.v.Get(key("debug"))),
		Explain:        cast.ToBool(p.v.Get(key("sql_explain"))),

		MaxOpenConns: cast.ToInt(p.v.Get(key("max_open_conns"))),
		MaxIdleConns: cast.ToInt(p.v.Get(key("max_idle_conns"))),
		StmtCache:    cast.ToInt(p.v.Get(key("stmt_cache"))),
	}

	if raw := p.v.Get(key("params")); raw != nil {
		params, err := cast.ToStringMapStringE(raw)
		if err != nil {
			return conn.Config{}, &conn.ConfigError{Type: cfg.Type, Field: "params", Reason: err.Error()}
		}
		cfg.Params = params
	}
	if raw := p.list(key("break_match_str")); raw != "" {
		cfg.BreakMatchStr = strings.Split(raw, ",")
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"timeout", &cfg.Timeout},
		{"read_timeout", &cfg.ReadTimeout},
		{"write_timeout", &cfg.WriteTimeout},
		{"conn_max_lifetime", &cfg.ConnMaxLifetime},
	}
	for _, d := range durations {
		val, err := p.duration(key(d.name))
		if err != nil {
			return conn.Config{}, &conn.ConfigError{Type: cfg.Type, Field: d.name, Reason: err.Error()}
		}
		*d.dst = val
	}

	return cfg, nil
}

// list reads a string or a sequence and joins it with commas.
func (p *Provider) list(key string) string {
	raw := p.v.Get(key)
	switch val := raw.(type) {
	case nil:
		return ""
	case []any, []string:
		return strings.Join(cast.ToStringSlice(val), ",")
	default:
		return cast.ToString(val)
	}
}

// duration accepts Go duration strings or a bare number of seconds.
func (p *Provider) duration(key string) (time.Duration, error) {
	raw := p.v.Get(key)
	if raw == nil {
		return 0, nil
	}
	if s, ok := raw.(string); ok {
		if s == "" {
			return 0, nil
		}
		if d, err := time.ParseDuration(s); err == nil {
			return d, nil
		}
	}
	secs, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %v", raw)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// LoadDefault loads ./quarry.yaml when present plus ./.env.
func LoadDefault() (*Provider, error) {
	opts := []Option{WithEnvFiles(".env")}
	if _, err := os.Stat("quarry.yaml"); err == nil {
		opts = append(opts, WithFile("quarry.yaml"))
	}
	return Load(opts...)
}
