package conn

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Driver binds a connection type to a database/sql driver and a dialect.
type Driver struct {
	// Type is the value of Config.Type selecting this driver.
	Type string
	// SQLDriver is the name registered with database/sql.
	SQLDriver string
	// Dialect is the internal/dialects name used to render SQL.
	Dialect string
	// DSN builds the data source name for one host.
	DSN func(cfg *Config, host Host) (string, error)
	// Validate checks required settings before any connection is made.
	Validate func(cfg *Config) error
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// RegisterDriver makes a driver available to Config.Type. It panics on an
// incomplete definition or a duplicate type.
func RegisterDriver(d Driver) {
	if d.Type == "" || d.SQLDriver == "" || d.Dialect == "" || d.DSN == nil {
		panic("quarry: RegisterDriver: incomplete driver definition")
	}

	driversMu.Lock()
	defer driversMu.Unlock()

	key := strings.ToLower(d.Type)
	if _, dup := drivers[key]; dup {
		panic("quarry: RegisterDriver called twice for " + d.Type)
	}
	drivers[key] = d
}

// LookupDriver returns the driver registered for typ.
func LookupDriver(typ string) (Driver, error) {
	driversMu.RLock()
	d, ok := drivers[strings.ToLower(typ)]
	driversMu.RUnlock()

	if !ok {
		return Driver{}, fmt.Errorf("%w: %q (registered: %s)", ErrUnknownDriver, typ, strings.Join(Drivers(), ", "))
	}
	return d, nil
}

// Drivers lists the registered connection types.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate resolves cfg.Type and runs the driver's checks.
func Validate(cfg *Config) (Driver, error) {
	d, err := LookupDriver(cfg.Type)
	if err != nil {
		return Driver{}, err
	}
	if d.Validate != nil {
		if err := d.Validate(cfg); err != nil {
			return Driver{}, err
		}
	}
	return d, nil
}

func requireServer(cfg *Config) error {
	if cfg.Database == "" {
		return &ConfigError{Type: cfg.Type, Field: "database", Reason: "is required"}
	}
	if cfg.Username == "" {
		return &ConfigError{Type: cfg.Type, Field: "username", Reason: "is required"}
	}
	if cfg.Socket == "" && strings.TrimSpace(cfg.Hostname) == "" {
		return &ConfigError{Type: cfg.Type, Field: "hostname", Reason: "is required without socket"}
	}
	return nil
}

func requireFile(cfg *Config) error {
	if cfg.Database == "" {
		return &ConfigError{Type: cfg.Type, Field: "database", Reason: "is required (file path or :memory:)"}
	}
	if cfg.Deploy {
		return &ConfigError{Type: cfg.Type, Field: "deploy", Reason: "is not supported for file databases"}
	}
	return nil
}
