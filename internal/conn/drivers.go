package conn

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq" // registers "postgres"
	_ "modernc.org/sqlite" // registers "sqlite"
)

func init() {
	RegisterDriver(Driver{
		Type:      "mysql",
		SQLDriver: "mysql",
		Dialect:   "mysql",
		DSN:       mysqlDSN,
		Validate:  requireServer,
	})
	for _, typ := range []string{"postgres", "pgsql"} {
		RegisterDriver(Driver{
			Type:      typ,
			SQLDriver: "postgres",
			Dialect:   "postgres",
			DSN:       postgresDSN,
			Validate:  requireServer,
		})
	}
	RegisterDriver(Driver{
		Type:      "sqlite",
		SQLDriver: "sqlite",
		Dialect:   "sqlite",
		DSN:       sqliteDSN,
		Validate:  requireFile,
	})
}

func mysqlDSN(cfg *Config, host Host) (string, error) {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Timeout = cfg.Timeout
	mc.ReadTimeout = cfg.ReadTimeout
	mc.WriteTimeout = cfg.WriteTimeout

	if cfg.Socket != "" {
		mc.Net = "unix"
		mc.Addr = cfg.Socket
	} else {
		mc.Net = "tcp"
		if host.Port == "" {
			host.Port = "3306"
		}
		mc.Addr = host.Addr()
	}

	charset := cfg.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	mc.Params = map[string]string{"charset": charset}
	for k, v := range cfg.Params {
		mc.Params[k] = v
	}
	return mc.FormatDSN(), nil
}

// postgresDSN builds a lib/pq key/value connection string.
func postgresDSN(cfg *Config, host Host) (string, error) {
	params := map[string]string{
		"dbname":  cfg.Database,
		"user":    cfg.Username,
		"sslmode": "disable",
	}
	if cfg.Password != "" {
		params["password"] = cfg.Password
	}
	if cfg.Socket != "" {
		params["host"] = cfg.Socket
	} else {
		params["host"] = host.Name
		if host.Port != "" {
			params["port"] = host.Port
		}
	}
	if cfg.Charset != "" {
		params["client_encoding"] = cfg.Charset
	}
	if cfg.Timeout > 0 {
		params["connect_timeout"] = strconv.Itoa(int(cfg.Timeout.Seconds()))
	}
	for k, v := range cfg.Params {
		params[k] = v
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + pgQuote(params[k])
	}
	return strings.Join(parts, " "), nil
}

func pgQuote(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	return "'" + strings.ReplaceAll(v, `'`, `\'`) + "'"
}

func sqliteDSN(cfg *Config, _ Host) (string, error) {
	if len(cfg.Params) == 0 {
		return cfg.Database, nil
	}
	if strings.Contains(cfg.Database, "?") {
		return "", fmt.Errorf("%w: sqlite database %q already carries parameters", ErrConfig, cfg.Database)
	}

	q := url.Values{}
	for k, v := range cfg.Params {
		q.Set(k, v)
	}
	return cfg.Database + "?" + q.Encode(), nil
}
