package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coregx/quarry/internal/conn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
database:
  default: main
  main:
    type: mysql
    hostname: [10.0.0.1, 10.0.0.2, 10.0.0.3]
    hostport: 3306
    database: shop
    username: app
    password: from-file
    prefix: shop_
    deploy: 1
    rw_separate: true
    slave_no: 2
    read_master: true
    break_reconnect: true
    break_match_str: ["proxy timeout", "link dropped"]
    timeout: 5s
    read_timeout: 30
    params:
      collation: utf8mb4_general_ci
  report:
    type: sqlite
    database: /tmp/report.db
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConnection_FromFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "quarry.yaml", sampleYAML)

	p, err := Load(WithFile(path))
	require.NoError(t, err)

	cfg, err := p.Connection("")
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Type)
	assert.Equal(t, "10.0.0.1,10.0.0.2,10.0.0.3", cfg.Hostname)
	assert.Equal(t, "3306", cfg.Hostport)
	assert.Equal(t, "shop", cfg.Database)
	assert.Equal(t, "shop_", cfg.Prefix)
	assert.True(t, cfg.Deploy)
	assert.True(t, cfg.RWSeparate)
	assert.Equal(t, 2, cfg.SlaveNo)
	assert.True(t, cfg.ReadMaster)
	assert.True(t, cfg.BreakReconnect)
	assert.Equal(t, []string{"proxy timeout", "link dropped"}, cfg.BreakMatchStr)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, map[string]string{"collation": "utf8mb4_general_ci"}, cfg.Params)

	report, err := p.Connection("report")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", report.Type)
	assert.Equal(t, "/tmp/report.db", report.Database)
}

func TestConnection_EnvOverrides(t *testing.T) {
	path := writeFile(t, t.TempDir(), "quarry.yaml", sampleYAML)
	t.Setenv("QUARRY_DATABASE_MAIN_PASSWORD", "from-env")
	t.Setenv("QUARRY_DATABASE_MAIN_DEBUG", "true")
	t.Setenv("QUARRY_DATABASE_MAIN_SQL_EXPLAIN", "1")

	p, err := Load(WithFile(path))
	require.NoError(t, err)

	cfg, err := p.Connection("main")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Password)
	assert.True(t, cfg.Debug)
	assert.True(t, cfg.Explain)
}

func TestConnection_DotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "QUARRY_DATABASE_CACHE_TYPE=sqlite\nQUARRY_DATABASE_CACHE_DATABASE=:memory:\n")
	t.Cleanup(func() {
		_ = os.Unsetenv("QUARRY_DATABASE_CACHE_TYPE")
		_ = os.Unsetenv("QUARRY_DATABASE_CACHE_DATABASE")
	})

	p, err := Load(WithEnvFiles(envFile, filepath.Join(dir, "missing.env")))
	require.NoError(t, err)

	cfg, err := p.Connection("cache")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Type)
	assert.Equal(t, ":memory:", cfg.Database)
}

func TestConnection_Missing(t *testing.T) {
	p, err := Load()
	require.NoError(t, err)

	_, err = p.Connection("nope")
	assert.ErrorIs(t, err, conn.ErrConfig)

	_, err = p.Connection("")
	assert.ErrorIs(t, err, conn.ErrConfig)
}

func TestConnection_BadDuration(t *testing.T) {
	p, err := Load(WithValues(map[string]any{
		"database.main.type":    "mysql",
		"database.main.timeout": "soon",
	}))
	require.NoError(t, err)

	_, err = p.Connection("main")
	var cfgErr *conn.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "timeout", cfgErr.Field)
}

func TestGet(t *testing.T) {
	p, err := Load(WithValues(map[string]any{"database.main.prefix": "app_"}))
	require.NoError(t, err)

	v, ok := p.Get("database.main.prefix")
	assert.True(t, ok)
	assert.Equal(t, "app_", v)
	assert.Equal(t, "default", p.String("database.default"))

	_, ok = p.Get("database.main.charset")
	assert.False(t, ok)
}
