package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, LockBackendMemory, cfg.Ledger.LockBackend)
	assert.Equal(t, 2*time.Second, cfg.Ledger.LockWait)
	assert.Equal(t, []string{"informal", "binding", "straw-poll"}, cfg.Ledger.EnabledPollKinds)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
app:
  port: "9090"
database:
  driver: sqlite
  path: /tmp/ledger.db
ledger:
  lockWait: 500ms
  enabledPollKinds: [binding]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "/tmp/ledger.db", cfg.Database.DSN())
	assert.Equal(t, 500*time.Millisecond, cfg.Ledger.LockWait)
	assert.Equal(t, []string{"binding"}, cfg.Ledger.EnabledPollKinds)
	// untouched sections keep their defaults
	assert.Equal(t, "hoa-ledger", cfg.Auth.Issuer)
}

func TestLoadEnvironmentOverridesYAML(t *testing.T) {
	path := writeConfigFile(t, `
app:
  port: "9090"
ledger:
  lockBackend: memory
`)
	t.Setenv("APP_PORT", "7070")
	t.Setenv("LOCK_BACKEND", "redis")
	t.Setenv("LOCK_TTL", "30s")
	t.Setenv("ENABLED_POLL_KINDS", "informal,straw-poll")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.App.Port)
	assert.Equal(t, LockBackendRedis, cfg.Ledger.LockBackend)
	assert.Equal(t, 30*time.Second, cfg.Ledger.LockTTL)
	assert.Equal(t, []string{"informal", "straw-poll"}, cfg.Ledger.EnabledPollKinds)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"driver", map[string]string{"DB_DRIVER": "mysql"}},
		{"lock backend", map[string]string{"LOCK_BACKEND": "etcd"}},
		{"lock wait", map[string]string{"LOCK_WAIT": "0s"}},
		{"ttl below wait", map[string]string{"LOCK_BACKEND": "redis", "LOCK_TTL": "1s", "LOCK_WAIT": "2s"}},
		{"empty secret", map[string]string{"JWT_SECRET": " "}},
		{"unknown poll kind", map[string]string{"ENABLED_POLL_KINDS": "binding,referendum"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	cfg := Default()
	assert.Equal(t,
		"host=localhost user=postgres password=postgres dbname=hoa_ledger port=5432 sslmode=disable TimeZone=UTC",
		cfg.Database.DSN())
}

func TestLoadUnknownPollKindNamesIt(t *testing.T) {
	t.Setenv("ENABLED_POLL_KINDS", "informal,Binding")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown poll kind "Binding"`)
}
