package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.InDelta(t, 8, cfg.Project.HoursPerDay, 1e-9)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "data/finance.db", cfg.Database.Path)
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, `
server:
  addr: ":9000"
database:
  path: /tmp/finance.db
log:
  level: debug
  format: json
project:
  currency: EUR
  hours_per_day: 7.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "/tmp/finance.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "EUR", cfg.Project.Currency)
	assert.InDelta(t, 7.5, cfg.Project.HoursPerDay, 1e-9)
	assert.Equal(t, 3, cfg.Log.MaxBackups, "unset keys keep their defaults")

	t.Setenv("FINANCE_SERVER_ADDR", ":9100")
	t.Setenv("FINANCE_PROJECT_HOURS_PER_DAY", "6")
	t.Setenv("FINANCE_LOG_MAX_SIZE_MB", "50")

	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.InDelta(t, 6, cfg.Project.HoursPerDay, 1e-9)
	assert.Equal(t, 50, cfg.Log.MaxSizeMB)
	assert.Equal(t, "EUR", cfg.Project.Currency)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("FINANCE_DATABASE_PATH=/srv/finance.db\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("FINANCE_DATABASE_PATH") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/srv/finance.db", cfg.Database.Path)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	chdir(t, t.TempDir())

	tests := []struct {
		name    string
		content string
	}{
		{"log level", "log:\n  level: loud\n"},
		{"log format", "log:\n  format: xml\n"},
		{"hours per day", "project:\n  hours_per_day: 25\n"},
		{"currency", "project:\n  currency: EURO\n"},
		{"empty addr", "server:\n  addr: \"\"\n"},
		{"malformed yaml", "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "server.addr", envKey("FINANCE_SERVER_ADDR"))
	assert.Equal(t, "project.hours_per_day", envKey("FINANCE_PROJECT_HOURS_PER_DAY"))
	assert.Equal(t, "debug", envKey("FINANCE_DEBUG"))
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("FINANCE_CONFIG", "")
	assert.Equal(t, "config.yaml", DefaultPath())

	t.Setenv("FINANCE_CONFIG", "/etc/finance.yaml")
	assert.Equal(t, "/etc/finance.yaml", DefaultPath())
}
