package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvPrefix+"_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	require.Error(t, err, "an explicit config path that does not exist must fail")

	t.Setenv(EnvPrefix+"_CONFIG", "")
	chdir(t, t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 48*time.Hour, cfg.Warehouse.FreshnessMaxAge)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
}

func TestLoadLayersFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "environment: staging\nhttp:\n  port: 9090\nwarehouse:\n  dsn: postgres://file\nlogging:\n  format: json\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	t.Setenv(EnvPrefix+"_CONFIG", path)
	t.Setenv(EnvPrefix+"_WAREHOUSE_DSN", "postgres://env")
	t.Setenv(EnvPrefix+"_KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "postgres://env", cfg.Warehouse.DSN)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv(EnvPrefix+"_CONFIG", "")
	chdir(t, t.TempDir())
	t.Setenv(EnvPrefix+"_HTTP_PORT", "70000")
	_, err := Load()
	require.Error(t, err)

	t.Setenv(EnvPrefix+"_HTTP_PORT", "8080")
	t.Setenv(EnvPrefix+"_LOGGING_FORMAT", "xml")
	_, err = Load()
	require.Error(t, err)
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
