package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lakeward/airlocal/internal/core/stack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "airflow", cfg.Project)
	assert.True(t, filepath.IsAbs(cfg.ProjectDir))
	assert.Equal(t, "127.0.0.1:8081", cfg.Server.Address())
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "postgres:10-alpine", cfg.Stack.PostgresImage)
	assert.Equal(t, "amazon/mwaa-local:2.0", cfg.Stack.RunnerImage)
	assert.Equal(t, "airflow", cfg.Stack.DBUser)
	assert.Equal(t, 8080, cfg.Stack.WebserverPort)
	assert.False(t, cfg.Stack.LoadExamples)
	assert.Equal(t, "Local", cfg.Stack.Executor)
	assert.Equal(t, 60*time.Second, cfg.Stack.ReadyTimeout)
	assert.Equal(t, 15*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
project: myproject
server:
  port: 9000
stack:
  webserver_port: 8888
  load_examples: true
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "myproject", cfg.Project)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 8888, cfg.Stack.WebserverPort)
	assert.True(t, cfg.Stack.LoadExamples)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not: valid"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "airflow", cfg.Project)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("AIRLOCAL_PROJECT", "envproject")
	t.Setenv("AIRLOCAL_LOG_LEVEL", "warn")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "envproject", cfg.Project)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLedgerDSN(t *testing.T) {
	cfg := &Config{ProjectDir: "/home/dev/airflow"}
	assert.Equal(t, filepath.Join("/home/dev/airflow", ".airlocal", "runs.db"), cfg.LedgerDSN())

	cfg.Database.DSN = "/tmp/custom.db"
	assert.Equal(t, "/tmp/custom.db", cfg.LedgerDSN())
}

func TestStackOptions(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.ProjectDir = "/home/dev/airflow"

	opts := cfg.StackOptions()
	assert.Equal(t, "/home/dev/airflow", opts.ProjectDir)
	assert.Equal(t, stack.DefaultPostgresImage, opts.PostgresImage)
	assert.Equal(t, stack.DefaultWebserverPort, opts.WebserverPort)
}

func TestSetupLogger_Levels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
		cfg := &Config{Log: LogConfig{Level: level, Format: "text"}}
		assert.NotNil(t, SetupLogger(cfg), level)
	}
}
