package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lakeward/airlocal/internal/core/stack"
	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Project    string         `mapstructure:"project"`
	ProjectDir string         `mapstructure:"project_dir"`
	Server     ServerConfig   `mapstructure:"server"`
	Database   DatabaseConfig `mapstructure:"database"`
	Docker     DockerConfig   `mapstructure:"docker"`
	Log        LogConfig      `mapstructure:"log"`
	Stack      StackConfig    `mapstructure:"stack"`
	Monitor    MonitorConfig  `mapstructure:"monitor"`
}

// ServerConfig holds the status API server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds run ledger configuration.
type DatabaseConfig struct {
	// DSN is the SQLite path. Empty means <project_dir>/.airlocal/runs.db.
	DSN string `mapstructure:"dsn"`
}

// DockerConfig holds Docker client configuration.
type DockerConfig struct {
	Host string `mapstructure:"host"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StackConfig holds the Airflow stack configuration.
type StackConfig struct {
	PostgresImage string        `mapstructure:"postgres_image"`
	RunnerImage   string        `mapstructure:"runner_image"`
	DBUser        string        `mapstructure:"db_user"`
	DBPassword    string        `mapstructure:"db_password"`
	DBName        string        `mapstructure:"db_name"`
	WebserverPort int           `mapstructure:"webserver_port"`
	LoadExamples  bool          `mapstructure:"load_examples"`
	Executor      string        `mapstructure:"executor"`
	ReadyTimeout  time.Duration `mapstructure:"ready_timeout"`
}

// MonitorConfig holds stack monitor configuration.
type MonitorConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("project", "airflow")
	v.SetDefault("project_dir", ".")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8081)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("database.dsn", "")
	v.SetDefault("docker.host", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("stack.postgres_image", stack.DefaultPostgresImage)
	v.SetDefault("stack.runner_image", stack.DefaultRunnerImage)
	v.SetDefault("stack.db_user", stack.DefaultDBUser)
	v.SetDefault("stack.db_password", stack.DefaultDBPassword)
	v.SetDefault("stack.db_name", stack.DefaultDBName)
	v.SetDefault("stack.webserver_port", stack.DefaultWebserverPort)
	v.SetDefault("stack.load_examples", false)
	v.SetDefault("stack.executor", stack.DefaultExecutor)
	v.SetDefault("stack.ready_timeout", "60s")
	v.SetDefault("monitor.interval", "15s")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if file was explicitly specified and is invalid
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("AIRLOCAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Resolve the project directory so bind mounts are absolute
	abs, err := filepath.Abs(cfg.ProjectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project directory: %w", err)
	}
	cfg.ProjectDir = abs

	return &cfg, nil
}

// LedgerDSN returns the configured run ledger path, defaulting to a dotdir
// inside the project.
func (c *Config) LedgerDSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	return filepath.Join(c.ProjectDir, ".airlocal", "runs.db")
}

// StackOptions converts the config into stack build options.
func (c *Config) StackOptions() stack.Options {
	return stack.Options{
		ProjectDir:    c.ProjectDir,
		PostgresImage: c.Stack.PostgresImage,
		RunnerImage:   c.Stack.RunnerImage,
		DBUser:        c.Stack.DBUser,
		DBPassword:    c.Stack.DBPassword,
		DBName:        c.Stack.DBName,
		WebserverPort: c.Stack.WebserverPort,
		LoadExamples:  c.Stack.LoadExamples,
		Executor:      c.Stack.Executor,
	}
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
