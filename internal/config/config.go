// Package config loads config.yaml from the config directory with viper.
// Values may be overridden by CRUDKIT_* environment variables, which are in
// turn seeded from .env files.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/crudkit/internal/paths"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// Config keys.
const (
	KeyBackend   = "backend"
	KeyDataDir   = "data_dir"
	KeyMongoURI  = "mongo_uri"
	KeyDatabase  = "database"
	KeyListen    = "listen"
	KeyJWTSecret = "jwt_secret"
	KeyLogLevel  = "log_level"
	KeyLogFormat = "log_format"
	KeyModels    = "models_file"
)

// Defaults.
const (
	DefaultBackend   = types.BackendSQLite
	DefaultListen    = ":8080"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// EnvPrefix prefixes environment overrides, e.g. CRUDKIT_JWT_SECRET.
const EnvPrefix = "CRUDKIT"

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# crudkit configuration
# Every key can be overridden by a CRUDKIT_<KEY> environment variable.

# Storage backend: sqlite, memory or mongo.
backend: sqlite

# Data directory for the sqlite backend (optional; overridable by --data-dir).
# data_dir:

# MongoDB connection for the mongo backend.
# mongo_uri: mongodb://localhost:27017
# database: crudkit

# HTTP listen address for crudkit serve.
listen: ":8080"

# HMAC secret for bearer tokens. Prefer CRUDKIT_JWT_SECRET in .env.
# jwt_secret:

# Logging: debug, info, warn, error; text or json.
log_level: info
log_format: text

# Models file (default: models.yaml next to this file).
# models_file:
`

// Config is the resolved crudkit configuration.
type Config struct {
	Backend    string
	DataDir    string
	MongoURI   string
	Database   string
	Listen     string
	JWTSecret  string
	LogLevel   string
	LogFormat  string
	ModelsFile string
}

// Store returns the store configuration without models.
func (c *Config) Store() types.Config {
	return types.Config{
		Backend:  c.Backend,
		DataDir:  c.DataDir,
		MongoURI: c.MongoURI,
		Database: c.Database,
	}
}

// Load reads config.yaml from configDir using viper. It creates the config
// directory and a default config.yaml on first run. .env files in the
// working directory and configDir are loaded into the environment first;
// variables already set win.
func Load(configDir string) (*Config, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}
	if err := loadDotEnv(paths.EnvFileName, filepath.Join(configDir, paths.EnvFileName)); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetDefault(KeyBackend, DefaultBackend)
	v.SetDefault(KeyListen, DefaultListen)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)
	v.SetConfigName(strings.TrimSuffix(paths.ConfigFileName, filepath.Ext(paths.ConfigFileName)))
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for _, key := range []string{KeyBackend, KeyDataDir, KeyMongoURI, KeyDatabase, KeyListen, KeyJWTSecret, KeyLogLevel, KeyLogFormat, KeyModels} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return &Config{
		Backend:    v.GetString(KeyBackend),
		DataDir:    v.GetString(KeyDataDir),
		MongoURI:   v.GetString(KeyMongoURI),
		Database:   v.GetString(KeyDatabase),
		Listen:     v.GetString(KeyListen),
		JWTSecret:  v.GetString(KeyJWTSecret),
		LogLevel:   v.GetString(KeyLogLevel),
		LogFormat:  v.GetString(KeyLogFormat),
		ModelsFile: v.GetString(KeyModels),
	}, nil
}

// ensureDefaultConfigFile creates a default config.yaml if the file does not
// exist in the config directory.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, paths.ConfigFileName)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// loadDotEnv loads the files that exist; missing files are skipped.
func loadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Logger builds the slog logger described by level and format, writing to w.
func Logger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
