// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/artpar/schemagate/domain/flags"
)

// Config is the root configuration structure.
type Config struct {
	Catalog   CatalogConfig   `yaml:"catalog"`
	Schema    SchemaConfig    `yaml:"schema"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Snapshots SnapshotsConfig `yaml:"snapshots"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	OpenAPI   OpenAPIConfig   `yaml:"openapi"`
}

// CatalogConfig locates the type catalog.
type CatalogConfig struct {
	Dir string `yaml:"dir"` // Directory of catalog YAML files
}

// SchemaConfig holds the derivation policy flags.
type SchemaConfig struct {
	ForceJSONMapSchema        bool  `yaml:"force_json_map_schema"`
	IgnoreUnsupportedKeyTypes bool  `yaml:"ignore_unsupported_key_types"`
	SupportArrayValues        bool  `yaml:"support_array_values"`
	UseDeclaredEnumNaming     *bool `yaml:"use_declared_enum_naming"` // default: true
}

// Flags converts the section into derivation flags.
func (s SchemaConfig) Flags() flags.Flags {
	f := flags.Defaults()
	f.ForceJSONMapSchema = s.ForceJSONMapSchema
	f.IgnoreUnsupportedKeyTypes = s.IgnoreUnsupportedKeyTypes
	f.SupportArrayValues = s.SupportArrayValues
	if s.UseDeclaredEnumNaming != nil {
		f.UseDeclaredEnumNaming = *s.UseDeclaredEnumNaming
	}
	return f
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// DatabaseConfig configures the database.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "memory"
	DSN    string `yaml:"dsn"`
}

// SnapshotsConfig configures document history.
type SnapshotsConfig struct {
	Enabled bool     `yaml:"enabled"`
	Formats []string `yaml:"formats"` // Formats recorded on generate (default: all)
}

// AuthConfig configures bearer tokens for write endpoints.
type AuthConfig struct {
	Secret   string        `yaml:"secret"`    // HMAC signing secret (empty: random per process)
	TokenTTL time.Duration `yaml:"token_ttl"` // Lifetime of minted tokens (default: 24h)
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// OpenAPIConfig configures OpenAPI/Swagger documentation.
type OpenAPIConfig struct {
	Enabled bool `yaml:"enabled"` // Enable Swagger UI
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return Parse(data)
}

// Parse reads configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	cfg := Config{
		Metrics: MetricsConfig{Enabled: true},
		OpenAPI: OpenAPIConfig{Enabled: true},
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return finish(&cfg)
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	SCHEMAGATE_CATALOG_DIR          - Catalog directory (default: apis)
//	SCHEMAGATE_SERVER_HOST          - Server host (default: 0.0.0.0)
//	SCHEMAGATE_SERVER_PORT          - Server port (default: 8080)
//	SCHEMAGATE_DATABASE_DRIVER      - sqlite or memory (default: sqlite)
//	SCHEMAGATE_DATABASE_DSN         - Database path (default: schemagate.db)
//	SCHEMAGATE_SNAPSHOTS_ENABLED    - Record rendered documents (default: false)
//	SCHEMAGATE_AUTH_SECRET          - JWT signing secret for POST /snapshots
//	SCHEMAGATE_AUTH_TOKEN_TTL       - Lifetime of minted tokens (default: 24h)
//	SCHEMAGATE_LOG_LEVEL            - Log level: debug, info, warn, error (default: info)
//	SCHEMAGATE_LOG_FORMAT           - Log format: json or console (default: json)
//	SCHEMAGATE_METRICS_ENABLED      - Enable /metrics endpoint (default: true)
//	SCHEMAGATE_OPENAPI_ENABLED      - Enable Swagger UI (default: true)
//
// The derivation flags use the variables listed in package flags.
func LoadFromEnv() (*Config, error) {
	cfg := Config{
		Metrics: MetricsConfig{Enabled: true},
		OpenAPI: OpenAPIConfig{Enabled: true},
	}
	return finish(&cfg)
}

// LoadWithFallback loads from file when it exists and from the environment
// otherwise.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

func finish(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies SCHEMAGATE_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SCHEMAGATE_CATALOG_DIR"); v != "" {
		cfg.Catalog.Dir = v
	}

	// Schema flags
	f := flags.FromEnv(cfg.Schema.Flags())
	cfg.Schema.ForceJSONMapSchema = f.ForceJSONMapSchema
	cfg.Schema.IgnoreUnsupportedKeyTypes = f.IgnoreUnsupportedKeyTypes
	cfg.Schema.SupportArrayValues = f.SupportArrayValues
	cfg.Schema.UseDeclaredEnumNaming = &f.UseDeclaredEnumNaming

	// Server configuration
	if v := os.Getenv("SCHEMAGATE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SCHEMAGATE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SCHEMAGATE_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("SCHEMAGATE_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Database configuration
	if v := os.Getenv("SCHEMAGATE_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("SCHEMAGATE_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	if v := os.Getenv("SCHEMAGATE_SNAPSHOTS_ENABLED"); v != "" {
		cfg.Snapshots.Enabled = parseBool(v)
	}

	// Auth configuration
	if v := os.Getenv("SCHEMAGATE_AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("SCHEMAGATE_AUTH_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Auth.TokenTTL = d
		}
	}

	// Logging configuration
	if v := os.Getenv("SCHEMAGATE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SCHEMAGATE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("SCHEMAGATE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("SCHEMAGATE_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}

	// OpenAPI configuration
	if v := os.Getenv("SCHEMAGATE_OPENAPI_ENABLED"); v != "" {
		cfg.OpenAPI.Enabled = parseBool(v)
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Catalog.Dir == "" {
		cfg.Catalog.Dir = "apis"
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "schemagate.db"
	}

	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	validDrivers := map[string]bool{"sqlite": true, "memory": true}
	if !validDrivers[cfg.Database.Driver] {
		return fmt.Errorf("database.driver must be 'sqlite' or 'memory', got %q", cfg.Database.Driver)
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got %d", cfg.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", cfg.Metrics.Path)
	}

	if cfg.Auth.TokenTTL < 0 {
		return fmt.Errorf("auth.token_ttl must be positive, got %s", cfg.Auth.TokenTTL)
	}

	for i, format := range cfg.Snapshots.Formats {
		if format == "" {
			return fmt.Errorf("snapshots.formats[%d] is empty", i)
		}
	}

	return nil
}
