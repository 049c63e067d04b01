package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/brugmanjoost/drumbeat/internal/access"
	logpkg "github.com/brugmanjoost/drumbeat/pkg/log"
)

// Storage backends.
const (
	BackendPebble   = "pebble"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	HTTPAddr string `json:"httpAddr" yaml:"httpAddr" toml:"httpAddr" env:"HTTP_ADDR"`
	// GRPCAddr serves the gRPC health service; empty disables it.
	GRPCAddr string        `json:"grpcAddr" yaml:"grpcAddr" toml:"grpcAddr" env:"GRPC_ADDR"`
	Storage  StorageConfig `json:"storage" yaml:"storage" toml:"storage" envPrefix:"STORAGE_"`
	// Dedup is "best-effort" or "strict".
	Dedup               string `json:"dedup" yaml:"dedup" toml:"dedup" env:"DEDUP" validate:"omitempty,oneof=best-effort strict"`
	QueueNameRegex      string `json:"queueNameRegex" yaml:"queueNameRegex" toml:"queueNameRegex" env:"QUEUE_NAME_REGEX"`
	RequestBodyMaxBytes int64  `json:"requestBodyMaxBytes" yaml:"requestBodyMaxBytes" toml:"requestBodyMaxBytes" env:"REQUEST_BODY_MAX_BYTES" validate:"gte=0"`
	// Credentials come from the file or DRUMBEAT_CREDENTIALS (a JSON array).
	Credentials []access.Credential `json:"credentials" yaml:"credentials" toml:"credentials" validate:"dive"`
	Events      EventsConfig        `json:"events" yaml:"events" toml:"events" envPrefix:"EVENTS_"`
	CORS        CORSConfig          `json:"cors" yaml:"cors" toml:"cors" envPrefix:"CORS_"`
	Log         logpkg.Config       `json:"log" yaml:"log" toml:"log" envPrefix:"LOG_"`
}

// StorageConfig selects and tunes the message store.
type StorageConfig struct {
	Backend            string `json:"backend" yaml:"backend" toml:"backend" env:"BACKEND" validate:"oneof=pebble memory postgres mysql"`
	DataDir            string `json:"dataDir" yaml:"dataDir" toml:"dataDir" env:"DATA_DIR"`
	Fsync              string `json:"fsync" yaml:"fsync" toml:"fsync" env:"FSYNC" validate:"omitempty,oneof=always interval never"`
	FsyncIntervalMs    int    `json:"fsyncIntervalMs" yaml:"fsyncIntervalMs" toml:"fsyncIntervalMs" env:"FSYNC_INTERVAL_MS" validate:"gte=0"`
	DSN                string `json:"dsn" yaml:"dsn" toml:"dsn" env:"DSN"`
	MaxOpenConns       int    `json:"maxOpenConns" yaml:"maxOpenConns" toml:"maxOpenConns" env:"MAX_OPEN_CONNS" validate:"gte=0"`
	MaxIdleConns       int    `json:"maxIdleConns" yaml:"maxIdleConns" toml:"maxIdleConns" env:"MAX_IDLE_CONNS" validate:"gte=0"`
	ConnMaxLifetimeSec int    `json:"connMaxLifetimeSec" yaml:"connMaxLifetimeSec" toml:"connMaxLifetimeSec" env:"CONN_MAX_LIFETIME_SEC" validate:"gte=0"`
	AutoMigrate        bool   `json:"autoMigrate" yaml:"autoMigrate" toml:"autoMigrate" env:"AUTO_MIGRATE"`
}

// EventsConfig enables the Kafka event notifier when Brokers is non-empty.
type EventsConfig struct {
	Brokers []string `json:"brokers" yaml:"brokers" toml:"brokers" env:"BROKERS" envSeparator:","`
	Topic   string   `json:"topic" yaml:"topic" toml:"topic" env:"TOPIC"`
}

// Enabled reports whether events should be published.
func (e EventsConfig) Enabled() bool { return len(e.Brokers) > 0 }

// CORSConfig lists the origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `json:"allowedOrigins" yaml:"allowedOrigins" toml:"allowedOrigins" env:"ALLOWED_ORIGINS" envSeparator:","`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		HTTPAddr: ":3000",
		Storage: StorageConfig{
			Backend:      BackendPebble,
			Fsync:        "interval",
			MaxOpenConns: 10,
			MaxIdleConns: 10,
			AutoMigrate:  true,
		},
		Dedup:               "best-effort",
		QueueNameRegex:      `^[A-Za-z0-9._-]{1,128}$`,
		RequestBodyMaxBytes: 1 << 20,
		Events:              EventsConfig{Topic: "drumbeat.events"},
		CORS:                CORSConfig{AllowedOrigins: []string{"*"}},
		Log:                 logpkg.Config{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a JSON, YAML or TOML file (by extension) on
// top of Default(). If path is empty, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse yaml: %w", err)
		}
	case ".toml":
		if _, err := toml.NewDecoder(bytes.NewReader(b)).Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse toml: %w", err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse json: %w", err)
		}
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and cross-field rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Storage.Backend {
	case BackendPostgres, BackendMySQL:
		if c.Storage.DSN == "" {
			return fmt.Errorf("config: storage.dsn is required for backend %q", c.Storage.Backend)
		}
	}
	if c.QueueNameRegex != "" {
		if _, err := regexp.Compile(c.QueueNameRegex); err != nil {
			return fmt.Errorf("config: queueNameRegex: %w", err)
		}
	}
	if c.Events.Enabled() && c.Events.Topic == "" {
		return fmt.Errorf("config: events.topic is required when brokers are set")
	}
	return nil
}

// Resolve builds the effective configuration: defaults, then the optional
// file, then .env files, then DRUMBEAT_* variables. The result is validated.
func Resolve(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return Config{}, err
	}
	if _, err := LoadDotEnv(".env", ".env.local"); err != nil {
		return Config{}, err
	}
	if err := FromEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
