package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/brugmanjoost/drumbeat/internal/access"
)

// EnvPrefix is prepended to every variable read by FromEnv.
const EnvPrefix = "DRUMBEAT_"

// FromEnv overlays DRUMBEAT_* environment variables onto cfg. Only variables
// that are set override the current values. PORT is honoured as a fallback
// for DRUMBEAT_HTTP_ADDR.
func FromEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("config: env: %w", err)
	}
	if _, set := os.LookupEnv(EnvPrefix + "HTTP_ADDR"); !set {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		}
	}
	if raw := os.Getenv(EnvPrefix + "CREDENTIALS"); raw != "" {
		var creds []access.Credential
		if err := json.Unmarshal([]byte(raw), &creds); err != nil {
			return fmt.Errorf("config: %sCREDENTIALS: %w", EnvPrefix, err)
		}
		cfg.Credentials = creds
	}
	return nil
}

// LoadDotEnv loads the given .env files that exist, without overriding
// variables already present in the environment. It returns how many files
// were loaded.
func LoadDotEnv(files ...string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if info, err := os.Stat(f); err == nil && !info.IsDir() {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}
