// Package config loads drumbeat server configuration.
//
// Values are layered: Default(), then an optional JSON, YAML or TOML file,
// then .env files, then DRUMBEAT_* environment variables. Resolve applies
// all layers and validates the result.
//
//	cfg, err := config.Resolve("/etc/drumbeat.yaml")
//	if err != nil {
//	    return err
//	}
//	rt, err := runtime.Open(runtime.Options{Config: cfg, Logger: logger})
package config
