// Package config loads application configuration from .env files and YAML.
//
// Environment references inside the YAML are expanded before parsing:
//
//	_ = config.LoadEnv()
//	cfg, err := config.Load("config.yaml")
//	lifetime := cfg.Duration("session.lifetime", 2*time.Hour)
//
//	settings, err := cfg.Settings()
package config
