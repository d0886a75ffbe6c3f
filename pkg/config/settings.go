package config

import (
	"time"

	"github.com/dmitrymomot/keel/pkg/db"
	"github.com/dmitrymomot/keel/pkg/logger"
	"github.com/dmitrymomot/keel/pkg/redis"
)

// Settings is the conventional application configuration layout.
//
//	app:
//	  name: ${APP_NAME:-keel}
//	  key: ${APP_KEY}
//	session:
//	  driver: redis
//	  lifetime: 2h
type Settings struct {
	App      App           `yaml:"app"`
	Session  Session       `yaml:"session"`
	Cache    Cache         `yaml:"cache"`
	Log      logger.Config `yaml:"log"`
	Database db.Config     `yaml:"database"`
	Redis    redis.Config  `yaml:"redis"`
}

type App struct {
	Name            string        `yaml:"name"`
	Env             string        `yaml:"env"`
	URL             string        `yaml:"url"`
	Key             string        `yaml:"key"`
	PreviousKeys    []string      `yaml:"previous_keys"`
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Debug           bool          `yaml:"debug"`
}

type Session struct {
	Driver   string        `yaml:"driver"` // memory, redis, database
	Cookie   string        `yaml:"cookie"`
	Domain   string        `yaml:"domain"`
	Path     string        `yaml:"path"`
	SameSite string        `yaml:"same_site"`
	Lifetime time.Duration `yaml:"lifetime"`
	Secure   bool          `yaml:"secure"`
}

type Cache struct {
	Driver     string        `yaml:"driver"` // memory, redis
	Prefix     string        `yaml:"prefix"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

// Defaults returns Settings with the values used when a key is absent.
func Defaults() Settings {
	return Settings{
		App: App{
			Name:            "keel",
			Env:             "production",
			URL:             "http://localhost:8080",
			Addr:            ":8080",
			ShutdownTimeout: 30 * time.Second,
		},
		Session: Session{
			Driver:   "memory",
			Cookie:   "keel_session",
			Path:     "/",
			SameSite: "lax",
			Lifetime: 2 * time.Hour,
		},
		Cache: Cache{
			Driver:     "memory",
			DefaultTTL: time.Hour,
		},
		Log: logger.Config{Level: "info", Format: "json"},
	}
}

// Settings decodes the whole tree on top of Defaults.
func (c *Config) Settings() (Settings, error) {
	s := Defaults()
	if err := c.Decode("", &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// IsProduction reports whether App.Env is "production".
func (s Settings) IsProduction() bool {
	return s.App.Env == "production"
}
