package config

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

var (
	ErrRead   = errors.New("config: failed to read file")
	ErrParse  = errors.New("config: failed to parse yaml")
	ErrDecode = errors.New("config: failed to decode section")
)

// Config holds a parsed YAML tree addressed by dot paths such as
// "session.lifetime".
type Config struct {
	values map[string]any
}

// LoadEnv loads .env files into the process environment. Missing files are
// skipped; variables already set are not overridden.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return errors.Join(ErrRead, err)
		}
	}
	return nil
}

// Load reads a YAML file, expanding ${VAR} and ${VAR:-default} references
// from the environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrRead, err)
	}
	return Parse(data)
}

// Parse builds a Config from YAML bytes.
func Parse(data []byte) (*Config, error) {
	values := map[string]any{}
	if err := yaml.Unmarshal([]byte(Expand(string(data))), &values); err != nil {
		return nil, errors.Join(ErrParse, err)
	}
	return &Config{values: values}, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// Expand substitutes ${VAR} and ${VAR:-default}. An unset or empty VAR
// yields the default, or "" when there is none.
func Expand(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		if v := os.Getenv(m[1]); v != "" {
			return v
		}
		return m[2]
	})
}

// Get returns the raw value at path.
func (c *Config) Get(path string) (any, bool) {
	var cur any = c.values
	for part := range strings.SplitSeq(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func (c *Config) Has(path string) bool {
	_, ok := c.Get(path)
	return ok
}

func (c *Config) String(path string, def ...string) string {
	if v, ok := c.Get(path); ok && v != nil {
		return cast.ToString(v)
	}
	return first(def)
}

func (c *Config) Int(path string, def ...int) int {
	if v, ok := c.Get(path); ok && v != nil {
		return cast.ToInt(v)
	}
	return first(def)
}

func (c *Config) Bool(path string, def ...bool) bool {
	if v, ok := c.Get(path); ok && v != nil {
		return cast.ToBool(v)
	}
	return first(def)
}

// Duration accepts Go duration strings ("90s") or integer nanoseconds.
func (c *Config) Duration(path string, def ...time.Duration) time.Duration {
	if v, ok := c.Get(path); ok && v != nil {
		return cast.ToDuration(v)
	}
	return first(def)
}

func (c *Config) StringSlice(path string, def ...[]string) []string {
	if v, ok := c.Get(path); ok && v != nil {
		return cast.ToStringSlice(v)
	}
	return first(def)
}

func (c *Config) StringMap(path string) map[string]string {
	if v, ok := c.Get(path); ok && v != nil {
		return cast.ToStringMapString(v)
	}
	return nil
}

// Decode decodes the subtree at path (or the whole tree for "") into out
// using its yaml tags.
func (c *Config) Decode(path string, out any) error {
	var src any = c.values
	if path != "" {
		v, ok := c.Get(path)
		if !ok {
			return nil
		}
		src = v
	}
	data, err := yaml.Marshal(src)
	if err != nil {
		return errors.Join(ErrDecode, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return errors.Join(ErrDecode, err)
	}
	return nil
}

func first[T any](vals []T) T {
	var zero T
	if len(vals) > 0 {
		return vals[0]
	}
	return zero
}
