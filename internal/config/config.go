// Package config loads the topograph settings: built-in defaults, then an
// optional YAML file, then TOPOGRAPH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TOPOGRAPH_"

// PathEnvVar names the config file when no explicit path is given.
const PathEnvVar = EnvPrefix + "CONFIG"

// Store drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverBadger = "badger"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Log      LogConfig      `koanf:"log"`
	Store    StoreConfig    `koanf:"store"`
	Server   ServerConfig   `koanf:"server"`
	Mutation MutationConfig `koanf:"mutation"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn warning error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

type StoreConfig struct {
	Driver string       `koanf:"driver" validate:"oneof=memory redis badger"`
	Redis  RedisConfig  `koanf:"redis"`
	Badger BadgerConfig `koanf:"badger"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr" validate:"omitempty,hostname_port"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0,lte=15"`
	Prefix   string `koanf:"prefix"`
}

type BadgerConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

type ServerConfig struct {
	Addr         string        `koanf:"addr" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"gte=0"`
	CORSOrigins  []string      `koanf:"cors_origins"`
	RateLimit    int           `koanf:"rate_limit" validate:"gte=0"`
	RateWindow   time.Duration `koanf:"rate_window" validate:"gte=0"`
}

type MutationConfig struct {
	TxTimeout       time.Duration `koanf:"tx_timeout" validate:"gt=0"`
	LockTTL         time.Duration `koanf:"lock_ttl" validate:"gt=0"`
	DistributedLock bool          `koanf:"distributed_lock"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path" validate:"startswith=/"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Store: StoreConfig{
			Driver: DriverMemory,
			Redis:  RedisConfig{Addr: "localhost:6379", Prefix: "topograph:"},
			Badger: BadgerConfig{Path: "data/topograph"},
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			CORSOrigins:  []string{"*"},
			RateLimit:    600,
			RateWindow:   time.Minute,
		},
		Mutation: MutationConfig{
			TxTimeout: 5 * time.Second,
			LockTTL:   10 * time.Second,
		},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// sliceKeys are split on commas when they arrive as a single string.
var sliceKeys = []string{"server.cors_origins"}

// Load reads the configuration. An empty path falls back to $TOPOGRAPH_CONFIG;
// no file at all means defaults plus environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(PathEnvVar)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// TOPOGRAPH_STORE_REDIS_ADDR -> store.redis.addr. Keys are matched against
	// the known ones since both nesting and names use underscores.
	known := make(map[string]string)
	for _, key := range k.Keys() {
		known[strings.ReplaceAll(key, ".", "_")] = key
	}
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		name := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return known[name]
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	for _, key := range sliceKeys {
		if s, ok := k.Get(key).(string); ok {
			if err := k.Set(key, splitList(s)); err != nil {
				return nil, fmt.Errorf("set %s: %w", key, err)
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and the cross-section constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	switch c.Store.Driver {
	case DriverRedis:
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("%w: store.redis.addr is required for the redis driver", ErrInvalid)
		}
	case DriverBadger:
		if c.Store.Badger.Path == "" && !c.Store.Badger.InMemory {
			return fmt.Errorf("%w: store.badger.path or store.badger.in_memory is required", ErrInvalid)
		}
	}
	if c.Mutation.DistributedLock && c.Store.Redis.Addr == "" {
		return fmt.Errorf("%w: mutation.distributed_lock needs store.redis.addr", ErrInvalid)
	}
	if c.Server.RateLimit > 0 && c.Server.RateWindow <= 0 {
		return fmt.Errorf("%w: server.rate_window must be positive when rate_limit is set", ErrInvalid)
	}
	return nil
}
