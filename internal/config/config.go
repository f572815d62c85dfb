// Package config loads server configuration from a YAML file with
// SYNCBOARD_-prefixed environment overrides.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/syncboard/syncboard/internal/api"
	"github.com/syncboard/syncboard/internal/websocket"
)

// Config is the root configuration.
type Config struct {
	API          api.Config         `mapstructure:"api"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Websocket    websocket.Config   `mapstructure:"websocket"`
	Coordination CoordinationConfig `mapstructure:"coordination"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// DatabaseConfig configures the Postgres pool.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

// CacheConfig configures the optional Redis connection used for shared
// lock and presence coordination.
type CacheConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CoordinationConfig selects where edit leases and presence live.
// "memory" serves a single node; "redis" shares state across instances.
type CoordinationConfig struct {
	Backend  string        `mapstructure:"backend"`
	LeaseTTL time.Duration `mapstructure:"lease_ttl"`
}

// LoggingConfig controls the standard logger.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Load reads configuration from the given file (optional) and the
// environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SYNCBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			// A missing file means env-only configuration; anything else
			// (unreadable, malformed YAML) is fatal.
			if !os.IsNotExist(errors.Cause(err)) {
				if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
					return nil, errors.Wrap(err, "failed to read config file")
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.API.AuthSecret == "" {
		return errors.New("api.auth_secret is required")
	}
	switch c.Coordination.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Cache.Address == "" {
			return errors.New("cache.address is required with the redis coordination backend")
		}
	default:
		return errors.Errorf("unknown coordination backend %q", c.Coordination.Backend)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.listen_address", ":8080")
	// Registered with an empty default so the env override binds; Validate
	// still rejects a missing secret.
	v.SetDefault("api.auth_secret", "")
	v.SetDefault("api.read_timeout", 15*time.Second)
	v.SetDefault("api.write_timeout", 0)
	v.SetDefault("api.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.dsn", "postgres://localhost:5432/syncboard?sslmode=disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.connect_timeout", 30*time.Second)

	v.SetDefault("cache.address", "")
	v.SetDefault("cache.db", 0)

	v.SetDefault("coordination.backend", BackendMemory)
	v.SetDefault("coordination.lease_ttl", 30*time.Second)

	ws := websocket.DefaultConfig()
	v.SetDefault("websocket.max_connections", ws.MaxConnections)
	v.SetDefault("websocket.ping_interval", ws.PingInterval)
	v.SetDefault("websocket.write_timeout", ws.WriteTimeout)
	v.SetDefault("websocket.max_message_size", ws.MaxMessageSize)
	v.SetDefault("websocket.rate_limit", ws.RateLimit)
	v.SetDefault("websocket.rate_burst", ws.RateBurst)
	v.SetDefault("websocket.send_buffer", ws.SendBuffer)

	v.SetDefault("logging.level", "info")
}
