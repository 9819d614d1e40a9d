// Package config loads service configuration from a TOML file. The CLI
// runs without one; the HTTP service reads it at startup.
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"archmap/pkg/errors"
)

// Defaults applied when fields are absent from the file.
const (
	DefaultAddr          = ":8080"
	DefaultCacheBackend  = "file"
	DefaultCacheDir      = ".archmap-cache"
	DefaultStoreBackend  = "none"
	DefaultMermaidCLI    = "mmdc"
	DefaultRasterTimeout = 30
)

// Config is the full service configuration.
type Config struct {
	Server ServerConfig `toml:"server"`
	Cache  CacheConfig  `toml:"cache"`
	Store  StoreConfig  `toml:"store"`
	Raster RasterConfig `toml:"raster"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `toml:"addr"`

	// APIKeySHA256 is the hex SHA-256 of the API key clients must send
	// in X-API-Key. Empty disables authentication.
	APIKeySHA256 string `toml:"api_key_sha256"`
}

// CacheConfig selects the render cache backend.
type CacheConfig struct {
	// Backend is one of "file", "redis", "none".
	Backend string `toml:"backend"`

	// Dir is the cache directory for the file backend.
	Dir string `toml:"dir"`

	// RedisAddr is the host:port for the redis backend.
	RedisAddr string `toml:"redis_addr"`

	// KeyPrefix namespaces cache keys, for deployments sharing one
	// Redis instance.
	KeyPrefix string `toml:"key_prefix"`
}

// StoreConfig selects the run persistence backend.
type StoreConfig struct {
	// Backend is one of "none", "file", "mongo".
	Backend string `toml:"backend"`

	// Dir is the run directory for the file backend.
	Dir string `toml:"dir"`

	// MongoURI and MongoDatabase configure the mongo backend.
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

// RasterConfig configures SVG rasterization.
type RasterConfig struct {
	// MermaidCLI is the mmdc binary path or name.
	MermaidCLI string `toml:"mermaid_cli"`

	// TimeoutSeconds bounds one rasterization run.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and validates a TOML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read config %s", path)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse config %s", path)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// RasterTimeout returns the raster timeout as a duration.
func (c *Config) RasterTimeout() time.Duration {
	return time.Duration(c.Raster.TimeoutSeconds) * time.Second
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = DefaultCacheBackend
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = DefaultCacheDir
	}
	if c.Store.Backend == "" {
		c.Store.Backend = DefaultStoreBackend
	}
	if c.Raster.MermaidCLI == "" {
		c.Raster.MermaidCLI = DefaultMermaidCLI
	}
	if c.Raster.TimeoutSeconds == 0 {
		c.Raster.TimeoutSeconds = DefaultRasterTimeout
	}
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case "file", "redis", "none":
	default:
		return errors.New(errors.ErrCodeInvalidInput, "invalid cache backend %q (must be one of: file, redis, none)", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		return errors.New(errors.ErrCodeInvalidInput, "cache.redis_addr is required for the redis backend")
	}

	switch c.Store.Backend {
	case "none", "file", "mongo":
	default:
		return errors.New(errors.ErrCodeInvalidInput, "invalid store backend %q (must be one of: none, file, mongo)", c.Store.Backend)
	}
	if c.Store.Backend == "file" && c.Store.Dir == "" {
		return errors.New(errors.ErrCodeInvalidInput, "store.dir is required for the file backend")
	}
	if c.Store.Backend == "mongo" && (c.Store.MongoURI == "" || c.Store.MongoDatabase == "") {
		return errors.New(errors.ErrCodeInvalidInput, "store.mongo_uri and store.mongo_database are required for the mongo backend")
	}

	if c.Raster.TimeoutSeconds < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "raster.timeout_seconds must be >= 0")
	}
	return nil
}
