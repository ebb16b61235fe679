// Package config loads the proxy command's settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Proxy is the swcache-proxy configuration. List values are comma-separated.
type Proxy struct {
	Listen   string `env:"SWCACHE_LISTEN"   envDefault:"127.0.0.1:8088"`
	Upstream string `env:"SWCACHE_UPSTREAM" envDefault:"http://127.0.0.1:8080"`

	Version        string        `env:"SWCACHE_VERSION"          envDefault:"v1.0.0"`
	AppName        string        `env:"SWCACHE_APP_NAME"         envDefault:"Learning Materials Generator"`
	Language       string        `env:"SWCACHE_LANGUAGE"         envDefault:"en"`
	APIPrefix      string        `env:"SWCACHE_API_PREFIX"       envDefault:"/api/"`
	RootDocument   string        `env:"SWCACHE_ROOT_DOCUMENT"    envDefault:"/"`
	StaticManifest []string      `env:"SWCACHE_STATIC_MANIFEST"  envSeparator:","`
	NeverCache     []string      `env:"SWCACHE_NEVER_CACHE"      envSeparator:","`
	StaticMarkers  []string      `env:"SWCACHE_STATIC_MARKERS"   envSeparator:","`
	DynamicCache   []string      `env:"SWCACHE_DYNAMIC_CACHE"    envSeparator:","`
	EntryTTL       time.Duration `env:"SWCACHE_ENTRY_TTL"        envDefault:"0s"`
	MaxBodyBytes   int64         `env:"SWCACHE_MAX_BODY_BYTES"   envDefault:"10485760"`
	FetchTimeout   time.Duration `env:"SWCACHE_FETCH_TIMEOUT"    envDefault:"30s"`

	Namespace  string `env:"SWCACHE_NAMESPACE"   envDefault:"swcache"`
	Provider   string `env:"SWCACHE_PROVIDER"    envDefault:"memory"`
	Codec      string `env:"SWCACHE_CODEC"       envDefault:"cbor"`
	RedisAddr  string `env:"SWCACHE_REDIS_ADDR"  envDefault:"127.0.0.1:6379"`
	RedisDB    int    `env:"SWCACHE_REDIS_DB"    envDefault:"0"`
	SQLitePath string `env:"SWCACHE_SQLITE_PATH" envDefault:"swcache.db"`
	// MaxCost bounds the ristretto provider in bytes.
	MaxCost int64 `env:"SWCACHE_MAX_COST" envDefault:"268435456"`

	LogFormat    string `env:"SWCACHE_LOG_FORMAT"    envDefault:"zap"`
	OTelEndpoint string `env:"SWCACHE_OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"SWCACHE_OTEL_ENABLED"  envDefault:"true"`

	ShutdownTimeout time.Duration `env:"SWCACHE_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadProxy parses Proxy and checks the enumerated settings.
func LoadProxy() (Proxy, error) {
	var p Proxy
	if err := ParseEnv(&p); err != nil {
		return Proxy{}, err
	}
	if err := p.Validate(); err != nil {
		return Proxy{}, err
	}
	return p, nil
}

func (p Proxy) Validate() error {
	if err := oneOf("SWCACHE_PROVIDER", p.Provider, "memory", "ristretto", "bigcache", "redis", "sqlite"); err != nil {
		return err
	}
	if err := oneOf("SWCACHE_CODEC", p.Codec, "cbor", "msgpack", "json", "proto"); err != nil {
		return err
	}
	return oneOf("SWCACHE_LOG_FORMAT", p.LogFormat, "zap", "logrus", "slog")
}

func oneOf(name, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("%s: unsupported value %q (want one of %v)", name, v, allowed)
}
