package proxy

import (
	"context"
	"fmt"
	stdslog "log/slog"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/swcache"
	"github.com/unkn0wn-root/swcache/capture"
	c "github.com/unkn0wn-root/swcache/codec"
	"github.com/unkn0wn-root/swcache/internal/config"
	logruslog "github.com/unkn0wn-root/swcache/log/logrus"
	slogl "github.com/unkn0wn-root/swcache/log/slog"
	zaplog "github.com/unkn0wn-root/swcache/log/zap"
	pr "github.com/unkn0wn-root/swcache/provider"
	"github.com/unkn0wn-root/swcache/provider/bigcache"
	"github.com/unkn0wn-root/swcache/provider/memory"
	redisprovider "github.com/unkn0wn-root/swcache/provider/redis"
	"github.com/unkn0wn-root/swcache/provider/ristretto"
	"github.com/unkn0wn-root/swcache/provider/sqlite"
	"github.com/unkn0wn-root/swcache/versions"
)

// storage is the provider and registry pair selected by SWCACHE_PROVIDER.
type storage struct {
	provider pr.Provider
	registry versions.Registry // nil => in-process
	cost     swcache.SetCostFunc
}

func newStorage(ctx context.Context, cfg config.Proxy) (storage, error) {
	switch cfg.Provider {
	case "memory":
		return storage{provider: memory.New()}, nil
	case "ristretto":
		p, err := ristretto.New(ristretto.Config{
			NumCounters: 1e6,
			MaxCost:     cfg.MaxCost,
			BufferItems: 64,
		})
		if err != nil {
			return storage{}, err
		}
		// bounded by bytes, not entries
		return storage{provider: p, cost: func(_ string, raw []byte) int64 { return int64(len(raw)) }}, nil
	case "bigcache":
		life := cfg.EntryTTL
		if life <= 0 {
			life = 24 * time.Hour
		}
		p, err := bigcache.New(ctx, bigcache.Config{
			LifeWindow:         life,
			HardMaxCacheSizeMB: int(cfg.MaxCost >> 20),
		})
		if err != nil {
			return storage{}, err
		}
		return storage{provider: p}, nil
	case "redis":
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return storage{}, fmt.Errorf("redis ping: %w", err)
		}
		p, err := redisprovider.New(redisprovider.Config{Client: rdb, Prefix: cfg.Namespace + ":"})
		if err != nil {
			_ = rdb.Close()
			return storage{}, err
		}
		// the registry owns the client; it is closed after the provider
		return storage{provider: p, registry: versions.NewRedis(rdb, cfg.Namespace, true)}, nil
	case "sqlite":
		p, err := sqlite.New(sqlite.Config{Path: cfg.SQLitePath})
		if err != nil {
			return storage{}, err
		}
		// versions must outlive the process like the entries do
		reg, err := versions.NewSQLite(ctx, p.DB(), cfg.Namespace)
		if err != nil {
			_ = p.Close(ctx)
			return storage{}, err
		}
		return storage{provider: p, registry: reg}, nil
	default:
		return storage{}, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}

func newCodec(name string) (c.Codec[capture.Capture], error) {
	switch name {
	case "cbor":
		return c.NewCBOR[capture.Capture](true)
	case "msgpack":
		return c.Msgpack[capture.Capture]{}, nil
	case "json":
		return c.JSON[capture.Capture]{}, nil
	case "proto":
		return c.CaptureProto{}, nil
	default:
		return nil, fmt.Errorf("unsupported codec %q", name)
	}
}

// newLogger returns the agent logger for format and a flush func.
func newLogger(format string) (swcache.Logger, func(), error) {
	switch format {
	case "zap":
		zl, err := zap.NewProduction()
		if err != nil {
			return nil, nil, err
		}
		return zaplog.Logger{L: zl}, func() { _ = zl.Sync() }, nil
	case "logrus":
		l := logrus.New()
		l.SetOutput(os.Stderr)
		l.SetFormatter(&logrus.JSONFormatter{})
		return logruslog.Logger{E: logrus.NewEntry(l)}, func() {}, nil
	case "slog":
		return slogl.Logger{L: stdslog.New(stdslog.NewJSONHandler(os.Stderr, nil))}, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported log format %q", format)
	}
}

func agentConfig(cfg config.Proxy) swcache.Config {
	ac := swcache.DefaultConfig()
	ac.Version = cfg.Version
	ac.Origin = cfg.Upstream
	ac.AppName = cfg.AppName
	ac.Language = cfg.Language
	ac.APIPrefix = cfg.APIPrefix
	ac.RootDocument = cfg.RootDocument
	ac.EntryTTL = cfg.EntryTTL
	if cfg.StaticManifest != nil {
		ac.StaticManifest = cfg.StaticManifest
	}
	if cfg.NeverCache != nil {
		ac.NeverCachePatterns = cfg.NeverCache
	}
	if cfg.StaticMarkers != nil {
		ac.StaticAssetMarkers = cfg.StaticMarkers
	}
	if cfg.DynamicCache != nil {
		ac.DynamicCacheablePatterns = cfg.DynamicCache
	}
	return ac
}
