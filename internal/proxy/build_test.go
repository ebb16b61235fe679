package proxy

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/unkn0wn-root/swcache"
	"github.com/unkn0wn-root/swcache/capture"
	"github.com/unkn0wn-root/swcache/internal/config"
	"github.com/unkn0wn-root/swcache/internal/keys"
)

func TestNewCodecRoundTrips(t *testing.T) {
	in := capture.Capture{URL: "https://app.test/", Status: 200, Body: []byte("x"), StoredAt: time.Unix(1, 0).UTC()}
	for _, name := range []string{"cbor", "msgpack", "json", "proto"} {
		cd, err := newCodec(name)
		if err != nil {
			t.Fatalf("newCodec(%s): %v", name, err)
		}
		b, err := cd.Encode(in)
		if err != nil {
			t.Fatalf("%s encode: %v", name, err)
		}
		out, err := cd.Decode(b)
		if err != nil || !out.Equal(in) {
			t.Fatalf("%s round trip: %+v err=%v", name, out, err)
		}
	}
	if _, err := newCodec("xml"); err == nil {
		t.Fatalf("expected error for unknown codec")
	}
}

func TestNewStorage(t *testing.T) {
	ctx := context.Background()
	for _, name := range []string{"memory", "ristretto", "bigcache", "sqlite"} {
		cfg := config.Proxy{
			Provider:   name,
			MaxCost:    1 << 20,
			SQLitePath: filepath.Join(t.TempDir(), "swcache.db"),
		}
		st, err := newStorage(ctx, cfg)
		if err != nil {
			t.Fatalf("newStorage(%s): %v", name, err)
		}
		if _, err := st.provider.Set(ctx, "k", []byte("v"), 1, 0); err != nil {
			t.Fatalf("%s set: %v", name, err)
		}
		if err := st.provider.Close(ctx); err != nil {
			t.Fatalf("%s close: %v", name, err)
		}
		if name == "ristretto" && (st.cost == nil || st.cost("k", make([]byte, 10)) != 10) {
			t.Fatalf("ristretto must be bounded by bytes")
		}
	}
	if _, err := newStorage(ctx, config.Proxy{Provider: "memcached"}); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"zap", "logrus", "slog"} {
		l, flush, err := newLogger(format)
		if err != nil || l == nil {
			t.Fatalf("newLogger(%s): %v", format, err)
		}
		flush()
	}
	if _, _, err := newLogger("printf"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestAgentConfigKeepsDefaultsForUnsetLists(t *testing.T) {
	ac := agentConfig(config.Proxy{
		Version:       "v9",
		Upstream:      "http://127.0.0.1:8080",
		StaticMarkers: []string{"/dist/"},
	})
	if ac.Version != "v9" || ac.Origin != "http://127.0.0.1:8080" {
		t.Fatalf("unexpected config %+v", ac)
	}
	if len(ac.StaticAssetMarkers) != 1 || ac.StaticAssetMarkers[0] != "/dist/" {
		t.Fatalf("markers not overridden: %v", ac.StaticAssetMarkers)
	}
	if len(ac.NeverCachePatterns) == 0 || len(ac.StaticManifest) == 0 {
		t.Fatalf("unset lists must keep defaults")
	}
}

func TestSQLiteStorageKeepsVersionsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	up := newUpstream(t)
	cfg := config.Proxy{
		Provider:   "sqlite",
		Namespace:  "swcache",
		SQLitePath: filepath.Join(t.TempDir(), "swcache.db"),
		Upstream:   up.srv.URL,
	}

	run := func(version string) *swcache.Agent {
		st, err := newStorage(ctx, cfg)
		if err != nil {
			t.Fatalf("newStorage: %v", err)
		}
		if st.registry == nil {
			t.Fatalf("sqlite storage must persist its registry")
		}
		ac := swcache.DefaultConfig()
		ac.Version = version
		ac.Origin = up.srv.URL
		ac.StaticManifest = nil
		agent, err := swcache.New(swcache.Options{
			Config:    ac,
			Fetcher:   &swcache.HTTPFetcher{Client: up.srv.Client(), Origin: up.srv.URL},
			Namespace: cfg.Namespace,
			Provider:  st.provider,
			Registry:  st.registry,
		})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		t.Cleanup(func() { _ = agent.Close(ctx) })
		if err := agent.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}
		return agent
	}

	v1 := run("v1")
	if _, err := v1.Intercept(ctx, swcache.NewRequest("GET", "/static/app.css")); err != nil {
		t.Fatalf("Intercept: %v", err)
	}
	if err := v1.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	v2 := run("v2")
	vs, err := v2.Manager().Versions(ctx)
	if err != nil || len(vs) != 1 || vs[0] != "v2" {
		t.Fatalf("expected exactly [v2], got %v err=%v", vs, err)
	}
	again, err := newStorage(ctx, cfg)
	if err != nil {
		t.Fatalf("newStorage: %v", err)
	}
	defer func() { _ = again.provider.Close(ctx) }()
	if _, ok, _ := again.provider.Get(ctx, keys.Entry(cfg.Namespace, "v1", "GET", up.srv.URL+"/static/app.css")); ok {
		t.Fatalf("v1 entry survived the restart")
	}
}
