// Package proxy runs a swcache Agent as an HTTP process in front of an
// upstream application origin.
package proxy

import (
	"context"
	"errors"
	"fmt"
	stdslog "log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/unkn0wn-root/swcache"
	"github.com/unkn0wn-root/swcache/capture"
	c "github.com/unkn0wn-root/swcache/codec"
	asynchook "github.com/unkn0wn-root/swcache/hooks/async"
	"github.com/unkn0wn-root/swcache/internal/config"
	"github.com/unkn0wn-root/swcache/internal/telemetry"
	"github.com/unkn0wn-root/swcache/sloghooks"
)

const serviceName = "swcache-proxy"

// Run builds the agent from cfg, starts it and serves until ctx is done.
func Run(ctx context.Context, cfg config.Proxy) error {
	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.Version, cfg.OTelEndpoint, cfg.OTelEnabled)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	log, flush, err := newLogger(cfg.LogFormat)
	if err != nil {
		return err
	}
	defer flush()

	agent, hooks, err := newAgent(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer hooks.Close()

	if err := agent.Start(ctx); err != nil {
		_ = agent.Close(context.Background())
		return fmt.Errorf("start agent: %w", err)
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		_ = agent.Close(context.Background())
		return fmt.Errorf("listen %s: %w", cfg.Listen, err)
	}
	return serve(ctx, ln, agent, log, cfg)
}

func newAgent(ctx context.Context, cfg config.Proxy, log swcache.Logger) (*swcache.Agent, *asynchook.Hooks, error) {
	st, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: %w", err)
	}
	codec, err := newCodec(cfg.Codec)
	if err != nil {
		_ = st.provider.Close(ctx)
		return nil, nil, err
	}
	if cfg.MaxBodyBytes > 0 {
		// headers and framing on top of the largest body the fetcher accepts
		codec = c.Limit[capture.Capture]{Inner: codec, MaxDecode: int(cfg.MaxBodyBytes) + 64<<10}
	}

	hl := stdslog.New(stdslog.NewJSONHandler(os.Stderr, &stdslog.HandlerOptions{Level: stdslog.LevelInfo}))
	hooks := asynchook.New(sloghooks.New(hl, sloghooks.Options{
		SelfHealEvery: 10,
		HitEvery:      100,
		MissEvery:     100,
	}), 1, 1024)

	agent, err := swcache.New(swcache.Options{
		Config: agentConfig(cfg),
		Fetcher: &swcache.HTTPFetcher{
			Client:       &http.Client{Timeout: cfg.FetchTimeout},
			Origin:       cfg.Upstream,
			MaxBodyBytes: cfg.MaxBodyBytes,
		},
		Namespace:      cfg.Namespace,
		Provider:       st.provider,
		Codec:          codec,
		Registry:       st.registry,
		Logger:         log,
		Hooks:          hooks,
		Notifier:       logNotifier{log: log},
		ComputeSetCost: st.cost,
	})
	if err != nil {
		hooks.Close()
		_ = st.provider.Close(ctx)
		return nil, nil, err
	}
	return agent, hooks, nil
}

func serve(ctx context.Context, ln net.Listener, agent *swcache.Agent, log swcache.Logger, cfg config.Proxy) error {
	srv := &http.Server{
		Handler:           NewHandler(agent, log, cfg.MaxBodyBytes),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	log.Info("proxy listening", swcache.Fields{"addr": ln.Addr().String(), "upstream": cfg.Upstream, "version": cfg.Version})

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn("http shutdown", swcache.Fields{"err": err})
	}
	if err := agent.Close(sctx); err != nil {
		log.Warn("agent close", swcache.Fields{"err": err})
	}
	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	return nil
}

// logNotifier records notifications in the log; a headless proxy has no
// display to show them on.
type logNotifier struct{ log swcache.Logger }

func (n logNotifier) Show(_ context.Context, nt swcache.Notification) error {
	n.log.Info("notification", swcache.Fields{"title": nt.Title, "body": nt.Body, "icon": nt.Icon})
	return nil
}

func (n logNotifier) Dismiss(context.Context) error {
	n.log.Debug("notification dismissed", nil)
	return nil
}

func (n logNotifier) OpenWindow(_ context.Context, url string) error {
	n.log.Info("open window", swcache.Fields{"url": url})
	return nil
}
