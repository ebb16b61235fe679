package swcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/swcache/capture"
	c "github.com/unkn0wn-root/swcache/codec"
	pr "github.com/unkn0wn-root/swcache/provider"
	"github.com/unkn0wn-root/swcache/provider/memory"
	"github.com/unkn0wn-root/swcache/versions"
)

const tracerName = "github.com/unkn0wn-root/swcache"

// Options configure an Agent. Only Fetcher is required; others have sensible defaults.
type Options struct {
	Config  Config
	Fetcher Fetcher

	Namespace string                   // provider key namespace; default "swcache"
	Provider  pr.Provider              // nil => memory.New()
	Codec     c.Codec[capture.Capture] // nil => deterministic CBOR
	Registry  versions.Registry        // nil => versions.NewLocal()

	Logger   Logger   // nil => NopLogger
	Hooks    Hooks    // nil => NopHooks
	Host     Host     // nil => NopHost
	Notifier Notifier // nil => NopNotifier
	Tracer   trace.Tracer

	// SyncHandlers run deferred work per tag when connectivity returns.
	SyncHandlers map[string]SyncFunc
	// PrecacheConcurrency bounds parallel manifest fetches at install. 0 => 4.
	PrecacheConcurrency int
	ComputeSetCost      SetCostFunc
	Clock               func() time.Time
}

// Agent is the caching agent. The host owns its lifetime: construct it with
// New, drive it with Start (or Install and Activate), route every request
// through Intercept and Close it on shutdown.
type Agent struct {
	cfg      Config
	manager  *Manager
	fetcher  Fetcher
	ic       *interceptor
	log      Logger
	hooks    Hooks
	host     Host
	notifier Notifier
	syncs    map[string]SyncFunc
	precache int
	now      func() time.Time

	lifeMu  sync.Mutex // serializes install and activate
	state   atomic.Int32
	pending *Store // opened at install, promoted at activate
	current atomic.Pointer[Store]

	syncMu    sync.Mutex
	syncQueue []PendingSyncTask

	closed atomic.Bool
}

func New(opts Options) (*Agent, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("swcache: fetcher is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	cfg := opts.Config.withDefaults()

	log := coalesce[Logger](opts.Logger, NopLogger{})
	hooks := coalesce[Hooks](opts.Hooks, NopHooks{})

	codec := opts.Codec
	if codec == nil {
		cd, err := c.NewCBOR[capture.Capture](true)
		if err != nil {
			return nil, err
		}
		codec = cd
	}
	provider := opts.Provider
	if provider == nil {
		provider = memory.New()
	}

	manager, err := NewManager(ManagerOptions{
		Namespace:      opts.Namespace,
		Provider:       provider,
		Codec:          codec,
		Registry:       opts.Registry,
		Logger:         log,
		Hooks:          hooks,
		EntryTTL:       cfg.EntryTTL,
		ComputeSetCost: opts.ComputeSetCost,
		Clock:          opts.Clock,
	})
	if err != nil {
		return nil, err
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	a := &Agent{
		cfg:      cfg,
		manager:  manager,
		fetcher:  opts.Fetcher,
		log:      log,
		hooks:    hooks,
		host:     coalesce[Host](opts.Host, NopHost{}),
		notifier: coalesce[Notifier](opts.Notifier, NopNotifier{}),
		syncs:    opts.SyncHandlers,
		precache: coalesce(opts.PrecacheConcurrency, 4),
		now:      opts.Clock,
	}
	if a.now == nil {
		a.now = time.Now
	}
	a.ic = &interceptor{
		cfg:        cfg,
		classifier: NewClassifier(cfg),
		fetcher:    opts.Fetcher,
		fallback:   newFallbackProvider(cfg, log),
		log:        log,
		hooks:      hooks,
		tracer:     tracer,
	}
	return a, nil
}

func (a *Agent) Config() Config    { return a.cfg }
func (a *Agent) Manager() *Manager { return a.manager }
func (a *Agent) State() State      { return State(a.state.Load()) }

// Store returns the current store, or nil before activation completes.
func (a *Agent) Store() *Store { return a.current.Load() }

// Classify labels req with the agent's classifier.
func (a *Agent) Classify(req Request) PolicyLabel {
	return a.ic.classifier.Classify(a.normalize(req))
}

// Intercept answers one request. Until the agent is active requests go
// straight to the network. An error is returned only when the network failed
// and no fallback applies; it is then the fetcher's error, unmodified.
func (a *Agent) Intercept(ctx context.Context, req Request) (*Response, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	return a.ic.handle(ctx, a.current.Load(), a.normalize(req))
}

// Fallback returns the offline document: the stored root document when present,
// otherwise a synthesized page. It always returns a response.
func (a *Agent) Fallback(ctx context.Context) *Response {
	resp, _ := a.ic.fallback.page(ctx, a.current.Load(), Navigate(a.cfg.RootDocument))
	return resp
}

func (a *Agent) normalize(req Request) Request {
	req.Method = req.method()
	req.URL = a.cfg.resolve(req.URL)
	return req
}

// Start installs and activates the agent.
func (a *Agent) Start(ctx context.Context) error {
	if err := a.Install(ctx); err != nil {
		return err
	}
	return a.Activate(ctx)
}

func (a *Agent) Install(ctx context.Context) error {
	return a.Dispatch(ctx, Event{Kind: EventInstall})
}

func (a *Agent) Activate(ctx context.Context) error {
	return a.Dispatch(ctx, Event{Kind: EventActivate})
}

// Push shows a notification for payload. Ignored unless active.
func (a *Agent) Push(ctx context.Context, payload []byte) error {
	return a.Dispatch(ctx, Event{Kind: EventPush, Payload: payload})
}

// NotificationClicked dismisses the notification and opens the app. Ignored unless active.
func (a *Agent) NotificationClicked(ctx context.Context) error {
	return a.Dispatch(ctx, Event{Kind: EventNotificationClick})
}

// QueueSync records deferred work for tag. A tag already queued is not duplicated.
func (a *Agent) QueueSync(tag string) {
	a.syncMu.Lock()
	defer a.syncMu.Unlock()
	for _, t := range a.syncQueue {
		if t.Tag == tag {
			return
		}
	}
	a.syncQueue = append(a.syncQueue, PendingSyncTask{Tag: tag})
}

// PendingSync returns the queued tasks in queue order.
func (a *Agent) PendingSync() []PendingSyncTask {
	a.syncMu.Lock()
	defer a.syncMu.Unlock()
	return append([]PendingSyncTask(nil), a.syncQueue...)
}

// ConnectivityRestored runs every queued task once and discards it, whatever
// the outcome. While the agent is not active the queue is left untouched.
func (a *Agent) ConnectivityRestored(ctx context.Context) error {
	if a.State() != StateActive {
		return nil
	}
	a.syncMu.Lock()
	tasks := a.syncQueue
	a.syncQueue = nil
	a.syncMu.Unlock()

	for _, t := range tasks {
		if err := a.Dispatch(ctx, Event{Kind: EventSync, Tag: t.Tag}); err != nil {
			return err
		}
	}
	return nil
}

// Dispatch applies ev through the transition table and runs its effects.
// Install and activate are serialized; in-flight requests are not blocked.
func (a *Agent) Dispatch(ctx context.Context, ev Event) error {
	if a.closed.Load() {
		return ErrClosed
	}
	mid, serial := interim(ev.Kind)
	if serial {
		a.lifeMu.Lock()
		defer a.lifeMu.Unlock()
	}

	from := a.State()
	next, effects, err := Transition(from, ev)
	if err != nil {
		return err
	}
	if serial {
		a.setState(mid)
	}
	for _, eff := range effects {
		if err := a.apply(ctx, eff); err != nil {
			a.setState(StateRedundant)
			a.log.Error("lifecycle effect failed", Fields{"event": ev.Kind.String(), "err": err})
			return err
		}
	}
	if next != from {
		a.setState(next)
		a.log.Info("lifecycle transition", Fields{"from": from.String(), "to": next.String(), "version": a.cfg.Version})
	}
	return nil
}

func (a *Agent) setState(s State) { a.state.Store(int32(s)) }

// apply runs one effect. Only a failure to open the store is fatal; everything
// else is logged and skipped.
func (a *Agent) apply(ctx context.Context, eff Effect) error {
	switch eff.Kind {
	case EffectOpenStore:
		st, err := a.manager.Open(ctx, a.cfg.Version)
		if err != nil {
			a.hooks.StorageFailure("open", err)
			return err
		}
		a.pending = st
	case EffectPrecache:
		a.precacheManifest(ctx, a.pending)
	case EffectSkipWaiting:
		if err := a.host.SkipWaiting(ctx); err != nil {
			a.log.Warn("skip waiting failed", Fields{"err": err})
		}
	case EffectPruneVersions:
		a.pruneVersions(ctx)
	case EffectPromoteStore:
		a.current.Store(a.pending)
	case EffectClaimClients:
		if err := a.host.ClaimClients(ctx); err != nil {
			a.log.Warn("claim clients failed", Fields{"err": err})
		}
	case EffectRunSync:
		a.runSync(ctx, eff.Tag)
	case EffectShowNotification:
		n := newNotification(a.cfg.AppName, eff.Payload, a.now())
		if err := a.notifier.Show(ctx, n); err != nil {
			a.log.Warn("show notification failed", Fields{"err": err})
		}
	case EffectCloseNotification:
		if err := a.notifier.Dismiss(ctx); err != nil {
			a.log.Warn("dismiss notification failed", Fields{"err": err})
		}
	case EffectOpenWindow:
		if err := a.notifier.OpenWindow(ctx, a.cfg.resolve(a.cfg.RootDocument)); err != nil {
			a.log.Warn("open window failed", Fields{"err": err})
		}
	}
	return nil
}

// precacheManifest fetches every manifest file independently. A file that
// fails is logged and skipped; it is filled in later by a cache miss.
func (a *Agent) precacheManifest(ctx context.Context, st *Store) {
	var g errgroup.Group
	g.SetLimit(a.precache)
	for _, u := range a.cfg.StaticManifest {
		req := a.normalize(Request{Method: "GET", URL: u, Mode: ModeSameOrigin})
		g.Go(func() error {
			resp, err := a.fetcher.Fetch(ctx, req)
			if err == nil && (resp.Status < 200 || resp.Status > 299) {
				err = fmt.Errorf("unexpected status %d", resp.Status)
			}
			if err != nil {
				a.hooks.PrecacheFailed(req.URL, err)
				a.log.Warn("precache failed", Fields{"url": req.URL, "err": err})
				return nil
			}
			if err := st.Put(ctx, req, resp); err != nil {
				a.hooks.StorageFailure("put", err)
				a.log.Warn("precache store failed", Fields{"url": req.URL, "err": err})
				return nil
			}
			a.hooks.Stored(st.Version(), req.URL)
			return nil
		})
	}
	_ = g.Wait()
	a.log.Info("precache finished", Fields{"version": st.Version(), "files": len(a.cfg.StaticManifest)})
}

// pruneVersions deletes every version except the configured one.
func (a *Agent) pruneVersions(ctx context.Context) {
	vs, err := a.manager.Versions(ctx)
	if err != nil {
		a.hooks.StorageFailure("versions", err)
		a.log.Error("list versions failed", Fields{"err": err})
		return
	}
	for _, v := range vs {
		if v == a.cfg.Version {
			continue
		}
		if err := a.manager.Delete(ctx, v); err != nil {
			a.hooks.StorageFailure("delete", err)
			a.log.Error("delete version failed", Fields{"version": v, "err": err})
			continue
		}
		a.hooks.VersionReclaimed(v)
		a.log.Info("old store version deleted", Fields{"version": v})
	}
}

func (a *Agent) runSync(ctx context.Context, tag string) {
	fn, ok := a.syncs[tag]
	if !ok {
		a.log.Warn("no sync handler", Fields{"tag": tag})
		return
	}
	err := fn(ctx, tag)
	a.hooks.SyncCompleted(tag, err)
	if err != nil {
		a.log.Warn("sync failed; discarded", Fields{"tag": tag, "err": err})
		return
	}
	a.log.Info("sync completed", Fields{"tag": tag})
}

// Drain waits for pending write-backs.
func (a *Agent) Drain() { a.ic.writes.Wait() }

// Close drains pending write-backs and closes the store manager. Safe to call once.
func (a *Agent) Close(ctx context.Context) error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	a.Drain()
	return a.manager.Close(ctx)
}
