package swcache

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/unkn0wn-root/swcache/capture"
	c "github.com/unkn0wn-root/swcache/codec"
	"github.com/unkn0wn-root/swcache/internal/keys"
	"github.com/unkn0wn-root/swcache/internal/wire"
	pr "github.com/unkn0wn-root/swcache/provider"
	"github.com/unkn0wn-root/swcache/versions"
)

// SetCostFunc returns the provider cost of one stored entry.
type SetCostFunc func(key string, raw []byte) int64

// Manager owns the versioned stores kept in one provider namespace.
type Manager struct {
	ns       string
	provider pr.Provider
	codec    c.Codec[capture.Capture]
	codecID  byte
	registry versions.Registry
	log      Logger
	hooks    Hooks
	ttl      time.Duration
	cost     SetCostFunc
	now      func() time.Time
}

// ManagerOptions configure a Manager. Provider and Codec are required.
type ManagerOptions struct {
	Namespace      string // default "swcache"
	Provider       pr.Provider
	Codec          c.Codec[capture.Capture]
	Registry       versions.Registry // nil => versions.NewLocal()
	Logger         Logger
	Hooks          Hooks
	EntryTTL       time.Duration
	ComputeSetCost SetCostFunc // default 1
	Clock          func() time.Time
}

func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.Provider == nil {
		return nil, errors.New("swcache: provider is required")
	}
	if opts.Codec == nil {
		return nil, errors.New("swcache: codec is required")
	}
	m := &Manager{
		ns:       coalesce(opts.Namespace, "swcache"),
		provider: opts.Provider,
		codec:    opts.Codec,
		codecID:  c.ID(opts.Codec),
		registry: opts.Registry,
		log:      coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:    coalesce[Hooks](opts.Hooks, NopHooks{}),
		ttl:      opts.EntryTTL,
		cost:     opts.ComputeSetCost,
		now:      opts.Clock,
	}
	if m.registry == nil {
		m.registry = versions.NewLocal()
	}
	if m.cost == nil {
		m.cost = func(string, []byte) int64 { return 1 }
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

// Open returns the store for version, registering it if needed. Idempotent.
func (m *Manager) Open(ctx context.Context, version string) (*Store, error) {
	if err := m.registry.Register(ctx, version); err != nil {
		return nil, &StorageError{Op: "open", Key: version, Err: err}
	}
	return &Store{m: m, version: version}, nil
}

// Versions lists the registered store versions in ascending order.
func (m *Manager) Versions(ctx context.Context) ([]string, error) {
	vs, err := m.registry.Versions(ctx)
	if err != nil {
		return nil, &StorageError{Op: "versions", Err: err}
	}
	return vs, nil
}

// Delete reclaims a version: bump its generation so any surviving entry is
// stale, delete the tracked entries, then forget the version.
func (m *Manager) Delete(ctx context.Context, version string) error {
	_, bumpErr := m.registry.Bump(ctx, version)

	var delErrs []error
	tracked, err := m.registry.Keys(ctx, version)
	if err != nil {
		delErrs = append(delErrs, err)
	}
	for _, k := range tracked {
		if err := m.provider.Del(ctx, k); err != nil {
			delErrs = append(delErrs, err)
		}
	}

	forgetErr := m.registry.Forget(ctx, version)
	delErr := errors.Join(delErrs...)
	if bumpErr == nil && delErr == nil && forgetErr == nil {
		m.log.Debug("store version deleted", Fields{"version": version, "entries": len(tracked)})
		return nil
	}
	return &ReclaimError{Version: version, BumpErr: bumpErr, DelErr: delErr, ForgetErr: forgetErr}
}

// Close releases the registry and the provider.
func (m *Manager) Close(ctx context.Context) error {
	return errors.Join(m.registry.Close(ctx), m.provider.Close(ctx))
}

// Store is the view of one version. Only GET requests are stored.
type Store struct {
	m       *Manager
	version string
}

func (s *Store) Version() string { return s.version }

func (s *Store) key(req Request) string {
	return keys.Entry(s.m.ns, s.version, req.method(), req.URL)
}

// Get looks up req by exact (method, url). Corrupt entries and entries of a
// deleted generation are removed and reported as a miss.
func (s *Store) Get(ctx context.Context, req Request) (*Response, bool, error) {
	if req.method() != http.MethodGet {
		return nil, false, nil
	}
	k := s.key(req)
	raw, ok, err := s.m.provider.Get(ctx, k)
	if err != nil {
		return nil, false, &StorageError{Op: "get", Key: k, Err: err}
	}
	if !ok {
		return nil, false, nil
	}

	entry, err := wire.DecodeFor(s.m.codecID, raw)
	if err != nil {
		s.heal(ctx, k, "corrupt")
		return nil, false, nil
	}
	gen, err := s.m.registry.Generation(ctx, s.version)
	if err != nil {
		return nil, false, &StorageError{Op: "get", Key: k, Err: err}
	}
	if entry.Gen != gen {
		s.heal(ctx, k, "stale_version")
		return nil, false, nil
	}
	snap, err := s.m.codec.Decode(entry.Payload)
	if err != nil {
		s.heal(ctx, k, "decode")
		return nil, false, nil
	}
	return &Response{
		Status: snap.Status,
		Header: snap.HTTPHeader(),
		Body:   snap.Body,
		URL:    snap.URL,
		Type:   TypeBasic,
		Source: SourceCache,
	}, true, nil
}

// Put stores a snapshot of resp for req. The last write for a key wins.
func (s *Store) Put(ctx context.Context, req Request, resp *Response) error {
	if req.method() != http.MethodGet || resp == nil {
		return ErrNotCacheable
	}
	k := s.key(req)
	gen, err := s.m.registry.Generation(ctx, s.version)
	if err != nil {
		return &StorageError{Op: "put", Key: k, Err: err}
	}

	snap := capture.Capture{
		URL:      coalesce(resp.URL, req.URL),
		Status:   resp.Status,
		Header:   map[string][]string(resp.Header.Clone()),
		Body:     resp.Body,
		StoredAt: s.m.now().UTC(),
	}
	payload, err := s.m.codec.Encode(snap)
	if err != nil {
		return err
	}
	raw := wire.Encode(s.m.codecID, gen, payload)

	ok, err := s.m.provider.Set(ctx, k, raw, s.m.cost(k, raw), s.m.ttl)
	if err != nil {
		return &StorageError{Op: "put", Key: k, Err: err}
	}
	if !ok {
		s.m.hooks.StoreRejected(k)
		s.m.log.Debug("put rejected by provider (pressure)", Fields{"key": k})
		return nil
	}
	if err := s.m.registry.Track(ctx, s.version, k); err != nil {
		if errors.Is(err, versions.ErrUnregistered) {
			// the version was deleted while this write was in flight
			s.heal(ctx, k, "unregistered_version")
			return nil
		}
		// the entry is written; only prompt reclamation is lost, the
		// generation bump still invalidates it
		s.m.log.Warn("track entry failed", Fields{"key": k, "err": err})
	}
	return nil
}

func (s *Store) heal(ctx context.Context, key, reason string) {
	_ = s.m.provider.Del(ctx, key)
	s.m.hooks.SelfHeal(key, reason)
	s.m.log.Debug("entry self-healed", Fields{"key": key, "reason": reason})
}
