package versions

import (
	"context"
	"sort"
	"sync"
)

type localVersion struct {
	registered bool
	gen        uint64
	keys       map[string]struct{}
}

// Local keeps the registry in-process. This is the default.
type Local struct {
	mu sync.RWMutex
	vs map[string]*localVersion
}

var _ Registry = (*Local)(nil)

func NewLocal() *Local {
	return &Local{vs: make(map[string]*localVersion)}
}

// entry returns the state for version, creating it. Callers hold mu.
func (l *Local) entry(version string) *localVersion {
	v, ok := l.vs[version]
	if !ok {
		v = &localVersion{keys: make(map[string]struct{})}
		l.vs[version] = v
	}
	return v
}

func (l *Local) Register(_ context.Context, version string) error {
	l.mu.Lock()
	l.entry(version).registered = true
	l.mu.Unlock()
	return nil
}

func (l *Local) Versions(_ context.Context) ([]string, error) {
	l.mu.RLock()
	out := make([]string, 0, len(l.vs))
	for name, v := range l.vs {
		if v.registered {
			out = append(out, name)
		}
	}
	l.mu.RUnlock()
	sort.Strings(out)
	return out, nil
}

func (l *Local) Forget(_ context.Context, version string) error {
	l.mu.Lock()
	if v, ok := l.vs[version]; ok {
		v.registered = false
		v.keys = make(map[string]struct{})
	}
	l.mu.Unlock()
	return nil
}

func (l *Local) Generation(_ context.Context, version string) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if v, ok := l.vs[version]; ok {
		return v.gen, nil
	}
	return 0, nil
}

func (l *Local) Bump(_ context.Context, version string) (uint64, error) {
	l.mu.Lock()
	v := l.entry(version)
	v.gen++
	g := v.gen
	l.mu.Unlock()
	return g, nil
}

func (l *Local) Track(_ context.Context, version, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.vs[version]
	if !ok || !v.registered {
		return ErrUnregistered
	}
	v.keys[key] = struct{}{}
	return nil
}

func (l *Local) Keys(_ context.Context, version string) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.vs[version]
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(v.keys))
	for k := range v.keys {
		out = append(out, k)
	}
	return out, nil
}

func (l *Local) Close(context.Context) error { return nil }
