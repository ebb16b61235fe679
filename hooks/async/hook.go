// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/swcache"
//	"github.com/unkn0wn-root/swcache/hooks/async"
//	"github.com/unkn0wn-root/swcache/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    SelfHealEvery: 10, // sample logs: ~every 10th self-heal
//	    HitEvery:      100,
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	agent, _ := swcache.New(swcache.Options{
//	    Config:  cfg,
//	    Fetcher: fetcher,
//	    Hooks:   hooks, // or `raw` if you don’t want async
//	})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/swcache"
)

type Hooks struct {
	inner swcache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once

	mu     sync.RWMutex
	closed bool
}

var _ swcache.Hooks = (*Hooks)(nil)

func New(inner swcache.Hooks, workers, qlen int) *Hooks {
	if inner == nil {
		inner = swcache.NopHooks{}
	}
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close stops accepting events and waits for queued ones to run.
// Events emitted after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) CacheHit(v, u string)  { h.try(func() { h.inner.CacheHit(v, u) }) }
func (h *Hooks) CacheMiss(v, u string) { h.try(func() { h.inner.CacheMiss(v, u) }) }
func (h *Hooks) Stored(v, u string)    { h.try(func() { h.inner.Stored(v, u) }) }
func (h *Hooks) StoreRejected(k string) {
	h.try(func() { h.inner.StoreRejected(k) })
}
func (h *Hooks) StorageFailure(op string, err error) {
	h.try(func() { h.inner.StorageFailure(op, err) })
}
func (h *Hooks) SelfHeal(k, r string) { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) FallbackServed(u, kind string) {
	h.try(func() { h.inner.FallbackServed(u, kind) })
}
func (h *Hooks) PrecacheFailed(u string, err error) {
	h.try(func() { h.inner.PrecacheFailed(u, err) })
}
func (h *Hooks) VersionReclaimed(v string) { h.try(func() { h.inner.VersionReclaimed(v) }) }
func (h *Hooks) SyncCompleted(tag string, err error) {
	h.try(func() { h.inner.SyncCompleted(tag, err) })
}
