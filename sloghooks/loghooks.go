package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/swcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery uint64
	HitEvery      uint64
	MissEvery     uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
	hitCtr      atomic.Uint64
	missCtr     atomic.Uint64
}

var _ swcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) CacheHit(version, url string) {
	if h.l == nil || !sample(h.opts.HitEvery, &h.hitCtr) {
		return
	}
	h.l.Debug("swcache.cache_hit", "version", version, "url", url)
}

func (h *Hooks) CacheMiss(version, url string) {
	if h.l == nil || !sample(h.opts.MissEvery, &h.missCtr) {
		return
	}
	h.l.Debug("swcache.cache_miss", "version", version, "url", url)
}

func (h *Hooks) Stored(version, url string) {
	if h.l == nil {
		return
	}
	h.l.Debug("swcache.stored", "version", version, "url", url)
}

func (h *Hooks) StoreRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("swcache.store_rejected", "key", h.redact(storageKey))
}

func (h *Hooks) StorageFailure(op string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("swcache.storage_failure", "op", op, "err", err)
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("swcache.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) FallbackServed(url, kind string) {
	if h.l == nil {
		return
	}
	h.l.Info("swcache.fallback_served", "url", url, "kind", kind)
}

func (h *Hooks) PrecacheFailed(url string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("swcache.precache_failed", "url", url, "err", err)
}

func (h *Hooks) VersionReclaimed(version string) {
	if h.l == nil {
		return
	}
	h.l.Info("swcache.version_reclaimed", "version", version)
}

func (h *Hooks) SyncCompleted(tag string, err error) {
	if h.l == nil {
		return
	}
	if err != nil {
		h.l.Error("swcache.sync_failed", "tag", tag, "err", err)
		return
	}
	h.l.Info("swcache.sync_completed", "tag", tag)
}
