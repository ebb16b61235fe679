package swcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking: they run on the request path.
// Wrap slow implementations with hooks/async.
type Hooks interface {
	// An intercepted request was answered from the store.
	CacheHit(version, url string)
	// A store lookup found nothing; the network is tried next.
	CacheMiss(version, url string)
	// A network response was written back to the store.
	Stored(version, url string)
	// Provider returned ok=false on Set (backpressure/eviction).
	StoreRejected(storageKey string)
	// A provider or registry call failed; the operation was treated as a miss or skipped.
	// op ∈ {"get", "put", "open", "versions", "delete"}
	StorageFailure(op string, err error)
	// An entry was deleted on read.
	// reason ∈ {"corrupt", "stale_version", "decode", "unregistered_version"}
	SelfHeal(storageKey, reason string)
	// Network failed and a substitute response was produced.
	// kind ∈ {"cached_document", "offline_page", "offline_api"}
	FallbackServed(url, kind string)
	// A manifest file could not be pre-populated at install.
	PrecacheFailed(url string, err error)
	// A superseded store version was deleted at activation.
	VersionReclaimed(version string)
	// A deferred sync task ran (err is nil on success).
	SyncCompleted(tag string, err error)
}

// NopHooks is the default no-op.
type NopHooks struct{}

func (NopHooks) CacheHit(string, string)        {}
func (NopHooks) CacheMiss(string, string)       {}
func (NopHooks) Stored(string, string)          {}
func (NopHooks) StoreRejected(string)           {}
func (NopHooks) StorageFailure(string, error)   {}
func (NopHooks) SelfHeal(string, string)        {}
func (NopHooks) FallbackServed(string, string)  {}
func (NopHooks) PrecacheFailed(string, error)   {}
func (NopHooks) VersionReclaimed(string)        {}
func (NopHooks) SyncCompleted(string, error)    {}
