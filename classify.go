package swcache

import (
	"net/http"
	"strings"
)

// PolicyLabel is the classifier's decision about whether/how a request may be cached.
type PolicyLabel int

const (
	// Unclassified requests are looked up but never stored.
	Unclassified PolicyLabel = iota
	// NeverCache requests bypass the store entirely.
	NeverCache
	StaticAsset
	DynamicEndpoint
)

func (l PolicyLabel) String() string {
	switch l {
	case NeverCache:
		return "never_cache"
	case StaticAsset:
		return "static_asset"
	case DynamicEndpoint:
		return "dynamic_endpoint"
	default:
		return "unclassified"
	}
}

// Cacheable reports whether responses under this label may be written to the store.
func (l PolicyLabel) Cacheable() bool {
	return l == StaticAsset || l == DynamicEndpoint
}

// Classifier maps a request to a PolicyLabel. The zero value labels every GET Unclassified.
type Classifier struct {
	never   []string
	static  []string
	dynamic []string
}

func NewClassifier(cfg Config) Classifier {
	return Classifier{
		never:   compact(cfg.NeverCachePatterns),
		static:  compact(cfg.StaticAssetMarkers),
		dynamic: compact(cfg.DynamicCacheablePatterns),
	}
}

// Classify evaluates, in order: method, never-cache list, static markers,
// dynamic list. Never-cache wins over everything else.
func (c Classifier) Classify(req Request) PolicyLabel {
	// only GET is read by the store
	if req.method() != http.MethodGet {
		return NeverCache
	}
	p := req.path()
	switch {
	case containsAny(p, c.never):
		return NeverCache
	case containsAny(p, c.static):
		return StaticAsset
	case containsAny(p, c.dynamic):
		return DynamicEndpoint
	default:
		return Unclassified
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// compact drops empty patterns; an empty substring would match every path.
func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
