package swcache

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config is the static agent configuration, fixed per deployed build.
type Config struct {
	// Version labels the build. Exactly one version is current after activation.
	Version string
	// Origin of the application, e.g. "https://app.example". Relative request
	// URLs are resolved against it; only same-origin responses are stored.
	Origin string
	// APIPrefix marks API paths that get the JSON offline response. Default "/api/".
	APIPrefix string
	// RootDocument is served to navigations when offline. Default "/".
	RootDocument string

	// StaticManifest is pre-populated at install, in order, best-effort.
	StaticManifest []string
	// NeverCachePatterns are path substrings that always bypass the store.
	// Security-sensitive and live-state endpoints belong here.
	NeverCachePatterns []string
	// StaticAssetMarkers are path segments identifying static assets.
	StaticAssetMarkers []string
	// DynamicCacheablePatterns are read-only API paths safe to cache.
	DynamicCacheablePatterns []string

	// AppName titles the offline page and push notifications.
	AppName string
	// Language selects the offline copy (BCP 47). Requests carrying
	// Accept-Language override it.
	Language string
	// EntryTTL bounds entry lifetime in the provider. 0 keeps entries until
	// their version is deleted.
	EntryTTL time.Duration
}

// DefaultConfig returns the configuration the agent ships with.
func DefaultConfig() Config {
	return Config{
		Version:      "v1.0.0",
		APIPrefix:    "/api/",
		RootDocument: "/",
		StaticManifest: []string{
			"/",
			"/index.html",
			"/manifest.json",
			"/favicon.ico",
		},
		NeverCachePatterns: []string{
			"/api/math/generate",
			"/api/ktp/generate",
			"/api/auth/login",
			"/api/auth/register",
		},
		StaticAssetMarkers: []string{
			"/static/",
			"/icons/",
			"/assets/",
		},
		DynamicCacheablePatterns: []string{
			"/api/analytics/dashboard",
			"/api/auth/check",
		},
		AppName:  "Learning Materials Generator",
		Language: "en",
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Version) == "" {
		return errors.New("swcache: config version is required")
	}
	if c.Origin != "" {
		u, err := url.Parse(c.Origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("swcache: config origin must be an absolute URL")
		}
	}
	if c.EntryTTL < 0 {
		return errors.New("swcache: config entry TTL must not be negative")
	}
	return nil
}

func (c Config) withDefaults() Config {
	c.APIPrefix = coalesce(c.APIPrefix, "/api/")
	c.RootDocument = coalesce(c.RootDocument, "/")
	c.AppName = coalesce(c.AppName, "App")
	c.Origin = strings.TrimRight(c.Origin, "/")
	return c
}

// resolve makes rawURL absolute against Origin and drops any fragment.
// Without an Origin, relative URLs are kept as-is.
func (c Config) resolve(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if i := strings.IndexByte(rawURL, '#'); i >= 0 {
		rawURL = rawURL[:i]
	}
	if c.Origin != "" && strings.HasPrefix(rawURL, "/") && !strings.HasPrefix(rawURL, "//") {
		return c.Origin + rawURL
	}
	return rawURL
}

// sameOrigin reports whether rawURL belongs to the application origin.
// Host-less URLs always do.
func (c Config) sameOrigin(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Host == "" {
		return true
	}
	if c.Origin == "" {
		return false
	}
	o, err := url.Parse(c.Origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, o.Scheme) && strings.EqualFold(u.Host, o.Host)
}
