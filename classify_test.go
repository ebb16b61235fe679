package swcache

import "testing"

func TestClassify(t *testing.T) {
	c := NewClassifier(testConfig())
	tests := []struct {
		method, url string
		want        PolicyLabel
	}{
		{"GET", "https://app.test/api/math/generate", NeverCache},
		{"GET", "https://app.test/api/auth/login?next=/", NeverCache},
		{"POST", "https://app.test/static/app.css", NeverCache},
		{"put", "https://app.test/api/analytics/dashboard", NeverCache},
		{"DELETE", "/icons/a.png", NeverCache},
		{"GET", "https://app.test/static/app.css", StaticAsset},
		{"", "/assets/logo.svg", StaticAsset},
		{"GET", "https://cdn.other/icons/icon-72x72.png", StaticAsset},
		{"GET", "https://app.test/api/analytics/dashboard", DynamicEndpoint},
		{"GET", "https://app.test/api/auth/check", DynamicEndpoint},
		{"GET", "https://app.test/", Unclassified},
		{"GET", "https://app.test/api/users", Unclassified},
		// patterns match the path, not the query
		{"GET", "https://app.test/page?from=/static/", Unclassified},
	}
	for _, tt := range tests {
		if got := c.Classify(NewRequest(tt.method, tt.url)); got != tt.want {
			t.Errorf("Classify(%s %s) = %s, want %s", tt.method, tt.url, got, tt.want)
		}
	}
}

func TestNeverCacheWinsOverOtherLists(t *testing.T) {
	cfg := testConfig()
	cfg.NeverCachePatterns = []string{"/static/private/"}
	c := NewClassifier(cfg)

	if got := c.Classify(NewRequest("GET", "/static/private/key.js")); got != NeverCache {
		t.Fatalf("expected never_cache, got %s", got)
	}
	if got := c.Classify(NewRequest("GET", "/static/public/app.js")); got != StaticAsset {
		t.Fatalf("expected static_asset, got %s", got)
	}
}

func TestEmptyPatternsAreIgnored(t *testing.T) {
	cfg := testConfig()
	cfg.NeverCachePatterns = []string{"", "  "}
	c := NewClassifier(cfg)
	if got := c.Classify(NewRequest("GET", "/static/app.css")); got != StaticAsset {
		t.Fatalf("empty pattern must not match everything, got %s", got)
	}
}

func TestZeroClassifier(t *testing.T) {
	var c Classifier
	if got := c.Classify(NewRequest("GET", "/static/app.css")); got != Unclassified {
		t.Fatalf("expected unclassified, got %s", got)
	}
	if got := c.Classify(NewRequest("PATCH", "/")); got != NeverCache {
		t.Fatalf("mutating methods are never cached, got %s", got)
	}
}

func TestCacheableLabels(t *testing.T) {
	for l, want := range map[PolicyLabel]bool{
		Unclassified:    false,
		NeverCache:      false,
		StaticAsset:     true,
		DynamicEndpoint: true,
	} {
		if l.Cacheable() != want {
			t.Errorf("%s.Cacheable() = %v", l, !want)
		}
	}
}
