// Package swcache implements an offline caching agent that sits between a web
// application and the network. Every request the application makes passes
// through Agent.Intercept, which decides whether bytes come from a versioned
// local store, from the network, or from an offline fallback.
//
// Components:
//   - Classifier: labels a request NeverCache, StaticAsset, DynamicEndpoint or Unclassified.
//   - Manager/Store: versioned (method, url) -> response snapshots on top of a
//     byte Provider (memory, ristretto, bigcache, redis, sqlite) and a Codec.
//   - Interception: cache-first lookup, network fetch, write-back of cacheable
//     200 same-origin responses, offline fallback on transport failure.
//   - Lifecycle: Idle -> Installed -> Active. Install pre-populates the store for
//     Config.Version; activate deletes every other version and makes it current.
//
// Keys:
//
//	entry:<ns>:<version>:<method> <url>
//
// Deleting a version bumps its generation in the versions.Registry. Entries
// carry the generation they were written under and are dropped on read when it
// no longer matches.
//
// Typical use:
//
//	agent, _ := swcache.New(swcache.Options{
//	    Config:  swcache.DefaultConfig(),
//	    Fetcher: &swcache.HTTPFetcher{Origin: "https://app.example"},
//	})
//	_ = agent.Start(ctx)          // install + activate
//	resp, err := agent.Intercept(ctx, swcache.NewRequest("GET", "/static/app.css"))
package swcache
