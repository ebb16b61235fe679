// Package keys derives provider keys for store entries.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
)

// maxURLLen bounds the URL part of a key; longer URLs are replaced by a digest.
// Redis and bigcache cope with long keys but sqlite primary keys and log lines do not.
const maxURLLen = 512

// Entry returns the provider key for one (method, url) entry of a store version:
//
//	entry:<ns>:<version>:<method> <url>
func Entry(ns, version, method, url string) string {
	if len(url) > maxURLLen {
		sum := sha256.Sum256([]byte(url))
		url = "sha256:" + hex.EncodeToString(sum[:16])
	}
	return "entry:" + ns + ":" + version + ":" + method + " " + url
}

// Version returns the metadata key for a store version, used for generations.
func Version(ns, version string) string {
	return "version:" + ns + ":" + version
}
