// Package revalidation decides how to answer a file request given the
// client's conditional headers, the file's current fingerprint and an
// optional cached entry. Decide is a pure function; it performs no I/O and
// never touches the cache itself.
package revalidation

import (
	"net/http"
	"strings"

	"github.com/statikd/statikd/pkg/fingerprint"
)

// Outcome is the decision for one request. Callers must branch on every
// value; there is deliberately no boolean shortcut.
type Outcome int

const (
	// NotModified means the client's copy is still valid; answer 304.
	NotModified Outcome = iota
	// ServeCached means the cached bytes match the file on disk; serve them
	// without reading storage.
	ServeCached
	// ServeAndCache means the file must be read fresh and the result stored.
	ServeAndCache
	// ServeUncachedStreaming means the file is too large to cache; stream it
	// from disk and leave the cache alone.
	ServeUncachedStreaming
)

func (o Outcome) String() string {
	switch o {
	case NotModified:
		return "not-modified"
	case ServeCached:
		return "serve-cached"
	case ServeAndCache:
		return "serve-and-cache"
	case ServeUncachedStreaming:
		return "serve-uncached-streaming"
	}
	return "unknown"
}

// Conditional carries the raw conditional header values from the request.
// Empty strings mean the header was absent.
type Conditional struct {
	IfNoneMatch     string
	IfModifiedSince string
}

// ConditionalFromRequest extracts the conditional headers from r.
func ConditionalFromRequest(r *http.Request) Conditional {
	return Conditional{
		IfNoneMatch:     r.Header.Get("If-None-Match"),
		IfModifiedSince: r.Header.Get("If-Modified-Since"),
	}
}

// CachedEntry is the decider's read-only view of a cache entry, as returned
// by a single engine Get. The decider never assumes the entry is still
// resident by the time a later cache call runs.
type CachedEntry struct {
	Fingerprint string
	Value       []byte
}

// Decision is the result of Decide.
type Decision struct {
	Outcome Outcome
	// Stale reports that the cached entry no longer matches the file on disk
	// and must be invalidated before serving fresh content.
	Stale bool
}

// Decide picks the outcome for one request. The decision order is fixed:
// If-None-Match takes precedence over If-Modified-Since, then the cached
// fingerprint is compared against the current one, then the file is served
// fresh, streamed instead of cached when it exceeds streamingThreshold
// (a threshold of zero or less disables streaming).
//
// A malformed If-Modified-Since value is treated as absent, not as an error.
// A cached entry with an empty value counts as no entry at all.
func Decide(cond Conditional, current fingerprint.Fingerprint, cached *CachedEntry, fileSize, streamingThreshold int64) Decision {
	if cond.IfNoneMatch != "" {
		if etagMatches(cond.IfNoneMatch, current.ETag) {
			return Decision{Outcome: NotModified}
		}
	} else if cond.IfModifiedSince != "" {
		if since, err := http.ParseTime(cond.IfModifiedSince); err == nil && !current.LastModified.After(since) {
			return Decision{Outcome: NotModified}
		}
	}

	if cached != nil && len(cached.Value) > 0 {
		if cached.Fingerprint == current.ETag {
			return Decision{Outcome: ServeCached}
		}
		return Decision{Outcome: serveFresh(fileSize, streamingThreshold), Stale: true}
	}

	return Decision{Outcome: serveFresh(fileSize, streamingThreshold)}
}

func serveFresh(fileSize, streamingThreshold int64) Outcome {
	if streamingThreshold > 0 && fileSize > streamingThreshold {
		return ServeUncachedStreaming
	}
	return ServeAndCache
}

// etagMatches reports whether the current etag is a member of an
// If-None-Match list. Weak validator prefixes and quoting are stripped from
// each listed token, and "*" matches any current representation.
func etagMatches(headerValue, etag string) bool {
	for _, token := range strings.Split(headerValue, ",") {
		token = strings.TrimSpace(token)
		if token == "*" {
			return true
		}
		token = strings.TrimPrefix(token, "W/")
		token = strings.Trim(token, `"`)
		if token == etag {
			return true
		}
	}
	return false
}
