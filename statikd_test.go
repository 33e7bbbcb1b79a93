package statikd

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/statikd/statikd/cache"
)

func writeFile(t *testing.T, root, name, content string) string {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestServer(t *testing.T, config Config) *Server {
	t.Helper()
	if config.Root == "" {
		config.Root = t.TempDir()
		writeFile(t, config.Root, "index.html", "<h1>hello</h1>")
	}
	server, err := New(config)
	if err != nil {
		t.Fatal(err)
	}
	return server
}

func get(server *Server, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)
	return rr
}

func TestMissThenHit(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.html", "<h1>hello</h1>")
	server := newTestServer(t, Config{Root: root, Cache: cache.New(cache.Config{MaxItems: 8})})

	first := get(server, "/index.html", nil)
	if first.Code != http.StatusOK {
		t.Fatalf("first status is %d", first.Code)
	}
	if cs := first.Header().Get("X-Cache-Status"); cs != "MISS" {
		t.Fatalf("first X-Cache-Status is %q", cs)
	}
	if etag := first.Header().Get("ETag"); etag == "" {
		t.Fatal("no ETag on first response")
	}
	if cl := first.Header().Get("Content-Length"); cl != "14" {
		t.Fatalf("Content-Length is %q", cl)
	}

	second := get(server, "/index.html", nil)
	if cs := second.Header().Get("X-Cache-Status"); cs != "HIT" {
		t.Fatalf("second X-Cache-Status is %q", cs)
	}
	if second.Body.String() != "<h1>hello</h1>" {
		t.Fatalf("second body is %q", second.Body.String())
	}
	if second.Header().Get("ETag") != first.Header().Get("ETag") {
		t.Fatal("etag changed between identical requests")
	}
}

func TestStaleAfterModification(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "index.html", "<h1>hello</h1>")
	server := newTestServer(t, Config{Root: root, Cache: cache.New(cache.Config{MaxItems: 8})})

	first := get(server, "/index.html", nil)
	get(server, "/index.html", nil)

	// modify the file; bump mtime past etag resolution
	if err := os.WriteFile(path, []byte("<h1>bye</h1>"), 0644); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}

	third := get(server, "/index.html", nil)
	if third.Code != http.StatusOK {
		t.Fatalf("status is %d", third.Code)
	}
	if cs := third.Header().Get("X-Cache-Status"); cs != "STALE" {
		t.Fatalf("X-Cache-Status is %q", cs)
	}
	if third.Header().Get("ETag") == first.Header().Get("ETag") {
		t.Fatal("etag did not change after modification")
	}
	if third.Body.String() != "<h1>bye</h1>" {
		t.Fatalf("body is %q", third.Body.String())
	}

	// the fresh content is now cached again
	fourth := get(server, "/index.html", nil)
	if cs := fourth.Header().Get("X-Cache-Status"); cs != "HIT" {
		t.Fatalf("X-Cache-Status after stale refresh is %q", cs)
	}
}

func TestIfNoneMatchNotModified(t *testing.T) {
	server := newTestServer(t, Config{Cache: cache.New(cache.Config{MaxItems: 8})})

	first := get(server, "/index.html", nil)
	etag := first.Header().Get("ETag")

	second := get(server, "/index.html", map[string]string{"If-None-Match": etag})
	if second.Code != http.StatusNotModified {
		t.Fatalf("status is %d, want 304", second.Code)
	}
	if second.Body.Len() != 0 {
		t.Fatalf("304 body has %d bytes", second.Body.Len())
	}
	if second.Header().Get("ETag") != etag {
		t.Fatal("ETag header missing on 304")
	}
	if cs := second.Header().Get("X-Cache-Status"); cs != "BYPASS" {
		t.Fatalf("X-Cache-Status is %q", cs)
	}
}

func TestIfModifiedSinceNotModified(t *testing.T) {
	server := newTestServer(t, Config{Cache: cache.New(cache.Config{MaxItems: 8})})

	first := get(server, "/index.html", nil)
	lastModified := first.Header().Get("Last-Modified")
	if lastModified == "" {
		t.Fatal("no Last-Modified header")
	}

	second := get(server, "/index.html", map[string]string{"If-Modified-Since": lastModified})
	if second.Code != http.StatusNotModified {
		t.Fatalf("status is %d, want 304", second.Code)
	}

	// an unparseable value is ignored
	third := get(server, "/index.html", map[string]string{"If-Modified-Since": "garbage"})
	if third.Code != http.StatusOK {
		t.Fatalf("status is %d, want 200", third.Code)
	}
}

func TestEtagPrecedenceOverIfModifiedSince(t *testing.T) {
	server := newTestServer(t, Config{Cache: cache.New(cache.Config{MaxItems: 8})})

	first := get(server, "/index.html", nil)
	etag := first.Header().Get("ETag")

	// If-Modified-Since alone would say "modified", but the matching etag wins
	res := get(server, "/index.html", map[string]string{
		"If-None-Match":     etag,
		"If-Modified-Since": time.Now().Add(-24 * time.Hour).Format(http.TimeFormat),
	})
	if res.Code != http.StatusNotModified {
		t.Fatalf("status is %d, want 304", res.Code)
	}
}

func TestStreamingLargeFile(t *testing.T) {
	root := t.TempDir()
	content := make([]byte, 1000)
	for i := range content {
		content[i] = byte('a' + i%26)
	}
	if err := os.WriteFile(filepath.Join(root, "large.bin"), content, 0644); err != nil {
		t.Fatal(err)
	}
	engine := cache.New(cache.Config{MaxItems: 8})
	server := newTestServer(t, Config{
		Root:               root,
		Cache:              engine,
		StreamingThreshold: 100,
		ChunkSize:          64,
	})

	res := get(server, "/large.bin", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("status is %d", res.Code)
	}
	if cs := res.Header().Get("X-Cache-Status"); cs != "STREAMING" {
		t.Fatalf("X-Cache-Status is %q", cs)
	}
	if res.Body.Len() != len(content) {
		t.Fatalf("body has %d bytes, want %d", res.Body.Len(), len(content))
	}
	if stats := engine.Stats(); stats.ItemCount != 0 {
		t.Fatalf("streamed file was cached: %d items", stats.ItemCount)
	}

	// streaming responses still carry validators, so 304 works
	etag := res.Header().Get("ETag")
	revalidated := get(server, "/large.bin", map[string]string{"If-None-Match": etag})
	if revalidated.Code != http.StatusNotModified {
		t.Fatalf("revalidation status is %d", revalidated.Code)
	}
}

func TestCacheDisabled(t *testing.T) {
	server := newTestServer(t, Config{})

	for i := 0; i < 2; i++ {
		res := get(server, "/index.html", nil)
		if res.Code != http.StatusOK {
			t.Fatalf("status is %d", res.Code)
		}
		if cs := res.Header().Get("X-Cache-Status"); cs != "DISABLED" {
			t.Fatalf("X-Cache-Status is %q", cs)
		}
	}
}

func TestCacheDisabledNotModified(t *testing.T) {
	server := newTestServer(t, Config{})

	first := get(server, "/index.html", nil)
	etag := first.Header().Get("ETag")

	// validation works without a cache engine and still reports BYPASS
	res := get(server, "/index.html", map[string]string{"If-None-Match": etag})
	if res.Code != http.StatusNotModified {
		t.Fatalf("status is %d, want 304", res.Code)
	}
	if cs := res.Header().Get("X-Cache-Status"); cs != "BYPASS" {
		t.Fatalf("X-Cache-Status is %q", cs)
	}
}

func TestRootServesIndex(t *testing.T) {
	server := newTestServer(t, Config{Cache: cache.New(cache.Config{MaxItems: 8})})

	res := get(server, "/", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("status is %d", res.Code)
	}
	if res.Body.String() != "<h1>hello</h1>" {
		t.Fatalf("body is %q", res.Body.String())
	}
	if ct := res.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Fatalf("Content-Type is %q", ct)
	}
}

func TestNotFound(t *testing.T) {
	server := newTestServer(t, Config{})

	res := get(server, "/missing.html", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("status is %d", res.Code)
	}
}

func TestDirectoryIsNotFound(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, root, "index.html", "x")
	server := newTestServer(t, Config{Root: root})

	if res := get(server, "/sub", nil); res.Code != http.StatusNotFound {
		t.Fatalf("status is %d", res.Code)
	}
}

func TestTraversalForbidden(t *testing.T) {
	server := newTestServer(t, Config{})

	res := get(server, "/../secret.txt", nil)
	if res.Code != http.StatusForbidden {
		t.Fatalf("status is %d, want 403", res.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	server := newTestServer(t, Config{})

	req := httptest.NewRequest("POST", "/index.html", nil)
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status is %d, want 405", rr.Code)
	}
	if allow := rr.Header().Get("Allow"); allow != "GET" {
		t.Fatalf("Allow header is %q", allow)
	}
}

func TestCacheControlMaxAge(t *testing.T) {
	server := newTestServer(t, Config{MaxAge: 60})

	res := get(server, "/index.html", nil)
	if cc := res.Header().Get("Cache-Control"); cc != "max-age=60" {
		t.Fatalf("Cache-Control is %q", cc)
	}
}

func TestTTLExpiryEndToEnd(t *testing.T) {
	server := newTestServer(t, Config{
		Cache:      cache.New(cache.Config{MaxItems: 8}),
		DefaultTTL: 100 * time.Millisecond,
	})

	get(server, "/index.html", nil)
	time.Sleep(200 * time.Millisecond)

	res := get(server, "/index.html", nil)
	// the cached entry expired, so the file is read and cached again
	if cs := res.Header().Get("X-Cache-Status"); cs != "MISS" {
		t.Fatalf("X-Cache-Status is %q", cs)
	}
}
