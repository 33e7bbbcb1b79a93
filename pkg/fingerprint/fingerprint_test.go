package fingerprint

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func statFile(t *testing.T, path string) os.FileInfo {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	return info
}

func TestComputeIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.html")
	if err := os.WriteFile(path, []byte("<h1>hello</h1>"), 0644); err != nil {
		t.Fatal(err)
	}

	first := Compute(statFile(t, path))
	second := Compute(statFile(t, path))

	if first.ETag != second.ETag {
		t.Fatalf("etag changed on unchanged file: %q vs %q", first.ETag, second.ETag)
	}
	if !first.LastModified.Equal(second.LastModified) {
		t.Fatalf("last-modified changed on unchanged file: %v vs %v", first.LastModified, second.LastModified)
	}
}

func TestComputeChangesWithMtime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.html")
	if err := os.WriteFile(path, []byte("<h1>hello</h1>"), 0644); err != nil {
		t.Fatal(err)
	}
	before := Compute(statFile(t, path))

	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	after := Compute(statFile(t, path))

	if before.ETag == after.ETag {
		t.Fatalf("etag did not change with mtime: %q", before.ETag)
	}
}

func TestComputeChangesWithSize(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "small.txt")
	large := filepath.Join(dir, "large.txt")
	mtime := time.Now().Add(-time.Hour)
	for path, content := range map[string]string{small: "ab", large: "abcd"} {
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}

	if Compute(statFile(t, small)).ETag == Compute(statFile(t, large)).ETag {
		t.Fatal("files of different sizes share an etag")
	}
}

func TestLastModifiedSecondGranularity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	fp := Compute(statFile(t, path))

	if fp.LastModified.Nanosecond() != 0 {
		t.Fatalf("last-modified keeps sub-second precision: %v", fp.LastModified)
	}
	if fp.LastModified.Location() != time.UTC {
		t.Fatalf("last-modified not in UTC: %v", fp.LastModified)
	}
}

func TestQuoted(t *testing.T) {
	fp := Fingerprint{ETag: "abc123"}
	if fp.Quoted() != `"abc123"` {
		t.Fatalf("quoted etag is %s", fp.Quoted())
	}
}

func TestETagLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := len(Compute(statFile(t, path)).ETag); got != etagLen {
		t.Fatalf("etag length is %d, want %d", got, etagLen)
	}
}
