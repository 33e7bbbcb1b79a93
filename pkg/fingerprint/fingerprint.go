// Package fingerprint derives content validators from file metadata.
//
// The etag is a function of file size and modification time only; two files
// with the same size modified within the same second are indistinguishable.
// That is an accepted approximation for static content, chosen over hashing
// file bytes so that fingerprinting never reads the file itself.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"net/http"
	"time"
)

// etagLen is the length of the hex-encoded etag.
const etagLen = 16

// Fingerprint identifies one on-disk state of a file. It is recomputed for
// every request and never stored as request state.
type Fingerprint struct {
	// ETag is the unquoted entity tag.
	ETag string
	// LastModified is the file modification time truncated to whole seconds,
	// matching the resolution of the Last-Modified header.
	LastModified time.Time
}

// Compute derives the fingerprint for a stat result. The modification time is
// truncated to seconds before hashing so that the etag and the Last-Modified
// header always agree on what "modified" means.
func Compute(info fs.FileInfo) Fingerprint {
	mod := info.ModTime().UTC().Truncate(time.Second)
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d-%d", info.Size(), mod.Unix())))
	return Fingerprint{
		ETag:         hex.EncodeToString(sum[:])[:etagLen],
		LastModified: mod,
	}
}

// Quoted returns the etag in the quoted form used on the wire.
func (f Fingerprint) Quoted() string {
	return `"` + f.ETag + `"`
}

// HTTPLastModified renders the modification time for the Last-Modified header.
func (f Fingerprint) HTTPLastModified() string {
	return f.LastModified.Format(http.TimeFormat)
}
