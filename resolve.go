package statikd

import (
	"errors"
	"mime"
	"path"
	"path/filepath"
	"strings"
)

var errForbidden = errors.New("path escapes www root")

// resolvePath maps a request path onto an absolute file path under the www
// root. The root path "/" serves index.html. Any path containing a parent
// reference is rejected outright rather than cleaned.
func (s *Server) resolvePath(urlPath string) (string, error) {
	if urlPath == "/" || urlPath == "" {
		urlPath = "/index.html"
	}
	for _, part := range strings.Split(urlPath, "/") {
		if part == ".." {
			return "", errForbidden
		}
	}
	cleaned := path.Clean("/" + urlPath)
	resolved := filepath.Join(s.root, filepath.FromSlash(cleaned))
	// Join cleans the path, but never serve anything outside the root
	if resolved != s.root && !strings.HasPrefix(resolved, s.root+string(filepath.Separator)) {
		return "", errForbidden
	}
	return resolved, nil
}

// contentTypeFor returns the Content-Type for a file based on its extension.
func contentTypeFor(filePath string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filePath)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
