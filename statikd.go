// Package statikd serves static files with an in-memory content cache and
// conditional-request revalidation. The Server sequences fingerprinting, the
// revalidation decision and the cache engine; transport, routing and logging
// sinks are supplied by the caller.
package statikd

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/statikd/statikd/cache"
	"github.com/statikd/statikd/eventlog"
	"github.com/statikd/statikd/pkg/fingerprint"
	"github.com/statikd/statikd/pkg/revalidation"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

const serverName = "statikd"

type Config struct {
	// Root is the directory files are served from.
	Root string
	// Cache is the content cache engine. A nil engine disables caching;
	// every response is then served fresh.
	Cache *cache.Engine
	// DefaultTTL is the time-to-live for newly cached entries.
	// Zero or less means entries never expire on their own.
	DefaultTTL time.Duration
	// StreamingThreshold is the file size in bytes above which content is
	// streamed from disk and never cached. Zero or less disables streaming.
	StreamingThreshold int64
	// ChunkSize is the buffer size used when streaming. Defaults to 64 KiB.
	ChunkSize int
	// MaxAge is the Cache-Control max-age in seconds sent to clients.
	// Zero omits the header.
	MaxAge int
	// Events records per-request outcome events. Nil discards them.
	Events eventlog.Recorder
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
}

// Server decides, per request, whether to serve cached bytes, freshly read
// bytes, or a 304. It implements http.Handler.
type Server struct {
	root               string
	cache              *cache.Engine
	defaultTTL         time.Duration
	streamingThreshold int64
	chunkSize          int
	maxAge             int
	events             eventlog.Recorder
	log                zerolog.Logger
}

// New creates a Server for the given config.
func New(config Config) (*Server, error) {
	root, err := filepath.Abs(config.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve www root: %w", err)
	}

	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}
	logger = logger.With().Str("root", root).Logger()

	events := config.Events
	if events == nil {
		events = eventlog.Nop{}
	}
	chunkSize := config.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 64 << 10
	}

	return &Server{
		root:               root,
		cache:              config.Cache,
		defaultTTL:         config.DefaultTTL,
		streamingThreshold: config.StreamingThreshold,
		chunkSize:          chunkSize,
		maxAge:             config.MaxAge,
		events:             events,
		log:                logger,
	}, nil
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		s.sendError(w, r, http.StatusMethodNotAllowed, start)
		return
	}

	filePath, err := s.resolvePath(r.URL.Path)
	if err != nil {
		s.sendError(w, r, http.StatusForbidden, start)
		return
	}

	info, err := os.Stat(filePath)
	switch {
	case err != nil && os.IsNotExist(err):
		s.sendError(w, r, http.StatusNotFound, start)
		return
	case err != nil:
		s.log.Error().Err(err).Str("file", filePath).Msg("Could not stat file")
		s.sendError(w, r, http.StatusInternalServerError, start)
		return
	case info.IsDir():
		s.sendError(w, r, http.StatusNotFound, start)
		return
	}

	s.serveFile(w, r, filePath, info, start)
}

// serveFile sequences the core decision: fingerprint the file, consult the
// cache, decide, then produce the response. File reads happen outside any
// cache lock; two concurrent misses for the same file may both read from
// disk, and the second Set simply wins.
func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, filePath string, info os.FileInfo, start time.Time) {
	fp := fingerprint.Compute(info)
	cond := revalidation.ConditionalFromRequest(r)

	status := CacheStatusDisabled
	var cached *revalidation.CachedEntry
	if s.cache != nil {
		status = CacheStatusMiss
		if view, ok := s.cache.Get(filePath); ok {
			cached = &revalidation.CachedEntry{
				Fingerprint: view.Fingerprint,
				Value:       view.Value,
			}
		}
	}

	decision := revalidation.Decide(cond, fp, cached, info.Size(), s.streamingThreshold)
	if decision.Stale {
		s.cache.Invalidate(filePath)
		status = CacheStatusStale
	}

	h := w.Header()
	h.Set("Server", serverName)
	h.Set("ETag", fp.Quoted())
	h.Set("Last-Modified", fp.HTTPLastModified())
	if s.maxAge > 0 {
		h.Set("Cache-Control", fmt.Sprintf("max-age=%d", s.maxAge))
	}

	switch decision.Outcome {
	case revalidation.NotModified:
		status = CacheStatusBypass
		h.Set("X-Cache-Status", string(status))
		w.WriteHeader(http.StatusNotModified)
		s.finish(r, http.StatusNotModified, 0, status, start)

	case revalidation.ServeCached:
		status = CacheStatusHit
		s.writeContent(w, filePath, status, cached.Value)
		s.finish(r, http.StatusOK, int64(len(cached.Value)), status, start)

	case revalidation.ServeAndCache:
		value, err := os.ReadFile(filePath)
		if err != nil {
			// the file vanished between stat and read
			s.log.Error().Err(err).Str("file", filePath).Msg("Could not read file")
			s.sendError(w, r, http.StatusInternalServerError, start)
			return
		}
		if s.cache != nil {
			s.cache.Set(filePath, value, fp.ETag, s.defaultTTL)
		}
		s.writeContent(w, filePath, status, value)
		s.finish(r, http.StatusOK, int64(len(value)), status, start)

	case revalidation.ServeUncachedStreaming:
		status = CacheStatusStreaming
		s.streamFile(w, r, filePath, info, status, start)
	}
}

func (s *Server) writeContent(w http.ResponseWriter, filePath string, status CacheStatus, value []byte) {
	h := w.Header()
	h.Set("Content-Type", contentTypeFor(filePath))
	h.Set("Content-Length", strconv.Itoa(len(value)))
	h.Set("X-Cache-Status", string(status))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(value); err != nil {
		s.log.Error().Err(err).Msg("Could not write response body to client")
	}
}

// streamFile serves a large file in chunks, bypassing the cache to bound
// memory use.
func (s *Server) streamFile(w http.ResponseWriter, r *http.Request, filePath string, info os.FileInfo, status CacheStatus, start time.Time) {
	f, err := os.Open(filePath)
	if err != nil {
		s.log.Error().Err(err).Str("file", filePath).Msg("Could not open file for streaming")
		s.sendError(w, r, http.StatusInternalServerError, start)
		return
	}
	defer f.Close()

	h := w.Header()
	h.Set("Content-Type", contentTypeFor(filePath))
	h.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	h.Set("X-Cache-Status", string(status))
	w.WriteHeader(http.StatusOK)

	bytesWritten, err := io.CopyBuffer(w, f, make([]byte, s.chunkSize))
	if err != nil {
		s.log.Error().Err(err).Str("file", filePath).Msg("Could not stream file to client")
	}
	s.finish(r, http.StatusOK, bytesWritten, status, start)
}

func (s *Server) sendError(w http.ResponseWriter, r *http.Request, statusCode int, start time.Time) {
	body := fmt.Sprintf("<h1>%d %s</h1>", statusCode, http.StatusText(statusCode))
	h := w.Header()
	h.Set("Server", serverName)
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(statusCode)
	if _, err := io.WriteString(w, body); err != nil {
		s.log.Error().Err(err).Msg("Could not write error response to client")
	}
	s.finish(r, statusCode, int64(len(body)), cacheStatusNone, start)
}

// finish emits the outcome of a request: one log line, one metrics sample
// and one event-log record.
func (s *Server) finish(r *http.Request, statusCode int, bytesSent int64, status CacheStatus, start time.Time) {
	elapsed := time.Since(start)

	s.logger(r).Debug().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("sourceIp", getRequestSourceIp(r)).
		Int("status", statusCode).
		Str("cache", string(status)).
		Int64("bytes", bytesSent).
		Dur("elapsed", elapsed).
		Msg("Sending response to client")

	requestsTotal.WithLabelValues(strconv.Itoa(statusCode), string(status)).Inc()
	requestDuration.WithLabelValues(string(status)).Observe(elapsed.Seconds())

	err := s.events.Record(eventlog.Event{
		Time:           start,
		ClientIP:       getRequestSourceIp(r),
		Method:         r.Method,
		Path:           r.URL.Path,
		Status:         statusCode,
		ResponseTimeMs: float64(elapsed.Microseconds()) / 1000,
		BytesSent:      bytesSent,
		CacheStatus:    string(status),
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("Could not record request event")
	}
}

// logger returns the request-scoped logger when the transport layer injected
// one, falling back to the server logger.
func (s *Server) logger(r *http.Request) *zerolog.Logger {
	logger := hlog.FromRequest(r)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &s.log
	}
	return logger
}

func getRequestSourceIp(r *http.Request) string {
	// RemoteAddr is in the format:
	// 1.2.3.4:10000 for ipv4
	// [1:2:3]:10000 for ipv6
	ipAndPort := r.RemoteAddr
	portSepIdx := strings.LastIndex(ipAndPort, ":")
	// if not found, return
	if portSepIdx < 0 {
		return ipAndPort
	}
	return ipAndPort[:portSepIdx]
}
