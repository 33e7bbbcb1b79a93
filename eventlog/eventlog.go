// Package eventlog persists per-request outcome events. The server emits one
// event per response; recorders store them for offline analysis.
package eventlog

import "time"

// Event is one request outcome.
type Event struct {
	Time           time.Time
	ClientIP       string
	Method         string
	Path           string
	Status         int
	ResponseTimeMs float64
	BytesSent      int64
	CacheStatus    string
}

// Recorder stores request events.
//
// Implementations must be safe for concurrent use.
type Recorder interface {
	Record(Event) error
	Close() error
}

// Summary aggregates recorded events.
type Summary struct {
	Requests          int64   `json:"requests"`
	CacheHits         int64   `json:"cacheHits"`
	HitRate           float64 `json:"hitRate"`
	AvgResponseTimeMs float64 `json:"avgResponseTimeMs"`
	BytesSent         int64   `json:"bytesSent"`
}

// Summarizer is implemented by recorders that can aggregate their events.
type Summarizer interface {
	Summary() (Summary, error)
}

// Nop discards all events.
type Nop struct{}

func (Nop) Record(Event) error { return nil }
func (Nop) Close() error       { return nil }
