package eventlog

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteLog records events in a SQLite database, one row per request.
type SQLiteLog struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteLog opens (or creates) the event database at filename.
// Use "file::memory:" for an in-memory database.
func NewSQLiteLog(filename string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, err
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS requests (
			ts INTEGER,
			client_ip TEXT,
			method TEXT,
			path TEXT,
			status INTEGER,
			response_time_ms REAL,
			bytes_sent INTEGER,
			cache_status TEXT
		)`,
		"CREATE INDEX IF NOT EXISTS requests_ts_idx ON requests (ts)",
		"PRAGMA journal_mode=WAL",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &SQLiteLog{
		db:         db,
		writeMutex: &sync.Mutex{},
	}, nil
}

func (s *SQLiteLog) Record(e Event) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec(
		"INSERT INTO requests (ts, client_ip, method, path, status, response_time_ms, bytes_sent, cache_status) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		e.Time.UnixMilli(), e.ClientIP, e.Method, e.Path, e.Status, e.ResponseTimeMs, e.BytesSent, e.CacheStatus,
	)
	return err
}

// Summary aggregates all recorded events. The hit rate counts HIT events
// against all requests that consulted the cache (HIT, MISS and STALE).
func (s *SQLiteLog) Summary() (Summary, error) {
	var sum Summary
	var avg, hits, lookups sql.NullFloat64
	var bytes sql.NullInt64
	err := s.db.QueryRow(
		`SELECT COUNT(*),
			AVG(response_time_ms),
			SUM(bytes_sent),
			SUM(CASE WHEN cache_status = 'HIT' THEN 1 ELSE 0 END),
			SUM(CASE WHEN cache_status IN ('HIT', 'MISS', 'STALE') THEN 1 ELSE 0 END)
		FROM requests`,
	).Scan(&sum.Requests, &avg, &bytes, &hits, &lookups)
	if err != nil {
		return Summary{}, err
	}
	sum.AvgResponseTimeMs = avg.Float64
	sum.BytesSent = bytes.Int64
	sum.CacheHits = int64(hits.Float64)
	if lookups.Float64 > 0 {
		sum.HitRate = hits.Float64 / lookups.Float64
	}
	return sum, nil
}

// Prune deletes events older than the given age and returns how many rows
// were removed.
func (s *SQLiteLog) Prune(maxAge time.Duration) (int64, error) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	cutoff := time.Now().Add(-maxAge).UnixMilli()
	res, err := s.db.Exec("DELETE FROM requests WHERE ts < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteLog) Close() error {
	return s.db.Close()
}
