package statikd

import (
	"encoding/json"
	"net/http"

	"github.com/statikd/statikd/cache"
	"github.com/statikd/statikd/eventlog"
)

// StatsHandler serves a JSON snapshot of the cache engine counters and, when
// the event recorder supports it, an aggregate of recorded requests.
func (s *Server) StatsHandler(w http.ResponseWriter, r *http.Request) {
	var response struct {
		Cache    *cache.Stats      `json:"cache,omitempty"`
		Requests *eventlog.Summary `json:"requests,omitempty"`
	}

	if s.cache != nil {
		stats := s.cache.Stats()
		response.Cache = &stats
	}
	if summarizer, ok := s.events.(eventlog.Summarizer); ok {
		if summary, err := summarizer.Summary(); err == nil {
			response.Requests = &summary
		} else {
			s.log.Warn().Err(err).Msg("Could not summarize request events")
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.log.Error().Err(err).Msg("Could not write stats response")
	}
}
