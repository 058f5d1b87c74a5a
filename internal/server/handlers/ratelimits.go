package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
)

// RateLimitEntry is one provider's limiter counters as exposed over HTTP.
type RateLimitEntry struct {
	Provider         string `json:"provider"`
	TotalCalls       int64  `json:"total_calls"`
	SuccessCalls     int64  `json:"success_calls"`
	RateLimitedCalls int64  `json:"rate_limited_calls"`
	TotalWaitMS      int64  `json:"total_wait_ms"`
}

// RateLimitsResponse is the GET /v1/ratelimits response body.
type RateLimitsResponse struct {
	Providers []RateLimitEntry `json:"providers"`
	Timestamp time.Time        `json:"timestamp"`
}

// RateLimits reports limiter counters for every provider used so far.
func (api *CompletionAPI) RateLimits(w http.ResponseWriter, r *http.Request) {
	if api == nil || api.Service == nil {
		respondWithError(w, r, errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "gateway not initialized"))
		return
	}

	snapshot := api.Service.Stats()
	limits := api.Service.Limits()

	entries := make([]RateLimitEntry, 0, len(snapshot))
	for _, provider := range limits.Providers() {
		stats := snapshot[provider]
		entries = append(entries, RateLimitEntry{
			Provider:         provider,
			TotalCalls:       stats.TotalCalls,
			SuccessCalls:     stats.SuccessCalls,
			RateLimitedCalls: stats.RateLimitedCalls,
			TotalWaitMS:      stats.TotalWaitTime.Milliseconds(),
		})
	}

	response := RateLimitsResponse{
		Providers: entries,
		Timestamp: time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
