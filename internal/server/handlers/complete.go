package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/evalgate/evalgate/internal/gateway"
	"github.com/evalgate/evalgate/internal/gateway/contract"
	"github.com/evalgate/evalgate/internal/metrics"
)

// maxPromptBytes bounds the request body read.
const maxPromptBytes = 1 << 20

// CompletionAPI serves the gateway's completion and admin endpoints.
type CompletionAPI struct {
	Service *gateway.Service
}

// CompleteRequest is the POST /v1/complete request body.
type CompleteRequest struct {
	Prompt   string `json:"prompt"`
	Provider string `json:"provider,omitempty"`
	Contract string `json:"contract,omitempty"`
}

// CompleteResponse is the POST /v1/complete response body.
type CompleteResponse struct {
	Text     string `json:"text"`
	Contract string `json:"contract"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Attempts int    `json:"attempts"`
	Fallback bool   `json:"fallback"`
	WaitedMS int64  `json:"waited_ms"`
}

// Complete handles one completion request. The gateway itself never fails a
// request; the only error responses here are for malformed input.
func (api *CompletionAPI) Complete(w http.ResponseWriter, r *http.Request) {
	if api == nil || api.Service == nil {
		respondWithError(w, r, errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "gateway not initialized"))
		return
	}

	var req CompleteRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPromptBytes))
	if err := decoder.Decode(&req); err != nil {
		envelope := errors.NewErrorEnvelope("INVALID_INPUT", "request body must be valid JSON")
		envelope, _ = envelope.WithContext(map[string]interface{}{"decode_error": err.Error()})
		respondWithError(w, r, envelope)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		respondWithError(w, r, errors.NewErrorEnvelope("INVALID_INPUT", "prompt is required"))
		return
	}

	start := time.Now()
	result := api.Service.Run(r.Context(), gateway.Request{
		Prompt:   req.Prompt,
		Provider: req.Provider,
		Contract: contract.Name(req.Contract),
	})
	metrics.RecordCompletion(result.Provider, string(result.Contract), result.Fallback, result.Attempts, time.Since(start))
	metrics.RecordRateLimitWait(result.Provider, result.Waited)

	response := CompleteResponse{
		Text:     result.Text,
		Contract: string(result.Contract),
		Provider: result.Provider,
		Model:    result.Model,
		Attempts: result.Attempts,
		Fallback: result.Fallback,
		WaitedMS: result.Waited.Milliseconds(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
