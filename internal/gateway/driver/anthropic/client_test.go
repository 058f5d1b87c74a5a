package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evalgate/evalgate/internal/gateway/driver"
)

func TestClientRequiresAPIKey(t *testing.T) {
	client := NewClient("", "")
	_, err := client.Generate(context.Background(), &driver.Request{Model: "test", Messages: []driver.Message{{Role: "user", Content: "hi"}}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "api key")
}

func TestClientHoistsSystemMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.Equal(t, apiVersion, r.Header.Get("anthropic-version"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(body, &payload))
		require.Equal(t, "you are a grader", payload["system"])
		require.NotZero(t, payload["max_tokens"])

		messages, ok := payload["messages"].([]any)
		require.True(t, ok)
		require.Len(t, messages, 1)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"{\"verdict\":0}"}],"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":5}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	client.HTTPClient = server.Client()

	resp, err := client.Generate(context.Background(), &driver.Request{
		Model: "test-model",
		Messages: []driver.Message{
			{Role: "system", Content: "you are a grader"},
			{Role: "user", Content: "grade this"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, `{"verdict":0}`, resp.Text)
	require.Equal(t, "end_turn", resp.FinishReason)
	require.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestClientRequiresNonSystemMessage(t *testing.T) {
	client := NewClient("", "test-key")
	_, err := client.Generate(context.Background(), &driver.Request{
		Model:    "m",
		Messages: []driver.Message{{Role: "system", Content: "sys only"}},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "non-system message")
}

func TestClientErrorsOnNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("overloaded"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	client.HTTPClient = server.Client()

	_, err := client.Generate(context.Background(), &driver.Request{Model: "m", Messages: []driver.Message{{Role: "user", Content: "hi"}}})
	require.Error(t, err)

	var perr *driver.ProviderError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, "anthropic", perr.Provider)
	require.Equal(t, http.StatusInternalServerError, perr.StatusCode)
}
