package backend

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Post(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/documents/generate", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "nda", body["template"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"document":"MUTUAL NDA"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", slog.Default())

	result, err := client.Post(t.Context(), "/api/documents/generate", map[string]any{"template": "nda"})
	require.NoError(t, err)
	assert.Equal(t, "MUTUAL NDA", result["document"])
}

func TestClient_PostHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"Email already registered"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, slog.Default())

	_, err := client.Post(t.Context(), "/api/auth", map[string]any{})
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusConflict, httpErr.StatusCode)
	assert.Equal(t, "Email already registered", httpErr.UserMessage())
}

func TestClient_PostEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	result, err := NewClient(server.URL, slog.Default()).Post(t.Context(), "/api/contact", map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestClient_SubmitCancel(t *testing.T) {
	release := make(chan struct{})

	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		hits.Add(1)

		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(server.URL, slog.Default())
	task := client.Submit(t.Context(), "/api/documents/generate", map[string]any{})

	require.Eventually(t, func() bool { return hits.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	task.Cancel()

	_, err := task.Wait(t.Context())
	require.ErrorIs(t, err, context.Canceled)
}

func TestClient_SubmitOutlivesCallerContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(t.Context())
	task := NewClient(server.URL, slog.Default()).Submit(ctx, "/api/contact", map[string]any{})
	cancel()

	result, err := task.Wait(t.Context())
	require.NoError(t, err)
	assert.Equal(t, true, result["ok"])
}

func TestTask_WaitGivesUpOnContext(t *testing.T) {
	task := &Task{cancel: func() {}, done: make(chan struct{})}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := task.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestClient_CreateCheckout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "pro", body["plan"])
		assert.Equal(t, "annual", body["period"])

		_, _ = w.Write([]byte(`{"url":"https://checkout.stripe.com/c/pay/cs_test"}`))
	}))
	defer server.Close()

	url, err := NewClient(server.URL, slog.Default()).CreateCheckout(t.Context(), "pro", "annual")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test", url)
}

func TestClient_CreateCheckoutMissingURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, slog.Default()).CreateCheckout(t.Context(), "pro", "monthly")
	require.ErrorIs(t, err, ErrMissingCheckoutURL)
}
