package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mw "github.com/demandcast/optimizer/internal/api/middleware"
)

// --- mock cache ---

type mockCache struct {
	counts map[string]int64
	err    error
}

func (m *mockCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (m *mockCache) Get(_ context.Context, _ string) ([]byte, bool, error) { return nil, false, nil }
func (m *mockCache) Delete(_ context.Context, _ string) error { return nil }
func (m *mockCache) Ping(_ context.Context) error { return nil }
func (m *mockCache) SetJobStatus(_ context.Context, _ uuid.UUID, _ string, _ time.Duration) error {
	return nil
}
func (m *mockCache) GetJobStatus(_ context.Context, _ uuid.UUID) (string, bool, error) {
	return "", false, nil
}
func (m *mockCache) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	if m.counts == nil {
		m.counts = map[string]int64{}
	}
	m.counts[key]++
	return m.counts[key], nil
}

func okNext() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func limitedRequest(remoteAddr string) *http.Request {
	r := httptest.NewRequest("GET", "/api/v1/jobs/status", nil)
	r.RemoteAddr = remoteAddr
	return r
}

func TestRateLimit_UnderLimit(t *testing.T) {
	rl := mw.NewRateLimit(&mockCache{}, 5)
	handler := rl.Limit(okNext())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, limitedRequest("198.51.100.7:1234"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimit_Exceeded(t *testing.T) {
	rl := mw.NewRateLimit(&mockCache{}, 2)
	handler := rl.Limit(okNext())

	var w *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		w = httptest.NewRecorder()
		handler.ServeHTTP(w, limitedRequest("198.51.100.7:1234"))
	}

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errObj["code"])
}

func TestRateLimit_SeparateClients(t *testing.T) {
	rl := mw.NewRateLimit(&mockCache{}, 1)
	handler := rl.Limit(okNext())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, limitedRequest("198.51.100.7:1234"))
	assert.Equal(t, http.StatusOK, w.Code)

	// Different address, fresh window.
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, limitedRequest("198.51.100.8:1234"))
	assert.Equal(t, http.StatusOK, w.Code)

	// Same address again trips the limit; port changes are irrelevant.
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, limitedRequest("198.51.100.7:9999"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimit_FailsOpenOnCacheError(t *testing.T) {
	rl := mw.NewRateLimit(&mockCache{err: errors.New("redis down")}, 1)
	handler := rl.Limit(okNext())

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, limitedRequest("198.51.100.7:1234"))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRecovery(t *testing.T) {
	handler := mw.Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler exploded")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/jobs/status", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "INTERNAL_ERROR", errObj["code"])
}

func TestLogger_PassesThrough(t *testing.T) {
	handler := mw.Logger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/health", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}
