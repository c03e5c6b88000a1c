package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/diarysense/internal/profile"
	"github.com/hrygo/diarysense/metrics"
	"github.com/hrygo/diarysense/nlp"
	"github.com/hrygo/diarysense/nlp/analyzer"
	"github.com/hrygo/diarysense/nlp/llm"
	"github.com/hrygo/diarysense/store"
	"github.com/hrygo/diarysense/store/cache"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	p := &profile.Profile{
		Mode:           "dev",
		Version:        "test",
		MetricsEnabled: true,
	}
	st := store.New(store.NewInMemoryDriver(), p)
	cacheSvc := cache.NewMemory()
	exporter := metrics.NewExporter()

	a := analyzer.New(analyzer.Config{
		UseLLMFallback:               true,
		CacheEnabled:                 true,
		HeuristicConfidenceThreshold: 0.7,
		DefaultTimeMinutes:           30,
		AchievementDefaultWeight:     10,
		RedactPII:                    true,
	}, st, cacheSvc, &llm.Mock{}, exporter)

	s, err := NewServer(context.Background(), p, st, cacheSvc, a, exporter)
	require.NoError(t, err)
	return s
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestAnalyzeEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/v1/analyze",
		`{"user_id": 1, "text": "Сходил в зал и приготовил обед", "date": "2026-08-24"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result nlp.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

	assert.Equal(t, int64(1), result.UserID)
	assert.Equal(t, "2026-08-24", result.Date)
	assert.Nil(t, result.RawText)
	require.Len(t, result.Actions, 2)
	assert.Equal(t, "спорт", result.Actions[0].Category)
	assert.False(t, result.Meta.UsedLLM)
}

func TestAnalyzeValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"zero user id", `{"user_id": 0, "text": "сходил в зал"}`},
		{"negative user id", `{"user_id": -5, "text": "сходил в зал"}`},
		{"empty text", `{"user_id": 1, "text": ""}`},
		{"oversized text", `{"user_id": 1, "text": "` + strings.Repeat("а", 10001) + `"}`},
		{"bad date", `{"user_id": 1, "text": "сходил в зал", "date": "24-08-2026"}`},
		{"not json", `{{{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(s, http.MethodPost, "/api/v1/analyze", tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		})
	}
}

func TestAnalyzeTextLengthBoundary(t *testing.T) {
	s := newTestServer(t)

	// Exactly 10000 characters passes validation.
	body := `{"user_id": 1, "text": "` + strings.Repeat("а", 10000) + `"}`
	rec := doRequest(s, http.MethodPost, "/api/v1/analyze", body)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUserStatsEndpoint(t *testing.T) {
	s := newTestServer(t)

	// Analysis records history, which stats then reflect.
	rec := doRequest(s, http.MethodPost, "/api/v1/analyze",
		`{"user_id": 7, "text": "читал книгу 2 часа"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/v1/stats/7", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats store.UserStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(7), stats.UserID)
	assert.Equal(t, int64(1), stats.TotalTemplates)
	assert.Equal(t, int64(1), stats.TotalActions)
}

func TestUserStatsValidation(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/v1/stats/abc", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/v1/stats/-1", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestClearCacheEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodDelete, "/api/v1/cache", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/v1/analyze",
		`{"user_id": 1, "text": "сходил в зал"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nlp_requests_total")
}

func TestMetricsDisabledByProfile(t *testing.T) {
	p := &profile.Profile{Mode: "dev", Version: "test"}
	st := store.New(store.NewInMemoryDriver(), p)
	cacheSvc := cache.NewMemory()
	a := analyzer.New(analyzer.Config{DefaultTimeMinutes: 30}, st, cacheSvc, nil, nil)

	s, err := NewServer(context.Background(), p, st, cacheSvc, a, nil)
	require.NoError(t, err)

	rec := doRequest(s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
