package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/agri-market/internal/domain/market"
	"github.com/yanqian/agri-market/internal/infra/config"
	"github.com/yanqian/agri-market/internal/infra/snapshot"
	"github.com/yanqian/agri-market/pkg/metrics"
)

type offlineGateway struct{}

func (offlineGateway) Fetch(context.Context, string, string) market.FetchResult {
	return market.FetchResult{}
}

func TestRouter_Health(t *testing.T) {
	server, _ := newRouterUnderTest(t, nil)

	recorder := performRequest(server, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, recorder.Code)
	require.JSONEq(t, `{"status":"ok"}`, recorder.Body.String())
}

func TestRouter_ListCategoriesLocalized(t *testing.T) {
	server, _ := newRouterUnderTest(t, nil)

	recorder := performRequest(server, http.MethodGet, "/api/v1/market/categories?locale=hi")
	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		Categories    []market.CategoryView `json:"categories"`
		UsingFallback bool                  `json:"usingFallback"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Len(t, body.Categories, len(market.DefaultCategories()))
	require.Equal(t, "सब्ज़ियाँ", body.Categories[0].Label)
	require.False(t, body.Categories[0].Loaded)
	require.False(t, body.UsingFallback)
}

func TestRouter_ExpandThenQuery(t *testing.T) {
	server, _ := newRouterUnderTest(t, nil)

	recorder := performRequest(server, http.MethodPost, "/api/v1/market/categories/vegetables/expand")
	require.Equal(t, http.StatusOK, recorder.Code)
	var expand struct {
		State         market.LoadState `json:"state"`
		UsingFallback bool             `json:"usingFallback"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &expand))
	require.Equal(t, market.StateLoaded, expand.State)
	require.True(t, expand.UsingFallback)

	recorder = performRequest(server, http.MethodGet, "/api/v1/market/records?search=onion")
	require.Equal(t, http.StatusOK, recorder.Code)
	var records struct {
		Records []market.PriceRecord `json:"records"`
		Count   int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &records))
	require.Equal(t, 3, records.Count)
	for _, rec := range records.Records {
		require.Equal(t, market.TierStatic, rec.SourceTier)
	}

	recorder = performRequest(server, http.MethodGet, "/api/v1/market/stats")
	require.Equal(t, http.StatusOK, recorder.Code)
	var stats struct {
		Stats []market.CommodityStat `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &stats))
	require.NotEmpty(t, stats.Stats)

	recorder = performRequest(server, http.MethodGet, "/api/v1/market/recommendations")
	require.Equal(t, http.StatusOK, recorder.Code)
	var recs struct {
		Recommendations []market.Recommendation `json:"recommendations"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &recs))
	require.Len(t, recs.Recommendations, 5)
}

func TestRouter_ExpandUnknownCategory(t *testing.T) {
	server, _ := newRouterUnderTest(t, nil)

	recorder := performRequest(server, http.MethodPost, "/api/v1/market/categories/flowers/expand")
	require.Equal(t, http.StatusNotFound, recorder.Code)

	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, "unknown_category", errBody["error"]["code"])
	require.Contains(t, errBody["error"]["message"], "flowers")
}

func TestRouter_ExpandInvalidWait(t *testing.T) {
	server, _ := newRouterUnderTest(t, nil)

	recorder := performRequest(server, http.MethodPost, "/api/v1/market/categories/grains/expand?wait=maybe")
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Equal(t, "invalid_request", decodeErrorBody(t, recorder.Body.Bytes())["error"]["code"])
}

func TestRouter_ExpandAsync(t *testing.T) {
	server, svc := newRouterUnderTest(t, nil)

	recorder := performRequest(server, http.MethodPost, "/api/v1/market/categories/grains/expand?wait=false")
	require.Equal(t, http.StatusAccepted, recorder.Code)

	require.Eventually(t, func() bool {
		for _, view := range svc.ListCategories("") {
			if view.Key == "grains" {
				return view.Loaded
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRouter_RefreshResetsSession(t *testing.T) {
	server, _ := newRouterUnderTest(t, nil)

	require.Equal(t, http.StatusOK, performRequest(server, http.MethodPost, "/api/v1/market/categories/fruits/expand").Code)

	recorder := performRequest(server, http.MethodPost, "/api/v1/market/refresh")
	require.Equal(t, http.StatusOK, recorder.Code)
	require.JSONEq(t, `{"generation":1}`, recorder.Body.String())

	recorder = performRequest(server, http.MethodGet, "/api/v1/market/status")
	require.Equal(t, http.StatusOK, recorder.Code)
	var status market.Status
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &status))
	require.Equal(t, uint64(1), status.Generation)
	require.Zero(t, status.Records)
	require.False(t, status.UsingFallback)
}

func TestRouter_RateLimit(t *testing.T) {
	server, _ := newRouterUnderTest(t, func(cfg *config.Config) {
		cfg.HTTP.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 1}
	})

	require.Equal(t, http.StatusOK, performRequest(server, http.MethodGet, "/api/v1/market/status").Code)
	recorder := performRequest(server, http.MethodGet, "/api/v1/market/status")
	require.Equal(t, http.StatusTooManyRequests, recorder.Code)
	require.Equal(t, "rate_limit_exceeded", decodeErrorBody(t, recorder.Body.Bytes())["error"]["code"])

	// Health checks are not rate limited.
	require.Equal(t, http.StatusOK, performRequest(server, http.MethodGet, "/healthz").Code)
}

func TestRouter_Metrics(t *testing.T) {
	server, _ := newRouterUnderTest(t, nil)
	require.Equal(t, http.StatusOK, performRequest(server, http.MethodPost, "/api/v1/market/categories/spices/expand").Code)

	recorder := performRequest(server, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), `agri_market_resolutions_total{tier="STATIC"}`)
	require.Contains(t, recorder.Body.String(), "agri_market_batch_duration_seconds")
}

func TestRouter_CORSPreflight(t *testing.T) {
	server, _ := newRouterUnderTest(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/market/records", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	recorder := httptest.NewRecorder()
	server.Handler.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusNoContent, recorder.Code)
	require.Equal(t, "http://localhost:5173", recorder.Header().Get("Access-Control-Allow-Origin"))
}

func performRequest(server *http.Server, method, path string) *httptest.ResponseRecorder {
	var body io.Reader
	if method == http.MethodPost {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, body)
	recorder := httptest.NewRecorder()
	server.Handler.ServeHTTP(recorder, req)
	return recorder
}

func newRouterUnderTest(t *testing.T, mutate func(*config.Config)) (*http.Server, *market.Service) {
	t.Helper()
	cfg := &config.Config{
		HTTP: config.HTTPConfig{
			Address:        ":0",
			AllowedOrigins: []string{"http://localhost:5173"},
			RateLimit:      config.RateLimitConfig{Enabled: false},
		},
	}
	if mutate != nil {
		mutate(cfg)
	}

	logger := newTestLogger()
	bundled, err := snapshot.Bundled()
	require.NoError(t, err)
	registry := market.NewRegistry(market.DefaultCategories())
	pipeline := metrics.NewPipeline()
	cascade, err := market.NewCascade(offlineGateway{}, bundled, market.NewSynthesizer(1), registry, pipeline, logger)
	require.NoError(t, err)

	labels := market.StaticLabels{"hi": {"vegetables": "सब्ज़ियाँ"}}
	svc := market.NewService(market.Config{Loader: market.LoaderConfig{BatchSize: 3}}, registry, cascade, nil, pipeline, labels, logger)
	return NewRouter(cfg, NewHandler(svc, logger), pipeline.Handler()), svc
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeErrorBody(t *testing.T, raw []byte) map[string]map[string]string {
	t.Helper()
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}
