package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPipelineCounters(t *testing.T) {
	p := NewPipeline()
	p.ObserveResolution("STATIC")
	p.ObserveResolution("STATIC")
	p.ObserveFetch("ok")
	p.ObserveBatch("vegetables", 120*time.Millisecond, 9)
	p.ObserveStaleDrop(4)
	p.SetStoreSize(42)

	require.Equal(t, 2.0, testutil.ToFloat64(p.resolutions.WithLabelValues("STATIC")))
	require.Equal(t, 1.0, testutil.ToFloat64(p.fetches.WithLabelValues("ok")))
	require.Equal(t, 9.0, testutil.ToFloat64(p.batchRecords.WithLabelValues("vegetables")))
	require.Equal(t, 4.0, testutil.ToFloat64(p.staleDrops))
	require.Equal(t, 42.0, testutil.ToFloat64(p.storeSize))
}

func TestPipelineHandlerExposesMetrics(t *testing.T) {
	p := NewPipeline()
	p.ObserveResolution("LIVE")

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `agri_market_resolutions_total{tier="LIVE"} 1`)
}
