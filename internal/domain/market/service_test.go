package market

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/agri-market/pkg/errors"
)

func newTestService(t *testing.T) (*Service, *countingGateway) {
	t.Helper()
	reg := NewRegistry(DefaultCategories())
	gw := newCountingGateway()
	cascade := newTestCascade(gw, mapSnapshot{"Onion": onionStatic()}, reg)
	labels := StaticLabels{"hi": {"vegetables": "सब्ज़ियाँ"}}
	svc := NewService(Config{Loader: LoaderConfig{BatchSize: 3}, Location: time.UTC}, reg, cascade, nil, nil, labels, testLogger())
	svc.now = fixedNow
	return svc, gw
}

func TestServiceExpandAndFilter(t *testing.T) {
	svc, _ := newTestService(t)

	state, err := svc.Expand(context.Background(), "Vegetables")
	require.NoError(t, err)
	require.Equal(t, StateLoaded, state)
	require.True(t, svc.UsingFallback())

	onions := svc.FilteredRecords("ONI", "", "")
	require.Len(t, onions, 3)

	karnataka := svc.FilteredRecords("onion", "karnataka", "all")
	require.Len(t, karnataka, 1)
	require.Equal(t, 5068.0, karnataka[0].Price)

	require.Empty(t, svc.FilteredRecords("", "", "grains"))
	require.Len(t, svc.FilteredRecords("", "", ""), svc.Status().Records)
}

func TestServiceStatsAndRecommendations(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Expand(context.Background(), "vegetables")
	require.NoError(t, err)

	stats := svc.Stats()
	onion := stats["Onion"]
	require.Equal(t, int64(5208), onion.RoundedAvgPrice())
	require.Equal(t, 7074.0, onion.DemandScore)

	sorted := svc.SortedStats()
	require.Len(t, sorted, len(stats))
	for i := 1; i < len(sorted); i++ {
		require.Less(t, sorted[i-1].Commodity, sorted[i].Commodity)
	}

	recs := svc.Recommendations()
	require.Len(t, recs, 5)
	require.Equal(t, "Rabi Season Picks", recs[1].Title)
}

func TestServiceStatsTrackStoreVersion(t *testing.T) {
	svc, _ := newTestService(t)
	require.Empty(t, svc.Stats())

	_, err := svc.Expand(context.Background(), "vegetables")
	require.NoError(t, err)
	require.NotEmpty(t, svc.Stats())

	svc.Refresh()
	require.Empty(t, svc.Stats())
}

func TestServiceListCategoriesReflectsLoadState(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Expand(context.Background(), "vegetables")
	require.NoError(t, err)

	views := svc.ListCategories("hi")
	require.Len(t, views, len(DefaultCategories()))
	require.Equal(t, "सब्ज़ियाँ", views[0].Label)
	require.True(t, views[0].Loaded)
	require.False(t, views[0].Loading)
	require.False(t, views[1].Loaded)
	require.Equal(t, "Grains", views[1].Label)
}

func TestServiceRefreshStartsNewGeneration(t *testing.T) {
	svc, gw := newTestService(t)
	_, err := svc.Expand(context.Background(), "vegetables")
	require.NoError(t, err)
	calls := gw.total()

	gen := svc.Refresh()
	require.Equal(t, uint64(1), gen)

	status := svc.Status()
	require.Equal(t, gen, status.Generation)
	require.Zero(t, status.Records)
	require.False(t, status.UsingFallback)
	require.NotEmpty(t, status.SessionID)

	_, err = svc.Expand(context.Background(), "vegetables")
	require.NoError(t, err)
	require.Equal(t, 2*calls, gw.total())
}

func TestServiceExpandAsync(t *testing.T) {
	svc, _ := newTestService(t)

	state, err := svc.ExpandAsync(context.Background(), "grains")
	require.NoError(t, err)
	require.Equal(t, StateLoading, state)

	require.Eventually(t, func() bool {
		return svc.session.LoadState("grains") == StateLoaded
	}, 2*time.Second, 10*time.Millisecond)

	state, err = svc.ExpandAsync(context.Background(), "grains")
	require.NoError(t, err)
	require.Equal(t, StateLoaded, state)
}

func TestServiceRejectsUnknownCategory(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Expand(context.Background(), "flowers")
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
	_, err = svc.ExpandAsync(context.Background(), "flowers")
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
}

func TestServiceCloseStopsBackgroundLoads(t *testing.T) {
	reg := testRegistry()
	gw := newGateGateway()
	svc := NewService(Config{Loader: LoaderConfig{BatchSize: 3}, Location: time.UTC}, reg, newTestCascade(gw, mapSnapshot{}, reg), nil, nil, nil, testLogger())

	state, err := svc.ExpandAsync(context.Background(), "test")
	require.NoError(t, err)
	require.Equal(t, StateLoading, state)
	<-gw.arrived

	closed := make(chan struct{})
	go func() {
		svc.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("close did not wait for the background load to stop")
	}

	require.Equal(t, StateNotLoaded, svc.session.LoadState("test"))
	require.Zero(t, svc.session.Size())
	require.Less(t, gw.calls, 4, "later batches never start")

	_, err = svc.ExpandAsync(context.Background(), "test")
	require.True(t, apperrors.IsCode(err, apperrors.CodeUnavailable))
}
