package market

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type failingSnapshot struct{}

func (failingSnapshot) Lookup(context.Context, string) ([]PriceRecord, error) {
	return nil, errors.New("snapshot unavailable")
}

func TestCascadePrefersLive(t *testing.T) {
	reg := NewRegistry(DefaultCategories())
	gw := newCountingGateway()
	live := onionStatic()
	for i := range live {
		live[i].SourceTier = TierLive
	}
	gw.result = func(string) FetchResult { return FetchResult{OK: true, Records: live} }

	res := newTestCascade(gw, mapSnapshot{"Onion": onionStatic()}, reg).Resolve(context.Background(), "Onion", "", 5)

	require.Equal(t, TierLive, res.Tier)
	require.Equal(t, "vegetables", res.Category)
	require.Len(t, res.Records, 3)
	require.False(t, res.UsedFallback())
}

func TestCascadeFallsBackToStaticOnFailure(t *testing.T) {
	reg := NewRegistry(DefaultCategories())
	res := newTestCascade(newCountingGateway(), mapSnapshot{"Onion": onionStatic()}, reg).Resolve(context.Background(), "Onion", "vegetables", 5)

	require.Equal(t, TierStatic, res.Tier)
	require.Len(t, res.Records, 3)
	for _, rec := range res.Records {
		require.Equal(t, TierStatic, rec.SourceTier)
		require.Equal(t, "vegetables", rec.Category)
	}

	s := NewSession()
	_, ok := s.Accept(s.Generation(), res)
	require.True(t, ok)
	require.True(t, s.UsingFallback())
}

func TestCascadeStaticRecordsUseRegistrySpelling(t *testing.T) {
	reg := NewRegistry(DefaultCategories())
	lower := onionStatic()
	for i := range lower {
		lower[i].Commodity = "onion"
	}
	res := newTestCascade(newCountingGateway(), mapSnapshot{"Onion": lower}, reg).Resolve(context.Background(), "Onion", "vegetables", 5)

	require.Equal(t, TierStatic, res.Tier)
	stats := Aggregate(res.Records)
	require.Len(t, stats, 1)
	require.Contains(t, stats, "Onion")
}

func TestCascadeFallsBackOnEmptyLiveResult(t *testing.T) {
	reg := NewRegistry(DefaultCategories())
	gw := newCountingGateway()
	gw.result = func(string) FetchResult { return FetchResult{OK: true} }

	res := newTestCascade(gw, mapSnapshot{"Onion": onionStatic()}, reg).Resolve(context.Background(), "Onion", "vegetables", 5)
	require.Equal(t, TierStatic, res.Tier)
}

func TestCascadeSynthesizesWhenNothingElse(t *testing.T) {
	reg := NewRegistry(DefaultCategories())
	res := newTestCascade(newCountingGateway(), failingSnapshot{}, reg).Resolve(context.Background(), "Wheat", "grains", 4)

	require.Equal(t, TierSynthetic, res.Tier)
	require.Len(t, res.Records, 4)
	require.True(t, res.UsedFallback())
}

func TestCascadeCapsRecordCount(t *testing.T) {
	reg := NewRegistry(DefaultCategories())
	res := newTestCascade(newCountingGateway(), mapSnapshot{"Onion": onionStatic()}, reg).Resolve(context.Background(), "Onion", "vegetables", 2)
	require.Len(t, res.Records, 2)
}

func TestNewCascadeRequiresTiers(t *testing.T) {
	reg := NewRegistry(DefaultCategories())
	synth := NewSynthesizer(1)

	_, err := NewCascade(nil, mapSnapshot{}, synth, reg, nil, testLogger())
	require.Error(t, err)
	_, err = NewCascade(newCountingGateway(), nil, synth, reg, nil, testLogger())
	require.Error(t, err)
	_, err = NewCascade(newCountingGateway(), mapSnapshot{}, nil, reg, nil, testLogger())
	require.Error(t, err)
	_, err = NewCascade(newCountingGateway(), mapSnapshot{}, synth, nil, nil, testLogger())
	require.Error(t, err)
}
