package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/agri-market/internal/domain/market"
	"github.com/yanqian/agri-market/internal/infra/config"
	apperrors "github.com/yanqian/agri-market/pkg/errors"
)

type recordingWarmer struct {
	mu     sync.Mutex
	calls  []string
	closed bool
}

func (w *recordingWarmer) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}

func (w *recordingWarmer) ExpandAsync(_ context.Context, category string) (market.LoadState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, category)
	if category == "unknown" {
		return market.StateNotLoaded, apperrors.Wrap(apperrors.CodeInvalidInput, "unknown category", nil)
	}
	return market.StateLoading, nil
}

func TestRunPreloadsAndShutsDown(t *testing.T) {
	cfg := &config.Config{}
	cfg.HTTP.Address = "127.0.0.1:0"
	cfg.HTTP.ShutdownTimeout = time.Second
	cfg.Market.Preload = []string{"vegetables", "unknown", "grains"}

	warmer := &recordingWarmer{}
	server := &http.Server{Addr: cfg.HTTP.Address, Handler: http.NotFoundHandler()}
	app := NewApp(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), server, warmer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		warmer.mu.Lock()
		defer warmer.mu.Unlock()
		return len(warmer.calls) == 3
	}, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("app did not stop")
	}
	require.Equal(t, []string{"vegetables", "unknown", "grains"}, warmer.calls)
	require.True(t, warmer.closed)
}

func TestRunReturnsListenError(t *testing.T) {
	cfg := &config.Config{}
	cfg.HTTP.ShutdownTimeout = time.Second
	server := &http.Server{Addr: "256.0.0.1:bad"}
	app := NewApp(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), server, nil)

	require.Error(t, app.Run(context.Background()))
}
