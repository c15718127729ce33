package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/yanqian/agri-market/internal/domain/market"
	"github.com/yanqian/agri-market/internal/infra/config"
)

// CategoryWarmer starts background category loads and stops them on Close.
type CategoryWarmer interface {
	ExpandAsync(ctx context.Context, category string) (market.LoadState, error)
	Close()
}

// App encapsulates the HTTP server lifecycle.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	server *http.Server
	warmer CategoryWarmer
}

// NewApp is used by Wire to build the runnable app.
func NewApp(cfg *config.Config, logger *slog.Logger, server *http.Server, warmer CategoryWarmer) *App {
	return &App{cfg: cfg, logger: logger.With("component", "bootstrap"), server: server, warmer: warmer}
}

// Run starts the HTTP server, kicks off configured preloads and blocks until
// ctx is cancelled or the server fails. Background loads are stopped before
// Run returns.
func (a *App) Run(ctx context.Context) error {
	defer a.stopBackground()
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("http server starting", "address", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	a.preload(ctx)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		a.logger.Info("shutdown signal received", "timeout", a.cfg.HTTP.ShutdownTimeout.String())
		return a.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (a *App) stopBackground() {
	if a.warmer == nil {
		return
	}
	a.warmer.Close()
	a.logger.Info("background category loads stopped")
}

// preload is best effort; an unknown category is logged and skipped.
func (a *App) preload(ctx context.Context) {
	if a.warmer == nil {
		return
	}
	for _, category := range a.cfg.Market.Preload {
		state, err := a.warmer.ExpandAsync(ctx, category)
		if err != nil {
			a.logger.Warn("category preload skipped", "category", category, "error", err)
			continue
		}
		a.logger.Info("category preload started", "category", category, "state", string(state))
	}
}
