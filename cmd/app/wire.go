//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/agri-market/internal/bootstrap"
	"github.com/yanqian/agri-market/internal/domain/market"
	"github.com/yanqian/agri-market/internal/infra/config"
	httpiface "github.com/yanqian/agri-market/internal/interface/http"
	"github.com/yanqian/agri-market/pkg/logger"
	"github.com/yanqian/agri-market/pkg/metrics"
)

func initializeApp() (*bootstrap.App, func(), error) {
	wire.Build(
		config.Load,
		logger.New,
		metrics.NewPipeline,
		provideMarketConfig,
		provideRegistry,
		provideLabels,
		provideMetricsHandler,
		provideSynthesizer,
		provideDataGovClient,
		provideGateway,
		provideSnapshotSource,
		provideEventPublisher,
		market.NewCascade,
		market.NewService,
		wire.Bind(new(market.Recorder), new(*metrics.Pipeline)),
		wire.Bind(new(httpiface.MarketService), new(*market.Service)),
		wire.Bind(new(bootstrap.CategoryWarmer), new(*market.Service)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil, nil
}
