package app

import (
	"context"
	"fmt"

	"github.com/mselser95/betledger/internal/events"
	"github.com/mselser95/betledger/internal/flow"
	"github.com/mselser95/betledger/internal/projection"
	"github.com/mselser95/betledger/internal/scheduler"
	"github.com/mselser95/betledger/pkg/cache"
	"github.com/mselser95/betledger/pkg/config"
	"github.com/mselser95/betledger/pkg/healthprobe"
	"github.com/mselser95/betledger/pkg/httpserver"
	"go.uber.org/zap"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	bus := events.NewBus(logger, cfg.EventBufferSize)

	ledger, err := OpenLedger(ctx, cfg, bus, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup ledger: %w", err)
	}

	projectionCache, err := setupCache(cfg, logger)
	if err != nil {
		cancel()
		_ = ledger.Close()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	healthChecker := setupHealthChecker(ledger)
	deadlines := setupScheduler(cfg, logger, ledger)
	flows := setupFlows(cfg, logger, ledger)
	view := setupProjection(cfg, logger, ledger, projectionCache)
	httpServer := setupHTTPServer(cfg, logger, healthChecker, ledger, flows, view, bus)

	return &App{
		cfg:             cfg,
		logger:          logger,
		healthChecker:   healthChecker,
		httpServer:      httpServer,
		ledger:          ledger,
		bus:             bus,
		scheduler:       deadlines,
		flows:           flows,
		projection:      view,
		projectionCache: projectionCache,
		ctx:             ctx,
		cancel:          cancel,
	}, nil
}

func setupHealthChecker(ledger *Ledger) *healthprobe.HealthChecker {
	hc := healthprobe.New()
	hc.AddCheck("store", ledger.Store.Ping)
	return hc
}

func setupCache(cfg *config.Config, logger *zap.Logger) (*cache.RistrettoCache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		Name:        "projection",
		NumCounters: cfg.ProjectionItems * 10, // 10x expected max items
		MaxCost:     cfg.ProjectionItems,
		BufferItems: 64,
		Logger:      logger,
	})
}

func setupScheduler(cfg *config.Config, logger *zap.Logger, ledger *Ledger) *scheduler.Service {
	return scheduler.New(&scheduler.Config{
		Store:        ledger.Store,
		Closer:       ledger.Markets,
		PollInterval: cfg.SchedulerPollInterval,
		Logger:       logger,
	})
}

func setupFlows(cfg *config.Config, logger *zap.Logger, ledger *Ledger) *flow.Manager {
	return flow.New(&flow.Config{
		Markets: ledger.Markets,
		Offers:  ledger.Offers,
		Timeout: cfg.FlowTimeout,
		Logger:  logger,
	})
}

func setupProjection(
	cfg *config.Config,
	logger *zap.Logger,
	ledger *Ledger,
	projectionCache cache.Cache,
) *projection.Projection {
	return projection.New(&projection.Config{
		Cache:  projectionCache,
		Loader: ledger.Markets,
		TTL:    cfg.ProjectionTTL,
		Logger: logger,
	})
}

func setupHTTPServer(
	cfg *config.Config,
	logger *zap.Logger,
	healthChecker *healthprobe.HealthChecker,
	ledger *Ledger,
	flows *flow.Manager,
	view *projection.Projection,
	bus *events.Bus,
) *httpserver.Server {
	return httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Markets:       ledger.Markets,
		Offers:        ledger.Offers,
		Flows:         flows,
		Projection:    view,
		Events:        bus,
		RateLimit:     cfg.APIRateLimit,
		RateBurst:     cfg.APIRateBurst,
	})
}
