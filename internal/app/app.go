package app

import (
	"context"
	"sync"

	"github.com/mselser95/betledger/internal/events"
	"github.com/mselser95/betledger/internal/flow"
	"github.com/mselser95/betledger/internal/projection"
	"github.com/mselser95/betledger/internal/scheduler"
	"github.com/mselser95/betledger/pkg/cache"
	"github.com/mselser95/betledger/pkg/config"
	"github.com/mselser95/betledger/pkg/healthprobe"
	"github.com/mselser95/betledger/pkg/httpserver"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// App is the main application orchestrator.
type App struct {
	cfg             *config.Config
	logger          *zap.Logger
	healthChecker   *healthprobe.HealthChecker
	httpServer      *httpserver.Server
	ledger          *Ledger
	bus             *events.Bus
	scheduler       *scheduler.Service
	flows           *flow.Manager
	projection      *projection.Projection
	projectionCache *cache.RistrettoCache
	ctx             context.Context
	cancel          context.CancelFunc
	group           *errgroup.Group
	groupCtx        context.Context
	shutdownOnce    sync.Once
	shutdownErr     error
}
