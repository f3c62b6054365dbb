package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Run starts the application and blocks until shutdown. It returns the first
// component failure, if any.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("storage-mode", a.cfg.StorageMode),
		zap.Strings("admins", a.cfg.AdminIDs),
		zap.String("log-level", a.cfg.LogLevel))

	a.startComponents()

	// Mark as ready
	a.healthChecker.SetReady(true)

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort))

	// Wait for shutdown signal
	return a.waitForShutdown()
}

func (a *App) startComponents() {
	a.group, a.groupCtx = errgroup.WithContext(a.ctx)

	a.group.Go(a.httpServer.Start)

	a.group.Go(func() error {
		return ignoreCancel(a.scheduler.Run(a.groupCtx))
	})

	a.group.Go(func() error {
		return ignoreCancel(a.flows.Run(a.groupCtx))
	})

	// Subscribe before returning so no event between ready and the watcher
	// starting is missed.
	feed, unsubscribe := a.bus.Subscribe()
	a.group.Go(func() error {
		defer unsubscribe()
		return ignoreCancel(a.projection.Watch(a.groupCtx, feed))
	})
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.groupCtx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
