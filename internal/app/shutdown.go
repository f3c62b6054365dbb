package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application. It is safe to call more
// than once and returns the first component failure seen by Run.
func (a *App) Shutdown() error {
	a.shutdownOnce.Do(func() {
		a.shutdownErr = a.shutdown()
	})
	return a.shutdownErr
}

func (a *App) shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Stop accepting requests before the ledger goes away
	err := a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	// Cancel context to signal background components
	a.cancel()

	// Closing the bus ends open event streams and the projection watcher
	a.bus.Close()

	var runErr error
	if a.group != nil {
		runErr = a.group.Wait()
		if runErr != nil {
			a.logger.Error("component-failed", zap.Error(runErr))
		}
	}

	a.projectionCache.Close()

	err = a.ledger.Close()
	if err != nil {
		a.logger.Error("storage-close-error", zap.Error(err))
	}

	a.logger.Info("application-shutdown-complete")

	return runErr
}
