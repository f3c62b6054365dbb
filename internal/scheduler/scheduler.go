package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/mselser95/betledger/internal/storage"
	"go.uber.org/zap"
)

// Closer closes a market once its deadline passed.
type Closer interface {
	CloseMarket(ctx context.Context, marketID int64) (bool, error)
}

// Service closes markets whose deadline has passed by polling the ledger.
type Service struct {
	store        storage.Store
	closer       Closer
	pollInterval time.Duration
	now          func() time.Time
	logger       *zap.Logger
}

// Config holds scheduler configuration.
type Config struct {
	Store        storage.Store
	Closer       Closer
	PollInterval time.Duration
	Clock        func() time.Time // Optional, defaults to time.Now
	Logger       *zap.Logger
}

// New creates a new deadline scheduler.
func New(cfg *Config) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Service{
		store:        cfg.Store,
		closer:       cfg.Closer,
		pollInterval: cfg.PollInterval,
		now:          clock,
		logger:       cfg.Logger,
	}
}

// Run starts the polling loop and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("deadline-scheduler-starting",
		zap.Duration("poll-interval", s.pollInterval))

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	// Initial poll catches deadlines that passed while the process was down.
	_, err := s.Poll(ctx)
	if err != nil {
		s.logger.Error("initial-deadline-poll-failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("deadline-scheduler-stopping")
			return ctx.Err()
		case <-ticker.C:
			_, err = s.Poll(ctx)
			if err != nil {
				s.logger.Error("deadline-poll-failed", zap.Error(err))
			}
		}
	}
}

// Poll closes every open market whose deadline is at or before now and
// returns how many it closed. A failure on one market does not stop the rest.
func (s *Service) Poll(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() {
		PollDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	var due []int64
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		var txErr error
		due, txErr = tx.DueMarkets(ctx, s.now())
		return txErr
	})
	if err != nil {
		PollErrorsTotal.Inc()
		return 0, fmt.Errorf("query due markets: %w", err)
	}

	closed := 0
	for _, id := range due {
		changed, closeErr := s.closer.CloseMarket(ctx, id)
		if closeErr != nil {
			PollErrorsTotal.Inc()
			s.logger.Error("deadline-close-failed",
				zap.Int64("market-id", id),
				zap.Error(closeErr))
			continue
		}
		if changed {
			closed++
			MarketsClosedTotal.Inc()
		}
	}

	if len(due) > 0 {
		s.logger.Info("deadline-poll-complete",
			zap.Int("due-markets", len(due)),
			zap.Int("closed-markets", closed),
			zap.Duration("duration", time.Since(start)))
	}

	return closed, nil
}
