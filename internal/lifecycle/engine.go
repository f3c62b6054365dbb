package lifecycle

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mselser95/betledger/internal/events"
	"github.com/mselser95/betledger/internal/settlement"
	"github.com/mselser95/betledger/internal/storage"
	"github.com/mselser95/betledger/pkg/types"
	"go.uber.org/zap"
)

const minOutcomes = 2

// Engine owns market state transitions: create, reassign resolver, set the
// close deadline, close, resolve and purge.
type Engine struct {
	store     storage.Store
	publisher events.Publisher
	admins    map[string]bool
	now       func() time.Time
	logger    *zap.Logger
}

// Config holds lifecycle engine configuration.
type Config struct {
	Store     storage.Store
	Publisher events.Publisher // Optional, defaults to events.Nop
	Admins    []string         // Participants allowed to purge markets
	Clock     func() time.Time // Optional, defaults to time.Now
	Logger    *zap.Logger
}

// New creates a new lifecycle engine.
func New(cfg *Config) *Engine {
	admins := make(map[string]bool, len(cfg.Admins))
	for _, id := range cfg.Admins {
		admins[id] = true
	}

	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.Nop
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Engine{
		store:     cfg.Store,
		publisher: publisher,
		admins:    admins,
		now:       clock,
		logger:    cfg.Logger,
	}
}

// CreateMarket validates and persists a new open market. The creator is also
// the initial resolver.
func (e *Engine) CreateMarket(ctx context.Context, title string, outcomes []string, creator string) (types.Market, error) {
	const op = "create-market"

	title = strings.TrimSpace(title)
	if title == "" {
		return types.Market{}, e.reject(op, types.Validationf(op, "title must not be blank"))
	}
	if strings.TrimSpace(creator) == "" {
		return types.Market{}, e.reject(op, types.Validationf(op, "creator must not be blank"))
	}

	cleaned, err := normalizeOutcomes(op, outcomes)
	if err != nil {
		return types.Market{}, e.reject(op, err)
	}

	var market types.Market
	err = e.store.InTx(ctx, func(tx storage.Tx) error {
		var txErr error
		market, txErr = tx.InsertMarket(ctx, types.Market{
			Title:      title,
			Outcomes:   cleaned,
			Status:     types.MarketOpen,
			CreatorID:  creator,
			ResolverID: creator,
			CreatedAt:  e.now(),
		})
		return txErr
	})
	if err != nil {
		return types.Market{}, e.reject(op, err)
	}

	MarketsCreatedTotal.Inc()
	e.logger.Info("market-created",
		zap.Int64("market-id", market.ID),
		zap.String("title", market.Title),
		zap.Strings("outcomes", market.Outcomes),
		zap.String("creator", creator))
	e.publisher.Publish(events.Event{Type: events.MarketCreated, MarketID: market.ID, Actor: creator, Payload: market})

	return market, nil
}

// SetResolver reassigns who may declare the winning outcome. Only the creator
// may do this, and only while the market is open.
func (e *Engine) SetResolver(ctx context.Context, marketID int64, requester string, resolver string) error {
	const op = "set-resolver"

	resolver = strings.TrimSpace(resolver)
	if resolver == "" {
		return e.reject(op, types.Validationf(op, "resolver must not be blank"))
	}

	err := e.store.InTx(ctx, func(tx storage.Tx) error {
		market, txErr := e.lockOpenMarketForCreator(ctx, tx, op, marketID, requester)
		if txErr != nil {
			return txErr
		}
		return tx.SetResolver(ctx, market.ID, resolver)
	})
	if err != nil {
		return e.reject(op, err)
	}

	e.logger.Info("resolver-set",
		zap.Int64("market-id", marketID),
		zap.String("resolver", resolver))
	e.publisher.Publish(events.Event{Type: events.ResolverSet, MarketID: marketID, Actor: requester, Payload: resolver})

	return nil
}

// SetCloseDeadline sets when the market stops accepting offers. The deadline
// must be in the future.
func (e *Engine) SetCloseDeadline(ctx context.Context, marketID int64, requester string, deadline time.Time) error {
	const op = "set-close-deadline"

	if !deadline.After(e.now()) {
		return e.reject(op, types.Validationf(op, "deadline %s is not in the future", deadline.UTC().Format(time.RFC3339)))
	}

	err := e.store.InTx(ctx, func(tx storage.Tx) error {
		market, txErr := e.lockOpenMarketForCreator(ctx, tx, op, marketID, requester)
		if txErr != nil {
			return txErr
		}
		return tx.SetCloseAt(ctx, market.ID, deadline)
	})
	if err != nil {
		return e.reject(op, err)
	}

	e.logger.Info("close-deadline-set",
		zap.Int64("market-id", marketID),
		zap.Time("deadline", deadline))
	e.publisher.Publish(events.Event{Type: events.DeadlineSet, MarketID: marketID, Actor: requester, Payload: deadline.UTC()})

	return nil
}

// CloseMarket stops a market from accepting offers and acceptances. Closing a
// closed or resolved market is a no-op; closed reports whether this call
// performed the transition.
func (e *Engine) CloseMarket(ctx context.Context, marketID int64) (closed bool, err error) {
	const op = "close-market"

	err = e.store.InTx(ctx, func(tx storage.Tx) error {
		market, txErr := tx.GetMarket(ctx, marketID, storage.LockUpdate)
		if txErr != nil {
			return notFound(op, "market", marketID, txErr)
		}
		if !market.IsOpen() {
			return nil
		}

		closed, txErr = tx.TransitionMarket(ctx, marketID, types.MarketOpen, types.MarketClosed)
		return txErr
	})
	if err != nil {
		return false, e.reject(op, err)
	}

	if closed {
		MarketsClosedTotal.Inc()
		e.logger.Info("market-closed", zap.Int64("market-id", marketID))
		e.publisher.Publish(events.Event{Type: events.MarketClosed, MarketID: marketID})
	}

	return closed, nil
}

// ResolveMarket declares the winning outcome and settles every active matched
// bet in one transaction: the market becomes resolved, the settled bets become
// completed and every open offer is cancelled. Any failure leaves the ledger
// unchanged.
func (e *Engine) ResolveMarket(
	ctx context.Context,
	marketID int64,
	requester string,
	winningOutcome string,
) (types.ResolutionResult, error) {
	const op = "resolve-market"

	winningOutcome = strings.TrimSpace(winningOutcome)
	resolvedAt := e.now().UTC()

	var result types.ResolutionResult
	err := e.store.InTx(ctx, func(tx storage.Tx) error {
		market, txErr := tx.GetMarket(ctx, marketID, storage.LockUpdate)
		if txErr != nil {
			return notFound(op, "market", marketID, txErr)
		}
		if !market.CanResolve(requester) {
			return types.Unauthorizedf(op, "%q may not resolve market %d", requester, marketID)
		}
		if market.Status == types.MarketResolved {
			return types.Statef(op, "market %d is already resolved", marketID)
		}
		if !market.HasOutcome(winningOutcome) {
			return types.Validationf(op, "%q is not an outcome of market %d", winningOutcome, marketID)
		}

		bets, txErr := tx.ListMatchedBets(ctx, types.MatchedFilter{
			MarketID: marketID,
			Status:   types.AcceptedActive,
		})
		if txErr != nil {
			return txErr
		}

		result = settlement.Settle(marketID, winningOutcome, bets)
		result.ResolvedAt = resolvedAt

		changed, txErr := tx.MarkResolved(ctx, marketID, winningOutcome, resolvedAt)
		if txErr != nil {
			return txErr
		}
		if !changed {
			return types.Statef(op, "market %d is already resolved", marketID)
		}

		_, txErr = tx.CompleteActiveBets(ctx, marketID)
		if txErr != nil {
			return txErr
		}

		result.CancelledOffers, txErr = tx.CancelOpenOffers(ctx, marketID)
		return txErr
	})
	if err != nil {
		return types.ResolutionResult{}, e.reject(op, err)
	}

	MarketsResolvedTotal.Inc()
	settlement.Record(result)
	e.logger.Info("market-resolved",
		zap.Int64("market-id", marketID),
		zap.String("winning-outcome", winningOutcome),
		zap.String("resolver", requester),
		zap.Int("settled-bets", len(result.Settlements)),
		zap.Int64("cancelled-offers", result.CancelledOffers))
	e.publisher.Publish(events.Event{Type: events.MarketResolved, MarketID: marketID, Actor: requester, Payload: result})

	return result, nil
}

// RemoveMarkets purges markets with all their offers and matched bets. Only
// configured administrators may purge. Unknown IDs are ignored; the returned
// count is the number of markets actually removed.
func (e *Engine) RemoveMarkets(ctx context.Context, ids []int64, requester string) (int64, error) {
	const op = "remove-markets"

	if !e.admins[requester] {
		return 0, e.reject(op, types.Unauthorizedf(op, "%q is not an administrator", requester))
	}
	if len(ids) == 0 {
		return 0, e.reject(op, types.Validationf(op, "no market ids given"))
	}

	var removed int64
	err := e.store.InTx(ctx, func(tx storage.Tx) error {
		var txErr error
		removed, txErr = tx.DeleteMarkets(ctx, ids)
		return txErr
	})
	if err != nil {
		return 0, e.reject(op, err)
	}

	MarketsRemovedTotal.Add(float64(removed))
	e.logger.Warn("markets-removed",
		zap.Int64s("market-ids", ids),
		zap.Int64("removed", removed),
		zap.String("admin", requester))
	e.publisher.Publish(events.Event{Type: events.MarketsRemoved, Actor: requester, Payload: ids})

	return removed, nil
}

// GetMarket returns one market.
func (e *Engine) GetMarket(ctx context.Context, marketID int64) (types.Market, error) {
	const op = "get-market"

	var market types.Market
	err := e.store.InTx(ctx, func(tx storage.Tx) error {
		var txErr error
		market, txErr = tx.GetMarket(ctx, marketID, storage.LockNone)
		return notFound(op, "market", marketID, txErr)
	})
	if err != nil {
		return types.Market{}, e.reject(op, err)
	}

	return market, nil
}

// ListMarkets returns markets matching filter, ordered by ID.
func (e *Engine) ListMarkets(ctx context.Context, filter types.MarketFilter) ([]types.Market, error) {
	const op = "list-markets"

	var markets []types.Market
	err := e.store.InTx(ctx, func(tx storage.Tx) error {
		var txErr error
		markets, txErr = tx.ListMarkets(ctx, filter)
		return txErr
	})
	if err != nil {
		return nil, e.reject(op, err)
	}

	return markets, nil
}

// ListMarketStats returns open-offer and active-bet totals for each market in
// ids. Every requested ID gets an entry, zeroed when nothing is in play.
func (e *Engine) ListMarketStats(ctx context.Context, ids []int64) (map[int64]types.MarketStats, error) {
	const op = "list-market-stats"

	var stats map[int64]types.MarketStats
	err := e.store.InTx(ctx, func(tx storage.Tx) error {
		var txErr error
		stats, txErr = tx.ListMarketStats(ctx, ids)
		return txErr
	})
	if err != nil {
		return nil, e.reject(op, err)
	}

	for _, id := range ids {
		if _, ok := stats[id]; !ok {
			stats[id] = types.MarketStats{MarketID: id}
		}
	}

	return stats, nil
}

// TimeRemaining projects how long until the market's close deadline. ok is
// false when the market has no deadline. Past deadlines report zero.
func (e *Engine) TimeRemaining(ctx context.Context, marketID int64) (remaining time.Duration, ok bool, err error) {
	market, err := e.GetMarket(ctx, marketID)
	if err != nil {
		return 0, false, err
	}

	return Remaining(market, e.now()), market.CloseAt != nil, nil
}

// Remaining returns the time left before market's deadline at now, clamped at zero.
func Remaining(market types.Market, now time.Time) time.Duration {
	if market.CloseAt == nil {
		return 0
	}

	return max(market.CloseAt.Sub(now), 0)
}

// lockOpenMarketForCreator loads a market for a creator-only edit.
func (e *Engine) lockOpenMarketForCreator(
	ctx context.Context,
	tx storage.Tx,
	op string,
	marketID int64,
	requester string,
) (types.Market, error) {
	market, err := tx.GetMarket(ctx, marketID, storage.LockUpdate)
	if err != nil {
		return types.Market{}, notFound(op, "market", marketID, err)
	}
	if requester != market.CreatorID {
		return types.Market{}, types.Unauthorizedf(op, "only the creator may change market %d", marketID)
	}
	if !market.IsOpen() {
		return types.Market{}, types.Statef(op, "market %d is %s", marketID, market.Status)
	}

	return market, nil
}

// reject records a failed operation and passes err through.
func (e *Engine) reject(op string, err error) error {
	kind := types.KindOf(err)
	label := string(kind)
	if kind == "" {
		label = "internal"
		e.logger.Error("lifecycle-operation-failed", zap.String("op", op), zap.Error(err))
	} else {
		e.logger.Debug("lifecycle-operation-rejected", zap.String("op", op), zap.Error(err))
	}

	OperationErrorsTotal.WithLabelValues(op, label).Inc()
	return err
}

// notFound translates storage.ErrNotFound into a NotFoundError.
func notFound(op string, what string, id int64, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return types.NotFoundf(op, "%s %d does not exist", what, id)
	}
	return err
}

func normalizeOutcomes(op string, outcomes []string) ([]string, error) {
	if len(outcomes) < minOutcomes {
		return nil, types.Validationf(op, "a market needs at least %d outcomes, got %d", minOutcomes, len(outcomes))
	}

	cleaned := make([]string, 0, len(outcomes))
	seen := make(map[string]bool, len(outcomes))
	for i, raw := range outcomes {
		name := strings.TrimSpace(raw)
		if name == "" {
			return nil, types.Validationf(op, "outcome %d is blank", i+1)
		}
		if seen[name] {
			return nil, types.Validationf(op, "outcome %q is duplicated", name)
		}
		seen[name] = true
		cleaned = append(cleaned, name)
	}

	return cleaned, nil
}
