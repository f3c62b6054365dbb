package matching

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/mselser95/betledger/internal/equity"
	"github.com/mselser95/betledger/internal/events"
	"github.com/mselser95/betledger/internal/storage"
	"github.com/mselser95/betledger/pkg/types"
	"go.uber.org/zap"
)

// OfferRequest is a fully collected offer ready to be placed.
type OfferRequest struct {
	MarketID    int64
	Bettor      string
	Outcome     string
	OfferAmount float64 // Bettor's risk, must be positive
	AskAmount   float64 // Bettor's desired win, zero makes a free bet
	Target      string  // Optional: only this participant may accept
}

// Engine places, cancels and accepts bet offers.
type Engine struct {
	store     storage.Store
	publisher events.Publisher
	now       func() time.Time
	logger    *zap.Logger
}

// Config holds matching engine configuration.
type Config struct {
	Store     storage.Store
	Publisher events.Publisher // Optional, defaults to events.Nop
	Clock     func() time.Time // Optional, defaults to time.Now
	Logger    *zap.Logger
}

// New creates a new matching engine.
func New(cfg *Config) *Engine {
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
		now:       clock,
		logger:    cfg.Logger,
	}
}

// CreateOffer places an open offer on an open market. Offering on a market
// one created is allowed. An unknown market is reported before a closed one,
// and both before any problem with the request itself.
func (e *Engine) CreateOffer(ctx context.Context, req OfferRequest) (types.BetOffer, error) {
	const op = "create-offer"

	var offer types.BetOffer
	err := e.store.InTx(ctx, func(tx storage.Tx) error {
		market, txErr := tx.GetMarket(ctx, req.MarketID, storage.LockShare)
		if txErr != nil {
			return notFound(op, "market", req.MarketID, txErr)
		}
		if !market.IsOpen() {
			return types.Statef(op, "market %d is %s", market.ID, market.Status)
		}

		txErr = validateRequest(op, &req)
		if txErr != nil {
			return txErr
		}
		if !market.HasOutcome(req.Outcome) {
			return types.Validationf(op, "%q is not an outcome of market %d", req.Outcome, market.ID)
		}

		var target *string
		if req.Target != "" {
			target = &req.Target
		}

		offer, txErr = tx.InsertOffer(ctx, types.BetOffer{
			MarketID:    market.ID,
			BettorID:    req.Bettor,
			Outcome:     req.Outcome,
			OfferAmount: req.OfferAmount,
			AskAmount:   req.AskAmount,
			Status:      types.OfferOpen,
			TargetID:    target,
			CreatedAt:   e.now(),
		})
		return txErr
	})
	if err != nil {
		return types.BetOffer{}, e.reject(op, err)
	}

	OffersCreatedTotal.Inc()
	e.logger.Info("offer-created",
		zap.Int64("bet-id", offer.ID),
		zap.Int64("market-id", offer.MarketID),
		zap.String("bettor", offer.BettorID),
		zap.String("outcome", offer.Outcome),
		zap.Float64("offer-amount", offer.OfferAmount),
		zap.Float64("ask-amount", offer.AskAmount),
		zap.String("target", req.Target))
	e.publisher.Publish(events.Event{
		Type:     events.OfferCreated,
		MarketID: offer.MarketID,
		BetID:    offer.ID,
		Actor:    offer.BettorID,
		Payload:  offer,
	})

	return offer, nil
}

// CancelOffer withdraws an open offer. Only its bettor may cancel it.
func (e *Engine) CancelOffer(ctx context.Context, betID int64, requester string) error {
	const op = "cancel-offer"

	var offer types.BetOffer
	err := e.store.InTx(ctx, func(tx storage.Tx) error {
		var txErr error
		offer, txErr = tx.GetOffer(ctx, betID, storage.LockUpdate)
		if txErr != nil {
			return notFound(op, "offer", betID, txErr)
		}
		if offer.BettorID != requester {
			return types.Unauthorizedf(op, "only the bettor may cancel offer %d", betID)
		}
		if offer.Status != types.OfferOpen {
			return types.Statef(op, "offer %d is %s", betID, offer.Status)
		}

		changed, txErr := tx.TransitionOffer(ctx, betID, types.OfferOpen, types.OfferCancelled)
		if txErr != nil {
			return txErr
		}
		if !changed {
			return types.Statef(op, "offer %d is no longer open", betID)
		}
		return nil
	})
	if err != nil {
		return e.reject(op, err)
	}

	OffersCancelledTotal.Inc()
	e.logger.Info("offer-cancelled",
		zap.Int64("bet-id", betID),
		zap.Int64("market-id", offer.MarketID),
		zap.String("bettor", requester))
	e.publisher.Publish(events.Event{Type: events.OfferCancelled, MarketID: offer.MarketID, BetID: betID, Actor: requester})

	return nil
}

// AcceptOffer matches acceptor against an open offer. Concurrent calls for the
// same offer produce exactly one AcceptedBet; the others fail with a
// StateError.
//
// The market row is locked before the offer row, the same order resolution
// uses, so the two never wait on each other in a cycle.
func (e *Engine) AcceptOffer(ctx context.Context, betID int64, acceptor string) (types.AcceptedBet, error) {
	const op = "accept-offer"

	start := time.Now()
	defer func() {
		AcceptDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	var offer types.BetOffer
	var accepted types.AcceptedBet
	err := e.store.InTx(ctx, func(tx storage.Tx) error {
		peek, txErr := tx.GetOffer(ctx, betID, storage.LockNone)
		if txErr != nil {
			return notFound(op, "offer", betID, txErr)
		}

		market, txErr := tx.GetMarket(ctx, peek.MarketID, storage.LockShare)
		if txErr != nil {
			return notFound(op, "market", peek.MarketID, txErr)
		}
		if !market.IsOpen() {
			return types.Statef(op, "market %d is %s", market.ID, market.Status)
		}

		offer, txErr = tx.GetOffer(ctx, betID, storage.LockUpdate)
		if txErr != nil {
			return notFound(op, "offer", betID, txErr)
		}
		if offer.Status != types.OfferOpen {
			return types.Statef(op, "offer %d is %s", betID, offer.Status)
		}
		if acceptor == offer.BettorID {
			return types.Unauthorizedf(op, "bettor may not accept their own offer %d", betID)
		}
		if !offer.CanBeAcceptedBy(acceptor) {
			return types.Unauthorizedf(op, "offer %d is reserved for another participant", betID)
		}

		changed, txErr := tx.TransitionOffer(ctx, betID, types.OfferOpen, types.OfferAccepted)
		if txErr != nil {
			return txErr
		}
		if !changed {
			return types.Statef(op, "offer %d was accepted by someone else", betID)
		}

		accepted, txErr = tx.InsertAcceptedBet(ctx, betID, acceptor, e.now())
		return txErr
	})
	if err != nil {
		if types.KindOf(err) == types.KindState {
			AcceptConflictsTotal.Inc()
		}
		return types.AcceptedBet{}, e.reject(op, err)
	}

	OffersAcceptedTotal.Inc()
	MatchedVolumeTotal.Add(offer.OfferAmount + offer.AskAmount)
	e.logger.Info("offer-accepted",
		zap.Int64("bet-id", betID),
		zap.Int64("accepted-bet-id", accepted.ID),
		zap.Int64("market-id", offer.MarketID),
		zap.String("bettor", offer.BettorID),
		zap.String("acceptor", acceptor))
	e.publisher.Publish(events.Event{
		Type:     events.OfferAccepted,
		MarketID: offer.MarketID,
		BetID:    betID,
		Actor:    acceptor,
		Payload:  types.MatchedBet{Offer: offer, Accepted: accepted},
	})

	return accepted, nil
}

// ExplainOffer describes what each side gains or loses under every outcome,
// plus the acceptor's break-even probability. It changes nothing.
func (e *Engine) ExplainOffer(ctx context.Context, betID int64) (equity.Explanation, error) {
	const op = "explain-offer"

	var explanation equity.Explanation
	err := e.store.InTx(ctx, func(tx storage.Tx) error {
		offer, txErr := tx.GetOffer(ctx, betID, storage.LockNone)
		if txErr != nil {
			return notFound(op, "offer", betID, txErr)
		}

		market, txErr := tx.GetMarket(ctx, offer.MarketID, storage.LockNone)
		if txErr != nil {
			return notFound(op, "market", offer.MarketID, txErr)
		}

		explanation = equity.Explain(market.Outcomes, offer)
		return nil
	})
	if err != nil {
		return equity.Explanation{}, e.reject(op, err)
	}

	return explanation, nil
}

// ListOffers returns offers matching filter, ordered by ID.
func (e *Engine) ListOffers(ctx context.Context, filter types.OfferFilter) ([]types.BetOffer, error) {
	const op = "list-offers"

	var offers []types.BetOffer
	err := e.store.InTx(ctx, func(tx storage.Tx) error {
		var txErr error
		offers, txErr = tx.ListOffers(ctx, filter)
		return txErr
	})
	if err != nil {
		return nil, e.reject(op, err)
	}

	return offers, nil
}

// ParticipantBets returns a participant's open offers and the active matched
// bets they hold on either side.
func (e *Engine) ParticipantBets(ctx context.Context, participant string) (types.ParticipantBets, error) {
	const op = "participant-bets"

	if strings.TrimSpace(participant) == "" {
		return types.ParticipantBets{}, e.reject(op, types.Validationf(op, "participant must not be blank"))
	}

	bets := types.ParticipantBets{Participant: participant}
	err := e.store.InTx(ctx, func(tx storage.Tx) error {
		var txErr error
		bets.OpenOffers, txErr = tx.ListOffers(ctx, types.OfferFilter{
			BettorID: participant,
			Status:   types.OfferOpen,
		})
		if txErr != nil {
			return txErr
		}

		bets.AsBettor, txErr = tx.ListMatchedBets(ctx, types.MatchedFilter{
			BettorID: participant,
			Status:   types.AcceptedActive,
		})
		if txErr != nil {
			return txErr
		}

		bets.AsAcceptor, txErr = tx.ListMatchedBets(ctx, types.MatchedFilter{
			AcceptorID: participant,
			Status:     types.AcceptedActive,
		})
		return txErr
	})
	if err != nil {
		return types.ParticipantBets{}, e.reject(op, err)
	}

	return bets, nil
}

func validateRequest(op string, req *OfferRequest) error {
	req.Bettor = strings.TrimSpace(req.Bettor)
	req.Outcome = strings.TrimSpace(req.Outcome)
	req.Target = strings.TrimSpace(req.Target)

	switch {
	case req.Bettor == "":
		return types.Validationf(op, "bettor must not be blank")
	case !isFinite(req.OfferAmount) || !isFinite(req.AskAmount):
		return types.Validationf(op, "amounts must be finite numbers")
	case req.OfferAmount <= 0:
		return types.Validationf(op, "offer amount must be positive, got %g", req.OfferAmount)
	case req.AskAmount < 0:
		return types.Validationf(op, "ask amount must not be negative, got %g", req.AskAmount)
	case req.Target != "" && req.Target == req.Bettor:
		return types.Validationf(op, "an offer cannot target its own bettor")
	}

	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// reject records a failed operation and passes err through.
func (e *Engine) reject(op string, err error) error {
	kind := types.KindOf(err)
	label := string(kind)
	if kind == "" {
		label = "internal"
		e.logger.Error("matching-operation-failed", zap.String("op", op), zap.Error(err))
	} else {
		e.logger.Debug("matching-operation-rejected", zap.String("op", op), zap.Error(err))
	}

	OperationErrorsTotal.WithLabelValues(op, label).Inc()
	return err
}

func notFound(op string, what string, id int64, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return types.NotFoundf(op, "%s %d does not exist", what, id)
	}
	return err
}
