package matching

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/mselser95/betledger/internal/equity"
	"github.com/mselser95/betledger/internal/events"
	"github.com/mselser95/betledger/internal/storage"
	"github.com/mselser95/betledger/internal/testutil"
	"github.com/mselser95/betledger/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	store     storage.Store
	publisher *testutil.MockPublisher
	engine    *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := testutil.NewSQLiteStore(t)
	publisher := testutil.NewMockPublisher()
	clock := testutil.NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	return &fixture{
		store:     store,
		publisher: publisher,
		engine: New(&Config{
			Store:     store,
			Publisher: publisher,
			Clock:     clock.Now,
			Logger:    zaptest.NewLogger(t),
		}),
	}
}

// market inserts a market directly through the store with the given status.
func (f *fixture) market(t *testing.T, status types.MarketStatus, outcomes ...string) types.Market {
	t.Helper()
	ctx := context.Background()

	if len(outcomes) == 0 {
		outcomes = testutil.RainMarket.Outcomes
	}

	var market types.Market
	err := f.store.InTx(ctx, func(tx storage.Tx) error {
		var err error
		market, err = tx.InsertMarket(ctx, types.Market{
			Title:      testutil.RainMarket.Title,
			Outcomes:   outcomes,
			CreatorID:  "owner",
			ResolverID: "owner",
			CreatedAt:  time.Now(),
		})
		if err != nil {
			return err
		}
		switch status {
		case types.MarketClosed:
			_, err = tx.TransitionMarket(ctx, market.ID, types.MarketOpen, types.MarketClosed)
		case types.MarketResolved:
			_, err = tx.MarkResolved(ctx, market.ID, outcomes[0], time.Now())
		}
		return err
	})
	require.NoError(t, err)

	return market
}

func (f *fixture) offer(t *testing.T, marketID int64, bettor string, offer float64, ask float64) types.BetOffer {
	t.Helper()

	placed, err := f.engine.CreateOffer(context.Background(), OfferRequest{
		MarketID:    marketID,
		Bettor:      bettor,
		Outcome:     "Yes",
		OfferAmount: offer,
		AskAmount:   ask,
	})
	require.NoError(t, err)
	return placed
}

func TestCreateOffer(t *testing.T) {
	f := newFixture(t)
	market := f.market(t, types.MarketOpen)

	placed, err := f.engine.CreateOffer(context.Background(), OfferRequest{
		MarketID:    market.ID,
		Bettor:      "A",
		Outcome:     " Yes ",
		OfferAmount: 10,
		AskAmount:   20,
		Target:      "B",
	})
	require.NoError(t, err)

	assert.NotZero(t, placed.ID)
	assert.Equal(t, market.ID, placed.MarketID)
	assert.Equal(t, "Yes", placed.Outcome)
	assert.Equal(t, types.OfferOpen, placed.Status)
	require.NotNil(t, placed.TargetID)
	assert.Equal(t, "B", *placed.TargetID)
	assert.Equal(t, []events.Type{events.OfferCreated}, f.publisher.Types())
}

func TestCreateOffer_OwnMarketAllowed(t *testing.T) {
	f := newFixture(t)
	market := f.market(t, types.MarketOpen)

	_, err := f.engine.CreateOffer(context.Background(), OfferRequest{
		MarketID: market.ID, Bettor: market.CreatorID, Outcome: "No", OfferAmount: 1, AskAmount: 0,
	})

	assert.NoError(t, err)
}

func TestCreateOffer_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		status  types.MarketStatus
		req     func(marketID int64) OfferRequest
		wantErr error
	}{
		{
			name:    "negative-offer",
			status:  types.MarketOpen,
			req:     func(id int64) OfferRequest { return OfferRequest{MarketID: id, Bettor: "A", Outcome: "Yes", OfferAmount: -5, AskAmount: 10} },
			wantErr: types.ErrValidation,
		},
		{
			name:    "zero-offer",
			status:  types.MarketOpen,
			req:     func(id int64) OfferRequest { return OfferRequest{MarketID: id, Bettor: "A", Outcome: "Yes", OfferAmount: 0, AskAmount: 10} },
			wantErr: types.ErrValidation,
		},
		{
			name:    "negative-ask",
			status:  types.MarketOpen,
			req:     func(id int64) OfferRequest { return OfferRequest{MarketID: id, Bettor: "A", Outcome: "Yes", OfferAmount: 5, AskAmount: -1} },
			wantErr: types.ErrValidation,
		},
		{
			name:    "nan-amount",
			status:  types.MarketOpen,
			req:     func(id int64) OfferRequest { return OfferRequest{MarketID: id, Bettor: "A", Outcome: "Yes", OfferAmount: math.NaN(), AskAmount: 1} },
			wantErr: types.ErrValidation,
		},
		{
			name:    "infinite-ask",
			status:  types.MarketOpen,
			req:     func(id int64) OfferRequest { return OfferRequest{MarketID: id, Bettor: "A", Outcome: "Yes", OfferAmount: 1, AskAmount: math.Inf(1)} },
			wantErr: types.ErrValidation,
		},
		{
			name:    "unknown-outcome",
			status:  types.MarketOpen,
			req:     func(id int64) OfferRequest { return OfferRequest{MarketID: id, Bettor: "A", Outcome: "Snow", OfferAmount: 1, AskAmount: 1} },
			wantErr: types.ErrValidation,
		},
		{
			name:    "target-is-bettor",
			status:  types.MarketOpen,
			req:     func(id int64) OfferRequest { return OfferRequest{MarketID: id, Bettor: "A", Outcome: "Yes", OfferAmount: 1, AskAmount: 1, Target: "A"} },
			wantErr: types.ErrValidation,
		},
		{
			name:    "unknown-market",
			status:  types.MarketOpen,
			req:     func(id int64) OfferRequest { return OfferRequest{MarketID: id + 100, Bettor: "A", Outcome: "Yes", OfferAmount: 1, AskAmount: 1} },
			wantErr: types.ErrNotFound,
		},
		{
			name:    "unknown-market-with-bad-amount",
			status:  types.MarketOpen,
			req:     func(id int64) OfferRequest { return OfferRequest{MarketID: id + 100, Bettor: "A", Outcome: "Yes", OfferAmount: -5, AskAmount: 1} },
			wantErr: types.ErrNotFound,
		},
		{
			name:    "closed-market-with-bad-amount",
			status:  types.MarketClosed,
			req:     func(id int64) OfferRequest { return OfferRequest{MarketID: id, Bettor: "A", Outcome: "Yes", OfferAmount: -5, AskAmount: 1} },
			wantErr: types.ErrState,
		},
		{
			name:    "closed-market",
			status:  types.MarketClosed,
			req:     func(id int64) OfferRequest { return OfferRequest{MarketID: id, Bettor: "A", Outcome: "Yes", OfferAmount: 1, AskAmount: 1} },
			wantErr: types.ErrState,
		},
		{
			name:    "resolved-market",
			status:  types.MarketResolved,
			req:     func(id int64) OfferRequest { return OfferRequest{MarketID: id, Bettor: "A", Outcome: "Yes", OfferAmount: 1, AskAmount: 1} },
			wantErr: types.ErrState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			market := f.market(t, tt.status)

			_, err := f.engine.CreateOffer(context.Background(), tt.req(market.ID))

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.publisher.Types())
		})
	}
}

func TestAcceptOffer_Scenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	market := f.market(t, types.MarketOpen)
	placed := f.offer(t, market.ID, "A", 10, 20)

	accepted, err := f.engine.AcceptOffer(ctx, placed.ID, "B")
	require.NoError(t, err)
	assert.NotZero(t, accepted.ID)
	assert.Equal(t, placed.ID, accepted.BetID)
	assert.Equal(t, "B", accepted.AcceptorID)
	assert.Equal(t, types.AcceptedActive, accepted.Status)

	_, err = f.engine.AcceptOffer(ctx, placed.ID, "C")
	assert.ErrorIs(t, err, types.ErrState)

	offers, err := f.engine.ListOffers(ctx, types.OfferFilter{MarketID: market.ID})
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, types.OfferAccepted, offers[0].Status)
}

func TestAcceptOffer_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("self-acceptance", func(t *testing.T) {
		f := newFixture(t)
		market := f.market(t, types.MarketOpen)
		placed := f.offer(t, market.ID, "A", 10, 20)

		_, err := f.engine.AcceptOffer(ctx, placed.ID, "A")
		assert.ErrorIs(t, err, types.ErrUnauthorized)
	})

	t.Run("not-the-target", func(t *testing.T) {
		f := newFixture(t)
		market := f.market(t, types.MarketOpen)
		placed, err := f.engine.CreateOffer(ctx, OfferRequest{
			MarketID: market.ID, Bettor: "A", Outcome: "Yes", OfferAmount: 1, AskAmount: 1, Target: "B",
		})
		require.NoError(t, err)

		_, err = f.engine.AcceptOffer(ctx, placed.ID, "C")
		assert.ErrorIs(t, err, types.ErrUnauthorized)

		_, err = f.engine.AcceptOffer(ctx, placed.ID, "B")
		assert.NoError(t, err)
	})

	t.Run("unknown-offer", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.AcceptOffer(ctx, 31337, "B")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("cancelled-offer", func(t *testing.T) {
		f := newFixture(t)
		market := f.market(t, types.MarketOpen)
		placed := f.offer(t, market.ID, "A", 10, 20)
		require.NoError(t, f.engine.CancelOffer(ctx, placed.ID, "A"))

		_, err := f.engine.AcceptOffer(ctx, placed.ID, "B")
		assert.ErrorIs(t, err, types.ErrState)
	})

	t.Run("closed-market", func(t *testing.T) {
		f := newFixture(t)
		market := f.market(t, types.MarketOpen)
		placed := f.offer(t, market.ID, "A", 10, 20)

		err := f.store.InTx(ctx, func(tx storage.Tx) error {
			_, txErr := tx.TransitionMarket(ctx, market.ID, types.MarketOpen, types.MarketClosed)
			return txErr
		})
		require.NoError(t, err)

		_, err = f.engine.AcceptOffer(ctx, placed.ID, "B")
		assert.ErrorIs(t, err, types.ErrState)
	})
}

func TestAcceptOffer_ConcurrentExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	market := f.market(t, types.MarketOpen)
	placed := f.offer(t, market.ID, "A", 10, 20)

	const acceptors = 8
	var wg sync.WaitGroup
	errs := make([]error, acceptors)

	for i := range acceptors {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.AcceptOffer(ctx, placed.ID, fmt.Sprintf("acceptor-%d", i))
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, types.ErrState)
	}
	assert.Equal(t, 1, successes)

	var bets []types.MatchedBet
	err := f.store.InTx(ctx, func(tx storage.Tx) error {
		var txErr error
		bets, txErr = tx.ListMatchedBets(ctx, types.MatchedFilter{MarketID: market.ID})
		return txErr
	})
	require.NoError(t, err)
	assert.Len(t, bets, 1)
}

func TestCancelOffer(t *testing.T) {
	ctx := context.Background()

	t.Run("bettor-cancels", func(t *testing.T) {
		f := newFixture(t)
		market := f.market(t, types.MarketOpen)
		placed := f.offer(t, market.ID, "A", 10, 20)

		require.NoError(t, f.engine.CancelOffer(ctx, placed.ID, "A"))

		offers, err := f.engine.ListOffers(ctx, types.OfferFilter{MarketID: market.ID})
		require.NoError(t, err)
		require.Len(t, offers, 1)
		assert.Equal(t, types.OfferCancelled, offers[0].Status)
		assert.Equal(t, []events.Type{events.OfferCreated, events.OfferCancelled}, f.publisher.Types())
	})

	t.Run("non-owner", func(t *testing.T) {
		f := newFixture(t)
		market := f.market(t, types.MarketOpen)
		placed := f.offer(t, market.ID, "A", 10, 20)

		err := f.engine.CancelOffer(ctx, placed.ID, "B")
		assert.ErrorIs(t, err, types.ErrUnauthorized)
	})

	t.Run("already-accepted", func(t *testing.T) {
		f := newFixture(t)
		market := f.market(t, types.MarketOpen)
		placed := f.offer(t, market.ID, "A", 10, 20)
		_, err := f.engine.AcceptOffer(ctx, placed.ID, "B")
		require.NoError(t, err)

		err = f.engine.CancelOffer(ctx, placed.ID, "A")
		assert.ErrorIs(t, err, types.ErrState)
	})

	t.Run("unknown-offer", func(t *testing.T) {
		f := newFixture(t)
		err := f.engine.CancelOffer(ctx, 5, "A")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestExplainOffer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	market := f.market(t, types.MarketOpen, "Yes", "No", "Maybe")
	placed := f.offer(t, market.ID, "A", 10, 20)

	explanation, err := f.engine.ExplainOffer(ctx, placed.ID)
	require.NoError(t, err)

	assert.Equal(t, equity.KindPercent, explanation.BreakEven.Kind)
	assert.InDelta(t, 66.7, equity.Round1(explanation.BreakEven.Percent), 1e-9)
	require.Len(t, explanation.Payoffs, 3)
	assert.Equal(t, "Yes", explanation.Payoffs[0].Outcome)
	assert.InDelta(t, 20.0, explanation.Payoffs[0].Bettor, 1e-9)
	assert.InDelta(t, -20.0, explanation.Payoffs[0].Acceptor, 1e-9)
	assert.InDelta(t, -10.0, explanation.Payoffs[2].Bettor, 1e-9)

	_, err = f.engine.ExplainOffer(ctx, placed.ID+1)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestParticipantBets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	market := f.market(t, types.MarketOpen)

	open := f.offer(t, market.ID, "A", 1, 1)
	asBettor := f.offer(t, market.ID, "A", 2, 2)
	theirs := f.offer(t, market.ID, "B", 3, 3)
	cancelled := f.offer(t, market.ID, "A", 4, 4)

	_, err := f.engine.AcceptOffer(ctx, asBettor.ID, "B")
	require.NoError(t, err)
	_, err = f.engine.AcceptOffer(ctx, theirs.ID, "A")
	require.NoError(t, err)
	require.NoError(t, f.engine.CancelOffer(ctx, cancelled.ID, "A"))

	bets, err := f.engine.ParticipantBets(ctx, "A")
	require.NoError(t, err)

	assert.Equal(t, "A", bets.Participant)
	require.Len(t, bets.OpenOffers, 1)
	assert.Equal(t, open.ID, bets.OpenOffers[0].ID)
	require.Len(t, bets.AsBettor, 1)
	assert.Equal(t, asBettor.ID, bets.AsBettor[0].Offer.ID)
	require.Len(t, bets.AsAcceptor, 1)
	assert.Equal(t, theirs.ID, bets.AsAcceptor[0].Offer.ID)

	_, err = f.engine.ParticipantBets(ctx, " ")
	assert.ErrorIs(t, err, types.ErrValidation)
}
