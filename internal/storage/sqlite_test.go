package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mselser95/betledger/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := NewSQLiteStorage(context.Background(), path, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func seedMarket(t *testing.T, store *SQLStore, outcomes ...string) types.Market {
	t.Helper()

	var market types.Market
	err := store.InTx(context.Background(), func(tx Tx) error {
		var err error
		market, err = tx.InsertMarket(context.Background(), types.Market{
			Title:      "Will it rain?",
			Outcomes:   outcomes,
			CreatorID:  "alice",
			ResolverID: "alice",
			CreatedAt:  time.Now(),
		})
		return err
	})
	require.NoError(t, err)

	return market
}

func seedOffer(t *testing.T, store *SQLStore, marketID int64, bettor string, outcome string) types.BetOffer {
	t.Helper()

	var offer types.BetOffer
	err := store.InTx(context.Background(), func(tx Tx) error {
		var err error
		offer, err = tx.InsertOffer(context.Background(), types.BetOffer{
			MarketID:    marketID,
			BettorID:    bettor,
			Outcome:     outcome,
			OfferAmount: 10,
			AskAmount:   20,
			CreatedAt:   time.Now(),
		})
		return err
	})
	require.NoError(t, err)

	return offer
}

func TestSQLite_MarketRoundTrip(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	created := seedMarket(t, store, "Yes", "No", "Maybe")
	require.NotZero(t, created.ID)

	var got types.Market
	err := store.InTx(ctx, func(tx Tx) error {
		var err error
		got, err = tx.GetMarket(ctx, created.ID, LockUpdate)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, "Will it rain?", got.Title)
	assert.Equal(t, []string{"Yes", "No", "Maybe"}, got.Outcomes)
	assert.Equal(t, types.MarketOpen, got.Status)
	assert.Nil(t, got.WinningOutcome)
	assert.Nil(t, got.CloseAt)
	assert.WithinDuration(t, time.Now(), got.CreatedAt, time.Minute)
}

func TestSQLite_GetMarket_NotFound(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	err := store.InTx(ctx, func(tx Tx) error {
		_, err := tx.GetMarket(ctx, 12345, LockNone)
		return err
	})

	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_WinningOutcomeRequiresResolvedStatus(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	market := seedMarket(t, store, "Yes", "No")

	// Resolved without a winning outcome violates the table constraint.
	err := store.InTx(ctx, func(tx Tx) error {
		_, err := tx.TransitionMarket(ctx, market.ID, types.MarketOpen, types.MarketResolved)
		return err
	})
	require.Error(t, err)

	err = store.InTx(ctx, func(tx Tx) error {
		changed, err := tx.MarkResolved(ctx, market.ID, "Yes", time.Now())
		require.True(t, changed)
		return err
	})
	require.NoError(t, err)

	// A second resolution changes nothing.
	err = store.InTx(ctx, func(tx Tx) error {
		changed, err := tx.MarkResolved(ctx, market.ID, "No", time.Now())
		assert.False(t, changed)
		return err
	})
	require.NoError(t, err)

	err = store.InTx(ctx, func(tx Tx) error {
		got, err := tx.GetMarket(ctx, market.ID, LockNone)
		require.NoError(t, err)
		assert.Equal(t, types.MarketResolved, got.Status)
		require.NotNil(t, got.WinningOutcome)
		assert.Equal(t, "Yes", *got.WinningOutcome)
		assert.NotNil(t, got.ResolvedAt)
		return nil
	})
	require.NoError(t, err)
}

func TestSQLite_OfferMustReferenceMarketOutcome(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	market := seedMarket(t, store, "Yes", "No")

	err := store.InTx(ctx, func(tx Tx) error {
		_, err := tx.InsertOffer(ctx, types.BetOffer{
			MarketID:    market.ID,
			BettorID:    "bob",
			Outcome:     "Perhaps",
			OfferAmount: 1,
			AskAmount:   1,
			CreatedAt:   time.Now(),
		})
		return err
	})

	require.Error(t, err)
}

func TestSQLite_AcceptedBetIsUniquePerOffer(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	market := seedMarket(t, store, "Yes", "No")
	offer := seedOffer(t, store, market.ID, "alice", "Yes")

	err := store.InTx(ctx, func(tx Tx) error {
		_, err := tx.InsertAcceptedBet(ctx, offer.ID, "bob", time.Now())
		return err
	})
	require.NoError(t, err)

	err = store.InTx(ctx, func(tx Tx) error {
		_, err := tx.InsertAcceptedBet(ctx, offer.ID, "carol", time.Now())
		return err
	})
	require.Error(t, err)
}

func TestSQLite_TransitionOffer_CheckAndSet(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	market := seedMarket(t, store, "Yes", "No")
	offer := seedOffer(t, store, market.ID, "alice", "Yes")

	var first, second bool
	err := store.InTx(ctx, func(tx Tx) error {
		var err error
		first, err = tx.TransitionOffer(ctx, offer.ID, types.OfferOpen, types.OfferAccepted)
		if err != nil {
			return err
		}
		second, err = tx.TransitionOffer(ctx, offer.ID, types.OfferOpen, types.OfferAccepted)
		return err
	})
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
}

func TestSQLite_MatchedBetsAndCompletion(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	market := seedMarket(t, store, "Yes", "No")
	first := seedOffer(t, store, market.ID, "alice", "Yes")
	second := seedOffer(t, store, market.ID, "bob", "No")
	seedOffer(t, store, market.ID, "carol", "No") // Stays open

	err := store.InTx(ctx, func(tx Tx) error {
		for _, pair := range []struct {
			id       int64
			acceptor string
		}{{second.ID, "carol"}, {first.ID, "bob"}} {
			_, err := tx.TransitionOffer(ctx, pair.id, types.OfferOpen, types.OfferAccepted)
			if err != nil {
				return err
			}
			_, err = tx.InsertAcceptedBet(ctx, pair.id, pair.acceptor, time.Now())
			if err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = store.InTx(ctx, func(tx Tx) error {
		bets, err := tx.ListMatchedBets(ctx, types.MatchedFilter{MarketID: market.ID, Status: types.AcceptedActive})
		require.NoError(t, err)
		require.Len(t, bets, 2)
		assert.Equal(t, first.ID, bets[0].Offer.ID)
		assert.Equal(t, "bob", bets[0].Accepted.AcceptorID)
		assert.Equal(t, first.ID, bets[0].Accepted.BetID)
		assert.Equal(t, types.OfferAccepted, bets[0].Offer.Status)

		asAcceptor, err := tx.ListMatchedBets(ctx, types.MatchedFilter{AcceptorID: "carol"})
		require.NoError(t, err)
		require.Len(t, asAcceptor, 1)
		assert.Equal(t, second.ID, asAcceptor[0].Offer.ID)

		completed, err := tx.CompleteActiveBets(ctx, market.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), completed)

		cancelled, err := tx.CancelOpenOffers(ctx, market.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), cancelled)
		return nil
	})
	require.NoError(t, err)

	err = store.InTx(ctx, func(tx Tx) error {
		active, err := tx.ListMatchedBets(ctx, types.MatchedFilter{MarketID: market.ID, Status: types.AcceptedActive})
		require.NoError(t, err)
		assert.Empty(t, active)

		open, err := tx.ListOffers(ctx, types.OfferFilter{MarketID: market.ID, Status: types.OfferOpen})
		require.NoError(t, err)
		assert.Empty(t, open)
		return nil
	})
	require.NoError(t, err)
}

func TestSQLite_DueMarkets(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	past := seedMarket(t, store, "Yes", "No")
	future := seedMarket(t, store, "Yes", "No")
	seedMarket(t, store, "Yes", "No") // No deadline

	err := store.InTx(ctx, func(tx Tx) error {
		err := tx.SetCloseAt(ctx, past.ID, now.Add(-time.Minute))
		if err != nil {
			return err
		}
		return tx.SetCloseAt(ctx, future.ID, now.Add(time.Hour))
	})
	require.NoError(t, err)

	var due []int64
	err = store.InTx(ctx, func(tx Tx) error {
		var err error
		due, err = tx.DueMarkets(ctx, now)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{past.ID}, due)
}

func TestSQLite_ListMarketsFilter(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	open := seedMarket(t, store, "Yes", "No")
	closed := seedMarket(t, store, "A", "B")

	err := store.InTx(ctx, func(tx Tx) error {
		_, err := tx.TransitionMarket(ctx, closed.ID, types.MarketOpen, types.MarketClosed)
		return err
	})
	require.NoError(t, err)

	err = store.InTx(ctx, func(tx Tx) error {
		all, err := tx.ListMarkets(ctx, types.MarketFilter{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, []string{"A", "B"}, all[1].Outcomes)

		onlyOpen, err := tx.ListMarkets(ctx, types.MarketFilter{Status: types.MarketOpen})
		require.NoError(t, err)
		require.Len(t, onlyOpen, 1)
		assert.Equal(t, open.ID, onlyOpen[0].ID)

		limited, err := tx.ListMarkets(ctx, types.MarketFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, limited, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestSQLite_DeleteMarketsCascades(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	doomed := seedMarket(t, store, "Yes", "No")
	kept := seedMarket(t, store, "Yes", "No")
	offer := seedOffer(t, store, doomed.ID, "alice", "Yes")
	seedOffer(t, store, kept.ID, "alice", "No")

	err := store.InTx(ctx, func(tx Tx) error {
		_, err := tx.InsertAcceptedBet(ctx, offer.ID, "bob", time.Now())
		return err
	})
	require.NoError(t, err)

	err = store.InTx(ctx, func(tx Tx) error {
		n, err := tx.DeleteMarkets(ctx, []int64{doomed.ID, 9999})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		return nil
	})
	require.NoError(t, err)

	err = store.InTx(ctx, func(tx Tx) error {
		_, err := tx.GetMarket(ctx, doomed.ID, LockNone)
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = tx.GetOffer(ctx, offer.ID, LockNone)
		assert.ErrorIs(t, err, ErrNotFound)

		bets, err := tx.ListMatchedBets(ctx, types.MatchedFilter{AcceptorID: "bob"})
		require.NoError(t, err)
		assert.Empty(t, bets)

		remaining, err := tx.ListOffers(ctx, types.OfferFilter{})
		require.NoError(t, err)
		assert.Len(t, remaining, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestSQLite_InTxRollsBack(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	market := seedMarket(t, store, "Yes", "No")

	err := store.InTx(ctx, func(tx Tx) error {
		setErr := tx.SetResolver(ctx, market.ID, "mallory")
		require.NoError(t, setErr)
		return errors.New("abort")
	})
	require.Error(t, err)

	err = store.InTx(ctx, func(tx Tx) error {
		got, getErr := tx.GetMarket(ctx, market.ID, LockNone)
		require.NoError(t, getErr)
		assert.Equal(t, "alice", got.ResolverID)
		return nil
	})
	require.NoError(t, err)
}

func TestSQLite_ListMarketStats(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	market := seedMarket(t, store, "Yes", "No")
	quiet := seedMarket(t, store, "Yes", "No")

	matched := seedOffer(t, store, market.ID, "alice", "Yes")
	cancelled := seedOffer(t, store, market.ID, "bob", "No")
	seedOffer(t, store, market.ID, "carol", "Yes")
	seedOffer(t, store, market.ID, "dave", "No")

	err := store.InTx(ctx, func(tx Tx) error {
		_, txErr := tx.TransitionOffer(ctx, matched.ID, types.OfferOpen, types.OfferAccepted)
		if txErr != nil {
			return txErr
		}
		_, txErr = tx.InsertAcceptedBet(ctx, matched.ID, "erin", time.Now())
		if txErr != nil {
			return txErr
		}
		_, txErr = tx.TransitionOffer(ctx, cancelled.ID, types.OfferOpen, types.OfferCancelled)
		return txErr
	})
	require.NoError(t, err)

	var stats map[int64]types.MarketStats
	err = store.InTx(ctx, func(tx Tx) error {
		var txErr error
		stats, txErr = tx.ListMarketStats(ctx, []int64{market.ID, quiet.ID})
		return txErr
	})
	require.NoError(t, err)

	assert.Equal(t, types.MarketStats{
		MarketID:     market.ID,
		OpenOffers:   2,
		OpenVolume:   20,
		ActiveBets:   1,
		ActiveVolume: 10,
	}, stats[market.ID])
	assert.InDelta(t, 30.0, stats[market.ID].TotalVolume(), 1e-9)
	assert.NotContains(t, stats, quiet.ID)

	err = store.InTx(ctx, func(tx Tx) error {
		_, txErr := tx.CompleteActiveBets(ctx, market.ID)
		if txErr != nil {
			return txErr
		}
		stats, txErr = tx.ListMarketStats(ctx, []int64{market.ID})
		return txErr
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats[market.ID].ActiveBets)
	assert.Equal(t, int64(2), stats[market.ID].OpenOffers)
}

func TestSQLite_ListMarketStats_NoIDs(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	err := store.InTx(ctx, func(tx Tx) error {
		stats, txErr := tx.ListMarketStats(ctx, nil)
		assert.Empty(t, stats)
		return txErr
	})
	require.NoError(t, err)
}
