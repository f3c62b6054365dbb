package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mselser95/betledger/pkg/types"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// Lock selects the row lock taken by a read inside a transaction.
type Lock int

const (
	// LockNone reads without locking.
	LockNone Lock = iota
	// LockShare blocks concurrent writers of the row until commit.
	LockShare
	// LockUpdate blocks concurrent lockers and writers of the row until commit.
	LockUpdate
)

// Store is the ledger's single source of truth.
// Every read and write happens inside InTx.
type Store interface {
	// InTx runs fn in one transaction. It commits if fn returns nil and rolls
	// back otherwise, returning fn's error unchanged.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// Ping checks that the backing database is reachable.
	Ping(ctx context.Context) error

	// Close closes the storage connection.
	Close() error
}

// Tx is the set of ledger operations available inside a transaction.
// Conditional writes report whether a row actually changed so callers can
// implement check-and-set transitions.
type Tx interface {
	// InsertMarket persists a market and its outcomes, returning it with ID set.
	InsertMarket(ctx context.Context, m types.Market) (types.Market, error)
	// GetMarket loads a market with its outcomes or returns ErrNotFound.
	GetMarket(ctx context.Context, id int64, lock Lock) (types.Market, error)
	ListMarkets(ctx context.Context, filter types.MarketFilter) ([]types.Market, error)
	// DueMarkets returns IDs of open markets whose deadline is at or before now.
	DueMarkets(ctx context.Context, now time.Time) ([]int64, error)
	SetResolver(ctx context.Context, id int64, resolverID string) error
	SetCloseAt(ctx context.Context, id int64, closeAt time.Time) error
	// TransitionMarket moves a market from one status to another.
	TransitionMarket(ctx context.Context, id int64, from types.MarketStatus, to types.MarketStatus) (bool, error)
	// MarkResolved sets the winning outcome on a market that is not yet resolved.
	MarkResolved(ctx context.Context, id int64, winningOutcome string, at time.Time) (bool, error)
	// ListMarketStats returns open-offer and active-bet counts and volumes per
	// market. Markets with neither are absent from the map.
	ListMarketStats(ctx context.Context, ids []int64) (map[int64]types.MarketStats, error)
	// DeleteMarkets removes markets with their outcomes, offers and accepted bets.
	DeleteMarkets(ctx context.Context, ids []int64) (int64, error)

	InsertOffer(ctx context.Context, o types.BetOffer) (types.BetOffer, error)
	// GetOffer loads an offer or returns ErrNotFound.
	GetOffer(ctx context.Context, id int64, lock Lock) (types.BetOffer, error)
	ListOffers(ctx context.Context, filter types.OfferFilter) ([]types.BetOffer, error)
	// TransitionOffer moves an offer from one status to another.
	TransitionOffer(ctx context.Context, id int64, from types.OfferStatus, to types.OfferStatus) (bool, error)
	// CancelOpenOffers cancels every open offer of a market.
	CancelOpenOffers(ctx context.Context, marketID int64) (int64, error)

	InsertAcceptedBet(ctx context.Context, betID int64, acceptorID string, at time.Time) (types.AcceptedBet, error)
	ListMatchedBets(ctx context.Context, filter types.MatchedFilter) ([]types.MatchedBet, error)
	// CompleteActiveBets marks every active accepted bet of a market completed.
	CompleteActiveBets(ctx context.Context, marketID int64) (int64, error)
}
