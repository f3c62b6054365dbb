package types

import (
	"slices"
	"time"
)

// MarketStatus is the lifecycle state of a market.
type MarketStatus string

const (
	MarketOpen     MarketStatus = "open"
	MarketClosed   MarketStatus = "closed"
	MarketResolved MarketStatus = "resolved"
)

// Market is a wagering question with mutually exclusive outcomes.
type Market struct {
	ID             int64        `json:"id"`
	Title          string       `json:"title"`
	Outcomes       []string     `json:"outcomes"` // Ordered as created
	Status         MarketStatus `json:"status"`
	CreatorID      string       `json:"creator_id"`
	ResolverID     string       `json:"resolver_id"`
	CloseAt        *time.Time   `json:"close_at,omitempty"`
	WinningOutcome *string      `json:"winning_outcome,omitempty"` // Set iff Status == MarketResolved
	CreatedAt      time.Time    `json:"created_at"`
	ResolvedAt     *time.Time   `json:"resolved_at,omitempty"`
}

// HasOutcome reports whether name is one of the market's outcomes.
// Matching is exact; outcome names are trimmed on creation.
func (m *Market) HasOutcome(name string) bool {
	return slices.Contains(m.Outcomes, name)
}

// IsOpen reports whether the market accepts new offers and acceptances.
func (m *Market) IsOpen() bool {
	return m.Status == MarketOpen
}

// CanResolve reports whether participant is allowed to declare the winning outcome.
func (m *Market) CanResolve(participant string) bool {
	return participant == m.CreatorID || participant == m.ResolverID
}

// MarketFilter narrows a market listing. Zero values mean "any".
type MarketFilter struct {
	Status    MarketStatus
	CreatorID string
	Limit     int
}

// MarketStats summarises the money in play on a market. Volumes count the
// bettors' offer amounts, the same stake figure shown on each offer.
type MarketStats struct {
	MarketID     int64   `json:"market_id"`
	OpenOffers   int64   `json:"open_offers"`
	OpenVolume   float64 `json:"open_volume"`
	ActiveBets   int64   `json:"active_bets"`
	ActiveVolume float64 `json:"active_volume"`
}

// TotalVolume is the open plus matched volume.
func (s MarketStats) TotalVolume() float64 {
	return s.OpenVolume + s.ActiveVolume
}
