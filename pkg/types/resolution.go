package types

import "time"

// BetSettlement is the computed result of one matched bet. It is a report only.
type BetSettlement struct {
	BetID         int64   `json:"bet_id"`
	AcceptedBetID int64   `json:"accepted_bet_id"`
	WinnerID      string  `json:"winner_id"`
	LoserID       string  `json:"loser_id"`
	WinAmount     float64 `json:"win_amount"`  // Paid by the loser to the winner
	LoserStake    float64 `json:"loser_stake"` // Equal to WinAmount: the loser forfeits their own risk
	BettorWon     bool    `json:"bettor_won"`
}

// ResolutionResult is the ordered settlement report for a resolved market.
type ResolutionResult struct {
	MarketID        int64           `json:"market_id"`
	WinningOutcome  string          `json:"winning_outcome"`
	Settlements     []BetSettlement `json:"settlements"` // Ordered by BetID
	CancelledOffers int64           `json:"cancelled_offers"`
	ResolvedAt      time.Time       `json:"resolved_at"`
}

// Totals returns the net amount each participant wins (positive) or owes (negative).
func (r *ResolutionResult) Totals() map[string]float64 {
	totals := make(map[string]float64)
	for _, s := range r.Settlements {
		totals[s.WinnerID] += s.WinAmount
		totals[s.LoserID] -= s.WinAmount
	}
	return totals
}
