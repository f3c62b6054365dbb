package settlement

import (
	"cmp"
	"slices"
	"time"

	"github.com/mselser95/betledger/pkg/types"
)

// Settle computes who won and who lost every active matched bet of a market.
//
// The bettor wins the ask when their outcome is the winning one; otherwise the
// acceptor wins the offer. Each loser forfeits their own risk: the bettor's
// risk is always the offer and the acceptor's is always the ask.
//
// Settle does not touch the ledger or move funds. Bets from other markets and
// bets that are not active are skipped, and the output is ordered by bet ID,
// so replaying the same snapshot yields the same result.
func Settle(marketID int64, winningOutcome string, bets []types.MatchedBet) types.ResolutionResult {
	start := time.Now()
	defer func() {
		SettleDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	settlements := make([]types.BetSettlement, 0, len(bets))

	for i := range bets {
		bet := &bets[i]
		if bet.Offer.MarketID != marketID || bet.Accepted.Status != types.AcceptedActive {
			continue
		}
		settlements = append(settlements, settleOne(bet, winningOutcome))
	}

	slices.SortFunc(settlements, func(a, b types.BetSettlement) int {
		return cmp.Compare(a.BetID, b.BetID)
	})

	return types.ResolutionResult{
		MarketID:       marketID,
		WinningOutcome: winningOutcome,
		Settlements:    settlements,
	}
}

func settleOne(bet *types.MatchedBet, winningOutcome string) types.BetSettlement {
	s := types.BetSettlement{
		BetID:         bet.Offer.ID,
		AcceptedBetID: bet.Accepted.ID,
	}

	if bet.Offer.Outcome == winningOutcome {
		s.BettorWon = true
		s.WinnerID = bet.Offer.BettorID
		s.LoserID = bet.Accepted.AcceptorID
		s.WinAmount = bet.Offer.AskAmount
		s.LoserStake = bet.Offer.AskAmount // Acceptor's risk
		return s
	}

	s.WinnerID = bet.Accepted.AcceptorID
	s.LoserID = bet.Offer.BettorID
	s.WinAmount = bet.Offer.OfferAmount
	s.LoserStake = bet.Offer.OfferAmount // Bettor's risk

	return s
}

// Record counts a committed resolution in the settlement metrics. Call it
// once per resolution, after the transaction that persisted it committed.
func Record(result types.ResolutionResult) {
	BetsSettledTotal.Add(float64(len(result.Settlements)))

	for _, s := range result.Settlements {
		winner := "acceptor"
		if s.BettorWon {
			winner = "bettor"
		}
		SettledVolumeTotal.WithLabelValues(winner).Add(s.WinAmount)
	}
}
