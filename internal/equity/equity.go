package equity

import (
	"fmt"
	"math"

	"github.com/mselser95/betledger/pkg/types"
)

// Kind classifies a break-even computation.
type Kind string

const (
	// KindPercent means Percent holds the break-even probability.
	KindPercent Kind = "percent"
	// KindFreeBet means the acceptor risks nothing (ask is zero).
	KindFreeBet Kind = "free_bet"
	// KindPureGift means the acceptor can win nothing (offer is zero).
	KindPureGift Kind = "pure_gift"
)

// Equity is the minimum win probability, from the acceptor's side, at which
// accepting an offer is not negative expectation.
type Equity struct {
	Kind    Kind    `json:"kind"`
	Percent float64 `json:"percent,omitempty"` // Only meaningful for KindPercent
}

// String returns a human-readable representation of the equity.
func (e Equity) String() string {
	switch e.Kind {
	case KindFreeBet:
		return "free bet for acceptor"
	case KindPureGift:
		return "pure gift"
	default:
		return fmt.Sprintf("%.1f%%", e.Percent)
	}
}

// BreakEvenEquity returns ask/(ask+offer)*100. The acceptor risks ask to win
// offer, so that ratio is the win rate where both sides break even.
func BreakEvenEquity(offerAmount float64, askAmount float64) Equity {
	if askAmount == 0 {
		return Equity{Kind: KindFreeBet}
	}
	if offerAmount == 0 {
		return Equity{Kind: KindPureGift}
	}

	return Equity{
		Kind:    KindPercent,
		Percent: askAmount / (askAmount + offerAmount) * 100,
	}
}

// Round1 rounds a percentage to one decimal place for display.
func Round1(percent float64) float64 {
	return math.Round(percent*10) / 10
}

// Payoff is each side's gain (positive) or loss (negative) if Outcome wins.
type Payoff struct {
	Outcome  string  `json:"outcome"`
	Bettor   float64 `json:"bettor"`
	Acceptor float64 `json:"acceptor"`
}

// Explanation describes an offer's payoff table and break-even point.
type Explanation struct {
	Offer     types.BetOffer `json:"offer"`
	Payoffs   []Payoff       `json:"payoffs"` // One row per market outcome, market order
	BreakEven Equity         `json:"break_even"`
}

// Explain builds the payoff table for offer over the given market outcomes.
// The bettor wins the ask when their outcome wins and loses the offer otherwise;
// the acceptor mirrors that.
func Explain(outcomes []string, offer types.BetOffer) Explanation {
	payoffs := make([]Payoff, 0, len(outcomes))
	for _, outcome := range outcomes {
		if outcome == offer.Outcome {
			payoffs = append(payoffs, Payoff{
				Outcome:  outcome,
				Bettor:   offer.AskAmount,
				Acceptor: -offer.AskAmount,
			})
			continue
		}
		payoffs = append(payoffs, Payoff{
			Outcome:  outcome,
			Bettor:   -offer.OfferAmount,
			Acceptor: offer.OfferAmount,
		})
	}

	return Explanation{
		Offer:     offer,
		Payoffs:   payoffs,
		BreakEven: BreakEvenEquity(offer.OfferAmount, offer.AskAmount),
	}
}
