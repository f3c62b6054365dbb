package types

import "time"

// OfferStatus is the lifecycle state of a bet offer.
type OfferStatus string

const (
	OfferOpen      OfferStatus = "open"
	OfferAccepted  OfferStatus = "accepted"
	OfferCancelled OfferStatus = "cancelled"
)

// AcceptedStatus is the lifecycle state of a matched bet.
type AcceptedStatus string

const (
	AcceptedActive    AcceptedStatus = "active"
	AcceptedCompleted AcceptedStatus = "completed"
	AcceptedVoid      AcceptedStatus = "void" // Administrative only, never set by settlement
)

// BetOffer is a bettor's unilateral proposal: risk OfferAmount to win AskAmount on Outcome.
type BetOffer struct {
	ID          int64       `json:"id"`
	MarketID    int64       `json:"market_id"`
	BettorID    string      `json:"bettor_id"`
	Outcome     string      `json:"outcome"`
	OfferAmount float64     `json:"offer_amount"` // What the bettor risks
	AskAmount   float64     `json:"ask_amount"`   // What the bettor wants to win (acceptor's risk)
	Status      OfferStatus `json:"status"`
	TargetID    *string     `json:"target_id,omitempty"` // Only this participant may accept
	CreatedAt   time.Time   `json:"created_at"`
}

// CanBeAcceptedBy reports whether the offer's targeting admits acceptor.
// Self-acceptance is never allowed.
func (o *BetOffer) CanBeAcceptedBy(acceptor string) bool {
	if acceptor == o.BettorID {
		return false
	}
	if o.TargetID != nil && *o.TargetID != acceptor {
		return false
	}
	return true
}

// AcceptedBet pairs an offer with its counterparty. At most one exists per offer.
type AcceptedBet struct {
	ID         int64          `json:"id"`
	BetID      int64          `json:"bet_id"`
	AcceptorID string         `json:"acceptor_id"`
	Status     AcceptedStatus `json:"status"`
	AcceptedAt time.Time      `json:"accepted_at"`
}

// MatchedBet is the joined view of an accepted offer used by settlement and listings.
type MatchedBet struct {
	Offer    BetOffer    `json:"offer"`
	Accepted AcceptedBet `json:"accepted"`
}

// OfferFilter narrows an offer listing. Zero values mean "any".
type OfferFilter struct {
	MarketID int64
	BettorID string
	Status   OfferStatus
}

// MatchedFilter narrows a matched-bet listing. Zero values mean "any".
type MatchedFilter struct {
	MarketID   int64
	BettorID   string
	AcceptorID string
	Status     AcceptedStatus
}

// ParticipantBets is one participant's open offers and active matched bets.
type ParticipantBets struct {
	Participant string       `json:"participant"`
	OpenOffers  []BetOffer   `json:"open_offers"`
	AsBettor    []MatchedBet `json:"as_bettor"`
	AsAcceptor  []MatchedBet `json:"as_acceptor"`
}
