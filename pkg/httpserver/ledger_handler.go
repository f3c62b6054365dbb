package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mselser95/betledger/internal/equity"
	"github.com/mselser95/betledger/internal/lifecycle"
	"github.com/mselser95/betledger/internal/matching"
	"github.com/mselser95/betledger/pkg/types"
	"go.uber.org/zap"
)

// MarketService is the market lifecycle surface the API exposes.
type MarketService interface {
	CreateMarket(ctx context.Context, title string, outcomes []string, creator string) (types.Market, error)
	SetResolver(ctx context.Context, marketID int64, requester string, resolver string) error
	SetCloseDeadline(ctx context.Context, marketID int64, requester string, deadline time.Time) error
	ResolveMarket(ctx context.Context, marketID int64, requester string, winningOutcome string) (types.ResolutionResult, error)
	RemoveMarkets(ctx context.Context, ids []int64, requester string) (int64, error)
	GetMarket(ctx context.Context, marketID int64) (types.Market, error)
	ListMarkets(ctx context.Context, filter types.MarketFilter) ([]types.Market, error)
	ListMarketStats(ctx context.Context, ids []int64) (map[int64]types.MarketStats, error)
}

// OfferService is the offer matching surface the API exposes.
type OfferService interface {
	CreateOffer(ctx context.Context, req matching.OfferRequest) (types.BetOffer, error)
	CancelOffer(ctx context.Context, betID int64, requester string) error
	AcceptOffer(ctx context.Context, betID int64, acceptor string) (types.AcceptedBet, error)
	ExplainOffer(ctx context.Context, betID int64) (equity.Explanation, error)
	ListOffers(ctx context.Context, filter types.OfferFilter) ([]types.BetOffer, error)
	ParticipantBets(ctx context.Context, participant string) (types.ParticipantBets, error)
}

// LedgerHandler serves the market and offer commands as JSON.
type LedgerHandler struct {
	markets MarketService
	offers  OfferService
	clock   func() time.Time
	logger  *zap.Logger
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(markets MarketService, offers OfferService, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{
		markets: markets,
		offers:  offers,
		clock:   time.Now,
		logger:  logger,
	}
}

// Routes mounts the ledger endpoints on r.
func (h *LedgerHandler) Routes(r chi.Router) {
	r.Get("/markets", h.HandleListMarkets)
	r.Get("/markets/{marketID}", h.HandleGetMarket)
	r.Get("/markets/{marketID}/offers", h.HandleListOffers)
	r.Get("/offers/{betID}/explain", h.HandleExplainOffer)

	r.Group(func(r chi.Router) {
		r.Use(requireParticipant)

		r.Post("/markets", h.HandleCreateMarket)
		r.Post("/markets/remove", h.HandleRemoveMarkets)
		r.Put("/markets/{marketID}/resolver", h.HandleSetResolver)
		r.Put("/markets/{marketID}/deadline", h.HandleSetDeadline)
		r.Post("/markets/{marketID}/resolve", h.HandleResolveMarket)
		r.Post("/markets/{marketID}/offers", h.HandleCreateOffer)
		r.Post("/offers/{betID}/accept", h.HandleAcceptOffer)
		r.Post("/offers/{betID}/cancel", h.HandleCancelOffer)
		r.Get("/me/bets", h.HandleMyBets)
	})
}

// MarketView is a market plus its projected time to close and the money in play.
type MarketView struct {
	types.Market
	SecondsRemaining *int64           `json:"seconds_remaining,omitempty"`
	Stats            types.MarketStats `json:"stats"`
	TotalVolume      float64           `json:"total_volume"`
}

type createMarketRequest struct {
	Title    string   `json:"title"`
	Outcomes []string `json:"outcomes"`
}

type setResolverRequest struct {
	Resolver string `json:"resolver"`
}

// setDeadlineRequest accepts either an absolute close time or a duration
// from now such as "90m".
type setDeadlineRequest struct {
	CloseAt  *time.Time `json:"close_at,omitempty"`
	Duration string     `json:"duration,omitempty"`
}

type resolveRequest struct {
	WinningOutcome string `json:"winning_outcome"`
}

type removeRequest struct {
	MarketIDs []int64 `json:"market_ids"`
}

type removeResponse struct {
	Removed int64 `json:"removed"`
}

type createOfferRequest struct {
	Outcome     string  `json:"outcome"`
	OfferAmount float64 `json:"offer_amount"`
	AskAmount   float64 `json:"ask_amount"`
	Target      string  `json:"target,omitempty"`
}

// HandleCreateMarket handles POST /api/markets.
func (h *LedgerHandler) HandleCreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	err := decodeBody(w, r, &req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	market, err := h.markets.CreateMarket(r.Context(), req.Title, req.Outcomes, participantFrom(r))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, market)
}

// HandleListMarkets handles GET /api/markets?status=&creator=&limit=.
func (h *LedgerHandler) HandleListMarkets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := types.MarketFilter{
		Status:    types.MarketStatus(q.Get("status")),
		CreatorID: q.Get("creator"),
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, h.logger, r, types.Validationf("list-markets", "invalid limit %q", raw))
			return
		}
		filter.Limit = limit
	}

	markets, err := h.markets.ListMarkets(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	ids := make([]int64, 0, len(markets))
	for _, m := range markets {
		ids = append(ids, m.ID)
	}

	stats, err := h.markets.ListMarketStats(r.Context(), ids)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	now := h.clock()
	views := make([]MarketView, 0, len(markets))
	for _, m := range markets {
		views = append(views, marketView(m, stats[m.ID], now))
	}

	writeJSON(w, http.StatusOK, views)
}

// HandleGetMarket handles GET /api/markets/{marketID}.
func (h *LedgerHandler) HandleGetMarket(w http.ResponseWriter, r *http.Request) {
	marketID, err := idParam(r, "marketID")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	market, err := h.markets.GetMarket(r.Context(), marketID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	stats, err := h.markets.ListMarketStats(r.Context(), []int64{marketID})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, marketView(market, stats[marketID], h.clock()))
}

// HandleSetResolver handles PUT /api/markets/{marketID}/resolver.
func (h *LedgerHandler) HandleSetResolver(w http.ResponseWriter, r *http.Request) {
	marketID, err := idParam(r, "marketID")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	var req setResolverRequest
	err = decodeBody(w, r, &req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	err = h.markets.SetResolver(r.Context(), marketID, participantFrom(r), req.Resolver)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleSetDeadline handles PUT /api/markets/{marketID}/deadline.
func (h *LedgerHandler) HandleSetDeadline(w http.ResponseWriter, r *http.Request) {
	marketID, err := idParam(r, "marketID")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	var req setDeadlineRequest
	err = decodeBody(w, r, &req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	deadline, err := req.resolve(h.clock())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	err = h.markets.SetCloseDeadline(r.Context(), marketID, participantFrom(r), deadline)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (req setDeadlineRequest) resolve(now time.Time) (time.Time, error) {
	const op = "set-deadline"

	switch {
	case req.CloseAt != nil && req.Duration != "":
		return time.Time{}, types.Validationf(op, "give close_at or duration, not both")
	case req.CloseAt != nil:
		return *req.CloseAt, nil
	case req.Duration != "":
		d, err := time.ParseDuration(req.Duration)
		if err != nil {
			return time.Time{}, types.Validationf(op, "invalid duration %q", req.Duration)
		}
		return now.Add(d), nil
	default:
		return time.Time{}, types.Validationf(op, "close_at or duration is required")
	}
}

// HandleResolveMarket handles POST /api/markets/{marketID}/resolve.
func (h *LedgerHandler) HandleResolveMarket(w http.ResponseWriter, r *http.Request) {
	marketID, err := idParam(r, "marketID")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	var req resolveRequest
	err = decodeBody(w, r, &req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	result, err := h.markets.ResolveMarket(r.Context(), marketID, participantFrom(r), req.WinningOutcome)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleRemoveMarkets handles POST /api/markets/remove.
func (h *LedgerHandler) HandleRemoveMarkets(w http.ResponseWriter, r *http.Request) {
	var req removeRequest
	err := decodeBody(w, r, &req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	removed, err := h.markets.RemoveMarkets(r.Context(), req.MarketIDs, participantFrom(r))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, removeResponse{Removed: removed})
}

// HandleListOffers handles GET /api/markets/{marketID}/offers?status=.
// Without a status only open offers are listed.
func (h *LedgerHandler) HandleListOffers(w http.ResponseWriter, r *http.Request) {
	marketID, err := idParam(r, "marketID")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	status := types.OfferStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = types.OfferOpen
	}

	offers, err := h.offers.ListOffers(r.Context(), types.OfferFilter{MarketID: marketID, Status: status})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, offers)
}

// HandleCreateOffer handles POST /api/markets/{marketID}/offers.
func (h *LedgerHandler) HandleCreateOffer(w http.ResponseWriter, r *http.Request) {
	marketID, err := idParam(r, "marketID")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	var req createOfferRequest
	err = decodeBody(w, r, &req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	offer, err := h.offers.CreateOffer(r.Context(), matching.OfferRequest{
		MarketID:    marketID,
		Bettor:      participantFrom(r),
		Outcome:     req.Outcome,
		OfferAmount: req.OfferAmount,
		AskAmount:   req.AskAmount,
		Target:      strings.TrimSpace(req.Target),
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, offer)
}

// HandleAcceptOffer handles POST /api/offers/{betID}/accept.
func (h *LedgerHandler) HandleAcceptOffer(w http.ResponseWriter, r *http.Request) {
	betID, err := idParam(r, "betID")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	accepted, err := h.offers.AcceptOffer(r.Context(), betID, participantFrom(r))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, accepted)
}

// HandleCancelOffer handles POST /api/offers/{betID}/cancel.
func (h *LedgerHandler) HandleCancelOffer(w http.ResponseWriter, r *http.Request) {
	betID, err := idParam(r, "betID")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	err = h.offers.CancelOffer(r.Context(), betID, participantFrom(r))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleExplainOffer handles GET /api/offers/{betID}/explain.
func (h *LedgerHandler) HandleExplainOffer(w http.ResponseWriter, r *http.Request) {
	betID, err := idParam(r, "betID")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	explanation, err := h.offers.ExplainOffer(r.Context(), betID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, explanation)
}

// HandleMyBets handles GET /api/me/bets.
func (h *LedgerHandler) HandleMyBets(w http.ResponseWriter, r *http.Request) {
	bets, err := h.offers.ParticipantBets(r.Context(), participantFrom(r))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, bets)
}

func marketView(m types.Market, stats types.MarketStats, now time.Time) MarketView {
	stats.MarketID = m.ID
	view := MarketView{Market: m, Stats: stats, TotalVolume: stats.TotalVolume()}
	if m.CloseAt != nil && m.IsOpen() {
		secs := int64(lifecycle.Remaining(m, now).Seconds())
		view.SecondsRemaining = &secs
	}
	return view
}
