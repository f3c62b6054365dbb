package httpserver

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mselser95/betledger/internal/flow"
	"github.com/mselser95/betledger/pkg/types"
	"go.uber.org/zap"
)

// FlowService drives the step-by-step offer conversation.
type FlowService interface {
	Start(ctx context.Context, marketID int64, participant string) (flow.Session, error)
	ChooseOutcome(ctx context.Context, sessionID string, participant string, choice string) (flow.Session, error)
	ChooseTarget(sessionID string, participant string, target string) (flow.Session, error)
	SetRisk(sessionID string, participant string, amount float64) (flow.Session, error)
	SetAsk(sessionID string, participant string, amount float64) (flow.Session, error)
	Confirm(ctx context.Context, sessionID string, participant string) (types.BetOffer, error)
	Cancel(sessionID string, participant string) error
	Get(sessionID string) (flow.Session, bool)
}

// FlowHandler exposes offer flow sessions. Every route needs a participant.
type FlowHandler struct {
	flows  FlowService
	logger *zap.Logger
}

// NewFlowHandler creates a new flow handler.
func NewFlowHandler(flows FlowService, logger *zap.Logger) *FlowHandler {
	return &FlowHandler{flows: flows, logger: logger}
}

// Routes mounts the flow endpoints on r.
func (h *FlowHandler) Routes(r chi.Router) {
	r.Use(requireParticipant)

	r.Post("/", h.HandleStart)
	r.Get("/{sessionID}", h.HandleGet)
	r.Delete("/{sessionID}", h.HandleCancel)
	r.Post("/{sessionID}/outcome", h.HandleOutcome)
	r.Post("/{sessionID}/target", h.HandleTarget)
	r.Post("/{sessionID}/risk", h.HandleRisk)
	r.Post("/{sessionID}/ask", h.HandleAsk)
	r.Post("/{sessionID}/confirm", h.HandleConfirm)
}

type startFlowRequest struct {
	MarketID int64 `json:"market_id"`
}

type outcomeRequest struct {
	Choice string `json:"choice"`
}

type targetRequest struct {
	Target string `json:"target"`
}

type amountRequest struct {
	Amount float64 `json:"amount"`
}

// HandleStart handles POST /api/flows.
func (h *FlowHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req startFlowRequest
	err := decodeBody(w, r, &req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	session, err := h.flows.Start(r.Context(), req.MarketID, participantFrom(r))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// HandleGet handles GET /api/flows/{sessionID}.
func (h *FlowHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	session, ok := h.flows.Get(chi.URLParam(r, "sessionID"))
	if !ok || session.Participant != participantFrom(r) {
		writeError(w, h.logger, r, types.NotFoundf("get-offer-flow", "no live session"))
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// HandleCancel handles DELETE /api/flows/{sessionID}.
func (h *FlowHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	err := h.flows.Cancel(chi.URLParam(r, "sessionID"), participantFrom(r))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleOutcome handles POST /api/flows/{sessionID}/outcome.
func (h *FlowHandler) HandleOutcome(w http.ResponseWriter, r *http.Request) {
	var req outcomeRequest
	err := decodeBody(w, r, &req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	session, err := h.flows.ChooseOutcome(r.Context(), chi.URLParam(r, "sessionID"), participantFrom(r), req.Choice)
	h.respondSession(w, r, session, err)
}

// HandleTarget handles POST /api/flows/{sessionID}/target.
func (h *FlowHandler) HandleTarget(w http.ResponseWriter, r *http.Request) {
	var req targetRequest
	err := decodeBody(w, r, &req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	session, err := h.flows.ChooseTarget(chi.URLParam(r, "sessionID"), participantFrom(r), req.Target)
	h.respondSession(w, r, session, err)
}

// HandleRisk handles POST /api/flows/{sessionID}/risk.
func (h *FlowHandler) HandleRisk(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	err := decodeBody(w, r, &req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	session, err := h.flows.SetRisk(chi.URLParam(r, "sessionID"), participantFrom(r), req.Amount)
	h.respondSession(w, r, session, err)
}

// HandleAsk handles POST /api/flows/{sessionID}/ask.
func (h *FlowHandler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	err := decodeBody(w, r, &req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	session, err := h.flows.SetAsk(chi.URLParam(r, "sessionID"), participantFrom(r), req.Amount)
	h.respondSession(w, r, session, err)
}

// HandleConfirm handles POST /api/flows/{sessionID}/confirm.
func (h *FlowHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	offer, err := h.flows.Confirm(r.Context(), chi.URLParam(r, "sessionID"), participantFrom(r))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, offer)
}

func (h *FlowHandler) respondSession(w http.ResponseWriter, r *http.Request, session flow.Session, err error) {
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}
