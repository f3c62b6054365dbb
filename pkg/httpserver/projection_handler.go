package httpserver

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mselser95/betledger/internal/projection"
	"github.com/mselser95/betledger/pkg/types"
	"go.uber.org/zap"
)

// ProjectionService maps front-end message IDs to cached market snapshots.
type ProjectionService interface {
	Bind(messageID string, marketID int64)
	Unbind(messageID string)
	Lookup(ctx context.Context, messageID string) (projection.Snapshot, error)
	Revalidate(ctx context.Context, messageID string) (projection.Snapshot, error)
}

// ProjectionHandler lets a front end attach its rendered messages to markets
// and read back what they show.
type ProjectionHandler struct {
	projection ProjectionService
	markets    MarketService
	logger     *zap.Logger
}

// NewProjectionHandler creates a new projection handler.
func NewProjectionHandler(p ProjectionService, markets MarketService, logger *zap.Logger) *ProjectionHandler {
	return &ProjectionHandler{projection: p, markets: markets, logger: logger}
}

// Routes mounts the message endpoints on r.
func (h *ProjectionHandler) Routes(r chi.Router) {
	r.Put("/{messageID}", h.HandleBind)
	r.Get("/{messageID}", h.HandleLookup)
	r.Delete("/{messageID}", h.HandleUnbind)
}

type bindRequest struct {
	MarketID int64 `json:"market_id"`
}

// HandleBind handles PUT /api/messages/{messageID}. The market must exist.
func (h *ProjectionHandler) HandleBind(w http.ResponseWriter, r *http.Request) {
	var req bindRequest
	err := decodeBody(w, r, &req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	_, err = h.markets.GetMarket(r.Context(), req.MarketID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	messageID := chi.URLParam(r, "messageID")
	h.projection.Bind(messageID, req.MarketID)

	snap, err := h.projection.Revalidate(r.Context(), messageID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// HandleLookup handles GET /api/messages/{messageID}?fresh=true.
// Without fresh the snapshot may be served from cache.
func (h *ProjectionHandler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")

	fresh := false
	if raw := r.URL.Query().Get("fresh"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, h.logger, r, types.Validationf("lookup-message", "invalid fresh flag %q", raw))
			return
		}
		fresh = parsed
	}

	var (
		snap projection.Snapshot
		err  error
	)
	if fresh {
		snap, err = h.projection.Revalidate(r.Context(), messageID)
	} else {
		snap, err = h.projection.Lookup(r.Context(), messageID)
	}
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// HandleUnbind handles DELETE /api/messages/{messageID}.
func (h *ProjectionHandler) HandleUnbind(w http.ResponseWriter, r *http.Request) {
	h.projection.Unbind(chi.URLParam(r, "messageID"))
	w.WriteHeader(http.StatusNoContent)
}
