package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/mselser95/betledger/pkg/types"
	"go.uber.org/zap"
)

// ParticipantHeader carries the caller's opaque participant ID.
const ParticipantHeader = "X-Participant-ID"

const maxBodyBytes = 1 << 16

type participantKey struct{}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeError maps a ledger error kind onto an HTTP status. Anything outside
// the taxonomy is an infrastructure failure and is logged, not echoed.
func writeError(w http.ResponseWriter, logger *zap.Logger, r *http.Request, err error) {
	kind := types.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case types.KindValidation:
		status = http.StatusBadRequest
	case types.KindNotFound:
		status = http.StatusNotFound
	case types.KindAuthorization:
		status = http.StatusForbidden
	case types.KindState:
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		logger.Error("http-request-failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeMessage(w, status, "internal error")
		return
	}

	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: string(kind)})
}

// decodeBody decodes a bounded JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	err := dec.Decode(v)
	if err != nil {
		return types.Validationf("decode-body", "malformed request body: %v", err)
	}

	return nil
}

// requireParticipant rejects requests without a participant header and
// stores the participant in the request context.
func requireParticipant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		participant := strings.TrimSpace(r.Header.Get(ParticipantHeader))
		if participant == "" {
			writeMessage(w, http.StatusUnauthorized, "missing "+ParticipantHeader+" header")
			return
		}

		ctx := context.WithValue(r.Context(), participantKey{}, participant)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func participantFrom(r *http.Request) string {
	participant, _ := r.Context().Value(participantKey{}).(string)
	return participant
}

func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, types.Validationf("parse-"+name, "invalid %s %q", name, raw)
	}

	return id, nil
}
