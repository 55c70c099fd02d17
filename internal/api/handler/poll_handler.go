package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/outreachhq/sendpipe/internal/domain"
	"github.com/outreachhq/sendpipe/internal/service"
)

// SecretHeader carries the shared secret for scheduler-facing endpoints.
const SecretHeader = "X-Queue-Secret"

// PollHandler serves the external scheduler's ingestion endpoint.
type PollHandler struct {
	populator *service.Populator
	secret    string
	logger    *zap.Logger
}

func NewPollHandler(populator *service.Populator, secret string, logger *zap.Logger) *PollHandler {
	return &PollHandler{populator: populator, secret: secret, logger: logger}
}

// PollPending handles GET /poll-pending
//
// Guarded by the shared-secret header. Populates one campaign's batch and
// returns the admitted prospects together with the sending account; an
// empty batch is a normal response, not an error.
func (h *PollHandler) PollPending(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		mapError(w, domain.ErrUnauthorized)
		return
	}

	result, err := h.populator.PollPending(r.Context())
	if err != nil {
		h.logger.Error("poll-pending failed", zap.Error(err))
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// PopulateCampaign handles POST /campaigns/{id}/populate
//
// Explicit activation path: populates the named campaign immediately
// instead of waiting for the next poll cycle.
func (h *PollHandler) PopulateCampaign(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		mapError(w, domain.ErrUnauthorized)
		return
	}

	campaignID := chi.URLParam(r, "id")
	result, err := h.populator.PopulateCampaign(r.Context(), campaignID)
	if err != nil {
		h.logger.Error("populate failed",
			zap.String("campaign_id", campaignID), zap.Error(err))
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *PollHandler) authorized(r *http.Request) bool {
	got := r.Header.Get(SecretHeader)
	if got == "" || h.secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) == 1
}
