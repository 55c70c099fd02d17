package handler

import (
	"net/http"

	"github.com/outreachhq/sendpipe/internal/domain"
	"github.com/outreachhq/sendpipe/internal/repository"
)

// PipelineHandler serves a human-readable JSON snapshot of the send queue.
// Raw Prometheus metrics (counters, histograms) are available at /metrics
// via promhttp.Handler and are separate from this endpoint.
type PipelineHandler struct {
	queue repository.SendQueueRepository
}

func NewPipelineHandler(queue repository.SendQueueRepository) *PipelineHandler {
	return &PipelineHandler{queue: queue}
}

// Snapshot handles GET /api/v1/pipeline
func (h *PipelineHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	counts, err := h.queue.CountByStatus(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "snapshot unavailable")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"queue": map[string]int{
			"pending": counts[domain.ItemPending],
			"sent":    counts[domain.ItemSent],
			"failed":  counts[domain.ItemFailed],
		},
	})
}
