package handler

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/outreachhq/sendpipe/internal/api/middleware"
	"github.com/outreachhq/sendpipe/internal/domain"
	"github.com/outreachhq/sendpipe/internal/worker"
)

// TaskHandler receives push-transport deliveries, one task per request.
// The body is a base64-encoded JSON task.
//
// Ack contract: the response is 200 for every business outcome, including
// failures. The durable record of success or failure lives in the
// database, and a redelivery would only risk a duplicate provider call.
// A non-200 (or a crash before responding) is the sole trigger for
// transport-level redelivery and is reserved for infrastructure faults.
type TaskHandler struct {
	worker *worker.Worker
	logger *zap.Logger
}

func NewTaskHandler(w *worker.Worker, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{worker: w, logger: logger}
}

// Deliver handles POST /tasks
func (h *TaskHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "cannot read body")
		return
	}

	decoded, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		// Not a valid envelope: ack with 200 so the transport does not
		// redeliver a payload that can never parse.
		h.logger.Warn("undecodable task envelope",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		respondJSON(w, http.StatusOK, map[string]any{"success": false, "outcome": "dropped"})
		return
	}

	var task domain.Task
	if err := json.Unmarshal(decoded, &task); err != nil {
		h.logger.Warn("unparseable task payload",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		respondJSON(w, http.StatusOK, map[string]any{"success": false, "outcome": "dropped"})
		return
	}

	outcome, err := h.worker.Process(r.Context(), task)
	if err != nil {
		// Infrastructure fault: leave the message unacknowledged so the
		// transport redelivers once the fault clears.
		h.logger.Error("task processing infrastructure failure",
			zap.String("queue_id", task.QueueID),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "processing failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": outcome == worker.OutcomeSent,
		"outcome": string(outcome),
	})
}
