package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/outreachhq/sendpipe/internal/service"
)

// RecoveryHandler exposes the operator-facing failure surface: CSV export
// of failed prospects and bulk reset back to pending.
type RecoveryHandler struct {
	recovery *service.Recovery
	logger   *zap.Logger
}

func NewRecoveryHandler(recovery *service.Recovery, logger *zap.Logger) *RecoveryHandler {
	return &RecoveryHandler{recovery: recovery, logger: logger}
}

// ExportCSV handles GET /campaigns/{id}/failed-prospects-csv
//
// Streams a text/csv attachment of every prospect in a failed-family
// status, joined with the latest queue error.
func (h *RecoveryHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "id")

	// Buffer the export so a mid-export failure can still produce a clean
	// error response instead of a truncated attachment.
	var buf bytes.Buffer
	count, err := h.recovery.ExportFailedCSV(r.Context(), campaignID, &buf)
	if err != nil {
		h.logger.Error("csv export failed",
			zap.String("campaign_id", campaignID), zap.Error(err))
		mapError(w, err)
		return
	}

	h.logger.Info("exported failed prospects",
		zap.String("campaign_id", campaignID), zap.Int("count", count))

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "failed-prospects-"+campaignID+".csv"))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// resetScope reads the optional ?scope= query parameter.
func resetScope(r *http.Request) service.ResetScope {
	if r.URL.Query().Get("scope") == string(service.ScopeExtended) {
		return service.ScopeExtended
	}
	return service.ScopeFailed
}

// Reset handles POST /campaigns/{id}/reset-failed
func (h *RecoveryHandler) Reset(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "id")

	count, err := h.recovery.ResetFailed(r.Context(), campaignID, resetScope(r))
	if err != nil {
		h.logger.Error("reset failed",
			zap.String("campaign_id", campaignID), zap.Error(err))
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"reset_count": count,
		"message":     fmt.Sprintf("%d prospects reset to pending", count),
	})
}

var resetPageTemplate = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
<head><title>Reset Failed Prospects</title></head>
<body>
<h1>Reset complete</h1>
<p>Campaign {{.CampaignID}}: {{.Count}} prospects reset to pending.</p>
<p>They will be re-queued on the next poll cycle.</p>
</body>
</html>`))

// ResetPage handles GET /campaigns/{id}/reset-failed
//
// Operator-facing variant for links embedded in email or chat: performs
// the same reset and renders an HTML confirmation instead of JSON.
func (h *RecoveryHandler) ResetPage(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "id")

	count, err := h.recovery.ResetFailed(r.Context(), campaignID, resetScope(r))
	if err != nil {
		h.logger.Error("reset failed",
			zap.String("campaign_id", campaignID), zap.Error(err))
		mapError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = resetPageTemplate.Execute(w, map[string]any{
		"CampaignID": campaignID,
		"Count":      count,
	})
}
