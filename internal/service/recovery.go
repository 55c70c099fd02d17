package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/outreachhq/sendpipe/internal/domain"
	"github.com/outreachhq/sendpipe/internal/repository"
)

// ResetScope selects which statuses a reset covers.
type ResetScope string

const (
	// ScopeFailed covers the base failed family: failed, error, bounced.
	ScopeFailed ResetScope = "failed"
	// ScopeExtended additionally covers rate-limit and invitation outcomes.
	ScopeExtended ResetScope = "extended"
)

func (s ResetScope) statuses() []domain.ProspectStatus {
	if s == ScopeExtended {
		return domain.ExtendedFailedFamily
	}
	return domain.FailedFamily
}

// Recovery is the operator-facing failure surface: bulk reset of failed
// prospects back to pending, and a CSV export for triage. There is no
// automatic notification on individual send failure; failures accumulate
// here and are handled in batch.
type Recovery struct {
	prospects repository.ProspectRepository
	queue     repository.SendQueueRepository
	logger    *zap.Logger
}

func NewRecovery(prospects repository.ProspectRepository, queue repository.SendQueueRepository, logger *zap.Logger) *Recovery {
	return &Recovery{prospects: prospects, queue: queue, logger: logger}
}

// ResetFailed flips every prospect of the campaign in the scope's statuses
// back to pending, clears their notes, and deletes their failed queue rows
// so the populator can re-admit them cleanly. Idempotent: an empty set
// resets zero prospects without error, and no other status is touched.
func (r *Recovery) ResetFailed(ctx context.Context, campaignID string, scope ResetScope) (int, error) {
	ids, err := r.prospects.ResetToPending(ctx, campaignID, scope.statuses())
	if err != nil {
		return 0, fmt.Errorf("reset prospects: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	deleted, err := r.queue.DeleteFailedForProspects(ctx, campaignID, ids)
	if err != nil {
		return 0, fmt.Errorf("clear failed queue rows: %w", err)
	}

	r.logger.Info("reset failed prospects",
		zap.String("campaign_id", campaignID),
		zap.String("scope", string(scope)),
		zap.Int("prospects", len(ids)),
		zap.Int64("queue_rows_removed", deleted),
	)
	return len(ids), nil
}

var csvHeader = []string{
	"First Name", "Last Name", "Email", "Company", "Title",
	"LinkedIn URL", "LinkedIn ID", "Status", "Error Reason", "Notes", "Failed At",
}

// ExportFailedCSV writes every prospect currently in the extended failed
// family, joined with the most recent queue error message, as CSV.
// encoding/csv handles field quoting: commas, quotes, and newlines inside
// a value round-trip as a single quoted field.
func (r *Recovery) ExportFailedCSV(ctx context.Context, campaignID string, w io.Writer) (int, error) {
	prospects, err := r.prospects.FindInStatuses(ctx, campaignID, domain.ExtendedFailedFamily)
	if err != nil {
		return 0, fmt.Errorf("find failed prospects: %w", err)
	}

	errorsByProspect, err := r.queue.LatestErrors(ctx, campaignID)
	if err != nil {
		return 0, fmt.Errorf("load queue errors: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, fmt.Errorf("write csv header: %w", err)
	}

	for _, p := range prospects {
		errReason := errorsByProspect[p.ID]
		if errReason == "" && p.Notes != nil {
			errReason = *p.Notes
		}
		record := []string{
			p.FirstName,
			p.LastName,
			deref(p.Email),
			deref(p.Company),
			deref(p.Title),
			p.ProfileURL,
			deref(p.ProviderID),
			string(p.Status),
			errReason,
			deref(p.Notes),
			p.UpdatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		if err := cw.Write(record); err != nil {
			return 0, fmt.Errorf("write csv record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("flush csv: %w", err)
	}
	return len(prospects), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
