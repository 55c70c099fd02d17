package repository

import (
	"context"
	"time"

	"github.com/outreachhq/sendpipe/internal/domain"
)

// SendQueueRepository defines persistence operations for send-queue items.
// The pgx implementation is in pg_queue_repo.go; tests use hand-written
// mocks (mock_repos.go).
type SendQueueRepository interface {
	// EnqueueWithinLimit inserts the item only if the owning account's
	// sent-today count is still below its daily limit. The check and the
	// insert run in one transaction with the account row locked, so two
	// concurrent populator runs cannot both pass the check.
	// Returns false (and no error) when the limit refused the insert.
	EnqueueWithinLimit(ctx context.Context, item *domain.SendQueueItem) (bool, error)

	GetByID(ctx context.Context, id string) (*domain.SendQueueItem, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id string, errMsg string) error

	// CountSentSince backs the daily rate limiter.
	CountSentSince(ctx context.Context, accountID string, since time.Time) (int, error)

	// HasOpenItem reports whether the prospect already has a pending or
	// sent queue item, which blocks re-admission by the populator.
	HasOpenItem(ctx context.Context, prospectID string) (bool, error)

	// DeleteFailedForProspects clears failed rows so reset prospects can be
	// re-admitted cleanly. Returns the number of rows removed.
	DeleteFailedForProspects(ctx context.Context, campaignID string, prospectIDs []string) (int64, error)

	// LatestErrors maps prospect ID to the most recent queue error message
	// for the campaign. Feeds the failure-export CSV.
	LatestErrors(ctx context.Context, campaignID string) (map[string]string, error)

	CountByStatus(ctx context.Context) (map[domain.ItemStatus]int, error)
}

// ProspectRepository defines persistence operations for campaign prospects.
type ProspectRepository interface {
	GetByID(ctx context.Context, id string) (*domain.CampaignProspect, error)

	// FindEligible selects prospects the populator may enqueue: status in
	// the enqueueable set, profile reference present, never contacted, and
	// no open queue item.
	FindEligible(ctx context.Context, campaignID string, limit int) ([]*domain.CampaignProspect, error)

	FindInStatuses(ctx context.Context, campaignID string, statuses []domain.ProspectStatus) ([]*domain.CampaignProspect, error)

	UpdateStatus(ctx context.Context, id string, status domain.ProspectStatus, notes *string) error
	SetProviderID(ctx context.Context, id string, providerID string) error

	// MarkContacted records a successful send: status change plus
	// contacted_at, set only if not already set.
	MarkContacted(ctx context.Context, id string, status domain.ProspectStatus, at time.Time) error

	// ResetToPending flips every prospect of the campaign in one of the
	// given statuses back to pending and clears notes. Returns the IDs of
	// the prospects that were reset.
	ResetToPending(ctx context.Context, campaignID string, statuses []domain.ProspectStatus) ([]string, error)
}

// CampaignRepository exposes the slice of campaign state the pipeline needs.
type CampaignRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Campaign, error)

	// FindPollable returns one campaign that is active (or activatable),
	// has a sending account configured, and has at least one eligible
	// prospect. Returns domain.ErrNotFound when nothing qualifies.
	FindPollable(ctx context.Context) (*domain.Campaign, error)

	MarkActive(ctx context.Context, id string) error
}

// AccountRepository exposes sending identities.
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	FindActiveForWorkspace(ctx context.Context, workspaceID string) (*domain.Account, error)
}
