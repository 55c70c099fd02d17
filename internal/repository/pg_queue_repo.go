package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/outreachhq/sendpipe/internal/domain"
)

type pgSendQueueRepository struct {
	pool *pgxpool.Pool
}

// NewPgSendQueueRepository returns a SendQueueRepository backed by PostgreSQL.
func NewPgSendQueueRepository(pool *pgxpool.Pool) SendQueueRepository {
	return &pgSendQueueRepository{pool: pool}
}

// EnqueueWithinLimit locks the account row and inserts only while the
// sent-today count is below the account's daily limit. Running the check
// and the insert as one statement closes the check-then-act window between
// concurrent populator runs.
func (r *pgSendQueueRepository) EnqueueWithinLimit(ctx context.Context, item *domain.SendQueueItem) (bool, error) {
	dayStart := startOfUTCDay(time.Now().UTC())

	tag, err := r.pool.Exec(ctx, `
		WITH acct AS (
			SELECT id, daily_message_limit
			FROM accounts
			WHERE id = $4
			FOR UPDATE
		)
		INSERT INTO send_queue
			(id, campaign_id, prospect_id, account_id, action_type, message,
			 target_reference, status, created_at)
		SELECT $1, $2, $3, acct.id, $5, $6, $7, 'pending', $8
		FROM acct
		WHERE (
			SELECT COUNT(*) FROM send_queue
			WHERE account_id = acct.id AND status = 'sent' AND sent_at >= $9
		) < acct.daily_message_limit`,
		item.ID, item.CampaignID, item.ProspectID, item.AccountID,
		item.ActionType, item.Message, item.TargetReference,
		item.CreatedAt, dayStart,
	)
	if err != nil {
		return false, fmt.Errorf("enqueue item: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgSendQueueRepository) GetByID(ctx context.Context, id string) (*domain.SendQueueItem, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, campaign_id, prospect_id, account_id, action_type, message,
		       target_reference, status, error_message, sent_at, created_at
		FROM send_queue WHERE id = $1`, id)

	item, err := scanQueueItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return item, err
}

func (r *pgSendQueueRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE send_queue
		SET status = 'sent', sent_at = $1, error_message = NULL
		WHERE id = $2`, sentAt, id)
	return err
}

func (r *pgSendQueueRepository) MarkFailed(ctx context.Context, id string, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE send_queue
		SET status = 'failed', error_message = $1
		WHERE id = $2`, errMsg, id)
	return err
}

func (r *pgSendQueueRepository) CountSentSince(ctx context.Context, accountID string, since time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM send_queue
		WHERE account_id = $1 AND status = 'sent' AND sent_at >= $2`,
		accountID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count sent: %w", err)
	}
	return n, nil
}

func (r *pgSendQueueRepository) HasOpenItem(ctx context.Context, prospectID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM send_queue
			WHERE prospect_id = $1 AND status IN ('pending','sent')
		)`, prospectID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check open item: %w", err)
	}
	return exists, nil
}

func (r *pgSendQueueRepository) DeleteFailedForProspects(ctx context.Context, campaignID string, prospectIDs []string) (int64, error) {
	if len(prospectIDs) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM send_queue
		WHERE campaign_id = $1 AND status = 'failed' AND prospect_id = ANY($2)`,
		campaignID, prospectIDs)
	if err != nil {
		return 0, fmt.Errorf("delete failed items: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *pgSendQueueRepository) LatestErrors(ctx context.Context, campaignID string) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (prospect_id) prospect_id, error_message
		FROM send_queue
		WHERE campaign_id = $1 AND error_message IS NOT NULL
		ORDER BY prospect_id, created_at DESC`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("latest errors: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var prospectID, errMsg string
		if err := rows.Scan(&prospectID, &errMsg); err != nil {
			return nil, err
		}
		result[prospectID] = errMsg
	}
	return result, rows.Err()
}

func (r *pgSendQueueRepository) CountByStatus(ctx context.Context) (map[domain.ItemStatus]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM send_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.ItemStatus]int)
	for rows.Next() {
		var status domain.ItemStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// ---- helpers ----

func scanQueueItem(row pgx.Row) (*domain.SendQueueItem, error) {
	var item domain.SendQueueItem
	err := row.Scan(
		&item.ID, &item.CampaignID, &item.ProspectID, &item.AccountID,
		&item.ActionType, &item.Message, &item.TargetReference,
		&item.Status, &item.ErrorMessage, &item.SentAt, &item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// startOfUTCDay truncates t to midnight UTC. The daily send limit rolls
// over at the UTC day boundary, never on a partial-day window.
func startOfUTCDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
