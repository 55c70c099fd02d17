package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/outreachhq/sendpipe/internal/domain"
)

type pgCampaignRepository struct {
	pool *pgxpool.Pool
}

// NewPgCampaignRepository returns a CampaignRepository backed by PostgreSQL.
func NewPgCampaignRepository(pool *pgxpool.Pool) CampaignRepository {
	return &pgCampaignRepository{pool: pool}
}

const campaignColumns = `
	id, workspace_id, name, account_id, connection_request_template,
	status, created_at, updated_at`

func (r *pgCampaignRepository) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id)

	c, err := scanCampaign(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return c, err
}

// FindPollable picks the least-recently-touched campaign that has an
// account configured and at least one prospect the populator could admit.
// ORDER BY updated_at spreads poll cycles across campaigns instead of
// starving all but the first.
func (r *pgCampaignRepository) FindPollable(ctx context.Context) (*domain.Campaign, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns c
		WHERE c.account_id IS NOT NULL
		  AND c.status IN ('ready','active')
		  AND EXISTS (
			SELECT 1 FROM campaign_prospects p
			WHERE p.campaign_id = c.id
			  AND p.status = ANY($1)
			  AND p.profile_url <> ''
			  AND p.contacted_at IS NULL
			  AND NOT EXISTS (
				SELECT 1 FROM send_queue q
				WHERE q.prospect_id = p.id AND q.status IN ('pending','sent')
			  )
		  )
		ORDER BY c.updated_at ASC
		LIMIT 1`,
		statusStrings(domain.EnqueueableStatuses))

	c, err := scanCampaign(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return c, err
}

func (r *pgCampaignRepository) MarkActive(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE campaigns SET status = 'active', updated_at = NOW() WHERE id = $1`, id)
	return err
}

func scanCampaign(row pgx.Row) (*domain.Campaign, error) {
	var c domain.Campaign
	err := row.Scan(
		&c.ID, &c.WorkspaceID, &c.Name, &c.AccountID, &c.Template,
		&c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

type pgAccountRepository struct {
	pool *pgxpool.Pool
}

// NewPgAccountRepository returns an AccountRepository backed by PostgreSQL.
func NewPgAccountRepository(pool *pgxpool.Pool) AccountRepository {
	return &pgAccountRepository{pool: pool}
}

const accountColumns = `
	id, workspace_id, name, provider_account_id, daily_message_limit,
	active, created_at, updated_at`

func (r *pgAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)

	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

func (r *pgAccountRepository) FindActiveForWorkspace(ctx context.Context, workspaceID string) (*domain.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE workspace_id = $1 AND active
		ORDER BY created_at ASC
		LIMIT 1`, workspaceID)

	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(
		&a.ID, &a.WorkspaceID, &a.Name, &a.ProviderAccountID,
		&a.DailyLimit, &a.Active, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &a, nil
}
