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

type pgProspectRepository struct {
	pool *pgxpool.Pool
}

// NewPgProspectRepository returns a ProspectRepository backed by PostgreSQL.
func NewPgProspectRepository(pool *pgxpool.Pool) ProspectRepository {
	return &pgProspectRepository{pool: pool}
}

const prospectColumns = `
	id, campaign_id, first_name, last_name, email, company, title,
	profile_url, provider_id, status, contacted_at, notes,
	created_at, updated_at`

func (r *pgProspectRepository) GetByID(ctx context.Context, id string) (*domain.CampaignProspect, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+prospectColumns+` FROM campaign_prospects WHERE id = $1`, id)

	p, err := scanProspect(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return p, err
}

func (r *pgProspectRepository) FindEligible(ctx context.Context, campaignID string, limit int) ([]*domain.CampaignProspect, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+prospectColumns+`
		FROM campaign_prospects p
		WHERE p.campaign_id = $1
		  AND p.status = ANY($2)
		  AND p.profile_url <> ''
		  AND p.contacted_at IS NULL
		  AND NOT EXISTS (
			SELECT 1 FROM send_queue q
			WHERE q.prospect_id = p.id AND q.status IN ('pending','sent')
		  )
		ORDER BY p.created_at ASC
		LIMIT $3`,
		campaignID, statusStrings(domain.EnqueueableStatuses), limit)
	if err != nil {
		return nil, fmt.Errorf("find eligible prospects: %w", err)
	}
	defer rows.Close()
	return scanProspects(rows)
}

func (r *pgProspectRepository) FindInStatuses(ctx context.Context, campaignID string, statuses []domain.ProspectStatus) ([]*domain.CampaignProspect, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+prospectColumns+`
		FROM campaign_prospects
		WHERE campaign_id = $1 AND status = ANY($2)
		ORDER BY updated_at DESC`,
		campaignID, statusStrings(statuses))
	if err != nil {
		return nil, fmt.Errorf("find prospects by status: %w", err)
	}
	defer rows.Close()
	return scanProspects(rows)
}

func (r *pgProspectRepository) UpdateStatus(ctx context.Context, id string, status domain.ProspectStatus, notes *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE campaign_prospects
		SET status = $1, notes = COALESCE($2, notes), updated_at = NOW()
		WHERE id = $3`, status, notes, id)
	return err
}

func (r *pgProspectRepository) SetProviderID(ctx context.Context, id string, providerID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE campaign_prospects
		SET provider_id = $1, updated_at = NOW()
		WHERE id = $2`, providerID, id)
	return err
}

func (r *pgProspectRepository) MarkContacted(ctx context.Context, id string, status domain.ProspectStatus, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE campaign_prospects
		SET status = $1, contacted_at = COALESCE(contacted_at, $2), updated_at = NOW()
		WHERE id = $3`, status, at, id)
	return err
}

func (r *pgProspectRepository) ResetToPending(ctx context.Context, campaignID string, statuses []domain.ProspectStatus) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE campaign_prospects
		SET status = 'pending', notes = NULL, updated_at = NOW()
		WHERE campaign_id = $1 AND status = ANY($2)
		RETURNING id`,
		campaignID, statusStrings(statuses))
	if err != nil {
		return nil, fmt.Errorf("reset prospects: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ---- helpers ----

func scanProspect(row pgx.Row) (*domain.CampaignProspect, error) {
	var p domain.CampaignProspect
	err := row.Scan(
		&p.ID, &p.CampaignID, &p.FirstName, &p.LastName, &p.Email,
		&p.Company, &p.Title, &p.ProfileURL, &p.ProviderID,
		&p.Status, &p.ContactedAt, &p.Notes, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanProspects(rows pgx.Rows) ([]*domain.CampaignProspect, error) {
	var result []*domain.CampaignProspect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func statusStrings(statuses []domain.ProspectStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
