package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/outreachhq/sendpipe/internal/domain"
	"github.com/outreachhq/sendpipe/internal/ratelimit"
	"github.com/outreachhq/sendpipe/internal/repository"
	"github.com/outreachhq/sendpipe/internal/resolver"
)

// QueuedProspect is one admitted prospect in a populate result.
type QueuedProspect struct {
	QueueID    string `json:"queue_id"`
	ProspectID string `json:"prospect_id"`
	Name       string `json:"name"`
	ProviderID string `json:"linkedin_user_id,omitempty"`
	Message    string `json:"message"`
}

// AccountCredentials identifies the sending seat for the admitted batch.
type AccountCredentials struct {
	AccountID         string `json:"account_id"`
	ProviderAccountID string `json:"provider_account_id"`
	Name              string `json:"account_name"`
}

// PopulateResult is the outcome of one populator run for one campaign.
type PopulateResult struct {
	CampaignID         string              `json:"campaign_id"`
	Prospects          []QueuedProspect    `json:"prospects"`
	Count              int                 `json:"count"`
	Skipped            int                 `json:"skipped"`
	AccountCredentials *AccountCredentials `json:"account_credentials,omitempty"`
	Message            string              `json:"message,omitempty"`
}

// Populator admits eligible prospects into the send queue: it selects
// prospects that have never been contacted and hold no open queue item,
// validates them against the provider, renders the campaign template, and
// inserts pending items up to the account's remaining daily budget.
type Populator struct {
	campaigns repository.CampaignRepository
	prospects repository.ProspectRepository
	accounts  repository.AccountRepository
	queue     repository.SendQueueRepository
	resolver  *resolver.Resolver
	limiter   *ratelimit.DailyLimiter
	batchSize int
	logger    *zap.Logger
}

func NewPopulator(
	campaigns repository.CampaignRepository,
	prospects repository.ProspectRepository,
	accounts repository.AccountRepository,
	queue repository.SendQueueRepository,
	res *resolver.Resolver,
	limiter *ratelimit.DailyLimiter,
	batchSize int,
	logger *zap.Logger,
) *Populator {
	return &Populator{
		campaigns: campaigns, prospects: prospects, accounts: accounts,
		queue: queue, resolver: res, limiter: limiter,
		batchSize: batchSize, logger: logger,
	}
}

// PollPending finds one campaign with admittable prospects and populates
// its batch. An empty result (not an error) comes back when no campaign
// qualifies; external schedulers call this on a fixed cadence.
func (p *Populator) PollPending(ctx context.Context) (*PopulateResult, error) {
	campaign, err := p.campaigns.FindPollable(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &PopulateResult{Prospects: []QueuedProspect{}, Message: "no campaigns with pending prospects"}, nil
		}
		return nil, fmt.Errorf("find pollable campaign: %w", err)
	}
	return p.Populate(ctx, campaign)
}

// PopulateCampaign populates one explicitly named campaign (the
// activation path).
func (p *Populator) PopulateCampaign(ctx context.Context, campaignID string) (*PopulateResult, error) {
	campaign, err := p.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return p.Populate(ctx, campaign)
}

// Populate runs one admission pass for the campaign.
func (p *Populator) Populate(ctx context.Context, campaign *domain.Campaign) (*PopulateResult, error) {
	log := p.logger.With(zap.String("campaign_id", campaign.ID))
	result := &PopulateResult{CampaignID: campaign.ID, Prospects: []QueuedProspect{}}

	account, err := p.activeAccount(ctx, campaign)
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveAccount) {
			// Not an error: populate zero items and say why.
			result.Message = domain.ErrNoActiveAccount.Error()
			return result, nil
		}
		return nil, err
	}
	result.AccountCredentials = &AccountCredentials{
		AccountID:         account.ID,
		ProviderAccountID: account.ProviderAccountID,
		Name:              account.Name,
	}

	budget, err := p.limiter.Budget(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("rate budget: %w", err)
	}
	if budget.Exhausted() {
		result.Message = domain.ErrRateLimited.Error()
		return result, nil
	}
	if budget.Warn {
		log.Warn("account approaching daily limit",
			zap.Int("limit", budget.Limit), zap.Int("sent", budget.Sent))
	}

	batch := p.batchSize
	if budget.Remaining < batch {
		batch = budget.Remaining
	}

	eligible, err := p.prospects.FindEligible(ctx, campaign.ID, batch)
	if err != nil {
		return nil, fmt.Errorf("find eligible prospects: %w", err)
	}
	if len(eligible) == 0 {
		result.Message = "no eligible prospects"
		return result, nil
	}

	for _, prospect := range eligible {
		queued, skipReason := p.admit(ctx, campaign, account, prospect)
		if queued == nil {
			result.Skipped++
			log.Info("prospect skipped",
				zap.String("prospect_id", prospect.ID),
				zap.String("reason", skipReason))
			continue
		}
		result.Prospects = append(result.Prospects, *queued)
	}
	result.Count = len(result.Prospects)

	if result.Count > 0 {
		if err := p.campaigns.MarkActive(ctx, campaign.ID); err != nil {
			log.Warn("failed to mark campaign active", zap.Error(err))
		}
	}

	log.Info("populate finished",
		zap.Int("queued", result.Count), zap.Int("skipped", result.Skipped))
	return result, nil
}

// admit validates one prospect against the provider and inserts its queue
// item. A nil return with a reason means the prospect was skipped; its
// status has already been updated to reflect why.
func (p *Populator) admit(ctx context.Context, campaign *domain.Campaign, account *domain.Account, prospect *domain.CampaignProspect) (*QueuedProspect, string) {
	reference := prospect.ProfileURL
	if prospect.ProviderID != nil && *prospect.ProviderID != "" {
		reference = *prospect.ProviderID
	}

	providerID, profile, err := p.resolver.Resolve(ctx, reference, account.ProviderAccountID)
	if err != nil {
		note := err.Error()
		if uerr := p.prospects.UpdateStatus(ctx, prospect.ID, domain.ProspectFailed, &note); uerr != nil {
			p.logger.Error("failed to record resolution failure", zap.Error(uerr))
		}
		return nil, "resolution_failed"
	}

	if profile != nil {
		if err := p.prospects.SetProviderID(ctx, prospect.ID, providerID); err != nil {
			p.logger.Warn("failed to cache provider id", zap.Error(err))
		}
		// Pre-send validation: no point queueing someone who is already a
		// connection or already holds a pending invitation.
		if profile.NetworkDistance == "FIRST_DEGREE" {
			note := "already a 1st degree connection"
			_ = p.prospects.UpdateStatus(ctx, prospect.ID, domain.ProspectConnected, &note)
			return nil, "already_connected"
		}
		if profile.Invitation != nil && profile.Invitation.Status == "PENDING" {
			note := "invitation already pending on LinkedIn"
			_ = p.prospects.UpdateStatus(ctx, prospect.ID, domain.ProspectAlreadyInvited, &note)
			return nil, "already_invited"
		}
	}

	item := &domain.SendQueueItem{
		ID:              uuid.New().String(),
		CampaignID:      campaign.ID,
		ProspectID:      prospect.ID,
		AccountID:       account.ID,
		ActionType:      domain.ActionConnectionRequest,
		Message:         domain.RenderTemplate(campaign.Template, prospect),
		TargetReference: providerID,
		Status:          domain.ItemPending,
		CreatedAt:       time.Now().UTC(),
	}

	inserted, err := p.queue.EnqueueWithinLimit(ctx, item)
	if err != nil {
		p.logger.Error("enqueue failed", zap.String("prospect_id", prospect.ID), zap.Error(err))
		return nil, "enqueue_error"
	}
	if !inserted {
		// Budget raced to zero between the batch-size check and this
		// insert; the transactional guard refused the row.
		return nil, "rate_limited"
	}

	return &QueuedProspect{
		QueueID:    item.ID,
		ProspectID: prospect.ID,
		Name:       prospect.FirstName + " " + prospect.LastName,
		ProviderID: providerID,
		Message:    item.Message,
	}, ""
}

func (p *Populator) activeAccount(ctx context.Context, campaign *domain.Campaign) (*domain.Account, error) {
	if campaign.AccountID != nil && *campaign.AccountID != "" {
		account, err := p.accounts.GetByID(ctx, *campaign.AccountID)
		if err == nil && account.Active {
			return account, nil
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("fetch campaign account: %w", err)
		}
	}

	account, err := p.accounts.FindActiveForWorkspace(ctx, campaign.WorkspaceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNoActiveAccount
		}
		return nil, fmt.Errorf("find workspace account: %w", err)
	}
	return account, nil
}
