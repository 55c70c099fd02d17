package domain

import "time"

// ProspectStatus tracks a prospect's lifecycle within one campaign.
type ProspectStatus string

const (
	ProspectPending            ProspectStatus = "pending"
	ProspectApproved           ProspectStatus = "approved"
	ProspectReadyToMessage     ProspectStatus = "ready_to_message"
	ProspectConnectionRequested ProspectStatus = "connection_requested"
	ProspectContacted          ProspectStatus = "contacted"
	ProspectConnected          ProspectStatus = "connected"
	ProspectFailed             ProspectStatus = "failed"
	ProspectError              ProspectStatus = "error"
	ProspectBounced            ProspectStatus = "bounced"
	ProspectRateLimited        ProspectStatus = "rate_limited"
	ProspectRateLimitedCR      ProspectStatus = "rate_limited_cr"
	ProspectRateLimitedMessage ProspectStatus = "rate_limited_message"
	ProspectAlreadyInvited     ProspectStatus = "already_invited"
	ProspectInvitationDeclined ProspectStatus = "invitation_declined"
)

// EnqueueableStatuses are the statuses the populator selects from.
var EnqueueableStatuses = []ProspectStatus{
	ProspectPending,
	ProspectApproved,
	ProspectReadyToMessage,
}

// FailedFamily is the base set of statuses eligible for operator reset.
var FailedFamily = []ProspectStatus{
	ProspectFailed,
	ProspectError,
	ProspectBounced,
}

// ExtendedFailedFamily additionally covers rate-limit and invitation
// outcomes. Used by the extended reset scope and the failure export.
var ExtendedFailedFamily = []ProspectStatus{
	ProspectFailed,
	ProspectError,
	ProspectBounced,
	ProspectAlreadyInvited,
	ProspectInvitationDeclined,
	ProspectRateLimited,
	ProspectRateLimitedCR,
	ProspectRateLimitedMessage,
}

// CampaignProspect is a prospect's participation in one campaign.
// Status transitions are driven exclusively by worker outcomes
// and failure-recovery resets; rows are never deleted here.
type CampaignProspect struct {
	ID          string         `json:"id"`
	CampaignID  string         `json:"campaign_id"`
	FirstName   string         `json:"first_name"`
	LastName    string         `json:"last_name"`
	Email       *string        `json:"email,omitempty"`
	Company     *string        `json:"company,omitempty"`
	Title       *string        `json:"title,omitempty"`
	ProfileURL  string         `json:"profile_url"`
	ProviderID  *string        `json:"provider_id,omitempty"`
	Status      ProspectStatus `json:"status"`
	ContactedAt *time.Time     `json:"contacted_at,omitempty"`
	Notes       *string        `json:"notes,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Campaign holds the fields the pipeline needs: the sending account and
// the connection-request template. Everything else about campaigns is
// owned by external collaborators.
type Campaign struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Name        string    `json:"name"`
	AccountID   *string   `json:"account_id,omitempty"`
	Template    string    `json:"connection_request_template"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
