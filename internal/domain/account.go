package domain

import "time"

// Account is a sending identity (one connected LinkedIn seat).
// DailyLimit is the ceiling on sends per UTC day; SentToday is derived
// from the send queue, never stored.
type Account struct {
	ID                string    `json:"id"`
	WorkspaceID       string    `json:"workspace_id"`
	Name              string    `json:"name"`
	ProviderAccountID string    `json:"provider_account_id"`
	DailyLimit        int       `json:"daily_message_limit"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
