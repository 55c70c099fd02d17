package provider

import "context"

// Profile is the provider's view of a contact. ProviderID is the opaque
// internal identifier the send API requires; a public profile URL is not
// accepted there.
type Profile struct {
	ProviderID      string      `json:"provider_id"`
	FirstName       string      `json:"first_name"`
	LastName        string      `json:"last_name"`
	NetworkDistance string      `json:"network_distance"`
	Invitation      *Invitation `json:"invitation,omitempty"`
}

// Invitation is an outstanding connection request on the contact, when one
// exists.
type Invitation struct {
	Status string `json:"status"`
}

// InviteRequest is the body posted to the provider's invite endpoint.
type InviteRequest struct {
	AccountID  string `json:"account_id"`
	ProviderID string `json:"provider_id"`
	Message    string `json:"message"`
}

// InviteResponse maps the provider's response to a connection request.
type InviteResponse struct {
	InvitationID string `json:"invitation_id"`
	Status       string `json:"status"`
}

// Client is the narrow capability surface the pipeline needs from the
// delivery provider. Substituting another vendor means implementing these
// two calls; worker logic never touches vendor specifics.
type Client interface {
	// LookupProfile resolves a public identifier (vanity name or provider
	// id) into a full profile, scoped to the given provider account.
	LookupProfile(ctx context.Context, accountID, identifier string) (*Profile, error)

	// SendInvitation issues a connection request to the resolved contact.
	SendInvitation(ctx context.Context, req InviteRequest) (*InviteResponse, error)
}
