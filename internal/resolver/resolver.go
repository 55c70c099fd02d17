package resolver

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/outreachhq/sendpipe/internal/domain"
	"github.com/outreachhq/sendpipe/internal/provider"
)

// LinkedIn member ids handed out by the provider are opaque strings with a
// fixed prefix. A reference that already has the shape needs no lookup.
var providerIDPrefixes = []string{"ACoAA", "ACwAA"}

var vanityPattern = regexp.MustCompile(`linkedin\.com/in/([^/?#]+)`)

// Resolver converts a prospect reference (public profile URL or an already
// resolved provider id) into the provider's internal contact id. The send
// API requires the internal id, so resolution always runs before a send.
type Resolver struct {
	client provider.Client
	logger *zap.Logger
}

func New(client provider.Client, logger *zap.Logger) *Resolver {
	return &Resolver{client: client, logger: logger}
}

// Resolve returns the provider id for the reference. The fast path, a
// reference that already looks like a provider id, is idempotent and
// makes no network call. Otherwise the public identifier is extracted from
// the profile URL and resolved with a single lookup; the full profile is
// returned alongside the id when a lookup happened.
func (r *Resolver) Resolve(ctx context.Context, reference, providerAccountID string) (string, *provider.Profile, error) {
	if IsProviderID(reference) {
		return reference, nil, nil
	}

	vanity, err := ExtractVanity(reference)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", domain.ErrResolutionFailed, err)
	}

	profile, err := r.client.LookupProfile(ctx, providerAccountID, vanity)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", domain.ErrResolutionFailed, err)
	}

	r.logger.Debug("resolved profile",
		zap.String("vanity", vanity),
		zap.String("provider_id", profile.ProviderID),
	)
	return profile.ProviderID, profile, nil
}

// IsProviderID reports whether the reference already matches the provider's
// internal id shape.
func IsProviderID(reference string) bool {
	for _, prefix := range providerIDPrefixes {
		if strings.HasPrefix(reference, prefix) {
			return true
		}
	}
	return false
}

// ExtractVanity pulls the public identifier out of a LinkedIn profile URL.
func ExtractVanity(profileURL string) (string, error) {
	m := vanityPattern.FindStringSubmatch(profileURL)
	if m == nil {
		return "", fmt.Errorf("cannot extract public identifier from %q", profileURL)
	}
	return m[1], nil
}
