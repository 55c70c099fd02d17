package resolver_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/outreachhq/sendpipe/internal/domain"
	"github.com/outreachhq/sendpipe/internal/provider"
	"github.com/outreachhq/sendpipe/internal/resolver"
)

// fakeClient records lookups and returns a canned profile or error.
type fakeClient struct {
	lookups    int
	lastVanity string
	profile    *provider.Profile
	err        error
}

func (f *fakeClient) LookupProfile(_ context.Context, _, identifier string) (*provider.Profile, error) {
	f.lookups++
	f.lastVanity = identifier
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

func (f *fakeClient) SendInvitation(context.Context, provider.InviteRequest) (*provider.InviteResponse, error) {
	return nil, errors.New("not used")
}

func TestResolve_ProviderIDFastPath(t *testing.T) {
	client := &fakeClient{}
	r := resolver.New(client, zap.NewNop())

	id, profile, err := r.Resolve(context.Background(), "ACoAABxyz123", "ua-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "ACoAABxyz123" {
		t.Fatalf("fast path must return the reference unchanged, got %q", id)
	}
	if profile != nil {
		t.Fatal("fast path must not produce a profile")
	}
	if client.lookups != 0 {
		t.Fatalf("fast path made %d network calls", client.lookups)
	}
}

func TestResolve_ProfileURL(t *testing.T) {
	client := &fakeClient{profile: &provider.Profile{ProviderID: "ACoAAResolved"}}
	r := resolver.New(client, zap.NewNop())

	id, profile, err := r.Resolve(context.Background(), "https://www.linkedin.com/in/jane-doe/", "ua-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "ACoAAResolved" {
		t.Fatalf("got %q", id)
	}
	if profile == nil {
		t.Fatal("expected profile from lookup")
	}
	if client.lookups != 1 {
		t.Fatalf("expected exactly one lookup, got %d", client.lookups)
	}
	if client.lastVanity != "jane-doe" {
		t.Fatalf("extracted vanity %q", client.lastVanity)
	}
}

func TestResolve_LookupFailure(t *testing.T) {
	client := &fakeClient{err: errors.New("provider: HTTP 503")}
	r := resolver.New(client, zap.NewNop())

	_, _, err := r.Resolve(context.Background(), "https://linkedin.com/in/jane-doe", "ua-1")
	if !errors.Is(err, domain.ErrResolutionFailed) {
		t.Fatalf("expected ErrResolutionFailed, got %v", err)
	}
	// Upstream error text must survive for operator diagnosis.
	if got := err.Error(); !strings.Contains(got, "HTTP 503") {
		t.Fatalf("upstream text missing from %q", got)
	}
}

func TestResolve_UnparseableReference(t *testing.T) {
	client := &fakeClient{}
	r := resolver.New(client, zap.NewNop())

	_, _, err := r.Resolve(context.Background(), "https://example.com/profile/42", "ua-1")
	if !errors.Is(err, domain.ErrResolutionFailed) {
		t.Fatalf("expected ErrResolutionFailed, got %v", err)
	}
	if client.lookups != 0 {
		t.Fatal("must not call the provider for an unparseable reference")
	}
}

func TestExtractVanity(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{"plain", "https://linkedin.com/in/jane-doe", "jane-doe", false},
		{"www with trailing slash", "https://www.linkedin.com/in/jane-doe/", "jane-doe", false},
		{"query string", "https://www.linkedin.com/in/jane-doe?trk=search", "jane-doe", false},
		{"fragment", "https://www.linkedin.com/in/jane-doe#about", "jane-doe", false},
		{"unicode vanity", "https://linkedin.com/in/j%C3%A1ne", "j%C3%A1ne", false},
		{"not a profile url", "https://linkedin.com/company/acme", "", true},
		{"empty", "", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolver.ExtractVanity(tc.url)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestIsProviderID(t *testing.T) {
	if !resolver.IsProviderID("ACoAABxyz") || !resolver.IsProviderID("ACwAAabc") {
		t.Fatal("known prefixes must match")
	}
	if resolver.IsProviderID("https://linkedin.com/in/jane") || resolver.IsProviderID("jane-doe") {
		t.Fatal("non-id references must not match")
	}
}
