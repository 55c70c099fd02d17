package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// UnipileClient talks to a Unipile-compatible messaging gateway over HTTP.
// The DSN (host) and API key are account-pool scoped and injected from
// config so tests can point to a local httptest server.
//
// A process-wide token bucket caps the steady rate of outbound API calls.
// This is separate from the per-account daily budget: the bucket protects
// the provider API, the daily budget protects each LinkedIn seat.
type UnipileClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewUnipileClient builds a client for the given DSN (e.g. "api3.unipile.com:13351").
// ratePerSec bounds provider API calls per second; burst equals the rate so
// no extra burst capacity accumulates.
func NewUnipileClient(dsn, apiKey string, timeout time.Duration, ratePerSec int) *UnipileClient {
	return &UnipileClient{
		baseURL: "https://" + dsn,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
	}
}

func (c *UnipileClient) LookupProfile(ctx context.Context, accountID, identifier string) (*Profile, error) {
	endpoint := fmt.Sprintf("/api/v1/users/%s?account_id=%s",
		url.PathEscape(identifier), url.QueryEscape(accountID))

	var profile Profile
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &profile); err != nil {
		return nil, err
	}
	if profile.ProviderID == "" {
		return nil, fmt.Errorf("profile lookup for %q returned no provider id", identifier)
	}
	return &profile, nil
}

func (c *UnipileClient) SendInvitation(ctx context.Context, req InviteRequest) (*InviteResponse, error) {
	var resp InviteResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/users/invite", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// providerError is the JSON error shape Unipile returns on non-2xx.
type providerError struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

func (c *UnipileClient) do(ctx context.Context, method, endpoint string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var pe providerError
		if decodeErr := json.NewDecoder(resp.Body).Decode(&pe); decodeErr == nil {
			if pe.Title != "" {
				return fmt.Errorf("provider: %s", pe.Title)
			}
			if pe.Message != "" {
				return fmt.Errorf("provider: %s", pe.Message)
			}
		}
		return fmt.Errorf("provider: HTTP %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// compile-time check that UnipileClient implements Client
var _ Client = (*UnipileClient)(nil)
