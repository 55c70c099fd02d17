package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/outreachhq/sendpipe/internal/domain"
)

// Hand-written, in-memory repository implementations used in unit tests.
// No mock-generation library needed.

// MockSendQueueRepository implements SendQueueRepository over a map.
type MockSendQueueRepository struct {
	mu    sync.RWMutex
	items map[string]*domain.SendQueueItem

	// DailyLimits maps account ID to its daily limit, consulted by
	// EnqueueWithinLimit the way the pg implementation consults the
	// accounts table.
	DailyLimits map[string]int

	// Optional error overrides for failure paths.
	EnqueueErr    error
	GetByIDErr    error
	MarkSentErr   error
	MarkFailedErr error
}

func NewMockSendQueueRepository() *MockSendQueueRepository {
	return &MockSendQueueRepository{
		items:       make(map[string]*domain.SendQueueItem),
		DailyLimits: make(map[string]int),
	}
}

func (m *MockSendQueueRepository) EnqueueWithinLimit(_ context.Context, item *domain.SendQueueItem) (bool, error) {
	if m.EnqueueErr != nil {
		return false, m.EnqueueErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	limit, ok := m.DailyLimits[item.AccountID]
	if ok {
		dayStart := startOfUTCDay(time.Now().UTC())
		sent := 0
		for _, it := range m.items {
			if it.AccountID == item.AccountID && it.Status == domain.ItemSent &&
				it.SentAt != nil && !it.SentAt.Before(dayStart) {
				sent++
			}
		}
		if sent >= limit {
			return false, nil
		}
	}

	clone := *item
	clone.Status = domain.ItemPending
	m.items[item.ID] = &clone
	return true, nil
}

func (m *MockSendQueueRepository) GetByID(_ context.Context, id string) (*domain.SendQueueItem, error) {
	if m.GetByIDErr != nil {
		return nil, m.GetByIDErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *item
	return &clone, nil
}

func (m *MockSendQueueRepository) MarkSent(_ context.Context, id string, sentAt time.Time) error {
	if m.MarkSentErr != nil {
		return m.MarkSentErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.items[id]; ok {
		item.Status = domain.ItemSent
		item.SentAt = &sentAt
		item.ErrorMessage = nil
	}
	return nil
}

func (m *MockSendQueueRepository) MarkFailed(_ context.Context, id string, errMsg string) error {
	if m.MarkFailedErr != nil {
		return m.MarkFailedErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.items[id]; ok {
		item.Status = domain.ItemFailed
		item.ErrorMessage = &errMsg
	}
	return nil
}

func (m *MockSendQueueRepository) CountSentSince(_ context.Context, accountID string, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, item := range m.items {
		if item.AccountID == accountID && item.Status == domain.ItemSent &&
			item.SentAt != nil && !item.SentAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *MockSendQueueRepository) HasOpenItem(_ context.Context, prospectID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, item := range m.items {
		if item.ProspectID == prospectID &&
			(item.Status == domain.ItemPending || item.Status == domain.ItemSent) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockSendQueueRepository) DeleteFailedForProspects(_ context.Context, campaignID string, prospectIDs []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, item := range m.items {
		if item.CampaignID != campaignID || item.Status != domain.ItemFailed {
			continue
		}
		for _, pid := range prospectIDs {
			if item.ProspectID == pid {
				delete(m.items, id)
				deleted++
				break
			}
		}
	}
	return deleted, nil
}

func (m *MockSendQueueRepository) LatestErrors(_ context.Context, campaignID string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type entry struct {
		at  time.Time
		msg string
	}
	latest := make(map[string]entry)
	for _, item := range m.items {
		if item.CampaignID != campaignID || item.ErrorMessage == nil {
			continue
		}
		if prev, ok := latest[item.ProspectID]; !ok || item.CreatedAt.After(prev.at) {
			latest[item.ProspectID] = entry{at: item.CreatedAt, msg: *item.ErrorMessage}
		}
	}

	result := make(map[string]string, len(latest))
	for pid, e := range latest {
		result[pid] = e.msg
	}
	return result, nil
}

func (m *MockSendQueueRepository) CountByStatus(_ context.Context) (map[domain.ItemStatus]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[domain.ItemStatus]int)
	for _, item := range m.items {
		counts[item.Status]++
	}
	return counts, nil
}

// Seed inserts an item directly, bypassing the limit check.
func (m *MockSendQueueRepository) Seed(item *domain.SendQueueItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *item
	m.items[item.ID] = &clone
}

// Items returns a snapshot of all stored items, ordered by creation time.
func (m *MockSendQueueRepository) Items() []*domain.SendQueueItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.SendQueueItem, 0, len(m.items))
	for _, item := range m.items {
		clone := *item
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// MockProspectRepository implements ProspectRepository over a map.
type MockProspectRepository struct {
	mu        sync.RWMutex
	prospects map[string]*domain.CampaignProspect

	// HasOpen lets tests wire queue state into eligibility the way the
	// pg implementation's NOT EXISTS subquery does. Nil means "no open item".
	HasOpen func(prospectID string) bool

	GetByIDErr error
}

func NewMockProspectRepository() *MockProspectRepository {
	return &MockProspectRepository{prospects: make(map[string]*domain.CampaignProspect)}
}

func (m *MockProspectRepository) Seed(p *domain.CampaignProspect) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *p
	m.prospects[p.ID] = &clone
}

func (m *MockProspectRepository) GetByID(_ context.Context, id string) (*domain.CampaignProspect, error) {
	if m.GetByIDErr != nil {
		return nil, m.GetByIDErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prospects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *MockProspectRepository) FindEligible(_ context.Context, campaignID string, limit int) ([]*domain.CampaignProspect, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*domain.CampaignProspect
	for _, p := range m.prospects {
		if p.CampaignID != campaignID || p.ProfileURL == "" || p.ContactedAt != nil {
			continue
		}
		if !statusIn(p.Status, domain.EnqueueableStatuses) {
			continue
		}
		if m.HasOpen != nil && m.HasOpen(p.ID) {
			continue
		}
		clone := *p
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockProspectRepository) FindInStatuses(_ context.Context, campaignID string, statuses []domain.ProspectStatus) ([]*domain.CampaignProspect, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.CampaignProspect
	for _, p := range m.prospects {
		if p.CampaignID == campaignID && statusIn(p.Status, statuses) {
			clone := *p
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MockProspectRepository) UpdateStatus(_ context.Context, id string, status domain.ProspectStatus, notes *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.prospects[id]; ok {
		p.Status = status
		if notes != nil {
			p.Notes = notes
		}
		p.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *MockProspectRepository) SetProviderID(_ context.Context, id string, providerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.prospects[id]; ok {
		p.ProviderID = &providerID
	}
	return nil
}

func (m *MockProspectRepository) MarkContacted(_ context.Context, id string, status domain.ProspectStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.prospects[id]; ok {
		p.Status = status
		if p.ContactedAt == nil {
			p.ContactedAt = &at
		}
		p.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *MockProspectRepository) ResetToPending(_ context.Context, campaignID string, statuses []domain.ProspectStatus) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, p := range m.prospects {
		if p.CampaignID == campaignID && statusIn(p.Status, statuses) {
			p.Status = domain.ProspectPending
			p.Notes = nil
			p.UpdatedAt = time.Now().UTC()
			ids = append(ids, p.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func statusIn(s domain.ProspectStatus, set []domain.ProspectStatus) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}

// MockCampaignRepository implements CampaignRepository over a map.
type MockCampaignRepository struct {
	mu        sync.RWMutex
	campaigns map[string]*domain.Campaign

	// Pollable overrides FindPollable when set.
	Pollable *domain.Campaign
}

func NewMockCampaignRepository() *MockCampaignRepository {
	return &MockCampaignRepository{campaigns: make(map[string]*domain.Campaign)}
}

func (m *MockCampaignRepository) Seed(c *domain.Campaign) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *c
	m.campaigns[c.ID] = &clone
}

func (m *MockCampaignRepository) GetByID(_ context.Context, id string) (*domain.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (m *MockCampaignRepository) FindPollable(_ context.Context) (*domain.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Pollable == nil {
		return nil, domain.ErrNotFound
	}
	clone := *m.Pollable
	return &clone, nil
}

func (m *MockCampaignRepository) MarkActive(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.campaigns[id]; ok {
		c.Status = "active"
		c.UpdatedAt = time.Now().UTC()
	}
	if m.Pollable != nil && m.Pollable.ID == id {
		m.Pollable.Status = "active"
	}
	return nil
}

// MockAccountRepository implements AccountRepository over a map.
type MockAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{accounts: make(map[string]*domain.Account)}
}

func (m *MockAccountRepository) Seed(a *domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *a
	m.accounts[a.ID] = &clone
}

func (m *MockAccountRepository) GetByID(_ context.Context, id string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *a
	return &clone, nil
}

func (m *MockAccountRepository) FindActiveForWorkspace(_ context.Context, workspaceID string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var candidates []*domain.Account
	for _, a := range m.accounts {
		if a.WorkspaceID == workspaceID && a.Active {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	clone := *candidates[0]
	return &clone, nil
}
