package worker_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/outreachhq/sendpipe/internal/domain"
	"github.com/outreachhq/sendpipe/internal/pacing"
	"github.com/outreachhq/sendpipe/internal/provider"
	"github.com/outreachhq/sendpipe/internal/ratelimit"
	"github.com/outreachhq/sendpipe/internal/repository"
	"github.com/outreachhq/sendpipe/internal/resolver"
	"github.com/outreachhq/sendpipe/internal/worker"
)

// fakeClient counts provider calls and returns configurable results.
type fakeClient struct {
	lookups int
	sends   int

	lookupErr error
	sendErr   error
	profile   *provider.Profile
	lastSend  provider.InviteRequest
}

func (f *fakeClient) LookupProfile(context.Context, string, string) (*provider.Profile, error) {
	f.lookups++
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if f.profile != nil {
		return f.profile, nil
	}
	return &provider.Profile{ProviderID: "ACoAAResolved"}, nil
}

func (f *fakeClient) SendInvitation(_ context.Context, req provider.InviteRequest) (*provider.InviteResponse, error) {
	f.sends++
	f.lastSend = req
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &provider.InviteResponse{InvitationID: "inv-1", Status: "sent"}, nil
}

type fixture struct {
	worker    *worker.Worker
	queue     *repository.MockSendQueueRepository
	prospects *repository.MockProspectRepository
	accounts  *repository.MockAccountRepository
	client    *fakeClient
}

func newFixture(client *fakeClient) *fixture {
	queue := repository.NewMockSendQueueRepository()
	prospects := repository.NewMockProspectRepository()
	accounts := repository.NewMockAccountRepository()

	accounts.Seed(&domain.Account{
		ID:                "acct-1",
		WorkspaceID:       "ws-1",
		Name:              "Seat One",
		ProviderAccountID: "ua-1",
		DailyLimit:        20,
		Active:            true,
	})

	w := worker.New(
		queue, prospects, accounts,
		resolver.New(client, zap.NewNop()),
		client,
		ratelimit.NewDailyLimiter(queue),
		pacing.New(0, 0), // no sleeping in unit tests
		zap.NewNop(),
		nil, nil,
	)
	return &fixture{worker: w, queue: queue, prospects: prospects, accounts: accounts, client: client}
}

func (f *fixture) seedTask(target string) domain.Task {
	f.prospects.Seed(&domain.CampaignProspect{
		ID:         "p1",
		CampaignID: "c1",
		FirstName:  "Jane",
		LastName:   "Doe",
		ProfileURL: "https://linkedin.com/in/jane-doe",
		Status:     domain.ProspectApproved,
	})
	f.queue.Seed(&domain.SendQueueItem{
		ID:              "q1",
		CampaignID:      "c1",
		ProspectID:      "p1",
		AccountID:       "acct-1",
		ActionType:      domain.ActionConnectionRequest,
		Message:         "Hi Jane, let's connect",
		TargetReference: target,
		Status:          domain.ItemPending,
		CreatedAt:       time.Now().UTC(),
	})
	return domain.Task{
		QueueID:        "q1",
		CampaignID:     "c1",
		ProspectID:     "p1",
		AccountID:      "acct-1",
		Message:        "Hi Jane, let's connect",
		LinkedInUserID: target,
		MessageType:    domain.ActionConnectionRequest,
	}
}

func TestProcess_SuccessfulSendFromProfileURL(t *testing.T) {
	f := newFixture(&fakeClient{})
	task := f.seedTask("https://linkedin.com/in/jane-doe")

	outcome, err := f.worker.Process(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != worker.OutcomeSent {
		t.Fatalf("expected sent, got %s", outcome)
	}

	if f.client.lookups != 1 {
		t.Fatalf("expected one resolver lookup, got %d", f.client.lookups)
	}
	if f.client.sends != 1 {
		t.Fatalf("expected one send, got %d", f.client.sends)
	}
	if f.client.lastSend.ProviderID != "ACoAAResolved" {
		t.Fatalf("send must use the resolved id, got %q", f.client.lastSend.ProviderID)
	}

	item, _ := f.queue.GetByID(context.Background(), "q1")
	if item.Status != domain.ItemSent || item.SentAt == nil {
		t.Fatalf("item not marked sent: %+v", item)
	}

	p, _ := f.prospects.GetByID(context.Background(), "p1")
	if p.Status != domain.ProspectConnectionRequested {
		t.Fatalf("expected connection_requested, got %s", p.Status)
	}
	if p.ContactedAt == nil {
		t.Fatal("contacted_at must be set on first send")
	}
	if p.ProviderID == nil || *p.ProviderID != "ACoAAResolved" {
		t.Fatal("resolved provider id must be cached on the prospect")
	}
}

func TestProcess_ProviderIDFastPathSkipsLookup(t *testing.T) {
	f := newFixture(&fakeClient{})
	task := f.seedTask("ACoAADirect")

	outcome, err := f.worker.Process(context.Background(), task)
	if err != nil || outcome != worker.OutcomeSent {
		t.Fatalf("outcome=%s err=%v", outcome, err)
	}
	if f.client.lookups != 0 {
		t.Fatalf("fast path made %d lookups", f.client.lookups)
	}
	if f.client.lastSend.ProviderID != "ACoAADirect" {
		t.Fatalf("got %q", f.client.lastSend.ProviderID)
	}
}

func TestProcess_ResolutionFailureSendsNothing(t *testing.T) {
	f := newFixture(&fakeClient{lookupErr: errors.New("provider: HTTP 404")})
	task := f.seedTask("https://linkedin.com/in/jane-doe")

	outcome, err := f.worker.Process(context.Background(), task)
	if err != nil {
		t.Fatalf("business failure must not surface as transport error: %v", err)
	}
	if outcome != worker.OutcomeFailed {
		t.Fatalf("expected failed, got %s", outcome)
	}
	if f.client.sends != 0 {
		t.Fatalf("send must not run after resolution failure, got %d calls", f.client.sends)
	}

	item, _ := f.queue.GetByID(context.Background(), "q1")
	if item.Status != domain.ItemFailed || item.ErrorMessage == nil {
		t.Fatalf("item not marked failed: %+v", item)
	}
	if !strings.Contains(*item.ErrorMessage, "HTTP 404") {
		t.Fatalf("resolution error text missing: %q", *item.ErrorMessage)
	}

	p, _ := f.prospects.GetByID(context.Background(), "p1")
	if p.Status != domain.ProspectFailed {
		t.Fatalf("expected failed prospect, got %s", p.Status)
	}
}

func TestProcess_UnsupportedMessageType(t *testing.T) {
	f := newFixture(&fakeClient{})
	task := f.seedTask("ACoAADirect")
	task.MessageType = domain.ActionDirectMessage

	outcome, err := f.worker.Process(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != worker.OutcomeFailed {
		t.Fatalf("expected failed, got %s", outcome)
	}
	if f.client.lookups != 0 || f.client.sends != 0 {
		t.Fatal("unsupported type must never reach resolver or provider")
	}

	item, _ := f.queue.GetByID(context.Background(), "q1")
	if item.ErrorMessage == nil || !strings.Contains(*item.ErrorMessage, "not supported") {
		t.Fatalf("expected an unsupported error string, got %+v", item.ErrorMessage)
	}
}

func TestProcess_DailyLimitReached(t *testing.T) {
	f := newFixture(&fakeClient{})
	task := f.seedTask("ACoAADirect")

	// Exhaust the seat's budget with already-confirmed sends today.
	now := time.Now().UTC()
	for i := 0; i < 20; i++ {
		sentAt := now
		f.queue.Seed(&domain.SendQueueItem{
			ID:        "prior-" + string(rune('a'+i)),
			AccountID: "acct-1",
			Status:    domain.ItemSent,
			SentAt:    &sentAt,
			CreatedAt: now,
		})
	}

	outcome, err := f.worker.Process(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != worker.OutcomeRateLimited {
		t.Fatalf("expected rate_limited, got %s", outcome)
	}
	if f.client.sends != 0 {
		t.Fatal("send must be refused at the inclusive boundary")
	}

	p, _ := f.prospects.GetByID(context.Background(), "p1")
	if p.Status != domain.ProspectRateLimitedCR {
		t.Fatalf("expected rate_limited_cr, got %s", p.Status)
	}
}

func TestProcess_AlreadyTerminalItemIsSkipped(t *testing.T) {
	f := newFixture(&fakeClient{})
	task := f.seedTask("ACoAADirect")
	_ = f.queue.MarkSent(context.Background(), "q1", time.Now().UTC())

	outcome, err := f.worker.Process(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != worker.OutcomeSkipped {
		t.Fatalf("expected skipped, got %s", outcome)
	}
	if f.client.sends != 0 {
		t.Fatal("redelivered terminal item must not send again")
	}
}

func TestProcess_ProviderFailureRecordedVerbatim(t *testing.T) {
	f := newFixture(&fakeClient{sendErr: errors.New("provider: Cannot invite this user")})
	task := f.seedTask("ACoAADirect")

	outcome, err := f.worker.Process(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != worker.OutcomeFailed {
		t.Fatalf("expected failed, got %s", outcome)
	}

	item, _ := f.queue.GetByID(context.Background(), "q1")
	if item.ErrorMessage == nil || *item.ErrorMessage != "provider: Cannot invite this user" {
		t.Fatalf("provider error not recorded verbatim: %+v", item.ErrorMessage)
	}
	p, _ := f.prospects.GetByID(context.Background(), "p1")
	if p.Status != domain.ProspectFailed {
		t.Fatalf("expected failed prospect, got %s", p.Status)
	}
}

func TestProcess_MissingItemAcksWithoutWork(t *testing.T) {
	f := newFixture(&fakeClient{})

	outcome, err := f.worker.Process(context.Background(), domain.Task{
		QueueID: "ghost", ProspectID: "p1", AccountID: "acct-1",
		MessageType: domain.ActionConnectionRequest,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != worker.OutcomeSkipped {
		t.Fatalf("expected skipped, got %s", outcome)
	}
}

func TestProcess_InfrastructureFaultSurfaces(t *testing.T) {
	f := newFixture(&fakeClient{})
	task := f.seedTask("ACoAADirect")
	f.queue.MarkSentErr = errors.New("connection refused")

	_, err := f.worker.Process(context.Background(), task)
	if err == nil {
		t.Fatal("a DB fault after the provider call must surface to the transport")
	}
}
