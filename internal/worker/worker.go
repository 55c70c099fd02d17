package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/outreachhq/sendpipe/internal/domain"
	"github.com/outreachhq/sendpipe/internal/pacing"
	"github.com/outreachhq/sendpipe/internal/provider"
	"github.com/outreachhq/sendpipe/internal/ratelimit"
	"github.com/outreachhq/sendpipe/internal/repository"
	"github.com/outreachhq/sendpipe/internal/resolver"
)

// Outcome is the business result of processing one task.
type Outcome string

const (
	OutcomeSent        Outcome = "sent"
	OutcomeFailed      Outcome = "failed"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeSkipped     Outcome = "skipped"
)

// Worker processes one delivered queue task per invocation: resolve the
// target identity, apply the pacing delay, call the provider, and persist
// the item and prospect transitions. It is stateless; the push transport
// invokes it once per message and the database is the only shared state.
//
// Every business failure is converted into a persisted failed state and an
// acknowledgment. Process returns a non-nil error only for infrastructure
// faults (DB unreachable), which is the one path that may surface to the
// transport as unacknowledged and trigger redelivery.
type Worker struct {
	queue     repository.SendQueueRepository
	prospects repository.ProspectRepository
	accounts  repository.AccountRepository
	resolver  *resolver.Resolver
	client    provider.Client
	limiter   *ratelimit.DailyLimiter
	delayer   *pacing.Delayer
	logger    *zap.Logger

	// Hooks for metrics, injected by main so the worker stays metrics-agnostic.
	onSent   func(action domain.ActionType, latency time.Duration)
	onFailed func(action domain.ActionType, outcome Outcome)
}

// New constructs a worker. onSent and onFailed are optional (nil = no-op).
func New(
	queue repository.SendQueueRepository,
	prospects repository.ProspectRepository,
	accounts repository.AccountRepository,
	res *resolver.Resolver,
	client provider.Client,
	limiter *ratelimit.DailyLimiter,
	delayer *pacing.Delayer,
	logger *zap.Logger,
	onSent func(domain.ActionType, time.Duration),
	onFailed func(domain.ActionType, Outcome),
) *Worker {
	if onSent == nil {
		onSent = func(domain.ActionType, time.Duration) {}
	}
	if onFailed == nil {
		onFailed = func(domain.ActionType, Outcome) {}
	}
	return &Worker{
		queue: queue, prospects: prospects, accounts: accounts,
		resolver: res, client: client, limiter: limiter, delayer: delayer,
		logger: logger, onSent: onSent, onFailed: onFailed,
	}
}

// Process runs the full state machine for one delivered task.
func (w *Worker) Process(ctx context.Context, task domain.Task) (Outcome, error) {
	start := time.Now()
	log := w.logger.With(
		zap.String("queue_id", task.QueueID),
		zap.String("prospect_id", task.ProspectID),
		zap.String("message_type", string(task.MessageType)),
	)

	if err := task.Validate(); err != nil {
		// Malformed payload: nothing durable to record against. Ack so the
		// transport does not redeliver garbage forever.
		log.Warn("dropping invalid task", zap.Error(err))
		return OutcomeSkipped, nil
	}

	item, err := w.queue.GetByID(ctx, task.QueueID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("queue item vanished before processing")
			return OutcomeSkipped, nil
		}
		return "", fmt.Errorf("fetch queue item: %w", err)
	}

	// Redelivery after a crash that happened post-commit lands here: the
	// terminal state is already recorded, so ack without a second send.
	if item.Status != domain.ItemPending {
		log.Info("queue item already terminal, skipping",
			zap.String("status", string(item.Status)))
		return OutcomeSkipped, nil
	}

	// Only connection requests are sendable. Anything else is a caller or
	// configuration bug and fails fast, before resolution or any provider call.
	if task.MessageType != domain.ActionConnectionRequest {
		msg := fmt.Sprintf("%v: %q", domain.ErrUnsupportedAction, task.MessageType)
		if err := w.recordFailure(ctx, item, domain.ProspectFailed, msg); err != nil {
			return "", err
		}
		w.onFailed(task.MessageType, OutcomeFailed)
		log.Warn("unsupported message type", zap.String("message_type", string(task.MessageType)))
		return OutcomeFailed, nil
	}

	account, err := w.accounts.GetByID(ctx, item.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			msg := fmt.Sprintf("sending account %s not found", item.AccountID)
			if err := w.recordFailure(ctx, item, domain.ProspectFailed, msg); err != nil {
				return "", err
			}
			w.onFailed(task.MessageType, OutcomeFailed)
			return OutcomeFailed, nil
		}
		return "", fmt.Errorf("fetch account: %w", err)
	}

	// Defensive budget check. Enqueue already ran one, but enqueue and
	// execution are temporally separated, so the ceiling may have been
	// reached in between.
	budget, err := w.limiter.Budget(ctx, account)
	if err != nil {
		return "", fmt.Errorf("rate budget: %w", err)
	}
	if budget.Exhausted() {
		if err := w.recordFailure(ctx, item, domain.ProspectRateLimitedCR, domain.ErrRateLimited.Error()); err != nil {
			return "", err
		}
		w.onFailed(task.MessageType, OutcomeRateLimited)
		log.Warn("daily limit reached before send",
			zap.Int("limit", budget.Limit), zap.Int("sent", budget.Sent))
		return OutcomeRateLimited, nil
	}
	if budget.Warn {
		log.Warn("account approaching daily limit",
			zap.Int("limit", budget.Limit), zap.Int("sent", budget.Sent))
	}

	// Resolution must precede the pacing delay and the send: the invite
	// API takes the provider's internal id, not a profile URL.
	reference := task.LinkedInUserID
	if reference == "" {
		reference = item.TargetReference
	}
	providerID, profile, err := w.resolver.Resolve(ctx, reference, account.ProviderAccountID)
	if err != nil {
		if err := w.recordFailure(ctx, item, domain.ProspectFailed, err.Error()); err != nil {
			return "", err
		}
		w.onFailed(task.MessageType, OutcomeFailed)
		log.Warn("identity resolution failed", zap.Error(err))
		return OutcomeFailed, nil
	}
	if profile != nil {
		// Cache the resolved id so the next attempt takes the fast path.
		if err := w.prospects.SetProviderID(ctx, item.ProspectID, providerID); err != nil {
			log.Warn("failed to cache provider id", zap.Error(err))
		}
	}

	// Anti-detection pacing. The full delay elapses before the provider
	// call no matter the system load; cancellation here means shutdown and
	// the unsent task is safe to redeliver.
	if err := w.delayer.Wait(ctx); err != nil {
		return "", fmt.Errorf("pacing interrupted: %w", err)
	}

	resp, err := w.client.SendInvitation(ctx, provider.InviteRequest{
		AccountID:  account.ProviderAccountID,
		ProviderID: providerID,
		Message:    item.Message,
	})
	if err != nil {
		// Provider error text is recorded verbatim for operator diagnosis.
		if err := w.recordFailure(ctx, item, domain.ProspectFailed, err.Error()); err != nil {
			return "", err
		}
		w.onFailed(task.MessageType, OutcomeFailed)
		log.Warn("provider send failed", zap.Error(err))
		return OutcomeFailed, nil
	}

	now := time.Now().UTC()
	if err := w.queue.MarkSent(ctx, item.ID, now); err != nil {
		return "", fmt.Errorf("mark item sent: %w", err)
	}
	if err := w.prospects.MarkContacted(ctx, item.ProspectID, domain.ProspectConnectionRequested, now); err != nil {
		return "", fmt.Errorf("mark prospect contacted: %w", err)
	}

	elapsed := time.Since(start)
	w.onSent(task.MessageType, elapsed)
	log.Info("connection request sent",
		zap.String("invitation_id", resp.InvitationID),
		zap.Duration("latency", elapsed))
	return OutcomeSent, nil
}

// recordFailure persists the terminal failed state on both the item and
// its prospect. There is no retry loop here: re-attempts happen only via
// the explicit operator reset path.
func (w *Worker) recordFailure(ctx context.Context, item *domain.SendQueueItem, status domain.ProspectStatus, msg string) error {
	if err := w.queue.MarkFailed(ctx, item.ID, msg); err != nil {
		return fmt.Errorf("mark item failed: %w", err)
	}
	if err := w.prospects.UpdateStatus(ctx, item.ProspectID, status, &msg); err != nil {
		return fmt.Errorf("mark prospect failed: %w", err)
	}
	return nil
}
