package ratelimit

import (
	"context"
	"time"

	"github.com/outreachhq/sendpipe/internal/domain"
	"github.com/outreachhq/sendpipe/internal/repository"
)

// WarnFraction is the share of the daily budget at which callers should
// surface a warning (e.g. 35 of 40).
const WarnFraction = 0.875

// Budget is an account's position against its daily send ceiling.
type Budget struct {
	Limit     int  `json:"limit"`
	Sent      int  `json:"sent"`
	Remaining int  `json:"remaining"`
	Warn      bool `json:"warn"`
}

// Exhausted reports whether the inclusive boundary has been reached:
// at exactly Limit sends, further enqueue/send is refused until the next
// UTC day rollover.
func (b Budget) Exhausted() bool { return b.Remaining <= 0 }

// DailyLimiter derives per-account budgets from the send queue, which is
// the system of record for confirmed sends. Consulted by the populator
// before insertion and, defensively, by the worker before a send. The two
// checks are temporally separated, so both run.
type DailyLimiter struct {
	queue repository.SendQueueRepository
	now   func() time.Time
}

func NewDailyLimiter(queue repository.SendQueueRepository) *DailyLimiter {
	return &DailyLimiter{queue: queue, now: time.Now}
}

// NewDailyLimiterAt is NewDailyLimiter with an injectable clock for tests.
func NewDailyLimiterAt(queue repository.SendQueueRepository, now func() time.Time) *DailyLimiter {
	return &DailyLimiter{queue: queue, now: now}
}

// Budget counts the account's confirmed sends since the start of the
// current UTC day and returns its remaining allowance.
func (l *DailyLimiter) Budget(ctx context.Context, account *domain.Account) (Budget, error) {
	sent, err := l.queue.CountSentSince(ctx, account.ID, DayStartUTC(l.now()))
	if err != nil {
		return Budget{}, err
	}

	b := Budget{
		Limit:     account.DailyLimit,
		Sent:      sent,
		Remaining: account.DailyLimit - sent,
	}
	if b.Remaining < 0 {
		b.Remaining = 0
	}
	b.Warn = float64(sent) >= WarnFraction*float64(account.DailyLimit)
	return b, nil
}

// DayStartUTC truncates t to midnight UTC, the rollover boundary for all
// daily budgets.
func DayStartUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
