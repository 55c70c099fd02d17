package ratelimit_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/outreachhq/sendpipe/internal/domain"
	"github.com/outreachhq/sendpipe/internal/ratelimit"
	"github.com/outreachhq/sendpipe/internal/repository"
)

func seedSent(repo *repository.MockSendQueueRepository, accountID string, n int, at time.Time) {
	for i := 0; i < n; i++ {
		sentAt := at
		repo.Seed(&domain.SendQueueItem{
			ID:         fmt.Sprintf("%s-item-%d-%d", accountID, at.Unix(), i),
			CampaignID: "c1",
			ProspectID: fmt.Sprintf("p%d", i),
			AccountID:  accountID,
			Status:     domain.ItemSent,
			SentAt:     &sentAt,
			CreatedAt:  at,
		})
	}
}

func TestDailyLimiter_Budget(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	account := &domain.Account{ID: "acct-1", DailyLimit: 40}

	t.Run("fresh day has full budget", func(t *testing.T) {
		repo := repository.NewMockSendQueueRepository()
		limiter := ratelimit.NewDailyLimiterAt(repo, func() time.Time { return now })

		b, err := limiter.Budget(context.Background(), account)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if b.Remaining != 40 || b.Warn || b.Exhausted() {
			t.Fatalf("unexpected budget: %+v", b)
		}
	})

	t.Run("warning threshold at 35 of 40", func(t *testing.T) {
		repo := repository.NewMockSendQueueRepository()
		seedSent(repo, account.ID, 35, now.Add(-time.Hour))
		limiter := ratelimit.NewDailyLimiterAt(repo, func() time.Time { return now })

		b, err := limiter.Budget(context.Background(), account)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !b.Warn {
			t.Fatalf("expected warning at %d/%d", b.Sent, b.Limit)
		}
		if b.Exhausted() {
			t.Fatal("should not be exhausted at 35/40")
		}
	})

	t.Run("no warning just below threshold", func(t *testing.T) {
		repo := repository.NewMockSendQueueRepository()
		seedSent(repo, account.ID, 34, now.Add(-time.Hour))
		limiter := ratelimit.NewDailyLimiterAt(repo, func() time.Time { return now })

		b, _ := limiter.Budget(context.Background(), account)
		if b.Warn {
			t.Fatalf("unexpected warning at %d/%d", b.Sent, b.Limit)
		}
	})

	t.Run("boundary is inclusive: exactly at limit blocks", func(t *testing.T) {
		repo := repository.NewMockSendQueueRepository()
		seedSent(repo, account.ID, 40, now.Add(-time.Hour))
		limiter := ratelimit.NewDailyLimiterAt(repo, func() time.Time { return now })

		b, _ := limiter.Budget(context.Background(), account)
		if b.Remaining != 0 {
			t.Fatalf("expected remaining=0, got %d", b.Remaining)
		}
		if !b.Exhausted() {
			t.Fatal("expected exhausted at exactly the limit")
		}
	})

	t.Run("remaining never negative past limit", func(t *testing.T) {
		repo := repository.NewMockSendQueueRepository()
		seedSent(repo, account.ID, 43, now.Add(-time.Hour))
		limiter := ratelimit.NewDailyLimiterAt(repo, func() time.Time { return now })

		b, _ := limiter.Budget(context.Background(), account)
		if b.Remaining != 0 || !b.Exhausted() {
			t.Fatalf("unexpected budget: %+v", b)
		}
	})

	t.Run("UTC day rollover resets the count", func(t *testing.T) {
		repo := repository.NewMockSendQueueRepository()
		// All sends happened yesterday.
		seedSent(repo, account.ID, 40, now.Add(-24*time.Hour))
		limiter := ratelimit.NewDailyLimiterAt(repo, func() time.Time { return now })

		b, _ := limiter.Budget(context.Background(), account)
		if b.Sent != 0 || b.Remaining != 40 {
			t.Fatalf("expected fresh budget after rollover, got %+v", b)
		}
	})

	t.Run("other accounts do not count", func(t *testing.T) {
		repo := repository.NewMockSendQueueRepository()
		seedSent(repo, "acct-other", 40, now.Add(-time.Hour))
		limiter := ratelimit.NewDailyLimiterAt(repo, func() time.Time { return now })

		b, _ := limiter.Budget(context.Background(), account)
		if b.Sent != 0 {
			t.Fatalf("expected sent=0, got %d", b.Sent)
		}
	})
}

func TestDayStartUTC(t *testing.T) {
	in := time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC)
	want := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if got := ratelimit.DayStartUTC(in); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
