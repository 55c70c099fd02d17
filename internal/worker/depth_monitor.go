package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/outreachhq/sendpipe/internal/domain"
	"github.com/outreachhq/sendpipe/internal/repository"
)

// DepthMonitor periodically counts queue items per status and publishes
// the result through a callback (wired to the Prometheus gauges in main).
// The queue lives in the database, so depth is observed by polling rather
// than instrumented in-process.
type DepthMonitor struct {
	queue    repository.SendQueueRepository
	interval time.Duration
	publish  func(map[domain.ItemStatus]int)
	logger   *zap.Logger
}

func NewDepthMonitor(
	queue repository.SendQueueRepository,
	interval time.Duration,
	publish func(map[domain.ItemStatus]int),
	logger *zap.Logger,
) *DepthMonitor {
	return &DepthMonitor{queue: queue, interval: interval, publish: publish, logger: logger}
}

// Run ticks every interval and refreshes the depth snapshot.
// Stops cleanly when ctx is cancelled.
func (dm *DepthMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.interval)
	defer ticker.Stop()

	dm.logger.Info("queue depth monitor started", zap.Duration("interval", dm.interval))

	for {
		select {
		case <-ctx.Done():
			dm.logger.Info("queue depth monitor stopping")
			return
		case <-ticker.C:
			dm.poll(ctx)
		}
	}
}

func (dm *DepthMonitor) poll(ctx context.Context) {
	counts, err := dm.queue.CountByStatus(ctx)
	if err != nil {
		dm.logger.Error("depth poll error", zap.Error(err))
		return
	}
	dm.publish(counts)
}
