// Package jobs contains background workers that run on a schedule.
// The catalog sync job periodically reconciles the stored templates against
// the descriptor repository. Jobs are designed to be idempotent - re-running
// after a crash produces the same result as a clean run.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/templates-hub/templates-hub/internal/apperr"
	"github.com/templates-hub/templates-hub/internal/catalog"
)

// CatalogSyncJob drives periodic catalog reconciliation.
type CatalogSyncJob struct {
	syncer   *catalog.Syncer
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewCatalogSyncJob creates the job. interval controls how often the catalog
// is reconciled; values below one minute are clamped to one minute.
func NewCatalogSyncJob(syncer *catalog.Syncer, interval time.Duration) *CatalogSyncJob {
	if interval < time.Minute {
		interval = time.Minute
	}
	return &CatalogSyncJob{
		syncer:   syncer,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sync loop. An initial sync runs immediately so a
// fresh deployment serves a populated catalog without waiting a full
// interval. The loop exits when ctx is cancelled or Stop is called.
func (j *CatalogSyncJob) Start(ctx context.Context) {
	slog.Info("catalog sync job started", "interval", j.interval)

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		j.run(ctx)

		for {
			select {
			case <-ticker.C:
				j.run(ctx)
			case <-j.stopCh:
				slog.Info("catalog sync job stopped")
				return
			case <-ctx.Done():
				slog.Info("catalog sync job context cancelled")
				return
			}
		}
	}()
}

// Stop signals the loop to exit and waits for an in-flight run to finish.
func (j *CatalogSyncJob) Stop() {
	close(j.stopCh)
	j.wg.Wait()
}

func (j *CatalogSyncJob) run(ctx context.Context) {
	if _, err := j.syncer.Sync(ctx); err != nil {
		// A manually triggered sync may already hold the single-flight slot;
		// the next tick will catch up.
		if apperr.IsKind(err, apperr.KindConflict) {
			slog.Debug("scheduled sync skipped, another sync in progress")
			return
		}
		slog.Error("scheduled catalog sync failed", "error", err)
	}
}
