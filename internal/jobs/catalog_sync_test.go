package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/templates-hub/templates-hub/internal/catalog"
	"github.com/templates-hub/templates-hub/internal/db/repositories"
	"github.com/templates-hub/templates-hub/internal/descriptors"
)

// signallingProvider reports each fetch on a channel, then fails the sync so
// no database expectations are needed.
type signallingProvider struct {
	fetches chan struct{}
}

func (p *signallingProvider) FetchSnapshot(context.Context) (map[string]descriptors.Descriptor, error) {
	p.fetches <- struct{}{}
	return nil, errors.New("stop here")
}

func newJobSyncer(t *testing.T, provider descriptors.SnapshotProvider) *catalog.Syncer {
	t.Helper()
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return catalog.NewSyncer(
		db,
		provider,
		repositories.NewTemplateRepository(db),
		repositories.NewTagRepository(db),
		repositories.NewUserRepository(sqlx.NewDb(db, "postgres")),
		nil,
	)
}

func TestCatalogSyncJob_RunsImmediately(t *testing.T) {
	provider := &signallingProvider{fetches: make(chan struct{}, 1)}
	job := NewCatalogSyncJob(newJobSyncer(t, provider), time.Hour)

	job.Start(context.Background())
	defer job.Stop()

	select {
	case <-provider.fetches:
	case <-time.After(2 * time.Second):
		t.Fatal("initial sync never ran")
	}
}

func TestCatalogSyncJob_StopTerminatesLoop(t *testing.T) {
	provider := &signallingProvider{fetches: make(chan struct{}, 1)}
	job := NewCatalogSyncJob(newJobSyncer(t, provider), time.Hour)

	job.Start(context.Background())
	<-provider.fetches

	done := make(chan struct{})
	go func() {
		job.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestNewCatalogSyncJob_ClampsShortIntervals(t *testing.T) {
	job := NewCatalogSyncJob(newJobSyncer(t, &signallingProvider{fetches: make(chan struct{}, 1)}), time.Second)

	if job.interval != time.Minute {
		t.Errorf("interval = %v, want 1m", job.interval)
	}
}
