// Package catalog implements reconciliation of the stored template catalog
// against the descriptor repository. A sync fetches the full descriptor
// snapshot, diffs it against the database by source file, and applies the
// resulting creates, updates and deletes in a single transaction so readers
// never observe a half-applied catalog.
//
// Syncs are idempotent - re-running against an unchanged snapshot is a no-op.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/templates-hub/templates-hub/internal/apperr"
	"github.com/templates-hub/templates-hub/internal/db/models"
	"github.com/templates-hub/templates-hub/internal/db/repositories"
	"github.com/templates-hub/templates-hub/internal/descriptors"
	"github.com/templates-hub/templates-hub/internal/safego"
	"github.com/templates-hub/templates-hub/internal/telemetry"
)

// advisoryLockKey serializes concurrent syncs across processes. Any two
// instances pointed at the same database queue on this transaction-scoped
// lock; the in-process single-flight guard rejects a second sync before it
// gets that far.
const advisoryLockKey int64 = 0x7473_6862 // "tshb"

// SyncReport summarizes one reconciliation run.
type SyncReport struct {
	Created     int           `json:"created"`
	Updated     int           `json:"updated"`
	Deleted     int           `json:"deleted"`
	TagsPruned  int           `json:"tagsPruned"`
	UsersPruned int           `json:"usersPruned"`
	Duration    time.Duration `json:"-"`
	StartedAt   time.Time     `json:"startedAt"`
}

// Changed reports whether the run modified the catalog at all.
func (r *SyncReport) Changed() bool {
	return r.Created > 0 || r.Updated > 0 || r.Deleted > 0
}

// Notifier receives the report of a completed sync. Implementations must
// tolerate being called from a background goroutine.
type Notifier interface {
	NotifySyncReport(ctx context.Context, report *SyncReport) error
}

// Syncer reconciles the templates tables with the descriptor repository.
type Syncer struct {
	db           *sql.DB
	provider     descriptors.SnapshotProvider
	templateRepo *repositories.TemplateRepository
	tagRepo      *repositories.TagRepository
	userRepo     *repositories.UserRepository
	notifier     Notifier

	mu      sync.Mutex
	running bool
}

// NewSyncer creates a syncer. notifier may be nil when sync reports are not
// delivered anywhere.
func NewSyncer(
	db *sql.DB,
	provider descriptors.SnapshotProvider,
	templateRepo *repositories.TemplateRepository,
	tagRepo *repositories.TagRepository,
	userRepo *repositories.UserRepository,
	notifier Notifier,
) *Syncer {
	return &Syncer{
		db:           db,
		provider:     provider,
		templateRepo: templateRepo,
		tagRepo:      tagRepo,
		userRepo:     userRepo,
		notifier:     notifier,
	}
}

// Sync runs one full reconciliation pass. Only one sync runs at a time per
// process; a second call while one is in flight returns a conflict error.
func (s *Syncer) Sync(ctx context.Context) (*SyncReport, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, apperr.Conflict("catalog sync already in progress")
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	report, err := s.sync(ctx)
	if err != nil {
		telemetry.CatalogSyncErrorsTotal.Inc()
		return nil, err
	}

	telemetry.CatalogSyncDuration.Observe(report.Duration.Seconds())
	telemetry.CatalogSyncTemplates.WithLabelValues("created").Add(float64(report.Created))
	telemetry.CatalogSyncTemplates.WithLabelValues("updated").Add(float64(report.Updated))
	telemetry.CatalogSyncTemplates.WithLabelValues("deleted").Add(float64(report.Deleted))

	// Report delivery is fire-and-forget; a slow SMTP server must not hold
	// up the sync caller.
	if s.notifier != nil && report.Changed() {
		safego.Go(func() {
			if err := s.notifier.NotifySyncReport(context.Background(), report); err != nil {
				slog.Warn("failed to deliver sync report", "error", err)
			}
		})
	}

	return report, nil
}

func (s *Syncer) sync(ctx context.Context) (*SyncReport, error) {
	report := &SyncReport{StartedAt: time.Now()}

	// Fetch the snapshot before opening the transaction so a slow or failing
	// repository never holds database locks.
	snapshot, err := s.provider.FetchSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch descriptor snapshot: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin sync transaction: %w", err)
	}
	defer tx.Rollback()

	// Serialize against syncs from other processes. The lock is released
	// automatically on commit or rollback.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, advisoryLockKey); err != nil {
		return nil, fmt.Errorf("failed to acquire sync lock: %w", err)
	}

	existing, err := s.templateRepo.SourceFilesTx(ctx, tx)
	if err != nil {
		return nil, err
	}

	toDelete, toCreate, toUpdate := diff(existing, snapshot)

	// Shared per-run cache so each distinct tag name is resolved once even
	// when it appears in many descriptors.
	tagCache := make(map[string]string)

	for _, sourceFile := range toDelete {
		if err := s.templateRepo.DeleteTx(ctx, tx, existing[sourceFile]); err != nil {
			return nil, fmt.Errorf("failed to delete template %s: %w", sourceFile, err)
		}
		report.Deleted++
	}

	for _, sourceFile := range toCreate {
		desc := snapshot[sourceFile]
		template := descriptorToTemplate(sourceFile, desc)
		if err := s.templateRepo.CreateTx(ctx, tx, template); err != nil {
			return nil, fmt.Errorf("failed to create template %s: %w", sourceFile, err)
		}
		if err := s.applyTags(ctx, tx, tagCache, template.ID, desc.Tags); err != nil {
			return nil, fmt.Errorf("failed to set tags for template %s: %w", sourceFile, err)
		}
		report.Created++
	}

	for _, sourceFile := range toUpdate {
		desc := snapshot[sourceFile]
		template := descriptorToTemplate(sourceFile, desc)
		template.ID = existing[sourceFile]
		if err := s.templateRepo.UpdateTx(ctx, tx, template); err != nil {
			return nil, fmt.Errorf("failed to update template %s: %w", sourceFile, err)
		}
		if err := s.applyTags(ctx, tx, tagCache, template.ID, desc.Tags); err != nil {
			return nil, fmt.Errorf("failed to set tags for template %s: %w", sourceFile, err)
		}
		report.Updated++
	}

	tagsPruned, err := s.tagRepo.PruneOrphansTx(ctx, tx)
	if err != nil {
		return nil, err
	}
	report.TagsPruned = int(tagsPruned)

	usersPruned, err := s.userRepo.PruneWithoutScoresTx(ctx, tx)
	if err != nil {
		return nil, err
	}
	report.UsersPruned = int(usersPruned)

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit sync transaction: %w", err)
	}

	report.Duration = time.Since(report.StartedAt)
	slog.Info("catalog sync completed",
		"created", report.Created,
		"updated", report.Updated,
		"deleted", report.Deleted,
		"tags_pruned", report.TagsPruned,
		"users_pruned", report.UsersPruned,
		"duration", report.Duration,
	)

	return report, nil
}

// applyTags resolves the descriptor's tag names to ids and replaces the
// template's association set. Blank tags are skipped; duplicates within one
// descriptor collapse to a single association.
func (s *Syncer) applyTags(ctx context.Context, tx *sql.Tx, cache map[string]string, templateID string, tags []string) error {
	tagIDs := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, name := range tags {
		canonical := repositories.CanonicalTagName(name)
		if canonical == "" || seen[canonical] {
			continue
		}
		seen[canonical] = true

		id, err := s.tagRepo.Resolve(ctx, tx, cache, canonical)
		if err != nil {
			return err
		}
		tagIDs = append(tagIDs, id)
	}

	return s.templateRepo.ReplaceTagsTx(ctx, tx, templateID, tagIDs)
}

// diff splits the stored and snapshot source-file sets into the delete,
// create and update groups. Each group is sorted so a run applies changes in
// a stable order.
func diff(existing map[string]string, snapshot map[string]descriptors.Descriptor) (toDelete, toCreate, toUpdate []string) {
	for sourceFile := range existing {
		if _, ok := snapshot[sourceFile]; !ok {
			toDelete = append(toDelete, sourceFile)
		} else {
			toUpdate = append(toUpdate, sourceFile)
		}
	}
	for sourceFile := range snapshot {
		if _, ok := existing[sourceFile]; !ok {
			toCreate = append(toCreate, sourceFile)
		}
	}

	sort.Strings(toDelete)
	sort.Strings(toCreate)
	sort.Strings(toUpdate)
	return toDelete, toCreate, toUpdate
}

func descriptorToTemplate(sourceFile string, desc descriptors.Descriptor) *models.Template {
	return &models.Template{
		SourceFile:  sourceFile,
		Title:       desc.Title,
		Summary:     desc.Summary,
		Language:    desc.Language,
		Picture:     desc.Picture,
		GitLink:     desc.GitLink,
		GitCheckout: desc.GitCheckout,
	}
}
