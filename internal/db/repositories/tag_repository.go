// tag_repository.go implements TagRepository, the get-or-create tag store
// used by reconciliation. Tag names are deduplicated per canonical name via a
// pass-scoped cache supplied by the caller, and insert races against a
// concurrent pass are recovered by re-fetching the winning row.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// TagRepository handles database operations for tags
type TagRepository struct {
	db *sql.DB
}

// NewTagRepository creates a new tag repository
func NewTagRepository(db *sql.DB) *TagRepository {
	return &TagRepository{db: db}
}

// CanonicalTagName normalizes a tag label for storage and lookup.
func CanonicalTagName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Resolve returns the id of the tag with the given name, creating the row if
// it does not exist yet. The cache map is owned by one reconciliation pass:
// repeated references to the same canonical name, even across different
// templates, hit the cache without touching storage. The map must be
// discarded when the pass returns.
func (r *TagRepository) Resolve(ctx context.Context, q Querier, cache map[string]string, name string) (string, error) {
	name = CanonicalTagName(name)
	if name == "" {
		return "", fmt.Errorf("empty tag name")
	}

	if id, ok := cache[name]; ok {
		return id, nil
	}

	id, err := r.findByNameTx(ctx, q, name)
	if err != nil {
		return "", err
	}

	if id == "" {
		id, err = r.createTx(ctx, q, name)
		if isUniqueViolation(err) {
			// A concurrent pass inserted the same name between our SELECT
			// and INSERT; the row exists now, so fetch it instead of
			// surfacing the constraint error.
			id, err = r.findByNameTx(ctx, q, name)
			if err == nil && id == "" {
				err = fmt.Errorf("tag %q vanished after unique violation", name)
			}
		}
		if err != nil {
			return "", err
		}
	}

	cache[name] = id
	return id, nil
}

func (r *TagRepository) findByNameTx(ctx context.Context, q Querier, name string) (string, error) {
	var id string
	err := q.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = $1`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find tag: %w", err)
	}
	return id, nil
}

func (r *TagRepository) createTx(ctx context.Context, q Querier, name string) (string, error) {
	var id string
	err := q.QueryRowContext(ctx, `INSERT INTO tags (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to create tag: %w", err)
	}
	return id, nil
}

// PruneOrphansTx deletes tags that no template references any more, keeping
// the invariant that every stored tag is carried by at least one template.
func (r *TagRepository) PruneOrphansTx(ctx context.Context, q Querier) (int64, error) {
	result, err := q.ExecContext(ctx, `
		DELETE FROM tags
		WHERE NOT EXISTS (SELECT 1 FROM template_tags tt WHERE tt.tag_id = tags.id)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prune orphaned tags: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
