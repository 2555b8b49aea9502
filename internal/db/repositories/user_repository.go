// user_repository.go implements UserRepository for federated identities.
// Users are created implicitly on first authenticated access and pruned by
// reconciliation once they own no scores.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/templates-hub/templates-hub/internal/db/models"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Ensure makes sure a user row exists for the given identity. Safe to call
// on every authenticated request; an existing row is left untouched.
func (r *UserRepository) Ensure(ctx context.Context, subject, issuer string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (subject, issuer)
		VALUES ($1, $2)
		ON CONFLICT (subject, issuer) DO NOTHING
	`, subject, issuer)
	if err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}

// Get retrieves a user by its composite identity, or (nil, nil) if absent.
func (r *UserRepository) Get(ctx context.Context, subject, issuer string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `
		SELECT subject, issuer, created_at, updated_at
		FROM users
		WHERE subject = $1 AND issuer = $2
	`, subject, issuer)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// PruneWithoutScoresTx deletes users that own no scores. Runs inside the
// reconciliation transaction after score cascades have been applied.
func (r *UserRepository) PruneWithoutScoresTx(ctx context.Context, q Querier) (int64, error) {
	result, err := q.ExecContext(ctx, `
		DELETE FROM users
		WHERE NOT EXISTS (
			SELECT 1 FROM scores s
			WHERE s.owner_subject = users.subject AND s.owner_issuer = users.issuer
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prune users without scores: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}
