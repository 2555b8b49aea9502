// score_repository.go implements ScoreRepository, providing the rating
// upsert (one score per template and user) used by the rate endpoint.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/templates-hub/templates-hub/internal/apperr"
	"github.com/templates-hub/templates-hub/internal/db/models"
)

// Rating bounds accepted by Upsert. Values are inclusive.
const (
	MinScoreValue = 0.0
	MaxScoreValue = 5.0
)

// ScoreRepository handles database operations for scores
type ScoreRepository struct {
	db *sqlx.DB
}

// NewScoreRepository creates a new score repository
func NewScoreRepository(db *sqlx.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

// Upsert records one user's rating of a template. A second rating by the
// same user overwrites the first in place rather than adding a row.
// Returns created=true when this was the user's first rating of the
// template. The value is validated before any statement is issued.
func (r *ScoreRepository) Upsert(ctx context.Context, templateID, subject, issuer string, value float64) (bool, error) {
	if value < MinScoreValue || value > MaxScoreValue {
		return false, apperr.Validation("score %.2f out of range [%.0f, %.0f]", value, MinScoreValue, MaxScoreValue)
	}

	var scoreID string
	err := r.db.GetContext(ctx, &scoreID, `
		SELECT id FROM scores
		WHERE template_id = $1 AND owner_subject = $2 AND owner_issuer = $3
	`, templateID, subject, issuer)

	switch {
	case err == nil:
		if _, err := r.db.ExecContext(ctx, `
			UPDATE scores SET value = $1, updated_at = NOW() WHERE id = $2
		`, value, scoreID); err != nil {
			return false, fmt.Errorf("failed to update score: %w", err)
		}
		return false, nil

	case err == sql.ErrNoRows:
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO scores (template_id, value, owner_subject, owner_issuer)
			VALUES ($1, $2, $3, $4)
		`, templateID, value, subject, issuer)
		if isUniqueViolation(err) {
			// Concurrent first rating by the same user: the row exists now,
			// so apply this submission as an update (last write wins).
			if _, err := r.db.ExecContext(ctx, `
				UPDATE scores SET value = $1, updated_at = NOW()
				WHERE template_id = $2 AND owner_subject = $3 AND owner_issuer = $4
			`, value, templateID, subject, issuer); err != nil {
				return false, fmt.Errorf("failed to update score after insert race: %w", err)
			}
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("failed to create score: %w", err)
		}
		return true, nil

	default:
		return false, fmt.Errorf("failed to look up score: %w", err)
	}
}

// ListByTemplate returns all scores recorded for a template, newest first.
func (r *ScoreRepository) ListByTemplate(ctx context.Context, templateID string) ([]*models.Score, error) {
	query := `
		SELECT id, template_id, value, owner_subject, owner_issuer, created_at, updated_at
		FROM scores
		WHERE template_id = $1
		ORDER BY updated_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}
	defer rows.Close()

	var scores []*models.Score
	for rows.Next() {
		s := &models.Score{}
		err := rows.Scan(&s.ID, &s.TemplateID, &s.Value, &s.OwnerSubject, &s.OwnerIssuer, &s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores = append(scores, s)
	}

	return scores, rows.Err()
}
