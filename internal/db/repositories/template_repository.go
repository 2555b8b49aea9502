// template_repository.go implements TemplateRepository, providing the catalog
// read queries (filtered, tag-intersected, keyword-matched, multi-key-sorted
// listings with aggregate scores) and the write primitives used by
// reconciliation.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/templates-hub/templates-hub/internal/apperr"
	"github.com/templates-hub/templates-hub/internal/db/models"
)

// ListFilter holds the query axes for a catalog listing.
type ListFilter struct {
	Language string
	Tags     []string
	Keywords []string
	SortBy   string
}

// sortFields maps the allowed sort_by field names to their SQL expressions.
// "score" refers to the AVG(scores.value) select alias.
var sortFields = map[string]string{
	"id":       "t.id",
	"score":    "score",
	"title":    "t.title",
	"language": "t.language",
}

type sortKey struct {
	column string
	desc   bool
}

// parseSortBy validates a comma-separated list of signed sort tokens
// (e.g. "-score,+title") and returns the resolved sort keys. An empty
// expression defaults to "-score" (best-rated first). Any
// unrecognized sign or field fails with a Validation error before a query
// is built.
func parseSortBy(sortBy string) ([]sortKey, error) {
	if sortBy == "" {
		sortBy = "-score"
	}

	var keys []sortKey
	for _, token := range strings.Split(sortBy, ",") {
		if len(token) < 2 {
			return nil, apperr.Validation("invalid sort token %q", token)
		}
		sign, field := token[0], token[1:]
		if sign != '+' && sign != '-' {
			return nil, apperr.Validation("invalid sort option %q", string(sign))
		}
		column, ok := sortFields[field]
		if !ok {
			return nil, apperr.Validation("invalid sort field %q", field)
		}
		keys = append(keys, sortKey{column: column, desc: sign == '-'})
	}
	return keys, nil
}

// orderByClause renders the ORDER BY fragment for the given sort keys.
// NULLS LAST is applied to every key so unrated templates (NULL score)
// always sort after rated ones regardless of direction.
func orderByClause(keys []sortKey) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		direction := "ASC"
		if k.desc {
			direction = "DESC"
		}
		parts[i] = fmt.Sprintf("%s %s NULLS LAST", k.column, direction)
	}
	return "ORDER BY " + strings.Join(parts, ", ")
}

const templateSelectColumns = `t.id, t.source_file, t.title, t.summary, t.language, t.picture,
	       t.git_link, t.git_checkout, t.created_at, t.updated_at, AVG(s.value) AS score`

// TemplateRepository handles database operations for templates
type TemplateRepository struct {
	db *sql.DB
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// List returns templates matching the filter, each with its tag set and
// aggregate score. Scores are outer-joined so unrated templates appear with
// a nil score. The tag filter uses superset semantics: a template must carry
// every requested tag.
func (r *TemplateRepository) List(ctx context.Context, filter ListFilter) ([]*models.Template, error) {
	sortKeys, err := parseSortBy(filter.SortBy)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM templates t
		LEFT JOIN scores s ON s.template_id = t.id`, templateSelectColumns)

	var whereClauses []string
	var args []interface{}
	argCount := 0

	if len(filter.Tags) > 0 {
		query += `
		JOIN template_tags tt ON tt.template_id = t.id
		JOIN tags g ON g.id = tt.tag_id`
		argCount++
		whereClauses = append(whereClauses, fmt.Sprintf("g.name = ANY($%d)", argCount))
		args = append(args, pq.Array(filter.Tags))
	}

	if filter.Language != "" {
		argCount++
		whereClauses = append(whereClauses, fmt.Sprintf("t.language = $%d", argCount))
		args = append(args, filter.Language)
	}

	for _, keyword := range filter.Keywords {
		argCount++
		whereClauses = append(whereClauses, fmt.Sprintf("(t.title ILIKE $%d OR t.summary ILIKE $%d)", argCount, argCount))
		args = append(args, "%"+keyword+"%")
	}

	if len(whereClauses) > 0 {
		query += "\n\t\tWHERE " + strings.Join(whereClauses, " AND ")
	}

	query += "\n\t\tGROUP BY t.id"

	// COUNT(DISTINCT ...) rather than COUNT(*): the scores outer join can
	// multiply the tag rows per template, but the set of distinct matched
	// tags is unaffected.
	if len(filter.Tags) > 0 {
		argCount++
		query += fmt.Sprintf("\n\t\tHAVING COUNT(DISTINCT g.id) = $%d", argCount)
		args = append(args, len(filter.Tags))
	}

	query += "\n\t\t" + orderByClause(sortKeys)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []*models.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}

	if err := r.loadTags(ctx, templates); err != nil {
		return nil, err
	}

	return templates, nil
}

// GetByID retrieves a single template with its tags and aggregate score.
// A malformed id fails with a Validation error; an unknown id returns
// (nil, nil).
func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*models.Template, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.Validation("invalid template id %q", id)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM templates t
		LEFT JOIN scores s ON s.template_id = t.id
		WHERE t.id = $1
		GROUP BY t.id`, templateSelectColumns)

	row := r.db.QueryRowContext(ctx, query, id)
	t, err := scanTemplate(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	if err := r.loadTags(ctx, []*models.Template{t}); err != nil {
		return nil, err
	}

	return t, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(s scanner) (*models.Template, error) {
	t := &models.Template{Tags: []string{}}
	var score sql.NullFloat64
	err := s.Scan(
		&t.ID,
		&t.SourceFile,
		&t.Title,
		&t.Summary,
		&t.Language,
		&t.Picture,
		&t.GitLink,
		&t.GitCheckout,
		&t.CreatedAt,
		&t.UpdatedAt,
		&score,
	)
	if err != nil {
		return nil, err
	}
	if score.Valid {
		t.Score = &score.Float64
	}
	return t, nil
}

// loadTags fills in the Tags slice for each template in one query.
func (r *TemplateRepository) loadTags(ctx context.Context, templates []*models.Template) error {
	if len(templates) == 0 {
		return nil
	}

	byID := make(map[string]*models.Template, len(templates))
	ids := make([]string, len(templates))
	for i, t := range templates {
		byID[t.ID] = t
		ids[i] = t.ID
	}

	query := `
		SELECT tt.template_id, g.name
		FROM template_tags tt
		JOIN tags g ON g.id = tt.tag_id
		WHERE tt.template_id = ANY($1)
		ORDER BY g.name
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load template tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var templateID, name string
		if err := rows.Scan(&templateID, &name); err != nil {
			return fmt.Errorf("failed to scan template tag: %w", err)
		}
		if t, ok := byID[templateID]; ok {
			t.Tags = append(t.Tags, name)
		}
	}

	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating template tags: %w", err)
	}

	return nil
}

// Exists reports whether a template row with the given id is present.
func (r *TemplateRepository) Exists(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, apperr.Validation("invalid template id %q", id)
	}

	var found bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM templates WHERE id = $1)`, id).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("failed to check template existence: %w", err)
	}
	return found, nil
}

// SourceFilesTx returns a mapping of source_file to template id for every
// stored template. Reconciliation diffs this set against the snapshot keys.
func (r *TemplateRepository) SourceFilesTx(ctx context.Context, q Querier) (map[string]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT source_file, id FROM templates`)
	if err != nil {
		return nil, fmt.Errorf("failed to list template source files: %w", err)
	}
	defer rows.Close()

	files := make(map[string]string)
	for rows.Next() {
		var sourceFile, id string
		if err := rows.Scan(&sourceFile, &id); err != nil {
			return nil, fmt.Errorf("failed to scan template source file: %w", err)
		}
		files[sourceFile] = id
	}

	return files, rows.Err()
}

// CreateTx inserts a new template record within the reconciliation
// transaction.
func (r *TemplateRepository) CreateTx(ctx context.Context, q Querier, template *models.Template) error {
	query := `
		INSERT INTO templates (source_file, title, summary, language, picture, git_link, git_checkout)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := q.QueryRowContext(ctx, query,
		template.SourceFile,
		template.Title,
		template.Summary,
		template.Language,
		template.Picture,
		template.GitLink,
		template.GitCheckout,
	).Scan(&template.ID, &template.CreatedAt, &template.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}

	return nil
}

// UpdateTx overwrites a template's scalar fields from its descriptor.
// Scores are untouched; the tag set is replaced separately.
func (r *TemplateRepository) UpdateTx(ctx context.Context, q Querier, template *models.Template) error {
	query := `
		UPDATE templates
		SET title = $1, summary = $2, language = $3, picture = $4, git_link = $5, git_checkout = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING updated_at
	`

	err := q.QueryRowContext(ctx, query,
		template.Title,
		template.Summary,
		template.Language,
		template.Picture,
		template.GitLink,
		template.GitCheckout,
		template.ID,
	).Scan(&template.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}

	return nil
}

// DeleteTx removes a template together with its scores and tag
// associations. The dependents are deleted explicitly and in order rather
// than relying on the schema's FK cascades.
func (r *TemplateRepository) DeleteTx(ctx context.Context, q Querier, id string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM scores WHERE template_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete template scores: %w", err)
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM template_tags WHERE template_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete template tag associations: %w", err)
	}

	result, err := q.ExecContext(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("template not found")
	}

	return nil
}

// ReplaceTagsTx replaces the template's tag association set with the given
// tag ids.
func (r *TemplateRepository) ReplaceTagsTx(ctx context.Context, q Querier, templateID string, tagIDs []string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM template_tags WHERE template_id = $1`, templateID); err != nil {
		return fmt.Errorf("failed to clear template tag associations: %w", err)
	}

	for _, tagID := range tagIDs {
		_, err := q.ExecContext(ctx,
			`INSERT INTO template_tags (template_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			templateID, tagID,
		)
		if err != nil {
			return fmt.Errorf("failed to link template tag: %w", err)
		}
	}

	return nil
}
