package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tidyshare/tidyshare-api/internal/models"
)

// SuggestionRepository persists cleanup suggestions and their decisions.
type SuggestionRepository struct {
	db *sqlx.DB
}

// NewSuggestionRepository constructs the repository.
func NewSuggestionRepository(db *sqlx.DB) *SuggestionRepository {
	return &SuggestionRepository{db: db}
}

const suggestionColumns = `id, scan_id, file_id, category, severity, title, description, current_value, suggested_value, confidence, source, user_decision, decided_at, created_at`

// InsertBatch bulk-inserts deduplicated suggestion drafts.
func (r *SuggestionRepository) InsertBatch(ctx context.Context, suggestions []models.Suggestion) error {
	if len(suggestions) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range suggestions {
		if suggestions[i].ID == "" {
			suggestions[i].ID = uuid.NewString()
		}
		if suggestions[i].UserDecision == "" {
			suggestions[i].UserDecision = models.DecisionPending
		}
		if suggestions[i].CreatedAt.IsZero() {
			suggestions[i].CreatedAt = now
		}
	}
	const query = `INSERT INTO suggestions
	(` + suggestionColumns + `)
	VALUES (:id, :scan_id, :file_id, :category, :severity, :title, :description, :current_value, :suggested_value, :confidence, :source, :user_decision, :decided_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, suggestions); err != nil {
		return fmt.Errorf("insert suggestions: %w", err)
	}
	return nil
}

// ListByScan returns a scan's suggestions applying the optional filters.
func (r *SuggestionRepository) ListByScan(ctx context.Context, scanID string, filter models.SuggestionFilter) ([]models.Suggestion, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + suggestionColumns + ` FROM suggestions WHERE scan_id = $1`)
	args := []interface{}{scanID}

	if filter.Category != "" {
		args = append(args, filter.Category)
		builder.WriteString(fmt.Sprintf(" AND category = $%d", len(args)))
	}
	if filter.Severity != "" {
		args = append(args, filter.Severity)
		builder.WriteString(fmt.Sprintf(" AND severity = $%d", len(args)))
	}
	if filter.Decision != "" {
		args = append(args, filter.Decision)
		builder.WriteString(fmt.Sprintf(" AND user_decision = $%d", len(args)))
	}
	if filter.Source != "" {
		args = append(args, filter.Source)
		builder.WriteString(fmt.Sprintf(" AND source = $%d", len(args)))
	}

	builder.WriteString(" ORDER BY confidence DESC, created_at ASC, id ASC")

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var suggestions []models.Suggestion
	if err := r.db.SelectContext(ctx, &suggestions, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	return suggestions, nil
}

// GetForUser retrieves one suggestion scoped to the owning user through its
// scan.
func (r *SuggestionRepository) GetForUser(ctx context.Context, id, userID string) (*models.Suggestion, error) {
	query := `SELECT s.id, s.scan_id, s.file_id, s.category, s.severity, s.title, s.description, s.current_value, s.suggested_value, s.confidence, s.source, s.user_decision, s.decided_at, s.created_at
	FROM suggestions s
	JOIN scans sc ON sc.id = s.scan_id
	WHERE s.id = $1 AND sc.user_id = $2`
	var suggestion models.Suggestion
	if err := r.db.GetContext(ctx, &suggestion, query, id, userID); err != nil {
		return nil, err
	}
	return &suggestion, nil
}

// UpdateDecision records the user's verdict. Executed decisions are final.
func (r *SuggestionRepository) UpdateDecision(ctx context.Context, id string, decision models.UserDecision, decidedAt time.Time) error {
	const query = `UPDATE suggestions SET user_decision = $2, decided_at = $3
	WHERE id = $1 AND user_decision <> 'executed'`
	res, err := r.db.ExecContext(ctx, query, id, decision, decidedAt)
	if err != nil {
		return fmt.Errorf("update suggestion decision: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check decision rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CategoryCount pairs a category with its suggestion count.
type CategoryCount struct {
	Category string `db:"category"`
	Count    int    `db:"count"`
}

// CategoryBreakdown aggregates a scan's suggestions per category.
func (r *SuggestionRepository) CategoryBreakdown(ctx context.Context, scanID string) ([]CategoryCount, error) {
	const query = `SELECT category, COUNT(*) AS count FROM suggestions WHERE scan_id = $1 GROUP BY category`
	var counts []CategoryCount
	if err := r.db.SelectContext(ctx, &counts, query, scanID); err != nil {
		return nil, fmt.Errorf("suggestion category breakdown: %w", err)
	}
	return counts, nil
}
