package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tidyshare/tidyshare-api/internal/models"
)

// ActionRepository appends to the decision ledger.
type ActionRepository struct {
	db *sqlx.DB
}

// NewActionRepository constructs the repository.
func NewActionRepository(db *sqlx.DB) *ActionRepository {
	return &ActionRepository{db: db}
}

// Create appends one ledger row.
func (r *ActionRepository) Create(ctx context.Context, action *models.ExecutedAction) error {
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO executed_actions (id, suggestion_id, scan_id, user_id, action, detail, created_at)
	VALUES (:id, :suggestion_id, :scan_id, :user_id, :action, :detail, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, action); err != nil {
		return fmt.Errorf("create executed action: %w", err)
	}
	return nil
}

// ListByScan returns the scan's ledger, newest first.
func (r *ActionRepository) ListByScan(ctx context.Context, scanID string, limit int) ([]models.ExecutedAction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const query = `SELECT id, suggestion_id, scan_id, user_id, action, detail, created_at
	FROM executed_actions WHERE scan_id = $1 ORDER BY created_at DESC LIMIT $2`
	var actions []models.ExecutedAction
	if err := r.db.SelectContext(ctx, &actions, query, scanID, limit); err != nil {
		return nil, fmt.Errorf("list executed actions: %w", err)
	}
	return actions, nil
}
