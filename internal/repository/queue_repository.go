package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tidyshare/tidyshare-api/internal/models"
)

// QueueRepository persists crawl work items, one row per folder awaiting
// expansion.
type QueueRepository struct {
	db *sqlx.DB
}

// NewQueueRepository constructs the repository.
func NewQueueRepository(db *sqlx.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

const queueInsert = `INSERT INTO crawl_queue
	(id, scan_id, drive_id, api_path, parent_item_id, depth, folder_path, status, error_message, created_at, claimed_at, processed_at)
	VALUES (:id, :scan_id, :drive_id, :api_path, :parent_item_id, :depth, :folder_path, :status, :error_message, :created_at, :claimed_at, :processed_at)`

// InsertBatch stores newly discovered folders as pending work.
func (r *QueueRepository) InsertBatch(ctx context.Context, items []models.QueueItem) error {
	if len(items) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		if items[i].Status == "" {
			items[i].Status = models.QueueStatusPending
		}
		if items[i].CreatedAt.IsZero() {
			items[i].CreatedAt = now
		}
	}
	if _, err := r.db.NamedExecContext(ctx, queueInsert, items); err != nil {
		return fmt.Errorf("insert queue items: %w", err)
	}
	return nil
}

// ReclaimStale returns processing items older than the staleness window to
// pending. This is the sole crash/timeout repair mechanism.
func (r *QueueRepository) ReclaimStale(ctx context.Context, scanID string, staleAfter time.Duration) (int64, error) {
	const query = `UPDATE crawl_queue
	SET status = $2, claimed_at = NULL
	WHERE scan_id = $1 AND status = $3 AND claimed_at < $4`
	cutoff := time.Now().UTC().Add(-staleAfter)
	res, err := r.db.ExecContext(ctx, query, scanID, models.QueueStatusPending, models.QueueStatusProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale queue items: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check reclaimed rows: %w", err)
	}
	return affected, nil
}

// SelectPending returns up to limit pending items in breadth-first order:
// shallow folders first, creation time as the stable tie-break.
func (r *QueueRepository) SelectPending(ctx context.Context, scanID string, limit int) ([]models.QueueItem, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, scan_id, drive_id, api_path, parent_item_id, depth, folder_path, status, error_message, created_at, claimed_at, processed_at
	FROM crawl_queue
	WHERE scan_id = $1 AND status = $2
	ORDER BY depth ASC, created_at ASC
	LIMIT $3`
	var items []models.QueueItem
	if err := r.db.SelectContext(ctx, &items, query, scanID, models.QueueStatusPending, limit); err != nil {
		return nil, fmt.Errorf("select pending queue items: %w", err)
	}
	return items, nil
}

// Claim atomically moves one item from pending to processing. It returns
// false when another caller already claimed the row, which is how concurrent
// batch cycles avoid double-expanding a folder.
func (r *QueueRepository) Claim(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE crawl_queue SET status = $2, claimed_at = NOW()
	WHERE id = $1 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, id, models.QueueStatusProcessing, models.QueueStatusPending)
	if err != nil {
		return false, fmt.Errorf("claim queue item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check claim rows: %w", err)
	}
	return affected == 1, nil
}

// MarkDone completes an item after successful expansion.
func (r *QueueRepository) MarkDone(ctx context.Context, id string) error {
	const query = `UPDATE crawl_queue SET status = $2, processed_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.QueueStatusDone); err != nil {
		return fmt.Errorf("mark queue item done: %w", err)
	}
	return nil
}

// MarkError records a failed expansion. The item does not return to pending.
func (r *QueueRepository) MarkError(ctx context.Context, id string, message string) error {
	const query = `UPDATE crawl_queue SET status = $2, error_message = $3, processed_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.QueueStatusError, message); err != nil {
		return fmt.Errorf("mark queue item error: %w", err)
	}
	return nil
}

// Counts aggregates the scan's queue states in one round trip.
func (r *QueueRepository) Counts(ctx context.Context, scanID string) (models.QueueCounts, error) {
	const query = `SELECT
		COUNT(*) FILTER (WHERE status = 'pending')    AS pending,
		COUNT(*) FILTER (WHERE status = 'processing') AS processing,
		COUNT(*) FILTER (WHERE status = 'done')       AS done,
		COUNT(*) FILTER (WHERE status = 'error')      AS errored
	FROM crawl_queue WHERE scan_id = $1`
	var counts models.QueueCounts
	if err := r.db.GetContext(ctx, &counts, query, scanID); err != nil {
		return counts, fmt.Errorf("count queue items: %w", err)
	}
	return counts, nil
}

// FirstErrorMessage returns the earliest recorded expansion error, used when
// an entire crawl fails.
func (r *QueueRepository) FirstErrorMessage(ctx context.Context, scanID string) (string, error) {
	const query = `SELECT COALESCE(error_message, '') FROM crawl_queue
	WHERE scan_id = $1 AND status = 'error'
	ORDER BY processed_at ASC NULLS LAST, created_at ASC
	LIMIT 1`
	var message string
	if err := r.db.GetContext(ctx, &message, query, scanID); err != nil {
		return "", err
	}
	return message, nil
}
