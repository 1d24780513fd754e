package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tidyshare/tidyshare-api/internal/models"
)

// InventoryRepository persists discovered files and folders. Rows are
// append-only per scan.
type InventoryRepository struct {
	db *sqlx.DB
}

// NewInventoryRepository constructs the repository.
func NewInventoryRepository(db *sqlx.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

const inventoryColumns = `id, scan_id, item_id, name, extension, size_bytes, is_folder, file_path, depth, created_time, modified_time, created_by, modified_by, parent_item_id, web_url, content_hash`

// InsertBatch appends one folder expansion's discoveries. The conflict clause
// makes retried batches harmless: a re-expanded folder upserts instead of
// duplicating its children.
func (r *InventoryRepository) InsertBatch(ctx context.Context, items []models.InventoryItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
	}
	const query = `INSERT INTO crawled_files
	(` + inventoryColumns + `)
	VALUES (:id, :scan_id, :item_id, :name, :extension, :size_bytes, :is_folder, :file_path, :depth, :created_time, :modified_time, :created_by, :modified_by, :parent_item_id, :web_url, :content_hash)
	ON CONFLICT (scan_id, item_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, items); err != nil {
		return fmt.Errorf("insert inventory items: %w", err)
	}
	return nil
}

// ListByScan returns the full inventory of one scan ordered by path, the
// input for the rules and AI passes.
func (r *InventoryRepository) ListByScan(ctx context.Context, scanID string) ([]models.InventoryItem, error) {
	query := `SELECT ` + inventoryColumns + ` FROM crawled_files WHERE scan_id = $1 ORDER BY file_path ASC`
	var items []models.InventoryItem
	if err := r.db.SelectContext(ctx, &items, query, scanID); err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return items, nil
}

// ScanTotals holds authoritative counts recomputed from inventory rows.
type ScanTotals struct {
	Files     int64 `db:"files"`
	Folders   int64 `db:"folders"`
	SizeBytes int64 `db:"size_bytes"`
}

// Totals recomputes exact file/folder/byte totals, self-correcting any drift
// in the incremental counters before finalization.
func (r *InventoryRepository) Totals(ctx context.Context, scanID string) (ScanTotals, error) {
	const query = `SELECT
		COUNT(*) FILTER (WHERE NOT is_folder)                    AS files,
		COUNT(*) FILTER (WHERE is_folder)                        AS folders,
		COALESCE(SUM(size_bytes) FILTER (WHERE NOT is_folder), 0) AS size_bytes
	FROM crawled_files WHERE scan_id = $1`
	var totals ScanTotals
	if err := r.db.GetContext(ctx, &totals, query, scanID); err != nil {
		return totals, fmt.Errorf("compute inventory totals: %w", err)
	}
	return totals, nil
}
