package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tidyshare/tidyshare-api/internal/models"
)

// ScanRepository handles scan row persistence.
type ScanRepository struct {
	db *sqlx.DB
}

// NewScanRepository constructs the repository.
func NewScanRepository(db *sqlx.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

// Create inserts a new scan row.
func (r *ScanRepository) Create(ctx context.Context, scan *models.Scan) error {
	if scan.ID == "" {
		scan.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = now
	}
	scan.UpdatedAt = now
	if scan.Status == "" {
		scan.Status = models.ScanStatusPending
	}
	const query = `INSERT INTO scans
	(id, user_id, source_url, status, site_id, drive_id, total_files, total_folders, total_size_bytes, progress, error_message, created_at, updated_at)
	VALUES (:id, :user_id, :source_url, :status, :site_id, :drive_id, :total_files, :total_folders, :total_size_bytes, :progress, :error_message, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, scan); err != nil {
		return fmt.Errorf("create scan: %w", err)
	}
	return nil
}

const scanColumns = `id, user_id, source_url, status, site_id, drive_id, total_files, total_folders, total_size_bytes, progress, error_message, created_at, updated_at`

// GetByID retrieves one scan without owner scoping. Reserved for the crawl
// and analysis engines; user-facing paths go through GetForUser.
func (r *ScanRepository) GetByID(ctx context.Context, id string) (*models.Scan, error) {
	var scan models.Scan
	query := `SELECT ` + scanColumns + ` FROM scans WHERE id = $1`
	if err := r.db.GetContext(ctx, &scan, query, id); err != nil {
		return nil, err
	}
	return &scan, nil
}

// GetForUser retrieves one scan scoped to its owner.
func (r *ScanRepository) GetForUser(ctx context.Context, id, userID string) (*models.Scan, error) {
	var scan models.Scan
	query := `SELECT ` + scanColumns + ` FROM scans WHERE id = $1 AND user_id = $2`
	if err := r.db.GetContext(ctx, &scan, query, id, userID); err != nil {
		return nil, err
	}
	return &scan, nil
}

// ListForUser returns the owner's scans, newest first.
func (r *ScanRepository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]models.Scan, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	var scans []models.Scan
	query := `SELECT ` + scanColumns + ` FROM scans WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &scans, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	return scans, nil
}

// ListActive returns scans still accepting batch cycles, used by the
// background pump.
func (r *ScanRepository) ListActive(ctx context.Context) ([]models.Scan, error) {
	var scans []models.Scan
	query := `SELECT ` + scanColumns + ` FROM scans WHERE status = $1 ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &scans, query, models.ScanStatusCrawling); err != nil {
		return nil, fmt.Errorf("list active scans: %w", err)
	}
	return scans, nil
}

// UpdateStatus transitions the scan lifecycle, optionally recording an error
// message.
func (r *ScanRepository) UpdateStatus(ctx context.Context, id string, status models.ScanStatus, errorMessage *string) error {
	const query = `UPDATE scans SET status = $2, error_message = $3, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, errorMessage)
	if err != nil {
		return fmt.Errorf("update scan status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check scan status rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetResolved records the site/drive identifiers once the root resolves.
func (r *ScanRepository) SetResolved(ctx context.Context, id string, siteID string, driveID *string) error {
	const query = `UPDATE scans SET site_id = $2, drive_id = $3, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, siteID, driveID); err != nil {
		return fmt.Errorf("set scan resolution: %w", err)
	}
	return nil
}

// AddTotals additively folds one batch's discoveries into the running totals.
func (r *ScanRepository) AddTotals(ctx context.Context, id string, files, folders, sizeBytes int64) error {
	const query = `UPDATE scans SET
		total_files = total_files + $2,
		total_folders = total_folders + $3,
		total_size_bytes = total_size_bytes + $4,
		updated_at = NOW()
	WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, files, folders, sizeBytes); err != nil {
		return fmt.Errorf("add scan totals: %w", err)
	}
	return nil
}

// UpdateProgress raises the crawl progress. GREATEST keeps it monotonic even
// when a later batch discovers enough new work to shrink the done ratio.
func (r *ScanRepository) UpdateProgress(ctx context.Context, id string, progress int) error {
	const query = `UPDATE scans SET progress = GREATEST(progress, $2), updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, progress); err != nil {
		return fmt.Errorf("update scan progress: %w", err)
	}
	return nil
}

// Finalize writes the authoritative totals recomputed from the inventory and
// flips the scan to crawled at 100%.
func (r *ScanRepository) Finalize(ctx context.Context, id string, files, folders, sizeBytes int64) error {
	const query = `UPDATE scans SET
		status = $2,
		progress = 100,
		total_files = $3,
		total_folders = $4,
		total_size_bytes = $5,
		updated_at = NOW()
	WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ScanStatusCrawled, files, folders, sizeBytes); err != nil {
		return fmt.Errorf("finalize scan: %w", err)
	}
	return nil
}
