package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidyshare/tidyshare-api/internal/models"
)

func TestScanCreateFillsDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScanRepository(db)

	mock.ExpectExec("INSERT INTO scans").WillReturnResult(sqlmock.NewResult(0, 1))

	scan := &models.Scan{UserID: "user-1", SourceURL: "https://contoso.sharepoint.com/sites/ops"}
	err := repo.Create(context.Background(), scan)
	require.NoError(t, err)
	assert.NotEmpty(t, scan.ID)
	assert.Equal(t, models.ScanStatusPending, scan.Status)
	assert.False(t, scan.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScanGetForUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScanRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "source_url", "status", "site_id", "drive_id", "total_files", "total_folders", "total_size_bytes", "progress", "error_message", "created_at", "updated_at"}).
		AddRow("scan-1", "user-1", "https://contoso.sharepoint.com/sites/ops", string(models.ScanStatusCrawling), "site-1", "drive-1", 40, 5, 12345, 60, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+scanColumns+` FROM scans WHERE id = $1 AND user_id = $2`)).
		WithArgs("scan-1", "user-1").
		WillReturnRows(rows)

	scan, err := repo.GetForUser(context.Background(), "scan-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.ScanStatusCrawling, scan.Status)
	assert.Equal(t, 60, scan.Progress)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScanUpdateStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScanRepository(db)

	mock.ExpectExec("UPDATE scans SET status").
		WithArgs("scan-1", models.ScanStatusCrawling, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "scan-1", models.ScanStatusCrawling, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScanUpdateStatusMissingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScanRepository(db)

	mock.ExpectExec("UPDATE scans SET status").
		WithArgs("scan-9", models.ScanStatusError, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	message := "boom"
	err := repo.UpdateStatus(context.Background(), "scan-9", models.ScanStatusError, &message)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScanUpdateProgressKeepsHighWaterMark(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScanRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE scans SET progress = GREATEST(progress, $2), updated_at = NOW() WHERE id = $1`)).
		WithArgs("scan-1", 42).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateProgress(context.Background(), "scan-1", 42)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScanFinalize(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScanRepository(db)

	mock.ExpectExec("UPDATE scans SET").
		WithArgs("scan-1", models.ScanStatusCrawled, int64(40), int64(5), int64(12345)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Finalize(context.Background(), "scan-1", 40, 5, 12345)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScanListActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScanRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "source_url", "status", "site_id", "drive_id", "total_files", "total_folders", "total_size_bytes", "progress", "error_message", "created_at", "updated_at"}).
		AddRow("scan-1", "user-1", "https://contoso.sharepoint.com/sites/ops", string(models.ScanStatusCrawling), nil, nil, 0, 0, 0, 0, nil, now, now)
	mock.ExpectQuery("FROM scans WHERE status").
		WithArgs(models.ScanStatusCrawling).
		WillReturnRows(rows)

	scans, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, "scan-1", scans[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
