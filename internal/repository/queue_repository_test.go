package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidyshare/tidyshare-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestQueueInsertBatchFillsDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewQueueRepository(db)

	mock.ExpectExec("INSERT INTO crawl_queue").WillReturnResult(sqlmock.NewResult(0, 2))

	items := []models.QueueItem{
		{ScanID: "scan-1", DriveID: "drive-1", APIPath: "/drives/drive-1/root/children", FolderPath: "/Documents/"},
		{ScanID: "scan-1", DriveID: "drive-1", APIPath: "/drives/drive-1/items/x/children", FolderPath: "/Documents/Reports/", Depth: 1},
	}
	err := repo.InsertBatch(context.Background(), items)
	require.NoError(t, err)
	assert.NotEmpty(t, items[0].ID)
	assert.Equal(t, models.QueueStatusPending, items[0].Status)
	assert.False(t, items[1].CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueClaim(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewQueueRepository(db)

	mock.ExpectExec("UPDATE crawl_queue SET status").
		WithArgs("q-1", models.QueueStatusProcessing, models.QueueStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	claimed, err := repo.Claim(context.Background(), "q-1")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueClaimLostRace(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewQueueRepository(db)

	mock.ExpectExec("UPDATE crawl_queue SET status").
		WithArgs("q-1", models.QueueStatusProcessing, models.QueueStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err := repo.Claim(context.Background(), "q-1")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueReclaimStale(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewQueueRepository(db)

	mock.ExpectExec("UPDATE crawl_queue").
		WithArgs("scan-1", models.QueueStatusPending, models.QueueStatusProcessing, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	reclaimed, err := repo.ReclaimStale(context.Background(), "scan-1", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(3), reclaimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueSelectPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewQueueRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "scan_id", "drive_id", "api_path", "parent_item_id", "depth", "folder_path", "status", "error_message", "created_at", "claimed_at", "processed_at"}).
		AddRow("q-1", "scan-1", "drive-1", "/drives/drive-1/root/children", nil, 0, "/Documents/", string(models.QueueStatusPending), nil, now, nil, nil).
		AddRow("q-2", "scan-1", "drive-1", "/drives/drive-1/items/x/children", "item-x", 1, "/Documents/Reports/", string(models.QueueStatusPending), nil, now, nil, nil)
	mock.ExpectQuery("FROM crawl_queue").
		WithArgs("scan-1", models.QueueStatusPending, 50).
		WillReturnRows(rows)

	items, err := repo.SelectPending(context.Background(), "scan-1", 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "/Documents/", items[0].FolderPath)
	assert.Equal(t, 1, items[1].Depth)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueCounts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewQueueRepository(db)

	rows := sqlmock.NewRows([]string{"pending", "processing", "done", "errored"}).
		AddRow(4, 1, 10, 2)
	mock.ExpectQuery("FROM crawl_queue WHERE scan_id").
		WithArgs("scan-1").
		WillReturnRows(rows)

	counts, err := repo.Counts(context.Background(), "scan-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), counts.Pending)
	assert.Equal(t, int64(2), counts.Errored)
	assert.Equal(t, int64(17), counts.Total())
	assert.False(t, counts.Drained())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueFirstErrorMessage(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewQueueRepository(db)

	rows := sqlmock.NewRows([]string{"error_message"}).AddRow("graph returned 403")
	mock.ExpectQuery("FROM crawl_queue").
		WithArgs("scan-1").
		WillReturnRows(rows)

	message, err := repo.FirstErrorMessage(context.Background(), "scan-1")
	require.NoError(t, err)
	assert.Equal(t, "graph returned 403", message)
	assert.NoError(t, mock.ExpectationsWereMet())
}
