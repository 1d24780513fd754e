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

func suggestionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "scan_id", "file_id", "category", "severity", "title", "description", "current_value", "suggested_value", "confidence", "source", "user_decision", "decided_at", "created_at"})
}

func TestSuggestionInsertBatchFillsDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSuggestionRepository(db)

	mock.ExpectExec("INSERT INTO suggestions").WillReturnResult(sqlmock.NewResult(0, 1))

	suggestions := []models.Suggestion{{
		ScanID:       "scan-1",
		Category:     models.CategoryDelete,
		Severity:     models.SeverityHigh,
		Title:        "Empty file",
		CurrentValue: "/Documents/empty.txt",
		Confidence:   0.95,
		Source:       models.SourceRules,
	}}
	err := repo.InsertBatch(context.Background(), suggestions)
	require.NoError(t, err)
	assert.NotEmpty(t, suggestions[0].ID)
	assert.Equal(t, models.DecisionPending, suggestions[0].UserDecision)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSuggestionListByScanAppliesFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSuggestionRepository(db)

	now := time.Now()
	rows := suggestionRows().
		AddRow("s-1", "scan-1", "f-1", string(models.CategoryDelete), string(models.SeverityHigh), "Duplicate file", "Same name and size", "/Documents/report.pdf", nil, 0.85, string(models.SourceRules), string(models.DecisionPending), nil, now)
	want := `SELECT ` + suggestionColumns + ` FROM suggestions WHERE scan_id = $1 AND category = $2 AND user_decision = $3 ORDER BY confidence DESC, created_at ASC, id ASC LIMIT 100 OFFSET 0`
	mock.ExpectQuery(regexp.QuoteMeta(want)).
		WithArgs("scan-1", models.CategoryDelete, models.DecisionPending).
		WillReturnRows(rows)

	suggestions, err := repo.ListByScan(context.Background(), "scan-1", models.SuggestionFilter{
		Category: models.CategoryDelete,
		Decision: models.DecisionPending,
	})
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "Duplicate file", suggestions[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSuggestionGetForUserScopesThroughScan(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSuggestionRepository(db)

	now := time.Now()
	rows := suggestionRows().
		AddRow("s-1", "scan-1", nil, string(models.CategoryStructure), string(models.SeverityMedium), "Sparse folder", "Holds 1 file", "/Documents/Lonely/", nil, 0.7, string(models.SourceRules), string(models.DecisionPending), nil, now)
	mock.ExpectQuery("JOIN scans sc ON").
		WithArgs("s-1", "user-1").
		WillReturnRows(rows)

	suggestion, err := repo.GetForUser(context.Background(), "s-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryStructure, suggestion.Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSuggestionUpdateDecision(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSuggestionRepository(db)

	decidedAt := time.Now().UTC()
	mock.ExpectExec("UPDATE suggestions SET user_decision").
		WithArgs("s-1", models.DecisionApproved, decidedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateDecision(context.Background(), "s-1", models.DecisionApproved, decidedAt)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSuggestionUpdateDecisionExecutedIsFinal(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSuggestionRepository(db)

	decidedAt := time.Now().UTC()
	mock.ExpectExec("UPDATE suggestions SET user_decision").
		WithArgs("s-1", models.DecisionRejected, decidedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateDecision(context.Background(), "s-1", models.DecisionRejected, decidedAt)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSuggestionCategoryBreakdown(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSuggestionRepository(db)

	rows := sqlmock.NewRows([]string{"category", "count"}).
		AddRow("delete", 7).
		AddRow("rename", 3)
	mock.ExpectQuery("FROM suggestions WHERE scan_id").
		WithArgs("scan-1").
		WillReturnRows(rows)

	counts, err := repo.CategoryBreakdown(context.Background(), "scan-1")
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "delete", counts[0].Category)
	assert.Equal(t, 7, counts[0].Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
