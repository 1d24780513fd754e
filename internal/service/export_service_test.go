package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tidyshare/tidyshare-api/internal/models"
	appErrors "github.com/tidyshare/tidyshare-api/pkg/errors"
)

func exportFixture() (*ownerScanStub, *suggestionStoreStub) {
	scans := &ownerScanStub{scan: &models.Scan{ID: "scan-1", UserID: "user-1", SourceURL: "https://contoso.sharepoint.com/sites/ops"}}
	suggested := "proposal.docx"
	store := &suggestionStoreStub{listed: []models.Suggestion{{
		ID:             "s-1",
		ScanID:         "scan-1",
		Category:       models.CategoryRename,
		Severity:       models.SeverityMedium,
		Title:          "Version suffix in file name",
		CurrentValue:   "/Documents/proposal_v2.docx",
		SuggestedValue: &suggested,
		Confidence:     0.75,
		Source:         models.SourceRules,
		UserDecision:   models.DecisionPending,
	}}}
	return scans, store
}

func TestSuggestionsReportCSV(t *testing.T) {
	scans, store := exportFixture()
	svc := NewExportService(scans, store, nil, nil, zap.NewNop())

	result, err := svc.SuggestionsReport(context.Background(), "user-1", "scan-1", ReportFormatCSV, models.SuggestionFilter{})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.True(t, strings.HasPrefix(result.Filename, "suggestions_scan-1_"))
	assert.True(t, strings.HasSuffix(result.Filename, ".csv"))

	body := strings.TrimPrefix(string(result.Payload), "\ufeff")
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Category,Severity,Title,Path,Suggested,Confidence,Source,Decision", strings.TrimSpace(lines[0]))
	assert.Contains(t, lines[1], "/Documents/proposal_v2.docx")
	assert.Contains(t, lines[1], "RULES")
}

func TestSuggestionsReportPDF(t *testing.T) {
	scans, store := exportFixture()
	svc := NewExportService(scans, store, nil, nil, zap.NewNop())

	result, err := svc.SuggestionsReport(context.Background(), "user-1", "scan-1", ReportFormatPDF, models.SuggestionFilter{})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(string(result.Payload), "%PDF"))
}

func TestSuggestionsReportUnsupportedFormat(t *testing.T) {
	scans, store := exportFixture()
	svc := NewExportService(scans, store, nil, nil, zap.NewNop())

	_, err := svc.SuggestionsReport(context.Background(), "user-1", "scan-1", ReportFormat("xlsx"), models.SuggestionFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSuggestionsReportRequiresOwnership(t *testing.T) {
	_, store := exportFixture()
	scans := &ownerScanStub{getErr: sql.ErrNoRows}
	svc := NewExportService(scans, store, nil, nil, zap.NewNop())

	_, err := svc.SuggestionsReport(context.Background(), "user-2", "scan-1", ReportFormatCSV, models.SuggestionFilter{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
