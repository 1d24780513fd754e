package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tidyshare/tidyshare-api/internal/models"
	appErrors "github.com/tidyshare/tidyshare-api/pkg/errors"
	"github.com/tidyshare/tidyshare-api/pkg/export"
)

// ReportFormat selects the export rendering.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportResult carries a rendered report ready to stream to the client.
type ExportResult struct {
	Payload     []byte
	Filename    string
	ContentType string
}

// ExportService renders one scan's suggestion list as a downloadable report.
type ExportService struct {
	scans       suggestionScanStore
	suggestions suggestionStore
	csv         csvRenderer
	pdf         pdfRenderer
	logger      *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(scans suggestionScanStore, suggestions suggestionStore, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{scans: scans, suggestions: suggestions, csv: csv, pdf: pdf, logger: logger}
}

// SuggestionsReport renders the owner's suggestions for one scan.
func (s *ExportService) SuggestionsReport(ctx context.Context, userID, scanID string, format ReportFormat, filter models.SuggestionFilter) (*ExportResult, error) {
	scan, err := s.scans.GetForUser(ctx, scanID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, err
	}

	suggestions, err := s.collectAll(ctx, scanID, filter)
	if err != nil {
		return nil, err
	}

	dataset := buildSuggestionDataset(suggestions)
	title := fmt.Sprintf("Cleanup Suggestions %s", scan.SourceURL)

	var payload []byte
	var contentType string
	switch format {
	case ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
		contentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("suggestions_%s_%s.%s", scanID, time.Now().UTC().Format("20060102_150405"), format)
	return &ExportResult{Payload: payload, Filename: filename, ContentType: contentType}, nil
}

// collectAll pages through the full suggestion list for the report.
func (s *ExportService) collectAll(ctx context.Context, scanID string, filter models.SuggestionFilter) ([]models.Suggestion, error) {
	const pageSize = 500
	filter.Limit = pageSize
	filter.Offset = 0

	var all []models.Suggestion
	for {
		page, err := s.suggestions.ListByScan(ctx, scanID, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
		filter.Offset += pageSize
	}
}

func buildSuggestionDataset(suggestions []models.Suggestion) export.Dataset {
	headers := []string{"Category", "Severity", "Title", "Path", "Suggested", "Confidence", "Source", "Decision"}
	rows := make([]map[string]string, 0, len(suggestions))
	for _, suggestion := range suggestions {
		suggested := ""
		if suggestion.SuggestedValue != nil {
			suggested = *suggestion.SuggestedValue
		}
		rows = append(rows, map[string]string{
			"Category":   string(suggestion.Category),
			"Severity":   string(suggestion.Severity),
			"Title":      suggestion.Title,
			"Path":       suggestion.CurrentValue,
			"Suggested":  suggested,
			"Confidence": fmt.Sprintf("%.2f", suggestion.Confidence),
			"Source":     strings.ToUpper(string(suggestion.Source)),
			"Decision":   string(suggestion.UserDecision),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
