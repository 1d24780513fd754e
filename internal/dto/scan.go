package dto

import "github.com/tidyshare/tidyshare-api/internal/models"

// StartScanRequest kicks off a crawl against one SharePoint URL.
type StartScanRequest struct {
	SourceURL string `json:"source_url" binding:"required,url"`
}

// ScanStatusResponse is the poll payload: lifecycle state plus running totals.
type ScanStatusResponse struct {
	ID             string            `json:"id"`
	Status         models.ScanStatus `json:"status"`
	Progress       int               `json:"progress"`
	TotalFiles     int64             `json:"total_files"`
	TotalFolders   int64             `json:"total_folders"`
	TotalSizeBytes int64             `json:"total_size_bytes"`
	ErrorMessage   *string           `json:"error_message,omitempty"`
}

// ScanStatusFromModel maps a scan row to its poll payload.
func ScanStatusFromModel(s *models.Scan) ScanStatusResponse {
	return ScanStatusResponse{
		ID:             s.ID,
		Status:         s.Status,
		Progress:       s.Progress,
		TotalFiles:     s.TotalFiles,
		TotalFolders:   s.TotalFolders,
		TotalSizeBytes: s.TotalSizeBytes,
		ErrorMessage:   s.ErrorMessage,
	}
}

// AnalysisResponse summarises a finished analysis run.
type AnalysisResponse struct {
	SuggestionCount   int              `json:"suggestion_count"`
	CategoryBreakdown map[string]int   `json:"category_breakdown"`
	AIUsed            bool             `json:"ai_used"`
}
