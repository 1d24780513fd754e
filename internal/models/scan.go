package models

import "time"

// ScanStatus tracks the lifecycle of a crawl-and-analyze job.
type ScanStatus string

const (
	ScanStatusPending   ScanStatus = "pending"
	ScanStatusCrawling  ScanStatus = "crawling"
	ScanStatusCrawled   ScanStatus = "crawled"
	ScanStatusAnalyzing ScanStatus = "analyzing"
	ScanStatusComplete  ScanStatus = "complete"
	ScanStatusError     ScanStatus = "error"
)

// Scan represents one crawl job against one source URL.
type Scan struct {
	ID             string     `db:"id" json:"id"`
	UserID         string     `db:"user_id" json:"user_id"`
	SourceURL      string     `db:"source_url" json:"source_url"`
	Status         ScanStatus `db:"status" json:"status"`
	SiteID         *string    `db:"site_id" json:"site_id,omitempty"`
	DriveID        *string    `db:"drive_id" json:"drive_id,omitempty"`
	TotalFiles     int64      `db:"total_files" json:"total_files"`
	TotalFolders   int64      `db:"total_folders" json:"total_folders"`
	TotalSizeBytes int64      `db:"total_size_bytes" json:"total_size_bytes"`
	Progress       int        `db:"progress" json:"progress"`
	ErrorMessage   *string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Crawling reports whether the scan still accepts batch cycles.
func (s *Scan) Crawling() bool {
	return s.Status == ScanStatusCrawling
}
