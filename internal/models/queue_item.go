package models

import "time"

// QueueStatus tracks one unit of crawl work.
type QueueStatus string

const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusDone       QueueStatus = "done"
	QueueStatusError      QueueStatus = "error"
)

// QueueItem is one folder awaiting expansion within a scan's crawl.
// Roots are seeded at depth 0 with a nil parent.
type QueueItem struct {
	ID           string      `db:"id" json:"id"`
	ScanID       string      `db:"scan_id" json:"scan_id"`
	DriveID      string      `db:"drive_id" json:"drive_id"`
	APIPath      string      `db:"api_path" json:"api_path"`
	ParentItemID *string     `db:"parent_item_id" json:"parent_item_id,omitempty"`
	Depth        int         `db:"depth" json:"depth"`
	FolderPath   string      `db:"folder_path" json:"folder_path"`
	Status       QueueStatus `db:"status" json:"status"`
	ErrorMessage *string     `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	ClaimedAt    *time.Time  `db:"claimed_at" json:"claimed_at,omitempty"`
	ProcessedAt  *time.Time  `db:"processed_at" json:"processed_at,omitempty"`
}

// QueueCounts aggregates queue item states for one scan, used for
// progress accounting and finalization checks.
type QueueCounts struct {
	Pending    int64 `db:"pending"`
	Processing int64 `db:"processing"`
	Done       int64 `db:"done"`
	Errored    int64 `db:"errored"`
}

// Total returns the number of discovered work units.
func (c QueueCounts) Total() int64 {
	return c.Pending + c.Processing + c.Done + c.Errored
}

// Drained reports whether no work remains outstanding.
func (c QueueCounts) Drained() bool {
	return c.Pending == 0 && c.Processing == 0
}
