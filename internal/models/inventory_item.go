package models

import "time"

// InventoryItem is one discovered file or folder row. Rows are append-only
// per scan; retried batches may re-insert a folder's children, which later
// stages must tolerate.
type InventoryItem struct {
	ID           string     `db:"id" json:"id"`
	ScanID       string     `db:"scan_id" json:"scan_id"`
	ItemID       string     `db:"item_id" json:"item_id"`
	Name         string     `db:"name" json:"name"`
	Extension    *string    `db:"extension" json:"extension,omitempty"`
	SizeBytes    int64      `db:"size_bytes" json:"size_bytes"`
	IsFolder     bool       `db:"is_folder" json:"is_folder"`
	FilePath     string     `db:"file_path" json:"file_path"`
	Depth        int        `db:"depth" json:"depth"`
	CreatedTime  *time.Time `db:"created_time" json:"created_time,omitempty"`
	ModifiedTime *time.Time `db:"modified_time" json:"modified_time,omitempty"`
	CreatedBy    *string    `db:"created_by" json:"created_by,omitempty"`
	ModifiedBy   *string    `db:"modified_by" json:"modified_by,omitempty"`
	ParentItemID *string    `db:"parent_item_id" json:"parent_item_id,omitempty"`
	WebURL       *string    `db:"web_url" json:"web_url,omitempty"`
	ContentHash  *string    `db:"content_hash" json:"content_hash,omitempty"`
}

// BaseName returns the name without its extension.
func (i InventoryItem) BaseName() string {
	if i.Extension == nil || *i.Extension == "" {
		return i.Name
	}
	ext := "." + *i.Extension
	if len(i.Name) > len(ext) {
		return i.Name[:len(i.Name)-len(ext)]
	}
	return i.Name
}
