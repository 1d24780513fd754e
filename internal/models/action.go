package models

import "time"

// ExecutedAction is one row of the decision ledger: every user decision on a
// suggestion is appended here, giving an auditable history independent of the
// suggestion's current state.
type ExecutedAction struct {
	ID           string    `db:"id" json:"id"`
	SuggestionID string    `db:"suggestion_id" json:"suggestion_id"`
	ScanID       string    `db:"scan_id" json:"scan_id"`
	UserID       string    `db:"user_id" json:"user_id"`
	Action       string    `db:"action" json:"action"`
	Detail       *string   `db:"detail" json:"detail,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
