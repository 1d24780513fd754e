package models

import "time"

// SuggestionCategory classifies the proposed cleanup action.
type SuggestionCategory string

const (
	CategoryDelete    SuggestionCategory = "delete"
	CategoryArchive   SuggestionCategory = "archive"
	CategoryRename    SuggestionCategory = "rename"
	CategoryStructure SuggestionCategory = "structure"
)

// SuggestionSeverity grades how strongly a suggestion should be surfaced.
type SuggestionSeverity string

const (
	SeverityLow      SuggestionSeverity = "low"
	SeverityMedium   SuggestionSeverity = "medium"
	SeverityHigh     SuggestionSeverity = "high"
	SeverityCritical SuggestionSeverity = "critical"
)

// SuggestionSource identifies which pass produced a suggestion.
type SuggestionSource string

const (
	SourceRules SuggestionSource = "rules"
	SourceAI    SuggestionSource = "ai"
)

// UserDecision is the review state of a suggestion.
type UserDecision string

const (
	DecisionPending  UserDecision = "pending"
	DecisionApproved UserDecision = "approved"
	DecisionRejected UserDecision = "rejected"
	DecisionSkipped  UserDecision = "skipped"
	DecisionExecuted UserDecision = "executed"
)

// Suggestion is one proposed cleanup action awaiting user review.
// Only UserDecision and DecidedAt mutate after insert.
type Suggestion struct {
	ID             string             `db:"id" json:"id"`
	ScanID         string             `db:"scan_id" json:"scan_id"`
	FileID         *string            `db:"file_id" json:"file_id,omitempty"`
	Category       SuggestionCategory `db:"category" json:"category"`
	Severity       SuggestionSeverity `db:"severity" json:"severity"`
	Title          string             `db:"title" json:"title"`
	Description    string             `db:"description" json:"description"`
	CurrentValue   string             `db:"current_value" json:"current_value"`
	SuggestedValue *string            `db:"suggested_value" json:"suggested_value,omitempty"`
	Confidence     float64            `db:"confidence" json:"confidence"`
	Source         SuggestionSource   `db:"source" json:"source"`
	UserDecision   UserDecision       `db:"user_decision" json:"user_decision"`
	DecidedAt      *time.Time         `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
}

// DedupKey identifies a suggestion for first-wins deduplication across the
// rules and AI passes: item reference (or bare path), category and title.
func (s Suggestion) DedupKey() string {
	ref := s.CurrentValue
	if s.FileID != nil {
		ref = *s.FileID
	}
	return ref + "\x00" + string(s.Category) + "\x00" + s.Title
}

// SuggestionFilter captures list filtering for one scan's suggestions.
type SuggestionFilter struct {
	Category SuggestionCategory
	Severity SuggestionSeverity
	Decision UserDecision
	Source   SuggestionSource
	Limit    int
	Offset   int
}
