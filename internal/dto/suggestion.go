package dto

// SuggestionListQuery filters a scan's suggestions.
type SuggestionListQuery struct {
	Category string `form:"category" binding:"omitempty,oneof=delete archive rename structure"`
	Severity string `form:"severity" binding:"omitempty,oneof=low medium high critical"`
	Decision string `form:"decision" binding:"omitempty,oneof=pending approved rejected skipped executed"`
	Source   string `form:"source" binding:"omitempty,oneof=rules ai"`
	Page     int    `form:"page"`
	Limit    int    `form:"limit"`
}

// DecisionRequest records the user's verdict on one suggestion.
type DecisionRequest struct {
	Decision string  `json:"decision" binding:"required,oneof=approved rejected skipped executed"`
	Detail   *string `json:"detail"`
}
