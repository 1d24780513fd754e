package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/tidyshare/tidyshare-api/internal/models"
	appErrors "github.com/tidyshare/tidyshare-api/pkg/errors"
)

type suggestionStore interface {
	ListByScan(ctx context.Context, scanID string, filter models.SuggestionFilter) ([]models.Suggestion, error)
	GetForUser(ctx context.Context, id, userID string) (*models.Suggestion, error)
	UpdateDecision(ctx context.Context, id string, decision models.UserDecision, decidedAt time.Time) error
}

type suggestionScanStore interface {
	GetForUser(ctx context.Context, id, userID string) (*models.Scan, error)
}

type actionStore interface {
	Create(ctx context.Context, action *models.ExecutedAction) error
	ListByScan(ctx context.Context, scanID string, limit int) ([]models.ExecutedAction, error)
}

// SuggestionService serves the review surface: listing suggestions, recording
// decisions and keeping the append-only ledger.
type SuggestionService struct {
	suggestions suggestionStore
	scans       suggestionScanStore
	actions     actionStore
	logger      *zap.Logger
}

// NewSuggestionService constructs the service.
func NewSuggestionService(suggestions suggestionStore, scans suggestionScanStore, actions actionStore, logger *zap.Logger) *SuggestionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SuggestionService{suggestions: suggestions, scans: scans, actions: actions, logger: logger}
}

// List returns one scan's suggestions after verifying ownership.
func (s *SuggestionService) List(ctx context.Context, userID, scanID string, filter models.SuggestionFilter) ([]models.Suggestion, error) {
	if _, err := s.scans.GetForUser(ctx, scanID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, err
	}
	return s.suggestions.ListByScan(ctx, scanID, filter)
}

// Decide records the user's verdict on one suggestion and appends it to the
// ledger. An executed decision is final and cannot be overwritten.
func (s *SuggestionService) Decide(ctx context.Context, userID, suggestionID string, decision models.UserDecision, detail *string) (*models.Suggestion, error) {
	suggestion, err := s.suggestions.GetForUser(ctx, suggestionID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, err
	}
	if suggestion.UserDecision == models.DecisionExecuted {
		return nil, appErrors.ErrDecisionFinal
	}

	decidedAt := time.Now().UTC()
	if err := s.suggestions.UpdateDecision(ctx, suggestionID, decision, decidedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrDecisionFinal
		}
		return nil, err
	}

	action := &models.ExecutedAction{
		SuggestionID: suggestionID,
		ScanID:       suggestion.ScanID,
		UserID:       userID,
		Action:       string(decision),
		Detail:       detail,
		CreatedAt:    decidedAt,
	}
	if err := s.actions.Create(ctx, action); err != nil {
		s.logger.Error("failed to append decision ledger",
			zap.String("suggestion_id", suggestionID),
			zap.Error(err))
	}

	suggestion.UserDecision = decision
	suggestion.DecidedAt = &decidedAt
	return suggestion, nil
}

// History returns the scan's decision ledger after verifying ownership.
func (s *SuggestionService) History(ctx context.Context, userID, scanID string, limit int) ([]models.ExecutedAction, error) {
	if _, err := s.scans.GetForUser(ctx, scanID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, err
	}
	return s.actions.ListByScan(ctx, scanID, limit)
}
