package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/tidyshare/tidyshare-api/internal/dto"
	"github.com/tidyshare/tidyshare-api/internal/models"
	"github.com/tidyshare/tidyshare-api/internal/repository"
	appErrors "github.com/tidyshare/tidyshare-api/pkg/errors"
)

type analysisScanStore interface {
	GetForUser(ctx context.Context, id, userID string) (*models.Scan, error)
	UpdateStatus(ctx context.Context, id string, status models.ScanStatus, errorMessage *string) error
}

type analysisInventoryStore interface {
	ListByScan(ctx context.Context, scanID string) ([]models.InventoryItem, error)
}

type analysisSuggestionStore interface {
	InsertBatch(ctx context.Context, suggestions []models.Suggestion) error
	CategoryBreakdown(ctx context.Context, scanID string) ([]repository.CategoryCount, error)
}

type rulesEngine interface {
	Analyze(items []models.InventoryItem) RulesResult
}

type aiEngine interface {
	Enabled() bool
	Analyze(ctx context.Context, scanID string, items []models.InventoryItem, claimed map[string]struct{}) []models.Suggestion
}

// AnalysisServiceConfig tunes suggestion persistence.
type AnalysisServiceConfig struct {
	InsertChunkSize int
}

// AnalysisService orchestrates the post-crawl analysis: the deterministic
// rules pass, the optional AI pass, first-wins dedup and chunked persistence.
type AnalysisService struct {
	scans       analysisScanStore
	inventory   analysisInventoryStore
	suggestions analysisSuggestionStore
	rules       rulesEngine
	ai          aiEngine
	logger      *zap.Logger
	cfg         AnalysisServiceConfig
}

// NewAnalysisService constructs the orchestrator.
func NewAnalysisService(scans analysisScanStore, inventory analysisInventoryStore, suggestions analysisSuggestionStore, rules rulesEngine, ai aiEngine, logger *zap.Logger, cfg AnalysisServiceConfig) *AnalysisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.InsertChunkSize <= 0 {
		cfg.InsertChunkSize = 100
	}
	return &AnalysisService{
		scans:       scans,
		inventory:   inventory,
		suggestions: suggestions,
		rules:       rules,
		ai:          ai,
		logger:      logger,
		cfg:         cfg,
	}
}

// RunAnalysis analyzes one crawled scan. The scan must be owned by the caller
// and have finished crawling; a failed run flips the scan to error.
func (s *AnalysisService) RunAnalysis(ctx context.Context, userID, scanID string) (dto.AnalysisResponse, error) {
	scan, err := s.scans.GetForUser(ctx, scanID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dto.AnalysisResponse{}, appErrors.ErrNotFound
		}
		return dto.AnalysisResponse{}, err
	}

	switch scan.Status {
	case models.ScanStatusCrawled:
	case models.ScanStatusError:
		return dto.AnalysisResponse{}, appErrors.ErrScanFailed
	case models.ScanStatusComplete:
		return dto.AnalysisResponse{}, appErrors.Clone(appErrors.ErrScanNotReady, "scan has already been analyzed")
	default:
		return dto.AnalysisResponse{}, appErrors.ErrScanNotReady
	}

	if err := s.scans.UpdateStatus(ctx, scanID, models.ScanStatusAnalyzing, nil); err != nil {
		return dto.AnalysisResponse{}, err
	}

	response, err := s.analyze(ctx, scanID)
	if err != nil {
		message := err.Error()
		if statusErr := s.scans.UpdateStatus(ctx, scanID, models.ScanStatusError, &message); statusErr != nil {
			s.logger.Error("failed to record analysis error", zap.String("scan_id", scanID), zap.Error(statusErr))
		}
		return dto.AnalysisResponse{}, err
	}

	if err := s.scans.UpdateStatus(ctx, scanID, models.ScanStatusComplete, nil); err != nil {
		return dto.AnalysisResponse{}, err
	}
	return response, nil
}

func (s *AnalysisService) analyze(ctx context.Context, scanID string) (dto.AnalysisResponse, error) {
	items, err := s.inventory.ListByScan(ctx, scanID)
	if err != nil {
		return dto.AnalysisResponse{}, err
	}

	start := time.Now()
	rulesResult := s.rules.Analyze(items)

	aiUsed := false
	var aiSuggestions []models.Suggestion
	if s.ai != nil && s.ai.Enabled() {
		aiUsed = true
		aiSuggestions = s.ai.Analyze(ctx, scanID, items, rulesResult.Claimed)
	}

	deduped := dedupeSuggestions(rulesResult.Suggestions, aiSuggestions)
	for i := range deduped {
		deduped[i].ScanID = scanID
	}

	if err := s.insertChunked(ctx, deduped); err != nil {
		return dto.AnalysisResponse{}, err
	}

	breakdown, err := s.suggestions.CategoryBreakdown(ctx, scanID)
	if err != nil {
		return dto.AnalysisResponse{}, err
	}
	byCategory := make(map[string]int, len(breakdown))
	for _, entry := range breakdown {
		byCategory[entry.Category] = entry.Count
	}

	s.logger.Info("analysis complete",
		zap.String("scan_id", scanID),
		zap.Int("inventory", len(items)),
		zap.Int("suggestions", len(deduped)),
		zap.Bool("ai_used", aiUsed),
		zap.Duration("took", time.Since(start)))

	return dto.AnalysisResponse{
		SuggestionCount:   len(deduped),
		CategoryBreakdown: byCategory,
		AIUsed:            aiUsed,
	}, nil
}

// dedupeSuggestions merges the two passes keeping the first suggestion seen
// per dedup key. Rules run first, so on overlap the deterministic suggestion
// wins.
func dedupeSuggestions(passes ...[]models.Suggestion) []models.Suggestion {
	seen := make(map[string]struct{})
	var out []models.Suggestion
	for _, pass := range passes {
		for _, suggestion := range pass {
			key := suggestion.DedupKey()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, suggestion)
		}
	}
	return out
}

func (s *AnalysisService) insertChunked(ctx context.Context, suggestions []models.Suggestion) error {
	for start := 0; start < len(suggestions); start += s.cfg.InsertChunkSize {
		end := start + s.cfg.InsertChunkSize
		if end > len(suggestions) {
			end = len(suggestions)
		}
		if err := s.suggestions.InsertBatch(ctx, suggestions[start:end]); err != nil {
			return err
		}
	}
	return nil
}
