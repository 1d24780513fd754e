package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tidyshare/tidyshare-api/internal/classifier"
	"github.com/tidyshare/tidyshare-api/internal/models"
)

const classifierSystemPrompt = `You review file share inventories and propose cleanup actions.
Return JSON: {"suggestions":[{"category","severity","title","description","file_path","suggested_value","confidence"}]}.
Categories: delete, archive, rename, structure. Severities: low, medium, high, critical.
Be conservative with delete: only suggest it when the file is clearly redundant or worthless,
and prefer archive or rename when in doubt. Reference items only by their exact file_path.`

type aiClassifier interface {
	Configured() bool
	Classify(ctx context.Context, systemPrompt string, payload interface{}) (*classifier.Response, error)
}

type aiObserver interface {
	ObserveClassifierChunk(success bool)
}

// AIService runs the optional model-backed pass over inventory the rules
// engine left unclaimed. Chunk failures degrade the result, never fail the
// analysis.
type AIService struct {
	client    aiClassifier
	observer  aiObserver
	logger    *zap.Logger
	chunkSize int
}

// NewAIService constructs the AI pass.
func NewAIService(client aiClassifier, observer aiObserver, chunkSize int, logger *zap.Logger) *AIService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if chunkSize <= 0 {
		chunkSize = 500
	}
	return &AIService{client: client, observer: observer, logger: logger, chunkSize: chunkSize}
}

// Enabled reports whether the classifier is configured.
func (s *AIService) Enabled() bool {
	return s.client != nil && s.client.Configured()
}

type classifierItem struct {
	Path         string  `json:"path"`
	Name         string  `json:"name"`
	Extension    *string `json:"extension,omitempty"`
	SizeBytes    int64   `json:"size_bytes"`
	IsFolder     bool    `json:"is_folder"`
	Depth        int     `json:"depth"`
	CreatedTime  *string `json:"created_time,omitempty"`
	CreatedBy    *string `json:"created_by,omitempty"`
	ModifiedTime *string `json:"modified_time,omitempty"`
	ModifiedBy   *string `json:"modified_by,omitempty"`
}

// Analyze classifies the unclaimed inventory chunk by chunk and returns the
// validated suggestion drafts.
func (s *AIService) Analyze(ctx context.Context, scanID string, items []models.InventoryItem, claimed map[string]struct{}) []models.Suggestion {
	if !s.Enabled() {
		return nil
	}

	remaining := make([]models.InventoryItem, 0, len(items))
	byPath := make(map[string]models.InventoryItem, len(items))
	for _, item := range items {
		byPath[item.FilePath] = item
		if _, taken := claimed[item.ID]; taken {
			continue
		}
		remaining = append(remaining, item)
	}
	if len(remaining) == 0 {
		return nil
	}

	chunks := chunkBySegment(remaining, s.chunkSize)
	var out []models.Suggestion
	for i, chunk := range chunks {
		suggestions, err := s.classifyChunk(ctx, scanID, chunk, byPath)
		if err != nil {
			if s.observer != nil {
				s.observer.ObserveClassifierChunk(false)
			}
			s.logger.Warn("classifier chunk failed",
				zap.String("scan_id", scanID),
				zap.Int("chunk", i),
				zap.Int("items", len(chunk)),
				zap.Error(err))
			continue
		}
		if s.observer != nil {
			s.observer.ObserveClassifierChunk(true)
		}
		out = append(out, suggestions...)
	}
	return out
}

func (s *AIService) classifyChunk(ctx context.Context, scanID string, chunk []models.InventoryItem, byPath map[string]models.InventoryItem) ([]models.Suggestion, error) {
	payload := make([]classifierItem, 0, len(chunk))
	for _, item := range chunk {
		entry := classifierItem{
			Path:       item.FilePath,
			Name:       item.Name,
			Extension:  item.Extension,
			SizeBytes:  item.SizeBytes,
			IsFolder:   item.IsFolder,
			Depth:      item.Depth,
			CreatedBy:  item.CreatedBy,
			ModifiedBy: item.ModifiedBy,
		}
		if item.CreatedTime != nil {
			ts := item.CreatedTime.Format(time.RFC3339)
			entry.CreatedTime = &ts
		}
		if item.ModifiedTime != nil {
			ts := item.ModifiedTime.Format(time.RFC3339)
			entry.ModifiedTime = &ts
		}
		payload = append(payload, entry)
	}

	resp, err := s.client.Classify(ctx, classifierSystemPrompt, payload)
	if err != nil {
		return nil, err
	}

	var out []models.Suggestion
	for _, raw := range resp.Suggestions {
		suggestion, ok := s.validate(scanID, raw, byPath)
		if !ok {
			continue
		}
		out = append(out, suggestion)
	}
	return out, nil
}

// validate drops malformed entries and maps the returned path back to its
// inventory row when one exists.
func (s *AIService) validate(scanID string, raw classifier.RawSuggestion, byPath map[string]models.InventoryItem) (models.Suggestion, bool) {
	category := models.SuggestionCategory(strings.ToLower(raw.Category))
	switch category {
	case models.CategoryDelete, models.CategoryArchive, models.CategoryRename, models.CategoryStructure:
	default:
		return models.Suggestion{}, false
	}

	severity := models.SuggestionSeverity(strings.ToLower(raw.Severity))
	switch severity {
	case models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical:
	default:
		severity = models.SeverityLow
	}

	if raw.Title == "" || raw.FilePath == "" {
		return models.Suggestion{}, false
	}

	confidence := raw.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	// A path the model invented still surfaces to the user, just without an
	// inventory reference.
	var fileID *string
	currentValue := raw.FilePath
	if item, found := byPath[raw.FilePath]; found {
		id := item.ID
		fileID = &id
		currentValue = item.FilePath
	}

	return models.Suggestion{
		ScanID:         scanID,
		FileID:         fileID,
		Category:       category,
		Severity:       severity,
		Title:          raw.Title,
		Description:    raw.Description,
		CurrentValue:   currentValue,
		SuggestedValue: raw.SuggestedValue,
		Confidence:     confidence,
		Source:         models.SourceAI,
		UserDecision:   models.DecisionPending,
	}, true
}

// chunkBySegment groups items by their top-level path segment and packs whole
// groups into chunks of at most size items. A group larger than the chunk
// size is split only when it starts an empty chunk.
func chunkBySegment(items []models.InventoryItem, size int) [][]models.InventoryItem {
	groups := make(map[string][]models.InventoryItem)
	for _, item := range items {
		groups[topSegment(item.FilePath)] = append(groups[topSegment(item.FilePath)], item)
	}

	segments := make([]string, 0, len(groups))
	for segment := range groups {
		segments = append(segments, segment)
	}
	sort.Strings(segments)

	var chunks [][]models.InventoryItem
	var current []models.InventoryItem
	for _, segment := range segments {
		group := groups[segment]
		if len(current) > 0 && len(current)+len(group) > size {
			chunks = append(chunks, current)
			current = nil
		}
		if len(current) == 0 && len(group) > size {
			for start := 0; start < len(group); start += size {
				end := start + size
				if end > len(group) {
					end = len(group)
				}
				chunks = append(chunks, group[start:end])
			}
			continue
		}
		current = append(current, group...)
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

func topSegment(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if i := strings.Index(trimmed, "/"); i >= 0 {
		return trimmed[:i]
	}
	return trimmed
}
