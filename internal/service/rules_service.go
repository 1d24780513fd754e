package service

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tidyshare/tidyshare-api/internal/models"
)

// RulesResult carries the deterministic pass output: suggestion drafts plus
// the set of inventory row ids claimed by at least one rule. Claimed items
// are excluded from the AI pass.
type RulesResult struct {
	Suggestions []models.Suggestion
	Claimed     map[string]struct{}
}

// RulesService is the deterministic multi-pass classifier. Every rule is a
// total function over the inventory; an item may match several rules and the
// later dedup stage resolves overlaps.
type RulesService struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewRulesService constructs the classifier.
func NewRulesService(logger *zap.Logger) *RulesService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RulesService{logger: logger, now: time.Now}
}

var (
	tempNamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^~\$`),
		regexp.MustCompile(`(?i)^\._`),
		regexp.MustCompile(`(?i)^\.ds_store$`),
		regexp.MustCompile(`(?i)^thumbs\.db$`),
		regexp.MustCompile(`(?i)^desktop\.ini$`),
		regexp.MustCompile(`(?i)\.(tmp|temp|crdownload|partial)$`),
	}

	backupNamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^copy of `),
		regexp.MustCompile(`(?i)[-_](backup|bak|old)(\.[^.]+)?$`),
		regexp.MustCompile(`(?i)_copy(\.[^.]+)?$`),
		regexp.MustCompile(`(?i) \(\d+\)(\.[^.]+)?$`),
	}

	versionSuffixPattern = regexp.MustCompile(`(?i)[ _-](v\d+|final|draft|rev\d*|revised)$`)

	shoutyNamePattern = regexp.MustCompile(`^[A-Z0-9 _-]{8,}$`)
	anyLetterPattern  = regexp.MustCompile(`[A-Z]`)

	disallowedChars = "<>:\"|?*#%&{}$~'@+="

	multiSpacePattern = regexp.MustCompile(` {2,}`)

	archiveExtensions = []string{".tar.gz", ".tgz", ".zip", ".rar", ".7z"}
)

const (
	staleYears   = 4
	agingYears   = 2
	deepDepth    = 4
	sparseMax    = 2
	crowdedCount = 50
)

// Analyze runs all rules over one scan's inventory.
func (s *RulesService) Analyze(items []models.InventoryItem) RulesResult {
	result := RulesResult{Claimed: make(map[string]struct{})}

	children := indexChildren(items)

	passes := []func([]models.InventoryItem, childIndex) []models.Suggestion{
		s.emptyFiles,
		s.tempFiles,
		s.backupCopies,
		s.versionedNames,
		s.shoutyNames,
		s.specialCharNames,
		s.staleFiles,
		s.duplicateFiles,
		s.extractedArchives,
		s.deepFolders,
		s.sparseFolders,
		s.crowdedFolders,
	}

	for _, pass := range passes {
		for _, suggestion := range pass(items, children) {
			if suggestion.FileID != nil {
				result.Claimed[*suggestion.FileID] = struct{}{}
			}
			result.Suggestions = append(result.Suggestions, suggestion)
		}
	}

	s.logger.Debug("rules pass complete",
		zap.Int("inventory", len(items)),
		zap.Int("suggestions", len(result.Suggestions)),
		zap.Int("claimed", len(result.Claimed)))
	return result
}

type childCounts struct {
	files int
	total int
}

type childIndex struct {
	byParent map[string]childCounts
	folders  map[string]struct{}
}

// indexChildren tallies direct children per folder path and records folder
// paths keyed by (parent, lowercased name) for sibling lookups.
func indexChildren(items []models.InventoryItem) childIndex {
	idx := childIndex{
		byParent: make(map[string]childCounts),
		folders:  make(map[string]struct{}),
	}
	for _, item := range items {
		parent := parentPath(item)
		counts := idx.byParent[parent]
		counts.total++
		if !item.IsFolder {
			counts.files++
		}
		idx.byParent[parent] = counts
		if item.IsFolder {
			idx.folders[parent+strings.ToLower(item.Name)+"/"] = struct{}{}
		}
	}
	return idx
}

func parentPath(item models.InventoryItem) string {
	p := strings.TrimSuffix(item.FilePath, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[:i+1]
	}
	return "/"
}

func draft(item models.InventoryItem, category models.SuggestionCategory, severity models.SuggestionSeverity, title, description string, suggested *string, confidence float64) models.Suggestion {
	id := item.ID
	return models.Suggestion{
		ScanID:         item.ScanID,
		FileID:         &id,
		Category:       category,
		Severity:       severity,
		Title:          title,
		Description:    description,
		CurrentValue:   item.FilePath,
		SuggestedValue: suggested,
		Confidence:     confidence,
		Source:         models.SourceRules,
		UserDecision:   models.DecisionPending,
	}
}

// Rule 1: zero-byte files carry no content worth keeping.
func (s *RulesService) emptyFiles(items []models.InventoryItem, _ childIndex) []models.Suggestion {
	var out []models.Suggestion
	for _, item := range items {
		if item.IsFolder || item.SizeBytes != 0 {
			continue
		}
		out = append(out, draft(item, models.CategoryDelete, models.SeverityHigh,
			"Empty file",
			fmt.Sprintf("%q is 0 bytes and contains no data.", item.Name),
			nil, 0.95))
	}
	return out
}

// Rule 2: editor lockfiles, OS metadata and temp extensions.
func (s *RulesService) tempFiles(items []models.InventoryItem, _ childIndex) []models.Suggestion {
	var out []models.Suggestion
	for _, item := range items {
		if item.IsFolder {
			continue
		}
		for _, pattern := range tempNamePatterns {
			if pattern.MatchString(item.Name) {
				out = append(out, draft(item, models.CategoryDelete, models.SeverityCritical,
					"Temporary or system file",
					fmt.Sprintf("%q matches a temporary or system file pattern and should never live in a shared library.", item.Name),
					nil, 1.0))
				break
			}
		}
	}
	return out
}

// Rule 3: manual backup/copy naming conventions.
func (s *RulesService) backupCopies(items []models.InventoryItem, _ childIndex) []models.Suggestion {
	var out []models.Suggestion
	for _, item := range items {
		if item.IsFolder {
			continue
		}
		for _, pattern := range backupNamePatterns {
			if pattern.MatchString(item.Name) {
				out = append(out, draft(item, models.CategoryDelete, models.SeverityHigh,
					"Backup or copied file",
					fmt.Sprintf("%q follows a backup/copy naming convention; the original likely supersedes it.", item.Name),
					nil, 0.8))
				break
			}
		}
	}
	return out
}

// Rule 4: version suffixes in the base name; the suggestion strips every
// matching suffix and trims trailing separators.
func (s *RulesService) versionedNames(items []models.InventoryItem, _ childIndex) []models.Suggestion {
	var out []models.Suggestion
	for _, item := range items {
		if item.IsFolder {
			continue
		}
		base := item.BaseName()
		stripped := base
		for {
			next := versionSuffixPattern.ReplaceAllString(stripped, "")
			if next == stripped {
				break
			}
			stripped = next
		}
		if stripped == base {
			continue
		}
		stripped = strings.TrimRight(stripped, " _-.")
		if stripped == "" {
			continue
		}
		suggested := stripped
		if item.Extension != nil {
			suggested += "." + *item.Extension
		}
		out = append(out, draft(item, models.CategoryRename, models.SeverityMedium,
			"Version suffix in file name",
			fmt.Sprintf("%q embeds version markers in its name; version history belongs to the library, not the file name.", item.Name),
			&suggested, 0.75))
	}
	return out
}

// Rule 5: long all-caps names read like shouting; suggest a lowercase,
// hyphenated form.
func (s *RulesService) shoutyNames(items []models.InventoryItem, _ childIndex) []models.Suggestion {
	var out []models.Suggestion
	for _, item := range items {
		if item.IsFolder {
			continue
		}
		base := item.BaseName()
		if !shoutyNamePattern.MatchString(base) || !anyLetterPattern.MatchString(base) {
			continue
		}
		suggested := strings.ReplaceAll(strings.ToLower(base), " ", "-")
		if item.Extension != nil {
			suggested += "." + *item.Extension
		}
		out = append(out, draft(item, models.CategoryRename, models.SeverityLow,
			"All-uppercase file name",
			fmt.Sprintf("%q is written entirely in capitals.", item.Name),
			&suggested, 0.7))
	}
	return out
}

// Rule 6: characters that break links and sync clients.
func (s *RulesService) specialCharNames(items []models.InventoryItem, _ childIndex) []models.Suggestion {
	var out []models.Suggestion
	for _, item := range items {
		if !strings.ContainsAny(item.Name, disallowedChars) {
			continue
		}
		cleaned := strings.Map(func(r rune) rune {
			if strings.ContainsRune(disallowedChars, r) {
				return -1
			}
			return r
		}, item.Name)
		cleaned = strings.TrimSpace(multiSpacePattern.ReplaceAllString(cleaned, " "))
		if cleaned == "" || cleaned == item.Name {
			continue
		}
		suggested := cleaned
		out = append(out, draft(item, models.CategoryRename, models.SeverityMedium,
			"Special characters in name",
			fmt.Sprintf("%q contains characters that break links and sync clients.", item.Name),
			&suggested, 0.85))
	}
	return out
}

// Rule 7: age-based cleanup. Files untouched for more than four years are
// delete candidates; two to four years suggests archival.
func (s *RulesService) staleFiles(items []models.InventoryItem, _ childIndex) []models.Suggestion {
	now := s.now().UTC()
	var out []models.Suggestion
	for _, item := range items {
		if item.IsFolder || item.ModifiedTime == nil {
			continue
		}
		age := now.Sub(*item.ModifiedTime)
		years := age.Hours() / (24 * 365)
		switch {
		case years > staleYears:
			out = append(out, draft(item, models.CategoryDelete, models.SeverityMedium,
				"Not modified in over four years",
				fmt.Sprintf("%q was last modified %s.", item.Name, item.ModifiedTime.Format("2006-01-02")),
				nil, 0.6))
		case years > agingYears:
			out = append(out, draft(item, models.CategoryArchive, models.SeverityMedium,
				"Not modified in over two years",
				fmt.Sprintf("%q was last modified %s and could move to an archive location.", item.Name, item.ModifiedTime.Format("2006-01-02")),
				nil, 0.65))
		}
	}
	return out
}

// Rule 8: files sharing a lowercased name and byte size are treated as
// copies. The most recently modified member is the implied original; every
// other member gets a delete suggestion referencing it.
func (s *RulesService) duplicateFiles(items []models.InventoryItem, _ childIndex) []models.Suggestion {
	groups := make(map[string][]models.InventoryItem)
	for _, item := range items {
		if item.IsFolder {
			continue
		}
		key := fmt.Sprintf("%s|%d", strings.ToLower(item.Name), item.SizeBytes)
		groups[key] = append(groups[key], item)
	}

	keys := make([]string, 0, len(groups))
	for key, members := range groups {
		if len(members) >= 2 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var out []models.Suggestion
	for _, key := range keys {
		members := groups[key]
		sort.SliceStable(members, func(i, j int) bool {
			return modifiedAfter(members[i], members[j])
		})
		original := members[0]
		for _, dup := range members[1:] {
			out = append(out, draft(dup, models.CategoryDelete, models.SeverityHigh,
				"Duplicate file",
				fmt.Sprintf("%q has the same name and size as %s, which is newer and kept as the original.", dup.Name, original.FilePath),
				nil, 0.85))
		}
	}
	return out
}

func modifiedAfter(a, b models.InventoryItem) bool {
	switch {
	case a.ModifiedTime == nil:
		return false
	case b.ModifiedTime == nil:
		return true
	default:
		return a.ModifiedTime.After(*b.ModifiedTime)
	}
}

// Rule 9: an archive next to a folder of the same base name has almost
// certainly been extracted already.
func (s *RulesService) extractedArchives(items []models.InventoryItem, idx childIndex) []models.Suggestion {
	var out []models.Suggestion
	for _, item := range items {
		if item.IsFolder {
			continue
		}
		base, ok := archiveBaseName(item.Name)
		if !ok {
			continue
		}
		sibling := parentPath(item) + strings.ToLower(base) + "/"
		if _, exists := idx.folders[sibling]; !exists {
			continue
		}
		out = append(out, draft(item, models.CategoryDelete, models.SeverityMedium,
			"Extracted archive",
			fmt.Sprintf("%q sits next to a folder named %q; its contents appear to be extracted already.", item.Name, base),
			nil, 0.75))
	}
	return out
}

func archiveBaseName(name string) (string, bool) {
	lower := strings.ToLower(name)
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(lower, ext) && len(name) > len(ext) {
			return name[:len(name)-len(ext)], true
		}
	}
	return "", false
}

// Rule 10: folders nested deeper than four levels.
func (s *RulesService) deepFolders(items []models.InventoryItem, _ childIndex) []models.Suggestion {
	var out []models.Suggestion
	for _, item := range items {
		if !item.IsFolder || item.Depth <= deepDepth {
			continue
		}
		out = append(out, draft(item, models.CategoryStructure, models.SeverityHigh,
			"Deeply nested folder",
			fmt.Sprintf("%s is %d levels deep; content this buried is rarely found again.", item.FilePath, item.Depth),
			nil, 0.8))
	}
	return out
}

// Rule 11: folders holding only one or two files below the top level.
func (s *RulesService) sparseFolders(items []models.InventoryItem, idx childIndex) []models.Suggestion {
	var out []models.Suggestion
	for _, item := range items {
		if !item.IsFolder || item.Depth <= 1 {
			continue
		}
		counts := idx.byParent[item.FilePath]
		if counts.files < 1 || counts.files > sparseMax {
			continue
		}
		out = append(out, draft(item, models.CategoryStructure, models.SeverityMedium,
			"Sparse folder",
			fmt.Sprintf("%s holds only %d file(s); its contents could move up a level.", item.FilePath, counts.files),
			nil, 0.7))
	}
	return out
}

// Rule 12: folders with fifty or more direct children.
func (s *RulesService) crowdedFolders(items []models.InventoryItem, idx childIndex) []models.Suggestion {
	var out []models.Suggestion
	for _, item := range items {
		if !item.IsFolder {
			continue
		}
		counts := idx.byParent[item.FilePath]
		if counts.total < crowdedCount {
			continue
		}
		out = append(out, draft(item, models.CategoryStructure, models.SeverityMedium,
			"Overcrowded folder",
			fmt.Sprintf("%s has %d direct children; consider splitting it into subfolders.", item.FilePath, counts.total),
			nil, 0.75))
	}
	return out
}
