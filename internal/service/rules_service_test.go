package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tidyshare/tidyshare-api/internal/models"
)

func fileItem(id, name, dir string, size int64, modified *time.Time) models.InventoryItem {
	item := models.InventoryItem{
		ID:           id,
		ScanID:       "scan-1",
		ItemID:       "graph-" + id,
		Name:         name,
		SizeBytes:    size,
		FilePath:     dir + name,
		Depth:        pathDepth(dir),
		ModifiedTime: modified,
	}
	if ext := extOf(name); ext != "" {
		item.Extension = &ext
	}
	return item
}

func folderItem(id, name, dir string) models.InventoryItem {
	return models.InventoryItem{
		ID:       id,
		ScanID:   "scan-1",
		ItemID:   "graph-" + id,
		Name:     name,
		IsFolder: true,
		FilePath: dir + name + "/",
		Depth:    pathDepth(dir),
	}
}

func pathDepth(dir string) int {
	depth := 0
	for _, r := range dir {
		if r == '/' {
			depth++
		}
	}
	return depth
}

func extOf(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			if i == 0 || i == len(name)-1 {
				return ""
			}
			return name[i+1:]
		}
	}
	return ""
}

func suggestionsByTitle(result RulesResult) map[string][]models.Suggestion {
	byTitle := make(map[string][]models.Suggestion)
	for _, s := range result.Suggestions {
		byTitle[s.Title] = append(byTitle[s.Title], s)
	}
	return byTitle
}

func TestRulesZeroByteSystemFileMatchesTwoRules(t *testing.T) {
	svc := NewRulesService(zap.NewNop())
	items := []models.InventoryItem{
		fileItem("f-1", "THUMBS.DB", "/Documents/", 0, nil),
	}

	result := svc.Analyze(items)
	byTitle := suggestionsByTitle(result)

	require.Len(t, byTitle["Empty file"], 1)
	require.Len(t, byTitle["Temporary or system file"], 1)
	assert.Equal(t, models.SeverityCritical, byTitle["Temporary or system file"][0].Severity)
	assert.Equal(t, 1.0, byTitle["Temporary or system file"][0].Confidence)

	_, claimed := result.Claimed["f-1"]
	assert.True(t, claimed)
}

func TestRulesBackupAndCopyNames(t *testing.T) {
	svc := NewRulesService(zap.NewNop())
	items := []models.InventoryItem{
		fileItem("f-1", "Copy of budget.xlsx", "/Documents/", 10, nil),
		fileItem("f-2", "report-old.docx", "/Documents/", 20, nil),
		fileItem("f-3", "photo (2).jpg", "/Documents/", 30, nil),
		fileItem("f-4", "plain.docx", "/Documents/", 40, nil),
	}

	byTitle := suggestionsByTitle(svc.Analyze(items))
	matched := byTitle["Backup or copied file"]
	require.Len(t, matched, 3)
	for _, s := range matched {
		assert.Equal(t, models.CategoryDelete, s.Category)
		assert.Equal(t, 0.8, s.Confidence)
	}
}

func TestRulesVersionSuffixStripped(t *testing.T) {
	svc := NewRulesService(zap.NewNop())
	items := []models.InventoryItem{
		fileItem("f-1", "proposal_v2_final.docx", "/Documents/", 10, nil),
	}

	byTitle := suggestionsByTitle(svc.Analyze(items))
	matched := byTitle["Version suffix in file name"]
	require.Len(t, matched, 1)
	require.NotNil(t, matched[0].SuggestedValue)
	assert.Equal(t, "proposal.docx", *matched[0].SuggestedValue)
	assert.Equal(t, models.CategoryRename, matched[0].Category)
}

func TestRulesShoutyNameLowercased(t *testing.T) {
	svc := NewRulesService(zap.NewNop())
	items := []models.InventoryItem{
		fileItem("f-1", "QUARTERLY REPORT.pdf", "/Documents/", 10, nil),
		fileItem("f-2", "OK.pdf", "/Documents/", 10, nil),
	}

	byTitle := suggestionsByTitle(svc.Analyze(items))
	matched := byTitle["All-uppercase file name"]
	require.Len(t, matched, 1)
	require.NotNil(t, matched[0].SuggestedValue)
	assert.Equal(t, "quarterly-report.pdf", *matched[0].SuggestedValue)
}

func TestRulesSpecialCharactersRemoved(t *testing.T) {
	svc := NewRulesService(zap.NewNop())
	items := []models.InventoryItem{
		fileItem("f-1", "budget #final?.xlsx", "/Documents/", 10, nil),
	}

	byTitle := suggestionsByTitle(svc.Analyze(items))
	matched := byTitle["Special characters in name"]
	require.Len(t, matched, 1)
	require.NotNil(t, matched[0].SuggestedValue)
	assert.Equal(t, "budget final.xlsx", *matched[0].SuggestedValue)
}

func TestRulesStaleAndAgingFiles(t *testing.T) {
	svc := NewRulesService(zap.NewNop())
	fiveYears := time.Now().UTC().AddDate(-5, 0, 0)
	threeYears := time.Now().UTC().AddDate(-3, 0, 0)
	recent := time.Now().UTC().AddDate(0, -1, 0)
	items := []models.InventoryItem{
		fileItem("f-1", "ancient.doc", "/Documents/", 10, &fiveYears),
		fileItem("f-2", "aging.doc", "/Documents/", 10, &threeYears),
		fileItem("f-3", "fresh.doc", "/Documents/", 10, &recent),
	}

	byTitle := suggestionsByTitle(svc.Analyze(items))
	require.Len(t, byTitle["Not modified in over four years"], 1)
	assert.Equal(t, models.CategoryDelete, byTitle["Not modified in over four years"][0].Category)
	require.Len(t, byTitle["Not modified in over two years"], 1)
	assert.Equal(t, models.CategoryArchive, byTitle["Not modified in over two years"][0].Category)
}

func TestRulesDuplicatesKeepNewest(t *testing.T) {
	svc := NewRulesService(zap.NewNop())
	older := time.Now().UTC().AddDate(0, -6, 0)
	newer := time.Now().UTC().AddDate(0, -1, 0)
	items := []models.InventoryItem{
		fileItem("f-1", "report.pdf", "/Documents/", 1000, &older),
		fileItem("f-2", "Report.pdf", "/Documents/Archive/", 1000, &newer),
		fileItem("f-3", "report.pdf", "/Documents/Other/", 999, &older),
	}

	byTitle := suggestionsByTitle(svc.Analyze(items))
	matched := byTitle["Duplicate file"]
	require.Len(t, matched, 1)
	require.NotNil(t, matched[0].FileID)
	assert.Equal(t, "f-1", *matched[0].FileID)
	assert.Contains(t, matched[0].Description, "/Documents/Archive/Report.pdf")
}

func TestRulesExtractedArchive(t *testing.T) {
	svc := NewRulesService(zap.NewNop())
	items := []models.InventoryItem{
		fileItem("f-1", "photos.zip", "/Documents/", 5000, nil),
		folderItem("d-1", "Photos", "/Documents/"),
		fileItem("f-2", "other.zip", "/Documents/", 5000, nil),
	}

	byTitle := suggestionsByTitle(svc.Analyze(items))
	matched := byTitle["Extracted archive"]
	require.Len(t, matched, 1)
	require.NotNil(t, matched[0].FileID)
	assert.Equal(t, "f-1", *matched[0].FileID)
}

func TestRulesFolderStructure(t *testing.T) {
	svc := NewRulesService(zap.NewNop())
	deep := models.InventoryItem{
		ID: "d-deep", ScanID: "scan-1", Name: "e", IsFolder: true,
		FilePath: "/a/b/c/d/e/", Depth: 5,
	}
	sparse := folderItem("d-sparse", "Lonely", "/Documents/Sub/")
	items := []models.InventoryItem{
		deep,
		sparse,
		fileItem("f-1", "only.txt", "/Documents/Sub/Lonely/", 10, nil),
	}

	crowdedParent := folderItem("d-big", "Dump", "/Documents/")
	items = append(items, crowdedParent)
	for i := 0; i < 50; i++ {
		items = append(items, fileItem(fmt.Sprintf("f-big-%d", i), fmt.Sprintf("file%02d.txt", i), "/Documents/Dump/", 10, nil))
	}

	byTitle := suggestionsByTitle(svc.Analyze(items))

	require.NotEmpty(t, byTitle["Deeply nested folder"])
	deepHit := byTitle["Deeply nested folder"][0]
	require.NotNil(t, deepHit.FileID)
	assert.Equal(t, "d-deep", *deepHit.FileID)

	var sparseHit bool
	for _, s := range byTitle["Sparse folder"] {
		if s.FileID != nil && *s.FileID == "d-sparse" {
			sparseHit = true
		}
	}
	assert.True(t, sparseHit)

	var crowdedHit bool
	for _, s := range byTitle["Overcrowded folder"] {
		if s.FileID != nil && *s.FileID == "d-big" {
			crowdedHit = true
		}
	}
	assert.True(t, crowdedHit)
}

func TestRulesCleanInventoryProducesNothing(t *testing.T) {
	svc := NewRulesService(zap.NewNop())
	recent := time.Now().UTC().AddDate(0, -2, 0)
	items := []models.InventoryItem{
		fileItem("f-1", "minutes.docx", "/Documents/", 2048, &recent),
		fileItem("f-2", "roadmap.pptx", "/Documents/", 4096, &recent),
	}

	result := svc.Analyze(items)
	assert.Empty(t, result.Suggestions)
	assert.Empty(t, result.Claimed)
}
