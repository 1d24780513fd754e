package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tidyshare/tidyshare-api/internal/dto"
	"github.com/tidyshare/tidyshare-api/internal/graph"
	"github.com/tidyshare/tidyshare-api/internal/models"
	"github.com/tidyshare/tidyshare-api/internal/repository"
	appErrors "github.com/tidyshare/tidyshare-api/pkg/errors"
)

type crawlScanStore interface {
	Create(ctx context.Context, scan *models.Scan) error
	GetByID(ctx context.Context, id string) (*models.Scan, error)
	GetForUser(ctx context.Context, id, userID string) (*models.Scan, error)
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]models.Scan, error)
	SetResolved(ctx context.Context, id string, siteID string, driveID *string) error
	UpdateStatus(ctx context.Context, id string, status models.ScanStatus, errorMessage *string) error
	AddTotals(ctx context.Context, id string, files, folders, sizeBytes int64) error
	UpdateProgress(ctx context.Context, id string, progress int) error
	Finalize(ctx context.Context, id string, files, folders, sizeBytes int64) error
}

type crawlQueueStore interface {
	InsertBatch(ctx context.Context, items []models.QueueItem) error
	ReclaimStale(ctx context.Context, scanID string, staleAfter time.Duration) (int64, error)
	SelectPending(ctx context.Context, scanID string, limit int) ([]models.QueueItem, error)
	Claim(ctx context.Context, id string) (bool, error)
	MarkDone(ctx context.Context, id string) error
	MarkError(ctx context.Context, id string, message string) error
	Counts(ctx context.Context, scanID string) (models.QueueCounts, error)
	FirstErrorMessage(ctx context.Context, scanID string) (string, error)
}

type crawlInventoryStore interface {
	InsertBatch(ctx context.Context, items []models.InventoryItem) error
	Totals(ctx context.Context, scanID string) (repository.ScanTotals, error)
}

type treeClient interface {
	Site(ctx context.Context, userID, hostname, sitePath string) (*graph.Site, error)
	Drives(ctx context.Context, userID, siteID string) ([]graph.Drive, error)
	Paginate(ctx context.Context, userID, apiPath string, fn func(items []graph.DriveItem) error) error
}

type crawlObserver interface {
	ObserveCrawlBatch(claimed, failed int)
	ObserveQueueReclaim(count int64)
}

// CrawlServiceConfig tunes batch processing.
type CrawlServiceConfig struct {
	BatchSize  int
	StaleAfter time.Duration
}

// CrawlService is the chunked, resumable crawl engine: it seeds a
// database-backed BFS queue from a resolved SharePoint root and advances it
// one bounded batch per invocation.
type CrawlService struct {
	scans     crawlScanStore
	queue     crawlQueueStore
	inventory crawlInventoryStore
	tree      treeClient
	observer  crawlObserver
	logger    *zap.Logger
	cfg       CrawlServiceConfig
}

// NewCrawlService constructs the engine with defaults.
func NewCrawlService(scans crawlScanStore, queue crawlQueueStore, inventory crawlInventoryStore, tree treeClient, observer crawlObserver, logger *zap.Logger, cfg CrawlServiceConfig) *CrawlService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 2 * time.Minute
	}
	return &CrawlService{
		scans:     scans,
		queue:     queue,
		inventory: inventory,
		tree:      tree,
		observer:  observer,
		logger:    logger,
		cfg:       cfg,
	}
}

// StartCrawl resolves the source URL, creates the scan, seeds one root queue
// item per target drive and runs the first batch cycle. Resolution and
// authorization failures surface before any scan row exists.
func (s *CrawlService) StartCrawl(ctx context.Context, userID, sourceURL string) (*models.Scan, error) {
	ref, err := graph.ResolveRoot(sourceURL)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidSourceURL.Code, appErrors.ErrInvalidSourceURL.Status, err.Error())
	}

	site, err := s.tree.Site(ctx, userID, ref.Hostname, ref.SitePath)
	if err != nil {
		return nil, s.asStartError(err, "failed to resolve site")
	}

	drives, err := s.tree.Drives(ctx, userID, site.ID)
	if err != nil {
		return nil, s.asStartError(err, "failed to list document libraries")
	}
	if len(drives) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidSourceURL, "site has no document libraries")
	}

	targets := drives
	var driveID *string
	if library := ref.LibraryName(); library != "" {
		targets = nil
		for _, d := range drives {
			if strings.EqualFold(d.Name, library) {
				targets = []graph.Drive{d}
				id := d.ID
				driveID = &id
				break
			}
		}
		if len(targets) == 0 {
			return nil, appErrors.Clone(appErrors.ErrInvalidSourceURL, fmt.Sprintf("document library %q not found on site", library))
		}
	}

	scan := &models.Scan{
		UserID:    userID,
		SourceURL: sourceURL,
		Status:    models.ScanStatusCrawling,
	}
	if err := s.scans.Create(ctx, scan); err != nil {
		return nil, err
	}
	if err := s.scans.SetResolved(ctx, scan.ID, site.ID, driveID); err != nil {
		return nil, err
	}

	roots := make([]models.QueueItem, 0, len(targets))
	for _, d := range targets {
		roots = append(roots, models.QueueItem{
			ScanID:     scan.ID,
			DriveID:    d.ID,
			APIPath:    graph.RootChildrenPath(d.ID),
			Depth:      0,
			FolderPath: "/" + d.Name + "/",
		})
	}
	if err := s.queue.InsertBatch(ctx, roots); err != nil {
		return nil, err
	}

	s.logger.Info("scan seeded",
		zap.String("scan_id", scan.ID),
		zap.String("site_id", site.ID),
		zap.Int("root_drives", len(roots)))

	if err := s.ProcessBatch(ctx, scan.ID); err != nil {
		s.logger.Warn("initial batch cycle failed", zap.String("scan_id", scan.ID), zap.Error(err))
	}

	return scan, nil
}

// ProcessBatch advances one scan by one bounded batch. It is idempotent and
// safe to invoke concurrently: items are claimed with an atomic conditional
// update, and a drained queue finalizes without further remote calls.
func (s *CrawlService) ProcessBatch(ctx context.Context, scanID string) error {
	scan, err := s.scans.GetByID(ctx, scanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return err
	}
	if !scan.Crawling() {
		return nil
	}

	reclaimed, err := s.queue.ReclaimStale(ctx, scanID, s.cfg.StaleAfter)
	if err != nil {
		return err
	}
	if reclaimed > 0 {
		s.logger.Warn("reclaimed stale queue items", zap.String("scan_id", scanID), zap.Int64("count", reclaimed))
		if s.observer != nil {
			s.observer.ObserveQueueReclaim(reclaimed)
		}
	}

	pending, err := s.queue.SelectPending(ctx, scanID, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	var batch batchTotals
	claimed, failed := 0, 0
	for _, item := range pending {
		ok, err := s.queue.Claim(ctx, item.ID)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		claimed++

		stats, err := s.expandItem(ctx, scan, item)
		if err != nil {
			failed++
			s.logger.Warn("folder expansion failed",
				zap.String("scan_id", scanID),
				zap.String("folder_path", item.FolderPath),
				zap.Error(err))
			if markErr := s.queue.MarkError(ctx, item.ID, err.Error()); markErr != nil {
				return markErr
			}
			continue
		}
		batch.add(stats)
		if err := s.queue.MarkDone(ctx, item.ID); err != nil {
			return err
		}
	}
	if s.observer != nil {
		s.observer.ObserveCrawlBatch(claimed, failed)
	}

	if batch.files > 0 || batch.folders > 0 || batch.sizeBytes > 0 {
		if err := s.scans.AddTotals(ctx, scanID, batch.files, batch.folders, batch.sizeBytes); err != nil {
			return err
		}
	}

	counts, err := s.queue.Counts(ctx, scanID)
	if err != nil {
		return err
	}
	if total := counts.Total(); total > 0 {
		progress := int(math.Round(float64(counts.Done) / float64(total) * 100))
		if progress > 99 {
			progress = 99
		}
		if err := s.scans.UpdateProgress(ctx, scanID, progress); err != nil {
			return err
		}
	}

	if counts.Drained() {
		return s.finalize(ctx, scanID, counts)
	}
	return nil
}

type batchTotals struct {
	files     int64
	folders   int64
	sizeBytes int64
}

func (b *batchTotals) add(other batchTotals) {
	b.files += other.files
	b.folders += other.folders
	b.sizeBytes += other.sizeBytes
}

// expandItem lists one folder's children, builds inventory rows for all of
// them and queue items for subfolders. Pagination completes before any write
// so a mid-listing failure leaves no partial rows behind the error mark.
func (s *CrawlService) expandItem(ctx context.Context, scan *models.Scan, item models.QueueItem) (batchTotals, error) {
	var (
		stats     batchTotals
		inventory []models.InventoryItem
		children  []models.QueueItem
	)

	err := s.tree.Paginate(ctx, scan.UserID, item.APIPath, func(items []graph.DriveItem) error {
		for _, child := range items {
			row := buildInventoryItem(scan.ID, item, child)
			inventory = append(inventory, row)
			if child.IsFolder() {
				stats.folders++
				itemID := child.ID
				children = append(children, models.QueueItem{
					ScanID:       scan.ID,
					DriveID:      item.DriveID,
					APIPath:      graph.ChildrenPath(item.DriveID, child.ID),
					ParentItemID: &itemID,
					Depth:        item.Depth + 1,
					FolderPath:   row.FilePath,
				})
			} else {
				stats.files++
				stats.sizeBytes += child.Size
			}
		}
		return nil
	})
	if err != nil {
		return batchTotals{}, err
	}

	if err := s.inventory.InsertBatch(ctx, inventory); err != nil {
		return batchTotals{}, err
	}
	if err := s.queue.InsertBatch(ctx, children); err != nil {
		return batchTotals{}, err
	}
	return stats, nil
}

func buildInventoryItem(scanID string, parent models.QueueItem, child graph.DriveItem) models.InventoryItem {
	filePath := parent.FolderPath + child.Name
	if child.IsFolder() {
		filePath += "/"
	}

	row := models.InventoryItem{
		ScanID:    scanID,
		ItemID:    child.ID,
		Name:      child.Name,
		SizeBytes: child.Size,
		IsFolder:  child.IsFolder(),
		FilePath:  filePath,
		Depth:     parent.Depth + 1,
	}
	if !child.IsFolder() {
		if ext := strings.TrimPrefix(path.Ext(child.Name), "."); ext != "" {
			lower := strings.ToLower(ext)
			row.Extension = &lower
		}
	}
	if child.CreatedDateTime != nil {
		t := *child.CreatedDateTime
		row.CreatedTime = &t
	}
	if child.LastModifiedDateTime != nil {
		t := *child.LastModifiedDateTime
		row.ModifiedTime = &t
	}
	if child.CreatedBy != nil && child.CreatedBy.User.DisplayName != "" {
		name := child.CreatedBy.User.DisplayName
		row.CreatedBy = &name
	}
	if child.LastModifiedBy != nil && child.LastModifiedBy.User.DisplayName != "" {
		name := child.LastModifiedBy.User.DisplayName
		row.ModifiedBy = &name
	}
	if parent.ParentItemID != nil {
		id := *parent.ParentItemID
		row.ParentItemID = &id
	}
	if child.WebURL != "" {
		u := child.WebURL
		row.WebURL = &u
	}
	if child.File != nil && child.File.Hashes != nil {
		hash := child.File.Hashes.QuickXorHash
		if hash == "" {
			hash = child.File.Hashes.SHA1Hash
		}
		if hash != "" {
			row.ContentHash = &hash
		}
	}
	return row
}

// finalize flips the scan out of crawling once the queue drains. A crawl
// where nothing succeeded and at least one folder failed is a failed crawl.
func (s *CrawlService) finalize(ctx context.Context, scanID string, counts models.QueueCounts) error {
	if counts.Done == 0 && counts.Errored > 0 {
		message, err := s.queue.FirstErrorMessage(ctx, scanID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if message == "" {
			message = "all folders failed to expand"
		}
		s.logger.Error("crawl failed", zap.String("scan_id", scanID), zap.String("error", message))
		return s.scans.UpdateStatus(ctx, scanID, models.ScanStatusError, &message)
	}

	totals, err := s.inventory.Totals(ctx, scanID)
	if err != nil {
		return err
	}
	if err := s.scans.Finalize(ctx, scanID, totals.Files, totals.Folders, totals.SizeBytes); err != nil {
		return err
	}
	s.logger.Info("crawl finalized",
		zap.String("scan_id", scanID),
		zap.Int64("files", totals.Files),
		zap.Int64("folders", totals.Folders),
		zap.Int64("bytes", totals.SizeBytes))
	return nil
}

// PollCrawl reports crawl state to the owner and, while the scan is still
// crawling, advances it by one batch cycle. Work only proceeds while someone
// is watching.
func (s *CrawlService) PollCrawl(ctx context.Context, userID, scanID string) (dto.ScanStatusResponse, error) {
	scan, err := s.scans.GetForUser(ctx, scanID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dto.ScanStatusResponse{}, appErrors.ErrNotFound
		}
		return dto.ScanStatusResponse{}, err
	}

	if scan.Crawling() {
		if err := s.ProcessBatch(ctx, scanID); err != nil {
			s.logger.Warn("batch cycle failed during poll", zap.String("scan_id", scanID), zap.Error(err))
		}
		if refreshed, err := s.scans.GetForUser(ctx, scanID, userID); err == nil {
			scan = refreshed
		}
	}

	return dto.ScanStatusFromModel(scan), nil
}

// ListScans returns the owner's scans.
func (s *CrawlService) ListScans(ctx context.Context, userID string, limit, offset int) ([]models.Scan, error) {
	return s.scans.ListForUser(ctx, userID, limit, offset)
}

func (s *CrawlService) asStartError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInvalidSourceURL.Code, appErrors.ErrInvalidSourceURL.Status, message+": "+err.Error())
}
