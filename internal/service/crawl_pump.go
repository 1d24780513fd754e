package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/tidyshare/tidyshare-api/internal/models"
	"github.com/tidyshare/tidyshare-api/pkg/jobs"
)

type pumpScanStore interface {
	ListActive(ctx context.Context) ([]models.Scan, error)
}

type batchProcessor interface {
	ProcessBatch(ctx context.Context, scanID string) error
}

// CrawlPumpConfig tunes the background advancement loop.
type CrawlPumpConfig struct {
	Interval    time.Duration
	Concurrency int
}

// CrawlPump optionally advances active scans in the background so crawls make
// progress between client polls. Polling stays the primary driver; the pump
// only enqueues the same batch cycles a poll would.
type CrawlPump struct {
	scans  pumpScanStore
	queue  *jobs.Queue
	cron   *cron.Cron
	logger *zap.Logger
	cfg    CrawlPumpConfig
}

// NewCrawlPump wires a cron schedule to a worker queue of batch cycles.
func NewCrawlPump(scans pumpScanStore, processor batchProcessor, logger *zap.Logger, cfg CrawlPumpConfig) *CrawlPump {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}

	queue := jobs.NewQueue("crawl-pump", func(ctx context.Context, job jobs.Job) error {
		return processor.ProcessBatch(ctx, job.ScanID)
	}, jobs.QueueConfig{
		Workers: cfg.Concurrency,
		Logger:  logger,
	})

	return &CrawlPump{
		scans:  scans,
		queue:  queue,
		cron:   cron.New(),
		logger: logger,
		cfg:    cfg,
	}
}

// Start launches the workers and the tick schedule.
func (p *CrawlPump) Start(ctx context.Context) error {
	p.queue.Start(ctx)
	spec := fmt.Sprintf("@every %s", p.cfg.Interval)
	if _, err := p.cron.AddFunc(spec, func() { p.tick(ctx) }); err != nil {
		return fmt.Errorf("schedule crawl pump: %w", err)
	}
	p.cron.Start()
	p.logger.Info("crawl pump started", zap.Duration("interval", p.cfg.Interval), zap.Int("workers", p.cfg.Concurrency))
	return nil
}

// Stop halts the schedule and drains the workers.
func (p *CrawlPump) Stop() {
	stopCtx := p.cron.Stop()
	<-stopCtx.Done()
	p.queue.Stop()
}

func (p *CrawlPump) tick(ctx context.Context) {
	scans, err := p.scans.ListActive(ctx)
	if err != nil {
		p.logger.Warn("crawl pump failed to list active scans", zap.Error(err))
		return
	}
	for _, scan := range scans {
		job := jobs.Job{ID: uuid.NewString(), ScanID: scan.ID, Kind: "advance"}
		if err := p.queue.Enqueue(job); err != nil {
			p.logger.Warn("crawl pump enqueue failed", zap.String("scan_id", scan.ID), zap.Error(err))
			return
		}
	}
}
