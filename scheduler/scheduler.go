// Package scheduler owns the run lifecycle: the periodic trigger, the
// single-flight guard and the aggregation of run-level outcomes.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"housemarket-scraper/config"
	"housemarket-scraper/fetch"
	"housemarket-scraper/models"
	"housemarket-scraper/services"
	"housemarket-scraper/storage"
	"housemarket-scraper/utils"
)

// RunAbortError is run-fatal: the listing index was unreachable or the run
// produced zero usable records. It always surfaces as a failed run.
type RunAbortError struct {
	Reason string
	Err    error
}

func (e *RunAbortError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("run aborted: %s: %v", e.Reason, e.Err)
	}
	return "run aborted: " + e.Reason
}

func (e *RunAbortError) Unwrap() error { return e.Err }

// Pipeline is the site adapter the coordinator drives.
type Pipeline interface {
	// CollectListings enumerates the run's listing summaries. Its error is
	// index-level and aborts the run.
	CollectListings(ctx context.Context) (records []*models.ListingRecord, discarded int, err error)
	// FetchDetails enriches one summary from its detail page.
	FetchDetails(ctx context.Context, rec *models.ListingRecord) error
}

// Coordinator executes scrape runs one at a time. Concurrent triggers while
// a run is in flight are skipped, not queued.
type Coordinator struct {
	cfg        *config.Config
	pipeline   Pipeline
	reconciler *services.Reconciler
	store      storage.ListingStore
	csv        *storage.CSVWriter
	logger     *utils.Logger

	running atomic.Bool
}

// NewCoordinator wires a Coordinator. csv may be nil to disable the
// per-run export.
func NewCoordinator(cfg *config.Config, pipeline Pipeline, reconciler *services.Reconciler,
	store storage.ListingStore, csv *storage.CSVWriter, logger *utils.Logger) *Coordinator {
	return &Coordinator{
		cfg:        cfg,
		pipeline:   pipeline,
		reconciler: reconciler,
		store:      store,
		csv:        csv,
		logger:     logger,
	}
}

// Start runs the startup-populate check and then the periodic loop until
// ctx is cancelled. The first scheduled run happens immediately.
func (c *Coordinator) Start(ctx context.Context) {
	if c.cfg.StartupPopulate {
		count, err := c.store.Count()
		if err != nil {
			c.logger.Error("[scheduler] Startup count failed: %v", err)
		} else if count == 0 {
			c.logger.Info("[scheduler] Store is empty — running startup populate")
			c.RunOnce(ctx)
		}
	}

	if !c.cfg.SchedulerEnabled {
		return
	}

	interval := time.Duration(c.cfg.RunIntervalMinutes) * time.Minute
	c.logger.Info("[scheduler] Periodic runs every %v", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		c.RunOnce(ctx)

		select {
		case <-ctx.Done():
			c.logger.Info("[scheduler] Shutdown requested, stopping")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce executes one full scrape pass and returns its report. When a run
// is already in flight the trigger is a logged no-op with a skipped report.
func (c *Coordinator) RunOnce(ctx context.Context) *models.RunReport {
	if !c.running.CompareAndSwap(false, true) {
		c.logger.Warn("[scheduler] Run already in progress — skipping trigger")
		now := time.Now().UTC()
		return &models.RunReport{StartedAt: now, FinishedAt: now, Status: models.RunSkipped}
	}
	defer c.running.Store(false)

	report := &models.RunReport{StartedAt: time.Now().UTC()}
	c.logger.Info("[scheduler] Run started")

	c.execute(ctx, report)

	report.FinishedAt = time.Now().UTC()
	c.logger.Info("[scheduler] Run %s in %v — seen: %d, new: %d, updated: %d, delisted: %d, errors: %d",
		report.Status, report.Duration().Round(time.Millisecond),
		report.ListingsSeen, report.ListingsNew, report.ListingsUpdated,
		report.ListingsDelisted, len(report.Errors))
	return report
}

func (c *Coordinator) execute(ctx context.Context, report *models.RunReport) {
	summaries, discarded, err := c.pipeline.CollectListings(ctx)
	if err != nil {
		abort := &RunAbortError{Reason: "listing index unreachable", Err: err}
		c.logger.Error("[scheduler] %v", abort)
		report.Errors = append(report.Errors, models.RunError{Stage: "fetch", Message: abort.Error()})
		report.Status = models.RunFailed
		return
	}
	for i := 0; i < discarded; i++ {
		report.Errors = append(report.Errors, models.RunError{
			Stage: "extract", Message: "listing discarded: no identity from any strategy",
		})
	}
	if len(summaries) == 0 {
		abort := &RunAbortError{Reason: "zero listings extracted from index"}
		c.logger.Error("[scheduler] %v", abort)
		report.Errors = append(report.Errors, models.RunError{Stage: "extract", Message: abort.Error()})
		report.Status = models.RunFailed
		return
	}
	report.ListingsSeen = len(summaries)

	var mu sync.Mutex
	seen := make(map[string]struct{})

	pool := utils.NewWorkerPool(c.cfg.MaxConcurrency, c.cfg.RateLimitMs)
	for _, summary := range summaries {
		rec := summary
		pool.SubmitCtx(ctx, func() {
			if err := c.pipeline.FetchDetails(ctx, rec); err != nil {
				// Detail failures degrade the record; the summary fields
				// still get reconciled, matching the index view.
				mu.Lock()
				report.Errors = append(report.Errors, models.RunError{
					URL: rec.URL, Stage: stageOf(err), Message: err.Error(),
				})
				mu.Unlock()
				if errors.Is(err, context.Canceled) {
					return
				}
			}

			outcome, err := c.reconciler.Apply(rec)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Errors = append(report.Errors, models.RunError{
					URL: rec.URL, Stage: "validate", Message: err.Error(),
				})
				return
			}

			seen[rec.SourceID] = struct{}{}
			switch outcome {
			case services.OutcomeNew:
				report.ListingsNew++
			case services.OutcomeUpdated:
				report.ListingsUpdated++
			}
		})
	}
	pool.Wait()

	if ctx.Err() != nil {
		c.logger.Warn("[scheduler] Run cancelled after %d listings", len(seen))
		report.Status = models.RunFailed
		return
	}

	if len(seen) == 0 {
		abort := &RunAbortError{Reason: "zero records reconciled"}
		c.logger.Error("[scheduler] %v", abort)
		report.Errors = append(report.Errors, models.RunError{Stage: "validate", Message: abort.Error()})
		report.Status = models.RunFailed
		return
	}

	delisted, err := c.reconciler.Delist(seen)
	if err != nil {
		c.logger.Error("[scheduler] Delist pass failed: %v", err)
		report.Errors = append(report.Errors, models.RunError{Stage: "validate", Message: err.Error()})
		report.Status = models.RunFailed
		return
	}
	report.ListingsDelisted = delisted

	if c.csv != nil {
		if err := c.csv.WriteRecords(summaries); err != nil {
			c.logger.Warn("[scheduler] CSV export failed: %v", err)
		}
	}

	if len(report.Errors) > 0 {
		report.Status = models.RunPartial
	} else {
		report.Status = models.RunSuccess
	}
}

func stageOf(err error) string {
	var fe *fetch.Error
	if errors.As(err, &fe) {
		return "fetch"
	}
	return "extract"
}
