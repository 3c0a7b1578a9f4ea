package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Ibino273/raspi-moto-scraper/models"
	"github.com/Ibino273/raspi-moto-scraper/storage"
	"github.com/Ibino273/raspi-moto-scraper/utils"
)

// Options configures one Orchestrator run.
type Options struct {
	Limits       Limits
	ListingDelay *utils.Pacer
	PageDelay    *utils.Pacer
	NavRetry     *utils.RetryConfig
	StoreRetry   *utils.RetryConfig
	Now          func() time.Time
}

// Orchestrator drives a full run: paginate, fetch details, normalize and
// reconcile each listing. A failure on one listing or page never stops the
// others.
type Orchestrator struct {
	source     PageSource
	store      storage.ListingStore
	raw        storage.RawDetailWriter
	normalizer *Normalizer
	opts       Options
	logger     *utils.Logger
}

// NewOrchestrator wires the run collaborators together.
func NewOrchestrator(source PageSource, store storage.ListingStore, opts Options, logger *utils.Logger) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ListingDelay == nil {
		opts.ListingDelay = utils.NoDelay()
	}
	if opts.PageDelay == nil {
		opts.PageDelay = utils.NoDelay()
	}
	return &Orchestrator{
		source:     source,
		store:      store,
		normalizer: NewNormalizer(logger, opts.Now),
		opts:       opts,
		logger:     logger,
	}
}

// WithRawWriter tees every fetched detail page to w before normalization.
func (o *Orchestrator) WithRawWriter(w storage.RawDetailWriter) *Orchestrator {
	o.raw = w
	return o
}

// Run executes one scrape. Per-item failures are collected in the returned
// stats; the error is non-nil only when ctx ends the run early.
func (o *Orchestrator) Run(ctx context.Context) (models.RunStats, error) {
	stats := models.RunStats{RunID: uuid.NewString(), StartedAt: o.opts.Now()}
	log := o.logger.With("run_id", stats.RunID)
	log.Info("[orchestrator] Starting run (max pages %d, max per page %d, max total %d)",
		o.opts.Limits.MaxPages, o.opts.Limits.MaxListingsPerPage, o.opts.Limits.MaxTotalListings)

	limits := o.opts.Limits.normalized()
	pager := NewPaginator(o.source, o.opts.Limits, o.opts.NavRetry, o.opts.PageDelay, log)
	reconciler := NewReconciler(o.store, o.opts.StoreRetry, log)

pages:
	for {
		res, ok := pager.Next(ctx)
		if !ok {
			break
		}
		if res.Err != nil {
			stats.PagesFailed++
			o.fail(log, &stats, models.Failure{Stage: models.StageIndex, Page: res.Page, Err: res.Err})
			continue
		}

		for i, ref := range res.Refs {
			if ctx.Err() != nil {
				break pages
			}
			if stats.ListingsProcessed >= limits.MaxTotalListings {
				log.Info("[orchestrator] Max total listings reached, skipping %d more on page %d", len(res.Refs)-i, res.Page)
				pager.Stop()
				break pages
			}
			if stats.ListingsProcessed > 0 {
				if err := o.opts.ListingDelay.Wait(ctx); err != nil {
					break pages
				}
			}
			o.processListing(ctx, log, reconciler, ref, &stats)
		}
	}

	stats.PagesVisited = pager.Visited()
	stats.FinishedAt = o.opts.Now()
	if err := ctx.Err(); err != nil {
		log.Warn("[orchestrator] Run interrupted after %d listings: %v", stats.ListingsProcessed, err)
		return stats, err
	}
	log.Info("[orchestrator] Run finished: %d processed, %d inserted, %d updated, %d errors in %v",
		stats.ListingsProcessed, stats.Inserted, stats.Updated, stats.ErrorCount, stats.Duration().Round(time.Millisecond))
	return stats, nil
}

func (o *Orchestrator) processListing(ctx context.Context, log *utils.Logger, rec *Reconciler, ref models.ListingRef, stats *models.RunStats) {
	stage := models.StageDetail
	defer func() {
		if r := recover(); r != nil {
			o.fail(log, stats, models.Failure{Stage: stage, Page: ref.Page, URL: ref.URL, Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	stats.ListingsProcessed++
	log.Info("[orchestrator] (%d) %s", stats.ListingsProcessed, ref.URL)

	raw, err := utils.Retry(ctx, o.opts.NavRetry, "detail "+ref.URL, func() (models.RawDetail, error) {
		return o.source.FetchDetail(ctx, ref)
	})
	if err != nil {
		o.fail(log, stats, models.Failure{Stage: stage, Page: ref.Page, URL: ref.URL, Err: err})
		return
	}
	if o.raw != nil {
		if err := o.raw.WriteRaw(raw); err != nil {
			log.Warn("[orchestrator] Raw sink write failed for %s: %v", ref.URL, err)
		}
	}

	stage = models.StageNormalize
	listing := o.normalizer.Normalize(ref, raw)
	if listing.NaturalKey == "" {
		o.fail(log, stats, models.Failure{Stage: stage, Page: ref.Page, URL: ref.URL, Err: ErrMissingNaturalKey})
		return
	}

	stage = models.StagePersist
	outcome, err := rec.Reconcile(ctx, listing)
	if err != nil {
		o.fail(log, stats, models.Failure{Stage: stage, Page: ref.Page, URL: ref.URL, Err: err})
		return
	}
	switch outcome {
	case OutcomeInserted:
		stats.Inserted++
	case OutcomeUpdated:
		stats.Updated++
	}
}

func (o *Orchestrator) fail(log *utils.Logger, stats *models.RunStats, f models.Failure) {
	stats.ErrorCount++
	stats.Failures = append(stats.Failures, f)
	if f.URL != "" {
		log.Error("[orchestrator] %s failed for %s (page %d): %v", f.Stage, f.URL, f.Page, f.Err)
		return
	}
	log.Error("[orchestrator] %s failed on page %d: %v", f.Stage, f.Page, f.Err)
}
