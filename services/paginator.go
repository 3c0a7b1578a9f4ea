package services

import (
	"context"
	"fmt"
	"math"

	"github.com/Ibino273/raspi-moto-scraper/models"
	"github.com/Ibino273/raspi-moto-scraper/utils"
)

// IndexSource fetches the listing references of one index page.
type IndexSource interface {
	FetchIndexPage(ctx context.Context, page int) ([]models.ListingRef, error)
}

// PageSource is the full page collaborator: index pages and detail pages.
type PageSource interface {
	IndexSource
	FetchDetail(ctx context.Context, ref models.ListingRef) (models.RawDetail, error)
}

// PaginatorState is the traversal state of a Paginator.
type PaginatorState int

const (
	StateTraversing PaginatorState = iota
	StateStopped
)

func (s PaginatorState) String() string {
	if s == StateStopped {
		return "stopped"
	}
	return "traversing"
}

// Limits bounds a traversal. Values below 1 mean unbounded.
type Limits struct {
	MaxPages           int
	MaxListingsPerPage int
	MaxTotalListings   int
}

func (l Limits) normalized() Limits {
	unbounded := func(n int) int {
		if n < 1 {
			return math.MaxInt
		}
		return n
	}
	return Limits{
		MaxPages:           unbounded(l.MaxPages),
		MaxListingsPerPage: unbounded(l.MaxListingsPerPage),
		MaxTotalListings:   unbounded(l.MaxTotalListings),
	}
}

// PageResult is what one traversal step produced. Err is set when the page
// could not be loaded even after retries; traversal continues regardless.
type PageResult struct {
	Page int
	Refs []models.ListingRef
	Err  error
}

// Paginator walks index pages from page 1 until the catalog ends or a
// limit is reached. It is not safe for concurrent use.
type Paginator struct {
	source IndexSource
	limits Limits
	retry  *utils.RetryConfig
	pacer  *utils.Pacer
	logger *utils.Logger

	state   PaginatorState
	page    int
	emitted int
	visited int
	seen    *utils.URLSet
}

// NewPaginator creates a Paginator positioned on page 1.
func NewPaginator(source IndexSource, limits Limits, retry *utils.RetryConfig, pacer *utils.Pacer, logger *utils.Logger) *Paginator {
	if pacer == nil {
		pacer = utils.NoDelay()
	}
	return &Paginator{
		source: source,
		limits: limits.normalized(),
		retry:  retry,
		pacer:  pacer,
		logger: logger,
		state:  StateTraversing,
		page:   1,
		seen:   utils.NewURLSet(),
	}
}

func (p *Paginator) State() PaginatorState { return p.state }

// Emitted is the number of references handed out so far.
func (p *Paginator) Emitted() int { return p.emitted }

// Visited is the number of index pages that loaded, including the empty
// page that ends the catalog.
func (p *Paginator) Visited() int { return p.visited }

// Stop ends the traversal.
func (p *Paginator) Stop() { p.state = StateStopped }

// Next loads the next index page. It returns false once the traversal has
// stopped; a page that failed to load is returned with Err set and true.
func (p *Paginator) Next(ctx context.Context) (PageResult, bool) {
	if p.state == StateStopped {
		return PageResult{}, false
	}
	if ctx.Err() != nil {
		p.Stop()
		return PageResult{}, false
	}
	if p.page > p.limits.MaxPages {
		p.logger.Info("[paginator] Reached max pages (%d), stopping", p.limits.MaxPages)
		p.Stop()
		return PageResult{}, false
	}

	page := p.page
	if page > 1 {
		if err := p.pacer.Wait(ctx); err != nil {
			p.Stop()
			return PageResult{}, false
		}
	}

	p.logger.Info("[paginator] Loading index page %d", page)
	refs, err := utils.Retry(ctx, p.retry, fmt.Sprintf("index page %d", page), func() ([]models.ListingRef, error) {
		return p.source.FetchIndexPage(ctx, page)
	})
	if err != nil {
		if ctx.Err() != nil {
			p.Stop()
			return PageResult{}, false
		}
		p.logger.Error("[paginator] Page %d failed, skipping: %v", page, err)
		p.advance()
		return PageResult{Page: page, Err: err}, true
	}

	p.visited++
	if len(refs) == 0 {
		p.logger.Info("[paginator] Page %d has no listings, end of catalog", page)
		p.Stop()
		return PageResult{}, false
	}

	out := make([]models.ListingRef, 0, len(refs))
	duplicates := 0
	for _, ref := range refs {
		if len(out) >= p.limits.MaxListingsPerPage || p.emitted+len(out) >= p.limits.MaxTotalListings {
			break
		}
		if !p.seen.Add(ref.URL) {
			duplicates++
			continue
		}
		ref.Page = page
		out = append(out, ref)
	}
	if skipped := len(refs) - len(out) - duplicates; skipped > 0 {
		p.logger.Debug("[paginator] Page %d: truncated %d listings over the limits", page, skipped)
	}
	if duplicates > 0 {
		p.logger.Debug("[paginator] Page %d: skipped %d already seen listings", page, duplicates)
	}

	p.emitted += len(out)
	p.advance()
	if p.emitted >= p.limits.MaxTotalListings {
		p.logger.Info("[paginator] Reached max total listings (%d), stopping", p.limits.MaxTotalListings)
		p.Stop()
	}

	p.logger.Info("[paginator] Page %d yielded %d listings (%d so far)", page, len(out), p.emitted)
	return PageResult{Page: page, Refs: out}, true
}

func (p *Paginator) advance() {
	p.page++
	if p.page > p.limits.MaxPages {
		p.Stop()
	}
}
