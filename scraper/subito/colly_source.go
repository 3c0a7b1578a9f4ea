package subito

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/Ibino273/raspi-moto-scraper/models"
	"github.com/Ibino273/raspi-moto-scraper/utils"
)

// CollyOptions configures the plain HTTP source.
type CollyOptions struct {
	BaseURL     string
	PageTimeout time.Duration
}

// CollySource fetches pages over plain HTTP without running scripts. It
// works as long as the site keeps rendering ads server side.
type CollySource struct {
	baseURL   string
	collector *colly.Collector
	logger    *utils.Logger
}

// NewCollySource creates the collector shared by every fetch.
func NewCollySource(opts CollyOptions, logger *utils.Logger) (*CollySource, error) {
	if _, err := PageURL(opts.BaseURL, 1); err != nil {
		return nil, err
	}

	c := colly.NewCollector(
		colly.UserAgent(RandomUserAgent()),
		colly.AllowURLRevisit(),
	)
	if opts.PageTimeout > 0 {
		c.SetRequestTimeout(opts.PageTimeout)
	}
	// Pacing is done by the caller; this only keeps requests sequential.
	if err := c.Limit(&colly.LimitRule{DomainGlob: "*subito.*", Parallelism: 1}); err != nil {
		return nil, fmt.Errorf("colly limit rule: %w", err)
	}
	return &CollySource{baseURL: opts.BaseURL, collector: c, logger: logger}, nil
}

// FetchIndexPage downloads index page n and extracts its ad references.
func (s *CollySource) FetchIndexPage(ctx context.Context, page int) ([]models.ListingRef, error) {
	pageURL, err := PageURL(s.baseURL, page)
	if err != nil {
		return nil, err
	}
	var refs []models.ListingRef
	err = s.fetch(ctx, pageURL, func(r *colly.Response) error {
		var perr error
		refs, perr = ParseIndex(bytes.NewReader(r.Body), pageURL)
		return perr
	})
	return refs, err
}

// FetchDetail downloads an ad page and extracts its raw fields.
func (s *CollySource) FetchDetail(ctx context.Context, ref models.ListingRef) (models.RawDetail, error) {
	var detail models.RawDetail
	err := s.fetch(ctx, ref.URL, func(r *colly.Response) error {
		var perr error
		detail, perr = ParseDetail(bytes.NewReader(r.Body), ref.URL)
		return perr
	})
	return detail, err
}

// Close is a no-op; the collector holds no long-lived resources.
func (s *CollySource) Close() error { return nil }

func (s *CollySource) fetch(ctx context.Context, url string, handle func(*colly.Response) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c := s.collector.Clone()
	var handleErr, httpErr error
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		r.Headers.Set("Accept-Language", "it-IT,it;q=0.9")
	})
	c.OnResponse(func(r *colly.Response) {
		handleErr = handle(r)
	})
	c.OnError(func(r *colly.Response, err error) {
		httpErr = fmt.Errorf("GET %s: status %d (%s): %w", url, r.StatusCode, http.StatusText(r.StatusCode), err)
	})

	s.logger.Debug("[colly] GET %s", url)
	if err := c.Visit(url); err != nil && httpErr == nil {
		httpErr = fmt.Errorf("GET %s: %w", url, err)
	}
	c.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if httpErr != nil {
		return httpErr
	}
	return handleErr
}
