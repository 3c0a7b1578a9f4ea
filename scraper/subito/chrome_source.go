package subito

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/Ibino273/raspi-moto-scraper/models"
	"github.com/Ibino273/raspi-moto-scraper/utils"
)

// ChromeOptions configures the headless browser.
type ChromeOptions struct {
	BaseURL     string
	ChromeBin   string
	Headless    bool
	PageTimeout time.Duration
	// Launch retries the browser start.
	Launch *utils.RetryConfig
}

// ChromeSource renders pages in a shared Chrome instance, one tab per fetch.
type ChromeSource struct {
	baseURL string
	timeout time.Duration
	logger  *utils.Logger

	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	consentDone   bool
}

// NewChromeSource starts the browser. A browser that cannot be started is
// returned as an error and the run should not begin.
func NewChromeSource(ctx context.Context, opts ChromeOptions, logger *utils.Logger) (*ChromeSource, error) {
	if _, err := PageURL(opts.BaseURL, 1); err != nil {
		return nil, err
	}
	chromeBin := opts.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	userAgent := RandomUserAgent()
	logger.Info("[chrome] Using browser binary: %s", chromeBin)
	logger.Debug("[chrome] User agent: %s", userAgent)

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(userAgent),
	)
	if chromeBin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(chromeBin))
	}

	timeout := opts.PageTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	s := &ChromeSource{baseURL: opts.BaseURL, timeout: timeout, logger: logger}

	launch := opts.Launch
	if launch == nil {
		launch = &utils.RetryConfig{MaxAttempts: 1, Logger: logger}
	}
	err := launch.Do(ctx, "launch browser", func() error {
		var err error
		s.browserCtx, s.cancelBrowser, s.cancelAlloc, err = startBrowser(ctx, timeout, allocOpts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// startBrowser launches Chrome and waits at most timeout for it to answer.
// The browser outlives ctx; ctx only bounds the wait. chromedp ties the
// browser to the context of its first Run, so the wait is raced here
// instead of passing a deadline to that Run.
func startBrowser(ctx context.Context, timeout time.Duration, allocOpts []chromedp.ExecAllocatorOption) (context.Context, context.CancelFunc, context.CancelFunc, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-started:
	case <-timer.C:
		err = fmt.Errorf("browser did not start within %v", timeout)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, nil, nil, fmt.Errorf("chromedp launch: %w", err)
	}
	return browserCtx, cancelBrowser, cancelAlloc, nil
}

// FetchIndexPage loads index page n and extracts its ad references.
func (s *ChromeSource) FetchIndexPage(ctx context.Context, page int) ([]models.ListingRef, error) {
	pageURL, err := PageURL(s.baseURL, page)
	if err != nil {
		return nil, err
	}
	html, err := s.render(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return ParseIndex(strings.NewReader(html), pageURL)
}

// FetchDetail loads an ad page and extracts its raw fields.
func (s *ChromeSource) FetchDetail(ctx context.Context, ref models.ListingRef) (models.RawDetail, error) {
	html, err := s.render(ctx, ref.URL)
	if err != nil {
		return models.RawDetail{}, err
	}
	return ParseDetail(strings.NewReader(html), ref.URL)
}

// Close shuts the browser down.
func (s *ChromeSource) Close() error {
	s.cancelBrowser()
	s.cancelAlloc()
	return nil
}

// render opens url in a fresh tab and returns the document HTML. The tab is
// closed on return and when ctx is cancelled.
func (s *ChromeSource) render(ctx context.Context, url string) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, s.timeout)
	defer cancelTimeout()

	if err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("chromedp navigate %s: %w", url, err)
	}

	if !s.consentDone {
		s.dismissCookieBanner(tabCtx)
	}

	var html string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("chromedp read %s: %w", url, err)
	}
	return html, nil
}

// dismissCookieBanner clicks the consent button when one is shown. Failure
// is logged and otherwise ignored.
func (s *ChromeSource) dismissCookieBanner(ctx context.Context) {
	var clicked string
	err := chromedp.Run(ctx,
		chromedp.Sleep(time.Second),
		chromedp.Evaluate(`
			(function() {
				var labels = ['accetta', 'continua senza accettare'];
				var nodes = document.querySelectorAll('button, a[role="button"], span');
				for (var l = 0; l < labels.length; l++) {
					for (var i = 0; i < nodes.length; i++) {
						var text = (nodes[i].innerText || '').trim().toLowerCase();
						if (text === labels[l]) {
							(nodes[i].closest('button') || nodes[i]).click();
							return labels[l];
						}
					}
				}
				return '';
			})()
		`, &clicked),
	)
	switch {
	case err != nil:
		s.logger.Warn("[chrome] Cookie banner check failed: %v", err)
	case clicked != "":
		s.logger.Info("[chrome] Cookie banner dismissed (%q)", clicked)
		s.consentDone = true
	default:
		s.logger.Debug("[chrome] No cookie banner found")
	}
}

// findChromeBinary locates a Chrome or Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"chromium-browser", "chromium", "google-chrome-stable", "google-chrome"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/lib/chromium-browser/chromium-browser",
		"/snap/bin/chromium",
		"/usr/bin/google-chrome-stable",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
