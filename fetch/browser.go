package fetch

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
)

// Static and compile-time check to ensure BrowserSession implements the
// Session interface.
var _ Session = (*BrowserSession)(nil)

const defaultPageLoadTimeout = 60 * time.Second

// BrowserSession is a headless Chrome tab. Sources that assemble their
// pages with javascript return skeleton documents to plain GET requests,
// so their pages are rendered in a real browser before extraction.
//
// A session pins one browser process and one tab for its whole lifetime.
// Navigation replaces the tab's document, so a session serves one page at
// a time and is safe to reuse across pages but not across goroutines.
type BrowserSession struct {
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	pageLoadTimeout time.Duration
}

// NewBrowserSession launches a headless browser process with a single tab.
// The returned session satisfies SessionFactory.
func NewBrowserSession(ctx context.Context) (Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(userAgent),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// Force the browser process to start now so that a broken chrome
	// install surfaces at pool warm up rather than on the first page.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()

		return nil, &Error{Kind: Network, Err: err}
	}

	return &BrowserSession{
		allocCancel:     allocCancel,
		tabCtx:          tabCtx,
		tabCancel:       tabCancel,
		pageLoadTimeout: defaultPageLoadTimeout,
	}, nil
}

// Fetch navigates the session's tab to the provided URL, waits for the
// document to become ready and returns the rendered HTML.
func (s *BrowserSession) Fetch(ctx context.Context, url string) (string, error) {
	runCtx, cancel := context.WithTimeout(s.tabCtx, s.pageLoadTimeout)
	defer cancel()

	// Stop waiting on the page if the caller gives up first.
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", &Error{Kind: Network, URL: url, Err: err}
	}

	return html, nil
}

// Close tears down the tab and its browser process.
func (s *BrowserSession) Close() error {
	s.tabCancel()
	s.allocCancel()

	return nil
}
