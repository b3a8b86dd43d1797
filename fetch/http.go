package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
)

// Static and compile-time check to ensure HTTPFetcher implements the
// Fetcher interface.
var _ Fetcher = (*HTTPFetcher)(nil)

const (
	defaultAttempts      = 3
	defaultRetryDelay    = 10 * time.Second
	defaultRequestTimout = 30 * time.Second
	maxRedirectHops      = 10

	// Sources reject the Go default user agent, so requests pose as a
	// mainstream desktop browser.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// HTTPFetcherConfig encapsulates the configuration options for creating a
// new HTTPFetcher.
type HTTPFetcherConfig struct {
	// Attempts is the total number of tries per URL, including the first.
	Attempts int
	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration
	// RequestTimeout bounds a single attempt.
	RequestTimeout time.Duration
	// Clock drives the retry delays. A nil value defaults to the wall clock.
	Clock clock.Clock
	// Logger is the logger for recording retried attempts. A nil value
	// disables logging.
	Logger *logrus.Entry
}

func (c *HTTPFetcherConfig) validate() error {
	var err error

	if c.Attempts == 0 {
		c.Attempts = defaultAttempts
	}
	if c.Attempts < 0 {
		err = multierror.Append(err, errors.New("attempts must not be negative"))
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.RetryDelay < 0 {
		err = multierror.Append(err, errors.New("retry delay must not be negative"))
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaultRequestTimout
	}
	if c.Clock == nil {
		c.Clock = clock.WallClock
	}
	if c.Logger == nil {
		c.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}

// HTTPFetcher retrieves pages with plain GET requests. Transport failures
// are retried a fixed number of times with a fixed delay; responses the
// server actually produced, error statuses and redirect loops, are not
// retried since the server already gave its answer.
type HTTPFetcher struct {
	conf   HTTPFetcherConfig
	client *http.Client
}

// NewHTTPFetcher creates a new HTTPFetcher instance using the provided
// configuration.
func NewHTTPFetcher(conf HTTPFetcherConfig) (*HTTPFetcher, error) {
	if err := conf.validate(); err != nil {
		return nil, fmt.Errorf("http fetcher config validation: %w", err)
	}

	client := &http.Client{
		Timeout: conf.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirectHops {
				return http.ErrUseLastResponse
			}

			return nil
		},
	}

	return &HTTPFetcher{conf: conf, client: client}, nil
}

// Fetch retrieves the HTML document at the provided URL, retrying transport
// failures up to the configured number of attempts.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= f.conf.Attempts; attempt++ {
		if attempt > 1 {
			f.conf.Logger.WithFields(logrus.Fields{
				"url":     url,
				"attempt": attempt,
				"cause":   lastErr,
			}).Warn("retrying page fetch")

			select {
			case <-f.conf.Clock.After(f.conf.RetryDelay):
			case <-ctx.Done():
				return "", lastErr
			}
		}

		doc, err := f.fetchOnce(ctx, url)
		if err == nil {
			return doc, nil
		}
		if !IsRetryable(err) {
			return "", err
		}

		lastErr = err
	}

	return "", lastErr
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &Error{Kind: HTTPStatus, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &Error{Kind: Network, URL: url, Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	// CheckRedirect surfaces an exceeded hop limit as the last redirect
	// response rather than an error.
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		return "", &Error{Kind: RedirectLoop, URL: url, StatusCode: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &Error{Kind: HTTPStatus, URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: Network, URL: url, Err: err}
	}

	return string(body), nil
}
