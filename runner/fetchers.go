package runner

import (
	"context"
	"fmt"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"github.com/bookdex/bookdex/fetch"
	"github.com/bookdex/bookdex/scraper"
	"github.com/bookdex/bookdex/sources"
)

// NewFetcherFactory returns the production FetcherFactory: plain HTTP
// fetchers for HTTP sources, pooled headless browser sessions for browser
// sources.
func NewFetcherFactory(clk clock.Clock, logger *logrus.Entry) FetcherFactory {
	return func(
		ctx context.Context, src sources.Source,
	) (scraper.PageFetcher, func() error, error) {

		noop := func() error { return nil }

		switch src.Strategy {
		case sources.StrategyBrowser:
			pool, err := fetch.NewSessionPool(ctx, fetch.SessionPoolConfig{
				Size:    src.PoolSize,
				Factory: fetch.NewBrowserSession,
				Logger:  logger,
			})
			if err != nil {
				return nil, noop, err
			}

			return fetch.NewPoolFetcher(pool), pool.Shutdown, nil
		case sources.StrategyHTTP:
			fetcher, err := fetch.NewHTTPFetcher(fetch.HTTPFetcherConfig{
				Clock:  clk,
				Logger: logger,
			})
			if err != nil {
				return nil, noop, err
			}

			return fetcher, noop, nil
		default:
			return nil, noop, fmt.Errorf(
				"source %s: unsupported fetch strategy %d", src.Name, src.Strategy,
			)
		}
	}
}
