/*
runner executes scrape runs across the registered sources. Sources run
sequentially: most of them sit behind aggressive rate limits and the
database write path is shared, so fanning sources out buys little and
multiplies failure modes.
*/

package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"github.com/bookdex/bookdex/scraper"
	"github.com/bookdex/bookdex/sources"
)

// FetcherFactory builds the page fetcher for one source and returns it
// together with a cleanup function releasing whatever the fetcher holds
// (browser sessions, mostly).
type FetcherFactory func(
	ctx context.Context, src sources.Source,
) (scraper.PageFetcher, func() error, error)

// Summary aggregates the outcome of one full run across sources.
type Summary struct {
	// PerSource holds each source's stats keyed by source name.
	PerSource map[string]scraper.RunStats
	// Totals sums the per-source stats.
	Totals scraper.RunStats
	// Duration is the wall-clock time the full run took.
	Duration time.Duration
}

// Config serves as a configuration object for the runner.
type Config struct {
	// Sources are the descriptors to run, in order.
	Sources []sources.Source
	// Store persists scraped records.
	Store scraper.BookStore
	// NewFetcher builds the per-source page fetcher.
	NewFetcher FetcherFactory

	// Clock drives run timing. A nil value defaults to the wall clock.
	Clock clock.Clock
	// Logger is the logger for recording run events. A nil value disables
	// logging.
	Logger *logrus.Entry
}

func (c *Config) validate() error {
	var err error

	if len(c.Sources) == 0 {
		err = multierror.Append(err, errors.New("at least one source is required"))
	}
	for _, src := range c.Sources {
		if !src.Enabled() {
			err = multierror.Append(err, fmt.Errorf(
				"source %q is disabled: %s", src.Name, src.DisabledReason,
			))
		}
	}
	if c.Store == nil {
		err = multierror.Append(err, errors.New("store must not be nil"))
	}
	if c.NewFetcher == nil {
		err = multierror.Append(err, errors.New("fetcher factory must not be nil"))
	}
	if c.Clock == nil {
		c.Clock = clock.WallClock
	}
	if c.Logger == nil {
		c.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}

// Runner drives sequential scrape runs across a set of sources.
type Runner struct {
	conf Config
}

// New configures and returns a pointer to a fully configured runner.
func New(conf Config) (*Runner, error) {
	if err := conf.validate(); err != nil {
		return nil, fmt.Errorf("runner config validation: %w", err)
	}

	return &Runner{conf: conf}, nil
}

// Run scrapes every configured source in order. A source that fails does
// not stop the ones after it; their failures are accumulated and returned
// alongside the summary. Context cancellation stops the run between
// sources.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	summary := Summary{PerSource: make(map[string]scraper.RunStats)}
	started := r.conf.Clock.Now()

	var err error
	for _, src := range r.conf.Sources {
		if ctx.Err() != nil {
			err = multierror.Append(err, ctx.Err())

			break
		}

		stats, runErr := r.runSource(ctx, src)
		summary.PerSource[src.Name] = stats
		summary.Totals.Processed += stats.Processed
		summary.Totals.Skipped += stats.Skipped
		summary.Totals.Errors += stats.Errors
		summary.Totals.Cancelled += stats.Cancelled

		if runErr != nil {
			err = multierror.Append(err, runErr)
		}
	}

	summary.Duration = r.conf.Clock.Now().Sub(started)
	r.conf.Logger.WithFields(logrus.Fields{
		"duration":  FormatDuration(summary.Duration),
		"processed": summary.Totals.Processed,
		"skipped":   summary.Totals.Skipped,
		"errors":    summary.Totals.Errors,
		"cancelled": summary.Totals.Cancelled,
	}).Info("full run complete")

	return summary, err
}

func (r *Runner) runSource(
	ctx context.Context, src sources.Source,
) (scraper.RunStats, error) {

	logger := r.conf.Logger.WithFields(logrus.Fields{
		"source": src.Name,
		"run_id": uuid.New().String(),
	})

	fetcher, cleanup, err := r.conf.NewFetcher(ctx, src)
	if err != nil {
		logger.WithField("cause", err).Error("fetcher setup failed")

		return scraper.RunStats{}, fmt.Errorf("source %s: %w", src.Name, err)
	}
	defer func() {
		if closeErr := cleanup(); closeErr != nil {
			logger.WithField("cause", closeErr).Warn("fetcher cleanup failed")
		}
	}()

	s, err := scraper.New(scraper.Config{
		Fetcher: fetcher,
		Store:   r.conf.Store,
		Source:  src,
		Clock:   r.conf.Clock,
		Logger:  logger,
	})
	if err != nil {
		return scraper.RunStats{}, fmt.Errorf("source %s: %w", src.Name, err)
	}

	started := r.conf.Clock.Now()
	logger.Info("starting source run")

	stats, err := s.Run(ctx)

	logger.WithFields(logrus.Fields{
		"duration":  FormatDuration(r.conf.Clock.Now().Sub(started)),
		"processed": stats.Processed,
		"skipped":   stats.Skipped,
		"errors":    stats.Errors,
		"cancelled": stats.Cancelled,
	}).Info("source run complete")

	if err != nil {
		return stats, fmt.Errorf("source %s: %w", src.Name, err)
	}

	return stats, nil
}

// FormatDuration renders a duration as "XhYmZs", the format the run logs
// have always used.
func FormatDuration(d time.Duration) string {
	seconds := int(d.Round(time.Second).Seconds())

	return fmt.Sprintf(
		"%dh%dm%ds", seconds/3600, (seconds%3600)/60, seconds%60,
	)
}
