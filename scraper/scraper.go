/*
scraper package implements the per-source ingestion pipeline. A run crawls
the source's catalog for candidates and pushes each one through four stages:

 1. Retrieve the candidate's detail page and apply the newest-chapter
    fingerprint precheck against the stored record.
 2. Normalize the fetched pages into a canonical book record using the
    source's selector descriptor.
 3. Compare the record against the stored one; unchanged records are
    skipped, delisted books are scheduled for removal.
 4. Write the record to the book store.

Failures are confined to the candidate that caused them. Two failure
patterns escalate to a cooperative run cancellation: a streak of
consecutive unchanged candidates, meaning the rest of the catalog is
likely stale, and a streak of store connectivity failures, meaning the
database is down.
*/

package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"github.com/bookdex/bookdex/pipeline"
	"github.com/bookdex/bookdex/sources"
)

const (
	defaultSkipStreakLimit    = 5
	defaultSkipArmFloor       = 200
	defaultConnErrStreakLimit = 5
)

// Config serves as a configuration object for the scraper.
type Config struct {
	// Fetcher retrieves catalog and detail pages.
	Fetcher PageFetcher
	// Store persists scraped records.
	Store BookStore
	// Source is the descriptor of the site to scrape.
	Source sources.Source

	// SkipStreakLimit is the consecutive-skip count that stops a run.
	// Streaks are counted in completion order, so the exact cut point
	// varies between runs of the same catalog. A zero value applies the
	// default.
	SkipStreakLimit int
	// SkipArmFloor is the skip total that arms the skip heuristic before
	// the first processed candidate. A zero value applies the default.
	SkipArmFloor int
	// ConnErrStreakLimit is the consecutive store connectivity failure
	// count that stops a run. A zero value applies the default.
	ConnErrStreakLimit int

	// Clock drives relative date resolution. A nil value defaults to the
	// wall clock.
	Clock clock.Clock
	// Logger is the logger for recording run events. A nil value disables
	// logging.
	Logger *logrus.Entry
}

func (c *Config) validate() error {
	var err error

	if c.Fetcher == nil {
		err = multierror.Append(err, errors.New("fetcher must not be nil"))
	}
	if c.Store == nil {
		err = multierror.Append(err, errors.New("store must not be nil"))
	}
	if c.Source.Name == "" {
		err = multierror.Append(err, errors.New("source descriptor is required"))
	}
	if !c.Source.Enabled() {
		err = multierror.Append(err, fmt.Errorf(
			"source %q is disabled: %s", c.Source.Name, c.Source.DisabledReason,
		))
	}
	if c.SkipStreakLimit == 0 {
		c.SkipStreakLimit = defaultSkipStreakLimit
	}
	if c.SkipArmFloor == 0 {
		c.SkipArmFloor = defaultSkipArmFloor
	}
	if c.ConnErrStreakLimit == 0 {
		c.ConnErrStreakLimit = defaultConnErrStreakLimit
	}
	if c.Clock == nil {
		c.Clock = clock.WallClock
	}
	if c.Logger == nil {
		c.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}

// Scraper executes the ingestion pipeline for one source.
type Scraper struct {
	conf Config
}

// New configures and returns a pointer to a fully configured scraper.
func New(conf Config) (*Scraper, error) {
	if err := conf.validate(); err != nil {
		return nil, fmt.Errorf("scraper config validation: %w", err)
	}

	return &Scraper{conf: conf}, nil
}

// Run crawls the source's catalog and processes every candidate. Calls to
// Run block until the pipeline execution is complete. The returned stats
// account for every candidate even when the run was cut short by a streak
// escalation.
func (s *Scraper) Run(ctx context.Context) (RunStats, error) {
	crawler := &catalogCrawler{
		fetcher: s.conf.Fetcher,
		src:     s.conf.Source,
		logger:  s.conf.Logger,
	}

	candidates, err := crawler.crawl(ctx)
	if err != nil {
		return RunStats{}, fmt.Errorf("scrape %s: %w", s.conf.Source.Name, err)
	}

	s.conf.Logger.WithField("candidates", len(candidates)).
		Info("catalog crawl complete")

	flag := new(cancellationFlag)
	sink := &runSink{
		flag:               flag,
		logger:             s.conf.Logger,
		skipStreakLimit:    s.conf.SkipStreakLimit,
		skipArmFloor:       s.conf.SkipArmFloor,
		connErrStreakLimit: s.conf.ConnErrStreakLimit,
	}

	p := s.assemblePipeline(flag)

	err = p.Execute(ctx, &candidateSource{candidates: candidates}, sink)
	stats := sink.snapshot()
	if err != nil {
		return stats, fmt.Errorf("scrape %s: %w", s.conf.Source.Name, err)
	}

	return stats, nil
}

func (s *Scraper) assemblePipeline(flag *cancellationFlag) *pipeline.Pipeline {
	workers := s.conf.Source.Workers
	if workers <= 0 {
		workers = 1
	}

	return pipeline.New(
		pipeline.NewFixedWorkerPool(
			newPageFetcher(
				s.conf.Fetcher, s.conf.Store, s.conf.Source, flag, s.conf.Logger,
			),
			workers,
		),
		pipeline.NewFIFO(
			newBookExtractor(s.conf.Source, s.conf.Clock, s.conf.Logger),
		),
		pipeline.NewFIFO(newChangeDetector(s.conf.Logger)),
		pipeline.NewFixedWorkerPool(
			newStoreWriter(s.conf.Store, s.conf.Logger),
			workers,
		),
	)
}
