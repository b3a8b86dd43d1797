package scraper

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/bookdex/bookdex/pipeline"
)

// RunStats summarizes the outcome of one source run. Every candidate the
// catalog crawl produced is counted under exactly one field.
type RunStats struct {
	Processed int
	Skipped   int
	Errors    int
	Cancelled int
}

// Total returns the number of candidates the run accounted for.
func (s RunStats) Total() int {
	return s.Processed + s.Skipped + s.Errors + s.Cancelled
}

// cancellationFlag is the cooperative stop signal shared between the sink
// and the fetch stage. Once raised, candidates entering the pipeline are
// reported Cancelled instead of being worked; in-flight candidates drain
// normally.
type cancellationFlag struct {
	raised atomic.Bool
}

func (f *cancellationFlag) raise() {
	f.raised.Store(true)
}

func (f *cancellationFlag) isRaised() bool {
	return f.raised.Load()
}

// Static and compile-time check to ensure runSink implements
// pipeline.Sink interface.
var _ pipeline.Sink = (*runSink)(nil)

// runSink terminates the scrape pipeline: it tallies candidate outcomes
// and watches for the two streak patterns that mark a run as not worth
// continuing.
//
// A long run of consecutive skips suggests the catalog has reached books
// that have not changed since the previous run. A run of consecutive store
// connectivity failures suggests the database is down. Both raise the
// cancellation flag. The completion order the sink observes is worker
// interleaved, so the skip heuristic can fire early or late by a few
// candidates; it trades exactness for not hammering sources with pointless
// fetches.
type runSink struct {
	flag   *cancellationFlag
	logger *logrus.Entry

	// skipStreakLimit is the consecutive-skip count that stops the run.
	skipStreakLimit int
	// skipArmFloor arms the skip heuristic even when nothing was processed
	// yet, for runs that are all skips from the start.
	skipArmFloor int
	// connErrStreakLimit is the consecutive store connectivity failure
	// count that stops the run.
	connErrStreakLimit int

	mu            sync.Mutex
	stats         RunStats
	skipStreak    int
	connErrStreak int
}

// Consume tallies the terminal status of one candidate and applies the
// streak escalations.
func (s *runSink) Consume(ctx context.Context, p pipeline.Payload) error {
	payload, ok := p.(*scrapePayload)
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch payload.Status {
	case Processed:
		s.stats.Processed++
		s.skipStreak = 0
		s.connErrStreak = 0
	case Skipped:
		s.stats.Skipped++
		s.skipStreak++
	case Error:
		s.stats.Errors++
		s.skipStreak = 0
		if payload.ConnErr {
			s.connErrStreak++
		} else {
			s.connErrStreak = 0
		}
	case Cancelled:
		s.stats.Cancelled++
	default:
		// A candidate that drains with a non-terminal status is a stage
		// wiring bug; count it as an error rather than losing it.
		s.stats.Errors++
		s.logger.WithFields(logrus.Fields{
			"title":  payload.Title,
			"status": payload.Status,
		}).Warn("candidate drained with non-terminal status")
	}

	s.maybeEscalate()

	return nil
}

func (s *runSink) maybeEscalate() {
	if s.flag.isRaised() {
		return
	}

	armed := s.stats.Processed > 0 || s.stats.Skipped > s.skipArmFloor
	if armed && s.skipStreak >= s.skipStreakLimit {
		s.logger.WithField("streak", s.skipStreak).
			Info("consecutive skip streak reached, stopping run")
		s.flag.raise()

		return
	}

	if s.connErrStreak >= s.connErrStreakLimit {
		s.logger.WithField("streak", s.connErrStreak).
			Error("consecutive store connectivity failures, stopping run")
		s.flag.raise()
	}
}

// snapshot returns the stats accumulated so far.
func (s *runSink) snapshot() RunStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stats
}
