package scraper

import (
	"context"

	check "gopkg.in/check.v1"
)

// Initialize and register an instance of the runSinkTestSuite to be
// executed by check testing package.
var _ = check.Suite(new(runSinkTestSuite))

type runSinkTestSuite struct {
	flag *cancellationFlag
	sink *runSink
}

func (s *runSinkTestSuite) SetUpTest(c *check.C) {
	s.flag = new(cancellationFlag)
	s.sink = &runSink{
		flag:               s.flag,
		logger:             discardLogger(),
		skipStreakLimit:    3,
		skipArmFloor:       10,
		connErrStreakLimit: 3,
	}
}

func (s *runSinkTestSuite) consume(c *check.C, statuses ...Status) {
	for _, status := range statuses {
		payload := payloadPool.Get().(*scrapePayload)
		payload.Status = status

		c.Assert(s.sink.Consume(context.Background(), payload), check.IsNil)
		payload.MarkAsProcessed()
	}
}

func (s *runSinkTestSuite) TestStatsAccumulate(c *check.C) {
	s.consume(c, Processed, Skipped, Error, Cancelled, Processed)

	c.Assert(s.sink.snapshot(), check.DeepEquals, RunStats{
		Processed: 2,
		Skipped:   1,
		Errors:    1,
		Cancelled: 1,
	})
}

func (s *runSinkTestSuite) TestSkipStreakRaisesFlagOnceArmed(c *check.C) {
	s.consume(c, Processed, Skipped, Skipped, Skipped)

	c.Assert(s.flag.isRaised(), check.Equals, true)
}

func (s *runSinkTestSuite) TestSkipStreakUnarmedWithoutProcessed(c *check.C) {
	s.consume(c, Skipped, Skipped, Skipped, Skipped, Skipped)

	// Nothing processed and the skip total is below the arming floor, so
	// streaks this early in a run do not stop it.
	c.Assert(s.flag.isRaised(), check.Equals, false)
}

func (s *runSinkTestSuite) TestSkipFloorArmsWithoutProcessed(c *check.C) {
	statuses := make([]Status, 0, 14)
	for i := 0; i < 14; i++ {
		statuses = append(statuses, Skipped)
	}
	s.consume(c, statuses...)

	c.Assert(s.flag.isRaised(), check.Equals, true)
}

func (s *runSinkTestSuite) TestProcessedResetsSkipStreak(c *check.C) {
	s.consume(c, Processed, Skipped, Skipped, Processed, Skipped, Skipped)

	c.Assert(s.flag.isRaised(), check.Equals, false)
}

func (s *runSinkTestSuite) TestConnErrStreakRaisesFlag(c *check.C) {
	for i := 0; i < 3; i++ {
		payload := payloadPool.Get().(*scrapePayload)
		payload.Status = Error
		payload.ConnErr = true

		c.Assert(s.sink.Consume(context.Background(), payload), check.IsNil)
		payload.MarkAsProcessed()
	}

	c.Assert(s.flag.isRaised(), check.Equals, true)
}

func (s *runSinkTestSuite) TestOrdinaryErrorsDoNotEscalate(c *check.C) {
	s.consume(c, Error, Error, Error, Error, Error)

	c.Assert(s.flag.isRaised(), check.Equals, false)
}
