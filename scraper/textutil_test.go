package scraper

import (
	"time"

	"github.com/juju/clock/testclock"
	check "gopkg.in/check.v1"
)

// Initialize and register an instance of the textutilTestSuite to be
// executed by check testing package.
var _ = check.Suite(new(textutilTestSuite))

type textutilTestSuite struct{}

var frozenNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func (s *textutilTestSuite) TestFirstInteger(c *check.C) {
	c.Assert(firstInteger("Chapter 412.5 - The Fall"), check.Equals, "412")
	c.Assert(firstInteger("Epilogue"), check.Equals, "")
	c.Assert(firstInteger("Vol.2 Ch.18"), check.Equals, "2")
}

func (s *textutilTestSuite) TestCleanText(c *check.C) {
	c.Assert(
		cleanText("  A tale of <b>oaths</b>\n\tand blades.  "),
		check.Equals,
		"A tale of oaths and blades.",
	)
}

func (s *textutilTestSuite) TestCleanTextDecodesEntities(c *check.C) {
	c.Assert(
		cleanText("Her Knight's Oath"),
		check.Equals,
		"Her Knight's Oath",
	)
	c.Assert(
		cleanText("Blades &amp; Oaths"),
		check.Equals,
		"Blades & Oaths",
	)
}

func (s *textutilTestSuite) TestResolveRelativeDates(c *check.C) {
	clk := testclock.NewClock(frozenNow)

	c.Assert(
		resolveDate(clk, "Updated yesterday"),
		check.Equals,
		"2024-03-09T12:00:00Z",
	)
	c.Assert(
		resolveDate(clk, "Updated 3 days ago"),
		check.Equals,
		"2024-03-07T12:00:00Z",
	)
	c.Assert(
		resolveDate(clk, "2 years ago"),
		check.Equals,
		frozenNow.AddDate(0, 0, -2*365).Format(time.RFC3339),
	)
}

func (s *textutilTestSuite) TestResolveAbsoluteDates(c *check.C) {
	clk := testclock.NewClock(frozenNow)

	c.Assert(
		resolveDate(clk, "March 5, 2024"),
		check.Equals,
		"2024-03-05T00:00:00Z",
	)
	c.Assert(
		resolveDate(clk, "2024-03-05T08:00:00Z"),
		check.Equals,
		"2024-03-05T08:00:00Z",
	)
}

func (s *textutilTestSuite) TestUnresolvableDatePassesThrough(c *check.C) {
	clk := testclock.NewClock(frozenNow)

	c.Assert(resolveDate(clk, "coming soon"), check.Equals, "coming soon")
}
