package scraper

import (
	"context"

	check "gopkg.in/check.v1"

	"github.com/bookdex/bookdex/sources"
)

// Initialize and register an instance of the catalogCrawlTestSuite to be
// executed by check testing package.
var _ = check.Suite(new(catalogCrawlTestSuite))

type catalogCrawlTestSuite struct{}

func (s *catalogCrawlTestSuite) TestSinglePageCatalog(c *check.C) {
	fetcher := &stubFetcher{pages: map[string]string{
		"https://test.example/catalog": catalogPage(
			"", "First Book", "Second Book",
		),
	}}

	candidates := s.crawl(c, fetcher, testSource())
	c.Assert(candidates, check.DeepEquals, []sources.Candidate{
		{Title: "First Book", URL: "https://test.example/book/First Book"},
		{Title: "Second Book", URL: "https://test.example/book/Second Book"},
	})
}

func (s *catalogCrawlTestSuite) TestPaginationFollowsNextControl(c *check.C) {
	src := testSource()
	src.Selectors.CatalogNext = sources.Selector{Query: "a.next", Attr: "href"}

	fetcher := &stubFetcher{pages: map[string]string{
		"https://test.example/catalog": catalogPage(
			"https://test.example/catalog?page=2", "First Book",
		),
		"https://test.example/catalog?page=2": catalogPage("", "Second Book"),
	}}

	candidates := s.crawl(c, fetcher, src)
	c.Assert(candidates, check.HasLen, 2)
	c.Assert(candidates[1].Title, check.Equals, "Second Book")
}

func (s *catalogCrawlTestSuite) TestPageCapStopsBrokenPagination(c *check.C) {
	src := testSource()
	src.Selectors.CatalogNext = sources.Selector{Query: "a.next", Attr: "href"}
	src.MaxCatalogPages = 3

	// Every page points to a fresh page, so only the cap can stop the walk.
	fetcher := &stubFetcher{pages: map[string]string{
		"https://test.example/catalog": catalogPage(
			"https://test.example/catalog?page=2", "Book 1",
		),
		"https://test.example/catalog?page=2": catalogPage(
			"https://test.example/catalog?page=3", "Book 2",
		),
		"https://test.example/catalog?page=3": catalogPage(
			"https://test.example/catalog?page=4", "Book 3",
		),
		"https://test.example/catalog?page=4": catalogPage("", "Book 4"),
	}}

	candidates := s.crawl(c, fetcher, src)
	c.Assert(candidates, check.HasLen, 3)
	c.Assert(fetcher.requests, check.DeepEquals, []string{
		"https://test.example/catalog",
		"https://test.example/catalog?page=2",
		"https://test.example/catalog?page=3",
	})
}

func (s *catalogCrawlTestSuite) TestDuplicateTitlesCollapse(c *check.C) {
	fetcher := &stubFetcher{pages: map[string]string{
		"https://test.example/catalog": catalogPage(
			"", "Promoted Book", "Other Book", "Promoted Book",
		),
	}}

	candidates := s.crawl(c, fetcher, testSource())
	c.Assert(candidates, check.HasLen, 2)
	c.Assert(candidates[0].Title, check.Equals, "Promoted Book")
}

func (s *catalogCrawlTestSuite) TestTitleCleanupRulesApply(c *check.C) {
	src := testSource()
	src.TitleStrip = []string{"(WN)"}

	fetcher := &stubFetcher{pages: map[string]string{
		"https://test.example/catalog": catalogPage("", "Overgeared (WN)"),
	}}

	candidates := s.crawl(c, fetcher, src)
	c.Assert(candidates, check.HasLen, 1)
	c.Assert(candidates[0].Title, check.Equals, "Overgeared")
}

func (s *catalogCrawlTestSuite) crawl(
	c *check.C, fetcher PageFetcher, src sources.Source,
) []sources.Candidate {

	crawler := &catalogCrawler{fetcher: fetcher, src: src, logger: discardLogger()}

	candidates, err := crawler.crawl(context.Background())
	c.Assert(err, check.IsNil)

	return candidates
}
