package scraper

import (
	"context"
	"errors"

	"github.com/golang/mock/gomock"
	check "gopkg.in/check.v1"

	"github.com/bookdex/bookdex/bookstore"
	"github.com/bookdex/bookdex/scraper/mocks"
)

// Initialize and register an instance of the pageFetchingTestSuite to be
// executed by check testing package.
var _ = check.Suite(new(pageFetchingTestSuite))

type pageFetchingTestSuite struct {
	fetcher *mocks.MockPageFetcher
	store   *mocks.MockBookStore
	flag    *cancellationFlag
}

func (s *pageFetchingTestSuite) SetUpTest(c *check.C) {
	ctrl := gomock.NewController(c)

	s.fetcher = mocks.NewMockPageFetcher(ctrl)
	s.store = mocks.NewMockBookStore(ctrl)
	s.flag = new(cancellationFlag)
}

func (s *pageFetchingTestSuite) TearDownTest(c *check.C) {
	s.fetcher = nil
	s.store = nil
	s.flag = nil
}

func (s *pageFetchingTestSuite) TestNewCandidateIsFetched(c *check.C) {
	s.fetcher.EXPECT().
		Fetch(gomock.Any(), "https://test.example/book").
		Return(detailPage, nil)
	s.store.EXPECT().
		Find("Her Knight’s Oath", "TestSource").
		Return(nil, bookstore.ErrNotFound)

	payload := s.fetchCandidate(c, "Her Knight's Oath")
	c.Assert(payload.Status, check.Equals, Fetching)
	c.Assert(payload.DetailHTML, check.Equals, detailPage)
	c.Assert(payload.Existing, check.IsNil)
}

func (s *pageFetchingTestSuite) TestFingerprintMatchSkipsCandidate(c *check.C) {
	stored := &bookstore.Book{
		Title:         "Her Knight’s Oath",
		Source:        "TestSource",
		NewestChapter: "12",
		Rating:        "9.5",
		ContentType:   "Manhwa",
	}

	s.fetcher.EXPECT().
		Fetch(gomock.Any(), "https://test.example/book").
		Return(detailPage, nil)
	s.store.EXPECT().
		Find("Her Knight’s Oath", "TestSource").
		Return(stored, nil)

	payload := s.fetchCandidate(c, "Her Knight's Oath")
	c.Assert(payload.Status, check.Equals, Skipped)
}

func (s *pageFetchingTestSuite) TestRatingChangeDefeatsFingerprint(c *check.C) {
	// Same newest chapter as the page, stale rating. The candidate must
	// proceed so the stored rating gets rewritten.
	stored := &bookstore.Book{
		Title:         "Her Knight’s Oath",
		Source:        "TestSource",
		NewestChapter: "12",
		Rating:        "8.0",
		ContentType:   "Manhwa",
	}

	s.fetcher.EXPECT().
		Fetch(gomock.Any(), "https://test.example/book").
		Return(detailPage, nil)
	s.store.EXPECT().
		Find("Her Knight’s Oath", "TestSource").
		Return(stored, nil)

	payload := s.fetchCandidate(c, "Her Knight's Oath")
	c.Assert(payload.Status, check.Equals, Fetching)
	c.Assert(payload.Existing, check.DeepEquals, stored)
}

func (s *pageFetchingTestSuite) TestStoredBookWithNewChapterProceeds(c *check.C) {
	stored := &bookstore.Book{
		Title:         "Her Knight’s Oath",
		Source:        "TestSource",
		NewestChapter: "11",
		ContentType:   "Manhwa",
	}

	s.fetcher.EXPECT().
		Fetch(gomock.Any(), "https://test.example/book").
		Return(detailPage, nil)
	s.store.EXPECT().
		Find("Her Knight’s Oath", "TestSource").
		Return(stored, nil)

	payload := s.fetchCandidate(c, "Her Knight's Oath")
	c.Assert(payload.Status, check.Equals, Fetching)
	c.Assert(payload.Existing, check.DeepEquals, stored)
}

func (s *pageFetchingTestSuite) TestFetchFailureMarksCandidateErrored(c *check.C) {
	s.fetcher.EXPECT().
		Fetch(gomock.Any(), "https://test.example/book").
		Return("", errors.New("connection reset"))

	payload := s.fetchCandidate(c, "Her Knight's Oath")
	c.Assert(payload.Status, check.Equals, Error)
	c.Assert(payload.ConnErr, check.Equals, false)
}

func (s *pageFetchingTestSuite) TestStoreOutageFlagsConnErr(c *check.C) {
	s.fetcher.EXPECT().
		Fetch(gomock.Any(), "https://test.example/book").
		Return(detailPage, nil)
	s.store.EXPECT().
		Find("Her Knight’s Oath", "TestSource").
		Return(nil, bookstore.ErrStoreUnavailable)

	payload := s.fetchCandidate(c, "Her Knight's Oath")
	c.Assert(payload.Status, check.Equals, Error)
	c.Assert(payload.ConnErr, check.Equals, true)
}

func (s *pageFetchingTestSuite) TestRaisedFlagCancelsWithoutFetching(c *check.C) {
	s.flag.raise()

	payload := s.fetchCandidate(c, "Her Knight's Oath")
	c.Assert(payload.Status, check.Equals, Cancelled)
	c.Assert(payload.DetailHTML, check.Equals, "")
}

func (s *pageFetchingTestSuite) TestSeparateChaptersPageIsFetched(c *check.C) {
	src := testSource()
	src.ChaptersPageSuffix = "/chapters"

	s.fetcher.EXPECT().
		Fetch(gomock.Any(), "https://test.example/book").
		Return(detailPage, nil)
	s.store.EXPECT().
		Find("Her Knight’s Oath", "TestSource").
		Return(nil, bookstore.ErrNotFound)
	s.fetcher.EXPECT().
		Fetch(gomock.Any(), "https://test.example/book/chapters").
		Return("<html><body><ul></ul></body></html>", nil)

	processor := newPageFetcher(s.fetcher, s.store, src, s.flag, discardLogger())

	payload := payloadPool.Get().(*scrapePayload)
	payload.Title = bookstore.NormalizeTitle("Her Knight's Oath")
	payload.URL = "https://test.example/book"
	payload.Status = Pending

	result, err := processor.Process(context.Background(), payload)
	c.Assert(err, check.IsNil)

	sPayload := result.(*scrapePayload)
	c.Assert(sPayload.Status, check.Equals, Fetching)
	c.Assert(sPayload.ChaptersHTML, check.Not(check.Equals), "")
}

func (s *pageFetchingTestSuite) fetchCandidate(c *check.C, title string) *scrapePayload {
	processor := newPageFetcher(
		s.fetcher, s.store, testSource(), s.flag, discardLogger(),
	)

	payload := payloadPool.Get().(*scrapePayload)
	payload.Title = bookstore.NormalizeTitle(title)
	payload.URL = "https://test.example/book"
	payload.Status = Pending

	result, err := processor.Process(context.Background(), payload)
	c.Assert(err, check.IsNil)

	return result.(*scrapePayload)
}
