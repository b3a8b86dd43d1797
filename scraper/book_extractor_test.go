package scraper

import (
	"context"

	"github.com/juju/clock/testclock"
	check "gopkg.in/check.v1"

	"github.com/bookdex/bookdex/bookstore"
	"github.com/bookdex/bookdex/sources"
)

// Initialize and register an instance of the bookExtractionTestSuite to be
// executed by check testing package.
var _ = check.Suite(new(bookExtractionTestSuite))

type bookExtractionTestSuite struct {
	extractor *bookExtractor
}

func (s *bookExtractionTestSuite) SetUpTest(c *check.C) {
	s.extractor = newBookExtractor(
		testSource(), testclock.NewClock(frozenNow), discardLogger(),
	)
}

func (s *bookExtractionTestSuite) TestFullDetailPageExtraction(c *check.C) {
	payload := fetchedPayload("Her Knight's Oath", detailPage)

	result, err := s.extractor.Process(context.Background(), payload)
	c.Assert(err, check.IsNil)

	book := result.(*scrapePayload).Book
	c.Assert(book, check.NotNil)
	c.Assert(book.Title, check.Equals, "Her Knight’s Oath")
	c.Assert(book.Source, check.Equals, "TestSource")
	c.Assert(book.Synopsis, check.Equals, "A tale of oaths and blades.")
	c.Assert(book.Author, check.Equals, "Jane Doe")
	c.Assert(book.UpdatedOn, check.Equals, "2024-03-05T08:00:00Z")
	c.Assert(book.NewestChapter, check.Equals, "12")
	c.Assert(book.ImageURL, check.Equals, "https://img.test/cover.jpg")
	c.Assert(book.Rating, check.Equals, "9.5")
	c.Assert(book.Status, check.Equals, "Ongoing")
	c.Assert(book.ContentType, check.Equals, "Manhwa")
	c.Assert(book.FollowerCount, check.Equals, "1.2K")
	c.Assert(book.Genres, check.DeepEquals, []string{"action", "romance"})
	c.Assert(book.Chapters, check.DeepEquals, bookstore.ChapterMap{
		"Chapter 12": "https://test.example/ch/12",
		"Chapter 11": "https://test.example/ch/11",
	})
}

func (s *bookExtractionTestSuite) TestMissingFieldsDegradeToPlaceholders(c *check.C) {
	payload := fetchedPayload("Bare Bones", minimalDetailPage)

	result, err := s.extractor.Process(context.Background(), payload)
	c.Assert(err, check.IsNil)

	book := result.(*scrapePayload).Book
	c.Assert(book, check.NotNil)
	c.Assert(book.Synopsis, check.Equals, bookstore.NotAvailable)
	c.Assert(book.Author, check.Equals, bookstore.NotAvailable)
	c.Assert(book.UpdatedOn, check.Equals, bookstore.NotAvailable)
	c.Assert(book.Rating, check.Equals, bookstore.NotAvailable)
	c.Assert(book.Status, check.Equals, bookstore.NotAvailable)
	c.Assert(book.ContentType, check.Equals, "Manhwa")
	c.Assert(book.Genres, check.HasLen, 0)
	// Newest chapter falls back to the chapter listing.
	c.Assert(book.NewestChapter, check.Equals, "7")
}

func (s *bookExtractionTestSuite) TestNewestChapterFallsBackToHighestNumber(c *check.C) {
	payload := fetchedPayload("Numbered", `<html><body>
		<h1 class="entry-title">Numbered</h1>
		<ul>
			<li class="chapter"><a href="https://test.example/ch/3">Chapter 3</a></li>
			<li class="chapter"><a href="https://test.example/ch/10">Chapter 10</a></li>
			<li class="chapter"><a href="https://test.example/ch/7">Chapter 7</a></li>
		</ul>
	</body></html>`)

	result, err := s.extractor.Process(context.Background(), payload)
	c.Assert(err, check.IsNil)

	// No dedicated newest-chapter element on the page; the listing is not
	// sorted, so the numerically greatest label must win.
	c.Assert(result.(*scrapePayload).Book.NewestChapter, check.Equals, "10")
}

func (s *bookExtractionTestSuite) TestUnrecognizablePageSkipsCandidate(c *check.C) {
	payload := fetchedPayload(
		"Ghost Entry", "<html><body><div>page not found</div></body></html>",
	)

	result, err := s.extractor.Process(context.Background(), payload)
	c.Assert(err, check.IsNil)
	c.Assert(result.(*scrapePayload).Status, check.Equals, Skipped)
}

func (s *bookExtractionTestSuite) TestTerminalPayloadPassesThrough(c *check.C) {
	payload := payloadPool.Get().(*scrapePayload)
	payload.Title = "Already Done"
	payload.Status = Skipped

	result, err := s.extractor.Process(context.Background(), payload)
	c.Assert(err, check.IsNil)
	c.Assert(result.(*scrapePayload).Status, check.Equals, Skipped)
	c.Assert(result.(*scrapePayload).Book, check.IsNil)
}

func (s *bookExtractionTestSuite) TestSeparateChaptersPage(c *check.C) {
	payload := fetchedPayload("Split Pages", minimalDetailPage)
	payload.ChaptersHTML = `<html><body><ul>
		<li class="chapter"><a href="https://test.example/ch/9">Chapter 9</a></li>
	</ul></body></html>`

	result, err := s.extractor.Process(context.Background(), payload)
	c.Assert(err, check.IsNil)

	book := result.(*scrapePayload).Book
	c.Assert(book.Chapters, check.DeepEquals, bookstore.ChapterMap{
		"Chapter 9": "https://test.example/ch/9",
	})
}

func (s *bookExtractionTestSuite) TestLabeledFieldSelection(c *check.C) {
	doc, err := parseDocument(`<html><body>
		<div class="imptdt">Status Ongoing</div>
		<div class="imptdt">Type Manhua</div>
	</body></html>`)
	c.Assert(err, check.IsNil)

	status := selectField(doc, sources.Selector{Query: "div.imptdt", Label: "Status"})
	c.Assert(status, check.Equals, "Ongoing")

	contentType := selectField(doc, sources.Selector{Query: "div.imptdt", Label: "Type"})
	c.Assert(contentType, check.Equals, "Manhua")
}

func fetchedPayload(title, html string) *scrapePayload {
	payload := payloadPool.Get().(*scrapePayload)
	payload.Title = bookstore.NormalizeTitle(title)
	payload.URL = "https://test.example/book"
	payload.Status = Fetching
	payload.DetailHTML = html

	return payload
}

const detailPage = `<html><body>
	<h1 class="entry-title">Her Knight's Oath</h1>
	<div class="synopsis">A tale of <b>oaths</b>
		and blades.</div>
	<span class="author">Jane Doe</span>
	<time class="updated" datetime="2024-03-05T08:00:00Z">March 5</time>
	<span class="latest">Chapter 12</span>
	<span class="genres"><a>Action</a><a>Romance</a><a>action</a></span>
	<img class="cover" src="https://img.test/cover.jpg"/>
	<div class="rating">9.5</div>
	<div class="status">Ongoing</div>
	<div class="followers">1.2K</div>
	<ul>
		<li class="chapter"><a href="https://test.example/ch/12">Chapter 12</a></li>
		<li class="chapter"><a href="https://test.example/ch/11">Chapter 11</a></li>
	</ul>
</body></html>`

const minimalDetailPage = `<html><body>
	<h1 class="entry-title">Bare Bones</h1>
	<ul>
		<li class="chapter"><a href="https://test.example/ch/7">Chapter 7</a></li>
	</ul>
</body></html>`
