package storetests

import (
	check "gopkg.in/check.v1"

	"github.com/bookdex/bookdex/bookstore"
)

// BaseSuite defines a set of re-usable conformance tests that can be
// executed against any concrete type that implements bookstore.Store.
type BaseSuite struct {
	store bookstore.Store
}

// SetStore configures the suite to run all tests against the provided
// store instance.
func (s *BaseSuite) SetStore(store bookstore.Store) {
	s.store = store
}

// Store returns the store under test for implementation specific tests
// run by embedding suites.
func (s *BaseSuite) Store() bookstore.Store {
	return s.store
}

func (s *BaseSuite) TestUpsertThenFind(c *check.C) {
	book := sampleBook()
	c.Assert(s.store.Upsert(book), check.IsNil)

	found, err := s.store.Find(book.Title, book.Source)
	c.Assert(err, check.IsNil)
	c.Assert(found, check.DeepEquals, book)
}

func (s *BaseSuite) TestUpsertIsIdempotent(c *check.C) {
	book := sampleBook()
	c.Assert(s.store.Upsert(book), check.IsNil)
	c.Assert(s.store.Upsert(book), check.IsNil)

	found, err := s.store.Find(book.Title, book.Source)
	c.Assert(err, check.IsNil)
	c.Assert(found, check.DeepEquals, book)
	c.Assert(bookstore.IsNew(found, book), check.Equals, false)
}

func (s *BaseSuite) TestUpsertUpdatesInPlace(c *check.C) {
	book := sampleBook()
	c.Assert(s.store.Upsert(book), check.IsNil)

	updated := book.Clone()
	updated.NewestChapter = "42"
	updated.Chapters["42"] = "https://example.com/ch/42"
	c.Assert(s.store.Upsert(updated), check.IsNil)

	found, err := s.store.Find(book.Title, book.Source)
	c.Assert(err, check.IsNil)
	c.Assert(found.NewestChapter, check.Equals, "42")
	c.Assert(found.Chapters, check.DeepEquals, updated.Chapters)
}

func (s *BaseSuite) TestUpsertReplacesGenres(c *check.C) {
	book := sampleBook()
	c.Assert(s.store.Upsert(book), check.IsNil)

	updated := book.Clone()
	updated.Genres = []string{"comedy"}
	c.Assert(s.store.Upsert(updated), check.IsNil)

	found, err := s.store.Find(book.Title, book.Source)
	c.Assert(err, check.IsNil)
	c.Assert(found.Genres, check.DeepEquals, []string{"comedy"})
}

func (s *BaseSuite) TestUpsertNormalizesGenres(c *check.C) {
	book := sampleBook()
	book.Genres = []string{" Action", "ACTION", "Martial Arts"}
	c.Assert(s.store.Upsert(book), check.IsNil)

	found, err := s.store.Find(book.Title, book.Source)
	c.Assert(err, check.IsNil)
	c.Assert(found.Genres, check.DeepEquals, []string{"action", "martial arts"})
}

func (s *BaseSuite) TestSameTitleDifferentSourceAreDistinct(c *check.C) {
	first := sampleBook()
	c.Assert(s.store.Upsert(first), check.IsNil)

	second := sampleBook()
	second.Source = "LightNovelPub"
	second.NewestChapter = "7"
	c.Assert(s.store.Upsert(second), check.IsNil)

	found, err := s.store.Find(first.Title, first.Source)
	c.Assert(err, check.IsNil)
	c.Assert(found.NewestChapter, check.Equals, first.NewestChapter)

	found, err = s.store.Find(second.Title, second.Source)
	c.Assert(err, check.IsNil)
	c.Assert(found.NewestChapter, check.Equals, "7")
}

func (s *BaseSuite) TestFindMissing(c *check.C) {
	_, err := s.store.Find("Unknown", "AsuraScans")
	c.Assert(err, check.ErrorMatches, ".*book not found.*")
}

func (s *BaseSuite) TestRemove(c *check.C) {
	book := sampleBook()
	c.Assert(s.store.Upsert(book), check.IsNil)
	c.Assert(s.store.Remove(book.Title, book.Source), check.IsNil)

	_, err := s.store.Find(book.Title, book.Source)
	c.Assert(err, check.ErrorMatches, ".*book not found.*")
}

func (s *BaseSuite) TestRemoveMissingIsNotFound(c *check.C) {
	err := s.store.Remove("Unknown", "AsuraScans")
	c.Assert(err, check.ErrorMatches, ".*book not found.*")
}

func (s *BaseSuite) TestUpsertRejectsInvalidRecord(c *check.C) {
	book := sampleBook()
	book.ContentType = ""

	err := s.store.Upsert(book)
	c.Assert(err, check.ErrorMatches, ".*invalid book record.*")
}

func sampleBook() *bookstore.Book {
	return &bookstore.Book{
		Title:         "Return of the Mount Hua Sect",
		Source:        "AsuraScans",
		Synopsis:      "The 13th disciple of the Mount Hua Sect returns.",
		Author:        "Biga",
		UpdatedOn:     "2024-03-05T08:00:00Z",
		NewestChapter: "41",
		ImageURL:      "https://example.com/mount-hua.jpg",
		Rating:        "9.9",
		Status:        "Ongoing",
		ContentType:   "Manhwa",
		FollowerCount: "32.7K",
		Genres:        []string{"action", "martial arts"},
		Chapters: bookstore.ChapterMap{
			"40": "https://example.com/ch/40",
			"41": "https://example.com/ch/41",
		},
	}
}
