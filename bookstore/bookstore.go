/*
bookstore defines the canonical book record produced by the scrape pipeline
together with the behavior of the data stores that persist it.
*/

package bookstore

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrNotFound is returned when a book lookup yields no record.
	ErrNotFound = errors.New("book not found")

	// ErrInvalidBook is returned when a record fails validation or violates
	// a store integrity constraint. Callers treat it as a per-book failure.
	ErrInvalidBook = errors.New("invalid book record")

	// ErrStoreUnavailable wraps connectivity-class store failures. A streak
	// of these is treated as a systemic outage by the scrape orchestrator.
	ErrStoreUnavailable = errors.New("book store unavailable")
)

// NotAvailable is the placeholder value assigned to record fields the
// originating page did not provide.
const NotAvailable = "Not Available"

// IsConnErr reports whether err represents a store connectivity failure
// rather than a problem with the record being written.
func IsConnErr(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// Store should be implemented by book data stores.
type Store interface {
	// Upsert creates a new or updates an existing book record keyed on
	// (title, source), fully replacing its genre associations.
	Upsert(book *Book) error

	// Find performs a book lookup by its (title, source) identity. It
	// returns ErrNotFound when no record matches.
	Find(title, source string) (*Book, error)

	// Remove deletes a book record and its genre associations.
	Remove(title, source string) error

	// Close releases any resources held by the store.
	Close() error
}

// ChapterMap maps a chapter label to the URL serving that chapter. Labels
// are free-form display strings and not guaranteed to sort numerically.
type ChapterMap map[string]string

// Book is the canonical unit of scraped content. Its identity is the
// (Title, Source) pair; everything else is a display attribute. Fields that
// arrive loosely typed from source pages (rating, follower count, the
// source-reported update timestamp) are kept as strings and coerced at
// comparison time.
type Book struct {
	Title         string
	Source        string
	Synopsis      string
	Author        string
	UpdatedOn     string
	NewestChapter string
	ImageURL      string
	Rating        string
	Status        string
	ContentType   string
	FollowerCount string
	Genres        []string
	Chapters      ChapterMap
}

// Validate reports whether the record carries the fields every stored book
// must have.
func (b *Book) Validate() error {
	var missing []string

	if strings.TrimSpace(b.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(b.Source) == "" {
		missing = append(missing, "source")
	}
	if strings.TrimSpace(b.ContentType) == "" {
		missing = append(missing, "content type")
	}

	if len(missing) != 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidBook, strings.Join(missing, ", "))
	}

	return nil
}

// Clone returns a deep copy of the record.
func (b *Book) Clone() *Book {
	clone := *b

	clone.Genres = append([]string(nil), b.Genres...)
	if b.Chapters != nil {
		clone.Chapters = make(ChapterMap, len(b.Chapters))
		for label, url := range b.Chapters {
			clone.Chapters[label] = url
		}
	}

	return &clone
}

var chapterNumberRegex = regexp.MustCompile(`[-+]?\d*\.\d+|\d+`)

// LatestByNumber returns the chapter label carrying the numerically greatest
// chapter number. Labels without a parseable number are ignored. The second
// return value is false when no label qualifies.
func (m ChapterMap) LatestByNumber() (string, bool) {
	maxNumber := -1.0
	maxLabel := ""

	for label := range m {
		number, ok := chapterNumber(label)
		if !ok {
			continue
		}

		if number > maxNumber {
			maxNumber = number
			maxLabel = label
		}
	}

	return maxLabel, maxLabel != ""
}

// chapterNumber extracts the first numeric substring of a chapter label.
func chapterNumber(label string) (float64, bool) {
	match := chapterNumberRegex.FindString(label)
	if match == "" {
		return 0, false
	}

	var number float64
	if _, err := fmt.Sscanf(match, "%f", &number); err != nil {
		return 0, false
	}

	return number, true
}

// NormalizeTitle canonicalizes a book title for use as a store identity:
// the straight apostrophe collapses into its typographic variant so that
// titles differing only in quote style map to one record, and surrounding
// whitespace is dropped.
func NormalizeTitle(title string) string {
	return strings.TrimSpace(strings.ReplaceAll(title, "'", "’"))
}

// NormalizeGenres lower-cases, trims and de-duplicates a scraped genre list,
// preserving first-occurrence order.
func NormalizeGenres(genres []string) []string {
	seen := make(map[string]struct{}, len(genres))
	normalized := make([]string, 0, len(genres))

	for _, g := range genres {
		g = strings.ToLower(strings.TrimSpace(g))
		if g == "" {
			continue
		}
		if _, dup := seen[g]; dup {
			continue
		}

		seen[g] = struct{}{}
		normalized = append(normalized, g)
	}

	return normalized
}
