package scraper

import (
	"sync"

	"github.com/bookdex/bookdex/bookstore"
	"github.com/bookdex/bookdex/pipeline"
)

var (
	_ pipeline.Payload = (*scrapePayload)(nil)

	payloadPool = sync.Pool{
		New: func() interface{} {
			return new(scrapePayload)
		},
	}
)

// Status is the lifecycle state of one candidate moving through the scrape
// pipeline. Terminal states are mutually exclusive and each candidate
// reaches exactly one of them.
type Status uint8

const (
	// Pending marks a candidate emitted by the catalog crawl, not yet
	// picked up by a stage.
	Pending Status = iota
	// Fetching marks a candidate whose detail page is being retrieved.
	Fetching
	// Normalizing marks a candidate whose page is being turned into a
	// book record.
	Normalizing
	// Writing marks a candidate whose record is being persisted.
	Writing
	// Processed marks a candidate whose record was written or removed.
	Processed
	// Skipped marks a candidate dropped without a write: fingerprint
	// match, unchanged record or unextractable page.
	Skipped
	// Error marks a candidate that failed fetching, extraction or
	// persistence.
	Error
	// Cancelled marks a candidate abandoned after the run's cancellation
	// flag was set.
	Cancelled
)

// String implements fmt.Stringer for Status.
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fetching:
		return "fetching"
	case Normalizing:
		return "normalizing"
	case Writing:
		return "writing"
	case Processed:
		return "processed"
	case Skipped:
		return "skipped"
	case Error:
		return "error"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type scrapePayload struct {
	Title string // populated by the input source (pipeline.Source) type.
	URL   string // populated by the input source (pipeline.Source) type.

	Status Status

	DetailHTML   string // populated by the page fetcher type.
	ChaptersHTML string // populated by the page fetcher type.

	Book     *bookstore.Book // populated by the book extractor type.
	Existing *bookstore.Book // populated by the page fetcher precheck.

	// RemoveExisting is set by the change detector when a stored book
	// resurfaces with an empty chapter listing, which marks it delisted.
	RemoveExisting bool

	// ConnErr is set by the store writer when a failure was a store
	// connectivity problem rather than a bad record. The sink escalates a
	// streak of these to a run cancellation.
	ConnErr bool
}

// Clone returns a deep-copy of the original payload.
func (p *scrapePayload) Clone() pipeline.Payload {
	payloadClone := payloadPool.Get().(*scrapePayload)

	payloadClone.Title = p.Title
	payloadClone.URL = p.URL
	payloadClone.Status = p.Status
	payloadClone.DetailHTML = p.DetailHTML
	payloadClone.ChaptersHTML = p.ChaptersHTML
	payloadClone.RemoveExisting = p.RemoveExisting
	payloadClone.ConnErr = p.ConnErr

	if p.Book != nil {
		payloadClone.Book = p.Book.Clone()
	}
	if p.Existing != nil {
		payloadClone.Existing = p.Existing.Clone()
	}

	return payloadClone
}

// MarkAsProcessed is invoked by the stage / stage runner when the payload
// either reaches the pipeline sink or it gets discarded by one of the
// pipeline stages.
func (p *scrapePayload) MarkAsProcessed() {
	p.Title = p.Title[:0]
	p.URL = p.URL[:0]
	p.Status = Pending
	p.DetailHTML = p.DetailHTML[:0]
	p.ChaptersHTML = p.ChaptersHTML[:0]
	p.Book = nil
	p.Existing = nil
	p.RemoveExisting = false
	p.ConnErr = false

	// Put back a reset pointer to scrape payload into the pool for re-use.
	payloadPool.Put(p)
}
