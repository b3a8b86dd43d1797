package scraper

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"github.com/bookdex/bookdex/bookstore"
	"github.com/bookdex/bookdex/pipeline"
	"github.com/bookdex/bookdex/sources"
)

// Static and compile-time check to ensure bookExtractor implements
// pipeline.Processor interface.
var _ pipeline.Processor = (*bookExtractor)(nil)

// bookExtractor serves as the second stage processor of the scrape
// pipeline. It turns the fetched pages into a normalized book record using
// the source's selector descriptor. A field the page does not carry
// degrades to its placeholder; only a page with no recognizable detail
// content at all drops the candidate.
type bookExtractor struct {
	src    sources.Source
	clk    clock.Clock
	logger *logrus.Entry
}

func newBookExtractor(
	src sources.Source, clk clock.Clock, logger *logrus.Entry,
) *bookExtractor {

	return &bookExtractor{src: src, clk: clk, logger: logger}
}

// Process builds the payload's Book from its fetched HTML.
func (p *bookExtractor) Process(
	ctx context.Context, payload pipeline.Payload,
) (pipeline.Payload, error) {

	sPayload, ok := payload.(*scrapePayload)
	if !ok {
		return nil, nil
	}
	if sPayload.Status != Fetching {
		// Candidate already reached a terminal state upstream.
		return sPayload, nil
	}

	sPayload.Status = Normalizing

	doc, err := parseDocument(sPayload.DetailHTML)
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"title": sPayload.Title,
			"cause": err,
		}).Error("detail page parse failed")
		sPayload.Status = Error

		return sPayload, nil
	}

	chaptersDoc := doc
	if sPayload.ChaptersHTML != "" {
		chaptersDoc, err = parseDocument(sPayload.ChaptersHTML)
		if err != nil {
			p.logger.WithFields(logrus.Fields{
				"title": sPayload.Title,
				"cause": err,
			}).Error("chapters page parse failed")
			sPayload.Status = Error

			return sPayload, nil
		}
	}

	book := p.extract(sPayload, doc, chaptersDoc)
	if book == nil {
		// Nothing recognizable on the page: no title, no chapters. The
		// page is likely an error shell served with a 200 status.
		p.logger.WithField("title", sPayload.Title).
			Warn("page carries no extractable detail content")
		sPayload.Status = Skipped

		return sPayload, nil
	}

	sPayload.Book = book

	return sPayload, nil
}

func (p *bookExtractor) extract(
	payload *scrapePayload, doc, chaptersDoc *goquery.Document,
) *bookstore.Book {

	sel := p.src.Selectors

	title := cleanCandidateTitle(p.src, selectField(doc, sel.Title))
	chapters, firstLabel := selectChapters(chaptersDoc, sel.Chapters)
	if title == "" && len(chapters) == 0 {
		return nil
	}
	if title == "" {
		// The catalog title is already cleaned and normalized.
		title = payload.Title
	}

	book := &bookstore.Book{
		Title:         title,
		Source:        p.src.Name,
		Synopsis:      fieldOrDefault(doc, sel.Synopsis, bookstore.NotAvailable),
		Author:        fieldOrDefault(doc, sel.Author, bookstore.NotAvailable),
		ImageURL:      fieldOrDefault(doc, sel.Image, bookstore.NotAvailable),
		Rating:        fieldOrDefault(doc, sel.Rating, bookstore.NotAvailable),
		Status:        fieldOrDefault(doc, sel.Status, bookstore.NotAvailable),
		ContentType:   fieldOrDefault(doc, sel.ContentType, p.src.DefaultContentType),
		FollowerCount: fieldOrDefault(doc, sel.FollowerCount, bookstore.NotAvailable),
		Genres:        bookstore.NormalizeGenres(selectList(doc, sel.Genres)),
		Chapters:      chapters,
	}

	if updated := selectField(doc, sel.UpdatedOn); updated != "" {
		book.UpdatedOn = resolveDate(p.clk, updated)
	} else {
		book.UpdatedOn = bookstore.NotAvailable
	}

	book.NewestChapter = p.newestChapter(doc, chapters, firstLabel)

	return book
}

// newestChapter derives the comparable newest chapter number, preferring
// the page's dedicated element and falling back to the chapter listing per
// the source's ordering rule.
func (p *bookExtractor) newestChapter(
	doc *goquery.Document, chapters bookstore.ChapterMap, firstLabel string,
) string {

	if label := selectField(doc, p.src.Selectors.NewestChapter); label != "" {
		if num := firstInteger(label); num != "" {
			return num
		}
	}

	switch p.src.LatestChapterRule {
	case sources.LatestFirstListed:
		if num := firstInteger(firstLabel); num != "" {
			return num
		}
	case sources.LatestHighestNumber:
		if label, ok := chapters.LatestByNumber(); ok {
			if num := firstInteger(label); num != "" {
				return num
			}
		}
	}

	return bookstore.NotAvailable
}

func fieldOrDefault(doc *goquery.Document, sel sources.Selector, def string) string {
	if value := selectField(doc, sel); value != "" {
		return value
	}

	return def
}
