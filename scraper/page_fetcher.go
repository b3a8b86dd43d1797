package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/bookdex/bookdex/bookstore"
	"github.com/bookdex/bookdex/pipeline"
	"github.com/bookdex/bookdex/sources"
)

// Static and compile-time check to ensure pageFetcher implements
// pipeline.Processor interface.
var _ pipeline.Processor = (*pageFetcher)(nil)

// pageFetcher serves as the first stage processor of the scrape pipeline.
// For each candidate it retrieves the detail page, then runs the
// fingerprint precheck: if the page's newest chapter and rating match the
// stored record the candidate is skipped without the cost of full
// extraction and comparison. Candidates arriving after the run's
// cancellation flag is raised are marked Cancelled without any network
// traffic.
type pageFetcher struct {
	fetcher PageFetcher
	store   BookStore
	src     sources.Source
	flag    *cancellationFlag
	logger  *logrus.Entry
}

func newPageFetcher(
	fetcher PageFetcher,
	store BookStore,
	src sources.Source,
	flag *cancellationFlag,
	logger *logrus.Entry,
) *pageFetcher {

	return &pageFetcher{
		fetcher: fetcher,
		store:   store,
		src:     src,
		flag:    flag,
		logger:  logger,
	}
}

// Process retrieves the candidate's pages and applies the fingerprint
// precheck. Failures are confined to the candidate: the payload is marked
// and forwarded so the sink accounts for it.
func (p *pageFetcher) Process(
	ctx context.Context, payload pipeline.Payload,
) (pipeline.Payload, error) {

	sPayload, ok := payload.(*scrapePayload)
	if !ok {
		return nil, nil
	}

	if p.flag.isRaised() {
		sPayload.Status = Cancelled

		return sPayload, nil
	}

	sPayload.Status = Fetching

	html, err := p.fetcher.Fetch(ctx, sPayload.URL)
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"title": sPayload.Title,
			"url":   sPayload.URL,
			"cause": err,
		}).Error("detail page fetch failed")
		sPayload.Status = Error

		return sPayload, nil
	}
	sPayload.DetailHTML = html

	if skipped, err := p.precheck(sPayload); err != nil {
		p.logger.WithFields(logrus.Fields{
			"title": sPayload.Title,
			"cause": err,
		}).Error("fingerprint precheck failed")
		sPayload.Status = Error
		sPayload.ConnErr = bookstore.IsConnErr(err)

		return sPayload, nil
	} else if skipped {
		sPayload.Status = Skipped

		return sPayload, nil
	}

	if p.src.ChaptersPageSuffix != "" {
		chaptersURL := strings.TrimSuffix(sPayload.URL, "/") + p.src.ChaptersPageSuffix
		html, err := p.fetcher.Fetch(ctx, chaptersURL)
		if err != nil {
			p.logger.WithFields(logrus.Fields{
				"title": sPayload.Title,
				"url":   chaptersURL,
				"cause": err,
			}).Error("chapters page fetch failed")
			sPayload.Status = Error

			return sPayload, nil
		}
		sPayload.ChaptersHTML = html
	}

	return sPayload, nil
}

// precheck compares the detail page's newest chapter number and rating
// against the stored record. A match on both means nothing worth writing
// was published, so the candidate can be skipped before extraction. The
// stored record, when present, rides along on the payload for the change
// detection stage.
func (p *pageFetcher) precheck(payload *scrapePayload) (bool, error) {
	existing, err := p.store.Find(payload.Title, p.src.Name)
	if errors.Is(err, bookstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup %q: %w", payload.Title, err)
	}
	payload.Existing = existing

	doc, err := parseDocument(payload.DetailHTML)
	if err != nil {
		return false, fmt.Errorf("parse detail page: %w", err)
	}

	label := selectField(doc, p.src.Selectors.NewestChapter)
	fingerprint := firstInteger(label)
	if fingerprint == "" {
		return false, nil
	}
	if fingerprint != firstInteger(existing.NewestChapter) {
		return false, nil
	}

	rating := selectField(doc, p.src.Selectors.Rating)

	return bookstore.RatingsEqual(existing.Rating, rating), nil
}
