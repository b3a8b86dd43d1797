package scraper

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/bookdex/bookdex/bookstore"
	"github.com/bookdex/bookdex/pipeline"
)

// Static and compile-time check to ensure changeDetector implements
// pipeline.Processor interface.
var _ pipeline.Processor = (*changeDetector)(nil)

// changeDetector serves as the third stage processor of the scrape
// pipeline. It decides whether the extracted record is worth a write:
// unchanged records are skipped, stored books that resurface with an empty
// chapter listing are flagged for removal, unseen books with no chapters
// yet are skipped, everything else proceeds to the store writer.
type changeDetector struct {
	logger *logrus.Entry
}

func newChangeDetector(logger *logrus.Entry) *changeDetector {
	return &changeDetector{logger: logger}
}

// Process compares the extracted record against the stored one.
func (p *changeDetector) Process(
	ctx context.Context, payload pipeline.Payload,
) (pipeline.Payload, error) {

	sPayload, ok := payload.(*scrapePayload)
	if !ok {
		return nil, nil
	}
	if sPayload.Status != Normalizing {
		// Candidate already reached a terminal state upstream.
		return sPayload, nil
	}

	if len(sPayload.Book.Chapters) == 0 {
		if sPayload.Existing != nil {
			// A known book whose chapter listing vanished was delisted by
			// the source; keeping the stale record would serve dead links.
			p.logger.WithField("title", sPayload.Book.Title).
				Info("stored book delisted by source, scheduling removal")
			sPayload.RemoveExisting = true

			return sPayload, nil
		}

		// An unseen book with no chapters has nothing worth storing yet.
		p.logger.WithField("title", sPayload.Book.Title).
			Info("new book carries no chapters, skipping")
		sPayload.Status = Skipped

		return sPayload, nil
	}

	if !bookstore.IsNew(sPayload.Existing, sPayload.Book) {
		sPayload.Status = Skipped

		return sPayload, nil
	}

	return sPayload, nil
}
