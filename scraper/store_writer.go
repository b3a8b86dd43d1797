package scraper

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/bookdex/bookdex/bookstore"
	"github.com/bookdex/bookdex/pipeline"
)

// Static and compile-time check to ensure storeWriter implements
// pipeline.Processor interface.
var _ pipeline.Processor = (*storeWriter)(nil)

// storeWriter serves as the final stage processor of the scrape pipeline.
// It persists the extracted record, or removes the stored one when the
// change detector flagged it as delisted. Store failures are classified:
// connectivity problems are flagged on the payload so the sink can detect
// a database outage, everything else stays a per-candidate error.
type storeWriter struct {
	store  BookStore
	logger *logrus.Entry
}

func newStoreWriter(store BookStore, logger *logrus.Entry) *storeWriter {
	return &storeWriter{store: store, logger: logger}
}

// Process persists the payload's record.
func (p *storeWriter) Process(
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

	sPayload.Status = Writing

	var err error
	if sPayload.RemoveExisting {
		err = p.store.Remove(sPayload.Existing.Title, sPayload.Existing.Source)
	} else {
		err = p.store.Upsert(sPayload.Book)
	}

	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"title": sPayload.Title,
			"cause": err,
		}).Error("store write failed")
		sPayload.Status = Error
		sPayload.ConnErr = bookstore.IsConnErr(err)

		return sPayload, nil
	}

	sPayload.Status = Processed

	return sPayload, nil
}
