package scraper

import (
	"context"

	"github.com/bookdex/bookdex/pipeline"
	"github.com/bookdex/bookdex/sources"
)

// Static and compile-time check to ensure candidateSource implements
// pipeline.Source interface.
var _ pipeline.Source = (*candidateSource)(nil)

// candidateSource feeds the candidates collected by a catalog crawl into
// the pipeline, one payload each.
type candidateSource struct {
	candidates []sources.Candidate
	next       int
}

// Next loads the next available payload from the source and returns true.
// When no more payloads are available, calls to Next return false.
func (s *candidateSource) Next(ctx context.Context) bool {
	if s.next >= len(s.candidates) || ctx.Err() != nil {
		return false
	}

	s.next++

	return true
}

// Payload returns the current payload to be processed.
func (s *candidateSource) Payload() pipeline.Payload {
	payload := payloadPool.Get().(*scrapePayload)
	candidate := s.candidates[s.next-1]

	// Note: we populate the payload with the candidate identity, all the
	// remaining payload fields are populated by the various pipeline
	// stages during pipeline execution.
	payload.Title = candidate.Title
	payload.URL = candidate.URL
	payload.Status = Pending

	return payload
}

// Error returns the last error encountered by the source.
func (s *candidateSource) Error() error {
	return nil
}
