package bookstore

import (
	"strconv"
	"strings"

	"github.com/araddon/dateparse"
)

// IsNew reports whether a freshly scraped candidate record differs from the
// stored record in a way worth writing. It walks the comparable fields and
// short-circuits on the first mismatch.
//
// Per-field rules:
//   - follower counts and genre lists are never consulted: followers
//     fluctuate constantly, and genre associations are fully replaced on
//     every successful upsert rather than diffed here.
//   - the update timestamp is compared at calendar-date granularity with
//     time zones stripped. Relative-date scraping re-resolves "3 days ago"
//     against a new wall clock on every pass, so instant-level comparison
//     would flag every record as changed. A parse failure on either side
//     forces a write rather than silently dropping data.
//   - ratings are compared via RatingsEqual.
//   - chapter maps are compared as mappings, so key order never matters.
func IsNew(existing, candidate *Book) bool {
	if existing == nil {
		return true
	}

	if existing.Synopsis != candidate.Synopsis ||
		existing.Author != candidate.Author ||
		existing.NewestChapter != candidate.NewestChapter ||
		existing.ImageURL != candidate.ImageURL ||
		existing.Status != candidate.Status ||
		existing.ContentType != candidate.ContentType {
		return true
	}

	if updatedOnDiffers(existing.UpdatedOn, candidate.UpdatedOn) {
		return true
	}

	if !RatingsEqual(existing.Rating, candidate.Rating) {
		return true
	}

	return !chaptersEqual(existing.Chapters, candidate.Chapters)
}

// RatingsEqual compares two scraped rating strings as float-coerced values
// with a zero default. The sources publish fixed-precision decimals, so an
// exact comparison holds.
func RatingsEqual(existing, candidate string) bool {
	return coerceRating(existing) == coerceRating(candidate)
}

func updatedOnDiffers(existing, candidate string) bool {
	// Identical raw values cannot represent a change, parseable or not.
	// This also covers the "Not Available" placeholder on both sides.
	if strings.TrimSpace(existing) == strings.TrimSpace(candidate) {
		return false
	}

	existingDate, err := dateparse.ParseAny(existing)
	if err != nil {
		return true
	}

	candidateDate, err := dateparse.ParseAny(candidate)
	if err != nil {
		return true
	}

	// Compare the date component only, zones stripped.
	ey, em, ed := existingDate.Date()
	cy, cm, cd := candidateDate.Date()

	return ey != cy || em != cm || ed != cd
}

func coerceRating(rating string) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(rating), 64)
	if err != nil {
		return 0
	}

	return value
}

func chaptersEqual(existing, candidate ChapterMap) bool {
	if len(existing) != len(candidate) {
		return false
	}

	for label, url := range existing {
		candidateURL, ok := candidate[label]
		if !ok || candidateURL != url {
			return false
		}
	}

	return true
}
