package scraper

import (
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/juju/clock"
	"github.com/microcosm-cc/bluemonday"
)

var (
	firstIntegerRegex = regexp.MustCompile(`\d+`)
	daysAgoRegex      = regexp.MustCompile(`(\d+)\s+days? ago`)
	yearsAgoRegex     = regexp.MustCompile(`(\d+)\s+years? ago`)
	whitespaceRegex   = regexp.MustCompile(`\s+`)

	// Strict policy drops every tag, leaving only the text content.
	sanitizePolicy = bluemonday.StrictPolicy()
)

// firstInteger extracts the first integer substring of free text, used to
// reduce chapter labels like "Chapter 412.5 - The Fall" to a comparable
// number. It returns an empty string when the text carries no digits.
func firstInteger(text string) string {
	return firstIntegerRegex.FindString(text)
}

// cleanText strips markup and collapses whitespace runs into single spaces.
// The sanitizer escapes its output, so entities are decoded back before the
// text is stored.
func cleanText(text string) string {
	text = html.UnescapeString(sanitizePolicy.Sanitize(text))

	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(text, " "))
}

// resolveDate turns a source-reported update string into RFC3339. Relative
// forms ("Updated yesterday", "N days ago", "N years ago") resolve against
// the injected clock; absolute forms pass through a lenient datetime parse.
// Unresolvable input is returned verbatim so the stored value still shows
// what the page said.
func resolveDate(clk clock.Clock, text string) string {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	now := clk.Now().UTC()

	switch {
	case strings.Contains(lower, "yesterday"):
		return now.AddDate(0, 0, -1).Format(time.RFC3339)
	case daysAgoRegex.MatchString(lower):
		days, _ := strconv.Atoi(daysAgoRegex.FindStringSubmatch(lower)[1])

		return now.AddDate(0, 0, -days).Format(time.RFC3339)
	case yearsAgoRegex.MatchString(lower):
		years, _ := strconv.Atoi(yearsAgoRegex.FindStringSubmatch(lower)[1])

		return now.AddDate(0, 0, -years*365).Format(time.RFC3339)
	}

	if parsed, err := dateparse.ParseAny(trimmed); err == nil {
		return parsed.UTC().Format(time.RFC3339)
	}

	return trimmed
}
