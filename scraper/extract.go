package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/bookdex/bookdex/bookstore"
	"github.com/bookdex/bookdex/sources"
)

// parseDocument turns raw HTML into a queryable document.
func parseDocument(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// selectField extracts one field value using its selector. Multi-match
// queries join their texts with single spaces, which is how paragraph
// assembled fields like the synopsis come together. The empty string means
// the page does not carry the field.
func selectField(doc *goquery.Document, sel sources.Selector) string {
	if sel.IsZero() {
		return ""
	}

	matches := doc.Find(sel.Query)
	if matches.Length() == 0 {
		return ""
	}

	if sel.Label != "" {
		return selectLabeledField(matches, sel)
	}

	var parts []string
	matches.Each(func(_ int, match *goquery.Selection) {
		value := selectionValue(match, sel)
		if value != "" {
			parts = append(parts, value)
		}
	})

	return stripPrefixes(strings.Join(parts, " "), sel.StripPrefixes)
}

// selectLabeledField handles key/value rows that share one selector: the
// match whose text carries the label wins and the label is stripped from
// the value.
func selectLabeledField(matches *goquery.Selection, sel sources.Selector) string {
	var value string
	matches.EachWithBreak(func(_ int, match *goquery.Selection) bool {
		text := cleanText(match.Text())
		if !strings.Contains(text, sel.Label) {
			return true
		}

		value = strings.TrimSpace(strings.Replace(text, sel.Label, "", 1))

		return false
	})

	if value == "-" {
		return ""
	}

	return stripPrefixes(value, sel.StripPrefixes)
}

// selectList extracts one value per selector match, used for genre links.
func selectList(doc *goquery.Document, sel sources.Selector) []string {
	if sel.IsZero() {
		return nil
	}

	var values []string
	doc.Find(sel.Query).Each(func(_ int, match *goquery.Selection) {
		if value := selectionValue(match, sel); value != "" {
			values = append(values, value)
		}
	})

	return values
}

// selectChapters extracts the chapter listing as a label to URL mapping and
// also reports the first label in page order, which is the newest chapter
// on sites that list newest first.
func selectChapters(
	doc *goquery.Document, sel sources.ChapterSelector,
) (bookstore.ChapterMap, string) {

	if sel.Query == "" {
		return nil, ""
	}

	chapters := bookstore.ChapterMap{}
	var firstLabel string

	doc.Find(sel.Query).Each(func(_ int, match *goquery.Selection) {
		label := chapterLabel(match, sel)
		if label == "" {
			return
		}

		url := chapterURL(match)
		if url == "" {
			return
		}

		if firstLabel == "" {
			firstLabel = label
		}
		chapters[label] = url
	})

	return chapters, firstLabel
}

func chapterLabel(match *goquery.Selection, sel sources.ChapterSelector) string {
	if sel.LabelAttr != "" {
		label, _ := match.Attr(sel.LabelAttr)

		return strings.TrimSpace(label)
	}

	return cleanText(match.Text())
}

// chapterURL resolves the chapter link from the matched element itself or
// the first anchor nested inside it.
func chapterURL(match *goquery.Selection) string {
	if href, ok := match.Attr("href"); ok {
		return strings.TrimSpace(href)
	}

	href, _ := match.Find("a").First().Attr("href")

	return strings.TrimSpace(href)
}

func selectionValue(match *goquery.Selection, sel sources.Selector) string {
	if sel.Attr != "" {
		value, _ := match.Attr(sel.Attr)

		return strings.TrimSpace(value)
	}

	return cleanText(match.Text())
}

func stripPrefixes(value string, prefixes []string) string {
	for _, prefix := range prefixes {
		value = strings.Replace(value, prefix, "", 1)
	}

	return strings.TrimSpace(value)
}
