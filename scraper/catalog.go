package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/bookdex/bookdex/bookstore"
	"github.com/bookdex/bookdex/sources"
)

// catalogCrawler walks a source's listing pages and collects the candidate
// set for one run.
type catalogCrawler struct {
	fetcher PageFetcher
	src     sources.Source
	logger  *logrus.Entry
}

// crawl follows the catalog pagination from the source's entry URL,
// collecting one candidate per listed book. Absence of the next-page
// control is normal termination; the page cap guards against pagination
// that cycles. Candidates are de-duplicated by title with catalog order
// preserved, since a few sites list promoted books twice.
func (c *catalogCrawler) crawl(ctx context.Context) ([]sources.Candidate, error) {
	var candidates []sources.Candidate
	seen := make(map[string]bool)

	pageURL := c.src.CatalogURL
	for page := 1; page <= c.src.MaxCatalogPages; page++ {
		html, err := c.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("catalog page %d: %w", page, err)
		}

		doc, err := parseDocument(html)
		if err != nil {
			return nil, fmt.Errorf("catalog page %d: %w", page, err)
		}

		found := 0
		doc.Find(c.src.Selectors.CatalogItem.Query).Each(
			func(_ int, match *goquery.Selection) {
				title := cleanCandidateTitle(c.src, match.Text())
				url := candidateURL(match)
				if title == "" || url == "" || seen[title] {
					return
				}

				seen[title] = true
				candidates = append(candidates, sources.Candidate{
					Title: title,
					URL:   url,
				})
				found++
			},
		)

		c.logger.WithFields(logrus.Fields{
			"page":       page,
			"candidates": found,
		}).Debug("crawled catalog page")

		nextURL := c.nextPageURL(doc)
		if nextURL == "" || nextURL == pageURL {
			break
		}
		pageURL = nextURL
	}

	return candidates, nil
}

// nextPageURL resolves the link behind the source's next-page control. An
// empty result means the walk reached the last page.
func (c *catalogCrawler) nextPageURL(doc *goquery.Document) string {
	sel := c.src.Selectors.CatalogNext
	if sel.IsZero() {
		return ""
	}

	match := doc.Find(sel.Query).First()
	if match.Length() == 0 {
		return ""
	}

	if sel.Attr != "" {
		href, _ := match.Attr(sel.Attr)

		return strings.TrimSpace(href)
	}

	href, _ := match.Attr("href")

	return strings.TrimSpace(href)
}

// cleanCandidateTitle applies the source's title cleanup rules followed by
// the canonical normalization every stored title carries.
func cleanCandidateTitle(src sources.Source, title string) string {
	title = cleanText(title)
	for _, strip := range src.TitleStrip {
		title = strings.ReplaceAll(title, strip, "")
	}

	return bookstore.NormalizeTitle(title)
}

// candidateURL resolves the detail page link from the matched catalog
// element itself or the first anchor nested inside it.
func candidateURL(match *goquery.Selection) string {
	if href, ok := match.Attr("href"); ok {
		return strings.TrimSpace(href)
	}

	href, _ := match.Find("a").First().Attr("href")

	return strings.TrimSpace(href)
}
