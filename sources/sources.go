// Package sources holds the static catalog of scrapeable sites. Each entry
// is a data-only descriptor: the selectors, defaults and fetch strategy the
// generic extraction pipeline needs to scrape that site. Onboarding a new
// site means adding a descriptor here, not writing code.
package sources

import "fmt"

// Candidate is one catalog entry queued for scraping: the listing title
// and the detail page behind it. Candidates are ephemeral, produced by a
// catalog crawl and consumed exactly once by the scrape pipeline.
type Candidate struct {
	Title string
	URL   string
}

// Strategy selects how a source's pages are retrieved.
type Strategy uint8

const (
	// StrategyHTTP fetches pages with plain GET requests.
	StrategyHTTP Strategy = iota
	// StrategyBrowser renders pages in pooled headless browser sessions.
	// Required by sites that assemble their documents with javascript.
	StrategyBrowser
)

// String implements fmt.Stringer for Strategy.
func (s Strategy) String() string {
	if s == StrategyBrowser {
		return "browser"
	}

	return "http"
}

// LatestChapterRule selects how the newest chapter label is derived from a
// book's chapter listing when the dedicated selector yields nothing.
type LatestChapterRule uint8

const (
	// LatestFirstListed takes the first chapter in page order. Used by
	// sites that list chapters newest first.
	LatestFirstListed LatestChapterRule = iota
	// LatestHighestNumber takes the chapter whose label carries the
	// greatest leading number. Used by sites with unordered listings.
	LatestHighestNumber
)

// Selector locates one logical field on a page.
type Selector struct {
	// Query is a CSS selector.
	Query string
	// Attr names the attribute to extract. An empty value extracts the
	// element text instead.
	Attr string
	// Label filters multi-match queries down to the element whose text
	// carries the label, which is then stripped from the extracted value.
	// Sites like AsuraScans render labeled key/value rows that share one
	// class.
	Label string
	// StripPrefixes are literal prefixes removed from the extracted text.
	StripPrefixes []string
}

// IsZero reports whether the selector is unset, meaning the source does not
// expose the field.
func (s Selector) IsZero() bool {
	return s.Query == ""
}

// ChapterSelector locates the chapter listing anchors.
type ChapterSelector struct {
	// Query is a CSS selector matching one anchor per chapter.
	Query string
	// LabelAttr names the anchor attribute holding the chapter label. An
	// empty value uses the anchor text.
	LabelAttr string
}

// Selectors is the full extraction descriptor for one source.
type Selectors struct {
	// CatalogItem matches one anchor per catalog entry; the anchor text is
	// the candidate title and its href the detail page URL.
	CatalogItem Selector
	// CatalogNext matches the next-page control on catalog listings. A
	// zero value means the catalog is a single page.
	CatalogNext Selector

	Title         Selector
	Synopsis      Selector
	Author        Selector
	UpdatedOn     Selector
	NewestChapter Selector
	Genres        Selector
	Image         Selector
	Rating        Selector
	Status        Selector
	ContentType   Selector
	FollowerCount Selector
	Chapters      ChapterSelector
}

// Source describes one scrapeable site.
type Source struct {
	// Name is the identity recorded on every book scraped from the site.
	Name string
	// CatalogURL is the first catalog listing page.
	CatalogURL string
	// ChaptersPageSuffix, when non empty, is appended to a detail page URL
	// to reach the separate page holding the chapter listing.
	ChaptersPageSuffix string

	Selectors Selectors

	// DefaultContentType is assigned when the page does not state one.
	DefaultContentType string
	LatestChapterRule  LatestChapterRule
	Strategy           Strategy

	// PoolSize is the number of browser sessions kept alive for the source.
	// Ignored for StrategyHTTP.
	PoolSize int
	// Workers is the fetch and write stage concurrency.
	Workers int
	// MaxCatalogPages caps the catalog walk as a guard against pagination
	// controls that never terminate.
	MaxCatalogPages int

	// TitleStrip lists literal substrings removed from scraped titles.
	TitleStrip []string

	// DisabledReason, when non empty, excludes the source from runs and
	// records why.
	DisabledReason string
}

// Enabled reports whether the source participates in scrape runs.
func (s Source) Enabled() bool {
	return s.DisabledReason == ""
}

// All returns every registered source descriptor, enabled or not.
func All() []Source {
	return registry
}

// EnabledSources returns the descriptors that participate in scrape runs,
// in registration order.
func EnabledSources() []Source {
	var enabled []Source
	for _, s := range registry {
		if s.Enabled() {
			enabled = append(enabled, s)
		}
	}

	return enabled
}

// ByName returns the descriptor registered under the provided name.
func ByName(name string) (Source, error) {
	for _, s := range registry {
		if s.Name == name {
			return s, nil
		}
	}

	return Source{}, fmt.Errorf("unknown source %q", name)
}

var registry = []Source{
	{
		Name:       "AsuraScans",
		CatalogURL: "https://asuracomic.net/manga/list-mode/",
		Selectors: Selectors{
			CatalogItem:   Selector{Query: "a.series"},
			Title:         Selector{Query: "h1.entry-title"},
			Synopsis:      Selector{Query: "p"},
			Author:        Selector{Query: "div.fmed", Label: "Author"},
			UpdatedOn:     Selector{Query: `time[itemprop="dateModified"]`, Attr: "datetime"},
			NewestChapter: Selector{Query: "span.epcur.epcurlast"},
			Genres:        Selector{Query: "span.mgen a"},
			Image:         Selector{Query: "img.wp-post-image", Attr: "src"},
			Rating:        Selector{Query: `div[itemprop="ratingValue"]`},
			Status:        Selector{Query: "div.imptdt", Label: "Status"},
			ContentType:   Selector{Query: "div.imptdt", Label: "Type"},
			FollowerCount: Selector{Query: "div.bmc"},
			Chapters:      ChapterSelector{Query: "li[data-num]", LabelAttr: "data-num"},
		},
		DefaultContentType: "Manhwa",
		LatestChapterRule:  LatestHighestNumber,
		Strategy:           StrategyHTTP,
		Workers:            4,
		MaxCatalogPages:    1,
	},
	{
		Name:               "LightNovelPub",
		CatalogURL:         "https://lightnovelpub.vip/browse/genre-all-25060123/order-updated/status-all",
		ChaptersPageSuffix: "/chapters",
		Selectors: Selectors{
			CatalogItem:   Selector{Query: ".novel-item .novel-title a"},
			CatalogNext:   Selector{Query: ".PagedList-skipToNext a", Attr: "href"},
			Title:         Selector{Query: "h1.novel-title"},
			Synopsis:      Selector{Query: ".summary .content"},
			Author:        Selector{Query: ".author", StripPrefixes: []string{"Author:"}},
			UpdatedOn:     Selector{Query: "nav.content-nav p.update"},
			NewestChapter: Selector{Query: "nav.content-nav p.latest"},
			Genres:        Selector{Query: "div.categories a"},
			Image:         Selector{Query: "figure.cover img", Attr: "src"},
			Rating:        Selector{Query: "div.rating-star strong"},
			Status:        Selector{Query: "div.header-stats span:nth-of-type(4) strong"},
			FollowerCount: Selector{Query: "div.header-stats span:nth-of-type(3) strong"},
			Chapters:      ChapterSelector{Query: "ul.chapter-list a"},
		},
		DefaultContentType: "Light Novel",
		LatestChapterRule:  LatestFirstListed,
		Strategy:           StrategyBrowser,
		PoolSize:           3,
		Workers:            3,
		MaxCatalogPages:    60,
	},
	{
		Name:       "BoxNovel",
		CatalogURL: "https://boxnovel.com/novel/",
		Selectors: Selectors{
			CatalogItem:   Selector{Query: ".page-item-detail .post-title a"},
			CatalogNext:   Selector{Query: ".nav-previous a", Attr: "href"},
			Title:         Selector{Query: ".post-title h1"},
			Synopsis:      Selector{Query: ".description-summary .summary__content"},
			Author:        Selector{Query: ".summary-content .author-content a"},
			UpdatedOn:     Selector{Query: ".chapter-release-date i"},
			NewestChapter: Selector{Query: ".listing-chapters_wrap .wp-manga-chapter a"},
			Genres:        Selector{Query: ".summary-content .genres-content a"},
			Image:         Selector{Query: ".summary_image img", Attr: "src"},
			Rating:        Selector{Query: ".post-total-rating .score"},
			Status:        Selector{Query: ".post-status .summary-content", Label: "Status"},
			Chapters:      ChapterSelector{Query: "ul.version-chap a"},
		},
		DefaultContentType: "Web Novel",
		LatestChapterRule:  LatestFirstListed,
		Strategy:           StrategyBrowser,
		PoolSize:           2,
		Workers:            2,
		MaxCatalogPages:    120,
		TitleStrip:         []string{"(WN)", "Web Novel"},
	},
	{
		Name:           "HelScans",
		CatalogURL:     "https://helscans.com/manga/list-mode/",
		DisabledReason: "site moved to a new layout, selectors no longer match",
	},
	{
		Name:           "LuminousComics",
		CatalogURL:     "https://luminouscomics.org/series/list-mode/",
		DisabledReason: "received a DMCA takedown notice",
	},
	{
		Name:           "SuryaScans",
		CatalogURL:     "https://suryatoons.com/manga/list-mode/",
		DisabledReason: "site is down",
	},
}
