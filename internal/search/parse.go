package search

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	urlqueue "listing_spider/internal/url_queue"
)

const listingAnchors = `a[href*="/home/"], a[href*="/builder-community-plan/"]`

var (
	reCaption = regexp.MustCompile(`(?i)of\s+([\d,]+)\s+Results`)

	// tried in order against the whole page text
	countPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)([\d,]+)\s+Results?`),
		regexp.MustCompile(`(?i)([\d,]+)\s+homes?\s+for\s+sale`),
		regexp.MustCompile(`(?i)([\d,]+)\s+properties?`),
		regexp.MustCompile(`(?i)showing\s+[\d,]+\s+of\s+([\d,]+)`),
		regexp.MustCompile(`(?i)([\d,]+)\s+listings?`),
	}
)

// TotalResults infers the advertised result count of a search page: the
// pagination caption first, then generic count phrases in the page text,
// finally the number of visible listing anchors (at least perPage when any).
func TotalResults(doc *goquery.Document, perPage int) int {
	caption := doc.Find(`[data-testid="pagination-caption"]`).First().Text()
	if n, ok := matchCount(reCaption, caption); ok {
		return n
	}

	text := doc.Text()
	for _, re := range countPatterns {
		if n, ok := matchCount(re, text); ok {
			return n
		}
	}

	count := doc.Find(listingAnchors).Length()
	if count == 0 {
		return 0
	}
	return max(count, perPage)
}

func matchCount(re *regexp.Regexp, text string) (int, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

// ListingLinks returns the listing detail URLs of a search page, absolute
// against pageURL and de-duplicated by property id.
func ListingLinks(doc *goquery.Document, pageURL string) []string {
	host := hostOf(pageURL)
	set := urlqueue.NewListingSet()
	doc.Find(listingAnchors).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs, ok := urlqueue.Absolutize(href, pageURL)
		if !ok || !urlqueue.IsListingURL(abs, host) {
			return
		}
		set.Add(abs)
	})
	return set.URLs()
}
