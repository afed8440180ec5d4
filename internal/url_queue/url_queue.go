package urlqueue

import (
	"net/url"
	"regexp"
	"strings"
	"sync"
)

// ListingPathMarkers are the path fragments that identify a listing detail page.
var ListingPathMarkers = []string{"/home/", "/builder-community-plan/"}

var propertyIDRe = regexp.MustCompile(`[-/](\d+)/?$`)

// ListingSet is an ordered set of listing URLs keyed by property id.
// URLs without a recognisable id are keyed by their exact string.
type ListingSet struct {
	seen map[string]bool
	urls []string
	mu   sync.Mutex
}

func NewListingSet() *ListingSet {
	return &ListingSet{seen: make(map[string]bool)}
}

// Add keeps u only if no earlier URL carried the same key.
func (s *ListingSet) Add(u string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := u
	if id, ok := PropertyID(u); ok {
		key = "id:" + id
	}
	if s.seen[key] {
		return false
	}
	s.seen[key] = true
	s.urls = append(s.urls, u)
	return true
}

// URLs returns the kept URLs in insertion order.
func (s *ListingSet) URLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.urls...)
}

// PropertyID returns the trailing numeric id of a listing URL path.
func PropertyID(u string) (string, bool) {
	path := u
	if parsed, err := url.Parse(u); err == nil {
		path = parsed.Path
	}
	m := propertyIDRe.FindStringSubmatch(path)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func NormalizeURL(urlStr string) string {
	parsed, err := url.Parse(strings.TrimSpace(urlStr))
	if err != nil {
		return urlStr
	}

	parsed.Fragment = ""

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}

	return parsed.String()
}

// Absolutize resolves href against base. Fragment-only, javascript: and empty
// hrefs are rejected.
func Absolutize(href, base string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.Contains(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return "", false
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	return NormalizeURL(baseURL.ResolveReference(ref).String()), true
}

// IsListingURL reports whether u is a listing detail page on host.
// An empty host accepts any host.
func IsListingURL(u, host string) bool {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return false
	}
	if host != "" && !sameSite(parsed.Host, host) {
		return false
	}
	for _, marker := range ListingPathMarkers {
		if strings.Contains(parsed.Path, marker) {
			return true
		}
	}
	return false
}

func sameSite(a, b string) bool {
	return strings.TrimPrefix(strings.ToLower(a), "www.") == strings.TrimPrefix(strings.ToLower(b), "www.")
}
