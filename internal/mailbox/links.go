package mailbox

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	reNotLetter  = regexp.MustCompile(`[^\p{L}\s]+`)
	reWhitespace = regexp.MustCompile(`\s+`)
	reSeeMore    = regexp.MustCompile(`^see (more|more photos?|all photos?|photos?)$`)
)

// normalizeAnchorText lowercases s and strips digits, punctuation and extra
// whitespace: "See 49 More Photos!" becomes "see more photos".
func normalizeAnchorText(s string) string {
	s = strings.ToLower(s)
	s = reNotLetter.ReplaceAllString(s, " ")
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}

type anchor struct {
	href string
	text string
}

// PickListingLink chooses at most one listing URL from a message body: an
// anchor whose text is a "see more photos" call to action, else an anchor to
// a partner domain, else one whose text mentions "more" or "photos".
func PickListingLink(html string, partnerDomains []string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}

	var anchors []anchor
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if !usableHref(href) {
			return
		}
		anchors = append(anchors, anchor{href: href, text: s.Text()})
	})

	for _, a := range anchors {
		if reSeeMore.MatchString(normalizeAnchorText(a.text)) {
			return a.href, true
		}
	}
	for _, a := range anchors {
		if onPartnerDomain(a.href, partnerDomains) {
			return a.href, true
		}
	}
	for _, a := range anchors {
		t := strings.ToLower(a.text)
		if strings.Contains(t, "more") || strings.Contains(t, "photos") {
			return a.href, true
		}
	}
	return "", false
}

func usableHref(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return false
	}
	lower := strings.ToLower(href)
	return !strings.HasPrefix(lower, "mailto:") && !strings.HasPrefix(lower, "javascript:") && !strings.HasPrefix(lower, "tel:")
}

func onPartnerDomain(href string, domains []string) bool {
	u, err := url.Parse(href)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range domains {
		d = strings.ToLower(strings.TrimPrefix(d, "."))
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
