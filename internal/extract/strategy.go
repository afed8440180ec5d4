package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var reWhitespace = regexp.MustCompile(`\s+`)

// Strategy tries to derive one value from a document.
type Strategy[T any] func(doc *goquery.Document) (T, bool)

// First evaluates strategies in order and returns the first hit, or the zero
// value when none applies.
func First[T any](doc *goquery.Document, strategies ...Strategy[T]) T {
	for _, s := range strategies {
		if v, ok := s(doc); ok {
			return v
		}
	}
	var zero T
	return zero
}

// TextOf reads the trimmed text of the first element matching selector.
func TextOf(selector string) Strategy[string] {
	return func(doc *goquery.Document) (string, bool) {
		v := normalizeText(doc.Find(selector).First().Text())
		return v, v != ""
	}
}

// AttrOf reads attr of the first element matching selector.
func AttrOf(selector, attr string) Strategy[string] {
	return func(doc *goquery.Document) (string, bool) {
		v, _ := doc.Find(selector).First().Attr(attr)
		v = strings.TrimSpace(v)
		return v, v != ""
	}
}

func normalizeText(text string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
}

func selText(s *goquery.Selection) string {
	return normalizeText(s.Text())
}

func selAttr(s *goquery.Selection, attr string) string {
	v, _ := s.Attr(attr)
	return strings.TrimSpace(v)
}
