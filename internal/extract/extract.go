// Package extract reads a listing record out of a rendered detail page.
// Every field is optional: a missing element leaves the field empty.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"listing_spider/internal/models"
)

// Extract parses html and returns the listing record it describes. pageURL
// is only used to resolve the readability title fallback and may be empty.
func Extract(html, pageURL string) (*models.ListingRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	rec := &models.ListingRecord{
		Title: First(doc,
			TextOf(".fw_900.textStyle_subHeader"),
			TextOf("[data-testid='home-details-summary-headline']"),
			TextOf("h1"),
			readableTitle(html, pageURL),
		),
		Price:                First(doc, TextOf("[data-testid='on-market-price-details']")),
		Address:              First(doc, TextOf("[data-testid='home-details-summary-city-state']")),
		Beds:                 fact(doc, "bed"),
		Baths:                fact(doc, "bath"),
		Floor:                fact(doc, "floor"),
		Description:          First(doc, TextOf("[data-testid='home-description-text-description-text']")),
		HomeHighlights:       highlights(doc),
		Features:             features(doc),
		CommunityDescription: First(doc, TextOf("[data-testid='community-description-text-description-text']")),
		OfficeDetails:        officeDetails(doc),
		Images:               []string{},
		Agents:               First(doc, agentSchemas...),
	}
	if rec.Agents == nil {
		rec.Agents = []models.AgentContact{}
	}
	return rec, nil
}

func readableTitle(html, pageURL string) Strategy[string] {
	return func(*goquery.Document) (string, bool) {
		u, err := url.Parse(pageURL)
		if err != nil || pageURL == "" {
			u = &url.URL{Scheme: "https", Host: "localhost"}
		}
		article, err := readability.FromReader(strings.NewReader(html), u)
		if err != nil {
			return "", false
		}
		t := normalizeText(article.Title)
		return t, t != ""
	}
}

func fact(doc *goquery.Document, testID string) models.Fact {
	root := doc.Find(fmt.Sprintf("[data-testid='%s']", testID)).First()
	return models.Fact{
		Value: selText(root.Find("div.mx_xxs")),
		Icon:  selAttr(root.Find("img").First(), "src"),
	}
}

func highlights(doc *goquery.Document) []models.Highlight {
	out := []models.Highlight{}
	doc.Find("[data-testid='home-highlights-container'] .cell").Each(func(_ int, cell *goquery.Selection) {
		h := models.Highlight{
			Key:   selText(cell.Find(".d_block").First()),
			Value: selText(cell.Find(".fw_bold").First()),
			Icon:  selAttr(cell.Find("img").First(), "src"),
		}
		if h.Key != "" && h.Value != "" {
			out = append(out, h)
		}
	})
	return out
}

// features walks every amenities table: thead names the section, each tbody
// row is a label with its values.
func features(doc *goquery.Document) []models.FeatureSection {
	out := []models.FeatureSection{}
	doc.Find("[data-testid='features-container'] table").Each(func(_ int, table *goquery.Selection) {
		section := models.FeatureSection{
			Section: selText(table.Find("thead h3 div")),
			Icon:    selAttr(table.Find("thead img").First(), "src"),
			Items:   []models.FeatureItem{},
		}

		table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
			item := models.FeatureItem{
				Label:  selText(row.Find("[data-testid='structured-amenities-table-subcategory']")),
				Values: []string{},
			}
			row.Find("span, a").Each(func(_ int, v *goquery.Selection) {
				if t := selText(v); t != "" {
					item.Values = append(item.Values, t)
				}
			})
			if item.Label != "" || len(item.Values) > 0 {
				section.Items = append(section.Items, item)
			}
		})

		if section.Section != "" && len(section.Items) > 0 {
			out = append(out, section)
		}
	})
	return out
}

func officeDetails(doc *goquery.Document) models.OfficeDetails {
	details := models.OfficeDetails{Address: []string{}}
	container := doc.Find("[data-testid='office-hours-container']")
	if container.Length() == 0 {
		return details
	}
	details.Title = selText(container.Find("h3"))
	container.Find(".cell div").Each(func(_ int, s *goquery.Selection) {
		if t := selText(s); t != "" {
			details.Address = append(details.Address, t)
		}
	})
	return details
}
