package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"listing_spider/internal/models"
)

// agentSchemas cover the two contact-block templates seen on detail pages.
// The first schema producing at least one contact wins.
var agentSchemas = []Strategy[[]models.AgentContact]{
	agentContactBlocks,
	providerInfoBlocks,
}

func agentContactBlocks(doc *goquery.Document) ([]models.AgentContact, bool) {
	var out []models.AgentContact
	doc.Find("[data-testid='agent-contact']").Each(func(_ int, el *goquery.Selection) {
		c := models.AgentContact{
			Name:  selAttr(el.Find("span[title]").First(), "title"),
			Phone: selText(el.Find("ul li").Last()),
		}
		if c.Name != "" || c.Phone != "" {
			out = append(out, c)
		}
	})
	return out, len(out) > 0
}

func providerInfoBlocks(doc *goquery.Document) ([]models.AgentContact, bool) {
	var out []models.AgentContact
	doc.Find("[data-testid='provider-info']").Each(func(_ int, el *goquery.Selection) {
		phone := strings.Replace(selText(el.Find("[data-testid='agent-phone']")), "Agent Phone:", "", 1)
		c := models.AgentContact{
			Name:      selText(el.Find("[data-testid='no-form-agent-name']")),
			Brokerage: selText(el.Find("[data-testid='broker-name']")),
			Phone:     strings.TrimSpace(phone),
			Image:     selAttr(el.Find("img").First(), "src"),
		}
		if c.Name != "" || c.Brokerage != "" || c.Phone != "" {
			out = append(out, c)
		}
	})
	return out, len(out) > 0
}
