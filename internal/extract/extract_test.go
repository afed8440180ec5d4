package extract_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing_spider/internal/extract"
	"listing_spider/internal/models"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(b)
}

func TestExtractProviderInfoTemplate(t *testing.T) {
	rec, err := extract.Extract(loadFixture(t, "provider_info.html"), "https://www.trulia.com/home/123-main-st-456301031")
	require.NoError(t, err)

	assert.Equal(t, "123 Main St", rec.Title)
	assert.Equal(t, "$425,000", rec.Price)
	assert.Equal(t, "Fresno, CA 93720", rec.Address)
	assert.Equal(t, models.Fact{Value: "3 Beds", Icon: "https://static.trulia.com/icons/bed.svg"}, rec.Beds)
	assert.Equal(t, "2 Baths", rec.Baths.Value)
	assert.Equal(t, "1,620 sqft", rec.Floor.Value)
	assert.Equal(t, "Bright single-story home with a large backyard.", rec.Description)
	assert.Equal(t, "Quiet neighborhood near parks.", rec.CommunityDescription)

	assert.Equal(t, []models.Highlight{
		{Key: "Parking", Value: "Garage", Icon: "https://static.trulia.com/icons/parking.svg"},
		{Key: "Year Built", Value: "1998"},
	}, rec.HomeHighlights)

	require.Len(t, rec.Features, 1)
	assert.Equal(t, "Interior Details", rec.Features[0].Section)
	assert.Equal(t, "https://static.trulia.com/icons/interior.svg", rec.Features[0].Icon)
	assert.Equal(t, []models.FeatureItem{
		{Label: "Bedrooms", Values: []string{"Bedrooms: 3"}},
		{Label: "Heating", Values: []string{"Central", "Gas"}},
	}, rec.Features[0].Items)

	assert.Equal(t, models.OfficeDetails{
		Title:   "Sales Office",
		Address: []string{"100 Builder Way", "Fresno, CA 93720"},
	}, rec.OfficeDetails)

	require.Len(t, rec.Agents, 2)
	primary, ok := rec.PrimaryAgent()
	require.True(t, ok)
	assert.Equal(t, models.AgentContact{
		Name:      "Jane Doe",
		Phone:     "(559) 555-0100",
		Brokerage: "Acme Realty",
		Image:     "https://pictures.trulia.com/agent/jane.jpg",
	}, primary)
	assert.Equal(t, "(559) 555-0199", rec.Agents[1].Phone)
}

func TestExtractAgentContactTemplateWinsOverLaterSchema(t *testing.T) {
	rec, err := extract.Extract(loadFixture(t, "agent_contact.html"), "")
	require.NoError(t, err)

	assert.Equal(t, "Plan 2 at The Oaks", rec.Title)
	require.Len(t, rec.Agents, 1)
	assert.Equal(t, models.AgentContact{Name: "Pat Smith", Phone: "(559) 555-0123"}, rec.Agents[0])
}

func TestExtractEmptyDocumentYieldsEmptyFields(t *testing.T) {
	rec, err := extract.Extract("<html><body><p>nothing here</p></body></html>", "https://www.trulia.com/home/1")
	require.NoError(t, err)

	assert.Empty(t, rec.Price)
	assert.Empty(t, rec.Address)
	assert.Empty(t, rec.Beds.Value)
	assert.NotNil(t, rec.HomeHighlights)
	assert.Empty(t, rec.HomeHighlights)
	assert.NotNil(t, rec.Features)
	assert.Empty(t, rec.Features)
	assert.NotNil(t, rec.Images)
	assert.Empty(t, rec.Images)
	assert.Empty(t, rec.Agents)
	_, ok := rec.PrimaryAgent()
	assert.False(t, ok)
}

func TestFirstStrategy(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<div class="b">second</div><div class="c" data-x="attr"></div>`))
	require.NoError(t, err)

	assert.Equal(t, "second", extract.First(doc, extract.TextOf(".a"), extract.TextOf(".b")))
	assert.Equal(t, "attr", extract.First(doc, extract.TextOf(".c"), extract.AttrOf(".c", "data-x")))
	assert.Equal(t, "", extract.First(doc, extract.TextOf(".missing")))
}
