package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DiscoveredURL is a listing link harvested from a search-result page.
// (SourceURL, ScrapedURL, ListingURL) is unique.
type DiscoveredURL struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	SourceURL   string             `bson:"sourceUrl"`
	ScrapedURL  string             `bson:"scrapedUrl"`
	ListingURL  string             `bson:"listingUrl"`
	IsProcessed bool               `bson:"isScraped"`
	Priority    int                `bson:"priority"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

// MailCandidate is the listing link found in one mailbox message.
type MailCandidate struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	MessageID   string             `bson:"messageId"`
	URL         string             `bson:"url"`
	IsProcessed bool               `bson:"isScraped"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

// Agent is the listing agent. The pipeline owns only FullName, PhoneNumber,
// Brokerage and Image; every other field belongs to the CRM workflows.
type Agent struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	FullName    string             `bson:"fullName"`
	PhoneNumber string             `bson:"phoneNumber"`
	Brokerage   string             `bson:"brokerage"`
	Image       string             `bson:"image"`

	Email            *string  `bson:"email"`
	CountryCode      string   `bson:"countryCode,omitempty"`
	ProfileImage     *string  `bson:"profileImage"`
	Address          *string  `bson:"address"`
	SMSAddress       *string  `bson:"smsAddress"`
	Comment          *string  `bson:"comment"`
	Link             string   `bson:"link,omitempty"`
	TimeZone         string   `bson:"timeZone,omitempty"`
	Lat              *float64 `bson:"lat,omitempty"`
	Lng              *float64 `bson:"lng,omitempty"`
	Feedback         *int     `bson:"feedback,omitempty"`
	Zillow           *string  `bson:"zillow"`
	LinkedIn         *string  `bson:"linkedIn"`
	Facebook         *string  `bson:"facebook"`
	WebLink          *string  `bson:"webLink"`
	ListingLink      *string  `bson:"listingLink"`
	Other            *string  `bson:"other"`
	Letter           *string  `bson:"letter"`
	DiscountCard     *string  `bson:"discountCard"`
	Brochure         *string  `bson:"brochure"`
	OtherFile        *string  `bson:"otherFile"`
	NumberOfListings *int     `bson:"numberOfListings"`
	RAState          *string  `bson:"raState"`
	ClosestCity      *string  `bson:"closestCity"`
	DiscountCode     *string  `bson:"discountCodeCoupon"`
	RAMailingAddress *string  `bson:"raMailingAddress"`
	ReferredBy       *string  `bson:"referredBy"`
	DiscountCardPDF  *string  `bson:"discountCardPdf"`
	IsView           bool     `bson:"isView"`

	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// Listing is one persisted extraction. AgentID is a lookup reference only.
type Listing struct {
	ID                   primitive.ObjectID  `bson:"_id,omitempty"`
	Title                string              `bson:"title"`
	Price                string              `bson:"price"`
	Address              string              `bson:"address"`
	Beds                 Fact                `bson:"beds"`
	Baths                Fact                `bson:"baths"`
	Floor                Fact                `bson:"floor"`
	Description          string              `bson:"description"`
	HomeHighlights       []Highlight         `bson:"homeHighlights"`
	Features             []FeatureSection    `bson:"features"`
	CommunityDescription string              `bson:"communityDescription"`
	OfficeDetails        OfficeDetails       `bson:"officeDetails"`
	Images               []string            `bson:"images"`
	AgentID              *primitive.ObjectID `bson:"agentId,omitempty"`
	SourceURL            string              `bson:"sourceUrl,omitempty"`
	IsView               bool                `bson:"isView"`
	CreatedAt            time.Time           `bson:"createdAt"`
	UpdatedAt            time.Time           `bson:"updatedAt"`
}

// Fact is a summary figure such as beds or baths with its icon.
type Fact struct {
	Value string `bson:"value" json:"value"`
	Icon  string `bson:"image,omitempty" json:"icon,omitempty"`
}

type Highlight struct {
	Key   string `bson:"key" json:"key"`
	Value string `bson:"value" json:"value"`
	Icon  string `bson:"image,omitempty" json:"icon,omitempty"`
}

type FeatureSection struct {
	Section string        `bson:"section" json:"section"`
	Icon    string        `bson:"icon,omitempty" json:"icon,omitempty"`
	Items   []FeatureItem `bson:"items" json:"items"`
}

type FeatureItem struct {
	Label  string   `bson:"label" json:"label"`
	Values []string `bson:"values" json:"values"`
}

type OfficeDetails struct {
	Title   string   `bson:"title,omitempty" json:"title,omitempty"`
	Address []string `bson:"address" json:"address"`
}

// AgentContact is one contact block found on a listing page.
type AgentContact struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Brokerage string `json:"brokerage,omitempty"`
	Image     string `json:"image,omitempty"`
}

// ListingRecord is the extractor output. It carries no identifiers.
type ListingRecord struct {
	Title                string           `json:"title"`
	Price                string           `json:"price"`
	Address              string           `json:"address"`
	Beds                 Fact             `json:"beds"`
	Baths                Fact             `json:"baths"`
	Floor                Fact             `json:"floor"`
	Description          string           `json:"description"`
	HomeHighlights       []Highlight      `json:"homeHighlights"`
	Features             []FeatureSection `json:"features"`
	CommunityDescription string           `json:"communityDescription"`
	OfficeDetails        OfficeDetails    `json:"officeDetails"`
	Images               []string         `json:"images"`
	Agents               []AgentContact   `json:"agents"`
}

// PrimaryAgent returns the first contact block, the only one persisted.
func (r *ListingRecord) PrimaryAgent() (AgentContact, bool) {
	if len(r.Agents) == 0 {
		return AgentContact{}, false
	}
	return r.Agents[0], true
}

// TokenState is the persisted OAuth token pair of the mailbox account.
type TokenState struct {
	Account      string    `bson:"_id" json:"account,omitempty"`
	AccessToken  string    `bson:"access_token" json:"access_token"`
	RefreshToken string    `bson:"refresh_token" json:"refresh_token"`
	TokenType    string    `bson:"token_type,omitempty" json:"token_type,omitempty"`
	Scope        string    `bson:"scope,omitempty" json:"scope,omitempty"`
	Expiry       time.Time `bson:"expiry" json:"expiry"`
}
