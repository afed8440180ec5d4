package pipeline_test

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"listing_spider/internal/models"
)

// memStore is an in-memory stand-in for the document store.
type memStore struct {
	mu         sync.Mutex
	agents     []*models.Agent
	listings   []*models.Listing
	discovered []models.DiscoveredURL
	mail       []models.MailCandidate
	failInsert bool
	updates    int
}

func (m *memStore) FindAgentByPhone(_ context.Context, phone string) (*models.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.agents {
		if a.PhoneNumber == phone {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) InsertAgent(_ context.Context, a *models.Agent) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = primitive.NewObjectID()
	cp := *a
	m.agents = append(m.agents, &cp)
	return a.ID, nil
}

func (m *memStore) UpdateAgentProfile(_ context.Context, id primitive.ObjectID, fullName, brokerage, image string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	for _, a := range m.agents {
		if a.ID == id {
			a.FullName, a.Brokerage, a.Image = fullName, brokerage, image
			return nil
		}
	}
	return errors.New("agent not found")
}

func (m *memStore) InsertListing(_ context.Context, l *models.Listing) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert {
		return primitive.NilObjectID, errors.New("connection reset")
	}
	l.ID = primitive.NewObjectID()
	cp := *l
	m.listings = append(m.listings, &cp)
	return l.ID, nil
}

func (m *memStore) PendingDiscoveredURLs(_ context.Context, limit int) ([]models.DiscoveredURL, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.DiscoveredURL
	for _, d := range m.discovered {
		if !d.IsProcessed && len(out) < limit {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memStore) MarkListingProcessed(_ context.Context, listingURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.discovered {
		if m.discovered[i].ListingURL == listingURL {
			m.discovered[i].IsProcessed = true
		}
	}
	return nil
}

func (m *memStore) PendingMailCandidates(_ context.Context, limit int) ([]models.MailCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MailCandidate
	for _, c := range m.mail {
		if !c.IsProcessed && c.URL != "" && len(out) < limit {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) MarkMailCandidateProcessed(_ context.Context, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.mail {
		if m.mail[i].MessageID == messageID {
			m.mail[i].IsProcessed = true
		}
	}
	return nil
}
