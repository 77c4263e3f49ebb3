// ABOUTME: Device address-book import consumer
// ABOUTME: Seeds new contacts from import records with email deduplication
package importer

import (
	"context"
	"fmt"

	"github.com/harperreed/amc/engine"
	"github.com/harperreed/amc/models"
	"github.com/harperreed/amc/store"
)

// DeviceContact is one candidate record produced by the device
// address-book collaborator.
type DeviceContact struct {
	Name        string              `json:"name"`
	Identifiers []models.Identifier `json:"identifiers,omitempty"`
	Company     string              `json:"company,omitempty"`
	Title       string              `json:"title,omitempty"`
	Note        string              `json:"note,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
}

// Importer seeds the contact store from device records. Imports flow
// through the engine so each new contact enters the sync pipeline.
type Importer struct {
	engine  *engine.Engine
	matcher *ContactMatcher
}

func New(eng *engine.Engine, st *store.ContactStore) *Importer {
	return &Importer{
		engine:  eng,
		matcher: NewContactMatcher(st.List()),
	}
}

// Result summarizes one import run.
type Result struct {
	Imported int
	Skipped  int
}

// Import creates a contact for every record that does not match an
// existing one by email. Matched records are skipped, never merged; the
// device copy is not a source of truth for contacts we already track.
func (im *Importer) Import(ctx context.Context, records []DeviceContact) (*Result, error) {
	result := &Result{}

	for _, rec := range records {
		if rec.Name == "" {
			result.Skipped++
			continue
		}

		email := primaryEmail(rec.Identifiers)
		if email != "" {
			if _, found := im.matcher.FindMatch(email); found {
				result.Skipped++
				continue
			}
		}

		contact := &models.Contact{
			Name:        rec.Name,
			Company:     rec.Company,
			Title:       rec.Title,
			Notes:       rec.Note,
			Tags:        rec.Tags,
			Identifiers: rec.Identifiers,
		}

		if err := im.engine.AddContact(ctx, contact); err != nil {
			return result, fmt.Errorf("failed to import %q: %w", rec.Name, err)
		}

		im.matcher.AddContact(contact)
		result.Imported++
	}

	return result, nil
}

func primaryEmail(ids []models.Identifier) string {
	c := models.Contact{Identifiers: ids}
	return c.PrimaryEmail()
}
