// ABOUTME: Contact sync-state transitions used by the orchestrator and reconciler
// ABOUTME: Maintains the synced-implies-remote-id invariant on every transition
package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/amc/models"
)

// MarkSyncPending flags a contact as having an un-pushed local mutation.
func (s *ContactStore) MarkSyncPending(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contact, ok := s.contacts[id]
	if !ok {
		return fmt.Errorf("contact %s: %w", id, ErrNotFound)
	}
	contact.SyncStatus = models.SyncStatusPending
	contact.SyncError = ""
	return s.persistContacts()
}

// MarkSynced records a successful push or pull. remoteID must be non-empty;
// syncStatus=synced without a remote id would break the store invariant.
func (s *ContactStore) MarkSynced(id uuid.UUID, remoteID string, at time.Time) error {
	if remoteID == "" {
		return fmt.Errorf("cannot mark contact %s synced without a remote id", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	contact, ok := s.contacts[id]
	if !ok {
		return fmt.Errorf("contact %s: %w", id, ErrNotFound)
	}
	contact.RemoteID = remoteID
	contact.SyncStatus = models.SyncStatusSynced
	contact.SyncError = ""
	contact.LastSyncedAt = &at
	return s.persistContacts()
}

// MarkSyncFailed records a terminal push failure for user attention.
func (s *ContactStore) MarkSyncFailed(id uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contact, ok := s.contacts[id]
	if !ok {
		return fmt.Errorf("contact %s: %w", id, ErrNotFound)
	}
	contact.SyncStatus = models.SyncStatusFailed
	contact.SyncError = reason
	return s.persistContacts()
}

// ApplyRemote overwrites only remote-sourced fields, preserving local-only
// fields, and refreshes the sync timestamp. Used by the pull path.
func (s *ContactStore) ApplyRemote(id uuid.UUID, fields map[string]string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contact, ok := s.contacts[id]
	if !ok {
		return fmt.Errorf("contact %s: %w", id, ErrNotFound)
	}

	for field, value := range fields {
		switch field {
		case "name":
			contact.Name = value
		case "company":
			contact.Company = value
		case "title":
			contact.Title = value
		case "city":
			contact.City = value
		case "country":
			contact.Country = value
		case "first_met_location":
			contact.FirstMetLocation = value
		case "networking_notes":
			contact.Notes = value
		}
		// Unknown remote fields are ignored; local-only fields (tags,
		// groups, starred, identifiers) are never touched here.
	}

	contact.SyncStatus = models.SyncStatusSynced
	contact.SyncError = ""
	contact.LastSyncedAt = &at
	contact.UpdatedAt = at
	return s.persistContacts()
}
