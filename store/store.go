// ABOUTME: Local contact store with optimistic, synchronous mutations
// ABOUTME: Persists contacts and groups as single keyed blobs in the kv store
package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/amc/kv"
	"github.com/harperreed/amc/models"
)

// Persistence keys. Each collection is one blob; no secondary indexes.
const (
	keyContacts = "contacts"
	keyGroups   = "groups"
)

// ErrNotFound is returned when a contact or group id does not exist.
var ErrNotFound = fmt.Errorf("not found")

// ContactStore owns the contact and group collections. All mutations are
// synchronous and immediately visible to readers.
type ContactStore struct {
	mu       sync.RWMutex
	kv       kv.Store
	contacts map[uuid.UUID]*models.Contact
	groups   map[uuid.UUID]*models.ContactGroup
}

// Open loads the persisted collections from the kv store.
func Open(store kv.Store) (*ContactStore, error) {
	s := &ContactStore{
		kv:       store,
		contacts: make(map[uuid.UUID]*models.Contact),
		groups:   make(map[uuid.UUID]*models.ContactGroup),
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ContactStore) load() error {
	data, err := s.kv.Get(keyContacts)
	if err != nil {
		return fmt.Errorf("failed to load contacts: %w", err)
	}
	if data != nil {
		var contacts []*models.Contact
		if err := json.Unmarshal(data, &contacts); err != nil {
			return fmt.Errorf("failed to decode contacts blob: %w", err)
		}
		for _, c := range contacts {
			s.contacts[c.ID] = c
		}
	}

	data, err = s.kv.Get(keyGroups)
	if err != nil {
		return fmt.Errorf("failed to load groups: %w", err)
	}
	if data != nil {
		var groups []*models.ContactGroup
		if err := json.Unmarshal(data, &groups); err != nil {
			return fmt.Errorf("failed to decode groups blob: %w", err)
		}
		for _, g := range groups {
			s.groups[g.ID] = g
		}
	}

	return nil
}

// persistContacts must be called with the write lock held.
func (s *ContactStore) persistContacts() error {
	contacts := make([]*models.Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		contacts = append(contacts, c)
	}
	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].CreatedAt.Before(contacts[j].CreatedAt)
	})

	data, err := json.Marshal(contacts)
	if err != nil {
		return fmt.Errorf("failed to encode contacts: %w", err)
	}
	return s.kv.Set(keyContacts, data)
}

// persistGroups must be called with the write lock held.
func (s *ContactStore) persistGroups() error {
	groups := make([]*models.ContactGroup, 0, len(s.groups))
	for _, g := range s.groups {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Name < groups[j].Name
	})

	data, err := json.Marshal(groups)
	if err != nil {
		return fmt.Errorf("failed to encode groups: %w", err)
	}
	return s.kv.Set(keyGroups, data)
}

// Add stores a new contact, assigning its id and timestamps.
func (s *ContactStore) Add(contact *models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if contact.ID == uuid.Nil {
		contact.ID = uuid.New()
	}
	now := time.Now()
	contact.CreatedAt = now
	contact.UpdatedAt = now
	if contact.SyncStatus == "" {
		contact.SyncStatus = models.SyncStatusNone
	}

	s.contacts[contact.ID] = contact
	return s.persistContacts()
}

// ContactPatch is a partial update. Nil fields are left untouched.
type ContactPatch struct {
	Name             *string
	Company          *string
	Title            *string
	City             *string
	Country          *string
	Identifiers      *[]models.Identifier
	Tags             *[]string
	Groups           *[]string
	Notes            *string
	FirstMetLocation *string
	FirstMetDate     *time.Time
	LastInteraction  *time.Time
}

// Update applies a partial update. Fields not present in the patch are
// never dropped.
func (s *ContactStore) Update(id uuid.UUID, patch ContactPatch) (*models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contact, ok := s.contacts[id]
	if !ok {
		return nil, fmt.Errorf("contact %s: %w", id, ErrNotFound)
	}

	if patch.Name != nil {
		contact.Name = *patch.Name
	}
	if patch.Company != nil {
		contact.Company = *patch.Company
	}
	if patch.Title != nil {
		contact.Title = *patch.Title
	}
	if patch.City != nil {
		contact.City = *patch.City
	}
	if patch.Country != nil {
		contact.Country = *patch.Country
	}
	if patch.Identifiers != nil {
		contact.Identifiers = *patch.Identifiers
	}
	if patch.Tags != nil {
		contact.Tags = *patch.Tags
	}
	if patch.Groups != nil {
		contact.Groups = *patch.Groups
	}
	if patch.Notes != nil {
		contact.Notes = *patch.Notes
	}
	if patch.FirstMetLocation != nil {
		contact.FirstMetLocation = *patch.FirstMetLocation
	}
	if patch.FirstMetDate != nil {
		contact.FirstMetDate = patch.FirstMetDate
	}
	if patch.LastInteraction != nil {
		contact.LastInteraction = patch.LastInteraction
	}
	contact.UpdatedAt = time.Now()

	if err := s.persistContacts(); err != nil {
		return nil, err
	}
	return cloneContact(contact), nil
}

// Delete removes a contact and strips its id from every group's members.
func (s *ContactStore) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contacts[id]; !ok {
		return fmt.Errorf("contact %s: %w", id, ErrNotFound)
	}
	delete(s.contacts, id)

	groupsDirty := false
	for _, g := range s.groups {
		members := g.Members[:0]
		for _, m := range g.Members {
			if m != id {
				members = append(members, m)
			}
		}
		if len(members) != len(g.Members) {
			g.Members = members
			g.UpdatedAt = time.Now()
			groupsDirty = true
		}
	}

	if err := s.persistContacts(); err != nil {
		return err
	}
	if groupsDirty {
		return s.persistGroups()
	}
	return nil
}

// ToggleStar flips the starred flag.
func (s *ContactStore) ToggleStar(id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contact, ok := s.contacts[id]
	if !ok {
		return false, fmt.Errorf("contact %s: %w", id, ErrNotFound)
	}
	contact.Starred = !contact.Starred
	contact.UpdatedAt = time.Now()

	if err := s.persistContacts(); err != nil {
		return false, err
	}
	return contact.Starred, nil
}

// Archive soft-deletes a contact, keeping the record but flagging it.
// Used when the remote mirror reports a deletion.
func (s *ContactStore) Archive(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contact, ok := s.contacts[id]
	if !ok {
		return fmt.Errorf("contact %s: %w", id, ErrNotFound)
	}
	contact.Archived = true
	contact.UpdatedAt = time.Now()
	return s.persistContacts()
}

// Get returns a copy of the contact, or nil if it does not exist.
func (s *ContactStore) Get(id uuid.UUID) *models.Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contact, ok := s.contacts[id]
	if !ok {
		return nil
	}
	return cloneContact(contact)
}

// List returns all contacts ordered by creation time.
func (s *ContactStore) List() []*models.Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contacts := make([]*models.Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		contacts = append(contacts, cloneContact(c))
	}
	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].CreatedAt.Before(contacts[j].CreatedAt)
	})
	return contacts
}

// FindByEmail returns the first contact carrying the given email
// identifier, or nil.
func (s *ContactStore) FindByEmail(email string) *models.Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.contacts {
		if c.PrimaryEmail() != "" && c.PrimaryEmail() == normalizeEmail(email) {
			return cloneContact(c)
		}
	}
	return nil
}

// FindByRemoteID returns the contact linked to the given provider record
// id, or nil.
func (s *ContactStore) FindByRemoteID(remoteID string) *models.Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.contacts {
		if c.RemoteID != "" && c.RemoteID == remoteID {
			return cloneContact(c)
		}
	}
	return nil
}

// Linked returns all contacts that carry a remote id, ordered by creation
// time. This is the reconciliation engine's working set.
func (s *ContactStore) Linked() []*models.Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var contacts []*models.Contact
	for _, c := range s.contacts {
		if c.RemoteID != "" && !c.Archived {
			contacts = append(contacts, cloneContact(c))
		}
	}
	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].CreatedAt.Before(contacts[j].CreatedAt)
	})
	return contacts
}

func cloneContact(c *models.Contact) *models.Contact {
	out := *c
	out.Identifiers = append([]models.Identifier(nil), c.Identifiers...)
	out.Tags = append([]string(nil), c.Tags...)
	out.Groups = append([]string(nil), c.Groups...)
	return &out
}

func normalizeEmail(email string) string {
	c := models.Contact{Identifiers: []models.Identifier{{Type: models.IdentifierEmail, Value: email}}}
	return c.PrimaryEmail()
}
