// ABOUTME: Contact group CRUD with referential cleanup
// ABOUTME: Keeps group members and contact group-name lists consistent
package store

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/amc/models"
)

// AddGroup stores a new group. Group names are unique within the store.
func (s *ContactStore) AddGroup(group *models.ContactGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range s.groups {
		if g.Name == group.Name {
			return fmt.Errorf("group %q already exists", group.Name)
		}
	}

	if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}
	now := time.Now()
	group.CreatedAt = now
	group.UpdatedAt = now

	s.groups[group.ID] = group
	return s.persistGroups()
}

// RenameGroup updates a group's name, rewriting the name in every member
// contact's group list.
func (s *ContactStore) RenameGroup(id uuid.UUID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[id]
	if !ok {
		return fmt.Errorf("group %s: %w", id, ErrNotFound)
	}
	for _, g := range s.groups {
		if g.ID != id && g.Name == name {
			return fmt.Errorf("group %q already exists", name)
		}
	}

	oldName := group.Name
	group.Name = name
	group.UpdatedAt = time.Now()

	contactsDirty := false
	for _, c := range s.contacts {
		for i, n := range c.Groups {
			if n == oldName {
				c.Groups[i] = name
				contactsDirty = true
			}
		}
	}

	if err := s.persistGroups(); err != nil {
		return err
	}
	if contactsDirty {
		return s.persistContacts()
	}
	return nil
}

// DeleteGroup removes a group and strips its name from member contacts.
func (s *ContactStore) DeleteGroup(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[id]
	if !ok {
		return fmt.Errorf("group %s: %w", id, ErrNotFound)
	}
	delete(s.groups, id)

	contactsDirty := false
	for _, c := range s.contacts {
		names := c.Groups[:0]
		for _, n := range c.Groups {
			if n != group.Name {
				names = append(names, n)
			}
		}
		if len(names) != len(c.Groups) {
			c.Groups = names
			contactsDirty = true
		}
	}

	if err := s.persistGroups(); err != nil {
		return err
	}
	if contactsDirty {
		return s.persistContacts()
	}
	return nil
}

// AddToGroup links a contact into a group, updating both sides.
func (s *ContactStore) AddToGroup(groupID, contactID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[groupID]
	if !ok {
		return fmt.Errorf("group %s: %w", groupID, ErrNotFound)
	}
	contact, ok := s.contacts[contactID]
	if !ok {
		return fmt.Errorf("contact %s: %w", contactID, ErrNotFound)
	}

	if !group.HasMember(contactID) {
		group.Members = append(group.Members, contactID)
		group.UpdatedAt = time.Now()
	}

	found := false
	for _, n := range contact.Groups {
		if n == group.Name {
			found = true
			break
		}
	}
	if !found {
		contact.Groups = append(contact.Groups, group.Name)
		contact.UpdatedAt = time.Now()
	}

	if err := s.persistGroups(); err != nil {
		return err
	}
	return s.persistContacts()
}

// RemoveFromGroup unlinks a contact from a group, updating both sides.
func (s *ContactStore) RemoveFromGroup(groupID, contactID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[groupID]
	if !ok {
		return fmt.Errorf("group %s: %w", groupID, ErrNotFound)
	}

	members := group.Members[:0]
	for _, m := range group.Members {
		if m != contactID {
			members = append(members, m)
		}
	}
	group.Members = members
	group.UpdatedAt = time.Now()

	if contact, ok := s.contacts[contactID]; ok {
		names := contact.Groups[:0]
		for _, n := range contact.Groups {
			if n != group.Name {
				names = append(names, n)
			}
		}
		contact.Groups = names
	}

	if err := s.persistGroups(); err != nil {
		return err
	}
	return s.persistContacts()
}

// GetGroup returns a copy of the group, or nil.
func (s *ContactStore) GetGroup(id uuid.UUID) *models.ContactGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()

	group, ok := s.groups[id]
	if !ok {
		return nil
	}
	return cloneGroup(group)
}

// FindGroupByName returns the group with the given name, or nil.
func (s *ContactStore) FindGroupByName(name string) *models.ContactGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, g := range s.groups {
		if g.Name == name {
			return cloneGroup(g)
		}
	}
	return nil
}

// ListGroups returns all groups ordered by name.
func (s *ContactStore) ListGroups() []*models.ContactGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make([]*models.ContactGroup, 0, len(s.groups))
	for _, g := range s.groups {
		groups = append(groups, cloneGroup(g))
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Name < groups[j].Name
	})
	return groups
}

func cloneGroup(g *models.ContactGroup) *models.ContactGroup {
	out := *g
	out.Members = append([]uuid.UUID(nil), g.Members...)
	return &out
}
