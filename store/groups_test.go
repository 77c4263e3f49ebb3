// ABOUTME: Tests for group CRUD and name propagation into contacts
// ABOUTME: Covers rename rewriting, delete stripping, and duplicate names
package store

import (
	"testing"

	"github.com/harperreed/amc/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddGroupRejectsDuplicateName(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AddGroup(&models.ContactGroup{Name: "Friends"}))
	err := s.AddGroup(&models.ContactGroup{Name: "Friends"})
	assert.Error(t, err)
}

func TestRenameGroupRewritesContactNames(t *testing.T) {
	s := newTestStore(t)

	contact := &models.Contact{Name: "Don Knuth"}
	require.NoError(t, s.Add(contact))

	group := &models.ContactGroup{Name: "Authors"}
	require.NoError(t, s.AddGroup(group))
	require.NoError(t, s.AddToGroup(group.ID, contact.ID))

	require.NoError(t, s.RenameGroup(group.ID, "Writers"))

	got := s.Get(contact.ID)
	assert.Equal(t, []string{"Writers"}, got.Groups)
	assert.Nil(t, s.FindGroupByName("Authors"))
	assert.NotNil(t, s.FindGroupByName("Writers"))
}

func TestDeleteGroupStripsContactNames(t *testing.T) {
	s := newTestStore(t)

	contact := &models.Contact{Name: "Leslie Lamport"}
	require.NoError(t, s.Add(contact))

	keep := &models.ContactGroup{Name: "Keep"}
	require.NoError(t, s.AddGroup(keep))
	gone := &models.ContactGroup{Name: "Gone"}
	require.NoError(t, s.AddGroup(gone))
	require.NoError(t, s.AddToGroup(keep.ID, contact.ID))
	require.NoError(t, s.AddToGroup(gone.ID, contact.ID))

	require.NoError(t, s.DeleteGroup(gone.ID))

	got := s.Get(contact.ID)
	assert.Equal(t, []string{"Keep"}, got.Groups)
	assert.Nil(t, s.GetGroup(gone.ID))
}

func TestRemoveFromGroup(t *testing.T) {
	s := newTestStore(t)

	contact := &models.Contact{Name: "Fran Allen"}
	require.NoError(t, s.Add(contact))
	group := &models.ContactGroup{Name: "Compilers"}
	require.NoError(t, s.AddGroup(group))
	require.NoError(t, s.AddToGroup(group.ID, contact.ID))

	require.NoError(t, s.RemoveFromGroup(group.ID, contact.ID))

	assert.Empty(t, s.GetGroup(group.ID).Members)
	assert.Empty(t, s.Get(contact.ID).Groups)
}
