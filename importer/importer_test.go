// ABOUTME: Tests for device address-book import and email deduplication
// ABOUTME: Covers skip rules and sync enrollment of newly imported contacts
package importer

import (
	"context"
	"testing"

	"github.com/harperreed/amc/engine"
	"github.com/harperreed/amc/kv"
	"github.com/harperreed/amc/models"
	"github.com/harperreed/amc/queue"
	"github.com/harperreed/amc/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestImporter(t *testing.T) (*Importer, *store.ContactStore, *queue.OfflineQueue) {
	t.Helper()

	st, err := store.Open(kv.NewMemory())
	require.NoError(t, err)
	q, err := queue.Open(kv.NewMemory())
	require.NoError(t, err)

	eng := engine.New(st, q, nil, nil)
	eng.SetOnline(false)
	return New(eng, st), st, q
}

func emailID(value string) []models.Identifier {
	return []models.Identifier{{Type: models.IdentifierEmail, Value: value}}
}

func TestImportCreatesNewContacts(t *testing.T) {
	im, st, q := newTestImporter(t)

	result, err := im.Import(context.Background(), []DeviceContact{
		{Name: "Ada Lovelace", Identifiers: emailID("ada@example.com"), Company: "Analytical Engines"},
		{Name: "Grace Hopper", Identifiers: emailID("grace@example.com")},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 0, result.Skipped)
	assert.Len(t, st.List(), 2)

	// Imported contacts enter the sync pipeline like any other mutation.
	assert.Len(t, q.Eligible(), 2)
	imported := st.FindByEmail("ada@example.com")
	require.NotNil(t, imported)
	assert.Equal(t, "Analytical Engines", imported.Company)
	assert.Equal(t, models.SyncStatusPending, imported.SyncStatus)
}

func TestImportSkipsExistingEmails(t *testing.T) {
	im, st, _ := newTestImporter(t)

	existing := &models.Contact{Name: "Already Here", Identifiers: emailID("dupe@example.com")}
	require.NoError(t, st.Add(existing))

	// Matcher snapshots are taken at construction, so rebuild it.
	im = New(im.engine, st)

	result, err := im.Import(context.Background(), []DeviceContact{
		{Name: "Device Copy", Identifiers: emailID("DUPE@example.com")},
		{Name: "Fresh Face", Identifiers: emailID("fresh@example.com")},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, "Already Here", st.FindByEmail("dupe@example.com").Name)
}

func TestImportSkipsNamelessAndSessionDupes(t *testing.T) {
	im, st, _ := newTestImporter(t)

	result, err := im.Import(context.Background(), []DeviceContact{
		{Name: "", Identifiers: emailID("noname@example.com")},
		{Name: "First Copy", Identifiers: emailID("twice@example.com")},
		{Name: "Second Copy", Identifiers: emailID("twice@example.com")},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 2, result.Skipped)
	assert.Len(t, st.List(), 1)
	assert.Equal(t, "First Copy", st.FindByEmail("twice@example.com").Name)
}

func TestMatcherNormalizesEmail(t *testing.T) {
	m := NewContactMatcher([]*models.Contact{
		{Name: "Mixed Case", Identifiers: emailID("Mixed@Example.COM")},
	})

	_, found := m.FindMatch("  mixed@example.com ")
	assert.True(t, found)

	_, found = m.FindMatch("other@example.com")
	assert.False(t, found)

	_, found = m.FindMatch("")
	assert.False(t, found)
}
