// ABOUTME: Tests for inbound webhook event handling and the HTTP surface
// ABOUTME: Covers namespaced property changes, remote creations, deletions, and bad payloads
package webhook

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harperreed/amc/crm"
	"github.com/harperreed/amc/kv"
	"github.com/harperreed/amc/models"
	"github.com/harperreed/amc/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*Handler, *store.ContactStore) {
	t.Helper()
	st, err := store.Open(kv.NewMemory())
	require.NoError(t, err)
	return NewHandler(st, crm.DefaultHubSpotMappings()), st
}

func linkedContact(t *testing.T, st *store.ContactStore, name, remoteID string) *models.Contact {
	t.Helper()
	contact := &models.Contact{Name: name}
	require.NoError(t, st.Add(contact))
	require.NoError(t, st.MarkSynced(contact.ID, remoteID, time.Now().Add(-time.Hour)))
	return contact
}

func TestPropertyChangeAppliesNamespacedField(t *testing.T) {
	h, st := newTestHandler(t)
	contact := linkedContact(t, st, "Ada Lovelace", "rem-1")

	h.HandleEvent(Event{
		SubscriptionType: EventPropertyChange,
		ObjectID:         "rem-1",
		PropertyName:     "amc_networking_notes",
		PropertyValue:    "edited in the CRM",
		OccurredAt:       time.Now().UnixMilli(),
	})

	got := st.Get(contact.ID)
	assert.Equal(t, "edited in the CRM", got.Notes)
}

func TestPropertyChangeIgnoresNativeFields(t *testing.T) {
	h, st := newTestHandler(t)
	contact := linkedContact(t, st, "Grace Hopper", "rem-2")

	h.HandleEvent(Event{
		SubscriptionType: EventPropertyChange,
		ObjectID:         "rem-2",
		PropertyName:     "lifecyclestage",
		PropertyValue:    "customer",
	})

	got := st.Get(contact.ID)
	assert.Empty(t, got.Notes)
	assert.Equal(t, "Grace Hopper", got.Name)
}

func TestPropertyChangeUnknownRemoteID(t *testing.T) {
	h, st := newTestHandler(t)

	// No contact is linked to this id; nothing should happen.
	h.HandleEvent(Event{
		SubscriptionType: EventPropertyChange,
		ObjectID:         "rem-unknown",
		PropertyName:     "amc_networking_notes",
		PropertyValue:    "orphan",
	})

	assert.Empty(t, st.List())
}

func TestCreationImportsNamespacedRecord(t *testing.T) {
	h, st := newTestHandler(t)

	h.HandleEvent(Event{
		SubscriptionType: EventCreation,
		ObjectID:         "rem-3",
		Properties: map[string]string{
			"firstname":              "Alan Turing",
			"email":                  "alan@example.com",
			"amc_first_met_location": "Bletchley",
			"amc_networking_tags":    "crypto,math",
		},
	})

	contact := st.FindByRemoteID("rem-3")
	require.NotNil(t, contact)
	assert.Equal(t, "Alan Turing", contact.Name)
	assert.Equal(t, "Bletchley", contact.FirstMetLocation)
	assert.Equal(t, []string{"crypto", "math"}, contact.Tags)
	assert.Equal(t, "alan@example.com", contact.PrimaryEmail())
	assert.Equal(t, models.SyncStatusSynced, contact.SyncStatus)
}

func TestCreationSkipsBareNativeRecord(t *testing.T) {
	h, st := newTestHandler(t)

	// A contact created by the CRM's own workflow carries none of our
	// namespaced fields and is not mirrored.
	h.HandleEvent(Event{
		SubscriptionType: EventCreation,
		ObjectID:         "rem-4",
		Properties: map[string]string{
			"firstname": "Native Lead",
			"email":     "lead@example.com",
		},
	})

	assert.Nil(t, st.FindByRemoteID("rem-4"))
}

func TestCreationIsIdempotent(t *testing.T) {
	h, st := newTestHandler(t)
	linkedContact(t, st, "Existing", "rem-5")

	h.HandleEvent(Event{
		SubscriptionType: EventCreation,
		ObjectID:         "rem-5",
		Properties: map[string]string{
			"firstname":              "Duplicate",
			"amc_first_met_location": "somewhere",
		},
	})

	require.Len(t, st.List(), 1)
	assert.Equal(t, "Existing", st.FindByRemoteID("rem-5").Name)
}

func TestDeletionArchivesLinkedContact(t *testing.T) {
	h, st := newTestHandler(t)
	contact := linkedContact(t, st, "Leaving", "rem-6")

	h.HandleEvent(Event{
		SubscriptionType: EventDeletion,
		ObjectID:         "rem-6",
	})

	got := st.Get(contact.ID)
	require.NotNil(t, got)
	assert.True(t, got.Archived)
}

func TestUnknownEventKindIgnored(t *testing.T) {
	h, st := newTestHandler(t)

	h.HandleEvent(Event{
		SubscriptionType: "object.merged",
		ObjectID:         "rem-7",
	})

	assert.Empty(t, st.List())
}

func TestParseEvents(t *testing.T) {
	batch := ParseEvents([]byte(`[
		{"subscriptionType":"object.deletion","objectId":"a"},
		{"subscriptionType":"object.creation","objectId":"b"}
	]`))
	require.Len(t, batch, 2)
	assert.Equal(t, "a", batch[0].ObjectID)

	single := ParseEvents([]byte(`{"subscriptionType":"object.deletion","objectId":"c"}`))
	require.Len(t, single, 1)
	assert.Equal(t, "c", single[0].ObjectID)

	assert.Nil(t, ParseEvents([]byte(`not json`)))
	assert.Nil(t, ParseEvents([]byte(`{"unrelated":true}`)))
}

func TestRouterDeliversEvents(t *testing.T) {
	h, st := newTestHandler(t)
	contact := linkedContact(t, st, "Via HTTP", "rem-8")

	srv := httptest.NewServer(NewRouter(h))
	defer srv.Close()

	body := `[{"subscriptionType":"object.propertyChange","objectId":"rem-8",` +
		`"propertyName":"amc_networking_notes","propertyValue":"from webhook"}]`
	resp, err := http.Post(srv.URL+"/webhooks/hubspot", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "from webhook", st.Get(contact.ID).Notes)

	// Garbage bodies are acknowledged, never retried.
	resp, err = http.Post(srv.URL+"/webhooks/hubspot", "application/json", strings.NewReader("garbage"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := httptest.NewServer(NewRouter(h))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
