// ABOUTME: Tests for the sync engine drain path and mutation entry points
// ABOUTME: Covers offline queueing, single-flight drains, retry budget, and idempotency
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/harperreed/amc/crm"
	"github.com/harperreed/amc/kv"
	"github.com/harperreed/amc/models"
	"github.com/harperreed/amc/queue"
	"github.com/harperreed/amc/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter scripts push behavior for engine tests.
type fakeAdapter struct {
	mu      sync.Mutex
	nextID  int
	pushed  []string
	deleted []string

	// failFor makes pushes of contacts with this name fail with failErr.
	failFor string
	failErr error

	fetch map[string]*crm.RemoteContact

	// block, when set, makes PushContact signal entered and wait.
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeAdapter) Provider() models.Provider { return models.ProviderHubSpot }

func (f *fakeAdapter) Mappings() []models.FieldMapping { return crm.DefaultHubSpotMappings() }

func (f *fakeAdapter) PushContact(_ context.Context, contact *models.Contact) (*crm.PushResult, error) {
	if f.block != nil {
		f.entered <- struct{}{}
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failFor != "" && contact.Name == f.failFor {
		return nil, f.failErr
	}

	f.pushed = append(f.pushed, contact.Name)
	if contact.RemoteID != "" {
		return &crm.PushResult{Outcome: crm.OutcomeUpdated, RemoteID: contact.RemoteID}, nil
	}
	f.nextID++
	return &crm.PushResult{Outcome: crm.OutcomeCreated, RemoteID: fmt.Sprintf("rem-%d", f.nextID)}, nil
}

func (f *fakeAdapter) DeleteContact(_ context.Context, remoteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, remoteID)
	return nil
}

func (f *fakeAdapter) FetchContact(_ context.Context, remoteID string) (*crm.RemoteContact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	remote, ok := f.fetch[remoteID]
	if !ok {
		return nil, crm.ErrRemoteNotFound
	}
	return remote, nil
}

func (f *fakeAdapter) pushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pushed)
}

func newTestEngine(t *testing.T, fa *fakeAdapter) (*Engine, *store.ContactStore, *queue.OfflineQueue) {
	t.Helper()

	st, err := store.Open(kv.NewMemory())
	require.NoError(t, err)
	q, err := queue.Open(kv.NewMemory())
	require.NoError(t, err)

	var adapters []crm.Adapter
	if fa != nil {
		adapters = []crm.Adapter{fa}
	}
	return New(st, q, adapters, nil), st, q
}

func newContact(name, email string) *models.Contact {
	c := &models.Contact{Name: name}
	if email != "" {
		c.Identifiers = []models.Identifier{{Type: models.IdentifierEmail, Value: email}}
	}
	return c
}

func TestOfflineAddThenDrain(t *testing.T) {
	fa := &fakeAdapter{}
	e, st, q := newTestEngine(t, fa)
	ctx := context.Background()

	e.SetOnline(false)
	contact := newContact("Ada Lovelace", "ada@example.com")
	require.NoError(t, e.AddContact(ctx, contact))

	// Offline: nothing pushed, one pending queue item, contact pending.
	assert.Equal(t, 0, fa.pushCount())
	require.Len(t, q.Eligible(), 1)
	assert.Equal(t, models.SyncStatusPending, st.Get(contact.ID).SyncStatus)

	e.SetOnline(true)
	result, err := e.Drain(ctx)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 0, q.Len())

	got := st.Get(contact.ID)
	assert.Equal(t, models.SyncStatusSynced, got.SyncStatus)
	assert.Equal(t, "rem-1", got.RemoteID)
	require.NotNil(t, got.LastSyncedAt)
}

func TestOnlineAddPushesDirectly(t *testing.T) {
	fa := &fakeAdapter{}
	e, st, q := newTestEngine(t, fa)

	contact := newContact("Grace Hopper", "grace@example.com")
	require.NoError(t, e.AddContact(context.Background(), contact))

	assert.Equal(t, 1, fa.pushCount())
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, models.SyncStatusSynced, st.Get(contact.ID).SyncStatus)
}

func TestDirectPushFailureFallsBackToQueue(t *testing.T) {
	fa := &fakeAdapter{failFor: "Flaky", failErr: errors.New("connection reset")}
	e, st, q := newTestEngine(t, fa)

	contact := newContact("Flaky", "flaky@example.com")
	require.NoError(t, e.AddContact(context.Background(), contact))

	require.Len(t, q.Eligible(), 1)
	assert.Equal(t, models.SyncStatusPending, st.Get(contact.ID).SyncStatus)
}

func TestValidationFailureIsTerminalImmediately(t *testing.T) {
	fa := &fakeAdapter{failFor: "No Email", failErr: &crm.ValidationError{Field: "email"}}
	e, st, q := newTestEngine(t, fa)

	contact := newContact("No Email", "")
	require.NoError(t, e.AddContact(context.Background(), contact))

	// Fatal input errors skip the retry budget entirely.
	assert.Empty(t, q.Eligible())
	require.Len(t, q.Failed(), 1)
	assert.Equal(t, models.SyncStatusFailed, st.Get(contact.ID).SyncStatus)
}

func TestDrainContinuesPastFailingItem(t *testing.T) {
	fa := &fakeAdapter{failFor: "Bad Apple", failErr: errors.New("timeout")}
	e, st, q := newTestEngine(t, fa)
	ctx := context.Background()

	e.SetOnline(false)
	a := newContact("First", "first@example.com")
	b := newContact("Bad Apple", "bad@example.com")
	c := newContact("Third", "third@example.com")
	require.NoError(t, e.AddContact(ctx, a))
	require.NoError(t, e.AddContact(ctx, b))
	require.NoError(t, e.AddContact(ctx, c))
	e.SetOnline(true)

	result, err := e.Drain(ctx)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "timeout")

	// The failed item stays queued with one attempt recorded.
	remaining := q.Eligible()
	require.Len(t, remaining, 1)
	assert.Equal(t, 1, remaining[0].RetryCount)
	assert.Equal(t, models.QueueStatusPending, remaining[0].Status)

	assert.Equal(t, models.SyncStatusSynced, st.Get(a.ID).SyncStatus)
	assert.Equal(t, models.SyncStatusSynced, st.Get(c.ID).SyncStatus)
}

func TestRetryBudgetExhaustion(t *testing.T) {
	fa := &fakeAdapter{failFor: "Doomed", failErr: errors.New("server error")}
	e, st, q := newTestEngine(t, fa)
	ctx := context.Background()

	e.SetOnline(false)
	contact := newContact("Doomed", "doomed@example.com")
	require.NoError(t, e.AddContact(ctx, contact))
	e.SetOnline(true)

	for i := 0; i < queue.MaxRetries; i++ {
		result, err := e.Drain(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Failed)
	}

	// Terminal: excluded from further drains, contact flagged.
	failed := q.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, queue.MaxRetries, failed[0].RetryCount)
	assert.Equal(t, models.SyncStatusFailed, st.Get(contact.ID).SyncStatus)

	result, err := e.Drain(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, 0, result.Failed)

	// Manual retry puts it back in rotation.
	require.NoError(t, q.Retry(failed[0].ID))
	require.Len(t, q.Eligible(), 1)
}

func TestDrainIsIdempotent(t *testing.T) {
	fa := &fakeAdapter{}
	e, _, q := newTestEngine(t, fa)
	ctx := context.Background()

	e.SetOnline(false)
	require.NoError(t, e.AddContact(ctx, newContact("Once", "once@example.com")))
	e.SetOnline(true)

	first, err := e.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Processed)

	second, err := e.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Processed)
	assert.Equal(t, 1, fa.pushCount())
	assert.Equal(t, 0, q.Len())
}

func TestConcurrentDrainRejected(t *testing.T) {
	fa := &fakeAdapter{
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	e, _, _ := newTestEngine(t, fa)
	ctx := context.Background()

	e.SetOnline(false)
	require.NoError(t, e.AddContact(ctx, newContact("Slow", "slow@example.com")))
	e.SetOnline(true)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := e.Drain(ctx)
		assert.NoError(t, err)
	}()

	// Wait until the first drain is inside the adapter call.
	<-fa.entered

	result, err := e.Drain(ctx)
	assert.ErrorIs(t, err, ErrDrainInProgress)
	assert.False(t, result.Success)

	close(fa.block)
	<-done
}

func TestDeleteContactQueuesRemoteID(t *testing.T) {
	fa := &fakeAdapter{}
	e, st, q := newTestEngine(t, fa)
	ctx := context.Background()

	contact := newContact("Leaving", "leaving@example.com")
	require.NoError(t, e.AddContact(ctx, contact))
	remoteID := st.Get(contact.ID).RemoteID
	require.NotEmpty(t, remoteID)

	e.SetOnline(false)
	require.NoError(t, e.DeleteContact(ctx, contact.ID))
	assert.Nil(t, st.Get(contact.ID))
	require.Len(t, q.Eligible(), 1)

	e.SetOnline(true)
	result, err := e.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)

	fa.mu.Lock()
	defer fa.mu.Unlock()
	assert.Equal(t, []string{remoteID}, fa.deleted)
}

func TestGroupMutationsSettleLocally(t *testing.T) {
	fa := &fakeAdapter{}
	e, st, q := newTestEngine(t, fa)
	ctx := context.Background()

	group := &models.ContactGroup{Name: "Gophers"}
	require.NoError(t, e.AddGroup(group))
	require.NoError(t, e.RenameGroup(group.ID, "Go Devs"))
	require.Len(t, q.Eligible(), 2)

	result, err := e.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, fa.pushCount())
	assert.NotNil(t, st.FindGroupByName("Go Devs"))
}

func TestDrainWithoutAdapterSettlesQueue(t *testing.T) {
	e, st, q := newTestEngine(t, nil)
	ctx := context.Background()

	e.SetOnline(false)
	contact := newContact("Local Only", "local@example.com")
	require.NoError(t, e.AddContact(ctx, contact))
	e.SetOnline(true)

	result, err := e.Drain(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 0, q.Len())

	// No connection: the contact simply never links.
	assert.Empty(t, st.Get(contact.ID).RemoteID)
}
