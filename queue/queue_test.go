// ABOUTME: Tests for the durable offline mutation queue
// ABOUTME: Covers ordering, retry budget, crash recovery, and dismissal
package queue

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/harperreed/amc/kv"
	"github.com/harperreed/amc/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) *OfflineQueue {
	t.Helper()
	q, err := Open(kv.NewMemory())
	require.NoError(t, err)
	return q
}

func enqueueContact(t *testing.T, q *OfflineQueue, name string) string {
	t.Helper()
	id, err := q.Enqueue(models.QueueAddContact, models.ContactPayload{
		ContactID: uuid.New(),
		Name:      name,
	})
	require.NoError(t, err)
	return id
}

func TestEnqueueOrdering(t *testing.T) {
	q := newTestQueue(t)

	first := enqueueContact(t, q, "first")
	second := enqueueContact(t, q, "second")
	third := enqueueContact(t, q, "third")

	eligible := q.Eligible()
	require.Len(t, eligible, 3)
	assert.Equal(t, first, eligible[0].ID)
	assert.Equal(t, second, eligible[1].ID)
	assert.Equal(t, third, eligible[2].ID)

	// ULIDs sort in enqueue order even within the same millisecond.
	assert.True(t, first < second && second < third)
}

func TestPersistenceRoundTrip(t *testing.T) {
	mem := kv.NewMemory()

	q, err := Open(mem)
	require.NoError(t, err)
	id := enqueueContact(t, q, "durable")

	reopened, err := Open(mem)
	require.NoError(t, err)

	item, err := reopened.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.QueueAddContact, item.Type)
	assert.Equal(t, models.QueueStatusPending, item.Status)

	var payload models.ContactPayload
	require.NoError(t, json.Unmarshal(item.Payload, &payload))
	assert.Equal(t, "durable", payload.Name)
}

func TestCrashRecoveryResetsSyncing(t *testing.T) {
	mem := kv.NewMemory()

	q, err := Open(mem)
	require.NoError(t, err)
	id := enqueueContact(t, q, "stuck")
	require.NoError(t, q.MarkSyncing(id))

	// Simulate a crash mid-drain by reopening from the persisted blob.
	reopened, err := Open(mem)
	require.NoError(t, err)

	eligible := reopened.Eligible()
	require.Len(t, eligible, 1)
	assert.Equal(t, models.QueueStatusPending, eligible[0].Status)
}

func TestRetryBudget(t *testing.T) {
	q := newTestQueue(t)
	id := enqueueContact(t, q, "flaky")

	for i := 1; i < MaxRetries; i++ {
		item, err := q.RecordFailure(id, "timeout", false)
		require.NoError(t, err)
		assert.Equal(t, models.QueueStatusPending, item.Status)
		assert.Equal(t, i, item.RetryCount)
	}

	item, err := q.RecordFailure(id, "timeout", false)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusFailed, item.Status)
	assert.Equal(t, MaxRetries, item.RetryCount)
	assert.Equal(t, "timeout", item.LastError)

	assert.Empty(t, q.Eligible())
	require.Len(t, q.Failed(), 1)
}

func TestFatalFailureIsImmediatelyTerminal(t *testing.T) {
	q := newTestQueue(t)
	id := enqueueContact(t, q, "bad input")

	item, err := q.RecordFailure(id, "missing required field email", true)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusFailed, item.Status)
	assert.Equal(t, 1, item.RetryCount)
	assert.Empty(t, q.Eligible())
}

func TestRetryResetsFailedItem(t *testing.T) {
	q := newTestQueue(t)
	id := enqueueContact(t, q, "second chance")

	_, err := q.RecordFailure(id, "boom", true)
	require.NoError(t, err)

	// Retry is only valid on failed items.
	other := enqueueContact(t, q, "still pending")
	assert.Error(t, q.Retry(other))

	require.NoError(t, q.Retry(id))
	item, err := q.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusPending, item.Status)
	assert.Equal(t, 0, item.RetryCount)
	assert.Empty(t, item.LastError)
}

func TestDismiss(t *testing.T) {
	q := newTestQueue(t)
	id := enqueueContact(t, q, "give up")

	// Pending items cannot be dismissed.
	assert.Error(t, q.Dismiss(id))

	_, err := q.RecordFailure(id, "boom", true)
	require.NoError(t, err)
	require.NoError(t, q.Dismiss(id))

	assert.Equal(t, 0, q.Len())
	_, err = q.Get(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestComplete(t *testing.T) {
	q := newTestQueue(t)
	id := enqueueContact(t, q, "done")

	require.NoError(t, q.MarkSyncing(id))
	require.NoError(t, q.Complete(id))
	assert.Equal(t, 0, q.Len())

	assert.ErrorIs(t, q.Complete(id), ErrNotFound)
}
