// ABOUTME: Durable offline queue of pending local mutations
// ABOUTME: Append-only ordered log persisted as a single kv blob with ULID item ids
package queue

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/harperreed/amc/kv"
	"github.com/harperreed/amc/models"
	"github.com/oklog/ulid/v2"
)

// MaxRetries bounds how often a transiently failing item is re-attempted
// before it becomes terminally failed.
const MaxRetries = 3

const keyQueue = "offline_queue"

// ErrNotFound is returned when an item id does not exist in the queue.
var ErrNotFound = fmt.Errorf("queue item not found")

// OfflineQueue is the ordered log of local mutations awaiting delivery.
// Enqueue always succeeds locally; items leave the queue only after the
// remote call for them succeeds, or when the user dismisses a terminally
// failed item.
type OfflineQueue struct {
	mu      sync.Mutex
	kv      kv.Store
	items   []models.OfflineQueueItem
	entropy *ulid.MonotonicEntropy
}

// Open loads the persisted queue blob.
func Open(store kv.Store) (*OfflineQueue, error) {
	q := &OfflineQueue{
		kv:      store,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}

	data, err := store.Get(keyQueue)
	if err != nil {
		return nil, fmt.Errorf("failed to load offline queue: %w", err)
	}
	if data != nil {
		if err := json.Unmarshal(data, &q.items); err != nil {
			return nil, fmt.Errorf("failed to decode offline queue blob: %w", err)
		}
	}

	// An item left in syncing by a crash mid-drain goes back to pending.
	for i := range q.items {
		if q.items[i].Status == models.QueueStatusSyncing {
			q.items[i].Status = models.QueueStatusPending
		}
	}

	return q, nil
}

// persist must be called with the lock held.
func (q *OfflineQueue) persist() error {
	data, err := json.Marshal(q.items)
	if err != nil {
		return fmt.Errorf("failed to encode offline queue: %w", err)
	}
	if err := q.kv.Set(keyQueue, data); err != nil {
		return fmt.Errorf("failed to persist offline queue: %w", err)
	}
	return nil
}

// Enqueue appends a mutation to the log and returns its id. ULIDs encode
// the enqueue time, so id order is insertion order.
func (q *OfflineQueue) Enqueue(itemType models.QueueItemType, payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode queue payload: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	id := ulid.MustNew(ulid.Timestamp(now), q.entropy).String()

	q.items = append(q.items, models.OfflineQueueItem{
		ID:        id,
		Type:      itemType,
		Payload:   data,
		Timestamp: now,
		Status:    models.QueueStatusPending,
	})

	if err := q.persist(); err != nil {
		return "", err
	}
	return id, nil
}

// Eligible returns pending items in insertion order. Terminally failed
// items are excluded until the user retries them.
func (q *OfflineQueue) Eligible() []models.OfflineQueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []models.OfflineQueueItem
	for _, item := range q.items {
		if item.Status == models.QueueStatusPending {
			out = append(out, item)
		}
	}
	return out
}

// Items returns a snapshot of the whole queue in insertion order.
func (q *OfflineQueue) Items() []models.OfflineQueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]models.OfflineQueueItem(nil), q.items...)
}

// Failed returns terminally failed items awaiting user attention.
func (q *OfflineQueue) Failed() []models.OfflineQueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []models.OfflineQueueItem
	for _, item := range q.items {
		if item.Status == models.QueueStatusFailed {
			out = append(out, item)
		}
	}
	return out
}

// Len returns the number of items still in the queue.
func (q *OfflineQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Get returns the item with the given id.
func (q *OfflineQueue) Get(id string) (models.OfflineQueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, item := range q.items {
		if item.ID == id {
			return item, nil
		}
	}
	return models.OfflineQueueItem{}, fmt.Errorf("item %s: %w", id, ErrNotFound)
}

// MarkSyncing transitions an item to syncing for the duration of one
// delivery attempt. Only the orchestrator calls this.
func (q *OfflineQueue) MarkSyncing(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	item := q.find(id)
	if item == nil {
		return fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	item.Status = models.QueueStatusSyncing
	return q.persist()
}

// Complete removes an item after its remote call succeeded.
func (q *OfflineQueue) Complete(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, item := range q.items {
		if item.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return q.persist()
		}
	}
	return fmt.Errorf("item %s: %w", id, ErrNotFound)
}

// RecordFailure notes a failed delivery attempt. Fatal failures (input
// errors a retry cannot fix) go terminal immediately; transient failures
// return the item to pending until the retry budget runs out.
func (q *OfflineQueue) RecordFailure(id, reason string, fatal bool) (models.OfflineQueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item := q.find(id)
	if item == nil {
		return models.OfflineQueueItem{}, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}

	item.RetryCount++
	item.LastError = reason
	if fatal || item.RetryCount >= MaxRetries {
		item.Status = models.QueueStatusFailed
	} else {
		item.Status = models.QueueStatusPending
	}

	if err := q.persist(); err != nil {
		return models.OfflineQueueItem{}, err
	}
	return *item, nil
}

// Retry resets a terminally failed item for another round of drains.
func (q *OfflineQueue) Retry(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	item := q.find(id)
	if item == nil {
		return fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	if item.Status != models.QueueStatusFailed {
		return fmt.Errorf("item %s is not failed (status %s)", id, item.Status)
	}
	item.Status = models.QueueStatusPending
	item.RetryCount = 0
	item.LastError = ""
	return q.persist()
}

// Dismiss drops a terminally failed item the user has given up on. This
// is the only path besides Complete that removes an item.
func (q *OfflineQueue) Dismiss(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, item := range q.items {
		if item.ID == id {
			if item.Status != models.QueueStatusFailed {
				return fmt.Errorf("item %s is not failed (status %s)", id, item.Status)
			}
			q.items = append(q.items[:i], q.items[i+1:]...)
			return q.persist()
		}
	}
	return fmt.Errorf("item %s: %w", id, ErrNotFound)
}

// find must be called with the lock held.
func (q *OfflineQueue) find(id string) *models.OfflineQueueItem {
	for i := range q.items {
		if q.items[i].ID == id {
			return &q.items[i]
		}
	}
	return nil
}
