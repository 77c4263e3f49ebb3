// ABOUTME: Sync engine construction and the single-flight queue drain
// ABOUTME: Turns queued local mutations into adapter calls and records outcomes
package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/amc/crm"
	"github.com/harperreed/amc/db"
	"github.com/harperreed/amc/models"
	"github.com/harperreed/amc/queue"
	"github.com/harperreed/amc/store"
)

// Default timer intervals for the push drain and the pull reconciliation.
const (
	DefaultPushInterval = 30 * time.Second
	DefaultPullInterval = 30 * time.Second
)

// ErrDrainInProgress is returned when a drain is requested while another
// is still running.
var ErrDrainInProgress = errors.New("sync drain already in progress")

// ErrReconcileInProgress is the pull-path equivalent.
var ErrReconcileInProgress = errors.New("reconciliation already in progress")

// Options tunes an Engine. The zero value gets defaults.
type Options struct {
	PushInterval time.Duration
	PullInterval time.Duration
	// LogDB, when set, receives a sync_log row per cycle.
	LogDB *sql.DB
}

// Engine owns the offline queue drain and the pull reconciliation. It is
// explicitly constructed (no singletons) so tests can run independent
// instances side by side.
type Engine struct {
	store    *store.ContactStore
	queue    *queue.OfflineQueue
	adapters []crm.Adapter
	logDB    *sql.DB

	online      atomic.Bool
	processing  atomic.Bool
	reconciling atomic.Bool

	mu          sync.Mutex
	lastDrainAt time.Time

	pushInterval time.Duration
	pullInterval time.Duration
}

// New wires an engine to its store, queue, and the adapters for the
// active connections. The first adapter is the primary push target.
func New(st *store.ContactStore, q *queue.OfflineQueue, adapters []crm.Adapter, opts *Options) *Engine {
	e := &Engine{
		store:        st,
		queue:        q,
		adapters:     adapters,
		pushInterval: DefaultPushInterval,
		pullInterval: DefaultPullInterval,
	}
	if opts != nil {
		if opts.PushInterval > 0 {
			e.pushInterval = opts.PushInterval
		}
		if opts.PullInterval > 0 {
			e.pullInterval = opts.PullInterval
		}
		e.logDB = opts.LogDB
	}
	e.online.Store(true)
	return e
}

// SetOnline flips the connectivity flag consulted by the timers and the
// direct push path.
func (e *Engine) SetOnline(online bool) {
	e.online.Store(online)
}

// Online reports the current connectivity flag.
func (e *Engine) Online() bool {
	return e.online.Load()
}

// LastDrainAt returns the wall-clock time of the last completed drain.
func (e *Engine) LastDrainAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastDrainAt
}

// primary returns the push target adapter, or nil when no connection is
// configured.
func (e *Engine) primary() crm.Adapter {
	if len(e.adapters) == 0 {
		return nil
	}
	return e.adapters[0]
}

// Drain processes every eligible queue item in enqueue order. A drain
// requested while another is in flight returns immediately with
// ErrDrainInProgress and an unsuccessful result; two drains never run
// concurrently. One item's failure never aborts the rest of the pass.
func (e *Engine) Drain(ctx context.Context) (*models.SyncResult, error) {
	if !e.processing.CompareAndSwap(false, true) {
		return &models.SyncResult{Success: false}, ErrDrainInProgress
	}
	defer e.processing.Store(false)

	startedAt := time.Now()
	result := &models.SyncResult{}

	for _, item := range e.queue.Eligible() {
		if err := e.queue.MarkSyncing(item.ID); err != nil {
			log.Printf("sync: failed to mark item %s syncing: %v", item.ID, err)
			continue
		}

		if err := e.dispatch(ctx, item); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, models.SyncErrorDetail{
				ItemID:  item.ID,
				Message: err.Error(),
			})
			e.recordItemFailure(item, err)
			continue
		}

		if err := e.queue.Complete(item.ID); err != nil {
			log.Printf("sync: failed to remove completed item %s: %v", item.ID, err)
		}
		result.Processed++
	}

	result.Success = result.Failed == 0

	e.mu.Lock()
	e.lastDrainAt = time.Now()
	e.mu.Unlock()

	e.logCycle(db.CycleDrain, startedAt, result)
	return result, nil
}

// recordItemFailure updates the queue state machine for a failed attempt
// and mirrors terminal failures onto the contact.
func (e *Engine) recordItemFailure(item models.OfflineQueueItem, cause error) {
	updated, err := e.queue.RecordFailure(item.ID, cause.Error(), crm.IsFatal(cause))
	if err != nil {
		log.Printf("sync: failed to record failure for item %s: %v", item.ID, err)
		return
	}

	if updated.Status != models.QueueStatusFailed {
		return
	}
	if payload, ok := decodeContactPayload(item); ok {
		if err := e.store.MarkSyncFailed(payload.ContactID, cause.Error()); err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Printf("sync: failed to flag contact %s: %v", payload.ContactID, err)
		}
	}
}

// dispatch delivers one queue item. Group mutations have no remote
// representation and complete as local no-ops.
func (e *Engine) dispatch(ctx context.Context, item models.OfflineQueueItem) error {
	switch item.Type {
	case models.QueueAddContact, models.QueueEditContact:
		payload, ok := decodeContactPayload(item)
		if !ok {
			return &crm.ValidationError{Field: "payload"}
		}
		return e.pushContact(ctx, payload.ContactID)

	case models.QueueDeleteContact:
		payload, ok := decodeContactPayload(item)
		if !ok {
			return &crm.ValidationError{Field: "payload"}
		}
		return e.pushDelete(ctx, payload.RemoteID)

	case models.QueueAddGroup, models.QueueEditGroup, models.QueueDeleteGroup:
		// Providers have no group surface; groups settle locally.
		return nil

	default:
		return &crm.ValidationError{Field: "type"}
	}
}

// pushContact pushes the current local state of a contact through the
// primary adapter and records the link. All resolution outcomes,
// including note_added on an ownership conflict, count as success.
func (e *Engine) pushContact(ctx context.Context, contactID uuid.UUID) error {
	contact := e.store.Get(contactID)
	if contact == nil {
		// Deleted locally after the item was enqueued; nothing to push.
		return nil
	}

	adapter := e.primary()
	if adapter == nil {
		// No connection configured; the mutation settles locally.
		return nil
	}

	res, err := adapter.PushContact(ctx, contact)
	if err != nil {
		return err
	}

	// Refresh the sync watermark immediately so a racing pull cycle does
	// not clobber this push with stale remote state.
	if err := e.store.MarkSynced(contact.ID, res.RemoteID, time.Now()); err != nil {
		return fmt.Errorf("push succeeded but local bookkeeping failed: %w", err)
	}

	if res.Outcome == crm.OutcomeNoteAdded {
		log.Printf("sync: contact %s owned by %s on %s; networking note attached",
			contact.ID, res.ExistingOwner, adapter.Provider())
	}
	return nil
}

func (e *Engine) pushDelete(ctx context.Context, remoteID string) error {
	if remoteID == "" {
		// Never linked; nothing remote to remove.
		return nil
	}
	adapter := e.primary()
	if adapter == nil {
		return nil
	}
	return adapter.DeleteContact(ctx, remoteID)
}

func (e *Engine) logCycle(kind string, startedAt time.Time, result *models.SyncResult) {
	if e.logDB == nil {
		return
	}
	if err := db.RecordCycle(e.logDB, kind, startedAt, time.Since(startedAt), result); err != nil {
		log.Printf("sync: failed to record %s cycle: %v", kind, err)
	}

	adapter := e.primary()
	if adapter == nil {
		return
	}
	provider := string(adapter.Provider())
	if result.Failed > 0 {
		summary := fmt.Sprintf("%d of %d items failed", result.Failed, result.Failed+result.Processed)
		if err := db.UpdateSyncStatus(e.logDB, provider, db.SyncStatusError, &summary); err != nil {
			log.Printf("sync: failed to update sync state: %v", err)
		}
		return
	}
	if err := db.MarkSyncComplete(e.logDB, provider); err != nil {
		log.Printf("sync: failed to update sync state: %v", err)
	}
}

func decodeContactPayload(item models.OfflineQueueItem) (models.ContactPayload, bool) {
	var payload models.ContactPayload
	if err := json.Unmarshal(item.Payload, &payload); err != nil {
		return payload, false
	}
	return payload, true
}
