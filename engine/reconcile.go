// ABOUTME: Pull-path reconciliation of remote CRM edits into the local store
// ABOUTME: Last-write-wins by timestamp, skipping records where local is fresher
package engine

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/harperreed/amc/crm"
	"github.com/harperreed/amc/db"
	"github.com/harperreed/amc/models"
)

// Reconcile fetches the remote record for every linked contact and merges
// changes the provider side made since the last sync. A remote not-found
// is not an error: the record was deleted or archived remotely and the
// local contact is left untouched.
func (e *Engine) Reconcile(ctx context.Context) (*models.SyncResult, error) {
	if !e.reconciling.CompareAndSwap(false, true) {
		return &models.SyncResult{Success: false}, ErrReconcileInProgress
	}
	defer e.reconciling.Store(false)

	adapter := e.primary()
	if adapter == nil {
		return &models.SyncResult{Success: true}, nil
	}

	startedAt := time.Now()
	result := &models.SyncResult{}

	for _, contact := range e.store.Linked() {
		remote, err := adapter.FetchContact(ctx, contact.RemoteID)
		if errors.Is(err, crm.ErrRemoteNotFound) {
			continue
		}
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, models.SyncErrorDetail{
				ItemID:  contact.ID.String(),
				Message: err.Error(),
			})
			continue
		}

		// Local freshness watermark: last sync time, falling back to the
		// local edit time for contacts that were linked but never synced.
		watermark := contact.UpdatedAt
		if contact.LastSyncedAt != nil {
			watermark = *contact.LastSyncedAt
		}
		if !remote.ModifiedAt.After(watermark) {
			continue
		}

		fields := crm.ReverseMap(remote.Fields, adapter.Mappings())
		if err := e.store.ApplyRemote(contact.ID, fields, remote.ModifiedAt); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, models.SyncErrorDetail{
				ItemID:  contact.ID.String(),
				Message: err.Error(),
			})
			continue
		}
		result.Processed++
	}

	result.Success = result.Failed == 0
	e.logCycle(db.CycleReconcile, startedAt, result)

	if result.Processed > 0 {
		log.Printf("sync: reconciled %d remote change(s)", result.Processed)
	}
	return result, nil
}
