// ABOUTME: Mutation entry points that apply locally then push or enqueue
// ABOUTME: Guarantees no local change is ever silently dropped from sync
package engine

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/harperreed/amc/crm"
	"github.com/harperreed/amc/models"
	"github.com/harperreed/amc/store"
)

// AddContact applies the add optimistically, then delivers it: a direct
// push when online, the offline queue otherwise or on failure.
func (e *Engine) AddContact(ctx context.Context, contact *models.Contact) error {
	if err := e.store.Add(contact); err != nil {
		return err
	}
	return e.submitContact(ctx, models.QueueAddContact, contact.ID)
}

// UpdateContact applies a partial update and delivers it.
func (e *Engine) UpdateContact(ctx context.Context, id uuid.UUID, patch store.ContactPatch) error {
	if _, err := e.store.Update(id, patch); err != nil {
		return err
	}
	return e.submitContact(ctx, models.QueueEditContact, id)
}

// ToggleStar flips the star flag. The flag itself is local-only, but the
// edit still flows through sync so lastmodified bookkeeping stays honest.
func (e *Engine) ToggleStar(ctx context.Context, id uuid.UUID) (bool, error) {
	starred, err := e.store.ToggleStar(id)
	if err != nil {
		return false, err
	}
	return starred, e.submitContact(ctx, models.QueueEditContact, id)
}

// DeleteContact removes the contact locally and delivers the deletion to
// the remote record it was linked to, if any.
func (e *Engine) DeleteContact(ctx context.Context, id uuid.UUID) error {
	contact := e.store.Get(id)
	if contact == nil {
		return store.ErrNotFound
	}
	if err := e.store.Delete(id); err != nil {
		return err
	}

	payload := models.ContactPayload{
		ContactID: id,
		Name:      contact.Name,
		RemoteID:  contact.RemoteID,
	}

	if e.Online() && e.primary() != nil {
		if err := e.pushDelete(ctx, contact.RemoteID); err == nil {
			return nil
		} else {
			log.Printf("sync: direct delete of %s failed, queueing: %v", id, err)
		}
	}

	_, err := e.queue.Enqueue(models.QueueDeleteContact, payload)
	return err
}

// AddGroup applies the group add and records the mutation in the queue.
func (e *Engine) AddGroup(group *models.ContactGroup) error {
	if err := e.store.AddGroup(group); err != nil {
		return err
	}
	_, err := e.queue.Enqueue(models.QueueAddGroup, models.GroupPayload{GroupID: group.ID, Name: group.Name})
	return err
}

// RenameGroup renames a group and records the mutation.
func (e *Engine) RenameGroup(id uuid.UUID, name string) error {
	if err := e.store.RenameGroup(id, name); err != nil {
		return err
	}
	_, err := e.queue.Enqueue(models.QueueEditGroup, models.GroupPayload{GroupID: id, Name: name})
	return err
}

// DeleteGroup removes a group (stripping memberships) and records it.
func (e *Engine) DeleteGroup(id uuid.UUID) error {
	group := e.store.GetGroup(id)
	if group == nil {
		return store.ErrNotFound
	}
	if err := e.store.DeleteGroup(id); err != nil {
		return err
	}
	_, err := e.queue.Enqueue(models.QueueDeleteGroup, models.GroupPayload{GroupID: id, Name: group.Name})
	return err
}

// submitContact delivers a contact mutation that has already been applied
// locally. Offline or failed pushes land in the queue; validation
// failures get a terminally failed queue entry right away since retrying
// cannot change the input.
func (e *Engine) submitContact(ctx context.Context, itemType models.QueueItemType, id uuid.UUID) error {
	contact := e.store.Get(id)
	if contact == nil {
		return store.ErrNotFound
	}
	payload := models.ContactPayload{
		ContactID: id,
		Name:      contact.Name,
		Email:     contact.PrimaryEmail(),
		RemoteID:  contact.RemoteID,
	}

	if e.Online() && e.primary() != nil {
		err := e.pushContact(ctx, id)
		if err == nil {
			return nil
		}
		log.Printf("sync: direct push of %s failed, queueing: %v", id, err)

		itemID, qerr := e.queue.Enqueue(itemType, payload)
		if qerr != nil {
			return qerr
		}
		if crm.IsFatal(err) {
			if _, ferr := e.queue.RecordFailure(itemID, err.Error(), true); ferr != nil {
				return ferr
			}
			return e.store.MarkSyncFailed(id, err.Error())
		}
		return e.store.MarkSyncPending(id)
	}

	if _, err := e.queue.Enqueue(itemType, payload); err != nil {
		return err
	}
	return e.store.MarkSyncPending(id)
}
