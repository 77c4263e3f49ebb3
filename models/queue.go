// ABOUTME: Offline queue item model and mutation payload shapes
// ABOUTME: Defines OfflineQueueItem lifecycle states and typed payloads
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QueueItemType names the local mutation a queue item carries.
type QueueItemType string

const (
	QueueAddContact    QueueItemType = "add_contact"
	QueueEditContact   QueueItemType = "edit_contact"
	QueueDeleteContact QueueItemType = "delete_contact"
	QueueAddGroup      QueueItemType = "add_group"
	QueueEditGroup     QueueItemType = "edit_group"
	QueueDeleteGroup   QueueItemType = "delete_group"
)

// Queue item lifecycle states. Transitions are driven only by the sync
// orchestrator; the UI layer never mutates items directly.
type QueueItemStatus string

const (
	QueueStatusPending QueueItemStatus = "pending"
	QueueStatusSyncing QueueItemStatus = "syncing"
	QueueStatusFailed  QueueItemStatus = "failed"
)

// OfflineQueueItem is one pending local mutation awaiting remote delivery.
// Items are removed from the queue only after the remote call succeeds,
// so remote operations must be safe to repeat.
type OfflineQueueItem struct {
	ID         string          `json:"id"`
	Type       QueueItemType   `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  time.Time       `json:"timestamp"`
	Status     QueueItemStatus `json:"status"`
	RetryCount int             `json:"retry_count"`
	LastError  string          `json:"last_error,omitempty"`
}

// ContactPayload is the payload for contact-typed queue items. Delivery
// works off the contact id; the snapshot fields exist for display and for
// delete items whose contact no longer exists locally.
type ContactPayload struct {
	ContactID uuid.UUID `json:"contact_id"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	RemoteID  string    `json:"remote_id,omitempty"`
}

// GroupPayload is the payload for group-typed queue items.
type GroupPayload struct {
	GroupID uuid.UUID `json:"group_id"`
	Name    string    `json:"name,omitempty"`
}
