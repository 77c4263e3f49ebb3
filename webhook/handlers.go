// ABOUTME: Inbound CRM webhook receiver for provider-side change events
// ABOUTME: Applies namespaced custom-field changes and soft-deletes removed mirrors
package webhook

import (
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/harperreed/amc/crm"
	"github.com/harperreed/amc/models"
	"github.com/harperreed/amc/store"
)

// Event kinds acted on by the handler. Anything else is ignored, not an
// error.
const (
	EventPropertyChange = "object.propertyChange"
	EventCreation       = "object.creation"
	EventDeletion       = "object.deletion"
)

// customFieldPrefix marks the namespaced custom-field family this system
// owns on the provider. Property changes outside it belong to the CRM's
// native workflow and are not mirrored.
const customFieldPrefix = "amc_"

// Event is one inbound provider event.
type Event struct {
	EventID          string            `json:"eventId,omitempty"`
	SubscriptionType string            `json:"subscriptionType"`
	ObjectID         string            `json:"objectId"`
	PropertyName     string            `json:"propertyName,omitempty"`
	PropertyValue    string            `json:"propertyValue,omitempty"`
	Properties       map[string]string `json:"properties,omitempty"`
	OccurredAt       int64             `json:"occurredAt,omitempty"`
}

// Handler applies inbound events to the local mirror.
type Handler struct {
	store    *store.ContactStore
	mappings []models.FieldMapping
}

func NewHandler(st *store.ContactStore, mappings []models.FieldMapping) *Handler {
	return &Handler{store: st, mappings: mappings}
}

// HandleEvent processes one event. Malformed or unrelated events are
// skipped silently so a provider batch never fails as a whole.
func (h *Handler) HandleEvent(event Event) {
	switch event.SubscriptionType {
	case EventPropertyChange:
		h.handlePropertyChange(event)
	case EventCreation:
		h.handleCreation(event)
	case EventDeletion:
		h.handleDeletion(event)
	default:
		// Unknown kinds are fine; providers add new ones over time.
	}
}

func (h *Handler) handlePropertyChange(event Event) {
	if event.ObjectID == "" || !strings.HasPrefix(event.PropertyName, customFieldPrefix) {
		return
	}

	contact := h.store.FindByRemoteID(event.ObjectID)
	if contact == nil {
		return
	}

	fields := crm.ReverseMap(map[string]string{event.PropertyName: event.PropertyValue}, h.mappings)
	if len(fields) == 0 {
		return
	}

	at := eventTime(event)
	if err := h.store.ApplyRemote(contact.ID, fields, at); err != nil {
		log.Printf("webhook: failed to apply property change to %s: %v", contact.ID, err)
	}
}

// handleCreation mirrors a remote creation, but only when the record
// already carries namespaced data: a bare CRM-native contact is not ours.
func (h *Handler) handleCreation(event Event) {
	if event.ObjectID == "" || !carriesNamespacedData(event.Properties) {
		return
	}
	if h.store.FindByRemoteID(event.ObjectID) != nil {
		return
	}

	fields := crm.ReverseMap(event.Properties, h.mappings)
	name := fields[crm.FieldName]
	if name == "" {
		name = event.Properties["firstname"]
	}
	if name == "" {
		return
	}

	contact := &models.Contact{
		Name:             name,
		Company:          fields[crm.FieldCompany],
		Title:            fields[crm.FieldTitle],
		City:             fields[crm.FieldCity],
		Country:          fields[crm.FieldCountry],
		FirstMetLocation: fields[crm.FieldFirstMetLocation],
		Notes:            fields[crm.FieldNetworkingNotes],
		RemoteID:         event.ObjectID,
		SyncStatus:       models.SyncStatusSynced,
	}
	if email := event.Properties["email"]; email != "" {
		contact.Identifiers = []models.Identifier{{Type: models.IdentifierEmail, Value: email}}
	}
	if tags := fields[crm.FieldNetworkingTags]; tags != "" {
		contact.Tags = strings.Split(tags, ",")
	}
	now := eventTime(event)
	contact.LastSyncedAt = &now

	if err := h.store.Add(contact); err != nil {
		log.Printf("webhook: failed to import remote contact %s: %v", event.ObjectID, err)
	}
}

func (h *Handler) handleDeletion(event Event) {
	if event.ObjectID == "" {
		return
	}
	contact := h.store.FindByRemoteID(event.ObjectID)
	if contact == nil {
		return
	}
	if err := h.store.Archive(contact.ID); err != nil {
		log.Printf("webhook: failed to archive %s: %v", contact.ID, err)
	}
}

func carriesNamespacedData(properties map[string]string) bool {
	for name, value := range properties {
		if strings.HasPrefix(name, customFieldPrefix) && value != "" {
			return true
		}
	}
	return false
}

func eventTime(event Event) time.Time {
	if event.OccurredAt > 0 {
		return time.UnixMilli(event.OccurredAt)
	}
	return time.Now()
}

// ParseEvents decodes a provider batch. A body that is not an event array
// yields no events rather than an error.
func ParseEvents(body []byte) []Event {
	var events []Event
	if err := json.Unmarshal(body, &events); err != nil {
		var single Event
		if err := json.Unmarshal(body, &single); err != nil || single.SubscriptionType == "" {
			return nil
		}
		return []Event{single}
	}
	return events
}
