// ABOUTME: Generic webhook provider that posts mutation events to a configured URL
// ABOUTME: Stateless target with no search surface, so every push is a create event
package crm

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/amc/models"
)

// webhookAPI delivers mutations to a generic HTTP endpoint. The target
// keeps no queryable state, so searchByEmail never matches and ownership
// conflicts cannot arise.
type webhookAPI struct {
	conn   *models.CRMConnection
	client *restClient
}

func newWebhookAPI(conn *models.CRMConnection) *webhookAPI {
	return &webhookAPI{
		conn:   conn,
		client: newRESTClient(conn.Credentials.WebhookURL, &conn.Credentials),
	}
}

type webhookEvent struct {
	Event    string            `json:"event"`
	RemoteID string            `json:"remote_id,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
	Note     string            `json:"note,omitempty"`
	SentAt   string            `json:"sent_at"`
}

func (w *webhookAPI) post(ctx context.Context, event webhookEvent) error {
	event.SentAt = time.Now().UTC().Format(time.RFC3339)
	return w.client.doJSON(ctx, http.MethodPost, "", event, nil)
}

func (w *webhookAPI) searchByEmail(ctx context.Context, email string) (*RemoteContact, error) {
	return nil, nil
}

func (w *webhookAPI) create(ctx context.Context, fields map[string]string, owner string) (string, error) {
	// The target assigns no ids; mint one locally so the contact links.
	remoteID := uuid.NewString()
	err := w.post(ctx, webhookEvent{Event: "contact.created", RemoteID: remoteID, Fields: fields})
	if err != nil {
		return "", err
	}
	return remoteID, nil
}

func (w *webhookAPI) update(ctx context.Context, remoteID string, fields map[string]string, claimOwner string) error {
	return w.post(ctx, webhookEvent{Event: "contact.updated", RemoteID: remoteID, Fields: fields})
}

func (w *webhookAPI) addNote(ctx context.Context, remoteID, body string) error {
	return w.post(ctx, webhookEvent{Event: "contact.note", RemoteID: remoteID, Note: body})
}

func (w *webhookAPI) get(ctx context.Context, remoteID string) (*RemoteContact, error) {
	// Nothing to pull from a fire-and-forget target.
	return nil, ErrRemoteNotFound
}

func (w *webhookAPI) delete(ctx context.Context, remoteID string) error {
	return w.post(ctx, webhookEvent{Event: "contact.deleted", RemoteID: remoteID})
}

func (w *webhookAPI) refreshCredentials(ctx context.Context) error {
	// Static bearer token or none; nothing to refresh.
	return nil
}
