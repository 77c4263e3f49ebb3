// ABOUTME: HubSpot provider client over the CRM v3 objects API
// ABOUTME: Implements search, create, patch, note engagements, and token refresh
package crm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/harperreed/amc/models"
)

const hubspotDefaultBase = "https://api.hubapi.com"

// HubSpot property names outside the mapping table.
const (
	hubspotOwnerProp    = "hubspot_owner_id"
	hubspotModifiedProp = "lastmodifieddate"
)

type hubspotAPI struct {
	conn   *models.CRMConnection
	client *restClient
}

func newHubSpotAPI(conn *models.CRMConnection) *hubspotAPI {
	base := conn.Credentials.BaseURL
	if base == "" {
		base = hubspotDefaultBase
	}
	return &hubspotAPI{
		conn:   conn,
		client: newRESTClient(base, &conn.Credentials),
	}
}

type hubspotRecord struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

type hubspotSearchResponse struct {
	Total   int             `json:"total"`
	Results []hubspotRecord `json:"results"`
}

func (h *hubspotAPI) searchByEmail(ctx context.Context, email string) (*RemoteContact, error) {
	body := map[string]interface{}{
		"filterGroups": []map[string]interface{}{
			{
				"filters": []map[string]string{
					{"propertyName": "email", "operator": "EQ", "value": email},
				},
			},
		},
		"properties": h.properties(),
		"limit":      1,
	}

	var resp hubspotSearchResponse
	if err := h.client.doJSON(ctx, http.MethodPost, "/crm/v3/objects/contacts/search", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	return h.toRemote(resp.Results[0]), nil
}

func (h *hubspotAPI) create(ctx context.Context, fields map[string]string, owner string) (string, error) {
	props := hubspotProperties(fields)
	if owner != "" {
		props[hubspotOwnerProp] = owner
	}

	var resp hubspotRecord
	err := h.client.doJSON(ctx, http.MethodPost, "/crm/v3/objects/contacts", map[string]interface{}{
		"properties": props,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (h *hubspotAPI) update(ctx context.Context, remoteID string, fields map[string]string, claimOwner string) error {
	props := hubspotProperties(fields)
	if claimOwner != "" {
		props[hubspotOwnerProp] = claimOwner
	}
	return h.client.doJSON(ctx, http.MethodPatch, "/crm/v3/objects/contacts/"+remoteID, map[string]interface{}{
		"properties": props,
	}, nil)
}

func (h *hubspotAPI) addNote(ctx context.Context, remoteID, body string) error {
	// Association type 202 is note-to-contact.
	payload := map[string]interface{}{
		"properties": map[string]string{
			"hs_note_body": body,
			"hs_timestamp": time.Now().UTC().Format(time.RFC3339),
		},
		"associations": []map[string]interface{}{
			{
				"to": map[string]string{"id": remoteID},
				"types": []map[string]interface{}{
					{"associationCategory": "HUBSPOT_DEFINED", "associationTypeId": 202},
				},
			},
		},
	}
	return h.client.doJSON(ctx, http.MethodPost, "/crm/v3/objects/notes", payload, nil)
}

func (h *hubspotAPI) get(ctx context.Context, remoteID string) (*RemoteContact, error) {
	path := fmt.Sprintf("/crm/v3/objects/contacts/%s?properties=%s", remoteID, strings.Join(h.properties(), ","))

	var resp hubspotRecord
	if err := h.client.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return h.toRemote(resp), nil
}

func (h *hubspotAPI) delete(ctx context.Context, remoteID string) error {
	return h.client.doJSON(ctx, http.MethodDelete, "/crm/v3/objects/contacts/"+remoteID, nil, nil)
}

func (h *hubspotAPI) refreshCredentials(ctx context.Context) error {
	return refreshOAuth(ctx, &h.conn.Credentials, hubspotTokenURL)
}

// properties lists every provider field the connection maps, plus the
// owner and modified-time properties the resolver needs.
func (h *hubspotAPI) properties() []string {
	props := []string{hubspotOwnerProp, hubspotModifiedProp, "email", "firstname", "lastname"}
	seen := map[string]bool{}
	for _, p := range props {
		seen[p] = true
	}
	for _, m := range h.conn.FieldMappings {
		if !seen[m.CRMField] {
			props = append(props, m.CRMField)
			seen[m.CRMField] = true
		}
	}
	return props
}

func (h *hubspotAPI) toRemote(rec hubspotRecord) *RemoteContact {
	remote := &RemoteContact{
		ID:     rec.ID,
		Owner:  rec.Properties[hubspotOwnerProp],
		Fields: rec.Properties,
	}
	if ts := rec.Properties[hubspotModifiedProp]; ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			remote.ModifiedAt = t
		}
	}
	// Re-join the split name so callers see one field.
	first, last := rec.Properties["firstname"], rec.Properties["lastname"]
	if first != "" || last != "" {
		remote.Fields["firstname"] = strings.TrimSpace(first + " " + last)
	}
	return remote
}

// hubspotProperties splits the mapped full name into HubSpot's
// firstname/lastname pair.
func hubspotProperties(fields map[string]string) map[string]string {
	props := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		props[k] = v
	}
	if name, ok := props["firstname"]; ok {
		if i := strings.LastIndex(name, " "); i > 0 {
			props["firstname"] = name[:i]
			props["lastname"] = name[i+1:]
		}
	}
	return props
}
