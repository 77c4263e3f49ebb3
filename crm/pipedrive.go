// ABOUTME: Pipedrive provider client over the v1 persons API
// ABOUTME: Searches by email term and manages persons and attached notes
package crm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/harperreed/amc/models"
)

const pipedriveDefaultBase = "https://api.pipedrive.com"

type pipedriveAPI struct {
	conn   *models.CRMConnection
	client *restClient
}

func newPipedriveAPI(conn *models.CRMConnection) *pipedriveAPI {
	base := conn.Credentials.BaseURL
	if base == "" {
		base = pipedriveDefaultBase
	}
	return &pipedriveAPI{
		conn:   conn,
		client: newRESTClient(base, &conn.Credentials),
	}
}

type pipedrivePerson struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	OwnerID *struct {
		ID int `json:"id"`
	} `json:"owner_id,omitempty"`
	UpdateTime string `json:"update_time,omitempty"`
}

type pipedriveSearchResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Items []struct {
			Item pipedrivePerson `json:"item"`
		} `json:"items"`
	} `json:"data"`
}

type pipedriveItemResponse struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data"`
}

func (p *pipedriveAPI) searchByEmail(ctx context.Context, email string) (*RemoteContact, error) {
	path := fmt.Sprintf("/v1/persons/search?term=%s&fields=email&exact_match=true&limit=1", url.QueryEscape(email))

	var resp pipedriveSearchResponse
	if err := p.client.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data.Items) == 0 {
		return nil, nil
	}

	// Search results omit most fields; fetch the full person.
	return p.get(ctx, fmt.Sprintf("%d", resp.Data.Items[0].Item.ID))
}

func (p *pipedriveAPI) create(ctx context.Context, fields map[string]string, owner string) (string, error) {
	body := pipedriveBody(fields)
	if owner != "" {
		body["owner_id"] = owner
	}

	var resp pipedriveItemResponse
	if err := p.client.doJSON(ctx, http.MethodPost, "/v1/persons", body, &resp); err != nil {
		return "", err
	}
	id, ok := resp.Data["id"].(float64)
	if !ok {
		return "", fmt.Errorf("pipedrive create returned no person id")
	}
	return fmt.Sprintf("%.0f", id), nil
}

func (p *pipedriveAPI) update(ctx context.Context, remoteID string, fields map[string]string, claimOwner string) error {
	body := pipedriveBody(fields)
	if claimOwner != "" {
		body["owner_id"] = claimOwner
	}
	return p.client.doJSON(ctx, http.MethodPut, "/v1/persons/"+remoteID, body, nil)
}

func (p *pipedriveAPI) addNote(ctx context.Context, remoteID, body string) error {
	return p.client.doJSON(ctx, http.MethodPost, "/v1/notes", map[string]string{
		"person_id": remoteID,
		"content":   body,
	}, nil)
}

func (p *pipedriveAPI) get(ctx context.Context, remoteID string) (*RemoteContact, error) {
	var resp pipedriveItemResponse
	if err := p.client.doJSON(ctx, http.MethodGet, "/v1/persons/"+remoteID, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, ErrRemoteNotFound
	}

	fields := make(map[string]string, len(resp.Data))
	for k, v := range resp.Data {
		switch val := v.(type) {
		case string:
			fields[k] = val
		case float64:
			fields[k] = fmt.Sprintf("%.0f", val)
		}
	}

	remote := &RemoteContact{
		ID:     fields["id"],
		Fields: fields,
	}
	if ownerRaw, ok := resp.Data["owner_id"].(map[string]interface{}); ok {
		if id, ok := ownerRaw["id"].(float64); ok {
			remote.Owner = fmt.Sprintf("%.0f", id)
		}
	}
	if ts := fields["update_time"]; ts != "" {
		if t, err := time.Parse("2006-01-02 15:04:05", ts); err == nil {
			remote.ModifiedAt = t
		}
	}
	return remote, nil
}

func (p *pipedriveAPI) delete(ctx context.Context, remoteID string) error {
	return p.client.doJSON(ctx, http.MethodDelete, "/v1/persons/"+remoteID, nil, nil)
}

func (p *pipedriveAPI) refreshCredentials(ctx context.Context) error {
	return refreshOAuth(ctx, &p.conn.Credentials, pipedriveTokenURL)
}

func pipedriveBody(fields map[string]string) map[string]string {
	body := make(map[string]string, len(fields))
	for k, v := range fields {
		body[k] = v
	}
	return body
}
