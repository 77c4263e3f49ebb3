// ABOUTME: Salesforce provider client over the REST data API
// ABOUTME: Uses SOQL email lookup and sobject create/patch plus Note records
package crm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/harperreed/amc/models"
)

const salesforceAPIVersion = "v59.0"

type salesforceAPI struct {
	conn   *models.CRMConnection
	client *restClient
}

func newSalesforceAPI(conn *models.CRMConnection) *salesforceAPI {
	return &salesforceAPI{
		conn:   conn,
		client: newRESTClient(conn.Credentials.BaseURL, &conn.Credentials),
	}
}

type salesforceQueryResponse struct {
	TotalSize int                      `json:"totalSize"`
	Records   []map[string]interface{} `json:"records"`
}

type salesforceCreateResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
}

func (s *salesforceAPI) searchByEmail(ctx context.Context, email string) (*RemoteContact, error) {
	soql := fmt.Sprintf("SELECT Id, OwnerId, Name, Email, Phone, Title, MailingCity, MailingCountry, LastModifiedDate FROM Contact WHERE Email = '%s' LIMIT 1", soqlEscape(email))
	path := fmt.Sprintf("/services/data/%s/query?q=%s", salesforceAPIVersion, url.QueryEscape(soql))

	var resp salesforceQueryResponse
	if err := s.client.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Records) == 0 {
		return nil, nil
	}
	return salesforceToRemote(resp.Records[0]), nil
}

func (s *salesforceAPI) create(ctx context.Context, fields map[string]string, owner string) (string, error) {
	body := salesforceBody(fields)
	if owner != "" {
		body["OwnerId"] = owner
	}

	var resp salesforceCreateResponse
	path := fmt.Sprintf("/services/data/%s/sobjects/Contact", salesforceAPIVersion)
	if err := s.client.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (s *salesforceAPI) update(ctx context.Context, remoteID string, fields map[string]string, claimOwner string) error {
	body := salesforceBody(fields)
	if claimOwner != "" {
		body["OwnerId"] = claimOwner
	}
	path := fmt.Sprintf("/services/data/%s/sobjects/Contact/%s", salesforceAPIVersion, remoteID)
	return s.client.doJSON(ctx, http.MethodPatch, path, body, nil)
}

func (s *salesforceAPI) addNote(ctx context.Context, remoteID, body string) error {
	path := fmt.Sprintf("/services/data/%s/sobjects/Note", salesforceAPIVersion)
	return s.client.doJSON(ctx, http.MethodPost, path, map[string]string{
		"ParentId": remoteID,
		"Title":    "Networking context",
		"Body":     body,
	}, nil)
}

func (s *salesforceAPI) get(ctx context.Context, remoteID string) (*RemoteContact, error) {
	path := fmt.Sprintf("/services/data/%s/sobjects/Contact/%s", salesforceAPIVersion, remoteID)

	var record map[string]interface{}
	if err := s.client.doJSON(ctx, http.MethodGet, path, nil, &record); err != nil {
		return nil, err
	}
	return salesforceToRemote(record), nil
}

func (s *salesforceAPI) delete(ctx context.Context, remoteID string) error {
	path := fmt.Sprintf("/services/data/%s/sobjects/Contact/%s", salesforceAPIVersion, remoteID)
	return s.client.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (s *salesforceAPI) refreshCredentials(ctx context.Context) error {
	return refreshOAuth(ctx, &s.conn.Credentials, salesforceTokenURL)
}

func salesforceToRemote(record map[string]interface{}) *RemoteContact {
	fields := make(map[string]string, len(record))
	for k, v := range record {
		if str, ok := v.(string); ok {
			fields[k] = str
		}
	}

	remote := &RemoteContact{
		ID:     fields["Id"],
		Owner:  fields["OwnerId"],
		Fields: fields,
	}
	if ts := fields["LastModifiedDate"]; ts != "" {
		// Salesforce emits +0000 style offsets.
		if t, err := time.Parse("2006-01-02T15:04:05.000-0700", ts); err == nil {
			remote.ModifiedAt = t
		} else if t, err := time.Parse(time.RFC3339, ts); err == nil {
			remote.ModifiedAt = t
		}
	}
	return remote
}

func salesforceBody(fields map[string]string) map[string]string {
	body := make(map[string]string, len(fields))
	for k, v := range fields {
		body[k] = v
	}
	return body
}

func soqlEscape(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '\'' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
