// ABOUTME: Shared HTTP plumbing for provider REST clients
// ABOUTME: Maps provider status codes onto the adapter error taxonomy
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/harperreed/amc/models"
)

const requestTimeout = 15 * time.Second

// restClient issues authenticated JSON requests against one provider.
type restClient struct {
	base  string
	creds *models.Credentials
	hc    *http.Client
}

func newRESTClient(base string, creds *models.Credentials) *restClient {
	return &restClient{
		base:  base,
		creds: creds,
		hc:    &http.Client{Timeout: requestTimeout},
	}
}

// doJSON sends one request and decodes the response into out (when out is
// non-nil). 401 becomes errTokenRejected so the adapter can refresh and
// retry; 404 becomes ErrRemoteNotFound.
func (c *restClient) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.creds.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.creds.AccessToken)
	} else if c.creds.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.creds.APIKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return errTokenRejected
	case resp.StatusCode == http.StatusNotFound:
		return ErrRemoteNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &apiError{status: resp.StatusCode, body: string(snippet)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
