// ABOUTME: OAuth2 credential refresh for provider connections
// ABOUTME: Exchanges the stored refresh token for a fresh access token
package crm

import (
	"context"
	"fmt"

	"github.com/harperreed/amc/models"
	"golang.org/x/oauth2"
)

// Provider token endpoints.
const (
	hubspotTokenURL    = "https://api.hubapi.com/oauth/v1/token"
	salesforceTokenURL = "https://login.salesforce.com/services/oauth2/token"
	pipedriveTokenURL  = "https://oauth.pipedrive.com/oauth/token"
)

// refreshOAuth swaps the stored refresh token for a new access token and
// writes it back into the connection's credentials.
func refreshOAuth(ctx context.Context, creds *models.Credentials, tokenURL string) error {
	if creds.RefreshToken == "" {
		return fmt.Errorf("no refresh token stored")
	}

	cfg := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
	}

	token, err := cfg.TokenSource(ctx, &oauth2.Token{
		RefreshToken: creds.RefreshToken,
	}).Token()
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}

	creds.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		creds.RefreshToken = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		creds.ExpiresAt = &expiry
	}
	return nil
}
