// ABOUTME: Tests for configuration defaults and environment credential overlay
// ABOUTME: Covers active connection filtering and HubSpot bootstrap from env vars
package config

import (
	"testing"
	"time"

	"github.com/harperreed/amc/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 30*time.Second, cfg.PushInterval)
	assert.Equal(t, 30*time.Second, cfg.PullInterval)
	assert.Equal(t, ":8090", cfg.ListenAddr)
	assert.Empty(t, cfg.Connections)
}

func TestActiveConnections(t *testing.T) {
	cfg := &Config{
		Connections: []models.CRMConnection{
			{ID: "a", Provider: models.ProviderHubSpot, IsActive: true},
			{ID: "b", Provider: models.ProviderSalesforce, IsActive: false},
			{ID: "c", Provider: models.ProviderWebhook, IsActive: true},
		},
	}

	active := cfg.ActiveConnections()
	require.Len(t, active, 2)
	assert.Equal(t, "a", active[0].ID)
	assert.Equal(t, "c", active[1].ID)
}

func TestApplyEnvBootstrapsConnection(t *testing.T) {
	t.Setenv("AMC_HUBSPOT_ACCESS_TOKEN", "env-token")
	t.Setenv("AMC_HUBSPOT_REFRESH_TOKEN", "env-refresh")
	t.Setenv("AMC_HUBSPOT_USER_ID", "user-77")

	cfg := &Config{}
	cfg.applyEnv()

	require.Len(t, cfg.Connections, 1)
	conn := cfg.Connections[0]
	assert.Equal(t, models.ProviderHubSpot, conn.Provider)
	assert.True(t, conn.IsActive)
	assert.Equal(t, "env-token", conn.Credentials.AccessToken)
	assert.Equal(t, "env-refresh", conn.Credentials.RefreshToken)
	assert.Equal(t, "user-77", conn.Credentials.UserID)
	assert.NotEmpty(t, conn.FieldMappings)
}

func TestApplyEnvOverlaysExistingConnection(t *testing.T) {
	t.Setenv("AMC_HUBSPOT_ACCESS_TOKEN", "rotated")

	cfg := &Config{
		Connections: []models.CRMConnection{
			{
				ID:       "hubspot-1",
				Provider: models.ProviderHubSpot,
				Credentials: models.Credentials{
					AccessToken: "stale",
					UserID:      "user-1",
				},
			},
		},
	}
	cfg.applyEnv()

	require.Len(t, cfg.Connections, 1)
	assert.Equal(t, "rotated", cfg.Connections[0].Credentials.AccessToken)
	assert.Equal(t, "user-1", cfg.Connections[0].Credentials.UserID)
}

func TestApplyEnvNoTokenIsNoop(t *testing.T) {
	t.Setenv("AMC_HUBSPOT_ACCESS_TOKEN", "")

	cfg := &Config{}
	cfg.applyEnv()
	assert.Empty(t, cfg.Connections)
}
