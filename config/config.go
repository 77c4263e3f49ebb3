// ABOUTME: Configuration loading for data paths, timers, and CRM connections
// ABOUTME: JSON config at the XDG data dir with .env credential overrides
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/harperreed/amc/crm"
	"github.com/harperreed/amc/models"
	"github.com/joho/godotenv"
)

const (
	// AppName is the directory name under the XDG data home.
	AppName = "amc"

	// ConfigFileName is where connections and tuning live.
	ConfigFileName = "config.json"
)

// Config holds everything the binary needs at startup.
type Config struct {
	// DataDir is where the kv store and sync log database live.
	DataDir string `json:"data_dir,omitempty"`

	// PushInterval is how often the queue drain runs.
	PushInterval time.Duration `json:"push_interval,omitempty"`

	// PullInterval is how often reconciliation runs.
	PullInterval time.Duration `json:"pull_interval,omitempty"`

	// ListenAddr is the inbound webhook bind address.
	ListenAddr string `json:"listen_addr,omitempty"`

	Connections []models.CRMConnection `json:"connections,omitempty"`
}

// DefaultConfig returns a config with sensible defaults and no
// connections.
func DefaultConfig() *Config {
	return &Config{
		DataDir:      filepath.Join(xdg.DataHome, AppName),
		PushInterval: 30 * time.Second,
		PullInterval: 30 * time.Second,
		ListenAddr:   ":8090",
	}
}

func configPath() (string, error) {
	dataDir := filepath.Join(xdg.DataHome, AppName)
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(dataDir, ConfigFileName), nil
}

// Load reads the config file, applies defaults for missing fields, and
// overlays credentials from the environment. A missing file is not an
// error; first runs get defaults.
func Load() (*Config, error) {
	// .env is optional; ignore a missing file.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	path, err := configPath()
	if err != nil {
		return cfg, nil //nolint:nilerr // Defaults when the path cannot be determined
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(xdg.DataHome, AppName)
	}
	if cfg.PushInterval <= 0 {
		cfg.PushInterval = 30 * time.Second
	}
	if cfg.PullInterval <= 0 {
		cfg.PullInterval = 30 * time.Second
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8090"
	}

	cfg.applyEnv()
	return cfg, nil
}

// Save writes the config back to disk with restricted permissions, since
// connections embed credentials.
func (c *Config) Save() error {
	path, err := configPath()
	if err != nil {
		return fmt.Errorf("failed to determine config path: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ActiveConnections returns the connections the orchestrator may use.
func (c *Config) ActiveConnections() []models.CRMConnection {
	var active []models.CRMConnection
	for _, conn := range c.Connections {
		if conn.IsActive {
			active = append(active, conn)
		}
	}
	return active
}

// applyEnv overlays credentials from the environment onto matching
// connections, and bootstraps a HubSpot connection when a token is set
// but no connection exists yet.
func (c *Config) applyEnv() {
	token := os.Getenv("AMC_HUBSPOT_ACCESS_TOKEN")
	if token == "" {
		return
	}

	for i := range c.Connections {
		if c.Connections[i].Provider == models.ProviderHubSpot {
			c.Connections[i].Credentials.AccessToken = token
			if rt := os.Getenv("AMC_HUBSPOT_REFRESH_TOKEN"); rt != "" {
				c.Connections[i].Credentials.RefreshToken = rt
			}
			return
		}
	}

	c.Connections = append(c.Connections, models.CRMConnection{
		ID:       "hubspot-env",
		Provider: models.ProviderHubSpot,
		Name:     "HubSpot",
		IsActive: true,
		Credentials: models.Credentials{
			AccessToken:  token,
			RefreshToken: os.Getenv("AMC_HUBSPOT_REFRESH_TOKEN"),
			UserID:       os.Getenv("AMC_HUBSPOT_USER_ID"),
		},
		FieldMappings: crm.DefaultHubSpotMappings(),
	})
}
