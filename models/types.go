// ABOUTME: Data models for contacts, groups, and CRM connections
// ABOUTME: Defines Contact, ContactGroup, CRMConnection structs and status constants
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// IdentifierType classifies a contact identifier.
type IdentifierType string

const (
	IdentifierEmail    IdentifierType = "email"
	IdentifierPhone    IdentifierType = "phone"
	IdentifierLinkedIn IdentifierType = "linkedin"
	IdentifierURL      IdentifierType = "url"
)

// Identifier is a typed way of reaching a contact.
type Identifier struct {
	Type  IdentifierType `json:"type"`
	Value string         `json:"value"`
}

// Sync status constants for a contact.
const (
	SyncStatusNone    = "none"
	SyncStatusPending = "pending"
	SyncStatusSynced  = "synced"
	SyncStatusFailed  = "failed"
)

type Contact struct {
	ID               uuid.UUID    `json:"id"`
	Name             string       `json:"name"`
	Company          string       `json:"company,omitempty"`
	Title            string       `json:"title,omitempty"`
	City             string       `json:"city,omitempty"`
	Country          string       `json:"country,omitempty"`
	Identifiers      []Identifier `json:"identifiers,omitempty"`
	Tags             []string     `json:"tags,omitempty"`
	Groups           []string     `json:"groups,omitempty"`
	Starred          bool         `json:"starred,omitempty"`
	Notes            string       `json:"notes,omitempty"`
	FirstMetLocation string       `json:"first_met_location,omitempty"`
	FirstMetDate     *time.Time   `json:"first_met_date,omitempty"`
	LastInteraction  *time.Time   `json:"last_interaction,omitempty"`
	Archived         bool         `json:"archived,omitempty"`

	// Sync bookkeeping. Invariant: SyncStatusSynced implies RemoteID != "".
	RemoteID     string     `json:"remote_id,omitempty"`
	SyncStatus   string     `json:"sync_status"`
	SyncError    string     `json:"sync_error,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PrimaryEmail returns the first email identifier, normalized, or "".
func (c *Contact) PrimaryEmail() string {
	for _, id := range c.Identifiers {
		if id.Type == IdentifierEmail {
			return strings.ToLower(strings.TrimSpace(id.Value))
		}
	}
	return ""
}

// PrimaryPhone returns the first phone identifier, or "".
func (c *Contact) PrimaryPhone() string {
	for _, id := range c.Identifiers {
		if id.Type == IdentifierPhone {
			return id.Value
		}
	}
	return ""
}

// HasTag reports whether the contact carries the given tag.
func (c *Contact) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

type ContactGroup struct {
	ID      uuid.UUID   `json:"id"`
	Name    string      `json:"name"`
	Type    string      `json:"type,omitempty"`
	Members []uuid.UUID `json:"members,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasMember reports whether the group contains the given contact id.
func (g *ContactGroup) HasMember(id uuid.UUID) bool {
	for _, m := range g.Members {
		if m == id {
			return true
		}
	}
	return false
}

// Provider identifies a CRM backend.
type Provider string

const (
	ProviderHubSpot    Provider = "hubspot"
	ProviderSalesforce Provider = "salesforce"
	ProviderPipedrive  Provider = "pipedrive"
	ProviderWebhook    Provider = "webhook"
)

// Transform names an optional value transform applied during field mapping.
type Transform string

const (
	TransformNone        Transform = "none"
	TransformUppercase   Transform = "uppercase"
	TransformLowercase   Transform = "lowercase"
	TransformPhoneFormat Transform = "phone_format"
)

// FieldMapping maps one local contact field to a provider field.
type FieldMapping struct {
	LocalField string    `json:"local_field"`
	CRMField   string    `json:"crm_field"`
	IsRequired bool      `json:"is_required"`
	Transform  Transform `json:"transform,omitempty"`
}

// Credentials holds provider auth material. Opaque to the orchestrator;
// only the adapter layer reads or refreshes these.
type Credentials struct {
	AccessToken  string     `json:"access_token,omitempty"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	APIKey       string     `json:"api_key,omitempty"`
	ClientID     string     `json:"client_id,omitempty"`
	ClientSecret string     `json:"client_secret,omitempty"`
	BaseURL      string     `json:"base_url,omitempty"`
	WebhookURL   string     `json:"webhook_url,omitempty"`
	UserID       string     `json:"user_id,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

type CRMConnection struct {
	ID            string         `json:"id"`
	Provider      Provider       `json:"provider"`
	Name          string         `json:"name"`
	IsActive      bool           `json:"is_active"`
	Credentials   Credentials    `json:"credentials"`
	FieldMappings []FieldMapping `json:"field_mappings,omitempty"`
}

// SyncErrorDetail describes one failed queue item within a drain.
type SyncErrorDetail struct {
	ItemID  string `json:"item_id"`
	Message string `json:"message"`
}

// SyncResult is the outcome of one drain pass. Transient, not persisted
// (the db package records a summary row separately).
type SyncResult struct {
	Success   bool              `json:"success"`
	Processed int               `json:"processed"`
	Failed    int               `json:"failed"`
	Errors    []SyncErrorDetail `json:"errors,omitempty"`
}
