// ABOUTME: CRM adapter interface and the provider-independent push algorithm
// ABOUTME: Resolves ownership via find-or-create-or-claim and retries once after token refresh
package crm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/amc/models"
)

// PushOutcome classifies how a push landed on the provider.
type PushOutcome string

const (
	OutcomeCreated           PushOutcome = "created"
	OutcomeUpdated           PushOutcome = "updated"
	OutcomeNoteAdded         PushOutcome = "note_added"
	OutcomeClaimedAndUpdated PushOutcome = "claimed_and_updated"
)

// PushResult reports one completed push.
type PushResult struct {
	Outcome       PushOutcome
	RemoteID      string
	ExistingOwner string
}

// RemoteContact is a provider-side contact record in mapped form.
type RemoteContact struct {
	ID         string
	Owner      string
	Fields     map[string]string
	ModifiedAt time.Time
}

// Adapter translates local contact mutations into provider calls. One
// adapter is constructed per CRMConnection and invoked polymorphically.
type Adapter interface {
	Provider() models.Provider
	PushContact(ctx context.Context, contact *models.Contact) (*PushResult, error)
	DeleteContact(ctx context.Context, remoteID string) error
	FetchContact(ctx context.Context, remoteID string) (*RemoteContact, error)
	Mappings() []models.FieldMapping
}

// providerAPI is the raw REST surface each provider implements. searchByEmail
// returns (nil, nil) when no record matches. update with a non-empty
// claimOwner also sets the record's owner in the same call.
type providerAPI interface {
	searchByEmail(ctx context.Context, email string) (*RemoteContact, error)
	create(ctx context.Context, fields map[string]string, owner string) (string, error)
	update(ctx context.Context, remoteID string, fields map[string]string, claimOwner string) error
	addNote(ctx context.Context, remoteID, body string) error
	get(ctx context.Context, remoteID string) (*RemoteContact, error)
	delete(ctx context.Context, remoteID string) error
	refreshCredentials(ctx context.Context) error
}

// errTokenRejected is the internal signal that a call failed with an
// authentication-expired response and may succeed after a refresh.
var errTokenRejected = errors.New("crm: access token rejected")

type adapter struct {
	conn *models.CRMConnection
	api  providerAPI
}

// New builds the adapter for a connection's provider.
func New(conn *models.CRMConnection) (Adapter, error) {
	var api providerAPI
	switch conn.Provider {
	case models.ProviderHubSpot:
		api = newHubSpotAPI(conn)
	case models.ProviderSalesforce:
		api = newSalesforceAPI(conn)
	case models.ProviderPipedrive:
		api = newPipedriveAPI(conn)
	case models.ProviderWebhook:
		api = newWebhookAPI(conn)
	default:
		return nil, fmt.Errorf("unknown CRM provider %q", conn.Provider)
	}
	return &adapter{conn: conn, api: api}, nil
}

func (a *adapter) Provider() models.Provider {
	return a.conn.Provider
}

func (a *adapter) Mappings() []models.FieldMapping {
	return a.conn.FieldMappings
}

// PushContact delivers one local contact to the provider. The same code
// path serves creates and updates: field mapping is validated before any
// network call, then the record is resolved by email so repeated delivery
// of the same mutation stays safe.
func (a *adapter) PushContact(ctx context.Context, contact *models.Contact) (*PushResult, error) {
	fields, err := MapFields(contact, a.conn.FieldMappings)
	if err != nil {
		return nil, err
	}

	// Already linked: patch in place. A since-deleted remote record falls
	// back to resolution below.
	if contact.RemoteID != "" {
		err := a.call(ctx, func() error {
			return a.api.update(ctx, contact.RemoteID, fields, "")
		})
		if err == nil {
			return &PushResult{Outcome: OutcomeUpdated, RemoteID: contact.RemoteID}, nil
		}
		if !errors.Is(err, ErrRemoteNotFound) {
			return nil, err
		}
	}

	email := contact.PrimaryEmail()
	if email == "" {
		// Nothing to search on; create outright.
		remoteID, err := a.createRecord(ctx, fields)
		if err != nil {
			return nil, err
		}
		return &PushResult{Outcome: OutcomeCreated, RemoteID: remoteID}, nil
	}

	var match *RemoteContact
	if err := a.call(ctx, func() error {
		var serr error
		match, serr = a.api.searchByEmail(ctx, email)
		return serr
	}); err != nil {
		return nil, err
	}

	localUser := a.conn.Credentials.UserID

	switch {
	case match == nil:
		remoteID, err := a.createRecord(ctx, fields)
		if err != nil {
			return nil, err
		}
		return &PushResult{Outcome: OutcomeCreated, RemoteID: remoteID}, nil

	case match.Owner != "" && match.Owner != localUser:
		// Someone else owns the record. Never touch ownership or shared
		// fields; append an immutable note with the networking context.
		if err := a.call(ctx, func() error {
			return a.api.addNote(ctx, match.ID, networkingNote(contact))
		}); err != nil {
			return nil, err
		}
		return &PushResult{
			Outcome:       OutcomeNoteAdded,
			RemoteID:      match.ID,
			ExistingOwner: match.Owner,
		}, nil

	case match.Owner == "":
		// Unowned record: claim it and update it in the same call.
		if err := a.call(ctx, func() error {
			return a.api.update(ctx, match.ID, fields, localUser)
		}); err != nil {
			return nil, err
		}
		return &PushResult{Outcome: OutcomeClaimedAndUpdated, RemoteID: match.ID}, nil

	default:
		// We already own it.
		if err := a.call(ctx, func() error {
			return a.api.update(ctx, match.ID, fields, "")
		}); err != nil {
			return nil, err
		}
		return &PushResult{Outcome: OutcomeUpdated, RemoteID: match.ID}, nil
	}
}

func (a *adapter) createRecord(ctx context.Context, fields map[string]string) (string, error) {
	var remoteID string
	err := a.call(ctx, func() error {
		var cerr error
		remoteID, cerr = a.api.create(ctx, fields, a.conn.Credentials.UserID)
		return cerr
	})
	return remoteID, err
}

func (a *adapter) DeleteContact(ctx context.Context, remoteID string) error {
	err := a.call(ctx, func() error {
		return a.api.delete(ctx, remoteID)
	})
	if errors.Is(err, ErrRemoteNotFound) {
		// Already gone remotely; the delete is effectively done.
		return nil
	}
	return err
}

func (a *adapter) FetchContact(ctx context.Context, remoteID string) (*RemoteContact, error) {
	var remote *RemoteContact
	err := a.call(ctx, func() error {
		var gerr error
		remote, gerr = a.api.get(ctx, remoteID)
		return gerr
	})
	if err != nil {
		return nil, err
	}
	return remote, nil
}

// call runs one provider call, attempting exactly one token refresh and
// one retry when the token is rejected. A second rejection surfaces as
// ErrAuthExpired; the orchestrator's retry counter governs further
// attempts.
func (a *adapter) call(ctx context.Context, fn func() error) error {
	err := fn()
	if !errors.Is(err, errTokenRejected) {
		return err
	}

	if rerr := a.api.refreshCredentials(ctx); rerr != nil {
		return fmt.Errorf("%w: token refresh failed: %v", ErrAuthExpired, rerr)
	}

	err = fn()
	if errors.Is(err, errTokenRejected) {
		return fmt.Errorf("%w: call failed after refresh", ErrAuthExpired)
	}
	return err
}

// networkingNote renders the immutable engagement body attached to a
// record owned by someone else.
func networkingNote(contact *models.Contact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Met %s", contact.Name)
	if contact.FirstMetLocation != "" {
		fmt.Fprintf(&b, " in %s", contact.FirstMetLocation)
	}
	if contact.FirstMetDate != nil {
		fmt.Fprintf(&b, " on %s", contact.FirstMetDate.Format("2006-01-02"))
	}
	b.WriteString(".")
	if len(contact.Tags) > 0 {
		fmt.Fprintf(&b, " Tags: %s.", strings.Join(contact.Tags, ", "))
	}
	if contact.Notes != "" {
		fmt.Fprintf(&b, " Notes: %s", contact.Notes)
	}
	return b.String()
}
