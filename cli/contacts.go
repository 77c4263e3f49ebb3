// ABOUTME: Contact CLI commands
// ABOUTME: Add, list, star, delete, and device-import subcommands
package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/amc/importer"
	"github.com/harperreed/amc/models"
)

// AddContactCommand creates a contact and feeds it into sync.
func AddContactCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("add-contact", flag.ExitOnError)
	name := fs.String("name", "", "Contact name (required)")
	email := fs.String("email", "", "Email address")
	phone := fs.String("phone", "", "Phone number")
	company := fs.String("company", "", "Company")
	title := fs.String("title", "", "Job title")
	city := fs.String("city", "", "City")
	country := fs.String("country", "", "Country")
	metAt := fs.String("met-at", "", "Where you first met")
	tags := fs.String("tags", "", "Comma-separated tags")
	notes := fs.String("notes", "", "Networking notes")
	_ = fs.Parse(args)

	if *name == "" {
		return fmt.Errorf("--name is required")
	}

	contact := &models.Contact{
		Name:             *name,
		Company:          *company,
		Title:            *title,
		City:             *city,
		Country:          *country,
		FirstMetLocation: *metAt,
		Notes:            *notes,
	}
	if *email != "" {
		contact.Identifiers = append(contact.Identifiers, models.Identifier{Type: models.IdentifierEmail, Value: *email})
	}
	if *phone != "" {
		contact.Identifiers = append(contact.Identifiers, models.Identifier{Type: models.IdentifierPhone, Value: *phone})
	}
	if *tags != "" {
		for _, t := range strings.Split(*tags, ",") {
			if t = strings.TrimSpace(t); t != "" {
				contact.Tags = append(contact.Tags, t)
			}
		}
	}

	if err := app.Engine.AddContact(context.Background(), contact); err != nil {
		return fmt.Errorf("failed to add contact: %w", err)
	}

	fmt.Printf("✓ Added %s (%s)\n", contact.Name, contact.ID)
	fmt.Printf("  sync status: %s\n", contact.SyncStatus)
	return nil
}

// ListContactsCommand prints the contact list with sync state.
func ListContactsCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("list-contacts", flag.ExitOnError)
	showArchived := fs.Bool("archived", false, "Include archived contacts")
	_ = fs.Parse(args)

	contacts := app.Store.List()
	if len(contacts) == 0 {
		fmt.Println("No contacts yet. Add one with 'amc crm add-contact --name ...'")
		return nil
	}

	for _, c := range contacts {
		if c.Archived && !*showArchived {
			continue
		}
		star := " "
		if c.Starred {
			star = "★"
		}
		line := fmt.Sprintf("%s %s", star, c.Name)
		if email := c.PrimaryEmail(); email != "" {
			line += "  <" + email + ">"
		}
		if c.Company != "" {
			line += "  @ " + c.Company
		}
		line += "  [" + c.SyncStatus + "]"
		if c.Archived {
			line += " (archived)"
		}
		fmt.Println(line)
	}
	return nil
}

// StarContactCommand toggles the star flag on a contact.
func StarContactCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("star", flag.ExitOnError)
	idStr := fs.String("id", "", "Contact id (required)")
	_ = fs.Parse(args)

	id, err := uuid.Parse(*idStr)
	if err != nil {
		return fmt.Errorf("invalid contact id: %w", err)
	}

	starred, err := app.Engine.ToggleStar(context.Background(), id)
	if err != nil {
		return err
	}
	if starred {
		fmt.Println("★ starred")
	} else {
		fmt.Println("☆ unstarred")
	}
	return nil
}

// DeleteContactCommand removes a contact locally and remotely.
func DeleteContactCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("delete-contact", flag.ExitOnError)
	idStr := fs.String("id", "", "Contact id (required)")
	_ = fs.Parse(args)

	id, err := uuid.Parse(*idStr)
	if err != nil {
		return fmt.Errorf("invalid contact id: %w", err)
	}

	if err := app.Engine.DeleteContact(context.Background(), id); err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	fmt.Println("✓ Deleted")
	return nil
}

// ImportCommand seeds contacts from a device address-book export file.
func ImportCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	file := fs.String("file", "", "Path to device contact export JSON (required)")
	_ = fs.Parse(args)

	if *file == "" {
		return fmt.Errorf("--file is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("failed to read import file: %w", err)
	}

	var records []importer.DeviceContact
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to parse import file: %w", err)
	}

	im := importer.New(app.Engine, app.Store)
	result, err := im.Import(context.Background(), records)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Imported %d contact(s), skipped %d duplicate(s)\n", result.Imported, result.Skipped)
	return nil
}
