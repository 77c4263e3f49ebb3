// ABOUTME: Group CLI commands
// ABOUTME: Add, list, membership, and delete subcommands for contact groups
package cli

import (
	"flag"
	"fmt"

	"github.com/google/uuid"
	"github.com/harperreed/amc/models"
)

// AddGroupCommand creates a contact group.
func AddGroupCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("add-group", flag.ExitOnError)
	name := fs.String("name", "", "Group name (required)")
	groupType := fs.String("type", "", "Group type (e.g. event, company)")
	_ = fs.Parse(args)

	if *name == "" {
		return fmt.Errorf("--name is required")
	}

	group := &models.ContactGroup{Name: *name, Type: *groupType}
	if err := app.Engine.AddGroup(group); err != nil {
		return fmt.Errorf("failed to add group: %w", err)
	}

	fmt.Printf("✓ Added group %s (%s)\n", group.Name, group.ID)
	return nil
}

// ListGroupsCommand prints all groups and their member counts.
func ListGroupsCommand(app *App, args []string) error {
	groups := app.Store.ListGroups()
	if len(groups) == 0 {
		fmt.Println("No groups yet.")
		return nil
	}

	for _, g := range groups {
		fmt.Printf("%s  (%d member(s))  %s\n", g.Name, len(g.Members), g.ID)
	}
	return nil
}

// GroupAddMemberCommand links a contact into a group.
func GroupAddMemberCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("group-add", flag.ExitOnError)
	groupStr := fs.String("group", "", "Group id (required)")
	contactStr := fs.String("contact", "", "Contact id (required)")
	_ = fs.Parse(args)

	groupID, err := uuid.Parse(*groupStr)
	if err != nil {
		return fmt.Errorf("invalid group id: %w", err)
	}
	contactID, err := uuid.Parse(*contactStr)
	if err != nil {
		return fmt.Errorf("invalid contact id: %w", err)
	}

	if err := app.Store.AddToGroup(groupID, contactID); err != nil {
		return err
	}
	fmt.Println("✓ Added to group")
	return nil
}

// DeleteGroupCommand removes a group, stripping its memberships.
func DeleteGroupCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("delete-group", flag.ExitOnError)
	idStr := fs.String("id", "", "Group id (required)")
	_ = fs.Parse(args)

	id, err := uuid.Parse(*idStr)
	if err != nil {
		return fmt.Errorf("invalid group id: %w", err)
	}

	if err := app.Engine.DeleteGroup(id); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	fmt.Println("✓ Deleted group")
	return nil
}
