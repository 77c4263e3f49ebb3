// ABOUTME: Entry point for the amc contact manager CLI
// ABOUTME: Routes to contact, group, and sync commands
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/harperreed/amc/cli"
	"github.com/harperreed/amc/config"
)

const version = "0.1.0"

func main() {
	showVersion := flag.Bool("version", false, "Show version and exit")
	_ = flag.CommandLine.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("amc version %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	app, err := cli.OpenApp(cfg)
	if err != nil {
		log.Fatalf("Failed to open data stores: %v", err)
	}
	defer func() { _ = app.Close() }()

	command := args[0]
	commandArgs := args[1:]

	var cmdErr error
	switch command {
	case "crm":
		if len(commandArgs) == 0 {
			fmt.Println("Error: crm requires a subcommand")
			printUsage()
			os.Exit(1)
		}
		cmdErr = runCRMCommand(app, commandArgs[0], commandArgs[1:])

	case "sync":
		if len(commandArgs) == 0 {
			fmt.Println("Error: sync requires a subcommand")
			printUsage()
			os.Exit(1)
		}
		cmdErr = runSyncCommand(app, commandArgs[0], commandArgs[1:])

	case "daemon":
		cmdErr = cli.DaemonCommand(app, commandArgs)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if cmdErr != nil {
		log.Fatalf("Command failed: %v", cmdErr)
	}
}

func runCRMCommand(app *cli.App, command string, args []string) error {
	switch command {
	case "add-contact":
		return cli.AddContactCommand(app, args)
	case "list-contacts":
		return cli.ListContactsCommand(app, args)
	case "star":
		return cli.StarContactCommand(app, args)
	case "delete-contact":
		return cli.DeleteContactCommand(app, args)
	case "import":
		return cli.ImportCommand(app, args)
	case "add-group":
		return cli.AddGroupCommand(app, args)
	case "list-groups":
		return cli.ListGroupsCommand(app, args)
	case "group-add":
		return cli.GroupAddMemberCommand(app, args)
	case "delete-group":
		return cli.DeleteGroupCommand(app, args)
	default:
		return fmt.Errorf("unknown crm subcommand: %s", command)
	}
}

func runSyncCommand(app *cli.App, command string, args []string) error {
	switch command {
	case "now":
		return cli.SyncNowCommand(app, args)
	case "status":
		return cli.SyncStatusCommand(app, args)
	case "retry":
		return cli.RetryCommand(app, args)
	case "dismiss":
		return cli.DismissCommand(app, args)
	default:
		return fmt.Errorf("unknown sync subcommand: %s", command)
	}
}

func printUsage() {
	fmt.Println(`amc - offline-first contact manager with CRM sync

Usage:
  amc crm add-contact --name NAME [--email ...] [--company ...]
  amc crm list-contacts [--archived]
  amc crm star --id ID
  amc crm delete-contact --id ID
  amc crm import --file contacts.json
  amc crm add-group --name NAME [--type TYPE]
  amc crm list-groups
  amc crm group-add --group GROUP_ID --contact CONTACT_ID
  amc crm delete-group --id ID

  amc sync now [--push-only]
  amc sync status
  amc sync retry --id ITEM_ID|all
  amc sync dismiss --id ITEM_ID

  amc daemon [--webhooks] [--listen :8090]

  amc --version`)
}
