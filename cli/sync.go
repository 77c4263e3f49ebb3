// ABOUTME: Sync CLI commands
// ABOUTME: Manual drain, queue status, and retry/dismiss of failed items
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/harperreed/amc/db"
	"github.com/harperreed/amc/engine"
	"github.com/harperreed/amc/models"
)

// SyncNowCommand runs one drain and one reconciliation pass.
func SyncNowCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("now", flag.ExitOnError)
	pushOnly := fs.Bool("push-only", false, "Skip the pull reconciliation pass")
	_ = fs.Parse(args)

	ctx := context.Background()

	result, err := app.Engine.Drain(ctx)
	if errors.Is(err, engine.ErrDrainInProgress) {
		return fmt.Errorf("a sync is already in progress")
	}
	if err != nil {
		return fmt.Errorf("drain failed: %w", err)
	}

	fmt.Printf("Push: %d processed, %d failed\n", result.Processed, result.Failed)
	for _, e := range result.Errors {
		fmt.Printf("  ✗ %s: %s\n", e.ItemID, e.Message)
	}

	if *pushOnly {
		return nil
	}

	pull, err := app.Engine.Reconcile(ctx)
	if err != nil && !errors.Is(err, engine.ErrReconcileInProgress) {
		return fmt.Errorf("reconciliation failed: %w", err)
	}
	if pull != nil {
		fmt.Printf("Pull: %d remote change(s) applied\n", pull.Processed)
	}
	return nil
}

// SyncStatusCommand shows the queue, failed items, and recent cycles.
func SyncStatusCommand(app *App, args []string) error {
	items := app.Queue.Items()
	fmt.Printf("Queue: %d item(s)\n", len(items))
	for _, item := range items {
		line := fmt.Sprintf("  [%s] %s %s (retries %d)", item.Status, item.ID, item.Type, item.RetryCount)
		if item.LastError != "" {
			line += " — " + item.LastError
		}
		fmt.Println(line)
	}

	if !app.Engine.LastDrainAt().IsZero() {
		fmt.Printf("Last drain: %s\n", app.Engine.LastDrainAt().Format("2006-01-02 15:04:05"))
	}

	for _, conn := range app.Config.ActiveConnections() {
		state, err := db.GetSyncState(app.LogDB, string(conn.Provider))
		if err != nil {
			return err
		}
		if state == nil {
			fmt.Printf("%s: never synced\n", conn.Provider)
			continue
		}
		line := fmt.Sprintf("%s: %s", conn.Provider, state.Status)
		if state.LastSyncTime != nil {
			line += " (last " + state.LastSyncTime.Format("2006-01-02 15:04:05") + ")"
		}
		if state.ErrorMessage != nil {
			line += " — " + *state.ErrorMessage
		}
		fmt.Println(line)
	}

	cycles, err := db.RecentCycles(app.LogDB, 5)
	if err != nil {
		return err
	}
	if len(cycles) > 0 {
		fmt.Println("Recent cycles:")
		for _, c := range cycles {
			fmt.Printf("  %s %s: %d processed, %d failed (%s)\n",
				c.StartedAt.Format("15:04:05"), c.Kind, c.Processed, c.Failed, c.Duration)
		}
	}
	return nil
}

// RetryCommand re-queues a terminally failed item.
func RetryCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("retry", flag.ExitOnError)
	id := fs.String("id", "", "Queue item id (required, or 'all')")
	_ = fs.Parse(args)

	if *id == "all" {
		failed := app.Queue.Failed()
		for _, item := range failed {
			if err := app.Queue.Retry(item.ID); err != nil {
				return err
			}
		}
		fmt.Printf("✓ Re-queued %d item(s)\n", len(failed))
		return nil
	}

	if err := app.Queue.Retry(*id); err != nil {
		return err
	}
	fmt.Println("✓ Re-queued; will be delivered on the next sync")
	return nil
}

// DismissCommand drops a terminally failed item.
func DismissCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("dismiss", flag.ExitOnError)
	id := fs.String("id", "", "Queue item id (required)")
	_ = fs.Parse(args)

	item, err := app.Queue.Get(*id)
	if err != nil {
		return err
	}
	if item.Status != models.QueueStatusFailed {
		return fmt.Errorf("item %s is %s, only failed items can be dismissed", *id, item.Status)
	}

	if err := app.Queue.Dismiss(*id); err != nil {
		return err
	}
	fmt.Println("✓ Dismissed")
	return nil
}
