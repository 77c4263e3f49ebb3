// ABOUTME: Shared application wiring for CLI commands
// ABOUTME: Opens the kv store, queue, sync log database, and engine from config
package cli

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/harperreed/amc/config"
	"github.com/harperreed/amc/crm"
	"github.com/harperreed/amc/db"
	"github.com/harperreed/amc/engine"
	"github.com/harperreed/amc/kv"
	"github.com/harperreed/amc/queue"
	"github.com/harperreed/amc/store"
)

// App bundles the long-lived components commands operate on.
type App struct {
	Config *config.Config
	KV     kv.Store
	Store  *store.ContactStore
	Queue  *queue.OfflineQueue
	Engine *engine.Engine
	LogDB  *sql.DB
}

// OpenApp builds the full component graph from config.
func OpenApp(cfg *config.Config) (*App, error) {
	kvStore, err := kv.Open(filepath.Join(cfg.DataDir, "kv"))
	if err != nil {
		return nil, fmt.Errorf("failed to open kv store: %w", err)
	}

	contactStore, err := store.Open(kvStore)
	if err != nil {
		_ = kvStore.Close()
		return nil, fmt.Errorf("failed to open contact store: %w", err)
	}

	offlineQueue, err := queue.Open(kvStore)
	if err != nil {
		_ = kvStore.Close()
		return nil, fmt.Errorf("failed to open offline queue: %w", err)
	}

	logDB, err := db.OpenDatabase(filepath.Join(cfg.DataDir, "sync.db"))
	if err != nil {
		_ = kvStore.Close()
		return nil, fmt.Errorf("failed to open sync log: %w", err)
	}

	var adapters []crm.Adapter
	for _, conn := range cfg.ActiveConnections() {
		c := conn
		adapter, err := crm.New(&c)
		if err != nil {
			_ = logDB.Close()
			_ = kvStore.Close()
			return nil, fmt.Errorf("failed to build %s adapter: %w", conn.Provider, err)
		}
		adapters = append(adapters, adapter)
	}

	eng := engine.New(contactStore, offlineQueue, adapters, &engine.Options{
		PushInterval: cfg.PushInterval,
		PullInterval: cfg.PullInterval,
		LogDB:        logDB,
	})

	return &App{
		Config: cfg,
		KV:     kvStore,
		Store:  contactStore,
		Queue:  offlineQueue,
		Engine: eng,
		LogDB:  logDB,
	}, nil
}

// Close releases the app's stores.
func (a *App) Close() error {
	var firstErr error
	if a.LogDB != nil {
		if err := a.LogDB.Close(); err != nil {
			firstErr = err
		}
	}
	if a.KV != nil {
		if err := a.KV.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
