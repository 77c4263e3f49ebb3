// ABOUTME: Database operations for sync_state and sync_log tables
// ABOUTME: Tracks per-provider sync status and a history of drain and pull cycles
package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/amc/models"
)

// Sync status constants.
const (
	SyncStatusIdle    = "idle"
	SyncStatusSyncing = "syncing"
	SyncStatusError   = "error"
)

// Cycle kinds recorded in sync_log.
const (
	CycleDrain     = "drain"
	CycleReconcile = "reconcile"
)

// SyncState represents the sync state for a provider.
type SyncState struct {
	Provider     string
	LastSyncTime *time.Time
	Status       string
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GetSyncState retrieves the sync state for a provider.
func GetSyncState(db *sql.DB, provider string) (*SyncState, error) {
	var state SyncState
	var lastSyncTime sql.NullTime
	var errorMessage sql.NullString

	err := db.QueryRow(`
		SELECT provider, last_sync_time, status, error_message, created_at, updated_at
		FROM sync_state
		WHERE provider = ?
	`, provider).Scan(
		&state.Provider,
		&lastSyncTime,
		&state.Status,
		&errorMessage,
		&state.CreatedAt,
		&state.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}

	if lastSyncTime.Valid {
		state.LastSyncTime = &lastSyncTime.Time
	}
	if errorMessage.Valid {
		state.ErrorMessage = &errorMessage.String
	}

	return &state, nil
}

// UpdateSyncStatus updates the sync status for a provider.
func UpdateSyncStatus(db *sql.DB, provider, status string, errorMsg *string) error {
	var errorMsgVal sql.NullString
	if errorMsg != nil {
		errorMsgVal = sql.NullString{String: *errorMsg, Valid: true}
	}

	_, err := db.Exec(`
		INSERT INTO sync_state (provider, status, error_message, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(provider) DO UPDATE SET
			status = excluded.status,
			error_message = excluded.error_message,
			updated_at = CURRENT_TIMESTAMP
	`, provider, status, errorMsgVal)

	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}

	return nil
}

// MarkSyncComplete records a successful cycle for a provider.
func MarkSyncComplete(db *sql.DB, provider string) error {
	_, err := db.Exec(`
		INSERT INTO sync_state (provider, last_sync_time, status, created_at, updated_at)
		VALUES (?, CURRENT_TIMESTAMP, 'idle', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(provider) DO UPDATE SET
			last_sync_time = CURRENT_TIMESTAMP,
			status = 'idle',
			error_message = NULL,
			updated_at = CURRENT_TIMESTAMP
	`, provider)

	if err != nil {
		return fmt.Errorf("failed to mark sync complete: %w", err)
	}

	return nil
}

// SyncLogEntry is one recorded drain or reconcile cycle.
type SyncLogEntry struct {
	ID           string
	Kind         string
	StartedAt    time.Time
	Duration     time.Duration
	Processed    int
	Failed       int
	ErrorSummary string
}

// RecordCycle appends one cycle's outcome to the sync log.
func RecordCycle(db *sql.DB, kind string, startedAt time.Time, duration time.Duration, result *models.SyncResult) error {
	var summary sql.NullString
	if len(result.Errors) > 0 {
		parts := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			parts = append(parts, fmt.Sprintf("%s: %s", e.ItemID, e.Message))
		}
		summary = sql.NullString{String: strings.Join(parts, "; "), Valid: true}
	}

	_, err := db.Exec(`
		INSERT INTO sync_log (id, kind, started_at, duration_ms, processed, failed, error_summary)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), kind, startedAt, duration.Milliseconds(), result.Processed, result.Failed, summary)

	if err != nil {
		return fmt.Errorf("failed to record sync cycle: %w", err)
	}

	return nil
}

// RecentCycles returns the latest sync log entries, newest first.
func RecentCycles(db *sql.DB, limit int) ([]SyncLogEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := db.Query(`
		SELECT id, kind, started_at, duration_ms, processed, failed, error_summary
		FROM sync_log
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync log: %w", err)
	}
	defer rows.Close()

	var entries []SyncLogEntry
	for rows.Next() {
		var e SyncLogEntry
		var durationMS int64
		var summary sql.NullString

		if err := rows.Scan(&e.ID, &e.Kind, &e.StartedAt, &durationMS, &e.Processed, &e.Failed, &summary); err != nil {
			return nil, err
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		if summary.Valid {
			e.ErrorSummary = summary.String
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
