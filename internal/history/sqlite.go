package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// historyTables lists every table Prune sweeps. Names are constants,
// never caller input.
var historyTables = []string{"property_history", "action_history", "event_history"}

// SQLiteRepository implements Repository using SQLite.
//
// Values, inputs, and event data are stored as JSON text so arbitrary
// property types survive the round trip.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite history repository.
//
// The schema is managed by the migrations package; callers must run
// migrations before first use.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RecordProperty inserts one property update row.
func (r *SQLiteRepository) RecordProperty(ctx context.Context, thingID, property string, value any) error {
	if thingID == "" {
		return fmt.Errorf("thing id is required")
	}
	if property == "" {
		return fmt.Errorf("property name is required")
	}

	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshalling value: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO property_history (thing_id, property, value, recorded_at) VALUES (?, ?, ?, ?)",
		thingID,
		property,
		string(valueJSON),
		nowTimestamp(),
	)
	if err != nil {
		return fmt.Errorf("inserting property history: %w", err)
	}
	return nil
}

// RecordAction inserts one action transition row.
func (r *SQLiteRepository) RecordAction(ctx context.Context, thingID, action, actionID, status string, input any) error {
	if thingID == "" {
		return fmt.Errorf("thing id is required")
	}
	if action == "" {
		return fmt.Errorf("action name is required")
	}
	if status == "" {
		return fmt.Errorf("status is required")
	}

	var inputJSON any
	if input != nil {
		encoded, err := json.Marshal(input)
		if err != nil {
			return fmt.Errorf("marshalling input: %w", err)
		}
		inputJSON = string(encoded)
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO action_history (thing_id, action, action_id, status, input, recorded_at) VALUES (?, ?, ?, ?, ?, ?)",
		thingID,
		action,
		actionID,
		status,
		inputJSON,
		nowTimestamp(),
	)
	if err != nil {
		return fmt.Errorf("inserting action history: %w", err)
	}
	return nil
}

// RecordEvent inserts one event occurrence row.
func (r *SQLiteRepository) RecordEvent(ctx context.Context, thingID, event string, data any) error {
	if thingID == "" {
		return fmt.Errorf("thing id is required")
	}
	if event == "" {
		return fmt.Errorf("event name is required")
	}

	var dataJSON any
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshalling data: %w", err)
		}
		dataJSON = string(encoded)
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO event_history (thing_id, event, data, recorded_at) VALUES (?, ?, ?, ?)",
		thingID,
		event,
		dataJSON,
		nowTimestamp(),
	)
	if err != nil {
		return fmt.Errorf("inserting event history: %w", err)
	}
	return nil
}

// PropertyHistory returns recent property updates, newest first.
// The limit defaults to 50 and is capped at 200.
func (r *SQLiteRepository) PropertyHistory(ctx context.Context, thingID string, limit int) ([]PropertyRecord, error) {
	if thingID == "" {
		return nil, fmt.Errorf("thing id is required")
	}
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, thing_id, property, value, recorded_at
		 FROM property_history
		 WHERE thing_id = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		thingID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying property history: %w", err)
	}
	defer rows.Close()

	records := make([]PropertyRecord, 0, limit)
	for rows.Next() {
		var rec PropertyRecord
		var valueJSON string
		var recordedAt string

		if err := rows.Scan(&rec.ID, &rec.ThingID, &rec.Property, &valueJSON, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning property history: %w", err)
		}
		if err := json.Unmarshal([]byte(valueJSON), &rec.Value); err != nil {
			return nil, fmt.Errorf("unmarshalling value: %w", err)
		}
		rec.RecordedAt, err = parseTimestamp(recordedAt)
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating property history: %w", err)
	}
	return records, nil
}

// ActionHistory returns recent action transitions, newest first.
// The limit defaults to 50 and is capped at 200.
func (r *SQLiteRepository) ActionHistory(ctx context.Context, thingID string, limit int) ([]ActionRecord, error) {
	if thingID == "" {
		return nil, fmt.Errorf("thing id is required")
	}
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, thing_id, action, action_id, status, input, recorded_at
		 FROM action_history
		 WHERE thing_id = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		thingID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying action history: %w", err)
	}
	defer rows.Close()

	records := make([]ActionRecord, 0, limit)
	for rows.Next() {
		var rec ActionRecord
		var inputJSON sql.NullString
		var recordedAt string

		if err := rows.Scan(&rec.ID, &rec.ThingID, &rec.Action, &rec.ActionID, &rec.Status, &inputJSON, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning action history: %w", err)
		}
		if inputJSON.Valid {
			if err := json.Unmarshal([]byte(inputJSON.String), &rec.Input); err != nil {
				return nil, fmt.Errorf("unmarshalling input: %w", err)
			}
		}
		rec.RecordedAt, err = parseTimestamp(recordedAt)
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating action history: %w", err)
	}
	return records, nil
}

// EventHistory returns recent event occurrences, newest first.
// The limit defaults to 50 and is capped at 200.
func (r *SQLiteRepository) EventHistory(ctx context.Context, thingID string, limit int) ([]EventRecord, error) {
	if thingID == "" {
		return nil, fmt.Errorf("thing id is required")
	}
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, thing_id, event, data, recorded_at
		 FROM event_history
		 WHERE thing_id = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		thingID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying event history: %w", err)
	}
	defer rows.Close()

	records := make([]EventRecord, 0, limit)
	for rows.Next() {
		var rec EventRecord
		var dataJSON sql.NullString
		var recordedAt string

		if err := rows.Scan(&rec.ID, &rec.ThingID, &rec.Event, &dataJSON, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning event history: %w", err)
		}
		if dataJSON.Valid {
			if err := json.Unmarshal([]byte(dataJSON.String), &rec.Data); err != nil {
				return nil, fmt.Errorf("unmarshalling data: %w", err)
			}
		}
		rec.RecordedAt, err = parseTimestamp(recordedAt)
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event history: %w", err)
	}
	return records, nil
}

// Prune deletes rows older than the given duration from every history
// table and returns the total rows removed.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	var total int64
	for _, table := range historyTables {
		result, err := r.db.ExecContext(ctx,
			"DELETE FROM "+table+" WHERE recorded_at < ?",
			cutoff,
		)
		if err != nil {
			return total, fmt.Errorf("pruning %s: %w", table, err)
		}
		deleted, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("checking rows affected: %w", err)
		}
		total += deleted
	}
	return total, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}

func nowTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// parseTimestamp parses a recorded_at value stored in SQLite.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("recorded_at is empty")
	}
	timestamp, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing recorded_at: %w", err)
	}
	return timestamp, nil
}
