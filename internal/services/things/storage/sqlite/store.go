// Package sqlite provides a SQLite-backed thing journal and snapshot store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/twinworks/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/twinworks/internal/services/things/domain/event"
	"github.com/louisbranch/twinworks/internal/services/things/domain/journal"
	"github.com/louisbranch/twinworks/internal/services/things/domain/replay"
	"github.com/louisbranch/twinworks/internal/services/things/domain/thing"
	"github.com/louisbranch/twinworks/internal/services/things/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists thing events and snapshots in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens a SQLite thing store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Append stores evt. Its revision must directly follow the last journaled
// revision of its thing.
func (s *Store) Append(ctx context.Context, evt event.Event) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return event.Event{}, fmt.Errorf("storage is not configured")
	}
	evt.ThingID = strings.TrimSpace(evt.ThingID)
	if evt.ThingID == "" {
		return event.Event{}, journal.ErrThingIDRequired
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return event.Event{}, fmt.Errorf("encode event: %w", err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return event.Event{}, fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var last int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(revision), 0) FROM thing_events WHERE thing_id = ?`,
		evt.ThingID,
	).Scan(&last); err != nil {
		return event.Event{}, fmt.Errorf("read last revision: %w", err)
	}
	if evt.Revision != last+1 {
		return event.Event{}, fmt.Errorf("%w: %s revision %d after %d", journal.ErrRevisionConflict, evt.ThingID, evt.Revision, last)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO thing_events (thing_id, revision, event_type, recorded_at, payload_json) VALUES (?, ?, ?, ?, ?)`,
		evt.ThingID, evt.Revision, string(evt.Type), toMillis(s.now()), payload,
	); err != nil {
		if isConstraintError(err) {
			return event.Event{}, fmt.Errorf("%w: %s revision %d", journal.ErrRevisionConflict, evt.ThingID, evt.Revision)
		}
		return event.Event{}, fmt.Errorf("insert event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return event.Event{}, fmt.Errorf("commit append: %w", err)
	}
	return evt, nil
}

// ListEvents returns events of thingID after afterRevision in revision
// order. A non-positive limit returns all of them.
func (s *Store) ListEvents(ctx context.Context, thingID string, afterRevision int64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	thingID = strings.TrimSpace(thingID)
	if thingID == "" {
		return nil, journal.ErrThingIDRequired
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT payload_json FROM thing_events WHERE thing_id = ? AND revision > ? ORDER BY revision LIMIT ?`,
		thingID, afterRevision, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var evt event.Event
		if err := json.Unmarshal(payload, &evt); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// GetSnapshot returns the latest snapshot of thingID.
func (s *Store) GetSnapshot(ctx context.Context, thingID string) (thing.Thing, error) {
	if err := ctx.Err(); err != nil {
		return thing.Thing{}, err
	}
	if s == nil || s.sqlDB == nil {
		return thing.Thing{}, fmt.Errorf("storage is not configured")
	}
	thingID = strings.TrimSpace(thingID)
	if thingID == "" {
		return thing.Thing{}, journal.ErrThingIDRequired
	}
	var state []byte
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT state_json FROM thing_snapshots WHERE thing_id = ?`, thingID,
	).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return thing.Thing{}, replay.ErrSnapshotNotFound
	}
	if err != nil {
		return thing.Thing{}, fmt.Errorf("get snapshot: %w", err)
	}
	var snap thing.Thing
	if err := json.Unmarshal(state, &snap); err != nil {
		return thing.Thing{}, fmt.Errorf("decode snapshot: %w", err)
	}
	snap.ID = thingID
	return snap, nil
}

// SaveSnapshot stores t unless a newer snapshot already exists.
func (s *Store) SaveSnapshot(ctx context.Context, t thing.Thing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	thingID := strings.TrimSpace(t.ID)
	if thingID == "" {
		return journal.ErrThingIDRequired
	}
	state, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO thing_snapshots (thing_id, revision, saved_at, state_json) VALUES (?, ?, ?, ?)
		 ON CONFLICT(thing_id) DO UPDATE SET
		   revision = excluded.revision,
		   saved_at = excluded.saved_at,
		   state_json = excluded.state_json
		 WHERE excluded.revision > thing_snapshots.revision`,
		thingID, t.Revision, toMillis(s.now()), state,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func isConstraintError(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
