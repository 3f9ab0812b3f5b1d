// Package replay rebuilds things from their journaled events.
package replay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/twinworks/internal/services/things/domain/event"
	"github.com/louisbranch/twinworks/internal/services/things/domain/thing"
)

const defaultPageSize = 200

var (
	// ErrEventStoreRequired indicates a missing event store.
	ErrEventStoreRequired = errors.New("event store is required")
	// ErrThingIDRequired indicates a missing thing id.
	ErrThingIDRequired = errors.New("thing id is required")
	// ErrSnapshotNotFound indicates no snapshot exists yet.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// EventStore lists events for replay.
type EventStore interface {
	ListEvents(ctx context.Context, thingID string, afterRevision int64, limit int) ([]event.Event, error)
}

// SnapshotStore keeps the latest snapshot per thing.
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, thingID string) (thing.Thing, error)
	SaveSnapshot(ctx context.Context, t thing.Thing) error
}

// Options configures replay behavior.
type Options struct {
	// UntilRevision stops the replay after this revision. Zero replays all.
	UntilRevision int64
	PageSize      int
}

// Result captures replay outcomes.
type Result struct {
	// Thing is nil when no event was ever recorded.
	Thing    *thing.Thing
	Revision int64
	Applied  int
}

// Replay applies the events of thingID after state in revision order.
// state is nil to replay from the beginning.
func Replay(ctx context.Context, store EventStore, thingID string, state *thing.Thing, options Options) (Result, error) {
	if store == nil {
		return Result{}, ErrEventStoreRequired
	}
	thingID = strings.TrimSpace(thingID)
	if thingID == "" {
		return Result{}, ErrThingIDRequired
	}
	pageSize := options.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	result := Result{Thing: state}
	if state != nil {
		result.Revision = state.Revision
	}
	for {
		events, err := store.ListEvents(ctx, thingID, result.Revision, pageSize)
		if err != nil {
			return result, err
		}
		if len(events) == 0 {
			return result, nil
		}
		for _, evt := range events {
			if options.UntilRevision > 0 && evt.Revision > options.UntilRevision {
				return result, nil
			}
			if expected := result.Revision + 1; evt.Revision != expected {
				return result, fmt.Errorf("event revision gap: expected %d got %d", expected, evt.Revision)
			}
			next, err := event.Apply(result.Thing, evt)
			if err != nil {
				return result, err
			}
			result.Thing = next
			result.Revision = evt.Revision
			result.Applied++
		}
	}
}

// Load rebuilds thingID from its latest snapshot plus the events after it.
// snapshots may be nil.
func Load(ctx context.Context, store EventStore, snapshots SnapshotStore, thingID string) (Result, error) {
	var state *thing.Thing
	if snapshots != nil {
		snap, err := snapshots.GetSnapshot(ctx, thingID)
		switch {
		case err == nil:
			state = &snap
		case !errors.Is(err, ErrSnapshotNotFound):
			return Result{}, err
		}
	}
	return Replay(ctx, store, thingID, state, Options{})
}
