package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/twinworks/internal/services/things/domain/core/jsonvalue"
	"github.com/louisbranch/twinworks/internal/services/things/domain/event"
	"github.com/louisbranch/twinworks/internal/services/things/domain/journal"
	"github.com/louisbranch/twinworks/internal/services/things/domain/replay"
	"github.com/louisbranch/twinworks/internal/services/things/domain/resource"
	"github.com/louisbranch/twinworks/internal/services/things/domain/thing"
)

var fixedNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func openTempStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "things.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func created(rev int64) event.Event {
	return event.Event{
		Type:      event.TypeFor(resource.KindThing, event.ActionCreated),
		ThingID:   "org.acme:lamp",
		Revision:  rev,
		Timestamp: fixedNow,
		Value:     map[string]any{"thingId": "org.acme:lamp", "policyId": "org.acme:policy"},
		Headers:   map[string]string{"correlation-id": "c-1"},
	}
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestAppendListRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	if _, err := store.Append(ctx, created(1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	modified := event.Event{
		Type:         event.TypeFor(resource.KindAttribute, event.ActionModified),
		ThingID:      "org.acme:lamp",
		Revision:     2,
		Timestamp:    fixedNow,
		ResourcePath: jsonvalue.Pointer{"attributes", "location"},
		Value:        "hall",
	}
	if _, err := store.Append(ctx, modified); err != nil {
		t.Fatalf("append modified: %v", err)
	}

	events, err := store.ListEvents(ctx, "org.acme:lamp", 0, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Headers["correlation-id"] != "c-1" {
		t.Fatalf("headers = %v", events[0].Headers)
	}
	if events[1].ResourcePath.String() != "/attributes/location" || events[1].Value != "hall" {
		t.Fatalf("second event = %+v", events[1])
	}

	tail, err := store.ListEvents(ctx, "org.acme:lamp", 1, 10)
	if err != nil {
		t.Fatalf("list tail: %v", err)
	}
	if len(tail) != 1 || tail[0].Revision != 2 {
		t.Fatalf("tail = %+v", tail)
	}
}

func TestAppendRejectsRevisionGap(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	if _, err := store.Append(ctx, created(2)); !errors.Is(err, journal.ErrRevisionConflict) {
		t.Fatalf("expected ErrRevisionConflict, got %v", err)
	}
	if _, err := store.Append(ctx, created(1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := store.Append(ctx, created(1)); !errors.Is(err, journal.ErrRevisionConflict) {
		t.Fatalf("expected ErrRevisionConflict on duplicate, got %v", err)
	}
}

func TestAppendRequiresThingID(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	evt := created(1)
	evt.ThingID = " "
	if _, err := store.Append(context.Background(), evt); !errors.Is(err, journal.ErrThingIDRequired) {
		t.Fatalf("expected ErrThingIDRequired, got %v", err)
	}
}

func TestSnapshotKeepsNewest(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	if _, err := store.GetSnapshot(ctx, "org.acme:lamp"); !errors.Is(err, replay.ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}

	v2, err := thing.FromData("org.acme:lamp", map[string]any{"policyId": "p", "attributes": map[string]any{"v": "two"}})
	if err != nil {
		t.Fatalf("from data: %v", err)
	}
	v2.Revision = 2
	v2.Created = fixedNow
	v2.Modified = fixedNow
	v2.Lifecycle = thing.LifecycleActive
	if err := store.SaveSnapshot(ctx, v2); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	v1 := v2
	v1.Revision = 1
	if err := store.SaveSnapshot(ctx, v1); err != nil {
		t.Fatalf("save older snapshot: %v", err)
	}

	got, err := store.GetSnapshot(ctx, "org.acme:lamp")
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if got.Revision != 2 || !got.Modified.Equal(fixedNow) {
		t.Fatalf("snapshot = %+v", got)
	}
	if v, _ := got.Get(jsonvalue.Pointer{"attributes", "v"}); v != "two" {
		t.Fatalf("attribute v = %v", v)
	}
}

func TestReplayFromStore(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	if _, err := store.Append(ctx, created(1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	res, err := replay.Load(ctx, store, store, "org.acme:lamp")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Thing == nil || res.Revision != 1 {
		t.Fatalf("replayed = %+v", res)
	}
}
