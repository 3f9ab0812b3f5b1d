package checkpoint

import (
	"context"
	"errors"
	"testing"

	"github.com/louisbranch/twinworks/internal/services/things/domain/replay"
	"github.com/louisbranch/twinworks/internal/services/things/domain/thing"
)

func TestMemorySnapshot_SaveAndGet(t *testing.T) {
	store := NewMemory()
	if err := store.SaveSnapshot(context.Background(), thing.Thing{ID: "org.acme:lamp", Revision: 42}); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	loaded, err := store.GetSnapshot(context.Background(), "org.acme:lamp")
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if loaded.Revision != 42 {
		t.Fatalf("revision = %d, want 42", loaded.Revision)
	}
}

func TestMemorySnapshot_KeepsNewest(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	_ = store.SaveSnapshot(ctx, thing.Thing{ID: "org.acme:lamp", Revision: 5})
	_ = store.SaveSnapshot(ctx, thing.Thing{ID: "org.acme:lamp", Revision: 3})
	loaded, _ := store.GetSnapshot(ctx, "org.acme:lamp")
	if loaded.Revision != 5 {
		t.Fatalf("revision = %d, want 5", loaded.Revision)
	}
}

func TestMemorySnapshot_GetMissingReturnsNotFound(t *testing.T) {
	_, err := NewMemory().GetSnapshot(context.Background(), "missing")
	if !errors.Is(err, replay.ErrSnapshotNotFound) {
		t.Fatalf("error = %v, want %v", err, replay.ErrSnapshotNotFound)
	}
}

func TestMemorySnapshot_RequiresThingID(t *testing.T) {
	if err := NewMemory().SaveSnapshot(context.Background(), thing.Thing{}); !errors.Is(err, ErrThingIDRequired) {
		t.Fatalf("error = %v, want ErrThingIDRequired", err)
	}
}

func TestNoop(t *testing.T) {
	var store Noop
	if err := store.SaveSnapshot(context.Background(), thing.Thing{ID: "x"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.GetSnapshot(context.Background(), "x"); !errors.Is(err, replay.ErrSnapshotNotFound) {
		t.Fatalf("error = %v, want ErrSnapshotNotFound", err)
	}
}
