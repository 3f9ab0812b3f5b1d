// Package checkpoint provides thing snapshot stores.
package checkpoint

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/louisbranch/twinworks/internal/services/things/domain/replay"
	"github.com/louisbranch/twinworks/internal/services/things/domain/thing"
)

// ErrThingIDRequired indicates a missing thing id.
var ErrThingIDRequired = errors.New("thing id is required")

// Memory stores snapshots in memory.
type Memory struct {
	mu        sync.Mutex
	snapshots map[string]thing.Thing
}

// NewMemory creates a new in-memory snapshot store.
func NewMemory() *Memory {
	return &Memory{snapshots: make(map[string]thing.Thing)}
}

// GetSnapshot returns the latest snapshot of thingID.
func (m *Memory) GetSnapshot(ctx context.Context, thingID string) (thing.Thing, error) {
	if err := ctx.Err(); err != nil {
		return thing.Thing{}, err
	}
	if m == nil {
		return thing.Thing{}, errors.New("snapshot store is required")
	}
	thingID = strings.TrimSpace(thingID)
	if thingID == "" {
		return thing.Thing{}, ErrThingIDRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap, ok := m.snapshots[thingID]
	if !ok {
		return thing.Thing{}, replay.ErrSnapshotNotFound
	}
	return snap, nil
}

// SaveSnapshot keeps t unless a newer snapshot is already stored.
func (m *Memory) SaveSnapshot(ctx context.Context, t thing.Thing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m == nil {
		return errors.New("snapshot store is required")
	}
	thingID := strings.TrimSpace(t.ID)
	if thingID == "" {
		return ErrThingIDRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.snapshots[thingID]; ok && existing.Revision > t.Revision {
		return nil
	}
	m.snapshots[thingID] = t
	return nil
}
