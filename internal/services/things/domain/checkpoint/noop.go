package checkpoint

import (
	"context"

	"github.com/louisbranch/twinworks/internal/services/things/domain/replay"
	"github.com/louisbranch/twinworks/internal/services/things/domain/thing"
)

// Noop never keeps snapshots, so every load replays the full journal.
type Noop struct{}

// GetSnapshot always reports a missing snapshot.
func (Noop) GetSnapshot(context.Context, string) (thing.Thing, error) {
	return thing.Thing{}, replay.ErrSnapshotNotFound
}

// SaveSnapshot discards t.
func (Noop) SaveSnapshot(context.Context, thing.Thing) error {
	return nil
}
