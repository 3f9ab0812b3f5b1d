// Package journal holds the append-only thing event journal contract and an
// in-memory implementation.
package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/louisbranch/twinworks/internal/services/things/domain/event"
)

var (
	// ErrThingIDRequired indicates an event without thing id.
	ErrThingIDRequired = errors.New("thing id is required")
	// ErrRevisionConflict indicates an event that does not follow the last
	// journaled revision of its thing.
	ErrRevisionConflict = errors.New("event revision conflicts with journal")
)

// Memory is an in-memory journal.
type Memory struct {
	mu     sync.Mutex
	events map[string][]event.Event
}

// NewMemory creates an empty journal.
func NewMemory() *Memory {
	return &Memory{events: make(map[string][]event.Event)}
}

// Append stores evt. Its revision must directly follow the last revision of
// its thing.
func (m *Memory) Append(ctx context.Context, evt event.Event) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	thingID := strings.TrimSpace(evt.ThingID)
	if thingID == "" {
		return event.Event{}, ErrThingIDRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stream := m.events[thingID]
	var last int64
	if n := len(stream); n > 0 {
		last = stream[n-1].Revision
	}
	if evt.Revision != last+1 {
		return event.Event{}, fmt.Errorf("%w: %s at %d, got %d", ErrRevisionConflict, thingID, last, evt.Revision)
	}
	m.events[thingID] = append(stream, evt)
	return evt, nil
}

// ListEvents returns up to limit events of thingID after afterRevision.
func (m *Memory) ListEvents(ctx context.Context, thingID string, afterRevision int64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []event.Event
	for _, evt := range m.events[thingID] {
		if evt.Revision <= afterRevision {
			continue
		}
		out = append(out, evt)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
