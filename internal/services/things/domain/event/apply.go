package event

import (
	"errors"
	"fmt"

	"github.com/louisbranch/twinworks/internal/services/things/domain/core/jsonvalue"
	"github.com/louisbranch/twinworks/internal/services/things/domain/thing"
)

var (
	// ErrRevisionGap indicates an event that does not follow the thing revision.
	ErrRevisionGap = errors.New("event revision does not follow thing revision")
	// ErrThingMissing indicates a non-creation event applied to no thing.
	ErrThingMissing = errors.New("event requires an existing thing")
	// ErrTypeUnknown indicates an event type without a known action.
	ErrTypeUnknown = errors.New("event type is unknown")
)

// Apply returns the thing that results from applying evt to current. current
// is nil when the thing has never existed. current is never modified.
func Apply(current *thing.Thing, evt Event) (*thing.Thing, error) {
	action, ok := evt.Type.Action()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTypeUnknown, evt.Type)
	}
	if current != nil && evt.Revision != current.Revision+1 {
		return nil, fmt.Errorf("%w: thing at %d, event at %d", ErrRevisionGap, current.Revision, evt.Revision)
	}

	var (
		next thing.Thing
		err  error
	)
	switch {
	case action == ActionCreated && evt.ResourcePath.IsRoot():
		next, err = thing.FromData(evt.ThingID, evt.Value)
		if err != nil {
			return nil, err
		}
		next.Created = evt.Timestamp
		next.Lifecycle = thing.LifecycleActive
	case current == nil:
		return nil, fmt.Errorf("%w: %s", ErrThingMissing, evt.Type)
	case action == ActionDeleted && evt.ResourcePath.IsRoot():
		next = *current
		next.Lifecycle = thing.LifecycleDeleted
	case action == ActionDeleted:
		next, err = current.Remove(evt.ResourcePath)
	case action == ActionMerged, action == ActionDefinitionMigrated:
		next, err = current.Merge(evt.ResourcePath, evt.Value)
	default:
		next, err = current.Set(evt.ResourcePath, evt.Value)
	}
	if err != nil {
		return nil, err
	}

	next.Revision = evt.Revision
	next.Modified = evt.Timestamp
	next.Metadata = applyMetadata(next.Metadata, evt)
	if action == ActionCreated && evt.ResourcePath.IsRoot() {
		next.Metadata = asObject(evt.Metadata)
	}
	return &next, nil
}

func applyMetadata(meta map[string]any, evt Event) map[string]any {
	if evt.ResourcePath.IsRoot() {
		if action, _ := evt.Type.Action(); action == ActionDeleted {
			return meta
		}
		return asObject(evt.Metadata)
	}
	var out any
	if evt.Metadata == nil {
		out, _ = jsonvalue.Remove(any(meta), evt.ResourcePath)
	} else {
		out = jsonvalue.Set(any(meta), evt.ResourcePath, evt.Metadata)
	}
	return asObject(out)
}

func asObject(v any) map[string]any {
	obj, _ := v.(map[string]any)
	if len(obj) == 0 {
		return nil
	}
	return obj
}
