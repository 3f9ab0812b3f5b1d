package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/twinworks/internal/services/things/domain/core/jsonvalue"
	"github.com/louisbranch/twinworks/internal/services/things/domain/resource"
)

// Type identifies the event type string.
type Type string

// Action is the effect an event had on its resource.
type Action string

const (
	ActionCreated            Action = "Created"
	ActionModified           Action = "Modified"
	ActionDeleted            Action = "Deleted"
	ActionMerged             Action = "Merged"
	ActionDefinitionMigrated Action = "DefinitionMigrated"
)

const typePrefix = "things.events:"

var stems = map[resource.Kind]string{
	resource.KindThing:                    "thing",
	resource.KindPolicyID:                 "policyId",
	resource.KindDefinition:               "thingDefinition",
	resource.KindAttributes:               "attributes",
	resource.KindAttribute:                "attribute",
	resource.KindFeatures:                 "features",
	resource.KindFeature:                  "feature",
	resource.KindFeatureDefinition:        "featureDefinition",
	resource.KindFeatureProperties:        "featureProperties",
	resource.KindFeatureProperty:          "featureProperty",
	resource.KindFeatureDesiredProperties: "featureDesiredProperties",
	resource.KindFeatureDesiredProperty:   "featureDesiredProperty",
}

// TypeFor returns the event type of action on kind.
func TypeFor(kind resource.Kind, action Action) Type {
	return Type(typePrefix + stems[kind] + string(action))
}

// Action parses the action suffix of the event type.
func (t Type) Action() (Action, bool) {
	name := strings.TrimPrefix(string(t), typePrefix)
	for _, action := range []Action{ActionDefinitionMigrated, ActionCreated, ActionModified, ActionDeleted, ActionMerged} {
		if strings.HasSuffix(name, string(action)) && len(name) > len(action) {
			return action, true
		}
	}
	return "", false
}

// Event is an immutable fact about one thing.
type Event struct {
	Type         Type
	ThingID      string
	Revision     int64
	Timestamp    time.Time
	ResourcePath jsonvalue.Pointer
	Value        any
	// Metadata is the metadata subtree at ResourcePath after the event.
	Metadata any
	Headers  map[string]string
}

type wireEvent struct {
	Type         Type              `json:"type"`
	ThingID      string            `json:"thingId"`
	Revision     int64             `json:"revision"`
	Timestamp    time.Time         `json:"timestamp"`
	ResourcePath string            `json:"path"`
	Value        any               `json:"value,omitempty"`
	Metadata     any               `json:"metadata,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
}

// MarshalJSON encodes the event for the journal.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEvent{
		Type:         e.Type,
		ThingID:      e.ThingID,
		Revision:     e.Revision,
		Timestamp:    e.Timestamp,
		ResourcePath: e.ResourcePath.String(),
		Value:        e.Value,
		Metadata:     e.Metadata,
		Headers:      e.Headers,
	})
}

// UnmarshalJSON decodes a journal event, keeping numbers as json.Number.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw struct {
		wireEvent
		Value    json.RawMessage `json:"value,omitempty"`
		Metadata json.RawMessage `json:"metadata,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	path, err := jsonvalue.ParsePointer(raw.ResourcePath)
	if err != nil {
		return fmt.Errorf("event path: %w", err)
	}
	value, err := decodeOptional(raw.Value)
	if err != nil {
		return fmt.Errorf("event value: %w", err)
	}
	meta, err := decodeOptional(raw.Metadata)
	if err != nil {
		return fmt.Errorf("event metadata: %w", err)
	}
	*e = Event{
		Type:         raw.Type,
		ThingID:      raw.ThingID,
		Revision:     raw.Revision,
		Timestamp:    raw.Timestamp,
		ResourcePath: path,
		Value:        value,
		Metadata:     meta,
		Headers:      raw.Headers,
	}
	return nil
}

func decodeOptional(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	return jsonvalue.Decode(raw)
}
