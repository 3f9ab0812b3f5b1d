package event

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/twinworks/internal/services/things/domain/core/jsonvalue"
	"github.com/louisbranch/twinworks/internal/services/things/domain/resource"
	"github.com/louisbranch/twinworks/internal/services/things/domain/thing"
)

var ts = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func created(t *testing.T) *thing.Thing {
	t.Helper()
	value, err := jsonvalue.Decode([]byte(`{"policyId":"p:1","attributes":{"location":"kitchen"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, err := Apply(nil, Event{
		Type:         TypeFor(resource.KindThing, ActionCreated),
		ThingID:      "a:b",
		Revision:     1,
		Timestamp:    ts,
		ResourcePath: jsonvalue.Pointer{},
		Value:        value,
	})
	if err != nil {
		t.Fatalf("apply created: %v", err)
	}
	return got
}

func TestTypeFor(t *testing.T) {
	if got := TypeFor(resource.KindFeatureDesiredProperty, ActionModified); got != "things.events:featureDesiredPropertyModified" {
		t.Fatalf("type = %s", got)
	}
	action, ok := TypeFor(resource.KindThing, ActionDefinitionMigrated).Action()
	if !ok || action != ActionDefinitionMigrated {
		t.Fatalf("action = %s, %v", action, ok)
	}
	if _, ok := Type("things.events:Created").Action(); ok {
		t.Fatal("expected bare action to be rejected")
	}
}

func TestApplyCreated(t *testing.T) {
	got := created(t)
	if got.Revision != 1 || got.Lifecycle != thing.LifecycleActive || !got.Created.Equal(ts) {
		t.Fatalf("unexpected thing %+v", got)
	}
}

func TestApplySequence(t *testing.T) {
	base := created(t)

	modified, err := Apply(base, Event{
		Type:         TypeFor(resource.KindAttribute, ActionCreated),
		ThingID:      "a:b",
		Revision:     2,
		Timestamp:    ts.Add(time.Second),
		ResourcePath: jsonvalue.MustPointer("/attributes/floor"),
		Value:        json.Number("2"),
		Metadata:     map[string]any{"issuedBy": "sensor"},
	})
	if err != nil {
		t.Fatalf("apply attribute: %v", err)
	}
	if modified.Attributes["floor"] != json.Number("2") {
		t.Fatalf("attributes = %v", modified.Attributes)
	}
	if got, _ := jsonvalue.Get(any(modified.Metadata), jsonvalue.MustPointer("/attributes/floor/issuedBy")); got != "sensor" {
		t.Fatalf("metadata = %v", modified.Metadata)
	}
	if base.Attributes["floor"] != nil {
		t.Fatal("previous thing was modified")
	}

	merged, err := Apply(modified, Event{
		Type:         TypeFor(resource.KindThing, ActionMerged),
		ThingID:      "a:b",
		Revision:     3,
		Timestamp:    ts.Add(2 * time.Second),
		ResourcePath: jsonvalue.MustPointer("/attributes"),
		Value:        map[string]any{"location": nil},
	})
	if err != nil {
		t.Fatalf("apply merge: %v", err)
	}
	if _, ok := merged.Attributes["location"]; ok {
		t.Fatal("expected location removed by merge")
	}

	deleted, err := Apply(merged, Event{
		Type:         TypeFor(resource.KindThing, ActionDeleted),
		ThingID:      "a:b",
		Revision:     4,
		Timestamp:    ts.Add(3 * time.Second),
		ResourcePath: jsonvalue.Pointer{},
	})
	if err != nil {
		t.Fatalf("apply delete: %v", err)
	}
	if !deleted.IsDeleted() || deleted.Revision != 4 {
		t.Fatalf("unexpected deleted thing %+v", deleted)
	}
}

func TestApplyRejectsRevisionGap(t *testing.T) {
	_, err := Apply(created(t), Event{
		Type:         TypeFor(resource.KindAttributes, ActionDeleted),
		ThingID:      "a:b",
		Revision:     5,
		ResourcePath: jsonvalue.MustPointer("/attributes"),
	})
	if !errors.Is(err, ErrRevisionGap) {
		t.Fatalf("expected ErrRevisionGap, got %v", err)
	}
}

func TestApplyRequiresThing(t *testing.T) {
	_, err := Apply(nil, Event{
		Type:         TypeFor(resource.KindAttribute, ActionModified),
		ThingID:      "a:b",
		Revision:     1,
		ResourcePath: jsonvalue.MustPointer("/attributes/x"),
		Value:        "v",
	})
	if !errors.Is(err, ErrThingMissing) {
		t.Fatalf("expected ErrThingMissing, got %v", err)
	}
}

func TestEventJSONKeepsPathAndNumbers(t *testing.T) {
	in := Event{
		Type:         TypeFor(resource.KindFeatureProperty, ActionModified),
		ThingID:      "a:b",
		Revision:     7,
		Timestamp:    ts,
		ResourcePath: jsonvalue.MustPointer("/features/lamp/properties/level"),
		Value:        json.Number("12345678901234567890"),
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Event
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.ResourcePath.String() != "/features/lamp/properties/level" || out.Value != json.Number("12345678901234567890") {
		t.Fatalf("unexpected event %+v", out)
	}
}
