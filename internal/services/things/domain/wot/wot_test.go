package wot

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

const lampModel = `{
  "id": "https://models.example/lamp-1.0.0.tm.jsonld",
  "title": "Lamp",
  "properties": {
    "serial": {"type": "string"},
    "location": {"type": "object", "properties": {"room": {"type": "string", "default": "hall"}}}
  },
  "tm:required": ["#/properties/serial"],
  "links": [
    {"rel": "tm:submodel", "href": "https://models.example/switch-1.0.0.tm.jsonld", "instanceName": "switch"},
    {"rel": "icon", "href": "https://models.example/lamp.png"}
  ]
}`

const switchModel = `{
  "id": "https://models.example/switch-1.0.0.tm.jsonld",
  "properties": {
    "on": {"type": "boolean", "default": false},
    "level": {"type": "integer"}
  }
}`

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	for _, raw := range []string{lampModel, switchModel} {
		m, err := Decode([]byte(raw))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if err := reg.Put(m); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	return reg
}

func TestDecodeRequiresID(t *testing.T) {
	if _, err := Decode([]byte(`{"title":"x"}`)); !errors.Is(err, ErrModelInvalid) {
		t.Fatalf("Decode error = %v, want ErrModelInvalid", err)
	}
}

func TestResolveUnknown(t *testing.T) {
	if _, err := NewRegistry().Resolve(context.Background(), "missing"); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("Resolve error = %v, want ErrModelNotFound", err)
	}
}

func TestSkeleton(t *testing.T) {
	reg := testRegistry(t)
	got, err := Skeleton(context.Background(), reg, "https://models.example/lamp-1.0.0.tm.jsonld")
	if err != nil {
		t.Fatalf("Skeleton: %v", err)
	}
	attrs := got["attributes"].(map[string]any)
	if attrs["location"].(map[string]any)["room"] != "hall" {
		t.Fatalf("attributes = %v", attrs)
	}
	feature := got["features"].(map[string]any)["switch"].(map[string]any)
	if feature["properties"].(map[string]any)["on"] != false {
		t.Fatalf("switch = %v", feature)
	}
	defs := feature["definition"].([]any)
	if len(defs) != 1 || defs[0] != "https://models.example/switch-1.0.0.tm.jsonld" {
		t.Fatalf("definition = %v", defs)
	}
}

func TestCheck(t *testing.T) {
	reg := testRegistry(t)
	m, _ := reg.Resolve(context.Background(), "https://models.example/lamp-1.0.0.tm.jsonld")
	opts := CheckOptions{EnforceTypes: true, EnforceRequired: true, ForbidNonModeled: true}

	valid := map[string]any{"serial": "x1", "location": map[string]any{"room": "kitchen"}}
	if v := Check("/attributes", valid, m.Properties, m.RequiredProperties(), opts); len(v) != 0 {
		t.Fatalf("unexpected violations: %v", v)
	}

	invalid := map[string]any{"location": map[string]any{"room": json.Number("3")}, "color": "red"}
	v := Check("/attributes", invalid, m.Properties, m.RequiredProperties(), opts)
	if len(v) != 3 {
		t.Fatalf("violations = %v, want 3", v)
	}
	if v[0].Path != "/attributes/serial" {
		t.Fatalf("first violation = %v", v[0])
	}
}

func TestMatchesInteger(t *testing.T) {
	if !MatchesType(json.Number("2"), TypeInteger) {
		t.Fatal("2 is an integer")
	}
	if MatchesType(json.Number("2.5"), TypeInteger) {
		t.Fatal("2.5 is not an integer")
	}
}

func TestSubmodelInstanceNameFromHref(t *testing.T) {
	m := Model{Links: []Link{{Rel: RelSubmodel, Href: "https://models.example/dimmer-2.0.0.tm.jsonld"}}}
	if _, ok := m.Submodels()["dimmer"]; !ok {
		t.Fatalf("submodels = %v", m.Submodels())
	}
}
