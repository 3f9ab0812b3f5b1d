package metadata

import (
	"errors"
	"reflect"
	"testing"

	"github.com/louisbranch/twinworks/internal/services/things/domain/command"
	"github.com/louisbranch/twinworks/internal/services/things/domain/core/jsonvalue"
	"github.com/louisbranch/twinworks/internal/services/things/domain/resource"
)

func thingData() map[string]any {
	return map[string]any{
		"thingId":  "org.acme:lamp",
		"policyId": "org.acme:policy",
		"attributes": map[string]any{
			"location": map[string]any{"room": "kitchen"},
			"serial":   "abc",
		},
		"features": map[string]any{
			"f1": map[string]any{"properties": map[string]any{"a": 1, "b": 2}},
			"f2": map[string]any{"properties": map[string]any{"a": 3, "b": 4}},
		},
	}
}

func render(ptrs []jsonvalue.Pointer) []string {
	out := make([]string, len(ptrs))
	for i, p := range ptrs {
		out[i] = p.String()
	}
	return out
}

func TestParseHeadersConflict(t *testing.T) {
	h := command.NewHeaders(map[string]string{
		command.HeaderGetMetadata:    "a",
		command.HeaderDeleteMetadata: "not json at all [",
	})
	if _, err := ParseHeaders(h); !errors.Is(err, ErrDirectiveConflict) {
		t.Fatalf("ParseHeaders error = %v, want ErrDirectiveConflict", err)
	}
}

func TestParseHeadersPut(t *testing.T) {
	h := command.NewHeaders(map[string]string{
		command.HeaderPutMetadata: `[{"key":"*/unit","value":"C"},{"key":"/issuedBy","value":{"name":"x"}}]`,
	})
	d, err := ParseHeaders(h)
	if err != nil {
		t.Fatalf("ParseHeaders: %v", err)
	}
	if d.Header() != command.HeaderPutMetadata {
		t.Fatalf("Header = %q", d.Header())
	}
	got := render(d.Keys())
	want := []string{"/*/unit", "/issuedBy"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
}

func TestParseHeadersMalformed(t *testing.T) {
	cases := []map[string]string{
		{command.HeaderPutMetadata: `{"key":"a"}`},
		{command.HeaderPutMetadata: `[{"key":"a"}]`},
		{command.HeaderPutMetadata: `[{"key":1,"value":2}]`},
		{command.HeaderGetMetadata: " , "},
	}
	for _, raw := range cases {
		if _, err := ParseHeaders(command.NewHeaders(raw)); !errors.Is(err, ErrHeaderMalformed) {
			t.Fatalf("ParseHeaders(%v) error = %v, want ErrHeaderMalformed", raw, err)
		}
	}
}

func TestParseHeadersPartialWildcard(t *testing.T) {
	h := command.NewHeaders(map[string]string{command.HeaderGetMetadata: "a*b/unit"})
	if _, err := ParseHeaders(h); !errors.Is(err, ErrWildcardInvalid) {
		t.Fatalf("error = %v, want ErrWildcardInvalid", err)
	}
}

func TestExpandFeaturePropertiesWildcard(t *testing.T) {
	key := jsonvalue.MustPointer("features/*/properties/*/unit")
	got, err := Expand(resource.KindThing, key, thingData())
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := []string{
		"/features/f1/properties/a/unit",
		"/features/f1/properties/b/unit",
		"/features/f2/properties/a/unit",
		"/features/f2/properties/b/unit",
	}
	if !reflect.DeepEqual(render(got), want) {
		t.Fatalf("Expand = %v, want %v", render(got), want)
	}
}

func TestExpandRootLeaves(t *testing.T) {
	got, err := Expand(resource.KindThing, jsonvalue.MustPointer("*/issuedAt"), thingData())
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	for _, p := range render(got) {
		if p == "/thingId/issuedAt" {
			t.Fatal("thing id must not receive metadata")
		}
	}
	if len(got) != 7 {
		t.Fatalf("Expand = %v, want 7 leaves", render(got))
	}
}

func TestExpandPerLevel(t *testing.T) {
	data := thingData()
	features, _ := jsonvalue.Get(data, jsonvalue.MustPointer("features"))
	feature, _ := jsonvalue.Get(data, jsonvalue.MustPointer("features/f1"))
	attrs, _ := jsonvalue.Get(data, jsonvalue.MustPointer("attributes"))

	tests := []struct {
		name  string
		kind  resource.Kind
		key   string
		value any
		want  []string
	}{
		{"features ids", resource.KindFeatures, "*/owner", features, []string{"/f1/owner", "/f2/owner"}},
		{"single feature in features", resource.KindFeatures, "f2/properties/*/unit", features, []string{"/f2/properties/a/unit", "/f2/properties/b/unit"}},
		{"feature properties", resource.KindFeature, "properties/*/unit", feature, []string{"/properties/a/unit", "/properties/b/unit"}},
		{"attributes leaves", resource.KindAttributes, "*/unit", attrs, []string{"/location/room/unit", "/serial/unit"}},
		{"root attributes keys", resource.KindThing, "attributes/*/unit", data, []string{"/attributes/location/unit", "/attributes/serial/unit"}},
		{"literal", resource.KindFeatureProperty, "unit", 1, []string{"/unit"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(tt.kind, jsonvalue.MustPointer(tt.key), tt.value)
			if err != nil {
				t.Fatalf("Expand: %v", err)
			}
			if !reflect.DeepEqual(render(got), tt.want) {
				t.Fatalf("Expand = %v, want %v", render(got), tt.want)
			}
		})
	}
}

func TestExpandRejectsWildcards(t *testing.T) {
	if _, err := Expand(resource.KindFeatureProperty, jsonvalue.MustPointer("*/unit"), 1); !errors.Is(err, ErrWildcardNotSupported) {
		t.Fatalf("leaf wildcard error = %v, want ErrWildcardNotSupported", err)
	}
	invalid := []struct {
		kind resource.Kind
		key  string
	}{
		{resource.KindThing, "attributes/*"},
		{resource.KindThing, "features/*/foo/*/unit"},
		{resource.KindFeature, "*/*/unit"},
		{resource.KindAttributes, "a/*/unit"},
	}
	for _, tt := range invalid {
		if _, err := Expand(tt.kind, jsonvalue.MustPointer(tt.key), thingData()); !errors.Is(err, ErrWildcardInvalid) {
			t.Fatalf("Expand(%s, %s) error = %v, want ErrWildcardInvalid", tt.kind, tt.key, err)
		}
	}
}

func TestApplyPutNewestWins(t *testing.T) {
	path, err := resource.For(resource.KindThing, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	entries := []Entry{
		{Key: jsonvalue.MustPointer("features/*/properties/*/unit"), Value: "C"},
		{Key: jsonvalue.MustPointer("features/f1/properties/a/unit"), Value: "F"},
	}
	meta, err := ApplyPut(nil, path, entries, thingData())
	if err != nil {
		t.Fatalf("ApplyPut: %v", err)
	}
	if v, _ := jsonvalue.Get(meta, jsonvalue.MustPointer("features/f1/properties/a/unit")); v != "F" {
		t.Fatalf("f1/a unit = %v, want F", v)
	}
	if v, _ := jsonvalue.Get(meta, jsonvalue.MustPointer("features/f2/properties/b/unit")); v != "C" {
		t.Fatalf("f2/b unit = %v, want C", v)
	}
}

func TestApplyPutBelowResource(t *testing.T) {
	path, err := resource.For(resource.KindFeatureProperties, "f1", nil)
	if err != nil {
		t.Fatal(err)
	}
	value := map[string]any{"a": 1}
	meta, err := ApplyPut(map[string]any{}, path, []Entry{{Key: jsonvalue.MustPointer("*/unit"), Value: "C"}}, value)
	if err != nil {
		t.Fatalf("ApplyPut: %v", err)
	}
	if v, _ := jsonvalue.Get(meta, jsonvalue.MustPointer("features/f1/properties/a/unit")); v != "C" {
		t.Fatalf("unit = %v, want C", v)
	}
}

func TestApplyPutDropsKeysWithoutData(t *testing.T) {
	path, err := resource.For(resource.KindAttributes, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	value := map[string]any{"location": "hall"}
	meta, err := ApplyPut(nil, path, []Entry{
		{Key: jsonvalue.MustPointer("ghost/unit"), Value: "m"},
		{Key: jsonvalue.MustPointer("location/unit"), Value: "m"},
	}, value)
	if err != nil {
		t.Fatalf("ApplyPut: %v", err)
	}
	if _, ok := jsonvalue.Get(meta, jsonvalue.MustPointer("attributes/ghost")); ok {
		t.Fatalf("expected no metadata for missing attribute, got %v", meta)
	}
	if v, _ := jsonvalue.Get(meta, jsonvalue.MustPointer("attributes/location/unit")); v != "m" {
		t.Fatalf("location unit = %v, want m", v)
	}
}

func TestApplyDeleteAndSelect(t *testing.T) {
	path, _ := resource.For(resource.KindThing, "", nil)
	meta, err := ApplyPut(nil, path, []Entry{
		{Key: jsonvalue.MustPointer("attributes/*/unit"), Value: "m"},
	}, thingData())
	if err != nil {
		t.Fatal(err)
	}
	selected, err := Select(meta, path, []jsonvalue.Pointer{jsonvalue.MustPointer("attributes/serial/unit")}, thingData())
	if err != nil {
		t.Fatal(err)
	}
	if selected["/attributes/serial/unit"] != "m" {
		t.Fatalf("Select = %v", selected)
	}
	meta, err = ApplyDelete(meta, path, []jsonvalue.Pointer{jsonvalue.MustPointer("attributes/serial/unit")}, thingData())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := jsonvalue.Get(meta, jsonvalue.MustPointer("attributes/serial/unit")); ok {
		t.Fatal("expected unit removed")
	}
	if _, ok := jsonvalue.Get(meta, jsonvalue.MustPointer("attributes/location/unit")); !ok {
		t.Fatal("expected location unit kept")
	}
}

func TestPruneDropsRemovedData(t *testing.T) {
	meta := map[string]any{
		"issuedBy": "ops",
		"attributes": map[string]any{
			"serial":   map[string]any{"unit": "x"},
			"location": map[string]any{"unit": "y"},
		},
	}
	oldData := thingData()
	newData := thingData()
	delete(newData["attributes"].(map[string]any), "serial")

	pruned := Prune(meta, oldData, newData)
	if _, ok := jsonvalue.Get(pruned, jsonvalue.MustPointer("attributes/serial")); ok {
		t.Fatal("expected serial metadata pruned")
	}
	if v, _ := jsonvalue.Get(pruned, jsonvalue.MustPointer("attributes/location/unit")); v != "y" {
		t.Fatalf("location unit = %v", v)
	}
	if v, _ := jsonvalue.Get(pruned, jsonvalue.MustPointer("issuedBy")); v != "ops" {
		t.Fatalf("issuedBy = %v", v)
	}
	if _, ok := jsonvalue.Get(meta, jsonvalue.MustPointer("attributes/serial/unit")); !ok {
		t.Fatal("Prune must not modify its input")
	}
}

func TestMarshalEntriesRoundTrip(t *testing.T) {
	raw, err := MarshalEntries([]Entry{{Key: jsonvalue.MustPointer("a/unit"), Value: "C"}})
	if err != nil {
		t.Fatal(err)
	}
	d, err := ParseHeaders(command.NewHeaders(map[string]string{command.HeaderPutMetadata: raw}))
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Put) != 1 || d.Put[0].Key.String() != "/a/unit" || d.Put[0].Value != "C" {
		t.Fatalf("round trip = %+v", d.Put)
	}
}
