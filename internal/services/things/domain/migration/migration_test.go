package migration

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/louisbranch/twinworks/internal/services/things/domain/core/jsonvalue"
	"github.com/louisbranch/twinworks/internal/services/things/domain/thing"
	"github.com/louisbranch/twinworks/internal/services/things/domain/wot"
)

const (
	lampV2   = "https://models.example/lamp-2.0.0.tm.jsonld"
	switchV2 = "https://models.example/switch-2.0.0.tm.jsonld"
)

func resolver() *wot.Registry {
	return wot.NewRegistry(
		wot.Model{
			ID: lampV2,
			Properties: map[string]wot.Property{
				"serial":       {Type: wot.TypeString, Default: "unset"},
				"manufacturer": {Type: wot.TypeString, Default: "acme"},
			},
			Links: []wot.Link{{Rel: wot.RelSubmodel, Href: switchV2, InstanceName: "switch"}},
		},
		wot.Model{
			ID:         switchV2,
			Properties: map[string]wot.Property{"on": {Type: wot.TypeBoolean, Default: false}, "level": {Type: wot.TypeInteger, Default: 0}},
		},
	)
}

func lamp(t *testing.T) thing.Thing {
	t.Helper()
	data, err := jsonvalue.Decode([]byte(`{
		"thingId": "org.acme:lamp",
		"policyId": "org.acme:policy",
		"definition": "https://models.example/lamp-1.0.0.tm.jsonld",
		"attributes": {"serial": "x-1", "floor": 2},
		"features": {"switch": {"definition": ["https://models.example/switch-1.0.0.tm.jsonld"], "properties": {"on": true}}}
	}`))
	if err != nil {
		t.Fatal(err)
	}
	th, err := thing.FromData("org.acme:lamp", data)
	if err != nil {
		t.Fatal(err)
	}
	th.Revision = 3
	th.Lifecycle = thing.LifecycleActive
	return th
}

func TestParsePayload(t *testing.T) {
	if _, err := ParsePayload(map[string]any{}); !errors.Is(err, ErrPayloadInvalid) {
		t.Fatalf("ParsePayload error = %v, want ErrPayloadInvalid", err)
	}
	p, err := ParsePayload(map[string]any{
		"thingDefinition":                         lampV2,
		"patchConditions":                         map[string]any{"/attributes/floor": "attributes.floor > 1"},
		"initializeMissingPropertiesFromDefaults": true,
	})
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if p.ThingDefinition != lampV2 || !p.InitializeMissingPropertiesFromDefaults || len(p.PatchConditions) != 1 {
		t.Fatalf("payload = %+v", p)
	}
}

func TestComputeExistingValuesWin(t *testing.T) {
	current := lamp(t)
	plan, err := Compute(context.Background(), resolver(), current, Payload{
		ThingDefinition:                         lampV2,
		InitializeMissingPropertiesFromDefaults: true,
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if plan.Preview.Definition != lampV2 {
		t.Fatalf("definition = %s", plan.Preview.Definition)
	}
	if plan.Preview.Attributes["serial"] != "x-1" {
		t.Fatalf("serial = %v, existing value must win", plan.Preview.Attributes["serial"])
	}
	if plan.Preview.Attributes["manufacturer"] != "acme" {
		t.Fatalf("manufacturer = %v, want default", plan.Preview.Attributes["manufacturer"])
	}
	sw := plan.Preview.Features["switch"]
	if sw.Properties["on"] != true || sw.Properties["level"] != 0 {
		t.Fatalf("switch properties = %v", sw.Properties)
	}
	if len(sw.Definition) != 1 || sw.Definition[0] != switchV2 {
		t.Fatalf("switch definition = %v, want migrated", sw.Definition)
	}
	if current.Definition == lampV2 {
		t.Fatal("Compute must not modify the current thing")
	}
}

func TestComputeWithoutDefaults(t *testing.T) {
	plan, err := Compute(context.Background(), resolver(), lamp(t), Payload{ThingDefinition: lampV2})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if _, ok := plan.Preview.Attributes["manufacturer"]; ok {
		t.Fatal("defaults must not be initialized")
	}
	if _, ok := plan.Patch["attributes"]; ok {
		t.Fatalf("patch = %v", plan.Patch)
	}
}

func TestComputePatchConditions(t *testing.T) {
	payload := Payload{
		ThingDefinition: lampV2,
		MigrationPayload: map[string]any{
			"attributes": map[string]any{"floor": 3, "room": "hall"},
		},
		PatchConditions: map[string]string{
			"/attributes/floor": "attributes.floor > 5",
			"/attributes/room":  "attributes.serial = \"x-1\"",
		},
	}
	plan, err := Compute(context.Background(), resolver(), lamp(t), payload)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if got := plan.Preview.Attributes["floor"]; !jsonvalue.Equal(got, json.Number("2")) {
		t.Fatalf("floor = %v, guarded entry must be dropped", got)
	}
	if plan.Preview.Attributes["room"] != "hall" {
		t.Fatalf("room = %v", plan.Preview.Attributes["room"])
	}
}

func TestComputeErrors(t *testing.T) {
	if _, err := Compute(context.Background(), resolver(), lamp(t), Payload{ThingDefinition: "https://unknown"}); !errors.Is(err, ErrDefinitionUnresolved) {
		t.Fatalf("error = %v, want ErrDefinitionUnresolved", err)
	}
	_, err := Compute(context.Background(), resolver(), lamp(t), Payload{
		ThingDefinition:  lampV2,
		MigrationPayload: map[string]any{"attributes": map[string]any{"a": 1}},
		PatchConditions:  map[string]string{"/attributes/a": "(("},
	})
	if !errors.Is(err, ErrPatchConditionInvalid) {
		t.Fatalf("error = %v, want ErrPatchConditionInvalid", err)
	}
}
