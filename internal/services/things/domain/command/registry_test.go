package command

import (
	"errors"
	"testing"

	"github.com/louisbranch/twinworks/internal/services/things/domain/core/jsonvalue"
	"github.com/louisbranch/twinworks/internal/services/things/domain/resource"
)

func defaultRegistry(t *testing.T) *Registry {
	t.Helper()
	registry, err := NewDefaultRegistry()
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return registry
}

func TestRegistryValidateForDecision_MissingThingID(t *testing.T) {
	_, err := defaultRegistry(t).ValidateForDecision(Command{Type: TypeRetrieveThing})
	if !errors.Is(err, ErrThingIDRequired) {
		t.Fatalf("expected ErrThingIDRequired, got %v", err)
	}
}

func TestRegistryValidateForDecision_UnknownType(t *testing.T) {
	_, err := defaultRegistry(t).ValidateForDecision(Command{Type: "things.commands:explode", ThingID: "a:b"})
	if !errors.Is(err, ErrTypeUnknown) {
		t.Fatalf("expected ErrTypeUnknown, got %v", err)
	}
}

func TestRegistryValidateForDecision_MissingType(t *testing.T) {
	_, err := defaultRegistry(t).ValidateForDecision(Command{ThingID: "a:b"})
	if !errors.Is(err, ErrTypeRequired) {
		t.Fatalf("expected ErrTypeRequired, got %v", err)
	}
}

func TestRegistryValidateForDecision_PathMustMatchResource(t *testing.T) {
	cmd := Command{Type: TypeModifyAttribute, ThingID: "a:b", Path: jsonvalue.MustPointer("/features/f"), Value: "x"}
	if _, err := defaultRegistry(t).ValidateForDecision(cmd); !errors.Is(err, ErrPathInvalid) {
		t.Fatalf("expected ErrPathInvalid, got %v", err)
	}
}

func TestRegistryValidateForDecision_PayloadShape(t *testing.T) {
	registry := defaultRegistry(t)
	tests := []struct {
		name string
		cmd  Command
	}{
		{name: "attributes not object", cmd: Command{Type: TypeModifyAttributes, ThingID: "a:b", Path: jsonvalue.MustPointer("/attributes"), Value: "x"}},
		{name: "empty policy id", cmd: Command{Type: TypeModifyPolicyID, ThingID: "a:b", Path: jsonvalue.MustPointer("/policyId"), Value: " "}},
		{name: "feature definition not array", cmd: Command{Type: TypeModifyFeatureDefinition, ThingID: "a:b", Path: jsonvalue.MustPointer("/features/f/definition"), Value: "x"}},
		{name: "thing with unknown field", cmd: Command{Type: TypeCreateThing, ThingID: "a:b", Path: jsonvalue.Pointer{}, Value: map[string]any{"color": "red"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := registry.ValidateForDecision(tt.cmd); !errors.Is(err, ErrPayloadInvalid) {
				t.Fatalf("expected ErrPayloadInvalid, got %v", err)
			}
		})
	}
}

func TestRegistryValidateForDecision_NormalizesHeaders(t *testing.T) {
	cmd := ModifyAttribute(" a:b ", jsonvalue.MustPointer("/location"), "kitchen")
	cmd.Headers = Headers{"If-Match": `"rev:1"`}
	got, err := defaultRegistry(t).ValidateForDecision(cmd)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got.ThingID != "a:b" {
		t.Fatalf("thing id = %q", got.ThingID)
	}
	if got.Headers.Get(HeaderIfMatch) != `"rev:1"` {
		t.Fatalf("headers = %v", got.Headers)
	}
}

func TestMergeAcceptsAnyKnownPath(t *testing.T) {
	registry := defaultRegistry(t)
	ok := MergeThing("a:b", jsonvalue.MustPointer("/features/f/properties/x"), "v")
	if _, err := registry.ValidateForDecision(ok); err != nil {
		t.Fatalf("validate: %v", err)
	}
	bad := MergeThing("a:b", jsonvalue.MustPointer("/unknown"), "v")
	if _, err := registry.ValidateForDecision(bad); !errors.Is(err, ErrPathInvalid) {
		t.Fatalf("expected ErrPathInvalid, got %v", err)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	def := Definition{Type: "x", Category: CategoryQuery, Resource: resource.KindThing}
	if err := registry.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(def); err == nil {
		t.Fatal("expected duplicate error")
	}
	if err := registry.Register(Definition{Type: "y", Category: "bogus"}); err == nil {
		t.Fatal("expected category error")
	}
}

func TestDefinitionsCoverEveryResourceCommand(t *testing.T) {
	registry := defaultRegistry(t)
	if got := len(registry.ListDefinitions()); got != 39 {
		t.Fatalf("definitions = %d, want 39", got)
	}
	def, ok := registry.Definition(TypeDeleteFeatureProperty)
	if !ok || def.Category != CategoryDelete || def.Resource != resource.KindFeatureProperty {
		t.Fatalf("unexpected definition %+v", def)
	}
}

func TestHeadersIfEqual(t *testing.T) {
	if v, err := (Headers{}).IfEqual(); err != nil || v != IfEqualUpdate {
		t.Fatalf("default = %v, %v", v, err)
	}
	if v, err := NewHeaders(map[string]string{"If-Equal": "SKIP"}).IfEqual(); err != nil || v != IfEqualSkip {
		t.Fatalf("skip = %v, %v", v, err)
	}
	if _, err := NewHeaders(map[string]string{"if-equal": "maybe"}).IfEqual(); err == nil {
		t.Fatal("expected error")
	}
}
