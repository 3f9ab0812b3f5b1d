package command

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/louisbranch/twinworks/internal/services/things/domain/core/jsonvalue"
	"github.com/louisbranch/twinworks/internal/services/things/domain/resource"
	"github.com/louisbranch/twinworks/internal/services/things/domain/thing"
)

var (
	// ErrThingIDRequired indicates a missing thing id.
	ErrThingIDRequired = errors.New("thing id is required")
	// ErrTypeRequired indicates a missing command type.
	ErrTypeRequired = errors.New("command type is required")
	// ErrTypeUnknown indicates an unregistered command type.
	ErrTypeUnknown = errors.New("command type is not registered")
	// ErrPathInvalid indicates a path that does not address the resource
	// kind of the command type.
	ErrPathInvalid = errors.New("resource path is invalid for command type")
	// ErrPayloadInvalid indicates a payload of the wrong JSON shape.
	ErrPayloadInvalid = errors.New("payload is invalid")
)

// PayloadValidator validates a decoded JSON payload.
type PayloadValidator func(value any) error

// Definition registers metadata for a command type.
type Definition struct {
	Type     Type
	Category Category
	// Resource is the kind the path must address. Empty accepts any known path.
	Resource        resource.Kind
	ValidatePayload PayloadValidator
}

// Registry stores command definitions and validates commands.
type Registry struct {
	definitions map[Type]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[Type]Definition)}
}

// Register adds a new command type definition to the registry.
func (r *Registry) Register(def Definition) error {
	if r == nil {
		return errors.New("registry is required")
	}
	def.Type = Type(strings.TrimSpace(string(def.Type)))
	if def.Type == "" {
		return ErrTypeRequired
	}
	switch def.Category {
	case CategoryCreate, CategoryModify, CategoryMerge, CategoryDelete, CategoryQuery, CategoryMigrate:
	default:
		return fmt.Errorf("unknown category %q", def.Category)
	}
	if r.definitions == nil {
		r.definitions = make(map[Type]Definition)
	}
	if _, exists := r.definitions[def.Type]; exists {
		return fmt.Errorf("command type already registered: %s", def.Type)
	}
	r.definitions[def.Type] = def
	return nil
}

// ValidateForDecision validates and normalizes a command before dispatch.
func (r *Registry) ValidateForDecision(cmd Command) (Command, error) {
	cmd.ThingID = strings.TrimSpace(cmd.ThingID)
	if cmd.ThingID == "" {
		return Command{}, ErrThingIDRequired
	}
	cmd.Type = Type(strings.TrimSpace(string(cmd.Type)))
	if cmd.Type == "" {
		return Command{}, ErrTypeRequired
	}
	def, ok := r.Definition(cmd.Type)
	if !ok {
		return Command{}, ErrTypeUnknown
	}
	path, ok := resource.Classify(cmd.Path)
	if !ok || (def.Resource != "" && path.Kind != def.Resource) {
		return Command{}, fmt.Errorf("%w: %s", ErrPathInvalid, cmd.Path)
	}
	cmd.Headers = NewHeaders(cmd.Headers)
	if def.ValidatePayload != nil {
		if err := def.ValidatePayload(cmd.Value); err != nil {
			return Command{}, fmt.Errorf("%w: %v", ErrPayloadInvalid, err)
		}
	}
	return cmd, nil
}

// Definition returns the command definition for a given type.
func (r *Registry) Definition(cmdType Type) (Definition, bool) {
	if r == nil {
		return Definition{}, false
	}
	cmdType = Type(strings.TrimSpace(string(cmdType)))
	if cmdType == "" {
		return Definition{}, false
	}
	def, ok := r.definitions[cmdType]
	return def, ok
}

// ListDefinitions returns a stable, sorted snapshot of registered definitions.
func (r *Registry) ListDefinitions() []Definition {
	if r == nil || len(r.definitions) == 0 {
		return nil
	}
	definitions := make([]Definition, 0, len(r.definitions))
	for _, definition := range r.definitions {
		definitions = append(definitions, definition)
	}
	sort.Slice(definitions, func(i, j int) bool {
		return string(definitions[i].Type) < string(definitions[j].Type)
	})
	return definitions
}

// Definitions returns the definitions of every thing command.
func Definitions() []Definition {
	defs := []Definition{
		{Type: TypeCreateThing, Category: CategoryCreate, Resource: resource.KindThing, ValidatePayload: validateThing},
		{Type: TypeModifyThing, Category: CategoryModify, Resource: resource.KindThing, ValidatePayload: validateThing},
		{Type: TypeMergeThing, Category: CategoryMerge},
		{Type: TypeDeleteThing, Category: CategoryDelete, Resource: resource.KindThing},
		{Type: TypeRetrieveThing, Category: CategoryQuery, Resource: resource.KindThing},
		{Type: TypeSudoRetrieveThing, Category: CategoryQuery, Resource: resource.KindThing},
		{Type: TypeMigrateThingDefinition, Category: CategoryMigrate, Resource: resource.KindThing, ValidatePayload: validateObject},
	}
	for _, rc := range resourceCommands {
		validate := payloadValidators[rc.kind]
		if rc.modify != "" {
			defs = append(defs, Definition{Type: rc.modify, Category: CategoryModify, Resource: rc.kind, ValidatePayload: validate})
		}
		if rc.delete != "" {
			defs = append(defs, Definition{Type: rc.delete, Category: CategoryDelete, Resource: rc.kind})
		}
		if rc.retrieve != "" {
			defs = append(defs, Definition{Type: rc.retrieve, Category: CategoryQuery, Resource: rc.kind})
		}
	}
	return defs
}

// NewDefaultRegistry returns a registry holding every thing command.
func NewDefaultRegistry() (*Registry, error) {
	registry := NewRegistry()
	for _, def := range Definitions() {
		if err := registry.Register(def); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

var payloadValidators = map[resource.Kind]PayloadValidator{
	resource.KindPolicyID:                 validatePolicyID,
	resource.KindDefinition:               validateDefinition,
	resource.KindAttributes:               validateObject,
	resource.KindFeatures:                 validateFeatures,
	resource.KindFeature:                  validateFeature,
	resource.KindFeatureDefinition:        validateFeatureDefinition,
	resource.KindFeatureProperties:        validateObject,
	resource.KindFeatureDesiredProperties: validateObject,
}

func validateObject(value any) error {
	if !jsonvalue.IsObject(value) {
		return errors.New("payload must be a JSON object")
	}
	return nil
}

func validateThing(value any) error {
	if err := validateObject(value); err != nil {
		return err
	}
	_, err := thing.FromData("validation:placeholder", withoutID(value))
	return err
}

func withoutID(value any) any {
	out, _ := jsonvalue.Remove(value, jsonvalue.Pointer{resource.FieldThingID})
	return out
}

func validatePolicyID(value any) error {
	s, ok := value.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return errors.New("policy id must be a non-empty string")
	}
	return nil
}

func validateDefinition(value any) error {
	if _, ok := value.(string); !ok {
		return errors.New("definition must be a string")
	}
	return nil
}

func validateFeatures(value any) error {
	_, err := thing.FromData("validation:placeholder", map[string]any{resource.FieldFeatures: value})
	return err
}

func validateFeature(value any) error {
	_, err := thing.FeatureFromData(value)
	return err
}

func validateFeatureDefinition(value any) error {
	_, err := thing.DefinitionFromData(value)
	return err
}
