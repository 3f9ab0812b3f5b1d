package command

import (
	"github.com/louisbranch/twinworks/internal/services/things/domain/core/jsonvalue"
	"github.com/louisbranch/twinworks/internal/services/things/domain/resource"
)

// Command captures the canonical command envelope.
type Command struct {
	Type    Type
	ThingID string
	// Path is the resource path relative to the thing root.
	Path jsonvalue.Pointer
	// Value is the decoded JSON payload; nil for delete and query commands.
	Value   any
	Headers Headers
}

// Resource classifies the command path. ok is false for unknown paths.
func (c Command) Resource() (resource.Path, bool) {
	return resource.Classify(c.Path)
}

// FeatureID returns the feature addressed by the command, if any.
func (c Command) FeatureID() string {
	p, _ := c.Resource()
	return p.FeatureID
}

// WithHeaders returns a copy of c using headers.
func (c Command) WithHeaders(headers Headers) Command {
	c.Headers = headers
	return c
}

// New builds a command against a resource kind. sub is the attribute or
// property pointer for single-value kinds.
func New(cmdType Type, thingID string, kind resource.Kind, featureID string, sub jsonvalue.Pointer, value any) (Command, error) {
	p, err := resource.For(kind, featureID, sub)
	if err != nil {
		return Command{}, err
	}
	return Command{Type: cmdType, ThingID: thingID, Path: p.Pointer, Value: value, Headers: Headers{}}, nil
}

// CreateThing builds a CreateThing command.
func CreateThing(thingID string, value any) Command {
	return Command{Type: TypeCreateThing, ThingID: thingID, Path: jsonvalue.Pointer{}, Value: value, Headers: Headers{}}
}

// ModifyAttribute builds a ModifyAttribute command.
func ModifyAttribute(thingID string, pointer jsonvalue.Pointer, value any) Command {
	return Command{Type: TypeModifyAttribute, ThingID: thingID, Path: jsonvalue.Pointer{resource.FieldAttributes}.Concat(pointer), Value: value, Headers: Headers{}}
}

// MergeThing builds a MergeThing command at path.
func MergeThing(thingID string, path jsonvalue.Pointer, patch any) Command {
	return Command{Type: TypeMergeThing, ThingID: thingID, Path: path, Value: patch, Headers: Headers{}}
}

// RetrieveThing builds a RetrieveThing command.
func RetrieveThing(thingID string) Command {
	return Command{Type: TypeRetrieveThing, ThingID: thingID, Path: jsonvalue.Pointer{}, Headers: Headers{}}
}

// DeleteThing builds a DeleteThing command.
func DeleteThing(thingID string) Command {
	return Command{Type: TypeDeleteThing, ThingID: thingID, Path: jsonvalue.Pointer{}, Headers: Headers{}}
}
