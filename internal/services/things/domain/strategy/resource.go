package strategy

import (
	"context"

	"github.com/louisbranch/twinworks/internal/services/things/domain/command"
	"github.com/louisbranch/twinworks/internal/services/things/domain/core/jsonvalue"
	"github.com/louisbranch/twinworks/internal/services/things/domain/event"
	"github.com/louisbranch/twinworks/internal/services/things/domain/precondition"
	"github.com/louisbranch/twinworks/internal/services/things/domain/resource"
	"github.com/louisbranch/twinworks/internal/services/things/domain/thing"
)

// newModify handles the modify command of any resource kind, the thing root
// included. A modification of an absent resource creates it.
func newModify(cfg *Config, cmdType command.Type) *thingStrategy {
	s := &thingStrategy{cmdType: cmdType, category: command.CategoryModify, cfg: cfg}
	s.decide = func(_ context.Context, _ Context, current *thing.Thing, cmd command.Command, path resource.Path) (decision, error) {
		if err := requireFeature(current, cmd, path); err != nil {
			return decision{}, err
		}
		mode, err := cmd.Headers.IfEqual()
		if err != nil {
			return decision{}, headerInvalid(cmd, command.HeaderIfEqual, err)
		}
		value := cmd.Value
		if path.Kind == resource.KindThing {
			value = replacement(current, cmd)
		}
		previous, existed := current.Get(path.Pointer)
		if err := precondition.CheckIfEqual(cmd, mode, previous, existed, value); err != nil {
			return decision{}, err
		}
		next, err := current.Set(path.Pointer, value)
		if err != nil {
			return decision{}, err
		}
		d := decision{
			eventType: event.TypeFor(path.Kind, event.ActionModified),
			value:     value,
			next:      next,
			status:    StatusModified,
			validate:  true,
		}
		if !existed {
			d.eventType = event.TypeFor(path.Kind, event.ActionCreated)
			d.status = StatusCreated
			d.payload = value
		}
		return d, nil
	}
	return s
}

// newDelete handles the delete command of a sub-resource kind.
func newDelete(cfg *Config, cmdType command.Type) *thingStrategy {
	s := &thingStrategy{cmdType: cmdType, category: command.CategoryDelete, cfg: cfg}
	s.decide = func(_ context.Context, _ Context, current *thing.Thing, cmd command.Command, path resource.Path) (decision, error) {
		if err := requireFeature(current, cmd, path); err != nil {
			return decision{}, err
		}
		if _, ok := current.Get(path.Pointer); !ok {
			return decision{}, notFound(cmd, path)
		}
		next, err := current.Remove(path.Pointer)
		if err != nil {
			return decision{}, err
		}
		return decision{
			eventType: event.TypeFor(path.Kind, event.ActionDeleted),
			next:      next,
			status:    StatusDeleted,
			validate:  true,
		}, nil
	}
	return s
}

// newRetrieve handles the retrieve command of a sub-resource kind.
func newRetrieve(cfg *Config, cmdType command.Type) *thingStrategy {
	s := &thingStrategy{cmdType: cmdType, category: command.CategoryQuery, cfg: cfg}
	s.query = func(current *thing.Thing, cmd command.Command, path resource.Path) (any, error) {
		if err := requireFeature(current, cmd, path); err != nil {
			return nil, err
		}
		value, ok := current.Get(path.Pointer)
		if !ok {
			return nil, notFound(cmd, path)
		}
		return jsonvalue.Clone(value), nil
	}
	return s
}

// requireFeature answers FeatureNotFound for commands below a feature that
// does not exist.
func requireFeature(current *thing.Thing, cmd command.Command, path resource.Path) error {
	switch path.Kind {
	case resource.KindFeatureDefinition,
		resource.KindFeatureProperties, resource.KindFeatureProperty,
		resource.KindFeatureDesiredProperties, resource.KindFeatureDesiredProperty:
	default:
		return nil
	}
	if _, ok := current.Features[path.FeatureID]; ok {
		return nil
	}
	feature := resource.Path{
		Kind:      resource.KindFeature,
		FeatureID: path.FeatureID,
		Pointer:   jsonvalue.Pointer{resource.FieldFeatures, path.FeatureID},
	}
	return notFound(cmd, feature)
}

// replacement is the thing data a ModifyThing writes. A payload without
// policy id keeps the current one.
func replacement(current *thing.Thing, cmd command.Command) any {
	data, _ := jsonvalue.Clone(cmd.Value).(map[string]any)
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data[resource.FieldThingID]; !ok {
		data[resource.FieldThingID] = cmd.ThingID
	}
	if policyID, _ := data[resource.FieldPolicyID].(string); policyID == "" && current.PolicyID != "" {
		data[resource.FieldPolicyID] = current.PolicyID
	}
	return data
}
