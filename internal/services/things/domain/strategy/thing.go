package strategy

import (
	"context"

	"github.com/louisbranch/twinworks/internal/platform/async"
	"github.com/louisbranch/twinworks/internal/services/things/domain/command"
	"github.com/louisbranch/twinworks/internal/services/things/domain/core/jsonvalue"
	"github.com/louisbranch/twinworks/internal/services/things/domain/event"
	"github.com/louisbranch/twinworks/internal/services/things/domain/migration"
	"github.com/louisbranch/twinworks/internal/services/things/domain/precondition"
	"github.com/louisbranch/twinworks/internal/services/things/domain/resource"
	"github.com/louisbranch/twinworks/internal/services/things/domain/thing"
)

func newCreateThing(cfg *Config) *thingStrategy {
	s := &thingStrategy{cmdType: command.TypeCreateThing, category: command.CategoryCreate, cfg: cfg}
	s.defined = func(current *thing.Thing, _ command.Command) bool {
		return !thing.Exists(current)
	}
	s.unhandled = func(cmd command.Command) Result {
		return Fail(cmd.Headers, conflict(cmd))
	}
	s.decide = func(_ context.Context, _ Context, _ *thing.Thing, cmd command.Command, _ resource.Path) (decision, error) {
		data, _ := jsonvalue.Clone(cmd.Value).(map[string]any)
		if data == nil {
			data = map[string]any{}
		}
		if policyID, _ := data[resource.FieldPolicyID].(string); policyID == "" {
			if cfg.RequirePolicyID {
				return decision{}, policyIDMissing(cmd)
			}
			data[resource.FieldPolicyID] = cmd.ThingID
		}
		next, err := thing.FromData(cmd.ThingID, data)
		if err != nil {
			return decision{}, err
		}
		value := next.Data()
		return decision{
			eventType:     event.TypeFor(resource.KindThing, event.ActionCreated),
			value:         value,
			next:          next,
			status:        StatusCreated,
			payload:       value,
			becomeCreated: true,
			validate:      true,
		}, nil
	}
	return s
}

func newDeleteThing(cfg *Config) *thingStrategy {
	s := &thingStrategy{cmdType: command.TypeDeleteThing, category: command.CategoryDelete, cfg: cfg}
	s.decide = func(_ context.Context, _ Context, current *thing.Thing, _ command.Command, _ resource.Path) (decision, error) {
		return decision{
			eventType:     event.TypeFor(resource.KindThing, event.ActionDeleted),
			next:          *current,
			status:        StatusDeleted,
			becomeDeleted: true,
		}, nil
	}
	return s
}

func newMergeThing(cfg *Config) *thingStrategy {
	s := &thingStrategy{cmdType: command.TypeMergeThing, category: command.CategoryMerge, cfg: cfg}
	s.decide = func(_ context.Context, _ Context, current *thing.Thing, cmd command.Command, path resource.Path) (decision, error) {
		mode, err := cmd.Headers.IfEqual()
		if err != nil {
			return decision{}, headerInvalid(cmd, command.HeaderIfEqual, err)
		}
		previous, existed := current.Get(path.Pointer)
		patch := cmd.Value
		if mode == command.IfEqualSkipMinimizingMerge && existed {
			minimized, changed := jsonvalue.MinimizePatch(previous, patch)
			if !changed {
				return decision{}, precondition.NotModified(cmd, command.HeaderIfEqual)
			}
			patch = minimized
		}
		next, err := current.Merge(path.Pointer, patch)
		if err != nil {
			return decision{}, err
		}
		if mode == command.IfEqualSkip {
			merged, _ := next.Get(path.Pointer)
			if err := precondition.CheckIfEqual(cmd, mode, previous, existed, merged); err != nil {
				return decision{}, err
			}
		}
		return decision{
			eventType: event.TypeFor(resource.KindThing, event.ActionMerged),
			value:     patch,
			next:      next,
			status:    StatusModified,
			validate:  true,
		}, nil
	}
	return s
}

// newRetrieveThing answers the thing data. With allow-deleted it also
// answers for deleted things.
func newRetrieveThing(cfg *Config) *thingStrategy {
	s := &thingStrategy{cmdType: command.TypeRetrieveThing, category: command.CategoryQuery, cfg: cfg}
	s.defined = liveOrAllowDeleted
	s.query = func(current *thing.Thing, _ command.Command, _ resource.Path) (any, error) {
		return current.Data(), nil
	}
	return s
}

// newSudoRetrieveThing answers the full document, envelope included. With
// allow-deleted it also answers for deleted things.
func newSudoRetrieveThing(cfg *Config) *thingStrategy {
	s := &thingStrategy{cmdType: command.TypeSudoRetrieveThing, category: command.CategoryQuery, cfg: cfg}
	s.defined = liveOrAllowDeleted
	s.query = func(current *thing.Thing, _ command.Command, _ resource.Path) (any, error) {
		doc := current.Document(true)
		doc[thing.FieldLifecycle] = string(current.Lifecycle)
		return doc, nil
	}
	return s
}

func liveOrAllowDeleted(current *thing.Thing, cmd command.Command) bool {
	if current == nil {
		return false
	}
	return !current.IsDeleted() || cmd.Headers.AllowDeleted()
}

func newMigrateThingDefinition(cfg *Config) *thingStrategy {
	s := &thingStrategy{cmdType: command.TypeMigrateThingDefinition, category: command.CategoryMigrate, cfg: cfg}
	s.decide = func(ctx context.Context, _ Context, current *thing.Thing, cmd command.Command, _ resource.Path) (decision, error) {
		payload, err := migration.ParsePayload(cmd.Value)
		if err != nil {
			return decision{}, err
		}
		plan, err := migration.Compute(ctx, cfg.Models, *current, payload)
		if err != nil {
			return decision{}, err
		}
		status := migration.StatusApplied
		if cmd.Headers.DryRun() {
			status = migration.StatusDryRun
		}
		return decision{
			eventType: event.TypeFor(resource.KindThing, event.ActionDefinitionMigrated),
			value:     plan.Patch,
			next:      plan.Preview,
			status:    StatusModified,
			payload: map[string]any{
				resource.FieldThingID: cmd.ThingID,
				"patch":               plan.Patch,
				"mergeStatus":         status,
			},
			validate: true,
		}, nil
	}
	return s
}

// conflictInterceptor answers creations of things that already exist.
type conflictInterceptor struct{}

func (conflictInterceptor) IsDefined(_ Context, current *thing.Thing, cmd command.Command) bool {
	return cmd.Type == command.TypeCreateThing && thing.Exists(current)
}

func (conflictInterceptor) Apply(_ context.Context, _ Context, _ *thing.Thing, cmd command.Command) *async.Task[Result] {
	return async.Completed[Result](Fail(cmd.Headers, conflict(cmd)))
}

func (conflictInterceptor) Unhandled(Context, *thing.Thing, command.Command) Result {
	return nil
}
