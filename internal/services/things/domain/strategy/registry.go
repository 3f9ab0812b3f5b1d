package strategy

import (
	"github.com/louisbranch/twinworks/internal/services/things/domain/command"
	"github.com/louisbranch/twinworks/internal/services/things/domain/thing"
)

// ThingDispatcher dispatches thing commands.
type ThingDispatcher = Dispatcher[*thing.Thing, command.Command]

// Strategies returns one strategy per thing command type.
func Strategies(cfg Config) []Strategy {
	shared := &cfg
	out := []Strategy{
		newCreateThing(shared),
		newModify(shared, command.TypeModifyThing),
		newMergeThing(shared),
		newDeleteThing(shared),
		newRetrieveThing(shared),
		newSudoRetrieveThing(shared),
		newMigrateThingDefinition(shared),
	}
	for _, def := range command.Definitions() {
		switch def.Type {
		case command.TypeCreateThing, command.TypeModifyThing, command.TypeMergeThing,
			command.TypeDeleteThing, command.TypeRetrieveThing, command.TypeSudoRetrieveThing,
			command.TypeMigrateThingDefinition:
			continue
		}
		switch def.Category {
		case command.CategoryModify:
			out = append(out, newModify(shared, def.Type))
		case command.CategoryDelete:
			out = append(out, newDelete(shared, def.Type))
		case command.CategoryQuery:
			out = append(out, newRetrieve(shared, def.Type))
		}
	}
	return out
}

// NewThingDispatcher returns a dispatcher holding every thing strategy.
func NewThingDispatcher(cfg Config) (*ThingDispatcher, error) {
	d := NewDispatcher[*thing.Thing, command.Command](func(cmd command.Command) string {
		return string(cmd.Type)
	})
	if err := d.Intercept(conflictInterceptor{}); err != nil {
		return nil, err
	}
	for _, s := range Strategies(cfg) {
		if err := d.Register(string(s.Type()), s); err != nil {
			return nil, err
		}
	}
	return d, nil
}
