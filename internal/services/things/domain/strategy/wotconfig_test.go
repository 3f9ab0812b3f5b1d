package strategy

import (
	"context"
	"testing"

	apperrors "github.com/louisbranch/twinworks/internal/platform/errors"
	"github.com/louisbranch/twinworks/internal/services/things/domain/command"
	"github.com/louisbranch/twinworks/internal/services/things/domain/wotconfig"
)

func dispatchConfig(t *testing.T, d *ConfigDispatcher, current *wotconfig.Config, cmd ConfigCommand) Result {
	t.Helper()
	var rev int64 = 1
	if current != nil {
		rev = current.Revision + 1
	}
	sc := Context{EntityID: wotconfig.DefaultConfigID, NextRevision: rev, Timestamp: fixedNow}
	res, err := d.Dispatch(context.Background(), sc, current, cmd).Await(context.Background())
	if err != nil {
		t.Fatalf("dispatch %s: %v", cmd.Type, err)
	}
	return res
}

func newConfigDispatcher(t *testing.T) *ConfigDispatcher {
	t.Helper()
	d, err := NewConfigDispatcher(wotconfig.Defaults())
	if err != nil {
		t.Fatalf("new config dispatcher: %v", err)
	}
	return d
}

func configOf(t *testing.T, res Result) *wotconfig.Config {
	t.Helper()
	m := mustMutation(t, res)
	c, ok := m.Event.Value.(wotconfig.Config)
	if !ok {
		t.Fatalf("event value = %T, want wotconfig.Config", m.Event.Value)
	}
	return &c
}

func TestConfigLifecycle(t *testing.T) {
	d := newConfigDispatcher(t)

	res := dispatchConfig(t, d, nil, ConfigCommand{Type: TypeRetrieveConfig})
	expectCode(t, res, apperrors.CodeWotConfigNotFound)

	created := configOf(t, dispatchConfig(t, d, nil, ConfigCommand{
		Type:  TypeCreateConfig,
		Value: map[string]any{"enabled": false},
	}))
	if created.Revision != 1 || created.ConfigID != wotconfig.DefaultConfigID || *created.Enabled {
		t.Fatalf("created = %+v", created)
	}

	q, ok := dispatchConfig(t, d, created, ConfigCommand{Type: TypeRetrieveConfig}).(Query)
	if !ok || q.Response.Headers.Get(command.HeaderETag) != `"rev:1"` {
		t.Fatalf("retrieve = %#v", q)
	}

	m := mustMutation(t, dispatchConfig(t, d, created, ConfigCommand{Type: TypeDeleteConfig}))
	if !m.BecomeDeleted || m.Event.Type != ConfigDeleted {
		t.Fatalf("delete = %+v", m)
	}
}

func TestConfigRejectsInvalidDocument(t *testing.T) {
	d := newConfigDispatcher(t)
	res := dispatchConfig(t, d, nil, ConfigCommand{
		Type: TypeCreateConfig,
		Value: map[string]any{"dynamicConfig": []any{
			map[string]any{"scopeId": "a"},
			map[string]any{"scopeId": "a"},
		}},
	})
	expectCode(t, res, apperrors.CodeWotConfigInvalid)
}

func TestConfigIfMatch(t *testing.T) {
	d := newConfigDispatcher(t)
	current := &wotconfig.Config{ConfigID: wotconfig.DefaultConfigID, Revision: 4}
	cmd := ConfigCommand{
		Type:    TypeModifyConfig,
		Value:   map[string]any{},
		Headers: command.NewHeaders(map[string]string{command.HeaderIfMatch: `"rev:3"`}),
	}
	expectCode(t, dispatchConfig(t, d, current, cmd), apperrors.CodePreconditionFailed)

	cmd.Headers = command.NewHeaders(map[string]string{command.HeaderIfMatch: `"rev:4"`})
	if next := configOf(t, dispatchConfig(t, d, current, cmd)); next.Revision != 5 {
		t.Fatalf("revision = %d, want 5", next.Revision)
	}
}

func TestMergeSectionReplacesScope(t *testing.T) {
	d := newConfigDispatcher(t)
	current := &wotconfig.Config{ConfigID: wotconfig.DefaultConfigID, Revision: 1, DynamicConfigs: []wotconfig.DynamicSection{
		{ScopeID: "s1"}, {ScopeID: "s2"},
	}}

	res := dispatchConfig(t, d, current, ConfigCommand{
		Type:    TypeMergeConfigSection,
		ScopeID: "s1",
		Value:   map[string]any{"configOverrides": map[string]any{"enabled": false}},
	})
	next := configOf(t, res)
	if len(next.DynamicConfigs) != 2 {
		t.Fatalf("sections = %+v, want 2", next.DynamicConfigs)
	}
	section, ok := next.Section("s1")
	if !ok || section.ConfigOverrides.Enabled == nil || *section.ConfigOverrides.Enabled {
		t.Fatalf("s1 = %+v", section)
	}
	if res.(Mutation).Response.Status != StatusModified {
		t.Fatalf("status = %s, want modified", res.(Mutation).Response.Status)
	}

	mismatch := ConfigCommand{Type: TypeMergeConfigSection, ScopeID: "s1", Value: map[string]any{"scopeId": "other"}}
	expectCode(t, dispatchConfig(t, d, current, mismatch), apperrors.CodeWotConfigInvalid)
}

func TestSectionNotFound(t *testing.T) {
	d := newConfigDispatcher(t)
	current := &wotconfig.Config{ConfigID: wotconfig.DefaultConfigID, Revision: 1}
	for _, typ := range []ConfigCommandType{TypeRetrieveConfigSection, TypeDeleteConfigSection} {
		res := dispatchConfig(t, d, current, ConfigCommand{Type: typ, ScopeID: "missing"})
		expectCode(t, res, apperrors.CodeWotConfigSectionNotFound)
	}
}

func TestRetrieveMergedConfig(t *testing.T) {
	d := newConfigDispatcher(t)
	q, ok := dispatchConfig(t, d, nil, ConfigCommand{Type: TypeRetrieveMergedConfig}).(Query)
	if !ok {
		t.Fatal("expected query")
	}
	merged := q.Response.Payload.(wotconfig.Config)
	if merged.Enabled == nil || !*merged.Enabled {
		t.Fatalf("merged = %+v, want defaults", merged)
	}
}
