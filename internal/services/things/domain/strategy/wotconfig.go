package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/louisbranch/twinworks/internal/platform/async"
	apperrors "github.com/louisbranch/twinworks/internal/platform/errors"
	"github.com/louisbranch/twinworks/internal/services/things/domain/command"
	"github.com/louisbranch/twinworks/internal/services/things/domain/core/jsonvalue"
	"github.com/louisbranch/twinworks/internal/services/things/domain/entitytag"
	"github.com/louisbranch/twinworks/internal/services/things/domain/event"
	"github.com/louisbranch/twinworks/internal/services/things/domain/wotconfig"
)

// ConfigCommandType identifies a WoT validation config command.
type ConfigCommandType string

const (
	TypeCreateConfig          ConfigCommandType = "wot-validation-config.commands:createWotValidationConfig"
	TypeModifyConfig          ConfigCommandType = "wot-validation-config.commands:modifyWotValidationConfig"
	TypeDeleteConfig          ConfigCommandType = "wot-validation-config.commands:deleteWotValidationConfig"
	TypeRetrieveConfig        ConfigCommandType = "wot-validation-config.commands:retrieveWotValidationConfig"
	TypeMergeConfigSection    ConfigCommandType = "wot-validation-config.commands:mergeDynamicConfigSection"
	TypeDeleteConfigSection   ConfigCommandType = "wot-validation-config.commands:deleteDynamicConfigSection"
	TypeRetrieveConfigSection ConfigCommandType = "wot-validation-config.commands:retrieveDynamicConfigSection"
	TypeRetrieveMergedConfig  ConfigCommandType = "wot-validation-config.commands:retrieveMergedWotValidationConfig"
)

// ConfigCommandPrefix starts every config command type.
const ConfigCommandPrefix = "wot-validation-config.commands:"

const configEventPrefix = "wot-validation-config.events:"

// Event types emitted by config strategies. They are written to the
// replicated store, not to the thing journal.
const (
	ConfigCreated        event.Type = configEventPrefix + "wotValidationConfigCreated"
	ConfigModified       event.Type = configEventPrefix + "wotValidationConfigModified"
	ConfigDeleted        event.Type = configEventPrefix + "wotValidationConfigDeleted"
	ConfigSectionMerged  event.Type = configEventPrefix + "dynamicConfigSectionMerged"
	ConfigSectionDeleted event.Type = configEventPrefix + "dynamicConfigSectionDeleted"
)

// ConfigCommand is a command against the WoT validation config.
type ConfigCommand struct {
	Type     ConfigCommandType
	ConfigID string
	// ScopeID addresses a dynamic section for section commands.
	ScopeID string
	Value   any
	Headers command.Headers
}

// ConfigDispatcher dispatches WoT validation config commands.
type ConfigDispatcher = Dispatcher[*wotconfig.Config, ConfigCommand]

type configApply func(ctx context.Context, sc Context, current *wotconfig.Config, cmd ConfigCommand) (Result, error)

// configStrategy answers one config command type.
type configStrategy struct {
	cmdType  ConfigCommandType
	mutates  bool
	existing bool
	apply    configApply
}

func (s *configStrategy) IsDefined(_ Context, current *wotconfig.Config, _ ConfigCommand) bool {
	return !s.existing || current != nil
}

func (s *configStrategy) Unhandled(_ Context, _ *wotconfig.Config, cmd ConfigCommand) Result {
	return Fail(cmd.Headers, configNotFound(cmd))
}

func (s *configStrategy) Apply(ctx context.Context, sc Context, current *wotconfig.Config, cmd ConfigCommand) *async.Task[Result] {
	if err := checkConfigTag(cmd, s.mutates, current); err != nil {
		return async.Completed[Result](Fail(cmd.Headers, err))
	}
	res, err := s.apply(ctx, sc, current, cmd)
	if err != nil {
		return async.Completed[Result](Fail(cmd.Headers, err))
	}
	return async.Completed(res)
}

// NewConfigDispatcher returns a dispatcher holding every config strategy.
// static is the fallback merged under the replicated document by
// RetrieveMergedConfig.
func NewConfigDispatcher(static wotconfig.Config) (*ConfigDispatcher, error) {
	d := NewDispatcher[*wotconfig.Config, ConfigCommand](func(cmd ConfigCommand) string {
		return string(cmd.Type)
	})
	strategies := []*configStrategy{
		{cmdType: TypeCreateConfig, mutates: true, apply: applyReplaceConfig},
		{cmdType: TypeModifyConfig, mutates: true, existing: true, apply: applyReplaceConfig},
		{cmdType: TypeDeleteConfig, mutates: true, existing: true, apply: applyDeleteConfig},
		{cmdType: TypeRetrieveConfig, existing: true, apply: applyRetrieveConfig},
		{cmdType: TypeMergeConfigSection, mutates: true, apply: applyMergeSection},
		{cmdType: TypeDeleteConfigSection, mutates: true, existing: true, apply: applyDeleteSection},
		{cmdType: TypeRetrieveConfigSection, existing: true, apply: applyRetrieveSection},
		{cmdType: TypeRetrieveMergedConfig, apply: func(_ context.Context, _ Context, current *wotconfig.Config, cmd ConfigCommand) (Result, error) {
			merged := wotconfig.Merge(static, current)
			return configQuery(cmd, current, merged), nil
		}},
	}
	for _, s := range strategies {
		if err := d.Register(string(s.cmdType), s); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func applyReplaceConfig(_ context.Context, sc Context, current *wotconfig.Config, cmd ConfigCommand) (Result, error) {
	next, err := decodeConfig(cmd, cmd.Value)
	if err != nil {
		return nil, err
	}
	if next.ConfigID == "" || next.ConfigID == wotconfig.DefaultConfigID {
		next.ConfigID = configID(cmd)
	}
	evtType, status := ConfigModified, StatusModified
	if current == nil {
		evtType, status = ConfigCreated, StatusCreated
	}
	stamp(sc, current, &next)
	return configMutation(cmd, evtType, jsonvalue.Pointer{}, next, status, current == nil, false), nil
}

func applyDeleteConfig(_ context.Context, sc Context, current *wotconfig.Config, cmd ConfigCommand) (Result, error) {
	next := *current
	stamp(sc, current, &next)
	return configMutation(cmd, ConfigDeleted, jsonvalue.Pointer{}, next, StatusDeleted, false, true), nil
}

func applyRetrieveConfig(_ context.Context, _ Context, current *wotconfig.Config, cmd ConfigCommand) (Result, error) {
	return configQuery(cmd, current, *current), nil
}

func applyMergeSection(_ context.Context, sc Context, current *wotconfig.Config, cmd ConfigCommand) (Result, error) {
	var section wotconfig.DynamicSection
	if err := decodeInto(cmd.Value, &section); err != nil {
		return nil, configInvalid(cmd, err)
	}
	if section.ScopeID == "" {
		section.ScopeID = cmd.ScopeID
	}
	if cmd.ScopeID != "" && section.ScopeID != cmd.ScopeID {
		return nil, configInvalid(cmd, fmt.Errorf("scope id %q does not match addressed scope %q", section.ScopeID, cmd.ScopeID))
	}
	if err := section.Validate(); err != nil {
		return nil, configInvalid(cmd, err)
	}
	base := wotconfig.Config{ConfigID: configID(cmd)}
	if current != nil {
		base = *current
	}
	_, existed := base.Section(section.ScopeID)
	next := base.WithSection(section)
	stamp(sc, current, &next)
	status := StatusModified
	if !existed {
		status = StatusCreated
	}
	return configMutation(cmd, ConfigSectionMerged, sectionPath(section.ScopeID), next, status, current == nil, false), nil
}

func applyDeleteSection(_ context.Context, sc Context, current *wotconfig.Config, cmd ConfigCommand) (Result, error) {
	next, found := current.WithoutSection(cmd.ScopeID)
	if !found {
		return nil, sectionNotFound(cmd)
	}
	stamp(sc, current, &next)
	return configMutation(cmd, ConfigSectionDeleted, sectionPath(cmd.ScopeID), next, StatusDeleted, false, false), nil
}

func applyRetrieveSection(_ context.Context, _ Context, current *wotconfig.Config, cmd ConfigCommand) (Result, error) {
	section, ok := current.Section(cmd.ScopeID)
	if !ok {
		return nil, sectionNotFound(cmd)
	}
	return configQuery(cmd, current, section), nil
}

// stamp advances the revision and timestamps of next.
func stamp(sc Context, current *wotconfig.Config, next *wotconfig.Config) {
	now := sc.now()
	next.Revision = sc.NextRevision
	next.Modified = &now
	switch {
	case current != nil && current.Created != nil:
		created := *current.Created
		next.Created = &created
	default:
		next.Created = &now
	}
}

func configMutation(cmd ConfigCommand, evtType event.Type, path jsonvalue.Pointer, next wotconfig.Config, status Status, created, deleted bool) Mutation {
	var payload any
	if status == StatusCreated {
		payload = next
	}
	return Mutation{
		Event: event.Event{
			Type:         evtType,
			ThingID:      next.ConfigID,
			Revision:     next.Revision,
			Timestamp:    *next.Modified,
			ResourcePath: path,
			Value:        next,
			Headers:      eventHeaders(cmd.Headers),
		},
		Response: Response{
			CommandType: command.Type(cmd.Type),
			EntityID:    next.ConfigID,
			Path:        path,
			Status:      status,
			Payload:     payload,
			Headers:     configHeaders(cmd, next.Revision),
		},
		BecomeCreated: created,
		BecomeDeleted: deleted,
	}
}

func configQuery(cmd ConfigCommand, current *wotconfig.Config, payload any) Query {
	var revision int64
	if current != nil {
		revision = current.Revision
	}
	path := jsonvalue.Pointer{}
	if cmd.ScopeID != "" {
		path = sectionPath(cmd.ScopeID)
	}
	return Query{Response: Response{
		CommandType: command.Type(cmd.Type),
		EntityID:    configID(cmd),
		Path:        path,
		Status:      StatusOK,
		Payload:     payload,
		Headers:     configHeaders(cmd, revision),
	}}
}

func configHeaders(cmd ConfigCommand, revision int64) command.Headers {
	out := command.Headers{}
	if id := cmd.Headers.CorrelationID(); id != "" {
		out[command.HeaderCorrelationID] = id
	}
	out[command.HeaderETag] = entitytag.Revision(revision).String()
	out[command.HeaderEntityRevision] = strconv.FormatInt(revision, 10)
	return out
}

// checkConfigTag applies If-Match and If-None-Match against the revision tag
// of the config document.
func checkConfigTag(cmd ConfigCommand, mutates bool, current *wotconfig.Config) error {
	var tag *entitytag.Tag
	if current != nil {
		t := entitytag.Revision(current.Revision)
		tag = &t
	}
	if raw := cmd.Headers.Get(command.HeaderIfMatch); raw != "" {
		m, err := entitytag.ParseMatchers(raw)
		if err != nil {
			return configHeaderInvalid(cmd, command.HeaderIfMatch, err)
		}
		if !m.MatchStrong(tag) {
			return configPrecondition(cmd, apperrors.CodePreconditionFailed, command.HeaderIfMatch)
		}
	}
	if raw := cmd.Headers.Get(command.HeaderIfNoneMatch); raw != "" {
		m, err := entitytag.ParseMatchers(raw)
		if err != nil {
			return configHeaderInvalid(cmd, command.HeaderIfNoneMatch, err)
		}
		if m.MatchWeak(tag) {
			code := apperrors.CodePreconditionFailed
			if !mutates {
				code = apperrors.CodePreconditionNotModified
			}
			return configPrecondition(cmd, code, command.HeaderIfNoneMatch)
		}
	}
	return nil
}

func decodeConfig(cmd ConfigCommand, value any) (wotconfig.Config, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return wotconfig.Config{}, configInvalid(cmd, err)
	}
	c, err := wotconfig.Decode(data)
	if err != nil {
		return wotconfig.Config{}, configInvalid(cmd, err)
	}
	return c, nil
}

func decodeInto(value any, dst any) error {
	if !jsonvalue.IsObject(value) {
		return errors.New("payload must be a JSON object")
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func configID(cmd ConfigCommand) string {
	if cmd.ConfigID == "" {
		return wotconfig.DefaultConfigID
	}
	return cmd.ConfigID
}

func sectionPath(scopeID string) jsonvalue.Pointer {
	return jsonvalue.Pointer{"dynamicConfig", scopeID}
}

func configMetadata(cmd ConfigCommand, extra map[string]string) map[string]string {
	out := map[string]string{"ConfigID": configID(cmd)}
	if cmd.ScopeID != "" {
		out["ScopeID"] = cmd.ScopeID
	}
	if id := cmd.Headers.CorrelationID(); id != "" {
		out[apperrors.MetadataCorrelationID] = id
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func configNotFound(cmd ConfigCommand) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.CodeWotConfigNotFound,
		fmt.Sprintf("wot validation config %s not found", configID(cmd)), configMetadata(cmd, nil))
}

func sectionNotFound(cmd ConfigCommand) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.CodeWotConfigSectionNotFound,
		fmt.Sprintf("dynamic config section %s not found", cmd.ScopeID), configMetadata(cmd, nil))
}

func configInvalid(cmd ConfigCommand, cause error) *apperrors.Error {
	return apperrors.WrapWithMetadata(apperrors.CodeWotConfigInvalid, cause.Error(),
		configMetadata(cmd, map[string]string{"Reason": cause.Error()}), cause)
}

func configHeaderInvalid(cmd ConfigCommand, header string, cause error) *apperrors.Error {
	return apperrors.WrapWithMetadata(apperrors.CodeHeaderInvalid, fmt.Sprintf("header %s is invalid", header),
		configMetadata(cmd, map[string]string{"Header": header}), cause)
}

func configPrecondition(cmd ConfigCommand, code apperrors.Code, header string) *apperrors.Error {
	return apperrors.WithMetadata(code, fmt.Sprintf("precondition %s on wot validation config", header),
		configMetadata(cmd, map[string]string{"Header": header}))
}
