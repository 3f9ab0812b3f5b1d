package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/louisbranch/twinworks/internal/platform/telemetry/metrics"
	"github.com/louisbranch/twinworks/internal/services/things/domain/resource"
	"github.com/louisbranch/twinworks/internal/services/things/domain/thing"
	"github.com/louisbranch/twinworks/internal/services/things/domain/wot"
	"github.com/louisbranch/twinworks/internal/services/things/domain/wotconfig"
)

// ConfigSource supplies the WoT validation configuration in effect.
type ConfigSource interface {
	Effective(ctx context.Context) (wotconfig.Config, error)
}

// StaticConfig is a ConfigSource returning a fixed configuration.
type StaticConfig wotconfig.Config

// Effective implements ConfigSource.
func (s StaticConfig) Effective(context.Context) (wotconfig.Config, error) {
	return wotconfig.Config(s), nil
}

// ModelValidator checks things against the Thing Models named by their
// definitions. Only the part of the thing addressed by the request is
// checked. Unresolvable models are skipped.
type ModelValidator struct {
	models  wot.Resolver
	configs ConfigSource
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// NewModelValidator builds a ModelValidator.
func NewModelValidator(models wot.Resolver, configs ConfigSource, logger *slog.Logger, recorder *metrics.Recorder) *ModelValidator {
	if logger == nil {
		logger = slog.Default()
	}
	if configs == nil {
		configs = StaticConfig(wotconfig.Defaults())
	}
	return &ModelValidator{models: models, configs: configs, logger: logger, metrics: recorder}
}

// Validate implements Validator.
func (v *ModelValidator) Validate(ctx context.Context, req Request) error {
	preview := req.Preview
	if preview == nil || preview.IsDeleted() || v.models == nil {
		return nil
	}
	cfg, err := v.configs.Effective(ctx)
	if err != nil {
		return fmt.Errorf("load wot validation config: %w", err)
	}
	effective := cfg.Resolve(wotconfig.Subject{
		ThingDefinition:    preview.Definition,
		FeatureDefinitions: featureDefinitions(preview),
		Headers:            req.Headers,
	})
	if !effective.Enabled {
		v.metrics.ObserveValidation("skipped")
		return nil
	}

	violations, err := v.check(ctx, req, preview, effective)
	if err != nil {
		return err
	}
	if len(violations) == 0 {
		return nil
	}
	reason := wot.Summarize(violations)
	if effective.LogWarning {
		v.metrics.ObserveValidation("warned")
		v.logger.WarnContext(ctx, "thing does not match its model",
			"thing_id", req.ThingID,
			"resource_path", req.ResourcePath.String(),
			"correlation_id", req.Headers.CorrelationID(),
			"violations", reason)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalid, reason)
}

func (v *ModelValidator) check(ctx context.Context, req Request, preview *thing.Thing, effective wotconfig.Effective) ([]wot.Violation, error) {
	var thingModel *wot.Model
	if preview.Definition != "" {
		m, err := v.resolve(ctx, preview.Definition)
		if err != nil {
			return nil, err
		}
		thingModel = m
	}

	var out []wot.Violation
	path := req.ResourcePath
	checkAttributes := path.Kind == resource.KindThing || path.Kind == resource.KindAttributes ||
		path.Kind == resource.KindAttribute || path.Kind == resource.KindDefinition
	if thingModel != nil && checkAttributes {
		attrs := preview.Attributes
		if attrs == nil {
			attrs = map[string]any{}
		}
		out = append(out, wot.Check("/attributes", attrs, thingModel.Properties, thingModel.RequiredProperties(), options(effective.Thing))...)
	}

	var featureIDs []string
	switch {
	case path.FeatureID != "":
		if _, ok := preview.Features[path.FeatureID]; ok {
			featureIDs = []string{path.FeatureID}
		}
	case path.Kind == resource.KindThing || path.Kind == resource.KindFeatures || path.Kind == resource.KindDefinition:
		featureIDs = preview.FeatureIDs()
		if thingModel != nil && effective.Thing.ForbidNonModeled {
			subs := thingModel.Submodels()
			if len(subs) > 0 {
				for _, id := range featureIDs {
					if _, ok := subs[id]; !ok {
						out = append(out, wot.Violation{Path: "/features/" + id, Reason: "feature is not modeled"})
					}
				}
			}
		}
	}
	for _, id := range featureIDs {
		fv, err := v.checkFeature(ctx, thingModel, id, preview.Features[id], effective.Feature)
		if err != nil {
			return nil, err
		}
		out = append(out, fv...)
	}
	return out, nil
}

func (v *ModelValidator) checkFeature(ctx context.Context, thingModel *wot.Model, id string, f thing.Feature, level wotconfig.Level) ([]wot.Violation, error) {
	definition := ""
	if len(f.Definition) > 0 {
		definition = f.Definition[0]
	} else if thingModel != nil {
		if link, ok := thingModel.Submodels()[id]; ok {
			definition = link.Href
		}
	}
	if definition == "" {
		return nil, nil
	}
	m, err := v.resolve(ctx, definition)
	if err != nil || m == nil {
		return nil, err
	}
	prefix := "/features/" + id
	props := f.Properties
	if props == nil {
		props = map[string]any{}
	}
	out := wot.Check(prefix+"/properties", props, m.Properties, m.RequiredProperties(), options(level))
	if f.DesiredProperties != nil {
		desired := options(level)
		desired.EnforceRequired = false
		out = append(out, wot.Check(prefix+"/desiredProperties", f.DesiredProperties, m.Properties, nil, desired)...)
	}
	return out, nil
}

func (v *ModelValidator) resolve(ctx context.Context, definition string) (*wot.Model, error) {
	m, err := v.models.Resolve(ctx, definition)
	if errors.Is(err, wot.ErrModelNotFound) {
		v.logger.DebugContext(ctx, "skipping validation for unknown model", "definition", definition)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func options(level wotconfig.Level) wot.CheckOptions {
	return wot.CheckOptions{
		EnforceTypes:     level.EnforceTypes,
		EnforceRequired:  level.EnforceRequired,
		ForbidNonModeled: level.ForbidNonModeled,
	}
}

func featureDefinitions(t *thing.Thing) []string {
	var out []string
	for _, f := range t.Features {
		out = append(out, f.Definition...)
	}
	sort.Strings(out)
	return out
}
