package strategy

import (
	"errors"
	"fmt"

	apperrors "github.com/louisbranch/twinworks/internal/platform/errors"
	"github.com/louisbranch/twinworks/internal/services/things/domain/command"
	"github.com/louisbranch/twinworks/internal/services/things/domain/metadata"
	"github.com/louisbranch/twinworks/internal/services/things/domain/migration"
	"github.com/louisbranch/twinworks/internal/services/things/domain/resource"
	"github.com/louisbranch/twinworks/internal/services/things/domain/thing"
)

var notFoundCodes = map[resource.Kind]apperrors.Code{
	resource.KindThing:                    apperrors.CodeThingNotFound,
	resource.KindPolicyID:                 apperrors.CodePolicyIDNotFound,
	resource.KindDefinition:               apperrors.CodeThingDefinitionNotFound,
	resource.KindAttributes:               apperrors.CodeAttributesNotFound,
	resource.KindAttribute:                apperrors.CodeAttributeNotFound,
	resource.KindFeatures:                 apperrors.CodeFeaturesNotFound,
	resource.KindFeature:                  apperrors.CodeFeatureNotFound,
	resource.KindFeatureDefinition:        apperrors.CodeFeatureDefinitionNotFound,
	resource.KindFeatureProperties:        apperrors.CodeFeaturePropertiesNotFound,
	resource.KindFeatureProperty:          apperrors.CodeFeaturePropertyNotFound,
	resource.KindFeatureDesiredProperties: apperrors.CodeFeatureDesiredPropertiesNotFound,
	resource.KindFeatureDesiredProperty:   apperrors.CodeFeatureDesiredPropertyNotFound,
}

// errorMetadata returns the templating metadata of errors about cmd.
func errorMetadata(cmd command.Command, extra map[string]string) map[string]string {
	out := map[string]string{"ThingID": cmd.ThingID}
	if path, ok := cmd.Resource(); ok {
		out["Path"] = path.String()
		if sub := path.Sub(); sub != nil {
			out["Path"] = sub.String()
		}
		if path.FeatureID != "" {
			out["FeatureID"] = path.FeatureID
		}
	}
	if id := cmd.Headers.CorrelationID(); id != "" {
		out[apperrors.MetadataCorrelationID] = id
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func notFound(cmd command.Command, path resource.Path) *apperrors.Error {
	code, ok := notFoundCodes[path.Kind]
	if !ok {
		code = apperrors.CodeResourcePathUnknown
	}
	meta := errorMetadata(cmd, nil)
	if path.FeatureID != "" {
		meta["FeatureID"] = path.FeatureID
	}
	return apperrors.WithMetadata(code,
		fmt.Sprintf("%s %s of thing %s not found", path.Kind, path, cmd.ThingID), meta)
}

func thingNotFound(cmd command.Command) *apperrors.Error {
	return notFound(cmd, resource.Path{Kind: resource.KindThing})
}

func conflict(cmd command.Command) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.CodeThingConflict,
		fmt.Sprintf("thing %s already exists", cmd.ThingID), errorMetadata(cmd, nil))
}

func policyIDMissing(cmd command.Command) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.CodePolicyIDMissing,
		fmt.Sprintf("thing %s has no policy id", cmd.ThingID), errorMetadata(cmd, nil))
}

func headerNotSupported(cmd command.Command, header string) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.CodeHeaderNotSupported,
		fmt.Sprintf("header %s is not supported by %s", header, cmd.Type),
		errorMetadata(cmd, map[string]string{"Header": header}))
}

func headerInvalid(cmd command.Command, header string, cause error) *apperrors.Error {
	return apperrors.WrapWithMetadata(apperrors.CodeHeaderInvalid,
		fmt.Sprintf("header %s is invalid", header),
		errorMetadata(cmd, map[string]string{"Header": header}), cause)
}

// translate maps the narrow errors of the domain packages onto domain
// errors. Errors that already are domain errors pass through.
func translate(cmd command.Command, header string, err error) error {
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		return domainErr
	}
	switch {
	case errors.Is(err, metadata.ErrDirectiveConflict):
		return apperrors.WrapWithMetadata(apperrors.CodeMetadataHeaderConflict,
			"metadata headers conflict", errorMetadata(cmd, nil), err)
	case errors.Is(err, metadata.ErrWildcardNotSupported):
		return apperrors.WrapWithMetadata(apperrors.CodeHeaderNotSupported,
			err.Error(), errorMetadata(cmd, map[string]string{"Header": header}), err)
	case errors.Is(err, metadata.ErrWildcardInvalid), errors.Is(err, metadata.ErrHeaderMalformed):
		return headerInvalid(cmd, header, err)
	case errors.Is(err, thing.ErrIDMismatch):
		return apperrors.WrapWithMetadata(apperrors.CodeThingIDMismatch,
			err.Error(), errorMetadata(cmd, nil), err)
	case errors.Is(err, thing.ErrPayloadInvalid), errors.Is(err, migration.ErrPayloadInvalid):
		return apperrors.WrapWithMetadata(apperrors.CodeThingPayloadInvalid,
			err.Error(), errorMetadata(cmd, map[string]string{"Reason": err.Error()}), err)
	case errors.Is(err, migration.ErrDefinitionUnresolved):
		return apperrors.WrapWithMetadata(apperrors.CodeThingDefinitionUnresolved,
			err.Error(), errorMetadata(cmd, nil), err)
	case errors.Is(err, migration.ErrPatchConditionInvalid):
		return apperrors.WrapWithMetadata(apperrors.CodeMigrationPatchConditionBad,
			err.Error(), errorMetadata(cmd, nil), err)
	}
	return apperrors.Wrap(apperrors.CodeInternal, err.Error(), err)
}
