// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Thing errors
	CodeThingNotFound           Code = "THING_NOT_FOUND"
	CodeThingConflict           Code = "THING_CONFLICT"
	CodeThingTooLarge           Code = "THING_TOO_LARGE"
	CodeThingPayloadInvalid     Code = "THING_PAYLOAD_INVALID"
	CodeThingIDMismatch         Code = "THING_ID_MISMATCH"
	CodePolicyIDMissing         Code = "THING_POLICY_ID_MISSING"
	CodePolicyIDNotFound        Code = "THING_POLICY_ID_NOT_FOUND"
	CodeThingDefinitionNotFound Code = "THING_DEFINITION_NOT_FOUND"
	CodeThingMergeFailed        Code = "THING_MERGE_FAILED"
	CodeResourcePathUnknown     Code = "RESOURCE_PATH_UNKNOWN"

	// Attribute errors
	CodeAttributesNotFound Code = "ATTRIBUTES_NOT_FOUND"
	CodeAttributeNotFound  Code = "ATTRIBUTE_NOT_FOUND"

	// Feature errors
	CodeFeaturesNotFound                 Code = "FEATURES_NOT_FOUND"
	CodeFeatureNotFound                  Code = "FEATURE_NOT_FOUND"
	CodeFeatureDefinitionNotFound        Code = "FEATURE_DEFINITION_NOT_FOUND"
	CodeFeaturePropertiesNotFound        Code = "FEATURE_PROPERTIES_NOT_FOUND"
	CodeFeaturePropertyNotFound          Code = "FEATURE_PROPERTY_NOT_FOUND"
	CodeFeatureDesiredPropertiesNotFound Code = "FEATURE_DESIRED_PROPERTIES_NOT_FOUND"
	CodeFeatureDesiredPropertyNotFound   Code = "FEATURE_DESIRED_PROPERTY_NOT_FOUND"

	// Precondition errors
	CodePreconditionFailed      Code = "PRECONDITION_FAILED"
	CodePreconditionNotModified Code = "PRECONDITION_NOT_MODIFIED"
	CodeConditionFailed         Code = "CONDITION_FAILED"
	CodeConditionInvalid        Code = "CONDITION_INVALID"

	// Header errors
	CodeHeaderInvalid          Code = "HEADER_INVALID"
	CodeHeaderNotSupported     Code = "HEADER_NOT_SUPPORTED"
	CodeMetadataHeaderConflict Code = "METADATA_HEADER_CONFLICT"

	// Validation errors
	CodeValidationFailed           Code = "VALIDATION_FAILED"
	CodeThingDefinitionUnresolved  Code = "THING_DEFINITION_UNRESOLVED"
	CodeMigrationPatchConditionBad Code = "MIGRATION_PATCH_CONDITION_INVALID"

	// WoT validation config errors
	CodeWotConfigNotFound        Code = "WOT_CONFIG_NOT_FOUND"
	CodeWotConfigInvalid         Code = "WOT_CONFIG_INVALID"
	CodeWotConfigSectionNotFound Code = "WOT_CONFIG_SECTION_NOT_FOUND"

	// Runtime errors
	CodeInternal    Code = "INTERNAL"
	CodeUnavailable Code = "UNAVAILABLE"
)

// Kind groups codes into the engine's error taxonomy.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindPreconditionFailed Kind = "precondition_failed"
	KindNotModified        Kind = "not_modified"
	KindConditionFailed    Kind = "condition_failed"
	KindHeaderInvalid      Kind = "header_invalid"
	KindHeaderNotSupported Kind = "header_not_supported"
	KindPayloadTooLarge    Kind = "payload_too_large"
	KindValidationFailed   Kind = "validation_failed"
	KindInvalidArgument    Kind = "invalid_argument"
	KindUnavailable        Kind = "unavailable"
	KindInternal           Kind = "internal"
)

// Kind maps a code to its taxonomy kind.
func (c Code) Kind() Kind {
	switch c {
	case CodeThingNotFound,
		CodePolicyIDNotFound,
		CodeThingDefinitionNotFound,
		CodeAttributesNotFound,
		CodeAttributeNotFound,
		CodeFeaturesNotFound,
		CodeFeatureNotFound,
		CodeFeatureDefinitionNotFound,
		CodeFeaturePropertiesNotFound,
		CodeFeaturePropertyNotFound,
		CodeFeatureDesiredPropertiesNotFound,
		CodeFeatureDesiredPropertyNotFound,
		CodeWotConfigNotFound,
		CodeWotConfigSectionNotFound:
		return KindNotFound

	case CodeThingConflict, CodeMetadataHeaderConflict:
		return KindConflict

	case CodePreconditionFailed:
		return KindPreconditionFailed
	case CodePreconditionNotModified:
		return KindNotModified
	case CodeConditionFailed:
		return KindConditionFailed
	case CodeHeaderInvalid:
		return KindHeaderInvalid
	case CodeHeaderNotSupported:
		return KindHeaderNotSupported
	case CodeThingTooLarge:
		return KindPayloadTooLarge

	case CodeValidationFailed, CodePolicyIDMissing:
		return KindValidationFailed

	case CodeThingPayloadInvalid,
		CodeThingIDMismatch,
		CodeResourcePathUnknown,
		CodeConditionInvalid,
		CodeThingDefinitionUnresolved,
		CodeMigrationPatchConditionBad,
		CodeWotConfigInvalid:
		return KindInvalidArgument

	case CodeUnavailable:
		return KindUnavailable

	default:
		return KindInternal
	}
}

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c.Kind() {
	case KindNotFound:
		return codes.NotFound
	case KindConflict:
		return codes.AlreadyExists
	case KindPreconditionFailed, KindNotModified, KindConditionFailed:
		return codes.FailedPrecondition
	case KindHeaderInvalid, KindHeaderNotSupported, KindValidationFailed, KindInvalidArgument:
		return codes.InvalidArgument
	case KindPayloadTooLarge:
		return codes.ResourceExhausted
	case KindUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// HTTPStatus maps domain codes to the status a protocol adapter should answer with.
func (c Code) HTTPStatus() int {
	switch c.Kind() {
	case KindNotFound:
		return 404
	case KindConflict:
		return 409
	case KindPreconditionFailed, KindConditionFailed:
		return 412
	case KindNotModified:
		return 304
	case KindHeaderInvalid, KindHeaderNotSupported, KindValidationFailed, KindInvalidArgument:
		return 400
	case KindPayloadTooLarge:
		return 413
	case KindUnavailable:
		return 503
	default:
		return 500
	}
}
