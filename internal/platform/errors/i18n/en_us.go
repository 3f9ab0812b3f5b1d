package i18n

// Keys must match the codes defined in internal/platform/errors/codes.go.
var enUS = map[Code]string{
	"THING_NOT_FOUND":                      "The Thing with ID '{{.ThingID}}' could not be found.",
	"THING_CONFLICT":                       "The Thing with ID '{{.ThingID}}' already exists.",
	"THING_TOO_LARGE":                      "The size of {{.Size}} bytes exceeds the maximum allowed size of {{.Limit}} bytes.",
	"THING_PAYLOAD_INVALID":                "The provided payload is invalid: {{.Reason}}",
	"THING_ID_MISMATCH":                    "The Thing ID in the payload does not match the addressed Thing '{{.ThingID}}'.",
	"THING_POLICY_ID_MISSING":              "The Thing with ID '{{.ThingID}}' must declare a policy ID.",
	"THING_POLICY_ID_NOT_FOUND":            "The policy ID of the Thing with ID '{{.ThingID}}' could not be found.",
	"THING_DEFINITION_NOT_FOUND":           "The definition of the Thing with ID '{{.ThingID}}' could not be found.",
	"THING_MERGE_FAILED":                   "The merge patch could not be applied to the Thing with ID '{{.ThingID}}'.",
	"RESOURCE_PATH_UNKNOWN":                "The resource path '{{.Path}}' is unknown.",
	"ATTRIBUTES_NOT_FOUND":                 "The attributes of the Thing with ID '{{.ThingID}}' could not be found.",
	"ATTRIBUTE_NOT_FOUND":                  "The attribute '{{.Path}}' of the Thing with ID '{{.ThingID}}' could not be found.",
	"FEATURES_NOT_FOUND":                   "The features of the Thing with ID '{{.ThingID}}' could not be found.",
	"FEATURE_NOT_FOUND":                    "The feature '{{.FeatureID}}' of the Thing with ID '{{.ThingID}}' could not be found.",
	"FEATURE_DEFINITION_NOT_FOUND":         "The definition of the feature '{{.FeatureID}}' could not be found.",
	"FEATURE_PROPERTIES_NOT_FOUND":         "The properties of the feature '{{.FeatureID}}' could not be found.",
	"FEATURE_PROPERTY_NOT_FOUND":           "The property '{{.Path}}' of the feature '{{.FeatureID}}' could not be found.",
	"FEATURE_DESIRED_PROPERTIES_NOT_FOUND": "The desired properties of the feature '{{.FeatureID}}' could not be found.",
	"FEATURE_DESIRED_PROPERTY_NOT_FOUND":   "The desired property '{{.Path}}' of the feature '{{.FeatureID}}' could not be found.",
	"PRECONDITION_FAILED":                  "The comparison of precondition header '{{.Header}}' for the requested resource evaluated to false.",
	"PRECONDITION_NOT_MODIFIED":            "The resource was not modified.",
	"CONDITION_FAILED":                     "The specified condition '{{.Condition}}' does not match the state of the requested Thing.",
	"CONDITION_INVALID":                    "The specified condition '{{.Condition}}' is invalid.",
	"HEADER_INVALID":                       "The value of the header '{{.Header}}' is not valid.",
	"HEADER_NOT_SUPPORTED":                 "The header '{{.Header}}' is not supported for this command.",
	"METADATA_HEADER_CONFLICT":             "Only one of the headers put-metadata, get-metadata or delete-metadata may be set.",
	"VALIDATION_FAILED":                    "The payload could not be validated against its model: {{.Reason}}",
	"THING_DEFINITION_UNRESOLVED":          "The definition '{{.Definition}}' could not be resolved.",
	"MIGRATION_PATCH_CONDITION_INVALID":    "The patch condition for '{{.Path}}' is invalid.",
	"WOT_CONFIG_NOT_FOUND":                 "The WoT validation config '{{.ConfigID}}' could not be found.",
	"WOT_CONFIG_INVALID":                   "The WoT validation config is invalid: {{.Reason}}",
	"WOT_CONFIG_SECTION_NOT_FOUND":         "The dynamic config section '{{.ScopeID}}' could not be found.",
	"INTERNAL":                             "An internal error occurred.",
	"UNAVAILABLE":                          "The service did not answer in time.",
}
