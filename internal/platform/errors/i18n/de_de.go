package i18n

var deDE = map[Code]string{
	"THING_NOT_FOUND":           "Das Thing mit der ID '{{.ThingID}}' wurde nicht gefunden.",
	"THING_CONFLICT":            "Das Thing mit der ID '{{.ThingID}}' existiert bereits.",
	"THING_TOO_LARGE":           "Die Größe von {{.Size}} Bytes überschreitet das Maximum von {{.Limit}} Bytes.",
	"THING_POLICY_ID_MISSING":   "Das Thing mit der ID '{{.ThingID}}' muss eine Policy-ID angeben.",
	"ATTRIBUTE_NOT_FOUND":       "Das Attribut '{{.Path}}' des Things mit der ID '{{.ThingID}}' wurde nicht gefunden.",
	"FEATURE_NOT_FOUND":         "Das Feature '{{.FeatureID}}' des Things mit der ID '{{.ThingID}}' wurde nicht gefunden.",
	"PRECONDITION_FAILED":       "Die Vorbedingung '{{.Header}}' für die angefragte Ressource ist nicht erfüllt.",
	"PRECONDITION_NOT_MODIFIED": "Die Ressource wurde nicht verändert.",
	"CONDITION_FAILED":          "Die Bedingung '{{.Condition}}' passt nicht zum Zustand des Things.",
	"VALIDATION_FAILED":         "Die Nutzdaten entsprechen nicht ihrem Modell: {{.Reason}}",
	"INTERNAL":                  "Ein interner Fehler ist aufgetreten.",
}
