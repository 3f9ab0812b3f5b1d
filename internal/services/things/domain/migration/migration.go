// Package migration computes the patch that moves a thing onto a new
// definition.
//
// A migration starts from the skeleton the new Thing Model prescribes,
// drops every skeleton value the thing already holds (definitions excepted),
// optionally drops property defaults, and merges the caller's migration
// payload on top. Entries of the payload may be guarded by conditions that
// are evaluated against the current thing.
package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/louisbranch/twinworks/internal/services/things/core/rql"
	"github.com/louisbranch/twinworks/internal/services/things/domain/core/jsonvalue"
	"github.com/louisbranch/twinworks/internal/services/things/domain/resource"
	"github.com/louisbranch/twinworks/internal/services/things/domain/thing"
	"github.com/louisbranch/twinworks/internal/services/things/domain/wot"
)

// Merge status values reported in migration responses.
const (
	StatusApplied = "APPLIED"
	StatusDryRun  = "DRY_RUN"
)

var (
	// ErrPayloadInvalid indicates a malformed migration payload.
	ErrPayloadInvalid = errors.New("migration payload is invalid")
	// ErrDefinitionUnresolved indicates a definition without a resolvable model.
	ErrDefinitionUnresolved = errors.New("thing definition could not be resolved")
	// ErrPatchConditionInvalid indicates a patch condition that does not compile.
	ErrPatchConditionInvalid = errors.New("patch condition is invalid")
)

// Payload is the body of a definition migration command.
type Payload struct {
	ThingDefinition                         string            `json:"thingDefinition"`
	MigrationPayload                        map[string]any    `json:"migrationPayload,omitempty"`
	PatchConditions                         map[string]string `json:"patchConditions,omitempty"`
	InitializeMissingPropertiesFromDefaults bool              `json:"initializeMissingPropertiesFromDefaults,omitempty"`
}

// ParsePayload reads a decoded JSON payload.
func ParsePayload(value any) (Payload, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return Payload{}, fmt.Errorf("%w: payload must be an object", ErrPayloadInvalid)
	}
	var p Payload
	def, ok := obj["thingDefinition"].(string)
	if !ok || strings.TrimSpace(def) == "" {
		return Payload{}, fmt.Errorf("%w: thingDefinition is required", ErrPayloadInvalid)
	}
	p.ThingDefinition = def
	if raw, present := obj["migrationPayload"]; present && raw != nil {
		mp, ok := raw.(map[string]any)
		if !ok {
			return Payload{}, fmt.Errorf("%w: migrationPayload must be an object", ErrPayloadInvalid)
		}
		p.MigrationPayload = mp
	}
	if raw, present := obj["patchConditions"]; present && raw != nil {
		conds, ok := raw.(map[string]any)
		if !ok {
			return Payload{}, fmt.Errorf("%w: patchConditions must be an object", ErrPayloadInvalid)
		}
		p.PatchConditions = make(map[string]string, len(conds))
		for k, v := range conds {
			s, ok := v.(string)
			if !ok {
				return Payload{}, fmt.Errorf("%w: patch condition for %s must be a string", ErrPayloadInvalid, k)
			}
			p.PatchConditions[k] = s
		}
	}
	if raw, present := obj["initializeMissingPropertiesFromDefaults"]; present {
		b, ok := raw.(bool)
		if !ok {
			return Payload{}, fmt.Errorf("%w: initializeMissingPropertiesFromDefaults must be a boolean", ErrPayloadInvalid)
		}
		p.InitializeMissingPropertiesFromDefaults = b
	}
	return p, nil
}

// Plan is a computed migration.
type Plan struct {
	// Patch is the merge patch applied at the thing root.
	Patch map[string]any
	// Preview is the thing after applying Patch.
	Preview thing.Thing
}

// Compute builds the migration plan of p against current.
func Compute(ctx context.Context, models wot.Resolver, current thing.Thing, p Payload) (Plan, error) {
	if models == nil {
		return Plan{}, fmt.Errorf("%w: no model resolver configured", ErrDefinitionUnresolved)
	}
	skeleton, err := wot.Skeleton(ctx, models, p.ThingDefinition)
	if err != nil {
		return Plan{}, fmt.Errorf("%w: %s: %v", ErrDefinitionUnresolved, p.ThingDefinition, err)
	}
	payload, err := FilterPayload(current, p.MigrationPayload, p.PatchConditions)
	if err != nil {
		return Plan{}, err
	}

	existing := current.Data()
	reconciled, _ := Reconcile(skeleton, existing, nil).(map[string]any)
	if !p.InitializeMissingPropertiesFromDefaults {
		reconciled = withoutDefaults(reconciled)
	}
	merged, _ := jsonvalue.MergePatch(any(reconciled), any(payload)).(map[string]any)
	if merged == nil {
		merged = map[string]any{}
	}
	merged[resource.FieldDefinition] = p.ThingDefinition

	preview, err := current.Merge(jsonvalue.Pointer{}, merged)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Patch: merged, Preview: preview}, nil
}

// FilterPayload drops the payload entries whose patch condition does not
// match current. Conditions address entries by JSON pointer.
func FilterPayload(current thing.Thing, payload map[string]any, conditions map[string]string) (map[string]any, error) {
	if len(payload) == 0 {
		return map[string]any{}, nil
	}
	out := any(jsonvalue.Clone(payload))
	if len(conditions) == 0 {
		obj, _ := out.(map[string]any)
		return obj, nil
	}
	doc, err := json.Marshal(current.Document(false))
	if err != nil {
		return nil, err
	}
	pointers := make([]string, 0, len(conditions))
	for p := range conditions {
		pointers = append(pointers, p)
	}
	sort.Strings(pointers)
	for _, raw := range pointers {
		ptr, err := jsonvalue.ParsePointer(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrPatchConditionInvalid, raw, err)
		}
		predicate, err := rql.Parse(conditions[raw])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrPatchConditionInvalid, raw, err)
		}
		if !predicate.Matches(doc) {
			out, _ = jsonvalue.Remove(out, ptr)
		}
	}
	obj, _ := out.(map[string]any)
	if obj == nil {
		obj = map[string]any{}
	}
	return obj, nil
}

// Reconcile removes from skeleton every value existing already holds.
// Definition members of the thing and its features always keep the
// skeleton value. at is the location of skeleton within the thing.
func Reconcile(skeleton, existing any, at jsonvalue.Pointer) any {
	skelObj, ok := skeleton.(map[string]any)
	if !ok {
		return skeleton
	}
	existObj, _ := existing.(map[string]any)
	out := make(map[string]any, len(skelObj))
	for k, v := range skelObj {
		child := at.Append(k)
		if isDefinition(child) {
			out[k] = v
			continue
		}
		current, present := existObj[k]
		switch {
		case !present:
			out[k] = v
		case jsonvalue.IsObject(v) && jsonvalue.IsObject(current):
			if nested, _ := Reconcile(v, current, child).(map[string]any); len(nested) > 0 {
				out[k] = nested
			}
		}
	}
	return out
}

func isDefinition(p jsonvalue.Pointer) bool {
	path, ok := resource.Classify(p)
	return ok && (path.Kind == resource.KindDefinition || path.Kind == resource.KindFeatureDefinition)
}

// withoutDefaults keeps only the structure and definitions of a skeleton.
func withoutDefaults(skeleton map[string]any) map[string]any {
	out := make(map[string]any, len(skeleton))
	for k, v := range skeleton {
		switch k {
		case resource.FieldAttributes:
			continue
		case resource.FieldFeatures:
			features, _ := v.(map[string]any)
			stripped := make(map[string]any, len(features))
			for id, f := range features {
				obj, _ := f.(map[string]any)
				kept := map[string]any{}
				if def, ok := obj[resource.FieldDefinition]; ok {
					kept[resource.FieldDefinition] = def
				}
				stripped[id] = kept
			}
			out[k] = stripped
		default:
			out[k] = v
		}
	}
	return out
}
