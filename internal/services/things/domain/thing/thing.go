// Package thing defines the digital twin entity and its JSON representation.
//
// Things are values: every mutation produces a new Thing through the data
// helpers in this package, sharing unchanged JSON branches with the previous
// value.
package thing

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/louisbranch/twinworks/internal/services/things/domain/core/jsonvalue"
	"github.com/louisbranch/twinworks/internal/services/things/domain/resource"
)

var (
	// ErrPayloadInvalid indicates JSON that does not describe a valid thing.
	ErrPayloadInvalid = errors.New("thing payload is invalid")
	// ErrIDMismatch indicates a payload thingId differing from the addressed thing.
	ErrIDMismatch = errors.New("thing id does not match")
	// ErrIDRequired indicates a missing thing id.
	ErrIDRequired = errors.New("thing id is required")
)

// Lifecycle is the lifecycle state of a thing.
type Lifecycle string

const (
	// LifecycleActive marks a live thing.
	LifecycleActive Lifecycle = "ACTIVE"
	// LifecycleDeleted marks a deleted thing kept for its revision history.
	LifecycleDeleted Lifecycle = "DELETED"
)

// Feature is one named functional unit of a thing. Nil fields are absent.
type Feature struct {
	Definition        []string
	Properties        map[string]any
	DesiredProperties map[string]any
}

// Thing is a digital twin.
type Thing struct {
	ID         string
	PolicyID   string
	Definition string
	// Attributes is nil when the thing has no attributes object.
	Attributes map[string]any
	// Features is nil when the thing has no features object.
	Features  map[string]Feature
	Revision  int64
	Lifecycle Lifecycle
	Created   time.Time
	Modified  time.Time
	// Metadata mirrors the data tree; see the metadata package.
	Metadata map[string]any
}

// Exists reports whether t refers to a live thing.
func Exists(t *Thing) bool {
	return t != nil && t.Lifecycle != LifecycleDeleted
}

// IsDeleted reports whether the thing has been deleted.
func (t Thing) IsDeleted() bool {
	return t.Lifecycle == LifecycleDeleted
}

// Data returns the JSON tree of the thing's addressable data.
func (t Thing) Data() map[string]any {
	out := map[string]any{resource.FieldThingID: t.ID}
	if t.PolicyID != "" {
		out[resource.FieldPolicyID] = t.PolicyID
	}
	if t.Definition != "" {
		out[resource.FieldDefinition] = t.Definition
	}
	if t.Attributes != nil {
		out[resource.FieldAttributes] = t.Attributes
	}
	if t.Features != nil {
		features := make(map[string]any, len(t.Features))
		for id, f := range t.Features {
			features[id] = f.Data()
		}
		out[resource.FieldFeatures] = features
	}
	return out
}

// Data returns the JSON tree of the feature.
func (f Feature) Data() map[string]any {
	out := map[string]any{}
	if f.Definition != nil {
		def := make([]any, len(f.Definition))
		for i, id := range f.Definition {
			def[i] = id
		}
		out[resource.FieldDefinition] = def
	}
	if f.Properties != nil {
		out[resource.FieldProperties] = f.Properties
	}
	if f.DesiredProperties != nil {
		out[resource.FieldDesiredProperties] = f.DesiredProperties
	}
	return out
}

// Get returns the data value addressed by p.
func (t Thing) Get(p jsonvalue.Pointer) (any, bool) {
	return jsonvalue.Get(any(t.Data()), p)
}

// WithData returns a copy of t whose data fields are rebuilt from data. The
// envelope (revision, lifecycle, timestamps, metadata) is kept.
func (t Thing) WithData(data any) (Thing, error) {
	parsed, err := FromData(t.ID, data)
	if err != nil {
		return Thing{}, err
	}
	parsed.Revision = t.Revision
	parsed.Lifecycle = t.Lifecycle
	parsed.Created = t.Created
	parsed.Modified = t.Modified
	parsed.Metadata = t.Metadata
	return parsed, nil
}

// Set returns a copy of t with value stored at p.
func (t Thing) Set(p jsonvalue.Pointer, value any) (Thing, error) {
	if p.IsRoot() {
		return t.WithData(value)
	}
	return t.WithData(jsonvalue.Set(any(t.Data()), p, value))
}

// Remove returns a copy of t without the value at p.
func (t Thing) Remove(p jsonvalue.Pointer) (Thing, error) {
	data, _ := jsonvalue.Remove(any(t.Data()), p)
	return t.WithData(data)
}

// Merge returns a copy of t with patch merged at p.
func (t Thing) Merge(p jsonvalue.Pointer, patch any) (Thing, error) {
	data := jsonvalue.MergeAt(any(t.Data()), p, patch)
	if data == nil {
		data = map[string]any{}
	}
	return t.WithData(data)
}

// FromData builds a thing from a JSON data tree. id is used when the tree
// has no thingId; a differing thingId yields ErrIDMismatch.
func FromData(id string, data any) (Thing, error) {
	obj, ok := data.(map[string]any)
	if !ok {
		return Thing{}, fmt.Errorf("%w: thing must be a JSON object", ErrPayloadInvalid)
	}
	t := Thing{ID: strings.TrimSpace(id)}
	for key, value := range obj {
		switch key {
		case resource.FieldThingID:
			s, ok := value.(string)
			if !ok {
				return Thing{}, fmt.Errorf("%w: thingId must be a string", ErrPayloadInvalid)
			}
			if t.ID != "" && s != t.ID {
				return Thing{}, fmt.Errorf("%w: %q != %q", ErrIDMismatch, s, t.ID)
			}
			t.ID = s
		case resource.FieldPolicyID:
			s, ok := value.(string)
			if !ok {
				return Thing{}, fmt.Errorf("%w: policyId must be a string", ErrPayloadInvalid)
			}
			t.PolicyID = s
		case resource.FieldDefinition:
			if value == nil {
				continue
			}
			s, ok := value.(string)
			if !ok {
				return Thing{}, fmt.Errorf("%w: definition must be a string", ErrPayloadInvalid)
			}
			t.Definition = s
		case resource.FieldAttributes:
			attrs, ok := value.(map[string]any)
			if !ok {
				return Thing{}, fmt.Errorf("%w: attributes must be an object", ErrPayloadInvalid)
			}
			t.Attributes = attrs
		case resource.FieldFeatures:
			features, err := featuresFromData(value)
			if err != nil {
				return Thing{}, err
			}
			t.Features = features
		default:
			if strings.HasPrefix(key, "_") {
				continue
			}
			return Thing{}, fmt.Errorf("%w: unknown field %q", ErrPayloadInvalid, key)
		}
	}
	if t.ID == "" {
		return Thing{}, ErrIDRequired
	}
	return t, nil
}

func featuresFromData(value any) (map[string]Feature, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: features must be an object", ErrPayloadInvalid)
	}
	out := make(map[string]Feature, len(obj))
	for id, raw := range obj {
		f, err := FeatureFromData(raw)
		if err != nil {
			return nil, fmt.Errorf("feature %q: %w", id, err)
		}
		out[id] = f
	}
	return out, nil
}

// FeatureFromData builds a feature from a JSON data tree.
func FeatureFromData(value any) (Feature, error) {
	if value == nil {
		return Feature{}, nil
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return Feature{}, fmt.Errorf("%w: feature must be an object", ErrPayloadInvalid)
	}
	var f Feature
	for key, raw := range obj {
		switch key {
		case resource.FieldDefinition:
			def, err := DefinitionFromData(raw)
			if err != nil {
				return Feature{}, err
			}
			f.Definition = def
		case resource.FieldProperties:
			props, ok := raw.(map[string]any)
			if !ok {
				return Feature{}, fmt.Errorf("%w: properties must be an object", ErrPayloadInvalid)
			}
			f.Properties = props
		case resource.FieldDesiredProperties:
			props, ok := raw.(map[string]any)
			if !ok {
				return Feature{}, fmt.Errorf("%w: desiredProperties must be an object", ErrPayloadInvalid)
			}
			f.DesiredProperties = props
		default:
			return Feature{}, fmt.Errorf("%w: unknown feature field %q", ErrPayloadInvalid, key)
		}
	}
	return f, nil
}

// DefinitionFromData parses a feature definition: a non-empty array of
// definition identifiers.
func DefinitionFromData(value any) ([]string, error) {
	items, ok := value.([]any)
	if !ok || len(items) == 0 {
		return nil, fmt.Errorf("%w: feature definition must be a non-empty array", ErrPayloadInvalid)
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("%w: feature definition entries must be strings", ErrPayloadInvalid)
		}
		out[i] = s
	}
	return out, nil
}

// FeatureIDs returns the feature ids in lexical order.
func (t Thing) FeatureIDs() []string {
	ids := make([]string, 0, len(t.Features))
	for id := range t.Features {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
