// Package resource classifies the addressable sub-resources of a thing.
package resource

import (
	"fmt"

	"github.com/louisbranch/twinworks/internal/services/things/domain/core/jsonvalue"
)

// Kind identifies an addressable level of a thing.
type Kind string

const (
	KindThing                    Kind = "thing"
	KindPolicyID                 Kind = "policyId"
	KindDefinition               Kind = "definition"
	KindAttributes               Kind = "attributes"
	KindAttribute                Kind = "attribute"
	KindFeatures                 Kind = "features"
	KindFeature                  Kind = "feature"
	KindFeatureDefinition        Kind = "featureDefinition"
	KindFeatureProperties        Kind = "featureProperties"
	KindFeatureProperty          Kind = "featureProperty"
	KindFeatureDesiredProperties Kind = "featureDesiredProperties"
	KindFeatureDesiredProperty   Kind = "featureDesiredProperty"
)

// Member names of the thing JSON document.
const (
	FieldThingID           = "thingId"
	FieldPolicyID          = "policyId"
	FieldDefinition        = "definition"
	FieldAttributes        = "attributes"
	FieldFeatures          = "features"
	FieldProperties        = "properties"
	FieldDesiredProperties = "desiredProperties"
)

// Path is a classified resource path.
type Path struct {
	Kind      Kind
	FeatureID string
	// Pointer is the full path from the thing root.
	Pointer jsonvalue.Pointer
}

// String returns the pointer form of the path.
func (p Path) String() string {
	return p.Pointer.String()
}

// IsLeaf reports whether the path addresses a single value that cannot hold
// nested resources of its own kind.
func (p Path) IsLeaf() bool {
	switch p.Kind {
	case KindPolicyID, KindDefinition, KindFeatureDefinition, KindAttribute, KindFeatureProperty, KindFeatureDesiredProperty:
		return true
	}
	return false
}

// Sub returns the attribute or property pointer of single-value kinds and
// nil for every other kind.
func (p Path) Sub() jsonvalue.Pointer {
	switch p.Kind {
	case KindAttribute:
		return p.Pointer[1:]
	case KindFeatureProperty, KindFeatureDesiredProperty:
		return p.Pointer[3:]
	}
	return nil
}

// Classify maps a pointer onto the resource it addresses. ok is false for
// pointers that do not address a known resource.
func Classify(p jsonvalue.Pointer) (Path, bool) {
	path := Path{Pointer: append(jsonvalue.Pointer{}, p...)}
	switch {
	case len(p) == 0:
		path.Kind = KindThing
	case p[0] == FieldPolicyID && len(p) == 1:
		path.Kind = KindPolicyID
	case p[0] == FieldDefinition && len(p) == 1:
		path.Kind = KindDefinition
	case p[0] == FieldAttributes && len(p) == 1:
		path.Kind = KindAttributes
	case p[0] == FieldAttributes:
		path.Kind = KindAttribute
	case p[0] == FieldFeatures && len(p) == 1:
		path.Kind = KindFeatures
	case p[0] == FieldFeatures:
		path.FeatureID = p[1]
		switch {
		case len(p) == 2:
			path.Kind = KindFeature
		case p[2] == FieldDefinition && len(p) == 3:
			path.Kind = KindFeatureDefinition
		case p[2] == FieldProperties && len(p) == 3:
			path.Kind = KindFeatureProperties
		case p[2] == FieldProperties:
			path.Kind = KindFeatureProperty
		case p[2] == FieldDesiredProperties && len(p) == 3:
			path.Kind = KindFeatureDesiredProperties
		case p[2] == FieldDesiredProperties:
			path.Kind = KindFeatureDesiredProperty
		default:
			return Path{}, false
		}
	default:
		return Path{}, false
	}
	return path, true
}

// For builds the path of kind. featureID is required for feature levels and
// sub is required for single attributes and properties.
func For(kind Kind, featureID string, sub jsonvalue.Pointer) (Path, error) {
	var p jsonvalue.Pointer
	switch kind {
	case KindThing:
		p = jsonvalue.Pointer{}
	case KindPolicyID:
		p = jsonvalue.Pointer{FieldPolicyID}
	case KindDefinition:
		p = jsonvalue.Pointer{FieldDefinition}
	case KindAttributes:
		p = jsonvalue.Pointer{FieldAttributes}
	case KindAttribute:
		p = jsonvalue.Pointer{FieldAttributes}.Concat(sub)
	case KindFeatures:
		p = jsonvalue.Pointer{FieldFeatures}
	case KindFeature:
		p = jsonvalue.Pointer{FieldFeatures, featureID}
	case KindFeatureDefinition:
		p = jsonvalue.Pointer{FieldFeatures, featureID, FieldDefinition}
	case KindFeatureProperties:
		p = jsonvalue.Pointer{FieldFeatures, featureID, FieldProperties}
	case KindFeatureProperty:
		p = jsonvalue.Pointer{FieldFeatures, featureID, FieldProperties}.Concat(sub)
	case KindFeatureDesiredProperties:
		p = jsonvalue.Pointer{FieldFeatures, featureID, FieldDesiredProperties}
	case KindFeatureDesiredProperty:
		p = jsonvalue.Pointer{FieldFeatures, featureID, FieldDesiredProperties}.Concat(sub)
	default:
		return Path{}, fmt.Errorf("unknown resource kind %q", kind)
	}
	path, ok := Classify(p)
	if path.Kind != KindFeatures && len(p) > 1 && p[0] == FieldFeatures && featureID == "" {
		return Path{}, fmt.Errorf("feature id is required for resource %s", kind)
	}
	if !ok || path.Kind != kind {
		return Path{}, fmt.Errorf("invalid path %s for resource %s", p, kind)
	}
	return path, nil
}
