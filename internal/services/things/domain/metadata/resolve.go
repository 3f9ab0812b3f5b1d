package metadata

import (
	"fmt"
	"sort"

	"github.com/louisbranch/twinworks/internal/services/things/domain/core/jsonvalue"
	"github.com/louisbranch/twinworks/internal/services/things/domain/resource"
)

// expander resolves a directive key against the resource value.
type expander func(value any) []jsonvalue.Pointer

// Validate checks that every key is legal at the level of kind.
func Validate(kind resource.Kind, keys []jsonvalue.Pointer) error {
	for _, key := range keys {
		if _, err := compile(kind, key); err != nil {
			return err
		}
	}
	return nil
}

// Expand resolves key against value, the data of the command resource after
// the command. The result holds concrete keys relative to the resource.
func Expand(kind resource.Kind, key jsonvalue.Pointer, value any) ([]jsonvalue.Pointer, error) {
	exp, err := compile(kind, key)
	if err != nil {
		return nil, err
	}
	return exp(value), nil
}

// ApplyPut writes entries into meta below resourcePath. value is the data
// of the resource after the command. Entries are applied in order so later
// entries win on the same leaf. A literal key whose data does not exist in
// value is dropped; wildcard keys only expand over existing data.
func ApplyPut(meta any, path resource.Path, entries []Entry, value any) (any, error) {
	for _, e := range entries {
		keys, err := Expand(path.Kind, e.Key, value)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			if !hasWildcard(e.Key) && !hasData(value, key) {
				continue
			}
			meta = jsonvalue.Set(meta, path.Pointer.Concat(key), jsonvalue.Clone(e.Value))
		}
	}
	return meta, nil
}

// hasData reports whether the data a metadata key annotates exists. The
// last segment of key names the metadata field.
func hasData(value any, key jsonvalue.Pointer) bool {
	if value == nil {
		return false
	}
	_, ok := jsonvalue.Get(value, key[:len(key)-1])
	return ok
}

// ApplyDelete removes the metadata addressed by keys below resourcePath.
func ApplyDelete(meta any, path resource.Path, keys []jsonvalue.Pointer, value any) (any, error) {
	for _, k := range keys {
		expanded, err := Expand(path.Kind, k, value)
		if err != nil {
			return nil, err
		}
		for _, key := range expanded {
			meta, _ = jsonvalue.Remove(meta, path.Pointer.Concat(key))
		}
	}
	return meta, nil
}

// Select returns the metadata addressed by keys below resourcePath, keyed
// by the concrete key relative to the resource.
func Select(meta any, path resource.Path, keys []jsonvalue.Pointer, value any) (map[string]any, error) {
	out := map[string]any{}
	for _, k := range keys {
		expanded, err := Expand(path.Kind, k, value)
		if err != nil {
			return nil, err
		}
		for _, key := range expanded {
			if v, ok := jsonvalue.Get(meta, path.Pointer.Concat(key)); ok {
				out[key.String()] = v
			}
		}
	}
	return out, nil
}

// Prune drops metadata whose data disappeared between oldData and newData.
// Keys that exist in neither tree are metadata fields and are kept.
func Prune(meta, oldData, newData any) any {
	metaObj, ok := meta.(map[string]any)
	if !ok {
		return meta
	}
	oldObj, _ := oldData.(map[string]any)
	newObj, _ := newData.(map[string]any)
	out := make(map[string]any, len(metaObj))
	for k, child := range metaObj {
		_, inOld := oldObj[k]
		newChild, inNew := newObj[k]
		switch {
		case inNew:
			out[k] = Prune(child, oldObj[k], newChild)
		case inOld:
		default:
			out[k] = child
		}
	}
	return out
}

// Subtree returns the metadata at p, or nil.
func Subtree(meta any, p jsonvalue.Pointer) any {
	v, _ := jsonvalue.Get(meta, p)
	return v
}

func compile(kind resource.Kind, key jsonvalue.Pointer) (expander, error) {
	if !hasWildcard(key) {
		literal := append(jsonvalue.Pointer{}, key...)
		return func(any) []jsonvalue.Pointer { return []jsonvalue.Pointer{literal} }, nil
	}
	switch kind {
	case resource.KindThing:
		return compileRoot(key)
	case resource.KindFeatures:
		return compileFeatures(key)
	case resource.KindFeature:
		return compileFeature(key)
	case resource.KindAttributes, resource.KindFeatureProperties, resource.KindFeatureDesiredProperties:
		if exp, ok := leafWildcard(key); ok {
			return exp, nil
		}
	default:
		return nil, fmt.Errorf("%w: %s on %s", ErrWildcardNotSupported, key, kind)
	}
	return nil, fmt.Errorf("%w: %s on %s", ErrWildcardInvalid, key, kind)
}

func compileRoot(key jsonvalue.Pointer) (expander, error) {
	if key[0] == resource.FieldFeatures && len(key) > 1 {
		if exp, ok := featurePatterns(key[1:]); ok {
			return func(value any) []jsonvalue.Pointer {
				features, _ := jsonvalue.Get(value, jsonvalue.Pointer{resource.FieldFeatures})
				return prefixAll(jsonvalue.Pointer{resource.FieldFeatures}, exp(features))
			}, nil
		}
	}
	if key[0] == resource.FieldAttributes && len(key) >= 3 && key[1] == Wildcard && isLiteral(key[2:]) {
		rest := key[2:]
		return func(value any) []jsonvalue.Pointer {
			attrs, _ := jsonvalue.Get(value, jsonvalue.Pointer{resource.FieldAttributes})
			return keysWith(jsonvalue.Pointer{resource.FieldAttributes}, attrs, rest)
		}, nil
	}
	if exp, ok := leafWildcard(key); ok {
		return func(value any) []jsonvalue.Pointer {
			data, _ := jsonvalue.Remove(value, jsonvalue.Pointer{resource.FieldThingID})
			return exp(data)
		}, nil
	}
	return nil, fmt.Errorf("%w: %s on %s", ErrWildcardInvalid, key, resource.KindThing)
}

func compileFeatures(key jsonvalue.Pointer) (expander, error) {
	if exp, ok := featurePatterns(key); ok {
		return exp, nil
	}
	return nil, fmt.Errorf("%w: %s on %s", ErrWildcardInvalid, key, resource.KindFeatures)
}

func compileFeature(key jsonvalue.Pointer) (expander, error) {
	if len(key) >= 3 && isPropertiesField(key[0]) && key[1] == Wildcard && isLiteral(key[2:]) {
		field, rest := key[0], key[2:]
		return func(value any) []jsonvalue.Pointer {
			props, _ := jsonvalue.Get(value, jsonvalue.Pointer{field})
			return keysWith(jsonvalue.Pointer{field}, props, rest)
		}, nil
	}
	if exp, ok := leafWildcard(key); ok {
		return exp, nil
	}
	return nil, fmt.Errorf("%w: %s on %s", ErrWildcardInvalid, key, resource.KindFeature)
}

// featurePatterns matches keys relative to a features object:
// */properties/*/<rest>, <id>/properties/*/<rest> and */<rest>.
func featurePatterns(key jsonvalue.Pointer) (expander, bool) {
	if len(key) >= 4 && isPropertiesField(key[1]) && key[2] == Wildcard && isLiteral(key[3:]) {
		featureID, field, rest := key[0], key[1], key[3:]
		return func(features any) []jsonvalue.Pointer {
			var ids []string
			if featureID == Wildcard {
				ids = jsonvalue.Keys(features)
			} else {
				ids = []string{featureID}
			}
			var out []jsonvalue.Pointer
			for _, id := range ids {
				props, _ := jsonvalue.Get(features, jsonvalue.Pointer{id, field})
				out = append(out, keysWith(jsonvalue.Pointer{id, field}, props, rest)...)
			}
			return out
		}, true
	}
	if len(key) >= 2 && key[0] == Wildcard && isLiteral(key[1:]) {
		rest := key[1:]
		return func(features any) []jsonvalue.Pointer {
			return keysWith(jsonvalue.Pointer{}, features, rest)
		}, true
	}
	return nil, false
}

// leafWildcard matches */<rest> and expands it to every leaf of the value.
func leafWildcard(key jsonvalue.Pointer) (expander, bool) {
	if len(key) < 2 || key[0] != Wildcard || !isLiteral(key[1:]) {
		return nil, false
	}
	rest := key[1:]
	return func(value any) []jsonvalue.Pointer {
		if value == nil {
			return nil
		}
		var out []jsonvalue.Pointer
		for _, leaf := range jsonvalue.Leaves(value) {
			out = append(out, leaf.Concat(rest))
		}
		return out
	}, true
}

// keysWith returns prefix/<k>/rest for every key k of obj.
func keysWith(prefix jsonvalue.Pointer, obj any, rest jsonvalue.Pointer) []jsonvalue.Pointer {
	keys := jsonvalue.Keys(obj)
	out := make([]jsonvalue.Pointer, 0, len(keys))
	for _, k := range keys {
		out = append(out, prefix.Append(k).Concat(rest))
	}
	return out
}

func prefixAll(prefix jsonvalue.Pointer, ptrs []jsonvalue.Pointer) []jsonvalue.Pointer {
	out := make([]jsonvalue.Pointer, len(ptrs))
	for i, p := range ptrs {
		out[i] = prefix.Concat(p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func isPropertiesField(seg string) bool {
	return seg == resource.FieldProperties || seg == resource.FieldDesiredProperties
}

func hasWildcard(key jsonvalue.Pointer) bool {
	for _, seg := range key {
		if seg == Wildcard {
			return true
		}
	}
	return false
}

func isLiteral(segs jsonvalue.Pointer) bool {
	return len(segs) > 0 && !hasWildcard(segs)
}
