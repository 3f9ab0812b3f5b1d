package jsonvalue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// Decode parses data into a JSON tree, keeping numbers as json.Number.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("decode json: trailing data")
	}
	return v, nil
}

// Normalize converts an arbitrary Go value into a JSON tree.
func Normalize(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, json.Number:
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return Decode(data)
}

// Clone returns a deep copy of a JSON tree.
func Clone(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Clone(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Clone(item)
		}
		return out
	default:
		return v
	}
}

// IsObject reports whether v is a JSON object.
func IsObject(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

// Get returns the value addressed by p.
func Get(doc any, p Pointer) (any, bool) {
	current := doc
	for _, seg := range p {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Set returns a copy of doc with v stored at p. Missing or non-object
// intermediate values are replaced by objects. Setting the root returns v.
func Set(doc any, p Pointer, v any) any {
	if len(p) == 0 {
		return v
	}
	obj, _ := doc.(map[string]any)
	out := shallowCopy(obj)
	out[p[0]] = Set(out[p[0]], p[1:], v)
	return out
}

// Remove returns a copy of doc without the value at p. ok is false when
// nothing was addressed, in which case doc is returned unchanged.
func Remove(doc any, p Pointer) (any, bool) {
	if len(p) == 0 {
		return nil, doc != nil
	}
	obj, isObj := doc.(map[string]any)
	if !isObj {
		return doc, false
	}
	child, exists := obj[p[0]]
	if !exists {
		return doc, false
	}
	out := shallowCopy(obj)
	if len(p) == 1 {
		delete(out, p[0])
		return out, true
	}
	next, ok := Remove(child, p[1:])
	if !ok {
		return doc, false
	}
	out[p[0]] = next
	return out, true
}

// MergePatch applies patch to target following RFC 7396: null members delete,
// non-object patches replace and objects merge recursively.
func MergePatch(target, patch any) any {
	patchObj, ok := patch.(map[string]any)
	if !ok {
		return Clone(patch)
	}
	targetObj, _ := target.(map[string]any)
	out := shallowCopy(targetObj)
	for k, v := range patchObj {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = MergePatch(out[k], v)
	}
	return out
}

// MergeAt applies patch at p inside doc. A null patch removes the value.
func MergeAt(doc any, p Pointer, patch any) any {
	if patch == nil {
		if len(p) == 0 {
			return nil
		}
		out, _ := Remove(doc, p)
		return out
	}
	existing, _ := Get(doc, p)
	return Set(doc, p, MergePatch(existing, patch))
}

// MinimizePatch drops the parts of patch that would not change existing.
// changed is false when nothing remains.
func MinimizePatch(existing, patch any) (minimized any, changed bool) {
	patchObj, ok := patch.(map[string]any)
	if !ok {
		if Equal(existing, patch) {
			return nil, false
		}
		return patch, true
	}
	existingObj, ok := existing.(map[string]any)
	if !ok {
		return patch, true
	}
	out := map[string]any{}
	for k, v := range patchObj {
		current, exists := existingObj[k]
		if v == nil {
			if exists {
				out[k] = nil
			}
			continue
		}
		if !exists {
			out[k] = v
			continue
		}
		if IsObject(v) && IsObject(current) {
			if sub, subChanged := MinimizePatch(current, v); subChanged {
				out[k] = sub
			}
			continue
		}
		if !Equal(current, v) {
			out[k] = v
		}
	}
	return out, len(out) > 0
}

// Leaves returns the pointers of every non-object value inside v, relative
// to v and in lexical order. A non-object v yields the root pointer.
func Leaves(v any) []Pointer {
	var out []Pointer
	collectLeaves(v, Pointer{}, &out)
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}

func collectLeaves(v any, at Pointer, out *[]Pointer) {
	obj, ok := v.(map[string]any)
	if !ok {
		*out = append(*out, at)
		return
	}
	for k, item := range obj {
		collectLeaves(item, at.Append(k), out)
	}
}

// Keys returns the member names of an object in lexical order.
func Keys(v any) []string {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports whether two JSON trees are equal. Numbers compare by value.
func Equal(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, item := range av {
			other, ok := bv[k]
			if !ok || !Equal(item, other) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case json.Number:
		bv, ok := b.(json.Number)
		if !ok {
			return false
		}
		if av == bv {
			return true
		}
		af, errA := strconv.ParseFloat(string(av), 64)
		bf, errB := strconv.ParseFloat(string(bv), 64)
		return errA == nil && errB == nil && af == bf
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	default:
		return false
	}
}

func shallowCopy(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj)+1)
	for k, v := range obj {
		out[k] = v
	}
	return out
}
