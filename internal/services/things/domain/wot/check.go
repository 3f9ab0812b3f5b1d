package wot

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Violation is one mismatch between a value and its model.
type Violation struct {
	Path   string
	Reason string
}

func (v Violation) String() string {
	return v.Path + ": " + v.Reason
}

// CheckOptions select which rules Check enforces.
type CheckOptions struct {
	EnforceTypes     bool
	EnforceRequired  bool
	ForbidNonModeled bool
}

// Check compares the members of obj against props. prefix is prepended to
// reported paths.
func Check(prefix string, obj map[string]any, props map[string]Property, required []string, opts CheckOptions) []Violation {
	var out []Violation
	if opts.EnforceRequired {
		for _, name := range required {
			if _, ok := obj[name]; !ok {
				out = append(out, Violation{Path: prefix + "/" + name, Reason: "required member is missing"})
			}
		}
	}
	names := make([]string, 0, len(obj))
	for name := range obj {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		path := prefix + "/" + name
		prop, modeled := props[name]
		if !modeled {
			if opts.ForbidNonModeled {
				out = append(out, Violation{Path: path, Reason: "member is not modeled"})
			}
			continue
		}
		out = append(out, checkValue(path, obj[name], prop, opts)...)
	}
	return out
}

func checkValue(path string, v any, p Property, opts CheckOptions) []Violation {
	if !opts.EnforceTypes {
		return nil
	}
	if p.Type != "" && !MatchesType(v, p.Type) {
		return []Violation{{Path: path, Reason: fmt.Sprintf("expected %s", p.Type)}}
	}
	if len(p.Enum) > 0 && !inEnum(v, p.Enum) {
		return []Violation{{Path: path, Reason: "value is not one of the enumerated values"}}
	}
	if nested, ok := v.(map[string]any); ok && (len(p.Properties) > 0 || len(p.Required) > 0) {
		sub := opts
		sub.ForbidNonModeled = false
		return Check(path, nested, p.Properties, p.Required, sub)
	}
	return nil
}

// MatchesType reports whether v is a JSON value of the given type.
func MatchesType(v any, typ string) bool {
	switch typ {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeNull:
		return v == nil
	case TypeObject:
		_, ok := v.(map[string]any)
		return ok
	case TypeArray:
		_, ok := v.([]any)
		return ok
	case TypeNumber:
		_, ok := number(v)
		return ok
	case TypeInteger:
		f, ok := number(v)
		return ok && f == math.Trunc(f)
	}
	return true
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func inEnum(v any, enum []any) bool {
	for _, e := range enum {
		if fmt.Sprint(e) == fmt.Sprint(v) {
			return true
		}
	}
	return false
}

// Summarize joins violations into one reason string.
func Summarize(violations []Violation) string {
	parts := make([]string, len(violations))
	for i, v := range violations {
		parts[i] = v.String()
	}
	return strings.Join(parts, "; ")
}
