// Package wot holds the subset of the W3C WoT Thing Model the things engine
// understands: typed property affordances with defaults, required members
// and tm:submodel links describing features.
package wot

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// RelSubmodel is the link relation naming a feature model.
const RelSubmodel = "tm:submodel"

var (
	// ErrModelInvalid indicates a model document that cannot be decoded.
	ErrModelInvalid = errors.New("thing model is invalid")
	// ErrModelNotFound indicates a definition that no resolver knows.
	ErrModelNotFound = errors.New("thing model not found")
)

// JSON types accepted in a property affordance.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeObject  = "object"
	TypeArray   = "array"
	TypeNull    = "null"
)

// Property is a data schema of a property affordance.
type Property struct {
	Type       string              `json:"type,omitempty" yaml:"type,omitempty"`
	Default    any                 `json:"default,omitempty" yaml:"default,omitempty"`
	ReadOnly   bool                `json:"readOnly,omitempty" yaml:"readOnly,omitempty"`
	Properties map[string]Property `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required   []string            `json:"required,omitempty" yaml:"required,omitempty"`
	Enum       []any               `json:"enum,omitempty" yaml:"enum,omitempty"`
}

// Link is a typed link of a model.
type Link struct {
	Rel          string `json:"rel" yaml:"rel"`
	Href         string `json:"href" yaml:"href"`
	InstanceName string `json:"instanceName,omitempty" yaml:"instanceName,omitempty"`
}

// Model is a Thing Model. At thing level its properties describe
// attributes; submodel links describe features. At feature level its
// properties describe feature properties.
type Model struct {
	ID         string              `json:"id" yaml:"id"`
	Title      string              `json:"title,omitempty" yaml:"title,omitempty"`
	Properties map[string]Property `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required   []string            `json:"tm:required,omitempty" yaml:"tm:required,omitempty"`
	Links      []Link              `json:"links,omitempty" yaml:"links,omitempty"`
}

// Decode parses a model document.
func Decode(data []byte) (Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return Model{}, fmt.Errorf("%w: %v", ErrModelInvalid, err)
	}
	if strings.TrimSpace(m.ID) == "" {
		return Model{}, fmt.Errorf("%w: id is required", ErrModelInvalid)
	}
	return m, nil
}

// Submodels returns the submodel links keyed by instance name.
func (m Model) Submodels() map[string]Link {
	out := map[string]Link{}
	for _, l := range m.Links {
		if l.Rel != RelSubmodel {
			continue
		}
		name := l.InstanceName
		if name == "" {
			name = instanceNameFromHref(l.Href)
		}
		if name != "" {
			out[name] = l
		}
	}
	return out
}

// RequiredProperties returns the names of required top-level properties.
// tm:required entries are JSON pointers such as "#/properties/serial".
func (m Model) RequiredProperties() []string {
	var out []string
	for _, r := range m.Required {
		name := strings.TrimPrefix(r, "#/properties/")
		if name == r || name == "" || strings.Contains(name, "/") {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// PropertyNames returns the modeled property names in lexical order.
func (m Model) PropertyNames() []string {
	names := make([]string, 0, len(m.Properties))
	for name := range m.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func instanceNameFromHref(href string) string {
	name := href
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "-"); i > 0 {
		name = name[:i]
	}
	return strings.TrimSuffix(name, ".tm.jsonld")
}
