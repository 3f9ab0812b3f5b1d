// Package wotconfig holds the WoT validation configuration: the replicated
// document, its static fallback, the effective merge of both and the
// replicated store that keeps the single live document.
package wotconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultConfigID identifies the single cluster-wide configuration.
const DefaultConfigID = "merged"

var (
	// ErrConfigInvalid indicates a document that fails structural checks.
	ErrConfigInvalid = errors.New("wot validation config is invalid")
	// ErrDuplicateScope indicates two dynamic sections sharing a scope id.
	ErrDuplicateScope = errors.New("dynamic config scope ids must be unique")
)

var configValidate = validator.New()

// Settings are the per-level validation switches. Nil fields are unset and
// fall through to the next configuration layer.
type Settings struct {
	EnforceTypes     *bool `json:"enforceTypes,omitempty" yaml:"enforceTypes,omitempty"`
	EnforceRequired  *bool `json:"enforceRequired,omitempty" yaml:"enforceRequired,omitempty"`
	ForbidNonModeled *bool `json:"forbidNonModeled,omitempty" yaml:"forbidNonModeled,omitempty"`
}

// Overrides are the fields a dynamic section may override.
type Overrides struct {
	Enabled                            *bool     `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	LogWarningInsteadOfFailingAPICalls *bool     `json:"logWarningInsteadOfFailingApiCalls,omitempty" yaml:"logWarningInsteadOfFailingApiCalls,omitempty"`
	Thing                              *Settings `json:"thing,omitempty" yaml:"thing,omitempty"`
	Feature                            *Settings `json:"feature,omitempty" yaml:"feature,omitempty"`
}

// ValidationContext selects the commands a dynamic section applies to. Each
// list holds regular expressions; an empty list matches everything.
type ValidationContext struct {
	HeaderPatterns            []map[string]string `json:"headerPatterns,omitempty" yaml:"headerPatterns,omitempty"`
	ThingDefinitionPatterns   []string            `json:"thingDefinitionPatterns,omitempty" yaml:"thingDefinitionPatterns,omitempty" validate:"dive,required"`
	FeatureDefinitionPatterns []string            `json:"featureDefinitionPatterns,omitempty" yaml:"featureDefinitionPatterns,omitempty" validate:"dive,required"`
}

// DynamicSection overrides the global switches for matching commands.
type DynamicSection struct {
	ScopeID           string            `json:"scopeId" yaml:"scopeId" validate:"required"`
	ValidationContext ValidationContext `json:"validationContext" yaml:"validationContext"`
	ConfigOverrides   Overrides         `json:"configOverrides" yaml:"configOverrides"`
}

// Config is the WoT validation configuration document.
type Config struct {
	ConfigID                           string           `json:"configId" yaml:"configId" validate:"required"`
	Enabled                            *bool            `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	LogWarningInsteadOfFailingAPICalls *bool            `json:"logWarningInsteadOfFailingApiCalls,omitempty" yaml:"logWarningInsteadOfFailingApiCalls,omitempty"`
	Thing                              *Settings        `json:"thing,omitempty" yaml:"thing,omitempty"`
	Feature                            *Settings        `json:"feature,omitempty" yaml:"feature,omitempty"`
	DynamicConfigs                     []DynamicSection `json:"dynamicConfig,omitempty" yaml:"dynamicConfig,omitempty" validate:"dive"`
	Revision                           int64            `json:"_revision,omitempty" yaml:"-"`
	Created                            *time.Time       `json:"_created,omitempty" yaml:"-"`
	Modified                           *time.Time       `json:"_modified,omitempty" yaml:"-"`
}

// Validate checks struct tags, scope uniqueness and the definition patterns.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	seen := make(map[string]struct{}, len(c.DynamicConfigs))
	for _, section := range c.DynamicConfigs {
		if _, dup := seen[section.ScopeID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateScope, section.ScopeID)
		}
		seen[section.ScopeID] = struct{}{}
		if err := section.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks a single section.
func (s DynamicSection) Validate() error {
	if err := configValidate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	patterns := append(append([]string{}, s.ValidationContext.ThingDefinitionPatterns...), s.ValidationContext.FeatureDefinitionPatterns...)
	for _, headers := range s.ValidationContext.HeaderPatterns {
		for _, p := range headers {
			patterns = append(patterns, p)
		}
	}
	for _, p := range patterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("%w: scope %s pattern %q: %v", ErrConfigInvalid, s.ScopeID, p, err)
		}
	}
	return nil
}

// Decode parses and validates a JSON document.
func Decode(data []byte) (Config, error) {
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	if c.ConfigID == "" {
		c.ConfigID = DefaultConfigID
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Marshal renders the document as JSON.
func (c Config) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Section returns the dynamic section with scopeID.
func (c Config) Section(scopeID string) (DynamicSection, bool) {
	for _, s := range c.DynamicConfigs {
		if s.ScopeID == scopeID {
			return s, true
		}
	}
	return DynamicSection{}, false
}

// WithSection returns a copy of c holding section as the only section with
// its scope id. An existing section with that scope id is dropped and the
// new one is appended after the remaining sections.
func (c Config) WithSection(section DynamicSection) Config {
	out, _ := c.WithoutSection(section.ScopeID)
	out.DynamicConfigs = append(out.DynamicConfigs, section)
	return out
}

// WithoutSection returns a copy of c without the section scopeID.
func (c Config) WithoutSection(scopeID string) (Config, bool) {
	out := c
	out.DynamicConfigs = make([]DynamicSection, 0, len(c.DynamicConfigs))
	found := false
	for _, s := range c.DynamicConfigs {
		if s.ScopeID == scopeID {
			found = true
			continue
		}
		out.DynamicConfigs = append(out.DynamicConfigs, s)
	}
	return out, found
}

func boolPtr(v bool) *bool {
	return &v
}
