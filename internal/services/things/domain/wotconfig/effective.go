package wotconfig

import (
	"regexp"

	"github.com/louisbranch/twinworks/internal/services/things/domain/command"
)

// Level holds the resolved switches of one validation level.
type Level struct {
	EnforceTypes     bool
	EnforceRequired  bool
	ForbidNonModeled bool
}

// Effective is the resolved configuration for one command.
type Effective struct {
	Enabled    bool
	LogWarning bool
	Thing      Level
	Feature    Level
}

// Defaults is the configuration used when no layer sets a field.
func Defaults() Config {
	return Config{
		ConfigID:                           DefaultConfigID,
		Enabled:                            boolPtr(true),
		LogWarningInsteadOfFailingAPICalls: boolPtr(false),
		Thing:                              &Settings{EnforceTypes: boolPtr(true), EnforceRequired: boolPtr(true), ForbidNonModeled: boolPtr(false)},
		Feature:                            &Settings{EnforceTypes: boolPtr(true), EnforceRequired: boolPtr(true), ForbidNonModeled: boolPtr(false)},
	}
}

// Merge layers replicated over static field by field. A field set in
// replicated wins; replicated dynamic sections come before static ones and
// shadow static sections with the same scope id.
func Merge(static Config, replicated *Config) Config {
	if replicated == nil {
		return static
	}
	out := static
	out.ConfigID = replicated.ConfigID
	out.Revision = replicated.Revision
	out.Created = replicated.Created
	out.Modified = replicated.Modified
	out.Enabled = pick(replicated.Enabled, static.Enabled)
	out.LogWarningInsteadOfFailingAPICalls = pick(replicated.LogWarningInsteadOfFailingAPICalls, static.LogWarningInsteadOfFailingAPICalls)
	out.Thing = mergeSettings(static.Thing, replicated.Thing)
	out.Feature = mergeSettings(static.Feature, replicated.Feature)

	sections := make([]DynamicSection, 0, len(replicated.DynamicConfigs)+len(static.DynamicConfigs))
	seen := make(map[string]struct{}, len(replicated.DynamicConfigs))
	for _, s := range replicated.DynamicConfigs {
		seen[s.ScopeID] = struct{}{}
		sections = append(sections, s)
	}
	for _, s := range static.DynamicConfigs {
		if _, shadowed := seen[s.ScopeID]; shadowed {
			continue
		}
		sections = append(sections, s)
	}
	out.DynamicConfigs = sections
	return out
}

func mergeSettings(base, over *Settings) *Settings {
	switch {
	case over == nil:
		return base
	case base == nil:
		return over
	}
	return &Settings{
		EnforceTypes:     pick(over.EnforceTypes, base.EnforceTypes),
		EnforceRequired:  pick(over.EnforceRequired, base.EnforceRequired),
		ForbidNonModeled: pick(over.ForbidNonModeled, base.ForbidNonModeled),
	}
}

func pick(over, base *bool) *bool {
	if over != nil {
		return over
	}
	return base
}

// Subject describes the command a configuration is resolved for.
type Subject struct {
	ThingDefinition    string
	FeatureDefinitions []string
	Headers            command.Headers
}

// Resolve applies the first dynamic section matching subject on top of the
// global switches and fills unset fields from Defaults.
func (c Config) Resolve(subject Subject) Effective {
	layered := Merge(Defaults(), &c)
	for _, section := range c.DynamicConfigs {
		if !section.ValidationContext.matches(subject) {
			continue
		}
		o := section.ConfigOverrides
		layered.Enabled = pick(o.Enabled, layered.Enabled)
		layered.LogWarningInsteadOfFailingAPICalls = pick(o.LogWarningInsteadOfFailingAPICalls, layered.LogWarningInsteadOfFailingAPICalls)
		layered.Thing = mergeSettings(layered.Thing, o.Thing)
		layered.Feature = mergeSettings(layered.Feature, o.Feature)
		break
	}
	return Effective{
		Enabled:    deref(layered.Enabled),
		LogWarning: deref(layered.LogWarningInsteadOfFailingAPICalls),
		Thing:      level(layered.Thing),
		Feature:    level(layered.Feature),
	}
}

func level(s *Settings) Level {
	if s == nil {
		return Level{}
	}
	return Level{
		EnforceTypes:     deref(s.EnforceTypes),
		EnforceRequired:  deref(s.EnforceRequired),
		ForbidNonModeled: deref(s.ForbidNonModeled),
	}
}

func deref(b *bool) bool {
	return b != nil && *b
}

func (vc ValidationContext) matches(subject Subject) bool {
	if len(vc.ThingDefinitionPatterns) > 0 && !anyMatch(vc.ThingDefinitionPatterns, subject.ThingDefinition) {
		return false
	}
	if len(vc.FeatureDefinitionPatterns) > 0 {
		matched := false
		for _, def := range subject.FeatureDefinitions {
			if anyMatch(vc.FeatureDefinitionPatterns, def) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if len(vc.HeaderPatterns) > 0 {
		matched := false
		for _, group := range vc.HeaderPatterns {
			if headersMatch(group, subject.Headers) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func headersMatch(patterns map[string]string, headers command.Headers) bool {
	for name, pattern := range patterns {
		if !headers.Has(name) || !anyMatch([]string{pattern}, headers.Get(name)) {
			return false
		}
	}
	return true
}

func anyMatch(patterns []string, value string) bool {
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		if re.MatchString(value) {
			return true
		}
	}
	return false
}
