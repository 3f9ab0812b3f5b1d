package entitytag

import (
	"strings"
)

// Matchers is the parsed value of an If-Match or If-None-Match header.
type Matchers struct {
	Any  bool
	Tags []Tag
}

// ParseMatchers parses a comma separated tag list or "*".
func ParseMatchers(header string) (Matchers, error) {
	header = strings.TrimSpace(header)
	if header == "*" {
		return Matchers{Any: true}, nil
	}
	var out Matchers
	for _, part := range splitTags(header) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if part == "*" {
			out.Any = true
			continue
		}
		tag, err := Parse(part)
		if err != nil {
			return Matchers{}, err
		}
		out.Tags = append(out.Tags, tag)
	}
	if !out.Any && len(out.Tags) == 0 {
		return Matchers{}, ErrTagInvalid
	}
	return out, nil
}

// MatchStrong applies If-Match semantics: an absent resource never matches.
func (m Matchers) MatchStrong(current *Tag) bool {
	if current == nil {
		return false
	}
	if m.Any {
		return true
	}
	for _, tag := range m.Tags {
		if tag.StrongEqual(*current) {
			return true
		}
	}
	return false
}

// MatchWeak applies If-None-Match comparison: true means a tag matched.
func (m Matchers) MatchWeak(current *Tag) bool {
	if current == nil {
		return false
	}
	if m.Any {
		return true
	}
	for _, tag := range m.Tags {
		if tag.WeakEqual(*current) {
			return true
		}
	}
	return false
}

// splitTags splits on commas outside quoted strings.
func splitTags(s string) []string {
	var (
		out     []string
		start   int
		inQuote bool
	)
	for i, r := range s {
		switch r {
		case '"':
			inQuote = !inQuote
		case ',':
			if !inQuote {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}
