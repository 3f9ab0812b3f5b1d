package wot

import (
	"context"
	"fmt"
	"sort"
)

// Skeleton builds the thing data a definition prescribes: attributes from
// property defaults and one feature per submodel with its definition and
// property defaults. The result uses the thing data keys.
func Skeleton(ctx context.Context, resolver Resolver, definition string) (map[string]any, error) {
	m, err := resolver.Resolve(ctx, definition)
	if err != nil {
		return nil, err
	}
	out := map[string]any{"definition": definition}
	if attrs := Defaults(m.Properties); len(attrs) > 0 {
		out["attributes"] = attrs
	}
	subs := m.Submodels()
	if len(subs) == 0 {
		return out, nil
	}
	names := make([]string, 0, len(subs))
	for name := range subs {
		names = append(names, name)
	}
	sort.Strings(names)
	features := make(map[string]any, len(names))
	for _, name := range names {
		link := subs[name]
		feature := map[string]any{"definition": []any{link.Href}}
		sub, err := resolver.Resolve(ctx, link.Href)
		if err != nil {
			return nil, fmt.Errorf("submodel %s: %w", name, err)
		}
		if props := Defaults(sub.Properties); len(props) > 0 {
			feature["properties"] = props
		}
		features[name] = feature
	}
	out["features"] = features
	return out, nil
}

// Defaults returns the default values declared by props, descending into
// object properties. Properties without a default are omitted.
func Defaults(props map[string]Property) map[string]any {
	out := map[string]any{}
	for name, p := range props {
		if p.Default != nil {
			out[name] = p.Default
			continue
		}
		if p.Type == TypeObject && len(p.Properties) > 0 {
			if nested := Defaults(p.Properties); len(nested) > 0 {
				out[name] = nested
			}
		}
	}
	return out
}
