package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/twinworks/internal/services/things/domain/command"
	"github.com/louisbranch/twinworks/internal/services/things/domain/core/jsonvalue"
)

var (
	// ErrDirectiveConflict indicates more than one metadata header on a command.
	ErrDirectiveConflict = errors.New("only one metadata directive header may be set")
	// ErrHeaderMalformed indicates a metadata header that cannot be parsed.
	ErrHeaderMalformed = errors.New("metadata header is malformed")
	// ErrWildcardInvalid indicates a wildcard at a position the resource level does not accept.
	ErrWildcardInvalid = errors.New("metadata wildcard is not valid at this position")
	// ErrWildcardNotSupported indicates a wildcard on a leaf resource.
	ErrWildcardNotSupported = errors.New("metadata wildcards are not supported for this resource")
)

// Wildcard is the wildcard segment of directive keys.
const Wildcard = "*"

// Entry assigns Value to the metadata at Key.
type Entry struct {
	Key   jsonvalue.Pointer
	Value any
}

// Directives are the parsed metadata headers of one command. At most one of
// the fields is set.
type Directives struct {
	Put    []Entry
	Get    []jsonvalue.Pointer
	Delete []jsonvalue.Pointer
}

// Empty reports whether no directive is present.
func (d Directives) Empty() bool {
	return len(d.Put) == 0 && len(d.Get) == 0 && len(d.Delete) == 0
}

// Header returns the header name of the present directive.
func (d Directives) Header() string {
	switch {
	case len(d.Put) > 0:
		return command.HeaderPutMetadata
	case len(d.Get) > 0:
		return command.HeaderGetMetadata
	case len(d.Delete) > 0:
		return command.HeaderDeleteMetadata
	}
	return ""
}

// Keys returns the keys of the present directive.
func (d Directives) Keys() []jsonvalue.Pointer {
	switch {
	case len(d.Put) > 0:
		keys := make([]jsonvalue.Pointer, len(d.Put))
		for i, e := range d.Put {
			keys[i] = e.Key
		}
		return keys
	case len(d.Get) > 0:
		return d.Get
	default:
		return d.Delete
	}
}

// ParseHeaders reads the metadata directive headers. Co-occurring headers
// yield ErrDirectiveConflict before any header is parsed.
func ParseHeaders(h command.Headers) (Directives, error) {
	present := 0
	for _, name := range []string{command.HeaderPutMetadata, command.HeaderGetMetadata, command.HeaderDeleteMetadata} {
		if strings.TrimSpace(h.Get(name)) != "" {
			present++
		}
	}
	if present > 1 {
		return Directives{}, ErrDirectiveConflict
	}

	var (
		d   Directives
		err error
	)
	switch {
	case strings.TrimSpace(h.Get(command.HeaderPutMetadata)) != "":
		d.Put, err = parsePut(h.Get(command.HeaderPutMetadata))
	case strings.TrimSpace(h.Get(command.HeaderGetMetadata)) != "":
		d.Get, err = parseKeys(h.Get(command.HeaderGetMetadata))
	case strings.TrimSpace(h.Get(command.HeaderDeleteMetadata)) != "":
		d.Delete, err = parseKeys(h.Get(command.HeaderDeleteMetadata))
	}
	if err != nil {
		return Directives{}, err
	}
	return d, nil
}

// parsePut parses a JSON array of {"key": "...", "value": ...} objects.
func parsePut(raw string) ([]Entry, error) {
	tree, err := jsonvalue.Decode([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHeaderMalformed, err)
	}
	items, ok := tree.([]any)
	if !ok || len(items) == 0 {
		return nil, fmt.Errorf("%w: put-metadata must be a non-empty array", ErrHeaderMalformed)
	}
	out := make([]Entry, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: put-metadata entries must be objects", ErrHeaderMalformed)
		}
		rawKey, ok := obj["key"].(string)
		if !ok {
			return nil, fmt.Errorf("%w: put-metadata entry key must be a string", ErrHeaderMalformed)
		}
		key, err := parseKey(rawKey)
		if err != nil {
			return nil, err
		}
		value, ok := obj["value"]
		if !ok {
			return nil, fmt.Errorf("%w: put-metadata entry %s has no value", ErrHeaderMalformed, key)
		}
		out = append(out, Entry{Key: key, Value: value})
	}
	return out, nil
}

// parseKeys parses a comma separated key list.
func parseKeys(raw string) ([]jsonvalue.Pointer, error) {
	var out []jsonvalue.Pointer
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		key, err := parseKey(part)
		if err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty key list", ErrHeaderMalformed)
	}
	return out, nil
}

func parseKey(raw string) (jsonvalue.Pointer, error) {
	key, err := jsonvalue.ParsePointer(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHeaderMalformed, err)
	}
	if key.IsRoot() {
		return nil, fmt.Errorf("%w: metadata key must not be empty", ErrHeaderMalformed)
	}
	for _, seg := range key {
		if seg != Wildcard && strings.Contains(seg, Wildcard) {
			return nil, fmt.Errorf("%w: %s", ErrWildcardInvalid, key)
		}
	}
	return key, nil
}

// MarshalEntries renders entries in put-metadata header form.
func MarshalEntries(entries []Entry) (string, error) {
	items := make([]map[string]any, len(entries))
	for i, e := range entries {
		items[i] = map[string]any{"key": e.Key.String(), "value": e.Value}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
