// Package jsonvalue provides copy-on-write helpers over decoded JSON trees.
//
// A JSON tree is built from map[string]any, []any, string, json.Number, bool
// and nil. Helpers never modify their inputs: every write returns a new root
// that shares untouched branches with the old one.
package jsonvalue

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPointerInvalid indicates a malformed JSON pointer.
var ErrPointerInvalid = errors.New("json pointer is invalid")

// Pointer is a parsed JSON pointer. The empty pointer addresses the root.
type Pointer []string

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")
var pointerUnescaper = strings.NewReplacer("~1", "/", "~0", "~")

// ParsePointer parses s as a JSON pointer. The leading slash is optional and
// a single slash addresses the root. Empty segments are rejected.
func ParsePointer(s string) (Pointer, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "/" {
		return Pointer{}, nil
	}
	s = strings.TrimPrefix(s, "/")
	s = strings.TrimSuffix(s, "/")
	parts := strings.Split(s, "/")
	out := make(Pointer, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrPointerInvalid, s)
		}
		out = append(out, pointerUnescaper.Replace(part))
	}
	return out, nil
}

// MustPointer parses s and panics on error. Intended for constants and tests.
func MustPointer(s string) Pointer {
	p, err := ParsePointer(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String renders the pointer with a leading slash.
func (p Pointer) String() string {
	if len(p) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, seg := range p {
		b.WriteByte('/')
		b.WriteString(pointerEscaper.Replace(seg))
	}
	return b.String()
}

// IsRoot reports whether p addresses the document root.
func (p Pointer) IsRoot() bool {
	return len(p) == 0
}

// Append returns a new pointer with segs appended.
func (p Pointer) Append(segs ...string) Pointer {
	out := make(Pointer, 0, len(p)+len(segs))
	out = append(out, p...)
	return append(out, segs...)
}

// Concat returns p followed by other.
func (p Pointer) Concat(other Pointer) Pointer {
	return p.Append(other...)
}

// HasPrefix reports whether prefix addresses p or one of its ancestors.
func (p Pointer) HasPrefix(prefix Pointer) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}
	return true
}

// TrimPrefix returns p relative to prefix. ok is false when prefix does not
// address p or an ancestor.
func (p Pointer) TrimPrefix(prefix Pointer) (Pointer, bool) {
	if !p.HasPrefix(prefix) {
		return nil, false
	}
	return append(Pointer{}, p[len(prefix):]...), true
}

// Equal reports whether both pointers address the same location.
func (p Pointer) Equal(other Pointer) bool {
	return len(p) == len(other) && p.HasPrefix(other)
}
