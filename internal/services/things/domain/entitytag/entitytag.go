// Package entitytag computes content fingerprints for thing resources and
// matches them against conditional request headers.
//
// The root resource is tagged with its revision ("rev:<n>"); every other
// resource is tagged with the content hash of its JSON value ("hash:<h>").
// Absent resources have no tag.
package entitytag

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/louisbranch/twinworks/internal/services/things/domain/core/encoding"
	"github.com/louisbranch/twinworks/internal/services/things/domain/core/jsonvalue"
	"github.com/louisbranch/twinworks/internal/services/things/domain/resource"
	"github.com/louisbranch/twinworks/internal/services/things/domain/thing"
)

var (
	// ErrPathUnknown indicates a path that does not address a thing resource.
	ErrPathUnknown = errors.New("resource path is unknown")
	// ErrTagInvalid indicates a malformed entity tag.
	ErrTagInvalid = errors.New("entity tag is invalid")
)

// Tag is an HTTP entity tag.
type Tag struct {
	Weak   bool
	Opaque string
}

// String renders the tag in header form.
func (t Tag) String() string {
	if t.Weak {
		return `W/"` + t.Opaque + `"`
	}
	return `"` + t.Opaque + `"`
}

// StrongEqual reports whether both tags are strong and identical.
func (t Tag) StrongEqual(other Tag) bool {
	return !t.Weak && !other.Weak && t.Opaque == other.Opaque
}

// WeakEqual reports whether the opaque values are identical.
func (t Tag) WeakEqual(other Tag) bool {
	return t.Opaque == other.Opaque
}

// Parse parses a single entity tag in header form.
func Parse(s string) (Tag, error) {
	s = strings.TrimSpace(s)
	var tag Tag
	if strings.HasPrefix(s, "W/") {
		tag.Weak = true
		s = s[2:]
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return Tag{}, fmt.Errorf("%w: %q", ErrTagInvalid, s)
	}
	tag.Opaque = s[1 : len(s)-1]
	if strings.Contains(tag.Opaque, `"`) {
		return Tag{}, fmt.Errorf("%w: %q", ErrTagInvalid, s)
	}
	return tag, nil
}

// Revision returns the tag of a thing root at rev.
func Revision(rev int64) Tag {
	return Tag{Opaque: "rev:" + strconv.FormatInt(rev, 10)}
}

// ForValue returns the tag of a sub-resource holding value.
func ForValue(value any) (Tag, error) {
	hash, err := encoding.ContentHash(value)
	if err != nil {
		return Tag{}, err
	}
	return Tag{Opaque: "hash:" + hash}, nil
}

// ForPath returns the tag of the resource at p. A nil tag means the
// resource does not exist.
func ForPath(t *thing.Thing, p jsonvalue.Pointer) (*Tag, error) {
	path, ok := resource.Classify(p)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPathUnknown, p)
	}
	if !thing.Exists(t) {
		return nil, nil
	}
	if path.Kind == resource.KindThing {
		tag := Revision(t.Revision)
		return &tag, nil
	}
	value, ok := t.Get(p)
	if !ok {
		return nil, nil
	}
	tag, err := ForValue(value)
	if err != nil {
		return nil, err
	}
	return &tag, nil
}
