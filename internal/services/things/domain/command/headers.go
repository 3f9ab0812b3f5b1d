package command

import (
	"fmt"
	"strings"
)

// Header names understood by the engine. Names are case-insensitive and
// stored lower-cased.
const (
	HeaderCorrelationID  = "correlation-id"
	HeaderIfMatch        = "if-match"
	HeaderIfNoneMatch    = "if-none-match"
	HeaderIfEqual        = "if-equal"
	HeaderPutMetadata    = "put-metadata"
	HeaderGetMetadata    = "get-metadata"
	HeaderDeleteMetadata = "delete-metadata"
	HeaderCondition      = "condition"
	HeaderDryRun         = "dry-run"
	HeaderAccept         = "accept"
	HeaderAcceptLanguage = "accept-language"
	HeaderAllowDeleted   = "allow-deleted"

	HeaderETag           = "etag"
	HeaderEntityRevision = "entity-revision"
	HeaderMergeStatus    = "merge-status"
)

// IfEqual selects what happens when a modification would not change the
// addressed value.
type IfEqual string

const (
	// IfEqualUpdate always applies the modification.
	IfEqualUpdate IfEqual = "update"
	// IfEqualSkip answers NotModified when the value would not change.
	IfEqualSkip IfEqual = "skip"
	// IfEqualSkipMinimizingMerge drops unchanged parts of a merge patch and
	// answers NotModified when nothing remains.
	IfEqualSkipMinimizingMerge IfEqual = "skip-minimizing-merge"
)

// Headers is a case-insensitive header bag.
type Headers map[string]string

// NewHeaders copies values into a header bag with lower-cased names.
func NewHeaders(values map[string]string) Headers {
	out := make(Headers, len(values))
	for k, v := range values {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

// Get returns the value of name.
func (h Headers) Get(name string) string {
	return h[strings.ToLower(name)]
}

// Has reports whether name is present.
func (h Headers) Has(name string) bool {
	_, ok := h[strings.ToLower(name)]
	return ok
}

// With returns a copy carrying name=value.
func (h Headers) With(name, value string) Headers {
	out := h.Clone()
	out[strings.ToLower(name)] = value
	return out
}

// Without returns a copy without name.
func (h Headers) Without(name string) Headers {
	out := h.Clone()
	delete(out, strings.ToLower(name))
	return out
}

// Clone returns a copy of h. A nil bag clones to an empty one.
func (h Headers) Clone() Headers {
	out := make(Headers, len(h)+1)
	for k, v := range h {
		out[k] = v
	}
	return out
}

// CorrelationID returns the correlation id header.
func (h Headers) CorrelationID() string {
	return h.Get(HeaderCorrelationID)
}

// DryRun reports whether the command must not persist any effect.
func (h Headers) DryRun() bool {
	return strings.EqualFold(strings.TrimSpace(h.Get(HeaderDryRun)), "true")
}

// AllowDeleted reports whether retrieval of deleted things is requested.
func (h Headers) AllowDeleted() bool {
	return strings.EqualFold(strings.TrimSpace(h.Get(HeaderAllowDeleted)), "true")
}

// IfEqual parses the if-equal header. Absent means IfEqualUpdate.
func (h Headers) IfEqual() (IfEqual, error) {
	raw := strings.TrimSpace(h.Get(HeaderIfEqual))
	switch IfEqual(strings.ToLower(raw)) {
	case "", IfEqualUpdate:
		return IfEqualUpdate, nil
	case IfEqualSkip:
		return IfEqualSkip, nil
	case IfEqualSkipMinimizingMerge:
		return IfEqualSkipMinimizingMerge, nil
	default:
		return "", fmt.Errorf("unknown if-equal value %q", raw)
	}
}
