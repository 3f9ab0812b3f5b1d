package thing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/louisbranch/twinworks/internal/services/things/domain/core/jsonvalue"
)

// Reserved document members carrying the envelope of a thing.
const (
	FieldRevision  = "_revision"
	FieldCreated   = "_created"
	FieldModified  = "_modified"
	FieldMetadata  = "_metadata"
	FieldLifecycle = "_lifecycle"
)

// Document returns the full JSON representation of the thing, including its
// envelope members. Metadata is only included when withMetadata is set.
func (t Thing) Document(withMetadata bool) map[string]any {
	out := t.Data()
	out[FieldRevision] = json.Number(fmt.Sprint(t.Revision))
	if !t.Created.IsZero() {
		out[FieldCreated] = t.Created.UTC().Format(time.RFC3339Nano)
	}
	if !t.Modified.IsZero() {
		out[FieldModified] = t.Modified.UTC().Format(time.RFC3339Nano)
	}
	if withMetadata && t.Metadata != nil {
		out[FieldMetadata] = t.Metadata
	}
	return out
}

// MarshalJSON encodes the full thing, including lifecycle and metadata.
func (t Thing) MarshalJSON() ([]byte, error) {
	doc := t.Document(true)
	doc[FieldLifecycle] = string(t.Lifecycle)
	return json.Marshal(doc)
}

// UnmarshalJSON decodes a thing written by MarshalJSON.
func (t *Thing) UnmarshalJSON(data []byte) error {
	tree, err := jsonvalue.Decode(data)
	if err != nil {
		return err
	}
	obj, ok := tree.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: thing must be a JSON object", ErrPayloadInvalid)
	}
	parsed, err := FromData("", obj)
	if err != nil {
		return err
	}
	if rev, ok := obj[FieldRevision].(json.Number); ok {
		parsed.Revision, err = rev.Int64()
		if err != nil {
			return fmt.Errorf("%w: revision: %v", ErrPayloadInvalid, err)
		}
	}
	if s, ok := obj[FieldCreated].(string); ok {
		if parsed.Created, err = time.Parse(time.RFC3339Nano, s); err != nil {
			return fmt.Errorf("%w: created: %v", ErrPayloadInvalid, err)
		}
	}
	if s, ok := obj[FieldModified].(string); ok {
		if parsed.Modified, err = time.Parse(time.RFC3339Nano, s); err != nil {
			return fmt.Errorf("%w: modified: %v", ErrPayloadInvalid, err)
		}
	}
	if meta, ok := obj[FieldMetadata].(map[string]any); ok {
		parsed.Metadata = meta
	}
	parsed.Lifecycle = LifecycleActive
	if s, ok := obj[FieldLifecycle].(string); ok && s != "" {
		parsed.Lifecycle = Lifecycle(s)
	}
	*t = parsed
	return nil
}
