// Package sizeguard rejects payloads whose serialized size exceeds a limit
// without serializing more than needed.
package sizeguard

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	apperrors "github.com/louisbranch/twinworks/internal/platform/errors"
)

// DefaultLimit is the default maximum serialized thing size in bytes.
const DefaultLimit int64 = 100 * 1024

// errLimitReached aborts an exact size computation.
var errLimitReached = errors.New("size limit reached")

// Guard checks sizes against Limit. A non-positive limit disables checks.
type Guard struct {
	Limit int64
}

// EnsureValidSize checks the cheap upper bound first and only computes the
// exact size when the bound exceeds the limit.
func (g Guard) EnsureValidSize(upperBound func() int64, exact func() (int64, error), metadata map[string]string) error {
	if g.Limit <= 0 {
		return nil
	}
	if upperBound != nil && upperBound() <= g.Limit {
		return nil
	}
	size, err := exact()
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "compute payload size", err)
	}
	if size <= g.Limit {
		return nil
	}
	meta := map[string]string{
		"Size":  strconv.FormatInt(size, 10),
		"Limit": strconv.FormatInt(g.Limit, 10),
	}
	for k, v := range metadata {
		meta[k] = v
	}
	return apperrors.WithMetadata(apperrors.CodeThingTooLarge,
		fmt.Sprintf("payload of at least %d bytes exceeds limit of %d bytes", size, g.Limit), meta)
}

// EnsureValue checks the serialized size of a JSON tree.
func (g Guard) EnsureValue(v any, metadata map[string]string) error {
	return g.EnsureValidSize(
		func() int64 { return UpperBound(v) },
		func() (int64, error) { return ExactSize(v, g.Limit) },
		metadata,
	)
}

// UpperBound returns a cheap upper bound of the serialized size of v.
// Strings are bounded by six bytes per input byte, the worst case of
// \u00XX escaping.
func UpperBound(v any) int64 {
	switch val := v.(type) {
	case nil:
		return 4
	case bool:
		return 5
	case string:
		return int64(len(val))*6 + 2
	case json.Number:
		return int64(len(val))
	case float64, float32, int, int64, int32, uint64, uint32:
		return 32
	case map[string]any:
		size := int64(2)
		for k, item := range val {
			size += int64(len(k))*6 + 2 + 1 + UpperBound(item) + 1
		}
		return size
	case []any:
		size := int64(2)
		for _, item := range val {
			size += UpperBound(item) + 1
		}
		return size
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return 0
		}
		return int64(len(data))
	}
}

// ExactSize measures the serialized length of v. Measurement stops once more
// than limit bytes have been produced; the returned size is then limit+1,
// which callers treat as "over the limit".
func ExactSize(v any, limit int64) (int64, error) {
	c := &counter{limit: limit}
	err := c.value(v)
	if errors.Is(err, errLimitReached) {
		return limit + 1, nil
	}
	if err != nil {
		return 0, err
	}
	return c.n, nil
}

type counter struct {
	n     int64
	limit int64
}

func (c *counter) add(n int) error {
	c.n += int64(n)
	if c.limit > 0 && c.n > c.limit {
		return errLimitReached
	}
	return nil
}

func (c *counter) value(v any) error {
	switch val := v.(type) {
	case map[string]any:
		if err := c.add(2 + max(len(val)-1, 0)); err != nil {
			return err
		}
		for k, item := range val {
			if err := c.scalar(k); err != nil {
				return err
			}
			if err := c.add(1); err != nil {
				return err
			}
			if err := c.value(item); err != nil {
				return err
			}
		}
		return nil
	case []any:
		if err := c.add(2 + max(len(val)-1, 0)); err != nil {
			return err
		}
		for _, item := range val {
			if err := c.value(item); err != nil {
				return err
			}
		}
		return nil
	default:
		return c.scalar(val)
	}
}

func (c *counter) scalar(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.add(len(data))
}
