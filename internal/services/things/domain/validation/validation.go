// Package validation connects the things engine to structural validation of
// thing payloads against their models.
//
// Validator is the external contract. Adapter runs a Validator as an
// asynchronous task inside a tracing span and converts failures into domain
// errors. ModelValidator is the reference Validator checking things against
// WoT Thing Models under the effective WoT validation configuration.
package validation

import (
	"context"
	"errors"

	"github.com/louisbranch/twinworks/internal/services/things/domain/command"
	"github.com/louisbranch/twinworks/internal/services/things/domain/resource"
	"github.com/louisbranch/twinworks/internal/services/things/domain/thing"
)

// ErrInvalid indicates a payload that does not match its model.
var ErrInvalid = errors.New("payload does not match its model")

// Request describes one structural validation.
type Request struct {
	ThingID      string
	CommandType  command.Type
	Definition   string
	ResourcePath resource.Path
	// Value is the payload written at ResourcePath.
	Value any
	// Previous is the thing before the command; nil when it did not exist.
	Previous *thing.Thing
	// Preview is the thing as it would be after the command.
	Preview *thing.Thing
	Headers command.Headers
}

// Validator validates a request. A nil error means the payload is valid.
type Validator interface {
	Validate(ctx context.Context, req Request) error
}

// Func adapts a function to Validator.
type Func func(ctx context.Context, req Request) error

// Validate implements Validator.
func (f Func) Validate(ctx context.Context, req Request) error {
	return f(ctx, req)
}
