package strategy

import (
	"context"
	"errors"

	"github.com/louisbranch/twinworks/internal/platform/async"
	apperrors "github.com/louisbranch/twinworks/internal/platform/errors"
	"github.com/louisbranch/twinworks/internal/services/things/domain/command"
	"github.com/louisbranch/twinworks/internal/services/things/domain/core/jsonvalue"
	"github.com/louisbranch/twinworks/internal/services/things/domain/event"
)

// Status summarizes what a command did to its resource.
type Status string

const (
	StatusOK       Status = "ok"
	StatusCreated  Status = "created"
	StatusModified Status = "modified"
	StatusDeleted  Status = "deleted"
)

// Response is the answer sent back to the command issuer.
type Response struct {
	CommandType command.Type
	EntityID    string
	Path        jsonvalue.Pointer
	Status      Status
	Payload     any
	// Metadata holds the entries requested by get-metadata, keyed by
	// pointer relative to Path.
	Metadata map[string]any
	Headers  command.Headers
}

// Result is the outcome of dispatching a command.
type Result interface {
	isResult()
}

// Mutation carries the event to persist and the response to send once it
// is persisted.
type Mutation struct {
	Event    event.Event
	Response Response
	// BecomeCreated reports that the entity starts to exist.
	BecomeCreated bool
	// BecomeDeleted reports that the entity stops to exist.
	BecomeDeleted bool
}

// Query carries a response without state change.
type Query struct {
	Response Response
}

// Error carries a domain error.
type Error struct {
	Err *apperrors.Error
}

// Kind returns the error taxonomy kind.
func (e Error) Kind() apperrors.Kind {
	return e.Err.Kind()
}

// Unhandled marks a command the dispatcher matched but nothing answered.
type Unhandled struct {
	CommandType string
}

// Empty marks a command without a registered strategy.
type Empty struct {
	CommandType string
}

func (Mutation) isResult()  {}
func (Query) isResult()     {}
func (Error) isResult()     {}
func (Unhandled) isResult() {}
func (Empty) isResult()     {}

// Kind names the variant of r for logs and metrics.
func Kind(r Result) string {
	switch v := r.(type) {
	case Mutation:
		return "mutation"
	case Query:
		return "query"
	case Error:
		return string(v.Kind())
	case Unhandled:
		return "unhandled"
	case Empty:
		return "empty"
	}
	return "unknown"
}

// Fail builds an Error result from err. Non-domain errors become internal
// errors. The correlation id of headers is attached when missing.
func Fail(headers command.Headers, err error) Error {
	domainErr := apperrors.As(err)
	if id := headers.CorrelationID(); id != "" && domainErr.CorrelationID() == "" {
		domainErr = domainErr.With(apperrors.MetadataCorrelationID, id)
	}
	return Error{Err: domainErr}
}

// DryRun turns a Mutation into a Query answering with the same response so
// nothing is persisted. Other results are returned unchanged.
func DryRun(r Result) Result {
	m, ok := r.(Mutation)
	if !ok {
		return r
	}
	resp := m.Response
	resp.Headers = resp.Headers.With(command.HeaderDryRun, "true")
	return Query{Response: resp}
}

// settle resolves a task failure into an Error result. Context errors are
// kept so the caller can tell a timeout from a domain failure.
func settle(ctx context.Context, headers command.Headers, task *async.Task[Result]) *async.Task[Result] {
	return async.Go(ctx, func(ctx context.Context) (Result, error) {
		res, err := task.Await(ctx)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return Fail(headers, err), nil
	})
}
