package strategy

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/twinworks/internal/platform/async"
)

const tracerName = "github.com/louisbranch/twinworks/internal/services/things/domain/strategy"

// ErrHandlerRequired indicates a nil handler registration.
var ErrHandlerRequired = errors.New("strategy handler is required")

// Handler answers one command type for entities of state S receiving
// commands C.
type Handler[S, C any] interface {
	// IsDefined reports whether the handler applies to the current state.
	IsDefined(sc Context, current S, cmd C) bool
	// Apply produces the result. It must not modify current.
	Apply(ctx context.Context, sc Context, current S, cmd C) *async.Task[Result]
	// Unhandled answers a command the handler does not apply to.
	Unhandled(sc Context, current S, cmd C) Result
}

// Dispatcher resolves the handler of a command and runs it.
type Dispatcher[S, C any] struct {
	typeOf       func(C) string
	handlers     map[string]Handler[S, C]
	interceptors []Handler[S, C]
	tracer       trace.Tracer
}

// NewDispatcher creates a dispatcher keyed by typeOf.
func NewDispatcher[S, C any](typeOf func(C) string) *Dispatcher[S, C] {
	return &Dispatcher[S, C]{
		typeOf:   typeOf,
		handlers: make(map[string]Handler[S, C]),
		tracer:   otel.Tracer(tracerName),
	}
}

// SetTracer replaces the tracer used for dispatch spans.
func (d *Dispatcher[S, C]) SetTracer(tracer trace.Tracer) {
	if tracer != nil {
		d.tracer = tracer
	}
}

// Register binds h to cmdType.
func (d *Dispatcher[S, C]) Register(cmdType string, h Handler[S, C]) error {
	if h == nil {
		return ErrHandlerRequired
	}
	if _, exists := d.handlers[cmdType]; exists {
		return fmt.Errorf("strategy already registered: %s", cmdType)
	}
	d.handlers[cmdType] = h
	return nil
}

// Intercept adds a handler consulted before the handler of the command
// type. The first interceptor that is defined answers the command.
func (d *Dispatcher[S, C]) Intercept(h Handler[S, C]) error {
	if h == nil {
		return ErrHandlerRequired
	}
	d.interceptors = append(d.interceptors, h)
	return nil
}

// Handles reports whether a handler is registered for cmdType.
func (d *Dispatcher[S, C]) Handles(cmdType string) bool {
	_, ok := d.handlers[cmdType]
	return ok
}

// Dispatch answers cmd against current.
func (d *Dispatcher[S, C]) Dispatch(ctx context.Context, sc Context, current S, cmd C) *async.Task[Result] {
	cmdType := d.typeOf(cmd)
	ctx, span := d.tracer.Start(ctx, "things.dispatch", trace.WithAttributes(
		attribute.String("command.type", cmdType),
		attribute.String("entity.id", sc.EntityID),
		attribute.Int64("entity.next_revision", sc.NextRevision),
	))
	task := d.dispatch(ctx, sc, current, cmd, cmdType)
	return async.Finally(ctx, task, func(res Result, err error) {
		if err != nil {
			span.RecordError(err)
		} else {
			span.SetAttributes(attribute.String("result.kind", Kind(res)))
		}
		span.End()
	})
}

func (d *Dispatcher[S, C]) dispatch(ctx context.Context, sc Context, current S, cmd C, cmdType string) *async.Task[Result] {
	for _, h := range d.interceptors {
		if h.IsDefined(sc, current, cmd) {
			return h.Apply(ctx, sc, current, cmd)
		}
	}
	h, ok := d.handlers[cmdType]
	if !ok {
		return async.Completed[Result](Empty{CommandType: cmdType})
	}
	if !h.IsDefined(sc, current, cmd) {
		res := h.Unhandled(sc, current, cmd)
		if res == nil {
			res = Unhandled{CommandType: cmdType}
		}
		return async.Completed(res)
	}
	return h.Apply(ctx, sc, current, cmd)
}
