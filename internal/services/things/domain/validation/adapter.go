package validation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/twinworks/internal/platform/async"
	apperrors "github.com/louisbranch/twinworks/internal/platform/errors"
	"github.com/louisbranch/twinworks/internal/platform/telemetry/metrics"
)

const tracerName = "github.com/louisbranch/twinworks/internal/services/things/domain/validation"

// Adapter runs a Validator asynchronously.
type Adapter struct {
	validator Validator
	tracer    trace.Tracer
	metrics   *metrics.Recorder
	timeout   time.Duration
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithTracer sets the tracer used for validation spans.
func WithTracer(tracer trace.Tracer) AdapterOption {
	return func(a *Adapter) {
		if tracer != nil {
			a.tracer = tracer
		}
	}
}

// WithMetrics records validation outcomes on recorder.
func WithMetrics(recorder *metrics.Recorder) AdapterOption {
	return func(a *Adapter) {
		a.metrics = recorder
	}
}

// WithTimeout bounds a single validation. Zero means no bound.
func WithTimeout(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		a.timeout = d
	}
}

// NewAdapter wraps validator. A nil validator accepts everything.
func NewAdapter(validator Validator, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		validator: validator,
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Validate starts the validation of req. The returned task fails with a
// VALIDATION_FAILED domain error carrying the validator error as cause.
func (a *Adapter) Validate(ctx context.Context, req Request) *async.Task[struct{}] {
	if a == nil || a.validator == nil {
		return async.Completed(struct{}{})
	}
	ctx, span := a.tracer.Start(ctx, "things.validate",
		trace.WithAttributes(
			attribute.String("thing.id", req.ThingID),
			attribute.String("thing.command", string(req.CommandType)),
			attribute.String("thing.resource_path", req.ResourcePath.String()),
			attribute.String("thing.definition", req.Definition),
		))
	task := async.Go(ctx, func(ctx context.Context) (struct{}, error) {
		if a.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, a.timeout)
			defer cancel()
		}
		if err := a.validator.Validate(ctx, req); err != nil {
			return struct{}{}, failed(req, err)
		}
		return struct{}{}, nil
	})
	return async.Finally(ctx, task, func(_ struct{}, err error) {
		defer span.End()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			a.metrics.ObserveValidation("failed")
			return
		}
		a.metrics.ObserveValidation("passed")
	})
}

func failed(req Request, cause error) error {
	meta := map[string]string{
		"ThingID": req.ThingID,
		"Path":    req.ResourcePath.String(),
		"Reason":  cause.Error(),
	}
	if id := req.Headers.CorrelationID(); id != "" {
		meta[apperrors.MetadataCorrelationID] = id
	}
	return apperrors.WrapWithMetadata(apperrors.CodeValidationFailed,
		fmt.Sprintf("validation of %s on thing %s failed", req.ResourcePath, req.ThingID), meta, cause)
}
