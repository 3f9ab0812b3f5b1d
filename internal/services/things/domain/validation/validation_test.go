package validation

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	apperrors "github.com/louisbranch/twinworks/internal/platform/errors"
	"github.com/louisbranch/twinworks/internal/services/things/domain/command"
	"github.com/louisbranch/twinworks/internal/services/things/domain/core/jsonvalue"
	"github.com/louisbranch/twinworks/internal/services/things/domain/resource"
	"github.com/louisbranch/twinworks/internal/services/things/domain/thing"
	"github.com/louisbranch/twinworks/internal/services/things/domain/wot"
	"github.com/louisbranch/twinworks/internal/services/things/domain/wotconfig"
)

const lampDefinition = "https://models.example/lamp-1.0.0.tm.jsonld"

func models() *wot.Registry {
	return wot.NewRegistry(
		wot.Model{
			ID:         lampDefinition,
			Properties: map[string]wot.Property{"serial": {Type: wot.TypeString}},
			Required:   []string{"#/properties/serial"},
			Links:      []wot.Link{{Rel: wot.RelSubmodel, Href: "https://models.example/switch-1.0.0.tm.jsonld", InstanceName: "switch"}},
		},
		wot.Model{
			ID:         "https://models.example/switch-1.0.0.tm.jsonld",
			Properties: map[string]wot.Property{"on": {Type: wot.TypeBoolean}},
		},
	)
}

func request(t *testing.T, kind resource.Kind, featureID string, data string) Request {
	t.Helper()
	tree, err := jsonvalue.Decode([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	preview, err := thing.FromData("org.acme:lamp", tree)
	if err != nil {
		t.Fatal(err)
	}
	path, err := resource.For(kind, featureID, nil)
	if err != nil {
		t.Fatal(err)
	}
	return Request{ThingID: "org.acme:lamp", ResourcePath: path, Preview: &preview, Headers: command.Headers{}}
}

func TestModelValidatorAcceptsMatchingThing(t *testing.T) {
	v := NewModelValidator(models(), nil, nil, nil)
	req := request(t, resource.KindThing, "", `{"definition":"`+lampDefinition+`","attributes":{"serial":"x"},"features":{"switch":{"properties":{"on":true}}}}`)
	if err := v.Validate(context.Background(), req); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestModelValidatorRejectsMismatch(t *testing.T) {
	v := NewModelValidator(models(), nil, nil, nil)
	req := request(t, resource.KindThing, "", `{"definition":"`+lampDefinition+`","attributes":{},"features":{"switch":{"properties":{"on":"yes"}}}}`)
	err := v.Validate(context.Background(), req)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("Validate error = %v, want ErrInvalid", err)
	}
}

func TestModelValidatorScopesToFeature(t *testing.T) {
	v := NewModelValidator(models(), nil, nil, nil)
	// attributes miss the required serial, but only the feature is addressed
	req := request(t, resource.KindFeatureProperties, "switch", `{"definition":"`+lampDefinition+`","attributes":{},"features":{"switch":{"properties":{"on":false}}}}`)
	if err := v.Validate(context.Background(), req); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestModelValidatorLogWarning(t *testing.T) {
	cfg := wotconfig.Defaults()
	warn := true
	cfg.LogWarningInsteadOfFailingAPICalls = &warn
	v := NewModelValidator(models(), StaticConfig(cfg), nil, nil)
	req := request(t, resource.KindThing, "", `{"definition":"`+lampDefinition+`","attributes":{"serial":1}}`)
	if err := v.Validate(context.Background(), req); err != nil {
		t.Fatalf("Validate: %v, want warning only", err)
	}
}

func TestModelValidatorDisabledByDynamicSection(t *testing.T) {
	disabled := false
	cfg := wotconfig.Defaults()
	cfg.DynamicConfigs = []wotconfig.DynamicSection{{
		ScopeID:           "lamps",
		ValidationContext: wotconfig.ValidationContext{ThingDefinitionPatterns: []string{`^https://models\.example/lamp-.*$`}},
		ConfigOverrides:   wotconfig.Overrides{Enabled: &disabled},
	}}
	v := NewModelValidator(models(), StaticConfig(cfg), nil, nil)
	req := request(t, resource.KindThing, "", `{"definition":"`+lampDefinition+`","attributes":{"serial":1}}`)
	if err := v.Validate(context.Background(), req); err != nil {
		t.Fatalf("Validate: %v, want skipped", err)
	}
}

func TestModelValidatorSkipsUnknownModel(t *testing.T) {
	v := NewModelValidator(models(), nil, nil, nil)
	req := request(t, resource.KindThing, "", `{"definition":"https://models.example/unknown-1.tm.jsonld","attributes":{"serial":1}}`)
	if err := v.Validate(context.Background(), req); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestAdapterMarksSpanFailed(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	boom := errors.New("schema mismatch")
	adapter := NewAdapter(Func(func(context.Context, Request) error { return boom }),
		WithTracer(provider.Tracer("test")))

	req := request(t, resource.KindThing, "", `{}`)
	_, err := adapter.Validate(context.Background(), req).Await(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Await error = %v, want cause attached", err)
	}
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) || domainErr.Code != apperrors.CodeValidationFailed {
		t.Fatalf("Await error = %v, want VALIDATION_FAILED", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Fatalf("span status = %v, want error", spans[0].Status())
	}
	if len(spans[0].Events()) == 0 {
		t.Fatal("expected recorded error event")
	}
}

func TestAdapterSuccessEndsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	adapter := NewAdapter(Func(func(context.Context, Request) error { return nil }),
		WithTracer(provider.Tracer("test")))

	if _, err := adapter.Validate(context.Background(), request(t, resource.KindThing, "", `{}`)).Await(context.Background()); err != nil {
		t.Fatalf("Await: %v", err)
	}
	spans := recorder.Ended()
	if len(spans) != 1 || spans[0].Status().Code == codes.Error {
		t.Fatalf("spans = %v", spans)
	}
}

func TestNilAdapterAcceptsEverything(t *testing.T) {
	var adapter *Adapter
	if _, err := adapter.Validate(context.Background(), Request{}).Await(context.Background()); err != nil {
		t.Fatalf("Await: %v", err)
	}
}
