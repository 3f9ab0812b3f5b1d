package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/louisbranch/twinworks/internal/services/things/domain/event"
	"github.com/louisbranch/twinworks/internal/services/things/domain/strategy"
	"github.com/louisbranch/twinworks/internal/services/things/domain/wotconfig"
)

func newTestRuntime(t *testing.T, opts Options) *Runtime {
	t.Helper()
	if opts.Node == "" {
		opts.Node = "test"
	}
	rt, err := New(context.Background(), opts)
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	t.Cleanup(func() {
		if err := rt.Close(); err != nil {
			t.Fatalf("close runtime: %v", err)
		}
	})
	return rt
}

func run(t *testing.T, rt *Runtime, input string) []gjson.Result {
	t.Helper()
	var out bytes.Buffer
	rn := &Runner{Things: rt.Things, Configs: rt.Configs}
	if err := rn.Run(context.Background(), strings.NewReader(input), &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	var answers []gjson.Result
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if !gjson.Valid(line) {
			t.Fatalf("answer is not JSON: %q", line)
		}
		answers = append(answers, gjson.Parse(line))
	}
	return answers
}

func TestRunnerRequiresThingHandler(t *testing.T) {
	rn := &Runner{}
	if err := rn.Run(context.Background(), strings.NewReader(""), &bytes.Buffer{}); !errors.Is(err, ErrNoHandler) {
		t.Fatalf("expected ErrNoHandler, got %v", err)
	}
}

func TestRunnerThingLifecycle(t *testing.T) {
	rt := newTestRuntime(t, Options{})
	answers := run(t, rt, strings.Join([]string{
		`{"type":"things.commands:createThing","thingId":"org.acme:lamp","path":"/","value":{"policyId":"org.acme:policy","attributes":{"location":"hall"}}}`,
		``,
		`{"type":"things.commands:modifyAttribute","thingId":"org.acme:lamp","path":"/attributes/location","value":"kitchen","headers":{"If-Match":"\"rev:1\""}}`,
		`{"type":"things.commands:retrieveThing","thingId":"org.acme:lamp","path":"/"}`,
	}, "\n"))
	if len(answers) != 3 {
		t.Fatalf("answers = %d, want 3", len(answers))
	}
	if got := answers[0].Get("result").String(); got != "mutation" {
		t.Fatalf("create result = %s", answers[0].Raw)
	}
	if got := answers[0].Get("event.revision").Int(); got != 1 {
		t.Fatalf("create event revision = %d", got)
	}
	if got := answers[1].Get("status").String(); got != "modified" {
		t.Fatalf("modify answer = %s", answers[1].Raw)
	}
	if got := answers[2].Get("payload.attributes.location").String(); got != "kitchen" {
		t.Fatalf("retrieve answer = %s", answers[2].Raw)
	}
	if got := answers[2].Get("headers.etag").String(); got != `"rev:2"` {
		t.Fatalf("etag = %q", got)
	}
}

func TestRunnerLocalizesErrors(t *testing.T) {
	rt := newTestRuntime(t, Options{})
	answers := run(t, rt, strings.Join([]string{
		`{"type":"things.commands:retrieveThing","thingId":"org.acme:missing","path":"/","headers":{"accept-language":"de-DE,de;q=0.9"}}`,
		`{"type":"things.commands:retrieveThing","thingId":"org.acme:missing","path":"/","headers":{"correlation-id":"c-7"}}`,
		`{"type":`,
	}, "\n"))
	if len(answers) != 3 {
		t.Fatalf("answers = %d, want 3", len(answers))
	}
	de := answers[0]
	if de.Get("error.code").String() != "THING_NOT_FOUND" || de.Get("error.kind").String() != "not_found" {
		t.Fatalf("german answer = %s", de.Raw)
	}
	if got := de.Get("error.description").String(); got != "Das Thing mit der ID 'org.acme:missing' wurde nicht gefunden." {
		t.Fatalf("german description = %q", got)
	}
	if got := answers[1].Get("error.description").String(); got != "The Thing with ID 'org.acme:missing' could not be found." {
		t.Fatalf("english description = %q", got)
	}
	if got := answers[1].Get("correlationId").String(); got != "c-7" {
		t.Fatalf("correlation id = %q", got)
	}
	if got := de.Get("error.status").Int(); got != 404 {
		t.Fatalf("status = %d, want 404", got)
	}
	if got := de.Get("error.grpcCode").String(); got != "NotFound" {
		t.Fatalf("grpc code = %q, want NotFound", got)
	}
	if got := de.Get("error.info.reason").String(); got != "THING_NOT_FOUND" {
		t.Fatalf("error info = %s", de.Get("error.info").Raw)
	}
	if got := de.Get("error.info.metadata.ThingID").String(); got != "org.acme:missing" {
		t.Fatalf("error info metadata = %s", de.Get("error.info.metadata").Raw)
	}
	if got := answers[2].Get("error.code").String(); got != "THING_PAYLOAD_INVALID" {
		t.Fatalf("malformed answer = %s", answers[2].Raw)
	}
}

func TestEncodeResultLogsUnencodableEvent(t *testing.T) {
	var logs bytes.Buffer
	rn := &Runner{Logger: slog.New(slog.NewTextHandler(&logs, nil))}
	res := strategy.Mutation{
		Event:    event.Event{ThingID: "org.acme:lamp", Revision: 2, Value: make(chan int)},
		Response: strategy.Response{CommandType: "things.commands:modifyAttribute", EntityID: "org.acme:lamp"},
	}
	answer := gjson.ParseBytes(rn.encodeResult(context.Background(), res, ""))
	if answer.Get("result").String() != "mutation" || answer.Get("event").Exists() {
		t.Fatalf("answer = %s", answer.Raw)
	}
	if !strings.Contains(logs.String(), "event omitted from answer") {
		t.Fatalf("logs = %q", logs.String())
	}
}

func TestRunnerUnknownCommandIsEmpty(t *testing.T) {
	rt := newTestRuntime(t, Options{})
	answers := run(t, rt, `{"type":"things.commands:launchThing","thingId":"org.acme:lamp","path":"/"}`)
	if got := answers[0].Get("result").String(); got != "empty" {
		t.Fatalf("answer = %s", answers[0].Raw)
	}
}

func TestRunnerConfigCommands(t *testing.T) {
	rt := newTestRuntime(t, Options{})
	answers := run(t, rt, strings.Join([]string{
		`{"type":"wot-validation-config.commands:createWotValidationConfig","value":{"enabled":false}}`,
		`{"type":"wot-validation-config.commands:retrieveWotValidationConfig"}`,
	}, "\n"))
	if got := answers[0].Get("result").String(); got != "mutation" {
		t.Fatalf("create config = %s", answers[0].Raw)
	}
	if got := answers[1].Get("headers.etag").String(); got != `"rev:1"` {
		t.Fatalf("retrieve config = %s", answers[1].Raw)
	}
}

func TestRuntimeGossipsConfigToPeers(t *testing.T) {
	peer := newTestRuntime(t, Options{Node: "b"})
	rt := newTestRuntime(t, Options{Node: "a", WriteConsistency: "local", GossipInterval: 10 * time.Millisecond})

	run(t, rt, `{"type":"wot-validation-config.commands:createWotValidationConfig","value":{"enabled":false}}`)
	if _, ok := peer.Replicator.ReadLocal(wotconfig.StoreKey); ok {
		t.Fatal("peer has config before being connected")
	}
	rt.Replicator.AddPeer(peer.Replicator)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if state, ok := peer.Replicator.ReadLocal(wotconfig.StoreKey); ok && state.Len() == 1 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("gossip did not reach the peer")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRuntimePersistsJournal(t *testing.T) {
	dir := t.TempDir()
	opts := Options{DBPath: filepath.Join(dir, "db", "things.db")}

	first, err := New(context.Background(), opts)
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	run(t, first, `{"type":"things.commands:createThing","thingId":"org.acme:lamp","path":"/","value":{"policyId":"p"}}`)
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second := newTestRuntime(t, opts)
	answers := run(t, second, `{"type":"things.commands:retrieveThing","thingId":"org.acme:lamp","path":"/"}`)
	if got := answers[0].Get("payload.policyId").String(); got != "p" {
		t.Fatalf("retrieve after reopen = %s", answers[0].Raw)
	}
}

func TestLoadModels(t *testing.T) {
	dir := t.TempDir()
	model := `{"@context":"https://www.w3.org/2022/wot/td/v1.1","@type":"tm:ThingModel","id":"https://models.acme.org/lamp-1.0.0.tm.jsonld","title":"Lamp"}`
	if err := os.WriteFile(filepath.Join(dir, "lamp.json"), []byte(model), 0o600); err != nil {
		t.Fatalf("write model: %v", err)
	}
	registry, err := LoadModels(dir)
	if err != nil {
		t.Fatalf("load models: %v", err)
	}
	if _, err := registry.Resolve(context.Background(), "https://models.acme.org/lamp-1.0.0.tm.jsonld"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	empty, err := LoadModels("")
	if err != nil || empty == nil {
		t.Fatalf("empty dir = %v, %v", empty, err)
	}
}
