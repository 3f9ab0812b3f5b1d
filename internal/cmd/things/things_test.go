package things

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig(flag.NewFlagSet("things", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.MaxThingSize != 102400 {
		t.Fatalf("max thing size = %d", cfg.MaxThingSize)
	}
	if cfg.WriteConsistency != "all" || cfg.SnapshotEvery != 50 || cfg.GossipInterval != 5*time.Second {
		t.Fatalf("config = %+v", cfg)
	}
	if cfg.CommandTimeout <= 0 || cfg.ValidationTimeout <= 0 {
		t.Fatalf("timeouts = %s, %s", cfg.CommandTimeout, cfg.ValidationTimeout)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("TWINWORKS_THING_MAX_SIZE", "2048")
	t.Setenv("TWINWORKS_COMMAND_TIMEOUT", "3s")
	cfg, err := ParseConfig(flag.NewFlagSet("things", flag.ContinueOnError), []string{"-snapshot-interval", "7", "-pretty"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.MaxThingSize != 2048 || cfg.SnapshotEvery != 7 || !cfg.Pretty {
		t.Fatalf("config = %+v", cfg)
	}
	if cfg.CommandTimeout != 3*time.Second {
		t.Fatalf("timeout = %s", cfg.CommandTimeout)
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := NewLogger("loud"); err == nil {
		t.Fatal("expected level error")
	}
	if _, err := NewLogger("debug"); err != nil {
		t.Fatalf("debug level: %v", err)
	}
}

func TestRunAnswersInputFile(t *testing.T) {
	t.Setenv("TWINWORKS_OTEL_ENABLED", "false")
	dir := t.TempDir()
	input := filepath.Join(dir, "commands.ndjson")
	if err := os.WriteFile(input, []byte(`{"type":"things.commands:createThing","thingId":"org.acme:lamp","path":"/","value":{"policyId":"p"}}`+"\n"), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}
	cfg := Config{
		Node:             "test",
		DBPath:           filepath.Join(dir, "things.db"),
		WriteConsistency: "local",
		LogLevel:         "error",
		Input:            input,
	}
	var out bytes.Buffer
	if err := Run(context.Background(), cfg, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), `"result":"mutation"`) {
		t.Fatalf("output = %s", out.String())
	}
}
