// Package things parses things engine flags and runs the NDJSON command
// runner.
package things

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	entrypoint "github.com/louisbranch/twinworks/internal/platform/cmd"
	"github.com/louisbranch/twinworks/internal/platform/timeouts"
	"github.com/louisbranch/twinworks/internal/services/things/app"
)

// Config holds things command configuration.
type Config struct {
	Node              string        `env:"TWINWORKS_NODE"`
	DBPath            string        `env:"TWINWORKS_THINGS_DB_PATH" envDefault:"data/things.db"`
	ReplicaPath       string        `env:"TWINWORKS_REPLICA_PATH" envDefault:"data/replica"`
	ModelsDir         string        `env:"TWINWORKS_THING_MODELS_DIR"`
	StaticConfigPath  string        `env:"TWINWORKS_WOT_CONFIG_PATH"`
	WriteConsistency  string        `env:"TWINWORKS_WRITE_CONSISTENCY" envDefault:"all"`
	GossipInterval    time.Duration `env:"TWINWORKS_GOSSIP_INTERVAL" envDefault:"5s"`
	MaxThingSize      int64         `env:"TWINWORKS_THING_MAX_SIZE" envDefault:"102400"`
	SnapshotEvery     int64         `env:"TWINWORKS_SNAPSHOT_INTERVAL" envDefault:"50"`
	RequirePolicyID   bool          `env:"TWINWORKS_REQUIRE_POLICY_ID"`
	CommandTimeout    time.Duration `env:"TWINWORKS_COMMAND_TIMEOUT"`
	ValidationTimeout time.Duration `env:"TWINWORKS_VALIDATION_TIMEOUT"`
	MetricsAddr       string        `env:"TWINWORKS_METRICS_ADDR"`
	LogLevel          string        `env:"TWINWORKS_LOG_LEVEL" envDefault:"info"`
	Input             string
	Pretty            bool
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = timeouts.Request
	}
	if cfg.ValidationTimeout <= 0 {
		cfg.ValidationTimeout = timeouts.Validation
	}
	fs.StringVar(&cfg.Node, "node", cfg.Node, "Replica name of this node (defaults to the hostname)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite journal path; empty keeps the journal in memory")
	fs.StringVar(&cfg.ReplicaPath, "replica", cfg.ReplicaPath, "Badger directory for replicated state; empty keeps it in memory")
	fs.StringVar(&cfg.ModelsDir, "models", cfg.ModelsDir, "Directory of WoT Thing Model JSON files")
	fs.StringVar(&cfg.StaticConfigPath, "wot-config", cfg.StaticConfigPath, "Static WoT validation config YAML")
	fs.StringVar(&cfg.WriteConsistency, "write-consistency", cfg.WriteConsistency, "Replicated write consistency: local, majority or all")
	fs.Int64Var(&cfg.MaxThingSize, "max-thing-size", cfg.MaxThingSize, "Maximum thing size in bytes; 0 disables the limit")
	fs.Int64Var(&cfg.SnapshotEvery, "snapshot-interval", cfg.SnapshotEvery, "Snapshot every N revisions; 0 disables snapshots")
	fs.BoolVar(&cfg.RequirePolicyID, "require-policy-id", cfg.RequirePolicyID, "Reject created things without policy id")
	fs.DurationVar(&cfg.CommandTimeout, "timeout", cfg.CommandTimeout, "Per-command timeout")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus listener address")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	fs.StringVar(&cfg.Input, "input", "", "NDJSON command file (defaults to stdin)")
	fs.BoolVar(&cfg.Pretty, "pretty", false, "Indent answers")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// NewLogger builds the structured logger writing to stderr.
func NewLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

// Run reads commands from cfg.Input and answers on out.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	logger, err := NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	options := entrypoint.RunOptions{MetricsAddr: cfg.MetricsAddr, Logger: logger}
	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServiceThings, options, func(ctx context.Context) error {
		rt, err := app.New(ctx, app.Options{
			Node:              cfg.Node,
			DBPath:            cfg.DBPath,
			ReplicaPath:       cfg.ReplicaPath,
			ModelsDir:         cfg.ModelsDir,
			StaticConfigPath:  cfg.StaticConfigPath,
			WriteConsistency:  cfg.WriteConsistency,
			GossipInterval:    cfg.GossipInterval,
			MaxThingSize:      cfg.MaxThingSize,
			SnapshotEvery:     cfg.SnapshotEvery,
			RequirePolicyID:   cfg.RequirePolicyID,
			CommandTimeout:    cfg.CommandTimeout,
			ValidationTimeout: cfg.ValidationTimeout,
			Registerer:        prometheus.DefaultRegisterer,
			Logger:            logger,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := rt.Close(); err != nil {
				logger.Error("close runtime", "error", err)
			}
		}()

		var in io.Reader = os.Stdin
		if cfg.Input != "" {
			f, err := os.Open(cfg.Input)
			if err != nil {
				return fmt.Errorf("open input: %w", err)
			}
			defer f.Close()
			in = f
		}
		runner := &app.Runner{Things: rt.Things, Configs: rt.Configs, Pretty: cfg.Pretty, Logger: logger}
		return runner.Run(ctx, in, out)
	})
}
