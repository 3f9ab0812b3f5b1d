// Package app wires the things engine runtime: storage, replication,
// validation and the command handlers.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"github.com/louisbranch/twinworks/internal/platform/ddata"
	"github.com/louisbranch/twinworks/internal/platform/telemetry/metrics"
	"github.com/louisbranch/twinworks/internal/services/things/domain/checkpoint"
	"github.com/louisbranch/twinworks/internal/services/things/domain/command"
	"github.com/louisbranch/twinworks/internal/services/things/domain/engine"
	"github.com/louisbranch/twinworks/internal/services/things/domain/journal"
	"github.com/louisbranch/twinworks/internal/services/things/domain/sizeguard"
	"github.com/louisbranch/twinworks/internal/services/things/domain/strategy"
	"github.com/louisbranch/twinworks/internal/services/things/domain/validation"
	"github.com/louisbranch/twinworks/internal/services/things/domain/wot"
	"github.com/louisbranch/twinworks/internal/services/things/domain/wotconfig"
	thingsqlite "github.com/louisbranch/twinworks/internal/services/things/storage/sqlite"
)

const tracerName = "github.com/louisbranch/twinworks/things"

// Options configures a Runtime.
type Options struct {
	// Node names this replica of the WoT config store.
	Node string
	// DBPath is the SQLite journal. Empty keeps the journal in memory.
	DBPath string
	// ReplicaPath is the badger directory for replicated state. Empty keeps
	// it in memory.
	ReplicaPath string
	// ModelsDir holds WoT Thing Model JSON documents.
	ModelsDir string
	// StaticConfigPath is the YAML fallback for the WoT validation config.
	StaticConfigPath string
	WriteConsistency string
	// Peers are the other replicas of the WoT config store.
	Peers []ddata.Peer
	// GossipInterval is how often local replicated state is pushed to
	// peers. Zero disables gossip.
	GossipInterval    time.Duration
	MaxThingSize      int64
	SnapshotEvery     int64
	RequirePolicyID   bool
	CommandTimeout    time.Duration
	ValidationTimeout time.Duration
	// Registerer receives the engine metrics. Nil disables them.
	Registerer prometheus.Registerer
	Logger     *slog.Logger
}

// Runtime holds the wired command handlers.
type Runtime struct {
	Things     *engine.Handler
	Configs    *engine.ConfigHandler
	Replicator *ddata.Replicator

	closers []func() error
}

// New builds a Runtime. Close releases its storage.
func New(ctx context.Context, opts Options) (_ *Runtime, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	var recorder *metrics.Recorder
	if opts.Registerer != nil {
		recorder = metrics.NewRecorder(opts.Registerer)
	}
	tracer := otel.Tracer(tracerName)

	consistency, err := ddata.ParseConsistency(opts.WriteConsistency, wotconfig.DefaultWriteTimeout)
	if err != nil {
		return nil, err
	}
	replicaOpts := []ddata.Option{
		ddata.WithLogger(logger),
		ddata.WithMetrics(recorder),
		ddata.WithTracer(tracer),
	}
	badgerStore, err := ddata.OpenBadger(ddata.BadgerConfig{
		Path:     opts.ReplicaPath,
		InMemory: strings.TrimSpace(opts.ReplicaPath) == "",
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open replica store: %w", err)
	}
	rt.closers = append(rt.closers, badgerStore.Close)
	replicaOpts = append(replicaOpts, ddata.WithDurableStore(badgerStore))

	node := strings.TrimSpace(opts.Node)
	if node == "" {
		node, _ = os.Hostname()
	}
	replicator, err := ddata.NewReplicator(ctx, node, replicaOpts...)
	if err != nil {
		return nil, fmt.Errorf("start replicator: %w", err)
	}
	for _, peer := range opts.Peers {
		replicator.AddPeer(peer)
	}
	rt.Replicator = replicator
	if opts.GossipInterval > 0 {
		gossipCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
		done := make(chan struct{})
		go func() {
			defer close(done)
			replicator.RunGossip(gossipCtx, opts.GossipInterval)
		}()
		rt.closers = append(rt.closers, func() error {
			stop()
			<-done
			return nil
		})
	}

	static, err := wotconfig.LoadStatic(opts.StaticConfigPath)
	if err != nil {
		return nil, err
	}
	store, err := wotconfig.NewStore(replicator,
		wotconfig.WithConsistency(consistency),
		wotconfig.WithStatic(static),
		wotconfig.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	models, err := LoadModels(opts.ModelsDir)
	if err != nil {
		return nil, err
	}
	validatorOpts := []validation.AdapterOption{
		validation.WithTracer(tracer),
		validation.WithMetrics(recorder),
	}
	if opts.ValidationTimeout > 0 {
		validatorOpts = append(validatorOpts, validation.WithTimeout(opts.ValidationTimeout))
	}
	validator := validation.NewAdapter(
		validation.NewModelValidator(models, store, logger, recorder),
		validatorOpts...,
	)

	things, err := strategy.NewThingDispatcher(strategy.Config{
		SizeGuard:       sizeguard.Guard{Limit: opts.MaxThingSize},
		Validator:       validator,
		Models:          models,
		RequirePolicyID: opts.RequirePolicyID,
	})
	if err != nil {
		return nil, err
	}
	things.SetTracer(tracer)
	registry, err := command.NewDefaultRegistry()
	if err != nil {
		return nil, err
	}

	handler := engine.Handler{
		Commands:      registry,
		Dispatcher:    things,
		SnapshotEvery: opts.SnapshotEvery,
		Timeout:       opts.CommandTimeout,
		Metrics:       recorder,
		Logger:        logger,
	}
	if strings.TrimSpace(opts.DBPath) == "" {
		handler.Journal = journal.NewMemory()
		handler.Snapshots = checkpoint.NewMemory()
	} else {
		if err := os.MkdirAll(filepath.Dir(opts.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
		db, err := thingsqlite.Open(opts.DBPath)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, db.Close)
		handler.Journal = db
		handler.Snapshots = db
	}
	if rt.Things, err = engine.NewHandler(handler); err != nil {
		return nil, err
	}

	configs, err := strategy.NewConfigDispatcher(static)
	if err != nil {
		return nil, err
	}
	configs.SetTracer(tracer)
	rt.Configs, err = engine.NewConfigHandler(configs, store, func(h *engine.ConfigHandler) {
		h.Metrics = recorder
		h.Logger = logger
		if opts.CommandTimeout > 0 {
			h.Timeout = opts.CommandTimeout
		}
	})
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// Close releases storage in reverse order of acquisition.
func (rt *Runtime) Close() error {
	if rt == nil {
		return nil
	}
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

// LoadModels reads every *.json Thing Model in dir. An empty dir yields an
// empty registry.
func LoadModels(dir string) (*wot.Registry, error) {
	registry := wot.NewRegistry()
	if strings.TrimSpace(dir) == "" {
		return registry, nil
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list thing models: %w", err)
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read thing model %s: %w", path, err)
		}
		model, err := wot.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("decode thing model %s: %w", path, err)
		}
		if err := registry.Put(model); err != nil {
			return nil, fmt.Errorf("register thing model %s: %w", path, err)
		}
	}
	return registry, nil
}
