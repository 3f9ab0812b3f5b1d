package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/louisbranch/twinworks/internal/platform/errors"
	"github.com/louisbranch/twinworks/internal/platform/telemetry/metrics"
	"github.com/louisbranch/twinworks/internal/platform/timeouts"
	"github.com/louisbranch/twinworks/internal/services/things/domain/command"
	"github.com/louisbranch/twinworks/internal/services/things/domain/strategy"
	"github.com/louisbranch/twinworks/internal/services/things/domain/wotconfig"
)

// ConfigHandler runs WoT validation config commands against the replicated
// store. There is one config document, so commands are fully serialized.
type ConfigHandler struct {
	Dispatcher *strategy.ConfigDispatcher
	Store      *wotconfig.Store
	Timeout    time.Duration
	Metrics    *metrics.Recorder
	Logger     *slog.Logger
	Now        func() time.Time

	mu sync.Mutex
}

// NewConfigHandler validates h.
func NewConfigHandler(dispatcher *strategy.ConfigDispatcher, store *wotconfig.Store, opts ...func(*ConfigHandler)) (*ConfigHandler, error) {
	if dispatcher == nil {
		return nil, ErrDispatcherRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	h := &ConfigHandler{
		Dispatcher: dispatcher,
		Store:      store,
		Timeout:    timeouts.Request,
		Logger:     slog.Default(),
		Now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle runs cmd and writes the resulting document to the store.
func (h *ConfigHandler) Handle(ctx context.Context, cmd strategy.ConfigCommand) (strategy.Result, error) {
	started := time.Now()
	if cmd.Headers.CorrelationID() == "" {
		cmd.Headers = cmd.Headers.With(command.HeaderCorrelationID, uuid.NewString())
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	res, err := h.handle(ctx, cmd)
	kind := "failure"
	if err == nil {
		kind = strategy.Kind(res)
	}
	h.Metrics.ObserveCommand(string(cmd.Type), kind, time.Since(started))
	return res, err
}

func (h *ConfigHandler) handle(ctx context.Context, cmd strategy.ConfigCommand) (strategy.Result, error) {
	current, err := h.Store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("read wot config: %w", err)
	}
	var next int64 = 1
	if current != nil {
		next = current.Revision + 1
	}
	sc := strategy.Context{
		EntityID:     wotconfig.DefaultConfigID,
		NextRevision: next,
		Timestamp:    h.Now(),
		Logger:       h.Logger.With("config_id", wotconfig.DefaultConfigID, "correlation_id", cmd.Headers.CorrelationID()),
	}

	runCtx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()
	res, err := h.Dispatcher.Dispatch(runCtx, sc, current, cmd).Await(runCtx)
	if err != nil {
		return nil, err
	}
	if cmd.Headers.DryRun() {
		return strategy.DryRun(res), nil
	}
	m, ok := res.(strategy.Mutation)
	if !ok {
		return res, nil
	}

	var write interface {
		Await(context.Context) (struct{}, error)
	}
	if m.BecomeDeleted {
		write = h.Store.Clear(runCtx)
	} else {
		doc, ok := m.Event.Value.(wotconfig.Config)
		if !ok {
			return nil, fmt.Errorf("config event %s carries %T", m.Event.Type, m.Event.Value)
		}
		write = h.Store.Add(runCtx, doc)
	}
	if _, err := write.Await(runCtx); err != nil {
		sc.Logger.WarnContext(ctx, "replicated config write failed", "error", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return strategy.Fail(cmd.Headers, apperrors.Wrap(apperrors.CodeUnavailable, "wot config write timed out", err)), nil
		}
		return strategy.Fail(cmd.Headers, apperrors.Wrap(apperrors.CodeUnavailable, "wot config write was not acknowledged", err)), nil
	}
	return m, nil
}
