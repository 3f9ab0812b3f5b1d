package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/louisbranch/twinworks/internal/platform/errors"
	"github.com/louisbranch/twinworks/internal/platform/telemetry/metrics"
	"github.com/louisbranch/twinworks/internal/platform/timeouts"
	"github.com/louisbranch/twinworks/internal/services/things/domain/command"
	"github.com/louisbranch/twinworks/internal/services/things/domain/event"
	"github.com/louisbranch/twinworks/internal/services/things/domain/replay"
	"github.com/louisbranch/twinworks/internal/services/things/domain/strategy"
	"github.com/louisbranch/twinworks/internal/services/things/domain/thing"
)

// Journal appends events and lists them for replay.
type Journal interface {
	replay.EventStore
	Append(ctx context.Context, evt event.Event) (event.Event, error)
}

// Handler runs thing commands.
type Handler struct {
	Commands   *command.Registry
	Dispatcher *strategy.ThingDispatcher
	Journal    Journal
	// Snapshots is optional; without it every command replays the journal.
	Snapshots replay.SnapshotStore
	// SnapshotEvery saves a snapshot each time the revision reaches a
	// multiple of it. Zero disables snapshots.
	SnapshotEvery int64
	// Timeout bounds a single command. Zero uses timeouts.Request.
	Timeout time.Duration
	Metrics *metrics.Recorder
	Logger  *slog.Logger
	Now     func() time.Time

	boxes *mailboxes
}

// Outcome is the answer to one command.
type Outcome struct {
	Result strategy.Result
	// Thing is the thing after the command, nil when it never existed.
	Thing *thing.Thing
}

// NewHandler validates h and prepares it for concurrent use.
func NewHandler(h Handler) (*Handler, error) {
	switch {
	case h.Commands == nil:
		return nil, ErrRegistryRequired
	case h.Dispatcher == nil:
		return nil, ErrDispatcherRequired
	case h.Journal == nil:
		return nil, ErrJournalRequired
	}
	if h.Timeout <= 0 {
		h.Timeout = timeouts.Request
	}
	if h.Logger == nil {
		h.Logger = slog.Default()
	}
	if h.Now == nil {
		h.Now = func() time.Time { return time.Now().UTC() }
	}
	h.boxes = newMailboxes()
	return &h, nil
}

// Handle validates cmd, runs it against the current thing and persists the
// resulting event. Domain failures are returned as strategy.Error results;
// the error return is reserved for infrastructure failures.
func (h *Handler) Handle(ctx context.Context, cmd command.Command) (Outcome, error) {
	started := time.Now()
	if cmd.Headers.CorrelationID() == "" {
		cmd.Headers = cmd.Headers.With(command.HeaderCorrelationID, uuid.NewString())
	}
	validated, err := h.Commands.ValidateForDecision(cmd)
	if err != nil {
		res := h.rejected(cmd, err)
		h.Metrics.ObserveCommand(string(cmd.Type), strategy.Kind(res), time.Since(started))
		return Outcome{Result: res}, nil
	}
	cmd = validated

	release := h.boxes.acquire(cmd.ThingID)
	defer release()

	out, err := h.handle(ctx, cmd)
	if err != nil {
		h.Metrics.ObserveCommand(string(cmd.Type), "failure", time.Since(started))
		return Outcome{}, err
	}
	h.Metrics.ObserveCommand(string(cmd.Type), strategy.Kind(out.Result), time.Since(started))
	return out, nil
}

func (h *Handler) handle(ctx context.Context, cmd command.Command) (Outcome, error) {
	loaded, err := replay.Load(ctx, h.Journal, h.Snapshots, cmd.ThingID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load thing %s: %w", cmd.ThingID, err)
	}
	current := loaded.Thing
	logger := h.Logger.With("thing_id", cmd.ThingID, "correlation_id", cmd.Headers.CorrelationID())
	sc := strategy.Context{
		EntityID:     cmd.ThingID,
		NextRevision: loaded.Revision + 1,
		Timestamp:    h.Now(),
		Logger:       logger,
	}

	runCtx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()
	res, err := h.Dispatcher.Dispatch(runCtx, sc, current, cmd).Await(runCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logger.WarnContext(ctx, "command timed out", "command", string(cmd.Type), "timeout", h.Timeout)
			return Outcome{Result: strategy.Fail(cmd.Headers, unavailable(cmd, err)), Thing: current}, nil
		}
		return Outcome{}, err
	}
	if cmd.Headers.DryRun() {
		return Outcome{Result: strategy.DryRun(res), Thing: current}, nil
	}

	m, ok := res.(strategy.Mutation)
	if !ok {
		return Outcome{Result: res, Thing: current}, nil
	}
	stored, err := h.Journal.Append(ctx, m.Event)
	if err != nil {
		return Outcome{}, fmt.Errorf("append %s: %w", m.Event.Type, err)
	}
	m.Event = stored
	next, err := event.Apply(current, stored)
	if err != nil {
		return Outcome{}, wrapNonRetryable(fmt.Errorf("apply journaled %s: %w", stored.Type, err))
	}
	h.snapshot(ctx, logger, *next)
	return Outcome{Result: m, Thing: next}, nil
}

func (h *Handler) snapshot(ctx context.Context, logger *slog.Logger, t thing.Thing) {
	if h.Snapshots == nil || h.SnapshotEvery <= 0 || t.Revision%h.SnapshotEvery != 0 {
		return
	}
	if err := h.Snapshots.SaveSnapshot(ctx, t); err != nil {
		logger.WarnContext(ctx, "snapshot failed", "revision", t.Revision, "error", err)
	}
}

// rejected turns a registry validation failure into a result.
func (h *Handler) rejected(cmd command.Command, err error) strategy.Result {
	meta := map[string]string{
		"ThingID": cmd.ThingID,
		"Path":    cmd.Path.String(),
		"Reason":  err.Error(),
	}
	var domainErr *apperrors.Error
	switch {
	case errors.Is(err, command.ErrTypeUnknown):
		return strategy.Empty{CommandType: string(cmd.Type)}
	case errors.Is(err, command.ErrPathInvalid):
		domainErr = apperrors.WrapWithMetadata(apperrors.CodeResourcePathUnknown, err.Error(), meta, err)
	default:
		domainErr = apperrors.WrapWithMetadata(apperrors.CodeThingPayloadInvalid, err.Error(), meta, err)
	}
	return strategy.Fail(cmd.Headers, domainErr)
}

func unavailable(cmd command.Command, cause error) *apperrors.Error {
	return apperrors.WrapWithMetadata(apperrors.CodeUnavailable,
		fmt.Sprintf("command %s on %s timed out", cmd.Type, cmd.ThingID),
		map[string]string{"ThingID": cmd.ThingID}, cause)
}
