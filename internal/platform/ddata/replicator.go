package ddata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/louisbranch/twinworks/internal/platform/telemetry/metrics"
)

var (
	// ErrNodeRequired indicates a replicator without a node name.
	ErrNodeRequired = errors.New("replicator node is required")
	// ErrKeyRequired indicates an empty data key.
	ErrKeyRequired = errors.New("data key is required")
	// ErrWriteTimeout indicates that not enough replicas acknowledged in time.
	ErrWriteTimeout = errors.New("replicated write was not acknowledged in time")
	// ErrWriteUnreachable indicates that too many replicas failed for the
	// requested consistency to be reached.
	ErrWriteUnreachable = errors.New("replicated write consistency cannot be reached")
)

// Peer is a remote replica that merges pushed state.
type Peer interface {
	Name() string
	Merge(ctx context.Context, key string, state ORSet) error
}

// DurableStore persists local replica state across restarts.
type DurableStore interface {
	Load(ctx context.Context) (map[string]ORSet, error)
	Store(ctx context.Context, key string, state ORSet) error
}

// Option configures a Replicator.
type Option func(*Replicator)

// WithDurableStore persists every local change to store.
func WithDurableStore(store DurableStore) Option {
	return func(r *Replicator) { r.durable = store }
}

// WithLogger sets the replicator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Replicator) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics records write outcomes on recorder.
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(r *Replicator) { r.metrics = recorder }
}

// WithTracer overrides the tracer used for write spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Replicator) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// Replicator holds the local replica of every key and pushes updates to peers.
type Replicator struct {
	node    string
	logger  *slog.Logger
	durable DurableStore
	metrics *metrics.Recorder
	tracer  trace.Tracer

	mu    sync.RWMutex
	data  map[string]ORSet
	peers []Peer

	// persistMu orders durable writes; each write stores the newest local state.
	persistMu sync.Mutex
}

// NewReplicator creates a replicator for node, restoring durable state when
// a durable store is configured.
func NewReplicator(ctx context.Context, node string, opts ...Option) (*Replicator, error) {
	node = strings.TrimSpace(node)
	if node == "" {
		return nil, ErrNodeRequired
	}
	r := &Replicator{
		node:   node,
		logger: slog.Default(),
		tracer: otel.Tracer("github.com/louisbranch/twinworks/internal/platform/ddata"),
		data:   map[string]ORSet{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.durable != nil {
		restored, err := r.durable.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load durable replica state: %w", err)
		}
		for key, state := range restored {
			r.data[key] = state
		}
	}
	return r, nil
}

// Node returns the replica name.
func (r *Replicator) Node() string {
	return r.node
}

// AddPeer registers a peer replica.
func (r *Replicator) AddPeer(peer Peer) {
	if peer == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers = append(r.peers, peer)
}

// Name implements Peer so replicators in one process can be wired directly.
func (r *Replicator) Name() string {
	return r.node
}

// ReadLocal returns a copy of the local state for key.
func (r *Replicator) ReadLocal(key string) (ORSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.data[key]
	if !ok {
		return NewORSet(), false
	}
	return state.Clone(), true
}

// Merge joins pushed state into the local replica.
func (r *Replicator) Merge(ctx context.Context, key string, state ORSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return ErrKeyRequired
	}
	r.mu.Lock()
	current, ok := r.data[key]
	if !ok {
		current = NewORSet()
	}
	r.data[key] = current.Merge(state)
	r.mu.Unlock()
	return r.persist(ctx, key)
}

// Update applies modify to the local state of key and replicates the result
// under consistency. modify receives a private copy and must return the new
// state derived from it.
func (r *Replicator) Update(ctx context.Context, key string, consistency WriteConsistency, modify func(ORSet) ORSet) (err error) {
	if strings.TrimSpace(key) == "" {
		return ErrKeyRequired
	}
	ctx, span := r.tracer.Start(ctx, "ddata.Update", trace.WithAttributes(
		attribute.String("ddata.key", key),
		attribute.String("ddata.node", r.node),
		attribute.String("ddata.consistency", consistency.String()),
	))
	defer func() {
		r.metrics.ObserveReplicatorWrite(key, consistency.String(), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	r.mu.Lock()
	current, ok := r.data[key]
	if !ok {
		current = NewORSet()
	}
	next := modify(current.Clone())
	r.data[key] = next
	peers := append([]Peer(nil), r.peers...)
	r.mu.Unlock()

	if err := r.persist(ctx, key); err != nil {
		return err
	}
	return r.replicate(ctx, key, next, peers, consistency)
}

func (r *Replicator) replicate(ctx context.Context, key string, state ORSet, peers []Peer, consistency WriteConsistency) error {
	need := consistency.required(len(peers) + 1)
	if need <= 1 {
		go r.push(context.WithoutCancel(ctx), key, state, peers)
		return nil
	}

	timeout := consistency.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)

	results := make(chan error, len(peers))
	var group errgroup.Group
	for _, peer := range peers {
		group.Go(func() error {
			err := peer.Merge(writeCtx, key, state.Clone())
			if err != nil {
				r.logger.Warn("replica did not acknowledge write", "key", key, "peer", peer.Name(), "error", err)
			}
			results <- err
			return err
		})
	}
	go func() {
		_ = group.Wait()
		cancel()
	}()

	acks, failures := 1, 0
	for acks < need {
		select {
		case err := <-results:
			if err != nil {
				failures++
				if len(peers)+1-failures < need {
					return fmt.Errorf("%w: %d of %d replicas failed", ErrWriteUnreachable, failures, len(peers)+1)
				}
				continue
			}
			acks++
		case <-writeCtx.Done():
			return fmt.Errorf("%w: %d of %d acknowledgements", ErrWriteTimeout, acks, need)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// push replicates state to peers without waiting for acknowledgements.
func (r *Replicator) push(ctx context.Context, key string, state ORSet, peers []Peer) {
	for _, peer := range peers {
		if err := peer.Merge(ctx, key, state.Clone()); err != nil {
			r.logger.Debug("background replication failed", "key", key, "peer", peer.Name(), "error", err)
		}
	}
}

// Gossip pushes every local key to every peer once. Callers run it
// periodically to heal replicas that missed writes.
func (r *Replicator) Gossip(ctx context.Context) {
	r.mu.RLock()
	snapshot := make(map[string]ORSet, len(r.data))
	for key, state := range r.data {
		snapshot[key] = state.Clone()
	}
	peers := append([]Peer(nil), r.peers...)
	r.mu.RUnlock()

	for key, state := range snapshot {
		r.push(ctx, key, state, peers)
	}
}

// RunGossip calls Gossip every interval until ctx is done.
func (r *Replicator) RunGossip(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Gossip(ctx)
		}
	}
}

// persist stores the current local state of key. The state is read after
// persistMu is taken so a slower writer never overwrites a newer merge.
func (r *Replicator) persist(ctx context.Context, key string) error {
	if r.durable == nil {
		return nil
	}
	r.persistMu.Lock()
	defer r.persistMu.Unlock()
	state, _ := r.ReadLocal(key)
	if err := r.durable.Store(ctx, key, state); err != nil {
		return fmt.Errorf("persist replica state %s: %w", key, err)
	}
	return nil
}

// Connect wires every replicator as a peer of every other one.
func Connect(replicas ...*Replicator) {
	for i, r := range replicas {
		for j, peer := range replicas {
			if i != j {
				r.AddPeer(peer)
			}
		}
	}
}
