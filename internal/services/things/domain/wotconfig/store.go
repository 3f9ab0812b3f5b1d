package wotconfig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/louisbranch/twinworks/internal/platform/async"
	"github.com/louisbranch/twinworks/internal/platform/ddata"
	"github.com/louisbranch/twinworks/internal/platform/timeouts"
)

// StoreKey is the replicated key holding the live configuration.
const StoreKey = "wot-validation-config"

// DefaultWriteTimeout bounds write-all acknowledgements.
const DefaultWriteTimeout = timeouts.ReplicatorWrite

// ErrReplicatorRequired indicates a store without replicator.
var ErrReplicatorRequired = errors.New("wot config store requires a replicator")

// Replicated is the replicated set primitive the store writes through.
type Replicated interface {
	Node() string
	ReadLocal(key string) (ddata.ORSet, bool)
	Update(ctx context.Context, key string, consistency ddata.WriteConsistency, modify func(ddata.ORSet) ddata.ORSet) error
}

// Store keeps exactly one live configuration document in a replicated
// observed-remove set. Writes replace the document wholesale; reads only
// consult the local replica.
type Store struct {
	replicator  Replicated
	key         string
	consistency ddata.WriteConsistency
	static      Config
	logger      *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithConsistency overrides the write consistency. Writes default to
// acknowledgement from every replica.
func WithConsistency(c ddata.WriteConsistency) StoreOption {
	return func(s *Store) { s.consistency = c }
}

// WithKey stores the document under key instead of StoreKey.
func WithKey(key string) StoreOption {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithStatic sets the fallback configuration merged under the replicated one.
func WithStatic(static Config) StoreOption {
	return func(s *Store) { s.static = static }
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a store writing through replicator.
func NewStore(replicator Replicated, opts ...StoreOption) (*Store, error) {
	if replicator == nil {
		return nil, ErrReplicatorRequired
	}
	s := &Store{
		replicator:  replicator,
		key:         StoreKey,
		consistency: ddata.WriteAll(DefaultWriteTimeout),
		static:      Defaults(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Static returns the fallback configuration.
func (s *Store) Static() Config {
	return s.static
}

// Add replaces every element with c.
func (s *Store) Add(ctx context.Context, c Config) *async.Task[struct{}] {
	data, err := c.Marshal()
	if err != nil {
		return async.Failed[struct{}](fmt.Errorf("encode wot config: %w", err))
	}
	node := s.replicator.Node()
	elem := string(data)
	return async.Go(ctx, func(ctx context.Context) (struct{}, error) {
		err := s.replicator.Update(ctx, s.key, s.consistency, func(set ddata.ORSet) ddata.ORSet {
			return set.Clear().Add(node, elem)
		})
		return struct{}{}, err
	})
}

// Clear removes the elements observed by the local replica.
func (s *Store) Clear(ctx context.Context) *async.Task[struct{}] {
	local, _ := s.replicator.ReadLocal(s.key)
	observed := local.Elements()
	return async.Go(ctx, func(ctx context.Context) (struct{}, error) {
		err := s.replicator.Update(ctx, s.key, s.consistency, func(set ddata.ORSet) ddata.ORSet {
			for _, elem := range observed {
				set = set.Remove(elem)
			}
			return set
		})
		return struct{}{}, err
	})
}

// Get returns the live document of the local replica. Concurrent adds on
// different replicas can leave more than one element until the next write;
// the most recently modified one wins.
func (s *Store) Get(ctx context.Context) (*Config, error) {
	local, ok := s.replicator.ReadLocal(s.key)
	if !ok {
		return nil, nil
	}
	var live *Config
	for _, elem := range local.Elements() {
		c, err := Decode([]byte(elem))
		if err != nil {
			s.logger.WarnContext(ctx, "skipping undecodable wot config element", "key", s.key, "error", err)
			continue
		}
		if live == nil || newer(c, *live) {
			cp := c
			live = &cp
		}
	}
	return live, nil
}

// Effective merges the live document over the static fallback.
func (s *Store) Effective(ctx context.Context) (Config, error) {
	live, err := s.Get(ctx)
	if err != nil {
		return Config{}, err
	}
	return Merge(s.static, live), nil
}

func newer(a, b Config) bool {
	switch {
	case a.Revision != b.Revision:
		return a.Revision > b.Revision
	case a.Modified != nil && b.Modified != nil && !a.Modified.Equal(*b.Modified):
		return a.Modified.After(*b.Modified)
	}
	return false
}
