// Package batcher groups prepared statements into batches by routing
// affinity (same partition token or same replica set), respecting
// count and byte-size bounds, and unwraps singleton batches back into
// plain statements (spec.md §4.2).
package batcher

import (
	"context"
	"encoding/hex"
	"sort"
	"sync"

	"github.com/cloudshuttle/cqlbulk/pkg/driver"
	"github.com/cloudshuttle/cqlbulk/pkg/statement"
)

const (
	DefaultMaxBatchStatements = 32
	DefaultMaxBatchSizeBytes  = 65536
)

// Config controls the batcher's bounds and grouping mode.
type Config struct {
	Mode               statement.BatchMode
	MaxBatchStatements int
	MaxBatchSizeBytes  int
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		Mode:               statement.BatchModePartitionKey,
		MaxBatchStatements: DefaultMaxBatchStatements,
		MaxBatchSizeBytes:  DefaultMaxBatchSizeBytes,
	}
}

// group holds the accumulating statements for one routing key, plus
// insertion order for the deterministic flush tie-break (spec.md §4.2
// "flush in insertion order of their first element").
type group struct {
	key        string
	statements []*statement.Statement
	size       int
}

// Batcher accumulates statements into per-routing-group buffers and
// emits Batch values once a group is full or when FlushAll is called.
// Add and FlushAll are serialized by an internal mutex; the
// orchestrator still runs one Batcher per worker/window, matching the
// "within one resource, sequential" ordering guarantee (spec.md §5).
type Batcher struct {
	cfg    Config
	d      driver.Driver
	groups map[string]*group
	order  []string // insertion order of group keys

	mu sync.Mutex
}

// New constructs a Batcher. d is used to compute routing tokens /
// replica sets for grouping.
func New(cfg Config, d driver.Driver) *Batcher {
	return &Batcher{
		cfg:    cfg,
		d:      d,
		groups: make(map[string]*group),
	}
}

// routingGroupKey computes the grouping key for s under the batcher's
// mode, delegating token/replica computation to the driver rather than
// re-implementing partitioner hashing (spec.md §9 "Routing-group
// batcher").
func (b *Batcher) routingGroupKey(s *statement.Statement) string {
	token := b.d.TokenFor(s.RoutingKey)
	switch b.cfg.Mode {
	case statement.BatchModePartitionKey:
		return tokenKey(token)
	case statement.BatchModeReplicaSet:
		return replicaSetKey(b.d.Replicas(token))
	default:
		return tokenKey(token)
	}
}

func tokenKey(t driver.Token) string {
	return "token:" + hex.EncodeToString(int64ToBytes(int64(t)))
}

func int64ToBytes(v int64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

// replicaSetKey canonicalizes a set of nodes into a stable string by
// sorting node identifiers before joining them.
func replicaSetKey(nodes []driver.Node) string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = string(n)
	}
	sort.Strings(names)
	key := "replicas:"
	for i, n := range names {
		if i > 0 {
			key += ","
		}
		key += n
	}
	return key
}

// Add assigns s to its routing group, flushing that group (and
// returning the completed batch) if it is now full. If s would push a
// non-empty group past MaxBatchSizeBytes, the group is flushed without
// s and s starts a new group. Returns nil when the statement was
// buffered without triggering a flush.
func (b *Batcher) Add(s *statement.Statement) *statement.Batch {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := b.routingGroupKey(s)
	g, ok := b.groups[key]
	if ok && len(g.statements) > 0 && g.size+s.Size() > b.cfg.MaxBatchSizeBytes {
		full := b.flushGroup(key)
		b.groups[key] = &group{key: key, statements: []*statement.Statement{s}, size: s.Size()}
		b.order = append(b.order, key)
		return full
	}
	if !ok {
		g = &group{key: key}
		b.groups[key] = g
		b.order = append(b.order, key)
	}

	g.statements = append(g.statements, s)
	g.size += s.Size()

	if len(g.statements) >= b.cfg.MaxBatchStatements || g.size >= b.cfg.MaxBatchSizeBytes {
		return b.flushGroup(key)
	}
	return nil
}

// flushGroup removes and finalizes the named group. Caller must hold
// b.mu.
func (b *Batcher) flushGroup(key string) *statement.Batch {
	g, ok := b.groups[key]
	if !ok {
		return nil
	}
	delete(b.groups, key)
	for i, k := range b.order {
		if k == key {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}

	return &statement.Batch{
		Type:       statement.BatchUnlogged,
		Statements: g.statements,
		GroupKey:   g.key,
	}
}

// FlushAll flushes every partial group, in insertion order of each
// group's first element (spec.md §4.2 tie-break), and is called on
// upstream completion or window close.
func (b *Batcher) FlushAll() []*statement.Batch {
	b.mu.Lock()
	defer b.mu.Unlock()

	keys := make([]string, len(b.order))
	copy(keys, b.order)

	var batches []*statement.Batch
	for _, key := range keys {
		if batch := b.flushGroup(key); batch != nil {
			batches = append(batches, batch)
		}
	}
	return batches
}

// Run consumes statements from in, emitting batches (with singleton
// batches unwrapped to their underlying statement per spec.md §4.2) to
// the returned channel. The output channel closes once in closes and
// all partial groups have been flushed, or ctx is cancelled.
func Run(ctx context.Context, b *Batcher, in <-chan *statement.Statement) <-chan interface{} {
	out := make(chan interface{})
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case s, ok := <-in:
				if !ok {
					for _, batch := range b.FlushAll() {
						if !emit(ctx, out, batch.ToExecutable()) {
							return
						}
					}
					return
				}
				if batch := b.Add(s); batch != nil {
					if !emit(ctx, out, batch.ToExecutable()) {
						return
					}
				}
			}
		}
	}()
	return out
}

func emit(ctx context.Context, out chan<- interface{}, item interface{}) bool {
	select {
	case out <- item:
		return true
	case <-ctx.Done():
		return false
	}
}
