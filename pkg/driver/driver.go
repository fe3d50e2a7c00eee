// Package driver defines the narrow collaborator interface the
// streaming execution core needs from a CQL driver (spec.md §6.2). The
// driver itself — session management, prepared-statement caching,
// paging, retries — is out of scope and substitutable; this package
// only names the surface the core calls.
package driver

import (
	"context"

	"github.com/cloudshuttle/cqlbulk/pkg/statement"
)

// PreparedStatement is an opaque handle returned by Prepare. Drivers
// attach whatever internal state they need (query id, metadata) behind
// this interface.
type PreparedStatement interface {
	CQL() string
}

// Token is the 64-bit routing token space value used to group
// statements by partition in PartitionKey batch mode.
type Token int64

// Node identifies a cluster member for replica-set grouping.
type Node string

// Driver is the minimum surface the executor adapter and batcher need
// (spec.md §6.2). Implementations wrap a real CQL driver session;
// tests use the in-memory Mock in this package.
type Driver interface {
	// Prepare parses cql once and returns a reusable handle.
	Prepare(ctx context.Context, cql string) (PreparedStatement, error)

	// ExecuteAsync submits a statement or batch for execution and
	// returns its result without blocking the caller beyond submission.
	// item is either *statement.Statement or *statement.Batch.
	ExecuteAsync(ctx context.Context, item interface{}) (ResultFuture, error)

	// Metrics exposes the driver's own metric registry, if any. May
	// return nil.
	Metrics() interface{}

	// TokenFor computes the routing token for a serialized partition
	// key, used by the batcher in PartitionKey mode.
	TokenFor(routingKey []byte) Token

	// Replicas returns the replica set owning a token, used by the
	// batcher in ReplicaSet mode.
	Replicas(t Token) []Node
}

// ResultFuture is the async handle returned by ExecuteAsync. Await
// blocks until the result is available or ctx is cancelled.
type ResultFuture interface {
	Await(ctx context.Context) (*statement.WriteResult, error)
}
