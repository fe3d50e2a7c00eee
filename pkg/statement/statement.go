// Package statement defines the database-bound command types that
// records are mapped to, the batches they may be grouped into, and the
// result/threshold variants produced by execution.
package statement

import (
	"github.com/cloudshuttle/cqlbulk/pkg/record"
)

// Kind distinguishes prepared statements (bound parameters against a
// pre-parsed CQL string) from simple statements (literal CQL text).
type Kind int

const (
	KindPrepared Kind = iota
	KindSimple
)

// Statement is a database-bound command. A mapped statement keeps a
// back-reference to the Record it was derived from, so that the log
// manager can recover the originating source line and position on
// failure (spec.md §3, §9 "Back-references"). A simple statement has
// no back-reference.
type Statement struct {
	Kind Kind
	CQL  string
	Args []interface{}

	// RoutingKey is the serialized partition-key bytes used for token
	// computation in PartitionKey batch mode.
	RoutingKey []byte

	// Record is nil for simple (unmapped) statements.
	Record *record.Record
}

// IsMapped reports whether this statement has a back-reference to its
// originating record.
func (s *Statement) IsMapped() bool {
	return s.Record != nil
}

// Size estimates the statement's wire size in bytes, used by the
// batcher to enforce max_batch_size_bytes. It sums CQL text length and
// a conservative per-argument estimate.
func (s *Statement) Size() int {
	size := len(s.CQL)
	for _, a := range s.Args {
		switch v := a.(type) {
		case string:
			size += len(v)
		case []byte:
			size += len(v)
		default:
			size += 8
		}
	}
	return size
}

// BatchType mirrors CQL's logged/unlogged batch distinction.
type BatchType int

const (
	BatchUnlogged BatchType = iota
	BatchLogged
)

// Batch is an ordered collection of statements sharing a routing
// affinity (same token/partition group or same replica set, depending
// on the batcher's mode). Each constituent statement retains its own
// record back-reference so that a batch failure can be unwound to
// per-record error entries (spec.md §3 invariant).
type Batch struct {
	Type       BatchType
	Statements []*Statement

	// GroupKey identifies the routing affinity this batch was grouped
	// under — a 64-bit token string for PartitionKey mode, or a
	// canonicalized replica-set id for ReplicaSet mode.
	GroupKey string
}

// Size returns the total estimated wire size of the batch.
func (b *Batch) Size() int {
	total := 0
	for _, s := range b.Statements {
		total += s.Size()
	}
	return total
}

// Unwrap returns the single statement inside a singleton batch, or nil
// if the batch does not contain exactly one statement. The batcher
// unwraps singleton batches back into plain statements before they
// reach the executor (spec.md §4.2).
func (b *Batch) Unwrap() *Statement {
	if len(b.Statements) != 1 {
		return nil
	}
	return b.Statements[0]
}

// ToExecutable returns either the batch itself or, if it is a
// singleton, its unwrapped statement, as the thing the executor should
// submit to the driver.
func (b *Batch) ToExecutable() interface{} {
	if s := b.Unwrap(); s != nil {
		return s
	}
	return b
}
