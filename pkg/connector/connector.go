// Package connector defines the narrow boundary between the streaming
// execution core and the external systems records are read from or
// written to (spec.md §6.1). The core depends only on this interface;
// concrete connectors (file, stdin, or a cloud-backed plugin) are
// substitutable behind it.
package connector

import (
	"context"

	"github.com/cloudshuttle/cqlbulk/pkg/record"
)

// Feature names an optional capability a connector may advertise via
// Supports.
type Feature int

const (
	// FeatureIndexedRecords: the connector assigns each record a stable
	// positional index within its resource.
	FeatureIndexedRecords Feature = iota
	// FeatureMappedRecords: the connector's records carry named fields
	// (as opposed to purely positional ones).
	FeatureMappedRecords
)

// FieldMetadata describes one field a connector's records may carry.
type FieldMetadata struct {
	Name string
	Type record.FieldType
}

// Metadata describes the shape of the records a connector produces or
// accepts, used by the mapping layer to validate a schema.mapping
// configuration before a run starts.
type Metadata struct {
	Fields []FieldMetadata
}

// ResourceStream is one resource's record stream: every record on
// Records belongs to the same resource, delivered in ascending
// position order, terminated by channel close (spec.md §6.1
// "read_by_resource").
type ResourceStream struct {
	Resource string
	Records  <-chan *record.Record
}

// Connector is the full external-system boundary: lifecycle plus the
// two read shapes the orchestrator's scheduling regimes need (spec.md
// §4.5 "thread-per-resource" consumes ReadByResource; "parallel
// windowed" consumes Read").
type Connector interface {
	// Init prepares the connector for reading or writing (opening
	// files, establishing connections). Called once before any other
	// method.
	Init(ctx context.Context) error
	// Close releases any held resources. Called once, after the last
	// read or write completes.
	Close(ctx context.Context) error

	// Read returns a single flat stream of records across every
	// resource the connector covers, with no ordering guarantee across
	// resources (spec.md §5 "Across resources: no ordering").
	Read(ctx context.Context) (<-chan *record.Record, error)

	// ReadByResource returns one ResourceStream per resource, each
	// internally ordered; used by the thread-per-resource scheduling
	// regime (spec.md §4.5).
	ReadByResource(ctx context.Context) (<-chan ResourceStream, error)

	// Write accepts a stream of records to persist, returning once the
	// stream is drained or ctx is cancelled. Used on the unload path by
	// sink connectors.
	Write(ctx context.Context, records <-chan *record.Record) error

	// EstimatedResourceCount reports how many resources this connector
	// covers. Zero means unknown, treated as "large" by the scheduler
	// (spec.md §6.1).
	EstimatedResourceCount() int

	// Supports reports whether this connector offers an optional
	// capability.
	Supports(feature Feature) bool

	// RecordMetadata describes the field names and types this
	// connector's records carry.
	RecordMetadata() Metadata
}
