package statement

// BatchMode selects the routing-affinity grouping strategy the batcher
// uses (spec.md §4.2).
type BatchMode int

const (
	// BatchModePartitionKey groups statements sharing the same routing
	// token (i.e., same partition key).
	BatchModePartitionKey BatchMode = iota
	// BatchModeReplicaSet groups statements sharing the same
	// replica-set hash, tolerating cross-partition batches to reduce
	// coordinator hops.
	BatchModeReplicaSet
)

func (m BatchMode) String() string {
	switch m {
	case BatchModePartitionKey:
		return "PARTITION_KEY"
	case BatchModeReplicaSet:
		return "REPLICA_SET"
	default:
		return "UNKNOWN"
	}
}
