package statement

// WriteResult is the outcome of executing a write statement or batch:
// a success (with execution metadata including server warnings and, for
// conditional updates, per-row application outcomes) or a failure (with
// a cause). For batches, success/failure applies to the entire batch;
// conditional-update application is tracked per constituent row via
// AppliedRows.
type WriteResult struct {
	Statement *Statement
	Batch     *Batch

	Success  bool
	Cause    error
	Warnings []string

	// WasApplied is set for conditional (CAS/Paxos) writes: false means
	// the batch committed but the condition did not hold for one or
	// more rows — a CAS failure, distinct from an execution failure.
	IsConditional bool
	WasApplied    bool

	// AppliedRows holds, for a conditional batch, whether each
	// constituent statement's row condition applied. Indexed the same
	// as Batch.Statements when Batch is non-nil.
	AppliedRows []bool
}

// IsCASFailure reports whether this result represents a successfully
// executed but not-applied conditional write (spec.md §4.4: "a
// successful batch whose was_applied=false is treated as a CAS
// failure").
func (r *WriteResult) IsCASFailure() bool {
	return r.Success && r.IsConditional && !r.WasApplied
}

// ReadResult is the outcome of executing a read statement: a success
// (rows + warnings) or a failure (cause). Used on the unload path.
type ReadResult struct {
	Statement *Statement

	Success  bool
	Cause    error
	Warnings []string
	RowCount int
}

// EmptySuccessWriteResult builds the synthetic always-success result
// used by the executor's dry-run short-circuit (spec.md §4.1): it still
// flows through the warning and error gates, it just never touched the
// cluster.
func EmptySuccessWriteResult(s *Statement) *WriteResult {
	return &WriteResult{Statement: s, Success: true}
}

// EmptySuccessBatchWriteResult is the batch form of
// EmptySuccessWriteResult.
func EmptySuccessBatchWriteResult(b *Batch) *WriteResult {
	return &WriteResult{Batch: b, Success: true}
}
