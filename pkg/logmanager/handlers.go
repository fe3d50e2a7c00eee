package logmanager

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/cloudshuttle/cqlbulk/pkg/bulkerrors"
	"github.com/cloudshuttle/cqlbulk/pkg/logger"
	"github.com/cloudshuttle/cqlbulk/pkg/record"
	"github.com/cloudshuttle/cqlbulk/pkg/statement"
)

// HandleFailedRecord implements failed_records_handler (spec.md §4.4):
// a connector read produced an error record. Appends the original
// source line to connector.bad (when present, per spec.md §9) and a
// structured entry to connector-errors.log, then counts the error.
func (m *Manager) HandleFailedRecord(ctx context.Context, rec *record.Record) error {
	if !rec.IsError() {
		return nil
	}
	if rec.HasSourceLine() {
		if err := m.files.connectorBad.WriteLine(rec.Pos.SourceLine); err != nil {
			return err
		}
	}
	block := errorBlock(rec.Pos.Resource, rec.Pos.Index, rec.Pos.SourceLine, rec.Err)
	if err := m.files.connectorErrors.WriteBlock(block); err != nil {
		return err
	}
	m.recordError()
	m.HandleResultPosition(rec.Pos.Resource, rec.Pos.Index)
	return nil
}

// HandleUnmappableStatement implements unmappable_statements_handler: a
// record failed to convert into a statement on the load path. Writes
// the originating source line to mapping.bad and a structured entry to
// mapping-errors.log.
func (m *Manager) HandleUnmappableStatement(ctx context.Context, rec *record.Record, cause error) error {
	if rec.HasSourceLine() {
		if err := m.files.mappingBad.WriteLine(rec.Pos.SourceLine); err != nil {
			return err
		}
	}
	block := errorBlock(rec.Pos.Resource, rec.Pos.Index, rec.Pos.SourceLine, cause)
	if err := m.files.mappingErrors.WriteBlock(block); err != nil {
		return err
	}
	m.recordError()
	m.HandleResultPosition(rec.Pos.Resource, rec.Pos.Index)
	return nil
}

// HandleUnmappableRecord implements unmappable_records_handler: a
// result row failed to convert into a record on the unload path.
// There is no source line to preserve (rows have no wire text), so
// only the structured entry is written, to mapping-errors.log.
func (m *Manager) HandleUnmappableRecord(ctx context.Context, resource string, position int64, cause error) error {
	block := errorBlock(resource, position, "", cause)
	if err := m.files.mappingErrors.WriteBlock(block); err != nil {
		return err
	}
	m.recordError()
	return nil
}

// HandleFailedWrite implements failed_writes_handler (spec.md §4.4):
// dispatches on whether the result is an execution failure or a CAS
// failure (a successfully executed but not-applied conditional write).
func (m *Manager) HandleFailedWrite(ctx context.Context, res *statement.WriteResult) error {
	if res.Success && !res.IsCASFailure() {
		return nil
	}
	if res.IsCASFailure() {
		return m.handleCASFailure(ctx, res)
	}
	return m.handleExecutionFailure(ctx, res)
}

func (m *Manager) handleExecutionFailure(ctx context.Context, res *statement.WriteResult) error {
	for _, stmt := range statementsOf(res) {
		if stmt.IsMapped() && stmt.Record.HasSourceLine() {
			if err := m.files.loadBad.WriteLine(stmt.Record.Pos.SourceLine); err != nil {
				return err
			}
		}
		resource, position, source := provenanceOf(stmt)
		block := errorBlock(resource, position, source, res.Cause)
		if err := m.files.loadErrors.WriteBlock(block); err != nil {
			return err
		}
		m.recordError()
		if stmt.IsMapped() {
			m.HandleResultPosition(resource, position)
		}
	}
	return nil
}

// handleCASFailure implements the paxos.bad / paxos-errors.log branch
// of failed_writes_handler (spec.md §8 scenario 5): a batch with
// was_applied=false produces one bad-file line and one structured entry
// per non-applied constituent statement, the result's error entries
// grouped under one "Failed conditional updates:" header line.
func (m *Manager) handleCASFailure(ctx context.Context, res *statement.WriteResult) error {
	stmts := statementsOf(res)
	headed := false
	for i, stmt := range stmts {
		if i < len(res.AppliedRows) && res.AppliedRows[i] {
			continue // this row's condition held; only the unapplied rows are "bad"
		}
		if !headed {
			if err := m.files.paxosErrors.WriteLine("Failed conditional updates:"); err != nil {
				return err
			}
			headed = true
		}
		if stmt.IsMapped() && stmt.Record.HasSourceLine() {
			if err := m.files.paxosBad.WriteLine(stmt.Record.Pos.SourceLine); err != nil {
				return err
			}
		}
		resource, position, source := provenanceOf(stmt)
		casErr := bulkerrors.New(bulkerrors.ErrCAS, "Failed conditional updates: the statement's condition was not applied")
		block := errorBlock(resource, position, source, casErr)
		if err := m.files.paxosErrors.WriteBlock(block); err != nil {
			return err
		}
		m.recordError()
		if stmt.IsMapped() {
			m.HandleResultPosition(resource, position)
		}
	}
	return nil
}

// HandleFailedRead implements failed_reads_handler: a read statement
// execution failed on the unload path. Writes a structured entry to
// unload-errors.log; there is no bad-file for reads, since the failure
// is on the query side, not on any particular row.
func (m *Manager) HandleFailedRead(ctx context.Context, res *statement.ReadResult) error {
	if res.Success {
		return nil
	}
	resource, position, source := "", int64(0), ""
	if res.Statement != nil && res.Statement.IsMapped() {
		resource = res.Statement.Record.Pos.Resource
		position = res.Statement.Record.Pos.Index
		source = res.Statement.Record.Pos.SourceLine
	}
	block := errorBlock(resource, position, source, res.Cause)
	if err := m.files.unloadErrors.WriteBlock(block); err != nil {
		return err
	}
	m.recordError()
	return nil
}

// HandleQueryWarnings implements query_warnings_handler: logs server-
// side warnings at WARN level up to max_query_warnings, then emits one
// suppression message and stays silent thereafter (spec.md §4.4, §8
// scenario 6).
func (m *Manager) HandleQueryWarnings(ctx context.Context, warnings []string) {
	for _, w := range warnings {
		if m.recordWarning(ctx) {
			logger.WithContext(ctx).Warn("query generated server-side warning", zap.String("warning", w))
		}
	}
}

// HandleResultPosition implements result_positions_handler: records a
// terminal (success or handled-failure) outcome's position against its
// resource, feeding positions.txt (spec.md §4.5).
func (m *Manager) HandleResultPosition(resource string, position int64) {
	m.tracker.Record(resource, position)
}

// CountItem implements total_items_counter: increments the run-wide
// total-item count that ratio thresholds divide against (spec.md §4.4
// "total_items is the denominator for ratio thresholds").
func (m *Manager) CountItem() {
	atomic.AddInt64(&m.totalItems, 1)
}

// Terminate implements termination_handler: flushes positions.txt,
// writes the final operation.log summary line, and closes every
// artifact file. Returns the first close error encountered, if any
// (spec.md §4.4, §7).
func (m *Manager) Terminate(ctx context.Context, elapsedSeconds float64) error {
	if err := m.files.writePositions(m.tracker.Lines()); err != nil {
		return err
	}

	errs := m.TotalErrors()
	summary := completionSummary(errs, elapsedSeconds)
	if err := m.files.operationLog.WriteLine(summary); err != nil {
		return err
	}
	logger.WithContext(ctx).Info(summary)

	return m.files.closeAll()
}

func completionSummary(errs int64, elapsedSeconds float64) string {
	h := int(elapsedSeconds) / 3600
	mm := (int(elapsedSeconds) % 3600) / 60
	ss := int(elapsedSeconds) % 60
	duration := fmt.Sprintf("%02d:%02d:%02d", h, mm, ss)
	if errs == 0 {
		return fmt.Sprintf("Operation completed successfully in %s.", duration)
	}
	return fmt.Sprintf("Operation completed with %d errors in %s.", errs, duration)
}

// statementsOf returns the constituent statements of a write result,
// whether it wraps a single statement or a batch.
func statementsOf(res *statement.WriteResult) []*statement.Statement {
	if res.Batch != nil {
		return res.Batch.Statements
	}
	if res.Statement != nil {
		return []*statement.Statement{res.Statement}
	}
	return nil
}

func provenanceOf(stmt *statement.Statement) (resource string, position int64, source string) {
	if !stmt.IsMapped() {
		return "", 0, ""
	}
	return stmt.Record.Pos.Resource, stmt.Record.Pos.Index, stmt.Record.Pos.SourceLine
}
