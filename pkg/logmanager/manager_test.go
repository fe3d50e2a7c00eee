package logmanager

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudshuttle/cqlbulk/pkg/record"
	"github.com/cloudshuttle/cqlbulk/pkg/statement"
)

func newTestManager(t *testing.T, threshold statement.ErrorThreshold) *Manager {
	t.Helper()
	m, err := New(context.Background(), Config{
		OutputRoot:         t.TempDir(),
		ExecutionID:        "TEST_RUN",
		DataErrorThreshold: threshold,
		MaxQueryWarnings:   1,
	})
	require.NoError(t, err)
	return m
}

func readFile(t *testing.T, m *Manager, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(m.OperationDir(), name))
	require.NoError(t, err)
	return string(b)
}

// TestAbsoluteThresholdZeroTripsOnFirstError encodes spec.md §8's
// threshold-at-zero scenario: Absolute(0) stops on the very first
// error.
func TestAbsoluteThresholdZeroTripsOnFirstError(t *testing.T) {
	m := newTestManager(t, statement.Absolute(0))

	rec := record.NewError(record.Position{Resource: "file:///a.csv", Index: 1, SourceLine: "bad,row"}, assertErr("parse failure"))
	err := m.HandleFailedRecord(m.Context(), rec)
	require.NoError(t, err)

	select {
	case <-m.Context().Done():
	default:
		t.Fatal("expected context to be cancelled after the first error with Absolute(0)")
	}
	require.ErrorIs(t, context.Cause(m.Context()), ErrTooManyErrors)
}

// TestAbsoluteThresholdAllowsErrorsUpToLimit checks that Absolute(k)
// only trips strictly after k errors.
func TestAbsoluteThresholdAllowsErrorsUpToLimit(t *testing.T) {
	m := newTestManager(t, statement.Absolute(2))

	for i := int64(1); i <= 2; i++ {
		rec := record.NewError(record.Position{Resource: "file:///a.csv", Index: i}, assertErr("bad"))
		require.NoError(t, m.HandleFailedRecord(m.Context(), rec))
		select {
		case <-m.Context().Done():
			t.Fatalf("context cancelled early at error %d", i)
		default:
		}
	}

	rec := record.NewError(record.Position{Resource: "file:///a.csv", Index: 3}, assertErr("bad"))
	require.NoError(t, m.HandleFailedRecord(m.Context(), rec))
	select {
	case <-m.Context().Done():
	default:
		t.Fatal("expected cancellation on the third error with Absolute(2)")
	}
}

// TestBatchedWriteFailureWritesOnePerStatement encodes spec.md §8's
// batched-write-failure scenario: a failed batch unwinds into one
// load.bad line and one load-errors.log entry per constituent
// statement, and each statement counts separately against the error
// threshold (spec.md §4.4 "each non-applied row counts against the
// write-error threshold"; ground-truthed against
// `LogManagerTest.java#should_stop_when_max_write_errors_reached_and_statements_batched`,
// which trips `Absolute(1)` on a 3-statement batch failure).
func TestBatchedWriteFailureWritesOnePerStatement(t *testing.T) {
	m := newTestManager(t, statement.Unlimited())

	rec1 := record.New(record.Position{Resource: "file:///a.csv", Index: 1, SourceLine: "1,x"}, nil)
	rec2 := record.New(record.Position{Resource: "file:///a.csv", Index: 2, SourceLine: "2,y"}, nil)
	batch := &statement.Batch{
		Statements: []*statement.Statement{
			{Kind: statement.KindPrepared, CQL: "INSERT ...", Record: rec1},
			{Kind: statement.KindPrepared, CQL: "INSERT ...", Record: rec2},
		},
	}
	res := &statement.WriteResult{Batch: batch, Success: false, Cause: assertErr("write_timeout")}

	require.NoError(t, m.HandleFailedWrite(context.Background(), res))
	require.NoError(t, m.files.closeAll()) // writers are buffered until closed

	bad := readFile(t, m, loadBad)
	assert.Equal(t, "1,x\n2,y\n", bad)
	assert.EqualValues(t, 2, m.TotalErrors())
}

// TestExecutionFailureCountsErrorsPerStatement encodes the same
// ground truth with a 3-statement batch against Absolute(1): the
// threshold must trip on the second statement, which only holds if
// each constituent statement counts separately rather than the batch
// counting once.
func TestExecutionFailureCountsErrorsPerStatement(t *testing.T) {
	m := newTestManager(t, statement.Absolute(1))

	rec1 := record.New(record.Position{Resource: "file:///a.csv", Index: 1, SourceLine: "1,x"}, nil)
	rec2 := record.New(record.Position{Resource: "file:///a.csv", Index: 2, SourceLine: "2,y"}, nil)
	rec3 := record.New(record.Position{Resource: "file:///a.csv", Index: 3, SourceLine: "3,z"}, nil)
	batch := &statement.Batch{
		Statements: []*statement.Statement{
			{Kind: statement.KindPrepared, CQL: "INSERT ...", Record: rec1},
			{Kind: statement.KindPrepared, CQL: "INSERT ...", Record: rec2},
			{Kind: statement.KindPrepared, CQL: "INSERT ...", Record: rec3},
		},
	}
	res := &statement.WriteResult{Batch: batch, Success: false, Cause: assertErr("write_timeout")}

	require.NoError(t, m.HandleFailedWrite(m.Context(), res))

	select {
	case <-m.Context().Done():
	default:
		t.Fatal("expected a 3-statement batch failure against Absolute(1) to trip the threshold")
	}
	require.ErrorIs(t, context.Cause(m.Context()), ErrTooManyErrors)
	assert.EqualValues(t, 3, m.TotalErrors())
}

// TestRatioThresholdWaitsForMinSample encodes spec.md §8's
// ratio-threshold-small-sample scenario: errors below min_sample never
// trip the threshold no matter how bad the ratio looks.
func TestRatioThresholdWaitsForMinSample(t *testing.T) {
	m := newTestManager(t, statement.RatioThreshold(0.1, 100))

	for i := int64(1); i <= 10; i++ {
		m.CountItem()
		rec := record.NewError(record.Position{Resource: "file:///a.csv", Index: i}, assertErr("bad"))
		require.NoError(t, m.HandleFailedRecord(context.Background(), rec))
	}

	select {
	case <-m.Context().Done():
		t.Fatal("threshold must not trip before min_sample items have been counted")
	default:
	}
}

// TestRatioThresholdTripsOncePastMinSample encodes spec.md §8's
// ratio-threshold-triggered scenario.
func TestRatioThresholdTripsOncePastMinSample(t *testing.T) {
	m := newTestManager(t, statement.RatioThreshold(0.1, 10))

	for i := int64(1); i <= 10; i++ {
		m.CountItem()
	}
	for i := int64(1); i <= 2; i++ {
		rec := record.NewError(record.Position{Resource: "file:///a.csv", Index: i}, assertErr("bad"))
		require.NoError(t, m.HandleFailedRecord(context.Background(), rec))
	}

	select {
	case <-m.Context().Done():
	default:
		t.Fatal("expected ratio threshold to trip once errors/total exceeds the ratio past min_sample")
	}
}

// TestCASPartialFailureSkipsAppliedRows encodes spec.md §8's
// CAS-partial-failure scenario: a conditional batch where some rows
// applied and some didn't only writes paxos.bad/paxos-errors.log
// entries for the rows that did not apply.
func TestCASPartialFailureSkipsAppliedRows(t *testing.T) {
	m := newTestManager(t, statement.Unlimited())

	rec1 := record.New(record.Position{Resource: "ks.tbl", Index: 1, SourceLine: "row1"}, nil)
	rec2 := record.New(record.Position{Resource: "ks.tbl", Index: 2, SourceLine: "row2"}, nil)
	batch := &statement.Batch{
		Type: statement.BatchLogged,
		Statements: []*statement.Statement{
			{Kind: statement.KindPrepared, Record: rec1},
			{Kind: statement.KindPrepared, Record: rec2},
		},
	}
	res := &statement.WriteResult{
		Batch:         batch,
		Success:       true,
		IsConditional: true,
		WasApplied:    false,
		AppliedRows:   []bool{true, false},
	}

	require.NoError(t, m.HandleFailedWrite(context.Background(), res))
	require.NoError(t, m.files.closeAll()) // writers are buffered until closed

	bad := readFile(t, m, paxosBad)
	assert.Equal(t, "row2\n", bad)
	errorsLog := readFile(t, m, paxosErrorsLog)
	assert.Contains(t, errorsLog, "Failed conditional updates")
	assert.Contains(t, errorsLog, "Resource: ks.tbl")
	assert.Contains(t, errorsLog, "Position: 2")
	assert.NotContains(t, errorsLog, "Position: 1\n")
}

// TestCASFailureCountsErrorsPerRow encodes spec.md §8's scenario 5: a
// single batch of 3 CAS failures against Absolute(2) must trip the
// threshold, which only holds if each non-applied row counts
// separately (spec.md §4.4 "each non-applied row counts against the
// write-error threshold") rather than the batch counting once.
func TestCASFailureCountsErrorsPerRow(t *testing.T) {
	m := newTestManager(t, statement.Absolute(2))

	rec1 := record.New(record.Position{Resource: "ks.tbl", Index: 1}, nil)
	rec2 := record.New(record.Position{Resource: "ks.tbl", Index: 2}, nil)
	rec3 := record.New(record.Position{Resource: "ks.tbl", Index: 3}, nil)
	batch := &statement.Batch{
		Type: statement.BatchLogged,
		Statements: []*statement.Statement{
			{Kind: statement.KindPrepared, Record: rec1},
			{Kind: statement.KindPrepared, Record: rec2},
			{Kind: statement.KindPrepared, Record: rec3},
		},
	}
	res := &statement.WriteResult{
		Batch:         batch,
		Success:       true,
		IsConditional: true,
		WasApplied:    false,
		AppliedRows:   []bool{false, false, false},
	}

	require.NoError(t, m.HandleFailedWrite(m.Context(), res))

	select {
	case <-m.Context().Done():
	default:
		t.Fatal("expected 3 non-applied rows against Absolute(2) to trip the threshold")
	}
	require.ErrorIs(t, context.Cause(m.Context()), ErrTooManyErrors)
	assert.EqualValues(t, 3, m.TotalErrors())
}

// TestQueryWarningsCapAtMaxThenSuppresses encodes spec.md §8's
// query-warnings-cap scenario: with max_query_warnings=1 and three
// warnings, only the first is logged and a single suppression notice
// follows.
func TestQueryWarningsCapAtMaxThenSuppresses(t *testing.T) {
	m := newTestManager(t, statement.Unlimited())

	var logged int
	for i := 0; i < 3; i++ {
		if m.recordWarning(context.Background()) {
			logged++
		}
	}

	assert.Equal(t, 1, logged)
	assert.EqualValues(t, 1, atomic.LoadInt32(&m.warningsCapped))
	assert.EqualValues(t, 3, atomic.LoadInt64(&m.warningCount))
}

// TestTerminateWritesPositionsAndSummary checks that Terminate flushes
// positions.txt and writes a completion summary to operation.log.
func TestTerminateWritesPositionsAndSummary(t *testing.T) {
	m := newTestManager(t, statement.Unlimited())
	m.HandleResultPosition("file:///a.csv", 1)
	m.HandleResultPosition("file:///a.csv", 2)

	require.NoError(t, m.Terminate(context.Background(), 65))

	positions := readFile(t, m, positionsFile)
	assert.Equal(t, "file:///a.csv:1-2\n", positions)

	opLog := readFile(t, m, operationLogFile)
	assert.Contains(t, opLog, "completed successfully in 00:01:05")
}

// TestNewWritesEffectiveSettingsWhenProvided encodes spec.md §6.3's
// effective-settings.log artifact: New renders Config.EffectiveSettings
// verbatim into the operation directory.
func TestNewWritesEffectiveSettingsWhenProvided(t *testing.T) {
	m, err := New(context.Background(), Config{
		OutputRoot:         t.TempDir(),
		ExecutionID:        "TEST_RUN",
		DataErrorThreshold: statement.Unlimited(),
		EffectiveSettings:  "engine:\n  dryRun: false\n",
	})
	require.NoError(t, err)

	content := readFile(t, m, effectiveSettingsFile)
	assert.Equal(t, "engine:\n  dryRun: false\n", content)
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

func assertErr(msg string) error {
	return simpleErr(msg)
}
