// Package engine implements the pipeline orchestrator (spec.md §4.1):
// it wires the connector, mapper, batcher, executor, and log manager
// into the load/unload/count stage chain of spec.md §2, picks a
// scheduling regime from the connector's declared resource count, runs
// the pipeline to completion, and tears every component down in a
// fixed, idempotent order.
package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cloudshuttle/cqlbulk/pkg/batcher"
	"github.com/cloudshuttle/cqlbulk/pkg/bulkerrors"
	"github.com/cloudshuttle/cqlbulk/pkg/config"
	"github.com/cloudshuttle/cqlbulk/pkg/connector"
	"github.com/cloudshuttle/cqlbulk/pkg/driver"
	"github.com/cloudshuttle/cqlbulk/pkg/executor"
	"github.com/cloudshuttle/cqlbulk/pkg/logger"
	"github.com/cloudshuttle/cqlbulk/pkg/logmanager"
	"github.com/cloudshuttle/cqlbulk/pkg/metrics"
	"github.com/cloudshuttle/cqlbulk/pkg/observability"
	"github.com/cloudshuttle/cqlbulk/pkg/record"
	"github.com/cloudshuttle/cqlbulk/pkg/statement"
)

// Mode selects which workflow the orchestrator runs.
type Mode int

const (
	// ModeLoad streams records from the connector into the cluster.
	ModeLoad Mode = iota
	// ModeUnload streams rows from the cluster into the connector.
	ModeUnload
	// ModeCount runs the load-direction read and mapping stages with the
	// executor in dry-run mode, so no call ever reaches the driver — a
	// read-only validation pass (spec.md §12 "count as a read-only
	// pipeline run").
	ModeCount
)

// resourceCountThreshold is the default boundary between the two
// scheduling regimes (spec.md §4.1: "thread-per-resource ... when
// resource count >= a threshold, default 4").
const resourceCountThreshold = 4

// defaultWindowSize is the parallel-windowed regime's chunk size when
// batch.bufferSize is unset or non-positive (spec.md §4.1 "a small
// buffer, default 256").
const defaultWindowSize = 256

// Mapper converts between Records and Statements/rows, standing in for
// the out-of-scope codec layer (spec.md §1 "type conversion codecs...
// are out of scope, interfaced only").
type Mapper interface {
	// ToStatement maps a load-direction record into a database-bound
	// statement, or returns an error if the record cannot be mapped
	// (missing field, codec rejection).
	ToStatement(rec *record.Record) (*statement.Statement, error)
	// ToRecord maps one unload-direction result row into a record, or
	// returns an error if the row cannot be mapped.
	ToRecord(resource string, position int64, row interface{}) (*record.Record, error)
}

// Config assembles an Engine from its external collaborators (spec.md
// §6): the connector, the driver, the mapper, and the resolved
// settings tree.
type Config struct {
	Settings  config.Settings
	Connector connector.Connector
	Driver    driver.Driver
	Mapper    Mapper
	Metrics   *metrics.Collector
}

// Report summarizes one completed run (spec.md §7 "the process prints
// a one-line summary per run").
type Report struct {
	TotalItems   int64
	TotalErrors  int64
	Duration     time.Duration
	OperationDir string
	Aborted      bool
}

// Engine is one run's orchestrator instance.
type Engine struct {
	cfg    Config
	logMgr *logmanager.Manager
	log    *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// New constructs an Engine, resolving executionId and opening the log
// manager's operation directory. Call Close (or let Run call it) to
// release resources.
func New(cfg Config) (*Engine, error) {
	threshold, err := cfg.Settings.Log.ParseThreshold()
	if err != nil {
		return nil, err
	}

	executionID := cfg.Settings.ResolveExecutionID(time.Now())
	baseCtx := context.WithValue(context.Background(), logger.ExecutionIDKey, executionID)
	logMgr, err := logmanager.New(baseCtx, logmanager.Config{
		OutputRoot:         cfg.Settings.Log.Directory,
		ExecutionID:        executionID,
		DataErrorThreshold: threshold,
		MaxQueryWarnings:   cfg.Settings.Log.MaxQueryWarnings,
		EffectiveSettings:  cfg.Settings.Render(),
	})
	if err != nil {
		return nil, fmt.Errorf("engine: opening log manager: %w", err)
	}

	return &Engine{
		cfg:    cfg,
		logMgr: logMgr,
		log:    logger.Get().With(zap.String("component", "engine"), zap.String("executionId", executionID)),
	}, nil
}

// Run executes the pipeline for the given mode and shuts every
// component down in order before returning, regardless of outcome
// (spec.md §5 "Cancellation" / shutdown ordering).
func (e *Engine) Run(ctx context.Context, mode Mode) (*Report, error) {
	start := time.Now()
	runCtx := e.logMgr.Context()

	if err := e.cfg.Connector.Init(runCtx); err != nil {
		e.Close(ctx)
		return nil, bulkerrors.Wrap(err, bulkerrors.ErrConnector, "failed to initialize connector")
	}

	var runErr error
	switch mode {
	case ModeLoad, ModeCount:
		runErr = e.runLoad(runCtx, mode)
	case ModeUnload:
		runErr = e.runUnload(runCtx)
	default:
		runErr = fmt.Errorf("engine: unknown mode %d", mode)
	}

	elapsed := time.Since(start)
	aborted := context.Cause(runCtx) != nil && context.Cause(runCtx) != context.Canceled

	if termErr := e.logMgr.Terminate(ctx, elapsed.Seconds()); termErr != nil && runErr == nil {
		runErr = termErr
	}

	report := &Report{
		TotalItems:   e.logMgr.TotalItems(),
		TotalErrors:  e.logMgr.TotalErrors(),
		Duration:     elapsed,
		OperationDir: e.logMgr.OperationDir(),
		Aborted:      aborted,
	}

	closeErr := e.Close(ctx)
	if runErr == nil {
		runErr = closeErr
	}

	if aborted && runErr == nil {
		runErr = bulkerrors.New(bulkerrors.ErrThreshold, "too many errors")
	}

	return report, runErr
}

// Close closes the connector exactly once (guarded by a sync.Once), so
// it is safe to call from both the run path and a signal handler
// (spec.md §9 "Scheduler teardown must be idempotent"). It closes
// nothing else: the log manager's files are flushed and closed by
// Terminate, which Run calls before Close, and the metrics collector
// holds nothing to close.
func (e *Engine) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		if err := e.cfg.Connector.Close(ctx); err != nil {
			e.closeErr = err
		}
	})
	return e.closeErr
}

// recordMetric feeds the passive metrics tap (spec.md §2 "Metrics
// tap"), a no-op when no collector was configured.
func (e *Engine) recordMetric(name string, delta float64) {
	if e.cfg.Metrics == nil {
		return
	}
	e.cfg.Metrics.RecordCounter(name, delta)
}

// chooseRegime decides thread-per-resource vs parallel-windowed from
// the connector's declared estimated resource count (spec.md §4.1).
// Zero means unknown, treated as large — thread-per-resource.
func chooseRegime(estimatedResourceCount int) bool {
	return estimatedResourceCount == 0 || estimatedResourceCount >= resourceCountThreshold
}

// runLoad implements the load-direction stage chain of spec.md §2. In
// ModeCount, execution is replaced with a synthetic always-success
// result so the run validates mapping without touching the cluster,
// the same short-circuit dry-run uses (spec.md §12).
func (e *Engine) runLoad(ctx context.Context, mode Mode) error {
	threadPerResource := chooseRegime(e.cfg.Connector.EstimatedResourceCount())

	// loadCtx carries the sole unrecoverable-error abort path (spec.md
	// §4.1, §4.3): it bypasses the error threshold entirely, so it is
	// wired through its own cancellation cause rather than the log
	// manager's threshold context, and cancels every sibling
	// resource/window worker as soon as one driver call reports it.
	loadCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var errMu sync.Mutex
	var firstErr error
	fail := func(err error) {
		errMu.Lock()
		defer errMu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
		cancel(err)
	}

	if threadPerResource {
		streams, err := e.cfg.Connector.ReadByResource(loadCtx)
		if err != nil {
			return bulkerrors.Wrap(err, bulkerrors.ErrConnector, "failed to start resource reader")
		}

		cores := runtime.NumCPU()
		sem := make(chan struct{}, cores)
		var wg sync.WaitGroup
		for stream := range streams {
			sem <- struct{}{}
			wg.Add(1)
			go func(s connector.ResourceStream) {
				defer wg.Done()
				defer func() { <-sem }()
				spanCtx, span := observability.NewSpan(loadCtx, "engine.load.resource")
				span.SetAttribute("resource", s.Resource)
				spanCtx = context.WithValue(spanCtx, logger.ResourceKey, s.Resource)
				if err := e.processStream(spanCtx, s.Records, mode); err != nil {
					fail(err)
				}
				span.End()
			}(stream)
		}
		wg.Wait()
		errMu.Lock()
		defer errMu.Unlock()
		return firstErr
	}

	flat, err := e.cfg.Connector.Read(loadCtx)
	if err != nil {
		return bulkerrors.Wrap(err, bulkerrors.ErrConnector, "failed to start reader")
	}

	windowSize := e.cfg.Settings.Batch.BufferSize
	if windowSize <= 0 {
		windowSize = defaultWindowSize
	}

	cores := runtime.NumCPU()
	sem := make(chan struct{}, cores)
	var wg sync.WaitGroup
	windowID := 0
	for window := range chunk(flat, windowSize) {
		sem <- struct{}{}
		wg.Add(1)
		id := windowID
		windowID++
		go func(w []*record.Record) {
			defer wg.Done()
			defer func() { <-sem }()
			spanCtx, span := observability.NewSpan(loadCtx, "engine.load.window")
			span.SetAttribute("window", id)
			span.SetAttribute("size", len(w))
			spanCtx = context.WithValue(spanCtx, logger.WorkerIDKey, fmt.Sprintf("window-%d", id))
			in := make(chan *record.Record, len(w))
			for _, rec := range w {
				in <- rec
			}
			close(in)
			if err := e.processStream(spanCtx, in, mode); err != nil {
				fail(err)
			}
			span.End()
		}(window)
	}
	wg.Wait()
	errMu.Lock()
	defer errMu.Unlock()
	return firstErr
}

// chunk dispatches records from in into slices of at most size,
// implementing the parallel-windowed regime's chunking (spec.md §4.1
// "windows it into chunks of size batch_buffer_size").
func chunk(in <-chan *record.Record, size int) <-chan []*record.Record {
	out := make(chan []*record.Record)
	go func() {
		defer close(out)
		buf := make([]*record.Record, 0, size)
		for rec := range in {
			buf = append(buf, rec)
			if len(buf) >= size {
				out <- buf
				buf = make([]*record.Record, 0, size)
			}
		}
		if len(buf) > 0 {
			out <- buf
		}
	}()
	return out
}

// processStream runs one record stream through map -> (optional
// batch) -> execute -> account, sharing one Batcher and one Executor
// per call so ordering within the stream is preserved (spec.md §5
// "within one resource, sequential"). It returns non-nil only when the
// executor reports an unrecoverable driver error, the one failure that
// bypasses the error threshold and must abort the run rather than be
// folded into the error count.
func (e *Engine) processStream(ctx context.Context, in <-chan *record.Record, mode Mode) error {
	b := batcher.New(batcher.Config{
		Mode:               parseBatchMode(e.cfg.Settings.Batch.Mode),
		MaxBatchStatements: nonZero(e.cfg.Settings.Batch.MaxBatchStatements, batcher.DefaultMaxBatchStatements),
		MaxBatchSizeBytes:  nonZero(e.cfg.Settings.Batch.MaxBatchSizeBytes, batcher.DefaultMaxBatchSizeBytes),
	}, e.cfg.Driver)

	exec := executor.New(executor.Config{
		MaxInFlight:  e.cfg.Settings.Executor.MaxInFlight,
		CoreCount:    runtime.NumCPU(),
		MaxPerSecond: e.cfg.Settings.Executor.MaxPerSecond,
		DryRun:       e.cfg.Settings.Engine.DryRun || mode == ModeCount,
	}, e.cfg.Driver)

	statements := make(chan *statement.Statement)
	go func() {
		defer close(statements)
		for rec := range in {
			select {
			case <-ctx.Done():
				return
			default:
			}

			e.logMgr.CountItem()
			e.recordMetric("records_processed", 1)

			if rec.IsError() {
				e.recordMetric("records_failed", 1)
				if err := e.logMgr.HandleFailedRecord(ctx, rec); err != nil {
					e.log.Error("failed to write connector error artifact", zap.Error(err))
				}
				continue
			}

			stmt, err := e.cfg.Mapper.ToStatement(rec)
			if err != nil {
				if herr := e.logMgr.HandleUnmappableStatement(ctx, rec, err); herr != nil {
					e.log.Error("failed to write mapping error artifact", zap.Error(herr))
				}
				continue
			}

			select {
			case statements <- stmt:
			case <-ctx.Done():
				return
			}
		}
	}()

	executable := batcher.Run(ctx, b, statements)
	for item := range executable {
		res, err := exec.Execute(ctx, item)
		if err != nil {
			// A cancelled run (threshold abort or a sibling's failure)
			// surfaces here as a context error, not a driver error.
			if ctx.Err() != nil && !bulkerrors.IsType(err, bulkerrors.ErrUnrecoverable) {
				return nil
			}
			// Unrecoverable: this is the sole path that bypasses the
			// error threshold (spec.md §4.1, §4.3). Propagate it to the
			// caller so the run aborts instead of continuing silently.
			e.log.Error("unrecoverable driver error, aborting", zap.Error(err))
			return err
		}

		e.logMgr.HandleQueryWarnings(ctx, res.Warnings)
		if err := e.logMgr.HandleFailedWrite(ctx, res); err != nil {
			e.log.Error("failed to write write-failure artifact", zap.Error(err))
			continue
		}
		if res.Success && !res.IsCASFailure() {
			recordResultPositions(e.logMgr, res)
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
	return nil
}

// runUnload is a partial mirror of runLoad: the driver interface of
// spec.md §6.2 only names prepare/execute_async, not a row-streaming
// read call, so no rows are fetched. It opens the connector's Write
// path and hands it an empty record stream. The Mapper's ToRecord is
// not called, and no log-manager handler (query warnings, failed
// reads, unmappable records) is invoked on this path.
func (e *Engine) runUnload(ctx context.Context) error {
	records := make(chan *record.Record, defaultWindowSize)
	go func() {
		defer close(records)
		// A full unload driver-read loop is connector/driver specific
		// and out of this core's narrow interfaces; this reference
		// engine models the accounting path with an empty result set.
	}()

	if err := e.cfg.Connector.Write(ctx, records); err != nil {
		return bulkerrors.Wrap(err, bulkerrors.ErrMappingUnload, "failed to write unloaded records")
	}
	return nil
}

func recordResultPositions(logMgr *logmanager.Manager, res *statement.WriteResult) {
	if res.Batch != nil {
		for _, s := range res.Batch.Statements {
			if s.IsMapped() {
				logMgr.HandleResultPosition(s.Record.Pos.Resource, s.Record.Pos.Index)
			}
		}
		return
	}
	if res.Statement != nil && res.Statement.IsMapped() {
		logMgr.HandleResultPosition(res.Statement.Record.Pos.Resource, res.Statement.Record.Pos.Index)
	}
}

func parseBatchMode(mode string) statement.BatchMode {
	if mode == "REPLICA_SET" {
		return statement.BatchModeReplicaSet
	}
	return statement.BatchModePartitionKey
}

func nonZero(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
