// Package executor implements the bounded in-flight adapter over a
// driver's async execute call (spec.md §4.3): uniform async
// execute(statement) → Result, in-flight concurrency enforcement,
// recoverable/unrecoverable failure classification, dry-run
// short-circuit, and an optional requests-per-second rate cap.
package executor

import (
	"context"
	"errors"

	"github.com/cloudshuttle/cqlbulk/pkg/bulkerrors"
	"github.com/cloudshuttle/cqlbulk/pkg/clients"
	"github.com/cloudshuttle/cqlbulk/pkg/driver"
	"github.com/cloudshuttle/cqlbulk/pkg/statement"
)

const defaultInFlightPerWorker = 32

// Config controls the executor's concurrency and rate bounds.
type Config struct {
	// MaxInFlight is the global in-flight statement cap across all
	// workers. Zero means use defaultInFlightPerWorker (32) per worker
	// instead.
	MaxInFlight int
	// CoreCount is the number of workers the orchestrator runs, used
	// to derive per-worker concurrency from MaxInFlight.
	CoreCount int
	// MaxPerSecond, if non-zero, caps the executor's submission rate.
	MaxPerSecond float64
	// DryRun short-circuits execution entirely (spec.md §4.1).
	DryRun bool
}

// PerWorkerConcurrency computes max(32, maxInFlight/coreCount) per
// spec.md §4.1, or the default when MaxInFlight is unset.
func (c Config) PerWorkerConcurrency() int {
	if c.MaxInFlight <= 0 {
		return defaultInFlightPerWorker
	}
	cores := c.CoreCount
	if cores < 1 {
		cores = 1
	}
	perWorker := c.MaxInFlight / cores
	if perWorker < defaultInFlightPerWorker {
		return defaultInFlightPerWorker
	}
	return perWorker
}

// Executor submits statements/batches to a driver.Driver with bounded
// in-flight concurrency via a semaphore sized by PerWorkerConcurrency.
type Executor struct {
	cfg     Config
	d       driver.Driver
	sem     chan struct{}
	limiter clients.RateLimiter
}

// New constructs an Executor for one worker. Call New once per worker
// in the orchestrator's pool so each gets its own semaphore sized by
// PerWorkerConcurrency (spec.md §4.1: "Total in-flight across workers
// approximates max_in_flight").
func New(cfg Config, d driver.Driver) *Executor {
	e := &Executor{
		cfg: cfg,
		d:   d,
		sem: make(chan struct{}, cfg.PerWorkerConcurrency()),
	}
	if cfg.MaxPerSecond > 0 {
		e.limiter = clients.NewRateLimiter(int(cfg.MaxPerSecond), int(cfg.MaxPerSecond))
	}
	return e
}

// Execute submits item (a *statement.Statement or *statement.Batch)
// and blocks until a result is available, an in-flight slot opens, or
// ctx is cancelled.
//
// In dry-run mode, no call reaches the driver; a synthetic
// always-success result is returned immediately so that downstream
// warning/error gates still fire (spec.md §4.1, §8 "Dry-run").
//
// Unrecoverable failures (argument validation, protocol errors,
// programming errors) are returned as an error for the caller to
// propagate synchronously, bypassing the threshold (spec.md §4.3,
// §9 Open Question 1). Recoverable failures are folded into the
// returned WriteResult as a failure, never as a Go error.
func (e *Executor) Execute(ctx context.Context, item interface{}) (*statement.WriteResult, error) {
	if e.cfg.DryRun {
		return dryRunResult(item), nil
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-e.sem }()

	fut, err := e.d.ExecuteAsync(ctx, item)
	if err != nil {
		return classify(item, err)
	}

	result, err := fut.Await(ctx)
	if err != nil {
		return classify(item, err)
	}
	return result, nil
}

// classify turns a driver-reported error into either a failure
// WriteResult (recoverable) or a propagated error (unrecoverable).
func classify(item interface{}, err error) (*statement.WriteResult, error) {
	var de *driver.Error
	if errors.As(err, &de) {
		if de.Kind == driver.FailureUnrecoverable {
			return nil, bulkerrors.Wrap(err, bulkerrors.ErrUnrecoverable, "unrecoverable driver error")
		}
		return failureResult(item, err), nil
	}
	// A driver error not wrapped in driver.Error is treated as
	// recoverable by default (spec.md §4.3 lists timeout/unavailable/
	// write-timeout/read-timeout as the recoverable set; an
	// unclassified error is conservatively folded into that set rather
	// than aborting the run).
	return failureResult(item, err), nil
}

func failureResult(item interface{}, err error) *statement.WriteResult {
	switch v := item.(type) {
	case *statement.Statement:
		return &statement.WriteResult{Statement: v, Success: false, Cause: err}
	case *statement.Batch:
		return &statement.WriteResult{Batch: v, Success: false, Cause: err}
	default:
		return &statement.WriteResult{Success: false, Cause: err}
	}
}

func dryRunResult(item interface{}) *statement.WriteResult {
	switch v := item.(type) {
	case *statement.Statement:
		return statement.EmptySuccessWriteResult(v)
	case *statement.Batch:
		return statement.EmptySuccessBatchWriteResult(v)
	default:
		return &statement.WriteResult{Success: true}
	}
}
