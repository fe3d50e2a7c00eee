// Package logmanager implements the log manager (spec.md §4.4): the
// family of pipeline stage functions that observe every failure point,
// write durable diagnostic artifacts under the operation directory, and
// enforce stop-the-world error thresholds.
package logmanager

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/cloudshuttle/cqlbulk/pkg/bulkerrors"
	"github.com/cloudshuttle/cqlbulk/pkg/logger"
	"github.com/cloudshuttle/cqlbulk/pkg/position"
	"github.com/cloudshuttle/cqlbulk/pkg/statement"
)

// Config controls thresholds and output location.
type Config struct {
	// OutputRoot is the directory beneath which the executionId
	// operation directory is created (spec.md §4.4, §6.3).
	OutputRoot string
	// ExecutionID names the operation directory.
	ExecutionID string

	// DataErrorThreshold governs connector/mapping/write/read/CAS
	// errors (spec.md §4.4 "Threshold enforcement").
	DataErrorThreshold statement.ErrorThreshold
	// MaxQueryWarnings governs query_warnings_handler's suppression
	// point (spec.md §4.4: "log at WARN up to max_query_warnings").
	MaxQueryWarnings int64

	// EffectiveSettings is the resolved configuration snapshot to render
	// into effective-settings.log (spec.md §6.3). Skipped if empty.
	EffectiveSettings string
}

// Manager is the log manager. One Manager is constructed per run.
type Manager struct {
	cfg     Config
	files   *artifacts
	tracker *position.Tracker
	ctx     context.Context
	cancel  context.CancelCauseFunc

	totalItems     int64
	dataErrors     int64
	warningCount   int64
	warningsCapped int32 // single-shot flag: suppression message emitted
}

// ErrTooManyErrors is the sentinel the orchestrator finds, wrapped, in
// context.Cause when a threshold trips (spec.md §4.4 "Signals
// propagate as an error through the pipeline, cancelling upstream and
// triggering shutdown").
var ErrTooManyErrors = fmt.Errorf("too many errors")

// New constructs a Manager and creates its operation directory (the
// artifact files themselves are opened on first write, per spec.md §4.4).
// parentCtx is the orchestrator's run context; the returned Manager's
// Context() is cancelled with ErrTooManyErrors when a threshold trips.
func New(parentCtx context.Context, cfg Config) (*Manager, error) {
	dir := operationDir(cfg.OutputRoot, cfg.ExecutionID)
	files, err := newArtifacts(dir)
	if err != nil {
		return nil, err
	}
	if cfg.EffectiveSettings != "" {
		if err := files.writeEffectiveSettings(cfg.EffectiveSettings); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancelCause(parentCtx)
	return &Manager{
		cfg:     cfg,
		files:   files,
		tracker: position.New(),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Context returns the run context this manager cancels on threshold.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// OperationDir returns the directory artifacts are written under.
func (m *Manager) OperationDir() string {
	return m.files.dir
}

// TotalErrors returns the current data-error count.
func (m *Manager) TotalErrors() int64 {
	return atomic.LoadInt64(&m.dataErrors)
}

// TotalItems returns the current total-items count.
func (m *Manager) TotalItems() int64 {
	return atomic.LoadInt64(&m.totalItems)
}

// recordError increments the error counter and checks the data error
// threshold, cancelling the run context if it trips. Called by every
// failure-handling stage after writing its artifacts (spec.md §4.4:
// "After every error increment, the log manager checks...").
func (m *Manager) recordError() {
	errs := atomic.AddInt64(&m.dataErrors, 1)
	total := atomic.LoadInt64(&m.totalItems)
	if m.cfg.DataErrorThreshold.Exceeded(errs, total) {
		m.cancel(bulkerrors.Wrap(ErrTooManyErrors, bulkerrors.ErrThreshold,
			fmt.Sprintf("too many errors, the maximum allowed is %d", m.cfg.DataErrorThreshold.Absolute)).
			WithDetail("error_count", errs).WithDetail("total_items", total))
	}
}

// recordWarning increments the warning counter and reports whether the
// caller should log this particular warning at WARN level. Once
// MaxQueryWarnings is crossed, it instead emits a single suppression
// message and tells the caller to stay silent for every warning after
// that (spec.md §4.4 query_warnings_handler).
func (m *Manager) recordWarning(ctx context.Context) (shouldLog bool) {
	count := atomic.AddInt64(&m.warningCount, 1)
	if count <= m.cfg.MaxQueryWarnings {
		return true
	}
	if atomic.CompareAndSwapInt32(&m.warningsCapped, 0, 1) {
		logger.WithContext(ctx).Warn("subsequent warnings will not be logged")
	}
	return false
}

func operationDir(root, executionID string) string {
	if root == "" {
		root = "."
	}
	return root + "/" + executionID
}
