package driver

// FailureKind classifies a driver-reported execution failure into the
// recoverable/unrecoverable split the executor adapter enforces
// (spec.md §4.3).
type FailureKind int

const (
	// FailureRecoverable covers timeout, unavailable, write-timeout,
	// and read-timeout errors: the executor wraps these as a failure
	// result and counts them toward the error threshold.
	FailureRecoverable FailureKind = iota
	// FailureUnrecoverable covers argument-validation, protocol, and
	// programming-error failures: the executor rethrows these
	// synchronously, bypassing the error threshold entirely.
	FailureUnrecoverable
)

// Error is the error type driver implementations (and the Mock) return
// from ExecuteAsync/Await to signal which classification bucket a
// failure belongs to. A driver implementation that returns a plain Go
// error without wrapping it in driver.Error is treated as recoverable
// by the executor's default classification.
type Error struct {
	Kind    FailureKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Recoverable constructs a recoverable driver.Error (timeout,
// unavailable, write-timeout, read-timeout).
func Recoverable(message string, cause error) *Error {
	return &Error{Kind: FailureRecoverable, Message: message, Cause: cause}
}

// Unrecoverable constructs an unrecoverable driver.Error (argument
// validation, protocol error, programming error).
func Unrecoverable(message string, cause error) *Error {
	return &Error{Kind: FailureUnrecoverable, Message: message, Cause: cause}
}
