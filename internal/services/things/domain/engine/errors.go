package engine

import "errors"

var (
	// ErrRegistryRequired indicates a missing command registry.
	ErrRegistryRequired = errors.New("command registry is required")
	// ErrDispatcherRequired indicates a missing strategy dispatcher.
	ErrDispatcherRequired = errors.New("strategy dispatcher is required")
	// ErrJournalRequired indicates a missing event journal.
	ErrJournalRequired = errors.New("event journal is required")
	// ErrStoreRequired indicates a missing config store.
	ErrStoreRequired = errors.New("config store is required")
)

// nonRetryableError marks an error raised after the event was journaled.
// Retrying the command would append a second event.
type nonRetryableError struct {
	err error
}

func (e *nonRetryableError) Error() string { return e.err.Error() }
func (e *nonRetryableError) Unwrap() error { return e.err }

// NonRetryable returns true from IsNonRetryable checks.
func (e *nonRetryableError) NonRetryable() bool { return true }

func wrapNonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &nonRetryableError{err: err}
}

// IsNonRetryable reports whether err, or any error in its chain, must not
// be retried.
func IsNonRetryable(err error) bool {
	var target interface{ NonRetryable() bool }
	if errors.As(err, &target) {
		return target.NonRetryable()
	}
	return false
}
