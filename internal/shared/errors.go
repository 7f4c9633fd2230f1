package shared

import (
	"errors"
	"fmt"
	"log/slog"
)

// Error taxonomy for the back-office core. Domain packages wrap these
// sentinels so callers can classify failures with errors.Is.
var (
	// ErrValidation indicates rejected input on a primary write.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates the operation is illegal in the current state.
	ErrConflict = errors.New("conflict")
	// ErrDependency marks a failed secondary effect. Never surfaced to
	// callers of the primary write; see LogDependencyFailure.
	ErrDependency = errors.New("dependency failure")
)

// Validationf builds a validation error with a human-readable reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf builds a not-found error with a human-readable reason.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Conflictf builds a conflict error with a human-readable reason.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// DependencyError wraps a failed cascading effect with enough context for
// manual reconciliation.
type DependencyError struct {
	Op     string
	Entity string
	ID     int64
	Err    error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s %s/%d: %v", e.Op, e.Entity, e.ID, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// Is reports ErrDependency membership regardless of the wrapped cause.
func (e *DependencyError) Is(target error) bool { return target == ErrDependency }

// LogDependencyFailure records a swallowed secondary-effect failure. The
// primary write has already succeeded; the reconciliation sweep heals the
// resulting drift.
func LogDependencyFailure(logger *slog.Logger, op, entity string, id int64, err error) {
	if logger == nil || err == nil {
		return
	}
	dep := &DependencyError{Op: op, Entity: entity, ID: id, Err: err}
	logger.Error("dependency failure swallowed",
		slog.String("op", op),
		slog.String("entity", entity),
		slog.Int64("entity_id", id),
		slog.Any("error", dep),
	)
}
