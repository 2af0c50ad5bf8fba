package orders

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("order: not found")
	// ErrConflict is returned when a status update keeps losing to concurrent writers.
	ErrConflict = errors.New("order: concurrent update conflict")
	// ErrUnavailable is returned when the repository did not answer in time.
	ErrUnavailable = errors.New("order: repository unavailable")
	// ErrRepository wraps any other storage failure.
	ErrRepository = errors.New("order: repository error")

	// ErrStatusMismatch reports a failed conditional write.
	ErrStatusMismatch          = errors.New("order: status mismatch")
	ErrDuplicateIdempotencyKey = errors.New("order: idempotency key already recorded")
	ErrIdempotencyKeyReused    = errors.New("order: idempotency key reused with a different request")
	ErrErrorMessageNotAllowed  = errors.New("order: errorMessage is only allowed when status is FAILED")
	ErrInvalidCursor           = errors.New("order: invalid cursor")
)

// TransitionError is returned for a status change not in the transition table.
type TransitionError struct {
	Current   Status
	Requested Status
	Allowed   []Status
}

func (e *TransitionError) Error() string {
	allowed := make([]string, 0, len(e.Allowed))
	for _, s := range e.Allowed {
		allowed = append(allowed, string(s))
	}
	return fmt.Sprintf("order: cannot transition from %s to %s (allowed: [%s])",
		e.Current, e.Requested, strings.Join(allowed, ", "))
}
