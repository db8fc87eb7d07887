/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is/As; the API layer maps these to HTTP status.

ERROR CATEGORIES:
  1. Recording errors - invalid payments handed to the allocator
  2. Aggregation errors - summary computed from incomplete inputs
  3. Store errors - missing rows, duplicate months

SEE ALSO:
  - allocation.go: returns InvalidAmount / InconsistentAllocation
  - service.go: wraps fetch failures as IncompleteData
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned when a payment amount is zero or negative.
	ErrInvalidAmount = errors.New("payment amount must be positive")

	// ErrInconsistentAllocation is returned when a payment names a billing
	// month that has no plan row and the caller requested single-month
	// allocation. Callers may fall back to wallet handling instead of
	// surfacing this as fatal.
	ErrInconsistentAllocation = errors.New("month reference matches no plan row")

	// ErrIncompleteData is returned when a summary is requested but only one
	// of {plans, payments} could be fetched. The whole computation fails
	// rather than producing a partial, misleading result.
	ErrIncompleteData = errors.New("incomplete ledger data")

	// ErrReversedPayment is returned when a reversed transaction is handed to
	// the allocator. Reversal is a state transition on an existing
	// transaction, never a new allocation.
	ErrReversedPayment = errors.New("reversed payment cannot be allocated")

	// ErrPaymentNotFound is returned when a reversal targets an unknown
	// transaction.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrDuplicatePlanMonth is returned when a plan row would violate the
	// one-row-per-(student, course, month) invariant.
	ErrDuplicatePlanMonth = errors.New("plan row already exists for month")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// AllocationError details why a payment could not be allocated.
type AllocationError struct {
	StudentID StudentID
	CourseID  CourseID
	Month     MonthRef
	Reason    error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("cannot allocate payment for %s/%s month %q: %v",
		e.StudentID, e.CourseID, e.Month, e.Reason)
}

func (e *AllocationError) Unwrap() error { return e.Reason }

// IncompleteDataError reports which fetch failed during summary computation.
type IncompleteDataError struct {
	Missing string // "plans" or "payments"
	Cause   error
}

func (e *IncompleteDataError) Error() string {
	return fmt.Sprintf("incomplete ledger data: %s fetch failed: %v", e.Missing, e.Cause)
}

// Unwrap exposes both the sentinel and the underlying fetch failure, so
// errors.Is matches either.
func (e *IncompleteDataError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrIncompleteData}
	}
	return []error{ErrIncompleteData, e.Cause}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInconsistentAllocation) ||
		errors.Is(err, ErrReversedPayment) ||
		errors.Is(err, ErrDuplicatePlanMonth)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPaymentNotFound)
}
