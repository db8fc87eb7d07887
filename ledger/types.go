/*
Package ledger implements the student payment ledger engine.

PURPOSE:
  This package contains the core types and algorithms for turning a set of
  monthly payment-plan rows and payment transactions into a coherent
  financial view: balance, overdue/advance classification, and tiered late
  penalties. The engine is a stateless transform - it owns no mutable state
  and recomputes everything from its inputs on every read.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money helpers: decimal amounts with defensive coercion at boundaries
  - PaymentPlanRow: one expected monthly obligation for a student in a course
  - PaymentTransaction: one recorded money movement (immutable amount)
  - Student/Course/Payment IDs: type-safe identifiers

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Recompute, never trust: persisted statuses are cache hints only;
     classification is always derived from transactions + dates
  3. Explicit time: "today" is always a parameter, never read from the clock
  4. Immutability: a transaction's amount never changes; the only legal
     mutation is the paid -> reversed status transition

SEE ALSO:
  - month.go: month references (YYYY-MM) and due-date arithmetic
  - penalty.go: tiered late-penalty calculation
  - classify.go: per-row status derivation
  - summary.go: the aggregated StudentLedgerSummary
*/
package ledger

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Decimal amounts with defensive coercion
// =============================================================================

// MoneyFromFloat converts a float to a money amount. Non-finite input
// (NaN, +/-Inf) yields zero - backend JSON is untyped and occasionally dirty,
// so every boundary coerces defensively instead of propagating garbage.
func MoneyFromFloat(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// MustMoney parses a decimal string, yielding zero on malformed input.
func MustMoney(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type StudentID string
type CourseID string
type PaymentID string
type PlanRowID string

// =============================================================================
// PAYMENT METHOD
// =============================================================================

type PaymentMethod string

const (
	MethodCash        PaymentMethod = "cash"
	MethodTransfer    PaymentMethod = "transfer"
	MethodCard        PaymentMethod = "card"
	MethodMobileMoney PaymentMethod = "mpesa"
	MethodOther       PaymentMethod = "other"
)

// KnownMethod reports whether m is one of the supported payment methods.
func KnownMethod(m PaymentMethod) bool {
	switch m {
	case MethodCash, MethodTransfer, MethodCard, MethodMobileMoney, MethodOther:
		return true
	}
	return false
}

// =============================================================================
// STATUSES
// =============================================================================

// PlanStatus is the derived classification of a plan row. The persisted
// status on a row is a stale cache hint; the engine recomputes it on every
// read because penalties accrue purely as a function of elapsed time.
type PlanStatus string

const (
	PlanPending PlanStatus = "pending"
	PlanPartial PlanStatus = "partial"
	PlanPaid    PlanStatus = "paid"
	PlanOverdue PlanStatus = "overdue"
)

// TxStatus is the lifecycle state of a payment transaction.
type TxStatus string

const (
	TxPaid     TxStatus = "paid"
	TxPartial  TxStatus = "partial"
	TxReversed TxStatus = "reversed"
)

// =============================================================================
// PAYMENT PLAN ROW - One expected monthly obligation
// =============================================================================

// PaymentPlanRow is one expected monthly obligation for a student in a course.
//
// INVARIANT: exactly one row per (StudentID, CourseID, Month).
// Rows are created when a course run starts (one per billing month), never by
// the engine itself, and never deleted - cancellation is a status, not a
// row removal.
type PaymentPlanRow struct {
	ID            PlanRowID
	StudentID     StudentID
	CourseID      CourseID
	Month         MonthRef
	DueDate       time.Time
	BaseAmountDue decimal.Decimal

	// RecordedStatus is whatever the writer last persisted. It may be stale
	// and is never used for computation - see classify.go.
	RecordedStatus PlanStatus

	Observations string
}

// =============================================================================
// PAYMENT TRANSACTION - One recorded money movement
// =============================================================================

// PaymentTransaction records money received from a student.
//
// A zero Month means the payment is an unallocated advance (wallet credit)
// not yet tied to a billing month.
//
// INVARIANT: a reversed transaction contributes zero to every aggregate but
// remains in history for audit. The amount is immutable once created.
type PaymentTransaction struct {
	ID        PaymentID
	StudentID StudentID
	CourseID  CourseID
	Month     MonthRef // zero value = advance / wallet credit
	Amount    decimal.Decimal
	Method    PaymentMethod
	Status    TxStatus
	PaidDate  time.Time

	ReceiptNumber string
	Observations  string

	CreatedAt time.Time
}

// Counts reports whether the transaction contributes to aggregates.
func (t PaymentTransaction) Counts() bool {
	return t.Status != TxReversed
}

// Allocated reports whether the transaction targets a specific billing month.
func (t PaymentTransaction) Allocated() bool {
	return !t.Month.IsZero()
}
