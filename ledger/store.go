/*
store.go - Persistence interface for plan rows and payments

PURPOSE:
  Defines the interface between the ledger engine and the database.
  Different implementations back it with SQLite, PostgreSQL, or memory.

MUTATION CONTRACT:
  - Plan rows are upserted (SavePlans); the (student, course, month)
    uniqueness invariant is enforced here.
  - Payments are append-only in amount: once written, the only legal
    mutation is MarkReversed. Corrections happen by reversing and
    re-recording, never by editing.
  - RecordedStatus on plan rows is a cache hint the engine refreshes after
    writes and ignores on reads.

IMPLEMENTATIONS:
  - ledger/store/memory.go: in-memory, for tests and dev
  - store/sqlite: production SQLite
  - store/postgres: PostgreSQL

SEE ALSO:
  - service.go: the orchestration layer using this interface
*/
package ledger

import "context"

// Store handles persistence of plan rows, payments, and the penalty policy.
type Store interface {
	// SavePlans upserts plan rows. Returns ErrDuplicatePlanMonth when a NEW
	// row (different ID) targets an occupied (student, course, month) slot.
	SavePlans(ctx context.Context, rows []PaymentPlanRow) error

	// PlansFor returns all plan rows for a student/course, by month ascending.
	PlansFor(ctx context.Context, studentID StudentID, courseID CourseID) ([]PaymentPlanRow, error)

	// AppendPayments persists payments atomically: all or none.
	AppendPayments(ctx context.Context, txs []PaymentTransaction) error

	// MarkReversed transitions a payment to reversed.
	// Returns ErrPaymentNotFound for unknown IDs. Idempotent.
	MarkReversed(ctx context.Context, id PaymentID) error

	// PaymentsFor returns all payments for a student/course, by paid date,
	// reversed transactions included.
	PaymentsFor(ctx context.Context, studentID StudentID, courseID CourseID) ([]PaymentTransaction, error)

	// Policy returns the active penalty policy (the default when unset).
	Policy(ctx context.Context) (PenaltyPolicy, error)

	// SavePolicy replaces the active penalty policy.
	SavePolicy(ctx context.Context, policy PenaltyPolicy) error
}
