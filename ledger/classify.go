/*
classify.go - Per-row status derivation

PURPOSE:
  Computes the live status and owed amount of a single plan row from the
  payments allocated to it and the calendar. This is the one place status
  is decided; everything else (summary, API, stores) consumes the result.

WHY RECOMPUTE?
  The persisted status on a row can be stale the moment it is written:
  penalties accrue purely as a function of elapsed time, so a row stored as
  "pending" yesterday must present as "overdue" today without any write.
  The recorded field is treated as a cache hint only, never a source of truth.

DECISION ORDER (first match wins):
  1. paidSoFar >= totalOwed             -> paid
  2. 0 < paidSoFar < totalOwed          -> partial
  3. paidSoFar == 0 && today > dueDate  -> overdue
  4. otherwise                          -> pending

SEE ALSO:
  - penalty.go: the surcharge folded into totalOwed
  - summary.go: aggregates classifications across all rows
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CLASSIFICATION - Derived view of one plan row
// =============================================================================

// Classification is the computed state of a plan row at a point in time.
type Classification struct {
	Status    PlanStatus
	PaidSoFar decimal.Decimal // non-reversed payments allocated to this month
	Penalty   decimal.Decimal
	TotalOwed decimal.Decimal // base + penalty
}

// Remaining returns how much is still owed on the row (never negative;
// overpayment surfaces in the summary balance, not here).
func (c Classification) Remaining() decimal.Decimal {
	r := c.TotalOwed.Sub(c.PaidSoFar)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// Classify derives the row's status and owed amount. allocated must contain
// only payments whose month reference equals the row's month (AllocatedTo
// does the filtering when starting from the full transaction set).
func Classify(row PaymentPlanRow, allocated []PaymentTransaction, today time.Time, policy PenaltyPolicy) Classification {
	paid := decimal.Zero
	for _, p := range allocated {
		if p.Counts() {
			paid = paid.Add(p.Amount)
		}
	}

	penalty := ComputePenalty(row.BaseAmountDue, row.DueDate, today, policy)
	owed := row.BaseAmountDue.Add(penalty)

	status := PlanPending
	switch {
	case paid.GreaterThanOrEqual(owed):
		status = PlanPaid
	case paid.IsPositive():
		status = PlanPartial
	case IsPast(row.DueDate, today):
		status = PlanOverdue
	}

	return Classification{
		Status:    status,
		PaidSoFar: paid,
		Penalty:   penalty,
		TotalOwed: owed,
	}
}

// AllocatedTo filters the transactions recorded against the given month for
// the row's student and course.
func AllocatedTo(row PaymentPlanRow, payments []PaymentTransaction) []PaymentTransaction {
	var out []PaymentTransaction
	for _, p := range payments {
		if p.StudentID == row.StudentID && p.CourseID == row.CourseID && p.Month == row.Month {
			out = append(out, p)
		}
	}
	return out
}
