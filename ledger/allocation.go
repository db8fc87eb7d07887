/*
allocation.go - Advance/wallet payment allocation

PURPOSE:
  Decides which plan row(s) a new payment applies to. Two modes, mirroring
  the backend API contract:

    single_month  apply only to the named month's row
    oldest_first  walk unpaid rows oldest month first, spilling into the
                  next row when the amount exceeds one row's remaining owed,
                  keeping any leftover as wallet credit

  oldest_first is the mode used for advance/credit deposits. A payment with
  no month reference at all (or recorded before any plan rows exist, e.g.
  the course has not started) is held as wallet credit and contributes to
  totalPaid immediately.

SPILL SEMANTICS:
  Each row in the walk is cleared up to its totalOwed (base + penalty), not
  just the base amount. See DESIGN.md for the open-question decision.

WALLET RECONCILIATION:
  When plan rows are later generated at course start, standing wallet credit
  is walked through the new rows with the same oldest-first routine - see
  Service.GeneratePlanRows.

ERROR CONDITIONS:
  - amount <= 0: ErrInvalidAmount
  - reversed payment: ErrReversedPayment (reversal is a state transition on
    an existing transaction, never a new allocation)
  - single_month naming an unknown month: ErrInconsistentAllocation
*/
package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ALLOCATION MODE
// =============================================================================

type AllocationMode string

const (
	AllocateSingleMonth AllocationMode = "single_month"
	AllocateOldestFirst AllocationMode = "oldest_first"
)

// =============================================================================
// ALLOCATION RESULT
// =============================================================================

// AllocationPortion is the part of a payment applied to one billing month.
type AllocationPortion struct {
	Month  MonthRef
	Amount decimal.Decimal

	// ClearsRow is true when the portion covers everything still owed on
	// the row, penalty included.
	ClearsRow bool
}

// AllocationResult describes how a payment's amount was split across plan
// rows and how much remains as wallet credit.
type AllocationResult struct {
	Portions        []AllocationPortion
	WalletRemainder decimal.Decimal
}

// Applied returns the total applied to plan rows.
func (r AllocationResult) Applied() decimal.Decimal {
	total := decimal.Zero
	for _, p := range r.Portions {
		total = total.Add(p.Amount)
	}
	return total
}

// =============================================================================
// ALLOCATOR
// =============================================================================

// AllocatePayment decides where a new payment lands. existing must contain
// the payments already recorded for the student/course so remaining owed
// amounts are computed against the live state.
func AllocatePayment(
	payment PaymentTransaction,
	plans []PaymentPlanRow,
	existing []PaymentTransaction,
	today time.Time,
	policy PenaltyPolicy,
	mode AllocationMode,
) (AllocationResult, error) {
	if payment.Status == TxReversed {
		return AllocationResult{}, ErrReversedPayment
	}
	if !payment.Amount.IsPositive() {
		return AllocationResult{}, ErrInvalidAmount
	}

	if mode == AllocateSingleMonth {
		return allocateSingleMonth(payment, plans)
	}
	return allocateOldestFirst(payment.Amount, plans, existing, today, policy), nil
}

func allocateSingleMonth(payment PaymentTransaction, plans []PaymentPlanRow) (AllocationResult, error) {
	if !payment.Allocated() {
		// Explicit credit deposit: held entirely as wallet balance.
		return AllocationResult{WalletRemainder: payment.Amount}, nil
	}
	for _, row := range plans {
		if row.Month == payment.Month {
			return AllocationResult{
				Portions: []AllocationPortion{{Month: payment.Month, Amount: payment.Amount}},
			}, nil
		}
	}
	return AllocationResult{}, &AllocationError{
		StudentID: payment.StudentID,
		CourseID:  payment.CourseID,
		Month:     payment.Month,
		Reason:    ErrInconsistentAllocation,
	}
}

func allocateOldestFirst(
	amount decimal.Decimal,
	plans []PaymentPlanRow,
	existing []PaymentTransaction,
	today time.Time,
	policy PenaltyPolicy,
) AllocationResult {
	ordered := append([]PaymentPlanRow(nil), plans...)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Month.Before(ordered[j].Month)
	})

	var result AllocationResult
	left := amount

	for _, row := range ordered {
		if !left.IsPositive() {
			break
		}
		c := Classify(row, AllocatedTo(row, existing), today, policy)
		remaining := c.Remaining()
		if !remaining.IsPositive() {
			continue
		}

		applied := left
		if applied.GreaterThan(remaining) {
			applied = remaining
		}
		result.Portions = append(result.Portions, AllocationPortion{
			Month:     row.Month,
			Amount:    applied,
			ClearsRow: applied.Equal(remaining),
		})
		left = left.Sub(applied)
	}

	result.WalletRemainder = left
	return result
}
