/*
summary.go - Ledger aggregation

PURPOSE:
  Builds the StudentLedgerSummary: the complete financial view for one
  student/course pair. This is the answer to "what does this student owe,
  what have they paid, and which months are in trouble?".

CORE IDENTITY:
  currentBalance = totalPaid - totalDueWithPenalty

  totalPaid counts every non-reversed transaction, allocated or not -
  money received as an advance counts even before a plan row exists.
  totalDueWithPenalty sums totalOwed (base + penalty) over all plan rows.
  The balance is never stored; it is recomputed from the two sets on every
  read so it cannot drift.

ORDERING:
  Overdue rows come back oldest month first. That ordering governs which
  debt a partial payment should logically clear first; the engine surfaces
  it for the UI and the oldest-first allocator but does not retroactively
  reshuffle existing allocations.

EMPTY-PLAN CASE:
  With no plan rows (course not started), the summary still succeeds:
  totalDueWithPenalty is zero and any money received is pure wallet credit.

IDEMPOTENCE:
  BuildSummary is a pure function of (plans, payments, today, policy).
  Same inputs, byte-identical output - no clock reads, no generated IDs.

SEE ALSO:
  - classify.go: per-row classification
  - allocation.go: how new payments pick their rows
  - service.go: fetches the two input sets and enforces all-or-nothing
*/
package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STUDENT LEDGER SUMMARY - The computed view consumed by the UI
// =============================================================================

// ClassifiedRow is a plan row annotated with its derived classification.
type ClassifiedRow struct {
	Row PaymentPlanRow
	Classification
}

// StudentLedgerSummary is the aggregate financial view for one
// student/course pair. Derived, never persisted.
type StudentLedgerSummary struct {
	StudentID StudentID
	CourseID  CourseID
	AsOf      time.Time

	TotalPaid           decimal.Decimal
	TotalDueWithPenalty decimal.Decimal

	// CurrentBalance = TotalPaid - TotalDueWithPenalty.
	// Positive = credit, negative = debt.
	CurrentBalance decimal.Decimal

	// WalletCredit is the portion of TotalPaid not allocated to any month.
	WalletCredit decimal.Decimal

	// OverdueRows, oldest month first.
	OverdueRows []ClassifiedRow

	// AdvanceRows: paid rows whose due date is still in the future.
	AdvanceRows []ClassifiedRow

	// History: every plan row with its classification, by month ascending.
	History []ClassifiedRow

	// Payments: every transaction, reversed ones included, by paid date.
	Payments []PaymentTransaction
}

// =============================================================================
// AGGREGATOR
// =============================================================================

// BuildSummary computes the full ledger view. Pure function: no side
// effects, no hidden clock, identical inputs yield identical output.
func BuildSummary(plans []PaymentPlanRow, payments []PaymentTransaction, today time.Time, policy PenaltyPolicy) StudentLedgerSummary {
	s := StudentLedgerSummary{
		AsOf:                DateOnly(today),
		TotalPaid:           decimal.Zero,
		TotalDueWithPenalty: decimal.Zero,
		WalletCredit:        decimal.Zero,
	}
	if len(plans) > 0 {
		s.StudentID = plans[0].StudentID
		s.CourseID = plans[0].CourseID
	} else if len(payments) > 0 {
		s.StudentID = payments[0].StudentID
		s.CourseID = payments[0].CourseID
	}

	// Money received, whether or not a plan row exists for it yet.
	for _, p := range payments {
		if !p.Counts() {
			continue
		}
		s.TotalPaid = s.TotalPaid.Add(p.Amount)
		if !p.Allocated() {
			s.WalletCredit = s.WalletCredit.Add(p.Amount)
		}
	}

	rows := make([]ClassifiedRow, 0, len(plans))
	for _, row := range plans {
		c := Classify(row, AllocatedTo(row, payments), today, policy)
		rows = append(rows, ClassifiedRow{Row: row, Classification: c})
		s.TotalDueWithPenalty = s.TotalDueWithPenalty.Add(c.TotalOwed)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Row.Month.Before(rows[j].Row.Month)
	})
	s.History = rows

	for _, r := range rows {
		switch {
		case r.Status == PlanOverdue:
			s.OverdueRows = append(s.OverdueRows, r)
		case r.Status == PlanPaid && DateOnly(r.Row.DueDate).After(DateOnly(today)):
			s.AdvanceRows = append(s.AdvanceRows, r)
		}
	}

	s.CurrentBalance = s.TotalPaid.Sub(s.TotalDueWithPenalty)

	s.Payments = append([]PaymentTransaction(nil), payments...)
	sort.SliceStable(s.Payments, func(i, j int) bool {
		return s.Payments[i].PaidDate.Before(s.Payments[j].PaidDate)
	})

	return s
}
