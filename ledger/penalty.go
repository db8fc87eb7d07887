/*
penalty.go - Tiered late-penalty calculation

PURPOSE:
  Computes the surcharge owed on a plan row once its due date has passed.
  Penalties step up at lateness thresholds measured from the due date:

    daysLate <= 10          no penalty (grace window)
    10 < daysLate <= 20     tier 1 percent of the base amount
    daysLate > 20           tier 1 + tier 2 percent (additive, NOT compounding)

KEY PROPERTY:
  For a fixed base amount and due date the penalty is non-decreasing as
  today advances. Because it is a pure function of (base, dueDate, today,
  policy), a row that was merely pending yesterday presents as overdue with
  penalty today without any write.

POLICY TOGGLING:
  If the policy is disabled after penalties already accrued on unpaid rows,
  the owed amount drops back to the base immediately. There is no penalty
  grandfathering - an explicit choice, exercised in tests.

SEE ALSO:
  - classify.go: folds the penalty into a row's total owed
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PENALTY POLICY
// =============================================================================

// Lateness thresholds, in whole days past the due date.
const (
	tier1AfterDays = 10
	tier2AfterDays = 20
)

// PenaltyPolicy configures the tiered late surcharge. Percentages apply to
// the row's base amount due.
type PenaltyPolicy struct {
	Enabled      bool
	Tier1Percent decimal.Decimal // applies when daysLate > 10
	Tier2Percent decimal.Decimal // additionally applies when daysLate > 20
}

// DefaultPenaltyPolicy mirrors the standard school configuration:
// 10% after day 10, another 10% after day 20.
func DefaultPenaltyPolicy() PenaltyPolicy {
	return PenaltyPolicy{
		Enabled:      true,
		Tier1Percent: decimal.NewFromInt(10),
		Tier2Percent: decimal.NewFromInt(10),
	}
}

// =============================================================================
// PENALTY CALCULATION
// =============================================================================

var oneHundred = decimal.NewFromInt(100)

// ComputePenalty returns the late surcharge for a base amount due on dueDate
// as of today. Total function: a negative base is treated as zero, disabled
// policies and on-time rows yield zero.
func ComputePenalty(base decimal.Decimal, dueDate, today time.Time, policy PenaltyPolicy) decimal.Decimal {
	if !policy.Enabled {
		return decimal.Zero
	}
	if base.IsNegative() {
		base = decimal.Zero
	}

	late := DaysLate(dueDate, today)
	if late <= tier1AfterDays {
		return decimal.Zero
	}

	percent := policy.Tier1Percent
	if late > tier2AfterDays {
		percent = percent.Add(policy.Tier2Percent)
	}
	return base.Mul(percent).Div(oneHundred)
}
