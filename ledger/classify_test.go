package ledger_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/kampus/tuition-ledger/ledger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func planRow(month string, dueDay int, base int64) ledger.PaymentPlanRow {
	m, _ := ledger.ParseMonthRef(month)
	return ledger.PaymentPlanRow{
		ID:            ledger.PlanRowID("row-" + month),
		StudentID:     "stu-1",
		CourseID:      "course-1",
		Month:         m,
		DueDate:       m.Date(dueDay),
		BaseAmountDue: decimal.NewFromInt(base),
	}
}

func paidTx(id, month string, amount int64, paidDate time.Time) ledger.PaymentTransaction {
	m, _ := ledger.ParseMonthRef(month)
	return ledger.PaymentTransaction{
		ID:        ledger.PaymentID(id),
		StudentID: "stu-1",
		CourseID:  "course-1",
		Month:     m,
		Amount:    decimal.NewFromInt(amount),
		Method:    ledger.MethodCash,
		Status:    ledger.TxPaid,
		PaidDate:  paidDate,
	}
}

func walletTx(id string, amount int64, paidDate time.Time) ledger.PaymentTransaction {
	return ledger.PaymentTransaction{
		ID:        ledger.PaymentID(id),
		StudentID: "stu-1",
		CourseID:  "course-1",
		Amount:    decimal.NewFromInt(amount),
		Method:    ledger.MethodTransfer,
		Status:    ledger.TxPaid,
		PaidDate:  paidDate,
	}
}

// =============================================================================
// STATUS DERIVATION TESTS
// =============================================================================

func TestClassify_FullyPaid(t *testing.T) {
	// GIVEN: A 3000 row with 3000 allocated before the due date
	// WHEN: Classifying on the due date
	// THEN: paid, nothing remaining

	row := planRow("2025-03", 10, 3000)
	txs := []ledger.PaymentTransaction{paidTx("p1", "2025-03", 3000, day(2025, time.March, 5))}

	c := ledger.Classify(row, txs, day(2025, time.March, 10), standardPolicy())
	assert.Equal(t, ledger.PlanPaid, c.Status)
	assert.True(t, c.Remaining().IsZero())
}

func TestClassify_Partial(t *testing.T) {
	// GIVEN: A 3000 row with 1000 allocated
	// WHEN: Classifying past the due date
	// THEN: partial (any positive payment short of owed), not overdue

	row := planRow("2025-03", 10, 3000)
	txs := []ledger.PaymentTransaction{paidTx("p1", "2025-03", 1000, day(2025, time.March, 5))}

	c := ledger.Classify(row, txs, day(2025, time.March, 15), standardPolicy())
	assert.Equal(t, ledger.PlanPartial, c.Status)
	assert.True(t, c.PaidSoFar.Equal(decimal.NewFromInt(1000)))
}

func TestClassify_Overdue_NoPayment(t *testing.T) {
	// GIVEN: An unpaid row
	// WHEN: Today is past the due date
	// THEN: overdue

	row := planRow("2025-03", 10, 3000)

	c := ledger.Classify(row, nil, day(2025, time.March, 11), standardPolicy())
	assert.Equal(t, ledger.PlanOverdue, c.Status)
}

func TestClassify_Pending_BeforeDueDate(t *testing.T) {
	// GIVEN: An unpaid row
	// WHEN: Today is on or before the due date
	// THEN: pending, not overdue - overdue requires strictly past due

	row := planRow("2025-03", 10, 3000)

	c := ledger.Classify(row, nil, day(2025, time.March, 10), standardPolicy())
	assert.Equal(t, ledger.PlanPending, c.Status)
}

func TestClassify_PenaltyRaisesTheBar(t *testing.T) {
	// GIVEN: A 3000 row paid exactly its base amount
	// WHEN: Classifying 15 days past due, after a 10% penalty accrued
	// THEN: partial - the base no longer covers base + penalty

	row := planRow("2025-03", 10, 3000)
	txs := []ledger.PaymentTransaction{paidTx("p1", "2025-03", 3000, day(2025, time.March, 25))}

	c := ledger.Classify(row, txs, day(2025, time.March, 25), standardPolicy())
	assert.Equal(t, ledger.PlanPartial, c.Status)
	assert.True(t, c.TotalOwed.Equal(decimal.NewFromInt(3300)))
	assert.True(t, c.Remaining().Equal(decimal.NewFromInt(300)))
}

func TestClassify_ReversedPaymentDoesNotCount(t *testing.T) {
	// GIVEN: A row whose only covering payment was reversed
	// WHEN: Classifying past the due date
	// THEN: overdue, as if the payment never happened; history keeps the tx

	row := planRow("2025-03", 10, 3000)
	tx := paidTx("p1", "2025-03", 3000, day(2025, time.March, 5))
	tx.Status = ledger.TxReversed

	c := ledger.Classify(row, []ledger.PaymentTransaction{tx}, day(2025, time.March, 11), standardPolicy())
	assert.Equal(t, ledger.PlanOverdue, c.Status)
	assert.True(t, c.PaidSoFar.IsZero())
}

func TestClassify_ZeroAmountRow_IsPaid(t *testing.T) {
	// GIVEN: A row with a zero base amount (scholarship month)
	// WHEN: Classifying with no payments
	// THEN: paid - zero paid covers zero owed

	row := planRow("2025-03", 10, 0)

	c := ledger.Classify(row, nil, day(2025, time.April, 20), standardPolicy())
	assert.Equal(t, ledger.PlanPaid, c.Status)
}

func TestClassify_StaleRecordedStatusIgnored(t *testing.T) {
	// GIVEN: A row persisted as "paid" but with no counting payments
	// WHEN: Classifying past the due date
	// THEN: overdue - the recorded status is a cache hint, never an input

	row := planRow("2025-03", 10, 3000)
	row.RecordedStatus = ledger.PlanPaid

	c := ledger.Classify(row, nil, day(2025, time.March, 20), standardPolicy())
	assert.Equal(t, ledger.PlanOverdue, c.Status)
}

// =============================================================================
// ALLOCATION FILTER TESTS
// =============================================================================

func TestAllocatedTo_FiltersByMonthAndCourse(t *testing.T) {
	// GIVEN: Payments for two months plus an unallocated credit
	// WHEN: Filtering for the March row
	// THEN: Only the March transaction is returned

	row := planRow("2025-03", 10, 3000)
	txs := []ledger.PaymentTransaction{
		paidTx("p1", "2025-03", 1000, day(2025, time.March, 5)),
		paidTx("p2", "2025-04", 1000, day(2025, time.March, 5)),
		walletTx("p3", 500, day(2025, time.March, 5)),
	}

	got := ledger.AllocatedTo(row, txs)
	assert.Len(t, got, 1)
	assert.Equal(t, ledger.PaymentID("p1"), got[0].ID)
}
