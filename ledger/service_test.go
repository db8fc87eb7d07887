package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kampus/tuition-ledger/ledger"
	"github.com/kampus/tuition-ledger/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) (*ledger.Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return ledger.NewService(mem, nil), mem
}

func seedPlans(t *testing.T, mem *store.Memory, rows ...ledger.PaymentPlanRow) {
	t.Helper()
	require.NoError(t, mem.SavePlans(context.Background(), rows))
}

// failingStore wraps Memory and fails selected reads.
type failingStore struct {
	*store.Memory
	failPlans    bool
	failPayments bool
}

var errBackend = errors.New("backend unavailable")

func (f *failingStore) PlansFor(ctx context.Context, s ledger.StudentID, c ledger.CourseID) ([]ledger.PaymentPlanRow, error) {
	if f.failPlans {
		return nil, errBackend
	}
	return f.Memory.PlansFor(ctx, s, c)
}

func (f *failingStore) PaymentsFor(ctx context.Context, s ledger.StudentID, c ledger.CourseID) ([]ledger.PaymentTransaction, error) {
	if f.failPayments {
		return nil, errBackend
	}
	return f.Memory.PaymentsFor(ctx, s, c)
}

// capturingPublisher records what would have gone to the broker.
type capturingPublisher struct {
	published []ledger.PaymentTransaction
}

func (p *capturingPublisher) PaymentRecorded(_ context.Context, txs []ledger.PaymentTransaction) {
	p.published = append(p.published, txs...)
}

// =============================================================================
// SUMMARY TESTS - All-or-nothing fetch
// =============================================================================

func TestService_Summary_HappyPath(t *testing.T) {
	// GIVEN: A seeded plan and one recorded payment
	// WHEN: Asking for the summary
	// THEN: The computed view reflects both sets

	svc, mem := newTestService(t)
	ctx := context.Background()

	seedPlans(t, mem, planRow("2025-01", 10, 3000))
	require.NoError(t, mem.AppendPayments(ctx, []ledger.PaymentTransaction{
		paidTx("p1", "2025-01", 3000, day(2025, time.January, 5)),
	}))

	s, err := svc.Summary(ctx, "stu-1", "course-1", day(2025, time.January, 20))
	require.NoError(t, err)
	assert.True(t, s.TotalPaid.Equal(decimal.NewFromInt(3000)))
	assert.True(t, s.CurrentBalance.IsZero())
	require.Len(t, s.History, 1)
	assert.Equal(t, ledger.PlanPaid, s.History[0].Status)
}

func TestService_Summary_PlanFetchFails_WholeSummaryFails(t *testing.T) {
	// GIVEN: The plans read fails while payments would succeed
	// WHEN: Asking for the summary
	// THEN: IncompleteDataError - never a partial result

	mem := store.NewMemory()
	svc := ledger.NewService(&failingStore{Memory: mem, failPlans: true}, nil)

	_, err := svc.Summary(context.Background(), "stu-1", "course-1", day(2025, time.January, 20))
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrIncompleteData)

	var incomplete *ledger.IncompleteDataError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, "plans", incomplete.Missing)
	assert.ErrorIs(t, err, errBackend, "the underlying failure stays matchable")
}

func TestService_Summary_PaymentFetchFails_WholeSummaryFails(t *testing.T) {
	// GIVEN: The payments read fails while plans would succeed
	// WHEN: Asking for the summary
	// THEN: IncompleteDataError naming payments

	mem := store.NewMemory()
	svc := ledger.NewService(&failingStore{Memory: mem, failPayments: true}, nil)

	_, err := svc.Summary(context.Background(), "stu-1", "course-1", day(2025, time.January, 20))
	require.Error(t, err)

	var incomplete *ledger.IncompleteDataError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, "payments", incomplete.Missing)
}

// =============================================================================
// RECORD PAYMENT TESTS
// =============================================================================

func TestService_RecordPayment_SingleMonth(t *testing.T) {
	// GIVEN: A January row
	// WHEN: Recording a full payment naming January
	// THEN: One stored transaction with a generated receipt; row turns paid

	svc, mem := newTestService(t)
	ctx := context.Background()
	seedPlans(t, mem, planRow("2025-01", 10, 3000))

	res, err := svc.RecordPayment(ctx, ledger.RecordPaymentInput{
		StudentID: "stu-1",
		CourseID:  "course-1",
		Month:     "2025-01",
		Amount:    decimal.NewFromInt(3000),
		Method:    ledger.MethodCash,
		PaidDate:  day(2025, time.January, 8),
	})
	require.NoError(t, err)
	require.Len(t, res.Payments, 1)
	assert.Equal(t, ledger.TxPaid, res.Payments[0].Status)
	assert.NotEmpty(t, res.Payments[0].ReceiptNumber)

	s, err := svc.Summary(ctx, "stu-1", "course-1", day(2025, time.January, 20))
	require.NoError(t, err)
	assert.Equal(t, ledger.PlanPaid, s.History[0].Status)
}

func TestService_RecordPayment_AdvanceDeposit_SpillsAndBanksRemainder(t *testing.T) {
	// GIVEN: Two 3000 rows and a 7000 deposit with no month named
	// WHEN: Recording the payment (defaults to oldest_first)
	// THEN: Three transactions sharing one receipt: two cleared months plus
	//       a 1000 wallet credit

	svc, mem := newTestService(t)
	ctx := context.Background()
	seedPlans(t, mem,
		planRow("2025-01", 10, 3000),
		planRow("2025-02", 10, 3000),
	)

	res, err := svc.RecordPayment(ctx, ledger.RecordPaymentInput{
		StudentID: "stu-1",
		CourseID:  "course-1",
		Amount:    decimal.NewFromInt(7000),
		Method:    ledger.MethodTransfer,
		PaidDate:  day(2025, time.January, 5),
	})
	require.NoError(t, err)
	require.Len(t, res.Payments, 3)

	receipt := res.Payments[0].ReceiptNumber
	var wallet *ledger.PaymentTransaction
	for i := range res.Payments {
		assert.Equal(t, receipt, res.Payments[i].ReceiptNumber, "portions share one receipt")
		if !res.Payments[i].Allocated() {
			wallet = &res.Payments[i]
		}
	}
	require.NotNil(t, wallet, "remainder should be banked as wallet credit")
	assert.True(t, wallet.Amount.Equal(decimal.NewFromInt(1000)))

	s, err := svc.Summary(ctx, "stu-1", "course-1", day(2025, time.January, 6))
	require.NoError(t, err)
	assert.True(t, s.WalletCredit.Equal(decimal.NewFromInt(1000)))
	assert.True(t, s.TotalPaid.Equal(decimal.NewFromInt(7000)))
}

func TestService_RecordPayment_NamedMonthBeforeCourseStart_BanksAsWallet(t *testing.T) {
	// GIVEN: No plan rows yet (the course has not started)
	// WHEN: Recording a payment that names a month, without forcing a mode
	// THEN: The money is held as unallocated wallet credit, not rejected

	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.RecordPayment(ctx, ledger.RecordPaymentInput{
		StudentID: "stu-1",
		CourseID:  "course-1",
		Month:     "2025-06",
		Amount:    decimal.NewFromInt(5000),
		Method:    ledger.MethodTransfer,
		PaidDate:  day(2025, time.May, 20),
	})
	require.NoError(t, err)
	require.Len(t, res.Payments, 1)
	assert.False(t, res.Payments[0].Allocated(), "stored without a month reference")
	assert.True(t, res.Allocation.WalletRemainder.Equal(decimal.NewFromInt(5000)))

	s, err := svc.Summary(ctx, "stu-1", "course-1", day(2025, time.May, 21))
	require.NoError(t, err)
	assert.True(t, s.WalletCredit.Equal(decimal.NewFromInt(5000)))
	assert.True(t, s.TotalPaid.Equal(decimal.NewFromInt(5000)))
}

func TestService_RecordPayment_ExplicitSingleMonth_UnknownMonth_Rejected(t *testing.T) {
	// GIVEN: A January row only
	// WHEN: Recording a payment for June with single_month explicitly requested
	// THEN: ErrInconsistentAllocation - the explicit mode disables the
	//       wallet fallback

	svc, mem := newTestService(t)
	ctx := context.Background()
	seedPlans(t, mem, planRow("2025-01", 10, 3000))

	_, err := svc.RecordPayment(ctx, ledger.RecordPaymentInput{
		StudentID: "stu-1",
		CourseID:  "course-1",
		Month:     "2025-06",
		Amount:    decimal.NewFromInt(3000),
		PaidDate:  day(2025, time.January, 8),
		Mode:      ledger.AllocateSingleMonth,
	})
	assert.ErrorIs(t, err, ledger.ErrInconsistentAllocation)
}

func TestService_RecordPayment_InvalidAmount(t *testing.T) {
	// GIVEN: A zero-amount payment
	// WHEN: Recording it
	// THEN: ErrInvalidAmount before anything is persisted

	svc, mem := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, ledger.RecordPaymentInput{
		StudentID: "stu-1",
		CourseID:  "course-1",
		Amount:    decimal.Zero,
		PaidDate:  day(2025, time.January, 8),
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	txs, err := mem.PaymentsFor(ctx, "stu-1", "course-1")
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestService_RecordPayment_PublishesEvents(t *testing.T) {
	// GIVEN: A service wired to a capturing publisher
	// WHEN: Recording a payment
	// THEN: The stored transactions are published after the write

	mem := store.NewMemory()
	pub := &capturingPublisher{}
	svc := ledger.NewService(mem, pub)
	ctx := context.Background()
	seedPlans(t, mem, planRow("2025-01", 10, 3000))

	_, err := svc.RecordPayment(ctx, ledger.RecordPaymentInput{
		StudentID: "stu-1",
		CourseID:  "course-1",
		Month:     "2025-01",
		Amount:    decimal.NewFromInt(3000),
		PaidDate:  day(2025, time.January, 8),
	})
	require.NoError(t, err)
	require.Len(t, pub.published, 1)
	assert.True(t, pub.published[0].Amount.Equal(decimal.NewFromInt(3000)))
}

// =============================================================================
// REVERSAL TESTS
// =============================================================================

func TestService_ReversePayment_RestoresDebt(t *testing.T) {
	// GIVEN: A row fully paid by one transaction
	// WHEN: That transaction is reversed
	// THEN: The row is overdue again and the balance reflects the full debt

	svc, mem := newTestService(t)
	ctx := context.Background()
	seedPlans(t, mem, planRow("2025-01", 10, 3000))

	res, err := svc.RecordPayment(ctx, ledger.RecordPaymentInput{
		StudentID: "stu-1",
		CourseID:  "course-1",
		Month:     "2025-01",
		Amount:    decimal.NewFromInt(3000),
		PaidDate:  day(2025, time.January, 8),
	})
	require.NoError(t, err)

	require.NoError(t, svc.ReversePayment(ctx, res.Payments[0].ID))

	s, err := svc.Summary(ctx, "stu-1", "course-1", day(2025, time.January, 15))
	require.NoError(t, err)
	assert.True(t, s.TotalPaid.IsZero())
	assert.Equal(t, ledger.PlanOverdue, s.History[0].Status)
	assert.Len(t, s.Payments, 1, "reversed transaction stays in history")
}

func TestService_ReversePayment_UnknownID(t *testing.T) {
	// GIVEN: No such payment
	// WHEN: Reversing it
	// THEN: ErrPaymentNotFound

	svc, _ := newTestService(t)
	err := svc.ReversePayment(context.Background(), "nope")
	assert.ErrorIs(t, err, ledger.ErrPaymentNotFound)
	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// PLAN GENERATION + WALLET RECONCILIATION TESTS
// =============================================================================

func TestService_GeneratePlanRows_CreatesTerm(t *testing.T) {
	// GIVEN: An empty course
	// WHEN: Generating a 3-month term at 3000/month starting 2025-01
	// THEN: Three rows with due day 10, months consecutive

	svc, _ := newTestService(t)
	ctx := context.Background()

	rows, err := svc.GeneratePlanRows(ctx, ledger.GeneratePlansInput{
		StudentID:     "stu-1",
		CourseID:      "course-1",
		FirstMonth:    "2025-01",
		Months:        3,
		MonthlyAmount: decimal.NewFromInt(3000),
		AsOf:          day(2025, time.January, 2),
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "2025-01", rows[0].Month.String())
	assert.Equal(t, "2025-03", rows[2].Month.String())
	assert.Equal(t, day(2025, time.February, 10), rows[1].DueDate)
}

func TestService_GeneratePlanRows_SkipsOccupiedMonths(t *testing.T) {
	// GIVEN: A February row already exists
	// WHEN: Generating January through March
	// THEN: Only January and March are created; February is untouched

	svc, mem := newTestService(t)
	ctx := context.Background()
	seedPlans(t, mem, planRow("2025-02", 10, 9999))

	rows, err := svc.GeneratePlanRows(ctx, ledger.GeneratePlansInput{
		StudentID:     "stu-1",
		CourseID:      "course-1",
		FirstMonth:    "2025-01",
		Months:        3,
		MonthlyAmount: decimal.NewFromInt(3000),
		AsOf:          day(2025, time.January, 2),
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2025-01", rows[0].Month.String())
	assert.Equal(t, "2025-03", rows[1].Month.String())
}

func TestService_GeneratePlanRows_AppliesStandingWalletCredit(t *testing.T) {
	// GIVEN: A 5000 advance received before the course started
	// WHEN: A 3-month term at 3000/month is generated
	// THEN: The credit clears January and partially covers February; the
	//       original wallet transaction is reversed, totals unchanged

	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, ledger.RecordPaymentInput{
		StudentID: "stu-1",
		CourseID:  "course-1",
		Amount:    decimal.NewFromInt(5000),
		Method:    ledger.MethodTransfer,
		PaidDate:  day(2024, time.December, 20),
	})
	require.NoError(t, err)

	_, err = svc.GeneratePlanRows(ctx, ledger.GeneratePlansInput{
		StudentID:     "stu-1",
		CourseID:      "course-1",
		FirstMonth:    "2025-01",
		Months:        3,
		MonthlyAmount: decimal.NewFromInt(3000),
		AsOf:          day(2025, time.January, 2),
	})
	require.NoError(t, err)

	s, err := svc.Summary(ctx, "stu-1", "course-1", day(2025, time.January, 2))
	require.NoError(t, err)

	assert.True(t, s.TotalPaid.Equal(decimal.NewFromInt(5000)), "totals preserved, got %s", s.TotalPaid)
	assert.True(t, s.WalletCredit.IsZero(), "credit fully absorbed by the term")

	require.Len(t, s.History, 3)
	assert.Equal(t, ledger.PlanPaid, s.History[0].Status, "January cleared")
	assert.Equal(t, ledger.PlanPartial, s.History[1].Status, "February partially covered")
	assert.Equal(t, ledger.PlanPending, s.History[2].Status)

	reversed := 0
	for _, p := range s.Payments {
		if p.Status == ledger.TxReversed {
			reversed++
		}
	}
	assert.Equal(t, 1, reversed, "original wallet credit retired, kept in history")
}

func TestService_GeneratePlanRows_InvalidTerm(t *testing.T) {
	// GIVEN: A zero-month term
	// WHEN: Generating
	// THEN: Rejected

	svc, _ := newTestService(t)
	_, err := svc.GeneratePlanRows(context.Background(), ledger.GeneratePlansInput{
		StudentID:  "stu-1",
		CourseID:   "course-1",
		FirstMonth: "2025-01",
		Months:     0,
	})
	assert.Error(t, err)
}

// =============================================================================
// POLICY TESTS
// =============================================================================

func TestService_UpdatePolicy_RoundTrip(t *testing.T) {
	// GIVEN: A custom policy with 5%/15% tiers
	// WHEN: Saving and reloading it
	// THEN: The stored values come back and drive classification

	svc, _ := newTestService(t)
	ctx := context.Background()

	custom := ledger.PenaltyPolicy{
		Enabled:      true,
		Tier1Percent: decimal.NewFromInt(5),
		Tier2Percent: decimal.NewFromInt(15),
	}
	require.NoError(t, svc.UpdatePolicy(ctx, custom))

	got, err := svc.Policy(ctx)
	require.NoError(t, err)
	assert.True(t, got.Tier1Percent.Equal(decimal.NewFromInt(5)))
	assert.True(t, got.Tier2Percent.Equal(decimal.NewFromInt(15)))
}

func TestService_UpdatePolicy_NegativePercent_Rejected(t *testing.T) {
	// GIVEN: A policy with a negative tier percentage
	// WHEN: Saving it
	// THEN: Rejected

	svc, _ := newTestService(t)
	err := svc.UpdatePolicy(context.Background(), ledger.PenaltyPolicy{
		Enabled:      true,
		Tier1Percent: decimal.NewFromInt(-1),
	})
	assert.Error(t, err)
}
