/*
service.go - Orchestration over the store: record, reverse, summarize

PURPOSE:
  The Service composes the pure engine (classify, allocate, summarize) with
  a Store. It is the one layer that generates IDs and touches persistence;
  everything below it stays a pure function of its inputs.

SUMMARY FETCHING:
  Plans and payments are two independent reads, issued concurrently. If
  either fails, the whole summary fails (IncompleteDataError) - a summary
  computed from half the data would be silently wrong, which is worse than
  an error the UI can retry.

WALLET RECONCILIATION:
  Applying standing wallet credit to newly generated plan rows follows the
  ledger correction pattern: the unallocated transaction is reversed and
  replaced by per-month portion transactions carrying the same receipt
  number (plus a fresh unallocated one for any remainder). Totals are
  unchanged, history keeps the full audit trail, and no amount is ever
  edited in place.

SEE ALSO:
  - allocation.go: the oldest-first walk used for both deposits and
    wallet reconciliation
  - events/: publishers receiving PaymentRecorded notifications
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// PUBLISHER - Post-write notifications
// =============================================================================

// Publisher receives a notification after payments are durably recorded.
// Implementations must not block the write path; failures are theirs to log.
type Publisher interface {
	PaymentRecorded(ctx context.Context, txs []PaymentTransaction)
}

type noopPublisher struct{}

func (noopPublisher) PaymentRecorded(context.Context, []PaymentTransaction) {}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	store  Store
	events Publisher
}

// NewService creates a ledger service. A nil publisher disables events.
func NewService(store Store, events Publisher) *Service {
	if events == nil {
		events = noopPublisher{}
	}
	return &Service{store: store, events: events}
}

// =============================================================================
// SUMMARY - Concurrent fetch, all-or-nothing aggregation
// =============================================================================

// Summary computes the full ledger view for a student/course as of the given
// date. The two underlying reads run concurrently; a failure of either fails
// the whole computation rather than producing a partial result.
func (s *Service) Summary(ctx context.Context, studentID StudentID, courseID CourseID, today time.Time) (StudentLedgerSummary, error) {
	policy, err := s.store.Policy(ctx)
	if err != nil {
		return StudentLedgerSummary{}, fmt.Errorf("load penalty policy: %w", err)
	}

	var (
		wg       sync.WaitGroup
		plans    []PaymentPlanRow
		payments []PaymentTransaction
		planErr  error
		payErr   error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		plans, planErr = s.store.PlansFor(ctx, studentID, courseID)
	}()
	go func() {
		defer wg.Done()
		payments, payErr = s.store.PaymentsFor(ctx, studentID, courseID)
	}()
	wg.Wait()

	if planErr != nil {
		return StudentLedgerSummary{}, &IncompleteDataError{Missing: "plans", Cause: planErr}
	}
	if payErr != nil {
		return StudentLedgerSummary{}, &IncompleteDataError{Missing: "payments", Cause: payErr}
	}

	summary := BuildSummary(plans, payments, today, policy)
	summary.StudentID = studentID
	summary.CourseID = courseID
	return summary, nil
}

// =============================================================================
// RECORD PAYMENT
// =============================================================================

// RecordPaymentInput describes a payment to record. An empty Month means an
// advance/credit deposit. Mode defaults to single_month when a month is
// named and oldest_first otherwise; in the defaulted case a month with no
// plan row banks the amount as wallet credit instead of failing.
type RecordPaymentInput struct {
	StudentID     StudentID
	CourseID      CourseID
	Month         MonthRef
	Amount        decimal.Decimal
	Method        PaymentMethod
	PaidDate      time.Time
	ReceiptNumber string
	Observations  string
	Mode          AllocationMode
}

// RecordPaymentResult reports what was written.
type RecordPaymentResult struct {
	Payments   []PaymentTransaction
	Allocation AllocationResult
}

// RecordPayment allocates and persists a payment. One stored transaction is
// created per allocated month plus one unallocated transaction for any
// wallet remainder, all sharing a receipt number.
func (s *Service) RecordPayment(ctx context.Context, in RecordPaymentInput) (RecordPaymentResult, error) {
	if !in.Amount.IsPositive() {
		return RecordPaymentResult{}, ErrInvalidAmount
	}
	if in.Method == "" {
		in.Method = MethodOther
	}
	if !KnownMethod(in.Method) {
		return RecordPaymentResult{}, fmt.Errorf("unknown payment method %q", in.Method)
	}
	explicitMode := in.Mode != ""
	if !explicitMode {
		if in.Month.IsZero() {
			in.Mode = AllocateOldestFirst
		} else {
			in.Mode = AllocateSingleMonth
		}
	}

	plans, err := s.store.PlansFor(ctx, in.StudentID, in.CourseID)
	if err != nil {
		return RecordPaymentResult{}, fmt.Errorf("load plans: %w", err)
	}
	existing, err := s.store.PaymentsFor(ctx, in.StudentID, in.CourseID)
	if err != nil {
		return RecordPaymentResult{}, fmt.Errorf("load payments: %w", err)
	}
	policy, err := s.store.Policy(ctx)
	if err != nil {
		return RecordPaymentResult{}, fmt.Errorf("load penalty policy: %w", err)
	}

	candidate := PaymentTransaction{
		StudentID: in.StudentID,
		CourseID:  in.CourseID,
		Month:     in.Month,
		Amount:    in.Amount,
		Status:    TxPaid,
	}
	alloc, err := AllocatePayment(candidate, plans, existing, in.PaidDate, policy, in.Mode)
	if err != nil {
		// A month with no plan row (typically the course has not started yet)
		// banks the money as wallet credit instead of bouncing, unless the
		// caller explicitly asked for single-month allocation.
		if !explicitMode && errors.Is(err, ErrInconsistentAllocation) {
			alloc = AllocationResult{WalletRemainder: in.Amount}
			in.Month = ""
		} else {
			return RecordPaymentResult{}, err
		}
	}

	receipt := in.ReceiptNumber
	if receipt == "" {
		receipt = uuid.NewString()
	}

	txs := s.portionTransactions(in, alloc, receipt, plans, existing, policy)
	if err := s.store.AppendPayments(ctx, txs); err != nil {
		return RecordPaymentResult{}, fmt.Errorf("persist payments: %w", err)
	}

	s.refreshRecordedStatus(ctx, in.StudentID, in.CourseID, in.PaidDate)
	s.events.PaymentRecorded(ctx, txs)

	return RecordPaymentResult{Payments: txs, Allocation: alloc}, nil
}

// portionTransactions materializes an allocation as stored transactions.
func (s *Service) portionTransactions(
	in RecordPaymentInput,
	alloc AllocationResult,
	receipt string,
	plans []PaymentPlanRow,
	existing []PaymentTransaction,
	policy PenaltyPolicy,
) []PaymentTransaction {
	now := time.Now().UTC()
	base := PaymentTransaction{
		StudentID:     in.StudentID,
		CourseID:      in.CourseID,
		Method:        in.Method,
		PaidDate:      DateOnly(in.PaidDate),
		ReceiptNumber: receipt,
		Observations:  in.Observations,
		CreatedAt:     now,
	}

	var txs []PaymentTransaction
	for _, portion := range alloc.Portions {
		tx := base
		tx.ID = PaymentID(uuid.NewString())
		tx.Month = portion.Month
		tx.Amount = portion.Amount
		tx.Status = TxPartial
		if portion.ClearsRow || coversRow(portion, plans, existing, in.PaidDate, policy) {
			tx.Status = TxPaid
		}
		txs = append(txs, tx)
	}
	if alloc.WalletRemainder.IsPositive() {
		tx := base
		tx.ID = PaymentID(uuid.NewString())
		tx.Month = ""
		tx.Amount = alloc.WalletRemainder
		tx.Status = TxPaid
		txs = append(txs, tx)
	}
	return txs
}

// coversRow reports whether a single-month portion settles its row in full.
func coversRow(portion AllocationPortion, plans []PaymentPlanRow, existing []PaymentTransaction, asOf time.Time, policy PenaltyPolicy) bool {
	for _, row := range plans {
		if row.Month != portion.Month {
			continue
		}
		c := Classify(row, AllocatedTo(row, existing), asOf, policy)
		return portion.Amount.GreaterThanOrEqual(c.Remaining())
	}
	return false
}

// =============================================================================
// REVERSE PAYMENT
// =============================================================================

// ReversePayment transitions a recorded payment to reversed. The amount
// stays in history; every aggregate recomputes without it.
func (s *Service) ReversePayment(ctx context.Context, id PaymentID) error {
	return s.store.MarkReversed(ctx, id)
}

// =============================================================================
// PLAN GENERATION + WALLET RECONCILIATION
// =============================================================================

// GeneratePlansInput describes a course run's billing term.
type GeneratePlansInput struct {
	StudentID     StudentID
	CourseID      CourseID
	FirstMonth    MonthRef
	Months        int
	MonthlyAmount decimal.Decimal
	DueDay        int
	AsOf          time.Time
}

// GeneratePlanRows creates one plan row per billing month of the term,
// skipping months that already have a row, then applies any standing wallet
// credit to the new rows oldest-first.
func (s *Service) GeneratePlanRows(ctx context.Context, in GeneratePlansInput) ([]PaymentPlanRow, error) {
	if in.Months <= 0 {
		return nil, fmt.Errorf("term must cover at least one month")
	}
	if in.MonthlyAmount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	if in.DueDay == 0 {
		in.DueDay = 10
	}

	existing, err := s.store.PlansFor(ctx, in.StudentID, in.CourseID)
	if err != nil {
		return nil, fmt.Errorf("load plans: %w", err)
	}
	occupied := make(map[MonthRef]bool, len(existing))
	for _, row := range existing {
		occupied[row.Month] = true
	}

	var rows []PaymentPlanRow
	month := in.FirstMonth
	for i := 0; i < in.Months; i++ {
		if !occupied[month] {
			rows = append(rows, PaymentPlanRow{
				ID:             PlanRowID(uuid.NewString()),
				StudentID:      in.StudentID,
				CourseID:       in.CourseID,
				Month:          month,
				DueDate:        month.Date(in.DueDay),
				BaseAmountDue:  in.MonthlyAmount,
				RecordedStatus: PlanPending,
			})
		}
		month = month.Next()
	}

	if len(rows) > 0 {
		if err := s.store.SavePlans(ctx, rows); err != nil {
			return nil, fmt.Errorf("persist plans: %w", err)
		}
	}

	if err := s.applyWalletCredit(ctx, in.StudentID, in.CourseID, in.AsOf); err != nil {
		return nil, err
	}

	s.refreshRecordedStatus(ctx, in.StudentID, in.CourseID, in.AsOf)
	return rows, nil
}

// applyWalletCredit walks unallocated credit through unpaid rows oldest
// first. Each consumed wallet transaction is reversed and replaced by
// allocated portions plus a remainder credit, preserving totals.
func (s *Service) applyWalletCredit(ctx context.Context, studentID StudentID, courseID CourseID, asOf time.Time) error {
	plans, err := s.store.PlansFor(ctx, studentID, courseID)
	if err != nil {
		return fmt.Errorf("load plans: %w", err)
	}
	payments, err := s.store.PaymentsFor(ctx, studentID, courseID)
	if err != nil {
		return fmt.Errorf("load payments: %w", err)
	}
	policy, err := s.store.Policy(ctx)
	if err != nil {
		return fmt.Errorf("load penalty policy: %w", err)
	}

	for _, credit := range payments {
		if !credit.Counts() || credit.Allocated() {
			continue
		}

		alloc, err := AllocatePayment(credit, plans, payments, asOf, policy, AllocateOldestFirst)
		if err != nil {
			return err
		}
		if len(alloc.Portions) == 0 {
			continue // nothing unpaid to apply against
		}

		in := RecordPaymentInput{
			StudentID:    studentID,
			CourseID:     courseID,
			Method:       credit.Method,
			PaidDate:     credit.PaidDate,
			Observations: credit.Observations,
		}
		replacements := s.portionTransactions(in, alloc, credit.ReceiptNumber, plans, payments, policy)
		if err := s.store.AppendPayments(ctx, replacements); err != nil {
			return fmt.Errorf("persist wallet allocation: %w", err)
		}
		if err := s.store.MarkReversed(ctx, credit.ID); err != nil {
			return fmt.Errorf("retire wallet credit: %w", err)
		}

		// Re-read so the next credit allocates against the new state.
		payments, err = s.store.PaymentsFor(ctx, studentID, courseID)
		if err != nil {
			return fmt.Errorf("load payments: %w", err)
		}
	}
	return nil
}

// =============================================================================
// STATUS CACHE REFRESH
// =============================================================================

// refreshRecordedStatus rewrites each row's persisted status from a fresh
// classification. Best effort: the recorded status is only a hint, so a
// failed refresh never fails the caller's write.
func (s *Service) refreshRecordedStatus(ctx context.Context, studentID StudentID, courseID CourseID, asOf time.Time) {
	plans, err := s.store.PlansFor(ctx, studentID, courseID)
	if err != nil {
		return
	}
	payments, err := s.store.PaymentsFor(ctx, studentID, courseID)
	if err != nil {
		return
	}
	policy, err := s.store.Policy(ctx)
	if err != nil {
		return
	}

	changed := false
	for i, row := range plans {
		c := Classify(row, AllocatedTo(row, payments), asOf, policy)
		if plans[i].RecordedStatus != c.Status {
			plans[i].RecordedStatus = c.Status
			changed = true
		}
	}
	if changed {
		_ = s.store.SavePlans(ctx, plans)
	}
}

// =============================================================================
// POLICY MANAGEMENT
// =============================================================================

// Policy returns the active penalty policy.
func (s *Service) Policy(ctx context.Context) (PenaltyPolicy, error) {
	return s.store.Policy(ctx)
}

// UpdatePolicy replaces the active penalty policy. Percentages must not be
// negative.
func (s *Service) UpdatePolicy(ctx context.Context, policy PenaltyPolicy) error {
	if policy.Tier1Percent.IsNegative() || policy.Tier2Percent.IsNegative() {
		return fmt.Errorf("penalty percentages must not be negative")
	}
	return s.store.SavePolicy(ctx, policy)
}
